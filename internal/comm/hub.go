package comm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"randomwalk/internal/logging"
)

var _ Comm = (*hubEndpoint)(nil)

// Option configures a transport.
type Option func(*options)

type options struct {
	sync bool
	log  *slog.Logger
}

func buildOptions(opts []Option) options {
	o := options{log: logging.Discard()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithSynchronous makes Send block until the destination has received the
// message. The default is buffered: Send returns once the message is queued.
func WithSynchronous(on bool) Option {
	return func(o *options) { o.sync = on }
}

// WithLogger routes transport debug events to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.log = logger
		}
	}
}

// Hub is an in-memory transport connecting size participants of one
// process. Each rank gets its own Mailbox; Endpoint hands out the Comm for
// a rank.
type Hub struct {
	size  int
	opts  options
	boxes []*Mailbox

	closeOnce sync.Once
}

// NewHub creates a hub for a group of size participants.
func NewHub(size int, opts ...Option) *Hub {
	o := buildOptions(opts)
	boxes := make([]*Mailbox, size)
	for i := range boxes {
		boxes[i] = NewMailbox(i, o.log)
	}
	return &Hub{size: size, opts: o, boxes: boxes}
}

// Size returns the group size.
func (h *Hub) Size() int { return h.size }

// Endpoint returns the Comm for rank.
func (h *Hub) Endpoint(rank int) (Comm, error) {
	if err := checkRank(rank, h.size); err != nil {
		return nil, err
	}
	return &hubEndpoint{hub: h, rank: rank}, nil
}

// Close closes every mailbox, releasing blocked receivers and senders.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		for _, b := range h.boxes {
			_ = b.Close()
		}
	})
	return nil
}

type hubEndpoint struct {
	hub  *Hub
	rank int
}

func (e *hubEndpoint) Rank() int { return e.rank }
func (e *hubEndpoint) Size() int { return e.hub.size }

func (e *hubEndpoint) Send(ctx context.Context, dest, tag int, payload int64) error {
	if err := checkRank(dest, e.hub.size); err != nil {
		return err
	}
	d, err := e.hub.boxes[dest].Deliver(Message{Source: e.rank, Tag: tag, Payload: payload})
	if err != nil {
		return fmt.Errorf("send to rank %d: %w", dest, err)
	}
	if !e.hub.opts.sync {
		return nil
	}
	if err := d.Wait(ctx); err != nil {
		return fmt.Errorf("send to rank %d: %w", dest, err)
	}
	return nil
}

func (e *hubEndpoint) Recv(ctx context.Context, source, tag int) (Message, error) {
	if source != AnySource {
		if err := checkRank(source, e.hub.size); err != nil {
			return Message{}, err
		}
	}
	return e.hub.boxes[e.rank].Recv(ctx, source, tag)
}

// Close closes this rank's mailbox only; the other ranks keep running.
func (e *hubEndpoint) Close() error {
	return e.hub.boxes[e.rank].Close()
}
