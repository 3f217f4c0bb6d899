package comm

import (
	"context"
	"log/slog"
	"sync"

	"randomwalk/internal/logging"
)

// Mailbox queues the messages addressed to one rank. Recv takes the oldest
// queued message that matches, so messages from one sender are received in
// the order they were delivered. Messages from different senders carry no
// ordering guarantee relative to each other beyond arrival.
type Mailbox struct {
	rank int
	log  *slog.Logger

	mu      sync.Mutex
	queue   []*envelope
	arrived chan struct{} // closed and replaced on every delivery
	done    chan struct{}
	closed  bool
}

type envelope struct {
	msg   Message
	taken chan struct{}
}

// NewMailbox returns an empty mailbox for rank.
func NewMailbox(rank int, logger *slog.Logger) *Mailbox {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Mailbox{
		rank:    rank,
		log:     logger,
		arrived: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Delivery tracks one queued message until a receiver takes it.
type Delivery struct {
	box *Mailbox
	env *envelope
}

// Deliver queues msg and wakes any waiting receivers.
func (m *Mailbox) Deliver(msg Message) (*Delivery, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	env := &envelope{msg: msg, taken: make(chan struct{})}
	m.queue = append(m.queue, env)
	queued := len(m.queue)
	close(m.arrived)
	m.arrived = make(chan struct{})
	m.mu.Unlock()

	m.log.Debug("message queued",
		slog.Int("dest", m.rank),
		slog.Int("source", msg.Source),
		slog.Int("tag", msg.Tag),
		slog.Int("queued", queued),
	)
	return &Delivery{box: m, env: env}, nil
}

// Wait blocks until the message has been received. If ctx ends first and
// the message is still queued, it is withdrawn and ctx's error returned.
func (d *Delivery) Wait(ctx context.Context) error {
	select {
	case <-d.env.taken:
		return nil
	case <-ctx.Done():
		if d.box.withdraw(d.env) {
			return ctx.Err()
		}
		return nil
	case <-d.box.done:
		if d.box.withdraw(d.env) {
			return ErrClosed
		}
		return nil
	}
}

// Recv returns the oldest queued message whose source and tag match,
// blocking until one arrives. source may be AnySource.
func (m *Mailbox) Recv(ctx context.Context, source, tag int) (Message, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return Message{}, ErrClosed
		}
		for i, env := range m.queue {
			if env.msg.Tag != tag || (source != AnySource && env.msg.Source != source) {
				continue
			}
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			close(env.taken)
			m.mu.Unlock()
			m.log.Debug("message received",
				slog.Int("dest", m.rank),
				slog.Int("source", env.msg.Source),
				slog.Int("tag", env.msg.Tag),
			)
			return env.msg, nil
		}
		arrived := m.arrived
		m.mu.Unlock()

		select {
		case <-arrived:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-m.done:
			return Message{}, ErrClosed
		}
	}
}

// Pending returns the number of queued, unreceived messages.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close wakes every blocked Recv and Wait with ErrClosed. Close is idempotent.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	return nil
}

func (m *Mailbox) withdraw(env *envelope) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.queue {
		if e == env {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true
		}
	}
	return false
}
