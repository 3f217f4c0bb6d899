package comm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"sync"
	"time"
)

var _ Comm = (*RPCEndpoint)(nil)

// DefaultConnectTimeout bounds how long OpenRPC waits for peers to listen.
const DefaultConnectTimeout = 10 * time.Second

// connectInterval is the pause between dial attempts while a peer starts.
const connectInterval = 50 * time.Millisecond

// DrainTimeout bounds how long Close waits for connected peers to hang up
// before dropping their connections.
var DrainTimeout = 5 * time.Second

// DeliverArgs is the wire form of one message.
type DeliverArgs struct {
	Source  int
	Tag     int
	Payload int64
}

// DeliverReply is empty; a nil error means the message was accepted.
type DeliverReply struct{}

// MailboxService exposes a Mailbox over net/rpc as "Mailbox.Deliver".
type MailboxService struct {
	box  *Mailbox
	sync bool
}

// Deliver queues the message. In synchronous mode the call returns only
// once the owner of the mailbox has received it.
func (s *MailboxService) Deliver(args *DeliverArgs, _ *DeliverReply) error {
	d, err := s.box.Deliver(Message{Source: args.Source, Tag: args.Tag, Payload: args.Payload})
	if err != nil {
		return err
	}
	if s.sync {
		return d.Wait(context.Background())
	}
	return nil
}

// RPCEndpoint is a Comm for one process of a multi-process group. A rank
// whose entry in the peer table is non-empty listens there and serves its
// mailbox; every other addressable rank is dialed once at open time.
type RPCEndpoint struct {
	rank  int
	size  int
	peers []string
	opts  options

	box *Mailbox
	ln  net.Listener

	mu      sync.Mutex
	clients map[int]*rpc.Client
	conns   map[net.Conn]struct{}
	serving sync.WaitGroup
	closed  bool
}

// OpenRPC opens the endpoint for rank. peers has one address per rank;
// an empty address marks a rank that only sends. Dialing waits for each
// peer to start listening until ctx ends or DefaultConnectTimeout passes.
func OpenRPC(ctx context.Context, rank int, peers []string, opts ...Option) (*RPCEndpoint, error) {
	size := len(peers)
	if err := checkRank(rank, size); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	e := &RPCEndpoint{
		rank:    rank,
		size:    size,
		peers:   append([]string(nil), peers...),
		opts:    o,
		clients: make(map[int]*rpc.Client),
		conns:   make(map[net.Conn]struct{}),
	}

	if addr := peers[rank]; addr != "" {
		if err := e.listen(addr); err != nil {
			return nil, err
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()
	for r, addr := range peers {
		if r == rank || addr == "" {
			continue
		}
		client, err := dialUntil(dialCtx, addr)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("connect to rank %d at %s: %w", r, addr, err)
		}
		e.clients[r] = client
		o.log.Debug("peer connected", slog.Int("rank", rank), slog.Int("peer", r), slog.String("addr", addr))
	}
	return e, nil
}

func (e *RPCEndpoint) listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	e.box = NewMailbox(e.rank, e.opts.log)
	srv := rpc.NewServer()
	if err := srv.RegisterName("Mailbox", &MailboxService{box: e.box, sync: e.opts.sync}); err != nil {
		_ = ln.Close()
		return fmt.Errorf("register mailbox: %w", err)
	}
	e.ln = ln
	e.peers[e.rank] = ln.Addr().String()
	go e.serve(srv)
	e.opts.log.Debug("mailbox listening", slog.Int("rank", e.rank), slog.String("addr", e.peers[e.rank]))
	return nil
}

// serve accepts peers until the listener closes. Each connection is
// tracked so Close can wait for senders to hang up.
func (e *RPCEndpoint) serve(srv *rpc.Server) {
	for {
		conn, err := e.ln.Accept()
		if err != nil {
			return
		}
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			_ = conn.Close()
			return
		}
		e.conns[conn] = struct{}{}
		e.serving.Add(1)
		e.mu.Unlock()

		go func() {
			defer e.serving.Done()
			srv.ServeConn(conn)
			e.mu.Lock()
			delete(e.conns, conn)
			e.mu.Unlock()
		}()
	}
}

func dialUntil(ctx context.Context, addr string) (*rpc.Client, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return rpc.NewClient(conn), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-time.After(connectInterval):
		}
	}
}

// Addr returns the address this endpoint serves on, or "" if it only sends.
func (e *RPCEndpoint) Addr() string {
	if e.ln == nil {
		return ""
	}
	return e.ln.Addr().String()
}

func (e *RPCEndpoint) Rank() int { return e.rank }
func (e *RPCEndpoint) Size() int { return e.size }

// Send makes exactly one Mailbox.Deliver call to dest.
func (e *RPCEndpoint) Send(ctx context.Context, dest, tag int, payload int64) error {
	if err := checkRank(dest, e.size); err != nil {
		return err
	}
	if dest == e.rank && e.box != nil {
		d, err := e.box.Deliver(Message{Source: e.rank, Tag: tag, Payload: payload})
		if err != nil {
			return fmt.Errorf("send to rank %d: %w", dest, err)
		}
		if e.opts.sync {
			return d.Wait(ctx)
		}
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	client := e.clients[dest]
	e.mu.Unlock()
	if client == nil {
		return fmt.Errorf("send to rank %d: rank has no address", dest)
	}

	args := &DeliverArgs{Source: e.rank, Tag: tag, Payload: payload}
	call := client.Go("Mailbox.Deliver", args, &DeliverReply{}, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		if call.Error != nil {
			return fmt.Errorf("send to rank %d: %w", dest, call.Error)
		}
		e.opts.log.Debug("message sent", slog.Int("rank", e.rank), slog.Int("dest", dest), slog.Int("tag", tag))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send to rank %d: %w", dest, ctx.Err())
	}
}

// Recv reads from this rank's mailbox. It fails if the rank has no address.
func (e *RPCEndpoint) Recv(ctx context.Context, source, tag int) (Message, error) {
	if e.box == nil {
		return Message{}, fmt.Errorf("recv on rank %d: rank has no address", e.rank)
	}
	if source != AnySource {
		if err := checkRank(source, e.size); err != nil {
			return Message{}, err
		}
	}
	return e.box.Recv(ctx, source, tag)
}

// Close stops the listener and drops outgoing connections. Incoming
// connections are given DrainTimeout to be closed by their senders, so a
// sender whose message was already received still gets its reply.
func (e *RPCEndpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	clients := e.clients
	e.clients = nil
	e.mu.Unlock()

	var errs []error
	for _, c := range clients {
		if err := c.Close(); err != nil && !errors.Is(err, rpc.ErrShutdown) {
			errs = append(errs, err)
		}
	}
	if e.ln != nil {
		if err := e.ln.Close(); err != nil {
			errs = append(errs, err)
		}
		// Closing the mailbox first releases synchronous senders still
		// waiting for a receive, so their connections can finish.
		_ = e.box.Close()
		e.drain()
	}
	return errors.Join(errs...)
}

func (e *RPCEndpoint) drain() {
	drained := make(chan struct{})
	go func() {
		e.serving.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return
	case <-time.After(DrainTimeout):
	}

	e.mu.Lock()
	for conn := range e.conns {
		_ = conn.Close()
	}
	e.mu.Unlock()
	<-drained
}
