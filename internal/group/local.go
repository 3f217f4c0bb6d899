package group

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"randomwalk/internal/comm"
	"randomwalk/internal/logging"
)

// ParticipantFunc is one participant's body.
type ParticipantFunc func(ctx context.Context, c comm.Comm) error

// RunLocal runs size participants as goroutines connected by an in-memory
// hub. The first participant to fail cancels the others.
func RunLocal(ctx context.Context, size int, fn ParticipantFunc, opts ...comm.Option) error {
	if size < 1 {
		return fmt.Errorf("group size must be at least 1, got %d", size)
	}
	hub := comm.NewHub(size, opts...)
	defer hub.Close()

	logger := logging.New("group")
	logger.Debug("starting local group", "size", size)

	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		ep, err := hub.Endpoint(r)
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer ep.Close()
			if err := fn(gctx, ep); err != nil {
				return fmt.Errorf("rank %d: %w", ep.Rank(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// LockedWriter serialises writes so lines from concurrent participants do
// not interleave.
type LockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLockedWriter wraps w.
func NewLockedWriter(w io.Writer) *LockedWriter {
	return &LockedWriter{w: w}
}

func (l *LockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
