// Package walker runs one bounded one-dimensional random walk and reports
// the number of steps it took to the controller.
package walker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"randomwalk/internal/comm"
	"randomwalk/internal/config"
	"randomwalk/internal/logging"
)

// Outcome is the walker-local result of a walk. Only Steps leaves the
// walker; Position and Boundary are for its own output.
type Outcome struct {
	Steps    int
	Position int
	Boundary bool
}

// Walk moves from position 0 by -1 or +1 per step until the position
// reaches ±DomainSize or MaxSteps steps have been taken. The step that
// reaches the boundary is counted.
func Walk(cfg config.WalkConfig, rng *rand.Rand) Outcome {
	var o Outcome
	for o.Steps < cfg.MaxSteps {
		if rng.IntN(2) == 0 {
			o.Position--
		} else {
			o.Position++
		}
		o.Steps++
		if o.Position <= -cfg.DomainSize || o.Position >= cfg.DomainSize {
			o.Boundary = true
			break
		}
	}
	return o
}

// Seed derives the seed for rank. With a fixed base the result depends only
// on base and rank; otherwise the wall clock is mixed in.
func Seed(rank int, base *uint64) uint64 {
	if base != nil {
		return *base + uint64(rank)
	}
	return uint64(time.Now().UnixNano()) + uint64(rank)
}

// NewRand returns the generator a walker with the given seed uses.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Run walks, sends the step count to the controller once, and then prints
// the walker's completion line to out. A send error is returned as-is for
// the caller to treat as fatal; nothing is retried.
func Run(ctx context.Context, c comm.Comm, cfg config.WalkConfig, seed uint64, out io.Writer) (Outcome, error) {
	log := logging.ForRank(logging.New("walker"), c.Rank())

	o := Walk(cfg, NewRand(seed))
	log.Debug("walk finished",
		slog.Int("steps", o.Steps),
		slog.Int("position", o.Position),
		slog.Bool("boundary", o.Boundary),
	)

	if err := c.Send(ctx, comm.ControllerRank, comm.ReportTag, int64(o.Steps)); err != nil {
		return o, fmt.Errorf("walker %d: report steps: %w", c.Rank(), err)
	}

	fmt.Fprintf(out, "Rank %d: Walker finished in %d.\n", c.Rank(), o.Steps)
	return o, nil
}
