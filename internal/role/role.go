// Package role decides, once per participant, whether it is the controller
// or a walker, and runs that role.
package role

import (
	"context"
	"fmt"
	"io"

	"randomwalk/internal/comm"
	"randomwalk/internal/config"
	"randomwalk/internal/controller"
	"randomwalk/internal/walker"
)

// Kind tags a Role.
type Kind int

const (
	Controller Kind = iota
	Walker
)

func (k Kind) String() string {
	switch k {
	case Controller:
		return "controller"
	case Walker:
		return "walker"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Role is Controller, or Walker carrying the walker's rank.
type Role struct {
	Kind Kind
	Rank int
}

// Decide maps rank 0 to Controller and every other rank to Walker(rank).
func Decide(rank int) Role {
	if rank == comm.ControllerRank {
		return Role{Kind: Controller, Rank: rank}
	}
	return Role{Kind: Walker, Rank: rank}
}

func (r Role) String() string {
	if r.Kind == Walker {
		return fmt.Sprintf("walker(%d)", r.Rank)
	}
	return r.Kind.String()
}

// Options carries everything a role needs besides the walk itself.
type Options struct {
	// Seed is the fixed base seed; nil seeds from the clock.
	Seed       *uint64
	Controller controller.Options
	Out        io.Writer
}

// Result is what a role produced: Walk for a walker, Summary for the controller.
type Result struct {
	Role    Role
	Walk    *walker.Outcome
	Summary *controller.Summary
}

// Dispatch runs the role for c's rank.
func Dispatch(ctx context.Context, c comm.Comm, cfg config.WalkConfig, opts Options) (Result, error) {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	r := Decide(c.Rank())
	res := Result{Role: r}

	switch r.Kind {
	case Controller:
		s, err := controller.Run(ctx, c, opts.Controller, out)
		if err != nil {
			return res, err
		}
		res.Summary = &s
	case Walker:
		o, err := walker.Run(ctx, c, cfg, walker.Seed(r.Rank, opts.Seed), out)
		if err != nil {
			return res, err
		}
		res.Walk = &o
	}
	return res, nil
}
