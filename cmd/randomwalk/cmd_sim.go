package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"randomwalk/internal/comm"
	"randomwalk/internal/controller"
	"randomwalk/internal/format"
	"randomwalk/internal/group"
	"randomwalk/internal/logging"
	"randomwalk/internal/role"
)

func (a *app) simCmd() *cobra.Command {
	var flags struct {
		summary bool
		format  string
	}
	cmd := &cobra.Command{
		Use:   "sim [flags] <domain_size> <max_steps>",
		Short: "Run the whole group as goroutines in this process",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := format.ParseMode(flags.format)
			if err != nil {
				return err
			}
			return a.runSim(cmd, args, flags.summary, mode)
		},
	}
	f := cmd.Flags()
	f.SetInterspersed(false)
	f.BoolVar(&flags.summary, "summary", false, "Print a per-walker table after the run")
	f.StringVar(&flags.format, "format", "table", "Summary format: table, markdown (md)")
	return cmd
}

func (a *app) runSim(cmd *cobra.Command, args []string, summary bool, mode format.Mode) error {
	cfg, err := parseWalkArgs(args, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	out := group.NewLockedWriter(cmd.OutOrStdout())
	opts := a.roleOptions(out)
	logger := logging.New("sim")
	logger.Info("starting group", "np", a.settings.Participants, "domain_size", cfg.DomainSize, "max_steps", cfg.MaxSteps)

	var (
		mu   sync.Mutex
		rows []format.WalkRow
		ctrl *controller.Summary
	)
	start := time.Now()
	err = group.RunLocal(ctx, a.settings.Participants, func(ctx context.Context, c comm.Comm) error {
		res, err := role.Dispatch(ctx, c, cfg, opts)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if res.Walk != nil {
			rows = append(rows, format.WalkRow{
				Rank:     res.Role.Rank,
				Steps:    res.Walk.Steps,
				Position: res.Walk.Position,
				Boundary: res.Walk.Boundary,
			})
		}
		if res.Summary != nil {
			ctrl = res.Summary
		}
		return nil
	}, comm.WithSynchronous(a.settings.Sync), comm.WithLogger(logging.New("comm")))
	if err != nil {
		return err
	}

	if summary && ctrl != nil {
		fmt.Fprint(cmd.OutOrStdout(), format.WalkSummary(mode, rows, ctrl.Received, ctrl.Expected, time.Since(start))+"\n")
	}
	return nil
}
