package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"randomwalk/internal/comm"
	"randomwalk/internal/group"
	"randomwalk/internal/logging"
	"randomwalk/internal/role"
)

func (a *app) rankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "rank [flags] <domain_size> <max_steps>",
		Short:  "Run one participant; identity comes from the launcher's environment",
		Hidden: true,
		RunE:   a.runRank,
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func (a *app) runRank(cmd *cobra.Command, args []string) error {
	id, err := group.IdentityFromEnv(os.Getenv)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	// Every rank rejects bad arguments; only rank 0 says why.
	cfg, err := parseWalkArgs(args, cmd.ErrOrStderr(), id.Rank == comm.ControllerRank)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()
	group.WatchParent(ctx, cancel)

	logger := logging.ForRank(logging.New("rank"), id.Rank)
	ep, err := comm.OpenRPC(ctx, id.Rank, id.Peers,
		comm.WithSynchronous(a.settings.Sync),
		comm.WithLogger(logging.ForRank(logging.New("comm"), id.Rank)),
	)
	if err != nil {
		return fmt.Errorf("rank %d: open transport: %w", id.Rank, err)
	}
	defer ep.Close()

	res, err := role.Dispatch(ctx, ep, cfg, a.roleOptions(cmd.OutOrStdout()))
	if err != nil {
		return fmt.Errorf("rank %d: %w", id.Rank, err)
	}
	logger.Debug("participant done", "role", res.Role.String())
	return nil
}
