package main

import (
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"randomwalk/internal/group"
)

func (a *app) launchCmd() *cobra.Command {
	var host string
	cmd := &cobra.Command{
		Use:   "launch [flags] <domain_size> <max_steps>",
		Short: "Run each participant as its own process, connected over TCP",
		Long: "launch starts np copies of this binary with 'rank', one per participant,\n" +
			"and waits for all of them. Flags come before the arguments, which are passed\n" +
			"through unchanged; each participant validates them itself and only rank 0\n" +
			"reports a usage error.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			l := &group.Launcher{
				Size:   a.settings.Participants,
				Args:   append(a.forwardedFlags(), append([]string{"--"}, args...)...),
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Host:   host,
			}
			err := l.Run(ctx)
			var ce *group.ChildError
			if errors.As(err, &ce) {
				// The participant has already printed its own diagnostic.
				return &reportedError{err: err}
			}
			return err
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Interface the controller listens on")
	return cmd
}
