package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"randomwalk/internal/comm"
	"randomwalk/internal/config"
	"randomwalk/internal/controller"
	"randomwalk/internal/group"
	"randomwalk/internal/role"
)

// reportedError marks a failure whose diagnostic has already been printed
// (or deliberately suppressed); main exits non-zero without printing again.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// parseWalkArgs validates the positional arguments. On failure the usage
// diagnostic goes to w only when report is true.
func parseWalkArgs(args []string, w io.Writer, report bool) (config.WalkConfig, error) {
	cfg, err := config.ParseArgs(args)
	if err != nil {
		if report {
			fmt.Fprintf(w, "%s\n  %v\n", config.Usage, err)
		}
		return config.WalkConfig{}, &reportedError{err: err}
	}
	return cfg, nil
}

// flagError reports a flag that failed to parse, typically a negative
// number placed before the positional arguments, as a usage error. Under
// "rank" only rank 0 reports it.
func flagError(cmd *cobra.Command, err error) error {
	report := true
	if cmd.Name() == "rank" {
		id, idErr := group.IdentityFromEnv(os.Getenv)
		report = idErr != nil || id.Rank == comm.ControllerRank
	}
	if report {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n  %v\n", config.Usage, err)
	}
	return &reportedError{err: err}
}

func (a *app) roleOptions(out io.Writer) role.Options {
	return role.Options{
		Seed:       a.settings.Seed,
		Controller: controller.Options{Deadline: a.settings.Deadline},
		Out:        out,
	}
}

// forwardedFlags renders the resolved settings as flags for a child
// participant, so every rank runs with the same settings without needing
// the settings file.
func (a *app) forwardedFlags() []string {
	s := a.settings
	flags := []string{
		"--log-level=" + s.LogLevel,
		"--log-format=" + s.LogFormat,
	}
	if s.Seed != nil {
		flags = append(flags, "--seed="+strconv.FormatUint(*s.Seed, 10))
	}
	if s.Deadline > 0 {
		flags = append(flags, "--deadline="+s.Deadline.String())
	}
	if s.Sync {
		flags = append(flags, "--sync")
	}
	return flags
}
