// randomwalk runs bounded one-dimensional random walkers in parallel and a
// controller that waits for every walker to report.
//
// Usage:
//
// Flags come before the positional arguments.
//
//	randomwalk sim    [--np N] [--seed S] [--summary] <domain_size> <max_steps>
//	randomwalk launch [--np N] [--seed S] <domain_size> <max_steps>
//	randomwalk rank   <domain_size> <max_steps>   (started by launch)
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"randomwalk/internal/config"
	"randomwalk/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// app holds the flags shared by every subcommand and the settings they
// resolve to.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	np       int
	seed     uint64
	deadline time.Duration
	sync     bool

	settings config.Settings
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "randomwalk",
		Short: "Parallel bounded random walkers with a controller rendezvous",
		Long: "randomwalk starts one controller and N-1 walkers. Each walker runs a bounded\n" +
			"1-D random walk and reports its step count once; the controller waits for\n" +
			"every report and then announces that all walkers have finished.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.prepare,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML settings file (np, seed, deadline, sync, log_level, log_format)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default warn)")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format: text, json (default text)")
	pf.IntVarP(&a.np, "np", "n", config.DefaultParticipants, "Number of participants (1 controller + np-1 walkers)")
	pf.Uint64Var(&a.seed, "seed", 0, "Fixed base seed; walker r uses seed+r (default: wall clock)")
	pf.DurationVar(&a.deadline, "deadline", 0, "Give up the rendezvous after this long (0 = wait forever)")
	pf.BoolVar(&a.sync, "sync", false, "Synchronous sends: a walker's send returns only once received")

	root.SetFlagErrorFunc(flagError)
	root.AddCommand(a.simCmd(), a.launchCmd(), a.rankCmd())
	root.Version = version
	return root
}

// prepare resolves settings (flags over file over defaults) and sets up logging.
func (a *app) prepare(cmd *cobra.Command, _ []string) error {
	s := config.DefaultSettings()
	if a.configPath != "" {
		var err error
		if s, err = config.LoadSettings(a.configPath); err != nil {
			return err
		}
	}

	fl := cmd.Flags()
	if fl.Changed("np") {
		s.Participants = a.np
	}
	if fl.Changed("seed") {
		seed := a.seed
		s.Seed = &seed
	}
	if fl.Changed("deadline") {
		s.Deadline = a.deadline
	}
	if fl.Changed("sync") {
		s.Sync = a.sync
	}
	if fl.Changed("log-level") {
		s.LogLevel = a.logLevel
	}
	if fl.Changed("log-format") {
		s.LogFormat = a.logFormat
	}
	if err := s.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(s.LogLevel)
	if err != nil {
		return err
	}
	logging.Init(level, s.LogFormat, cmd.ErrOrStderr())
	a.settings = s
	return nil
}

// execute runs root and maps the outcome to a process exit code.
func execute(root *cobra.Command, stderr io.Writer) int {
	if err := root.Execute(); err != nil {
		var re *reportedError
		if !errors.As(err, &re) {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd(), os.Stderr))
}
