// Package controller implements the rendezvous: rank 0 waits for one report
// from every walker, in whatever order they arrive, and then announces that
// all of them have finished.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"randomwalk/internal/comm"
	"randomwalk/internal/logging"
)

// ErrIncompleteRendezvous is matched by errors.Is when a deadline expires
// before every walker has reported.
var ErrIncompleteRendezvous = errors.New("incomplete rendezvous")

// IncompleteError carries the counts at the moment the deadline expired.
type IncompleteError struct {
	Expected int
	Received int
	Err      error
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete rendezvous: received %d of %d reports: %v", e.Received, e.Expected, e.Err)
}

func (e *IncompleteError) Is(target error) bool { return target == ErrIncompleteRendezvous }

func (e *IncompleteError) Unwrap() error { return e.Err }

// Report is one received walker report.
type Report struct {
	Source int
	Steps  int64
}

// Summary is the outcome of a completed rendezvous.
type Summary struct {
	Expected int
	Received int
	Reports  []Report
}

// Options tune Wait. The zero value waits forever.
type Options struct {
	// Deadline, if positive, bounds the whole rendezvous.
	Deadline time.Duration
}

// Wait receives from any source on comm.ReportTag until Size()-1 reports
// have arrived. Only the count decides termination: a rank that reports
// twice is counted twice and logged, not rejected.
func Wait(ctx context.Context, c comm.Comm, opts Options) (Summary, error) {
	log := logging.ForRank(logging.New("controller"), c.Rank())

	expected := c.Size() - 1
	if expected < 0 {
		expected = 0
	}
	s := Summary{Expected: expected, Reports: make([]Report, 0, expected)}

	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	seen := make(map[int]int, expected)
	for s.Received < expected {
		msg, err := c.Recv(ctx, comm.AnySource, comm.ReportTag)
		if err != nil {
			if opts.Deadline > 0 && errors.Is(err, context.DeadlineExceeded) {
				return s, &IncompleteError{Expected: expected, Received: s.Received, Err: err}
			}
			return s, fmt.Errorf("controller: receive report %d of %d: %w", s.Received+1, expected, err)
		}
		s.Received++
		s.Reports = append(s.Reports, Report{Source: msg.Source, Steps: msg.Payload})
		seen[msg.Source]++
		if seen[msg.Source] > 1 {
			log.Warn("duplicate report", slog.Int("source", msg.Source), slog.Int("count", seen[msg.Source]))
		}
		log.Debug("report received",
			slog.Int("source", msg.Source),
			slog.Int64("steps", msg.Payload),
			slog.Int("received", s.Received),
			slog.Int("expected", expected),
		)
	}
	log.Debug("rendezvous complete", slog.Int("walkers", expected))
	return s, nil
}

// Run waits for every walker and then prints the completion line to out.
func Run(ctx context.Context, c comm.Comm, opts Options, out io.Writer) (Summary, error) {
	s, err := Wait(ctx, c, opts)
	if err != nil {
		return s, err
	}
	fmt.Fprintf(out, "All %d walkers have finished\n", s.Expected)
	return s, nil
}
