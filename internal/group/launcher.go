package group

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"

	"randomwalk/internal/logging"
)

// Launcher starts a group as Size child processes of Executable, one per
// rank. Rank 0 gets a loopback address to serve its mailbox on; the other
// ranks only send. Each child runs "<Executable> rank <Args...>".
type Launcher struct {
	Executable string
	Size       int
	Args       []string
	Stdout     io.Writer
	Stderr     io.Writer
	// Host is the interface rank 0 listens on; empty means 127.0.0.1.
	Host string
}

// ChildError reports a participant process that did not exit cleanly.
type ChildError struct {
	Rank int
	Err  error
}

func (e *ChildError) Error() string {
	return fmt.Sprintf("rank %d: %v", e.Rank, e.Err)
}

func (e *ChildError) Unwrap() error { return e.Err }

// ExitCode returns the child's exit status, or -1 if it did not exit normally.
func (e *ChildError) ExitCode() int {
	var ee *exec.ExitError
	if errors.As(e.Err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// Run starts every participant and waits for all of them. It returns the
// first ChildError; the remaining children still run to completion unless
// ctx is cancelled.
func (l *Launcher) Run(ctx context.Context) error {
	if l.Size < 1 {
		return fmt.Errorf("group size must be at least 1, got %d", l.Size)
	}
	exe := l.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
	}
	host := l.Host
	if host == "" {
		host = "127.0.0.1"
	}
	addr, err := FreeAddr(host)
	if err != nil {
		return err
	}
	peers := make([]string, l.Size)
	peers[0] = addr

	stdout := writerOr(l.Stdout, os.Stdout)
	stderr := writerOr(l.Stderr, os.Stderr)
	logger := logging.New("launcher")
	logger.Debug("launching group", "size", l.Size, "controller_addr", addr, "exe", exe)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	for r := 0; r < l.Size; r++ {
		id := Identity{Rank: r, Size: l.Size, Peers: peers}
		cmd := exec.CommandContext(ctx, exe, append([]string{"rank"}, l.Args...)...)
		cmd.Env = append(os.Environ(), id.Environ()...)
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if err := cmd.Start(); err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("start rank %d: %w", r, err)
		}
		g.Go(func() error {
			if err := cmd.Wait(); err != nil {
				logger.Debug("participant failed", "rank", id.Rank, "error", err)
				return &ChildError{Rank: id.Rank, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// FreeAddr asks the kernel for an unused TCP port on host.
func FreeAddr(host string) (string, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return "", fmt.Errorf("pick controller address: %w", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		return "", fmt.Errorf("pick controller address: %w", err)
	}
	return addr, nil
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		w = fallback
	}
	return NewLockedWriter(w)
}
