package group

import (
	"context"
	"os"
	"time"

	"randomwalk/internal/logging"
)

// ParentPollInterval is how often WatchParent checks the parent PID.
var ParentPollInterval = 2 * time.Second

// WatchParent cancels the participant when its launcher goes away. A child
// of a dead launcher is re-parented, so a changed parent PID means nobody
// is left to collect its exit status or forward its output.
//
// The goroutine exits when ctx is cancelled or parent death is detected.
func WatchParent(ctx context.Context, cancelFn context.CancelFunc) {
	watchParent(ctx, cancelFn, os.Getppid)
}

func watchParent(ctx context.Context, cancelFn context.CancelFunc, getppid func() int) {
	ppid := getppid()
	interval := ParentPollInterval
	logger := logging.New("group")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
				if getppid() != ppid {
					logger.Warn("launcher exited, stopping participant", "parent_pid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
