package comm_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"randomwalk/internal/comm"
)

func openController(t *testing.T, size int, opts ...comm.Option) *comm.RPCEndpoint {
	t.Helper()
	peers := make([]string, size)
	peers[0] = "127.0.0.1:0"
	ep, err := comm.OpenRPC(context.Background(), 0, peers, opts...)
	if err != nil {
		t.Fatalf("OpenRPC controller: %v", err)
	}
	t.Cleanup(func() { _ = ep.Close() })
	return ep
}

func walkerPeers(size int, controllerAddr string) []string {
	peers := make([]string, size)
	peers[0] = controllerAddr
	return peers
}

func TestRPC_WalkersReportToController(t *testing.T) {
	for _, synchronous := range []bool{false, true} {
		const size = 4
		ctrl := openController(t, size, comm.WithSynchronous(synchronous))
		if ctrl.Addr() == "" {
			t.Fatal("controller should listen")
		}
		ctx := context.Background()

		errCh := make(chan error, size-1)
		for r := 1; r < size; r++ {
			go func(rank int) {
				ep, err := comm.OpenRPC(ctx, rank, walkerPeers(size, ctrl.Addr()))
				if err != nil {
					errCh <- err
					return
				}
				defer ep.Close()
				errCh <- ep.Send(ctx, comm.ControllerRank, comm.ReportTag, int64(rank+100))
			}(r)
		}

		var sources []int
		for i := 0; i < size-1; i++ {
			msg, err := ctrl.Recv(ctx, comm.AnySource, comm.ReportTag)
			if err != nil {
				t.Fatalf("sync=%v Recv: %v", synchronous, err)
			}
			if msg.Payload != int64(msg.Source+100) {
				t.Errorf("sync=%v payload %d from rank %d", synchronous, msg.Payload, msg.Source)
			}
			sources = append(sources, msg.Source)
		}
		for i := 0; i < size-1; i++ {
			if err := <-errCh; err != nil {
				t.Errorf("sync=%v walker: %v", synchronous, err)
			}
		}
		sort.Ints(sources)
		if diff := cmp.Diff([]int{1, 2, 3}, sources); diff != "" {
			t.Errorf("sync=%v sources (-want +got):\n%s", synchronous, diff)
		}
	}
}

func TestRPC_DialWaitsForListener(t *testing.T) {
	// Walker opens first; the controller starts listening a little later.
	ctrl := openController(t, 2)
	addr := ctrl.Addr()
	_ = ctrl.Close()

	opened := make(chan error, 1)
	go func() {
		ep, err := comm.OpenRPC(context.Background(), 1, walkerPeers(2, addr))
		if err == nil {
			_ = ep.Close()
		}
		opened <- err
	}()

	time.Sleep(100 * time.Millisecond)
	peers := make([]string, 2)
	peers[0] = addr
	late, err := comm.OpenRPC(context.Background(), 0, peers)
	if err != nil {
		t.Skipf("port %s taken before relisten: %v", addr, err)
	}
	defer late.Close()

	select {
	case err := <-opened:
		if err != nil {
			t.Errorf("walker OpenRPC: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("walker never connected")
	}
}

func TestRPC_ConnectGivesUpWithContext(t *testing.T) {
	ctrl := openController(t, 2)
	addr := ctrl.Addr()
	_ = ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := comm.OpenRPC(ctx, 1, walkerPeers(2, addr)); err == nil {
		t.Error("expected connect error when nobody listens")
	}
}

func TestRPC_RecvWithoutAddressFails(t *testing.T) {
	ctrl := openController(t, 2)
	ep, err := comm.OpenRPC(context.Background(), 1, walkerPeers(2, ctrl.Addr()))
	if err != nil {
		t.Fatalf("OpenRPC: %v", err)
	}
	defer ep.Close()
	if _, err := ep.Recv(context.Background(), comm.AnySource, comm.ReportTag); err == nil {
		t.Error("Recv on a send-only rank should fail")
	}
}

func TestRPC_SendAfterCloseFails(t *testing.T) {
	ctrl := openController(t, 2)
	ep, err := comm.OpenRPC(context.Background(), 1, walkerPeers(2, ctrl.Addr()))
	if err != nil {
		t.Fatalf("OpenRPC: %v", err)
	}
	_ = ep.Close()
	if err := ep.Send(context.Background(), 0, comm.ReportTag, 1); err == nil {
		t.Error("Send after Close should fail")
	}
}
