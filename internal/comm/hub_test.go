package comm_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"randomwalk/internal/comm"
)

func endpoints(t *testing.T, h *comm.Hub) []comm.Comm {
	t.Helper()
	eps := make([]comm.Comm, h.Size())
	for r := range eps {
		ep, err := h.Endpoint(r)
		if err != nil {
			t.Fatalf("Endpoint(%d): %v", r, err)
		}
		eps[r] = ep
	}
	return eps
}

func TestHub_ConcurrentSendersAnyOrder(t *testing.T) {
	for _, synchronous := range []bool{false, true} {
		h := comm.NewHub(6, comm.WithSynchronous(synchronous))
		eps := endpoints(t, h)
		ctx := context.Background()

		var wg sync.WaitGroup
		for r := 1; r < len(eps); r++ {
			wg.Add(1)
			go func(ep comm.Comm) {
				defer wg.Done()
				if err := ep.Send(ctx, comm.ControllerRank, comm.ReportTag, int64(ep.Rank()*10)); err != nil {
					t.Errorf("sync=%v rank %d Send: %v", synchronous, ep.Rank(), err)
				}
			}(eps[r])
		}

		var sources []int
		for i := 0; i < len(eps)-1; i++ {
			msg, err := eps[0].Recv(ctx, comm.AnySource, comm.ReportTag)
			if err != nil {
				t.Fatalf("sync=%v Recv: %v", synchronous, err)
			}
			if msg.Payload != int64(msg.Source*10) {
				t.Errorf("sync=%v payload %d from rank %d", synchronous, msg.Payload, msg.Source)
			}
			sources = append(sources, msg.Source)
		}
		wg.Wait()

		sort.Ints(sources)
		if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, sources); diff != "" {
			t.Errorf("sync=%v sources (-want +got):\n%s", synchronous, diff)
		}
		_ = h.Close()
	}
}

func TestHub_SynchronousSendBlocks(t *testing.T) {
	h := comm.NewHub(2, comm.WithSynchronous(true))
	eps := endpoints(t, h)
	ctx := context.Background()

	sent := make(chan error, 1)
	go func() { sent <- eps[1].Send(ctx, 0, comm.ReportTag, 1) }()

	select {
	case <-sent:
		t.Fatal("synchronous Send returned before a matching Recv")
	case <-time.After(30 * time.Millisecond):
	}

	if _, err := eps[0].Recv(ctx, comm.AnySource, comm.ReportTag); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-sent; err != nil {
		t.Errorf("Send: %v", err)
	}
}

func TestHub_BufferedSendReturnsImmediately(t *testing.T) {
	h := comm.NewHub(2)
	eps := endpoints(t, h)
	done := make(chan error, 1)
	go func() { done <- eps[1].Send(context.Background(), 0, comm.ReportTag, 1) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Send: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("buffered Send blocked without a receiver")
	}
}

func TestHub_RankBounds(t *testing.T) {
	h := comm.NewHub(2)
	if _, err := h.Endpoint(2); err == nil {
		t.Error("Endpoint(2) on size 2 should fail")
	}
	eps := endpoints(t, h)
	err := eps[1].Send(context.Background(), 5, comm.ReportTag, 1)
	var re *comm.RankError
	if !errors.As(err, &re) {
		t.Fatalf("Send to rank 5 err = %v, want *RankError", err)
	}
	if re.Rank != 5 || re.Size != 2 {
		t.Errorf("RankError = %+v", re)
	}
}

func TestHub_CloseUnblocksRecv(t *testing.T) {
	h := comm.NewHub(3)
	eps := endpoints(t, h)
	errCh := make(chan error, 1)
	go func() {
		_, err := eps[0].Recv(context.Background(), comm.AnySource, comm.ReportTag)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	_ = h.Close()
	if err := <-errCh; !errors.Is(err, comm.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
