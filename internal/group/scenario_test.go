package group_test

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"randomwalk/internal/comm"
	"randomwalk/internal/config"
	"randomwalk/internal/group"
	"randomwalk/internal/role"
)

var walkerLine = regexp.MustCompile(`^Rank (\d+): Walker finished in (\d+)\.$`)

type runResult struct {
	lines []string
	steps map[int]int
	err   error
}

func runGroup(size int, cfg config.WalkConfig, seed *uint64, opts ...comm.Option) runResult {
	var buf bytes.Buffer
	out := group.NewLockedWriter(&buf)
	var mu sync.Mutex
	steps := map[int]int{}

	err := group.RunLocal(context.Background(), size, func(ctx context.Context, c comm.Comm) error {
		res, err := role.Dispatch(ctx, c, cfg, role.Options{Seed: seed, Out: out})
		if err == nil && res.Walk != nil {
			mu.Lock()
			steps[c.Rank()] = res.Walk.Steps
			mu.Unlock()
		}
		return err
	}, opts...)

	text := strings.TrimSuffix(buf.String(), "\n")
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	return runResult{lines: lines, steps: steps, err: err}
}

var _ = ginkgo.Describe("Random walk group", func() {
	cfg := config.WalkConfig{DomainSize: 5, MaxSteps: 1000}

	for _, synchronous := range []bool{false, true} {
		ginkgo.Context("sync="+strconv.FormatBool(synchronous), func() {
			ginkgo.It("prints one line per walker and one controller line", func() {
				r := runGroup(4, cfg, nil, comm.WithSynchronous(synchronous))
				gomega.Expect(r.err).To(gomega.Succeed())
				gomega.Expect(r.lines).To(gomega.HaveLen(4))

				// Walkers print after their send, so the controller line
				// may land anywhere among them.
				ranks := map[int]bool{}
				controllerLines := 0
				for _, line := range r.lines {
					if line == "All 3 walkers have finished" {
						controllerLines++
						continue
					}
					m := walkerLine.FindStringSubmatch(line)
					gomega.Expect(m).NotTo(gomega.BeNil(), "unexpected line %q", line)
					rank, _ := strconv.Atoi(m[1])
					n, _ := strconv.Atoi(m[2])
					gomega.Expect(n).To(gomega.BeNumerically(">=", 1))
					gomega.Expect(n).To(gomega.BeNumerically("<=", 1000))
					gomega.Expect(r.steps[rank]).To(gomega.Equal(n))
					ranks[rank] = true
				}
				gomega.Expect(ranks).To(gomega.Equal(map[int]bool{1: true, 2: true, 3: true}))
				gomega.Expect(controllerLines).To(gomega.Equal(1))
			})
		})
	}

	ginkgo.It("completes immediately with no walkers", func() {
		r := runGroup(1, cfg, nil)
		gomega.Expect(r.err).To(gomega.Succeed())
		gomega.Expect(r.lines).To(gomega.Equal([]string{"All 0 walkers have finished"}))
	})

	ginkgo.It("reports zero steps for a zero budget", func() {
		r := runGroup(3, config.WalkConfig{DomainSize: 5, MaxSteps: 0}, nil)
		gomega.Expect(r.err).To(gomega.Succeed())
		gomega.Expect(r.steps).To(gomega.Equal(map[int]int{1: 0, 2: 0}))
	})

	ginkgo.It("reproduces per-rank step counts under a fixed seed", func() {
		seed := uint64(2024)
		first := runGroup(6, cfg, &seed)
		second := runGroup(6, cfg, &seed)
		gomega.Expect(first.err).To(gomega.Succeed())
		gomega.Expect(second.err).To(gomega.Succeed())
		gomega.Expect(first.steps).To(gomega.HaveLen(5))
		gomega.Expect(second.steps).To(gomega.Equal(first.steps))
	})
})
