package format

import (
	"fmt"
	"sort"
	"time"
)

// FmtDuration formats a duration as "Xm Ys", "Ys" or, below a second, "Nms".
func FmtDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// WalkRow is one walker's line in the summary table.
type WalkRow struct {
	Rank     int
	Steps    int
	Position int
	Boundary bool
}

// Termination names how a walk ended.
func (r WalkRow) Termination() string {
	if r.Boundary {
		return "boundary"
	}
	return "exhausted"
}

// WalkSummary renders one row per walker, ordered by rank, with the
// controller's received/expected count and the elapsed time in the footer.
func WalkSummary(m Mode, rows []WalkRow, received, expected int, elapsed time.Duration) string {
	sorted := append([]WalkRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	tb := NewTable(m)
	tb.Header("Rank", "Steps", "Position", "Ended")
	tb.Columns(
		ColumnConfig{Number: 1, Align: AlignRight},
		ColumnConfig{Number: 2, Align: AlignRight},
		ColumnConfig{Number: 3, Align: AlignRight},
	)
	total := 0
	for _, r := range sorted {
		tb.Row(r.Rank, r.Steps, r.Position, r.Termination())
		total += r.Steps
	}
	tb.Footer("Total", total, fmt.Sprintf("%d/%d reports", received, expected), FmtDuration(elapsed))
	return tb.String()
}
