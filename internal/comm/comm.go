// Package comm is the point-to-point messaging substrate participants use
// to talk to each other. A Comm is one participant's view of the group: its
// own rank, the group size, and addressed send/receive of tagged integer
// payloads. Two transports implement it: an in-memory Hub for goroutine
// groups and an RPC endpoint for process groups.
package comm

import (
	"context"
	"errors"
	"fmt"
)

const (
	// AnySource matches a message from any sender in Recv.
	AnySource = -1
	// ControllerRank is the rank that collects walker reports.
	ControllerRank = 0
	// ReportTag labels walker report messages.
	ReportTag = 0
)

// ErrClosed is returned by operations on a closed endpoint or mailbox.
var ErrClosed = errors.New("comm: closed")

// Message is one delivered payload together with its sender and tag.
type Message struct {
	Source  int
	Tag     int
	Payload int64
}

// Comm is a participant's handle on the group.
type Comm interface {
	// Rank is this participant's zero-based identity.
	Rank() int
	// Size is the number of participants in the group.
	Size() int
	// Send delivers payload to dest under tag. Depending on the transport
	// it returns once the message is queued or once it has been received.
	Send(ctx context.Context, dest, tag int, payload int64) error
	// Recv blocks until a message from source (or AnySource) with tag is
	// available, or ctx ends.
	Recv(ctx context.Context, source, tag int) (Message, error)
	Close() error
}

// RankError reports an address outside [0, size).
type RankError struct {
	Rank int
	Size int
}

func (e *RankError) Error() string {
	return fmt.Sprintf("comm: rank %d out of range [0, %d)", e.Rank, e.Size)
}

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return &RankError{Rank: rank, Size: size}
	}
	return nil
}
