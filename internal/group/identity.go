// Package group forms the participant group: it assigns ranks, builds the
// transport each participant talks over, and starts the participants,
// either as goroutines in this process or as child processes.
package group

import (
	"fmt"
	"strconv"
	"strings"
)

// Environment variables a launcher sets for each child participant.
const (
	EnvRank  = "RANDOMWALK_RANK"
	EnvSize  = "RANDOMWALK_SIZE"
	EnvPeers = "RANDOMWALK_PEERS"
)

// Identity is what bootstrap tells a participant about itself.
type Identity struct {
	Rank  int
	Size  int
	Peers []string // one address per rank; "" for ranks that only send
}

// IdentityFromEnv reads the identity a launcher placed in the environment.
func IdentityFromEnv(getenv func(string) string) (Identity, error) {
	size, err := envInt(getenv, EnvSize)
	if err != nil {
		return Identity{}, err
	}
	if size < 1 {
		return Identity{}, fmt.Errorf("%s must be at least 1, got %d", EnvSize, size)
	}
	rank, err := envInt(getenv, EnvRank)
	if err != nil {
		return Identity{}, err
	}
	if rank < 0 || rank >= size {
		return Identity{}, fmt.Errorf("%s %d out of range [0, %d)", EnvRank, rank, size)
	}
	raw, ok := lookup(getenv, EnvPeers)
	if !ok {
		return Identity{}, fmt.Errorf("%s is not set", EnvPeers)
	}
	peers := strings.Split(raw, ",")
	if len(peers) != size {
		return Identity{}, fmt.Errorf("%s lists %d peers, group size is %d", EnvPeers, len(peers), size)
	}
	return Identity{Rank: rank, Size: size, Peers: peers}, nil
}

// Environ renders id as KEY=value pairs for a child process.
func (id Identity) Environ() []string {
	return []string{
		EnvRank + "=" + strconv.Itoa(id.Rank),
		EnvSize + "=" + strconv.Itoa(id.Size),
		EnvPeers + "=" + strings.Join(id.Peers, ","),
	}
}

func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	return v, v != ""
}

func envInt(getenv func(string) string, key string) (int, error) {
	raw, ok := lookup(getenv, key)
	if !ok {
		return 0, fmt.Errorf("%s is not set", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return n, nil
}
