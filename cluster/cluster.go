// Package cluster carries the static rank-to-address table a
// nettransport.Channel dials against. The topology is entirely static
// — no failure detection, no gossip protocol — because distributed
// termination detection (the Director's periodic barrier/allreduce)
// is the only cluster-wide liveness concept the runtime core needs;
// rank availability is the caller's deployment concern.
package cluster

import (
	"fmt"
	"net"
	"sync"

	"github.com/nodecast/actorrt/config"
)

// EventType names what changed about a rank's entry in a Topology.
type EventType int

const (
	RankJoined EventType = iota
	RankLeft
)

// String returns the human-readable form of an EventType.
func (e EventType) String() string {
	switch e {
	case RankJoined:
		return "joined"
	case RankLeft:
		return "left"
	default:
		return "unknown"
	}
}

// Event is emitted by Topology.Watch whenever a rank's address is
// added or removed. Purely observational: the Director never blocks
// on it and nothing in core consumes it.
type Event struct {
	Type    EventType
	Rank    int
	Address net.Addr
}

// Topology is a rank→address table for a fixed-size cluster, loaded
// once from config.ClusterConfig.Peers. It never runs failure
// detection; an address, once added, is assumed reachable until
// explicitly removed by Leave.
type Topology struct {
	size int

	mu   sync.RWMutex
	addr map[int]net.Addr

	watchersMu sync.Mutex
	watchers   []chan Event
}

// NewTopology creates an empty topology for a cluster of size ranks.
func NewTopology(size int) *Topology {
	return &Topology{size: size, addr: make(map[int]net.Addr)}
}

// Join records rank's address and emits RankJoined to any watchers.
func (t *Topology) Join(rank int, addr net.Addr) error {
	if rank < 0 || rank >= t.size {
		return fmt.Errorf("cluster: rank %d out of range [0,%d)", rank, t.size)
	}
	t.mu.Lock()
	t.addr[rank] = addr
	t.mu.Unlock()

	t.emit(Event{Type: RankJoined, Rank: rank, Address: addr})
	return nil
}

// Leave removes rank's address, if present, and emits RankLeft.
func (t *Topology) Leave(rank int) {
	t.mu.Lock()
	addr, ok := t.addr[rank]
	if ok {
		delete(t.addr, rank)
	}
	t.mu.Unlock()

	if ok {
		t.emit(Event{Type: RankLeft, Rank: rank, Address: addr})
	}
}

// Address returns rank's current address, or false if it has no
// entry (never joined, or already left).
func (t *Topology) Address(rank int) (net.Addr, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	addr, ok := t.addr[rank]
	return addr, ok
}

// Size is the cluster's fixed rank count.
func (t *Topology) Size() int { return t.size }

// Complete reports whether every rank in [0, Size) currently has an
// address — the precondition nettransport.Dial checks before
// attempting any connection (it fails rather than waits if unmet).
func (t *Topology) Complete() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.addr) == t.size
}

// Watch returns a channel of future Join/Leave events. The channel is
// never closed by Topology; callers that stop watching should simply
// stop reading from it.
func (t *Topology) Watch() <-chan Event {
	ch := make(chan Event, 16)
	t.watchersMu.Lock()
	t.watchers = append(t.watchers, ch)
	t.watchersMu.Unlock()
	return ch
}

func (t *Topology) emit(ev Event) {
	t.watchersMu.Lock()
	defer t.watchersMu.Unlock()
	for _, ch := range t.watchers {
		select {
		case ch <- ev:
		default:
			// A slow watcher drops events rather than blocking the
			// topology update that produced them.
		}
	}
}

// tcpAddr is a minimal net.Addr for addresses parsed from
// config.PeerAddr strings, since net.ResolveTCPAddr requires actually
// resolving the host, which callers may want to defer until dial time.
type tcpAddr struct{ s string }

func (a tcpAddr) Network() string { return "tcp" }
func (a tcpAddr) String() string  { return a.s }

// FromPeers builds a Topology from config.ClusterConfig's static
// peer list.
func FromPeers(cc config.ClusterConfig) (*Topology, error) {
	t := NewTopology(cc.Size)
	for _, p := range cc.Peers {
		if err := t.Join(p.Rank, tcpAddr{s: p.Address}); err != nil {
			return nil, err
		}
	}
	return t, nil
}
