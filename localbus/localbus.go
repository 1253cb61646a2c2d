// Package localbus is an in-process implementation of transport.Channel.
// It multiplexes simulated ranks as goroutines communicating over
// mutex-guarded queues rather than real sockets — exactly the "in-process
// channel stub for tests" transport.Channel's doc comment calls for. It
// preserves the same per-(source, dest, tag) FIFO ordering, the same
// buffered-send/non-blocking-probe/blocking-recv shape, and the same
// barrier/allreduce collectives that a real MPI-backed implementation
// would, so code written against transport.Channel cannot tell the
// difference except for speed.
package localbus

import (
	"fmt"
	"sync"

	"github.com/nodecast/actorrt/transport"
)

// entry is one buffered message sitting in a destination rank's inbox.
type entry struct {
	source int
	tag    int
	data   []byte
}

// state is one logical channel shared by every rank's handle to it. A
// Cluster's base channel is one state; each Dup() collectively produces
// a new, independent state.
type state struct {
	size           int
	bufferCapacity int

	mu       sync.Mutex
	cond     *sync.Cond
	inboxes  [][]entry
	buffered int // total bytes currently buffered, across all inboxes

	// Dup bookkeeping: the Nth Dup() call (symmetric, one per rank, in
	// the same program order on every rank) maps to the Nth child.
	dupCalls []int // per rank: how many Dup() calls that rank has made
	children map[int]*state

	// Barrier rendezvous.
	barrierCount int
	barrierGen   int

	// Allreduce rendezvous.
	reduceCount int
	reduceGen   int
	reduceSum   int
	lastTotal   int
}

func newState(size, bufferCapacity int) *state {
	s := &state{
		size:           size,
		bufferCapacity: bufferCapacity,
		inboxes:        make([][]entry, size),
		dupCalls:       make([]int, size),
		children:       make(map[int]*state),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Cluster holds size in-process ranks sharing one base channel.
type Cluster struct {
	size  int
	root  *state
	chans []*Channel
}

// NewCluster builds size simulated ranks, each with a handle to the
// shared base channel. bufferCapacity bounds the total bytes any one
// logical channel may have buffered at once, mirroring an MPI buffer
// attached once per process.
func NewCluster(size, bufferCapacity int) *Cluster {
	root := newState(size, bufferCapacity)
	c := &Cluster{size: size, root: root}
	c.chans = make([]*Channel, size)
	for r := 0; r < size; r++ {
		c.chans[r] = &Channel{rank: r, state: root}
	}
	return c
}

// Channel returns rank's handle onto the cluster's base channel.
func (c *Cluster) Channel(rank int) transport.Channel {
	return c.chans[rank]
}

// Channel is one rank's handle onto a logical channel.
type Channel struct {
	rank  int
	state *state
}

var _ transport.Channel = (*Channel)(nil)

func (ch *Channel) Rank() int { return ch.rank }
func (ch *Channel) Size() int { return ch.state.size }

// Dup collectively produces a new, independent logical channel. Every
// rank must call Dup the same number of times, in the same order,
// for the implicit round-grouping to pair up calls correctly — exactly
// the discipline the real MPI_Comm_dup collective requires anyway.
func (ch *Channel) Dup() (transport.Channel, error) {
	st := ch.state
	st.mu.Lock()
	idx := st.dupCalls[ch.rank]
	st.dupCalls[ch.rank]++
	child, ok := st.children[idx]
	if !ok {
		child = newState(st.size, st.bufferCapacity)
		st.children[idx] = child
	}
	st.mu.Unlock()

	return &Channel{rank: ch.rank, state: child}, nil
}

func (ch *Channel) BufferedSend(dest, tag int, data []byte) error {
	st := ch.state
	if dest < 0 || dest >= st.size {
		return fmt.Errorf("localbus: dest rank %d out of range [0,%d): %w", dest, st.size, transport.ErrTransportUnavailable)
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.bufferCapacity > 0 && st.buffered+len(buf) > st.bufferCapacity {
		return transport.ErrCapacityExceeded
	}

	st.inboxes[dest] = append(st.inboxes[dest], entry{source: ch.rank, tag: tag, data: buf})
	st.buffered += len(buf)
	st.cond.Broadcast()

	return nil
}

// matches finds the index of the first entry in inbox matching the
// source/tag filter, or -1.
func matches(inbox []entry, source, tag int) int {
	for i, e := range inbox {
		if (source == transport.AnySource || e.source == source) &&
			(tag == transport.AnyTag || e.tag == tag) {
			return i
		}
	}
	return -1
}

func (ch *Channel) Iprobe(source, tag int) (transport.ProbeResult, error) {
	st := ch.state
	st.mu.Lock()
	defer st.mu.Unlock()

	idx := matches(st.inboxes[ch.rank], source, tag)
	if idx < 0 {
		return transport.ProbeResult{Waiting: false}, nil
	}

	e := st.inboxes[ch.rank][idx]
	return transport.ProbeResult{Waiting: true, Source: e.source, Tag: e.tag, ByteCount: len(e.data)}, nil
}

func (ch *Channel) Probe(source, tag int) (transport.ProbeResult, error) {
	st := ch.state
	st.mu.Lock()
	defer st.mu.Unlock()

	for {
		idx := matches(st.inboxes[ch.rank], source, tag)
		if idx >= 0 {
			e := st.inboxes[ch.rank][idx]
			return transport.ProbeResult{Waiting: true, Source: e.source, Tag: e.tag, ByteCount: len(e.data)}, nil
		}
		st.cond.Wait()
	}
}

func (ch *Channel) Recv(source, tag int, buf []byte) error {
	st := ch.state
	st.mu.Lock()
	defer st.mu.Unlock()

	for {
		idx := matches(st.inboxes[ch.rank], source, tag)
		if idx >= 0 {
			e := st.inboxes[ch.rank][idx]
			if len(buf) < len(e.data) {
				return fmt.Errorf("localbus: recv buffer too small (%d < %d)", len(buf), len(e.data))
			}
			copy(buf, e.data)
			st.buffered -= len(e.data)
			st.inboxes[ch.rank] = append(st.inboxes[ch.rank][:idx], st.inboxes[ch.rank][idx+1:]...)
			return nil
		}
		st.cond.Wait()
	}
}

func (ch *Channel) Barrier() error {
	st := ch.state
	st.mu.Lock()
	defer st.mu.Unlock()

	gen := st.barrierGen
	st.barrierCount++
	if st.barrierCount == st.size {
		st.barrierCount = 0
		st.barrierGen++
		st.cond.Broadcast()
		return nil
	}

	for st.barrierGen == gen {
		st.cond.Wait()
	}
	return nil
}

func (ch *Channel) AllreduceSum(value int) (int, error) {
	st := ch.state
	st.mu.Lock()
	defer st.mu.Unlock()

	gen := st.reduceGen
	st.reduceSum += value
	st.reduceCount++

	if st.reduceCount == st.size {
		st.lastTotal = st.reduceSum
		st.reduceSum = 0
		st.reduceCount = 0
		st.reduceGen++
		st.cond.Broadcast()
		return st.lastTotal, nil
	}

	for st.reduceGen == gen {
		st.cond.Wait()
	}
	return st.lastTotal, nil
}

func (ch *Channel) Close() error {
	return nil
}
