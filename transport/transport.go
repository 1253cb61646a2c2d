// Package transport defines the abstract tagged-message transport that
// the rest of the runtime is built on. It models the slice of MPI the
// runtime depends on: process ranks, buffered asynchronous send,
// non-blocking probe, blocking probe/recv, and two collectives
// (barrier, sum-allreduce). Implementations exist for an in-process
// stub (package localbus) and for real TCP sockets (package
// nettransport); the core packages never import either directly.
package transport

import "errors"

// AnySource and AnyTag widen a probe/recv filter to match any source
// rank or any tag, mirroring MPI_ANY_SOURCE / MPI_ANY_TAG.
const (
	AnySource = -1
	AnyTag    = -1
)

// ErrTransportUnavailable is returned when a channel operation fails
// because the underlying transport has gone away (peer closed, socket
// reset, and so on). It is fatal to the Director that observes it.
var ErrTransportUnavailable = errors.New("transport: unavailable")

// ErrCapacityExceeded is returned when a buffered send is refused
// because the transport's send buffer has no room left. It is fatal
// to the Director that observes it.
var ErrCapacityExceeded = errors.New("transport: buffer capacity exceeded")

// ProbeResult reports what a non-blocking probe observed.
type ProbeResult struct {
	Waiting   bool
	Source    int
	Tag       int
	ByteCount int
}

// Channel is one logical, tag-addressed communication namespace over
// the cluster. The runtime duplicates a single base Channel three
// times (actor, director, factory) so that traffic on each concern
// never collides with another.
type Channel interface {
	// Rank returns this process's rank within the channel.
	Rank() int

	// Size returns the number of ranks participating in the channel.
	Size() int

	// Dup produces a new, independent logical channel over the same
	// underlying transport. Collective: every rank must call it.
	Dup() (Channel, error)

	// BufferedSend buffers data for asynchronous delivery to dest on
	// tag and returns once the copy into the send buffer completes,
	// without waiting for the peer to receive it. Per-(source, dest,
	// tag) FIFO order is preserved.
	BufferedSend(dest, tag int, data []byte) error

	// Iprobe is a non-blocking check for a waiting message matching
	// source (or AnySource) and tag (or AnyTag).
	Iprobe(source, tag int) (ProbeResult, error)

	// Probe blocks until a message matching source/tag is available
	// and reports where it's from without consuming it.
	Probe(source, tag int) (ProbeResult, error)

	// Recv blocks until a message matching source/tag is available and
	// copies it into buf, which must be at least as large as the
	// message (use Probe/Iprobe's ByteCount to size it).
	Recv(source, tag int, buf []byte) error

	// Barrier blocks until every rank on this channel has called it.
	Barrier() error

	// AllreduceSum sums value across every rank on this channel and
	// returns the total to every rank.
	AllreduceSum(value int) (int, error)

	// Close releases the channel's resources. It does not drain
	// outstanding messages — callers that need that do it explicitly
	// before Close, the way Director's shutdown does.
	Close() error
}
