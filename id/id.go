// Package id provides cluster-unique actor identifiers.
package id

import "fmt"

// Id names an actor: the rank that owns it and a gid unique across the
// whole cluster. Ids are values — cheap to copy, never owned.
type Id struct {
	Rank int
	Gid  int
}

// None is the id used to mean "no actor".
var None = Id{Rank: -1, Gid: -1}

// IsNone reports whether id is the None sentinel.
func (i Id) IsNone() bool {
	return i == None
}

// String renders an id as "rank:gid", or "none" for None.
func (i Id) String() string {
	if i.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%d:%d", i.Rank, i.Gid)
}

// Minter mints gids unique across the cluster. The minting rule: the
// first mint on a rank returns that rank's own rank number; every
// subsequent mint advances by the cluster size. This guarantees
// gid mod size == minting_rank, so no two ranks can ever collide.
//
// A Minter is process-wide state, initialised once at construction
// with the rank and size it will mint against.
type Minter struct {
	rank int
	size int
	next int
}

// NewMinter creates a Minter for a process that sees itself as rank
// among size total ranks.
func NewMinter(rank, size int) *Minter {
	return &Minter{rank: rank, size: size, next: rank}
}

// Next mints the next gid for this rank.
func (m *Minter) Next() int {
	gid := m.next
	m.next += m.size
	return gid
}
