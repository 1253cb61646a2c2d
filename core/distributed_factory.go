package core

import (
	"sync"

	"github.com/nodecast/actorrt/id"
	"github.com/nodecast/actorrt/msgchannel"
	"github.com/nodecast/actorrt/status"
	"github.com/nodecast/actorrt/transport"
)

// birthRequestTag is the transport tag every spawn request travels on
// over the factory channel, distinct from every actor's own gid (the
// tag actor messages use) and from the director channel's endTag.
const birthRequestTag = 1

// spawnRequest is the three-int wire record a birth request carries:
// which class to construct, and the Id to stamp it with.
type spawnRequest struct {
	ClassIndex int32
	TargetRank int32
	AssignedID int32
}

// DistributedFactory wraps a Factory with cross-rank placement: it
// decides which rank a new actor lands on, mints its Id, and carries
// the birth request to that rank over a dedicated channel.
type DistributedFactory struct {
	factory *Factory
	ch      transport.Channel
	minter  *id.Minter

	mu     sync.Mutex
	cursor int
	size   int
}

// NewDistributedFactory duplicates base once for exclusive use as the
// factory channel and sets up round-robin placement starting at this
// process's own rank.
func NewDistributedFactory(base transport.Channel) (*DistributedFactory, error) {
	ch, err := base.Dup()
	if err != nil {
		return nil, err
	}
	return &DistributedFactory{
		factory: NewFactory(),
		ch:      ch,
		minter:  id.NewMinter(ch.Rank(), ch.Size()),
		cursor:  ch.Rank(),
		size:    ch.Size(),
	}, nil
}

func (df *DistributedFactory) classFactory() *Factory { return df.factory }

// NewId picks a target rank — preferredRank if non-negative, otherwise
// the next rank in round-robin order — and mints a gid for it. The gid
// always comes from this process's own Minter, whatever the target
// rank, so it satisfies gid mod size == this process's rank and stays
// unique cluster-wide; RequestSpawn uses NewId the same way and ships
// the minted gid to the target rank in the birth request.
func (df *DistributedFactory) NewId(preferredRank int) id.Id {
	df.mu.Lock()
	defer df.mu.Unlock()

	rank := preferredRank
	if rank < 0 {
		rank = df.cursor
		df.cursor = (df.cursor + 1) % df.size
	}
	return id.Id{Rank: rank, Gid: df.minter.Next()}
}

// RequestSpawn computes the child's Id and sends its birth request to
// the target rank over the factory channel, returning the Id
// immediately — it is safe to address before the child exists because
// the birth request and any later message to the child both travel in
// transport FIFO order.
func RequestSpawn[T any, PT interface {
	*T
	Actor
}](df *DistributedFactory, preferredRank int) (id.Id, error) {
	classIdx, err := getClassIndex[T](df.factory)
	if err != nil {
		return id.None, err
	}

	target := df.NewId(preferredRank)

	req := spawnRequest{
		ClassIndex: int32(classIdx),
		TargetRank: int32(target.Rank),
		AssignedID: int32(target.Gid),
	}
	if err := msgchannel.SendValue(df.ch, target.Rank, birthRequestTag, req); err != nil {
		return id.None, err
	}
	return target, nil
}

// HasPending reports whether a birth request is waiting on the
// factory channel, without consuming it.
func (df *DistributedFactory) HasPending() (bool, error) {
	p, err := status.Check(df.ch, transport.AnySource, birthRequestTag)
	if err != nil {
		return false, err
	}
	return p.Waiting(), nil
}

// SpawnedChild is what NextSpawn hands back: the constructed-but-not-
// yet-scheduled actor and the Id it was stamped with.
type SpawnedChild struct {
	Actor Actor
	Id    id.Id
}

// NextSpawn consumes one pending birth request, if any, constructs the
// named class and returns it together with the delivered Id, but does
// NOT initialize it — the caller (Director) stamps the Id and the
// channels, since only it knows which actor channel the new actor
// should use.
func (df *DistributedFactory) NextSpawn() (SpawnedChild, bool, error) {
	pending, err := df.HasPending()
	if err != nil || !pending {
		return SpawnedChild{}, false, err
	}

	var req spawnRequest
	var msg msgchannel.Message
	ok, err := msg.Receive(df.ch, transport.AnySource, birthRequestTag)
	if err != nil || !ok {
		return SpawnedChild{}, false, err
	}
	req = msgchannel.Data[spawnRequest](&msg)

	actor, err := df.factory.CreateFromIndex(int(req.ClassIndex))
	if err != nil {
		return SpawnedChild{}, false, err
	}

	childID := id.Id{Rank: int(req.TargetRank), Gid: int(req.AssignedID)}
	return SpawnedChild{Actor: actor, Id: childID}, true, nil
}

// Drain discards every pending birth request without constructing the
// actor it names — their predicted Ids are already unreachable once
// shutdown starts, so there is nothing left to stamp them onto.
func (df *DistributedFactory) Drain() error {
	for {
		pending, err := df.HasPending()
		if err != nil {
			return err
		}
		if !pending {
			return nil
		}
		var msg msgchannel.Message
		if _, err := msg.Receive(df.ch, transport.AnySource, birthRequestTag); err != nil {
			return err
		}
	}
}

// Close releases the factory channel.
func (df *DistributedFactory) Close() error {
	return df.ch.Close()
}
