package core

import (
	"github.com/nodecast/actorrt/compound"
	"github.com/nodecast/actorrt/id"
	"github.com/nodecast/actorrt/transport"
)

// Actor is the capability set every user actor exposes to the
// Director. The runtime treats every actor as this opaque interface;
// user actor types satisfy it by embedding Base and defining Step.
//
// initialize is unexported: only this package ever calls it (Director
// and DistributedFactory, right after construction), yet it must be
// part of the interface so the scheduler can invoke it through an
// Actor value regardless of which package defines the concrete type —
// the same embedding trick testing.TB uses for its private method.
type Actor interface {
	// Step is the only user-defined behaviour; the Director calls it
	// repeatedly until the actor marks itself dead. Step must not
	// block, must drain any messages it wants to handle via Receive,
	// and may Send, Spawn or Die. It must never call transport
	// directly and must never communicate from a constructor.
	Step()

	// IsDead reports whether Die has been called.
	IsDead() bool

	// Id returns this actor's cluster-wide identifier.
	Id() id.Id

	initialize(self id.Id, actorCh transport.Channel, factory *DistributedFactory)
}

// Base is embedded by every user actor type. It carries the actor's
// identity, its channel, a reference to the distributed factory for
// spawning children, and its death flag, all exposed as promoted
// methods.
type Base struct {
	self    id.Id
	actorCh transport.Channel
	factory *DistributedFactory
	dead    bool
}

func (b *Base) initialize(self id.Id, actorCh transport.Channel, factory *DistributedFactory) {
	b.self = self
	b.actorCh = actorCh
	b.factory = factory
}

// Id returns this actor's identifier.
func (b *Base) Id() id.Id { return b.self }

// IsDead reports whether Die has been called. Idempotent: calling Die
// more than once has the same effect as calling it once.
func (b *Base) IsDead() bool { return b.dead }

// Die marks this actor dead. The scheduler reclaims it on the next
// pop; it is never scheduled again.
func (b *Base) Die() { b.dead = true }

// ActorMessage is what Receive fills in: a received compound message
// with actor-specific accessors (Sender, Tag) layered over the
// transport-level ones compound.Message exposes.
type ActorMessage struct {
	compound.Message
}

// Sender is the id of the actor that sent this message.
func (m *ActorMessage) Sender() id.Id {
	meta := compound.Metadata[ActorMeta](&m.Message)
	return id.Id{Rank: int(meta.SenderRank), Gid: int(meta.SenderGid)}
}

// Tag is the application-level tag the sender attached — distinct
// from, and unrelated to, the transport tag used for addressing.
func (m *ActorMessage) Tag() int {
	meta := compound.Metadata[ActorMeta](&m.Message)
	return int(meta.UserTag)
}

// Data reinterprets the first sizeof(T) bytes of the message's payload
// as a T.
func Data[T any](m *ActorMessage) T {
	return compound.Data[T](&m.Message)
}

// DataInto copies count elements of T out of the message's payload
// into buf.
func DataInto[T any](m *ActorMessage, buf []T, count int) {
	compound.DataInto(&m.Message, buf, count)
}

// DataElementCount returns how many whole T elements the payload holds.
func DataElementCount[T any](m *ActorMessage) int {
	return compound.DataElementCount[T](&m.Message)
}

// Send assembles a compound message — metadata {sender: self, userTag}
// plus the data half — and buffers it to peer on transport tag
// peer.Gid, per the "receiver's tag is its own gid" addressing scheme.
func Send[T any](b *Base, peer id.Id, data []T, userTag int) error {
	meta := ActorMeta{
		SenderRank: int32(b.self.Rank),
		SenderGid:  int32(b.self.Gid),
		UserTag:    int32(userTag),
	}
	return compound.Send(b.actorCh, peer.Rank, peer.Gid, data, meta)
}

// SendValue sends a single T, equivalent to Send with a one-element slice.
func SendValue[T any](b *Base, peer id.Id, value T, userTag int) error {
	return Send(b, peer, []T{value}, userTag)
}

// Receive polls for a compound message addressed to this actor
// (source filter: any; transport-tag filter: this actor's own gid)
// and fills msg if one was waiting. It returns false, nil when
// nothing was available — not an error.
func (b *Base) Receive(msg *ActorMessage) (bool, error) {
	return msg.Message.Receive(b.actorCh, transport.AnySource, b.self.Gid)
}

// NewId mints an Id without spawning anything, for callers that want
// a unique cluster identifier without constructing an actor for it.
func NewId(b *Base, preferredRank int) id.Id {
	return b.factory.NewId(preferredRank)
}

// Spawn asks the distributed factory to place a new instance of T
// somewhere in the cluster and returns its id immediately — usable
// for addressing before the child exists, since the birth request and
// any message the parent now sends to the child travel the factory
// and actor channels respectively in FIFO order.
func Spawn[T any, PT interface {
	*T
	Actor
}](b *Base) (id.Id, error) {
	return RequestSpawn[T, PT](b.factory, -1)
}
