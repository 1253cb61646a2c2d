package core

import (
	"sync/atomic"

	"github.com/nodecast/actorrt/msgchannel"
	"github.com/nodecast/actorrt/status"
	"github.com/nodecast/actorrt/transport"
)

// endTag is the transport tag an end signal travels on over the
// director channel, distinct from the factory channel's
// birthRequestTag and from any actor's own gid.
const endTag = 2

// queueEntry is one scheduled actor plus whether this Director owns
// its lifetime (true for spawned children, false for actors added via
// AddActor, which the caller keeps a reference to for inspection).
type queueEntry struct {
	actor  Actor
	owning bool
}

// Director is the per-rank cooperative scheduler: a FIFO of resident
// actors, run one step at a time, interleaved with servicing arriving
// spawn requests and periodically checking for global termination.
type Director struct {
	actorCh    transport.Channel
	directorCh transport.Channel
	factory    *DistributedFactory

	rank, size int
	tick       int
	ended      bool

	// syncInterval is read from the tick loop and written from
	// SetSyncInterval, which a config.Watcher's OnChange callback may
	// call concurrently with Run — hence atomic rather than a plain
	// int.
	syncInterval atomic.Int64

	queue []queueEntry
}

// NewDirector duplicates base three times — actor, director, and
// (via the DistributedFactory it builds) factory channels — so the
// three concerns never collide on a tag even though they ride the
// same underlying transport. A non-positive syncInterval disables the
// periodic global sync entirely; termination then only happens via
// End or a bounded Run.
func NewDirector(base transport.Channel, syncInterval int) (*Director, error) {
	actorCh, err := base.Dup()
	if err != nil {
		return nil, err
	}
	directorCh, err := base.Dup()
	if err != nil {
		return nil, err
	}
	factory, err := NewDistributedFactory(base)
	if err != nil {
		return nil, err
	}

	d := &Director{
		actorCh:    actorCh,
		directorCh: directorCh,
		factory:    factory,
		rank:       base.Rank(),
		size:       base.Size(),
	}
	d.syncInterval.Store(int64(syncInterval))
	return d, nil
}

// SetSyncInterval updates the periodic barrier/allreduce cadence the
// tick loop uses. Safe to call concurrently with Run — the intended
// caller is a config.Watcher's OnChange callback pushing a reloaded
// Runtime.SyncInterval into a running Director.
func (d *Director) SetSyncInterval(n int) {
	d.syncInterval.Store(int64(n))
}

func (d *Director) classFactory() *Factory { return d.factory.factory }

// IsRoot reports whether this Director runs on rank 0, the
// conventional place for driver code to create the initial actors.
func (d *Director) IsRoot() bool { return d.rank == 0 }

// AddActor constructs T locally — not via the spawn protocol — mints
// it an Id on this rank, and enqueues it without ownership: the
// caller keeps PT and is responsible only for inspecting it, never
// for releasing it, since a non-owning entry is simply dropped from
// the queue on death rather than freed.
func AddActor[T any, PT interface {
	*T
	Actor
}](d *Director) PT {
	childID := d.factory.NewId(d.rank)
	actor := PT(new(T))
	actor.initialize(childID, d.actorCh, d.factory)
	d.queue = append(d.queue, queueEntry{actor: actor, owning: false})
	return actor
}

// LocalLoad is the number of actors currently queued on this rank.
func (d *Director) LocalLoad() int { return len(d.queue) }

// GlobalLoad all-reduce-sums LocalLoad across every rank on the
// director channel.
func (d *Director) GlobalLoad() (int, error) {
	return d.directorCh.AllreduceSum(d.LocalLoad())
}

// End broadcasts a one-int end signal to every rank, including this
// one, on the director channel. Every rank's current or next Run call
// observes it and returns.
func (d *Director) End() error {
	for r := 0; r < d.size; r++ {
		if err := msgchannel.SendValue(d.directorCh, r, endTag, int32(1)); err != nil {
			return err
		}
	}
	return nil
}

// servicePendingSpawns drains every birth request currently waiting
// on the factory channel, constructing and enqueuing each as an
// owning entry — the Director itself must release it on death.
func (d *Director) servicePendingSpawns() error {
	for {
		spawned, ok, err := d.factory.NextSpawn()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		spawned.Actor.initialize(spawned.Id, d.actorCh, d.factory)
		d.queue = append(d.queue, queueEntry{actor: spawned.Actor, owning: true})
	}
}

// pollEndSignal non-blockingly checks for an end signal addressed to
// this rank and, if one is waiting, consumes it and sets ended.
func (d *Director) pollEndSignal() error {
	p, err := status.Check(d.directorCh, transport.AnySource, endTag)
	if err != nil {
		return err
	}
	if !p.Waiting() {
		return nil
	}
	var msg msgchannel.Message
	ok, err := msg.Receive(d.directorCh, transport.AnySource, endTag)
	if err != nil || !ok {
		return err
	}
	d.ended = true
	return nil
}

// sync is the periodic collective check: barrier so every rank enters
// together, reservice spawns so in-flight births are counted in the
// load that follows, then all-reduce the global load and end if it is
// zero. Barrier-then-reservice-then-reduce is the exact order: moving
// reservice before the barrier would let a birth in flight at barrier
// time be missed by the reduce that follows it.
func (d *Director) sync() error {
	if err := d.directorCh.Barrier(); err != nil {
		return err
	}
	if err := d.servicePendingSpawns(); err != nil {
		return err
	}
	load, err := d.GlobalLoad()
	if err != nil {
		return err
	}
	if load == 0 {
		d.ended = true
	}
	return nil
}

// Run executes the tick loop until an end signal arrives, the global
// load reaches zero at a sync point, or ticks non-negative ticks have
// elapsed since entry — whichever comes first. ended is cleared on
// exit so Run may be called again on the same Director.
func (d *Director) Run(ticks int) error {
	startTick := d.tick
	defer func() { d.ended = false }()

	for {
		d.tick++

		if err := d.servicePendingSpawns(); err != nil {
			return err
		}
		if err := d.pollEndSignal(); err != nil {
			return err
		}
		syncInterval := d.syncInterval.Load()
		if syncInterval > 0 && int64(d.tick)%syncInterval == 0 {
			if err := d.sync(); err != nil {
				return err
			}
		}

		if d.ended {
			return nil
		}
		if ticks >= 0 && d.tick >= startTick+ticks {
			return nil
		}

		if len(d.queue) == 0 {
			continue
		}

		entry := d.queue[0]
		d.queue = d.queue[1:]

		entry.actor.Step()

		if !entry.actor.IsDead() {
			d.queue = append(d.queue, entry)
		}
	}
}

// drainChannel consumes every message currently waiting on ch,
// regardless of source or tag, and discards it — mirroring
// DistributedFactory.Drain's "nothing left to deliver to" rationale,
// just without a class index to construct from. Left undone, a
// buffered send nobody ever receives is a dangling resource on a
// socket-backed transport (nettransport), not just an unread entry in
// an in-process queue (localbus).
func drainChannel(ch transport.Channel) error {
	for {
		p, err := status.Check(ch, transport.AnySource, transport.AnyTag)
		if err != nil {
			return err
		}
		if !p.Waiting() {
			return nil
		}
		var msg msgchannel.Message
		if _, err := msg.Receive(ch, transport.AnySource, transport.AnyTag); err != nil {
			return err
		}
	}
}

// Close runs shutdown: barrier so every rank reaches this point
// together, drop every still-queued actor (owning entries are simply
// released; Go's GC reclaims them), drain leftover birth requests and
// any leftover actor/director-channel traffic so no buffered send is
// left dangling, then free every channel this Director owns.
func (d *Director) Close() error {
	if err := d.directorCh.Barrier(); err != nil {
		return err
	}
	d.queue = nil

	if err := d.factory.Drain(); err != nil {
		return err
	}
	if err := d.factory.Close(); err != nil {
		return err
	}

	if err := drainChannel(d.actorCh); err != nil {
		return err
	}
	if err := d.actorCh.Close(); err != nil {
		return err
	}

	if err := drainChannel(d.directorCh); err != nil {
		return err
	}
	return d.directorCh.Close()
}
