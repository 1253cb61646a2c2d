// Package status provides a thin value wrapper over a non-blocking
// transport probe: a pure function of a channel snapshot that never
// consumes the message it reports on.
package status

import "github.com/nodecast/actorrt/transport"

// MsgWaiting is the wire-level affirmative probe state. Probe.Waiting
// already carries the same information as a bool.
const MsgWaiting = 1

// Probe captures what a single non-blocking probe observed.
type Probe struct {
	waiting   bool
	source    int
	tag       int
	byteCount int
}

// Check performs one Iprobe on ch for source/tag and returns the
// resulting Probe.
func Check(ch transport.Channel, source, tag int) (Probe, error) {
	res, err := ch.Iprobe(source, tag)
	if err != nil {
		return Probe{}, err
	}
	return Probe{
		waiting:   res.Waiting,
		source:    res.Source,
		tag:       res.Tag,
		byteCount: res.ByteCount,
	}, nil
}

// Waiting reports whether a message was waiting at the time of Check.
func (p Probe) Waiting() bool { return p.waiting }

// Source is the concrete source rank of the waiting message.
func (p Probe) Source() int { return p.source }

// Tag is the concrete tag of the waiting message.
func (p Probe) Tag() int { return p.tag }

// ByteCount is the size in bytes of the waiting message.
func (p Probe) ByteCount() int { return p.byteCount }
