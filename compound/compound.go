// Package compound models one atomic user message as two consecutive
// byte messages on the same (dest, transport tag): a fixed-size
// metadata half followed by a variable-length payload half. It assumes
// — and only works correctly if — every sender to a given (dest, tag)
// goes through this package exclusively, so the transport's per-
// (source, dest, tag) FIFO guarantee keeps the two halves paired.
//
// compound.Message itself is agnostic to what the metadata type means;
// package core layers actor-specific semantics (sender id, user tag)
// on top of it.
package compound

import (
	"github.com/nodecast/actorrt/msgchannel"
	"github.com/nodecast/actorrt/status"
	"github.com/nodecast/actorrt/transport"
)

// Message is a received (or about-to-be-sent) compound message.
type Message struct {
	meta msgchannel.Message
	data msgchannel.Message
}

// Send buffers metadata then data, back to back, on the same
// (dest, transportTag) — in that order, so a concurrent receiver that
// probes this tag always sees the metadata half arrive first.
func Send[D any, M any](ch transport.Channel, dest, transportTag int, data []D, metadata M) error {
	if err := msgchannel.SendValue(ch, dest, transportTag, metadata); err != nil {
		return err
	}
	return msgchannel.Send(ch, dest, transportTag, data)
}

// Receive is the single subtle correctness point of this package: it
// probes for a waiting message on source/transportTag, and if one is
// there, receives the metadata half from that filter, then receives
// the data half from the *concrete* source and tag the metadata half
// resolved to — never re-applying the original filter — so that with
// multiple senders addressing the same receiver tag, the two halves
// can never come from different senders.
func (m *Message) Receive(ch transport.Channel, source, transportTag int) (bool, error) {
	p, err := status.Check(ch, source, transportTag)
	if err != nil {
		return false, err
	}
	if !p.Waiting() {
		return false, nil
	}

	ok, err := m.meta.Receive(ch, source, transportTag)
	if err != nil || !ok {
		return false, err
	}

	ok, err = m.data.Receive(ch, m.meta.Source(), m.meta.Tag())
	if err != nil || !ok {
		return false, err
	}

	return true, nil
}

// Metadata reinterprets the metadata half as an M.
func Metadata[M any](m *Message) M {
	return msgchannel.Data[M](&m.meta)
}

// Data reinterprets the first sizeof(T) bytes of the data half as a T.
func Data[T any](m *Message) T {
	return msgchannel.Data[T](&m.data)
}

// DataInto copies count elements of T out of the data half into buf.
func DataInto[T any](m *Message, buf []T, count int) {
	msgchannel.DataInto(&m.data, buf, count)
}

// DataSize is the raw byte length of the data half.
func (m *Message) DataSize() int { return m.data.DataSize() }

// DataElementCount returns how many whole T elements the data half holds.
func DataElementCount[T any](m *Message) int {
	return msgchannel.ElementCount[T](&m.data)
}

// Source is the transport rank the message resolved to — the rank
// both halves were received from.
func (m *Message) Source() int { return m.meta.Source() }

// Tag is the transport tag both halves were received on (not any
// application-level tag carried inside the metadata payload — see
// core.ActorMessage for that).
func (m *Message) Tag() int { return m.meta.Tag() }
