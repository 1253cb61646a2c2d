// Package msgchannel sends and receives one tagged, length-prefixed
// byte payload per call over a transport.Channel. It is a deliberately
// type-erased raw byte pipe: the receiver reinterprets the bytes as
// whatever type it expects, with no runtime check that sender and
// receiver agree. Package envelope offers a schema-checked layer for
// callers that want one.
package msgchannel

import (
	"unsafe"

	"github.com/nodecast/actorrt/transport"
)

// Message owns and recycles one receive buffer. Reading element counts
// with the wrong T yields wrong answers silently.
type Message struct {
	data   []byte
	source int
	tag    int
}

// Send buffers count elements of T starting at data for delivery to
// dest on tag.
func Send[T any](ch transport.Channel, dest, tag int, data []T) error {
	return ch.BufferedSend(dest, tag, bytesOf(data))
}

// SendValue buffers a single T for delivery to dest on tag.
func SendValue[T any](ch transport.Channel, dest, tag int, value T) error {
	return Send(ch, dest, tag, []T{value})
}

// Receive is atomic: it probes ch for a message matching source/tag,
// and if one is waiting, resolves the concrete source/tag, reads the
// byte count, resizes its internal buffer and blocks on Recv. It
// returns false, nil when nothing is waiting, and false, nil (not an
// error) when the transport reports a malformed byte count — the
// runtime treats that as "no message" and moves on.
func (m *Message) Receive(ch transport.Channel, source, tag int) (bool, error) {
	res, err := ch.Iprobe(source, tag)
	if err != nil {
		return false, err
	}
	if !res.Waiting {
		return false, nil
	}
	if res.ByteCount < 0 {
		return false, nil
	}

	var buf []byte
	if cap(m.data) >= res.ByteCount {
		buf = m.data[:res.ByteCount]
	} else {
		buf = make([]byte, res.ByteCount)
	}
	if err := ch.Recv(res.Source, res.Tag, buf); err != nil {
		return false, err
	}

	m.data = buf
	m.source = res.Source
	m.tag = res.Tag
	return true, nil
}

// Source is the rank the last successfully received message came from.
func (m *Message) Source() int { return m.source }

// Tag is the transport tag the last successfully received message
// arrived on.
func (m *Message) Tag() int { return m.tag }

// DataSize is the raw byte length of the current payload.
func (m *Message) DataSize() int { return len(m.data) }

// ElementCount returns how many whole T elements the payload contains.
func ElementCount[T any](m *Message) int {
	var zero T
	sz := int(unsafe.Sizeof(zero))
	if sz == 0 {
		return 0
	}
	return len(m.data) / sz
}

// Data reinterprets the first sizeof(T) bytes of the payload as a T.
func Data[T any](m *Message) T {
	var zero T
	sz := int(unsafe.Sizeof(zero))
	if sz == 0 || len(m.data) < sz {
		return zero
	}
	return *(*T)(unsafe.Pointer(&m.data[0]))
}

// DataInto copies count elements of T out of the payload into buf.
func DataInto[T any](m *Message, buf []T, count int) {
	var zero T
	sz := int(unsafe.Sizeof(zero))
	if sz == 0 || count == 0 || len(m.data) < sz {
		return
	}
	src := unsafe.Slice((*T)(unsafe.Pointer(&m.data[0])), len(m.data)/sz)
	n := count
	if n > len(src) {
		n = len(src)
	}
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf[:n], src[:n])
}

// bytesOf views a slice of fixed-size T as its raw bytes. T must not
// contain pointers, maps, slices, interfaces or strings — only plain
// fixed-layout data, since the wire carries raw bytes in native
// endianness.
func bytesOf[T any](values []T) []byte {
	if len(values) == 0 {
		return nil
	}
	var zero T
	sz := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), sz*len(values))
}
