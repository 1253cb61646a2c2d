// Package envelope is a typed convenience layer over core's raw-byte
// actor messages: a per-user_tag schema registry plus JSON
// encode/decode, so callers who don't need unsafe-style byte
// reinterpretation can exchange plain Go values instead. It changes
// nothing about the wire protocol — the
// payload core.Send buffers is exactly the JSON bytes envelope
// produces, addressed and tagged exactly as core.Send always does.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/nodecast/actorrt/core"
	"github.com/nodecast/actorrt/id"
)

// Registry associates user tags with the Go type their payload
// decodes to. A rank must register the same tags with the same types
// as every rank it talks to, exactly like the actor factory's class
// registration convention.
type Registry struct {
	mu    sync.Mutex
	types map[int]reflect.Type
}

// NewRegistry creates an empty tag/type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[int]reflect.Type)}
}

// Register associates userTag with T. Later registrations for the
// same tag overwrite earlier ones.
func Register[T any](r *Registry, userTag int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[userTag] = reflect.TypeOf((*T)(nil)).Elem()
}

// ErrTagNotRegistered is returned by Decode when asked to decode a tag
// no call to Register ever named.
var ErrTagNotRegistered = errors.New("envelope: tag not registered")

// Send JSON-encodes value and sends it to peer on userTag, the same
// addressing core.Send uses for a raw payload.
func Send[T any](b *core.Base, peer id.Id, userTag int, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("envelope: encode tag %d: %w", userTag, err)
	}
	return core.Send(b, peer, payload, userTag)
}

// Decode JSON-decodes msg's payload into out. It does not consult the
// registry — callers who already know the static type at the call
// site (the common case) can call it directly; DecodeRegistered is for
// callers dispatching dynamically on msg.Tag().
func Decode(msg *core.ActorMessage, out any) error {
	n := msg.DataSize()
	buf := make([]byte, n)
	core.DataInto(msg, buf, n)
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("envelope: decode tag %d: %w", msg.Tag(), err)
	}
	return nil
}

// DecodeRegistered looks up msg.Tag() in r, allocates a zero value of
// the registered type, decodes into it, and returns a pointer to it as
// any — the caller type-asserts to *T for the T it registered for that
// tag.
func DecodeRegistered(r *Registry, msg *core.ActorMessage) (any, error) {
	r.mu.Lock()
	t, ok := r.types[msg.Tag()]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("envelope: tag %d: %w", msg.Tag(), ErrTagNotRegistered)
	}

	out := reflect.New(t).Interface()
	if err := Decode(msg, out); err != nil {
		return nil, err
	}
	return out, nil
}
