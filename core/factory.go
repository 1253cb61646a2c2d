package core

import (
	"fmt"
	"reflect"
	"sync"
)

// creatorFunc constructs one new Actor of some registered class.
type creatorFunc func() Actor

// Factory enumerates a set of registered actor classes and constructs
// instances of them by a stable registration index. Every rank in a
// cluster must register the same classes in the same order so that a
// class index minted on one rank names the right class on another.
type Factory struct {
	mu       sync.Mutex
	creators []creatorFunc
	types    []reflect.Type
}

// NewFactory creates an empty class registry.
func NewFactory() *Factory {
	return &Factory{}
}

// registrar is implemented by anything that owns a *Factory and wants
// to let callers register classes directly against it without
// exposing the Factory itself — both *Director and *DistributedFactory
// satisfy it, which is what lets RegisterActor accept either.
type registrar interface {
	classFactory() *Factory
}

// RegisterActor registers actor class T (constructed through pointer
// type PT, which must implement Actor) against r's factory and
// returns its assigned class index. Every process must call this in
// the same order for the same set of classes.
func RegisterActor[T any, PT interface {
	*T
	Actor
}](r registrar) int {
	f := r.classFactory()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.creators = append(f.creators, func() Actor {
		return PT(new(T))
	})
	f.types = append(f.types, reflect.TypeOf((*T)(nil)).Elem())

	return len(f.creators) - 1
}

// getClassIndex finds the registration index of T, or
// ErrClassNotRegistered if T was never registered.
func getClassIndex[T any](f *Factory) (int, error) {
	want := reflect.TypeOf((*T)(nil)).Elem()

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, t := range f.types {
		if t == want {
			return i, nil
		}
	}
	return -1, fmt.Errorf("core: class %s: %w", want, ErrClassNotRegistered)
}

// CreateFromIndex constructs a new instance of the class registered at
// idx, or fails with ErrBadClassIndex if idx is out of range.
func (f *Factory) CreateFromIndex(idx int) (Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if idx < 0 || idx >= len(f.creators) {
		return nil, fmt.Errorf("core: index %d not in [0,%d): %w", idx, len(f.creators), ErrBadClassIndex)
	}
	return f.creators[idx](), nil
}
