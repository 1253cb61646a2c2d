package core

import "errors"

// ErrClassNotRegistered is returned when a lookup asks for the
// registration index of an actor class that was never registered on
// this rank. Fatal: it indicates a protocol mismatch between ranks,
// which must register the same classes in the same order.
var ErrClassNotRegistered = errors.New("core: actor class not registered")

// ErrBadClassIndex is returned when a spawn request names a class
// index outside the registered range. Fatal for the same reason as
// ErrClassNotRegistered.
var ErrBadClassIndex = errors.New("core: class index out of range")
