package kv

import "errors"

// ErrClosed is returned by any operation attempted on a closed Store.
var ErrClosed = errors.New("kv: store is closed")

// ErrIO wraps an error surfaced by the underlying badger engine during
// a transaction or read (not during Open); the batch or read did not
// complete and the caller may retry.
var ErrIO = errors.New("kv: io error")
