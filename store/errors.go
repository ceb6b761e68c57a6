package store

import (
	"errors"

	"github.com/wbrown/datomstore/index"
	"github.com/wbrown/datomstore/kv"
	"github.com/wbrown/datomstore/schema"
)

// ErrBadBound is re-exported from package index: a range endpoint
// named a value but no attribute, and the value was not a ref.
var ErrBadBound = index.ErrBadBound

// ErrSchemaConflict is re-exported from package schema: a migration
// attempted a refused change.
var ErrSchemaConflict = schema.ErrSchemaConflict

// ErrUnknownAttribute names an attribute that the schema catalog has
// never seen. No operation in this package returns it: LoadDatoms
// treats a retraction of such an attribute as a no-op, since nothing
// can exist in an index under an aid that was never allocated, and
// Fetch returns no datoms for it.
var ErrUnknownAttribute = errors.New("store: unknown attribute")

// ErrClosed fires fast on any operation against a closed Store.
var ErrClosed = kv.ErrClosed

// ErrIO is re-exported from package kv: the K/V layer's batch or read
// did not complete; the caller may retry.
var ErrIO = kv.ErrIO
