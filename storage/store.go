// Package storage defines the keyed relation store exposed to concepts.
// Concepts never share a database connection directly; they only see this
// interface, so the kernel can plug in whichever backend a deployment
// wants without concepts noticing.
package storage

import (
	"fmt"
	"time"

	"github.com/conceptrt/conceptrt/model"
)

// Meta describes a relation key's write history.
type Meta struct {
	LastWrittenAt time.Time
}

// Filter narrows a Find to rows whose fields match. A nil or empty Filter
// matches every row in the relation. Order of matching rows is arbitrary.
type Filter map[string]interface{}

// Matches reports whether value satisfies f.
func (f Filter) Matches(value model.Fields) bool {
	for k, want := range f {
		got, ok := value[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares via fmt.Sprint rather than ==, the same discipline
// sync/matcher.go's valuesEqual applies: a badger/leveldb row JSON-round-
// trips every numeric field to float64, so a filter value sourced from a
// websocket/sqs/pubsub/httptransport completion (which may still be an int)
// must compare equal to the float64 a backend store rehydrates.
func valuesEqual(a, b interface{}) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Store is the keyed relation store contract. put is last-writer-wins per
// (relation, key); find with no filter returns the full relation in
// arbitrary order. Failures are returned as errors; the kernel translates
// them into an error-variant completion.
type Store interface {
	Put(relation, key string, value model.Fields) error
	Get(relation, key string) (model.Fields, bool, error)
	Del(relation, key string) error
	Find(relation string, filter Filter) ([]model.Fields, error)

	// GetMeta is optional; backends that cannot cheaply track
	// last-written-at may return ErrMetaUnsupported.
	GetMeta(relation, key string) (Meta, error)
}

// ErrMetaUnsupported is returned by GetMeta on backends with no metadata
// tracking.
var ErrMetaUnsupported = storeError("storage: GetMeta not supported by this backend")

// ErrNotFound is returned by Get/Del when the key does not exist, for
// backends that distinguish "absent" from "empty" at the error-return layer
// in addition to the boolean return.
var ErrNotFound = storeError("storage: key not found")

type storeError string

func (e storeError) Error() string { return string(e) }
