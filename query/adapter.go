// Package query implements the lite-query adapter: a client-side cached
// read of another concept's state, invalidated on local writes. The
// snapshot cache is held in a hashicorp/golang-lru.Cache keyed by concept
// URI, each entry additionally timestamped for a TTL check — the LRU
// bounds memory across many concept URIs, the timestamp bounds staleness.
package query

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

// Snapshot is a point-in-time read of every relation a concept exposes,
// structurally `{asOf, relations}`.
type Snapshot struct {
	AsOf      time.Time
	Relations map[string][]model.Fields
}

// Protocol is what a concept exposes for lite-query reads. Lookup is
// optional: adapters without it always go through Snapshot.
type Protocol interface {
	Snapshot() (Snapshot, error)
}

// Lookuper is implemented by protocols that support an efficient
// single-key read, bypassing the snapshot cache entirely.
type Lookuper interface {
	Lookup(relation, key string) (model.Fields, bool, error)
}

type cacheEntry struct {
	snapshot Snapshot
}

// Adapter is the lite-query adapter for one concept URI.
type Adapter struct {
	uri      string
	protocol Protocol
	ttl      time.Duration
	cache    *lru.Cache // shared across adapters for the same registry; keyed by uri
}

// NewShared returns an Adapter sharing one LRU cache across every concept
// URI — callers typically keep one Adapter per URI but point them all at
// the cache returned by NewCache so the registry's total snapshot memory
// stays bounded regardless of how many concepts are queried.
func NewShared(uri string, protocol Protocol, ttl time.Duration, cache *lru.Cache) *Adapter {
	return &Adapter{uri: uri, protocol: protocol, ttl: ttl, cache: cache}
}

// NewCache builds the shared LRU cache backing any number of Adapters, each
// entry costing one Snapshot.
func NewCache(size int) (*lru.Cache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "could not create lite-query cache")
	}
	return cache, nil
}

// Read answers filter against relation, using the cache when fresh.
// Single-key lookups (exactly one filter field, and the protocol supports
// Lookup) bypass the cache entirely.
func (a *Adapter) Read(relation string, filter storage.Filter) ([]model.Fields, error) {
	if len(filter) == 1 && a.hasLookuper() {
		for k, v := range filter {
			key, ok := v.(string)
			if !ok {
				break
			}
			row, found, err := a.protocol.(Lookuper).Lookup(relation, key)
			if err != nil {
				return nil, errors.Wrapf(err, "could not look up %s in %s", k, relation)
			}
			if !found {
				return nil, nil
			}
			return []model.Fields{row}, nil
		}
	}

	snap, err := a.resolve()
	if err != nil {
		return nil, err
	}

	rows := snap.Relations[relation]
	out := make([]model.Fields, 0, len(rows))
	for _, row := range rows {
		if filter.Matches(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (a *Adapter) hasLookuper() bool {
	_, ok := a.protocol.(Lookuper)
	return ok
}

// resolve returns a fresh-enough cached snapshot, refreshing if the cached
// one is absent or older than ttl.
func (a *Adapter) resolve() (Snapshot, error) {
	if cached, ok := a.cache.Get(a.uri); ok {
		entry := cached.(cacheEntry)
		if time.Since(entry.snapshot.AsOf) < a.ttl {
			return entry.snapshot, nil
		}
	}

	snap, err := a.protocol.Snapshot()
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "could not refresh snapshot")
	}
	a.cache.Add(a.uri, cacheEntry{snapshot: snap})
	return snap, nil
}

// Invalidate drops the cached snapshot for this adapter's URI, so the next
// Read refreshes unconditionally. Called explicitly, and automatically by
// the kernel on every local completion for a relation this adapter tracks.
func (a *Adapter) Invalidate() {
	a.cache.Remove(a.uri)
}
