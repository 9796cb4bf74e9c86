// Package memory implements storage.Store over an in-process map. It backs
// the in-process transport's default concept storage and the test suite;
// it carries no durability guarantee.
package memory

import (
	"sync"
	"time"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

type row struct {
	value         model.Fields
	lastWrittenAt time.Time
}

// Store is a map-backed storage.Store, safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	relations  map[string]map[string]row
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{relations: make(map[string]map[string]row)}
}

func (s *Store) Put(relation, key string, value model.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relations[relation]
	if !ok {
		rel = make(map[string]row)
		s.relations[relation] = rel
	}
	rel[key] = row{value: value.Clone(), lastWrittenAt: time.Now()}
	return nil
}

func (s *Store) Get(relation, key string) (model.Fields, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.relations[relation]
	if !ok {
		return nil, false, nil
	}
	r, ok := rel[key]
	if !ok {
		return nil, false, nil
	}
	return r.value.Clone(), true, nil
}

func (s *Store) Del(relation, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relations[relation]
	if !ok {
		return nil
	}
	delete(rel, key)
	return nil
}

func (s *Store) Find(relation string, filter storage.Filter) ([]model.Fields, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.relations[relation]
	if !ok {
		return nil, nil
	}
	out := make([]model.Fields, 0, len(rel))
	for _, r := range rel {
		if !filter.Matches(r.value) {
			continue
		}
		out = append(out, r.value.Clone())
	}
	return out, nil
}

func (s *Store) GetMeta(relation, key string) (storage.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.relations[relation]
	if !ok {
		return storage.Meta{}, nil
	}
	r, ok := rel[key]
	if !ok {
		return storage.Meta{}, nil
	}
	return storage.Meta{LastWrittenAt: r.lastWrittenAt}, nil
}
