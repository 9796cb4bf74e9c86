// Package leveldb implements storage.Store over syndtr/goleveldb, an
// alternate durable backend to storage/badger — useful when a deployment
// wants concept state and action-log provenance on separate storage engines
// rather than sharing one badger instance.
package leveldb

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

// Store is a goleveldb-backed storage.Store.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a leveldb store at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not open leveldb store")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type record struct {
	Value         model.Fields `json:"value"`
	LastWrittenAt time.Time    `json:"last_written_at"`
}

func recordKey(relation, key string) []byte {
	return []byte(relation + "\x00" + key)
}

func relationPrefix(relation string) []byte {
	return []byte(relation + "\x00")
}

func (s *Store) Put(relation, key string, value model.Fields) error {
	rec := record{Value: value.Clone(), LastWrittenAt: time.Now()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "could not encode value")
	}
	return s.db.Put(recordKey(relation, key), raw, nil)
}

func (s *Store) Get(relation, key string) (model.Fields, bool, error) {
	raw, err := s.db.Get(recordKey(relation, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "could not read value")
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, errors.Wrap(err, "could not decode value")
	}
	return rec.Value, true, nil
}

func (s *Store) Del(relation, key string) error {
	err := s.db.Delete(recordKey(relation, key), nil)
	if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return errors.Wrap(err, "could not delete value")
	}
	return nil
}

func (s *Store) Find(relation string, filter storage.Filter) ([]model.Fields, error) {
	iter := s.db.NewIterator(util.BytesPrefix(relationPrefix(relation)), nil)
	defer iter.Release()

	var out []model.Fields
	for iter.Next() {
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, errors.Wrap(err, "could not decode value")
		}
		if !filter.Matches(rec.Value) {
			continue
		}
		out = append(out, rec.Value)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "could not iterate relation")
	}
	return out, nil
}

func (s *Store) GetMeta(relation, key string) (storage.Meta, error) {
	raw, err := s.db.Get(recordKey(relation, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return storage.Meta{}, nil
	}
	if err != nil {
		return storage.Meta{}, errors.Wrap(err, "could not read value")
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return storage.Meta{}, errors.Wrap(err, "could not decode value")
	}
	return storage.Meta{LastWrittenAt: rec.LastWrittenAt}, nil
}
