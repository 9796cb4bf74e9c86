// Package badger implements storage.Store over dgraph-io/badger/v2, the
// alternate durable backend to storage/leveldb — useful when a deployment
// wants the action log and concept state sharing one LSM engine, or simply
// prefers badger's embedded-transaction API over goleveldb's.
package badger

import (
	"encoding/json"
	"time"

	bdg "github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

// Store is a badger-backed storage.Store.
type Store struct {
	db *bdg.DB
}

// Open opens (creating if absent) a badger store at path.
func Open(path string) (*Store, error) {
	opts := bdg.DefaultOptions(path)
	opts.Logger = nil
	db, err := bdg.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "could not open badger store")
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
	err = s.db.Update(func(tx *bdg.Txn) error {
		return tx.Set(recordKey(relation, key), raw)
	})
	if err != nil {
		return errors.Wrap(err, "could not write value")
	}
	return nil
}

func (s *Store) Get(relation, key string) (model.Fields, bool, error) {
	var rec record
	found := true
	err := s.db.View(func(tx *bdg.Txn) error {
		item, err := tx.Get(recordKey(relation, key))
		if errors.Is(err, bdg.ErrKeyNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "could not read value")
	}
	if !found {
		return nil, false, nil
	}
	return rec.Value, true, nil
}

func (s *Store) Del(relation, key string) error {
	err := s.db.Update(func(tx *bdg.Txn) error {
		err := tx.Delete(recordKey(relation, key))
		if errors.Is(err, bdg.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return errors.Wrap(err, "could not delete value")
	}
	return nil
}

func (s *Store) Find(relation string, filter storage.Filter) ([]model.Fields, error) {
	var out []model.Fields
	err := s.db.View(func(tx *bdg.Txn) error {
		opts := bdg.DefaultIteratorOptions
		opts.Prefix = relationPrefix(relation)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var rec record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if !filter.Matches(rec.Value) {
				continue
			}
			out = append(out, rec.Value)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not iterate relation")
	}
	return out, nil
}

func (s *Store) GetMeta(relation, key string) (storage.Meta, error) {
	var rec record
	found := true
	err := s.db.View(func(tx *bdg.Txn) error {
		item, err := tx.Get(recordKey(relation, key))
		if errors.Is(err, bdg.ErrKeyNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return storage.Meta{}, errors.Wrap(err, "could not read value")
	}
	if !found {
		return storage.Meta{}, nil
	}
	return storage.Meta{LastWrittenAt: rec.LastWrittenAt}, nil
}
