package badger

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v2"
)

// unmarshalInto decodes raw JSON into target, used by iteratePrefix
// callbacks that don't go through a single-key retrieve.
func unmarshalInto(raw []byte, target interface{}) error {
	return json.Unmarshal(raw, target)
}

// nowNano is a small seam so record ordering within a prefix stays
// monotonic even for records (like sync edges) that have no natural
// timestamp of their own.
func nowNano() int64 {
	return time.Now().UnixNano()
}

// ErrAlreadyExists is returned by insert when the key is already present.
var ErrAlreadyExists = errors.New("action/badger: key already exists")

// persist writes key/value unconditionally (last-writer-wins).
func persist(key []byte, value interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return tx.Set(key, raw)
	}
}

// insert writes key/value only if key is absent — the conditional put the
// firing guard relies on.
func insert(key []byte, value interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return tx.Set(key, raw)
	}
}

// check populates *exists with whether key is present.
func check(key []byte, exists *bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			*exists = false
			return nil
		}
		if err != nil {
			return err
		}
		*exists = true
		return nil
	}
}

// retrieve reads key and unmarshals it into target.
func retrieve(key []byte, target interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, target)
		})
	}
}

// remove deletes key, treating "already absent" as success.
func remove(key []byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := tx.Delete(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	}
}

// iteratePrefix calls fn for every key/value pair whose key starts with
// prefix, in badger's lexicographic key order.
func iteratePrefix(prefix []byte, fn func(key, value []byte) error) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	}
}
