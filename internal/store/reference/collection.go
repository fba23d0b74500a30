package reference

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/clipbox/clipbox/internal/store"
)

// collection provides JSON record storage under a key prefix.
type collection[T any] struct {
	store  *Store
	prefix string
	id     func(*T) string
}

func newCollection[T any](s *Store, prefix string, id func(*T) string) *collection[T] {
	return &collection[T]{store: s, prefix: prefix, id: id}
}

func (c *collection[T]) key(id string) []byte {
	return []byte(c.prefix + id)
}

// all returns every record in key order, optionally filtered.
func (c *collection[T]) all(keep func(*T) bool) ([]*T, error) {
	out := []*T{}
	err := c.store.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(c.prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var v T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if keep == nil || keep(&v) {
				out = append(out, &v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// createAll inserts records. Returns store.ErrAlreadyExists if any id is
// taken; nothing is written in that case.
func (c *collection[T]) createAll(values []*T) error {
	return c.store.update(func(txn *badger.Txn) error {
		for _, v := range values {
			key := c.key(c.id(v))
			if _, err := txn.Get(key); err == nil {
				return store.ErrAlreadyExists.WithCause(fmt.Errorf("%s", key))
			} else if !isNotFound(err) {
				return err
			}
		}
		for _, v := range values {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to marshal value: %w", err)
			}
			if err := txn.Set(c.key(c.id(v)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// modify applies fn to the record with id and stores the result.
// Returns store.ErrNotFound if it does not exist.
func (c *collection[T]) modify(id string, fn func(*T)) error {
	return c.store.update(func(txn *badger.Txn) error {
		key := c.key(id)
		item, err := txn.Get(key)
		if isNotFound(err) {
			return store.ErrNotFound.WithCause(fmt.Errorf("%s", key))
		}
		if err != nil {
			return err
		}

		var v T
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &v) }); err != nil {
			return err
		}
		fn(&v)

		data, err := json.Marshal(&v)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		return txn.Set(key, data)
	})
}

// deleteAll removes records by id. Missing ids are ignored.
func (c *collection[T]) deleteAll(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.store.update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete(c.key(id)); err != nil {
				return err
			}
		}
		return nil
	})
}
