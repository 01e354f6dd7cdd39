package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/tartampluch/go-hebsync/internal/config"
)

const keySeparator = "/"

// BadgerStore implements Store on an embedded Badger database. Documents are
// JSON values under "<collection>/<id>" keys; equality queries scan the
// collection prefix.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (or creates) the store at dir.
func Open(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrStoreOpen, err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func key(collection, id string) []byte {
	return []byte(collection + keySeparator + id)
}

// FindByID implements Store.
func (s *BadgerStore) FindByID(ctx context.Context, collection, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, out); err != nil {
				return fmt.Errorf("%s: %w", config.ErrRecordDecode, err)
			}
			return nil
		})
	})
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, collection, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrRecordEncode, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(collection, id), raw)
	})
}

// Update implements Store. The read-modify-write happens inside one Badger
// transaction, which gives the per-document atomicity the engine relies on.
func (s *BadgerStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var doc map[string]any
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
		if err != nil {
			return fmt.Errorf("%s: %w", config.ErrRecordDecode, err)
		}

		for k, v := range fields {
			if v == nil {
				delete(doc, k)
				continue
			}
			doc[k] = v
		}

		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("%s: %w", config.ErrRecordEncode, err)
		}
		return txn.Set(key(collection, id), raw)
	})
}

// Query implements Store.
func (s *BadgerStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(collection + keySeparator)
	var docs []Document

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var raw []byte
			if err := item.Value(func(val []byte) error {
				raw = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}

			ok, err := matches(raw, filter)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			id := string(bytes.TrimPrefix(item.Key(), prefix))
			docs = append(docs, Document{ID: id, Data: raw})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Delete implements Store.
func (s *BadgerStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(collection, id))
	})
}

// DeleteByQuery implements Store. Uses a write batch so large teardowns are
// not bounded by a single transaction's size.
func (s *BadgerStore) DeleteByQuery(ctx context.Context, collection string, filter Filter) (int, error) {
	docs, err := s.Query(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, doc := range docs {
		if err := wb.Delete(key(collection, doc.ID)); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// matches checks every filter constraint against the raw document. Values are
// compared through their canonical JSON encoding, so 1 matches 1.0 and typed
// filter values match their stored representation.
func matches(raw []byte, filter Filter) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("%s: %w", config.ErrRecordDecode, err)
	}

	for field, want := range filter {
		got, ok := doc[field]
		if !ok {
			return false, nil
		}
		wantRaw, err := json.Marshal(want)
		if err != nil {
			return false, err
		}
		var a, b any
		if err := json.Unmarshal(wantRaw, &a); err != nil {
			return false, err
		}
		if err := json.Unmarshal(got, &b); err != nil {
			return false, err
		}
		ar, err := json.Marshal(a)
		if err != nil {
			return false, err
		}
		br, err := json.Marshal(b)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(ar, br) {
			return false, nil
		}
	}
	return true, nil
}

// DecodeInto unmarshals a query result document into out.
func DecodeInto(doc Document, out any) error {
	if err := json.Unmarshal(doc.Data, out); err != nil {
		return fmt.Errorf("%s: %w", config.ErrRecordDecode, err)
	}
	return nil
}
