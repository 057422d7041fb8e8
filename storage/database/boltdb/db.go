// Package boltdb stores every collection in its own bbolt bucket, one record per id.
package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/quransn/academy/core"
)

type DB struct {
	db *bbolt.DB
}

var _ core.DB = (*DB)(nil)

// Open opens (or creates) the database file at path and makes sure `collections` exist.
func Open(path string, collections ...string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating database directory")
	}

	bdb, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening bolt database")
	}

	// create buckets
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, coll := range collections {
			if _, err := tx.CreateBucketIfNotExists([]byte(coll)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, errors.Wrap(err, "creating buckets")
	}
	return &DB{db: bdb}, nil
}

func (s *DB) View(ctx context.Context, fn func(tx core.DBTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(btx *bbolt.Tx) error {
		return fn(&tx{btx: btx})
	})
}

func (s *DB) Update(ctx context.Context, fn func(tx core.DBTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(btx *bbolt.Tx) error {
		return fn(&tx{btx: btx})
	})
}

func (s *DB) Close() error {
	return s.db.Close()
}

type tx struct {
	btx *bbolt.Tx
}

func (t *tx) Get(collection, id string) ([]byte, error) {
	b := t.btx.Bucket([]byte(collection))
	if b == nil {
		return nil, core.ErrRecordNotFound
	}
	v := b.Get([]byte(id))
	if v == nil {
		return nil, core.ErrRecordNotFound
	}
	// bolt values are only valid for the life of the transaction
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *tx) Put(collection, id string, data []byte) error {
	if !t.btx.Writable() {
		return core.ErrReadOnlyTx
	}
	if id == "" {
		return errors.New("empty record id")
	}
	b, err := t.btx.CreateBucketIfNotExists([]byte(collection))
	if err != nil {
		return err
	}
	return b.Put([]byte(id), data)
}

func (t *tx) Delete(collection, id string) error {
	if !t.btx.Writable() {
		return core.ErrReadOnlyTx
	}
	b := t.btx.Bucket([]byte(collection))
	if b == nil {
		return nil
	}
	return b.Delete([]byte(id))
}

func (t *tx) ForEach(collection string, fn func(id string, data []byte) error) error {
	b := t.btx.Bucket([]byte(collection))
	if b == nil {
		return nil
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if err := fn(string(k), v); err != nil {
			return err
		}
	}
	return nil
}
