// Package inmemdb is a core.DB kept in process memory, with an optional byte quota
// standing in for the storage limits of a browser key-value store.
package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
)

var errClosed = errors.New("database is closed")

type table map[string][]byte

type DB struct {
	mutex  sync.RWMutex // guards tables & size
	writer sync.Mutex   // one Update at a time
	tables map[string]table
	size   int64
	quota  int64
	closed bool
}

var _ core.DB = (*DB)(nil)

// NewDB returns an empty database. quotaBytes <= 0 disables the quota.
func NewDB(quotaBytes int64) *DB {
	return &DB{
		tables: make(map[string]table),
		quota:  quotaBytes,
	}
}

func (db *DB) View(ctx context.Context, fn func(tx core.DBTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	if db.closed {
		return errClosed
	}
	return fn(&readTx{db: db})
}

func (db *DB) Update(ctx context.Context, fn func(tx core.DBTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.writer.Lock()
	defer db.writer.Unlock()

	tx := &writeTx{db: db, pending: make(map[string]map[string][]byte)}
	if err := fn(tx); err != nil {
		return err // nothing applied
	}
	return db.commit(tx)
}

func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.closed = true
	return nil
}

// Size returns the number of bytes held (keys and values).
func (db *DB) Size() int64 {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.size
}

func (db *DB) commit(tx *writeTx) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.closed {
		return errClosed
	}

	newSize := db.size
	for coll, recs := range tx.pending {
		base := db.tables[coll]
		for id, data := range recs {
			if old, ok := base[id]; ok {
				newSize -= int64(len(id) + len(old))
			}
			if data != nil {
				newSize += int64(len(id) + len(data))
			}
		}
	}
	if db.quota > 0 && newSize > db.quota {
		return core.ErrQuotaExceeded
	}

	for coll, recs := range tx.pending {
		t, ok := db.tables[coll]
		if !ok {
			t = make(table)
			db.tables[coll] = t
		}
		for id, data := range recs {
			if data == nil {
				delete(t, id)
			} else {
				t[id] = data
			}
		}
	}
	db.size = newSize
	return nil
}

func sortedKeys(t table) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// readTx runs with db.mutex read-locked.
type readTx struct {
	db *DB
}

func (tx *readTx) Get(collection, id string) ([]byte, error) {
	if data, ok := tx.db.tables[collection][id]; ok {
		return data, nil
	}
	return nil, core.ErrRecordNotFound
}

func (tx *readTx) Put(string, string, []byte) error { return core.ErrReadOnlyTx }
func (tx *readTx) Delete(string, string) error      { return core.ErrReadOnlyTx }

func (tx *readTx) ForEach(collection string, fn func(id string, data []byte) error) error {
	t := tx.db.tables[collection]
	for _, id := range sortedKeys(t) {
		if err := fn(id, t[id]); err != nil {
			return err
		}
	}
	return nil
}

// writeTx buffers writes until commit. A nil value marks a deletion.
type writeTx struct {
	db      *DB
	pending map[string]map[string][]byte
}

func (tx *writeTx) Get(collection, id string) ([]byte, error) {
	if recs, ok := tx.pending[collection]; ok {
		if data, ok := recs[id]; ok {
			if data == nil {
				return nil, core.ErrRecordNotFound
			}
			return data, nil
		}
	}
	tx.db.mutex.RLock()
	defer tx.db.mutex.RUnlock()
	if data, ok := tx.db.tables[collection][id]; ok {
		return data, nil
	}
	return nil, core.ErrRecordNotFound
}

func (tx *writeTx) set(collection, id string, data []byte) {
	recs, ok := tx.pending[collection]
	if !ok {
		recs = make(map[string][]byte)
		tx.pending[collection] = recs
	}
	recs[id] = data
}

func (tx *writeTx) Put(collection, id string, data []byte) error {
	if id == "" {
		return errors.New("empty record id")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	tx.set(collection, id, cp)
	return nil
}

func (tx *writeTx) Delete(collection, id string) error {
	tx.set(collection, id, nil)
	return nil
}

func (tx *writeTx) ForEach(collection string, fn func(id string, data []byte) error) error {
	tx.db.mutex.RLock()
	merged := make(table, len(tx.db.tables[collection]))
	for id, data := range tx.db.tables[collection] {
		merged[id] = data
	}
	tx.db.mutex.RUnlock()

	for id, data := range tx.pending[collection] {
		if data == nil {
			delete(merged, id)
		} else {
			merged[id] = data
		}
	}
	for _, id := range sortedKeys(merged) {
		if err := fn(id, merged[id]); err != nil {
			return err
		}
	}
	return nil
}
