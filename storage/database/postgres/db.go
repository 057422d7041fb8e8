// Package postgres stores every collection as rows of the kv_records table.
package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
)

// writerLockKey serializes Update transactions across every process sharing the database.
const writerLockKey = 7_315_220

type DB struct {
	db *sqlx.DB
}

var _ core.DB = (*DB)(nil)

// New wraps an open *sql.DB (see OpenSQL); the kv_records table must be migrated.
func New(sqlDB *sql.DB) *DB {
	return &DB{db: sqlx.NewDb(sqlDB, "postgres")}
}

// Open creates the database if needed, migrates it and returns the store.
func Open(conf *core.Config) (*DB, error) {
	if err := CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	sqlDB, err := OpenSQL(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(sqlDB); err != nil {
		return nil, err
	}
	if err = Migrate(sqlDB); err != nil {
		return nil, err
	}
	return New(sqlDB), nil
}

func (s *DB) View(ctx context.Context, fn func(tx core.DBTx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(&tx{ctx: ctx, tx: sqlTx, readOnly: true})
}

func (s *DB) Update(ctx context.Context, fn func(tx core.DBTx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = sqlTx.Rollback() }()

	if _, err = sqlTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", writerLockKey); err != nil {
		return errors.Wrap(err, "acquiring writer lock")
	}
	if err = fn(&tx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}
	return errors.Wrap(sqlTx.Commit(), "committing transaction")
}

func (s *DB) Close() error {
	return s.db.Close()
}

type record struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

type tx struct {
	ctx      context.Context
	tx       *sqlx.Tx
	readOnly bool
}

func (t *tx) Get(collection, id string) ([]byte, error) {
	var data []byte
	err := t.tx.GetContext(t.ctx, &data, "SELECT data FROM kv_records WHERE collection = $1 AND id = $2", collection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrRecordNotFound
		}
		return nil, err
	}
	return data, nil
}

func (t *tx) Put(collection, id string, data []byte) error {
	if t.readOnly {
		return core.ErrReadOnlyTx
	}
	if id == "" {
		return errors.New("empty record id")
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO kv_records (collection, id, data) VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		collection, id, string(data),
	)
	return err
}

func (t *tx) Delete(collection, id string) error {
	if t.readOnly {
		return core.ErrReadOnlyTx
	}
	_, err := t.tx.ExecContext(t.ctx, "DELETE FROM kv_records WHERE collection = $1 AND id = $2", collection, id)
	return err
}

func (t *tx) ForEach(collection string, fn func(id string, data []byte) error) error {
	// rows are fully read first: fn may query the same transaction
	var recs []record
	err := t.tx.SelectContext(t.ctx, &recs, "SELECT id, data FROM kv_records WHERE collection = $1 ORDER BY id COLLATE \"C\"", collection)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err = fn(rec.ID, rec.Data); err != nil {
			return err
		}
	}
	return nil
}
