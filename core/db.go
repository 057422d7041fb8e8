package core

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrQuotaExceeded  = errors.New("storage quota exceeded, delete large contents and try again")
	ErrReadOnlyTx     = errors.New("write in a read-only transaction")
)

type (
	// DBTx is a transaction over id-addressed collections of JSON records.
	// ForEach walks a collection in ascending id order. A missing collection is empty.
	DBTx interface {
		Get(collection, id string) ([]byte, error)
		Put(collection, id string, data []byte) error
		Delete(collection, id string) error
		ForEach(collection string, fn func(id string, data []byte) error) error
	}

	// DB runs transactions. Update transactions are serialized: a single writer at a time,
	// and fn's writes are committed all together or not at all.
	DB interface {
		View(ctx context.Context, fn func(tx DBTx) error) error
		Update(ctx context.Context, fn func(tx DBTx) error) error
		Close() error
	}
)

// EncodeRecord serializes a record for storage.
func EncodeRecord(v interface{}) ([]byte, error) {
	return sonic.Marshal(v)
}

// DecodeRecord deserializes a stored record.
func DecodeRecord(data []byte, v interface{}) error {
	return sonic.Unmarshal(data, v)
}

// GetRecord loads the record `id` of `collection`. An undecodable record is reported as missing.
func GetRecord[T any](tx DBTx, collection, id string) (T, error) {
	var rec T
	data, err := tx.Get(collection, id)
	if err != nil {
		return rec, err
	}
	if err = DecodeRecord(data, &rec); err != nil {
		var zero T
		return zero, ErrRecordNotFound
	}
	return rec, nil
}

// ListRecords loads every record of `collection` accepted by `keep` (nil keeps all),
// in ascending id order. Undecodable records are skipped.
func ListRecords[T any](tx DBTx, collection string, keep func(T) bool) ([]T, error) {
	out := make([]T, 0)
	err := tx.ForEach(collection, func(_ string, data []byte) error {
		var rec T
		if err := DecodeRecord(data, &rec); err != nil {
			return nil
		}
		if keep == nil || keep(rec) {
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// CountRecords counts the records of `collection` accepted by `keep`.
func CountRecords[T any](tx DBTx, collection string, keep func(T) bool) (int, error) {
	recs, err := ListRecords(tx, collection, keep)
	return len(recs), err
}

// PutRecord stores `v` as the record `id` of `collection`.
func PutRecord(tx DBTx, collection, id string, v interface{}) error {
	data, err := EncodeRecord(v)
	if err != nil {
		return err
	}
	return tx.Put(collection, id, data)
}

// RecordExists reports whether `collection` holds a record `id`.
func RecordExists(tx DBTx, collection, id string) (bool, error) {
	_, err := tx.Get(collection, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrRecordNotFound):
		return false, nil
	default:
		return false, err
	}
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
