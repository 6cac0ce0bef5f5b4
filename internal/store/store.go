// Package store defines the contract of the durable record store.
//
// A Store owns the persisted record collection. Mutations run inside a write
// transaction; reads run inside a read-only one. Every operation is blocking
// for its caller and safe to call from several goroutines, so callers that need
// asynchronous behavior run them off their own event loop.
package store

import (
	"context"
	"errors"

	"github.com/idilsaglam/tracker/internal/model"
)

// ErrClosed is returned by operations issued after Close.
var ErrClosed = errors.New("store: closed")

// Tx is the view of a write transaction handed to Update callbacks.
type Tx interface {
	Get(ctx context.Context, id string) (model.Record, bool, error)
	Put(ctx context.Context, rec model.Record) error
	Clear(ctx context.Context) error
}

// Store is the durable record collection keyed by Record.ID.
type Store interface {
	// Get returns the record for id. A missing record is (zero, false, nil).
	Get(ctx context.Context, id string) (model.Record, bool, error)
	// Put upserts rec, overwriting any record with the same ID.
	Put(ctx context.Context, rec model.Record) error
	// GetAll returns every record ordered by ID; empty, not an error, when there are none.
	GetAll(ctx context.Context) ([]model.Record, error)
	// Clear removes every record.
	Clear(ctx context.Context) error
	// CountWhere counts records whose completed flag equals completed, using the index.
	CountWhere(ctx context.Context, completed bool) (int, error)
	// Update runs fn inside one write transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// Version reports the schema version the store was opened with.
	Version() int
	// Path names where the collection lives.
	Path() string
	Close() error
}

// PutAll upserts recs in a single write transaction.
func PutAll(ctx context.Context, s Store, recs []model.Record) error {
	return s.Update(ctx, func(tx Tx) error {
		for _, r := range recs {
			if err := tx.Put(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceAll clears the collection and writes recs in a single write
// transaction, so no reader observes the collection half-replaced.
func ReplaceAll(ctx context.Context, s Store, recs []model.Record) error {
	return s.Update(ctx, func(tx Tx) error {
		if err := tx.Clear(ctx); err != nil {
			return err
		}
		for _, r := range recs {
			if err := tx.Put(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
}
