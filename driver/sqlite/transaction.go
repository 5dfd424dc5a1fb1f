// Package sqlite provides the SQLite driver for the argil data layer.
// This file defines the sqliteTransaction type, which adapts *sql.Tx
// to the core.Transaction interface used by the data layer.
package sqlite

import (
	"context"
	"database/sql"
)

// sqliteTransaction wraps a *sql.Tx and implements the core.Transaction interface.
type sqliteTransaction struct {
	transaction *sql.Tx
}

// Commit finalizes the transaction, making all changes permanent.
func (transaction *sqliteTransaction) Commit(ctx context.Context) error {
	return transaction.transaction.Commit()
}

// Rollback aborts the transaction, discarding all changes made during it.
func (transaction *sqliteTransaction) Rollback(ctx context.Context) error {
	return transaction.transaction.Rollback()
}
