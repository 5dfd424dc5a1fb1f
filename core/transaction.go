// Package core provides the fundamental building blocks of the argil data layer.
// This file defines transaction passthrough. The core opens a backend-native
// transaction, carries it in the context, and commits or rolls back around a
// callback; it adds no savepoint or nesting semantics of its own.
package core

import "context"

type transactionContextKey struct{}

// WithTransaction returns a context carrying the given transaction. Drivers
// pick it up to route their round trips through the transaction.
func WithTransaction(ctx context.Context, tx Transaction) context.Context {
	return context.WithValue(ctx, transactionContextKey{}, tx)
}

// TransactionFrom extracts the transaction carried by the context, if any.
func TransactionFrom(ctx context.Context) (Transaction, bool) {
	tx, ok := ctx.Value(transactionContextKey{}).(Transaction)
	return tx, ok
}

// TransactionFunc is the callback executed inside RunTransaction. It receives
// a context already carrying the open transaction.
type TransactionFunc func(ctx context.Context) error

// RunTransaction opens a driver transaction, runs fn with the transaction in
// the context, commits on nil return and rolls back on error. A rollback
// failure is reported only when the commit path was not reached; the
// original callback error always wins.
func RunTransaction(ctx context.Context, driver Driver, fn TransactionFunc) error {
	tx, err := driver.Transaction(ctx)
	if err != nil {
		return err
	}
	txCtx := WithTransaction(ctx, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
