// Package core provides the fundamental building blocks of the argil data layer.
// It defines abstractions for queries, schemas, records, and drivers.
package core

import "context"

// Sort represents an ordering rule used in queries.
//
// FieldName specifies which column/field to sort by.
// Order determines the direction: 1 for ascending (ASC), -1 for descending (DESC).
type Sort struct {
	FieldName string
	Order     int // 1 = ASC, -1 = DESC
}

// Where encapsulates the compiled query state handed to a driver.
//
// It contains:
//   - Condition: the root filter condition, already carrying any soft-delete clause.
//   - Projection: field names to return; empty means every field.
//   - Limit: maximum number of results to return.
//   - Offset: number of rows to skip.
//   - Sort: list of Sort rules to apply.
type Where struct {
	Condition  *Condition
	Projection []string
	Limit      int
	Offset     int
	Sort       []Sort
}

// Changes represents a set of field updates, mapping field names to new values.
// It is used by Update operations.
type Changes map[string]any

// Transaction defines the contract for database transaction management.
//
// Implementations must provide atomic commit and rollback semantics.
type Transaction interface {
	// Commit finalizes the transaction and makes all changes permanent.
	Commit(ctx context.Context) error
	// Rollback reverts the transaction, discarding all changes.
	Rollback(ctx context.Context) error
}

// Driver defines the contract for storage backends.
//
// Each driver (postgres, mongo, sqlite, memory) implements this interface. A
// driver call is exactly one backend round trip; the core never retries and
// delegates cancellation and timeouts entirely to the driver through ctx.
//
// Not-found outcomes are not errors: FindOne returns a nil Record, counts
// return zero. Driver errors are wrapped with an operation-specific prefix
// ("<backend> <op> error: <cause>") before being returned.
type Driver interface {
	// Connect establishes a new connection or validates connectivity.
	Connect(ctx context.Context) error
	// Ping checks if the underlying backend is reachable.
	Ping(ctx context.Context) error
	// Close terminates the connection and releases resources.
	Close(ctx context.Context) error
	// IsConnected reports whether the driver currently holds a usable connection.
	IsConnected(ctx context.Context) bool

	// Transaction starts a new backend transaction.
	Transaction(ctx context.Context) (Transaction, error)

	// Insert persists one record and returns the backend's canonical row,
	// including any backend-assigned primary key.
	Insert(ctx context.Context, schema *Schema, record Record) (Record, error)
	// FindOne retrieves at most one record matching the query, or nil.
	FindOne(ctx context.Context, schema *Schema, where *Where) (Record, error)
	// FindMany retrieves every record matching the query, possibly none.
	FindMany(ctx context.Context, schema *Schema, where *Where) ([]Record, error)
	// Update applies changes to records matching the condition and returns
	// the number of records modified. An empty change set is a no-op
	// reporting zero.
	Update(ctx context.Context, schema *Schema, condition *Condition, changes Changes) (int64, error)
	// Delete physically removes records matching the condition and returns
	// the number of records removed.
	Delete(ctx context.Context, schema *Schema, condition *Condition) (int64, error)
	// Count returns the number of records matching the condition.
	Count(ctx context.Context, schema *Schema, condition *Condition) (int64, error)
	// Exists reports whether at least one record matches, using a limit-style
	// probe rather than a full count.
	Exists(ctx context.Context, schema *Schema, condition *Condition) (bool, error)
	// Increment atomically adds delta to a numeric field on every matching
	// record and returns the number of records modified.
	Increment(ctx context.Context, schema *Schema, condition *Condition, field string, delta float64) (int64, error)
	// Aggregate passes a backend-native pipeline through, prefixed with the
	// compiled condition as an implicit first stage when non-nil.
	Aggregate(ctx context.Context, schema *Schema, condition *Condition, pipeline []any) ([]Record, error)

	// CreateIndex compiles and issues one index creation call. When force is
	// set, a same-named existing index is dropped first.
	CreateIndex(ctx context.Context, schema *Schema, index *IndexDescriptor, force bool) error
	// DropIndexes removes every non-primary index of the schema's collection.
	DropIndexes(ctx context.Context, schema *Schema) error
}
