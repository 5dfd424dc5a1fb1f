// Package core provides the fundamental building blocks of the argil data layer.
// This file defines the lazy, chainable query builder. Chain methods accumulate
// state and return the builder; a terminal operation compiles the state once,
// issues exactly one driver round trip, and returns.
package core

import (
	"context"
	"fmt"
	"sort"
)

// trashMode selects how soft-deleted records participate in a query.
type trashMode int

const (
	trashDefault trashMode = iota // exclude soft-deleted records
	trashWith                     // include soft-deleted records
	trashOnly                     // only soft-deleted records
)

// Query is the chainable builder for one model.
//
// A builder is single-use per terminal call but safely re-chainable before
// execution. Normalization errors raised while chaining are deferred and
// surfaced by the terminal operation.
//
// Example:
//
//	page, err := users.Query().
//		Where(core.Filter{"age": core.Ops{"gte": 18}}).
//		OrderBy("name", "asc").
//		Limit(10).
//		FindAll(ctx)
type Query struct {
	model      *Model
	condition  *Condition
	projection []string
	sort       []Sort
	skip       int
	limit      int
	mode       trashMode
	err        error
}

// Query starts a new builder for the model.
func (m *Model) Query() *Query {
	return &Query{model: m}
}

// Where AND-merges a condition into the builder.
//
// It accepts a Filter map, a raw map[string]any, a *Condition tree, or a bare
// scalar (expanded to a primary-key equality).
func (q *Query) Where(condition any) *Query {
	if q.err != nil {
		return q
	}
	normalized, err := normalizeCondition(condition, q.model.schema)
	if err != nil {
		q.err = err
		return q
	}
	q.condition = foldConditionsAnd(q.condition, normalized)
	return q
}

// Scope applies a named condition factory registered on the schema.
func (q *Query) Scope(name string, args ...any) *Query {
	if q.err != nil {
		return q
	}
	fn := q.model.schema.findScope(name)
	if fn == nil {
		q.err = fmt.Errorf("argil: unknown scope %q on %q", name, q.model.schema.Collection)
		return q
	}
	return q.Where(fn(args...))
}

// Select restricts the fields returned by find terminals.
func (q *Query) Select(fields ...string) *Query {
	q.projection = append(q.projection, fields...)
	return q
}

// OrderBy appends an ordering rule. Order accepts 1, -1, "asc", "ascending",
// "desc", and "descending".
func (q *Query) OrderBy(field string, order any) *Query {
	q.sort = append(q.sort, Sort{FieldName: field, Order: NormalizeOrder(order)})
	return q
}

// Sort accepts either the string shorthand "asc"/"desc", which normalizes
// against the primary key, or a map of field names to directions. Map entries
// are applied in field-name order; use OrderBy chains when the relative
// precedence of sort fields matters.
func (q *Query) Sort(spec any) *Query {
	switch v := spec.(type) {
	case string:
		return q.OrderBy(q.model.schema.PrimaryKey, v)
	case map[string]any:
		fields := make([]string, 0, len(v))
		for field := range v {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			q.OrderBy(field, v[field])
		}
		return q
	default:
		q.err = fmt.Errorf("argil: unsupported sort spec %T", spec)
		return q
	}
}

// Skip sets the number of records to skip.
func (q *Query) Skip(n int) *Query {
	q.skip = n
	return q
}

// Limit sets the maximum number of records to return.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// WithTrashed includes soft-deleted records in the results.
func (q *Query) WithTrashed() *Query {
	q.mode = trashWith
	return q
}

// OnlyTrashed restricts the results to soft-deleted records.
func (q *Query) OnlyTrashed() *Query {
	q.mode = trashOnly
	return q
}

// compile applies the soft-delete mode and produces the driver Where. It is
// invoked once per terminal operation.
func (q *Query) compile() (*Where, error) {
	if q.err != nil {
		return nil, q.err
	}
	return &Where{
		Condition:  q.model.applyTrash(q.condition, q.mode),
		Projection: q.projection,
		Limit:      q.limit,
		Offset:     q.skip,
		Sort:       q.sort,
	}, nil
}

// compileCondition is the condition-only variant of compile, for terminals
// that take no sort/skip/limit (count, exists, set-based writes).
func (q *Query) compileCondition() (*Condition, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.model.applyTrash(q.condition, q.mode), nil
}

// FindOne returns at most one record matching the builder state, or nil.
// Sort, skip, and limit (if supplied) determine which record is "first".
func (q *Query) FindOne(ctx context.Context) (Record, error) {
	return q.model.findOne(ctx, q)
}

// FindAll returns the ordered sequence of matching records, possibly empty.
func (q *Query) FindAll(ctx context.Context) ([]Record, error) {
	return q.model.findAll(ctx, q)
}

// Count returns the number of matching records without hydrating them.
func (q *Query) Count(ctx context.Context) (int64, error) {
	return q.model.count(ctx, q)
}

// Exists reports whether at least one record matches, using a limit-style probe.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	return q.model.exists(ctx, q)
}

// Update runs the full hook, validation, and timestamp pipeline against the
// first matching record only, then returns the refreshed record, or nil when
// nothing matched. Bulk updates go through UpdateMany.
func (q *Query) Update(ctx context.Context, payload Record) (Record, error) {
	return q.model.updateFirst(ctx, q, payload)
}

// UpdateMany issues one set-based update for every matching record, skipping
// per-record hooks, and returns the modified count.
func (q *Query) UpdateMany(ctx context.Context, changes Changes) (int64, error) {
	return q.model.updateMany(ctx, q, changes)
}

// Delete removes the matching records and returns the affected count. On a
// soft-delete schema it sets the deleted-at field instead of removing rows.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	return q.model.delete(ctx, q)
}

// DeleteMany is an alias for Delete; deletes are always set-based.
func (q *Query) DeleteMany(ctx context.Context) (int64, error) {
	return q.model.delete(ctx, q)
}

// ForceDelete physically removes matching records, bypassing soft delete.
func (q *Query) ForceDelete(ctx context.Context) (int64, error) {
	return q.model.forceDelete(ctx, q)
}

// Restore clears the deleted-at field of matching soft-deleted records and
// returns the affected count.
func (q *Query) Restore(ctx context.Context) (int64, error) {
	return q.model.restore(ctx, q)
}

// Paginate returns one page of matching records along with the total count
// and page arithmetic.
func (q *Query) Paginate(ctx context.Context, page, pageSize int) (*Page, error) {
	return q.model.paginate(ctx, q, page, pageSize)
}

// Aggregate passes a backend-native pipeline through, prefixed with the
// compiled condition as an implicit first stage when non-empty.
func (q *Query) Aggregate(ctx context.Context, pipeline ...any) ([]Record, error) {
	return q.model.aggregate(ctx, q, pipeline)
}

// Increment atomically adds delta to a numeric field on every matching record.
func (q *Query) Increment(ctx context.Context, field string, delta float64) (int64, error) {
	return q.model.increment(ctx, q, field, delta)
}

// Decrement atomically subtracts delta from a numeric field on every matching record.
func (q *Query) Decrement(ctx context.Context, field string, delta float64) (int64, error) {
	return q.model.increment(ctx, q, field, -delta)
}

// Page is the result of a Paginate terminal.
type Page struct {
	Data       []Record
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}
