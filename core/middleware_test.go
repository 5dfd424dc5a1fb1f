package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchOperation_RunsMiddlewaresInRegistrationOrder(t *testing.T) {
	ResetMiddlewares()
	t.Cleanup(ResetMiddlewares)

	var trace []string
	named := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, op *OperationContext) error {
				trace = append(trace, name+":in")
				err := next(ctx, op)
				trace = append(trace, name+":out")
				return err
			}
		}
	}
	Use(named("first"))
	Use(named("second"))

	op := newOperationContext(OperationFind, NewSchema("users"), "")
	err := dispatchOperation(context.Background(), op, func() error {
		trace = append(trace, "exec")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first:in", "second:in", "exec", "second:out", "first:out"}, trace)
}

func TestDispatchOperation_HitSkipsExec(t *testing.T) {
	ResetMiddlewares()
	t.Cleanup(ResetMiddlewares)

	Use(func(next Handler) Handler {
		return func(ctx context.Context, op *OperationContext) error {
			op.Result = Record{"cached": true}
			op.Hit = true
			return next(ctx, op)
		}
	})

	executed := false
	op := newOperationContext(OperationFind, NewSchema("users"), "users:one:x")
	err := dispatchOperation(context.Background(), op, func() error {
		executed = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, executed)
	assert.Equal(t, Record{"cached": true}, op.Result)
}

func TestCacheMiddleware_ReadThroughAndInvalidate(t *testing.T) {
	ResetMiddlewares()
	t.Cleanup(ResetMiddlewares)

	cache := NewMemoryCache()
	Use(CacheMiddleware(cache))

	schema := NewSchema("users", CacheTTL(time.Minute))
	ctx := context.Background()

	calls := 0
	read := func() (*OperationContext, error) {
		op := newOperationContext(OperationFind, schema, "users:one:k")
		err := dispatchOperation(ctx, op, func() error {
			calls++
			op.Result = Record{"id": "1"}
			return nil
		})
		return op, err
	}

	first, err := read()
	require.NoError(t, err)
	assert.False(t, first.Hit)

	second, err := read()
	require.NoError(t, err)
	assert.True(t, second.Hit)
	assert.Equal(t, Record{"id": "1"}, second.Result)
	assert.Equal(t, 1, calls)

	// a mutation on the collection invalidates its cached reads
	mutation := newOperationContext(OperationUpdate, schema, "")
	require.NoError(t, dispatchOperation(ctx, mutation, func() error { return nil }))

	third, err := read()
	require.NoError(t, err)
	assert.False(t, third.Hit)
	assert.Equal(t, 2, calls)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	cache := NewMemoryCache()
	cache.Set("users", "k", "v", 10*time.Millisecond)

	value, ok := cache.Get("users", "k")
	require.True(t, ok)
	assert.Equal(t, "v", value)

	time.Sleep(20 * time.Millisecond)
	_, ok = cache.Get("users", "k")
	assert.False(t, ok)
}

func TestWhereKey_DeterministicAcrossEquivalentFilters(t *testing.T) {
	schema := NewSchema("users")
	first, err := normalizeCondition(Filter{"b": 1, "a": Ops{"gte": 2, "lt": 9}}, schema)
	require.NoError(t, err)
	second, err := normalizeCondition(Filter{"a": Ops{"lt": 9, "gte": 2}, "b": 1}, schema)
	require.NoError(t, err)

	left := whereKey(&Where{Condition: first, Limit: 5, Sort: []Sort{{FieldName: "a", Order: -1}}})
	right := whereKey(&Where{Condition: second, Limit: 5, Sort: []Sort{{FieldName: "a", Order: -1}}})
	assert.Equal(t, left, right)

	other := whereKey(&Where{Condition: first, Limit: 6})
	assert.NotEqual(t, left, other)
}
