// Package core provides the fundamental building blocks of the argil data layer.
// This file defines the operation middleware chain. Middlewares wrap every
// driver round trip and see a shared OperationContext, which carries the
// operation kind, the schema, and (for reads) a cache slot.
package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Operation identifies the kind of driver round trip being dispatched.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationFind   Operation = "find"
)

// OperationContext is the mutable payload threaded through the middleware
// chain for one driver round trip.
//
// CacheKey is non-empty only for reads on schemas with a cache policy. A
// middleware that satisfies the read from cache stores the value in Result
// and sets Hit; the dispatcher then skips the driver call.
type OperationContext struct {
	Operation Operation
	Schema    *Schema
	CacheKey  string
	Result    any
	Hit       bool
}

func newOperationContext(operation Operation, schema *Schema, cacheKey string) *OperationContext {
	return &OperationContext{Operation: operation, Schema: schema, CacheKey: cacheKey}
}

// Handler executes one step of the operation chain.
type Handler func(ctx context.Context, op *OperationContext) error

// Middleware wraps a handler with cross-cutting behavior.
type Middleware func(next Handler) Handler

var (
	middlewareMutex sync.RWMutex
	middlewares     []Middleware
)

// Use appends a middleware to the global chain. Middlewares run in
// registration order around every driver round trip of every model.
//
// Example:
//
//	core.Use(core.LoggerMiddleware(logrus.StandardLogger()))
//	core.Use(core.CacheMiddleware(core.NewMemoryCache()))
func Use(middleware Middleware) {
	middlewareMutex.Lock()
	defer middlewareMutex.Unlock()
	middlewares = append(middlewares, middleware)
}

// ResetMiddlewares clears the global chain. Intended for tests.
func ResetMiddlewares() {
	middlewareMutex.Lock()
	defer middlewareMutex.Unlock()
	middlewares = nil
}

// dispatchOperation runs exec through the registered middleware chain. exec
// performs the actual driver round trip; a middleware that sets op.Hit
// short-circuits it.
func dispatchOperation(ctx context.Context, op *OperationContext, exec func() error) error {
	handler := Handler(func(ctx context.Context, op *OperationContext) error {
		if op.Hit {
			return nil
		}
		return exec()
	})

	middlewareMutex.RLock()
	chain := middlewares
	middlewareMutex.RUnlock()
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}
	return handler(ctx, op)
}

// LoggerMiddleware logs every operation with its collection, kind, duration,
// and outcome through the given logrus logger.
func LoggerMiddleware(logger *logrus.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, op *OperationContext) error {
			started := time.Now()
			err := next(ctx, op)
			entry := logger.WithFields(logrus.Fields{
				"collection": op.Schema.Collection,
				"operation":  op.Operation,
				"duration":   time.Since(started).String(),
				"cacheHit":   op.Hit,
			})
			if err != nil {
				entry.WithError(err).Error("operation failed")
				return err
			}
			entry.Debug("operation completed")
			return nil
		}
	}
}

// Cache is the read-through cache consumed by CacheMiddleware. Entries are
// scoped by collection so mutations can invalidate one collection at a time.
type Cache interface {
	Get(collection, key string) (any, bool)
	Set(collection, key string, value any, ttl time.Duration)
	Invalidate(collection string)
}

// CacheMiddleware serves reads from the cache when the schema declares a
// cache TTL and invalidates the whole collection after any successful
// mutation. Consistency is best-effort within the TTL window.
func CacheMiddleware(cache Cache) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, op *OperationContext) error {
			if op.Operation == OperationFind && op.CacheKey != "" {
				if value, ok := cache.Get(op.Schema.Collection, op.CacheKey); ok {
					op.Result = value
					op.Hit = true
					return next(ctx, op)
				}
				if err := next(ctx, op); err != nil {
					return err
				}
				cache.Set(op.Schema.Collection, op.CacheKey, op.Result, op.Schema.CacheTTLValue())
				return nil
			}

			err := next(ctx, op)
			if err == nil && op.Operation != OperationFind {
				cache.Invalidate(op.Schema.Collection)
			}
			return err
		}
	}
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// memoryCache is a process-local Cache keyed by collection then cache key.
type memoryCache struct {
	mutex   sync.RWMutex
	entries map[string]map[string]cacheEntry
}

// NewMemoryCache returns an in-process Cache suitable for single-node use.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string]map[string]cacheEntry)}
}

func (c *memoryCache) Get(collection, key string) (any, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	bucket, ok := c.entries[collection]
	if !ok {
		return nil, false
	}
	entry, ok := bucket[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *memoryCache) Set(collection, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	bucket, ok := c.entries[collection]
	if !ok {
		bucket = make(map[string]cacheEntry)
		c.entries[collection] = bucket
	}
	bucket[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (c *memoryCache) Invalidate(collection string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, collection)
}

// whereKey renders a compiled Where as a stable string, used to build cache
// keys. Equal queries render identically because condition normalization
// already orders fields and operators deterministically.
func whereKey(where *Where) string {
	if where == nil {
		return "{}"
	}
	var b strings.Builder
	b.WriteString(conditionKey(where.Condition))
	if len(where.Projection) > 0 {
		projection := append([]string(nil), where.Projection...)
		sort.Strings(projection)
		fmt.Fprintf(&b, "|select=%s", strings.Join(projection, ","))
	}
	for _, s := range where.Sort {
		fmt.Fprintf(&b, "|sort=%s:%d", s.FieldName, s.Order)
	}
	if where.Offset > 0 || where.Limit > 0 {
		fmt.Fprintf(&b, "|window=%d,%d", where.Offset, where.Limit)
	}
	return b.String()
}

func conditionKey(condition *Condition) string {
	if condition == nil {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("(")
	if condition.FieldName != "" {
		b.WriteString(condition.FieldName)
	}
	if condition.Operator != nil {
		fmt.Fprintf(&b, " %s %v", string(*condition.Operator), condition.Value)
	}
	for _, child := range condition.Children {
		b.WriteString(conditionKey(child))
	}
	b.WriteString(")")
	return b.String()
}
