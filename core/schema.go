// Package core provides the fundamental building blocks of the argil data layer.
// This file defines the schema descriptor: the immutable per-entity registration
// that names the collection, primary key, fields, policies, scopes, virtuals,
// relations, and indexes.
package core

import "time"

// Default field names used by the timestamp and soft-delete policies.
const (
	DefaultCreatedAtField = "createdAt"
	DefaultUpdatedAtField = "updatedAt"
	DefaultDeletedAtField = "deletedAt"
)

// ScopeFunc is a named, reusable condition factory registered on a schema.
type ScopeFunc func(args ...any) Filter

// VirtualFunc computes a derived field value from a hydrated record on demand.
type VirtualFunc func(record Record) any

// Schema is the per-entity descriptor. It is built once via NewSchema and
// treated as read-only after registration; models share it by reference.
type Schema struct {
	Database   string
	Collection string
	PrimaryKey string
	Fields     []*Field

	fieldsByName map[string]*Field

	softDeleteField string // empty when soft delete is disabled
	createdAtField  string // empty when timestamps are disabled
	updatedAtField  string

	scopes    map[string]ScopeFunc
	virtuals  map[string]VirtualFunc
	relations map[string]*Relation
	indexes   []*IndexDescriptor
	hooks     map[Hook][]HookFunc

	cacheTTL time.Duration // zero disables read caching for this schema
}

// SchemaOption represents a function that customizes the schema under construction.
type SchemaOption func(*Schema)

// NewSchema builds a schema descriptor for the given collection/table name.
//
// Example:
//
//	userSchema := core.NewSchema("users",
//		core.Fields(
//			core.NewField("id", core.TypeUUID, core.PrimaryKey(), core.DefaultFunc(core.NewUUID)),
//			core.NewField("name", core.TypeString, core.Required(), core.MaxLength(80)),
//			core.NewField("email", core.TypeString, core.Required(), core.Pattern(`@`)),
//		),
//		core.SoftDelete(),
//		core.Timestamps(),
//	)
func NewSchema(collection string, options ...SchemaOption) *Schema {
	schema := &Schema{
		Collection:   collection,
		PrimaryKey:   "id",
		fieldsByName: make(map[string]*Field),
		scopes:       make(map[string]ScopeFunc),
		virtuals:     make(map[string]VirtualFunc),
		relations:    make(map[string]*Relation),
		hooks:        make(map[Hook][]HookFunc),
	}
	for _, option := range options {
		option(schema)
	}
	for _, field := range schema.Fields {
		schema.fieldsByName[field.Name] = field
		if field.IsPrimaryKey {
			schema.PrimaryKey = field.Name
		}
	}
	return schema
}

// Fields declares the schema fields, in validation order.
func Fields(fields ...*Field) SchemaOption {
	return func(s *Schema) { s.Fields = append(s.Fields, fields...) }
}

// Database sets the database name for the schema. Drivers with a default
// database fall back to it when this is empty.
func Database(name string) SchemaOption {
	return func(s *Schema) { s.Database = name }
}

// WithPrimaryKey overrides the primary key field name (default "id").
func WithPrimaryKey(name string) SchemaOption {
	return func(s *Schema) { s.PrimaryKey = name }
}

// SoftDelete enables soft deletes on the default "deletedAt" field.
func SoftDelete() SchemaOption {
	return SoftDeleteField(DefaultDeletedAtField)
}

// SoftDeleteField enables soft deletes on a custom field name.
func SoftDeleteField(name string) SchemaOption {
	return func(s *Schema) { s.softDeleteField = name }
}

// Timestamps enables automatic createdAt/updatedAt maintenance on the default
// field names.
func Timestamps() SchemaOption {
	return TimestampFields(DefaultCreatedAtField, DefaultUpdatedAtField)
}

// TimestampFields enables automatic timestamps on custom field names.
func TimestampFields(createdAt, updatedAt string) SchemaOption {
	return func(s *Schema) {
		s.createdAtField = createdAt
		s.updatedAtField = updatedAt
	}
}

// Scope registers a named condition factory, applied via Query.Scope.
//
// Example:
//
//	core.Scope("adults", func(args ...any) core.Filter {
//		return core.Filter{"age": core.Ops{"gte": 18}}
//	})
func Scope(name string, fn ScopeFunc) SchemaOption {
	return func(s *Schema) { s.scopes[name] = fn }
}

// Virtual registers a computed field, evaluated on demand via Schema.ComputeVirtual.
func Virtual(name string, fn VirtualFunc) SchemaOption {
	return func(s *Schema) { s.virtuals[name] = fn }
}

// Indexes declares the schema's index descriptors.
func Indexes(indexes ...*IndexDescriptor) SchemaOption {
	return func(s *Schema) { s.indexes = append(s.indexes, indexes...) }
}

// CacheTTL sets the read-cache time-to-live for this schema. Zero (the
// default) keeps the schema out of the cache middleware entirely.
func CacheTTL(ttl time.Duration) SchemaOption {
	return func(s *Schema) { s.cacheTTL = ttl }
}

// OnHook registers a lifecycle hook at construction time.
// Schema.RegisterHook does the same after construction.
func OnHook(hook Hook, fn HookFunc) SchemaOption {
	return func(s *Schema) { s.hooks[hook] = append(s.hooks[hook], fn) }
}

// Field returns the declared field with the given name, or nil.
func (s *Schema) Field(name string) *Field {
	return s.fieldsByName[name]
}

// SoftDeleteEnabled reports whether the schema carries a soft-delete field.
func (s *Schema) SoftDeleteEnabled() bool {
	return s.softDeleteField != ""
}

// SoftDeleteFieldName returns the soft-delete field name, or "".
func (s *Schema) SoftDeleteFieldName() string {
	return s.softDeleteField
}

// TimestampsEnabled reports whether automatic timestamps are active.
func (s *Schema) TimestampsEnabled() bool {
	return s.createdAtField != "" && s.updatedAtField != ""
}

// CreatedAtFieldName returns the created-at field name, or "".
func (s *Schema) CreatedAtFieldName() string { return s.createdAtField }

// UpdatedAtFieldName returns the updated-at field name, or "".
func (s *Schema) UpdatedAtFieldName() string { return s.updatedAtField }

// IndexDescriptors returns the declared indexes.
func (s *Schema) IndexDescriptors() []*IndexDescriptor {
	return s.indexes
}

// CacheTTLValue returns the configured read-cache TTL.
func (s *Schema) CacheTTLValue() time.Duration {
	return s.cacheTTL
}

// applyGetters returns a view of the record with every declared get transform
// applied. The input is cloned only when at least one getter fires, so records
// shared with the cache are never mutated in place.
func (s *Schema) applyGetters(record Record) Record {
	out := record
	cloned := false
	for _, field := range s.Fields {
		if field.GetTransform == nil {
			continue
		}
		value, ok := out[field.Name]
		if !ok {
			continue
		}
		if !cloned {
			out = record.Clone()
			cloned = true
		}
		out[field.Name] = field.GetTransform(value)
	}
	return out
}

// ComputeVirtual evaluates a registered virtual field against a record.
// The second return reports whether the virtual exists.
func (s *Schema) ComputeVirtual(name string, record Record) (any, bool) {
	fn, ok := s.virtuals[name]
	if !ok {
		return nil, false
	}
	return fn(record), true
}

// findScope returns the scope registered under name, or nil.
func (s *Schema) findScope(name string) ScopeFunc {
	return s.scopes[name]
}

// clone returns a shallow copy of the schema with independent top-level
// fields, used by Model.WithDatabase.
func (s *Schema) clone() *Schema {
	out := *s
	return &out
}
