// Package core provides the fundamental building blocks of the argil data layer.
// This file defines Model, the entry point for working with one schema. A model
// owns the mutation pipeline (hooks, validation, timestamp injection,
// persistence, cache invalidation), query terminals, relations, soft-delete
// semantics, and index management.
package core

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

var (
	driverFactoryMutex sync.RWMutex
	driverFactory      func(ctx context.Context) (Driver, error)
)

// SetDriverFactory registers the process-wide factory used to lazily
// self-initialize models constructed without an explicit driver. Setting the
// factory twice replaces it; models that already initialized keep their driver,
// so repeated initialization never duplicates connections.
func SetDriverFactory(factory func(ctx context.Context) (Driver, error)) {
	driverFactoryMutex.Lock()
	defer driverFactoryMutex.Unlock()
	driverFactory = factory
}

// Model represents a repository-like abstraction over one schema.
//
// It composes the schema engine, hook pipeline, query builder, relation
// resolver, and index manager on top of a Driver. Models hold no locks and
// perform no in-process synchronization: every operation is I/O bound and two
// terminals on the same model run fully concurrently.
type Model struct {
	schema *Schema
	driver Driver

	initOnce sync.Once
	initErr  error
}

// NewModel creates a model bound to a schema and driver. A nil driver defers
// to the factory registered via SetDriverFactory on first use.
//
// Example:
//
//	users := core.NewModel(userSchema, postgresDriver)
func NewModel(schema *Schema, driver Driver) *Model {
	return &Model{schema: schema, driver: driver}
}

// Schema returns the model's descriptor.
func (m *Model) Schema() *Schema {
	return m.schema
}

// Driver returns the model's driver, lazily initializing it from the
// registered factory when none was injected. A missing factory is a fatal
// precondition (ErrNotConfigured); a failing factory is reported once with
// the underlying cause wrapped.
func (m *Model) Driver(ctx context.Context) (Driver, error) {
	if m.driver != nil {
		return m.driver, nil
	}
	m.initOnce.Do(func() {
		driverFactoryMutex.RLock()
		factory := driverFactory
		driverFactoryMutex.RUnlock()
		if factory == nil {
			m.initErr = ErrNotConfigured
			return
		}
		driver, err := factory(ctx)
		if err != nil {
			m.initErr = fmt.Errorf("argil: driver init error: %w", err)
			return
		}
		m.driver = driver
	})
	if m.initErr != nil {
		return nil, m.initErr
	}
	return m.driver, nil
}

// WithDatabase returns a model bound to a different database, cloning the
// schema and replacing only its database name. Useful for multi-tenant setups.
func (m *Model) WithDatabase(database string) *Model {
	schema := m.schema.clone()
	schema.Database = database
	return &Model{schema: schema, driver: m.driver}
}

// applyTrash injects the soft-delete clause mandated by the query's mode.
// Schemas without soft delete pass conditions through untouched.
func (m *Model) applyTrash(condition *Condition, mode trashMode) *Condition {
	if !m.schema.SoftDeleteEnabled() {
		return condition
	}
	field := m.schema.SoftDeleteFieldName()
	switch mode {
	case trashOnly:
		return foldConditionsAnd(condition, (&Condition{FieldName: field}).Nil().Not())
	case trashWith:
		return condition
	default:
		return foldConditionsAnd(condition, (&Condition{FieldName: field}).Nil())
	}
}

//region Create

// Create validates, coerces, and persists a new record, returning the
// refreshed record hydrated from the backend's canonical row.
//
// Pipeline: beforeValidate, defaults + coercion + validation, afterValidate,
// beforeCreate, beforeSave, timestamp injection, insert, cache invalidation,
// afterCreate, afterSave, event emission.
func (m *Model) Create(ctx context.Context, raw Record) (Record, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return nil, err
	}

	staging := raw.Clone()
	if err := m.schema.runHooks(ctx, BeforeValidate, staging); err != nil {
		return nil, err
	}
	staging, err = m.schema.ProcessFields(staging)
	if err != nil {
		return nil, err
	}
	if err := m.schema.Validate(staging); err != nil {
		return nil, err
	}
	if err := m.schema.runHooks(ctx, AfterValidate, staging); err != nil {
		return nil, err
	}
	if err := m.schema.runHooks(ctx, BeforeCreate, staging); err != nil {
		return nil, err
	}
	if err := m.schema.runHooks(ctx, BeforeSave, staging); err != nil {
		return nil, err
	}

	if m.schema.TimestampsEnabled() {
		now := time.Now()
		if _, ok := staging[m.schema.CreatedAtFieldName()]; !ok {
			staging[m.schema.CreatedAtFieldName()] = now
		}
		if _, ok := staging[m.schema.UpdatedAtFieldName()]; !ok {
			staging[m.schema.UpdatedAtFieldName()] = now
		}
	}

	var saved Record
	opCtx := newOperationContext(OperationInsert, m.schema, "")
	err = dispatchOperation(ctx, opCtx, func() error {
		out, err := driver.Insert(ctx, m.schema, staging)
		if err != nil {
			return err
		}
		saved = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	final := staging.Clone()
	if saved != nil {
		final.Merge(saved)
	}

	if err := m.schema.runHooks(ctx, AfterCreate, final); err != nil {
		return final, err
	}
	if err := m.schema.runHooks(ctx, AfterSave, final); err != nil {
		return final, err
	}
	// Listeners run on goroutines; give them a copy so caller mutations
	// of the returned record cannot race with them.
	Emit(EventInsert, InsertPayload{Schema: m.schema, Record: final.Clone()})
	return final, nil
}

//endregion

//region Read terminals

// Find returns at most one record matching the condition, or nil.
// The condition accepts the same shapes as Query.Where, including a bare
// primary-key value.
func (m *Model) Find(ctx context.Context, condition any) (Record, error) {
	return m.Query().Where(condition).FindOne(ctx)
}

// FindAll returns every record matching the condition.
func (m *Model) FindAll(ctx context.Context, condition any) ([]Record, error) {
	return m.Query().Where(condition).FindAll(ctx)
}

// Count returns the number of records matching the condition.
func (m *Model) Count(ctx context.Context, condition any) (int64, error) {
	return m.Query().Where(condition).Count(ctx)
}

// Exists reports whether at least one record matches the condition.
func (m *Model) Exists(ctx context.Context, condition any) (bool, error) {
	return m.Query().Where(condition).Exists(ctx)
}

// Paginate returns one page of records matching the condition.
func (m *Model) Paginate(ctx context.Context, condition any, page, pageSize int) (*Page, error) {
	return m.Query().Where(condition).Paginate(ctx, page, pageSize)
}

func (m *Model) findOne(ctx context.Context, q *Query) (Record, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return nil, err
	}
	where, err := q.compile()
	if err != nil {
		return nil, err
	}

	opCtx := newOperationContext(OperationFind, m.schema, m.readCacheKey("one", where))
	err = dispatchOperation(ctx, opCtx, func() error {
		record, err := driver.FindOne(ctx, m.schema, where)
		if err != nil {
			return err
		}
		opCtx.Result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	record, _ := opCtx.Result.(Record)
	if record == nil {
		return nil, nil
	}
	// The cache holds opCtx.Result by reference; hand the caller its own copy.
	if opCtx.CacheKey != "" {
		record = record.Clone()
	}
	record = m.schema.applyGetters(record)
	Emit(EventFind, FindPayload{Schema: m.schema, Where: where, Records: []Record{record.Clone()}})
	return record, nil
}

func (m *Model) findAll(ctx context.Context, q *Query) ([]Record, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return nil, err
	}
	where, err := q.compile()
	if err != nil {
		return nil, err
	}

	opCtx := newOperationContext(OperationFind, m.schema, m.readCacheKey("all", where))
	err = dispatchOperation(ctx, opCtx, func() error {
		records, err := driver.FindMany(ctx, m.schema, where)
		if err != nil {
			return err
		}
		opCtx.Result = records
		return nil
	})
	if err != nil {
		return nil, err
	}
	records, _ := opCtx.Result.([]Record)
	if len(records) > 0 {
		transformed := make([]Record, len(records))
		for i, record := range records {
			// The cache holds opCtx.Result by reference; hand the caller copies.
			if opCtx.CacheKey != "" {
				record = record.Clone()
			}
			transformed[i] = m.schema.applyGetters(record)
		}
		records = transformed
	}
	Emit(EventFind, FindPayload{Schema: m.schema, Where: where, Records: cloneRecords(records)})
	return records, nil
}

func (m *Model) count(ctx context.Context, q *Query) (int64, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return 0, err
	}
	condition, err := q.compileCondition()
	if err != nil {
		return 0, err
	}
	var total int64
	opCtx := newOperationContext(OperationFind, m.schema, "")
	err = dispatchOperation(ctx, opCtx, func() error {
		total, err = driver.Count(ctx, m.schema, condition)
		return err
	})
	return total, err
}

func (m *Model) exists(ctx context.Context, q *Query) (bool, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return false, err
	}
	condition, err := q.compileCondition()
	if err != nil {
		return false, err
	}
	var found bool
	opCtx := newOperationContext(OperationFind, m.schema, "")
	err = dispatchOperation(ctx, opCtx, func() error {
		found, err = driver.Exists(ctx, m.schema, condition)
		return err
	})
	return found, err
}

func (m *Model) paginate(ctx context.Context, q *Query, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	total, err := m.count(ctx, q)
	if err != nil {
		return nil, err
	}
	paged := *q
	paged.skip = (page - 1) * pageSize
	paged.limit = pageSize
	data, err := m.findAll(ctx, &paged)
	if err != nil {
		return nil, err
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &Page{Data: data, Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages}, nil
}

func (m *Model) aggregate(ctx context.Context, q *Query, pipeline []any) ([]Record, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return nil, err
	}
	condition, err := q.compileCondition()
	if err != nil {
		return nil, err
	}
	var records []Record
	opCtx := newOperationContext(OperationFind, m.schema, "")
	err = dispatchOperation(ctx, opCtx, func() error {
		records, err = driver.Aggregate(ctx, m.schema, condition, pipeline)
		return err
	})
	return records, err
}

// readCacheKey returns a stable cache key for a read, or "" when the schema
// has no cache policy.
func (m *Model) readCacheKey(kind string, where *Where) string {
	if m.schema.CacheTTLValue() <= 0 {
		return ""
	}
	return m.schema.Collection + ":" + kind + ":" + whereKey(where)
}

//endregion

//region Update

// Update runs the full pipeline against the first record matching the
// condition and returns the refreshed record, or nil when nothing matched.
func (m *Model) Update(ctx context.Context, condition any, payload Record) (Record, error) {
	return m.Query().Where(condition).Update(ctx, payload)
}

// UpdateMany issues one set-based update for every matching record, skipping
// per-record hooks, and returns the modified count.
func (m *Model) UpdateMany(ctx context.Context, condition any, changes Changes) (int64, error) {
	return m.Query().Where(condition).UpdateMany(ctx, changes)
}

func (m *Model) updateFirst(ctx context.Context, q *Query, payload Record) (Record, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return nil, err
	}
	where, err := q.compile()
	if err != nil {
		return nil, err
	}
	where.Limit = 1

	existing, err := driver.FindOne(ctx, m.schema, where)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	staging := existing.Clone().Merge(payload.Clone())
	if err := m.schema.runHooks(ctx, BeforeValidate, staging); err != nil {
		return nil, err
	}
	staging, err = m.schema.ProcessFields(staging)
	if err != nil {
		return nil, err
	}
	if err := m.schema.Validate(staging); err != nil {
		return nil, err
	}
	if err := m.schema.runHooks(ctx, AfterValidate, staging); err != nil {
		return nil, err
	}
	if err := m.schema.runHooks(ctx, BeforeUpdate, staging); err != nil {
		return nil, err
	}
	if err := m.schema.runHooks(ctx, BeforeSave, staging); err != nil {
		return nil, err
	}

	changes := Changes{}
	for key, value := range staging {
		if !reflect.DeepEqual(existing[key], value) {
			changes[key] = value
		}
	}
	if m.schema.TimestampsEnabled() {
		now := time.Now()
		staging[m.schema.UpdatedAtFieldName()] = now
		changes[m.schema.UpdatedAtFieldName()] = now
		delete(changes, m.schema.CreatedAtFieldName()) // createdAt never changes across updates
	}
	delete(changes, m.schema.PrimaryKey)

	// Nothing changed: skip the write. Drivers reject an empty change set.
	if len(changes) == 0 {
		if err := m.schema.runHooks(ctx, AfterUpdate, staging); err != nil {
			return staging, err
		}
		if err := m.schema.runHooks(ctx, AfterSave, staging); err != nil {
			return staging, err
		}
		return staging, nil
	}

	keyCondition := (&Condition{FieldName: m.schema.PrimaryKey}).Eq(existing[m.schema.PrimaryKey])
	var modified int64
	opCtx := newOperationContext(OperationUpdate, m.schema, "")
	err = dispatchOperation(ctx, opCtx, func() error {
		modified, err = driver.Update(ctx, m.schema, keyCondition, changes)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := m.schema.runHooks(ctx, AfterUpdate, staging); err != nil {
		return staging, err
	}
	if err := m.schema.runHooks(ctx, AfterSave, staging); err != nil {
		return staging, err
	}
	Emit(EventUpdate, UpdatePayload{Schema: m.schema, Condition: keyCondition, Changes: changes, Modified: modified})
	return staging, nil
}

func (m *Model) updateMany(ctx context.Context, q *Query, changes Changes) (int64, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return 0, err
	}
	condition, err := q.compileCondition()
	if err != nil {
		return 0, err
	}

	coerced := Changes{}
	for key, value := range changes {
		if field := m.schema.Field(key); field != nil {
			if field.SetTransform != nil {
				value = field.SetTransform(value)
			}
			converted, err := coerceValue(field, value)
			if err != nil {
				return 0, newFieldError(field, err.Error())
			}
			value = converted
		}
		coerced[key] = value
	}
	if m.schema.TimestampsEnabled() {
		coerced[m.schema.UpdatedAtFieldName()] = time.Now()
	}
	if len(coerced) == 0 {
		return 0, nil
	}

	var modified int64
	opCtx := newOperationContext(OperationUpdate, m.schema, "")
	err = dispatchOperation(ctx, opCtx, func() error {
		modified, err = driver.Update(ctx, m.schema, condition, coerced)
		return err
	})
	if err != nil {
		return 0, err
	}
	Emit(EventUpdate, UpdatePayload{Schema: m.schema, Condition: condition, Changes: coerced, Modified: modified})
	return modified, nil
}

//endregion

//region Delete / Restore

// Delete removes records matching the condition and returns the affected
// count. On a soft-delete schema it sets the deleted-at field instead; calling
// it twice with the same key therefore returns 1 then 0.
func (m *Model) Delete(ctx context.Context, condition any) (int64, error) {
	return m.Query().Where(condition).Delete(ctx)
}

// ForceDelete physically removes records matching the condition, bypassing
// soft delete entirely.
func (m *Model) ForceDelete(ctx context.Context, condition any) (int64, error) {
	return m.Query().Where(condition).ForceDelete(ctx)
}

// Restore clears the deleted-at field of matching soft-deleted records.
func (m *Model) Restore(ctx context.Context, condition any) (int64, error) {
	return m.Query().Where(condition).Restore(ctx)
}

func (m *Model) delete(ctx context.Context, q *Query) (int64, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return 0, err
	}
	condition, err := q.compileCondition()
	if err != nil {
		return 0, err
	}

	staging := Record{}
	if err := m.schema.runHooks(ctx, BeforeDelete, staging); err != nil {
		return 0, err
	}

	var affected int64
	opCtx := newOperationContext(OperationDelete, m.schema, "")
	if m.schema.SoftDeleteEnabled() {
		changes := Changes{m.schema.SoftDeleteFieldName(): time.Now()}
		err = dispatchOperation(ctx, opCtx, func() error {
			affected, err = driver.Update(ctx, m.schema, condition, changes)
			return err
		})
		if err != nil {
			return 0, err
		}
		if err := m.schema.runHooks(ctx, AfterDelete, staging); err != nil {
			return affected, err
		}
		Emit(EventUpdate, UpdatePayload{Schema: m.schema, Condition: condition, Changes: changes, Modified: affected})
		return affected, nil
	}

	err = dispatchOperation(ctx, opCtx, func() error {
		affected, err = driver.Delete(ctx, m.schema, condition)
		return err
	})
	if err != nil {
		return 0, err
	}
	if err := m.schema.runHooks(ctx, AfterDelete, staging); err != nil {
		return affected, err
	}
	Emit(EventDelete, DeletePayload{Schema: m.schema, Condition: condition, Deleted: affected})
	return affected, nil
}

func (m *Model) forceDelete(ctx context.Context, q *Query) (int64, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return 0, err
	}
	if q.err != nil {
		return 0, q.err
	}
	condition := m.applyTrash(q.condition, trashWith)

	staging := Record{}
	if err := m.schema.runHooks(ctx, BeforeDelete, staging); err != nil {
		return 0, err
	}
	var affected int64
	opCtx := newOperationContext(OperationDelete, m.schema, "")
	err = dispatchOperation(ctx, opCtx, func() error {
		affected, err = driver.Delete(ctx, m.schema, condition)
		return err
	})
	if err != nil {
		return 0, err
	}
	if err := m.schema.runHooks(ctx, AfterDelete, staging); err != nil {
		return affected, err
	}
	Emit(EventDelete, DeletePayload{Schema: m.schema, Condition: condition, Deleted: affected})
	return affected, nil
}

func (m *Model) restore(ctx context.Context, q *Query) (int64, error) {
	if !m.schema.SoftDeleteEnabled() {
		return 0, fmt.Errorf("argil: restore requires a soft-delete schema")
	}
	driver, err := m.Driver(ctx)
	if err != nil {
		return 0, err
	}
	if q.err != nil {
		return 0, q.err
	}
	condition := m.applyTrash(q.condition, trashOnly)
	changes := Changes{m.schema.SoftDeleteFieldName(): nil}

	var affected int64
	opCtx := newOperationContext(OperationUpdate, m.schema, "")
	err = dispatchOperation(ctx, opCtx, func() error {
		affected, err = driver.Update(ctx, m.schema, condition, changes)
		return err
	})
	if err != nil {
		return 0, err
	}
	Emit(EventUpdate, UpdatePayload{Schema: m.schema, Condition: condition, Changes: changes, Modified: affected})
	return affected, nil
}

//endregion

//region Increment

// IncrementMany atomically adds delta to a numeric field on every record
// matching the condition and returns the modified count.
func (m *Model) IncrementMany(ctx context.Context, condition any, field string, delta float64) (int64, error) {
	return m.Query().Where(condition).Increment(ctx, field, delta)
}

func (m *Model) increment(ctx context.Context, q *Query, field string, delta float64) (int64, error) {
	driver, err := m.Driver(ctx)
	if err != nil {
		return 0, err
	}
	condition, err := q.compileCondition()
	if err != nil {
		return 0, err
	}
	var modified int64
	opCtx := newOperationContext(OperationUpdate, m.schema, "")
	err = dispatchOperation(ctx, opCtx, func() error {
		modified, err = driver.Increment(ctx, m.schema, condition, field, delta)
		return err
	})
	if err != nil {
		return 0, err
	}
	Emit(EventUpdate, UpdatePayload{Schema: m.schema, Condition: condition, Changes: Changes{field: delta}, Modified: modified})
	return modified, nil
}

//endregion

//region Upsert

// FindOrCreate returns the first record matching the condition, creating one
// from the condition's literal equality fields merged with defaults when none
// exists. The second return reports whether a record was created.
func (m *Model) FindOrCreate(ctx context.Context, condition Filter, defaults Record) (Record, bool, error) {
	existing, err := m.Query().Where(condition).FindOne(ctx)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	payload := defaults.Clone().Merge(literalFields(condition))
	created, err := m.Create(ctx, payload)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// UpdateOrCreate updates the first record matching the condition with the
// payload, or creates one from the condition's literal fields merged with the
// payload when none exists.
func (m *Model) UpdateOrCreate(ctx context.Context, condition Filter, payload Record) (Record, error) {
	updated, err := m.Query().Where(condition).Update(ctx, payload)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		return updated, nil
	}
	return m.Create(ctx, literalFields(condition).Merge(payload.Clone()))
}

// literalFields extracts the plain equality entries of a filter, skipping
// operator maps.
func literalFields(condition Filter) Record {
	out := Record{}
	for key, value := range condition {
		if _, isOps := operatorMap(value); isOps {
			continue
		}
		out[key] = value
	}
	return out
}

//endregion

//region Relations

// BelongsTo resolves the related record referenced by the owning record's
// foreign-key field. A falsy foreign-key value (nil, empty, zero, false)
// resolves to nil without issuing a query. localKey defaults to the related
// schema's primary key.
func (m *Model) BelongsTo(ctx context.Context, record Record, related *Model, foreignKey, localKey string) (Record, error) {
	value := record[foreignKey]
	if isFalsy(value) {
		return nil, nil
	}
	if localKey == "" {
		localKey = related.schema.PrimaryKey
	}
	return related.Query().Where(Filter{localKey: value}).FindOne(ctx)
}

// HasOne resolves the single related record whose foreign-key field matches
// this record's local key (defaulting to the primary key).
func (m *Model) HasOne(ctx context.Context, record Record, related *Model, foreignKey, localKey string) (Record, error) {
	if localKey == "" {
		localKey = m.schema.PrimaryKey
	}
	value := record[localKey]
	if isFalsy(value) {
		return nil, nil
	}
	return related.Query().Where(Filter{foreignKey: value}).FindOne(ctx)
}

// HasMany resolves every related record whose foreign-key field matches this
// record's local key. opts carries the same sort/skip/limit options as FindAll.
func (m *Model) HasMany(ctx context.Context, record Record, related *Model, foreignKey, localKey string, opts *FindOptions) ([]Record, error) {
	if localKey == "" {
		localKey = m.schema.PrimaryKey
	}
	value := record[localKey]
	if isFalsy(value) {
		return nil, nil
	}
	q := related.Query().Where(Filter{foreignKey: value})
	if opts != nil {
		for _, s := range opts.Sort {
			q.OrderBy(s.Field, s.Order)
		}
		if opts.Skip > 0 {
			q.Skip(opts.Skip)
		}
		if opts.Limit > 0 {
			q.Limit(opts.Limit)
		}
	}
	return q.FindAll(ctx)
}

// Load resolves the named relations registered on the schema and stores each
// result under its relation name on the record. Each relation is one
// independent query; there is no batching.
func (m *Model) Load(ctx context.Context, record Record, names ...string) error {
	driver, err := m.Driver(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		relation := m.schema.findRelation(name)
		if relation == nil {
			return fmt.Errorf("argil: unknown relation %q on %q", name, m.schema.Collection)
		}
		related := NewModel(relation.Schema, driver)

		switch relation.Kind {
		case BelongsTo:
			result, err := m.BelongsTo(ctx, record, related, relation.ForeignKey, relation.LocalKey)
			if err != nil {
				return err
			}
			record[name] = result

		case HasOne:
			result, err := m.HasOne(ctx, record, related, relation.ForeignKey, relation.LocalKey)
			if err != nil {
				return err
			}
			record[name] = result

		case HasMany:
			results, err := m.HasMany(ctx, record, related, relation.ForeignKey, relation.LocalKey, nil)
			if err != nil {
				return err
			}
			record[name] = results

		case ManyToMany:
			results, err := m.loadManyToMany(ctx, driver, record, relation)
			if err != nil {
				return err
			}
			record[name] = results
		}
	}
	return nil
}

func (m *Model) loadManyToMany(ctx context.Context, driver Driver, record Record, relation *Relation) ([]Record, error) {
	localKey := relation.LocalKey
	if localKey == "" {
		localKey = m.schema.PrimaryKey
	}
	value := record[localKey]
	if isFalsy(value) {
		return nil, nil
	}

	joinSchema := NewSchema(relation.JoinCollection, Database(m.schema.Database))
	joinCondition := (&Condition{FieldName: relation.JoinLocalKey}).Eq(value)
	joinRows, err := driver.FindMany(ctx, joinSchema, &Where{Condition: joinCondition})
	if err != nil {
		return nil, err
	}
	if len(joinRows) == 0 {
		return nil, nil
	}

	foreignIDs := make([]any, 0, len(joinRows))
	for _, row := range joinRows {
		foreignIDs = append(foreignIDs, row[relation.JoinForeignKey])
	}
	foreignKey := relation.ForeignKey
	if foreignKey == "" {
		foreignKey = relation.Schema.PrimaryKey
	}
	related := NewModel(relation.Schema, driver)
	return related.Query().Where(Filter{foreignKey: Ops{"in": foreignIDs}}).FindAll(ctx)
}

//endregion

//region Indexes

// CreateIndexes compiles and issues every declared index descriptor. When
// force is set, a same-named existing index is dropped before recreation.
// The first backend failure aborts with the original error wrapped.
func (m *Model) CreateIndexes(ctx context.Context, force bool) error {
	driver, err := m.Driver(ctx)
	if err != nil {
		return err
	}
	for _, index := range m.schema.IndexDescriptors() {
		if err := driver.CreateIndex(ctx, m.schema, index, force); err != nil {
			return err
		}
	}
	return nil
}

// DropIndexes removes every non-primary index of the collection.
func (m *Model) DropIndexes(ctx context.Context) error {
	driver, err := m.Driver(ctx)
	if err != nil {
		return err
	}
	return driver.DropIndexes(ctx, m.schema)
}

//endregion

//region Transactions

// Transaction runs fn inside a driver-native transaction, committing on nil
// return and rolling back on error. The core adds no savepoint or nesting
// semantics of its own.
func (m *Model) Transaction(ctx context.Context, fn TransactionFunc) error {
	driver, err := m.Driver(ctx)
	if err != nil {
		return err
	}
	return RunTransaction(ctx, driver, fn)
}

//endregion
