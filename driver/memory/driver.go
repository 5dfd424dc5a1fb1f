// Package memory provides an in-process driver for the argil data layer.
// It stores records in a mutex-guarded map and evaluates condition trees
// directly, with document-store presence semantics (a field can be absent).
// It backs tests and small tools; it is not a durable store.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leandroluk/argil/core"
	"github.com/shopspring/decimal"
)

//region memoryTransaction

// memoryTransaction snapshots the store on begin; Rollback restores the
// snapshot and Commit discards it.
type memoryTransaction struct {
	driver   *MemoryDriver
	snapshot map[string][]core.Record
}

func (transaction *memoryTransaction) Commit(ctx context.Context) error {
	transaction.snapshot = nil
	return nil
}

func (transaction *memoryTransaction) Rollback(ctx context.Context) error {
	transaction.driver.mutex.Lock()
	defer transaction.driver.mutex.Unlock()
	transaction.driver.collections = transaction.snapshot
	return nil
}

//endregion

//region MemoryDriver

// MemoryDriver implements core.Driver over an in-process map of collections.
type MemoryDriver struct {
	mutex       sync.RWMutex
	collections map[string][]core.Record
}

var _ core.Driver = (*MemoryDriver)(nil)

// NewMemoryDriver returns an empty in-process driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{collections: make(map[string][]core.Record)}
}

func (driver *MemoryDriver) key(schema *core.Schema) string {
	if schema.Database != "" {
		return schema.Database + "." + schema.Collection
	}
	return schema.Collection
}

//endregion

//region lifecycle

func (driver *MemoryDriver) Connect(ctx context.Context) error { return nil }

func (driver *MemoryDriver) Ping(ctx context.Context) error { return nil }

func (driver *MemoryDriver) Close(ctx context.Context) error {
	driver.mutex.Lock()
	defer driver.mutex.Unlock()
	driver.collections = make(map[string][]core.Record)
	return nil
}

func (driver *MemoryDriver) IsConnected(ctx context.Context) bool { return true }

func (driver *MemoryDriver) Transaction(ctx context.Context) (core.Transaction, error) {
	driver.mutex.RLock()
	defer driver.mutex.RUnlock()
	snapshot := make(map[string][]core.Record, len(driver.collections))
	for name, records := range driver.collections {
		copied := make([]core.Record, len(records))
		for i, record := range records {
			copied[i] = record.Clone()
		}
		snapshot[name] = copied
	}
	return &memoryTransaction{driver: driver, snapshot: snapshot}, nil
}

//endregion

//region operations

func (driver *MemoryDriver) Insert(ctx context.Context, schema *core.Schema, record core.Record) (core.Record, error) {
	canonical := record.Clone()
	if value, ok := canonical[schema.PrimaryKey]; !ok || value == nil {
		canonical[schema.PrimaryKey] = uuid.NewString()
	}

	driver.mutex.Lock()
	defer driver.mutex.Unlock()
	key := driver.key(schema)
	driver.collections[key] = append(driver.collections[key], canonical.Clone())
	return canonical, nil
}

func (driver *MemoryDriver) FindOne(ctx context.Context, schema *core.Schema, query *core.Where) (core.Record, error) {
	single := *query
	single.Limit = 1
	records, err := driver.FindMany(ctx, schema, &single)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (driver *MemoryDriver) FindMany(ctx context.Context, schema *core.Schema, query *core.Where) ([]core.Record, error) {
	driver.mutex.RLock()
	stored := driver.collections[driver.key(schema)]
	var matched []core.Record
	for _, record := range stored {
		ok, err := evalCondition(query.Condition, record)
		if err != nil {
			driver.mutex.RUnlock()
			return nil, fmt.Errorf("memory find error: %w", err)
		}
		if ok {
			matched = append(matched, record.Clone())
		}
	}
	driver.mutex.RUnlock()

	if len(query.Sort) > 0 {
		sortRecords(matched, query.Sort)
	}
	if query.Offset > 0 {
		if query.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[query.Offset:]
		}
	}
	if query.Limit > 0 && query.Limit < len(matched) {
		matched = matched[:query.Limit]
	}
	if len(query.Projection) > 0 {
		projected := make([]core.Record, len(matched))
		for i, record := range matched {
			out := core.Record{}
			for _, name := range query.Projection {
				if value, ok := record[name]; ok {
					out[name] = value
				}
			}
			projected[i] = out
		}
		matched = projected
	}
	return matched, nil
}

func (driver *MemoryDriver) Update(ctx context.Context, schema *core.Schema, condition *core.Condition, changes core.Changes) (int64, error) {
	if len(changes) == 0 {
		return 0, nil
	}
	driver.mutex.Lock()
	defer driver.mutex.Unlock()

	var modified int64
	stored := driver.collections[driver.key(schema)]
	for _, record := range stored {
		ok, err := evalCondition(condition, record)
		if err != nil {
			return 0, fmt.Errorf("memory update error: %w", err)
		}
		if !ok {
			continue
		}
		for name, value := range changes {
			record[name] = value
		}
		modified++
	}
	return modified, nil
}

func (driver *MemoryDriver) Delete(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	driver.mutex.Lock()
	defer driver.mutex.Unlock()

	key := driver.key(schema)
	stored := driver.collections[key]
	kept := stored[:0:0]
	var deleted int64
	for _, record := range stored {
		ok, err := evalCondition(condition, record)
		if err != nil {
			return 0, fmt.Errorf("memory delete error: %w", err)
		}
		if ok {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	driver.collections[key] = kept
	return deleted, nil
}

func (driver *MemoryDriver) Count(ctx context.Context, schema *core.Schema, condition *core.Condition) (int64, error) {
	driver.mutex.RLock()
	defer driver.mutex.RUnlock()

	var count int64
	for _, record := range driver.collections[driver.key(schema)] {
		ok, err := evalCondition(condition, record)
		if err != nil {
			return 0, fmt.Errorf("memory count error: %w", err)
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func (driver *MemoryDriver) Exists(ctx context.Context, schema *core.Schema, condition *core.Condition) (bool, error) {
	record, err := driver.FindOne(ctx, schema, &core.Where{Condition: condition, Limit: 1})
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

func (driver *MemoryDriver) Increment(ctx context.Context, schema *core.Schema, condition *core.Condition, field string, delta float64) (int64, error) {
	driver.mutex.Lock()
	defer driver.mutex.Unlock()

	var modified int64
	for _, record := range driver.collections[driver.key(schema)] {
		ok, err := evalCondition(condition, record)
		if err != nil {
			return 0, fmt.Errorf("memory increment error: %w", err)
		}
		if !ok {
			continue
		}
		current, _ := toFloat(record[field])
		record[field] = current + delta
		modified++
	}
	return modified, nil
}

// Aggregate is not implemented; the memory driver has no pipeline dialect.
func (driver *MemoryDriver) Aggregate(ctx context.Context, schema *core.Schema, condition *core.Condition, pipeline []any) ([]core.Record, error) {
	return nil, fmt.Errorf("memory aggregate error: %w", core.ErrUnsupported)
}

//endregion

//region indexes

// CreateIndex records nothing; the memory driver scans every record and has
// no index structures.
func (driver *MemoryDriver) CreateIndex(ctx context.Context, schema *core.Schema, index *core.IndexDescriptor, force bool) error {
	return nil
}

func (driver *MemoryDriver) DropIndexes(ctx context.Context, schema *core.Schema) error {
	return nil
}

//endregion

//region condition evaluation

// evalCondition evaluates a condition tree against one record, using
// document-store presence semantics.
func evalCondition(condition *core.Condition, record core.Record) (bool, error) {
	if condition == nil {
		return true, nil
	}
	if len(condition.Children) > 0 {
		switch *condition.Operator {
		case core.OpAnd:
			for _, child := range condition.Children {
				ok, err := evalCondition(child, record)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		case core.OpNot:
			for _, child := range condition.Children {
				ok, err := evalCondition(child, record)
				if err != nil {
					return false, err
				}
				if !ok {
					return true, nil
				}
			}
			return false, nil
		}
		return false, fmt.Errorf("unsupported logical operator %v", *condition.Operator)
	}

	value, present := record[condition.FieldName]
	switch *condition.Operator {
	case core.OpNil:
		return !present || value == nil, nil
	case core.OpEq:
		if condition.Value == nil {
			return !present || value == nil, nil
		}
		return compareValues(value, condition.Value) == 0, nil
	case core.OpNe:
		if condition.Value == nil {
			return present && value != nil, nil
		}
		return compareValues(value, condition.Value) != 0, nil
	case core.OpGt:
		return present && compareValues(value, condition.Value) > 0, nil
	case core.OpGte:
		return present && compareValues(value, condition.Value) >= 0, nil
	case core.OpLt:
		return present && compareValues(value, condition.Value) < 0, nil
	case core.OpLte:
		return present && compareValues(value, condition.Value) <= 0, nil
	case core.OpLike:
		return evalLike(value, condition.Value)
	case core.OpIn:
		list, _ := condition.Value.([]any)
		for _, candidate := range list {
			if compareValues(value, candidate) == 0 {
				return true, nil
			}
		}
		return false, nil
	case core.OpNin:
		list, _ := condition.Value.([]any)
		for _, candidate := range list {
			if compareValues(value, candidate) == 0 {
				return false, nil
			}
		}
		return true, nil
	case core.OpExists:
		expected, _ := condition.Value.(bool)
		return present == expected, nil
	}
	return false, fmt.Errorf("unsupported operator %v", *condition.Operator)
}

func evalLike(value, pattern any) (bool, error) {
	text := fmt.Sprintf("%v", value)
	source := likeToRegex(fmt.Sprintf("%v", pattern))
	matched, err := regexp.MatchString("(?i)^"+source+"$", text)
	if err != nil {
		return false, err
	}
	return matched, nil
}

// likeToRegex converts a SQL LIKE pattern into a regex source, quoting
// everything except the % and _ wildcards.
func likeToRegex(input string) string {
	const percent = "__PERCENT__"
	const underscore = "__UNDERSCORE__"
	safe := strings.ReplaceAll(input, "%", percent)
	safe = strings.ReplaceAll(safe, "_", underscore)
	safe = regexp.QuoteMeta(safe)
	safe = strings.ReplaceAll(safe, percent, ".*")
	safe = strings.ReplaceAll(safe, underscore, ".")
	return safe
}

// compareValues orders two values of the coerced domain: numbers, decimals,
// times, booleans, and strings. Mismatched kinds fall back to string order.
func compareValues(a, b any) int {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case decimal.Decimal:
		f, _ := v.Float64()
		return f, true
	default:
		return 0, false
	}
}

func sortRecords(records []core.Record, rules []core.Sort) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, rule := range rules {
			cmp := compareValues(records[i][rule.FieldName], records[j][rule.FieldName])
			if cmp == 0 {
				continue
			}
			if rule.Order < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

//endregion
