// Package core provides the fundamental building blocks of the argil data layer.
// It defines abstractions for queries, schemas, records, and drivers.
package core

import (
	"fmt"
	"sort"
)

// Condition represents a single clause in a query filter.
//
// A condition can target a specific field (FieldName) with a given operator
// (Eq, Gt, Like, In, etc.) and a comparison value. Conditions can also
// be nested using Children, enabling composition with AND and NOT.
//
// Example:
//
//	cond := (&Condition{FieldName: "age"}).Gt(18).
//		And((&Condition{FieldName: "status"}).Eq("active"))
//
// The above creates a condition equivalent to:
//
//	(age > 18) AND (status = "active")
type Condition struct {
	FieldName string       // The field/column name this condition applies to
	Operator  *Operator    // The comparison operator (Eq, Gt, Like, etc.)
	Value     any          // The comparison value
	Children  []*Condition // Nested conditions (for AND and NOT expressions)
}

// And combines this condition with additional conditions using the logical AND operator.
func (c *Condition) And(conditions ...*Condition) *Condition {
	return &Condition{
		Operator: &OpAnd,
		Children: append([]*Condition{c}, conditions...),
	}
}

// Not negates this condition using the logical NOT operator.
func (c *Condition) Not() *Condition {
	return &Condition{
		Operator: &OpNot,
		Children: []*Condition{c},
	}
}

// Nil sets this condition to check for NULL values (IS NULL).
func (c *Condition) Nil() *Condition {
	c.Operator = &OpNil
	c.Value = nil
	return c
}

// Eq sets this condition to check for equality (=).
//
// An Eq against a nil value compiles to IS NULL on SQL backends and to
// an equality against null on document backends (which also matches
// documents where the field is absent).
func (c *Condition) Eq(v any) *Condition {
	c.Operator = &OpEq
	c.Value = v
	return c
}

// Ne sets this condition to check for inequality (!=).
func (c *Condition) Ne(v any) *Condition {
	c.Operator = &OpNe
	c.Value = v
	return c
}

// Gt sets this condition to check for "greater than" (>).
func (c *Condition) Gt(v any) *Condition {
	c.Operator = &OpGt
	c.Value = v
	return c
}

// Gte sets this condition to check for "greater than or equal" (>=).
func (c *Condition) Gte(v any) *Condition {
	c.Operator = &OpGte
	c.Value = v
	return c
}

// Lt sets this condition to check for "less than" (<).
func (c *Condition) Lt(v any) *Condition {
	c.Operator = &OpLt
	c.Value = v
	return c
}

// Lte sets this condition to check for "less than or equal" (<=).
func (c *Condition) Lte(v any) *Condition {
	c.Operator = &OpLte
	c.Value = v
	return c
}

// Like sets this condition to perform a pattern match (SQL LIKE / regex equivalent).
func (c *Condition) Like(v any) *Condition {
	c.Operator = &OpLike
	c.Value = v
	return c
}

// In sets this condition to check whether the field value is contained in the provided list.
func (c *Condition) In(values ...any) *Condition {
	c.Operator = &OpIn
	c.Value = values
	return c
}

// Nin sets this condition to check whether the field value is absent from the provided list.
func (c *Condition) Nin(values ...any) *Condition {
	c.Operator = &OpNin
	c.Value = values
	return c
}

// Exists sets this condition to check for field presence.
//
// Document backends compile it to $exists. SQL backends have no notion of an
// absent column, so both Exists(false) and a nil equality compile to IS NULL
// there. The asymmetry is preserved on purpose; see OpExists.
func (c *Condition) Exists(present bool) *Condition {
	c.Operator = &OpExists
	c.Value = present
	return c
}

// Filter is the backend-neutral condition input accepted by the query builder.
//
// Each entry maps a field name to either a literal (compiled as equality) or
// an operator map such as:
//
//	Filter{
//		"age":  map[string]any{"gte": 18, "lt": 65},
//		"name": map[string]any{"like": "Ana%"},
//		"role": "admin",
//	}
//
// Operator clauses and top-level fields always combine with AND.
type Filter map[string]any

// Ops is a convenience alias for the operator map accepted inside a Filter value.
type Ops map[string]any

// normalizeCondition converts any accepted condition input into the internal
// Condition tree:
//
//   - nil stays nil (match everything)
//   - *Condition passes through untouched
//   - Filter / map[string]any entries are compiled field by field, in sorted
//     field order so the backend output is deterministic
//   - any other scalar expands to an equality against the schema primary key
func normalizeCondition(input any, schema *Schema) (*Condition, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case *Condition:
		return v, nil
	case Filter:
		return normalizeFilter(map[string]any(v))
	case map[string]any:
		return normalizeFilter(v)
	default:
		pk := "id"
		if schema != nil {
			pk = schema.PrimaryKey
		}
		return (&Condition{FieldName: pk}).Eq(v), nil
	}
}

func normalizeFilter(filter map[string]any) (*Condition, error) {
	fieldNames := make([]string, 0, len(filter))
	for name := range filter {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	var conditions []*Condition
	for _, name := range fieldNames {
		entry, err := normalizeFilterEntry(name, filter[name])
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, entry...)
	}
	return foldConditionsAnd(conditions...), nil
}

func normalizeFilterEntry(field string, value any) ([]*Condition, error) {
	ops, ok := operatorMap(value)
	if !ok {
		// literal: equality clause (nil literal means IS NULL)
		if value == nil {
			return []*Condition{(&Condition{FieldName: field}).Nil()}, nil
		}
		return []*Condition{(&Condition{FieldName: field}).Eq(value)}, nil
	}

	var conditions []*Condition
	for _, token := range filterOperatorOrder {
		raw, present := ops[token]
		if !present {
			continue
		}
		cond := &Condition{FieldName: field, Operator: filterOperatorTokens[token]}
		switch token {
		case "in", "nin":
			list, err := toValueList(raw)
			if err != nil {
				return nil, fmt.Errorf("argil: filter %q %s: %w", field, token, err)
			}
			cond.Value = list
		case "exists":
			present, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("argil: filter %q exists: value must be a bool", field)
			}
			cond.Value = present
		default:
			cond.Value = raw
		}
		conditions = append(conditions, cond)
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("argil: filter %q: empty operator map", field)
	}
	return conditions, nil
}

// operatorMap reports whether value is an operator map, i.e. a map whose keys
// are all known operator tokens. A map with any unknown key is treated as a
// literal (e.g. a nested document value).
func operatorMap(value any) (map[string]any, bool) {
	var m map[string]any
	switch v := value.(type) {
	case Ops:
		m = map[string]any(v)
	case map[string]any:
		m = v
	default:
		return nil, false
	}
	if len(m) == 0 {
		return m, true
	}
	for key := range m {
		if _, known := filterOperatorTokens[key]; !known {
			return nil, false
		}
	}
	return m, true
}

func toValueList(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []int64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []float64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value must be a list, got %T", raw)
	}
}

// foldConditionsAnd combines multiple conditions into a single condition
// using logical AND. If zero conditions are provided, it returns nil.
// If one condition is provided, it returns that condition.
func foldConditionsAnd(conds ...*Condition) *Condition {
	filtered := conds[:0:0]
	for _, c := range conds {
		if c != nil {
			filtered = append(filtered, c)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		acc := filtered[0]
		for i := 1; i < len(filtered); i++ {
			acc = acc.And(filtered[i])
		}
		return acc
	}
}
