// Package core provides the fundamental building blocks of the argil data layer.
// This file defines the set of supported operators used in query conditions.
package core

// Operator represents a comparison or logical operator used in a query condition.
//
// Operators can be logical (AND, NOT) or value-based (EQ, GT, IN, etc.).
// Conditions combine with AND only; OR composition is deliberately unsupported.
type Operator string

const (
	// Logical operators
	opAnd Operator = "AND"
	opNot Operator = "NOT"

	// Value-based operators
	opNil    Operator = "NIL"    // field IS NULL
	opEq     Operator = "EQ"     // field = value
	opNe     Operator = "NE"     // field != value
	opGt     Operator = "GT"     // field > value
	opGte    Operator = "GTE"    // field >= value
	opLt     Operator = "LT"     // field < value
	opLte    Operator = "LTE"    // field <= value
	opLike   Operator = "LIKE"   // field LIKE pattern (SQL) or regex (document stores)
	opIn     Operator = "IN"     // field IN (value list)
	opNin    Operator = "NIN"    // field NOT IN (value list)
	opExists Operator = "EXISTS" // field present/absent (see note below)
)

// Public operator aliases exposed to users of the data layer.
//
// These variables reference the internal constants and are intended
// to be used when constructing conditions programmatically.
//
// Example:
//
//	cond := &core.Condition{FieldName: "age", Operator: &core.OpGt, Value: 18}
var (
	OpAnd    = opAnd
	OpNot    = opNot
	OpNil    = opNil
	OpEq     = opEq
	OpNe     = opNe
	OpGt     = opGt
	OpGte    = opGte
	OpLt     = opLt
	OpLte    = opLte
	OpLike   = opLike
	OpIn     = opIn
	OpNin    = opNin
	OpExists = opExists
)

// filterOperatorTokens maps the operator tokens accepted inside a Filter value
// (e.g. Filter{"age": map[string]any{"gt": 18}}) to their internal operators.
// "like" and "regex" are two spellings of the same operator; the SQL backends
// read the value as a LIKE pattern and the document backends as a regex source.
var filterOperatorTokens = map[string]*Operator{
	"eq":     &OpEq,
	"ne":     &OpNe,
	"gt":     &OpGt,
	"gte":    &OpGte,
	"lt":     &OpLt,
	"lte":    &OpLte,
	"in":     &OpIn,
	"nin":    &OpNin,
	"exists": &OpExists,
	"like":   &OpLike,
	"regex":  &OpLike,
}

// filterOperatorOrder fixes the emission order of operator clauses inside a
// single Filter entry, so compiling the same filter twice yields identical
// backend output.
var filterOperatorOrder = []string{
	"eq", "ne", "gt", "gte", "lt", "lte", "in", "nin", "exists", "like", "regex",
}
