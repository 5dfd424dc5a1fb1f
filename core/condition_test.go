package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCondition_NilMatchesEverything(t *testing.T) {
	cond, err := normalizeCondition(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, cond)
}

func TestNormalizeCondition_ConditionPassesThrough(t *testing.T) {
	input := (&Condition{FieldName: "age"}).Gt(18)
	cond, err := normalizeCondition(input, nil)
	require.NoError(t, err)
	assert.Same(t, input, cond)
}

func TestNormalizeCondition_ScalarExpandsToPrimaryKey(t *testing.T) {
	schema := NewSchema("users", WithPrimaryKey("uuid"))
	cond, err := normalizeCondition("abc-123", schema)
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.Equal(t, "uuid", cond.FieldName)
	assert.Equal(t, OpEq, *cond.Operator)
	assert.Equal(t, "abc-123", cond.Value)
}

func TestNormalizeCondition_FilterLiteralIsEquality(t *testing.T) {
	cond, err := normalizeCondition(Filter{"role": "admin"}, nil)
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.Equal(t, "role", cond.FieldName)
	assert.Equal(t, OpEq, *cond.Operator)
	assert.Equal(t, "admin", cond.Value)
}

func TestNormalizeCondition_NilLiteralIsNilCheck(t *testing.T) {
	cond, err := normalizeCondition(Filter{"deletedAt": nil}, nil)
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.Equal(t, OpNil, *cond.Operator)
}

func TestNormalizeCondition_OperatorMap(t *testing.T) {
	cond, err := normalizeCondition(Filter{"age": Ops{"gte": 18, "lt": 65}}, nil)
	require.NoError(t, err)
	require.NotNil(t, cond)
	require.Equal(t, OpAnd, *cond.Operator)
	require.Len(t, cond.Children, 2)
	// fixed operator emission order: gte before lt
	assert.Equal(t, OpGte, *cond.Children[0].Operator)
	assert.Equal(t, 18, cond.Children[0].Value)
	assert.Equal(t, OpLt, *cond.Children[1].Operator)
	assert.Equal(t, 65, cond.Children[1].Value)
}

func TestNormalizeCondition_FieldsEmitInSortedOrder(t *testing.T) {
	first, err := normalizeCondition(Filter{"b": 1, "a": 2, "c": 3}, nil)
	require.NoError(t, err)
	second, err := normalizeCondition(Filter{"c": 3, "a": 2, "b": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, conditionKey(first), conditionKey(second))
}

func TestNormalizeCondition_UnknownKeysAreLiteralDocuments(t *testing.T) {
	// a map with non-operator keys is a literal value, not an operator map
	nested := map[string]any{"street": "Main St", "number": 42}
	cond, err := normalizeCondition(Filter{"address": nested}, nil)
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.Equal(t, OpEq, *cond.Operator)
	assert.Equal(t, nested, cond.Value)
}

func TestNormalizeCondition_InListWidens(t *testing.T) {
	cond, err := normalizeCondition(Filter{"status": Ops{"in": []string{"a", "b"}}}, nil)
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.Equal(t, OpIn, *cond.Operator)
	assert.Equal(t, []any{"a", "b"}, cond.Value)
}

func TestNormalizeCondition_InRejectsNonList(t *testing.T) {
	_, err := normalizeCondition(Filter{"status": Ops{"in": "active"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a list")
}

func TestNormalizeCondition_ExistsRequiresBool(t *testing.T) {
	_, err := normalizeCondition(Filter{"email": Ops{"exists": "yes"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a bool")
}

func TestNormalizeCondition_EmptyOperatorMapFails(t *testing.T) {
	_, err := normalizeCondition(Filter{"age": Ops{}}, nil)
	require.Error(t, err)
}

func TestFoldConditionsAnd(t *testing.T) {
	a := (&Condition{FieldName: "a"}).Eq(1)
	b := (&Condition{FieldName: "b"}).Eq(2)

	assert.Nil(t, foldConditionsAnd())
	assert.Nil(t, foldConditionsAnd(nil, nil))
	assert.Same(t, a, foldConditionsAnd(nil, a))

	folded := foldConditionsAnd(a, b)
	require.NotNil(t, folded)
	assert.Equal(t, OpAnd, *folded.Operator)
	assert.Len(t, folded.Children, 2)
}

func TestConditionFluentComposition(t *testing.T) {
	cond := (&Condition{FieldName: "age"}).Gt(18).
		And((&Condition{FieldName: "status"}).Eq("active"))

	require.Equal(t, OpAnd, *cond.Operator)
	require.Len(t, cond.Children, 2)
	assert.Equal(t, "age", cond.Children[0].FieldName)
	assert.Equal(t, "status", cond.Children[1].FieldName)
}

func TestConditionNotWrapsChild(t *testing.T) {
	cond := (&Condition{FieldName: "deletedAt"}).Nil().Not()
	require.Equal(t, OpNot, *cond.Operator)
	require.Len(t, cond.Children, 1)
	assert.Equal(t, OpNil, *cond.Children[0].Operator)
}
