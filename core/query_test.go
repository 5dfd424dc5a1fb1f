package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_SortMapAppliesInFieldNameOrder(t *testing.T) {
	model := NewModel(NewSchema("items"), nil)

	expected := []Sort{
		{FieldName: "a", Order: 1},
		{FieldName: "b", Order: -1},
		{FieldName: "c", Order: -1},
	}
	// Map iteration order varies per run; repeat to catch regressions.
	for i := 0; i < 32; i++ {
		q := model.Query().Sort(map[string]any{"b": "desc", "c": -1, "a": "asc"})
		require.NoError(t, q.err)
		assert.Equal(t, expected, q.sort)
	}
}

func TestQuery_SortStringShorthandUsesPrimaryKey(t *testing.T) {
	model := NewModel(NewSchema("items"), nil)

	q := model.Query().Sort("desc")
	require.NoError(t, q.err)
	assert.Equal(t, []Sort{{FieldName: "id", Order: -1}}, q.sort)
}

func TestQuery_SortRejectsUnknownSpec(t *testing.T) {
	model := NewModel(NewSchema("items"), nil)

	q := model.Query().Sort(42)
	assert.Error(t, q.err)
}
