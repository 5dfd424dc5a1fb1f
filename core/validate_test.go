package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return NewSchema("users",
		Fields(
			NewField("id", TypeUUID, PrimaryKey(), DefaultFunc(NewUUID)),
			NewField("name", TypeString, Required(), MaxLength(10)),
			NewField("email", TypeString, Required(), Pattern(`@`), Message("must be a valid email")),
			NewField("age", TypeNumber, Min(0), Max(150)),
			NewField("role", TypeEnum, Enum("admin", "user"), Default("user")),
			NewField("balance", TypeDecimal),
			NewField("active", TypeBoolean, Default(true)),
			NewField("joinedAt", TypeTimestamp),
		),
	)
}

func TestProcessFields_DefaultsAndCoercion(t *testing.T) {
	schema := testSchema()
	record, err := schema.ProcessFields(Record{
		"name":     "Ana",
		"email":    "ana@example.com",
		"age":      "42",
		"balance":  "10.50",
		"joinedAt": "2026-01-02",
	})
	require.NoError(t, err)

	// defaults materialized
	assert.NotEmpty(t, record["id"])
	assert.Equal(t, "user", record["role"])
	assert.Equal(t, true, record["active"])

	// strings coerced to declared types
	assert.Equal(t, float64(42), record["age"])
	assert.True(t, record["balance"].(decimal.Decimal).Equal(decimal.RequireFromString("10.50")))
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), record["joinedAt"])
}

func TestProcessFields_InputIsNotMutated(t *testing.T) {
	schema := testSchema()
	raw := Record{"name": "Ana", "email": "ana@example.com", "age": "42"}
	_, err := schema.ProcessFields(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", raw["age"])
}

func TestProcessFields_UndeclaredFieldsPassThrough(t *testing.T) {
	schema := testSchema()
	record, err := schema.ProcessFields(Record{
		"name":  "Ana",
		"email": "ana@example.com",
		"notes": "free-form",
	})
	require.NoError(t, err)
	assert.Equal(t, "free-form", record["notes"])
}

func TestProcessFields_DefaultFuncWinsOverDefaultValue(t *testing.T) {
	schema := NewSchema("items", Fields(
		NewField("code", TypeString, Default("static"), DefaultFunc(func() any { return "thunk" })),
	))
	record, err := schema.ProcessFields(Record{})
	require.NoError(t, err)
	assert.Equal(t, "thunk", record["code"])
}

func TestProcessFields_SetterRunsBeforeCoercion(t *testing.T) {
	schema := NewSchema("users", Fields(
		NewField("email", TypeString, Setter(func(v any) any {
			return strings.ToLower(v.(string))
		})),
	))
	record, err := schema.ProcessFields(Record{"email": "ANA@EXAMPLE.COM"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", record["email"])
}

func TestProcessFields_CoercionFailureIsFieldError(t *testing.T) {
	schema := testSchema()
	_, err := schema.ProcessFields(Record{"name": "Ana", "email": "a@b", "age": "not-a-number"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var fieldErr *FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "age", fieldErr.Field)
}

func TestValidate_RequiredTreatsEmptyStringAsMissing(t *testing.T) {
	schema := testSchema()
	err := schema.Validate(Record{"name": "", "email": "a@b.com"})
	require.Error(t, err)
	var fieldErr *FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "name", fieldErr.Field)
}

func TestValidate_FailFastInDeclarationOrder(t *testing.T) {
	schema := testSchema()
	// both name and email are invalid; name is declared first
	err := schema.Validate(Record{"name": nil, "email": nil})
	require.Error(t, err)
	var fieldErr *FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "name", fieldErr.Field)
}

func TestValidate_Bounds(t *testing.T) {
	schema := testSchema()
	base := Record{"name": "Ana", "email": "a@b.com"}

	over := base.Clone()
	over["age"] = float64(200)
	err := schema.Validate(over)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<= 150")

	under := base.Clone()
	under["age"] = float64(-1)
	err = schema.Validate(under)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ">= 0")
}

func TestValidate_LengthCountsRunes(t *testing.T) {
	schema := testSchema()
	record := Record{"name": "ããããããããã", "email": "a@b.com"} // 9 runes, 18 bytes
	assert.NoError(t, schema.Validate(record))

	record["name"] = strings.Repeat("ã", 11)
	assert.Error(t, schema.Validate(record))
}

func TestValidate_MessageOverride(t *testing.T) {
	schema := testSchema()
	err := schema.Validate(Record{"name": "Ana", "email": "no-at-sign"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a valid email")
}

func TestValidate_EnumIsMembershipCheckedNotConverted(t *testing.T) {
	schema := NewSchema("tasks", Fields(
		NewField("priority", TypeEnum, Enum(1, 2, 3)),
	))

	// coercion leaves enum values untouched
	record, err := schema.ProcessFields(Record{"priority": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, record["priority"])
	assert.NoError(t, schema.Validate(record))

	// a non-member fails, even when a conversion could have matched
	err = schema.Validate(Record{"priority": "2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of")
}

func TestValidate_CustomCheckRunsLast(t *testing.T) {
	schema := NewSchema("users", Fields(
		NewField("age", TypeNumber, Min(0), Check(func(v any) error {
			if v.(float64) == 13 {
				return errors.New("thirteen is not allowed")
			}
			return nil
		})),
	))
	assert.NoError(t, schema.Validate(Record{"age": float64(12)}))
	err := schema.Validate(Record{"age": float64(13)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thirteen is not allowed")
}

func TestCoerceValue_Booleans(t *testing.T) {
	field := NewField("flag", TypeBoolean)
	for _, input := range []any{"true", "1", "yes", "on", 1, 2.5} {
		value, err := coerceValue(field, input)
		require.NoError(t, err, "input %v", input)
		assert.Equal(t, true, value, "input %v", input)
	}
	for _, input := range []any{"false", "0", "no", "off", "", 0} {
		value, err := coerceValue(field, input)
		require.NoError(t, err, "input %v", input)
		assert.Equal(t, false, value, "input %v", input)
	}
	_, err := coerceValue(field, "maybe")
	assert.Error(t, err)
}

func TestCoerceValue_TimeFromEpochAndStrings(t *testing.T) {
	field := NewField("at", TypeTimestamp)

	fromEpoch, err := coerceValue(field, int64(1700000000))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), fromEpoch)

	fromString, err := coerceValue(field, "2026-08-24T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC), fromString)

	_, err = coerceValue(field, "24/08/2026")
	assert.Error(t, err)
}

func TestCoerceValue_BigIntRejectsFractions(t *testing.T) {
	field := NewField("count", TypeBigInt)

	whole, err := coerceValue(field, float64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), whole)

	_, err = coerceValue(field, 7.5)
	assert.Error(t, err)
}

func TestCoerceValue_UUIDCanonicalizes(t *testing.T) {
	field := NewField("id", TypeUUID)
	value, err := coerceValue(field, "6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", value)

	_, err = coerceValue(field, "not-a-uuid")
	assert.Error(t, err)
}

func TestCoerceValue_JSONStringsAreDecoded(t *testing.T) {
	field := NewField("meta", TypeJSON)
	value, err := coerceValue(field, `{"k": [1, 2]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": []any{float64(1), float64(2)}}, value)
}

func TestCoerceValue_ArrayWidensTypedSlices(t *testing.T) {
	field := NewField("tags", TypeArray)
	value, err := coerceValue(field, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, value)
}
