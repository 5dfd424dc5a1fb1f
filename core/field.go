// Package core provides the fundamental building blocks of the argil data layer.
// This file defines field declarations: the typed unit a schema is made of,
// carrying the default, transforms, and validation rules for one named value.
package core

import "regexp"

// FieldType enumerates the declared types a field can take. Coercion rules
// for each type are total: any accepted input shape converts or the field
// fails validation, there is no silent passthrough of a wrong type.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeNumber    FieldType = "number"
	TypeBigInt    FieldType = "bigint"
	TypeDecimal   FieldType = "decimal"
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeTimestamp FieldType = "timestamp"
	TypeArray     FieldType = "array"
	TypeObject    FieldType = "object"
	TypeJSON      FieldType = "json"
	TypeEnum      FieldType = "enum"
	TypeUUID      FieldType = "uuid"
	TypeText      FieldType = "text"
	TypeBinary    FieldType = "binary"
	TypeAny       FieldType = "any"
)

// Field represents a declared field of a schema.
//
// It carries the declared type, an optional default (value or thunk), optional
// getter/setter transforms, and the validation rule set. Fields are declared
// once at schema registration and treated as read-only afterwards.
type Field struct {
	Name string
	Type FieldType

	DefaultValue any        // materialized when the field is absent
	DefaultFunc  func() any // thunk variant, wins over DefaultValue

	GetTransform func(any) any // applied when reading a virtual view of the value
	SetTransform func(any) any // applied before coercion on writes

	IsPrimaryKey bool
	IsUnique     bool
	IsRequired   bool

	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Pattern   *regexp.Regexp
	Enum      []any
	Check     func(any) error // custom predicate, runs last
	Message   string          // overrides the generated validation message
}

// FieldOption is a function used to configure a Field.
type FieldOption func(*Field)

// NewField declares a field with the given name, type, and options.
//
// Example:
//
//	core.NewField("email", core.TypeString, core.Required(), core.MaxLength(120))
func NewField(name string, fieldType FieldType, options ...FieldOption) *Field {
	field := &Field{Name: name, Type: fieldType}
	for _, option := range options {
		option(field)
	}
	return field
}

// PrimaryKey marks the field as the schema primary key.
func PrimaryKey() FieldOption {
	return func(f *Field) { f.IsPrimaryKey = true }
}

// Unique marks the field as unique.
func Unique() FieldOption {
	return func(f *Field) { f.IsUnique = true }
}

// Required marks the field as required. Nil, absent, and empty-string values
// all count as missing.
func Required() FieldOption {
	return func(f *Field) { f.IsRequired = true }
}

// Default sets a default value, materialized when the field is absent.
func Default(value any) FieldOption {
	return func(f *Field) { f.DefaultValue = value }
}

// DefaultFunc sets a default thunk, invoked when the field is absent.
//
// Example:
//
//	core.NewField("id", core.TypeUUID, core.PrimaryKey(), core.DefaultFunc(func() any {
//		return uuid.NewString()
//	}))
func DefaultFunc(fn func() any) FieldOption {
	return func(f *Field) { f.DefaultFunc = fn }
}

// Getter registers a read transform for the field.
func Getter(fn func(any) any) FieldOption {
	return func(f *Field) { f.GetTransform = fn }
}

// Setter registers a write transform for the field, applied before coercion.
func Setter(fn func(any) any) FieldOption {
	return func(f *Field) { f.SetTransform = fn }
}

// Min sets the minimum numeric value accepted.
func Min(value float64) FieldOption {
	return func(f *Field) { f.Min = &value }
}

// Max sets the maximum numeric value accepted.
func Max(value float64) FieldOption {
	return func(f *Field) { f.Max = &value }
}

// MinLength sets the minimum length for string and array values.
func MinLength(length int) FieldOption {
	return func(f *Field) { f.MinLength = &length }
}

// MaxLength sets the maximum length for string and array values.
func MaxLength(length int) FieldOption {
	return func(f *Field) { f.MaxLength = &length }
}

// Length sets an exact length for string and array values.
func Length(length int) FieldOption {
	return func(f *Field) {
		f.MinLength = &length
		f.MaxLength = &length
	}
}

// Pattern sets a regular expression the string value must match.
// The expression is compiled at registration time and panics when invalid.
func Pattern(expr string) FieldOption {
	re := regexp.MustCompile(expr)
	return func(f *Field) { f.Pattern = re }
}

// Enum sets the accepted membership values. Enum fields are membership-checked
// only, never auto-converted.
func Enum(values ...any) FieldOption {
	return func(f *Field) { f.Enum = values }
}

// Check registers a custom validation predicate, executed after all built-in rules.
func Check(fn func(any) error) FieldOption {
	return func(f *Field) { f.Check = fn }
}

// Message overrides the generated message on validation failures of this field.
func Message(message string) FieldOption {
	return func(f *Field) { f.Message = message }
}
