// Package core provides the fundamental building blocks of the argil data layer.
// This file defines Record, the mutable field-name to value bag every model
// operation traffics in, plus small helpers over it.
package core

// Record is a single entity instance: a mutable bag of field-name to value
// pairs. Records carry no change tracking; updates are expressed as explicit
// partial payloads, and a record's fields are refreshed from the backend's
// canonical row/document after every successful mutation.
type Record map[string]any

// Clone returns a shallow copy of the record. A nil record clones to an empty one.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for key, value := range r {
		out[key] = value
	}
	return out
}

// cloneRecords clones every record in the slice. A nil slice stays nil.
func cloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, record := range records {
		out[i] = record.Clone()
	}
	return out
}

// Merge copies every entry of other into the record, overwriting existing keys.
func (r Record) Merge(other Record) Record {
	for key, value := range other {
		r[key] = value
	}
	return r
}

// isFalsy reports whether a value counts as "unset" for relation resolution:
// nil, empty string, numeric zero, or false.
func isFalsy(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case int:
		return v == 0
	case int32:
		return v == 0
	case int64:
		return v == 0
	case float32:
		return v == 0
	case float64:
		return v == 0
	}
	return false
}
