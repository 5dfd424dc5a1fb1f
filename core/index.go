// Package core provides the fundamental building blocks of the argil data layer.
// This file defines declarative index descriptors, compiled by each driver to
// backend-native index creation calls.
package core

import "strings"

// IndexKind selects the index family. Default btree-style ordering covers
// single-field and compound indexes; text and geospatial kinds map to the
// backend's native equivalents where available.
type IndexKind string

const (
	IndexDefault IndexKind = ""
	IndexText    IndexKind = "text"
	IndexGeo     IndexKind = "geo"
)

// IndexKey is one field of an index with its direction.
// Order accepts 1, -1, "asc", "ascending", "desc", "descending".
type IndexKey struct {
	Field string
	Order any
}

// IndexDescriptor declares one index. Descriptors are declarative data: they
// are never executed automatically, only when a caller opts in through
// Model.CreateIndexes.
type IndexDescriptor struct {
	Name   string
	Keys   []IndexKey
	Kind   IndexKind
	Unique bool
	Sparse bool
}

// ResolvedName returns the declared index name, or a generated
// <collection>_<field...>_idx name when none was declared.
func (d *IndexDescriptor) ResolvedName(collection string) string {
	if d.Name != "" {
		return d.Name
	}
	parts := make([]string, 0, len(d.Keys)+2)
	parts = append(parts, collection)
	for _, key := range d.Keys {
		parts = append(parts, key.Field)
	}
	parts = append(parts, "idx")
	return strings.Join(parts, "_")
}

// NormalizeOrder converts the accepted direction spellings into 1 (ascending)
// or -1 (descending). Unknown inputs default to ascending.
func NormalizeOrder(order any) int {
	switch v := order.(type) {
	case int:
		if v < 0 {
			return -1
		}
		return 1
	case int64:
		if v < 0 {
			return -1
		}
		return 1
	case string:
		switch strings.ToLower(v) {
		case "desc", "descending", "-1":
			return -1
		}
		return 1
	case nil:
		return 1
	}
	return 1
}
