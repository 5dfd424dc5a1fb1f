// Package core provides the fundamental building blocks of the argil data layer.
// This file defines relation descriptors. Relations resolve through a second
// model query keyed on a foreign/local field pair; there is no eager loading,
// join fusion, or N+1 batching.
package core

// RelationKind defines the type of relationship between schemas.
type RelationKind int

const (
	BelongsTo  RelationKind = 1
	HasOne     RelationKind = 2
	HasMany    RelationKind = 3
	ManyToMany RelationKind = 4
)

// Relation describes a named relationship registered on a schema.
//
// For BelongsTo, ForeignKey names the field on the owning record and LocalKey
// the field on the related schema (defaulting to its primary key). For HasOne
// and HasMany the roles invert: LocalKey is read off the owning record
// (defaulting to its primary key) and ForeignKey is matched on the related
// schema. ManyToMany goes through a join collection.
type Relation struct {
	Kind       RelationKind
	Schema     *Schema // related schema
	ForeignKey string
	LocalKey   string

	// ManyToMany only
	JoinCollection string
	JoinLocalKey   string
	JoinForeignKey string
}

// FindOptions carries the sort/skip/limit options accepted by HasMany and
// other multi-record relation lookups, mirroring FindAll.
type FindOptions struct {
	Sort  []SortSpec
	Skip  int
	Limit int
}

// SortSpec is one ordering rule in FindOptions.
// Order accepts the same spellings as NormalizeOrder.
type SortSpec struct {
	Field string
	Order any
}

// AddRelation registers a named relation on the schema.
//
// Example:
//
//	userSchema.AddRelation("posts", &core.Relation{
//		Kind:       core.HasMany,
//		Schema:     postSchema,
//		ForeignKey: "authorId",
//	})
func (s *Schema) AddRelation(name string, relation *Relation) {
	s.relations[name] = relation
}

// findRelation returns the relation registered under name, or nil.
func (s *Schema) findRelation(name string) *Relation {
	return s.relations[name]
}
