// Package schema defines the in-memory permission model produced by
// core/parser: namespaces, relations, and subject-set rewrite trees.
//
// A built Schema is immutable and safe for concurrent reads from any
// number of goroutines; nothing in this package mutates a Schema after
// construction.
package schema

// Schema is an ordered sequence of Namespace values. Namespace order is
// the declaration order in the source; it has no semantic meaning
// beyond determinism of iteration and printing.
type Schema struct {
	Namespaces []*Namespace
}

// Namespace looks up a namespace by name, or returns nil if absent.
func (s *Schema) Namespace(name string) *Namespace {
	for _, ns := range s.Namespaces {
		if ns.Name == name {
			return ns
		}
	}
	return nil
}

// Namespace has a name and an ordered sequence of relations.
type Namespace struct {
	Name      string
	Relations []*Relation
}

// Relation looks up a relation by name, or returns nil if absent.
func (n *Namespace) Relation(name string) *Relation {
	for _, r := range n.Relations {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// RelationTypeKind discriminates RelationType variants. Modelled as a
// tagged enum rather than an interface hierarchy: the variant set is
// closed by the grammar (boolean, string, or a namespace/relation
// reference) and every consumer must switch exhaustively over it.
type RelationTypeKind int

const (
	// RelationReference is a reference to another namespace, optionally
	// via an inner relation (SubjectSet<NS, "rel">[]).
	RelationReference RelationTypeKind = iota
	// RelationAttributeBoolean is a `boolean` primitive relation.
	RelationAttributeBoolean
	// RelationAttributeString is a `string` primitive relation.
	RelationAttributeString
)

// RelationType is one alternative in a relation's type list.
//
//   - User[]                       -> {Kind: RelationReference, Namespace: "User"}
//   - SubjectSet<Team,"members">[] -> {Kind: RelationReference, Namespace: "Team", Relation: "members"}
//   - boolean                      -> {Kind: RelationAttributeBoolean}
//   - string                       -> {Kind: RelationAttributeString}
type RelationType struct {
	Kind      RelationTypeKind
	Namespace string // set iff Kind == RelationReference
	Relation  string // set iff Kind == RelationReference and the reference is a subject-set
}

// IsAttribute reports whether rt is a primitive boolean/string type.
func (rt RelationType) IsAttribute() bool {
	return rt.Kind == RelationAttributeBoolean || rt.Kind == RelationAttributeString
}

// Relation is a named edge kind between objects and subjects.
//
// A Relation with a non-empty Rewrite and empty Types is a permission.
// A Relation with non-empty Types and a nil Rewrite is a stored
// relation. Both empty is rejected by Validate.
type Relation struct {
	Name    string
	Types   []RelationType
	Rewrite *SubjectSetRewrite
}

// IsPermission reports whether r is defined by a rewrite rather than by
// stored tuples.
func (r *Relation) IsPermission() bool {
	return r.Rewrite != nil
}

// IsStored reports whether r carries stored type references.
func (r *Relation) IsStored() bool {
	return len(r.Types) > 0
}

// IsAttribute reports whether r is a single primitive (boolean/string)
// stored relation, usable as an AttributeReference leaf.
func (r *Relation) IsAttribute() bool {
	return len(r.Types) == 1 && r.Types[0].IsAttribute()
}
