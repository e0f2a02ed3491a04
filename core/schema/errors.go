package schema

import "fmt"

// Error is a SchemaError: a semantic problem discovered while building
// or validating a Schema, as opposed to a syntax problem caught by the
// parser (core/parser.Error) while reading tokens.
//
// Kinds: a namespace referenced from a rewrite or type list does not
// exist; a relation referenced does not exist; an attribute relation
// used where a set relation is required, or vice versa; a relation
// with neither types nor a rewrite (ambiguous — neither stored nor
// computed).
type Error struct {
	Namespace string
	Relation  string
	Message   string
}

func (e *Error) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("schema: %s.%s: %s", e.Namespace, e.Relation, e.Message)
	}
	return fmt.Sprintf("schema: %s: %s", e.Namespace, e.Message)
}

func newError(ns, rel, format string, args ...any) *Error {
	return &Error{Namespace: ns, Relation: rel, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the structural and referential invariants of a built
// Schema and returns every violation found (not just the first). A nil
// return means the schema is well-formed.
func Validate(s *Schema) []error {
	var errs []error

	for _, ns := range s.Namespaces {
		for _, r := range ns.Relations {
			if len(r.Types) == 0 && r.Rewrite == nil {
				errs = append(errs, newError(ns.Name, r.Name,
					"relation has neither a type list nor a rewrite (neither stored nor a permission)"))
				continue
			}

			for _, rt := range r.Types {
				if rt.Kind != RelationReference {
					continue
				}
				target := s.Namespace(rt.Namespace)
				if target == nil {
					errs = append(errs, newError(ns.Name, r.Name,
						"references undefined namespace %q", rt.Namespace))
					continue
				}
				if rt.Relation != "" && target.Relation(rt.Relation) == nil {
					errs = append(errs, newError(ns.Name, r.Name,
						"references undefined relation %s#%s", rt.Namespace, rt.Relation))
				}
			}

			if r.Rewrite != nil {
				errs = append(errs, validateRewrite(s, ns, r.Rewrite)...)
			}
		}
	}

	return errs
}

func validateRewrite(s *Schema, ns *Namespace, rw *SubjectSetRewrite) []error {
	var errs []error
	if len(rw.Children) == 0 {
		errs = append(errs, newError(ns.Name, "", "rewrite operator %s has no children", rw.Operator))
		return errs
	}
	for _, c := range rw.Children {
		errs = append(errs, validateChild(s, ns, c)...)
	}
	return errs
}

func validateChild(s *Schema, ns *Namespace, c Child) []error {
	switch v := c.(type) {
	case Rewrite:
		return validateRewrite(s, ns, v.Inner)
	case InvertResult:
		return validateChild(s, ns, v.Child)
	case ComputedSubjectSet:
		return validateRelationRef(s, ns, v.Relation, false)
	case AttributeReference:
		return validateRelationRef(s, ns, v.Relation, true)
	case TupleToSubjectSet:
		var errs []error
		errs = append(errs, validateRelationRef(s, ns, v.Relation, false)...)
		// ComputedSubjectSetRelation is evaluated against whatever
		// namespace v.Relation points at, which may vary per tuple, so
		// it cannot be checked here without walking live tuples; that
		// check happens at evaluation time (core/eval).
		return errs
	default:
		return []error{newError(ns.Name, "", "unknown rewrite child type %T", c)}
	}
}

func validateRelationRef(s *Schema, ns *Namespace, relName string, wantAttribute bool) []error {
	rel := ns.Relation(relName)
	if rel == nil {
		return []error{newError(ns.Name, relName, "references undefined relation")}
	}
	if wantAttribute && !rel.IsAttribute() && !rel.IsPermission() {
		return []error{newError(ns.Name, relName, "used as a boolean/string attribute but is a set relation")}
	}
	if !wantAttribute && rel.IsAttribute() && !rel.IsPermission() {
		return []error{newError(ns.Name, relName, "used as a set relation but is a boolean/string attribute")}
	}
	return nil
}
