package schema

import (
	"fmt"
	"strings"
)

// Print renders s back into namespace-DSL source text. It is the
// canonical printer referenced by invariant 2
// (parse(tokenize(print(schema))) == schema): re-parsing Print's
// output always yields a Schema structurally equal to s, though not
// necessarily the same source text the Schema was originally parsed
// from (comments, whitespace, and the bare-identifier-vs-string-literal
// choice for relation names are not preserved).
func Print(s *Schema) string {
	var sb strings.Builder
	for i, ns := range s.Namespaces {
		if i > 0 {
			sb.WriteString("\n")
		}
		printNamespace(&sb, ns)
	}
	return sb.String()
}

func printNamespace(sb *strings.Builder, ns *Namespace) {
	fmt.Fprintf(sb, "class %s implements Namespace {\n", ns.Name)

	var stored, permissions []*Relation
	for _, r := range ns.Relations {
		if r.IsPermission() {
			permissions = append(permissions, r)
		} else {
			stored = append(stored, r)
		}
	}

	if len(stored) > 0 {
		sb.WriteString("  related: {\n")
		for _, r := range stored {
			fmt.Fprintf(sb, "    %s: %s;\n", relationName(r.Name), printRelationType(r.Types))
		}
		sb.WriteString("  }\n")
	}

	if len(permissions) > 0 {
		sb.WriteString("  permits: {\n")
		for _, r := range permissions {
			fmt.Fprintf(sb, "    %s: (ctx) => %s;\n", relationName(r.Name), printRewriteTop(r.Rewrite))
		}
		sb.WriteString("  }\n")
	}

	sb.WriteString("}\n")
}

// relationName quotes a relation name as a string literal unless it is
// a valid bare identifier.
func relationName(name string) string {
	if isBareIdentifier(name) {
		return name
	}
	return "\"" + name + "\""
}

func isBareIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func printRelationType(types []RelationType) string {
	if len(types) == 1 {
		switch types[0].Kind {
		case RelationAttributeBoolean:
			return "boolean"
		case RelationAttributeString:
			return "string"
		default:
			return printTypeRef(types[0]) + "[]"
		}
	}

	members := make([]string, len(types))
	for i, t := range types {
		members[i] = printUnionMember(t)
	}
	return "(" + strings.Join(members, " | ") + ")[]"
}

func printTypeRef(t RelationType) string {
	if t.Relation == "" {
		return t.Namespace
	}
	return fmt.Sprintf("SubjectSet<%s, %s>", t.Namespace, relationName(t.Relation))
}

func printUnionMember(t RelationType) string {
	if t.Relation == "" {
		return t.Namespace
	}
	return fmt.Sprintf("SubjectSet<%s, %s>", t.Namespace, relationName(t.Relation))
}

func printRewriteTop(rw *SubjectSetRewrite) string {
	return printRewrite(rw)
}

func printRewrite(rw *SubjectSetRewrite) string {
	parts := make([]string, len(rw.Children))
	for i, c := range rw.Children {
		parts[i] = printChild(c)
	}
	return strings.Join(parts, " "+rw.Operator.String()+" ")
}

func printChild(c Child) string {
	switch v := c.(type) {
	case Rewrite:
		return "(" + printRewrite(v.Inner) + ")"
	case InvertResult:
		return "!" + printChild(v.Child)
	case ComputedSubjectSet:
		return fmt.Sprintf("this.related.%s.includes(ctx.subject)", relationName(v.Relation))
	case TupleToSubjectSet:
		return fmt.Sprintf(
			"this.related.%s.traverse(p => p.related.%s.includes(ctx.subject))",
			relationName(v.Relation), relationName(v.ComputedSubjectSetRelation))
	case AttributeReference:
		return fmt.Sprintf("this.related.%s", relationName(v.Relation))
	default:
		return fmt.Sprintf("/* unknown child %T */", c)
	}
}
