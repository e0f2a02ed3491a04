package schema_test

import (
	"strings"
	"testing"

	"github.com/wardenhq/warden/core/schema"
)

func TestValidate_MissingTypesAndRewrite(t *testing.T) {
	s := &schema.Schema{Namespaces: []*schema.Namespace{
		{Name: "Document", Relations: []*schema.Relation{{Name: "broken"}}},
	}}
	errs := schema.Validate(s)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
}

func TestValidate_UndefinedNamespaceReference(t *testing.T) {
	s := &schema.Schema{Namespaces: []*schema.Namespace{
		{Name: "Document", Relations: []*schema.Relation{
			{Name: "owner", Types: []schema.RelationType{{Kind: schema.RelationReference, Namespace: "Ghost"}}},
		}},
	}}
	errs := schema.Validate(s)
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "Ghost") {
		t.Fatalf("expected an undefined-namespace error mentioning Ghost, got %v", errs)
	}
}

func TestValidate_UndefinedInnerRelationOnSubjectSet(t *testing.T) {
	s := &schema.Schema{Namespaces: []*schema.Namespace{
		{Name: "Team", Relations: []*schema.Relation{}},
		{Name: "Document", Relations: []*schema.Relation{
			{Name: "parent", Types: []schema.RelationType{{Kind: schema.RelationReference, Namespace: "Team", Relation: "members"}}},
		}},
	}}
	errs := schema.Validate(s)
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "members") {
		t.Fatalf("expected an undefined-relation error mentioning members, got %v", errs)
	}
}

func TestValidate_AttributeSetMismatch(t *testing.T) {
	s := &schema.Schema{Namespaces: []*schema.Namespace{
		{Name: "Document", Relations: []*schema.Relation{
			{Name: "locked", Types: []schema.RelationType{{Kind: schema.RelationAttributeBoolean}}},
			{Name: "view", Rewrite: schema.Singleton(schema.And, schema.AttributeReference{Relation: "locked"})},
			{Name: "owner", Types: []schema.RelationType{{Kind: schema.RelationReference, Namespace: "Document"}}},
			{Name: "bad", Rewrite: schema.Singleton(schema.And, schema.AttributeReference{Relation: "owner"})},
		}},
	}}
	errs := schema.Validate(s)
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 mismatch error (owner used as attribute), got %d: %v", len(errs), errs)
	}
}

func TestValidate_PermissionIsExemptFromAttributeSetCheck(t *testing.T) {
	s := &schema.Schema{Namespaces: []*schema.Namespace{
		{Name: "Document", Relations: []*schema.Relation{
			{Name: "owner", Types: []schema.RelationType{{Kind: schema.RelationReference, Namespace: "Document"}}},
			{Name: "view", Rewrite: schema.Singleton(schema.And, schema.ComputedSubjectSet{Relation: "owner"})},
			{Name: "alsoView", Rewrite: schema.Singleton(schema.And, schema.ComputedSubjectSet{Relation: "view"})},
		}},
	}}
	if errs := schema.Validate(s); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidate_Clean(t *testing.T) {
	s := &schema.Schema{Namespaces: []*schema.Namespace{
		{Name: "User", Relations: nil},
		{Name: "Document", Relations: []*schema.Relation{
			{Name: "owner", Types: []schema.RelationType{{Kind: schema.RelationReference, Namespace: "User"}}},
			{Name: "view", Rewrite: schema.Singleton(schema.And, schema.ComputedSubjectSet{Relation: "owner"})},
		}},
	}}
	if errs := schema.Validate(s); len(errs) != 0 {
		t.Fatalf("expected clean schema to validate, got %v", errs)
	}
}

func TestPrint_BareVsQuotedRelationNames(t *testing.T) {
	s := &schema.Schema{Namespaces: []*schema.Namespace{
		{Name: "Document", Relations: []*schema.Relation{
			{Name: "owner", Types: []schema.RelationType{{Kind: schema.RelationReference, Namespace: "User"}}},
			{Name: "weird-name", Types: []schema.RelationType{{Kind: schema.RelationAttributeBoolean}}},
		}},
	}}
	out := schema.Print(s)
	if !strings.Contains(out, "owner: User[]") {
		t.Fatalf("expected bare identifier for owner, got:\n%s", out)
	}
	if !strings.Contains(out, `"weird-name": boolean`) {
		t.Fatalf("expected quoted name for weird-name, got:\n%s", out)
	}
}

func TestPrint_UnionAndSubjectSet(t *testing.T) {
	s := &schema.Schema{Namespaces: []*schema.Namespace{
		{Name: "Document", Relations: []*schema.Relation{
			{Name: "parent", Types: []schema.RelationType{
				{Kind: schema.RelationReference, Namespace: "Folder"},
				{Kind: schema.RelationReference, Namespace: "Team", Relation: "members"},
			}},
		}},
	}}
	out := schema.Print(s)
	if !strings.Contains(out, `(Folder | SubjectSet<Team, members>)[]`) {
		t.Fatalf("unexpected union rendering:\n%s", out)
	}
}
