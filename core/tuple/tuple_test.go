package tuple_test

import (
	"strings"
	"testing"

	"github.com/wardenhq/warden/core/tuple"
)

func TestParseKey_Direct(t *testing.T) {
	k, err := tuple.ParseKey("Document:D#owner@U")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Namespace != "Document" || k.Object != "D" || k.Relation != "owner" {
		t.Fatalf("parsed wrong: %#v", k)
	}
	if k.Subject.Kind != tuple.Direct || k.Subject.ID != "U" {
		t.Fatalf("subject parsed wrong: %#v", k.Subject)
	}
	if k.String() != "Document:D#owner@U" {
		t.Fatalf("round-trip mismatch: %s", k.String())
	}
}

func TestParseKey_SubjectSet(t *testing.T) {
	k, err := tuple.ParseKey("Document:D#parent_folder@Folder:F#members")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Subject.Kind != tuple.Set {
		t.Fatalf("expected subject-set, got %#v", k.Subject)
	}
	if k.Subject.Namespace != "Folder" || k.Subject.Object != "F" || k.Subject.Relation != "members" {
		t.Fatalf("subject-set fields wrong: %#v", k.Subject)
	}
	if k.String() != "Document:D#parent_folder@Folder:F#members" {
		t.Fatalf("round-trip mismatch: %s", k.String())
	}
}

func TestParseKey_Malformed(t *testing.T) {
	cases := []string{
		"",
		"Document",
		"Document:D",
		"Document:D#owner",
		"Document:D#owner@",
		":D#owner@U",
		"Document:#owner@U",
		"Document:D#@U",
		"Document:D#owner@U@extra",
		"Document:D#owner@Folder:F#members#extra",
	}
	for _, c := range cases {
		if _, err := tuple.ParseKey(c); err == nil {
			t.Errorf("expected error parsing %q, got none", c)
		}
	}
}

func TestSubject_Equal(t *testing.T) {
	a := tuple.DirectSubject("U1")
	b := tuple.DirectSubject("U1")
	c := tuple.DirectSubject("U2")
	if !a.Equal(b) {
		t.Fatalf("expected equal direct subjects")
	}
	if a.Equal(c) {
		t.Fatalf("expected unequal direct subjects")
	}

	s1 := tuple.SetSubject("Folder", "F", "members")
	s2 := tuple.SetSubject("Folder", "F", "members")
	s3 := tuple.SetSubject("Folder", "F", "viewers")
	if !s1.Equal(s2) {
		t.Fatalf("expected equal set subjects")
	}
	if s1.Equal(s3) {
		t.Fatalf("expected unequal set subjects")
	}
	if a.Equal(s1) {
		t.Fatalf("direct and set subjects should never be equal")
	}
}

func TestSubject_UniqueID_DirectIsID(t *testing.T) {
	s := tuple.DirectSubject("abc-123")
	if s.UniqueID() != "abc-123" {
		t.Fatalf("direct unique-id should be the raw id, got %s", s.UniqueID())
	}
}

func TestSubject_UniqueID_SetIsDeterministicAndInjective(t *testing.T) {
	s1 := tuple.SetSubject("Folder", "F", "members")
	s2 := tuple.SetSubject("Folder", "F", "members")
	if s1.UniqueID() != s2.UniqueID() {
		t.Fatalf("equal subject-sets must share a unique-id")
	}

	variants := []tuple.Subject{
		tuple.SetSubject("Folder", "F", "members"),
		tuple.SetSubject("Folder", "F", "viewers"),
		tuple.SetSubject("Folder", "G", "members"),
		tuple.SetSubject("Team", "F", "members"),
	}
	seen := map[string]bool{}
	for _, v := range variants {
		id := v.UniqueID()
		if seen[id] {
			t.Fatalf("unique-id collision for %#v", v)
		}
		seen[id] = true
	}
}

func TestSubject_UniqueID_LooksLikeUUID(t *testing.T) {
	s := tuple.SetSubject("Folder", "F", "members")
	id := s.UniqueID()
	if strings.Count(id, "-") != 4 {
		t.Fatalf("expected a UUID-shaped unique-id, got %s", id)
	}
}
