package eval_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wardenhq/warden/core/eval"
	"github.com/wardenhq/warden/core/parser"
	"github.com/wardenhq/warden/core/tuple"
)

// memStore is an in-memory TupleStore test double — a fixture for
// these tests, not a production storage backend (see
// internal/storage/postgres for that).
type memStore struct {
	tuples []tuple.Tuple
}

func direct(ns, obj, rel, subjectID string) tuple.Tuple {
	return tuple.Tuple{Key: tuple.Key{Namespace: ns, Object: obj, Relation: rel, Subject: tuple.DirectSubject(subjectID)}}
}

func setTuple(ns, obj, rel, setNS, setObj, setRel string) tuple.Tuple {
	return tuple.Tuple{Key: tuple.Key{Namespace: ns, Object: obj, Relation: rel, Subject: tuple.SetSubject(setNS, setObj, setRel)}}
}

func (s *memStore) GetTuples(ctx context.Context, networkID string, q eval.Query) ([]tuple.Tuple, error) {
	var out []tuple.Tuple
	for _, t := range s.tuples {
		if q.Namespace != "" && t.Namespace != q.Namespace {
			continue
		}
		if q.Object != "" && t.Object != q.Object {
			continue
		}
		if q.Relation != "" && t.Relation != q.Relation {
			continue
		}
		if q.Subject != nil && !t.Subject.Equal(*q.Subject) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *memStore) Exists(ctx context.Context, networkID string, q eval.Query) (bool, error) {
	out, err := s.GetTuples(ctx, networkID, q)
	return len(out) > 0, err
}

func mustParseSchema(t *testing.T, src string) *eval.Evaluator {
	t.Helper()
	sch, errs := parser.Parse(src, "<test>")
	if len(errs) != 0 {
		t.Fatalf("unexpected schema errors: %v", errs)
	}
	return eval.New(sch, &memStore{}, nil, "net1")
}

func withTuples(e *eval.Evaluator, tuples ...tuple.Tuple) *eval.Evaluator {
	e.Store = &memStore{tuples: tuples}
	return e
}

// TestCheck_SeedS2 covers the simplest includes() case.
func TestCheck_SeedS2(t *testing.T) {
	e := mustParseSchema(t, `
		class Document implements Namespace {
			related: { owner: User[]; }
			permits: { view: (ctx) => this.related.owner.includes(ctx.subject); }
		}
		class User implements Namespace { related: {} }
	`)
	e = withTuples(e, direct("Document", "D", "owner", "U"))

	ok, err := e.Check(context.Background(), "Document", "D", "view", tuple.DirectSubject("U"))
	if err != nil || !ok {
		t.Fatalf("expected view to hold for U: ok=%v err=%v", ok, err)
	}
	ok, err = e.Check(context.Background(), "Document", "D", "view", tuple.DirectSubject("V"))
	if err != nil || ok {
		t.Fatalf("expected view to fail for V: ok=%v err=%v", ok, err)
	}
}

// TestCheck_SeedS3 covers Or/And/Not: edit := a || b, share := a && !c.
func TestCheck_SeedS3(t *testing.T) {
	src := `
		class Document implements Namespace {
			related: {
				a: User[];
				b: User[];
				c: boolean;
			}
			permits: {
				edit: (ctx) => this.related.a.includes(ctx.subject) || this.related.b.includes(ctx.subject);
				share: (ctx) => this.related.a.includes(ctx.subject) && !this.related.c;
			}
		}
		class User implements Namespace { related: {} }
	`

	t.Run("c attribute false", func(t *testing.T) {
		e := mustParseSchema(t, src)
		e = withTuples(e, direct("Document", "D", "a", "U"))

		edit, err := e.Check(context.Background(), "Document", "D", "edit", tuple.DirectSubject("U"))
		if err != nil || !edit {
			t.Fatalf("expected edit=true: edit=%v err=%v", edit, err)
		}
		share, err := e.Check(context.Background(), "Document", "D", "share", tuple.DirectSubject("U"))
		if err != nil || !share {
			t.Fatalf("expected share=true when c is absent/false: share=%v err=%v", share, err)
		}
	})

	t.Run("c attribute true", func(t *testing.T) {
		e := mustParseSchema(t, src)
		e = withTuples(e,
			direct("Document", "D", "a", "U"),
			direct("Document", "D", "c", "true"),
		)

		share, err := e.Check(context.Background(), "Document", "D", "share", tuple.DirectSubject("U"))
		if err != nil || share {
			t.Fatalf("expected share=false when c is true: share=%v err=%v", share, err)
		}
	})
}

// TestCheck_SeedS4 covers traverse: Document.parent_folder traverses
// into Folder's own "view" permission.
func TestCheck_SeedS4(t *testing.T) {
	e := mustParseSchema(t, `
		class Folder implements Namespace {
			related: { viewers: User[]; }
			permits: { view: (ctx) => this.related.viewers.includes(ctx.subject); }
		}
		class Document implements Namespace {
			related: { parent_folder: Folder[]; }
			permits: { view: (ctx) => this.related.parent_folder.traverse(p => p.permits.view(ctx)); }
		}
		class User implements Namespace { related: {} }
	`)
	e = withTuples(e,
		setTuple("Document", "D", "parent_folder", "Folder", "F", "members"),
		direct("Folder", "F", "viewers", "U"),
	)

	ok, err := e.Check(context.Background(), "Document", "D", "view", tuple.DirectSubject("U"))
	if err != nil || !ok {
		t.Fatalf("expected traverse-based view to hold: ok=%v err=%v", ok, err)
	}
	ok, err = e.Check(context.Background(), "Document", "D", "view", tuple.DirectSubject("V"))
	if err != nil || ok {
		t.Fatalf("expected traverse-based view to fail for V: ok=%v err=%v", ok, err)
	}
}

// TestCheck_SeedS5 covers a mutually-cyclic permission pair: the query
// must terminate with a deny, not a stack overflow or error.
func TestCheck_SeedS5(t *testing.T) {
	e := mustParseSchema(t, `
		class Thing implements Namespace {
			permits: {
				a: (ctx) => this.permits.b(ctx);
				b: (ctx) => this.permits.a(ctx);
			}
		}
	`)

	done := make(chan struct{})
	var ok bool
	var err error
	go func() {
		ok, err = e.Check(context.Background(), "Thing", "T", "a", tuple.DirectSubject("U"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Check on a cyclic permission pair did not terminate")
	}
	if err != nil {
		t.Fatalf("cyclic check should not error, got %v", err)
	}
	if ok {
		t.Fatalf("cyclic check with no tuples should deny")
	}
}

// TestExpand_SeedS7 checks Expand's leaf set against Check for every
// candidate subject on a negation-free schema with both direct and
// subject-set tuples.
func TestExpand_SeedS7(t *testing.T) {
	e := mustParseSchema(t, `
		class Document implements Namespace {
			related: {
				owner: User[];
				editors: (User | SubjectSet<Team, "members">)[];
			}
			permits: {
				edit: (ctx) => this.related.owner.includes(ctx.subject) || this.related.editors.includes(ctx.subject);
			}
		}
		class Team implements Namespace {
			related: { members: User[]; }
		}
		class User implements Namespace { related: {} }
	`)
	e = withTuples(e,
		direct("Document", "D", "owner", "U1"),
		direct("Document", "D", "editors", "U2"),
		setTuple("Document", "D", "editors", "Team", "T1", "members"),
		direct("Team", "T1", "members", "U3"),
		direct("Team", "T1", "members", "U2"), // duplicate across branches
	)

	node, err := e.Expand(context.Background(), "Document", "D", "edit")
	if err != nil {
		t.Fatalf("unexpected Expand error: %v", err)
	}
	leaves := eval.Leaves(node)
	leafSet := map[string]bool{}
	for _, s := range leaves {
		leafSet[s.UniqueID()] = true
	}

	candidates := []string{"U1", "U2", "U3", "U4"}
	for _, c := range candidates {
		subj := tuple.DirectSubject(c)
		ok, err := e.Check(context.Background(), "Document", "D", "edit", subj)
		if err != nil {
			t.Fatalf("Check(%s) error: %v", c, err)
		}
		if ok != leafSet[subj.UniqueID()] {
			t.Errorf("candidate %s: Check=%v but in leaf set=%v", c, ok, leafSet[subj.UniqueID()])
		}
	}

	// no duplicate leaves for U2, which is reachable via two branches
	count := 0
	for _, s := range leaves {
		if s.Kind == tuple.Direct && s.ID == "U2" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected U2 to appear exactly once in the deduplicated leaf set, got %d", count)
	}
}

func TestCheck_UnknownNamespaceIsInvalidInput(t *testing.T) {
	e := mustParseSchema(t, `class Document implements Namespace { related: { owner: User[]; } }`)
	_, err := e.Check(context.Background(), "Ghost", "D", "owner", tuple.DirectSubject("U"))
	if err == nil {
		t.Fatalf("expected an error for an unknown namespace")
	}
	var ii *eval.InvalidInput
	if !errors.As(err, &ii) {
		t.Fatalf("expected *eval.InvalidInput, got %T: %v", err, err)
	}
}

func TestCheck_MaxDepthExceeded(t *testing.T) {
	e := mustParseSchema(t, `
		class Thing implements Namespace {
			permits: {
				a: (ctx) => this.permits.b(ctx);
				b: (ctx) => this.permits.c(ctx);
				c: (ctx) => this.permits.a(ctx) || this.permits.b(ctx);
			}
		}
	`)
	e.MaxDepth = 2

	_, err := e.Check(context.Background(), "Thing", "T", "a", tuple.DirectSubject("U"))
	if err == nil {
		t.Fatalf("expected a max-depth error")
	}
	var te *eval.TraversalError
	if !errors.As(err, &te) || te.Kind != eval.MaxDepthExceeded {
		t.Fatalf("expected MaxDepthExceeded TraversalError, got %T: %v", err, err)
	}
}

func TestCheck_DeadlineExceededSurfacesAsTimeout(t *testing.T) {
	e := mustParseSchema(t, `class Document implements Namespace { related: { owner: User[]; } }`)
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := e.Check(ctx, "Document", "D", "owner", tuple.DirectSubject("U"))
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	var timeout *eval.Timeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected *eval.Timeout, got %T: %v", err, err)
	}
}
