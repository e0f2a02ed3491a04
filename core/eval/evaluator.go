// Package eval implements Check and Expand over an immutable
// schema.Schema, a tuple lookup capability (TupleStore), and an
// optional UUID↔string mapper, per the evaluator contract: recursive
// rewrite-tree evaluation with cycle short-circuiting, a bounded
// recursion depth, and cooperative cancellation via context.Context.
package eval

import (
	"context"
	"errors"
	"fmt"

	"github.com/wardenhq/warden/core/schema"
	"github.com/wardenhq/warden/core/tuple"
)

// DefaultMaxDepth is the recursion-depth bound applied when Evaluator.MaxDepth
// is left at zero.
const DefaultMaxDepth = 256

// Evaluator answers Check and Expand queries against a fixed Schema
// snapshot. It performs no mutation of the schema, the tuple store, or
// any cursor; a single Evaluator value is safe for concurrent use by
// any number of callers, each query carrying its own visited-set.
type Evaluator struct {
	Schema    *schema.Schema
	Store     TupleStore
	Mapper    UUIDMapper
	NetworkID string
	// MaxDepth bounds recursion depth; zero means DefaultMaxDepth.
	MaxDepth int
}

// New builds an Evaluator. mapper may be nil if the caller never
// invokes CheckStrings.
func New(sch *schema.Schema, store TupleStore, mapper UUIDMapper, networkID string) *Evaluator {
	return &Evaluator{Schema: sch, Store: store, Mapper: mapper, NetworkID: networkID}
}

func (e *Evaluator) maxDepth() int {
	if e.MaxDepth > 0 {
		return e.MaxDepth
	}
	return DefaultMaxDepth
}

// frameState is the per-query visited-set and depth counter, threaded
// through one Check or Expand call. Frames are unmarked on return
// (path-based cycle detection along the call stack, not whole-query
// memoization), matching the contract's "visited-set ... along the
// call stack".
type frameState struct {
	visited  map[string]bool
	depth    int
	maxDepth int
}

func newFrameState(maxDepth int) *frameState {
	return &frameState{visited: make(map[string]bool), maxDepth: maxDepth}
}

// clone copies the visited set so concurrent sibling children (fanned
// out by evalRewrite/expandRewrite) each walk an independent path from
// the same ancestor frames, rather than racing on one shared map.
func (s *frameState) clone() *frameState {
	visited := make(map[string]bool, len(s.visited))
	for k, v := range s.visited {
		visited[k] = v
	}
	return &frameState{visited: visited, depth: s.depth, maxDepth: s.maxDepth}
}

// enter marks frame as active and returns an exit func to unmark it.
// shortCircuit is true when frame is already on the path (a cycle);
// err is non-nil only when the depth bound is exceeded.
func (s *frameState) enter(frame string) (exit func(), shortCircuit bool, err error) {
	if s.visited[frame] {
		return nil, true, nil
	}
	s.depth++
	if s.depth > s.maxDepth {
		return nil, false, &TraversalError{
			Kind:    MaxDepthExceeded,
			Message: fmt.Sprintf("depth %d exceeds maximum %d at %s", s.depth, s.maxDepth, frame),
		}
	}
	s.visited[frame] = true
	return func() {
		delete(s.visited, frame)
		s.depth--
	}, false, nil
}

func frameKey(namespace, object, relation string, subject tuple.Subject) string {
	return namespace + "\x1f" + object + "\x1f" + relation + "\x1f" + subject.UniqueID()
}

func (e *Evaluator) checkCancelled(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Timeout{Err: err}
	}
	return err
}

func (e *Evaluator) lookupNamespace(name string) (*schema.Namespace, error) {
	ns := e.Schema.Namespace(name)
	if ns == nil {
		return nil, &InvalidInput{Message: fmt.Sprintf("unknown namespace %q", name)}
	}
	return ns, nil
}

func (e *Evaluator) lookupRelation(ns *schema.Namespace, name string) (*schema.Relation, error) {
	r := ns.Relation(name)
	if r == nil {
		return nil, &InvalidInput{Message: fmt.Sprintf("unknown relation %s#%s", ns.Name, name)}
	}
	return r, nil
}

// Check decides whether subject holds relation on (namespace, object).
func (e *Evaluator) Check(ctx context.Context, namespace, object, relation string, subject tuple.Subject) (bool, error) {
	st := newFrameState(e.maxDepth())
	return e.checkFrame(ctx, namespace, object, relation, subject, st)
}

// CheckStrings is a convenience wrapper for callers holding
// human-readable object/subject identifiers rather than the ids the
// store keys tuples by: it resolves both through Mapper (read-only,
// never minting new ids) before delegating to Check with a Direct
// subject.
func (e *Evaluator) CheckStrings(ctx context.Context, namespace, objectName, relation, subjectName string) (bool, error) {
	if e.Mapper == nil {
		return false, &InvalidInput{Message: "CheckStrings requires a configured UUID mapper"}
	}
	ids, err := e.Mapper.MapStringsToUUIDsReadOnly(ctx, e.NetworkID, []string{objectName, subjectName})
	if err != nil {
		var me *MappingError
		if errors.As(err, &me) {
			return false, err
		}
		return false, &MappingError{Kind: NoUUIDForString, Value: err.Error()}
	}
	if len(ids) != 2 {
		return false, &InvalidInput{Message: "mapper returned an unexpected number of ids"}
	}
	return e.Check(ctx, namespace, ids[0], relation, tuple.DirectSubject(ids[1]))
}

func (e *Evaluator) checkFrame(ctx context.Context, namespace, object, relation string, subject tuple.Subject, st *frameState) (bool, error) {
	if err := e.checkCancelled(ctx); err != nil {
		return false, err
	}

	exit, shortCircuit, err := st.enter(frameKey(namespace, object, relation, subject))
	if err != nil {
		return false, err
	}
	if shortCircuit {
		return false, nil
	}
	defer exit()

	ns, err := e.lookupNamespace(namespace)
	if err != nil {
		return false, err
	}
	r, err := e.lookupRelation(ns, relation)
	if err != nil {
		return false, err
	}

	if r.Rewrite != nil {
		return e.evalRewrite(ctx, namespace, object, subject, r.Rewrite, st)
	}
	if r.IsAttribute() {
		return e.checkAttribute(ctx, namespace, object, relation, r.Types[0].Kind)
	}
	return e.checkStored(ctx, namespace, object, relation, subject, st)
}

func (e *Evaluator) checkStored(ctx context.Context, namespace, object, relation string, subject tuple.Subject, st *frameState) (bool, error) {
	tuples, err := e.Store.GetTuples(ctx, e.NetworkID, Query{Namespace: namespace, Object: object, Relation: relation})
	if err != nil {
		return false, &StorageError{Err: err}
	}
	for _, t := range tuples {
		if t.Subject.Equal(subject) {
			return true, nil
		}
		if t.Subject.Kind == tuple.Set {
			ok, err := e.checkFrame(ctx, t.Subject.Namespace, t.Subject.Object, t.Subject.Relation, subject, st)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

func (e *Evaluator) attributeValue(ctx context.Context, namespace, object, relation string) (string, error) {
	tuples, err := e.Store.GetTuples(ctx, e.NetworkID, Query{Namespace: namespace, Object: object, Relation: relation})
	if err != nil {
		return "", &StorageError{Err: err}
	}
	if len(tuples) == 0 {
		return "", nil
	}
	return tuples[0].Subject.ID, nil
}

// checkAttribute reports an attribute's truthiness: a boolean attribute
// is true iff its stored value is exactly "true"; a string attribute is
// true iff its stored value is non-empty.
func (e *Evaluator) checkAttribute(ctx context.Context, namespace, object, relation string, kind schema.RelationTypeKind) (bool, error) {
	val, err := e.attributeValue(ctx, namespace, object, relation)
	if err != nil {
		return false, err
	}
	if kind == schema.RelationAttributeBoolean {
		return val == "true", nil
	}
	return val != "", nil
}

// evalRewrite fans its children out across goroutines, one per child,
// each walking its own cloned frameState (see frameState.clone): an Or
// short-circuits as soon as one child reports true, an And as soon as
// one reports false, cancelling the remaining children's context
// either way.
func (e *Evaluator) evalRewrite(ctx context.Context, namespace, object string, subject tuple.Subject, rw *schema.SubjectSetRewrite, st *frameState) (bool, error) {
	shortCircuitOn := rw.Operator == schema.Or
	return fanOut(ctx, len(rw.Children), shortCircuitOn, func(cctx context.Context, i int) (bool, error) {
		return e.evalChild(cctx, namespace, object, subject, rw.Children[i], st.clone())
	})
}

// fanOut runs n independent evaluations concurrently. It returns
// shortCircuitOn as soon as any evaluation reports that value, the
// error as soon as any evaluation fails (cancelling the rest in either
// case), or !shortCircuitOn once every evaluation has reported the
// opposite value. This gives Or (shortCircuitOn=true) and And
// (shortCircuitOn=false) the same short-circuit semantics as a
// sequential loop, with concurrent children and cooperative
// cancellation in place of early return.
func fanOut(ctx context.Context, n int, shortCircuitOn bool, eval func(ctx context.Context, i int) (bool, error)) (bool, error) {
	if n == 0 {
		return !shortCircuitOn, nil
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	// Buffered so a goroutine whose result arrives after we've already
	// short-circuited can still send without blocking or leaking.
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			ok, err := eval(cctx, i)
			results <- result{ok: ok, err: err}
		}()
	}

	for received := 0; received < n; received++ {
		r := <-results
		if r.err != nil {
			cancel()
			return false, r.err
		}
		if r.ok == shortCircuitOn {
			cancel()
			return shortCircuitOn, nil
		}
	}
	return !shortCircuitOn, nil
}

func (e *Evaluator) evalChild(ctx context.Context, namespace, object string, subject tuple.Subject, c schema.Child, st *frameState) (bool, error) {
	if err := e.checkCancelled(ctx); err != nil {
		return false, err
	}

	switch v := c.(type) {
	case schema.Rewrite:
		return e.evalRewrite(ctx, namespace, object, subject, v.Inner, st)

	case schema.InvertResult:
		ok, err := e.evalChild(ctx, namespace, object, subject, v.Child, st)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case schema.ComputedSubjectSet:
		return e.checkFrame(ctx, namespace, object, v.Relation, subject, st)

	case schema.TupleToSubjectSet:
		tuples, err := e.Store.GetTuples(ctx, e.NetworkID, Query{Namespace: namespace, Object: object, Relation: v.Relation})
		if err != nil {
			return false, &StorageError{Err: err}
		}
		for _, t := range tuples {
			if t.Subject.Kind != tuple.Set {
				continue // direct-subject tuples under this relation are ignored by construction
			}
			ok, err := e.checkFrame(ctx, t.Subject.Namespace, t.Subject.Object, v.ComputedSubjectSetRelation, subject, st)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case schema.AttributeReference:
		ns, err := e.lookupNamespace(namespace)
		if err != nil {
			return false, err
		}
		r, err := e.lookupRelation(ns, v.Relation)
		if err != nil {
			return false, err
		}
		return e.checkAttribute(ctx, namespace, object, v.Relation, r.Types[0].Kind)

	default:
		return false, &InvalidInput{Message: fmt.Sprintf("unknown rewrite child type %T", c)}
	}
}
