package eval

import (
	"context"
	"fmt"
	"sync"

	"github.com/wardenhq/warden/core/schema"
	"github.com/wardenhq/warden/core/tuple"
)

// NodeKind discriminates Node variants in the subject tree Expand
// produces. Expand builds the whole tree before it returns; no subtree
// is evaluated on demand.
type NodeKind int

const (
	// NodeLeaf holds a direct subject identity.
	NodeLeaf NodeKind = iota
	// NodeOperator mirrors a rewrite And/Or node; Operator and
	// Children are set.
	NodeOperator
	// NodeNegated mirrors an InvertResult; it has exactly one child
	// and contributes no leaves (Expand's leaf-set correspondence to
	// Check, invariant 7, is scoped to negation-free schemas).
	NodeNegated
	// NodeAttribute mirrors an AttributeReference leaf; it carries the
	// stored attribute value rather than a subject, and likewise
	// contributes no leaves.
	NodeAttribute
)

// Node is one node of the subject tree returned by Expand. Call Leaves
// to flatten it into the deduplicated set of direct subjects it
// enumerates.
type Node struct {
	Kind NodeKind

	// Subject is set iff Kind == NodeLeaf.
	Subject tuple.Subject

	// AttributeValue is set iff Kind == NodeAttribute.
	AttributeValue string

	// Operator is set iff Kind == NodeOperator; Children is set iff
	// Kind == NodeOperator or NodeNegated.
	Operator schema.Operator
	Children []*Node
}

// Leaves flattens n into the deduplicated (by Subject.UniqueID) set of
// direct subjects it enumerates, in first-seen order. Negated and
// attribute subtrees contribute nothing.
func Leaves(n *Node) []tuple.Subject {
	seen := make(map[string]bool)
	var out []tuple.Subject
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case NodeLeaf:
			id := n.Subject.UniqueID()
			if !seen[id] {
				seen[id] = true
				out = append(out, n.Subject)
			}
		case NodeOperator:
			for _, c := range n.Children {
				walk(c)
			}
		case NodeNegated, NodeAttribute:
			// not subjects; excluded from the leaf set by design.
		}
	}
	walk(n)
	return out
}

// Expand enumerates the subject tree of (namespace, object, relation).
func (e *Evaluator) Expand(ctx context.Context, namespace, object, relation string) (*Node, error) {
	st := newFrameState(e.maxDepth())
	return e.expandFrame(ctx, namespace, object, relation, st)
}

func (e *Evaluator) expandFrame(ctx context.Context, namespace, object, relation string, st *frameState) (*Node, error) {
	if err := e.checkCancelled(ctx); err != nil {
		return nil, err
	}

	exit, shortCircuit, err := st.enter(frameKey(namespace, object, relation, tuple.SetSubject(namespace, object, relation)))
	if err != nil {
		return nil, err
	}
	if shortCircuit {
		// Revisiting a frame omits that subtree: an empty Or node
		// contributes no leaves when flattened.
		return &Node{Kind: NodeOperator, Operator: schema.Or}, nil
	}
	defer exit()

	ns, err := e.lookupNamespace(namespace)
	if err != nil {
		return nil, err
	}
	r, err := e.lookupRelation(ns, relation)
	if err != nil {
		return nil, err
	}

	if r.Rewrite != nil {
		return e.expandRewrite(ctx, namespace, object, r.Rewrite, st)
	}
	if r.IsAttribute() {
		val, err := e.attributeValue(ctx, namespace, object, relation)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeAttribute, AttributeValue: val}, nil
	}
	return e.expandStored(ctx, namespace, object, relation, st)
}

func (e *Evaluator) expandStored(ctx context.Context, namespace, object, relation string, st *frameState) (*Node, error) {
	tuples, err := e.Store.GetTuples(ctx, e.NetworkID, Query{Namespace: namespace, Object: object, Relation: relation})
	if err != nil {
		return nil, &StorageError{Err: err}
	}

	children := make([]*Node, 0, len(tuples))
	for _, t := range tuples {
		if t.Subject.Kind == tuple.Direct {
			children = append(children, &Node{Kind: NodeLeaf, Subject: t.Subject})
			continue
		}
		sub, err := e.expandFrame(ctx, t.Subject.Namespace, t.Subject.Object, t.Subject.Relation, st)
		if err != nil {
			return nil, err
		}
		children = append(children, sub)
	}
	return &Node{Kind: NodeOperator, Operator: schema.Or, Children: children}, nil
}

// expandRewrite fans its children out the same way evalRewrite does
// (one goroutine per child, each on its own cloned frameState), but
// Expand always needs every child's subtree rather than short
// -circuiting, so it collects results into an index-ordered slice
// instead of racing to a single bool.
func (e *Evaluator) expandRewrite(ctx context.Context, namespace, object string, rw *schema.SubjectSetRewrite, st *frameState) (*Node, error) {
	n := len(rw.Children)
	children := make([]*Node, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i, c := range rw.Children {
		i, c := i, c
		go func() {
			defer wg.Done()
			node, err := e.expandChild(ctx, namespace, object, c, st.clone())
			children[i] = node
			errs[i] = err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &Node{Kind: NodeOperator, Operator: rw.Operator, Children: children}, nil
}

func (e *Evaluator) expandChild(ctx context.Context, namespace, object string, c schema.Child, st *frameState) (*Node, error) {
	if err := e.checkCancelled(ctx); err != nil {
		return nil, err
	}

	switch v := c.(type) {
	case schema.Rewrite:
		return e.expandRewrite(ctx, namespace, object, v.Inner, st)

	case schema.InvertResult:
		inner, err := e.expandChild(ctx, namespace, object, v.Child, st)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeNegated, Children: []*Node{inner}}, nil

	case schema.ComputedSubjectSet:
		return e.expandFrame(ctx, namespace, object, v.Relation, st)

	case schema.TupleToSubjectSet:
		tuples, err := e.Store.GetTuples(ctx, e.NetworkID, Query{Namespace: namespace, Object: object, Relation: v.Relation})
		if err != nil {
			return nil, &StorageError{Err: err}
		}
		var children []*Node
		for _, t := range tuples {
			if t.Subject.Kind != tuple.Set {
				continue
			}
			n, err := e.expandFrame(ctx, t.Subject.Namespace, t.Subject.Object, v.ComputedSubjectSetRelation, st)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
		}
		return &Node{Kind: NodeOperator, Operator: schema.Or, Children: children}, nil

	case schema.AttributeReference:
		ns, err := e.lookupNamespace(namespace)
		if err != nil {
			return nil, err
		}
		if _, err := e.lookupRelation(ns, v.Relation); err != nil {
			return nil, err
		}
		val, err := e.attributeValue(ctx, namespace, object, v.Relation)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeAttribute, AttributeValue: val}, nil

	default:
		return nil, &InvalidInput{Message: fmt.Sprintf("unknown rewrite child type %T", c)}
	}
}
