package eval

import (
	"context"

	"github.com/wardenhq/warden/core/tuple"
)

// Query selects tuples by any subset of {Namespace, Object, Relation,
// Subject}; a zero-value field (or a nil Subject) is unconstrained.
type Query struct {
	Namespace string
	Object    string
	Relation  string
	Subject   *tuple.Subject
}

// TupleStore is the tuple lookup capability the evaluator consumes. It
// is expected to be safe for concurrent use; the evaluator never
// mutates through it during Check/Expand.
type TupleStore interface {
	GetTuples(ctx context.Context, networkID string, q Query) ([]tuple.Tuple, error)
	Exists(ctx context.Context, networkID string, q Query) (bool, error)
}

// UUIDMapper is the UUID↔string mapping collaborator. The evaluator
// itself works in terms of whatever ids TupleStore hands back; mapper
// access is exposed for callers that want to resolve human-readable
// names to the ids a query needs (CheckStrings) or back again, without
// reaching past the Evaluator for it.
type UUIDMapper interface {
	MapStringsToUUIDsReadOnly(ctx context.Context, networkID string, strings []string) ([]string, error)
	MapUUIDsToStrings(ctx context.Context, uuids []string) ([]string, error)
}
