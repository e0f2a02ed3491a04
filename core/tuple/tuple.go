// Package tuple defines the canonical relationship fact (Tuple) and
// subject abstraction the evaluator reasons over, plus the
// `namespace:object#relation@subject` string form used at the storage
// and CLI boundary.
package tuple

import (
	"fmt"
	"strings"
	"time"
)

// Key is the part of a Tuple that participates in the canonical string
// form and in equality/lookup: everything except the storage-level
// shard/network identifiers and the commit timestamp.
type Key struct {
	Namespace string
	Object    string
	Relation  string
	Subject   Subject
}

// String renders k as `namespace:object#relation@subject`, with
// subject either a bare id or a nested `ns:obj#rel` subject-set form.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s#%s@%s", k.Namespace, k.Object, k.Relation, k.Subject.canonicalString())
}

// Tuple is a stored fact: object has relation with subject in
// namespace, scoped to a network (tenant) and shard, recorded at
// commit-time.
type Tuple struct {
	Key

	ShardID    string
	NetworkID  string
	CommitTime time.Time
}

// ParseKey parses the canonical string form into a Key. It is total:
// every input either yields a Key or a non-nil error, and any trailing
// or malformed content is rejected rather than silently ignored.
func ParseKey(s string) (Key, error) {
	namespace, rest, ok := strings.Cut(s, ":")
	if !ok || namespace == "" {
		return Key{}, fmt.Errorf("tuple: missing namespace in %q", s)
	}

	object, rest, ok := strings.Cut(rest, "#")
	if !ok || object == "" {
		return Key{}, fmt.Errorf("tuple: missing object in %q", s)
	}

	relation, subjectText, ok := strings.Cut(rest, "@")
	if !ok || relation == "" {
		return Key{}, fmt.Errorf("tuple: missing relation in %q", s)
	}
	if subjectText == "" {
		return Key{}, fmt.Errorf("tuple: missing subject in %q", s)
	}

	subject, err := parseSubjectText(subjectText)
	if err != nil {
		return Key{}, fmt.Errorf("tuple: %w in %q", err, s)
	}

	return Key{Namespace: namespace, Object: object, Relation: relation, Subject: subject}, nil
}

func parseSubjectText(s string) (Subject, error) {
	if !strings.Contains(s, "#") {
		if strings.ContainsAny(s, "@#:") {
			return Subject{}, fmt.Errorf("trailing garbage in subject %q", s)
		}
		return DirectSubject(s), nil
	}

	namespace, rest, ok := strings.Cut(s, ":")
	if !ok || namespace == "" {
		return Subject{}, fmt.Errorf("malformed subject-set %q", s)
	}
	object, relation, ok := strings.Cut(rest, "#")
	if !ok || object == "" || relation == "" {
		return Subject{}, fmt.Errorf("malformed subject-set %q", s)
	}
	if strings.ContainsAny(relation, "@#:") {
		return Subject{}, fmt.Errorf("trailing garbage in subject-set %q", s)
	}
	return SetSubject(namespace, object, relation), nil
}
