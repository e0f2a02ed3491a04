// Package postgres implements core/eval.TupleStore and
// core/eval.UUIDMapper against a real Postgres backend, following the
// teacher's checker.go query and error-mapping patterns (parameterised
// SQL, pg error code detection for undefined_table) but against tables
// that store raw tuples (warden_tuples) rather than a compiled SQL
// function, and a warden_string_uuid table for the mapping
// collaborator.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/google/uuid"

	"github.com/wardenhq/warden/core/eval"
	"github.com/wardenhq/warden/core/tuple"
)

const pgUndefinedTable = "42P01"

// ErrSchemaNotMigrated is returned when warden_tuples or
// warden_string_uuid does not exist yet.
var ErrSchemaNotMigrated = errors.New("postgres: warden schema not migrated, start 'warden server' once to apply migrations")

// Store implements eval.TupleStore and eval.UUIDMapper against a pgx
// connection pool. A Store is safe for concurrent use; it holds no
// state beyond the pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. Closing the pool remains the caller's
// responsibility.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var (
	_ eval.TupleStore = (*Store)(nil)
	_ eval.UUIDMapper = (*Store)(nil)
)

// GetTuples implements eval.TupleStore.
func (s *Store) GetTuples(ctx context.Context, networkID string, q eval.Query) ([]tuple.Tuple, error) {
	sqlStr := `
		SELECT namespace, object, relation,
		       subject_kind, subject_id, subject_namespace, subject_object, subject_relation,
		       shard_id, network_id, commit_time
		FROM warden_tuples
		WHERE network_id = $1
		  AND ($2 = '' OR namespace = $2)
		  AND ($3 = '' OR object = $3)
		  AND ($4 = '' OR relation = $4)`
	args := []any{networkID, q.Namespace, q.Object, q.Relation}

	if q.Subject != nil {
		sqlStr += " AND subject_kind = $5 AND subject_id = $6 AND subject_namespace = $7 AND subject_object = $8 AND subject_relation = $9"
		args = append(args, subjectKindColumn(*q.Subject), q.Subject.ID, q.Subject.Namespace, q.Subject.Object, q.Subject.Relation)
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError("get_tuples", err)
	}
	defer rows.Close()

	var out []tuple.Tuple
	for rows.Next() {
		t, err := scanTuple(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning tuple: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("get_tuples", err)
	}
	return out, nil
}

// Exists implements eval.TupleStore.
func (s *Store) Exists(ctx context.Context, networkID string, q eval.Query) (bool, error) {
	sqlStr := `
		SELECT EXISTS (
			SELECT 1 FROM warden_tuples
			WHERE network_id = $1
			  AND ($2 = '' OR namespace = $2)
			  AND ($3 = '' OR object = $3)
			  AND ($4 = '' OR relation = $4)`
	args := []any{networkID, q.Namespace, q.Object, q.Relation}
	if q.Subject != nil {
		sqlStr += " AND subject_kind = $5 AND subject_id = $6 AND subject_namespace = $7 AND subject_object = $8 AND subject_relation = $9"
		args = append(args, subjectKindColumn(*q.Subject), q.Subject.ID, q.Subject.Namespace, q.Subject.Object, q.Subject.Relation)
	}
	sqlStr += ")"

	var exists bool
	if err := s.pool.QueryRow(ctx, sqlStr, args...).Scan(&exists); err != nil {
		return false, mapError("exists", err)
	}
	return exists, nil
}

// WriteTuple inserts a tuple, ignoring the write if an identical one
// already exists. Not part of eval.TupleStore (the evaluator never
// writes); it exists for ingestion paths and test fixtures.
func (s *Store) WriteTuple(ctx context.Context, networkID string, t tuple.Tuple) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO warden_tuples
			(network_id, namespace, object, relation,
			 subject_kind, subject_id, subject_namespace, subject_object, subject_relation, shard_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
	`,
		networkID, t.Namespace, t.Object, t.Relation,
		subjectKindColumn(t.Subject), t.Subject.ID, t.Subject.Namespace, t.Subject.Object, t.Subject.Relation,
		t.ShardID,
	)
	if err != nil {
		return mapError("write_tuple", err)
	}
	return nil
}

// DeleteTuple removes a tuple matching key exactly, if present.
func (s *Store) DeleteTuple(ctx context.Context, networkID string, key tuple.Key) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM warden_tuples
		WHERE network_id = $1 AND namespace = $2 AND object = $3 AND relation = $4
		  AND subject_kind = $5 AND subject_id = $6 AND subject_namespace = $7
		  AND subject_object = $8 AND subject_relation = $9
	`,
		networkID, key.Namespace, key.Object, key.Relation,
		subjectKindColumn(key.Subject), key.Subject.ID, key.Subject.Namespace, key.Subject.Object, key.Subject.Relation,
	)
	if err != nil {
		return mapError("delete_tuple", err)
	}
	return nil
}

// MapStringsToUUIDsReadOnly implements eval.UUIDMapper: it resolves
// already-minted ids only, per the mapper's "read-only" contract — it
// never inserts a new mapping, so an unrecognized string is an error
// rather than a silent mint. Use EnsureUUID during ingestion to mint.
func (s *Store) MapStringsToUUIDsReadOnly(ctx context.Context, networkID string, strings []string) ([]string, error) {
	out := make([]string, len(strings))
	for i, str := range strings {
		var id string
		err := s.pool.QueryRow(ctx,
			`SELECT uuid FROM warden_string_uuid WHERE network_id = $1 AND string = $2`,
			networkID, str,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &eval.MappingError{Kind: eval.NoUUIDForString, Value: str}
		}
		if err != nil {
			return nil, mapError("map_strings_to_uuids", err)
		}
		out[i] = id
	}
	return out, nil
}

// MapUUIDsToStrings implements eval.UUIDMapper, the reverse lookup.
func (s *Store) MapUUIDsToStrings(ctx context.Context, uuids []string) ([]string, error) {
	out := make([]string, len(uuids))
	for i, id := range uuids {
		var str string
		err := s.pool.QueryRow(ctx,
			`SELECT string FROM warden_string_uuid WHERE uuid = $1`,
			id,
		).Scan(&str)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &eval.MappingError{Kind: eval.NoStringForUUID, Value: id}
		}
		if err != nil {
			return nil, mapError("map_uuids_to_strings", err)
		}
		out[i] = str
	}
	return out, nil
}

// EnsureUUID mints (v5, namespaced by networkID) and upserts the
// mapping for str if it has none yet, returning the resulting UUID
// either way. This is the only place warden ever mints a new mapping;
// MapStringsToUUIDsReadOnly deliberately cannot.
func (s *Store) EnsureUUID(ctx context.Context, networkID, str string) (string, error) {
	ns := uuid.NewSHA1(uuid.Nil, []byte(networkID))
	id := uuid.NewSHA1(ns, []byte(str))

	_, err := s.pool.Exec(ctx, `
		INSERT INTO warden_string_uuid (network_id, string, uuid)
		VALUES ($1, $2, $3)
		ON CONFLICT (network_id, string) DO NOTHING
	`, networkID, str, id)
	if err != nil {
		return "", mapError("ensure_uuid", err)
	}

	var existing string
	if err := s.pool.QueryRow(ctx,
		`SELECT uuid FROM warden_string_uuid WHERE network_id = $1 AND string = $2`,
		networkID, str,
	).Scan(&existing); err != nil {
		return "", mapError("ensure_uuid", err)
	}
	return existing, nil
}

func subjectKindColumn(s tuple.Subject) string {
	if s.Kind == tuple.Set {
		return "set"
	}
	return "direct"
}

func scanTuple(rows pgx.Rows) (tuple.Tuple, error) {
	var (
		t                                                                      tuple.Tuple
		subjectKind, subjectID, subjectNamespace, subjectObject, subjectRelation string
	)
	if err := rows.Scan(
		&t.Namespace, &t.Object, &t.Relation,
		&subjectKind, &subjectID, &subjectNamespace, &subjectObject, &subjectRelation,
		&t.ShardID, &t.NetworkID, &t.CommitTime,
	); err != nil {
		return tuple.Tuple{}, err
	}
	if subjectKind == "set" {
		t.Subject = tuple.SetSubject(subjectNamespace, subjectObject, subjectRelation)
	} else {
		t.Subject = tuple.DirectSubject(subjectID)
	}
	return t, nil
}

// mapError maps Postgres errors to sentinel errors, mirroring the
// teacher's mapError: detect the SQLSTATE via pgconn's typed error
// rather than string matching, and translate undefined_table against
// warden's own tables to ErrSchemaNotMigrated. It returns a plain
// wrapped error — eval.TupleStore's contract has the Evaluator itself
// wrap store failures in *eval.StorageError, so Store must not
// pre-wrap and double up.
func mapError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%s: %w", operation, ErrSchemaNotMigrated)
	}
	return fmt.Errorf("postgres: %s: %w", operation, err)
}
