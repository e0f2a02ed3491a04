package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wardenhq/warden/core/tuple"
)

func TestSubjectKindColumn(t *testing.T) {
	if got := subjectKindColumn(tuple.DirectSubject("U")); got != "direct" {
		t.Fatalf("expected direct, got %s", got)
	}
	if got := subjectKindColumn(tuple.SetSubject("Team", "T1", "members")); got != "set" {
		t.Fatalf("expected set, got %s", got)
	}
}

func TestMapError_UndefinedTableBecomesSchemaNotMigrated(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgUndefinedTable, Message: `relation "warden_tuples" does not exist`}
	err := mapError("get_tuples", pgErr)
	if !errors.Is(err, ErrSchemaNotMigrated) {
		t.Fatalf("expected ErrSchemaNotMigrated, got %v", err)
	}
}

func TestMapError_OtherErrorsPassThroughWrapped(t *testing.T) {
	base := errors.New("connection reset")
	err := mapError("get_tuples", base)
	if errors.Is(err, ErrSchemaNotMigrated) {
		t.Fatalf("did not expect ErrSchemaNotMigrated for an unrelated error")
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to still match base via errors.Is, got %v", err)
	}
}
