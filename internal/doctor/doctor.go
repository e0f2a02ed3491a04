// Package doctor provides health checks for a warden deployment.
//
// The checks, run by `warden status`, validate that the authorization system is
// properly configured by checking the schema file, the migration
// state of the postgres storage, and the referential health of stored
// tuples against the parsed schema.
//
// Example usage:
//
//	d := doctor.New(pool, "schemas/schema.warden", "default")
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardenhq/warden/core/parser"
	coreschema "github.com/wardenhq/warden/core/schema"
	"github.com/wardenhq/warden/internal/storage/postgres"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Schema File", "Migration State").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	// Group checks by category
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	// Print each category
	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				// Indent details
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	// Print summary
	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Doctor performs health checks on a warden deployment: the schema
// file, the postgres migration state, and the referential health of
// tuples stored under networkID.
type Doctor struct {
	pool       *pgxpool.Pool
	schemaPath string
	networkID  string

	// parsedSchema is cached for checkTupleHealth once checkSchemaFile
	// has successfully parsed it.
	parsedSchema *coreschema.Schema
}

// New creates a new Doctor instance.
func New(pool *pgxpool.Pool, schemaPath, networkID string) *Doctor {
	return &Doctor{pool: pool, schemaPath: schemaPath, networkID: networkID}
}

// Run executes all health checks and returns a report.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	d.checkSchemaFile(report)
	if err := d.checkMigrationState(ctx, report); err != nil {
		return nil, fmt.Errorf("checking migration state: %w", err)
	}
	if err := d.checkTupleHealth(ctx, report); err != nil {
		return nil, fmt.Errorf("checking tuple health: %w", err)
	}

	return report, nil
}

// checkSchemaFile validates the schema file exists and parses cleanly.
func (d *Doctor) checkSchemaFile(report *Report) {
	content, err := os.ReadFile(d.schemaPath)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Schema File",
			Name:     "exists",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Schema file not found at %s", d.schemaPath),
			Details:  err.Error(),
			FixHint:  "Create the namespace schema file at the configured path",
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Schema File",
		Name:     "exists",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Schema file exists at %s", d.schemaPath),
	})

	sch, errs := parser.Parse(string(content), d.schemaPath)
	if len(errs) > 0 {
		lines := make([]string, len(errs))
		for i, e := range errs {
			lines[i] = e.Error()
		}
		report.AddCheck(CheckResult{
			Category: "Schema File",
			Name:     "valid",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Schema has %d error(s)", len(errs)),
			Details:  strings.Join(lines, "\n"),
			FixHint:  "Fix the reported syntax/semantic errors",
		})
		return
	}

	d.parsedSchema = sch
	relationCount := 0
	for _, ns := range sch.Namespaces {
		relationCount += len(ns.Relations)
	}
	report.AddCheck(CheckResult{
		Category: "Schema File",
		Name:     "valid",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Schema is valid (%d namespaces, %d relations)", len(sch.Namespaces), relationCount),
	})
}

// checkMigrationState inspects whether warden's tables exist and which
// migrations have been applied, via postgres.Migrator.Status.
func (d *Doctor) checkMigrationState(ctx context.Context, report *Report) error {
	status, err := postgres.NewMigrator(d.pool).Status(ctx)
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	if !status.TuplesTableExists || !status.StringUUIDTableExists {
		var missing []string
		if !status.TuplesTableExists {
			missing = append(missing, "warden_tuples")
		}
		if !status.StringUUIDTableExists {
			missing = append(missing, "warden_string_uuid")
		}
		report.AddCheck(CheckResult{
			Category: "Migration State",
			Name:     "tables_exist",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Missing tables: %s", strings.Join(missing, ", ")),
			FixHint:  "Start 'warden server' once; it applies pending migrations on startup",
		})
		return nil
	}

	report.AddCheck(CheckResult{
		Category: "Migration State",
		Name:     "tables_exist",
		Status:   StatusPass,
		Message:  "warden_tuples and warden_string_uuid exist",
	})

	if len(status.AppliedMigrations) == 0 {
		report.AddCheck(CheckResult{
			Category: "Migration State",
			Name:     "migrated",
			Status:   StatusWarn,
			Message:  "No migrations recorded",
			FixHint:  "Start 'warden server' once; it applies pending migrations on startup",
		})
		return nil
	}

	report.AddCheck(CheckResult{
		Category: "Migration State",
		Name:     "migrated",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d migration(s) applied", len(status.AppliedMigrations)),
		Details:  strings.Join(status.AppliedMigrations, "\n"),
	})
	return nil
}

// checkTupleHealth flags stored tuples whose namespace or relation no
// longer appears in the parsed schema — the usual symptom of a schema
// rename or deletion that a migration hasn't caught up with.
func (d *Doctor) checkTupleHealth(ctx context.Context, report *Report) error {
	if d.parsedSchema == nil {
		return nil // already reported by checkSchemaFile
	}

	rows, err := d.pool.Query(ctx, `
		SELECT DISTINCT namespace, relation
		FROM warden_tuples
		WHERE network_id = $1
	`, d.networkID)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Tuple Health",
			Name:     "query",
			Status:   StatusWarn,
			Message:  "Could not query warden_tuples",
			Details:  err.Error(),
		})
		return nil
	}
	defer rows.Close()

	var orphaned []string
	for rows.Next() {
		var namespace, relation string
		if err := rows.Scan(&namespace, &relation); err != nil {
			return err
		}
		ns := d.parsedSchema.Namespace(namespace)
		switch {
		case ns == nil:
			orphaned = append(orphaned, fmt.Sprintf("%s (unknown namespace)", namespace))
		case ns.Relation(relation) == nil:
			orphaned = append(orphaned, fmt.Sprintf("%s#%s (unknown relation)", namespace, relation))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(orphaned) > 0 {
		sort.Strings(orphaned)
		details := strings.Join(orphaned, "\n")
		report.AddCheck(CheckResult{
			Category: "Tuple Health",
			Name:     "orphans",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d namespace/relation pair(s) in storage are absent from the schema", len(orphaned)),
			Details:  details,
			FixHint:  "Update the schema file, or remove the stale tuples",
		})
	} else {
		report.AddCheck(CheckResult{
			Category: "Tuple Health",
			Name:     "orphans",
			Status:   StatusPass,
			Message:  "All stored namespace/relation pairs are defined in the schema",
		})
	}
	return nil
}
