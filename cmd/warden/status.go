package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/cli"
	"github.com/wardenhq/warden/internal/doctor"
)

var statusDB string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check schema and storage health",
	Long:  `Check that the schema file parses, the storage tables are migrated, and stored tuples stay consistent with the schema.`,
	Example: `  # Check status
  warden status --db postgres://localhost/warden`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := resolveString(statusDB, cfg.Database.URL)
		if dsn == "" {
			var err error
			dsn, err = cfg.DSN()
			if err != nil {
				return cli.ConfigError("resolving database connection", err)
			}
		}

		return runStatus(cmd.Context(), dsn)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDB, "db", "", "database URL")
}

func runStatus(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer pool.Close()

	d := doctor.New(pool, cfg.Schema, cfg.NetworkID)
	report, err := d.Run(ctx)
	if err != nil {
		return cli.GeneralError("running health checks", err)
	}

	report.Print(os.Stdout, verbose > 0)

	if report.HasErrors() {
		return cli.GeneralError("one or more health checks failed", nil)
	}
	return nil
}
