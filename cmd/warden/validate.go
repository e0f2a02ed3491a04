package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/core/parser"
	"github.com/wardenhq/warden/internal/cli"
)

var validateSchema string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate namespace schema syntax",
	Long:  `Parse a namespace schema file and report every namespace it defines with its relation count.`,
	Example: `  # Validate a specific schema file
  warden validate --schema schemas/schema.warden

  # Validate using config file settings
  warden validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaPath := resolveString(validateSchema, cfg.Schema)

		content, err := os.ReadFile(schemaPath)
		if err != nil {
			return cli.SchemaParseError(fmt.Sprintf("schema not found: %s", schemaPath), nil)
		}

		sch, errs := parser.Parse(string(content), schemaPath)
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e)
			}
			return cli.SchemaParseError(fmt.Sprintf("schema has %d error(s)", len(errs)), nil)
		}

		if !quiet {
			fmt.Printf("Schema is valid. Found %d namespaces:\n", len(sch.Namespaces))
			for _, ns := range sch.Namespaces {
				fmt.Printf("  - %s (%d relations)\n", ns.Name, len(ns.Relations))
			}
		}

		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "path to the namespace schema file")
}
