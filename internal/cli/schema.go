package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/notitia/internal/querysql"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Dialect string
}

// SchemaResult is the JSON payload of the schema command.
type SchemaResult struct {
	Dialect    string   `json:"dialect"`
	Statements []string `json:"statements"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema <schema>",
		Short: "Print the CREATE TABLE statements for a schema",
		Long: `Compile a CUE table schema and print the DDL notitia applies when it
opens a database.

The dialect defaults to the configured one (sqlite unless overridden).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (sqlite|postgres)")

	return cmd
}

func runSchema(opts *SchemaOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	name := opts.Dialect
	if name == "" {
		name = opts.settings().Dialect
	}
	dialect, err := querysql.ParseDialect(name)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid dialect", err)
	}

	schema, err := LoadSchema(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	stmts := querysql.CreateSchema(schema, dialect)
	formatter.VerboseLog("Compiled %d table(s) for %s", len(stmts), dialect)

	if formatter.Format == "json" {
		return formatter.Success(SchemaResult{Dialect: dialect.String(), Statements: stmts})
	}
	for _, stmt := range stmts {
		fmt.Fprintf(formatter.Writer, "%s;\n\n", stmt)
	}
	return nil
}
