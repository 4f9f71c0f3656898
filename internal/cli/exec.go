package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Database string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <schema> <mutation.yaml>",
		Short: "Apply a mutation document to a database",
		Long: `Apply one YAML mutation document and print the resulting event.

Example mutation documents:

  insert: users
  values: {id: 1, name: Ada, age: 36}

  update: users
  set: {name: {concat: [{column: name}, " L."]}}
  where: {column: id, op: "=", value: 1}

  delete: users
  where: {column: age, op: "<", value: 18}`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database URI (default: config database)")

	return cmd
}

func runExec(opts *ExecOptions, schemaPath, mutationPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	schema, err := LoadSchema(schemaPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	m, err := loadMutation(mutationPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := openDatabase(ctx, opts.RootOptions, opts.Database, schema)
	if err != nil {
		return reportEngineError(formatter, "failed to open database", err)
	}
	defer db.Close()

	ev, err := db.Mutate(ctx, m)
	if err != nil {
		return reportEngineError(formatter, "mutation failed", err)
	}
	formatter.VerboseLog("%s on %s affected %d row(s)", m.Kind, m.Table, ev.RowsAffected)
	return formatter.Canonical(ev.Summary())
}
