package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/notitia/internal/engine"
	"github.com/roach88/notitia/internal/ir"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	Watch    bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <schema> <query.yaml>",
		Short: "Run a query document against a database",
		Long: `Run a YAML query document and print the result.

With --watch the query becomes a subscription: the current result is printed,
then again after every change, until interrupted.

Example query document:

  table: users
  select: [id, name]
  where: {column: age, op: ">=", value: 18}
  order: [-age]
  fetch: many
  limit: 10`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database URI (default: config database)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "subscribe and print every change")

	return cmd
}

func runQuery(opts *QueryOptions, schemaPath, queryPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	schema, err := LoadSchema(schemaPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	q, err := loadQuery(queryPath)
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

	if !opts.Watch {
		rows, err := db.Query(ctx, q)
		if err != nil {
			return reportEngineError(formatter, "query failed", err)
		}
		return formatter.Rows(q.Columns, rows)
	}

	sub, err := db.Subscribe(ctx, q)
	if err != nil {
		return reportEngineError(formatter, "subscribe failed", err)
	}
	defer sub.Close()
	formatter.VerboseLog("Subscribed %s to %s", sub.ID(), q.Table)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var outErr error
	err = sub.Watch(ctx, func(rows ir.ResultSet) {
		if outErr == nil {
			outErr = formatter.Rows(q.Columns, rows)
		}
	})
	if outErr != nil {
		return outErr
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return reportEngineError(formatter, "watch failed", err)
	}
	if cause := sub.Err(); cause != nil {
		return reportEngineError(formatter, "subscription closed", cause)
	}
	return nil
}

// openDatabase connects to uri, falling back to the configured database.
func openDatabase(ctx context.Context, opts *RootOptions, uri string, schema *ir.Schema) (*engine.Database, error) {
	cfg := opts.settings()
	if uri == "" {
		uri = cfg.Database
	}
	engineOpts := append(cfg.EngineOptions(), engine.WithLogger(opts.logger()))
	return engine.Connect(ctx, uri, schema, engineOpts...)
}

// reportEngineError writes an engine failure through the formatter and
// returns the matching exit error.
func reportEngineError(f *OutputFormatter, message string, err error) error {
	code := ErrCodeGeneric
	var e *engine.Error
	if errors.As(err, &e) {
		code = string(e.Code)
	}
	if outErr := f.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	return engineExit(message, err)
}
