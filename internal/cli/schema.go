package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/featlog/internal/client"
	"github.com/roach88/featlog/internal/server"
	"github.com/roach88/featlog/internal/store"
)

// Store targets.
const (
	TargetClient = "client"
	TargetServer = "server"
)

// TargetOptions selects one store for schema and stats commands.
type TargetOptions struct {
	*RootOptions
	Target   string
	Database string
}

func (o *TargetOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Target, "target", TargetClient, "store to operate on (client|server)")
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database (defaults to the configured client_db/server_db)")
}

// dbPath returns the database path for the selected target.
func (o *TargetOptions) dbPath() (string, error) {
	switch o.Target {
	case TargetClient, TargetServer:
	default:
		return "", NewExitError(ExitCommandError,
			fmt.Sprintf("invalid target %q: must be client or server", o.Target))
	}
	if o.Database != "" {
		return o.Database, nil
	}
	path := o.Config.ClientDB
	if o.Target == TargetServer {
		path = o.Config.ServerDB
	}
	if path == "" {
		return "", NewExitError(ExitCommandError,
			fmt.Sprintf("no %s database: pass --db or set %s_db in the config", o.Target, o.Target))
	}
	return path, nil
}

// SchemaResult is the output of schema create and drop.
type SchemaResult struct {
	Action   string `json:"action"`
	Target   string `json:"target"`
	Database string `json:"database"`
}

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create or drop the tables of a client or server store",
	}
	cmd.AddCommand(newSchemaActionCommand(rootOpts, "create", "Create the store tables (idempotent)"))
	cmd.AddCommand(newSchemaActionCommand(rootOpts, "drop", "Drop the store tables (idempotent)"))
	return cmd
}

func newSchemaActionCommand(rootOpts *RootOptions, action, short string) *cobra.Command {
	opts := &TargetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   action,
		Short: short,
		Example: fmt.Sprintf(`  featlog schema %[1]s --target client --db ./featlog.db
  featlog schema %[1]s --target server --db /srv/featlog/server.db`, action),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd, action)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runSchema(opts *TargetOptions, cmd *cobra.Command, action string) error {
	ctx := context.Background()
	out := opts.formatter(cmd)

	path, err := opts.dbPath()
	if err != nil {
		return err
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err).WithCode(ErrCodeOpen)
	}
	defer st.Close()

	err = st.InTx(ctx, func(tc store.TxContext) error {
		switch {
		case opts.Target == TargetClient && action == "create":
			return client.NewManager().CreateSchema(ctx, tc)
		case opts.Target == TargetClient:
			return client.NewManager().DropSchema(ctx, tc)
		case action == "create":
			return server.CreateSchema(ctx, tc)
		default:
			return server.DropSchema(ctx, tc)
		}
	})
	if err != nil {
		return WrapExitError(ExitFailure, "schema "+action+" failed", err).WithCode(ErrCodeSchema)
	}

	opts.Logger.Debug("schema applied", "action", action, "target", opts.Target, "db", path)

	return out.Success(SchemaResult{Action: action, Target: opts.Target, Database: path})
}

func (r SchemaResult) String() string {
	return fmt.Sprintf("%s %s schema %s: %s", okMark("OK"), r.Target, verbPast(r.Action), r.Database)
}

func verbPast(action string) string {
	if action == "create" {
		return "created"
	}
	return "dropped"
}
