package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/featlog/internal/client"
	"github.com/roach88/featlog/internal/server"
	"github.com/roach88/featlog/internal/store"
)

// ReplicateOptions holds flags for the replicate command.
type ReplicateOptions struct {
	*RootOptions
	ClientDB   string
	ServerDB   string
	User       string
	Version    string
	KeepClient bool

	// RunIDs overrides the run id generator. Tests only.
	RunIDs server.RunIDGenerator
}

// ReplicateOutput is the output of the replicate command.
type ReplicateOutput struct {
	server.Result
	Truncated *client.TruncateResult `json:"truncated,omitempty"`
}

// NewReplicateCommand creates the replicate command.
func NewReplicateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplicateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Merge a client store into the server store",
		Long: `Merge every row of a client store into the server store.

Contexts, steps and features are matched by case-insensitive name and
created on the server when missing. Feature entries, their steps and
exception entries are copied and attributed to --user (and --version).

The server transaction commits first. The client fact tables are then
emptied unless --keep-client is given. If emptying fails the facts stay
on the client and a later run replicates them again.

Examples:
  featlog replicate --client ./featlog.db --server /srv/featlog.db --user alice
  featlog replicate --user alice --version 1.4.0 --keep-client --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplicate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ClientDB, "client", "", "client database (defaults to client_db)")
	cmd.Flags().StringVar(&opts.ServerDB, "server", "", "server database (defaults to server_db)")
	cmd.Flags().StringVar(&opts.User, "user", "", "user to attribute facts to (defaults to user, then $USER)")
	cmd.Flags().StringVar(&opts.Version, "version", "", "version to stamp feature entries with (defaults to version)")
	cmd.Flags().BoolVar(&opts.KeepClient, "keep-client", false, "keep client facts after replicating")

	return cmd
}

// withDefaults fills empty flags from the loaded config.
func (o *ReplicateOptions) withDefaults() error {
	if o.ClientDB == "" {
		o.ClientDB = o.Config.ClientDB
	}
	if o.ServerDB == "" {
		o.ServerDB = o.Config.ServerDB
	}
	if o.User == "" {
		o.User = o.Config.User
	}
	if o.Version == "" {
		o.Version = o.Config.Version
	}
	switch {
	case o.ServerDB == "":
		return NewExitError(ExitCommandError, "no server database: pass --server or set server_db in the config")
	case o.User == "":
		return NewExitError(ExitCommandError, "no user: pass --user or set user in the config")
	}
	return nil
}

func runReplicate(opts *ReplicateOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := opts.formatter(cmd)

	if err := opts.withDefaults(); err != nil {
		return err
	}

	cli, err := store.Open(opts.ClientDB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open client database", err).WithCode(ErrCodeOpen)
	}
	defer cli.Close()
	out.VerboseLog("client store: %s", opts.ClientDB)

	srv, err := store.Open(opts.ServerDB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open server database", err).WithCode(ErrCodeOpen)
	}
	defer srv.Close()
	out.VerboseLog("server store: %s", opts.ServerDB)

	res, truncated, err := replicateStores(ctx, opts, cli, srv)
	if err != nil {
		return err
	}

	out.VerboseLog("stage contexts: %d created", res.ContextsCreated)
	out.VerboseLog("stage steps: %d created", res.StepsCreated)
	out.VerboseLog("stage features: %d created", res.FeaturesCreated)
	out.VerboseLog("stage feature entries: %d copied", res.FeatureEntries)
	out.VerboseLog("stage feature entry steps: %d copied", res.FeatureEntrySteps)
	out.VerboseLog("stage exception entries: %d copied", res.ExceptionEntries)
	if truncated != nil {
		out.VerboseLog("stage truncate: %d feature entries, %d feature entry steps, %d exception entries removed",
			truncated.FeatureEntries, truncated.FeatureEntrySteps, truncated.ExceptionEntries)
	} else {
		out.VerboseLog("stage truncate: skipped")
	}

	output := ReplicateOutput{Result: res, Truncated: truncated}
	return out.Render(output, func(w io.Writer) error {
		return writeReplicateText(w, opts.User, output)
	})
}

// replicateStores commits the server side before touching the client. The
// client transaction that read the snapshot also deletes it, so rows
// captured after the read are never deleted unseen.
func replicateStores(ctx context.Context, opts *ReplicateOptions, cli, srv *store.Store) (server.Result, *client.TruncateResult, error) {
	serverTx, err := srv.Begin(ctx)
	if err != nil {
		return server.Result{}, nil, WrapExitError(ExitCommandError, "failed to begin server transaction", err).WithCode(ErrCodeOpen)
	}
	defer serverTx.Close()

	clientTx, err := cli.Begin(ctx)
	if err != nil {
		return server.Result{}, nil, WrapExitError(ExitCommandError, "failed to begin client transaction", err).WithCode(ErrCodeOpen)
	}
	defer clientTx.Close()

	replicatorOpts := []server.Option{
		server.WithLogger(opts.Logger),
	}
	if opts.Version != "" {
		replicatorOpts = append(replicatorOpts, server.WithVersion(opts.Version))
	}
	if opts.RunIDs != nil {
		replicatorOpts = append(replicatorOpts, server.WithRunIDs(opts.RunIDs))
	}

	res, err := server.NewReplicator(replicatorOpts...).Replicate(ctx, serverTx, clientTx, opts.User)
	if err != nil {
		return server.Result{}, nil, WrapExitError(ExitFailure, "replication aborted", err).WithCode(ErrCodeReplicate)
	}
	if err := serverTx.Complete(); err != nil {
		return server.Result{}, nil, WrapExitError(ExitFailure, "failed to commit server transaction", err).WithCode(ErrCodeReplicate)
	}

	if opts.KeepClient {
		return res, nil, nil
	}

	truncated, err := client.Truncate(ctx, clientTx)
	if err == nil {
		err = clientTx.Complete()
	}
	if err != nil {
		opts.Logger.Warn("client facts kept after replication; a later run will replicate them again",
			"run_id", res.RunID,
			"error", err)
		return res, nil, WrapExitError(ExitFailure,
			fmt.Sprintf("run %s committed but client truncation failed", res.RunID), err).WithCode(ErrCodeTruncate)
	}
	return res, &truncated, nil
}

func writeReplicateText(w io.Writer, user string, out ReplicateOutput) error {
	fmt.Fprintf(w, "%s replicated for %s (run %s)\n", okMark("OK"), user, out.RunID)
	fmt.Fprintf(w, "  contexts created:    %d\n", out.ContextsCreated)
	fmt.Fprintf(w, "  steps created:       %d\n", out.StepsCreated)
	fmt.Fprintf(w, "  features created:    %d\n", out.FeaturesCreated)
	fmt.Fprintf(w, "  feature entries:     %d\n", out.FeatureEntries)
	fmt.Fprintf(w, "  feature entry steps: %d\n", out.FeatureEntrySteps)
	fmt.Fprintf(w, "  exception entries:   %d\n", out.ExceptionEntries)
	if out.Truncated == nil {
		_, err := fmt.Fprintf(w, "%s client facts kept\n", warnMark("NOTE"))
		return err
	}
	_, err := fmt.Fprintf(w, "  client facts removed: %d\n",
		out.Truncated.FeatureEntries+out.Truncated.FeatureEntrySteps+out.Truncated.ExceptionEntries)
	return err
}
