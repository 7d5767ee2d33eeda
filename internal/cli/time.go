package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/featlog/internal/capture"
	"github.com/roach88/featlog/internal/client"
	"github.com/roach88/featlog/internal/feature"
	"github.com/roach88/featlog/internal/model"
	"github.com/roach88/featlog/internal/store"
)

// TimeOptions holds flags for the time command.
type TimeOptions struct {
	*RootOptions
	Database string
	Context  string
	Name     string
	Details  string
}

// TimeResult is the output of the time command.
type TimeResult struct {
	Context     string `json:"context"`
	Feature     string `json:"feature"`
	TimeSpentMs int64  `json:"time_spent_ms"`
	Failed      bool   `json:"failed"`
	ExitCode    int    `json:"exit_code"`
}

// NewTimeCommand creates the time command.
func NewTimeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "time --context CONTEXT --name FEATURE -- COMMAND [ARGS...]",
		Short: "Run a command and record it as a feature",
		Long: `Run a command and record its duration in the client store.

A zero exit status records a feature entry whose details default to the
command line. Any other outcome records an exception entry, and featlog
exits with the command's status.

Examples:
  featlog time --context Build --name Test -- go test ./...
  featlog time --context Deploy --name Upload --details staging -- ./upload.sh`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTime(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "client database (defaults to client_db)")
	cmd.Flags().StringVar(&opts.Context, "context", "", "context name (required)")
	_ = cmd.MarkFlagRequired("context")
	cmd.Flags().StringVar(&opts.Name, "name", "", "feature name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.Details, "details", "", "details recorded on success (defaults to the command line)")

	return cmd
}

func runTime(opts *TimeOptions, cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	path := opts.Database
	if path == "" {
		path = opts.Config.ClientDB
	}
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open client database", err).WithCode(ErrCodeOpen)
	}
	defer st.Close()

	rec := client.NewManager(client.WithLogger(opts.Logger))
	err = st.InTx(ctx, func(tc store.TxContext) error {
		if err := rec.CreateSchema(ctx, tc); err != nil {
			return err
		}
		return rec.Load(ctx, tc)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to prepare client store", err).WithCode(ErrCodeSchema)
	}

	mgr := capture.NewManager(st, rec, capture.WithLogger(opts.Logger))
	f := mgr.StartNew(opts.Context, opts.Name)

	// Child output goes to stderr in JSON mode so stdout stays parseable.
	stdout := cmd.OutOrStdout()
	if opts.Format == "json" {
		stdout = cmd.ErrOrStderr()
	}
	runErr := f.Step(filepath.Base(args[0]), func(*feature.Step) error {
		c := exec.CommandContext(ctx, args[0], args[1:]...)
		c.Stdin = cmd.InOrStdin()
		c.Stdout = stdout
		c.Stderr = cmd.ErrOrStderr()
		return c.Run()
	})

	res := TimeResult{Context: opts.Context, Feature: opts.Name}

	if runErr != nil {
		res.Failed = true
		res.ExitCode = ExitFailure
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && exitErr.ExitCode() > 0 {
			res.ExitCode = exitErr.ExitCode()
		}
		if err := mgr.LogException(ctx, f, runErr); err != nil {
			return WrapExitError(ExitFailure, "failed to record exception", err)
		}
		res.TimeSpentMs = model.Millis(f.TimeSpent())
		if opts.Format != "json" {
			_ = writeTimeText(cmd.OutOrStdout(), res)
		}
		return WrapExitError(res.ExitCode, "command failed", runErr).WithCode(ErrCodeCommandFail)
	}

	details := opts.Details
	if details == "" {
		details = strings.Join(args, " ")
	}
	if err := mgr.Stop(ctx, f, details); err != nil {
		return WrapExitError(ExitFailure, "failed to record feature", err)
	}
	// The clock stopped with the feature; this is the persisted time_spent.
	res.TimeSpentMs = model.Millis(f.TimeSpent())
	return opts.formatter(cmd).Render(res, func(w io.Writer) error {
		return writeTimeText(w, res)
	})
}

func writeTimeText(w io.Writer, res TimeResult) error {
	mark := okMark("OK")
	if res.Failed {
		mark = errMark("FAIL")
	}
	_, err := fmt.Fprintf(w, "%s %s/%s %dms\n", mark, res.Context, res.Feature, res.TimeSpentMs)
	return err
}
