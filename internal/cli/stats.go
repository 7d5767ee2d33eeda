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

// TableCount is the row count of one table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// StatsResult is the output of the stats command.
type StatsResult struct {
	Target   string       `json:"target"`
	Database string       `json:"database"`
	Tables   []TableCount `json:"tables"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TargetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the row count of every table of a store",
		Example: `  featlog stats --target client
  featlog stats --target server --db /srv/featlog.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runStats(opts *TargetOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	path, err := opts.dbPath()
	if err != nil {
		return err
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err).WithCode(ErrCodeOpen)
	}
	defer st.Close()

	tables := client.Tables
	count := client.Stats
	if opts.Target == TargetServer {
		tables = server.Tables
		count = server.Stats
	}

	var counts map[string]int64
	err = st.InTx(ctx, func(tc store.TxContext) error {
		var err error
		counts, err = count(ctx, tc)
		return err
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count rows", err)
	}

	res := StatsResult{Target: opts.Target, Database: path, Tables: make([]TableCount, 0, len(tables))}
	for _, t := range tables {
		res.Tables = append(res.Tables, TableCount{Table: t, Rows: counts[t]})
	}
	return opts.formatter(cmd).Render(res, func(w io.Writer) error {
		return writeStatsText(w, res)
	})
}

func writeStatsText(w io.Writer, res StatsResult) error {
	fmt.Fprintf(w, "%s\n", header(fmt.Sprintf("%-22s %10s", res.Target+" table", "rows")))
	for _, t := range res.Tables {
		if _, err := fmt.Fprintf(w, "%-22s %10d\n", t.Table, t.Rows); err != nil {
			return err
		}
	}
	return nil
}
