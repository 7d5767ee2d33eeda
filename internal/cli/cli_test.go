package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/featlog/internal/client"
	"github.com/roach88/featlog/internal/feature"
	"github.com/roach88/featlog/internal/server"
	"github.com/roach88/featlog/internal/store"
	"github.com/roach88/featlog/internal/testutil"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// execute runs the CLI and returns stdout, stderr and the exit code.
func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// seedClientDB creates a client store holding two feature entries and one
// exception entry.
func seedClientDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.db")
	_, stderr, code := execute(t, "schema", "create", "--target", "client", "--db", path)
	require.Equal(t, ExitSuccess, code, stderr)

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	m := client.NewManager()
	require.NoError(t, st.InTx(ctx, func(tc store.TxContext) error {
		err := m.SaveFeature(ctx, tc, feature.Entry{
			Context: "Agenda", Name: "Load", TimeSpent: 150 * time.Millisecond, CreatedAt: testutil.Epoch,
			Steps: []feature.StepEntry{
				{Name: "query", TimeSpent: 40 * time.Millisecond},
				{Name: "render", TimeSpent: 90 * time.Millisecond},
			},
		})
		if err != nil {
			return err
		}
		err = m.SaveFeature(ctx, tc, feature.Entry{
			Context: "Login", Name: "Submit", TimeSpent: 300 * time.Millisecond, CreatedAt: testutil.Epoch,
			Steps: []feature.StepEntry{{Name: "query", TimeSpent: 200 * time.Millisecond}},
		})
		if err != nil {
			return err
		}
		return m.SaveException(ctx, tc, feature.Failure{
			Context: "Login", Name: "Submit", Message: "timeout", CreatedAt: testutil.Epoch,
		})
	}))
	return path
}

func createServerDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.db")
	_, stderr, code := execute(t, "schema", "create", "--target", "server", "--db", path)
	require.Equal(t, ExitSuccess, code, stderr)
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "featlog", cmd.Use)
	assert.Contains(t, cmd.Long, "replicate")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"schema"}, {"schema", "create"}, {"schema", "drop"},
		{"replicate"}, {"stats"}, {"time"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, stderr, code := execute(t, "stats", "--format", "xml")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, `invalid format "xml"`)
}

func TestInvalidTarget(t *testing.T) {
	_, stderr, code := execute(t, "stats", "--target", "edge", "--db", filepath.Join(t.TempDir(), "x.db"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, `invalid target "edge"`)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	clientDB := filepath.Join(dir, "from-config.db")
	cfgPath := filepath.Join(dir, "featlog.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("client_db: "+clientDB+"\n"), 0o644))

	stdout, stderr, code := execute(t, "--config", cfgPath, "schema", "create", "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)

	var resp struct {
		Status string       `json:"status"`
		Data   SchemaResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, clientDB, resp.Data.Database)
	assert.FileExists(t, clientDB)
}

func TestConfigFile_Invalid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "featlog.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: loud\n"), 0o644))

	stdout, _, code := execute(t, "--config", cfgPath, "--format", "json", "stats")
	assert.Equal(t, ExitCommandError, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}

func TestSchema_CreateAndDrop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.db")

	stdout, stderr, code := execute(t, "schema", "create", "--target", "server", "--db", path)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "OK server schema created: "+path+"\n", stdout)

	// Idempotent.
	_, _, code = execute(t, "schema", "create", "--target", "server", "--db", path)
	require.Equal(t, ExitSuccess, code)

	stdout, _, code = execute(t, "schema", "drop", "--target", "server", "--db", path)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "dropped")

	_, stderr, code = execute(t, "stats", "--target", "server", "--db", path)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "failed to count rows")
}

func TestStats_ClientText(t *testing.T) {
	path := seedClientDB(t)

	stdout, stderr, code := execute(t, "stats", "--target", "client", "--db", path)
	require.Equal(t, ExitSuccess, code, stderr)

	newGoldie(t).Assert(t, "stats_client", []byte(stdout))
}

func TestStats_JSON(t *testing.T) {
	path := seedClientDB(t)

	stdout, stderr, code := execute(t, "stats", "--db", path, "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)

	var resp struct {
		Status string      `json:"status"`
		Data   StatsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "client", resp.Data.Target)
	require.Len(t, resp.Data.Tables, len(client.Tables))
	assert.Equal(t, TableCount{Table: client.TableFeatureEntries, Rows: 2}, resp.Data.Tables[3])
}

func TestReplicate_TruncatesClient(t *testing.T) {
	clientDB := seedClientDB(t)
	serverDB := createServerDB(t)

	stdout, stderr, code := execute(t, "replicate",
		"--client", clientDB, "--server", serverDB, "--user", "alice", "--version", "1.4.0")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "replicated for alice")
	assert.Contains(t, stdout, "client facts removed: 6")

	stdout, stderr, code = execute(t, "stats", "--target", "server", "--db", serverDB)
	require.Equal(t, ExitSuccess, code, stderr)
	newGoldie(t).Assert(t, "stats_server", []byte(stdout))

	// Dimensions stay on the client; facts are gone.
	stdout, _, code = execute(t, "stats", "--db", clientDB, "--format", "json")
	require.Equal(t, ExitSuccess, code)
	var resp struct {
		Data StatsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	for _, tc := range resp.Data.Tables {
		switch tc.Table {
		case client.TableContexts, client.TableSteps, client.TableFeatures:
			assert.Equal(t, int64(2), tc.Rows, tc.Table)
		default:
			assert.Zero(t, tc.Rows, tc.Table)
		}
	}
}

func TestReplicate_KeepClient(t *testing.T) {
	clientDB := seedClientDB(t)
	serverDB := createServerDB(t)

	stdout, stderr, code := execute(t, "replicate", "--format", "json",
		"--client", clientDB, "--server", serverDB, "--user", "alice", "--keep-client")
	require.Equal(t, ExitSuccess, code, stderr)

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	var out ReplicateOutput
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, 2, out.FeatureEntries)
	assert.Equal(t, 3, out.FeatureEntrySteps)
	assert.Equal(t, 1, out.ExceptionEntries)
	assert.Nil(t, out.Truncated)
	assert.NotEmpty(t, out.RunID)

	stdout, _, code = execute(t, "stats", "--db", clientDB, "--format", "json")
	require.Equal(t, ExitSuccess, code)
	var stats struct {
		Data StatsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.Equal(t, int64(2), stats.Data.Tables[3].Rows)
}

func TestReplicate_VerboseReportsStages(t *testing.T) {
	clientDB := seedClientDB(t)
	serverDB := createServerDB(t)

	stdout, stderr, code := execute(t, "replicate", "--verbose", "--format", "json",
		"--client", clientDB, "--server", serverDB, "--user", "alice")
	require.Equal(t, ExitSuccess, code, stderr)

	assert.Contains(t, stderr, "client store: "+clientDB+"\n")
	assert.Contains(t, stderr, "server store: "+serverDB+"\n")
	assert.Contains(t, stderr, "stage contexts: 2 created\n")
	assert.Contains(t, stderr, "stage feature entries: 2 copied\n")
	assert.Contains(t, stderr, "stage feature entry steps: 3 copied\n")
	assert.Contains(t, stderr, "stage exception entries: 1 copied\n")
	assert.Contains(t, stderr, "stage truncate: 2 feature entries, 3 feature entry steps, 1 exception entries removed\n")

	// stdout stays a single JSON document.
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	_, stderr, code = execute(t, "replicate", "--keep-client",
		"--client", clientDB, "--server", serverDB, "--user", "alice")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.NotContains(t, stderr, "client store:")
	assert.NotContains(t, stderr, "stage ")
}

func TestReplicate_RequiresServerAndUser(t *testing.T) {
	clientDB := seedClientDB(t)

	_, stderr, code := execute(t, "replicate", "--client", clientDB, "--user", "alice")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "no server database")

	t.Setenv("USER", "")
	_, stderr, code = execute(t, "replicate", "--client", clientDB, "--server", createServerDB(t))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "no user")
}

func TestReplicate_MissingClientSchema(t *testing.T) {
	clientDB := filepath.Join(t.TempDir(), "empty.db")
	serverDB := createServerDB(t)

	stdout, _, code := execute(t, "replicate", "--format", "json",
		"--client", clientDB, "--server", serverDB, "--user", "alice")
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeReplicate, resp.Error.Code)
}

func TestWriteReplicateText(t *testing.T) {
	out := ReplicateOutput{
		Result: server.Result{
			RunID:             "run-0001",
			UserID:            1,
			ContextsCreated:   2,
			StepsCreated:      2,
			FeaturesCreated:   2,
			FeatureEntries:    3,
			FeatureEntrySteps: 3,
			ExceptionEntries:  2,
		},
		Truncated: &client.TruncateResult{FeatureEntries: 3, FeatureEntrySteps: 3, ExceptionEntries: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReplicateText(&buf, "alice", out))
	newGoldie(t).Assert(t, "replicate", buf.Bytes())

	out.Truncated = nil
	buf.Reset()
	require.NoError(t, writeReplicateText(&buf, "alice", out))
	assert.Contains(t, buf.String(), "NOTE client facts kept")
}

func requireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func TestTime_RecordsFeature(t *testing.T) {
	trueBin := requireBinary(t, "true")
	path := filepath.Join(t.TempDir(), "client.db")

	stdout, stderr, code := execute(t, "time", "--db", path,
		"--context", "Build", "--name", "Test", "--", trueBin, "-x")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "OK Build/Test")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	var details, step string
	require.NoError(t, st.DB().QueryRow(`
		SELECT e.details, s.name
		FROM feature_entries e
		JOIN feature_entry_steps fes ON fes.feature_entry_id = e.id
		JOIN steps s ON s.id = fes.step_id
	`).Scan(&details, &step))
	assert.Equal(t, trueBin+" -x", details)
	assert.Equal(t, "true", step)
}

func TestTime_ReportsPersistedDuration(t *testing.T) {
	sh := requireBinary(t, "sh")
	path := filepath.Join(t.TempDir(), "client.db")

	stdout, stderr, code := execute(t, "time", "--db", path, "--format", "json",
		"--context", "Build", "--name", "Sleep", "--", sh, "-c", "sleep 0.02")
	require.Equal(t, ExitSuccess, code, stderr)

	var resp struct {
		Status string     `json:"status"`
		Data   TimeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Equal(t, "ok", resp.Status)

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	var persisted int64
	require.NoError(t, st.DB().QueryRow(`SELECT time_spent FROM feature_entries`).Scan(&persisted))
	assert.Equal(t, persisted, resp.Data.TimeSpentMs)
	assert.GreaterOrEqual(t, persisted, int64(20))
}

func TestTime_FailureRecordsException(t *testing.T) {
	sh := requireBinary(t, "sh")
	path := filepath.Join(t.TempDir(), "client.db")

	stdout, stderr, code := execute(t, "time", "--db", path,
		"--context", "Build", "--name", "Lint", "--", sh, "-c", "exit 3")
	assert.Equal(t, 3, code)
	assert.Contains(t, stdout, "FAIL Build/Lint")
	assert.Contains(t, stderr, "command failed")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	var entries, exceptions int64
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM feature_entries`).Scan(&entries))
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM exception_entries`).Scan(&exceptions))
	assert.Zero(t, entries)
	assert.Equal(t, int64(1), exceptions)

	var message string
	require.NoError(t, st.DB().QueryRow(`SELECT message FROM exception_entries`).Scan(&message))
	assert.Contains(t, message, "exit status 3")
}

func TestTime_RequiresFlags(t *testing.T) {
	_, stderr, code := execute(t, "time", "--db", filepath.Join(t.TempDir(), "c.db"), "--", "true")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "required flag")
}
