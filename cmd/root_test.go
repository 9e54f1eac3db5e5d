package cmd

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/bookpipe/internal/book"
	"github.com/lepinkainen/bookpipe/internal/config"
	"github.com/lepinkainen/bookpipe/internal/quality"
	"github.com/lepinkainen/bookpipe/internal/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetCmdState(t *testing.T) *bytes.Buffer {
	t.Helper()

	testutil.ResetConfig(t)

	origStdout := stdout
	buf := &bytes.Buffer{}
	stdout = buf
	t.Cleanup(func() { stdout = origStdout })
	return buf
}

func parseCLI(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	originalArgs := os.Args
	os.Args = append([]string{"bookpipe"}, args...)
	t.Cleanup(func() { os.Args = originalArgs })

	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("bookpipe"),
		kong.Description("Ingest bestseller metadata from NYT, Open Library and Google Books into a books table."),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			t.Fatalf("unexpected Kong exit %d", code)
		}),
	)
	ctx.BindTo(context.Background(), (*context.Context)(nil))

	return cli, ctx
}

// localPipeline wires a sandboxed store and fake APIs seeded with two books.
func localPipeline(t *testing.T) (*testutil.TestEnv, *testutil.BookAPIs) {
	t.Helper()

	env := testutil.NewTestEnv(t)
	testutil.UseLocalStore(t, env)
	apis := testutil.NewBookAPIs(t)
	apis.Configure(t)
	apis.Seeds = []book.Seed{
		{ISBN: "9780000000001", Title: "Foo", Author: "Ann", Rank: 1},
		{ISBN: "9780000000002", Title: "Bar", Author: "Ann", Rank: 2},
	}
	apis.GoogleVolumes["9780000000001"] = `{"categories": ["Fiction"]}`
	return env, apis
}

func TestCLIDefaultFlags(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t, "summary")

	assert.False(t, cli.Debug)
	assert.Equal(t, ".env", filepath.Base(cli.EnvFile))
	assert.Empty(t, cli.DBDriver)
	assert.Equal(t, 10, cli.Summary.Top)
}

func TestCLIFlagsOverrideConfig(t *testing.T) {
	resetCmdState(t)

	cli, _ := parseCLI(t,
		"--debug",
		"--db-driver", "sqlite",
		"--sqlite-path", "/custom/books.db",
		"--report-dir", "/custom/reports",
		"summary", "--top", "5")

	updateGlobalConfig(cli)

	assert.True(t, cli.Debug)
	assert.Equal(t, 5, cli.Summary.Top)
	assert.Equal(t, "sqlite", viper.GetString("database.driver"))
	assert.Equal(t, "/custom/books.db", viper.GetString("database.sqlite_path"))
	assert.Equal(t, "/custom/reports", viper.GetString("report.dir"))
}

func TestUpdateGlobalConfigKeepsUnsetFlags(t *testing.T) {
	resetCmdState(t)

	updateGlobalConfig(&CLI{})

	assert.Equal(t, config.DriverPostgres, viper.GetString("database.driver"))
	assert.Equal(t, "./reports", viper.GetString("report.dir"))
}

func TestRunCommand(t *testing.T) {
	out := resetCmdState(t)
	env, apis := localPipeline(t)

	_, ctx := parseCLI(t, "run")
	require.NoError(t, ctx.Run())

	assert.Equal(t, 2, apis.OpenLibraryCalls())
	assert.Equal(t, 2, apis.GoogleBooksCalls())
	assert.True(t, env.FileExists("reports/"+config.ReportFileName))

	_, ctx = parseCLI(t, "summary")
	require.NoError(t, ctx.Run())
	assert.Contains(t, out.String(), "2 books")
	assert.Contains(t, out.String(), "Ann")
}

func TestRunCommandSeedFailure(t *testing.T) {
	resetCmdState(t)
	_, apis := localPipeline(t)
	apis.SetNYTStatus(http.StatusInternalServerError)

	_, ctx := parseCLI(t, "run")
	err := ctx.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILED")
	assert.Zero(t, apis.OpenLibraryCalls())
}

func TestRunCommandRequiresAPIKey(t *testing.T) {
	resetCmdState(t)
	_, apis := localPipeline(t)
	testutil.SetViperValue(t, "nyt.api_key", "")

	_, ctx := parseCLI(t, "run")
	err := ctx.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NYT API key is required")
	assert.Empty(t, apis.LastNYTKey())
}

func TestRunCommandSeedFile(t *testing.T) {
	resetCmdState(t)
	env, apis := localPipeline(t)
	testutil.SetViperValue(t, "nyt.api_key", "")
	env.WriteFile("seed.csv", []byte("rank,title,author,primary_isbn13\n1,Foo,Ann,9780000000001\n"))

	_, ctx := parseCLI(t, "run", "--seed-file", env.Path("seed.csv"))
	require.NoError(t, ctx.Run())

	assert.Empty(t, apis.LastNYTKey())
	assert.Equal(t, 1, apis.OpenLibraryCalls())
	assert.True(t, env.FileExists("reports/"+config.ReportFileName))
}

func TestRunCommandWithCache(t *testing.T) {
	resetCmdState(t)
	env, apis := localPipeline(t)
	testutil.SetViperValue(t, "cache.enabled", true)
	testutil.SetViperValue(t, "cache.dbfile", env.Path("cache.db"))

	for range 2 {
		_, ctx := parseCLI(t, "run")
		require.NoError(t, ctx.Run())
	}
	assert.Equal(t, 2, apis.OpenLibraryCalls())
	assert.Equal(t, 2, apis.GoogleBooksCalls())

	_, ctx := parseCLI(t, "cache", "invalidate", "googlebooks")
	require.NoError(t, ctx.Run())

	_, ctx = parseCLI(t, "run")
	require.NoError(t, ctx.Run())
	assert.Equal(t, 2, apis.OpenLibraryCalls())
	assert.Equal(t, 4, apis.GoogleBooksCalls())
}

func TestCheckCommand(t *testing.T) {
	out := resetCmdState(t)
	localPipeline(t)

	_, ctx := parseCLI(t, "check")
	err := ctx.Run()
	require.ErrorIs(t, err, quality.ErrEmptyTable)

	_, ctx = parseCLI(t, "run")
	require.NoError(t, ctx.Run())

	_, ctx = parseCLI(t, "check")
	require.NoError(t, ctx.Run())
	assert.Contains(t, out.String(), "Data quality check passed: 2 records")
}

func TestReportCommand(t *testing.T) {
	out := resetCmdState(t)
	env, _ := localPipeline(t)

	_, ctx := parseCLI(t, "report")
	require.NoError(t, ctx.Run())

	assert.True(t, env.FileExists("reports/"+config.ReportFileName))
	assert.Contains(t, out.String(), config.ReportFileName)
}

func TestScheduleCommandRejectsInvalidCron(t *testing.T) {
	resetCmdState(t)
	localPipeline(t)

	_, ctx := parseCLI(t, "schedule", "--cron", "not a cron")
	err := ctx.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}

func TestScheduleCommandRunNow(t *testing.T) {
	resetCmdState(t)
	localPipeline(t)

	ran := make(chan struct{}, 1)
	orig := runScheduled
	runScheduled = func(context.Context, *config.Config) error {
		ran <- struct{}{}
		return nil
	}
	t.Cleanup(func() { runScheduled = orig })

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- (&ScheduleCmd{Cron: "0 9 * * *", RunNow: true}).Run(runCtx)
	}()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run did not start")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestTriggerSkipsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex

	tr := &trigger{
		ctx: context.Background(),
		run: func(context.Context, *config.Config) error {
			mu.Lock()
			calls++
			mu.Unlock()
			close(started)
			<-release
			return nil
		},
	}

	firstDone := make(chan bool)
	go func() { firstDone <- tr.fire() }()
	<-started

	assert.False(t, tr.fire(), "second trigger should be skipped while the first is running")

	close(release)
	assert.True(t, <-firstDone)

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}
