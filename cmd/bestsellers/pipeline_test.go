package bestsellers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/lepinkainen/bookpipe/internal/book"
	"github.com/lepinkainen/bookpipe/internal/cache"
	"github.com/lepinkainen/bookpipe/internal/config"
	"github.com/lepinkainen/bookpipe/internal/datastore"
	"github.com/lepinkainen/bookpipe/internal/pipeline"
	"github.com/lepinkainen/bookpipe/internal/quality"
	"github.com/lepinkainen/bookpipe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runAt = time.Date(2024, 2, 25, 9, 0, 0, 0, time.UTC)

type fixture struct {
	env   *testutil.TestEnv
	apis  *testutil.BookAPIs
	cfg   *config.Config
	store datastore.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()

	testutil.ResetConfig(t)
	env := testutil.NewTestEnv(t)
	testutil.UseLocalStore(t, env)
	apis := testutil.NewBookAPIs(t)
	apis.Configure(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate(true))

	store, err := datastore.Open(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &fixture{env: env, apis: apis, cfg: cfg, store: store}
}

func (f *fixture) run(t *testing.T) (*pipeline.RunResult, *Outputs) {
	t.Helper()
	p := New(f.cfg, f.store, WithClock(func() time.Time { return runAt }))
	result, out, err := p.Run(context.Background())
	require.NoError(t, err)
	return result, out
}

func TestRunFullPipeline(t *testing.T) {
	f := setup(t)
	f.apis.Seeds = []book.Seed{
		{ISBN: "9780000000001", Title: "Foo", Author: "A", Rank: 1},
		{ISBN: "9780000000002", Title: "Bar", Author: "B", Rank: 2},
	}
	f.apis.OpenLibraryBooks["9780000000002"] = `{"publishers": [{"name": "Knopf"}], "number_of_pages": 320}`
	f.apis.GoogleVolumes["9780000000001"] = `{"categories": ["Fiction"], "averageRating": 4.0, "ratingsCount": 10}`

	result, out := f.run(t)
	require.Equal(t, pipeline.StateSuccess, result.State, "run error: %v", result.Err())

	for _, name := range []string{TaskSeed, TaskOpenLibrary, TaskGoogleBooks, TaskReconcile, TaskQuality, TaskReport} {
		assert.Equal(t, pipeline.StatusSucceeded, result.Tasks[name].Status, name)
	}
	assert.Equal(t, 2, f.apis.OpenLibraryCalls())
	assert.Equal(t, 2, f.apis.GoogleBooksCalls())

	table, err := f.store.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	subjects, _ := table.Column("subject")
	publishers, _ := table.Column("publisher")
	assert.Equal(t, []any{"Fiction", nil}, subjects)
	assert.Equal(t, []any{nil, "Knopf"}, publishers)

	check, err := out.Quality.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, check.Rows)

	raw := f.env.ReadFile("reports/" + config.ReportFileName)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, 2, decoded["rows"])
}

func TestRunSeedFailureHaltsPipeline(t *testing.T) {
	f := setup(t)
	f.apis.Seeds = []book.Seed{{ISBN: "9780000000001", Title: "Foo", Author: "A", Rank: 1}}
	f.apis.SetNYTStatus(http.StatusInternalServerError)

	result, _ := f.run(t)

	assert.Equal(t, pipeline.StateFailed, result.State)
	assert.Equal(t, pipeline.StatusFailed, result.Tasks[TaskSeed].Status)
	for _, name := range []string{TaskOpenLibrary, TaskGoogleBooks, TaskReconcile, TaskQuality, TaskReport} {
		assert.Equal(t, pipeline.StatusSkipped, result.Tasks[name].Status, name)
	}
	assert.Zero(t, f.apis.OpenLibraryCalls())
	assert.Zero(t, f.apis.GoogleBooksCalls())

	table, err := f.store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, table.Len())
	assert.False(t, f.env.FileExists("reports/"+config.ReportFileName))
}

func TestRunEmptySeedFailsQualityGate(t *testing.T) {
	f := setup(t)

	result, out := f.run(t)

	assert.Equal(t, pipeline.StateFailed, result.State)
	assert.Equal(t, pipeline.StatusSucceeded, result.Tasks[TaskOpenLibrary].Status)
	assert.Equal(t, pipeline.StatusSucceeded, result.Tasks[TaskReconcile].Status)
	assert.Equal(t, pipeline.StatusFailed, result.Tasks[TaskQuality].Status)
	assert.ErrorIs(t, result.Tasks[TaskQuality].Err, quality.ErrEmptyTable)
	assert.Equal(t, pipeline.StatusSkipped, result.Tasks[TaskReport].Status)
	assert.Zero(t, f.apis.OpenLibraryCalls())

	check, err := out.Quality.Get()
	require.NoError(t, err)
	assert.False(t, check.Passed())
}

func TestRunIsIdempotent(t *testing.T) {
	f := setup(t)
	f.apis.Seeds = []book.Seed{{ISBN: "9780000000001", Title: "Foo", Author: "A", Rank: 1}}
	f.apis.GoogleVolumes["9780000000001"] = `{"categories": ["Fiction"]}`

	first, _ := f.run(t)
	require.Equal(t, pipeline.StateSuccess, first.State)
	before, err := f.store.Snapshot(context.Background())
	require.NoError(t, err)

	second, _ := f.run(t)
	require.Equal(t, pipeline.StateSuccess, second.State)
	after, err := f.store.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

type staticSeed struct{ set *book.SeedSet }

func (s staticSeed) FetchBestsellers(context.Context) (*book.SeedSet, error) { return s.set, nil }

func TestRunWithSeedSource(t *testing.T) {
	f := setup(t)
	seed := book.NewSeedSet([]book.Seed{{ISBN: "9780000000009", Title: "Injected", Author: "Z", Rank: 1}})

	p := New(f.cfg, f.store, WithClock(func() time.Time { return runAt }), WithSeedSource(staticSeed{seed}))
	result, out, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, pipeline.StateSuccess, result.State)

	summary, err := out.Reconcile.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Written)
}

func TestRunWithCacheSkipsKnownISBNs(t *testing.T) {
	f := setup(t)
	f.apis.Seeds = []book.Seed{
		{ISBN: "9780000000001", Title: "Foo", Author: "A", Rank: 1},
		{ISBN: "9780000000002", Title: "Bar", Author: "B", Rank: 2},
	}
	f.apis.OpenLibraryBooks["9780000000002"] = `{"publishers": [{"name": "Knopf"}]}`
	f.apis.GoogleVolumes["9780000000001"] = `{"categories": ["Fiction"]}`

	cacheDB, err := cache.NewCacheDB(f.env.Path("cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheDB.Close() })

	for range 2 {
		p := New(f.cfg, f.store, WithClock(func() time.Time { return runAt }), WithCache(cacheDB, cache.DefaultPolicy))
		result, _, err := p.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, pipeline.StateSuccess, result.State, "run error: %v", result.Err())
	}

	// Hits and "not found" answers are both served from the cache.
	assert.Equal(t, 2, f.apis.OpenLibraryCalls())
	assert.Equal(t, 2, f.apis.GoogleBooksCalls())

	table, err := f.store.Snapshot(context.Background())
	require.NoError(t, err)
	publishers, _ := table.Column("publisher")
	subjects, _ := table.Column("subject")
	assert.Equal(t, []any{nil, "Knopf"}, publishers)
	assert.Equal(t, []any{"Fiction", nil}, subjects)
}
