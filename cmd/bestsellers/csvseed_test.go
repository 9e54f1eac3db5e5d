package bestsellers

import (
	"context"
	"testing"
	"time"

	"github.com/lepinkainen/bookpipe/internal/csvutil"
	"github.com/lepinkainen/bookpipe/internal/pipeline"
	"github.com/lepinkainen/bookpipe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSeedSource(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFile("seed.csv", []byte(`rank,title,author,primary_isbn13,weeks_on_list
2,Bar,B,978-0-00-000000-2,4
1,Foo,A,9780000000001,
3,NoISBN,C,,1
4,Dup,D,9780000000001,1
`))

	set, err := CSVSeedSource{Path: env.Path("seed.csv"), ListName: "Hardcover Fiction"}.FetchBestsellers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"9780000000002", "9780000000001"}, set.ISBNs.Values())
	bar := set.Books["9780000000002"]
	assert.Equal(t, "Bar", bar.Title)
	assert.Equal(t, 2, bar.Rank)
	assert.Equal(t, 4, bar.WeeksOnList)
	assert.Equal(t, "Hardcover Fiction", bar.ListName)
	assert.Equal(t, "Foo", set.Books["9780000000001"].Title)
}

func TestCSVSeedSource_DefaultRankIsRowPosition(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFile("seed.csv", []byte("title,primary_isbn13\nFoo,9780000000001\nBar,9780000000002\n"))

	set, err := CSVSeedSource{Path: env.Path("seed.csv")}.FetchBestsellers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, set.Books["9780000000001"].Rank)
	assert.Equal(t, 2, set.Books["9780000000002"].Rank)
}

func TestCSVSeedSource_MissingColumn(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFile("seed.csv", []byte("title,author\nFoo,A\n"))

	_, err := CSVSeedSource{Path: env.Path("seed.csv")}.FetchBestsellers(context.Background())
	require.ErrorIs(t, err, csvutil.ErrMissingColumn)
}

func TestRunWithCSVSeedSource(t *testing.T) {
	f := setup(t)
	f.env.WriteFile("seed.csv", []byte("title,author,primary_isbn13\nFoo,A,9780000000001\n"))

	p := New(f.cfg, f.store, WithClock(func() time.Time { return runAt }),
		WithSeedSource(CSVSeedSource{Path: f.env.Path("seed.csv")}))
	result, _, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, pipeline.StateSuccess, result.State, "run error: %v", result.Err())
	assert.Empty(t, f.apis.LastNYTKey(), "NYT feed is not called")

	table, err := f.store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}
