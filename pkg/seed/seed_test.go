package seed

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/riderpoint/pkg/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("tours:\n  - title: X\n    colour: red\n"))
	assert.Error(t, err)

	fx, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, fx.Tours)
}

func TestApplyDemo(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	fx, err := Demo()
	require.NoError(t, err)

	sum, err := Apply(ctx, db, fx, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{Tours: 4, Votes: 6, Categories: 2, Topics: 3, Threads: 2, Replies: 1, Posts: 2, Users: 2}, sum)

	stelvio, err := db.Tours(ctx, storage.TourFilter{Search: "stilfser"})
	require.NoError(t, err)
	require.Len(t, stelvio, 1)
	assert.Equal(t, 3, stelvio[0].Votes)
	assert.InDelta(t, 4.7, stelvio[0].Rating, 1e-9)

	cats, err := db.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Technik", cats[0].Title)
	assert.Equal(t, storage.DefaultTopicDesc, cats[0].Topics[1].Desc)

	threads, err := db.Threads(ctx, "BMW")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, 1, threads[0].Replies)

	posts, err := db.Posts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "video", posts[0].MediaType)

	users, err := db.Users(ctx)
	require.NoError(t, err)
	names := []string{users[0].DisplayName, users[1].DisplayName}
	assert.ElementsMatch(t, []string{"Anna", storage.DefaultDisplayName}, names)
}

func TestApplyTwiceSkipsTourAndForumDuplicates(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	fx, err := Parse(strings.NewReader(`
tours:
  - {title: Furkapass, country: Schweiz, region: EU}
forum:
  - title: Technik
    topics: [{title: BMW}]
`))
	require.NoError(t, err)

	_, err = Apply(ctx, db, fx, nil)
	require.NoError(t, err)
	sum, err := Apply(ctx, db, fx, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 2}, sum)

	tours, err := db.Tours(ctx, storage.TourFilter{})
	require.NoError(t, err)
	assert.Len(t, tours, 1)
}

func TestApplyStopsOnInvalidTour(t *testing.T) {
	db := openDB(t)
	fx := &Fixture{Tours: []Tour{{Title: "No country"}}}
	_, err := Apply(context.Background(), db, fx, nil)
	assert.ErrorContains(t, err, "No country")
}
