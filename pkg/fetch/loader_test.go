package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/riderpoint/pkg/cache"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

// gatedFetcher blocks each call until the test releases it.
type gatedFetcher struct {
	calls chan Params
	gates map[string]chan result
}

type result struct {
	items []catalog.Tour
	err   error
}

func newGatedFetcher(keys ...string) *gatedFetcher {
	g := &gatedFetcher{calls: make(chan Params, len(keys)), gates: make(map[string]chan result)}
	for _, k := range keys {
		g.gates[k] = make(chan result, 1)
	}
	return g
}

func (g *gatedFetcher) FetchCollection(ctx context.Context, name string, params Params) ([]catalog.Tour, error) {
	g.calls <- params
	r := <-g.gates[params["region"]]
	return r.items, r.err
}

func TestLoaderRefreshesCache(t *testing.T) {
	c := cache.New[catalog.Tour](catalog.CollectionTours)
	f := FetcherFunc[catalog.Tour](func(ctx context.Context, name string, params Params) ([]catalog.Tour, error) {
		assert.Equal(t, "tours", name)
		return []catalog.Tour{{ID: "1"}, {ID: "2"}}, nil
	})
	l := NewLoader[catalog.Tour](c, f)

	require.NoError(t, l.Load(context.Background(), nil))
	assert.Equal(t, 2, c.Len())
	assert.NoError(t, l.Err())
	assert.Same(t, c, l.Cache())
}

func TestLoaderFailureKeepsStaleSnapshot(t *testing.T) {
	c := cache.New[catalog.Tour](catalog.CollectionTours)
	c.Refresh([]catalog.Tour{{ID: "old"}})
	boom := errors.New("backend down")
	l := NewLoader[catalog.Tour](c, FetcherFunc[catalog.Tour](func(context.Context, string, Params) ([]catalog.Tour, error) {
		return nil, boom
	}))

	err := l.Load(context.Background(), nil)

	var ferr *Error
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "tours", ferr.Collection)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, c.Len(), "previous snapshot must survive a failed fetch")
	assert.ErrorIs(t, l.Err(), boom)
}

func TestLoaderDiscardsSupersededResponse(t *testing.T) {
	c := cache.New[catalog.Tour](catalog.CollectionTours)
	g := newGatedFetcher("EU", "NA")
	l := NewLoader[catalog.Tour](c, g)

	errs := make(chan error, 2)
	go func() { errs <- l.Load(context.Background(), Params{"region": "EU"}) }()
	<-g.calls
	go func() { errs <- l.Load(context.Background(), Params{"region": "NA"}) }()
	<-g.calls

	// the newer request answers first, the older one arrives late
	g.gates["NA"] <- result{items: []catalog.Tour{{ID: "na-1"}}}
	require.NoError(t, <-errs)
	g.gates["EU"] <- result{items: []catalog.Tour{{ID: "eu-1"}, {ID: "eu-2"}}}
	assert.ErrorIs(t, <-errs, ErrSuperseded)

	assert.Equal(t, []catalog.Tour{{ID: "na-1"}}, c.All())
}

func TestLoaderCancelDropsOutstandingResult(t *testing.T) {
	c := cache.New[catalog.Tour](catalog.CollectionTours)
	g := newGatedFetcher("EU")
	l := NewLoader[catalog.Tour](c, g)

	errs := make(chan error, 1)
	go func() { errs <- l.Load(context.Background(), Params{"region": "EU"}) }()
	<-g.calls
	l.Cancel()
	g.gates["EU"] <- result{items: []catalog.Tour{{ID: "eu-1"}}}

	assert.ErrorIs(t, <-errs, ErrSuperseded)
	assert.True(t, c.IsEmpty())
}

func TestCreatePrependsWithoutRefresh(t *testing.T) {
	c := cache.New[catalog.Tour](catalog.CollectionTours)
	c.Refresh([]catalog.Tour{{ID: "a"}})
	at := c.RefreshedAt()

	cr := CreatorFunc[catalog.Tour](func(ctx context.Context, collection string, p catalog.Tour) (catalog.Tour, error) {
		p.ID = "new"
		return p, nil
	})
	got, err := Create[catalog.Tour](context.Background(), c, cr, catalog.Tour{Title: "Kyffhäuser"})
	require.NoError(t, err)

	assert.Equal(t, "new", got.ID)
	assert.Equal(t, "new", c.All()[0].ID)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, at, c.RefreshedAt())
}

func TestCreateFailureLeavesCache(t *testing.T) {
	c := cache.New[catalog.Tour](catalog.CollectionTours)
	cr := CreatorFunc[catalog.Tour](func(context.Context, string, catalog.Tour) (catalog.Tour, error) {
		return catalog.Tour{}, catalog.Invalidf("title required")
	})
	_, err := Create[catalog.Tour](context.Background(), c, cr, catalog.Tour{})
	assert.ErrorIs(t, err, catalog.ErrValidation)
	assert.True(t, c.IsEmpty())
}

func TestSequencerOnlyLatestCommits(t *testing.T) {
	s := NewSequencer()
	a := s.Issue("k")
	b := s.Issue("k")
	other := s.Issue("other")

	assert.False(t, s.IsLatest(a))
	assert.True(t, s.IsLatest(b))
	assert.True(t, s.IsLatest(other))
	assert.Greater(t, b.Seq, a.Seq)

	ran := false
	assert.False(t, s.Commit(a, func() { ran = true }))
	assert.False(t, ran)
	assert.True(t, s.Commit(b, func() { ran = true }))
	assert.True(t, ran)
}
