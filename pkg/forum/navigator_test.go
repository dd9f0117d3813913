package forum

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/riderpoint/pkg/cache"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
)

var now = time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC)

type fakeSource struct {
	mu         sync.Mutex
	categories []catalog.Category
	threads    []catalog.Thread
	calls      map[string]int
	fail       error
	// gate, when set, blocks Thread until closed
	gate map[string]chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		categories: []catalog.Category{
			{ID: "c1", Title: "Marken", Topics: []catalog.Topic{{Title: "BMW"}, {Title: "Ducati"}}},
			{ID: "c2", Title: "Reisen", Topics: []catalog.Topic{{Title: "Alpen"}}},
		},
		threads: []catalog.Thread{
			{ID: "t1", Topic: "BMW", Title: "R 1250 GS Kette", Replies: 2, CreatedAt: now.Add(-3 * time.Hour)},
			{ID: "t2", Topic: "Ducati", Title: "Desmo Service", Replies: 1, CreatedAt: now.Add(-time.Hour)},
			{ID: "t3", Topic: "Alpen", Title: "Stilfser Joch offen?", Replies: 0, CreatedAt: now},
		},
		calls: map[string]int{},
		gate:  map[string]chan struct{}{},
	}
}

func (f *fakeSource) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSource) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.fail
}

func (f *fakeSource) Categories(ctx context.Context) ([]catalog.Category, error) {
	if err := f.hit("categories"); err != nil {
		return nil, err
	}
	return f.categories, nil
}

func (f *fakeSource) Threads(ctx context.Context, topic string) ([]catalog.Thread, error) {
	if err := f.hit("threads:" + topic); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []catalog.Thread
	for _, t := range f.threads {
		if topic == "" || t.Topic == topic {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeSource) Thread(ctx context.Context, id string) (catalog.Thread, error) {
	if err := f.hit("thread:" + id); err != nil {
		return catalog.Thread{}, err
	}
	f.mu.Lock()
	gate := f.gate[id]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.threads {
		if t.ID == id {
			return t, nil
		}
	}
	return catalog.Thread{}, catalog.ErrNotFound
}

func (f *fakeSource) AddReply(ctx context.Context, th catalog.Thread, r catalog.Reply) (catalog.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.threads {
		if t.ID == th.ID && t.Topic == th.Topic {
			f.threads[i] = WithReply(t, r)
			return f.threads[i], nil
		}
	}
	return catalog.Thread{}, catalog.ErrNotFound
}

func labels(crumbs []Crumb) []string {
	out := []string{}
	for _, c := range crumbs {
		out = append(out, c.Label)
	}
	return out
}

func TestHomeSummaries(t *testing.T) {
	src := newFakeSource()
	n := New(src)
	require.NoError(t, n.GoHome(context.Background()))

	v := n.View()
	require.Len(t, v.Categories, 2)
	marken := v.Categories[0]
	assert.Equal(t, 2, marken.Stats.ItemCount)
	assert.Equal(t, 3, marken.Stats.ReplyCount)
	assert.Equal(t, "t2", marken.Stats.MostRecent.ID)
	assert.Equal(t, []string{RootLabel}, labels(v.Crumbs))
}

func TestReenteringStateDoesNotFetchAgain(t *testing.T) {
	src := newFakeSource()
	n := New(src)
	ctx := context.Background()

	require.NoError(t, n.GoCategory(ctx, "c1"))
	require.NoError(t, n.GoCategory(ctx, "c1"))
	assert.Equal(t, 1, src.count("categories"))
	assert.Equal(t, []string{RootLabel, "Marken"}, labels(n.Breadcrumb()))

	v := n.View()
	require.Len(t, v.Topics, 2)
	assert.Equal(t, 1, v.Topics[0].Stats.ItemCount)
	assert.Equal(t, 1, v.Topics[1].Stats.ReplyCount)
}

func TestTopicAndThreadBreadcrumbs(t *testing.T) {
	src := newFakeSource()
	n := New(src)
	ctx := context.Background()

	require.NoError(t, n.GoTopic(ctx, "c1", "BMW"))
	v := n.View()
	assert.Equal(t, []string{RootLabel, "Marken", "BMW"}, labels(v.Crumbs))
	require.Len(t, v.Threads, 1)
	assert.Equal(t, "t1", v.Threads[0].ID)

	require.NoError(t, n.GoThread(ctx, "t1", "BMW", "c1"))
	crumbs := n.Breadcrumb()
	assert.Equal(t, []string{RootLabel, "Marken", "BMW", "R 1250 GS Kette"}, labels(crumbs))

	require.NoError(t, n.Back(ctx, crumbs[1]))
	assert.Equal(t, CategoryState("c1"), n.State())
	assert.Equal(t, []string{RootLabel, "Marken"}, labels(n.Breadcrumb()))
}

func TestDeepLinkedThreadFindsItsParents(t *testing.T) {
	src := newFakeSource()
	n := New(src)

	state, err := ParsePath("/forum/thread/t3")
	require.NoError(t, err)
	require.NoError(t, n.Go(context.Background(), state))

	assert.Equal(t, ThreadState("t3", "Alpen", "c2"), n.State())
	assert.Equal(t, []string{RootLabel, "Reisen", "Alpen", "Stilfser Joch offen?"}, labels(n.Breadcrumb()))
}

func TestAppendReplyStaysOnThread(t *testing.T) {
	src := newFakeSource()
	n := New(src, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	require.NoError(t, n.GoHome(ctx))
	require.NoError(t, n.GoThread(ctx, "t1", "BMW", "c1"))

	var rendered []View
	n.Subscribe(func(v View) { rendered = append(rendered, v) })

	before := n.View().Thread.Replies
	updated, err := n.AppendReply(ctx, "Biker", "Kettenspray von Motul")
	require.NoError(t, err)

	assert.Equal(t, before+1, updated.Replies)
	assert.Equal(t, ThreadState("t1", "BMW", "c1"), n.State())
	require.Len(t, rendered, 1)
	assert.Equal(t, ThreadDetail, rendered[0].State.Kind)
	assert.Equal(t, before+1, rendered[0].Thread.Replies)
	last := rendered[0].Thread.RepliesList[len(rendered[0].Thread.RepliesList)-1]
	assert.Equal(t, "2024-06-02", last.Date)
	assert.Equal(t, 1, src.count("thread:t1"), "a reply must not refetch the thread")

	// the shared cache follows so home stats are current
	got, ok := n.Threads().Find("t1")
	require.True(t, ok)
	assert.Equal(t, before+1, got.Replies)
}

func TestAppendReplyValidation(t *testing.T) {
	n := New(newFakeSource())
	ctx := context.Background()

	_, err := n.AppendReply(ctx, "Biker", "hello")
	assert.ErrorIs(t, err, catalog.ErrInvariant, "no thread loaded")

	require.NoError(t, n.GoThread(ctx, "t2", "", ""))
	_, err = n.AppendReply(ctx, " ", "hello")
	assert.ErrorIs(t, err, catalog.ErrValidation)
	assert.Equal(t, 1, n.View().Thread.Replies)
}

func TestAppendReplyToVanishedThread(t *testing.T) {
	src := newFakeSource()
	n := New(src)
	ctx := context.Background()
	require.NoError(t, n.GoThread(ctx, "t2", "", ""))

	src.mu.Lock()
	src.threads = src.threads[:1]
	src.mu.Unlock()

	_, err := n.AppendReply(ctx, "Biker", "noch da?")
	assert.ErrorIs(t, err, catalog.ErrInvariant)
	assert.Equal(t, 1, n.View().Thread.Replies)
}

func TestLeavingStateDiscardsLateResponse(t *testing.T) {
	src := newFakeSource()
	src.gate["t1"] = make(chan struct{})
	n := New(src)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- n.GoThread(ctx, "t1", "BMW", "c1") }()
	require.Eventually(t, func() bool { return src.count("thread:t1") == 1 }, time.Second, time.Millisecond)

	require.NoError(t, n.GoTopic(ctx, "c2", "Alpen"))
	close(src.gate["t1"])

	assert.True(t, errors.Is(<-done, fetch.ErrSuperseded))
	v := n.View()
	assert.Equal(t, TopicState("c2", "Alpen"), v.State)
	assert.Nil(t, v.Thread)
	assert.Equal(t, []string{RootLabel, "Reisen", "Alpen"}, labels(v.Crumbs))
}

func TestFetchFailureKeepsStaleData(t *testing.T) {
	src := newFakeSource()
	n := New(src)
	ctx := context.Background()
	require.NoError(t, n.GoHome(ctx))
	require.NoError(t, n.GoCategory(ctx, "c1"))

	src.mu.Lock()
	src.fail = errors.New("backend down")
	src.mu.Unlock()

	err := n.GoHome(ctx)
	var ferr *fetch.Error
	require.ErrorAs(t, err, &ferr)

	v := n.View()
	assert.Equal(t, Home, v.State.Kind)
	assert.Len(t, v.Categories, 2, "stale categories are still shown")
	assert.Error(t, v.Err)

	// a failed state is retried on re-entry
	src.mu.Lock()
	src.fail = nil
	src.mu.Unlock()
	require.NoError(t, n.GoHome(ctx))
	assert.NoError(t, n.View().Err)
}

func TestUnknownCategory(t *testing.T) {
	n := New(newFakeSource())
	err := n.GoCategory(context.Background(), "nope")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, []string{RootLabel, "nope"}, labels(n.Breadcrumb()))
}

func TestHistoryReceivesDeepLinks(t *testing.T) {
	var paths []string
	n := New(newFakeSource(), WithHistory(func(s State) { paths = append(paths, s.Path()) }))
	ctx := context.Background()

	require.NoError(t, n.GoHome(ctx))
	require.NoError(t, n.GoTopic(ctx, "c1", "BMW"))
	require.NoError(t, n.GoTopic(ctx, "c1", "BMW"))

	assert.Equal(t, []string{"/forum", "/forum/category/c1/topic/BMW"}, paths)
}

func TestInvalidStates(t *testing.T) {
	n := New(newFakeSource())
	ctx := context.Background()
	assert.ErrorIs(t, n.GoCategory(ctx, ""), catalog.ErrValidation)
	assert.ErrorIs(t, n.GoTopic(ctx, "c1", ""), catalog.ErrValidation)
	assert.ErrorIs(t, n.GoThread(ctx, "", "", ""), catalog.ErrValidation)
}

func TestSharedLoadersKeepNewestSnapshot(t *testing.T) {
	src := newFakeSource()
	release := make(chan struct{})
	var calls int32
	var mu sync.Mutex
	threads := fetch.NewLoader[catalog.Thread](cache.New[catalog.Thread](catalog.CollectionThreads),
		fetch.FetcherFunc[catalog.Thread](func(ctx context.Context, _ string, _ fetch.Params) ([]catalog.Thread, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				<-release
				return src.threads[:1], nil
			}
			return src.threads, nil
		}))
	categories := fetch.NewLoader[catalog.Category](cache.New[catalog.Category](catalog.CollectionForum),
		fetch.FetcherFunc[catalog.Category](func(ctx context.Context, _ string, _ fetch.Params) ([]catalog.Category, error) {
			return src.Categories(ctx)
		}))
	ctx := context.Background()

	older := New(src, WithLoaders(categories, threads))
	done := make(chan error, 1)
	go func() { done <- older.GoHome(ctx) }()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, time.Millisecond)

	newer := New(src, WithLoaders(categories, threads))
	require.NoError(t, newer.GoHome(ctx))
	require.Equal(t, 3, threads.Cache().Len())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 3, threads.Cache().Len(), "the older response must not replace the newer snapshot")
	assert.Same(t, threads.Cache(), older.Threads())
	assert.Equal(t, 2, older.View().Categories[0].Stats.ItemCount)
}

func TestMaxAgeServesFreshCaches(t *testing.T) {
	src := newFakeSource()
	ctx := context.Background()

	n := New(src, WithMaxAge(time.Minute))
	require.NoError(t, n.GoHome(ctx))
	require.NoError(t, n.GoCategory(ctx, "c1"))
	require.NoError(t, n.GoHome(ctx))
	assert.Equal(t, 1, src.count("categories"))
	assert.Equal(t, 1, src.count("threads:"))

	n = New(src)
	require.NoError(t, n.GoHome(ctx))
	require.NoError(t, n.GoCategory(ctx, "c1"))
	assert.Equal(t, 3, src.count("categories"), "without a max age every screen refetches")
}
