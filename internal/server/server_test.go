package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/client"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
	"github.com/sw33tLie/riderpoint/pkg/forum"
	"github.com/sw33tLie/riderpoint/pkg/metrics"
	"github.com/sw33tLie/riderpoint/pkg/storage"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db, opts...)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func newClient(t *testing.T, ts *httptest.Server) *client.Client {
	t.Helper()
	c, err := client.New(ts.URL+"/api", client.WithRetries(0), client.WithRateLimit(0))
	require.NoError(t, err)
	return c
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestErrorStatusCodes(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		path, body string
		want       int
	}{
		{"/api/tours", `{"title":"Stelvio"}`, http.StatusBadRequest},
		{"/api/tours", `{"title":`, http.StatusBadRequest},
		{"/api/vote", `{"id":"nope","rating":4}`, http.StatusNotFound},
		{"/api/vote", `{"id":"nope","rating":4.5}`, http.StatusBadRequest},
		{"/api/forum/category", `{"mainCatId":"nope","title":"BMW"}`, http.StatusNotFound},
		{"/api/forum/category", `{"title":"BMW"}`, http.StatusBadRequest},
		{"/api/reply", `{"id":"x","topic":"BMW","user":"Anna","text":"hi"}`, http.StatusNotFound},
		{"/api/reply", `{"id":"x","user":"Anna","text":"hi"}`, http.StatusBadRequest},
		{"/api/user-sync", `{"email":"a@b.c"}`, http.StatusBadRequest},
		{"/api/posts", `{"userId":"anna"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp := post(t, ts, tt.path, tt.body)
		assert.Equal(t, tt.want, resp.StatusCode, "%s %s", tt.path, tt.body)
		assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	}
}

func TestEmptyForumIs404(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/forum")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cats, err := newClient(t, ts).Categories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestToursThroughClient(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)
	ctx := context.Background()

	stelvio, err := c.CreateTour(ctx, catalog.Tour{Title: "Stelvio", Region: "EU", Country: "Italia", Coords: []float64{46.5, 10.4}})
	require.NoError(t, err)
	assert.NotEmpty(t, stelvio.ID)
	_, err = c.CreateTour(ctx, catalog.Tour{Title: "Dragon", Region: "NA", Country: "USA", Desc: "318 curves"})
	require.NoError(t, err)

	eu, err := c.Tours(ctx, fetch.Params{"region": "EU"})
	require.NoError(t, err)
	require.Len(t, eu, 1)
	assert.Equal(t, "Stelvio", eu[0].Title)

	found, err := c.Tours(ctx, fetch.Params{"search": "CURVES"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Dragon", found[0].Title)

	voted, err := c.Vote(ctx, stelvio.ID, 4)
	require.NoError(t, err)
	voted, err = c.Vote(ctx, stelvio.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, voted.Votes)
	assert.InDelta(t, 4.5, voted.Rating, 1e-9)

	_, err = c.Vote(ctx, stelvio.ID, 6)
	assert.ErrorIs(t, err, catalog.ErrValidation)

	routed, err := c.UpdateRoute(ctx, stelvio.ID, []byte(`{"type":"LineString","coordinates":[[10.4,46.5],[10.5,46.6]]}`), 49.5)
	require.NoError(t, err)
	assert.Equal(t, 49.5, routed.Km)
	assert.Contains(t, string(routed.RouteGeometry), "LineString")
}

func TestForumThroughNavigator(t *testing.T) {
	s, ts := newTestServer(t)
	c := newClient(t, ts)
	ctx := context.Background()

	cat, err := s.DB.CreateCategory(ctx, catalog.Category{Title: "Technik"})
	require.NoError(t, err)
	_, err = c.AddTopic(ctx, cat.ID, "BMW", "")
	require.NoError(t, err)
	_, err = c.AddTopic(ctx, cat.ID, "bmw", "")
	assert.ErrorIs(t, err, catalog.ErrConflict)

	th, err := c.CreateThread(ctx, catalog.Thread{Topic: "BMW", Title: "Welches Öl?", User: "Anna"})
	require.NoError(t, err)

	nav := forum.New(c)
	require.NoError(t, nav.GoThread(ctx, th.ID, "", ""))
	view := nav.View()
	require.NotNil(t, view.Thread)
	assert.Equal(t, forum.TopicState(cat.ID, "BMW").Path(), view.Crumbs[2].Target.Path())

	_, err = nav.AppendReply(ctx, "Ben", "Motul 7100")
	require.NoError(t, err)
	stored, err := c.Thread(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Replies)
	assert.Equal(t, "Motul 7100", stored.RepliesList[0].Text)
}

func TestBasicAuthGuardsWrites(t *testing.T) {
	_, ts := newTestServer(t, WithBasicAuth("admin", "secret"))

	resp := post(t, ts, "/api/posts", `{"content":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/posts", strings.NewReader(`{"content":"hi"}`))
	req.SetBasicAuth("admin", "secret")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusCreated, authed.StatusCode)

	get, err := http.Get(ts.URL + "/api/posts")
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
}

func TestMetricsCountRequestsAndVotes(t *testing.T) {
	m := metrics.New()
	s, ts := newTestServer(t, WithMetrics(m))
	tour, err := s.DB.CreateTour(context.Background(), catalog.Tour{Title: "Furka", Country: "Schweiz"})
	require.NoError(t, err)

	post(t, ts, "/api/vote", `{"id":"`+tour.ID+`","rating":5}`)
	post(t, ts, "/api/vote", `{"id":"`+tour.ID+`","rating":0}`)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Votes.WithLabelValues("5")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/vote", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/vote", "400")))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
