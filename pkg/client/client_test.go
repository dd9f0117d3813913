package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
	"github.com/sw33tLie/riderpoint/pkg/forum"
)

var _ forum.Source = (*Client)(nil)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api", WithRetries(0), WithRateLimit(0))
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("localhost:7071")
	assert.Error(t, err)
}

func TestToursSendsParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tours", r.URL.Path)
		assert.Equal(t, "EU", r.URL.Query().Get("region"))
		assert.False(t, r.URL.Query().Has("country"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":"1","title":"Stelvio","category":"EU","country":"Italia"}]`)
	})

	tours, err := c.Tours(context.Background(), fetch.Params{"region": "EU", "country": ""})
	require.NoError(t, err)
	require.Len(t, tours, 1)
	assert.Equal(t, "EU", tours[0].Region)
}

func TestStatusErrorsMapToSentinels(t *testing.T) {
	tests := []struct {
		status int
		body   string
		ctype  string
		want   error
		msg    string
	}{
		{http.StatusBadRequest, `{"error":"rating must be between 1 and 5"}`, "application/json", catalog.ErrValidation, "rating must be between 1 and 5"},
		{http.StatusNotFound, `{"error":"tours \"x\""}`, "application/json", catalog.ErrNotFound, `tours "x"`},
		{http.StatusConflict, `{"error":"exists"}`, "application/json", catalog.ErrConflict, "exists"},
		{http.StatusBadGateway, `<html><head><title>502 Bad Gateway</title></head></html>`, "text/html; charset=utf-8", nil, "502 Bad Gateway"},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", tt.ctype)
			w.WriteHeader(tt.status)
			io.WriteString(w, tt.body)
		})
		_, err := c.Vote(context.Background(), "x", 9)
		require.Error(t, err)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, tt.status, se.Status)
		assert.Equal(t, tt.msg, se.Message)
		if tt.want != nil {
			assert.ErrorIs(t, err, tt.want)
		}
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRetries(3), WithRateLimit(0))
	require.NoError(t, err)
	c.http.RetryWaitMin, c.http.RetryWaitMax = 0, 0

	posts, err := c.Posts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmptyForumIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no forum categories"}`, http.StatusNotFound)
	})
	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestAddReplySendsThreadKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/reply", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"id": "t1", "topic": "BMW", "user": "Anna", "text": "Motul"}, body)
		io.WriteString(w, `{"id":"t1","topic":"BMW","replies":3}`)
	})

	th, err := c.AddReply(context.Background(), catalog.Thread{ID: "t1", Topic: "BMW"}, catalog.Reply{User: "Anna", Text: "Motul"})
	require.NoError(t, err)
	assert.Equal(t, 3, th.Replies)
}

func TestDecodeListRejectsObjects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"items":[]}`)
	})
	_, err := c.Threads(context.Background(), "")
	assert.Error(t, err)
}

func TestCreatorFeedsLoaderCache(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in catalog.Tour
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = "new-id"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(in)
	})
	got, err := Creator[catalog.Tour](c, PathTours).CreateEntity(context.Background(), catalog.CollectionTours, catalog.Tour{Title: "Furka", Country: "Schweiz"})
	require.NoError(t, err)
	assert.Equal(t, "new-id", got.ID)
}

func TestWithProxySetsTransportProxy(t *testing.T) {
	c, err := New("http://localhost:7071/api", WithProxy("http://127.0.0.1:8080"))
	require.NoError(t, err)
	tr, ok := c.http.HTTPClient.Transport.(*http.Transport)
	require.True(t, ok)
	req, _ := http.NewRequest(http.MethodGet, "http://localhost:7071/api/tours", nil)
	u, err := tr.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", u.Host)
}
