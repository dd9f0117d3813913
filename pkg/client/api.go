package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
)

// API paths, relative to the base URL.
const (
	PathTours       = "tours"
	PathUpdateRoute = "tours/update-route"
	PathVote        = "vote"
	PathForum       = "forum"
	PathAddTopic    = "forum/category"
	PathThreads     = "threads"
	PathReply       = "reply"
	PathUserSync    = "user-sync"
	PathPosts       = "posts"
)

// Fetcher adapts a list endpoint to fetch.Fetcher. Params become query values.
func Fetcher[T catalog.Entity](c *Client, path string) fetch.FetcherFunc[T] {
	return func(ctx context.Context, name string, params fetch.Params) ([]T, error) {
		q := url.Values{}
		for k, v := range params {
			if v != "" {
				q.Set(k, v)
			}
		}
		res, err := c.Send(ctx, &Request{Path: path, Query: q})
		if err != nil {
			return nil, err
		}
		return decodeList[T](res.Body)
	}
}

// Creator adapts a create endpoint to fetch.Creator.
func Creator[T catalog.Entity](c *Client, path string) fetch.CreatorFunc[T] {
	return func(ctx context.Context, collection string, payload T) (T, error) {
		var out T
		res, err := c.Send(ctx, &Request{Method: http.MethodPost, Path: path, Body: payload})
		if err != nil {
			return out, err
		}
		err = decode(res.Body, &out)
		return out, err
	}
}

// Tours lists tours narrowed by params (region, country, state, search).
func (c *Client) Tours(ctx context.Context, params fetch.Params) ([]catalog.Tour, error) {
	return Fetcher[catalog.Tour](c, PathTours)(ctx, catalog.CollectionTours, params)
}

// CreateTour posts a new tour and returns it as stored.
func (c *Client) CreateTour(ctx context.Context, t catalog.Tour) (catalog.Tour, error) {
	return Creator[catalog.Tour](c, PathTours)(ctx, catalog.CollectionTours, t)
}

// Vote rates a tour and returns it with the new average.
func (c *Client) Vote(ctx context.Context, id string, vote int) (catalog.Tour, error) {
	var t catalog.Tour
	res, err := c.Send(ctx, &Request{Method: http.MethodPost, Path: PathVote, Body: map[string]interface{}{"id": id, "rating": vote}})
	if err != nil {
		return t, err
	}
	err = decode(res.Body, &t)
	return t, err
}

// UpdateRoute stores a new route geometry for a tour.
func (c *Client) UpdateRoute(ctx context.Context, id string, geometry json.RawMessage, km float64) (catalog.Tour, error) {
	var t catalog.Tour
	body := map[string]interface{}{"id": id, "routeGeometry": geometry}
	if km > 0 {
		body["km"] = km
	}
	res, err := c.Send(ctx, &Request{Method: http.MethodPost, Path: PathUpdateRoute, Body: body})
	if err != nil {
		return t, err
	}
	err = decode(res.Body, &t)
	return t, err
}

// Categories lists the forum categories. The API answers 404 for an empty
// forum, which is returned as an empty list.
func (c *Client) Categories(ctx context.Context) ([]catalog.Category, error) {
	res, err := c.Send(ctx, &Request{Path: PathForum})
	if IsStatus(err, http.StatusNotFound) {
		return []catalog.Category{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeList[catalog.Category](res.Body)
}

// AddTopic adds a topic to a category.
func (c *Client) AddTopic(ctx context.Context, categoryID, title, desc string) (catalog.Topic, error) {
	var t catalog.Topic
	res, err := c.Send(ctx, &Request{Method: http.MethodPost, Path: PathAddTopic, Body: map[string]string{
		"mainCatId": categoryID, "title": title, "desc": desc,
	}})
	if err != nil {
		return t, err
	}
	err = decode(res.Body, &t)
	return t, err
}

// Threads lists threads of one topic, all of them for "".
func (c *Client) Threads(ctx context.Context, topic string) ([]catalog.Thread, error) {
	return Fetcher[catalog.Thread](c, PathThreads)(ctx, catalog.CollectionThreads, fetch.Params{"topic": topic})
}

// Thread fetches one thread with its replies.
func (c *Client) Thread(ctx context.Context, id string) (catalog.Thread, error) {
	var t catalog.Thread
	res, err := c.Send(ctx, &Request{Path: PathThreads + "/" + url.PathEscape(id)})
	if err != nil {
		return t, err
	}
	err = decode(res.Body, &t)
	return t, err
}

// CreateThread opens a new thread.
func (c *Client) CreateThread(ctx context.Context, t catalog.Thread) (catalog.Thread, error) {
	return Creator[catalog.Thread](c, PathThreads)(ctx, catalog.CollectionThreads, t)
}

// AddReply appends a reply to a thread and returns the updated thread.
func (c *Client) AddReply(ctx context.Context, t catalog.Thread, r catalog.Reply) (catalog.Thread, error) {
	var out catalog.Thread
	res, err := c.Send(ctx, &Request{Method: http.MethodPost, Path: PathReply, Body: map[string]string{
		"id": t.ID, "topic": t.Topic, "user": r.User, "text": r.Text,
	}})
	if err != nil {
		return out, err
	}
	err = decode(res.Body, &out)
	return out, err
}

// SyncUser upserts the signed-in user's profile.
func (c *Client) SyncUser(ctx context.Context, u catalog.User) error {
	_, err := c.Send(ctx, &Request{Method: http.MethodPost, Path: PathUserSync, Body: map[string]string{
		"uid": u.ID, "email": u.Email, "displayName": u.DisplayName,
	}})
	return err
}

// Posts lists the feed.
func (c *Client) Posts(ctx context.Context) ([]catalog.Post, error) {
	return Fetcher[catalog.Post](c, PathPosts)(ctx, catalog.CollectionPosts, nil)
}

// CreatePost publishes a feed post.
func (c *Client) CreatePost(ctx context.Context, p catalog.Post) (catalog.Post, error) {
	return Creator[catalog.Post](c, PathPosts)(ctx, catalog.CollectionPosts, p)
}

// decodeList reads a JSON array item by item.
func decodeList[T any](body []byte) ([]T, error) {
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, fmt.Errorf("expected a JSON array, got %.40q", string(body))
	}
	out := []T{}
	var err error
	doc.ForEach(func(_, item gjson.Result) bool {
		var v T
		if err = json.Unmarshal([]byte(item.Raw), &v); err != nil {
			err = fmt.Errorf("decoding item %d: %w", len(out), err)
			return false
		}
		out = append(out, v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decode(body []byte, v interface{}) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("invalid JSON response %.40q", string(body))
	}
	return json.Unmarshal(body, v)
}
