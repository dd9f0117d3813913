package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
	"github.com/sw33tLie/riderpoint/pkg/rating"
)

const (
	// DefaultTopicDesc is stored for topics created without a description.
	DefaultTopicDesc = "No description available."
	// DefaultDisplayName is stored for users synced without a name.
	DefaultDisplayName = "Biker"
	// AnonymousUser authors posts sent without a user id.
	AnonymousUser = "anonymous"

	dateLayout = "2006-01-02"
)

// TourFilter narrows a tour listing. Empty fields impose no constraint.
type TourFilter struct {
	Region  string
	Country string
	State   string
	Search  string
}

// Tours lists tours newest first.
func (d *DB) Tours(ctx context.Context, f TourFilter) ([]catalog.Tour, error) {
	filters := map[string]string{}
	for path, v := range map[string]string{"category": f.Region, "country": f.Country, "state": f.State} {
		if v != "" {
			filters[path] = v
		}
	}
	bodies, err := d.List(ctx, catalog.CollectionTours, ListOptions{
		Filters:     filters,
		Search:      f.Search,
		SearchPaths: []string{"title", "desc"},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[catalog.Tour](bodies)
}

// TourFetcher serves tour loads from the store. Params use the facet level
// names plus "search".
func (d *DB) TourFetcher() fetch.FetcherFunc[catalog.Tour] {
	return func(ctx context.Context, _ string, p fetch.Params) ([]catalog.Tour, error) {
		return d.Tours(ctx, TourFilter{Region: p["region"], Country: p["country"], State: p["state"], Search: p["search"]})
	}
}

// Tour returns one tour.
func (d *DB) Tour(ctx context.Context, id string) (catalog.Tour, error) {
	return getAs[catalog.Tour](ctx, d, catalog.CollectionTours, id)
}

// CreateTour stores a new tour with a fresh id and an empty rating.
func (d *DB) CreateTour(ctx context.Context, t catalog.Tour) (catalog.Tour, error) {
	t.Title = NormalizeTitle(t.Title)
	t.Country = strings.TrimSpace(t.Country)
	if t.Title == "" || t.Country == "" {
		return catalog.Tour{}, catalog.Invalidf("title and country are required")
	}
	if len(t.Coords) != 0 && len(t.Coords) != 2 {
		return catalog.Tour{}, catalog.Invalidf("coords must be a [lat, lng] pair")
	}
	t.ID = ""
	t.Rating, t.Votes = 0, 0
	t.CreatedAt = d.now().UTC()
	return insertAs(ctx, d, catalog.CollectionTours, t)
}

// Vote applies one rating vote to a tour.
func (d *DB) Vote(ctx context.Context, id string, vote int) (catalog.Tour, error) {
	body, err := d.Update(ctx, catalog.CollectionTours, id, func(body []byte) ([]byte, error) {
		current := rating.State{
			Average: gjson.GetBytes(body, "rating").Float(),
			Votes:   int(gjson.GetBytes(body, "votes").Int()),
		}
		next, err := rating.Apply(current, vote)
		if err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, "rating", next.Average); err != nil {
			return nil, err
		}
		return sjson.SetBytes(body, "votes", next.Votes)
	})
	if err != nil {
		return catalog.Tour{}, err
	}
	return decode[catalog.Tour](body)
}

// UpdateRoute replaces the route geometry of a tour and, when km > 0, its
// length.
func (d *DB) UpdateRoute(ctx context.Context, id string, geometry json.RawMessage, km float64) (catalog.Tour, error) {
	if len(geometry) == 0 || !gjson.ValidBytes(geometry) {
		return catalog.Tour{}, catalog.Invalidf("routeGeometry must be valid JSON")
	}
	if km < 0 {
		return catalog.Tour{}, catalog.Invalidf("km cannot be negative")
	}
	body, err := d.Update(ctx, catalog.CollectionTours, id, func(body []byte) ([]byte, error) {
		body, err := sjson.SetRawBytes(body, "routeGeometry", geometry)
		if err != nil || km == 0 {
			return body, err
		}
		return sjson.SetBytes(body, "km", km)
	})
	if err != nil {
		return catalog.Tour{}, err
	}
	return decode[catalog.Tour](body)
}

// Categories lists forum categories in creation order.
func (d *DB) Categories(ctx context.Context) ([]catalog.Category, error) {
	bodies, err := d.List(ctx, catalog.CollectionForum, ListOptions{})
	if err != nil {
		return nil, err
	}
	cats, err := decodeAll[catalog.Category](bodies)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(cats)-1; i < j; i, j = i+1, j-1 {
		cats[i], cats[j] = cats[j], cats[i]
	}
	return cats, nil
}

// CreateCategory stores a new top-level forum category.
func (d *DB) CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	c.Title = NormalizeTitle(c.Title)
	if c.Title == "" {
		return catalog.Category{}, catalog.Invalidf("category title is required")
	}
	existing, err := d.Categories(ctx)
	if err != nil {
		return catalog.Category{}, err
	}
	for _, e := range existing {
		if strings.EqualFold(e.Title, c.Title) {
			return catalog.Category{}, fmt.Errorf("%w: category %q already exists", catalog.ErrConflict, e.Title)
		}
	}
	if c.Topics == nil {
		c.Topics = []catalog.Topic{}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = d.now().UTC()
	}
	return insertAs(ctx, d, catalog.CollectionForum, c)
}

// AddTopic appends a topic to a category. Titles are unique per category,
// ignoring case.
func (d *DB) AddTopic(ctx context.Context, categoryID, title, desc string) (catalog.Topic, error) {
	title = NormalizeTitle(title)
	if categoryID == "" || title == "" {
		return catalog.Topic{}, catalog.Invalidf("main category and title are required")
	}
	if strings.TrimSpace(desc) == "" {
		desc = DefaultTopicDesc
	}
	topic := catalog.Topic{Title: title, Desc: desc, CreatedAt: d.now().UTC()}

	_, err := d.Update(ctx, catalog.CollectionForum, categoryID, func(body []byte) ([]byte, error) {
		cat, err := decode[catalog.Category](body)
		if err != nil {
			return nil, err
		}
		if cat.HasTopicFold(title) {
			return nil, fmt.Errorf("%w: topic %q already exists", catalog.ErrConflict, title)
		}
		if !gjson.GetBytes(body, "topics").IsArray() {
			if body, err = sjson.SetRawBytes(body, "topics", []byte("[]")); err != nil {
				return nil, err
			}
		}
		return sjson.SetBytes(body, "topics.-1", topic)
	})
	if err != nil {
		return catalog.Topic{}, err
	}
	return topic, nil
}

// Threads lists threads newest first, all of them when topic is "".
func (d *DB) Threads(ctx context.Context, topic string) ([]catalog.Thread, error) {
	opts := ListOptions{}
	if topic != "" {
		opts.Filters = map[string]string{"topic": topic}
	}
	bodies, err := d.List(ctx, catalog.CollectionThreads, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[catalog.Thread](bodies)
}

// Thread returns one thread.
func (d *DB) Thread(ctx context.Context, id string) (catalog.Thread, error) {
	return getAs[catalog.Thread](ctx, d, catalog.CollectionThreads, id)
}

// CreateThread stores a new thread without replies.
func (d *DB) CreateThread(ctx context.Context, t catalog.Thread) (catalog.Thread, error) {
	t.Title = NormalizeTitle(t.Title)
	t.Topic = strings.TrimSpace(t.Topic)
	t.User = strings.TrimSpace(t.User)
	if t.Topic == "" || t.Title == "" || t.User == "" {
		return catalog.Thread{}, catalog.Invalidf("topic, title and user are required")
	}
	now := d.now().UTC()
	t.ID = ""
	t.Replies = 0
	t.RepliesList = nil
	t.Date = now.Format(dateLayout)
	t.CreatedAt = now
	return insertAs(ctx, d, catalog.CollectionThreads, t)
}

// AddReply appends r to the thread matching t's id and topic and increments
// its reply counter. The counter never drops below the stored replies.
func (d *DB) AddReply(ctx context.Context, t catalog.Thread, r catalog.Reply) (catalog.Thread, error) {
	r.User, r.Text = strings.TrimSpace(r.User), strings.TrimSpace(r.Text)
	if t.ID == "" || t.Topic == "" || r.User == "" || r.Text == "" {
		return catalog.Thread{}, catalog.Invalidf("id, topic, text and user are required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = d.now().UTC()
	}
	if r.Date == "" {
		r.Date = r.CreatedAt.Format(dateLayout)
	}

	body, err := d.Update(ctx, catalog.CollectionThreads, t.ID, func(body []byte) ([]byte, error) {
		if gjson.GetBytes(body, "topic").String() != t.Topic {
			return nil, fmt.Errorf("%w: thread %q in topic %q", catalog.ErrNotFound, t.ID, t.Topic)
		}
		var err error
		if !gjson.GetBytes(body, "repliesList").IsArray() {
			if body, err = sjson.SetRawBytes(body, "repliesList", []byte("[]")); err != nil {
				return nil, err
			}
		}
		if body, err = sjson.SetBytes(body, "repliesList.-1", r); err != nil {
			return nil, err
		}
		count := gjson.GetBytes(body, "replies").Int() + 1
		if n := gjson.GetBytes(body, "repliesList.#").Int(); n > count {
			count = n
		}
		return sjson.SetBytes(body, "replies", count)
	})
	if err != nil {
		return catalog.Thread{}, err
	}
	return decode[catalog.Thread](body)
}

// SyncUser upserts a user profile and stamps its last login.
func (d *DB) SyncUser(ctx context.Context, u catalog.User) (catalog.User, error) {
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return catalog.User{}, catalog.Invalidf("uid is required")
	}
	if strings.TrimSpace(u.DisplayName) == "" {
		u.DisplayName = DefaultDisplayName
	}
	u.LastLogin = d.now().UTC()
	body, err := json.Marshal(u)
	if err != nil {
		return catalog.User{}, err
	}
	if err := d.Put(ctx, catalog.CollectionUsers, u.ID, body); err != nil {
		return catalog.User{}, err
	}
	return u, nil
}

// Users lists synced users, most recent login first.
func (d *DB) Users(ctx context.Context) ([]catalog.User, error) {
	bodies, err := d.List(ctx, catalog.CollectionUsers, ListOptions{})
	if err != nil {
		return nil, err
	}
	return decodeAll[catalog.User](bodies)
}

// Posts lists feed posts newest first.
func (d *DB) Posts(ctx context.Context) ([]catalog.Post, error) {
	bodies, err := d.List(ctx, catalog.CollectionPosts, ListOptions{})
	if err != nil {
		return nil, err
	}
	return decodeAll[catalog.Post](bodies)
}

// CreatePost stores a feed post. It needs a text or a media link.
func (d *DB) CreatePost(ctx context.Context, p catalog.Post) (catalog.Post, error) {
	p.Content = strings.TrimSpace(p.Content)
	p.MediaURL = NormalizeMediaURL(p.MediaURL)
	if p.Content == "" && p.MediaURL == "" {
		return catalog.Post{}, catalog.Invalidf("a post needs content or media")
	}
	if p.UserID == "" {
		p.UserID = AnonymousUser
	}
	if p.MediaURL != "" && p.MediaType == "" {
		p.MediaType = InferMediaType(p.MediaURL)
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []catalog.Reply{}
	}
	p.ID = ""
	p.CreatedAt = d.now().UTC()
	return insertAs(ctx, d, catalog.CollectionPosts, p)
}

// CreateEntity stores any catalog entity in its collection, for the seed
// loader and the generic persistence collaborator.
func (d *DB) CreateEntity(ctx context.Context, collection string, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return d.Insert(ctx, collection, body)
}

func insertAs[T any](ctx context.Context, d *DB, collection string, v T) (T, error) {
	body, err := json.Marshal(v)
	if err != nil {
		var zero T
		return zero, err
	}
	// empty ids are dropped so Insert assigns a uuid
	if gjson.GetBytes(body, "id").String() == "" {
		if body, err = sjson.DeleteBytes(body, "id"); err != nil {
			var zero T
			return zero, err
		}
	}
	stored, err := d.Insert(ctx, collection, body)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](stored)
}

func getAs[T any](ctx context.Context, d *DB, collection, id string) (T, error) {
	body, err := d.Get(ctx, collection, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](body)
}

func decode[T any](body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("decoding document: %w", err)
	}
	return v, nil
}

func decodeAll[T any](bodies [][]byte) ([]T, error) {
	out := make([]T, 0, len(bodies))
	for _, b := range bodies {
		v, err := decode[T](b)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
