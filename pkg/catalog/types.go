package catalog

import (
	"encoding/json"
	"strings"
	"time"
)

// Collection names as stored in the document store and requested from the API.
const (
	CollectionTours   = "tours"
	CollectionForum   = "forum"
	CollectionThreads = "threads"
	CollectionPosts   = "posts"
	CollectionUsers   = "users"
)

// Entity is anything that can live in a cached collection.
type Entity interface {
	EntityID() string
	Created() time.Time
}

// LatLng is a geographic position in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Tour is a touring route. Region is serialized as "category" to stay
// compatible with documents written by the first version of the app.
type Tour struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Km            float64         `json:"km"`
	Time          string          `json:"time"`
	Curves        string          `json:"curves"`
	Desc          string          `json:"desc"`
	Coords        []float64       `json:"coords,omitempty"`
	Region        string          `json:"category"`
	Country       string          `json:"country"`
	State         string          `json:"state"`
	Rating        float64         `json:"rating"`
	Votes         int             `json:"votes"`
	RouteGeometry json.RawMessage `json:"routeGeometry,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (t Tour) EntityID() string   { return t.ID }
func (t Tour) Created() time.Time { return t.CreatedAt }

// Location returns the tour position when coords hold a lat/lng pair.
func (t Tour) Location() (LatLng, bool) {
	if len(t.Coords) != 2 {
		return LatLng{}, false
	}
	return LatLng{Lat: t.Coords[0], Lng: t.Coords[1]}, true
}

// Topic is identified by its title; threads join on it by value.
type Topic struct {
	Title     string    `json:"title"`
	Desc      string    `json:"desc"`
	CreatedAt time.Time `json:"createdAt"`
}

// Category is a top-level forum section owning an ordered list of topics.
type Category struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Desc      string    `json:"desc"`
	Icon      string    `json:"icon,omitempty"`
	Topics    []Topic   `json:"topics"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c Category) EntityID() string   { return c.ID }
func (c Category) Created() time.Time { return c.CreatedAt }

// TopicTitles lists the titles of the category's topics in order.
func (c Category) TopicTitles() []string {
	out := make([]string, 0, len(c.Topics))
	for _, t := range c.Topics {
		out = append(out, t.Title)
	}
	return out
}

// FindTopic looks up a topic by exact title.
func (c Category) FindTopic(title string) (Topic, bool) {
	for _, t := range c.Topics {
		if t.Title == title {
			return t, true
		}
	}
	return Topic{}, false
}

// HasTopicFold reports whether a topic with the same title, ignoring case, exists.
func (c Category) HasTopicFold(title string) bool {
	for _, t := range c.Topics {
		if strings.EqualFold(t.Title, title) {
			return true
		}
	}
	return false
}

// Reply is an answer appended to a thread.
type Reply struct {
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

// Thread belongs to exactly the topic whose title equals Topic.
type Thread struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	User        string    `json:"user"`
	Replies     int       `json:"replies"`
	RepliesList []Reply   `json:"repliesList,omitempty"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (t Thread) EntityID() string   { return t.ID }
func (t Thread) Created() time.Time { return t.CreatedAt }

// Post is a social feed entry.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	MediaType string    `json:"mediaType,omitempty"`
	Likes     []string  `json:"likes"`
	Comments  []Reply   `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p Post) EntityID() string   { return p.ID }
func (p Post) Created() time.Time { return p.CreatedAt }

// User is a synced profile. ID is the auth provider uid.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	LastLogin   time.Time `json:"lastLogin"`
}

func (u User) EntityID() string   { return u.ID }
func (u User) Created() time.Time { return u.LastLogin }
