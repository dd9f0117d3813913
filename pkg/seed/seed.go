// Package seed loads YAML fixtures into the document store.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/storage"
)

// Logger abstracts logging so callers can use logrus or anything with the
// same shape.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Fixture is the content of a seed file.
type Fixture struct {
	Tours   []Tour     `yaml:"tours"`
	Forum   []Category `yaml:"forum"`
	Threads []Thread   `yaml:"threads"`
	Posts   []Post     `yaml:"posts"`
	Users   []User     `yaml:"users"`
}

type Tour struct {
	Title   string    `yaml:"title"`
	Km      float64   `yaml:"km"`
	Time    string    `yaml:"time"`
	Curves  string    `yaml:"curves"`
	Desc    string    `yaml:"desc"`
	Coords  []float64 `yaml:"coords"`
	Region  string    `yaml:"region"`
	Country string    `yaml:"country"`
	State   string    `yaml:"state"`
	// Votes are replayed through the rating accumulator.
	Votes []int `yaml:"votes"`
}

type Topic struct {
	Title string `yaml:"title"`
	Desc  string `yaml:"desc"`
}

type Category struct {
	Title  string  `yaml:"title"`
	Desc   string  `yaml:"desc"`
	Icon   string  `yaml:"icon"`
	Topics []Topic `yaml:"topics"`
}

type Reply struct {
	User string `yaml:"user"`
	Text string `yaml:"text"`
}

type Thread struct {
	Topic   string  `yaml:"topic"`
	Title   string  `yaml:"title"`
	User    string  `yaml:"user"`
	Text    string  `yaml:"text"`
	Replies []Reply `yaml:"replies"`
}

type Post struct {
	UserID   string `yaml:"userId"`
	Content  string `yaml:"content"`
	MediaURL string `yaml:"mediaUrl"`
}

type User struct {
	UID         string `yaml:"uid"`
	Email       string `yaml:"email"`
	DisplayName string `yaml:"displayName"`
}

// Summary counts what Apply stored.
type Summary struct {
	Tours, Votes, Categories, Topics, Threads, Replies, Posts, Users int
	Skipped                                                          int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d tours (%d votes), %d categories, %d topics, %d threads (%d replies), %d posts, %d users, %d skipped",
		s.Tours, s.Votes, s.Categories, s.Topics, s.Threads, s.Replies, s.Posts, s.Users, s.Skipped)
}

// Parse decodes a fixture. Unknown keys are rejected.
func Parse(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return &fx, nil
		}
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &fx, nil
}

//go:embed demo.yaml
var demo []byte

// Demo returns the built-in demo fixture.
func Demo() (*Fixture, error) {
	return Parse(bytes.NewReader(demo))
}

// Load reads and decodes the fixture file at path.
func Load(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Apply stores the fixture. Tours with an existing title and categories or
// topics that already exist are skipped, so a fixture can be applied twice.
func Apply(ctx context.Context, db *storage.DB, fx *Fixture, log Logger) (Summary, error) {
	if log == nil {
		log = nopLogger{}
	}
	var sum Summary

	existing, err := db.Tours(ctx, storage.TourFilter{})
	if err != nil {
		return sum, err
	}
	titles := make(map[string]bool, len(existing))
	for _, t := range existing {
		titles[strings.ToLower(t.Title)] = true
	}
	for _, t := range fx.Tours {
		if titles[strings.ToLower(storage.NormalizeTitle(t.Title))] {
			log.Debugf("Skipping existing tour %q", t.Title)
			sum.Skipped++
			continue
		}
		created, err := db.CreateTour(ctx, catalog.Tour{
			Title: t.Title, Km: t.Km, Time: t.Time, Curves: t.Curves, Desc: t.Desc,
			Coords: t.Coords, Region: t.Region, Country: t.Country, State: t.State,
		})
		if err != nil {
			return sum, fmt.Errorf("tour %q: %w", t.Title, err)
		}
		sum.Tours++
		titles[strings.ToLower(created.Title)] = true
		for _, v := range t.Votes {
			if _, err := db.Vote(ctx, created.ID, v); err != nil {
				return sum, fmt.Errorf("vote %d on tour %q: %w", v, t.Title, err)
			}
			sum.Votes++
		}
	}

	cats, err := db.Categories(ctx)
	if err != nil {
		return sum, err
	}
	for _, c := range fx.Forum {
		id := ""
		for _, e := range cats {
			if strings.EqualFold(e.Title, storage.NormalizeTitle(c.Title)) {
				id = e.ID
			}
		}
		if id == "" {
			created, err := db.CreateCategory(ctx, catalog.Category{Title: c.Title, Desc: c.Desc, Icon: c.Icon})
			if err != nil {
				return sum, fmt.Errorf("category %q: %w", c.Title, err)
			}
			id = created.ID
			cats = append(cats, created)
			sum.Categories++
		}
		for _, tp := range c.Topics {
			_, err := db.AddTopic(ctx, id, tp.Title, tp.Desc)
			if errors.Is(err, catalog.ErrConflict) {
				log.Debugf("Skipping existing topic %q", tp.Title)
				sum.Skipped++
				continue
			}
			if err != nil {
				return sum, fmt.Errorf("topic %q: %w", tp.Title, err)
			}
			sum.Topics++
		}
	}

	for _, th := range fx.Threads {
		created, err := db.CreateThread(ctx, catalog.Thread{Topic: th.Topic, Title: th.Title, User: th.User, Text: th.Text})
		if err != nil {
			return sum, fmt.Errorf("thread %q: %w", th.Title, err)
		}
		sum.Threads++
		for _, r := range th.Replies {
			if created, err = db.AddReply(ctx, created, catalog.Reply{User: r.User, Text: r.Text}); err != nil {
				return sum, fmt.Errorf("reply on %q: %w", th.Title, err)
			}
			sum.Replies++
		}
	}

	for _, p := range fx.Posts {
		if _, err := db.CreatePost(ctx, catalog.Post{UserID: p.UserID, Content: p.Content, MediaURL: p.MediaURL}); err != nil {
			return sum, fmt.Errorf("post: %w", err)
		}
		sum.Posts++
	}

	for _, u := range fx.Users {
		if _, err := db.SyncUser(ctx, catalog.User{ID: u.UID, Email: u.Email, DisplayName: u.DisplayName}); err != nil {
			return sum, fmt.Errorf("user %q: %w", u.UID, err)
		}
		sum.Users++
	}

	log.Infof("Seeded %s", sum)
	return sum, nil
}
