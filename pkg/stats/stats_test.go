package stats

import (
	"testing"
	"time"

	"github.com/sw33tLie/riderpoint/pkg/cache"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func thread(id, topic string, replies int, ageHours int) catalog.Thread {
	return catalog.Thread{ID: id, Topic: topic, Title: "T " + id, Replies: replies, CreatedAt: base.Add(time.Duration(ageHours) * time.Hour)}
}

func threads(items ...catalog.Thread) *Aggregator[catalog.Thread] {
	c := cache.New[catalog.Thread](catalog.CollectionThreads)
	c.Refresh(items)
	return Threads(c)
}

func TestComputeEmptyMatch(t *testing.T) {
	for name, a := range map[string]*Aggregator[catalog.Thread]{
		"empty cache":  threads(),
		"no match":     threads(thread("1", "BMW", 3, 0)),
		"empty topics": threads(thread("1", "", 3, 0)),
	} {
		s := TopicStats(a, "Ducati")
		if s.ItemCount != 0 || s.ReplyCount != 0 || s.MostRecent != nil {
			t.Fatalf("%s: expected zero scope, got %+v", name, s)
		}
	}
}

func TestCategoryStats(t *testing.T) {
	a := threads(
		thread("1", "BMW", 2, 0),
		thread("2", "Ducati", 5, 3),
		thread("3", "Pässe", 1, 10),
		thread("4", "BMW", 0, 1),
	)
	cat := catalog.Category{ID: "c1", Title: "Marken", Topics: []catalog.Topic{{Title: "BMW"}, {Title: "Ducati"}}}

	s := CategoryStats(a, cat)
	if s.ItemCount != 3 {
		t.Fatalf("expected 3 threads, got %d", s.ItemCount)
	}
	if s.ReplyCount != 7 {
		t.Fatalf("expected 7 replies, got %d", s.ReplyCount)
	}
	if s.MostRecent == nil || s.MostRecent.ID != "2" {
		t.Fatalf("expected thread 2 as most recent, got %+v", s.MostRecent)
	}
}

func TestMostRecentTieGoesToLaterItem(t *testing.T) {
	a := threads(thread("first", "BMW", 0, 2), thread("second", "BMW", 0, 2))
	for i := 0; i < 3; i++ {
		s := TopicStats(a, "BMW")
		if s.MostRecent.ID != "second" {
			t.Fatalf("expected the later item to win the tie, got %s", s.MostRecent.ID)
		}
	}
}

func TestStatsFollowRefresh(t *testing.T) {
	c := cache.New[catalog.Thread](catalog.CollectionThreads)
	c.Refresh([]catalog.Thread{thread("1", "BMW", 1, 0)})
	a := Threads(c)

	if got := TopicStats(a, "BMW").ReplyCount; got != 1 {
		t.Fatalf("expected 1 reply, got %d", got)
	}
	c.Prepend(thread("2", "BMW", 4, 5))
	s := TopicStats(a, "BMW")
	if s.ReplyCount != 5 || s.MostRecent.ID != "2" {
		t.Fatalf("expected refreshed stats, got %+v", s)
	}
}

func TestTopicMembershipIsByTitle(t *testing.T) {
	a := threads(thread("1", "bmw", 0, 0), thread("2", "BMW ", 0, 0))
	if got := TopicStats(a, "BMW").ItemCount; got != 0 {
		t.Fatalf("expected exact title match only, got %d threads", got)
	}
}

func TestComputeWithoutReplies(t *testing.T) {
	c := cache.New[catalog.Tour](catalog.CollectionTours)
	c.Refresh([]catalog.Tour{{ID: "a", Region: "EU"}, {ID: "b", Region: "NA"}})
	s := New(c, nil).Compute(func(t catalog.Tour) bool { return t.Region == "EU" })
	if s.ItemCount != 1 || s.ReplyCount != 0 {
		t.Fatalf("expected one tour without replies, got %+v", s)
	}
}
