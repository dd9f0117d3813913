// Package stats derives per-scope aggregates from a cached collection.
// Nothing here is stored: every call scans the current snapshot.
package stats

import (
	"github.com/sw33tLie/riderpoint/pkg/cache"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

// Scope is the aggregate of every item matching a predicate.
type Scope[T catalog.Entity] struct {
	ItemCount  int
	ReplyCount int
	// MostRecent is nil when nothing matched.
	MostRecent *T
}

// Aggregator computes Scope values over one cache.
type Aggregator[T catalog.Entity] struct {
	cache   *cache.Collection[T]
	replies func(T) int
}

// New returns an aggregator. replies may be nil for items without replies.
func New[T catalog.Entity](c *cache.Collection[T], replies func(T) int) *Aggregator[T] {
	return &Aggregator[T]{cache: c, replies: replies}
}

// Compute filters the current snapshot with pred. Ties on the creation time
// go to the item stored later in the snapshot.
func (a *Aggregator[T]) Compute(pred func(T) bool) Scope[T] {
	var s Scope[T]
	items := a.cache.All()
	for i := range items {
		it := items[i]
		if pred != nil && !pred(it) {
			continue
		}
		s.ItemCount++
		if a.replies != nil {
			s.ReplyCount += a.replies(it)
		}
		if s.MostRecent == nil || !it.Created().Before((*s.MostRecent).Created()) {
			s.MostRecent = &items[i]
		}
	}
	return s
}

// Threads aggregates forum threads, summing their reply counters.
func Threads(c *cache.Collection[catalog.Thread]) *Aggregator[catalog.Thread] {
	return New(c, func(t catalog.Thread) int { return t.Replies })
}

// InTopics matches threads whose topic is one of titles.
func InTopics(titles ...string) func(catalog.Thread) bool {
	set := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		set[t] = struct{}{}
	}
	return func(th catalog.Thread) bool {
		_, ok := set[th.Topic]
		return ok
	}
}

// InTopic matches threads of a single topic.
func InTopic(title string) func(catalog.Thread) bool {
	return func(th catalog.Thread) bool { return th.Topic == title }
}

// CategoryStats aggregates every thread under the category's topics.
// Membership is recomputed from topic titles on each call.
func CategoryStats(a *Aggregator[catalog.Thread], c catalog.Category) Scope[catalog.Thread] {
	return a.Compute(InTopics(c.TopicTitles()...))
}

// TopicStats aggregates the threads of one topic.
func TopicStats(a *Aggregator[catalog.Thread], topic string) Scope[catalog.Thread] {
	return a.Compute(InTopic(topic))
}
