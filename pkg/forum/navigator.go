// Package forum implements navigation through the forum hierarchy:
// Home -> Category -> Topic -> Thread detail.
//
// Every transition rebuilds the breadcrumb trail from the target state and
// fetches what that depth needs. Re-entering the current state is a no-op, and
// a response for a state the user already left is discarded.
package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sw33tLie/riderpoint/pkg/cache"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
	"github.com/sw33tLie/riderpoint/pkg/stats"
)

// DateLayout is the display date stored with replies.
const DateLayout = "2006-01-02"

const navKey = "forum/navigation"

// Source is the backend the navigator reads from and appends replies to.
type Source interface {
	Categories(ctx context.Context) ([]catalog.Category, error)
	// Threads lists the threads of one topic, or all threads for "".
	Threads(ctx context.Context, topic string) ([]catalog.Thread, error)
	Thread(ctx context.Context, id string) (catalog.Thread, error)
	// AddReply stores r under t (matched by id and topic) and returns the
	// updated thread.
	AddReply(ctx context.Context, t catalog.Thread, r catalog.Reply) (catalog.Thread, error)
}

// CategorySummary is one row of the home screen.
type CategorySummary struct {
	Category catalog.Category
	Stats    stats.Scope[catalog.Thread]
}

// TopicSummary is one row of a category screen.
type TopicSummary struct {
	Topic catalog.Topic
	Stats stats.Scope[catalog.Thread]
}

// View is what the current state renders.
type View struct {
	State   State
	Crumbs  []Crumb
	Loading bool
	// Err is the last failure for this state; data shown is stale.
	Err error

	Categories []CategorySummary
	Category   *catalog.Category
	Topics     []TopicSummary
	Threads    []catalog.Thread
	Thread     *catalog.Thread
}

// Navigator is the forum navigation state machine.
type Navigator struct {
	src        Source
	categories *cache.Collection[catalog.Category]
	threads    *cache.Collection[catalog.Thread]
	catLoader  *fetch.Loader[catalog.Category]
	thrLoader  *fetch.Loader[catalog.Thread]
	agg        *stats.Aggregator[catalog.Thread]
	seq        *fetch.Sequencer
	maxAge     time.Duration
	log        fetch.Logger
	now        func() time.Time
	history    func(State)

	mu        sync.Mutex
	state     State
	loaded    bool
	fetching  bool
	err       error
	topicList []catalog.Thread
	thread    *catalog.Thread
	listeners []func(View)
}

// Option customizes a Navigator.
type Option func(*Navigator)

// WithLogger sets the navigator logger.
func WithLogger(l fetch.Logger) Option {
	return func(n *Navigator) { n.log = l }
}

// WithClock replaces time.Now for reply timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Navigator) { n.now = now }
}

// WithHistory is called with every state the navigator enters, e.g. to push
// the deep link to the browser history.
func WithHistory(fn func(State)) Option {
	return func(n *Navigator) { n.history = fn }
}

// WithCaches shares category and thread caches with other components.
func WithCaches(categories *cache.Collection[catalog.Category], threads *cache.Collection[catalog.Thread]) Option {
	return func(n *Navigator) {
		n.categories = categories
		n.threads = threads
	}
}

// WithLoaders makes the navigator load through loaders owned by the caller.
// Every writer of a shared cache must go through the same loader, so that an
// older response can never overwrite a newer snapshot. The loaders' caches
// replace any set by WithCaches.
func WithLoaders(categories *fetch.Loader[catalog.Category], threads *fetch.Loader[catalog.Thread]) Option {
	return func(n *Navigator) {
		n.catLoader = categories
		n.thrLoader = threads
	}
}

// WithMaxAge lets Home and Category screens use the cached categories and
// threads without fetching while they were refreshed less than d ago.
func WithMaxAge(d time.Duration) Option {
	return func(n *Navigator) { n.maxAge = d }
}

// New creates a navigator at Home. Nothing is fetched until the first
// transition.
func New(src Source, opts ...Option) *Navigator {
	n := &Navigator{
		src:   src,
		seq:   fetch.NewSequencer(),
		log:   fetch.NopLogger{},
		now:   time.Now,
		state: HomeState(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.catLoader != nil {
		n.categories = n.catLoader.Cache()
	} else {
		if n.categories == nil {
			n.categories = cache.New[catalog.Category](catalog.CollectionForum)
		}
		n.catLoader = fetch.NewLoader[catalog.Category](n.categories,
			fetch.FetcherFunc[catalog.Category](func(ctx context.Context, _ string, _ fetch.Params) ([]catalog.Category, error) {
				return src.Categories(ctx)
			}), fetch.WithLogger(n.log))
	}
	if n.thrLoader != nil {
		n.threads = n.thrLoader.Cache()
	} else {
		if n.threads == nil {
			n.threads = cache.New[catalog.Thread](catalog.CollectionThreads)
		}
		n.thrLoader = fetch.NewLoader[catalog.Thread](n.threads,
			fetch.FetcherFunc[catalog.Thread](func(ctx context.Context, _ string, _ fetch.Params) ([]catalog.Thread, error) {
				return src.Threads(ctx, "")
			}), fetch.WithLogger(n.log))
	}
	n.agg = stats.Threads(n.threads)
	return n
}

// Subscribe registers fn to be called with every rendered view.
func (n *Navigator) Subscribe(fn func(View)) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

// Categories returns the shared category cache.
func (n *Navigator) Categories() *cache.Collection[catalog.Category] { return n.categories }

// Threads returns the shared cache of all threads.
func (n *Navigator) Threads() *cache.Collection[catalog.Thread] { return n.threads }

// State returns the current state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Breadcrumb returns the trail of the current state.
func (n *Navigator) Breadcrumb() []Crumb {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.crumbsLocked()
}

// View renders the current state from cached data.
func (n *Navigator) View() View {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.viewLocked()
}

func (n *Navigator) GoHome(ctx context.Context) error {
	return n.Go(ctx, HomeState())
}

func (n *Navigator) GoCategory(ctx context.Context, categoryID string) error {
	return n.Go(ctx, CategoryState(categoryID))
}

func (n *Navigator) GoTopic(ctx context.Context, categoryID, topic string) error {
	return n.Go(ctx, TopicState(categoryID, topic))
}

func (n *Navigator) GoThread(ctx context.Context, threadID, topic, categoryID string) error {
	return n.Go(ctx, ThreadState(threadID, topic, categoryID))
}

// Back navigates to the target of a breadcrumb.
func (n *Navigator) Back(ctx context.Context, c Crumb) error {
	return n.Go(ctx, c.Target)
}

// Go enters target and fetches its data. Entering the current state again
// does nothing when its data is loaded or loading. When the user moves on
// before the fetch returned, fetch.ErrSuperseded is returned and nothing is
// applied.
func (n *Navigator) Go(ctx context.Context, target State) error {
	if err := validate(target); err != nil {
		return err
	}

	n.mu.Lock()
	if n.state.Same(target) && (n.loaded || n.fetching) {
		n.mu.Unlock()
		n.log.Debugf("Already at %s, not fetching again", target.Path())
		return nil
	}
	if !n.state.Same(target) {
		n.topicList = nil
		n.thread = nil
	}
	n.state = target
	n.loaded, n.fetching, n.err = false, true, nil
	ticket := n.seq.Issue(navKey)
	v, listeners := n.viewLocked(), n.listeners
	n.mu.Unlock()

	if n.history != nil {
		n.history(target)
	}
	notify(listeners, v)

	apply, err := n.fetch(ctx, target)

	n.mu.Lock()
	committed := n.seq.Commit(ticket, func() {
		n.fetching = false
		if err != nil {
			n.err = err
			return
		}
		apply()
		n.loaded = n.err == nil
		err = n.err
	})
	if !committed {
		n.mu.Unlock()
		n.log.Debugf("Dropping response for %s, navigation moved on", target.Path())
		return fetch.ErrSuperseded
	}
	v, listeners = n.viewLocked(), n.listeners
	n.mu.Unlock()
	notify(listeners, v)

	if err != nil {
		n.log.Warnf("Loading %s failed: %v", target.Path(), err)
	}
	return err
}

// fetch loads what target needs and returns a func applying the result under
// the navigator lock. Shared caches are written by their loaders directly.
// Lock order is n.mu before the sequencer.
func (n *Navigator) fetch(ctx context.Context, target State) (func(), error) {
	g, gctx := errgroup.WithContext(ctx)
	load := func(l interface {
		Load(context.Context, fetch.Params) error
	}) {
		g.Go(func() error {
			if err := l.Load(gctx, nil); err != nil && !errors.Is(err, fetch.ErrSuperseded) {
				return err
			}
			return nil
		})
	}

	var (
		topicList []catalog.Thread
		thread    catalog.Thread
	)
	switch target.Kind {
	case Home, CategoryView:
		if !fresh(n.categories, n.maxAge) {
			load(n.catLoader)
		}
		if !fresh(n.threads, n.maxAge) {
			load(n.thrLoader)
		}
	case TopicView:
		if n.categories.IsEmpty() {
			load(n.catLoader)
		}
		g.Go(func() error {
			list, err := n.src.Threads(gctx, target.Topic)
			if err != nil {
				return &fetch.Error{Collection: catalog.CollectionThreads, Err: err}
			}
			topicList = list
			return nil
		})
	case ThreadDetail:
		if n.categories.IsEmpty() {
			load(n.catLoader)
		}
		g.Go(func() error {
			t, err := n.src.Thread(gctx, target.ThreadID)
			if err != nil {
				return &fetch.Error{Collection: catalog.CollectionThreads, Err: err}
			}
			thread = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return func() {
		switch target.Kind {
		case CategoryView:
			if _, ok := n.categories.Find(target.CategoryID); !ok {
				n.err = fmt.Errorf("%w: category %q", catalog.ErrNotFound, target.CategoryID)
			}
		case TopicView:
			n.topicList = topicList
		case ThreadDetail:
			n.thread = &thread
			n.state.Topic = thread.Topic
			if c, ok := n.categoryOf(thread.Topic); ok {
				n.state.CategoryID = c.ID
			}
		}
	}, nil
}

// fresh reports whether c holds data refreshed less than maxAge ago.
func fresh[T catalog.Entity](c *cache.Collection[T], maxAge time.Duration) bool {
	return maxAge > 0 && !c.IsEmpty() && time.Since(c.RefreshedAt()) < maxAge
}

// AppendReply stores a reply to the thread on screen and re-renders the same
// state with the updated thread. It never navigates.
func (n *Navigator) AppendReply(ctx context.Context, user, text string) (catalog.Thread, error) {
	user, text = strings.TrimSpace(user), strings.TrimSpace(text)
	if user == "" || text == "" {
		return catalog.Thread{}, catalog.Invalidf("reply needs a user and a text")
	}

	n.mu.Lock()
	if n.state.Kind != ThreadDetail || n.thread == nil {
		state := n.state
		n.mu.Unlock()
		n.log.Errorf("Reply outside of a loaded thread (at %s), ignoring", state.Path())
		return catalog.Thread{}, fmt.Errorf("%w: no thread loaded at %s", catalog.ErrInvariant, state.Path())
	}
	current := *n.thread
	threadID := current.ID
	n.mu.Unlock()

	now := n.now().UTC()
	updated, err := n.src.AddReply(ctx, current, catalog.Reply{
		User:      user,
		Text:      text,
		Date:      now.Format(DateLayout),
		CreatedAt: now,
	})
	if errors.Is(err, catalog.ErrNotFound) {
		n.log.Errorf("Reply references missing thread %s, ignoring", threadID)
		return catalog.Thread{}, fmt.Errorf("%w: thread %q does not exist", catalog.ErrInvariant, threadID)
	}
	if err != nil {
		return catalog.Thread{}, err
	}

	n.mu.Lock()
	if n.state.Kind == ThreadDetail && n.state.ThreadID == threadID {
		n.thread = &updated
	}
	n.threads.Replace(updated)
	for i := range n.topicList {
		if n.topicList[i].ID == threadID {
			n.topicList[i] = updated
		}
	}
	v, listeners := n.viewLocked(), n.listeners
	n.mu.Unlock()

	notify(listeners, v)
	return updated, nil
}

// WithReply appends r to t and bumps the reply counter.
func WithReply(t catalog.Thread, r catalog.Reply) catalog.Thread {
	t.RepliesList = append(append([]catalog.Reply{}, t.RepliesList...), r)
	t.Replies++
	return t
}

func (n *Navigator) viewLocked() View {
	v := View{
		State:   n.state,
		Crumbs:  n.crumbsLocked(),
		Loading: n.fetching,
		Err:     n.err,
	}
	switch n.state.Kind {
	case Home:
		for _, c := range n.categories.All() {
			v.Categories = append(v.Categories, CategorySummary{Category: c, Stats: stats.CategoryStats(n.agg, c)})
		}
	case CategoryView:
		if c, ok := n.categories.Find(n.state.CategoryID); ok {
			v.Category = &c
			for _, t := range c.Topics {
				v.Topics = append(v.Topics, TopicSummary{Topic: t, Stats: stats.TopicStats(n.agg, t.Title)})
			}
		}
	case TopicView:
		if c, ok := n.categories.Find(n.state.CategoryID); ok {
			v.Category = &c
		}
		v.Threads = append([]catalog.Thread{}, n.topicList...)
	case ThreadDetail:
		if n.thread != nil {
			t := *n.thread
			v.Thread = &t
		}
	}
	return v
}

// crumbsLocked rebuilds the trail from the state alone.
func (n *Navigator) crumbsLocked() []Crumb {
	s := n.state
	crumbs := []Crumb{{Label: RootLabel, Target: HomeState()}}
	if s.Kind == Home {
		return crumbs
	}
	if s.CategoryID != "" {
		label := s.CategoryID
		if c, ok := n.categories.Find(s.CategoryID); ok {
			label = c.Title
		}
		crumbs = append(crumbs, Crumb{Label: label, Target: CategoryState(s.CategoryID)})
	}
	if s.Kind >= TopicView && s.Topic != "" && s.CategoryID != "" {
		crumbs = append(crumbs, Crumb{Label: s.Topic, Target: TopicState(s.CategoryID, s.Topic)})
	}
	if s.Kind == ThreadDetail {
		label := "Thread"
		if n.thread != nil && n.thread.Title != "" {
			label = n.thread.Title
		}
		crumbs = append(crumbs, Crumb{Label: label, Target: s})
	}
	return crumbs
}

func (n *Navigator) categoryOf(topic string) (catalog.Category, bool) {
	for _, c := range n.categories.All() {
		if _, ok := c.FindTopic(topic); ok {
			return c, true
		}
	}
	return catalog.Category{}, false
}

func validate(s State) error {
	switch s.Kind {
	case Home:
		return nil
	case CategoryView:
		if s.CategoryID == "" {
			return catalog.Invalidf("category state needs a category id")
		}
	case TopicView:
		if s.CategoryID == "" || s.Topic == "" {
			return catalog.Invalidf("topic state needs a category id and a topic")
		}
	case ThreadDetail:
		if s.ThreadID == "" {
			return catalog.Invalidf("thread state needs a thread id")
		}
	default:
		return catalog.Invalidf("unknown navigation state %v", s.Kind)
	}
	return nil
}

func notify(listeners []func(View), v View) {
	for _, fn := range listeners {
		fn(v)
	}
}
