package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sw33tLie/riderpoint/pkg/cache"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

// Loader fetches a collection into a cache. A failed fetch leaves the previous
// snapshot in place and records the failure; a superseded fetch is dropped.
type Loader[T catalog.Entity] struct {
	cache   *cache.Collection[T]
	fetcher Fetcher[T]
	seq     *Sequencer
	log     Logger
	obs     Observer

	mu      sync.Mutex
	lastErr error
}

// LoaderOption customizes a Loader.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	seq *Sequencer
	log Logger
	obs Observer
}

// WithSequencer shares a sequencer between loaders.
func WithSequencer(s *Sequencer) LoaderOption {
	return func(o *loaderOptions) { o.seq = s }
}

// WithLogger sets the loader logger.
func WithLogger(l Logger) LoaderOption {
	return func(o *loaderOptions) { o.log = l }
}

// WithObserver reports fetch outcomes to obs.
func WithObserver(obs Observer) LoaderOption {
	return func(o *loaderOptions) { o.obs = obs }
}

// NewLoader binds a fetcher to a cache.
func NewLoader[T catalog.Entity](c *cache.Collection[T], f Fetcher[T], opts ...LoaderOption) *Loader[T] {
	o := loaderOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.seq == nil {
		o.seq = NewSequencer()
	}
	if o.log == nil {
		o.log = NopLogger{}
	}
	if o.obs == nil {
		o.obs = nopObserver{}
	}
	return &Loader[T]{cache: c, fetcher: f, seq: o.seq, log: o.log, obs: o.obs}
}

// Cache returns the cache the loader writes to.
func (l *Loader[T]) Cache() *cache.Collection[T] { return l.cache }

// Load fetches the collection and refreshes the cache with the result.
// It returns ErrSuperseded when a newer Load was issued meanwhile and a
// *Error when the fetch failed; in both cases the cache is untouched.
func (l *Loader[T]) Load(ctx context.Context, params Params) error {
	name := l.cache.Name()
	ticket := l.seq.Issue(name)
	start := time.Now()

	items, err := l.fetcher.FetchCollection(ctx, name, params)
	l.obs.FetchDone(name, time.Since(start), err)

	if err != nil {
		ferr := &Error{Collection: name, Err: err}
		if !l.seq.Commit(ticket, func() { l.setErr(ferr) }) {
			l.obs.Superseded(name)
			l.log.Debugf("Discarding failed %s fetch #%d, superseded", name, ticket.Seq)
			return ErrSuperseded
		}
		l.log.Warnf("Fetching %s failed, keeping %d cached items: %v", name, l.cache.Len(), err)
		return ferr
	}

	committed := l.seq.Commit(ticket, func() {
		l.cache.Refresh(items)
		l.setErr(nil)
	})
	if !committed {
		l.obs.Superseded(name)
		l.log.Debugf("Discarding %s fetch #%d with %d items, superseded", name, ticket.Seq, len(items))
		return ErrSuperseded
	}
	l.obs.CacheSize(name, len(items))
	l.log.Debugf("Refreshed %s with %d items (#%d)", name, len(items), ticket.Seq)
	return nil
}

// Cancel discards the result of any outstanding Load.
func (l *Loader[T]) Cancel() {
	l.seq.Cancel(l.cache.Name())
}

// Err returns the last fetch failure, or nil when the last applied fetch
// succeeded. A non-nil Err with a non-empty cache means "stale".
func (l *Loader[T]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Loader[T]) setErr(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
}

// Create persists payload and merges the stored entity into the front of the
// cache, avoiding a full refresh.
func Create[T catalog.Entity](ctx context.Context, c *cache.Collection[T], cr Creator[T], payload T) (T, error) {
	created, err := cr.CreateEntity(ctx, c.Name(), payload)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Prepend(created)
	return created, nil
}
