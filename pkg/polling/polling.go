// Package polling keeps shared collection caches fresh in the background.
package polling

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Source is one cache kept fresh by the poller.
type Source interface {
	Name() string
	Refresh(ctx context.Context) error
}

type loaderSource[T catalog.Entity] struct {
	loader *fetch.Loader[T]
	params func() fetch.Params
}

func (s loaderSource[T]) Name() string { return s.loader.Cache().Name() }

func (s loaderSource[T]) Refresh(ctx context.Context) error {
	var p fetch.Params
	if s.params != nil {
		p = s.params()
	}
	return s.loader.Load(ctx, p)
}

// LoaderSource polls a loader. params may be nil; it is evaluated on every
// refresh so the poller follows the current selection.
func LoaderSource[T catalog.Entity](l *fetch.Loader[T], params func() fetch.Params) Source {
	return loaderSource[T]{loader: l, params: params}
}

// Config holds everything Poll needs.
type Config struct {
	Sources     []Source
	Interval    time.Duration // defaults to one minute if <= 0
	Concurrency int           // defaults to 4 if <= 0
	Log         Logger        // optional; nil = no logging

	// OnSourceDone is called per source after each refresh (from worker
	// goroutines). Nil = no callback.
	OnSourceDone func(name string, err error)
}

// Result holds the outcome of one polling round.
type Result struct {
	Refreshed  []string
	Superseded []string
	// Stale lists sources whose refresh failed; their caches keep the
	// previous snapshot.
	Stale  []string
	Errors []error
}

// PollOnce refreshes every source concurrently. Failures are collected in
// the result, never returned: only a cancelled context aborts the round.
func PollOnce(ctx context.Context, cfg Config) (*Result, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	result := &Result{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, src := range cfg.Sources {
		src := src
		g.Go(func() error {
			err := src.Refresh(gctx)

			mu.Lock()
			switch {
			case err == nil:
				result.Refreshed = append(result.Refreshed, src.Name())
			case errors.Is(err, fetch.ErrSuperseded):
				result.Superseded = append(result.Superseded, src.Name())
			default:
				result.Stale = append(result.Stale, src.Name())
				result.Errors = append(result.Errors, err)
			}
			mu.Unlock()

			if err != nil && !errors.Is(err, fetch.ErrSuperseded) {
				log.Warnf("Refreshing %s failed: %v", src.Name(), err)
			} else if err == nil {
				log.Debugf("Refreshed %s", src.Name())
			}
			if cfg.OnSourceDone != nil {
				cfg.OnSourceDone(src.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// Poll refreshes all sources immediately and then every cfg.Interval until
// ctx is cancelled.
func Poll(ctx context.Context, cfg Config) error {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := PollOnce(ctx, cfg)
		if err != nil {
			return nil
		}
		if len(res.Stale) > 0 {
			log.Infof("Polling round done, %d refreshed, stale: %v", len(res.Refreshed), res.Stale)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
