// Package fetch defines the collaborators the engine uses to reach the
// backend, and the Loader that moves fetched collections into a cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

// Params narrows a collection fetch, e.g. {"topic": "BMW"}.
type Params map[string]string

// Fetcher retrieves a whole collection.
type Fetcher[T catalog.Entity] interface {
	FetchCollection(ctx context.Context, name string, params Params) ([]T, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc[T catalog.Entity] func(ctx context.Context, name string, params Params) ([]T, error)

func (f FetcherFunc[T]) FetchCollection(ctx context.Context, name string, params Params) ([]T, error) {
	return f(ctx, name, params)
}

// Creator persists a new document and returns it as stored.
type Creator[T catalog.Entity] interface {
	CreateEntity(ctx context.Context, collection string, payload T) (T, error)
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc[T catalog.Entity] func(ctx context.Context, collection string, payload T) (T, error)

func (f CreatorFunc[T]) CreateEntity(ctx context.Context, collection string, payload T) (T, error) {
	return f(ctx, collection, payload)
}

// ErrSuperseded is returned for a response that arrived after a newer request
// for the same logical state was issued. Its result is discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// Error is a FetchFailure: the backend could not deliver a collection.
type Error struct {
	Collection string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Collection, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Logger abstracts logging so callers can plug logrus or anything with the
// same shape.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// NopLogger silently discards all messages.
type NopLogger struct{}

func (NopLogger) Infof(string, ...interface{})  {}
func (NopLogger) Warnf(string, ...interface{})  {}
func (NopLogger) Errorf(string, ...interface{}) {}
func (NopLogger) Debugf(string, ...interface{}) {}

// Observer receives fetch outcomes, e.g. to export metrics.
type Observer interface {
	FetchDone(collection string, d time.Duration, err error)
	Superseded(collection string)
	CacheSize(collection string, n int)
}

type nopObserver struct{}

func (nopObserver) FetchDone(string, time.Duration, error) {}
func (nopObserver) Superseded(string)                      {}
func (nopObserver) CacheSize(string, int)                  {}
