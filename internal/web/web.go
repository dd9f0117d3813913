// Package web is the server rendered UI. It composes the engine packages:
// the tour page binds a facet selector to list and map renderers, the forum
// pages drive a navigator and the feed reads the posts cache.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/sw33tLie/riderpoint/internal/utils"
	"github.com/sw33tLie/riderpoint/pkg/cache"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/facet"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
	"github.com/sw33tLie/riderpoint/pkg/forum"
	"github.com/sw33tLie/riderpoint/pkg/polling"
)

// Backend is what the UI reads from and writes to. Both *storage.DB and
// *client.Client satisfy it.
type Backend interface {
	forum.Source
	CreateTour(ctx context.Context, t catalog.Tour) (catalog.Tour, error)
	Vote(ctx context.Context, id string, vote int) (catalog.Tour, error)
	Posts(ctx context.Context) ([]catalog.Post, error)
	CreatePost(ctx context.Context, p catalog.Post) (catalog.Post, error)
}

// Config holds the UI settings.
type Config struct {
	Policy facet.Policy
	Locale language.Tag
	// Refresh is the background refresh interval; 0 disables it.
	Refresh time.Duration
	// Observer receives fetch outcomes, e.g. prometheus metrics.
	Observer fetch.Observer
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// App holds the caches shared by all requests.
type App struct {
	backend Backend
	cfg     Config
	log     utils.EngineLogger

	tours      *cache.Collection[catalog.Tour]
	categories *cache.Collection[catalog.Category]
	threads    *cache.Collection[catalog.Thread]
	posts      *cache.Collection[catalog.Post]

	tourLoader     *fetch.Loader[catalog.Tour]
	categoryLoader *fetch.Loader[catalog.Category]
	threadLoader   *fetch.Loader[catalog.Thread]
	postLoader     *fetch.Loader[catalog.Post]
}

// New wires the caches and loaders. tours fetches the tour collection; it is
// always asked for the whole collection so that every facet option stays
// reachable.
func New(backend Backend, tours fetch.Fetcher[catalog.Tour], cfg Config) *App {
	a := &App{
		backend:    backend,
		cfg:        cfg,
		log:        utils.NewEngineLogger("web"),
		tours:      cache.New[catalog.Tour](catalog.CollectionTours),
		categories: cache.New[catalog.Category](catalog.CollectionForum),
		threads:    cache.New[catalog.Thread](catalog.CollectionThreads),
		posts:      cache.New[catalog.Post](catalog.CollectionPosts),
	}
	if a.cfg.Policy == "" {
		a.cfg.Policy = facet.ShowPrompt
	}
	opts := []fetch.LoaderOption{fetch.WithLogger(a.log)}
	if cfg.Observer != nil {
		opts = append(opts, fetch.WithObserver(cfg.Observer))
	}

	a.tourLoader = fetch.NewLoader[catalog.Tour](a.tours, tours, opts...)
	a.categoryLoader = fetch.NewLoader[catalog.Category](a.categories,
		fetch.FetcherFunc[catalog.Category](func(ctx context.Context, _ string, _ fetch.Params) ([]catalog.Category, error) {
			return backend.Categories(ctx)
		}), opts...)
	a.threadLoader = fetch.NewLoader[catalog.Thread](a.threads,
		fetch.FetcherFunc[catalog.Thread](func(ctx context.Context, _ string, _ fetch.Params) ([]catalog.Thread, error) {
			return backend.Threads(ctx, "")
		}), opts...)
	a.postLoader = fetch.NewLoader[catalog.Post](a.posts,
		fetch.FetcherFunc[catalog.Post](func(ctx context.Context, _ string, _ fetch.Params) ([]catalog.Post, error) {
			return backend.Posts(ctx)
		}), opts...)
	return a
}

// Handler returns the UI routes.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLog)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/tours", http.StatusFound)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if a.cfg.Metrics != nil {
		r.Handle("/metrics", a.cfg.Metrics)
	}

	r.Get("/tours", a.toursHandler)
	r.Post("/tours", a.createTourHandler)
	r.Post("/tours/{id}/vote", a.voteHandler)

	r.Get("/forum", a.forumHandler)
	r.Get("/forum/*", a.forumHandler)
	r.Post("/forum/thread/{id}/reply", a.replyHandler)

	r.Get("/feed", a.feedHandler)
	r.Post("/feed", a.createPostHandler)
	return r
}

// Sources lists the caches kept fresh by Run.
func (a *App) Sources() []polling.Source {
	return []polling.Source{
		polling.LoaderSource(a.tourLoader, nil),
		polling.LoaderSource(a.categoryLoader, nil),
		polling.LoaderSource(a.threadLoader, nil),
		polling.LoaderSource(a.postLoader, nil),
	}
}

// Run refreshes the shared caches every cfg.Refresh until ctx is cancelled.
// A failed refresh keeps the previous snapshot; pages show it as stale.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Refresh <= 0 {
		<-ctx.Done()
		return nil
	}
	return polling.Poll(ctx, polling.Config{
		Sources:  a.Sources(),
		Interval: a.cfg.Refresh,
		Log:      a.log,
	})
}

// Serve runs the UI on addr, refreshing caches in the background, until ctx
// is cancelled.
func (a *App) Serve(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: a.Handler(), ReadTimeout: readTimeout, WriteTimeout: writeTimeout}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		a.log.Infof("Starting web server on %s", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		return srv.Shutdown(shutdownCtx)
	}
}

// ensure loads a collection while its cache is empty, so the first page
// does not wait for the background refresh.
func ensure[T catalog.Entity](ctx context.Context, l *fetch.Loader[T]) {
	if l.Cache().IsEmpty() {
		l.Load(ctx, nil)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func (a *App) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
			"htmx":     isHTMX(r),
		}).Debug("request")
	})
}
