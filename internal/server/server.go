// Package server exposes the document store as the JSON API the engine
// fetches from.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/sw33tLie/riderpoint/internal/utils"
	"github.com/sw33tLie/riderpoint/pkg/metrics"
	"github.com/sw33tLie/riderpoint/pkg/storage"
)

type Server struct {
	DB       *storage.DB
	Username string
	Password string

	log     *logrus.Entry
	metrics *metrics.Metrics
	router  chi.Router
}

// Option customizes a Server.
type Option func(*Server)

// WithBasicAuth protects all write endpoints.
func WithBasicAuth(user, pass string) Option {
	return func(s *Server) {
		s.Username = user
		s.Password = pass
	}
}

// WithMetrics counts requests and votes and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func New(db *storage.DB, opts ...Option) *Server {
	s := &Server{
		DB:  db,
		log: utils.Log.WithField("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Access-Control-Allow-Origin", "*"))

		r.Get("/tours", s.handleTours)
		r.Get("/tours/{id}", s.handleTour)
		r.Get("/forum", s.handleForum)
		r.Get("/threads", s.handleThreads)
		r.Get("/threads/{id}", s.handleThread)
		r.Get("/posts", s.handlePosts)
		r.Get("/stats", s.handleStats)
		r.Get("/changes", s.handleChanges)

		r.Group(func(r chi.Router) {
			r.Use(s.basicAuth)
			r.Post("/tours", s.handleCreateTour)
			r.Post("/tours/update-route", s.handleUpdateRoute)
			r.Post("/vote", s.handleVote)
			r.Post("/forum", s.handleCreateCategory)
			r.Post("/forum/category", s.handleAddTopic)
			r.Post("/threads", s.handleCreateThread)
			r.Post("/reply", s.handleReply)
			r.Post("/user-sync", s.handleUserSync)
			r.Post("/posts", s.handleCreatePost)
		})
	})
	return r
}

// ServeHTTP makes the server usable as a plain http.Handler, e.g. in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Infof("Starting API server on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.RecordRequest(route, status)
		}
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"route":    route,
			"status":   status,
			"duration": time.Since(start),
		}).Debug("request")
	})
}
