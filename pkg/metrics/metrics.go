// Package metrics exports engine and API activity to prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sw33tLie/riderpoint/pkg/fetch"
)

const namespace = "riderpoint"

// Metrics holds the collectors of one process. It implements fetch.Observer.
type Metrics struct {
	registry *prometheus.Registry

	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec
	Discarded     *prometheus.CounterVec
	CacheItems    *prometheus.GaugeVec
	Votes         *prometheus.CounterVec
	Requests      *prometheus.CounterVec
}

var _ fetch.Observer = (*Metrics)(nil)

// New creates the collectors and registers them on a private registry,
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "duration_seconds",
				Help:      "Collection fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"collection", "status"},
		),

		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "errors_total",
				Help:      "Total number of failed collection fetches",
			},
			[]string{"collection"},
		),

		Discarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "superseded_total",
				Help:      "Fetch results discarded because a newer request was issued",
			},
			[]string{"collection"},
		),

		CacheItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "items",
				Help:      "Items in the collection cache after the last applied fetch",
			},
			[]string{"collection"},
		),

		Votes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tours",
				Name:      "votes_total",
				Help:      "Tour votes by value",
			},
			[]string{"rating"},
		),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "API requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FetchDuration, m.FetchErrors, m.Discarded, m.CacheItems, m.Votes, m.Requests,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// FetchDone records one fetch outcome.
func (m *Metrics) FetchDone(collection string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, fetch.ErrSuperseded) {
			status = "superseded"
		} else {
			m.FetchErrors.WithLabelValues(collection).Inc()
		}
	}
	m.FetchDuration.WithLabelValues(collection, status).Observe(d.Seconds())
}

// Superseded counts a discarded fetch result.
func (m *Metrics) Superseded(collection string) {
	m.Discarded.WithLabelValues(collection).Inc()
}

// CacheSize records the size of a refreshed cache.
func (m *Metrics) CacheSize(collection string, n int) {
	m.CacheItems.WithLabelValues(collection).Set(float64(n))
}

// RecordVote counts an applied vote.
func (m *Metrics) RecordVote(rating int) {
	m.Votes.WithLabelValues(strconv.Itoa(rating)).Inc()
}

// RecordRequest counts an answered API request.
func (m *Metrics) RecordRequest(route string, code int) {
	m.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
