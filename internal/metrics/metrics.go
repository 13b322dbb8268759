// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	listFetches  *prometheus.CounterVec
	uploads      *prometheus.CounterVec
	authAttempts *prometheus.CounterVec
	clients      prometheus.Gauge
}

// NewCollector registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cacoblog_http_requests_total",
			Help: "Количество HTTP запросов по маршруту, методу и статусу",
		}, []string{"route", "method", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cacoblog_http_request_duration_seconds",
			Help:    "Длительность обработки HTTP запросов (сек)",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		listFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cacoblog_list_fetch_total",
			Help: "Загрузки страниц списков по результату (ok, error, stale)",
		}, []string{"list", "outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cacoblog_image_upload_total",
			Help: "Загрузки изображений по результату",
		}, []string{"kind", "outcome"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cacoblog_auth_attempts_total",
			Help: "Попытки входа и регистрации",
		}, []string{"mode", "outcome"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cacoblog_active_clients",
			Help: "Количество клиентов посетителей в кэше",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.listFetches,
		c.uploads,
		c.authAttempts,
		c.clients,
	)

	return c
}

func (c *Collector) RecordHTTPRequest(route, method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (c *Collector) ObserveFetch(list, outcome string) {
	c.listFetches.WithLabelValues(list, outcome).Inc()
}

func (c *Collector) ObserveUpload(kind, outcome string) {
	c.uploads.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) RecordAuthAttempt(mode, outcome string) {
	c.authAttempts.WithLabelValues(mode, outcome).Inc()
}

func (c *Collector) SetActiveClients(n int) {
	c.clients.Set(float64(n))
}

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
