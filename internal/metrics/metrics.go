// Package metrics holds the Prometheus collectors for check-in outcomes and
// HTTP handling. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CheckInsTotal         *prometheus.CounterVec
	CheckInDuration       prometheus.Histogram
	DashboardQueriesTotal prometheus.Counter
	RegistrationsTotal    prometheus.Counter
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them when reg is non-nil
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CheckInsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkin_outcomes_total",
				Help: "Total number of check-in attempts by outcome",
			},
			[]string{"outcome"},
		),
		CheckInDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "checkin_duration_seconds",
				Help:    "Duration of check-in processing",
				Buckets: prometheus.DefBuckets,
			},
		),
		DashboardQueriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dashboard_queries_total",
				Help: "Total number of dashboard aggregations",
			},
		),
		RegistrationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrations_total",
				Help: "Total number of registered identities",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.CheckInsTotal,
			m.CheckInDuration,
			m.DashboardQueriesTotal,
			m.RegistrationsTotal,
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
		)
	}
	return m
}

func (m *Metrics) ObserveCheckIn(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.CheckInsTotal.WithLabelValues(outcome).Inc()
	m.CheckInDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveDashboardQuery() {
	if m == nil {
		return
	}
	m.DashboardQueriesTotal.Inc()
}

func (m *Metrics) ObserveRegistration() {
	if m == nil {
		return
	}
	m.RegistrationsTotal.Inc()
}

// Instrument records request counts and latency per route
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		startTime := time.Now()
		c.Next()

		handlerName := c.FullPath()
		if handlerName == "" {
			handlerName = "unmatched"
		}
		m.HTTPRequestDuration.WithLabelValues(handlerName, c.Request.Method).Observe(time.Since(startTime).Seconds())
		m.HTTPRequestsTotal.WithLabelValues(handlerName, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
