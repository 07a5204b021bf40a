// Package metrics declares the Prometheus collectors of the service.  They
// register with the default registry and are served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values.
const (
	ResultCompleted         = "completed"
	ResultNotFound          = "not_found"
	ResultInsufficientFunds = "insufficient_funds"
	ResultRejected          = "rejected"
	ResultError             = "error"

	AuthorUser  = "user"
	AuthorAdmin = "admin"
)

// HTTP
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests being served",
		},
	)
)

// Marketplace
var (
	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_purchases_total",
			Help: "Purchase attempts by outcome",
		},
		[]string{"result"},
	)

	ListingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_listings_total",
			Help: "Entries put up for sale, including re-listings",
		},
	)
)

// Tickets
var (
	TicketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_messages_total",
			Help: "Ticket messages posted by author kind",
		},
		[]string{"author"},
	)

	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_subscribers",
			Help: "Open live ticket subscriptions",
		},
	)
)
