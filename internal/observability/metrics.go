// Package observability holds the Prometheus collectors and the OpenTelemetry tracer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// TransactionRollbacks counts write groups that were rolled back, by operation.
	TransactionRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_transaction_rollbacks_total",
		Help: "Total number of rolled back write transactions",
	}, []string{"operation"})

	// ImageCompensations counts best-effort deletes of images whose owning write failed.
	ImageCompensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_image_compensations_total",
		Help: "Images deleted after a failed two-phase write, by outcome",
	}, []string{"operation", "outcome"})

	// SearchQueries counts search requests by kind (posts, users) and the tier that answered.
	SearchQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_search_queries_total",
		Help: "Total search queries by kind and answering tier",
	}, []string{"kind", "tier"})

	// AvatarFetches counts external profile image fetches by outcome.
	AvatarFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_avatar_fetches_total",
		Help: "External profile image fetches by outcome",
	}, []string{"outcome"})

	// NotificationsCreated counts notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_notifications_created_total",
		Help: "Notifications created by type",
	}, []string{"type"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

const queryStartKey = "inkwell:query_start"

// DatabaseMetrics records query latency through GORM callbacks.
type DatabaseMetrics struct{}

// Name implements gorm.Plugin.
func (DatabaseMetrics) Name() string { return "inkwell:metrics" }

// Initialize implements gorm.Plugin.
func (m DatabaseMetrics) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	register := []struct {
		operation string
		before    func(name string, fn func(*gorm.DB)) error
		after     func(name string, fn func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
	}

	for _, r := range register {
		if err := r.before("inkwell:metrics_before_"+r.operation, startTimer); err != nil {
			return err
		}
		if err := r.after("inkwell:metrics_after_"+r.operation, observe(r.operation)); err != nil {
			return err
		}
	}
	return nil
}

func startTimer(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
