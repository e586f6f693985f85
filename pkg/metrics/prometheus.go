package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candlesTotal       *prometheus.CounterVec
	zonesTotal         *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	reconnectsTotal    *prometheus.CounterVec
	sessionState       *prometheus.GaugeVec
	latency            *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		candlesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonepulse_candles_total",
				Help: "Total number of closed candles processed",
			},
			[]string{"symbol", "timeframe"},
		),
		zonesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonepulse_zones_total",
				Help: "Total number of zones detected",
			},
			[]string{"symbol", "timeframe", "type"},
		),
		notificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonepulse_notifications_total",
				Help: "Total number of zone notifications dispatched",
			},
			[]string{"channel", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonepulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		reconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonepulse_reconnects_total",
				Help: "Total number of stream reconnect attempts",
			},
			[]string{"symbol", "timeframe"},
		),
		sessionState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zonepulse_session_state",
				Help: "Current session state as a numeric code",
			},
			[]string{"symbol", "timeframe"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zonepulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCandle records a processed closed candle.
func (r *Recorder) RecordCandle(symbol, timeframe string) {
	r.candlesTotal.WithLabelValues(symbol, timeframe).Inc()
}

// RecordZone records a detected zone.
func (r *Recorder) RecordZone(symbol, timeframe, zoneType string) {
	r.zonesTotal.WithLabelValues(symbol, timeframe, zoneType).Inc()
}

// RecordNotification records a dispatched zone notification.
func (r *Recorder) RecordNotification(channel, symbol string) {
	r.notificationsTotal.WithLabelValues(channel, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordReconnect records a stream reconnect attempt.
func (r *Recorder) RecordReconnect(symbol, timeframe string) {
	r.reconnectsTotal.WithLabelValues(symbol, timeframe).Inc()
}

// RecordSessionState records the current session state code.
func (r *Recorder) RecordSessionState(symbol, timeframe string, state float64) {
	r.sessionState.WithLabelValues(symbol, timeframe).Set(state)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
