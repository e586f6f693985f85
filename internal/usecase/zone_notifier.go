package usecase

import (
	"context"

	"ZonePulse/internal/domain/models"
	domrepo "ZonePulse/internal/domain/repository"
	"ZonePulse/internal/service/ratelimit"
	"ZonePulse/pkg/logger"
)

// ZoneNotifier fans confirmed zone events out to every registered
// dispatcher. Events below the score floor or over the per-pair rate
// budget are dropped; delivery failures are logged per dispatcher and
// never retried, so dedup recording upstream stays authoritative.
type ZoneNotifier struct {
	dispatchers []domrepo.Dispatcher
	limiter     *ratelimit.Limiter
	scoreMin    float64
	log         *logger.Logger
	metrics     domrepo.Metrics
}

func NewZoneNotifier(
	dispatchers []domrepo.Dispatcher,
	limiter *ratelimit.Limiter,
	scoreMin float64,
	log *logger.Logger,
	metrics domrepo.Metrics,
) *ZoneNotifier {
	return &ZoneNotifier{
		dispatchers: dispatchers,
		limiter:     limiter,
		scoreMin:    scoreMin,
		log:         log,
		metrics:     metrics,
	}
}

// Notify implements session.NotifyFunc.
func (n *ZoneNotifier) Notify(ctx context.Context, e *models.ZoneEvent) {
	if e.Zone.Score < n.scoreMin {
		n.log.Debug("zone below score floor",
			logger.String("key", e.Zone.Key()),
			logger.Float64("score", e.Zone.Score))
		return
	}
	if n.limiter != nil && !n.limiter.Allow(e.Symbol+":"+e.Timeframe) {
		n.metrics.RecordError("notify_rate_limited")
		n.log.Warn("notification rate limit hit",
			logger.String("symbol", e.Symbol),
			logger.String("timeframe", e.Timeframe))
		return
	}

	for _, d := range n.dispatchers {
		if err := d.Dispatch(ctx, e); err != nil {
			n.metrics.RecordError("dispatch_" + d.Name())
			n.log.Error("zone dispatch failed",
				logger.String("dispatcher", d.Name()),
				logger.String("key", e.Zone.Key()),
				logger.Error(err))
			continue
		}
		n.metrics.RecordNotification(d.Name(), e.Symbol)
	}
}
