package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"ZonePulse/internal/detect"
	"ZonePulse/internal/domain/models"
	"ZonePulse/internal/domain/repository"
	"ZonePulse/internal/zone"
	"ZonePulse/pkg/logger"
)

// State is the lifecycle phase of a live session.
type State int32

const (
	StateValidating State = iota
	StatePreloading
	StateStreaming
	StateReconnecting
	StateStopped
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StatePreloading:
		return "preloading"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Config holds per-session tunables.
type Config struct {
	BufferCapacity   int
	PreloadLimit     int
	NotifyOnPreload  bool
	GapRepreloadBars int
	Backoff          Backoff
}

// NotifyFunc receives every newly confirmed, non-suppressed zone, in
// confirmation order within this session. Delivery failures are the
// receiver's concern.
type NotifyFunc func(ctx context.Context, e *models.ZoneEvent)

// Session drives detection for one symbol/timeframe pair. All candle
// state (buffer, detector, zone set) is private to the session; the
// only shared collaborator is the dedup store, which serializes its own
// writes.
type Session struct {
	cfg       Config
	symbol    string
	timeframe repository.Timeframe

	feed     repository.MarketFeed
	detector *detect.Detector
	zones    *zone.Manager
	dedup    repository.DedupStore
	notify   NotifyFunc
	log      *logger.Logger
	metrics  repository.Metrics

	buf          *Buffer
	state        atomic.Int32
	lastOpenTime time.Time
}

func New(
	cfg Config,
	symbol string,
	tf repository.Timeframe,
	feed repository.MarketFeed,
	detector *detect.Detector,
	zones *zone.Manager,
	dedup repository.DedupStore,
	notify NotifyFunc,
	log *logger.Logger,
	metrics repository.Metrics,
) *Session {
	return &Session{
		cfg:       cfg,
		symbol:    symbol,
		timeframe: tf,
		feed:      feed,
		detector:  detector,
		zones:     zones,
		dedup:     dedup,
		notify:    notify,
		log:       log,
		metrics:   metrics,
		buf:       NewBuffer(cfg.BufferCapacity),
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Zones returns a snapshot of the session's active zones.
func (s *Session) Zones() []models.Zone {
	return s.zones.Active()
}

// History returns the session's terminal zones, newest first.
func (s *Session) History(limit int) []models.Zone {
	return s.zones.History(limit)
}

// Run executes the session until ctx is cancelled. It returns nil on
// clean shutdown or skip; per-session failures never propagate to
// sibling sessions.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.dedup.Flush(flushCtx); err != nil {
			s.log.Warn("dedup flush on shutdown failed",
				logger.String("symbol", s.symbol), logger.Error(err))
		}
	}()

	s.setState(StateValidating)
	if err := s.validate(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		s.setState(StateSkipped)
		s.log.Warn("session skipped",
			logger.String("symbol", s.symbol),
			logger.String("timeframe", string(s.timeframe)),
			logger.Error(err))
		return nil
	}

	s.setState(StatePreloading)
	if err := s.preload(ctx, s.cfg.PreloadLimit); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		// Preload failure is not fatal: streaming can still seed the
		// buffer, it just starts cold.
		s.log.Warn("historical preload failed, starting cold",
			logger.String("symbol", s.symbol), logger.Error(err))
	}

	s.stream(ctx)
	s.setState(StateStopped)
	return nil
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.RecordSessionState(s.symbol, string(s.timeframe), float64(st))
}

// validate confirms the symbol is tradable. Transient feed errors are
// retried a few times; a permanently unknown symbol skips the session.
func (s *Session) validate(ctx context.Context) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.feed.ValidateSymbol(ctx, s.symbol)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrInvalidSymbol) || ctx.Err() != nil {
			return err
		}
		if !sleep(ctx, s.cfg.Backoff.Delay(attempt)) {
			return ctx.Err()
		}
	}
	return err
}

// preload seeds the buffer and zone set from historical candles. Zones
// found here are recorded as seen; notification is gated by the
// NotifyOnPreload flag so restarts do not replay old signals.
func (s *Session) preload(ctx context.Context, limit int) error {
	if limit <= 0 {
		return nil
	}
	candles, err := s.feed.FetchHistorical(ctx, s.symbol, s.timeframe, limit)
	if err != nil {
		return err
	}
	for _, c := range candles {
		s.processCandle(ctx, c, !s.cfg.NotifyOnPreload)
	}
	s.log.Info("preload complete",
		logger.String("symbol", s.symbol),
		logger.String("timeframe", string(s.timeframe)),
		logger.Int("candles", len(candles)),
		logger.Int("zones", len(s.zones.Active())))
	return nil
}

// stream consumes live kline events, reconnecting with backoff on any
// transport failure, until ctx is cancelled.
func (s *Session) stream(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if attempt > 0 {
			s.setState(StateReconnecting)
			s.metrics.RecordReconnect(s.symbol, string(s.timeframe))
			delay := s.cfg.Backoff.Delay(attempt - 1)
			s.log.Info("reconnecting",
				logger.String("symbol", s.symbol),
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay))
			if !sleep(ctx, delay) {
				return
			}
		}

		stream := s.feed.OpenStream(s.symbol, s.timeframe)
		if err := stream.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.metrics.RecordError("stream_connect")
			s.log.Warn("stream connect failed",
				logger.String("symbol", s.symbol), logger.Error(err))
			attempt++
			continue
		}

		// Back streaming: fill any gap opened while disconnected.
		if gap := s.gapBars(); gap > s.cfg.GapRepreloadBars {
			s.setState(StatePreloading)
			limit := gap
			if limit > s.cfg.PreloadLimit {
				limit = s.cfg.PreloadLimit
			}
			if err := s.preload(ctx, limit); err != nil && ctx.Err() == nil {
				s.log.Warn("gap repreload failed",
					logger.String("symbol", s.symbol), logger.Error(err))
			}
		}

		s.setState(StateStreaming)
		attempt = 0

		events, errs := stream.Read(ctx)
		err := s.consume(ctx, events, errs)
		_ = stream.Close()
		if ctx.Err() != nil {
			return
		}
		s.metrics.RecordError("stream_read")
		s.log.Warn("stream interrupted",
			logger.String("symbol", s.symbol), logger.Error(err))
		attempt++
	}
}

// consume processes events until the stream fails or ctx is cancelled.
func (s *Session) consume(ctx context.Context, events <-chan *models.KlineEvent, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return repository.ErrTransientFeed
			}
			return err
		case ev, ok := <-events:
			if !ok {
				return repository.ErrTransientFeed
			}
			if !ev.Candle.Closed {
				continue
			}
			s.processCandle(ctx, ev.Candle, false)
		}
	}
}

// gapBars reports how many candle intervals have elapsed since the last
// processed candle; zero when the buffer is empty.
func (s *Session) gapBars() int {
	if s.lastOpenTime.IsZero() {
		return 0
	}
	elapsed := time.Since(s.lastOpenTime)
	return int(elapsed / s.timeframe.Duration())
}

// processCandle runs the full pipeline for one closed candle. Malformed
// candles (non-positive prices, inverted range, stale open time) are
// dropped and reported, never fatal.
func (s *Session) processCandle(ctx context.Context, c models.Candle, suppress bool) {
	start := time.Now()
	defer func() {
		s.metrics.RecordLatency("process_candle", time.Since(start).Seconds())
	}()

	if err := s.checkCandle(c); err != nil {
		s.metrics.RecordError("malformed_candle")
		s.log.Warn("dropping candle",
			logger.String("symbol", s.symbol),
			logger.Any("open_time", c.OpenTime),
			logger.Error(err))
		return
	}
	s.lastOpenTime = c.OpenTime

	idx := s.buf.Append(c)
	s.metrics.RecordCandle(s.symbol, string(s.timeframe))

	s.zones.Touch(idx, c)
	s.zones.Expire(idx)

	for _, z := range s.detector.Observe(s.buf, idx, c) {
		active, fresh := s.zones.Admit(z)
		if !fresh {
			continue
		}
		s.metrics.RecordZone(s.symbol, string(s.timeframe), string(active.Type))

		key := active.Key()
		if s.dedup.Contains(key) {
			continue
		}
		// Record before notifying: a zone recorded as seen is never
		// re-notified, even when the first delivery fails downstream.
		if err := s.dedup.Record(ctx, key); err != nil {
			s.metrics.RecordError("dedup_record")
			s.log.Warn("dedup record failed, continuing with degraded store",
				logger.String("key", key), logger.Error(err))
		}
		if suppress || s.notify == nil {
			continue
		}
		snapshot := *active
		s.notify(ctx, &models.ZoneEvent{
			Zone:       snapshot,
			Symbol:     s.symbol,
			Timeframe:  string(s.timeframe),
			DetectedAt: time.Now().UTC(),
		})
	}
}

func (s *Session) checkCandle(c models.Candle) error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return repository.ErrMalformedCandle
	}
	if c.High < c.Low {
		return repository.ErrMalformedCandle
	}
	if !s.lastOpenTime.IsZero() && !c.OpenTime.After(s.lastOpenTime) {
		return repository.ErrMalformedCandle
	}
	return nil
}

// sleep waits for d or until ctx is cancelled; returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
