package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"ZonePulse/internal/detect"
	"ZonePulse/internal/domain/models"
	"ZonePulse/internal/domain/repository"
	zonerepo "ZonePulse/internal/repository"
	"ZonePulse/internal/zone"
	"ZonePulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordCandle(string, string)               {}
func (nopMetrics) RecordZone(string, string, string)         {}
func (nopMetrics) RecordNotification(string, string)         {}
func (nopMetrics) RecordError(string)                        {}
func (nopMetrics) RecordReconnect(string, string)            {}
func (nopMetrics) RecordSessionState(string, string, float64) {}
func (nopMetrics) RecordLatency(string, float64)             {}

type fakeStream struct {
	events chan *models.KlineEvent
	errs   chan error
}

func (s *fakeStream) Connect(context.Context) error { return nil }
func (s *fakeStream) Read(context.Context) (<-chan *models.KlineEvent, <-chan error) {
	return s.events, s.errs
}
func (s *fakeStream) Close() error      { return nil }
func (s *fakeStream) IsConnected() bool { return true }

type fakeFeed struct {
	validateErr error
	historical  []models.Candle
	stream      *fakeStream
}

func (f *fakeFeed) ValidateSymbol(context.Context, string) error { return f.validateErr }
func (f *fakeFeed) FetchHistorical(context.Context, string, repository.Timeframe, int) ([]models.Candle, error) {
	return f.historical, nil
}
func (f *fakeFeed) OpenStream(string, repository.Timeframe) repository.KlineStream {
	return f.stream
}

type notifySink struct {
	mu     sync.Mutex
	events []*models.ZoneEvent
}

func (n *notifySink) notify(_ context.Context, e *models.ZoneEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *notifySink) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func detectConfig() detect.Config {
	return detect.Config{
		ATRPeriod:            14,
		BodyMinRatio:         0.5,
		WickMaxRatio:         0.3,
		Lookahead:            10,
		ImpulseMinDirCandles: 6,
		ImpulseMinNetMove:    1.5,
		VolumeMeanWindow:     20,
		MaxTouches:           5,
		Weights:              detect.Weights{Body: 0.25, Impulse: 0.30, Touch: 0.20, Volume: 0.15, Sweep: 0.10},
	}
}

func newTestSession(t *testing.T, feed repository.MarketFeed, dedup repository.DedupStore, notify NotifyFunc) *Session {
	t.Helper()
	dcfg := detectConfig()
	return New(
		Config{
			BufferCapacity:   500,
			PreloadLimit:     200,
			GapRepreloadBars: 3,
			Backoff:          Backoff{Base: time.Millisecond, Max: 10 * time.Millisecond},
		},
		"BTCUSDT", repository.TF15m,
		feed,
		detect.NewDetector(dcfg, "BTCUSDT", "15m"),
		zone.NewManager(zone.Config{MergeThreshold: 0.5, ExpiryBars: 100, MaxTouches: 5, Weights: dcfg.Weights}),
		dedup,
		notify,
		testLogger(t),
		nopMetrics{},
	)
}

// scenarioCandles yields 25 candles that confirm exactly one bullish
// zone [94,100] at formation index 14.
func scenarioCandles() []models.Candle {
	base := time.Unix(1_700_000_000, 0).UTC()
	step := 15 * time.Minute
	var out []models.Candle
	for i := 0; i < 14; i++ {
		out = append(out, models.Candle{
			OpenTime: base.Add(time.Duration(i) * step),
			Open:     100, High: 105, Low: 95, Close: 100,
			Volume: 1000, Closed: true,
		})
	}
	out = append(out, models.Candle{
		OpenTime: base.Add(14 * step),
		Open:     100, High: 100.5, Low: 93, Close: 94,
		Volume: 1500, Closed: true,
	})
	prev := 94.0
	for i := 0; i < 10; i++ {
		next := prev + 1.6
		out = append(out, models.Candle{
			OpenTime: base.Add(time.Duration(15+i) * step),
			Open:     prev, High: next + 0.2, Low: prev - 0.2, Close: next,
			Volume: 1000, Closed: true,
		})
		prev = next
	}
	return out
}

func TestRunSkipsInvalidSymbol(t *testing.T) {
	feed := &fakeFeed{validateErr: repository.ErrInvalidSymbol}
	s := newTestSession(t, feed, zonerepo.NewMemoryDedup(), nil)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("skip must not be an error: %v", err)
	}
	if s.State() != StateSkipped {
		t.Errorf("expected skipped state, got %s", s.State())
	}
}

func TestStreamingNotifiesNewZoneOnce(t *testing.T) {
	sink := &notifySink{}
	s := newTestSession(t, &fakeFeed{}, zonerepo.NewMemoryDedup(), sink.notify)

	candles := scenarioCandles()
	for _, c := range candles {
		s.processCandle(context.Background(), c, false)
	}
	if sink.count() != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", sink.count())
	}
	e := sink.events[0]
	if e.Zone.PriceLow != 94 || e.Zone.PriceHigh != 100 {
		t.Errorf("unexpected zone bounds [%v, %v]", e.Zone.PriceLow, e.Zone.PriceHigh)
	}
	if e.Symbol != "BTCUSDT" || e.Timeframe != "15m" {
		t.Errorf("unexpected event context %s/%s", e.Symbol, e.Timeframe)
	}
}

// Replaying a candle with an already-seen open time is a no-op: no
// duplicate buffer entry, no duplicate notification.
func TestDuplicateOpenTimeDropped(t *testing.T) {
	sink := &notifySink{}
	s := newTestSession(t, &fakeFeed{}, zonerepo.NewMemoryDedup(), sink.notify)

	candles := scenarioCandles()
	for _, c := range candles {
		s.processCandle(context.Background(), c, false)
	}
	before := s.buf.Len()

	last := candles[len(candles)-1]
	s.processCandle(context.Background(), last, false)

	if s.buf.Len() != before {
		t.Error("duplicate candle must not enter the buffer")
	}
	if sink.count() != 1 {
		t.Errorf("expected 1 notification after replay, got %d", sink.count())
	}
}

func TestMalformedCandleDropped(t *testing.T) {
	s := newTestSession(t, &fakeFeed{}, zonerepo.NewMemoryDedup(), nil)

	s.processCandle(context.Background(), models.Candle{
		OpenTime: time.Unix(1_700_000_000, 0),
		Open:     -1, High: 2, Low: 1, Close: 1.5, Closed: true,
	}, false)
	s.processCandle(context.Background(), models.Candle{
		OpenTime: time.Unix(1_700_001_000, 0),
		Open:     2, High: 1, Low: 3, Close: 2, Closed: true,
	}, false)

	if s.buf.Len() != 0 {
		t.Errorf("malformed candles must be dropped, buffer has %d", s.buf.Len())
	}
}

// Preload records zones as seen without notifying, so a later live
// confirmation of the same zone stays silent.
func TestPreloadSuppressionAndDedup(t *testing.T) {
	dedup := zonerepo.NewMemoryDedup()
	sink := &notifySink{}
	s := newTestSession(t, &fakeFeed{}, dedup, sink.notify)

	for _, c := range scenarioCandles() {
		s.processCandle(context.Background(), c, true)
	}
	if sink.count() != 0 {
		t.Fatalf("preload must suppress notifications, got %d", sink.count())
	}
	if dedup.Len() != 1 {
		t.Fatalf("preload must record zones as seen, got %d keys", dedup.Len())
	}

	// Restart: a fresh session over the same dedup store replays the
	// same history live.
	s2 := newTestSession(t, &fakeFeed{}, dedup, sink.notify)
	for _, c := range scenarioCandles() {
		s2.processCandle(context.Background(), c, false)
	}
	if sink.count() != 0 {
		t.Errorf("zone recorded as seen must never be re-notified, got %d", sink.count())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	stream := &fakeStream{
		events: make(chan *models.KlineEvent),
		errs:   make(chan error),
	}
	feed := &fakeFeed{historical: scenarioCandles(), stream: stream}
	s := newTestSession(t, feed, zonerepo.NewMemoryDedup(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Let the session reach streaming, then stop it.
	deadline := time.After(2 * time.Second)
	for s.State() != StateStreaming {
		select {
		case <-deadline:
			t.Fatal("session never reached streaming")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop on cancel")
	}
	if s.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", s.State())
	}
	if len(s.Zones()) != 1 {
		t.Errorf("expected 1 preloaded zone, got %d", len(s.Zones()))
	}
}

// In-progress kline events must be ignored entirely.
func TestConsumeIgnoresOpenCandles(t *testing.T) {
	stream := &fakeStream{
		events: make(chan *models.KlineEvent, 2),
		errs:   make(chan error, 1),
	}
	s := newTestSession(t, &fakeFeed{stream: stream}, zonerepo.NewMemoryDedup(), nil)

	stream.events <- &models.KlineEvent{
		Symbol: "BTCUSDT", Timeframe: "15m",
		Candle: models.Candle{OpenTime: time.Unix(1_700_000_000, 0), Open: 100, High: 105, Low: 95, Close: 101, Closed: false},
	}
	stream.errs <- repository.ErrTransientFeed

	err := s.consume(context.Background(), stream.events, stream.errs)
	if err == nil {
		t.Fatal("consume must surface the stream error")
	}
	if s.buf.Len() != 0 {
		t.Errorf("open candle must not be buffered, got %d", s.buf.Len())
	}
}

type countingMetrics struct {
	nopMetrics
	mu      sync.Mutex
	latency int
}

func (m *countingMetrics) RecordLatency(string, float64) {
	m.mu.Lock()
	m.latency++
	m.mu.Unlock()
}

func TestProcessCandleRecordsLatency(t *testing.T) {
	m := &countingMetrics{}
	dcfg := detectConfig()
	s := New(
		Config{
			BufferCapacity: 500,
			PreloadLimit:   200,
			Backoff:        Backoff{Base: time.Millisecond, Max: 10 * time.Millisecond},
		},
		"BTCUSDT", repository.TF15m,
		&fakeFeed{},
		detect.NewDetector(dcfg, "BTCUSDT", "15m"),
		zone.NewManager(zone.Config{MergeThreshold: 0.5, ExpiryBars: 100, MaxTouches: 5, Weights: dcfg.Weights}),
		zonerepo.NewMemoryDedup(),
		nil,
		testLogger(t),
		m,
	)

	candles := scenarioCandles()
	for _, c := range candles {
		s.processCandle(context.Background(), c, false)
	}
	if m.latency != len(candles) {
		t.Fatalf("expected %d latency observations, got %d", len(candles), m.latency)
	}
}
