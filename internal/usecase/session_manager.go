package usecase

import (
	"context"
	"fmt"
	"sync"

	"ZonePulse/internal/detect"
	"ZonePulse/internal/domain/models"
	domrepo "ZonePulse/internal/domain/repository"
	"ZonePulse/internal/session"
	"ZonePulse/internal/zone"
	"ZonePulse/pkg/logger"
)

// SessionManager owns one live session per (symbol, timeframe) pair.
// Sessions run as independent workers sharing only the dedup store and
// the notifier; one pair's failure never stops the others.
type SessionManager struct {
	sessionCfg session.Config
	detectCfg  detect.Config
	zoneCfg    zone.Config

	feed     domrepo.MarketFeed
	dedup    domrepo.DedupStore
	notifier *ZoneNotifier
	log      *logger.Logger
	metrics  domrepo.Metrics

	mu       sync.RWMutex
	sessions map[string]*session.Session
	wg       sync.WaitGroup
}

func NewSessionManager(
	sessionCfg session.Config,
	detectCfg detect.Config,
	zoneCfg zone.Config,
	feed domrepo.MarketFeed,
	dedup domrepo.DedupStore,
	notifier *ZoneNotifier,
	log *logger.Logger,
	metrics domrepo.Metrics,
) *SessionManager {
	return &SessionManager{
		sessionCfg: sessionCfg,
		detectCfg:  detectCfg,
		zoneCfg:    zoneCfg,
		feed:       feed,
		dedup:      dedup,
		notifier:   notifier,
		log:        log,
		metrics:    metrics,
		sessions:   make(map[string]*session.Session),
	}
}

func pairKey(symbol string, tf domrepo.Timeframe) string {
	return symbol + ":" + string(tf)
}

// Start launches a session worker for every symbol/timeframe pair and
// returns immediately. Workers stop when ctx is cancelled.
func (m *SessionManager) Start(ctx context.Context, symbols []string, timeframes []domrepo.Timeframe) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, symbol := range symbols {
		for _, tf := range timeframes {
			if !domrepo.IsValidTimeframe(tf) {
				return fmt.Errorf("%w: unknown timeframe %q", domrepo.ErrConfiguration, tf)
			}
			key := pairKey(symbol, tf)
			if _, exists := m.sessions[key]; exists {
				continue
			}

			s := session.New(
				m.sessionCfg,
				symbol, tf,
				m.feed,
				detect.NewDetector(m.detectCfg, symbol, string(tf)),
				zone.NewManager(m.zoneCfg),
				m.dedup,
				m.notifier.Notify,
				m.log,
				m.metrics,
			)
			m.sessions[key] = s

			m.wg.Add(1)
			go func(key string, s *session.Session) {
				defer m.wg.Done()
				if err := s.Run(ctx); err != nil {
					m.log.Error("session terminated",
						logger.String("pair", key), logger.Error(err))
				}
			}(key, s)

			m.log.Info("session started",
				logger.String("symbol", symbol),
				logger.String("timeframe", string(tf)))
		}
	}
	return nil
}

// Wait blocks until every session worker has exited.
func (m *SessionManager) Wait() {
	m.wg.Wait()
}

// ZonesParams selects zones for the API layer.
type ZonesParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
}

// ActiveZones returns the active zones for one pair, or for every
// timeframe of the symbol when the timeframe is empty.
func (m *SessionManager) ActiveZones(p ZonesParams) ([]models.Zone, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Zone
	for key, s := range m.sessions {
		if !matchPair(key, p) {
			continue
		}
		out = append(out, s.Zones()...)
	}
	return out, nil
}

// ZoneHistory returns terminal zones for one pair, newest first.
func (m *SessionManager) ZoneHistory(p ZonesParams, limit int) ([]models.Zone, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Zone
	for key, s := range m.sessions {
		if !matchPair(key, p) {
			continue
		}
		out = append(out, s.History(limit)...)
	}
	return out, nil
}

// States reports the lifecycle phase of every session, keyed by pair.
func (m *SessionManager) States() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.sessions))
	for key, s := range m.sessions {
		out[key] = s.State().String()
	}
	return out
}

func matchPair(key string, p ZonesParams) bool {
	if p.Timeframe != "" {
		return key == pairKey(p.Symbol, p.Timeframe)
	}
	return len(key) > len(p.Symbol) && key[:len(p.Symbol)+1] == p.Symbol+":"
}
