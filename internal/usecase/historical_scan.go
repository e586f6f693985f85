package usecase

import (
	"context"
	"fmt"

	"ZonePulse/internal/detect"
	"ZonePulse/internal/domain/models"
	domrepo "ZonePulse/internal/domain/repository"
	"ZonePulse/internal/zone"
	"ZonePulse/pkg/logger"
)

// HistoricalScan runs the detector once over a fetched candle window and
// returns every zone it produced, without touching live session state or
// the dedup store.
type HistoricalScan struct {
	detectCfg detect.Config
	zoneCfg   zone.Config
	feed      domrepo.MarketFeed
	log       *logger.Logger
}

func NewHistoricalScan(
	detectCfg detect.Config,
	zoneCfg zone.Config,
	feed domrepo.MarketFeed,
	log *logger.Logger,
) *HistoricalScan {
	return &HistoricalScan{
		detectCfg: detectCfg,
		zoneCfg:   zoneCfg,
		feed:      feed,
		log:       log,
	}
}

// ScanParams selects the window to scan.
type ScanParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	Limit     int
}

type sliceWindow []models.Candle

func (w sliceWindow) At(index int64) (models.Candle, bool) {
	if index < 0 || index >= int64(len(w)) {
		return models.Candle{}, false
	}
	return w[index], true
}

// Scan fetches up to Limit closed candles and replays them through a
// fresh detector and zone manager. Returned zones are active ones first,
// then terminal zones newest first.
func (h *HistoricalScan) Scan(ctx context.Context, p ScanParams) ([]models.Zone, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		return nil, fmt.Errorf("%w: unknown timeframe %q", domrepo.ErrConfiguration, p.Timeframe)
	}

	candles, err := h.feed.FetchHistorical(ctx, p.Symbol, p.Timeframe, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", p.Symbol, p.Timeframe, err)
	}

	detector := detect.NewDetector(h.detectCfg, p.Symbol, string(p.Timeframe))
	zones := zone.NewManager(h.zoneCfg)
	window := sliceWindow(candles)

	for i, c := range candles {
		idx := int64(i)
		zones.Touch(idx, c)
		zones.Expire(idx)
		for _, z := range detector.Observe(window, idx, c) {
			zones.Admit(z)
		}
	}

	h.log.Debug("historical scan complete",
		logger.String("symbol", p.Symbol),
		logger.String("timeframe", string(p.Timeframe)),
		logger.Int("candles", len(candles)))

	out := zones.Active()
	out = append(out, zones.History(0)...)
	return out, nil
}
