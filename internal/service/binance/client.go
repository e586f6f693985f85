package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ZonePulse/internal/domain/models"
	drepo "ZonePulse/internal/domain/repository"
	phttp "ZonePulse/pkg/http"
)

// Feed implements a MarketFeed backed by the Binance spot REST and
// WebSocket APIs.
type Feed struct {
	restURL      string
	wsURL        string
	pingInterval time.Duration
	http         *phttp.Client
	metrics      drepo.Metrics
}

var _ drepo.MarketFeed = (*Feed)(nil)

// New creates a Binance market feed. The metrics recorder may be nil.
func New(restURL, wsURL string, pingInterval time.Duration, httpClient *phttp.Client, m drepo.Metrics) *Feed {
	return &Feed{
		restURL:      strings.TrimRight(restURL, "/"),
		wsURL:        strings.TrimRight(wsURL, "/"),
		pingInterval: pingInterval,
		http:         httpClient,
		metrics:      m,
	}
}

// ValidateSymbol checks the symbol against the exchange info endpoint.
// A 400 response means Binance does not trade the symbol.
func (f *Feed) ValidateSymbol(ctx context.Context, symbol string) error {
	resp, err := f.http.SendRequest(ctx, &phttp.RequestOptions{
		Method:      phttp.MethodGet,
		URL:         f.restURL + "/api/v3/exchangeInfo",
		QueryParams: map[string][]string{"symbol": {symbol}},
	})
	if err != nil {
		return fmt.Errorf("%w: exchange info: %v", drepo.ErrTransientFeed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == 400:
		return fmt.Errorf("%w: %s", drepo.ErrInvalidSymbol, symbol)
	default:
		return fmt.Errorf("%w: exchange info status %d", drepo.ErrTransientFeed, resp.StatusCode)
	}
}

// FetchHistorical returns up to limit closed candles, oldest first.
// Binance serves klines as JSON arrays of mixed numbers and strings.
func (f *Feed) FetchHistorical(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Candle, error) {
	var rows [][]interface{}
	err := f.http.SendAndParse(ctx, &phttp.RequestOptions{
		Method: phttp.MethodGet,
		URL:    f.restURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {string(tf)},
			"limit":    {strconv.Itoa(limit)},
		},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("%w: klines: %v", drepo.ErrTransientFeed, err)
	}

	candles := make([]models.Candle, 0, len(rows))
	now := time.Now()
	for _, row := range rows {
		c, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("parse kline row: %w", err)
		}
		// The last row may be the still-open interval; drop it.
		if c.OpenTime.Add(tf.Duration()).After(now) {
			continue
		}
		c.Closed = true
		candles = append(candles, c)
	}
	return candles, nil
}

// OpenStream creates a kline WebSocket stream for one pair.
func (f *Feed) OpenStream(symbol string, tf drepo.Timeframe) drepo.KlineStream {
	return newStream(f.wsURL, symbol, tf, f.pingInterval, f.metrics)
}

// parseKlineRow decodes one REST kline row:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKlineRow(row []interface{}) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("kline row too short: %d fields", len(row))
	}
	ms, ok := row[0].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("kline open time is %T", row[0])
	}

	prices := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return models.Candle{}, fmt.Errorf("kline field %d is %T", i, row[i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("kline field %d: %w", i, err)
		}
		prices[i-1] = v
	}

	return models.Candle{
		OpenTime: time.UnixMilli(int64(ms)).UTC(),
		Open:     prices[0],
		High:     prices[1],
		Low:      prices[2],
		Close:    prices[3],
		Volume:   prices[4],
	}, nil
}

// quoteAssets ordered longest first so USDT matches before USD.
var quoteAssets = []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB", "EUR", "USD"}

// DisplaySymbol renders an exchange symbol for humans: BTCUSDT -> BTC/USDT.
func DisplaySymbol(symbol string) string {
	for _, q := range quoteAssets {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return symbol[:len(symbol)-len(q)] + "/" + q
		}
	}
	return symbol
}
