package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ZonePulse/internal/domain/models"
	drepo "ZonePulse/internal/domain/repository"
)

// Stream is a kline WebSocket subscription for one symbol/timeframe.
type Stream struct {
	url          string
	symbol       string
	timeframe    drepo.Timeframe
	pingInterval time.Duration
	metrics      drepo.Metrics

	conn      *websocket.Conn
	connected bool
	done      chan struct{}
	closeOnce sync.Once
}

var _ drepo.KlineStream = (*Stream)(nil)

func newStream(baseURL, symbol string, tf drepo.Timeframe, pingInterval time.Duration, m drepo.Metrics) *Stream {
	return &Stream{
		url:          fmt.Sprintf("%s/%s@kline_%s", baseURL, strings.ToLower(symbol), tf),
		symbol:       symbol,
		timeframe:    tf,
		pingInterval: pingInterval,
		metrics:      m,
		done:         make(chan struct{}),
	}
}

// Connect dials the combined stream endpoint.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", drepo.ErrTransientFeed, s.url, err)
	}
	s.conn = conn
	s.connected = true
	return nil
}

// wsKline is the "k" payload of Binance kline events. The "x" flag
// marks the interval as closed.
type wsKline struct {
	OpenTime int64  `json:"t"`
	Symbol   string `json:"s"`
	Interval string `json:"i"`
	Open     string `json:"o"`
	Close    string `json:"c"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

type wsMessage struct {
	Event string  `json:"e"`
	Kline wsKline `json:"k"`
}

// Read streams kline events and errors. The error channel receives at
// most one error; the caller reconnects.
func (s *Stream) Read(ctx context.Context) (<-chan *models.KlineEvent, <-chan error) {
	events := make(chan *models.KlineEvent, 256)
	errs := make(chan error, 1)

	// ping loop, stops with the stream so reconnects do not leak tickers
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if s.conn == nil {
				errs <- fmt.Errorf("%w: stream not connected", drepo.ErrTransientFeed)
				return
			}
			_, b, err := s.conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("%w: read: %v", drepo.ErrTransientFeed, err)
				return
			}
			var m wsMessage
			if err := json.Unmarshal(b, &m); err != nil {
				// non-kline frames (subscription acks etc.)
				continue
			}
			if m.Event != "kline" {
				continue
			}
			candle, err := m.Kline.toCandle()
			if err != nil {
				continue
			}
			s.emit(events, &models.KlineEvent{
				Symbol:    s.symbol,
				Timeframe: string(s.timeframe),
				Candle:    candle,
			})
		}
	}()

	return events, errs
}

// emit hands an event to the consumer without blocking the read loop.
// A dropped closed candle is a one-bar detection gap worth surfacing.
func (s *Stream) emit(events chan *models.KlineEvent, ev *models.KlineEvent) {
	select {
	case events <- ev:
	default:
		if s.metrics != nil {
			s.metrics.RecordError("stream_event_dropped")
		}
	}
}

// Close closes the connection and stops the ping loop. Safe to call
// more than once.
func (s *Stream) Close() error {
	s.connected = false
	s.closeOnce.Do(func() { close(s.done) })
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected }

func (k wsKline) toCandle() (models.Candle, error) {
	fields := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var vals [5]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("kline field %d: %w", i, err)
		}
		vals[i] = v
	}
	return models.Candle{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
		Closed:   k.Closed,
	}, nil
}
