package telegram

import (
	"context"
	"fmt"
	"strings"

	"ZonePulse/internal/domain/models"
	drepo "ZonePulse/internal/domain/repository"
	"ZonePulse/internal/service/binance"
	phttp "ZonePulse/pkg/http"
)

// Dispatcher delivers zone notifications to a Telegram chat via the
// Bot API sendMessage method.
type Dispatcher struct {
	base   string
	apiURL string
	chatID string
	http   *phttp.Client
}

var _ drepo.Dispatcher = (*Dispatcher)(nil)

// Option configures Dispatcher.
type Option func(*Dispatcher)

// WithAPIBase overrides the Bot API base URL.
func WithAPIBase(base string) Option {
	return func(d *Dispatcher) {
		d.base = strings.TrimRight(base, "/")
	}
}

func New(botToken, chatID string, httpClient *phttp.Client, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		base:   "https://api.telegram.org",
		chatID: chatID,
		http:   httpClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.apiURL = d.base + "/bot" + botToken
	return d
}

func (d *Dispatcher) Name() string { return "telegram" }

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (d *Dispatcher) Dispatch(ctx context.Context, e *models.ZoneEvent) error {
	var resp sendMessageResponse
	err := d.http.SendAndParse(ctx, &phttp.RequestOptions{
		Method: phttp.MethodPost,
		URL:    d.apiURL + "/sendMessage",
		Body: sendMessageRequest{
			ChatID:    d.chatID,
			Text:      FormatZone(e),
			ParseMode: "HTML",
		},
	}, &resp)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram send: %s", resp.Description)
	}
	return nil
}

// FormatZone renders a zone event as a Telegram HTML message.
func FormatZone(e *models.ZoneEvent) string {
	z := e.Zone

	icon := "\U0001F7E2" // green circle
	title := "Bullish Order Block"
	if z.Type == models.ZoneBearish {
		icon = "\U0001F534" // red circle
		title = "Bearish Order Block"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b> — %s %s\n", icon, title, binance.DisplaySymbol(e.Symbol), e.Timeframe)
	fmt.Fprintf(&b, "Range: %s – %s\n", formatPrice(z.PriceLow), formatPrice(z.PriceHigh))
	fmt.Fprintf(&b, "Score: %.2f | Touches: %d", z.Score, z.Touches)
	if z.LiquiditySweep {
		b.WriteString(" | Liquidity sweep ⚡")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Formed: %s", z.FormationTime.UTC().Format("2006-01-02 15:04 UTC"))
	return b.String()
}

// formatPrice keeps sub-dollar assets readable without dragging eight
// decimals onto BTC prices.
func formatPrice(v float64) string {
	switch {
	case v >= 100:
		return fmt.Sprintf("%.2f", v)
	case v >= 1:
		return fmt.Sprintf("%.4f", v)
	default:
		return fmt.Sprintf("%.6f", v)
	}
}
