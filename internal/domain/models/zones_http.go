package models

// ZonesRequest queries the live active-zone snapshot for a symbol.
type ZonesRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	TF     string `query:"tf"`
}

// HistoryRequest queries terminal (merged or expired) zones.
type HistoryRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	TF     string `query:"tf"`
	Limit  int    `query:"limit" validate:"gte=0,lte=1000"`
}

// ZonesResponse is the active-zone snapshot payload.
type ZonesResponse struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe,omitempty"`
	Count     int    `json:"count"`
	Zones     []Zone `json:"zones"`
}

// HistoryResponse lists terminal zones, newest first.
type HistoryResponse struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe,omitempty"`
	Count     int    `json:"count"`
	Zones     []Zone `json:"zones"`
}

// ScanRequest runs a one-shot detector pass over fetched candles.
type ScanRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	TF     string `query:"tf" validate:"required"`
	Limit  int    `query:"limit" validate:"gte=0,lte=1000" default:"500"`
}

// ScanResponse carries the zones produced by a one-shot scan.
type ScanResponse struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Count     int    `json:"count"`
	Zones     []Zone `json:"zones"`
}

// HealthResponse reports process health plus per-session states.
type HealthResponse struct {
	Status   string            `json:"status"`
	Sessions map[string]string `json:"sessions"`
}
