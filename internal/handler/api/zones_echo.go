package api

import (
	models "ZonePulse/internal/domain/models"
	domrepo "ZonePulse/internal/domain/repository"
	"ZonePulse/internal/usecase"
	xhttp "ZonePulse/pkg/http"
	xlogger "ZonePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ZonesEchoHandler exposes the live zone state over HTTP.
type ZonesEchoHandler struct {
	logger   *xlogger.Logger
	sessions *usecase.SessionManager
	scanner  *usecase.HistoricalScan
}

func NewZonesEchoHandler(logger *xlogger.Logger, sessions *usecase.SessionManager, scanner *usecase.HistoricalScan) *ZonesEchoHandler {
	return &ZonesEchoHandler{logger: logger, sessions: sessions, scanner: scanner}
}

func (h *ZonesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/zones", h.Zones)
	g.GET("/history", h.History)
	g.GET("/scan", h.Scan)
	e.GET("/healthz", h.Health)
}

func (h *ZonesEchoHandler) Zones(c echo.Context) error {
	req := &models.ZonesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	p := usecase.ZonesParams{Symbol: req.Symbol}
	if req.TF != "" {
		p.Timeframe = domrepo.NormalizeTimeframe(req.TF)
	}

	zones, err := h.sessions.ActiveZones(p)
	if err != nil {
		h.logger.Error("zones usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	return xhttp.SuccessResponse(c, &models.ZonesResponse{
		Symbol:    req.Symbol,
		Timeframe: string(p.Timeframe),
		Count:     len(zones),
		Zones:     zones,
	})
}

func (h *ZonesEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Limit == 0 {
		req.Limit = 500
	}

	p := usecase.ZonesParams{Symbol: req.Symbol}
	if req.TF != "" {
		p.Timeframe = domrepo.NormalizeTimeframe(req.TF)
	}

	zones, err := h.sessions.ZoneHistory(p, req.Limit)
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	return xhttp.SuccessResponse(c, &models.HistoryResponse{
		Symbol:    req.Symbol,
		Timeframe: string(p.Timeframe),
		Count:     len(zones),
		Zones:     zones,
	})
}

func (h *ZonesEchoHandler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	p := usecase.ScanParams{
		Symbol:    req.Symbol,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.Limit,
	}
	zones, err := h.scanner.Scan(c.Request().Context(), p)
	if err != nil {
		h.logger.Error("scan usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	return xhttp.SuccessResponse(c, &models.ScanResponse{
		Symbol:    req.Symbol,
		Timeframe: string(p.Timeframe),
		Count:     len(zones),
		Zones:     zones,
	})
}

func (h *ZonesEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, &models.HealthResponse{
		Status:   "ok",
		Sessions: h.sessions.States(),
	})
}
