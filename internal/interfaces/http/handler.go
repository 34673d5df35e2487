package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jmanzanog/quote-ingestor/internal/application"
	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

// AssetService is the read side over stored records.
type AssetService interface {
	List(ctx context.Context, assetClass string) ([]domain.CanonicalRecord, error)
	Search(ctx context.Context, query string, limit int) ([]domain.CanonicalRecord, error)
	Get(ctx context.Context, symbol, assetClass string) (*domain.CanonicalRecord, error)
	Summary(ctx context.Context) (application.Summary, error)
}

// HistoryService serves provider series without touching the store.
type HistoryService interface {
	History(ctx context.Context, symbol, period, interval string) ([]domain.HistoricalBar, error)
}

// IngestionService runs on-demand cycles and reports store health.
type IngestionService interface {
	RunCycle(ctx context.Context) application.CycleReport
	Ping(ctx context.Context) error
}

type Handler struct {
	assets    AssetService
	history   HistoryService
	ingestion IngestionService
}

func NewHandler(assets AssetService, history HistoryService, ingestion IngestionService) *Handler {
	return &Handler{
		assets:    assets,
		history:   history,
		ingestion: ingestion,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

const noDataMessage = "No data found"

func (h *Handler) GetHistorical(c *gin.Context) {
	symbol := c.Param("symbol")
	period := c.DefaultQuery("period", application.DefaultHistoryPeriod)
	interval := c.DefaultQuery("interval", application.DefaultHistoryInterval)

	bars, err := h.history.History(c.Request.Context(), symbol, period, interval)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoData):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: noDataMessage})
		case errors.Is(err, application.ErrInvalidHistoryRequest):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			slog.ErrorContext(c.Request.Context(), "Failed to get historical data", "symbol", symbol, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, bars)
}

func (h *Handler) ListAssets(c *gin.Context) {
	records, err := h.assets.List(c.Request.Context(), c.Query("asset_class"))
	if err != nil {
		if errors.Is(err, domain.ErrUnknownAssetClass) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		slog.ErrorContext(c.Request.Context(), "Failed to list assets", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *Handler) SearchAssets(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	records, err := h.assets.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to search assets", "query", c.Query("q"), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *Handler) LookupAsset(c *gin.Context) {
	symbol := c.Query("symbol")
	class := c.Query("asset_class")
	if symbol == "" || class == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "symbol and asset_class are required"})
		return
	}

	record, err := h.assets.Get(c.Request.Context(), symbol, class)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownAssetClass):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, domain.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		default:
			slog.ErrorContext(c.Request.Context(), "Failed to get asset", "symbol", symbol, "asset_class", class, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.assets.Summary(c.Request.Context())
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to get summary", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) RefreshQuotes(c *gin.Context) {
	report := h.ingestion.RunCycle(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.ingestion.Ping(c.Request.Context()); err != nil {
		slog.WarnContext(c.Request.Context(), "Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
