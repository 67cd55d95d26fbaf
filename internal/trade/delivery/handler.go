package delivery

import (
	"errors"
	"net/http"
	"strconv"

	tradedomain "fxjournal-backend/internal/trade/domain"
	tradedto "fxjournal-backend/internal/trade/dto"
	"fxjournal-backend/internal/trade/repository"
	"fxjournal-backend/internal/trade/usecase"
	"fxjournal-backend/pkg/lotsize"

	"github.com/gin-gonic/gin"
)

// TradeHandler handles journal and sync HTTP requests
type TradeHandler struct {
	tradeUsecase     usecase.TradeUsecase
	ingestionUsecase usecase.IngestionUsecase
}

// NewTradeHandler creates a new TradeHandler
func NewTradeHandler(tradeUsecase usecase.TradeUsecase, ingestionUsecase usecase.IngestionUsecase) *TradeHandler {
	return &TradeHandler{
		tradeUsecase:     tradeUsecase,
		ingestionUsecase: ingestionUsecase,
	}
}

// ListTrades returns the user's trades, newest first
// GET /api/trades?limit=50&offset=0&source=email_sync&pair=USDJPY
func (h *TradeHandler) ListTrades(c *gin.Context) {
	userID := c.GetString("userID")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	filter := repository.ListFilter{
		DataSource: tradedomain.DataSource(c.Query("source")),
		Pair:       c.Query("pair"),
		Limit:      limit,
		Offset:     offset,
	}

	trades, total, err := h.tradeUsecase.ListTrades(userID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trades": trades,
		"total":  total,
	})
}

// GetTrade
// GET /api/trades/:id
func (h *TradeHandler) GetTrade(c *gin.Context) {
	trade, err := h.tradeUsecase.GetTrade(c.GetString("userID"), c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrTradeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trade not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, trade)
}

// CreateTrade records a manual journal entry
// POST /api/trades
func (h *TradeHandler) CreateTrade(c *gin.Context) {
	var req tradedto.CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trade, err := h.tradeUsecase.CreateTrade(c.GetString("userID"), &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidPair),
			errors.Is(err, usecase.ErrInvalidTimestamp),
			errors.Is(err, usecase.ErrInvalidTimezone):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, trade)
}

// FormatLot renders a trade's lot size
// GET /api/trades/:id/lot?format=standard|units|broker
func (h *TradeHandler) FormatLot(c *gin.Context) {
	style := lotsize.Style(c.DefaultQuery("format", string(lotsize.StyleStandard)))
	switch style {
	case lotsize.StyleStandard, lotsize.StyleUnits, lotsize.StyleBroker:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be one of standard, units, broker"})
		return
	}

	formatted, lot, err := h.tradeUsecase.FormatLot(c.GetString("userID"), c.Param("id"), style)
	if err != nil {
		if errors.Is(err, usecase.ErrTradeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trade not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tradedto.LotResponse{LotSize: lot, Format: string(style), Formatted: formatted})
}

// SyncMailbox pulls recent confirmations from the linked mailbox
// POST /api/trades/sync
func (h *TradeHandler) SyncMailbox(c *gin.Context) {
	summary, err := h.ingestionUsecase.SyncMailbox(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrMailboxNotLinked):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, usecase.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Could not import trades from your mailbox. Please try again later."})
		}
		return
	}

	c.JSON(http.StatusOK, tradedto.SyncResponse{
		Imported:   summary.Created,
		Duplicates: summary.Duplicates,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
		Trades:     summary.Trades,
	})
}

// WatchMailbox registers Gmail push notifications
// POST /api/trades/watch
func (h *TradeHandler) WatchMailbox(c *gin.Context) {
	historyID, err := h.ingestionUsecase.WatchMailbox(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrMailboxNotLinked):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, usecase.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"history_id": historyID})
}
