package delivery

import (
	"errors"
	"net/http"

	tradedto "fxjournal-backend/internal/trade/dto"
	"fxjournal-backend/internal/trade/usecase"

	"github.com/gin-gonic/gin"
)

// WebhookSecretHeader carries the shared secret of the inbound mail relay.
const WebhookSecretHeader = "X-Webhook-Secret"

type WebhookHandler struct {
	ingestionUsecase usecase.IngestionUsecase
}

func NewWebhookHandler(ingestionUsecase usecase.IngestionUsecase) *WebhookHandler {
	return &WebhookHandler{ingestionUsecase: ingestionUsecase}
}

// InboundEmail imports one forwarded confirmation. Unparseable and duplicate
// emails still answer 200 so the relay does not retry or bounce them.
// POST /api/webhooks/inbound-email
func (h *WebhookHandler) InboundEmail(c *gin.Context) {
	var req tradedto.InboundEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.ingestionUsecase.ImportForwarded(c.Request.Context(), c.GetHeader(WebhookSecretHeader), &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		case errors.Is(err, usecase.ErrRecipientNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to import trade"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
