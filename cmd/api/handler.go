package api

import (
	"net/http"
	"time"

	authUsecase "fxjournal-backend/internal/auth/usecase"
	tradeUsecase "fxjournal-backend/internal/trade/usecase"
	"fxjournal-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	authUsecase      authUsecase.AuthUsecase
	tradeUsecase     tradeUsecase.TradeUsecase
	ingestionUsecase tradeUsecase.IngestionUsecase
	config           *config.Config
	log              *zap.Logger
}

func NewHandler(authUc authUsecase.AuthUsecase, tradeUc tradeUsecase.TradeUsecase, ingestionUc tradeUsecase.IngestionUsecase, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		authUsecase:      authUc,
		tradeUsecase:     tradeUc,
		ingestionUsecase: ingestionUc,
		config:           cfg,
		log:              log,
	}
}

// Engine builds the gin engine with middleware and routes.
func (h *Handler) Engine() (*gin.Engine, error) {
	if !h.config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(requestLogger(h.log), gin.Recovery(), cors())

	if err := SetupRoutes(r, h.authUsecase, h.tradeUsecase, h.ingestionUsecase, h.config, h.log); err != nil {
		return nil, err
	}
	return r, nil
}

// Server returns an http.Server for addr; the caller owns its lifecycle.
func (h *Handler) Server(addr string) (*http.Server, error) {
	r, err := h.Engine()
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Webhook-Secret")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
