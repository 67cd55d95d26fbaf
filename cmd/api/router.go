package api

import (
	"net/http"

	"fxjournal-backend/internal/auth/delivery"
	authUsecase "fxjournal-backend/internal/auth/usecase"
	tradeDelivery "fxjournal-backend/internal/trade/delivery"
	tradeUsecase "fxjournal-backend/internal/trade/usecase"
	"fxjournal-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRoutes(r *gin.Engine, authUc authUsecase.AuthUsecase, tradeUc tradeUsecase.TradeUsecase, ingestionUc tradeUsecase.IngestionUsecase, cfg *config.Config, log *zap.Logger) error {
	if err := tradeDelivery.RegisterValidators(); err != nil {
		return err
	}

	authHandler := delivery.NewAuthHandler(authUc)
	tradeHandler := tradeDelivery.NewTradeHandler(tradeUc, ingestionUc)
	webhookHandler := tradeDelivery.NewWebhookHandler(ingestionUc)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.GET("/me", delivery.AuthMiddleware(authUc), authHandler.Me)

			mailbox := auth.Group("/mailbox")
			mailbox.Use(delivery.AuthMiddleware(authUc))
			{
				mailbox.PUT("/gmail", authHandler.LinkGmail)
				mailbox.PUT("/imap", authHandler.LinkIMAP)
				mailbox.DELETE("", authHandler.UnlinkMailbox)
			}
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUc))
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}

		// Trade journal routes (protected)
		trades := api.Group("/trades")
		trades.Use(delivery.AuthMiddleware(authUc))
		{
			trades.GET("", tradeHandler.ListTrades)
			trades.POST("", tradeHandler.CreateTrade)
			trades.POST("/sync", tradeHandler.SyncMailbox)
			trades.POST("/watch", tradeHandler.WatchMailbox)
			trades.GET("/:id", tradeHandler.GetTrade)
			trades.GET("/:id/lot", tradeHandler.FormatLot)
		}

		// Inbound mail relay, authenticated by shared secret
		webhooks := api.Group("/webhooks")
		webhooks.Use(tradeDelivery.RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst, log))
		{
			webhooks.POST("/inbound-email", webhookHandler.InboundEmail)
		}
	}
	return nil
}
