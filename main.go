package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "fxjournal-backend/cmd/api"
	authdomain "fxjournal-backend/internal/auth/domain"
	authRepo "fxjournal-backend/internal/auth/repository"
	authUsecase "fxjournal-backend/internal/auth/usecase"
	"fxjournal-backend/internal/notification"
	tradedomain "fxjournal-backend/internal/trade/domain"
	"fxjournal-backend/internal/trade/parser"
	tradeRepo "fxjournal-backend/internal/trade/repository"
	tradeUsecase "fxjournal-backend/internal/trade/usecase"
	"fxjournal-backend/pkg/config"
	"fxjournal-backend/pkg/database"
	"fxjournal-backend/pkg/fcm"
	"fxjournal-backend/pkg/gmail"
	"fxjournal-backend/pkg/imap"
	"fxjournal-backend/pkg/logger"
	"fxjournal-backend/pkg/secret"
	"fxjournal-backend/pkg/session"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger.InitLogger(cfg.LogDir, cfg.Debug)
	defer logger.Sync()
	log := logger.NewModuleLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewConnection(cfg, logger.NewModuleLogger("database"))
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.User{}, &authdomain.FCMToken{}, &tradedomain.Trade{}, &tradedomain.IngestionRecord{}); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(db)
	tradeRepository := tradeRepo.NewTradeRepository(db)
	ingestionRepository := tradeRepo.NewIngestionRepository(db)

	var box *secret.Box
	if cfg.SecretKey != "" {
		box, err = secret.NewBox(cfg.SecretKey)
		if err != nil {
			log.Fatal("invalid SECRET_KEY", zap.Error(err))
		}
	} else {
		log.Warn("SECRET_KEY not set, IMAP mailboxes cannot be linked")
	}

	// Mail providers
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.FetchTimeout, logger.NewModuleLogger("gmail"))
	imapClient := imap.NewClient(cfg.FetchTimeout, logger.NewModuleLogger("imap"))

	gmailSource := tradeUsecase.NewGmailSource(gmailService, userRepo, cfg.SyncQuery, cfg.GooglePubSubTopic, logger.NewModuleLogger("gmail"))
	sources := tradeUsecase.MailSources{
		Gmail: gmailSource,
		IMAP:  tradeUsecase.NewIMAPSource(imapClient, box),
		Demo:  tradeUsecase.NewDemoSource(),
	}

	// Push notifications are optional
	var notifier tradeUsecase.Notifier
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, logger.NewModuleLogger("fcm"))
		if err != nil {
			log.Warn("failed to initialize FCM client, push notifications disabled", zap.Error(err))
		} else {
			notifier = notification.NewPushNotifier(fcmTokenRepo, fcmClient, logger.NewModuleLogger("notification"))
		}
	}

	defaultZone := session.LoadZone(cfg.DefaultTimezone)

	// Initialize use cases (dependency injection)
	authUc := authUsecase.NewAuthUsecase(userRepo, fcmTokenRepo, gmailService, imapClient, box, cfg, logger.NewModuleLogger("auth"))
	tradeUc := tradeUsecase.NewTradeUsecase(tradeRepository, defaultZone, logger.NewModuleLogger("trade"))
	ingestionUc := tradeUsecase.NewIngestionUsecase(tradeUsecase.IngestionDeps{
		Trades:     tradeRepository,
		Ingestions: ingestionRepository,
		Users:      userRepo,
		Extractor:  parser.NewExtractor(defaultZone),
		Sources:    sources,
		Watcher:    gmailSource,
		Notifier:   notifier,
		Logger:     logger.NewModuleLogger("ingestion"),
	}, tradeUsecase.IngestionOptions{
		DemoMode:      cfg.DemoMode,
		PageSize:      cfg.SyncPageSize,
		WebhookSecret: cfg.WebhookSecret,
		AliasPrefix:   cfg.WebhookAliasPrefix,
	})
	if cfg.WebhookSecret == "" {
		log.Warn("WEBHOOK_SECRET not set, inbound email webhook will reject all requests")
	}

	// Gmail push notifications trigger a pull sync; only when a project is configured
	if cfg.GoogleProjectID != "" && cfg.GooglePubSubTopic != "" {
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}

		notifService, err := notification.NewService(ctx, cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, userRepo, ingestionUc, logger.NewModuleLogger("pubsub"))
		if err != nil {
			log.Error("failed to initialize notification service", zap.Error(err))
		} else {
			defer notifService.Close()
			go notifService.Start(ctx)
		}
	} else {
		log.Info("Pub/Sub not configured, push-triggered sync disabled")
	}

	// Initialize HTTP handler
	handler := api.NewHandler(authUc, tradeUc, ingestionUc, cfg, logger.NewModuleLogger("http"))
	srv, err := handler.Server(":" + cfg.Port)
	if err != nil {
		log.Fatal("failed to build router", zap.Error(err))
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	if pn, ok := notifier.(*notification.PushNotifier); ok {
		pn.Wait()
	}
}
