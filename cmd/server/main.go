package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"surveychat/internal/app"
	"surveychat/internal/config"
	"surveychat/internal/logging"
	"surveychat/internal/mail"
	"surveychat/internal/service"
	"surveychat/internal/transport/rest"
	"surveychat/internal/transport/rest/middleware"
	"surveychat/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	stores, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background())

	// Initialize WebSocket hub
	wsHub := ws.NewHub(logger)
	defer wsHub.Close()

	mailer := mail.New(cfg.SMTP, logger)

	// Initialize services
	authSvc := service.NewAuthService(cfg.Auth, stores.TokenCache)
	surveySvc := service.NewSurveyService(stores.SurveyRepo, stores.ResponseRepo, stores.SurveyCache, stores.AnalyticsCache, wsHub, logger)
	responseSvc := service.NewResponseService(surveySvc, stores.SurveyRepo, stores.RespondentRepo, stores.ResponseRepo,
		stores.SubmissionCache, stores.AnalyticsCache, mailer, wsHub, cfg.FrontendURL, logger)
	reportSvc := service.NewReportService(surveySvc, stores.ResponseRepo, stores.AnalyticsCache, logger)
	inviteSvc := service.NewInviteService(surveySvc, mailer, cfg.FrontendURL, logger)

	container := &rest.Container{
		AuthService:     authSvc,
		SurveyService:   surveySvc,
		ResponseService: responseSvc,
		ReportService:   reportSvc,
		InviteService:   inviteSvc,
		WSHub:           wsHub,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimiter:     middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		Logger:          logger,
		Health: func(r *http.Request) error {
			hctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			return stores.Health(hctx)
		},
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           rest.NewRouter(container),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Store),
			zap.String("author", cfg.Auth.Username))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// let confirmation mail and analytics for accepted submissions finish
	responseSvc.Wait()
	logger.Info("server exited")
	return nil
}
