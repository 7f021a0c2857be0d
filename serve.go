package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"church-checkin/bot"
	"church-checkin/config"
	"church-checkin/internal/auth"
	"church-checkin/internal/event"
	"church-checkin/internal/handlers"
	"church-checkin/internal/metrics"
	"church-checkin/internal/services"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the check-in API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd, config.FromContext(cmd.Context()))
		},
	}
}

func serveRun(cmd *cobra.Command, cfg *config.Config) error {
	logger := commonRun(cfg)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}
	if cfg.AdminSecretHash == "" {
		logger.Warn("ADMIN_SECRET_HASH is empty, admin login is disabled", "component", programName)
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()
	logger.Info("store opened", "component", programName, "store", cfg.Store)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	bus := event.NewBus(reg, logger)
	defer bus.Stop()

	checkIn := services.NewCheckInService(st.identities, st.attendance, bus, m, loc, logger)
	dashboard := services.NewDashboardService(st.identities, st.attendance, m, loc)
	registration := services.NewRegistrationService(st.identities, m)
	sessions := services.NewSessionService(issuer, cfg.AdminSecretHash, cfg.ScannerSecretHash)

	var tgBot *bot.Bot
	if cfg.TelegramBotToken != "" {
		tgBot, err = initBot(ctx, cfg, bus, dashboard, registration, loc, logger)
		if err != nil {
			logger.Warn("failed to init telegram bot", "component", programName, "error", err)
		}
	}

	if !globalFlags.debug && !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterConfig{
		CheckIn:    checkIn,
		Dashboard:  dashboard,
		Identities: registration,
		Sessions:   sessions,
		Tokens:     issuer,
		Events:     bus,
		Metrics:    m,
		Gatherer:   reg,
		PublicURL:  cfg.PublicURL,
		Ping:       st.ping,
		Logger:     logger,
	})

	// No write timeout: dashboard streams are long-lived
	server := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "component", programName, "addr", cfg.BindAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, initiating graceful shutdown", "component", programName)
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	// Stopping the bus closes subscriber channels, which ends open dashboard streams
	bus.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "component", programName, "error", err)
	}
	if tgBot != nil {
		tgBot.Wait()
	}

	logger.Info("server stopped gracefully", "component", programName)
	return nil
}

// initBot starts the Telegram bot and subscribes it to attendance events
func initBot(
	ctx context.Context,
	cfg *config.Config,
	bus *event.Bus,
	stats services.StatsProvider,
	identities bot.IdentityLookup,
	loc *time.Location,
	logger *slog.Logger,
) (*bot.Bot, error) {
	b, err := bot.New(cfg.TelegramBotToken, stats, identities, bot.Config{
		AuthorizedChatID: cfg.AuthorizedChatID,
		ServiceStartTime: cfg.ServiceStartTime,
		Location:         loc,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}
	bus.SubscribeFunc(event.AttendanceRecordedEventType, b.NotifyAttendance)
	b.StartPolling(ctx)

	logger.Info("telegram bot initialized", "component", programName)
	return b, nil
}

func init() {
	// gin prints route registration in debug mode to stdout; keep it on stderr
	gin.DefaultWriter = os.Stderr
}
