package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"donationhub/internal/bootstrap"
	"donationhub/internal/domain"
	"donationhub/internal/http/handlers"
	httpapi "donationhub/internal/http/httpapi"
	"donationhub/internal/infra"
	"donationhub/internal/infra/geoip"
	"donationhub/internal/ingest"
	"donationhub/internal/metrics"
	"donationhub/internal/middleware"
	"donationhub/internal/notify"
	"donationhub/internal/registry"
)

func main() {
	// Muat .env (opsional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	backends, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer backends.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	discord := notify.NewDiscord(cfg.DiscordWebhookURL, cfg.DiscordTimeout)

	// Notifications go to RabbitMQ for the worker when configured, otherwise
	// straight to Discord from this process.
	var sender notify.Sender
	switch {
	case cfg.RabbitMQURL != "":
		publisher, err := notify.NewPublisher(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect rabbitmq")
		}
		defer publisher.Close()
		sender = publisher
		logger.Info().Msg("donation events published to rabbitmq")
	case discord.Configured():
		sender = discord
	default:
		logger.Warn().Msg("DISCORD_WEBHOOK_URL not set; donation notifications disabled")
	}

	var notifier ingest.Notifier
	var dispatcher *notify.Dispatcher
	if sender != nil {
		dispatcher = notify.NewDispatcher(sender, cfg.NotifyQueueSize, cfg.DiscordTimeout, logger, m)
		notifier = dispatcher
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip database unavailable")
	}
	var lookup middleware.CountryLookup
	if resolver != nil {
		defer resolver.Close()
		lookup = resolver.Lookup
	}

	pipeline := &ingest.Pipeline{
		Directory:   backends.Store,
		Ledger:      backends.Store,
		Leaderboard: backends.Leaderboard,
		Notifier:    notifier,
		Guard:       backends.Guard,
		Tokens:      cfg.WebhookTokens,
		Metrics:     m,
		Logger:      logger,
	}
	for _, p := range platformsWithoutToken(cfg) {
		logger.Warn().Str("platform", p).Msg("webhook token not configured; deliveries are not authenticated")
	}

	app := &handlers.App{
		Pipeline:    pipeline,
		Registrar:   backends.Store,
		Ledger:      backends.Store,
		Leaderboard: backends.Leaderboard,
		Discord:     discord,
		Logger:      logger,
		NewCode:     registry.NewCode,
	}
	if cfg.AdminJWTSecret == "" {
		logger.Info().Msg("ADMIN_JWT_SECRET not set; admin endpoints disabled")
	}

	opts := httpapi.Options{
		Logger:          logger,
		AdminJWTSecret:  cfg.AdminJWTSecret,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   lookup,
	}
	if cfg.MetricsEnabled {
		opts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	router := httpapi.NewRouter(app, opts)

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("storage", cfg.StorageDriver).Str("leaderboard", cfg.LeaderboardDriver).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if dispatcher != nil {
		if err := dispatcher.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("pending notifications dropped")
		}
	}
	logger.Info().Msg("server stopped")
}

func platformsWithoutToken(cfg *infra.Config) []string {
	var out []string
	for _, p := range domain.Platforms {
		if cfg.WebhookToken(p) == "" {
			out = append(out, string(p))
		}
	}
	return out
}
