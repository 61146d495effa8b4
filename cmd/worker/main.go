package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"donationhub/internal/bootstrap"
	"donationhub/internal/domain"
	"donationhub/internal/infra"
	"donationhub/internal/notify"
	"donationhub/internal/report"
)

const notificationQueue = "donation_notifications"

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	discord := notify.NewDiscord(cfg.DiscordWebhookURL, cfg.DiscordTimeout)
	if !discord.Configured() {
		logger.Fatal().Msg("worker: DISCORD_WEBHOOK_URL is required")
	}

	g, ctx := errgroup.WithContext(ctx)
	started := 0

	if cfg.RabbitMQURL != "" {
		consumer, err := notify.NewConsumer(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: rabbitmq connection failed")
		}
		defer consumer.Close()
		g.Go(func() error {
			logger.Info().Str("queue", notificationQueue).Msg("worker: consuming donation events")
			return consumer.Consume(ctx, notificationQueue, discord.Send)
		})
		started++
	}

	if cfg.StatsSchedule != "" && cfg.StatsSchedule != "off" {
		if cfg.StorageDriver == infra.StorageMemory {
			logger.Warn().Msg("worker: memory storage is per process; scheduled stats will be empty")
		}
		store, err := bootstrap.OpenStore(ctx, cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: failed to open storage")
		}
		defer store.Close()

		job := &statsJob{
			ledger:  store,
			discord: discord,
			period:  report.ParsePeriod(cfg.StatsPeriod),
			logger:  logger,
			now:     time.Now,
		}
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.StatsSchedule, func() { job.Run(ctx) }); err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.StatsSchedule).Msg("worker: invalid stats schedule")
		}
		g.Go(func() error {
			scheduler.Start()
			logger.Info().Str("schedule", cfg.StatsSchedule).Str("period", job.period.Key).Msg("worker: stats report scheduled")
			<-ctx.Done()
			<-scheduler.Stop().Done()
			return nil
		})
		started++
	}

	if started == 0 {
		logger.Fatal().Msg("worker: nothing to do; set RABBITMQ_URL or STATS_REPORT_SCHEDULE")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// poster is the slice of *notify.Discord the stats job needs.
type poster interface {
	Post(ctx context.Context, payload notify.WebhookPayload) error
}

type statsJob struct {
	ledger  domain.Ledger
	discord poster
	period  report.Period
	logger  infra.Logger
	now     func() time.Time
}

// Run computes and posts one report. Failures are logged; the next tick
// tries again.
func (j *statsJob) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	now := j.now()
	stats, err := report.Compute(ctx, j.ledger, j.period, now)
	if err != nil {
		j.logger.Error().Err(err).Msg("worker: compute stats failed")
		return
	}
	if err := j.discord.Post(ctx, report.Payload(stats, now)); err != nil {
		j.logger.Error().Err(err).Msg("worker: post stats failed")
		return
	}
	j.logger.Info().
		Str("period", j.period.Key).
		Int("donations", stats.TotalDonations).
		Msg("worker: stats report sent")
}
