package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"kimiaxe-digest-bot/internal/adapters/repo"
	"kimiaxe-digest-bot/internal/adapters/social"
	"kimiaxe-digest-bot/internal/domain"
	"kimiaxe-digest-bot/internal/infra/config"
	"kimiaxe-digest-bot/internal/infra/db"
	applog "kimiaxe-digest-bot/internal/infra/log"
	"kimiaxe-digest-bot/internal/infra/metrics"
	digestusecase "kimiaxe-digest-bot/internal/usecase/digest"
	"kimiaxe-digest-bot/internal/usecase/publish"
	"kimiaxe-digest-bot/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	log.Logger = applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)

	var botAPI *tgbotapi.BotAPI
	if cfg.Telegram.Token != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Fatal().Err(err).Msg("scheduler: не удалось создать Telegram бота")
		}
	}

	senders := []domain.Sender{
		social.NewTelegramSender(botAPI, cfg.Telegram.PrimaryChatID),
		social.NewDiscordSender(cfg.Webhooks.DiscordURL),
		social.NewTwitterSender(cfg.Webhooks.TwitterURL),
	}

	digestService := digestusecase.NewService(repoAdapter)
	publisher := publish.NewService(senders, repoAdapter, log.With().Str("component", "publisher").Logger())
	scheduler, err := schedule.NewService(
		digestService,
		publisher,
		repoAdapter,
		cfg.Digest.ScheduleUTC,
		time.Duration(cfg.Digest.CheckIntervalMS)*time.Millisecond,
		log.With().Str("component", "scheduler").Logger(),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: некорректное расписание дайджеста")
	}

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	scheduler.Start(ctx)
}
