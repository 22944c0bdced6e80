package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"discord-archive-bot/internal/adapters/discord"
	"discord-archive-bot/internal/adapters/files"
	"discord-archive-bot/internal/adapters/repo"
	"discord-archive-bot/internal/infra/config"
	"discord-archive-bot/internal/infra/db"
	applog "discord-archive-bot/internal/infra/log"
	"discord-archive-bot/internal/infra/metrics"
	"discord-archive-bot/internal/infra/queue"
	"discord-archive-bot/internal/usecase/archive"
	"discord-archive-bot/internal/usecase/normalize"
	"discord-archive-bot/internal/usecase/reactions"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.PGDSN); err != nil {
			logger.Fatal().Err(err).Msg("archiver: миграции не применены")
		}
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("archiver: нет подключения к БД")
	}
	defer pool.Close()

	if cfg.RabbitURL == "" {
		logger.Fatal().Msg("archiver: не указан адрес RabbitMQ (RABBITMQ_URL)")
	}
	eventQueue, err := queue.NewRabbitEventQueue(cfg.RabbitURL, cfg.Queues.Events)
	if err != nil {
		logger.Fatal().Err(err).Msg("archiver: не удалось инициализировать очередь RabbitMQ")
	}
	defer eventQueue.Close()

	if cfg.Discord.Token == "" {
		logger.Fatal().Msg("archiver: не указан токен бота (DISCORD_BOT_TOKEN)")
	}
	discordClient := discord.NewClient(cfg.Discord.Token, cfg.Discord.BaseURL, cfg.Discord.Timeout)

	fileStore, err := files.NewStore(cfg.Archive.AttachmentsDir, logger.With().Str("component", "files").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("archiver: хранилище вложений недоступно")
	}

	repoAdapter := repo.NewPostgres(pool)
	normalizer := normalize.NewService(discordClient, repoAdapter, fileStore, logger.With().Str("component", "normalize").Logger())
	reactionService := reactions.NewService(repoAdapter, repoAdapter)
	archiveService := archive.NewService(
		normalizer, repoAdapter, repoAdapter, reactionService, cfg.Discord.BotID,
		logger.With().Str("component", "archive").Logger(),
	)

	if days := cfg.Archive.RetentionDays; days > 0 {
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					deleted := fileStore.CleanupOlderThan(days)
					logger.Info().Int("deleted", deleted).Int("days", days).Msg("archiver: чистка вложений")
				}
			}
		}()
	}

	logger.Info().Str("queue", cfg.Queues.Events).Msg("archiver: запуск обработки событий")
	if err := archiveService.Run(ctx, eventQueue); err != nil {
		logger.Error().Err(err).Msg("archiver: обработка остановлена с ошибкой")
	}
	logger.Info().Msg("archiver: остановлен")
}
