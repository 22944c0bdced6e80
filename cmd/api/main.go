package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	aiadapter "discord-archive-bot/internal/adapters/ai"
	"discord-archive-bot/internal/adapters/discord"
	"discord-archive-bot/internal/adapters/files"
	"discord-archive-bot/internal/adapters/repo"
	"discord-archive-bot/internal/domain"
	"discord-archive-bot/internal/infra/cache"
	"discord-archive-bot/internal/infra/config"
	"discord-archive-bot/internal/infra/db"
	httpinfra "discord-archive-bot/internal/infra/http"
	applog "discord-archive-bot/internal/infra/log"
	"discord-archive-bot/internal/infra/metrics"
	"discord-archive-bot/internal/infra/openai"
	"discord-archive-bot/internal/infra/queue"
	askusecase "discord-archive-bot/internal/usecase/ask"
	"discord-archive-bot/internal/usecase/normalize"
	"discord-archive-bot/internal/usecase/reconcile"
	searchusecase "discord-archive-bot/internal/usecase/search"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("api: не указан адрес Redis (REDIS_ADDR)")
	}
	redisCache := cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))

	repoAdapter := repo.NewPostgres(pool)
	discordClient := discord.NewClient(cfg.Discord.Token, cfg.Discord.BaseURL, cfg.Discord.Timeout)
	fileStore, err := files.NewStore(cfg.Archive.AttachmentsDir, logger.With().Str("component", "files").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("api: хранилище вложений недоступно")
	}

	normalizer := normalize.NewService(discordClient, repoAdapter, fileStore, logger.With().Str("component", "normalize").Logger())
	reconcileService := reconcile.NewService(
		discordClient, repoAdapter, repoAdapter, repoAdapter, normalizer, redisCache,
		cfg.Archive.PageSize, cfg.Archive.PageDelay, cfg.Archive.LockTTL,
		logger.With().Str("component", "reconcile").Logger(),
	)
	searchService := searchusecase.NewService(repoAdapter)

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	askService := askusecase.NewService(
		aiadapter.NewCompleter(openaiClient, cfg.OpenAI.Model),
		logger.With().Str("component", "ask").Logger(),
	)

	// HTTP-вход для внешнего слоя диспетчеризации: события уходят в ту же
	// очередь, которую читает archiver
	var eventQueue *queue.RabbitEventQueue
	if cfg.RabbitURL != "" {
		eventQueue, err = queue.NewRabbitEventQueue(cfg.RabbitURL, cfg.Queues.Events)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
		defer eventQueue.Close()
	}

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	r := srv.Router

	r.Post("/api/v1/reconcile/channel/{id}", func(w http.ResponseWriter, r *http.Request) {
		channelID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || channelID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid channel id")
			return
		}
		backfill := r.URL.Query().Get("backfill") == "1"
		if err := reconcileService.StartChannel(r.Context(), channelID, backfill); err != nil {
			if errors.Is(err, reconcile.ErrAlreadyRunning) {
				writeError(w, http.StatusConflict, "reconciliation already running")
				return
			}
			logger.Error().Err(err).Int64("channel", channelID).Msg("api: сверка не запущена")
			writeError(w, http.StatusInternalServerError, "failed to start reconciliation")
			return
		}
		writeJSONStatus(w, http.StatusAccepted, map[string]any{"status": "started", "channel_id": channelID, "backfill": backfill})
	})

	r.Post("/api/v1/reconcile/all", func(w http.ResponseWriter, r *http.Request) {
		backfill := r.URL.Query().Get("backfill") == "1"
		runCtx := context.WithoutCancel(r.Context())
		go func() {
			if err := reconcileService.ReconcileAll(runCtx, backfill); err != nil {
				logger.Error().Err(err).Msg("api: сверка всех каналов завершилась с ошибками")
			}
		}()
		writeJSONStatus(w, http.StatusAccepted, map[string]any{"status": "started", "backfill": backfill})
	})

	r.Get("/api/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		criteria := httpinfra.ParseFilterCriteria(r.URL.Query())
		messages, err := searchService.FilterMessages(r.Context(), criteria)
		if err != nil {
			logger.Error().Err(err).Msg("api: выборка сообщений")
			writeError(w, http.StatusInternalServerError, "failed to filter messages")
			return
		}
		resp := make([]messageResponse, 0, len(messages))
		for _, msg := range messages {
			resp = append(resp, toMessageResponse(msg))
		}
		writeJSON(w, map[string]any{"messages": resp, "count": len(resp)})
	})

	r.Get("/api/v1/reconcile/channel/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		channelID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || channelID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid channel id")
			return
		}
		state, _, err := repoAdapter.GetSyncState(r.Context(), channelID)
		if err != nil {
			logger.Error().Err(err).Int64("channel", channelID).Msg("api: чтение состояния сверки")
			writeError(w, http.StatusInternalServerError, "failed to read sync state")
			return
		}
		latest, _, err := repoAdapter.LatestMessageID(r.Context(), channelID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read stored boundaries")
			return
		}
		oldest, _, err := repoAdapter.OldestMessageID(r.Context(), channelID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read stored boundaries")
			return
		}
		writeJSON(w, syncStatusResponse{
			ChannelID:               channelID,
			LastSyncedMessageID:     state.LastSyncedMessageID,
			OldestSyncedMessageID:   state.OldestSyncedMessageID,
			LastSyncAt:              state.LastSyncAt,
			InitialBackfillComplete: state.InitialBackfillComplete,
			LatestStoredMessageID:   latest,
			OldestStoredMessageID:   oldest,
		})
	})

	r.Get("/api/v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || userID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		user, found, err := repoAdapter.GetUser(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read user")
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeJSON(w, toUserResponse(user))
	})

	// выпиливание пользователя вместе с его сообщениями (каскад в БД)
	r.Delete("/api/v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || userID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		if err := repoAdapter.PurgeUser(r.Context(), userID); err != nil {
			logger.Error().Err(err).Int64("user", userID).Msg("api: удаление пользователя")
			writeError(w, http.StatusInternalServerError, "failed to purge user")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		if eventQueue == nil {
			writeError(w, http.StatusServiceUnavailable, "event queue is not configured")
			return
		}
		defer r.Body.Close()
		var event domain.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid event body")
			return
		}
		if event.Kind == "" {
			writeError(w, http.StatusBadRequest, "event kind is required")
			return
		}
		if err := eventQueue.Publish(r.Context(), event); err != nil {
			logger.Error().Err(err).Str("kind", string(event.Kind)).Msg("api: публикация события")
			writeError(w, http.StatusInternalServerError, "failed to publish event")
			return
		}
		writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "queued"})
	})

	r.Post("/api/v1/ask", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		reply := askService.Ask(r.Context(), req.Prompt)
		writeJSON(w, map[string]string{"reply": reply})
	})

	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
