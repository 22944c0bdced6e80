package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"discord-archive-bot/internal/domain"
	"discord-archive-bot/internal/infra/metrics"
)

// ErrAlreadyRunning возвращается при попытке запустить вторую сверку
// того же канала, пока держится блокировка первой.
var ErrAlreadyRunning = errors.New("сверка канала уже выполняется")

const normalizeWorkers = 8

// Service сверяет архив с историей платформы. Обычная сверка идёт вперёд
// от новейшего сохранённого сообщения, backfill — назад от старейшего.
type Service struct {
	history    domain.HistorySource
	messages   domain.MessageRepo
	channels   domain.ChannelRepo
	syncState  domain.SyncStateRepo
	normalizer domain.Normalizer
	cache      domain.Cache
	pageSize   int
	pageDelay  time.Duration
	lockTTL    time.Duration
	log        zerolog.Logger
}

// NewService создаёт движок сверки.
func NewService(history domain.HistorySource, messages domain.MessageRepo, channels domain.ChannelRepo, syncState domain.SyncStateRepo, normalizer domain.Normalizer, cache domain.Cache, pageSize int, pageDelay, lockTTL time.Duration, logger zerolog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Service{
		history:    history,
		messages:   messages,
		channels:   channels,
		syncState:  syncState,
		normalizer: normalizer,
		cache:      cache,
		pageSize:   pageSize,
		pageDelay:  pageDelay,
		lockTTL:    lockTTL,
		log:        logger,
	}
}

// ReconcileChannel выполняет один прогон сверки канала. Межпроцессная
// блокировка в Redis не даёт двум прогонам топтаться по одному каналу;
// TTL страхует от зависшего владельца.
func (s *Service) ReconcileChannel(ctx context.Context, channelID int64, backfill bool) error {
	lockKey := fmt.Sprintf("reconcile:channel:%d", channelID)
	acquired, err := s.cache.Acquire(lockKey, s.lockTTL)
	if err != nil {
		return fmt.Errorf("блокировка канала %d: %w", channelID, err)
	}
	if !acquired {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := s.cache.Release(lockKey); err != nil {
			s.log.Warn().Err(err).Int64("channel", channelID).Msg("reconcile: блокировка не снята")
		}
	}()

	runID := uuid.NewString()
	logger := s.log.With().Str("run", runID).Int64("channel", channelID).Bool("backfill", backfill).Logger()
	logger.Info().Msg("reconcile: прогон начат")

	start := time.Now()
	err = s.run(ctx, logger, channelID, backfill)
	metrics.ReconcileRunSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error().Err(err).Dur("took", time.Since(start)).Msg("reconcile: прогон прерван")
		return err
	}
	logger.Info().Dur("took", time.Since(start)).Msg("reconcile: прогон завершён")
	return nil
}

// StartChannel захватывает блокировку синхронно, а сам прогон выполняет
// в фоне: вызывающий сразу узнаёт, занят ли канал. Прогон переживает
// отмену исходного контекста (например, завершение HTTP-запроса).
func (s *Service) StartChannel(ctx context.Context, channelID int64, backfill bool) error {
	lockKey := fmt.Sprintf("reconcile:channel:%d", channelID)
	acquired, err := s.cache.Acquire(lockKey, s.lockTTL)
	if err != nil {
		return fmt.Errorf("блокировка канала %d: %w", channelID, err)
	}
	if !acquired {
		return ErrAlreadyRunning
	}

	runID := uuid.NewString()
	logger := s.log.With().Str("run", runID).Int64("channel", channelID).Bool("backfill", backfill).Logger()
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if err := s.cache.Release(lockKey); err != nil {
				logger.Warn().Err(err).Msg("reconcile: блокировка не снята")
			}
		}()
		logger.Info().Msg("reconcile: фоновый прогон начат")
		start := time.Now()
		err := s.run(runCtx, logger, channelID, backfill)
		metrics.ReconcileRunSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			logger.Error().Err(err).Dur("took", time.Since(start)).Msg("reconcile: фоновый прогон прерван")
			return
		}
		logger.Info().Dur("took", time.Since(start)).Msg("reconcile: фоновый прогон завершён")
	}()
	return nil
}

// ReconcileAll прогоняет сверку по всем известным каналам. Ошибка одного
// канала не останавливает остальные; занятые каналы пропускаются.
func (s *Service) ReconcileAll(ctx context.Context, backfill bool) error {
	channels, err := s.channels.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("список каналов: %w", err)
	}
	var errs []error
	for _, ch := range channels {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.ReconcileChannel(ctx, ch.ID, backfill); err != nil {
			if errors.Is(err, ErrAlreadyRunning) {
				s.log.Warn().Int64("channel", ch.ID).Msg("reconcile: канал занят, пропуск")
				continue
			}
			errs = append(errs, fmt.Errorf("канал %d: %w", ch.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) run(ctx context.Context, logger zerolog.Logger, channelID int64, backfill bool) error {
	// курсор в обоих режимах — новейшее сохранённое сообщение: reconcile
	// догоняет настоящее, backfill заново проходит историю вниз от него,
	// классифицируя уже сохранённые сообщения
	dir := domain.HistoryAfter
	if backfill {
		dir = domain.HistoryBefore
	}
	cursor, found, err := s.messages.LatestMessageID(ctx, channelID)
	if err != nil {
		return fmt.Errorf("курсор канала %d: %w", channelID, err)
	}
	if !found {
		cursor = 0
	}

	for pageNum := 1; ; pageNum++ {
		// отмена допустима только на границе страниц: закоммиченные
		// страницы остаются в архиве, повторный прогон продолжит с курсора
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.history.FetchHistory(ctx, channelID, cursor, dir, s.pageSize)
		if err != nil {
			return fmt.Errorf("страница %d: %w", pageNum, err)
		}
		metrics.ReconcilePages.Inc()
		if len(page) == 0 {
			break
		}

		created, updated, unchanged, err := s.processPage(ctx, page)
		if err != nil {
			return fmt.Errorf("страница %d: %w", pageNum, err)
		}
		logger.Debug().Int("page", pageNum).
			Int("new", created).Int("changed", updated).Int("unchanged", unchanged).
			Msg("reconcile: страница записана")

		cursor = page[len(page)-1].ID
		if err := s.persistCursor(ctx, channelID, cursor, backfill, false); err != nil {
			return fmt.Errorf("курсор после страницы %d: %w", pageNum, err)
		}

		if s.pageDelay > 0 {
			select {
			case <-time.After(s.pageDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if backfill {
		// пустая страница назад означает, что верх истории достигнут
		if err := s.persistCursor(ctx, channelID, cursor, true, true); err != nil {
			return fmt.Errorf("фиксация завершения backfill: %w", err)
		}
	}
	return nil
}

// processPage классифицирует страницу относительно архива и записывает
// новые и изменившиеся сообщения двумя батчами.
func (s *Service) processPage(ctx context.Context, page []domain.RemoteMessage) (created, updated, unchanged int, err error) {
	ids := make([]int64, 0, len(page))
	for _, remote := range page {
		ids = append(ids, remote.ID)
	}
	stored, err := s.messages.GetMessages(ctx, ids)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("чтение архива: %w", err)
	}

	var toNormalize []domain.RemoteMessage
	isNew := make(map[int64]bool)
	for _, remote := range page {
		existing, found := stored[remote.ID]
		if !found {
			isNew[remote.ID] = true
			toNormalize = append(toNormalize, remote)
			continue
		}
		if !equalTimestamps(existing.EditedTimestamp, remote.EditedTimestamp) {
			toNormalize = append(toNormalize, remote)
			continue
		}
		unchanged++
	}

	normalized, err := s.normalizeAll(ctx, toNormalize)
	if err != nil {
		return 0, 0, 0, err
	}

	var (
		inserts []domain.Message
		changes []domain.MessageChange
	)
	for _, msg := range normalized {
		if isNew[msg.ID] {
			inserts = append(inserts, msg)
			continue
		}
		changes = append(changes, domain.MessageChange{
			ID: msg.ID,
			Update: domain.MessageUpdate{
				Content:         msg.Content,
				EditedTimestamp: msg.EditedTimestamp,
				Pinned:          &msg.Pinned,
				Mentions:        &msg.Mentions,
				Attachments:     &msg.Attachments,
				Embeds:          &msg.Embeds,
				Reactions:       &msg.Reactions,
			},
		})
	}

	if err := s.messages.BatchCreateMessages(ctx, inserts); err != nil {
		return 0, 0, 0, fmt.Errorf("батч вставки: %w", err)
	}
	if err := s.messages.BatchUpdateMessages(ctx, changes); err != nil {
		return 0, 0, 0, fmt.Errorf("батч обновления: %w", err)
	}

	created, updated = len(inserts), len(changes)
	metrics.IncReconcileClass("new", created)
	metrics.IncReconcileClass("changed", updated)
	metrics.IncReconcileClass("unchanged", unchanged)
	return created, updated, unchanged, nil
}

// normalizeAll нормализует сообщения страницы ограниченным пулом воркеров.
func (s *Service) normalizeAll(ctx context.Context, raws []domain.RemoteMessage) ([]domain.Message, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	results := make([]domain.Message, len(raws))
	errs := make([]error, len(raws))
	sem := make(chan struct{}, normalizeWorkers)
	var wg sync.WaitGroup
	for i, raw := range raws {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, raw domain.RemoteMessage) {
			defer wg.Done()
			defer func() { <-sem }()
			msg, err := s.normalizer.Normalize(ctx, raw)
			if err != nil {
				errs[i] = fmt.Errorf("сообщение %d: %w", raw.ID, err)
				return
			}
			results[i] = msg
		}(i, raw)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("нормализация: %w", err)
	}
	return results, nil
}

func (s *Service) persistCursor(ctx context.Context, channelID, cursor int64, backfill, backfillDone bool) error {
	state := domain.SyncState{
		ChannelID:               channelID,
		LastSyncAt:              time.Now().UTC(),
		InitialBackfillComplete: backfillDone,
	}
	if cursor != 0 {
		if backfill {
			state.OldestSyncedMessageID = &cursor
		} else {
			state.LastSyncedMessageID = &cursor
		}
	}
	return s.syncState.UpsertSyncState(ctx, state)
}

func equalTimestamps(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
