package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"discord-archive-bot/internal/domain"
	"discord-archive-bot/internal/infra/metrics"
	"discord-archive-bot/internal/usecase/reactions"
)

// Service обрабатывает живые события шлюза: создание, правку и удаление
// сообщений, добавление и снятие реакций.
type Service struct {
	normalizer domain.Normalizer
	messages   domain.MessageRepo
	channels   domain.ChannelRepo
	reactions  *reactions.Service
	botID      int64
	log        zerolog.Logger
}

// NewService создаёт обработчик живых событий. botID — учётная запись
// самого бота: его сообщения и реакции в архив не попадают.
func NewService(normalizer domain.Normalizer, messages domain.MessageRepo, channels domain.ChannelRepo, reactionSvc *reactions.Service, botID int64, logger zerolog.Logger) *Service {
	return &Service{
		normalizer: normalizer,
		messages:   messages,
		channels:   channels,
		reactions:  reactionSvc,
		botID:      botID,
		log:        logger,
	}
}

// Run читает события из очереди до отмены контекста. Событие
// подтверждается и при успехе, и при ошибке обработки: битое событие не
// должно крутиться в очереди вечно, ошибка уходит в лог и метрики.
func (s *Service) Run(ctx context.Context, queue domain.EventQueue) error {
	for {
		event, ack, err := queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("получение события: %w", err)
		}

		if err := s.Handle(ctx, event); err != nil {
			s.log.Error().Err(err).Str("kind", string(event.Kind)).Msg("archive: событие не обработано")
		}
		if err := ack(true); err != nil {
			s.log.Warn().Err(err).Msg("archive: не удалось подтвердить событие")
		}
	}
}

// Handle диспетчеризует одно событие.
func (s *Service) Handle(ctx context.Context, event domain.Event) error {
	var err error
	switch event.Kind {
	case domain.EventMessageCreated:
		err = s.handleCreated(ctx, event)
	case domain.EventMessageEdited:
		err = s.handleEdited(ctx, event)
	case domain.EventMessageDeleted:
		err = s.handleDeleted(ctx, event)
	case domain.EventReactionAdded:
		err = s.handleReactionAdded(ctx, event)
	case domain.EventReactionRemove:
		err = s.handleReactionRemoved(ctx, event)
	default:
		err = fmt.Errorf("неизвестный тип события %q", event.Kind)
	}
	metrics.IncArchivedEvent(string(event.Kind), err)
	return err
}

func (s *Service) handleCreated(ctx context.Context, event domain.Event) error {
	raw := event.Message
	if raw == nil {
		return fmt.Errorf("событие %s без тела сообщения", event.Kind)
	}
	if raw.Author != nil && raw.Author.ID == s.botID {
		return nil
	}

	if err := s.channels.UpsertChannel(ctx, domain.Channel{ID: raw.ChannelID}); err != nil {
		s.log.Warn().Err(err).Int64("channel", raw.ChannelID).Msg("archive: канал не зарегистрирован")
	}

	msg, err := s.normalizer.Normalize(ctx, *raw)
	if err != nil {
		return fmt.Errorf("нормализация сообщения %d: %w", raw.ID, err)
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("сохранение сообщения %d: %w", raw.ID, err)
	}
	return nil
}

func (s *Service) handleEdited(ctx context.Context, event domain.Event) error {
	raw := event.Message
	if raw == nil {
		return fmt.Errorf("событие %s без тела сообщения", event.Kind)
	}
	if raw.Author == nil || raw.Author.ID == s.botID {
		return nil
	}

	msg, err := s.normalizer.Normalize(ctx, *raw)
	if err != nil {
		return fmt.Errorf("нормализация правки %d: %w", raw.ID, err)
	}

	update := domain.MessageUpdate{
		Content:     msg.Content,
		Pinned:      &msg.Pinned,
		Mentions:    &msg.Mentions,
		Attachments: &msg.Attachments,
		Embeds:      &msg.Embeds,
	}
	updated, err := s.messages.UpdateMessage(ctx, raw.ID, raw.Author.ID, update)
	if err != nil {
		return fmt.Errorf("обновление сообщения %d: %w", raw.ID, err)
	}
	if updated == nil {
		// правка сообщения, которого нет в архиве: дослать его целиком
		if err := s.messages.CreateMessage(ctx, msg); err != nil {
			return fmt.Errorf("досоздание сообщения %d: %w", raw.ID, err)
		}
	}
	return nil
}

func (s *Service) handleDeleted(ctx context.Context, event domain.Event) error {
	authorID := event.AuthorID
	if authorID == 0 {
		stored, found, err := s.messages.GetMessage(ctx, event.MessageID)
		if err != nil {
			return fmt.Errorf("чтение сообщения %d: %w", event.MessageID, err)
		}
		if !found || stored.AuthorID == nil {
			return nil
		}
		authorID = *stored.AuthorID
	}

	deleted, err := s.messages.DeleteMessage(ctx, event.MessageID, authorID)
	if err != nil {
		return fmt.Errorf("удаление сообщения %d: %w", event.MessageID, err)
	}
	if !deleted {
		s.log.Debug().Int64("message", event.MessageID).Msg("archive: удаление без совпадения id/автора")
	}
	return nil
}

func (s *Service) handleReactionAdded(ctx context.Context, event domain.Event) error {
	if event.User == nil || event.Emoji == nil {
		return fmt.Errorf("событие %s без пользователя или эмодзи", event.Kind)
	}
	if event.User.ID == s.botID {
		return nil
	}
	return s.reactions.Add(ctx, event.MessageID, *event.User, *event.Emoji)
}

func (s *Service) handleReactionRemoved(ctx context.Context, event domain.Event) error {
	if event.Emoji == nil {
		return fmt.Errorf("событие %s без эмодзи", event.Kind)
	}
	userID := event.AuthorID
	if event.User != nil {
		userID = event.User.ID
	}
	if userID == 0 || userID == s.botID {
		return nil
	}
	return s.reactions.Remove(ctx, event.MessageID, userID, *event.Emoji)
}
