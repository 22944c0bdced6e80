package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"discord-archive-bot/internal/domain"
)

// Service приводит сырые сообщения платформы к каноничным записям:
// разрешает тип, зеркалит автора, скачивает вложения, перечисляет
// участников реакций и снимает снапшот цитируемого сообщения.
type Service struct {
	history domain.HistorySource
	users   domain.UserRepo
	files   domain.AttachmentStore
	log     zerolog.Logger
}

var _ domain.Normalizer = (*Service)(nil)

// NewService создаёт нормализатор.
func NewService(history domain.HistorySource, users domain.UserRepo, files domain.AttachmentStore, logger zerolog.Logger) *Service {
	return &Service{history: history, users: users, files: files, log: logger}
}

// Normalize строит каноничную запись. Побочные обогащения (вложения,
// участники реакций, снапшот цитаты) выполняются параллельно; их неуспех
// деградирует запись, но не роняет её.
func (s *Service) Normalize(ctx context.Context, raw domain.RemoteMessage) (domain.Message, error) {
	msg := domain.Message{
		ID:              raw.ID,
		ChannelID:       raw.ChannelID,
		Timestamp:       raw.Timestamp,
		EditedTimestamp: raw.EditedTimestamp,
		Type:            domain.ResolveMessageType(raw.TypeCode),
		Pinned:          raw.Pinned,
		TTS:             raw.TTS,
		MentionEveryone: raw.MentionEveryone,
		WebhookID:       raw.WebhookID,
		Flags:           raw.Flags,
		Mentions:        raw.MentionIDs,
		Embeds:          raw.Embeds,
		Reference:       raw.Reference,
	}
	// пустой текст тоже значим: правка могла стереть содержимое сообщения,
	// поэтому указатель заполняется всегда
	content := raw.Content
	msg.Content = &content

	if raw.Author != nil {
		user := domain.User{
			ID:            raw.Author.ID,
			Username:      raw.Author.Username,
			Discriminator: raw.Author.Discriminator,
			GlobalName:    raw.Author.GlobalName,
			Avatar:        raw.Author.Avatar,
			Bot:           raw.Author.Bot,
			System:        raw.Author.System,
		}
		if _, err := s.users.UpsertUser(ctx, user); err != nil {
			return domain.Message{}, fmt.Errorf("зеркалирование автора %d: %w", user.ID, err)
		}
		msg.AuthorID = &user.ID
	}

	var wg sync.WaitGroup

	msg.Attachments = make([]domain.Attachment, len(raw.Attachments))
	for i, att := range raw.Attachments {
		msg.Attachments[i] = domain.Attachment{
			ID:          att.ID,
			Filename:    att.Filename,
			URL:         att.URL,
			ContentType: att.ContentType,
			Size:        att.Size,
		}
		wg.Add(1)
		go func(i int, att domain.RemoteAttachment) {
			defer wg.Done()
			path, ok := s.files.Download(ctx, att.URL, att.Filename, raw.ID)
			if ok {
				msg.Attachments[i].LocalPath = path
				msg.Attachments[i].Downloaded = true
			}
		}(i, att)
	}

	msg.Reactions = make([]domain.ReactionEntry, len(raw.Reactions))
	for i, reaction := range raw.Reactions {
		msg.Reactions[i] = domain.ReactionEntry{
			EmojiID:   reaction.Emoji.ID,
			EmojiName: reaction.Emoji.Name,
			Count:     reaction.Count,
		}
		wg.Add(1)
		go func(i int, reaction domain.RemoteReaction) {
			defer wg.Done()
			userIDs, err := s.history.FetchReactionUsers(ctx, raw.ChannelID, raw.ID, reaction.Emoji)
			if err != nil {
				// оставляем сводный счётчик без списка участников
				s.log.Warn().Err(err).Int64("message", raw.ID).
					Str("emoji", reaction.Emoji.Name).
					Msg("normalize: не удалось перечислить участников реакции")
				return
			}
			msg.Reactions[i].UserIDs = userIDs
			msg.Reactions[i].Count = len(userIDs)
		}(i, reaction)
	}

	if raw.Reference != nil && raw.Reference.MessageID != 0 {
		wg.Add(1)
		go func(ref domain.MessageReference) {
			defer wg.Done()
			channelID := ref.ChannelID
			if channelID == 0 {
				channelID = raw.ChannelID
			}
			original, err := s.history.FetchMessage(ctx, channelID, ref.MessageID)
			if err != nil {
				s.log.Warn().Err(err).Int64("message", raw.ID).
					Int64("referenced", ref.MessageID).
					Msg("normalize: цитируемое сообщение недоступно")
				return
			}
			snapshot, err := json.Marshal(original)
			if err != nil {
				s.log.Error().Err(err).Int64("referenced", ref.MessageID).
					Msg("normalize: не удалось сериализовать снапшот цитаты")
				return
			}
			msg.ReferencedMessage = snapshot
		}(*raw.Reference)
	}

	wg.Wait()
	return msg, nil
}
