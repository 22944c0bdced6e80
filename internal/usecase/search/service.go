package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"discord-archive-bot/internal/domain"
)

// Service выполняет выборку по архиву. Основная фильтрация уходит в БД,
// фильтр по эмодзи и сортировка по числу реакций выполняются в памяти.
type Service struct {
	messages domain.MessageRepo
}

// NewService создаёт сервис поиска.
func NewService(messages domain.MessageRepo) *Service {
	return &Service{messages: messages}
}

// FilterMessages применяет критерии выборки.
func (s *Service) FilterMessages(ctx context.Context, criteria domain.FilterCriteria) ([]domain.Message, error) {
	post := len(criteria.ReactionEmojis) > 0 || criteria.Sort == domain.SortByReactionCount

	dbCriteria := criteria
	if post {
		// лимит применим только после пост-обработки
		dbCriteria.Limit = 0
	}

	messages, err := s.messages.FilterMessages(ctx, dbCriteria)
	if err != nil {
		return nil, fmt.Errorf("выборка сообщений: %w", err)
	}

	if len(criteria.ReactionEmojis) > 0 {
		messages = filterByReactions(messages, criteria.ReactionEmojis)
	}
	if criteria.Sort == domain.SortByReactionCount {
		sort.SliceStable(messages, func(i, j int) bool {
			return reactionTotal(messages[i]) > reactionTotal(messages[j])
		})
	}
	if post && criteria.Limit > 0 && len(messages) > criteria.Limit {
		messages = messages[:criteria.Limit]
	}
	return messages, nil
}

// filterByReactions оставляет сообщения, имеющие хотя бы одну из
// запрошенных реакций. Запрос именует эмодзи строкой: юникодным символом,
// именем кастомного эмодзи или его числовым id.
func filterByReactions(messages []domain.Message, emojis []string) []domain.Message {
	filtered := messages[:0]
	for _, msg := range messages {
		if hasAnyReaction(msg, emojis) {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}

func hasAnyReaction(msg domain.Message, emojis []string) bool {
	for _, entry := range msg.Reactions {
		for _, emoji := range emojis {
			if entry.EmojiName == emoji {
				return true
			}
			if id, err := strconv.ParseInt(emoji, 10, 64); err == nil && id != 0 && entry.EmojiID == id {
				return true
			}
		}
	}
	return false
}

func reactionTotal(msg domain.Message) int {
	total := 0
	for _, entry := range msg.Reactions {
		total += entry.Count
	}
	return total
}
