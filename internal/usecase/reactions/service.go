package reactions

import (
	"context"
	"fmt"
	"sync"

	"discord-archive-bot/internal/domain"
)

const lockStripes = 64

// Service сводит события реакций в денормализованный агрегат сообщения.
// Цикл read-modify-write по одному сообщению сериализуется полосатым
// мьютексом, чтобы встречные add/remove не теряли обновления.
type Service struct {
	messages domain.MessageRepo
	users    domain.UserRepo
	locks    [lockStripes]sync.Mutex
}

// NewService создаёт сервис реакций.
func NewService(messages domain.MessageRepo, users domain.UserRepo) *Service {
	return &Service{messages: messages, users: users}
}

func (s *Service) lock(messageID int64) *sync.Mutex {
	return &s.locks[uint64(messageID)%lockStripes]
}

// Add добавляет пользователя в запись реакции. Повторное добавление
// того же пользователя — no-op. Пользователь зеркалится до записи.
func (s *Service) Add(ctx context.Context, messageID int64, user domain.RemoteUser, emoji domain.Emoji) error {
	if user.ID != 0 {
		mirror := domain.User{
			ID:            user.ID,
			Username:      user.Username,
			Discriminator: user.Discriminator,
			GlobalName:    user.GlobalName,
			Avatar:        user.Avatar,
			Bot:           user.Bot,
			System:        user.System,
		}
		if _, err := s.users.UpsertUser(ctx, mirror); err != nil {
			return fmt.Errorf("зеркалирование пользователя %d: %w", user.ID, err)
		}
	}

	mu := s.lock(messageID)
	mu.Lock()
	defer mu.Unlock()

	msg, found, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("чтение сообщения %d: %w", messageID, err)
	}
	if !found {
		// реакция на незаархивированное сообщение игнорируется
		return nil
	}

	merged, changed := MergeAdd(msg.Reactions, emoji, user.ID)
	if !changed {
		return nil
	}
	if err := s.messages.UpdateReactions(ctx, messageID, merged); err != nil {
		return fmt.Errorf("запись реакций сообщения %d: %w", messageID, err)
	}
	return nil
}

// Remove убирает пользователя из записи реакции; пустая запись удаляется.
// Снятие несуществующей реакции — no-op.
func (s *Service) Remove(ctx context.Context, messageID, userID int64, emoji domain.Emoji) error {
	mu := s.lock(messageID)
	mu.Lock()
	defer mu.Unlock()

	msg, found, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("чтение сообщения %d: %w", messageID, err)
	}
	if !found {
		return nil
	}

	merged, changed := MergeRemove(msg.Reactions, emoji, userID)
	if !changed {
		return nil
	}
	if err := s.messages.UpdateReactions(ctx, messageID, merged); err != nil {
		return fmt.Errorf("запись реакций сообщения %d: %w", messageID, err)
	}
	return nil
}

// MergeAdd добавляет пользователя в агрегат. Возвращает новый агрегат и
// признак того, что он изменился. Порядок записей сохраняется, новая
// запись добавляется в конец.
func MergeAdd(entries []domain.ReactionEntry, emoji domain.Emoji, userID int64) ([]domain.ReactionEntry, bool) {
	for i, entry := range entries {
		if !entry.Matches(emoji) {
			continue
		}
		for _, id := range entry.UserIDs {
			if id == userID {
				return entries, false
			}
		}
		merged := cloneEntries(entries)
		merged[i].UserIDs = append(merged[i].UserIDs, userID)
		merged[i].Count = len(merged[i].UserIDs)
		return merged, true
	}
	merged := cloneEntries(entries)
	merged = append(merged, domain.ReactionEntry{
		EmojiID:   emoji.ID,
		EmojiName: emoji.Name,
		UserIDs:   []int64{userID},
		Count:     1,
	})
	return merged, true
}

// MergeRemove убирает пользователя из агрегата. Запись без пользователей
// удаляется целиком; отсутствие записи или пользователя — не изменение.
func MergeRemove(entries []domain.ReactionEntry, emoji domain.Emoji, userID int64) ([]domain.ReactionEntry, bool) {
	for i, entry := range entries {
		if !entry.Matches(emoji) {
			continue
		}
		idx := -1
		for j, id := range entry.UserIDs {
			if id == userID {
				idx = j
				break
			}
		}
		if idx < 0 {
			return entries, false
		}
		merged := cloneEntries(entries)
		users := append([]int64{}, merged[i].UserIDs[:idx]...)
		users = append(users, merged[i].UserIDs[idx+1:]...)
		if len(users) == 0 {
			merged = append(merged[:i], merged[i+1:]...)
		} else {
			merged[i].UserIDs = users
			merged[i].Count = len(users)
		}
		return merged, true
	}
	return entries, false
}

func cloneEntries(entries []domain.ReactionEntry) []domain.ReactionEntry {
	merged := make([]domain.ReactionEntry, len(entries))
	copy(merged, entries)
	for i := range merged {
		merged[i].UserIDs = append([]int64{}, merged[i].UserIDs...)
	}
	return merged
}
