package reactions

import (
	"context"
	"testing"

	"discord-archive-bot/internal/domain"
)

func thumbsUp() domain.Emoji { return domain.Emoji{Name: "👍"} }

func TestMergeAddNewEntry(t *testing.T) {
	merged, changed := MergeAdd(nil, thumbsUp(), 1)
	if !changed {
		t.Fatalf("ожидали изменение агрегата")
	}
	if len(merged) != 1 || merged[0].Count != 1 || merged[0].UserIDs[0] != 1 {
		t.Fatalf("неожиданный агрегат: %+v", merged)
	}
}

func TestMergeAddIdempotent(t *testing.T) {
	entries := []domain.ReactionEntry{{EmojiName: "👍", UserIDs: []int64{1, 2}, Count: 2}}
	merged, changed := MergeAdd(entries, thumbsUp(), 2)
	if changed {
		t.Fatalf("повторное добавление не должно менять агрегат")
	}
	if merged[0].Count != 2 {
		t.Fatalf("счётчик не должен меняться, получили %d", merged[0].Count)
	}
}

func TestMergeAddKeepsCountInvariant(t *testing.T) {
	entries := []domain.ReactionEntry{{EmojiName: "👍", UserIDs: []int64{1}, Count: 1}}
	merged, _ := MergeAdd(entries, thumbsUp(), 2)
	if merged[0].Count != len(merged[0].UserIDs) {
		t.Fatalf("нарушен инвариант count == len(users): %+v", merged[0])
	}
	// исходный срез не изменился
	if entries[0].Count != 1 || len(entries[0].UserIDs) != 1 {
		t.Fatalf("исходный агрегат изменён: %+v", entries[0])
	}
}

func TestMergeRemoveScenario(t *testing.T) {
	entries := []domain.ReactionEntry{{EmojiName: "👍", UserIDs: []int64{1, 2}, Count: 2}}

	merged, changed := MergeRemove(entries, thumbsUp(), 2)
	if !changed {
		t.Fatalf("ожидали изменение агрегата")
	}
	if len(merged) != 1 || merged[0].Count != 1 || merged[0].UserIDs[0] != 1 {
		t.Fatalf("неожиданный агрегат после первого снятия: %+v", merged)
	}

	merged, changed = MergeRemove(merged, thumbsUp(), 1)
	if !changed {
		t.Fatalf("ожидали изменение агрегата")
	}
	if len(merged) != 0 {
		t.Fatalf("пустая запись должна удаляться целиком: %+v", merged)
	}
}

func TestMergeRemoveMissingUserNoop(t *testing.T) {
	entries := []domain.ReactionEntry{{EmojiName: "👍", UserIDs: []int64{1}, Count: 1}}
	if _, changed := MergeRemove(entries, thumbsUp(), 99); changed {
		t.Fatalf("снятие несуществующей реакции должно быть no-op")
	}
	if _, changed := MergeRemove(entries, domain.Emoji{Name: "🔥"}, 1); changed {
		t.Fatalf("снятие отсутствующего эмодзи должно быть no-op")
	}
}

func TestMergeCustomEmojiMatchesByID(t *testing.T) {
	custom := domain.Emoji{ID: 777, Name: "party_parrot"}
	entries := []domain.ReactionEntry{
		{EmojiID: 777, EmojiName: "party_parrot", UserIDs: []int64{1}, Count: 1},
		{EmojiName: "party_parrot", UserIDs: []int64{2}, Count: 1},
	}
	merged, changed := MergeAdd(entries, custom, 3)
	if !changed {
		t.Fatalf("ожидали изменение агрегата")
	}
	if merged[0].Count != 2 {
		t.Fatalf("кастомный эмодзи должен матчиться по id: %+v", merged)
	}
	if merged[1].Count != 1 {
		t.Fatalf("юникодная запись с тем же именем не должна меняться: %+v", merged)
	}
}

type reactionStore struct {
	messages map[int64]domain.Message
	written  map[int64][]domain.ReactionEntry
}

func (s *reactionStore) GetMessage(_ context.Context, id int64) (domain.Message, bool, error) {
	msg, ok := s.messages[id]
	return msg, ok, nil
}

func (s *reactionStore) UpdateReactions(_ context.Context, id int64, reactions []domain.ReactionEntry) error {
	if s.written == nil {
		s.written = make(map[int64][]domain.ReactionEntry)
	}
	s.written[id] = reactions
	return nil
}

func (s *reactionStore) CreateMessage(context.Context, domain.Message) error { return nil }
func (s *reactionStore) UpdateMessage(context.Context, int64, int64, domain.MessageUpdate) (*domain.Message, error) {
	return nil, nil
}
func (s *reactionStore) DeleteMessage(context.Context, int64, int64) (bool, error) {
	return false, nil
}
func (s *reactionStore) BatchCreateMessages(context.Context, []domain.Message) error { return nil }
func (s *reactionStore) BatchUpdateMessages(context.Context, []domain.MessageChange) error {
	return nil
}
func (s *reactionStore) GetMessages(context.Context, []int64) (map[int64]domain.Message, error) {
	return nil, nil
}
func (s *reactionStore) FilterMessages(context.Context, domain.FilterCriteria) ([]domain.Message, error) {
	return nil, nil
}
func (s *reactionStore) LatestMessageID(context.Context, int64) (int64, bool, error) {
	return 0, false, nil
}
func (s *reactionStore) OldestMessageID(context.Context, int64) (int64, bool, error) {
	return 0, false, nil
}

type stubUsers struct{ upserts int }

func (s *stubUsers) UpsertUser(_ context.Context, user domain.User) (domain.User, error) {
	s.upserts++
	return user, nil
}
func (s *stubUsers) GetUser(context.Context, int64) (domain.User, bool, error) {
	return domain.User{}, false, nil
}
func (s *stubUsers) PurgeUser(context.Context, int64) error { return nil }

func TestAddMirrorsUserAndWrites(t *testing.T) {
	store := &reactionStore{messages: map[int64]domain.Message{10: {ID: 10}}}
	users := &stubUsers{}
	service := NewService(store, users)

	err := service.Add(context.Background(), 10, domain.RemoteUser{ID: 5, Username: "bob"}, thumbsUp())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if users.upserts != 1 {
		t.Fatalf("ожидали зеркалирование пользователя")
	}
	written := store.written[10]
	if len(written) != 1 || written[0].Count != 1 || written[0].UserIDs[0] != 5 {
		t.Fatalf("неожиданная запись агрегата: %+v", written)
	}
}

func TestAddUnknownMessageNoop(t *testing.T) {
	store := &reactionStore{messages: map[int64]domain.Message{}}
	service := NewService(store, &stubUsers{})

	if err := service.Add(context.Background(), 404, domain.RemoteUser{ID: 5}, thumbsUp()); err != nil {
		t.Fatalf("реакция на незаархивированное сообщение не должна быть ошибкой: %v", err)
	}
	if len(store.written) != 0 {
		t.Fatalf("записей быть не должно: %+v", store.written)
	}
}

func TestRemoveWithoutAggregateNoop(t *testing.T) {
	store := &reactionStore{messages: map[int64]domain.Message{10: {ID: 10}}}
	service := NewService(store, &stubUsers{})

	if err := service.Remove(context.Background(), 10, 5, thumbsUp()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(store.written) != 0 {
		t.Fatalf("no-op не должен писать: %+v", store.written)
	}
}
