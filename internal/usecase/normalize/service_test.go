package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"discord-archive-bot/internal/domain"
)

type stubUsers struct{ upserted []domain.User }

func (s *stubUsers) UpsertUser(_ context.Context, user domain.User) (domain.User, error) {
	s.upserted = append(s.upserted, user)
	return user, nil
}
func (s *stubUsers) GetUser(context.Context, int64) (domain.User, bool, error) {
	return domain.User{}, false, nil
}
func (s *stubUsers) PurgeUser(context.Context, int64) error { return nil }

type stubFiles struct {
	failNames map[string]bool
}

func (s *stubFiles) Download(_ context.Context, _ string, filename string, messageID int64) (string, bool) {
	if s.failNames[filename] {
		return "", false
	}
	return fmt.Sprintf("/data/msg_%d/%s", messageID, filename), true
}

type stubHistory struct {
	reactionUsers map[string][]int64
	reactionErr   error
	referenced    *domain.RemoteMessage
	referencedErr error
}

func (s *stubHistory) FetchHistory(context.Context, int64, int64, domain.HistoryDirection, int) ([]domain.RemoteMessage, error) {
	return nil, nil
}

func (s *stubHistory) FetchMessage(context.Context, int64, int64) (domain.RemoteMessage, error) {
	if s.referencedErr != nil {
		return domain.RemoteMessage{}, s.referencedErr
	}
	if s.referenced == nil {
		return domain.RemoteMessage{}, errors.New("нет сообщения")
	}
	return *s.referenced, nil
}

func (s *stubHistory) FetchReactionUsers(_ context.Context, _ int64, _ int64, emoji domain.Emoji) ([]int64, error) {
	if s.reactionErr != nil {
		return nil, s.reactionErr
	}
	return s.reactionUsers[emoji.Name], nil
}

func rawMessage() domain.RemoteMessage {
	return domain.RemoteMessage{
		ID:        100,
		ChannelID: 55,
		Author:    &domain.RemoteUser{ID: 7, Username: "alice", GlobalName: "Alice"},
		Content:   "привет",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestService(history *stubHistory, users *stubUsers, files *stubFiles) *Service {
	return NewService(history, users, files, zerolog.Nop())
}

func TestNormalizeMirrorsAuthor(t *testing.T) {
	users := &stubUsers{}
	service := newTestService(&stubHistory{}, users, &stubFiles{})

	msg, err := service.Normalize(context.Background(), rawMessage())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(users.upserted) != 1 || users.upserted[0].ID != 7 {
		t.Fatalf("ожидали зеркалирование автора, получили %+v", users.upserted)
	}
	if msg.AuthorID == nil || *msg.AuthorID != 7 {
		t.Fatalf("ожидали author_id=7, получили %v", msg.AuthorID)
	}
	if msg.Content == nil || *msg.Content != "привет" {
		t.Fatalf("ожидали контент, получили %v", msg.Content)
	}
}

func TestNormalizeKeepsEmptyContent(t *testing.T) {
	raw := rawMessage()
	raw.Content = ""
	service := newTestService(&stubHistory{}, &stubUsers{}, &stubFiles{})

	msg, err := service.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// пустая строка отличима от «не трогать»: иначе правка, стёршая текст,
	// никогда не дошла бы до архива
	if msg.Content == nil || *msg.Content != "" {
		t.Fatalf("ожидали пустой контент, получили %v", msg.Content)
	}
}

func TestNormalizeAttachmentPartialFailure(t *testing.T) {
	raw := rawMessage()
	raw.Attachments = []domain.RemoteAttachment{
		{ID: 1, Filename: "ok.png", URL: "https://cdn/ok.png"},
		{ID: 2, Filename: "broken.png", URL: "https://cdn/broken.png"},
	}
	service := newTestService(&stubHistory{}, &stubUsers{}, &stubFiles{failNames: map[string]bool{"broken.png": true}})

	msg, err := service.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("сбой одного вложения не должен ронять нормализацию: %v", err)
	}
	if len(msg.Attachments) != 2 {
		t.Fatalf("ожидали оба дескриптора вложений, получили %d", len(msg.Attachments))
	}
	if !msg.Attachments[0].Downloaded || msg.Attachments[0].LocalPath == "" {
		t.Fatalf("успешное вложение должно иметь локальный путь: %+v", msg.Attachments[0])
	}
	if msg.Attachments[1].Downloaded || msg.Attachments[1].LocalPath != "" {
		t.Fatalf("неудачное вложение должно остаться без пути: %+v", msg.Attachments[1])
	}
}

func TestNormalizeReactionEnumeration(t *testing.T) {
	raw := rawMessage()
	raw.Reactions = []domain.RemoteReaction{{Emoji: domain.Emoji{Name: "👍"}, Count: 2}}
	history := &stubHistory{reactionUsers: map[string][]int64{"👍": {1, 2, 3}}}
	service := newTestService(history, &stubUsers{}, &stubFiles{})

	msg, err := service.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(msg.Reactions) != 1 {
		t.Fatalf("ожидали одну запись реакций")
	}
	// счётчик пересчитывается по фактическому списку участников
	if msg.Reactions[0].Count != 3 || len(msg.Reactions[0].UserIDs) != 3 {
		t.Fatalf("ожидали трёх участников, получили %+v", msg.Reactions[0])
	}
}

func TestNormalizeReactionFetchFailureKeepsCount(t *testing.T) {
	raw := rawMessage()
	raw.Reactions = []domain.RemoteReaction{{Emoji: domain.Emoji{Name: "👍"}, Count: 2}}
	history := &stubHistory{reactionErr: errors.New("недоступно")}
	service := newTestService(history, &stubUsers{}, &stubFiles{})

	msg, err := service.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("сбой перечисления не должен ронять нормализацию: %v", err)
	}
	if msg.Reactions[0].Count != 2 || msg.Reactions[0].UserIDs != nil {
		t.Fatalf("ожидали сводный счётчик без участников, получили %+v", msg.Reactions[0])
	}
}

func TestNormalizeReferencedMessageSnapshot(t *testing.T) {
	raw := rawMessage()
	raw.Reference = &domain.MessageReference{ChannelID: 55, MessageID: 90}
	original := rawMessage()
	original.ID = 90
	original.Content = "исходное"
	history := &stubHistory{referenced: &original}
	service := newTestService(history, &stubUsers{}, &stubFiles{})

	msg, err := service.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if msg.Reference == nil || msg.Reference.MessageID != 90 {
		t.Fatalf("ожидали метаданные ссылки: %+v", msg.Reference)
	}
	var snapshot domain.RemoteMessage
	if err := json.Unmarshal(msg.ReferencedMessage, &snapshot); err != nil {
		t.Fatalf("снапшот должен быть валидным JSON: %v", err)
	}
	if snapshot.ID != 90 || snapshot.Content != "исходное" {
		t.Fatalf("неожиданный снапшот: %+v", snapshot)
	}
}

func TestNormalizeReferencedMessageUnavailable(t *testing.T) {
	raw := rawMessage()
	raw.Reference = &domain.MessageReference{MessageID: 90}
	history := &stubHistory{referencedErr: errors.New("удалено")}
	service := newTestService(history, &stubUsers{}, &stubFiles{})

	msg, err := service.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("недоступная цитата не должна ронять нормализацию: %v", err)
	}
	if msg.Reference == nil {
		t.Fatalf("метаданные ссылки должны сохраниться")
	}
	if msg.ReferencedMessage != nil {
		t.Fatalf("снапшот должен остаться пустым, получили %s", msg.ReferencedMessage)
	}
}

func TestNormalizeUnknownTypeDegradesToDefault(t *testing.T) {
	raw := rawMessage()
	raw.TypeCode = 9999
	service := newTestService(&stubHistory{}, &stubUsers{}, &stubFiles{})

	msg, err := service.Normalize(context.Background(), raw)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if msg.Type != domain.MessageTypeDefault {
		t.Fatalf("неизвестный код должен деградировать в DEFAULT, получили %s", msg.Type)
	}
}
