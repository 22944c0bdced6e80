package archive

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"discord-archive-bot/internal/domain"
	"discord-archive-bot/internal/usecase/reactions"
)

const botID = int64(999)

type memRepo struct {
	messages map[int64]domain.Message
	creates  int
	updates  int
	deletes  int
	users    int
}

func newMemRepo() *memRepo { return &memRepo{messages: make(map[int64]domain.Message)} }

func (m *memRepo) GetMessage(_ context.Context, id int64) (domain.Message, bool, error) {
	msg, ok := m.messages[id]
	return msg, ok, nil
}

func (m *memRepo) CreateMessage(_ context.Context, msg domain.Message) error {
	m.messages[msg.ID] = msg
	m.creates++
	return nil
}

func (m *memRepo) UpdateMessage(_ context.Context, id, authorID int64, update domain.MessageUpdate) (*domain.Message, error) {
	msg, ok := m.messages[id]
	if !ok || msg.AuthorID == nil || *msg.AuthorID != authorID {
		return nil, nil
	}
	if update.Content != nil {
		msg.Content = update.Content
		now := time.Now().UTC()
		msg.EditedTimestamp = &now
	}
	m.messages[id] = msg
	m.updates++
	return &msg, nil
}

func (m *memRepo) DeleteMessage(_ context.Context, id, authorID int64) (bool, error) {
	msg, ok := m.messages[id]
	if !ok || msg.AuthorID == nil || *msg.AuthorID != authorID {
		return false, nil
	}
	delete(m.messages, id)
	m.deletes++
	return true, nil
}

func (m *memRepo) BatchCreateMessages(context.Context, []domain.Message) error { return nil }
func (m *memRepo) BatchUpdateMessages(context.Context, []domain.MessageChange) error {
	return nil
}
func (m *memRepo) GetMessages(context.Context, []int64) (map[int64]domain.Message, error) {
	return nil, nil
}

func (m *memRepo) UpdateReactions(_ context.Context, id int64, entries []domain.ReactionEntry) error {
	msg := m.messages[id]
	msg.Reactions = entries
	m.messages[id] = msg
	return nil
}

func (m *memRepo) FilterMessages(context.Context, domain.FilterCriteria) ([]domain.Message, error) {
	return nil, nil
}
func (m *memRepo) LatestMessageID(context.Context, int64) (int64, bool, error) {
	return 0, false, nil
}
func (m *memRepo) OldestMessageID(context.Context, int64) (int64, bool, error) {
	return 0, false, nil
}

func (m *memRepo) UpsertUser(_ context.Context, user domain.User) (domain.User, error) {
	m.users++
	return user, nil
}
func (m *memRepo) GetUser(context.Context, int64) (domain.User, bool, error) {
	return domain.User{}, false, nil
}
func (m *memRepo) PurgeUser(context.Context, int64) error { return nil }

func (m *memRepo) UpsertChannel(context.Context, domain.Channel) error { return nil }
func (m *memRepo) ListChannels(context.Context) ([]domain.Channel, error) {
	return nil, nil
}

type passNormalizer struct{}

func (passNormalizer) Normalize(_ context.Context, raw domain.RemoteMessage) (domain.Message, error) {
	msg := domain.Message{ID: raw.ID, ChannelID: raw.ChannelID, Timestamp: raw.Timestamp}
	content := raw.Content
	msg.Content = &content
	if raw.Author != nil {
		id := raw.Author.ID
		msg.AuthorID = &id
	}
	return msg, nil
}

func newTestService(repo *memRepo) *Service {
	return NewService(passNormalizer{}, repo, repo, reactions.NewService(repo, repo), botID, zerolog.Nop())
}

func createdEvent(id, authorID int64) domain.Event {
	return domain.Event{
		Kind: domain.EventMessageCreated,
		Message: &domain.RemoteMessage{
			ID:        id,
			ChannelID: 55,
			Author:    &domain.RemoteUser{ID: authorID, Username: "alice"},
			Content:   "привет",
			Timestamp: time.Now().UTC(),
		},
	}
}

func TestHandleCreated(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo)

	if err := service.Handle(context.Background(), createdEvent(100, 7)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.creates != 1 {
		t.Fatalf("ожидали одну вставку, получили %d", repo.creates)
	}
}

func TestHandleCreatedSkipsOwnMessages(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo)

	if err := service.Handle(context.Background(), createdEvent(100, botID)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.creates != 0 {
		t.Fatalf("собственные сообщения бота не архивируются")
	}
}

func TestHandleEditedUpdatesStored(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo)

	if err := service.Handle(context.Background(), createdEvent(100, 7)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	edit := createdEvent(100, 7)
	edit.Kind = domain.EventMessageEdited
	edit.Message.Content = "исправлено"
	if err := service.Handle(context.Background(), edit); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.updates != 1 {
		t.Fatalf("ожидали одно обновление, получили %d", repo.updates)
	}
	msg := repo.messages[100]
	if msg.Content == nil || *msg.Content != "исправлено" {
		t.Fatalf("контент не обновлён: %v", msg.Content)
	}
	if msg.EditedTimestamp == nil {
		t.Fatalf("правка контента должна штамповать edited_timestamp")
	}
}

func TestHandleEditedClearsContent(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo)

	if err := service.Handle(context.Background(), createdEvent(100, 7)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	// правка стёрла текст (например, у сообщения остался только embed)
	edit := createdEvent(100, 7)
	edit.Kind = domain.EventMessageEdited
	edit.Message.Content = ""
	if err := service.Handle(context.Background(), edit); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	msg := repo.messages[100]
	if msg.Content == nil || *msg.Content != "" {
		t.Fatalf("стирание текста не применилось: content %v", msg.Content)
	}
}

func TestHandleEditedUnknownMessageBackfills(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo)

	edit := createdEvent(100, 7)
	edit.Kind = domain.EventMessageEdited
	if err := service.Handle(context.Background(), edit); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.creates != 1 {
		t.Fatalf("правка незнакомого сообщения должна дослать его целиком")
	}
}

func TestHandleDeletedLooksUpAuthor(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo)

	if err := service.Handle(context.Background(), createdEvent(100, 7)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := service.Handle(context.Background(), domain.Event{
		Kind:      domain.EventMessageDeleted,
		MessageID: 100,
		ChannelID: 55,
	}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.deletes != 1 {
		t.Fatalf("ожидали удаление, получили %d", repo.deletes)
	}
}

func TestHandleReactionAddSkipsBot(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo)

	if err := service.Handle(context.Background(), createdEvent(100, 7)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := service.Handle(context.Background(), domain.Event{
		Kind:      domain.EventReactionAdded,
		MessageID: 100,
		User:      &domain.RemoteUser{ID: botID},
		Emoji:     &domain.Emoji{Name: "👍"},
	}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(repo.messages[100].Reactions) != 0 {
		t.Fatalf("реакции бота не архивируются")
	}
}

func TestHandleReactionRoundtrip(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo)

	if err := service.Handle(context.Background(), createdEvent(100, 7)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	add := domain.Event{
		Kind:      domain.EventReactionAdded,
		MessageID: 100,
		User:      &domain.RemoteUser{ID: 5, Username: "bob"},
		Emoji:     &domain.Emoji{Name: "👍"},
	}
	if err := service.Handle(context.Background(), add); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := repo.messages[100].Reactions; len(got) != 1 || got[0].Count != 1 {
		t.Fatalf("реакция не записана: %+v", got)
	}

	remove := domain.Event{
		Kind:      domain.EventReactionRemove,
		MessageID: 100,
		User:      &domain.RemoteUser{ID: 5},
		Emoji:     &domain.Emoji{Name: "👍"},
	}
	if err := service.Handle(context.Background(), remove); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := repo.messages[100].Reactions; len(got) != 0 {
		t.Fatalf("пустая запись должна удаляться: %+v", got)
	}
}

func TestHandleUnknownKind(t *testing.T) {
	service := newTestService(newMemRepo())
	if err := service.Handle(context.Background(), domain.Event{Kind: "mystery"}); err == nil {
		t.Fatalf("ожидали ошибку для неизвестного типа события")
	}
}
