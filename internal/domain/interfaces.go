package domain

import (
	"context"
	"time"
)

// HistoryDirection указывает направление обхода истории относительно курсора.
type HistoryDirection string

const (
	// HistoryBefore — сообщения старше курсора (режим backfill).
	HistoryBefore HistoryDirection = "before"
	// HistoryAfter — сообщения новее курсора (режим reconcile).
	HistoryAfter HistoryDirection = "after"
)

// UserRepo управляет зеркальными записями пользователей.
type UserRepo interface {
	UpsertUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id int64) (User, bool, error)
	PurgeUser(ctx context.Context, id int64) error
}

// MessageRepo — единственный источник правды по сохранённой истории.
type MessageRepo interface {
	GetMessage(ctx context.Context, id int64) (Message, bool, error)
	CreateMessage(ctx context.Context, msg Message) error
	// UpdateMessage возвращает nil без ошибки, если id или author_id не совпали.
	UpdateMessage(ctx context.Context, id, authorID int64, update MessageUpdate) (*Message, error)
	// DeleteMessage возвращает false без ошибки при несовпадении id/author_id.
	DeleteMessage(ctx context.Context, id, authorID int64) (bool, error)
	BatchCreateMessages(ctx context.Context, msgs []Message) error
	BatchUpdateMessages(ctx context.Context, changes []MessageChange) error
	// GetMessages опускает отсутствующие id, никогда не считает их ошибкой.
	GetMessages(ctx context.Context, ids []int64) (map[int64]Message, error)
	UpdateReactions(ctx context.Context, id int64, reactions []ReactionEntry) error
	FilterMessages(ctx context.Context, criteria FilterCriteria) ([]Message, error)
	LatestMessageID(ctx context.Context, channelID int64) (int64, bool, error)
	OldestMessageID(ctx context.Context, channelID int64) (int64, bool, error)
}

// ChannelRepo пополняет измерение каналов.
type ChannelRepo interface {
	UpsertChannel(ctx context.Context, channel Channel) error
	ListChannels(ctx context.Context) ([]Channel, error)
}

// SyncStateRepo хранит курсоры сверки по каналам.
type SyncStateRepo interface {
	GetSyncState(ctx context.Context, channelID int64) (SyncState, bool, error)
	UpsertSyncState(ctx context.Context, state SyncState) error
}

// HistorySource — REST-поверхность платформы, нужная архиватору.
type HistorySource interface {
	// FetchHistory возвращает до limit сообщений по одну сторону от boundaryID.
	// boundaryID == 0 означает отсутствие границы (верх истории).
	FetchHistory(ctx context.Context, channelID, boundaryID int64, dir HistoryDirection, limit int) ([]RemoteMessage, error)
	FetchMessage(ctx context.Context, channelID, messageID int64) (RemoteMessage, error)
	FetchReactionUsers(ctx context.Context, channelID, messageID int64, emoji Emoji) ([]int64, error)
}

// AttachmentStore скачивает вложения в локальное хранилище.
type AttachmentStore interface {
	// Download возвращает локальный путь и признак успеха; неуспех не ошибка.
	Download(ctx context.Context, url, filename string, messageID int64) (string, bool)
}

// Completer — внешний AI-сервис завершения текста.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AckFunc подтверждает (true) или возвращает в очередь (false) событие.
type AckFunc func(ok bool) error

// EventQueue доставляет живые события от слоя диспетчеризации.
type EventQueue interface {
	Publish(ctx context.Context, event Event) error
	Receive(ctx context.Context) (Event, AckFunc, error)
}

// Normalizer приводит сырое сообщение платформы к каноничной записи.
type Normalizer interface {
	Normalize(ctx context.Context, raw RemoteMessage) (Message, error)
}

// Cache используется для TTL-хранилищ и межпроцессных блокировок.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
	Acquire(key string, ttl time.Duration) (bool, error)
	Release(key string) error
}
