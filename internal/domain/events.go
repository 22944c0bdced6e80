package domain

import (
	"encoding/json"
	"time"
)

// RemoteUser — автор сообщения в «сыром» виде, как его отдаёт платформа.
type RemoteUser struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	GlobalName    string `json:"global_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
	System        bool   `json:"system,omitempty"`
}

// RemoteAttachment — дескриптор вложения из сырого пейлоада.
type RemoteAttachment struct {
	ID          int64  `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// RemoteReaction — сводка по одной реакции (без списка пользователей;
// участников перечисляет отдельный вызов).
type RemoteReaction struct {
	Emoji Emoji `json:"emoji"`
	Count int   `json:"count"`
}

// RemoteMessage — сырое сообщение платформы: вход нормализатора
// и единица выдачи fetch history.
type RemoteMessage struct {
	ID              int64              `json:"id"`
	ChannelID       int64              `json:"channel_id"`
	Author          *RemoteUser        `json:"author,omitempty"`
	Content         string             `json:"content,omitempty"`
	Timestamp       time.Time          `json:"timestamp"`
	EditedTimestamp *time.Time         `json:"edited_timestamp,omitempty"`
	TypeCode        int                `json:"type"`
	Pinned          bool               `json:"pinned,omitempty"`
	TTS             bool               `json:"tts,omitempty"`
	MentionEveryone bool               `json:"mention_everyone,omitempty"`
	WebhookID       *int64             `json:"webhook_id,omitempty"`
	Flags           *int               `json:"flags,omitempty"`
	MentionIDs      []int64            `json:"mentions,omitempty"`
	Attachments     []RemoteAttachment `json:"attachments,omitempty"`
	Embeds          []json.RawMessage  `json:"embeds,omitempty"`
	Reactions       []RemoteReaction   `json:"reactions,omitempty"`
	Reference       *MessageReference  `json:"message_reference,omitempty"`
}

// EventKind — тег варианта живого события.
type EventKind string

const (
	EventMessageCreated EventKind = "message_created"
	EventMessageEdited  EventKind = "message_edited"
	EventMessageDeleted EventKind = "message_deleted"
	EventReactionAdded  EventKind = "reaction_added"
	EventReactionRemove EventKind = "reaction_removed"
)

// Event — конверт живого события из очереди. Валидируется один раз
// на границе, дальше ядро работает только с типизированными полями.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Message   *RemoteMessage `json:"message,omitempty"`
	MessageID int64          `json:"message_id,omitempty"`
	ChannelID int64          `json:"channel_id,omitempty"`
	AuthorID  int64          `json:"author_id,omitempty"`
	User      *RemoteUser    `json:"user,omitempty"`
	Emoji     *Emoji         `json:"emoji,omitempty"`
}
