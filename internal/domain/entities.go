package domain

import (
	"encoding/json"
	"time"
)

// User описывает зеркальную запись пользователя Discord.
// Поля перезаписываются целиком при каждом наблюдаемом событии (last-write-wins).
type User struct {
	ID            int64
	Username      string
	Discriminator string
	GlobalName    string
	Avatar        string
	Bot           bool
	System        bool
}

// Attachment описывает вложение сообщения в JSON-колонке attachments.
type Attachment struct {
	ID          int64  `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	LocalPath   string `json:"local_path,omitempty"`
	Downloaded  bool   `json:"downloaded"`
}

// Emoji идентифицирует реакцию: у кастомных эмодзи есть ID,
// у юникодных — только имя.
type Emoji struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

// Custom сообщает, является ли эмодзи кастомным (зарегистрированным на сервере).
func (e Emoji) Custom() bool { return e.ID != 0 }

// ReactionEntry — одна позиция денормализованного агрегата реакций.
// Инвариант: Count == len(UserIDs); запись с нулём пользователей удаляется.
type ReactionEntry struct {
	EmojiID   int64   `json:"emoji_id,omitempty"`
	EmojiName string  `json:"emoji_name"`
	UserIDs   []int64 `json:"users"`
	Count     int     `json:"count"`
}

// Matches проверяет, относится ли запись агрегата к эмодзи:
// кастомные сравниваются по ID, юникодные — по имени.
func (r ReactionEntry) Matches(e Emoji) bool {
	if e.Custom() {
		return r.EmojiID == e.ID
	}
	return r.EmojiID == 0 && r.EmojiName == e.Name
}

// MessageReference хранит ссылку на сообщение, на которое дан ответ.
type MessageReference struct {
	ChannelID int64 `json:"channel_id,omitempty"`
	MessageID int64 `json:"message_id,omitempty"`
}

// Message — каноничная запись сообщения, одна строка на platform id.
type Message struct {
	ID              int64
	ChannelID       int64
	AuthorID        *int64
	Content         *string
	Timestamp       time.Time
	EditedTimestamp *time.Time
	Type            MessageType
	Pinned          bool
	TTS             bool
	MentionEveryone bool
	WebhookID       *int64
	Flags           *int

	Mentions    []int64
	Attachments []Attachment
	Embeds      []json.RawMessage
	Reactions   []ReactionEntry

	Reference *MessageReference
	// ReferencedMessage — снимок исходного сообщения на момент захвата;
	// nil, если исходное сообщение недоступно.
	ReferencedMessage json.RawMessage
}

// MessageUpdate — частичное обновление: nil-поля не трогаются.
type MessageUpdate struct {
	Content         *string
	EditedTimestamp *time.Time
	Pinned          *bool
	Mentions        *[]int64
	Attachments     *[]Attachment
	Embeds          *[]json.RawMessage
	Reactions       *[]ReactionEntry
}

// MessageChange — пара для батчевого обновления.
type MessageChange struct {
	ID     int64
	Update MessageUpdate
}

// Channel — измерение каналов, пополняется по мере наблюдения.
type Channel struct {
	ID      int64
	GuildID int64
	Name    string
}

// SyncState хранит курсоры пагинации истории по каналу.
// Курсоры монотонны: двигаются только в направлении текущего обхода.
type SyncState struct {
	ChannelID               int64
	LastSyncedMessageID     *int64
	OldestSyncedMessageID   *int64
	LastSyncAt              time.Time
	InitialBackfillComplete bool
}
