package discord

import (
	"encoding/json"
	"strconv"
	"time"

	"discord-archive-bot/internal/domain"
)

// Сырые структуры REST API: snowflake-идентификаторы приходят строками
// и конвертируются в int64 на этой границе.

type wireUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name"`
	Avatar        string `json:"avatar"`
	Bot           bool   `json:"bot"`
	System        bool   `json:"system"`
}

type wireEmoji struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

type wireReaction struct {
	Count int       `json:"count"`
	Emoji wireEmoji `json:"emoji"`
}

type wireAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type wireReference struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

type wireMessage struct {
	ID               string            `json:"id"`
	ChannelID        string            `json:"channel_id"`
	Author           *wireUser         `json:"author"`
	Content          string            `json:"content"`
	Timestamp        time.Time         `json:"timestamp"`
	EditedTimestamp  *time.Time        `json:"edited_timestamp"`
	Type             int               `json:"type"`
	Pinned           bool              `json:"pinned"`
	TTS              bool              `json:"tts"`
	MentionEveryone  bool              `json:"mention_everyone"`
	WebhookID        *string           `json:"webhook_id"`
	Flags            *int              `json:"flags"`
	Mentions         []wireUser        `json:"mentions"`
	Attachments      []wireAttachment  `json:"attachments"`
	Embeds           []json.RawMessage `json:"embeds"`
	Reactions        []wireReaction    `json:"reactions"`
	MessageReference *wireReference    `json:"message_reference"`
}

func parseSnowflake(s string) int64 {
	if s == "" {
		return 0
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (u *wireUser) toDomain() *domain.RemoteUser {
	if u == nil {
		return nil
	}
	return &domain.RemoteUser{
		ID:            parseSnowflake(u.ID),
		Username:      u.Username,
		Discriminator: u.Discriminator,
		GlobalName:    u.GlobalName,
		Avatar:        u.Avatar,
		Bot:           u.Bot,
		System:        u.System,
	}
}

func (e wireEmoji) toDomain() domain.Emoji {
	emoji := domain.Emoji{Name: e.Name}
	if e.ID != nil {
		emoji.ID = parseSnowflake(*e.ID)
	}
	return emoji
}

func (m wireMessage) toDomain() domain.RemoteMessage {
	msg := domain.RemoteMessage{
		ID:              parseSnowflake(m.ID),
		ChannelID:       parseSnowflake(m.ChannelID),
		Author:          m.Author.toDomain(),
		Content:         m.Content,
		Timestamp:       m.Timestamp,
		EditedTimestamp: m.EditedTimestamp,
		TypeCode:        m.Type,
		Pinned:          m.Pinned,
		TTS:             m.TTS,
		MentionEveryone: m.MentionEveryone,
		Flags:           m.Flags,
		Embeds:          m.Embeds,
	}
	if m.WebhookID != nil {
		id := parseSnowflake(*m.WebhookID)
		msg.WebhookID = &id
	}
	for _, mention := range m.Mentions {
		if id := parseSnowflake(mention.ID); id != 0 {
			msg.MentionIDs = append(msg.MentionIDs, id)
		}
	}
	for _, att := range m.Attachments {
		msg.Attachments = append(msg.Attachments, domain.RemoteAttachment{
			ID:          parseSnowflake(att.ID),
			Filename:    att.Filename,
			URL:         att.URL,
			ContentType: att.ContentType,
			Size:        att.Size,
		})
	}
	for _, reaction := range m.Reactions {
		msg.Reactions = append(msg.Reactions, domain.RemoteReaction{
			Emoji: reaction.Emoji.toDomain(),
			Count: reaction.Count,
		})
	}
	if m.MessageReference != nil {
		msg.Reference = &domain.MessageReference{
			ChannelID: parseSnowflake(m.MessageReference.ChannelID),
			MessageID: parseSnowflake(m.MessageReference.MessageID),
		}
	}
	return msg
}
