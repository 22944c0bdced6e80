package main

import (
	"encoding/json"
	"time"

	"discord-archive-bot/internal/domain"
)

type messageResponse struct {
	ID              int64                  `json:"id"`
	ChannelID       int64                  `json:"channel_id"`
	AuthorID        *int64                 `json:"author_id,omitempty"`
	Content         *string                `json:"content,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	EditedTimestamp *time.Time             `json:"edited_timestamp,omitempty"`
	Type            string                 `json:"type"`
	Pinned          bool                   `json:"pinned"`
	Mentions        []int64                `json:"mentions,omitempty"`
	Attachments     []domain.Attachment    `json:"attachments,omitempty"`
	Embeds          []json.RawMessage      `json:"embeds,omitempty"`
	Reactions       []domain.ReactionEntry `json:"reactions,omitempty"`
	ReferencedID    *int64                 `json:"referenced_message_id,omitempty"`
}

type syncStatusResponse struct {
	ChannelID               int64     `json:"channel_id"`
	LastSyncedMessageID     *int64    `json:"last_synced_message_id,omitempty"`
	OldestSyncedMessageID   *int64    `json:"oldest_synced_message_id,omitempty"`
	LastSyncAt              time.Time `json:"last_sync_at"`
	InitialBackfillComplete bool      `json:"initial_backfill_complete"`
	LatestStoredMessageID   int64     `json:"latest_stored_message_id,omitempty"`
	OldestStoredMessageID   int64     `json:"oldest_stored_message_id,omitempty"`
}

type userResponse struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	GlobalName    string `json:"global_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot"`
	System        bool   `json:"system"`
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:            user.ID,
		Username:      user.Username,
		Discriminator: user.Discriminator,
		GlobalName:    user.GlobalName,
		Avatar:        user.Avatar,
		Bot:           user.Bot,
		System:        user.System,
	}
}

func toMessageResponse(msg domain.Message) messageResponse {
	resp := messageResponse{
		ID:              msg.ID,
		ChannelID:       msg.ChannelID,
		AuthorID:        msg.AuthorID,
		Content:         msg.Content,
		Timestamp:       msg.Timestamp,
		EditedTimestamp: msg.EditedTimestamp,
		Type:            string(msg.Type),
		Pinned:          msg.Pinned,
		Mentions:        msg.Mentions,
		Attachments:     msg.Attachments,
		Embeds:          msg.Embeds,
		Reactions:       msg.Reactions,
	}
	if msg.Reference != nil && msg.Reference.MessageID != 0 {
		id := msg.Reference.MessageID
		resp.ReferencedID = &id
	}
	return resp
}
