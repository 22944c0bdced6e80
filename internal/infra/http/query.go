package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"discord-archive-bot/internal/domain"
)

const defaultFilterLimit = 100

// ParseFilterCriteria разбирает критерии выборки из query-параметров.
// Некорректные значения (нечисловые id, кривые даты) молча отбрасываются:
// фильтр сужает выдачу, а не валидирует запрос.
func ParseFilterCriteria(values url.Values) domain.FilterCriteria {
	criteria := domain.FilterCriteria{
		Sort:  domain.SortAscending,
		Limit: defaultFilterLimit,
	}

	criteria.ChannelIDs = parseIDList(values, "channel_id")
	criteria.AuthorIDs = parseIDList(values, "author_id")

	if ts := parseTime(values.Get("from")); ts != nil {
		criteria.From = ts
	}
	if ts := parseTime(values.Get("to")); ts != nil {
		criteria.To = ts
	}

	if raw := values.Get("has_attachments"); raw != "" {
		if has, err := strconv.ParseBool(raw); err == nil {
			criteria.HasAttachments = &has
		}
	}
	criteria.AttachmentName = strings.TrimSpace(values.Get("attachment_name"))

	for _, raw := range values["reaction"] {
		for _, emoji := range strings.Split(raw, ",") {
			if emoji = strings.TrimSpace(emoji); emoji != "" {
				criteria.ReactionEmojis = append(criteria.ReactionEmojis, emoji)
			}
		}
	}

	switch values.Get("sort") {
	case "desc":
		criteria.Sort = domain.SortDescending
	case "reactions":
		criteria.Sort = domain.SortByReactionCount
	}

	if raw := values.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			criteria.Limit = limit
		}
	}
	return criteria
}

func parseIDList(values url.Values, key string) []int64 {
	var ids []int64
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids
}

func parseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
