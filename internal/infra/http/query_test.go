package http

import (
	"net/url"
	"testing"
	"time"

	"discord-archive-bot/internal/domain"
)

func TestParseFilterCriteriaFull(t *testing.T) {
	values := url.Values{}
	values.Set("channel_id", "55,56")
	values.Set("author_id", "7")
	values.Set("from", "2024-03-01")
	values.Set("to", "2024-03-02T15:04:05Z")
	values.Set("has_attachments", "true")
	values.Set("attachment_name", "report")
	values.Add("reaction", "👍,🔥")
	values.Set("sort", "desc")
	values.Set("limit", "5")

	criteria := ParseFilterCriteria(values)

	if len(criteria.ChannelIDs) != 2 || criteria.ChannelIDs[0] != 55 || criteria.ChannelIDs[1] != 56 {
		t.Fatalf("неожиданные каналы: %v", criteria.ChannelIDs)
	}
	if len(criteria.AuthorIDs) != 1 || criteria.AuthorIDs[0] != 7 {
		t.Fatalf("неожиданные авторы: %v", criteria.AuthorIDs)
	}
	if criteria.From == nil || !criteria.From.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("неожиданная нижняя граница: %v", criteria.From)
	}
	if criteria.To == nil || criteria.To.IsZero() {
		t.Fatalf("верхняя граница потеряна")
	}
	if criteria.HasAttachments == nil || !*criteria.HasAttachments {
		t.Fatalf("фильтр вложений потерян")
	}
	if criteria.AttachmentName != "report" {
		t.Fatalf("имя вложения потеряно: %q", criteria.AttachmentName)
	}
	if len(criteria.ReactionEmojis) != 2 {
		t.Fatalf("неожиданные эмодзи: %v", criteria.ReactionEmojis)
	}
	if criteria.Sort != domain.SortDescending {
		t.Fatalf("неожиданная сортировка: %v", criteria.Sort)
	}
	if criteria.Limit != 5 {
		t.Fatalf("неожиданный лимит: %d", criteria.Limit)
	}
}

func TestParseFilterCriteriaDropsMalformed(t *testing.T) {
	values := url.Values{}
	values.Set("channel_id", "abc,-5,55")
	values.Set("author_id", "not-a-number")
	values.Set("from", "вчера")
	values.Set("has_attachments", "maybe")
	values.Set("sort", "random")
	values.Set("limit", "-3")

	criteria := ParseFilterCriteria(values)

	if len(criteria.ChannelIDs) != 1 || criteria.ChannelIDs[0] != 55 {
		t.Fatalf("кривые id должны отбрасываться молча: %v", criteria.ChannelIDs)
	}
	if criteria.AuthorIDs != nil {
		t.Fatalf("нечисловой автор должен отбрасываться: %v", criteria.AuthorIDs)
	}
	if criteria.From != nil {
		t.Fatalf("кривая дата должна отбрасываться: %v", criteria.From)
	}
	if criteria.HasAttachments != nil {
		t.Fatalf("кривой булев флаг должен отбрасываться")
	}
	if criteria.Sort != domain.SortAscending {
		t.Fatalf("неизвестная сортировка деградирует в ascending: %v", criteria.Sort)
	}
	if criteria.Limit != defaultFilterLimit {
		t.Fatalf("кривой лимит деградирует в дефолтный: %d", criteria.Limit)
	}
}
