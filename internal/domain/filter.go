package domain

import "time"

// SortOrder задаёт порядок выдачи при поиске сообщений.
type SortOrder string

const (
	SortAscending       SortOrder = "ascending"
	SortDescending      SortOrder = "descending"
	SortByReactionCount SortOrder = "by_reaction_count_descending"
)

// FilterCriteria — критерии выборки сообщений. Пустые поля не участвуют
// в запросе; некорректные значения отбрасываются ещё при разборе.
type FilterCriteria struct {
	ChannelIDs     []int64
	AuthorIDs      []int64
	From           *time.Time
	To             *time.Time
	HasAttachments *bool
	AttachmentName string
	// ReactionEmojis — пост-фильтр: применяется к результату основного запроса.
	ReactionEmojis []string
	Sort           SortOrder
	Limit          int
}
