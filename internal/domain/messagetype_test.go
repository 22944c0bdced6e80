package domain

import "testing"

func TestResolveMessageType(t *testing.T) {
	cases := map[int]MessageType{
		0:    MessageTypeDefault,
		19:   MessageTypeReply,
		46:   MessageTypePollResult,
		9999: MessageTypeDefault,
		-1:   MessageTypeDefault,
	}
	for code, expected := range cases {
		if got := ResolveMessageType(code); got != expected {
			t.Fatalf("код %d: ожидали %s, получили %s", code, expected, got)
		}
	}
}

func TestReactionEntryMatches(t *testing.T) {
	unicode := ReactionEntry{EmojiName: "👍"}
	if !unicode.Matches(Emoji{Name: "👍"}) {
		t.Fatalf("юникодный эмодзи матчится по имени")
	}
	if unicode.Matches(Emoji{ID: 777, Name: "👍"}) {
		t.Fatalf("кастомный эмодзи не матчится с юникодной записью")
	}

	custom := ReactionEntry{EmojiID: 777, EmojiName: "party"}
	if !custom.Matches(Emoji{ID: 777, Name: "переименован"}) {
		t.Fatalf("кастомный эмодзи матчится по id независимо от имени")
	}
	if custom.Matches(Emoji{Name: "party"}) {
		t.Fatalf("юникодный эмодзи не матчится с кастомной записью")
	}
}
