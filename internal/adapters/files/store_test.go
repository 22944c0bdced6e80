package files

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":          "report.pdf",
		"отчёт (final).pdf":   "final.pdf",
		"a b/c\\d.png":        "abcd.png",
		"snake_case-name.txt": "snake_case-name.txt",
	}
	for input, expected := range cases {
		if got := sanitizeFilename(input); got != expected {
			t.Fatalf("%q: ожидали %q, получили %q", input, expected, got)
		}
	}
}

func TestSanitizeFilenameFallback(t *testing.T) {
	got := sanitizeFilename("документ ()")
	if !strings.HasPrefix(got, "attachment_") {
		t.Fatalf("пустой результат санитизации должен давать uuid-имя, получили %q", got)
	}
	if got == sanitizeFilename("документ ()") {
		t.Fatalf("fallback-имена должны быть уникальными")
	}
}
