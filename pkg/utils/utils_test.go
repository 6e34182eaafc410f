package utils

import (
	"strings"
	"testing"
)

func TestSnippet(t *testing.T) {
	tests := []struct {
		name    string
		content string
		keyword string
		window  int
		check   func(result string) bool
	}{
		{
			name:    "keyword in middle gets surrounded",
			content: strings.Repeat("a", 100) + " hello world " + strings.Repeat("b", 100),
			keyword: "hello",
			window:  30,
			check: func(result string) bool {
				return strings.Contains(result, "hello") && strings.HasPrefix(result, "...") && strings.HasSuffix(result, "...")
			},
		},
		{
			name:    "keyword at start needs no leading ellipsis",
			content: "hello world " + strings.Repeat("b", 100),
			keyword: "hello",
			window:  20,
			check: func(result string) bool {
				return strings.Contains(result, "hello") && !strings.HasPrefix(result, "...")
			},
		},
		{
			name:    "missing keyword falls back to head",
			content: strings.Repeat("x", 100),
			keyword: "absent",
			window:  10,
			check: func(result string) bool {
				return strings.HasPrefix(result, "xxxxxxxxxx") && strings.HasSuffix(result, "...")
			},
		},
		{
			name:    "short content returned whole",
			content: "short",
			keyword: "absent",
			window:  10,
			check: func(result string) bool {
				return result == "short"
			},
		},
		{
			name:    "case insensitive match",
			content: "Some Title Here",
			keyword: "title",
			window:  30,
			check: func(result string) bool {
				return strings.Contains(result, "Title")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Snippet(tt.content, tt.keyword, tt.window)
			if !tt.check(got) {
				t.Errorf("Snippet(%q, %q, %d) = %q", tt.content, tt.keyword, tt.window, got)
			}
		})
	}
}

func TestParseAcceptLanguage(t *testing.T) {
	res := ParseAcceptLanguage("zh-CN;q=0.8,en;q=0.9")
	if len(res) != 2 {
		t.Fatalf("expected 2 languages, got %d", len(res))
	}
	if res[0].Tag != "en" {
		t.Errorf("expected en first by weight, got %s", res[0].Tag)
	}
}

func TestGenUniqIDNeedsWorker(t *testing.T) {
	SetupIDWorker(1)
	first := GenUniqID()
	second := GenUniqID()
	if second <= first {
		t.Errorf("expected time ordered ids, got %d then %d", first, second)
	}
	if GenUniqIDStr() == "" {
		t.Error("expected a non-empty id string")
	}
}
