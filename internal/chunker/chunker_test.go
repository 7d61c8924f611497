package chunker

import (
	"strings"
	"testing"
)

func TestSplitEmpty(t *testing.T) {
	if parts := Split("", 100); len(parts) != 0 {
		t.Fatalf("expected no segments for empty input, got %d", len(parts))
	}
}

func TestSplitShortInput(t *testing.T) {
	parts := Split("hello world", 100)
	if len(parts) != 1 || parts[0] != "hello world" {
		t.Fatalf("expected single segment equal to input, got %#v", parts)
	}
}

func TestSplitExactLimit(t *testing.T) {
	text := strings.Repeat("a", 50)
	parts := Split(text, 50)
	if len(parts) != 1 || parts[0] != text {
		t.Fatalf("input at exactly limit must stay one segment, got %d segments", len(parts))
	}
}

func TestSplitPrefersNewline(t *testing.T) {
	text := "first line\nsecond line that goes on"
	parts := Split(text, 15)
	if len(parts) == 0 {
		t.Fatal("expected segments")
	}
	if parts[0] != "first line\n" {
		t.Fatalf("expected split after newline, got %q", parts[0])
	}
}

func TestSplitPrefersWhitespace(t *testing.T) {
	text := "alpha beta gamma delta"
	parts := Split(text, 12)
	for _, p := range parts[:len(parts)-1] {
		last := []rune(p)[len([]rune(p))-1]
		if last != ' ' {
			t.Fatalf("expected segment to end at whitespace, got %q", p)
		}
	}
}

func TestSplitHardCutLongToken(t *testing.T) {
	text := strings.Repeat("x", 95)
	parts := Split(text, 30)
	if len(parts) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(parts))
	}
	for i, p := range parts[:3] {
		if len([]rune(p)) != 30 {
			t.Fatalf("segment %d: expected hard cut at 30, got %d", i, len([]rune(p)))
		}
	}
}

func TestSplitFaithfulPartition(t *testing.T) {
	inputs := []string{
		"one two three four five six seven eight nine ten",
		strings.Repeat("word ", 500),
		strings.Repeat("長い日本語のテキスト ", 100),
		"para one\n\npara two\n\npara three " + strings.Repeat("z", 200),
		strings.Repeat("nowhitespaceatall", 20),
	}
	for _, text := range inputs {
		for _, limit := range []int{1, 7, 50, 4000} {
			parts := Split(text, limit)
			if joined := strings.Join(parts, ""); joined != text {
				t.Fatalf("limit %d: concatenation does not reproduce input", limit)
			}
			for _, p := range parts {
				if p == "" {
					t.Fatalf("limit %d: empty segment produced", limit)
				}
				if len([]rune(p)) > limit {
					t.Fatalf("limit %d: segment of %d runes exceeds limit", limit, len([]rune(p)))
				}
			}
		}
	}
}
