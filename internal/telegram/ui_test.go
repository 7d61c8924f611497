package telegram

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"

	"enhancebot/internal/gateway"
	"enhancebot/internal/session"
)

func TestPreviewTruncatesOnRunes(t *testing.T) {
	if got := preview("short text", 100); got != "short text" {
		t.Fatalf("short text changed: %q", got)
	}
	long := strings.Repeat("あ", 150)
	got := preview(long, 100)
	if want := strings.Repeat("あ", 100) + "..."; got != want {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := preview("line one\nline two", 100); got != "line one line two" {
		t.Fatalf("newlines not flattened: %q", got)
	}
}

func TestFormatUsername(t *testing.T) {
	u := &gotgbot.User{Id: 42, Username: "alice", FirstName: "Alice"}
	if got := formatUsername(u); got != "alice" {
		t.Fatalf("handle not preferred: %q", got)
	}
	u = &gotgbot.User{Id: 42, FirstName: "Alice", LastName: "Smith"}
	if got := formatUsername(u); got != "Alice Smith" {
		t.Fatalf("full name not used: %q", got)
	}
	u = &gotgbot.User{Id: 42}
	if got := formatUsername(u); got != "User_42" {
		t.Fatalf("synthetic name not used: %q", got)
	}
}

func TestHistoryTextNewestFirst(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sess := session.Session{History: []session.Record{
		{Input: "first input", Output: "first output", Timestamp: base},
		{Input: "second input", Output: "second output", Timestamp: base.Add(time.Hour)},
	}}
	text := historyText(sess)

	newest := strings.Index(text, "second input")
	oldest := strings.Index(text, "first input")
	if newest == -1 || oldest == -1 {
		t.Fatalf("entries missing from history text:\n%s", text)
	}
	if newest > oldest {
		t.Fatalf("newest entry not listed first:\n%s", text)
	}
}

func TestEnhanceFailureTextNeverEchoesCause(t *testing.T) {
	cases := []error{
		gateway.ErrNoCredential,
		fmt.Errorf("%w: status 500 from key sk-or-secret", gateway.ErrEnhancementFailed),
		errors.New("dial tcp: connection refused"),
	}
	for _, err := range cases {
		msg := enhanceFailureText(err)
		if msg == "" {
			t.Fatalf("empty message for %v", err)
		}
		if strings.Contains(msg, "sk-or-secret") || strings.Contains(msg, "status 500") {
			t.Fatalf("backend detail leaked to user: %q", msg)
		}
	}
}

func TestBuildMessagesOrder(t *testing.T) {
	msgs := buildMessages("my idea", "")
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("unexpected transcript: %+v", msgs)
	}

	msgs = buildMessages("improve it", "previous output")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "previous output" {
		t.Fatalf("assistant context misplaced: %+v", msgs[1])
	}
	if msgs[2].Role != "user" || msgs[2].Content != "improve it" {
		t.Fatalf("user message misplaced: %+v", msgs[2])
	}
}
