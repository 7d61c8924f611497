package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"enhancebot/internal/config"
	"enhancebot/internal/keypool"
	"enhancebot/internal/session"
	"enhancebot/internal/storage"
)

const (
	cbPrefix        = "eb:"
	cbMenu          = cbPrefix + "menu"
	cbHelp          = cbPrefix + "help"
	cbExamples      = cbPrefix + "examples"
	cbHistory       = cbPrefix + "view_history"
	cbFeedback      = cbPrefix + "feedback"
	cbStatus        = cbPrefix + "status"
	cbImprove       = cbPrefix + "improve"
	cbModelFree     = cbPrefix + "set_model:" + config.ModeFree
	cbModelAdvanced = cbPrefix + "set_model:" + config.ModeAdvanced
)

const previewLen = 100

func welcomeText(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(`Hi %s! I'm your prompt enhancement assistant.

Send me any rough idea or draft prompt and I'll turn it into a detailed, structured prompt ready for your favorite AI model.

Use the menu below or just type your prompt to get started.`, name)
}

func (s *Service) mainMenuText() string {
	return `Main menu

Send me any text to enhance it, or pick an option below.`
}

func helpText() string {
	return `How to use this bot:

1. Send me any text describing what you want from an AI model.
2. I'll rewrite it into a detailed, structured prompt.
3. Copy the result into ChatGPT, Claude, Gemini or any other model.

Commands:
/start - show the main menu
/help - this message
/history - your recent prompts
/model - switch between models
/feedback - leave feedback
/status - bot status

There's no special format. Just describe your task in plain language.`
}

func examplesText() string {
	return `Example inputs:

"write a blog post about remote work"
"python script to rename files"
"marketing plan for a coffee shop"
"explain quantum computing to a kid"

Send anything like that and I'll expand it into a full prompt with context, constraints and output format.`
}

func feedbackPromptText() string {
	return `I'd love to hear your thoughts!

Send me your feedback as a regular message and I'll pass it along. Anything counts: bugs, ideas, or just how the bot is working for you.`
}

func (s *Service) statusText() string {
	sessions, prompts := s.sessions.Stats()

	active := 0
	for _, ks := range s.pool.Statuses() {
		if ks.Status == keypool.StatusActive {
			active++
		}
	}
	backend := "operational"
	if active == 0 {
		backend = "degraded"
	}

	uptime := time.Since(s.startedAt).Round(time.Second)
	var b strings.Builder
	b.WriteString("Bot status\n\n")
	fmt.Fprintf(&b, "Backend: %s\n", backend)
	fmt.Fprintf(&b, "Active sessions: %d\n", sessions)
	fmt.Fprintf(&b, "Prompts enhanced (in memory): %d\n", prompts)
	fmt.Fprintf(&b, "Uptime: %s\n\n", uptime)
	fmt.Fprintf(&b, "Models:\n  %s: %s\n  %s: %s", config.ModeFree, s.models.Free, config.ModeAdvanced, s.models.Advanced)
	return b.String()
}

// historyText renders a session newest-first with short previews of
// input and output.
func historyText(sess session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your last %d enhancements (newest first):\n", len(sess.History))
	for i := len(sess.History) - 1; i >= 0; i-- {
		rec := sess.History[i]
		fmt.Fprintf(&b, "\n%d. %s\n", len(sess.History)-i, rec.Timestamp.Format("2006-01-02 15:04"))
		fmt.Fprintf(&b, "   In:  %s\n", preview(rec.Input, previewLen))
		fmt.Fprintf(&b, "   Out: %s\n", preview(rec.Output, previewLen))
	}
	b.WriteString("\nSend new text any time to enhance it.")
	return b.String()
}

func feedbackStatsText(stats storage.FeedbackStats) string {
	pct := func(n int) float64 {
		return float64(n) / float64(stats.Total) * 100
	}
	var b strings.Builder
	b.WriteString("Feedback statistics\n\n")
	fmt.Fprintf(&b, "Total entries: %d\n", stats.Total)
	fmt.Fprintf(&b, "Last 7 days: %d\n", stats.LastWeek)
	fmt.Fprintf(&b, "Unique users: %d\n", stats.UniqueUsers)
	fmt.Fprintf(&b, "With username: %d (%.1f%%)\n", stats.WithUsername, pct(stats.WithUsername))
	fmt.Fprintf(&b, "Unique handles: %d", stats.UniqueHandles)
	return b.String()
}

func preview(text string, limit int) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func (s *Service) mainMenuKeyboard() *gotgbot.InlineKeyboardMarkup {
	return &gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
		{
			{Text: "How it works", CallbackData: cbHelp},
			{Text: "Examples", CallbackData: cbExamples},
		},
		{
			{Text: "My history", CallbackData: cbHistory},
			{Text: "Status", CallbackData: cbStatus},
		},
		{
			{Text: "Leave feedback", CallbackData: cbFeedback},
		},
	}}
}

func (s *Service) backToMenuKeyboard() *gotgbot.InlineKeyboardMarkup {
	return &gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
		{{Text: "Back to menu", CallbackData: cbMenu}},
	}}
}

func (s *Service) modelKeyboard() *gotgbot.InlineKeyboardMarkup {
	return &gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
		{
			{Text: "Free (fast)", CallbackData: cbModelFree},
			{Text: "Advanced", CallbackData: cbModelAdvanced},
		},
		{{Text: "Back to menu", CallbackData: cbMenu}},
	}}
}

func (s *Service) afterEnhanceKeyboard() *gotgbot.InlineKeyboardMarkup {
	return &gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
		{
			{Text: "Improve further", CallbackData: cbImprove},
			{Text: "My history", CallbackData: cbHistory},
		},
		{{Text: "Back to menu", CallbackData: cbMenu}},
	}}
}

func (s *Service) replyWithMarkup(ctx *ext.Context, b *gotgbot.Bot, text string, markup *gotgbot.InlineKeyboardMarkup) error {
	if ctx == nil || ctx.EffectiveChat == nil {
		return nil
	}
	opts := &gotgbot.SendMessageOpts{}
	if markup != nil {
		opts.ReplyMarkup = *markup
	}
	_, err := b.SendMessage(ctx.EffectiveChat.Id, text, opts)
	return err
}
