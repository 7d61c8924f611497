package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"enhancebot/internal/chunker"
	"enhancebot/internal/gateway"
	"enhancebot/internal/session"
)

// enhanceTimeout bounds one full enhancement including gateway
// retries and failover.
const enhanceTimeout = 3 * time.Minute

func (s *Service) start(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	s.sessions.Touch(userID(ctx), s.now())
	return s.replyWithMarkup(ctx, b, welcomeText(ctx.EffectiveUser.FirstName), s.mainMenuKeyboard())
}

func (s *Service) help(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser != nil {
		s.sessions.Touch(userID(ctx), s.now())
	}
	return s.reply(ctx, b, helpText())
}

func (s *Service) history(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	return s.sendHistory(b, ctx)
}

func (s *Service) sendHistory(b *gotgbot.Bot, ctx *ext.Context) error {
	sess := s.sessions.GetOrCreate(userID(ctx), s.now())
	if len(sess.History) == 0 {
		return s.replyWithMarkup(ctx, b,
			"You don't have any prompt history yet.\n\nStart by sending me a prompt to enhance!",
			s.backToMenuKeyboard())
	}

	parts := chunker.Split(historyText(sess), s.chunkLimit)
	for i, part := range parts {
		if i == len(parts)-1 {
			return s.replyWithMarkup(ctx, b, part, s.backToMenuKeyboard())
		}
		if err := s.reply(ctx, b, part); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) model(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	sess := s.sessions.GetOrCreate(userID(ctx), s.now())
	text := fmt.Sprintf("Current model: %s\n\nChoose a different model:", s.models.ModeOf(sess.Model))
	return s.replyWithMarkup(ctx, b, text, s.modelKeyboard())
}

func (s *Service) feedback(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	s.sessions.Touch(userID(ctx), s.now())
	if err := s.feedbackMode.Enter(context.Background(), userID(ctx)); err != nil {
		s.logger.Error().Err(err).Msg("failed to enter feedback mode")
		return s.reply(ctx, b, "Feedback is unavailable right now. Please try again later.")
	}
	return s.reply(ctx, b, feedbackPromptText())
}

func (s *Service) status(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser != nil {
		s.sessions.Touch(userID(ctx), s.now())
	}
	return s.reply(ctx, b, s.statusText())
}

func (s *Service) feedbackStats(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireAdmin(b, ctx) {
		return nil
	}

	stats, err := s.feedbackDB.FeedbackStats(context.Background(), s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("feedback stats failed")
		return s.reply(ctx, b, "Failed to load feedback statistics.")
	}
	if stats.Total == 0 {
		return s.reply(ctx, b, "No feedback data available.")
	}
	return s.reply(ctx, b, feedbackStatsText(stats))
}

func (s *Service) exportFeedback(b *gotgbot.Bot, ctx *ext.Context) error {
	if !s.requireAdmin(b, ctx) {
		return nil
	}

	var buf bytes.Buffer
	n, err := s.feedbackDB.ExportCSV(context.Background(), &buf)
	if err != nil {
		s.logger.Error().Err(err).Msg("feedback export failed")
		return s.reply(ctx, b, "Failed to export feedback.")
	}
	if n == 0 {
		return s.reply(ctx, b, "No feedback data available to export.")
	}

	filename := fmt.Sprintf("feedback_export_%s.csv", s.now().Format("2006-01-02"))
	_, err = b.SendDocument(ctx.EffectiveChat.Id, gotgbot.InputFileByReader(filename, &buf), &gotgbot.SendDocumentOpts{
		Caption: fmt.Sprintf("Feedback export (%d entries)", n),
	})
	if err != nil {
		return fmt.Errorf("send feedback export: %w", err)
	}
	s.logger.Info().Int("entries", n).Int64("admin_id", userID(ctx)).Msg("feedback exported")
	return nil
}

func (s *Service) onText(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	if msg == nil || ctx.EffectiveChat == nil || ctx.EffectiveUser == nil {
		return nil
	}
	text := strings.TrimSpace(msg.GetText())
	if text == "" {
		return s.reply(ctx, b, "Please provide some text to enhance.")
	}

	uid := userID(ctx)
	active, err := s.feedbackMode.Active(context.Background(), uid)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", uid).Msg("failed to read feedback mode")
	}
	if active {
		return s.handleFeedbackText(b, ctx, text)
	}

	if !s.allowRate(uid, b, ctx) {
		return nil
	}
	return s.enhance(b, ctx, text, "")
}

// enhance runs the full flow for one input: progress message, gateway
// call, history append, chunked delivery. assistantContext is set for
// improve-further requests.
func (s *Service) enhance(b *gotgbot.Bot, ctx *ext.Context, input, assistantContext string) error {
	chat := ctx.EffectiveChat
	uid := userID(ctx)
	sess := s.sessions.GetOrCreate(uid, s.now())

	_, _ = b.SendChatAction(chat.Id, "typing", nil)
	progress := s.sendProgress(b, ctx)

	reqCtx, cancel := context.WithTimeout(context.Background(), enhanceTimeout)
	defer cancel()
	res, err := s.gw.Enhance(reqCtx, sess.Model, buildMessages(input, assistantContext))
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", uid).Str("model", sess.Model).Msg("enhancement failed")
		return s.reply(ctx, b, enhanceFailureText(err))
	}

	s.sessions.Append(uid, session.Record{
		Input:     input,
		Output:    res.Text,
		ModelUsed: res.ModelUsed,
		Timestamp: s.now(),
	})

	if progress != nil {
		_, _, _ = progress.EditText(b, "Here's your enhanced prompt:", nil)
	}
	for _, part := range chunker.Split(res.Text, s.chunkLimit) {
		if _, err := b.SendMessage(chat.Id, part, nil); err != nil {
			return fmt.Errorf("send enhanced prompt: %w", err)
		}
	}
	return s.replyWithMarkup(ctx, b,
		"Paste this prompt into your favorite AI model. What would you like to do next?",
		s.afterEnhanceKeyboard())
}

func (s *Service) handleFeedbackText(b *gotgbot.Bot, ctx *ext.Context, text string) error {
	uid := userID(ctx)
	username := formatUsername(ctx.EffectiveUser)

	if err := s.feedbackDB.AddFeedback(context.Background(), uid, &username, text); err != nil {
		s.logger.Error().Err(err).Int64("user_id", uid).Msg("failed to store feedback")
		return s.reply(ctx, b, "Could not save your feedback right now. Please try again later.")
	}
	s.metrics.FeedbackStored.Inc()
	s.logger.Info().Int64("user_id", uid).Msg("feedback stored")

	if err := s.feedbackMode.Clear(context.Background(), uid); err != nil {
		s.logger.Error().Err(err).Int64("user_id", uid).Msg("failed to clear feedback mode")
	}
	return s.replyWithMarkup(ctx, b,
		"Thank you for your feedback!\n\nIt has been recorded and will help improve the bot.",
		s.backToMenuKeyboard())
}

func (s *Service) sendProgress(b *gotgbot.Bot, ctx *ext.Context) *gotgbot.Message {
	msg := ctx.EffectiveMessage
	if msg == nil {
		return nil
	}
	opts := &gotgbot.SendMessageOpts{
		ReplyParameters: &gotgbot.ReplyParameters{MessageId: msg.MessageId},
	}
	progress, err := b.SendMessage(ctx.EffectiveChat.Id, "Analyzing your input...", opts)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to send progress message")
		return nil
	}
	return progress
}

// enhanceFailureText maps gateway outcomes to short user-facing
// messages. Underlying causes stay in the logs.
func enhanceFailureText(err error) string {
	switch {
	case errors.Is(err, gateway.ErrNoCredential):
		return "The AI service is temporarily unavailable. Please try again in a few minutes."
	case errors.Is(err, gateway.ErrEnhancementFailed):
		return "Could not enhance your prompt right now. Please try again, or switch models with /model."
	default:
		return "Something went wrong. Please try again or use /help for assistance."
	}
}

func (s *Service) allowRate(uid int64, b *gotgbot.Bot, ctx *ext.Context) bool {
	if uid == 0 || s.rateLimiter == nil {
		return true
	}
	ok, _, resetAt, err := s.rateLimiter.Allow(context.Background(), uid, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("rate limiter failed")
		return true
	}
	if ok {
		return true
	}
	s.metrics.RateLimited.Inc()
	_ = s.reply(ctx, b, "Rate limit exceeded. Try again after "+resetAt.Format("15:04 UTC"))
	return false
}

func (s *Service) requireAdmin(b *gotgbot.Bot, ctx *ext.Context) bool {
	uid := userID(ctx)
	if uid == 0 || s.adminUserID == 0 || uid != s.adminUserID {
		s.logger.Warn().Int64("user_id", uid).Msg("unauthorized admin command")
		_ = s.reply(ctx, b, "You don't have permission to use this command.")
		return false
	}
	return true
}

func (s *Service) reply(ctx *ext.Context, b *gotgbot.Bot, text string) error {
	if ctx.EffectiveChat == nil {
		return nil
	}
	_, err := b.SendMessage(ctx.EffectiveChat.Id, text, nil)
	return err
}
