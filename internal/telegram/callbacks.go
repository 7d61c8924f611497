package telegram

import (
	"errors"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"enhancebot/internal/session"
)

func (s *Service) onCallback(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.CallbackQuery == nil {
		return nil
	}

	data := strings.TrimSpace(ctx.CallbackQuery.Data)
	s.answerCallback(b, ctx, "", false)

	switch data {
	case cbMenu:
		return s.editOrReplyCallback(ctx, b, s.mainMenuText(), s.mainMenuKeyboard())

	case cbHelp:
		return s.editOrReplyCallback(ctx, b, helpText(), s.backToMenuKeyboard())

	case cbExamples:
		return s.editOrReplyCallback(ctx, b, examplesText(), s.backToMenuKeyboard())

	case cbHistory:
		return s.sendHistory(b, ctx)

	case cbStatus:
		return s.editOrReplyCallback(ctx, b, s.statusText(), s.backToMenuKeyboard())

	case cbFeedback:
		return s.feedback(b, ctx)

	case cbModelFree, cbModelAdvanced:
		return s.setModelCallback(b, ctx, strings.TrimPrefix(data, cbPrefix+"set_model:"))

	case cbImprove:
		return s.improveCallback(b, ctx)
	}

	s.logger.Warn().Str("data", data).Msg("unknown callback")
	return nil
}

func (s *Service) setModelCallback(b *gotgbot.Bot, ctx *ext.Context, mode string) error {
	model := s.models.ByMode(mode)
	if err := s.sessions.SetModel(userID(ctx), model, s.now()); err != nil {
		if errors.Is(err, session.ErrInvalidModel) {
			s.answerCallback(b, ctx, "That model is not available.", true)
			return nil
		}
		return err
	}
	s.logger.Info().Int64("user_id", userID(ctx)).Str("model", model).Msg("model switched")
	text := "Model switched to " + mode + ".\n\nSend me a prompt to enhance with the new model."
	return s.editOrReplyCallback(ctx, b, text, s.backToMenuKeyboard())
}

// improveCallback re-runs the gateway on the most recent output,
// feeding it back as assistant context.
func (s *Service) improveCallback(b *gotgbot.Bot, ctx *ext.Context) error {
	uid := userID(ctx)
	sess := s.sessions.GetOrCreate(uid, s.now())
	if len(sess.History) == 0 {
		s.answerCallback(b, ctx, "Nothing to improve yet. Send me a prompt first.", true)
		return nil
	}
	if !s.allowRate(uid, b, ctx) {
		return nil
	}
	last := sess.History[len(sess.History)-1]
	return s.enhance(b, ctx,
		"Improve this prompt further. Make it more specific, structured and detailed.",
		last.Output)
}

func (s *Service) answerCallback(b *gotgbot.Bot, ctx *ext.Context, text string, alert bool) {
	if ctx == nil || ctx.CallbackQuery == nil {
		return
	}
	opts := &gotgbot.AnswerCallbackQueryOpts{ShowAlert: alert}
	if text != "" {
		opts.Text = text
	}
	_, _ = b.AnswerCallbackQuery(ctx.CallbackQuery.Id, opts)
}

func (s *Service) editOrReplyCallback(ctx *ext.Context, b *gotgbot.Bot, text string, markup *gotgbot.InlineKeyboardMarkup) error {
	if ctx != nil && ctx.CallbackQuery != nil && ctx.CallbackQuery.Message != nil {
		opts := &gotgbot.EditMessageTextOpts{}
		if markup != nil {
			opts.ReplyMarkup = *markup
		}
		_, _, err := ctx.CallbackQuery.Message.EditText(b, text, opts)
		if err == nil {
			return nil
		}
		if strings.Contains(strings.ToLower(err.Error()), "message is not modified") {
			return nil
		}
		// Fallback to sending a regular message if edit failed.
	}
	return s.replyWithMarkup(ctx, b, text, markup)
}
