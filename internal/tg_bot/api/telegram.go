package api

import (
	"context"
	"fmt"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Telegram adapts the Telegram Bot API to the chat operations of the bot.
type Telegram struct {
	bot    *tgbotapi.BotAPI // Telegram Bot API instance.
	source UpdateSource     // Long polling or webhook updates.
}

// NewTelegram creates a new Telegram adapter.
// Arguments:
//   - bot: Telegram Bot API instance.
//   - source: where inbound updates come from.
//
// Returns a pointer to a Telegram.
func NewTelegram(bot *tgbotapi.BotAPI, source UpdateSource) *Telegram {
	return &Telegram{bot: bot, source: source}
}

// GetUpdate returns the next update, or nil if there is none the bot handles.
func (t *Telegram) GetUpdate(ctx context.Context) (models.Update, error) {
	raw, err := t.source.Next(ctx)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return ConvertUpdate(raw), nil
}

// ConvertUpdate maps a raw Telegram update to a bot update. Callback queries from
// inline-mode messages carry no chat and are dropped, as are other update kinds.
func ConvertUpdate(raw *tgbotapi.Update) models.Update {
	switch {
	case raw.CallbackQuery != nil:
		query := raw.CallbackQuery
		if query.Message == nil || query.Message.Chat == nil {
			logrus.Debugf("Skipping callback query %s without a message", query.ID)
			return nil
		}
		return &models.CallbackQuery{
			ID:        query.ID,
			ChatID:    query.Message.Chat.ID,
			MessageID: query.Message.MessageID,
			Data:      query.Data,
		}
	case raw.Message != nil && raw.Message.Chat != nil:
		return &models.Message{
			ChatID: raw.Message.Chat.ID,
			Text:   raw.Message.Text,
		}
	default:
		return nil
	}
}

// SendMessage sends a text message with an optional inline keyboard.
// Returns the id of the sent message.
func (t *Telegram) SendMessage(_ context.Context, chatID int64, text string, keyboard *models.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = inlineMarkup(*keyboard)
	}
	sent, err := t.bot.Send(msg)
	if err != nil {
		logrus.WithError(err).Errorf("Failed to send message to chat %d: %s", chatID, text)
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessageReplyMarkup replaces the inline keyboard of an existing message.
func (t *Telegram) EditMessageReplyMarkup(_ context.Context, chatID int64, messageID int, keyboard models.Keyboard) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, inlineMarkup(keyboard))
	if _, err := t.bot.Request(edit); err != nil {
		return fmt.Errorf("failed to edit reply markup: %w", err)
	}
	return nil
}

// DeleteMessage deletes a message from a chat.
func (t *Telegram) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}
	return nil
}

// AnswerCallbackQuery acknowledges a button press, as a popup when showAlert is set.
func (t *Telegram) AnswerCallbackQuery(_ context.Context, callbackQueryID, text string, showAlert bool) error {
	callback := tgbotapi.NewCallback(callbackQueryID, text)
	callback.ShowAlert = showAlert
	if _, err := t.bot.Request(callback); err != nil {
		return fmt.Errorf("failed to answer callback query %s: %w", callbackQueryID, err)
	}
	return nil
}

// SetWebhook registers url as the webhook of the bot.
func (t *Telegram) SetWebhook(url string) error {
	webhook, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	webhook.AllowedUpdates = allowedUpdates
	if _, err = t.bot.Request(webhook); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the webhook so getUpdates can be used.
func (t *Telegram) DeleteWebhook() error {
	if _, err := t.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// inlineMarkup converts a keyboard layout into Telegram inline markup.
func inlineMarkup(keyboard models.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard.Rows))
	for _, row := range keyboard.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
