package api

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// allowedUpdates lists the update kinds the bot asks Telegram for.
var allowedUpdates = []string{"message", "callback_query"}

// UpdateSource yields raw Telegram updates one at a time.
type UpdateSource interface {
	Next(ctx context.Context) (*tgbotapi.Update, error)
}

// LongPoller fetches updates with getUpdates, one per call.
type LongPoller struct {
	bot     *tgbotapi.BotAPI
	config  tgbotapi.UpdateConfig
	backoff time.Duration // Pause after a failed request
}

// NewLongPoller creates a LongPoller waiting up to timeoutSec seconds per request.
func NewLongPoller(bot *tgbotapi.BotAPI, timeoutSec int) *LongPoller {
	config := tgbotapi.NewUpdate(0)
	config.Limit = 1
	config.Timeout = timeoutSec
	config.AllowedUpdates = allowedUpdates
	return &LongPoller{
		bot:     bot,
		config:  config,
		backoff: 3 * time.Second,
	}
}

// Next returns the next pending update, or nil when the long poll timed out empty.
// The offset moves past every received update, so each update is delivered once.
func (p *LongPoller) Next(ctx context.Context) (*tgbotapi.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updates, err := p.bot.GetUpdates(p.config)
	if err != nil {
		logrus.WithError(err).Warnf("Failed to get updates, retrying in %v...", p.backoff)
		select {
		case <-ctx.Done():
		case <-time.After(p.backoff):
		}
		return nil, fmt.Errorf("failed to get updates: %w", err)
	}

	var next *tgbotapi.Update
	for i := range updates {
		if updates[i].UpdateID < p.config.Offset {
			continue
		}
		p.config.Offset = updates[i].UpdateID + 1
		if next == nil {
			next = &updates[i]
		}
	}
	return next, nil
}

// WebhookQueue buffers updates pushed by the webhook handler until the dispatcher
// takes them.
type WebhookQueue struct {
	updates chan tgbotapi.Update
}

// NewWebhookQueue creates a queue holding up to size updates.
func NewWebhookQueue(size int) *WebhookQueue {
	if size <= 0 {
		size = 100
	}
	return &WebhookQueue{updates: make(chan tgbotapi.Update, size)}
}

// Push enqueues an update without blocking. It returns false when the queue is full.
func (q *WebhookQueue) Push(update tgbotapi.Update) bool {
	select {
	case q.updates <- update:
		return true
	default:
		return false
	}
}

// Next blocks until an update arrives or ctx is done.
func (q *WebhookQueue) Next(ctx context.Context) (*tgbotapi.Update, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case update := <-q.updates:
		return &update, nil
	}
}
