// Package service provides the core logic of the Telegram bot: it turns one inbound
// update into router policy changes and control panel updates in the chat.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/constant"
	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Router defines the interface for router device and policy operations.
type Router interface {
	GetDevices(ctx context.Context) ([]models.Device, error)               // Lists all hosts known to the router.
	GetFavDevices(devices []models.Device) models.FavoriteDevices          // Selects favorites in display order.
	SetPolicy(ctx context.Context, mac string, policy models.Policy) error // Applies a policy to a host.
}

// Chat defines the interface for chat platform operations.
type Chat interface {
	GetUpdate(ctx context.Context) (models.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *models.Keyboard) (int, error)
	EditMessageReplyMarkup(ctx context.Context, chatID int64, messageID int, keyboard models.Keyboard) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string, showAlert bool) error
}

// SessionRepository defines the interface for chat session persistence.
type SessionRepository interface {
	GetSession(ctx context.Context, chatID int64) (models.ChatSession, error)
	UpdateSession(ctx context.Context, session models.ChatSession) error
}

// Dispatcher handles one update at a time, keeping the control panel of every chat
// consistent with the router state.
type Dispatcher struct {
	Router   Router            // Router client.
	Chat     Chat              // Chat platform client.
	Sessions SessionRepository // Per-chat panel message storage.
	Keyboard KeyboardBuilder   // Control panel layout builder, owns the restricted policy.
}

// NewDispatcher creates a new Dispatcher with the specified dependencies.
// Arguments:
//   - router: router client.
//   - chat: chat platform client.
//   - sessions: chat session repository.
//   - restricted: the policy buttons switch devices to.
//
// Returns a pointer to a Dispatcher.
func NewDispatcher(router Router, chat Chat, sessions SessionRepository, restricted models.Policy) *Dispatcher {
	return &Dispatcher{
		Router:   router,
		Chat:     chat,
		Sessions: sessions,
		Keyboard: KeyboardBuilder{Restricted: restricted},
	}
}

// Handle takes at most one pending update and processes it to completion.
// No pending update is not an error. Any error returned is local to this update.
func (d *Dispatcher) Handle(ctx context.Context) error {
	update, err := d.Chat.GetUpdate(ctx)
	if err != nil {
		return fmt.Errorf("failed to get update: %w", err)
	}
	if update == nil {
		return nil
	}

	log := logrus.WithField("rid", uuid.NewString())

	devices, err := d.Router.GetDevices(ctx)
	if err != nil {
		err = fmt.Errorf("failed to get devices: %w", err)
		// the button spinner keeps turning until the query is answered
		if query, ok := update.(*models.CallbackQuery); ok {
			if ackErr := d.Chat.AnswerCallbackQuery(ctx, query.ID, constant.TEXT_POLICY_NOT_CHANGE, true); ackErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to answer callback query: %w", ackErr))
			}
		}
		return err
	}
	favDevices := d.Router.GetFavDevices(devices)

	switch u := update.(type) {
	case *models.CallbackQuery:
		return d.handleCallbackQuery(ctx, log.WithField("chat_id", u.ChatID), u, favDevices)
	case *models.Message:
		return d.handleMessage(ctx, log.WithField("chat_id", u.ChatID), u, favDevices)
	default:
		log.Debugf("Skipping update of type %T", update)
		return nil
	}
}

// handleCallbackQuery toggles the policy of the pressed device, redraws the keyboard
// of the originating message and answers the query.
// The keyboard always shows the new policy; only the answer reports a router failure.
func (d *Dispatcher) handleCallbackQuery(ctx context.Context, log *logrus.Entry, query *models.CallbackQuery, favDevices models.FavoriteDevices) error {
	mac := query.Data
	currentPolicy := models.PolicyDefault
	if device, ok := favDevices.Find(mac); ok {
		// the stored MAC keys the redraw, callback data may differ in case
		mac = device.MAC
		currentPolicy = device.Policy
	} else {
		log.Infof("Device %s is not among favorites, toggling from %s", mac, models.PolicyDefault)
	}
	newPolicy := models.TogglePolicy(currentPolicy, d.Keyboard.Restricted)

	success := true
	if err := d.Router.SetPolicy(ctx, mac, newPolicy); err != nil {
		success = false
		log.WithError(err).Warnf("Failed to set policy %s for device %s", newPolicy, mac)
	}

	var errs []error
	keyboard := d.Keyboard.Build(favDevices, map[string]models.Policy{mac: newPolicy})
	if err := d.Chat.EditMessageReplyMarkup(ctx, query.ChatID, query.MessageID, keyboard); err != nil {
		errs = append(errs, fmt.Errorf("failed to edit keyboard of message %d: %w", query.MessageID, err))
	}

	alert := constant.TEXT_POLICY_NOT_CHANGE
	if success {
		alert = fmt.Sprintf(constant.TEXT_POLICY_CHANGED, mac, newPolicy)
	}
	if err := d.Chat.AnswerCallbackQuery(ctx, query.ID, alert, true); err != nil {
		errs = append(errs, fmt.Errorf("failed to answer callback query: %w", err))
	}

	if success {
		log.Infof("Policy of device %s changed from %s to %s", mac, currentPolicy, newPolicy)
	}
	return errors.Join(errs...)
}

// handleMessage replaces the chat's previous panel with a new one: the device keyboard
// for /start, a hint to call /start for anything else.
func (d *Dispatcher) handleMessage(ctx context.Context, log *logrus.Entry, message *models.Message, favDevices models.FavoriteDevices) error {
	session, err := d.Sessions.GetSession(ctx, message.ChatID)
	if err != nil {
		log.WithError(err).Warn("Failed to load chat session, assuming no previous panel")
		session = models.ChatSession{ChatID: message.ChatID}
	}

	if session.HasPanel() {
		if err = d.Chat.DeleteMessage(ctx, message.ChatID, session.LastMessageID); err != nil {
			log.WithError(err).Debugf("Previous panel %d was not deleted", session.LastMessageID)
		}
	}

	var messageID int
	if message.Text == constant.COMMAND_START {
		keyboard := d.Keyboard.Build(favDevices, nil)
		messageID, err = d.Chat.SendMessage(ctx, message.ChatID, constant.TEXT_CHOOSE_DEVICE, &keyboard)
	} else {
		messageID, err = d.Chat.SendMessage(ctx, message.ChatID, constant.TEXT_CALL_START, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", message.ChatID, err)
	}

	session = models.ChatSession{ChatID: message.ChatID, LastMessageID: messageID}
	if err = d.Sessions.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to store panel %d for chat %d: %w", messageID, message.ChatID, err)
	}
	return nil
}
