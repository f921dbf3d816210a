// Package http serves the Telegram webhook and the health endpoint.
package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// WebhookPath is the route Telegram posts updates to. The last segment is the secret.
const WebhookPath = "/webhook/{secret}"

// Queue accepts updates received over the webhook.
type Queue interface {
	Push(update tgbotapi.Update) bool
}

// Handler receives Telegram updates and hands them to the queue.
type Handler struct {
	queue  Queue  // Updates waiting for the dispatcher.
	secret string // Secret path segment registered with Telegram.
}

// NewHandler creates a new Handler.
// Arguments:
//   - queue: destination of received updates.
//   - secret: path segment that must match on every webhook call.
//
// Returns a pointer to a Handler.
func NewHandler(queue Queue, secret string) *Handler {
	return &Handler{
		queue:  queue,
		secret: secret,
	}
}

// Router builds the chi router with the webhook and health routes.
func (h *Handler) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(LogrusLog())

	router.Post(WebhookPath, h.ReceiveUpdate)
	router.Get("/healthz", h.Health)
	return router
}

// ReceiveUpdate decodes an update from the body and enqueues it.
func (h *Handler) ReceiveUpdate(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		logrus.Warnf("Webhook call with wrong secret from %s", r.RemoteAddr)
		http.NotFound(w, r)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		logrus.WithError(err).Error("Failed to decode webhook update")
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}

	if !h.queue.Push(update) {
		// Telegram retries the delivery later
		logrus.Warnf("Update queue is full, update %d rejected", update.UpdateID)
		http.Error(w, "queue is full", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
