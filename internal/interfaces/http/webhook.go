package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"finsync/internal/domain/webhook"
	"finsync/internal/shared/logger"
)

const verificationHeader = "Plaid-Verification"

// Dispatcher routes a decoded webhook.
type Dispatcher interface {
	Dispatch(ctx context.Context, p webhook.Payload) error
}

// WebhookVerifier checks the signed verification header against the body.
type WebhookVerifier interface {
	Verify(ctx context.Context, token string, body []byte) error
}

type WebhookHandler struct {
	dispatcher Dispatcher
	verifier   WebhookVerifier
}

// NewWebhookHandler creates the handler. A nil verifier accepts unsigned
// webhooks.
func NewWebhookHandler(dispatcher Dispatcher, verifier WebhookVerifier) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, verifier: verifier}
}

type webhookAck struct {
	Received bool `json:"received"`
}

// HandlePlaidWebhook handles POST /api/webhooks/plaid. Work is queued, never
// run inline, so the sender is answered right away.
func (h *WebhookHandler) HandlePlaidWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	log := logger.FromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(r.Context(), r.Header.Get(verificationHeader), body); err != nil {
			log.Warn().Err(err).Msg("rejected unverified webhook")
			writeMessage(w, http.StatusUnauthorized, "Unverified webhook")
			return
		}
	}

	var p webhook.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), p); err != nil {
		if errors.Is(err, webhook.ErrEnqueueFailed) {
			// A 5xx makes the sender retry later.
			log.Error().Err(err).Str("item_id", p.ItemID).Msg("failed to queue webhook")
			writeMessage(w, http.StatusInternalServerError, "Failed to process webhook")
			return
		}
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, webhookAck{Received: true})
}
