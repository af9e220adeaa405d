package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
	"finsync/internal/domain/notification"
	"finsync/internal/domain/paymentmethod"
	"finsync/internal/domain/transaction"
	"finsync/internal/domain/webhook"
	"finsync/internal/shared/logger"
	"finsync/internal/shared/middleware"
)

const maxBodySize = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps a domain error to a status code. Upstream and store
// failures are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, item.ErrItemNotFound):
		writeMessage(w, http.StatusNotFound, "Item not found")
	case errors.Is(err, transaction.ErrTransactionNotFound):
		writeMessage(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, paymentmethod.ErrPaymentMethodNotFound):
		writeMessage(w, http.StatusNotFound, "Payment method not found")

	case errors.Is(err, banksync.ErrItemIDRequired),
		errors.Is(err, webhook.ErrItemIDRequired),
		errors.Is(err, item.ErrInvalidItemID):
		writeMessage(w, http.StatusBadRequest, "Item ID is required")
	case errors.Is(err, banksync.ErrPublicTokenRequired):
		writeMessage(w, http.StatusBadRequest, "public_token is required")
	case errors.Is(err, notification.ErrInvalidToken),
		errors.Is(err, notification.ErrInvalidPlatform):
		writeMessage(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, banksync.ErrSyncFailed):
		logger.FromContext(r.Context()).Error().Err(err).Msg("sync failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "Failed to sync transactions",
			Code:  banksync.ErrorCode(err),
		})
	case errors.Is(err, banksync.ErrLinkFailed):
		logger.FromContext(r.Context()).Error().Err(err).Msg("link failed")
		writeMessage(w, http.StatusInternalServerError, "Failed to link item")

	default:
		logger.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// requireUser returns the authenticated user or answers 401.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok || userID <= 0 {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return 0, false
	}
	return userID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.FromContext(r.Context()).Debug().Err(err).Msg("invalid request body")
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
