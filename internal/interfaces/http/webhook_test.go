package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/domain/webhook"
)

func TestHandlePlaidWebhook(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		dispatchErr    error
		expectedStatus int
	}{
		{
			name:           "Transactions queued",
			body:           `{"webhook_type":"TRANSACTIONS","webhook_code":"DEFAULT_UPDATE","item_id":"item-1"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Missing item",
			body:           `{"webhook_type":"TRANSACTIONS","webhook_code":"DEFAULT_UPDATE"}`,
			dispatchErr:    webhook.ErrItemIDRequired,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Queue down",
			body:           `{"webhook_type":"TRANSACTIONS","item_id":"item-1"}`,
			dispatchErr:    fmt.Errorf("%w: %w", webhook.ErrEnqueueFailed, errors.New("db down")),
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "Malformed",
			body:           `not json`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &MockDispatcher{
				DispatchFunc: func(ctx context.Context, p webhook.Payload) error { return tt.dispatchErr },
			}
			handler := NewWebhookHandler(dispatcher, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/webhooks/plaid", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			handler.HandlePlaidWebhook(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.JSONEq(t, `{"received":true}`, rr.Body.String())
				require.Len(t, dispatcher.payloads, 1)
				assert.Equal(t, "item-1", dispatcher.payloads[0].ItemID)
				assert.Equal(t, webhook.TypeTransactions, dispatcher.payloads[0].WebhookType)
			}
		})
	}
}

func TestHandlePlaidWebhook_ItemError(t *testing.T) {
	dispatcher := &MockDispatcher{}
	handler := NewWebhookHandler(dispatcher, nil)

	body := `{"webhook_type":"ITEM","webhook_code":"ERROR","item_id":"item-1","error":{"error_type":"ITEM_ERROR","error_code":"ITEM_LOGIN_REQUIRED","error_message":"login required"}}`
	rr := httptest.NewRecorder()
	handler.HandlePlaidWebhook(rr, httptest.NewRequest(http.MethodPost, "/api/webhooks/plaid", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, dispatcher.payloads, 1)
	require.NotNil(t, dispatcher.payloads[0].Error)
	assert.Equal(t, "ITEM_LOGIN_REQUIRED", dispatcher.payloads[0].Error.ErrorCode)
}

func TestHandlePlaidWebhook_Verification(t *testing.T) {
	body := `{"webhook_type":"TRANSACTIONS","item_id":"item-1"}`

	t.Run("verified", func(t *testing.T) {
		verifier := &MockVerifier{}
		dispatcher := &MockDispatcher{}
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/plaid", strings.NewReader(body))
		req.Header.Set("Plaid-Verification", "signed.jwt.token")
		rr := httptest.NewRecorder()

		NewWebhookHandler(dispatcher, verifier).HandlePlaidWebhook(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "signed.jwt.token", verifier.token)
		assert.Equal(t, body, string(verifier.body))
		assert.Len(t, dispatcher.payloads, 1)
	})

	t.Run("rejected", func(t *testing.T) {
		verifier := &MockVerifier{err: errors.New("bad signature")}
		dispatcher := &MockDispatcher{}
		rr := httptest.NewRecorder()

		NewWebhookHandler(dispatcher, verifier).HandlePlaidWebhook(rr, httptest.NewRequest(http.MethodPost, "/api/webhooks/plaid", strings.NewReader(body)))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, dispatcher.payloads)
	})
}
