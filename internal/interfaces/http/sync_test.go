package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
)

type codedErr struct{ code string }

func (e *codedErr) Error() string     { return "plaid: " + e.code }
func (e *codedErr) ErrorCode() string { return e.code }

func TestHandleSync(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		syncErr        error
		expectedStatus int
		expectedCode   string
	}{
		{name: "Success", body: `{"itemId":"item-1"}`, expectedStatus: http.StatusOK},
		{name: "Alternate key", body: `{"externalItemId":"item-1"}`, expectedStatus: http.StatusOK},
		{name: "Missing item", body: `{}`, syncErr: banksync.ErrItemIDRequired, expectedStatus: http.StatusBadRequest},
		{name: "Not owned", body: `{"itemId":"item-1"}`, syncErr: item.ErrItemNotFound, expectedStatus: http.StatusNotFound},
		{
			name:           "Upstream failure",
			body:           `{"itemId":"item-1"}`,
			syncErr:        fmt.Errorf("%w: %w", banksync.ErrSyncFailed, &codedErr{code: "ITEM_LOGIN_REQUIRED"}),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "ITEM_LOGIN_REQUIRED",
		},
		{name: "Bad body", body: `{`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got banksync.SyncRequest
			syncer := &MockSyncer{
				SyncItemFunc: func(ctx context.Context, req banksync.SyncRequest) (*banksync.SyncResult, error) {
					got = req
					if tt.syncErr != nil {
						return nil, tt.syncErr
					}
					return &banksync.SyncResult{Synced: 2, Skipped: 1, Total: 3}, nil
				},
			}
			handler := NewSyncHandler(syncer)

			req := withUser(httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(tt.body)), 7)
			rr := httptest.NewRecorder()
			handler.HandleSync(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			switch tt.expectedStatus {
			case http.StatusOK:
				assert.Equal(t, banksync.SyncRequest{ExternalItemID: "item-1", UserID: 7}, got)
				assert.JSONEq(t, `{"synced":2,"skipped":1,"total":3,"incomplete":false}`, rr.Body.String())
			case http.StatusInternalServerError:
				var res errorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
				assert.Equal(t, "Failed to sync transactions", res.Error)
				assert.Equal(t, tt.expectedCode, res.Code)
				assert.NotContains(t, rr.Body.String(), "plaid:", "upstream detail stays server side")
			}
		})
	}
}

func TestHandleSync_MethodAndAuth(t *testing.T) {
	handler := NewSyncHandler(&MockSyncer{})

	rr := httptest.NewRecorder()
	handler.HandleSync(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/sync", nil), 7))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	handler.HandleSync(rr, httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{"itemId":"x"}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
