package http

import (
	"context"
	"net/http"
	"strings"

	"finsync/internal/domain/banksync"
)

// ItemSyncer runs a sync of one item.
type ItemSyncer interface {
	SyncItem(ctx context.Context, req banksync.SyncRequest) (*banksync.SyncResult, error)
}

type SyncHandler struct {
	syncer ItemSyncer
}

func NewSyncHandler(syncer ItemSyncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

// SyncRequest accepts the item id under either key.
type SyncRequest struct {
	ItemID         string `json:"itemId"`
	ExternalItemID string `json:"externalItemId"`
}

// HandleSync handles POST /api/sync. The sync runs inline and is scoped to
// items the caller owns.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SyncRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	itemID := strings.TrimSpace(req.ItemID)
	if itemID == "" {
		itemID = strings.TrimSpace(req.ExternalItemID)
	}

	res, err := h.syncer.SyncItem(r.Context(), banksync.SyncRequest{ExternalItemID: itemID, UserID: userID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
