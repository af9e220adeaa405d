package http

import (
	"net/http"

	"finsync/internal/domain/banksync"
	"finsync/internal/domain/item"
)

type ItemHandler struct {
	link  *banksync.LinkService
	items *item.Service
}

func NewItemHandler(link *banksync.LinkService, items *item.Service) *ItemHandler {
	return &ItemHandler{link: link, items: items}
}

type ExchangeRequest struct {
	PublicToken string `json:"public_token"`
}

type linkTokenResponse struct {
	LinkToken string `json:"link_token"`
}

type itemListResponse struct {
	Items []*item.Item `json:"items"`
}

// HandleLinkToken handles POST /api/items/link-token
func (h *ItemHandler) HandleLinkToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	token, err := h.link.CreateLinkToken(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linkTokenResponse{LinkToken: token})
}

// HandleExchange handles POST /api/items/exchange
func (h *ItemHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ExchangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.link.Exchange(r.Context(), userID, req.PublicToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleListItems handles GET /api/items/
func (h *ItemHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.items.ListByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*item.Item{}
	}
	writeJSON(w, http.StatusOK, itemListResponse{Items: items})
}
