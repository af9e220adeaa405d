package http

import (
	"net/http"
	"strings"

	"finsync/internal/domain/notification"
)

type NotificationHandler struct {
	notifications *notification.Service
}

func NewNotificationHandler(notifications *notification.Service) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// HandleRegisterDevice handles POST /api/notifications/devices
func (h *NotificationHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.notifications.RegisterDevice(r.Context(), notification.RegisterDeviceParams{
		UserID:   userID,
		Token:    strings.TrimSpace(req.Token),
		Platform: strings.ToLower(strings.TrimSpace(req.Platform)),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}
