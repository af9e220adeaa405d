package http

import (
	"net/http"

	"finsync/internal/domain/paymentmethod"
)

type PaymentMethodHandler struct {
	methods *paymentmethod.Service
}

func NewPaymentMethodHandler(methods *paymentmethod.Service) *PaymentMethodHandler {
	return &PaymentMethodHandler{methods: methods}
}

type paymentMethodListResponse struct {
	PaymentMethods []paymentmethod.Summary `json:"paymentMethods"`
}

// HandleListPaymentMethods handles GET /api/payment-methods/
func (h *PaymentMethodHandler) HandleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	list, err := h.methods.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentMethodListResponse{PaymentMethods: list})
}

// HandlePaymentMethodByID handles GET and DELETE /api/payment-methods/{id}
func (h *PaymentMethodHandler) HandlePaymentMethodByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		detail, err := h.methods.Get(r.Context(), id, userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)

	case http.MethodDelete:
		if err := h.methods.Deactivate(r.Context(), id, userID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
