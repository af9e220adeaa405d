package webhook

import "errors"

// Webhook types handled by the dispatcher.
const (
	TypeTransactions = "TRANSACTIONS"
	TypeItem         = "ITEM"
)

var (
	ErrItemIDRequired = errors.New("item ID missing")
	ErrEnqueueFailed  = errors.New("failed to queue sync")
)

// Payload is the body of an aggregator webhook.
type Payload struct {
	WebhookType string        `json:"webhook_type"`
	WebhookCode string        `json:"webhook_code"`
	ItemID      string        `json:"item_id"`
	Error       *PayloadError `json:"error,omitempty"`
}

// PayloadError is the error object sent with ITEM webhooks.
type PayloadError struct {
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
}
