package plaid

import (
	"context"
	"errors"
	"fmt"

	"github.com/plaid/plaid-go/v20/plaid"
)

// Plaid error codes the client reacts to.
const (
	codeRateLimit      = "RATE_LIMIT_EXCEEDED"
	codeInternalError  = "INTERNAL_SERVER_ERROR"
	typeAPIError       = "API_ERROR"
	typeRateLimitError = "RATE_LIMIT_EXCEEDED"
)

// UpstreamError is a failure reported by the aggregator.
type UpstreamError struct {
	Op      string
	Type    string
	Code    string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("plaid %s: %s - %s", e.Op, e.Code, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ErrorCode is recorded on the item when a sync fails.
func (e *UpstreamError) ErrorCode() string {
	return e.Code
}

// wrapError turns an API error body into *UpstreamError. Transport failures
// are wrapped as is.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if pe, convErr := plaid.ToPlaidError(err); convErr == nil && pe.ErrorCode != "" {
		return &UpstreamError{
			Op:      op,
			Type:    string(pe.ErrorType),
			Code:    pe.ErrorCode,
			Message: pe.ErrorMessage,
			Err:     err,
		}
	}
	return fmt.Errorf("plaid %s: %w", op, err)
}

// retryable reports whether a failed call may succeed when repeated.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Code == codeRateLimit || ue.Code == codeInternalError ||
			ue.Type == typeAPIError || ue.Type == typeRateLimitError
	}
	// Anything else is a transport failure.
	return true
}
