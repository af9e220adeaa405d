package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"finsync/internal/shared/logger"
)

const fcmBatchLimit = 500

// TokenDeactivator marks a token FCM rejected as unregistered or invalid.
type TokenDeactivator func(ctx context.Context, token string) error

// Client implements notification.Messenger on Firebase Cloud Messaging.
type Client struct {
	msgClient   *messaging.Client
	deactivator TokenDeactivator
}

// NewClient initializes a Firebase app. deactivator may be nil.
func NewClient(ctx context.Context, credentialsFile string, deactivator TokenDeactivator) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return &Client{msgClient: msgClient, deactivator: deactivator}, nil
}

// SendMulticast sends one notification to every token, in batches of 500.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	var success, failure int
	for _, batch := range chunkTokens(tokens, fcmBatchLimit) {
		resp, err := c.msgClient.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       batch,
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         data,
		})
		if err != nil {
			return fmt.Errorf("failed to send FCM multicast: %w", err)
		}

		success += resp.SuccessCount
		failure += resp.FailureCount
		if resp.FailureCount > 0 {
			c.handleFailures(ctx, batch, resp)
		}
	}

	log.Debug().Int("success", success).Int("failure", failure).Msg("FCM multicast sent")
	return nil
}

func (c *Client) handleFailures(ctx context.Context, tokens []string, resp *messaging.BatchResponse) {
	log := logger.FromContext(ctx)
	for i, r := range resp.Responses {
		if r.Error == nil {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			log.Info().Str("token", maskToken(tokens[i])).Msg("deactivating invalid FCM token")
			c.deactivate(ctx, tokens[i])
			continue
		}
		log.Warn().Err(r.Error).Str("token", maskToken(tokens[i])).Msg("FCM send failed")
	}
}

func (c *Client) deactivate(ctx context.Context, token string) {
	if c.deactivator == nil {
		return
	}
	if err := c.deactivator(ctx, token); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("token", maskToken(token)).Msg("failed to deactivate FCM token")
	}
}

func chunkTokens(tokens []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		end := min(i+size, len(tokens))
		chunks = append(chunks, tokens[i:end])
	}
	return chunks
}

// maskToken keeps the last six characters for log correlation.
func maskToken(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return "***" + token[len(token)-6:]
}
