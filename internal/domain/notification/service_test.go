package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/shared/messages"
)

type MockRepository struct {
	UpsertDeviceTokenFunc       func(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error)
	GetActiveTokensByUserIDFunc func(ctx context.Context, userID int64) ([]*DeviceToken, error)
	DeactivateTokenFunc         func(ctx context.Context, token string) error
}

func (m *MockRepository) UpsertDeviceToken(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error) {
	if m.UpsertDeviceTokenFunc != nil {
		return m.UpsertDeviceTokenFunc(ctx, params)
	}
	return &DeviceToken{Token: params.Token, UserID: params.UserID, Platform: params.Platform, IsActive: true}, nil
}

func (m *MockRepository) GetActiveTokensByUserID(ctx context.Context, userID int64) ([]*DeviceToken, error) {
	if m.GetActiveTokensByUserIDFunc != nil {
		return m.GetActiveTokensByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockRepository) DeactivateToken(ctx context.Context, token string) error {
	if m.DeactivateTokenFunc != nil {
		return m.DeactivateTokenFunc(ctx, token)
	}
	return nil
}

type sentMessage struct {
	tokens []string
	title  string
	body   string
	data   map[string]string
}

type MockMessenger struct {
	sent []sentMessage
	err  error
}

func (m *MockMessenger) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	m.sent = append(m.sent, sentMessage{tokens: tokens, title: title, body: body, data: data})
	return m.err
}

func TestRegisterDevice(t *testing.T) {
	tests := []struct {
		name    string
		params  RegisterDeviceParams
		wantErr error
	}{
		{name: "valid", params: RegisterDeviceParams{UserID: 1, Token: "tok", Platform: "ios"}},
		{name: "missing user", params: RegisterDeviceParams{Token: "tok", Platform: "ios"}, wantErr: ErrInvalidUserID},
		{name: "missing token", params: RegisterDeviceParams{UserID: 1, Platform: "android"}, wantErr: ErrInvalidToken},
		{name: "unknown platform", params: RegisterDeviceParams{UserID: 1, Token: "tok", Platform: "blackberry"}, wantErr: ErrInvalidPlatform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&MockRepository{}, nil, nil)

			dt, err := svc.RegisterDevice(context.Background(), tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, dt.IsActive)
			assert.Equal(t, "tok", dt.Token)
		})
	}
}

func TestNotifySyncComplete(t *testing.T) {
	repo := &MockRepository{
		GetActiveTokensByUserIDFunc: func(ctx context.Context, userID int64) ([]*DeviceToken, error) {
			assert.Equal(t, int64(7), userID)
			return []*DeviceToken{{Token: "a"}, {Token: "b"}}, nil
		},
	}
	m := &MockMessenger{}
	svc := NewService(repo, m, messages.Default())

	require.NoError(t, svc.NotifySyncComplete(context.Background(), 7, "item-1", "First Platypus Bank", 12))

	require.Len(t, m.sent, 1)
	assert.Equal(t, []string{"a", "b"}, m.sent[0].tokens)
	assert.Equal(t, "12 new transactions from First Platypus Bank", m.sent[0].body)
	assert.Equal(t, map[string]string{"route": RouteTransactions, "itemId": "item-1"}, m.sent[0].data)
}

func TestNotifyNeedsAttention(t *testing.T) {
	repo := &MockRepository{
		GetActiveTokensByUserIDFunc: func(ctx context.Context, userID int64) ([]*DeviceToken, error) {
			return []*DeviceToken{{Token: "a"}}, nil
		},
	}
	m := &MockMessenger{err: errors.New("fcm down")}
	svc := NewService(repo, m, nil)

	err := svc.NotifyNeedsAttention(context.Background(), 7, "item-1", "Tartan Bank")
	require.NoError(t, err, "delivery failures are logged, not returned")

	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].body, "Tartan Bank")
	assert.Equal(t, RouteAccounts, m.sent[0].data["route"])
}

func TestNotify_NoTokensOrMessenger(t *testing.T) {
	t.Run("no tokens", func(t *testing.T) {
		m := &MockMessenger{}
		svc := NewService(&MockRepository{}, m, nil)

		require.NoError(t, svc.NotifySyncComplete(context.Background(), 1, "item-1", "Bank", 1))
		assert.Empty(t, m.sent)
	})

	t.Run("no messenger", func(t *testing.T) {
		called := false
		repo := &MockRepository{
			GetActiveTokensByUserIDFunc: func(ctx context.Context, userID int64) ([]*DeviceToken, error) {
				called = true
				return nil, nil
			},
		}
		svc := NewService(repo, nil, nil)

		require.NoError(t, svc.NotifyNeedsAttention(context.Background(), 1, "item-1", "Bank"))
		assert.False(t, called)
	})

	t.Run("invalid user", func(t *testing.T) {
		svc := NewService(&MockRepository{}, &MockMessenger{}, nil)
		assert.ErrorIs(t, svc.NotifySyncComplete(context.Background(), 0, "item-1", "Bank", 1), ErrInvalidUserID)
	})
}

func TestDeactivateToken(t *testing.T) {
	var got string
	svc := NewService(&MockRepository{
		DeactivateTokenFunc: func(ctx context.Context, token string) error {
			got = token
			return nil
		},
	}, nil, nil)

	require.NoError(t, svc.DeactivateToken(context.Background(), "stale"))
	assert.Equal(t, "stale", got)
	assert.ErrorIs(t, svc.DeactivateToken(context.Background(), ""), ErrInvalidToken)
}
