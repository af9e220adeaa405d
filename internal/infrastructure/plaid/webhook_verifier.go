package plaid

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/plaid/plaid-go/v20/plaid"
)

// ErrWebhookUnverified is returned for any webhook whose signature does not
// check out.
var ErrWebhookUnverified = errors.New("webhook verification failed")

const maxWebhookAge = 5 * time.Minute

// KeyFetcher returns the JWK with the given key id as JSON.
type KeyFetcher func(ctx context.Context, keyID string) (json.RawMessage, error)

// WebhookVerifier checks the Plaid-Verification header: an ES256 JWT over
// the SHA-256 of the request body, signed with a key published by Plaid.
type WebhookVerifier struct {
	fetch  KeyFetcher
	parser *jwt.Parser
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*keyfunc.JWKS
}

func NewWebhookVerifier(fetch KeyFetcher) *WebhookVerifier {
	return &WebhookVerifier{
		fetch:  fetch,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()})),
		now:    time.Now,
		keys:   make(map[string]*keyfunc.JWKS),
	}
}

func (v *WebhookVerifier) Verify(ctx context.Context, token string, body []byte) error {
	if token == "" {
		return fmt.Errorf("%w: missing token", ErrWebhookUnverified)
	}

	unverified, _, err := v.parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookUnverified, err)
	}
	if unverified.Method.Alg() != jwt.SigningMethodES256.Alg() {
		return fmt.Errorf("%w: unexpected algorithm %s", ErrWebhookUnverified, unverified.Method.Alg())
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return fmt.Errorf("%w: missing key id", ErrWebhookUnverified)
	}

	jwks, err := v.jwks(ctx, kid)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookUnverified, err)
	}

	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, jwks.Keyfunc); err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookUnverified, err)
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return fmt.Errorf("%w: missing iat", ErrWebhookUnverified)
	}
	if v.now().Sub(time.Unix(int64(iat), 0)) > maxWebhookAge {
		return fmt.Errorf("%w: token too old", ErrWebhookUnverified)
	}

	want, _ := claims["request_body_sha256"].(string)
	sum := sha256.Sum256(body)
	got := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return fmt.Errorf("%w: body hash mismatch", ErrWebhookUnverified)
	}
	return nil
}

func (v *WebhookVerifier) jwks(ctx context.Context, kid string) (*keyfunc.JWKS, error) {
	v.mu.Lock()
	cached, ok := v.keys[kid]
	v.mu.Unlock()
	if ok {
		return cached, nil
	}

	key, err := v.fetch(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch verification key: %w", err)
	}
	set, err := json.Marshal(map[string][]json.RawMessage{"keys": {key}})
	if err != nil {
		return nil, err
	}
	jwks, err := keyfunc.NewJSON(set)
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification key: %w", err)
	}

	v.mu.Lock()
	v.keys[kid] = jwks
	v.mu.Unlock()
	return jwks, nil
}

// WebhookKey fetches a webhook verification key. Expired keys are refused.
func (c *Client) WebhookKey(ctx context.Context, keyID string) (json.RawMessage, error) {
	var key plaid.JWKPublicKey
	err := c.call(ctx, "webhook_verification_key_get", func(ctx context.Context) error {
		req := plaid.NewWebhookVerificationKeyGetRequest(keyID)
		resp, _, err := c.api.PlaidApi.WebhookVerificationKeyGet(ctx).WebhookVerificationKeyGetRequest(*req).Execute()
		if err != nil {
			return err
		}
		key = resp.GetKey()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if key.GetExpiredAt() != 0 {
		return nil, fmt.Errorf("verification key %s expired", keyID)
	}
	return json.Marshal(key)
}
