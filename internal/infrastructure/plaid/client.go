package plaid

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"finsync/internal/shared/logger"
)

var tracer = otel.Tracer("finsync/plaid")

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	defaultClientName = "Payments"
	defaultTimeout    = 60 * time.Second
)

type Config struct {
	ClientID    string
	Secret      string
	Environment string
	WebhookURL  string
	ClientName  string

	// CountryCodes limit Link and institution lookups. Defaults to US.
	CountryCodes      []string
	RequestsPerSecond float64
	Retry             RetryOptions
}

func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("plaid client ID is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("plaid secret is required")
	}
	switch c.Environment {
	case EnvSandbox, EnvProduction:
	case "":
		return fmt.Errorf("plaid environment is required")
	default:
		return fmt.Errorf("invalid plaid environment %q: must be sandbox or production", c.Environment)
	}
	return nil
}

// RetryOptions control backoff for retryable failures.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2
	}
	return o
}

// Client talks to the Plaid API. Calls are rate limited per process and
// retried on rate limits, Plaid API errors and transport failures.
type Client struct {
	api        *plaid.APIClient
	limiter    *rate.Limiter
	retry      RetryOptions
	webhookURL string
	clientName string
	countries  []plaid.CountryCode
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	configuration.HTTPClient = &http.Client{Timeout: defaultTimeout}
	if cfg.Environment == EnvProduction {
		configuration.UseEnvironment(plaid.Production)
	} else {
		configuration.UseEnvironment(plaid.Sandbox)
	}

	return &Client{
		api:        plaid.NewAPIClient(configuration),
		limiter:    newLimiter(cfg.RequestsPerSecond),
		retry:      cfg.Retry.withDefaults(),
		webhookURL: cfg.WebhookURL,
		clientName: orDefault(cfg.ClientName, defaultClientName),
		countries:  countryCodes(cfg.CountryCodes),
		sleep:      sleepContext,
	}, nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func countryCodes(codes []string) []plaid.CountryCode {
	out := make([]plaid.CountryCode, 0, len(codes))
	for _, c := range codes {
		if c != "" {
			out = append(out, plaid.CountryCode(c))
		}
	}
	if len(out) == 0 {
		out = append(out, plaid.COUNTRYCODE_US)
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call runs fn under the rate limiter, retrying retryable failures with
// exponential backoff. op names the endpoint in spans, logs and errors.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "plaid."+op)
	defer span.End()

	log := logger.FromContext(ctx)
	delay := c.retry.InitialDelay

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := wrapError(op, fn(ctx))
		if err == nil {
			span.SetAttributes(attribute.Int("plaid.attempts", attempt))
			return nil
		}

		if !retryable(err) || attempt >= c.retry.MaxAttempts {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		log.Warn().Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("plaid call failed, retrying")

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * c.retry.Multiplier)
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}
}
