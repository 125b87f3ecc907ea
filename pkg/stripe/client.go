package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultCurrency = "vnd"
	defaultTimeout  = 10 * time.Second
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// keyPrefixes lists the secret and restricted key prefixes accepted per environment.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type refundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// Client is the payment gateway adapter used by checkout, webhooks and refunds. It holds its
// own API client rather than the package-level stripe.Key.
type Client struct {
	sessions      sessionAPI
	refunds       refundAPI
	environment   string
	signingSecret string
	currency      string
	metrics       *metrics.GatewayMetrics
}

// NewClient checks that the key matches the configured environment before building the API
// client; a live key in test (or the reverse) is a boot error.
func NewClient(ctx context.Context, cfg config.StripeConfig, gm *metrics.GatewayMetrics, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.WebhookSecret)
	switch {
	case apiKey == "":
		return nil, errAPIKeyRequired
	case secret == "":
		return nil, errSecretRequired
	case !slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(apiKey, p) }):
		return nil, fmt.Errorf("stripe environment %q requires a key starting with %s", env, strings.Join(prefixes, " or "))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	api := client.New(apiKey, stripe.NewBackends(&http.Client{Timeout: timeout}))

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env": env,
			"currency":   currency,
			"timeout_ms": timeout.Milliseconds(),
		}), "stripe.client_ready")
	}
	return &Client{
		sessions:      api.CheckoutSessions,
		refunds:       api.Refunds,
		environment:   env,
		signingSecret: secret,
		currency:      currency,
		metrics:       gm,
	}, nil
}

// Environment is "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// Currency is the lower-case ISO code every session and refund is charged in.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

func (c *Client) observe(op string, started time.Time, err error) {
	c.metrics.ObserveDuration(op, time.Since(started))
	if err != nil {
		c.metrics.IncFailure(op, failureReason(err))
		return
	}
	c.metrics.IncSuccess(op)
}
