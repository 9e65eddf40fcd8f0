package stripe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/terra-sneakers/terra-backend/pkg/config"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
)

// keyPrefixes lists the secret and restricted key prefixes each Stripe mode
// accepts. A live key in test mode is rejected so local runs never charge
// real cards.
var keyPrefixes = map[string][]string{
	"test": {"sk_test", "rk_test"},
	"live": {"sk_live", "rk_live"},
}

// Client holds the Stripe mode, the webhook signing secret and the payment
// intent operations checkout calls.
type Client struct {
	mode          string
	signingSecret string
	intents       PaymentIntentAPI
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode := cfg.Environment()
	prefixes, ok := keyPrefixes[mode]
	if !ok {
		return nil, fmt.Errorf("stripe environment %q is neither test nor live", mode)
	}
	key := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	switch {
	case key == "":
		return nil, errors.New("stripe api key is required")
	case secret == "":
		return nil, errors.New("stripe webhook secret is required")
	case !slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(key, p) }):
		return nil, fmt.Errorf("stripe %s mode requires a %s key", mode, strings.Join(prefixes, "/"))
	}

	// paymentintent calls read the package-level key.
	stripe.Key = key
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", mode), "stripe client initialized")
	}
	return &Client{mode: mode, signingSecret: secret, intents: paymentIntentAPI{}}, nil
}

// Environment is "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.mode
}

func (c *Client) IsLive() bool { return c.Environment() == "live" }

func (c *Client) PaymentIntents() PaymentIntentAPI {
	if c == nil {
		return nil
	}
	return c.intents
}

// SigningSecret verifies Stripe-Signature headers on webhooks.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}
