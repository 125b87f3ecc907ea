package stripe

import (
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// CompletedSession is the part of checkout.session.completed needed to build an order.
type CompletedSession struct {
	ID              string
	PaymentIntentID string
	AmountTotal     int64
	Metadata        map[string]string
}

// VerifyEvent checks the Stripe-Signature header against the raw body.
func (c *Client) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	if strings.TrimSpace(signature) == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeInvalidSignature, "stripe signature missing")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.SigningSecret(), webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeInvalidSignature, err, "verify signature")
	}
	return event, nil
}

// DecodeCompletedSession extracts the checkout session carried by a verified event.
func DecodeCompletedSession(event *stripe.Event) (*CompletedSession, error) {
	if event == nil || event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedMetadata, "stripe event data required")
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedMetadata, err, "decode checkout session")
	}
	out := &CompletedSession{
		ID:          session.ID,
		AmountTotal: session.AmountTotal,
		Metadata:    session.Metadata,
	}
	if session.PaymentIntent != nil {
		out.PaymentIntentID = session.PaymentIntent.ID
	}
	return out, nil
}
