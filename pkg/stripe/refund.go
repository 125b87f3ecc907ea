package stripe

import (
	"context"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type RefundRequest struct {
	PaymentIntentID string
	Amount          int64
	Reason          string
	IdempotencyKey  string
	Metadata        map[string]string
}

type Refund struct {
	ID     string
	Status string
}

// CreateRefund refunds part or all of a captured payment intent.
// Failures carry CodeGatewayTimeout or CodeGatewayRejected.
func (c *Client) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if c == nil || c.refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client not configured")
	}
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.Amount > 0 {
		params.Amount = stripe.Int64(req.Amount)
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	params.Metadata = map[string]string{}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.Reason != "" {
		params.Metadata["reason"] = req.Reason
	}

	started := time.Now()
	refund, err := c.refunds.New(params)
	c.observe("refund", started, err)
	if err != nil {
		return nil, classify(err, "create refund")
	}
	return &Refund{ID: refund.ID, Status: string(refund.Status)}, nil
}
