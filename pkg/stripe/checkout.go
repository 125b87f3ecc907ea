package stripe

import (
	"context"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Checkout session metadata keys. The webhook reads them back to rebuild the order.
const (
	MetadataUserID     = "userId"
	MetadataAddressID  = "addressId"
	MetadataCouponCode = "couponCode"
)

// LineItem is one priced line sent to the hosted checkout page.
type LineItem struct {
	Name       string
	Image      string
	UnitAmount int64
	Quantity   int64
}

type CheckoutSessionRequest struct {
	Items          []LineItem
	SuccessURL     string
	CancelURL      string
	CustomerEmail  string
	Metadata       map[string]string
	IdempotencyKey string
}

type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// CreateCheckoutSession opens a hosted payment-mode session. Amounts are in the smallest currency unit.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	if c == nil || c.sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client not configured")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "no line items to charge")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: make(map[string]string, len(req.Metadata)),
		}
		for k, v := range req.Metadata {
			params.Metadata[k] = v
			params.PaymentIntentData.Metadata[k] = v
		}
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Image != "" {
			product.Images = stripe.StringSlice([]string{item.Image})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(c.currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: product,
			},
		})
	}
	params.LineItems = lineItems

	started := time.Now()
	session, err := c.sessions.New(params)
	c.observe("checkout_session", started, err)
	if err != nil {
		return nil, classify(err, "create checkout session")
	}

	out := &CheckoutSession{ID: session.ID, URL: session.URL}
	if session.ExpiresAt != 0 {
		out.ExpiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return out, nil
}
