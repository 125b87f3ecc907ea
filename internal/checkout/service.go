package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type cartReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*cart.Cart, error)
}

type addressFinder interface {
	FindOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type couponValidator interface {
	Validate(ctx context.Context, userID uuid.UUID, code string) (*models.Coupon, error)
}

type skuReader interface {
	Get(ctx context.Context, skuID uuid.UUID) (*models.SKU, error)
}

type sessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req stripe.CheckoutSessionRequest) (*stripe.CheckoutSession, error)
}

// Service opens hosted payment sessions for the selected cart lines.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
}

// Input captures the buyer's choices at checkout.
type Input struct {
	AddressID  uuid.UUID
	CouponCode string
}

// Line is one priced cart line as charged.
type Line struct {
	SKUID     uuid.UUID `json:"skuId"`
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unitPrice"`
	LineTotal int64     `json:"lineTotal"`
}

// Result is returned to the client so it can redirect to the gateway.
type Result struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	Lines     []Line `json:"lines"`
	Total     int64  `json:"total"`
}

type ServiceParams struct {
	Carts     cartReader
	Addresses addressFinder
	Coupons   couponValidator
	SKUs      skuReader
	Gateway   sessionCreator
	ClientURL string
	Logger    *logger.Logger
}

type service struct {
	carts     cartReader
	addresses addressFinder
	coupons   couponValidator
	skus      skuReader
	gateway   sessionCreator
	clientURL string
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address finder required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if params.SKUs == nil {
		return nil, fmt.Errorf("sku reader required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		carts:     params.Carts,
		addresses: params.Addresses,
		coupons:   params.Coupons,
		skus:      params.SKUs,
		gateway:   params.Gateway,
		clientURL: strings.TrimRight(params.ClientURL, "/"),
		logg:      params.Logger,
	}, nil
}

// Checkout validates the cart against live stock and prices it from the cart snapshots.
// Stock is only checked here; reservation happens when the payment is confirmed.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}

	current, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	selected := current.SelectedItems()
	if len(selected) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "no items selected for checkout")
	}

	address, err := s.addresses.FindOwned(ctx, userID, input.AddressID)
	if err != nil {
		return nil, err
	}

	couponPercent := 0
	couponCode := strings.TrimSpace(input.CouponCode)
	if couponCode != "" {
		coupon, err := s.coupons.Validate(ctx, userID, couponCode)
		if err != nil {
			return nil, err
		}
		couponPercent = coupon.ValuePercent
		couponCode = coupon.Code
	}

	result := &Result{Lines: make([]Line, 0, len(selected))}
	items := make([]stripe.LineItem, 0, len(selected))
	for _, item := range selected {
		sku, err := s.skus.Get(ctx, item.SKUID)
		if err != nil {
			return nil, err
		}
		if sku.Available() < item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("not enough stock for %s", item.SKUName)).
				WithDetails(map[string]any{
					"sku_id":    item.SKUID.String(),
					"requested": item.Quantity,
					"available": sku.Available(),
				})
		}

		unit := UnitPrice(item.PriceSnapshot, item.DiscountSnapshot, couponPercent)
		line := Line{
			SKUID:     item.SKUID,
			ProductID: item.ProductID,
			Name:      item.SKUName,
			Quantity:  item.Quantity,
			UnitPrice: unit,
			LineTotal: unit * int64(item.Quantity),
		}
		result.Lines = append(result.Lines, line)
		result.Total += line.LineTotal
		items = append(items, stripe.LineItem{
			Name:       item.SKUName,
			Image:      item.Image,
			UnitAmount: unit,
			Quantity:   int64(item.Quantity),
		})
	}

	metadata := map[string]string{
		stripe.MetadataUserID:    userID.String(),
		stripe.MetadataAddressID: address.ID.String(),
	}
	if couponCode != "" {
		metadata[stripe.MetadataCouponCode] = couponCode
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, stripe.CheckoutSessionRequest{
		Items:      items,
		SuccessURL: s.clientURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.clientURL + "/payment/cancel",
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}
	result.SessionID = session.ID
	result.URL = session.URL

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":    userID.String(),
			"session_id": session.ID,
			"total":      result.Total,
			"lines":      len(result.Lines),
		})
		s.logg.Info(logCtx, "checkout.session_created")
	}
	return result, nil
}
