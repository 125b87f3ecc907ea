package checkout

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type stubCarts map[uuid.UUID]*cart.Cart

func (s stubCarts) Get(_ context.Context, userID uuid.UUID) (*cart.Cart, error) {
	if c, ok := s[userID]; ok {
		return c, nil
	}
	return &cart.Cart{UserID: userID}, nil
}

type stubAddresses map[uuid.UUID]models.Address

func (s stubAddresses) FindOwned(_ context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	addr, ok := s[addressID]
	if !ok || addr.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeAddressNotFound, "address not found")
	}
	return &addr, nil
}

type stubCoupons map[string]models.Coupon

func (s stubCoupons) Validate(_ context.Context, userID uuid.UUID, code string) (*models.Coupon, error) {
	c, ok := s[code]
	if !ok || c.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon not found")
	}
	return &c, nil
}

type stubSKUs map[uuid.UUID]models.SKU

func (s stubSKUs) Get(_ context.Context, id uuid.UUID) (*models.SKU, error) {
	sku, ok := s[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sku not found")
	}
	return &sku, nil
}

type recordingGateway struct {
	requests []stripe.CheckoutSessionRequest
}

func (g *recordingGateway) CreateCheckoutSession(_ context.Context, req stripe.CheckoutSessionRequest) (*stripe.CheckoutSession, error) {
	g.requests = append(g.requests, req)
	return &stripe.CheckoutSession{ID: "cs_test", URL: "https://pay.test/cs_test"}, nil
}

type fixture struct {
	svc       Service
	gateway   *recordingGateway
	userID    uuid.UUID
	addressID uuid.UUID
	sku       models.SKU
	carts     stubCarts
	coupons   stubCoupons
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	userID := uuid.New()
	addressID := uuid.New()
	sku := models.SKU{ID: uuid.New(), ProductID: uuid.New(), VariantName: "A", Price: 100000, Stock: 5}

	f := &fixture{
		gateway:   &recordingGateway{},
		userID:    userID,
		addressID: addressID,
		sku:       sku,
		carts: stubCarts{userID: &cart.Cart{UserID: userID, Items: []cart.LineItem{
			{SKUID: sku.ID, ProductID: sku.ProductID, SKUName: "A", Quantity: 2, Selected: true, PriceSnapshot: 100000},
		}}},
		coupons: stubCoupons{"CP10AAAA": {ID: uuid.New(), UserID: userID, Code: "CP10AAAA", ValuePercent: 10}},
	}
	svc, err := NewService(ServiceParams{
		Carts:     f.carts,
		Addresses: stubAddresses{addressID: {ID: addressID, UserID: userID}},
		Coupons:   f.coupons,
		SKUs:      stubSKUs{sku.ID: sku},
		Gateway:   f.gateway,
		ClientURL: "https://shop.test/",
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestCheckoutAppliesCouponToSnapshotPrice(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Checkout(context.Background(), f.userID, Input{AddressID: f.addressID, CouponCode: "CP10AAAA"})
	require.NoError(t, err)

	want := []Line{{SKUID: f.sku.ID, ProductID: f.sku.ProductID, Name: "A", Quantity: 2, UnitPrice: 90000, LineTotal: 180000}}
	if diff := cmp.Diff(want, res.Lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(180000), res.Total)
	assert.Equal(t, "cs_test", res.SessionID)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, "https://shop.test/payment/success?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	assert.Equal(t, "https://shop.test/payment/cancel", req.CancelURL)
	assert.Equal(t, f.userID.String(), req.Metadata[stripe.MetadataUserID])
	assert.Equal(t, f.addressID.String(), req.Metadata[stripe.MetadataAddressID])
	assert.Equal(t, "CP10AAAA", req.Metadata[stripe.MetadataCouponCode])
	assert.Equal(t, int64(90000), req.Items[0].UnitAmount)
}

func TestCheckoutPricesFromSnapshotNotLivePrice(t *testing.T) {
	f := newFixture(t)
	f.carts[f.userID].Items[0].PriceSnapshot = 50000

	res, err := f.svc.Checkout(context.Background(), f.userID, Input{AddressID: f.addressID})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), res.Lines[0].UnitPrice)
	_, hasCoupon := f.gateway.requests[0].Metadata[stripe.MetadataCouponCode]
	assert.False(t, hasCoupon)
}

func TestCheckoutFailures(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		f.carts[f.userID].Items[0].Selected = false
		_, err := f.svc.Checkout(context.Background(), f.userID, Input{AddressID: f.addressID})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart))
	})
	t.Run("foreign address", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Checkout(context.Background(), f.userID, Input{AddressID: uuid.New()})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAddressNotFound))
	})
	t.Run("invalid coupon", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Checkout(context.Background(), f.userID, Input{AddressID: f.addressID, CouponCode: "CPXXXXXX"})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))
	})
	t.Run("insufficient stock", func(t *testing.T) {
		f := newFixture(t)
		f.carts[f.userID].Items[0].Quantity = 6
		_, err := f.svc.Checkout(context.Background(), f.userID, Input{AddressID: f.addressID})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
		details, ok := pkgerrors.As(err).Details().(map[string]any)
		require.True(t, ok)
		assert.Equal(t, f.sku.ID.String(), details["sku_id"])
		assert.Empty(t, f.gateway.requests)
	})
}
