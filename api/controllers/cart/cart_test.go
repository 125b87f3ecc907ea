package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubCartService struct {
	cart      *cartsvc.Cart
	err       error
	added     cartsvc.AddItemInput
	quantity  int
	selected  *bool
	removedSK uuid.UUID
}

func (s *stubCartService) Get(context.Context, uuid.UUID) (*cartsvc.Cart, error) {
	return s.cart, s.err
}

func (s *stubCartService) AddOrUpdate(_ context.Context, _ uuid.UUID, input cartsvc.AddItemInput) (*cartsvc.Cart, error) {
	s.added = input
	return s.cart, s.err
}

func (s *stubCartService) Remove(_ context.Context, _ uuid.UUID, skuID, _ uuid.UUID) (*cartsvc.Cart, error) {
	s.removedSK = skuID
	return s.cart, s.err
}

func (s *stubCartService) ToggleSelection(_ context.Context, _ uuid.UUID, _, _ uuid.UUID, selected bool) (*cartsvc.Cart, error) {
	s.selected = &selected
	return s.cart, s.err
}

func (s *stubCartService) UpdateQuantity(_ context.Context, _ uuid.UUID, _, _ uuid.UUID, quantity int) (*cartsvc.Cart, error) {
	s.quantity = quantity
	return s.cart, s.err
}

func (s *stubCartService) Clear(context.Context, uuid.UUID) error { return s.err }

func authed(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), types.Actor{UserID: userID, Role: enums.UserRoleUser}))
}

func withSKU(req *http.Request, skuID uuid.UUID) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("skuId", skuID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCartFetchSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{cart: &cartsvc.Cart{UserID: userID, Items: []cartsvc.LineItem{{SKUID: uuid.New(), Quantity: 2, Selected: true}}}}
	handler := CartFetch(svc, nil)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartsvc.Cart `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart %+v", envelope.Data)
	}
}

func TestCartFetchRequiresActor(t *testing.T) {
	handler := CartFetch(&stubCartService{}, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemValidatesPayload(t *testing.T) {
	svc := &stubCartService{cart: &cartsvc.Cart{}}
	handler := CartAddItem(svc, nil)

	body := `{"skuId":"` + uuid.NewString() + `","productId":"` + uuid.NewString() + `","quantity":0}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	skuID := uuid.New()
	body = `{"skuId":"` + skuID.String() + `","productId":"` + uuid.NewString() + `","quantity":3}`
	req = authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), uuid.New())
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.added.SKUID != skuID || svc.added.Quantity != 3 {
		t.Fatalf("unexpected input %+v", svc.added)
	}
}

func TestCartUpdateItemAppliesQuantityAndSelection(t *testing.T) {
	svc := &stubCartService{cart: &cartsvc.Cart{}}
	handler := CartUpdateItem(svc, nil)

	body := `{"productId":"` + uuid.NewString() + `","quantity":4,"selected":false}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/x", strings.NewReader(body))
	req = authed(withSKU(req, uuid.New()), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.quantity != 4 {
		t.Fatalf("expected quantity 4 got %d", svc.quantity)
	}
	if svc.selected == nil || *svc.selected {
		t.Fatalf("expected selection cleared")
	}
}

func TestCartRemoveItemRequiresProduct(t *testing.T) {
	svc := &stubCartService{cart: &cartsvc.Cart{}}
	handler := CartRemoveItem(svc, nil)

	skuID := uuid.New()
	req := authed(withSKU(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/x", nil), skuID), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = authed(withSKU(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/x?productId="+uuid.NewString(), nil), skuID), uuid.New())
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.removedSK != skuID {
		t.Fatalf("expected sku %s removed", skuID)
	}
}
