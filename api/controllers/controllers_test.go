package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/deliveries"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubReturns struct {
	returns.Service
	created    returns.CreateInput
	images     [][]byte
	approval   *returns.Approval
	rejectedAs enums.ReturnRejectReason
}

func (s *stubReturns) Create(_ context.Context, userID uuid.UUID, input returns.CreateInput, images [][]byte) (*models.ReturnRequest, error) {
	s.created = input
	s.images = images
	return &models.ReturnRequest{ID: uuid.New(), UserID: userID, OrderID: input.OrderID, SKUID: input.SKUID, Quantity: input.Quantity, Status: enums.ReturnStatusPending}, nil
}

func (s *stubReturns) Approve(context.Context, uuid.UUID, string, types.Actor) (*returns.Approval, error) {
	return s.approval, nil
}

func (s *stubReturns) Reject(_ context.Context, id uuid.UUID, reason enums.ReturnRejectReason, _ string, _ types.Actor) (*models.ReturnRequest, error) {
	s.rejectedAs = reason
	return &models.ReturnRequest{ID: id, Status: enums.ReturnStatusRejected}, nil
}

type stubDeliveries struct {
	deliveries.Service
	status enums.DeliveryStatus
}

func (s *stubDeliveries) UpdateStatus(_ context.Context, id uuid.UUID, status enums.DeliveryStatus, _ types.Actor) (*models.Delivery, error) {
	s.status = status
	return &models.Delivery{ID: id, Status: status}, nil
}

type stubLedger struct {
	inventory.Ledger
	sku       models.SKU
	restocked int
	err       error
}

func (l *stubLedger) WithTx(*gorm.DB) inventory.Ledger { return l }

func (l *stubLedger) Restock(_ context.Context, _ uuid.UUID, qty int) error {
	if l.err != nil {
		return l.err
	}
	l.restocked += qty
	l.sku.Stock += qty
	return nil
}

func (l *stubLedger) Get(context.Context, uuid.UUID) (*models.SKU, error) {
	sku := l.sku
	return &sku, nil
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func withParam(req *http.Request, key, value string, role enums.UserRole) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	ctx = middleware.WithActor(ctx, types.Actor{UserID: uuid.New(), Role: role})
	return req.WithContext(ctx)
}

func decodeData(t *testing.T, body *bytes.Buffer, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
}

func TestReturnCreateParsesMultipartForm(t *testing.T) {
	orderID, skuID := uuid.New(), uuid.New()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("orderId", orderID.String()))
	require.NoError(t, mw.WriteField("skuId", skuID.String()))
	require.NoError(t, mw.WriteField("quantity", "2"))
	require.NoError(t, mw.WriteField("reason", "  arrived cracked "))
	for range 2 {
		part, err := mw.CreateFormFile("images", "evidence.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = withParam(req, "unused", "", enums.UserRoleUser)

	svc := &stubReturns{}
	resp := httptest.NewRecorder()
	ReturnCreate(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, orderID, svc.created.OrderID)
	assert.Equal(t, skuID, svc.created.SKUID)
	assert.Equal(t, 2, svc.created.Quantity)
	assert.Equal(t, "arrived cracked", svc.created.Reason)
	assert.Len(t, svc.images, 2)
}

func TestReturnCreateReportsFieldErrors(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("orderId", "nope"))
	require.NoError(t, mw.WriteField("quantity", "0"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = withParam(req, "unused", "", enums.UserRoleUser)

	resp := httptest.NewRecorder()
	ReturnCreate(&stubReturns{}, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	details, ok := envelope.Error.Details.(map[string]any)
	require.True(t, ok, "details %#v", envelope.Error.Details)
	for _, field := range []string{"orderId", "skuId", "quantity", "reason"} {
		assert.Contains(t, details, field)
	}
}

func TestReturnApproveReportsPendingRefund(t *testing.T) {
	requestID := uuid.New()
	svc := &stubReturns{approval: &returns.Approval{
		Request:   &models.ReturnRequest{ID: requestID, Status: enums.ReturnStatusApproved},
		Refund:    &models.RefundRequest{ID: uuid.New(), Amount: 4000, Status: enums.RefundStatusPending},
		RefundErr: pkgerrors.New(pkgerrors.CodeRefundGateway, "card_declined"),
	}}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", nil), "returnId", requestID.String(), enums.UserRoleAdmin)
	resp := httptest.NewRecorder()
	ReturnApprove(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var got approvalResponse
	decodeData(t, resp.Body, &got)
	assert.Equal(t, requestID, got.Request.ID)
	require.NotNil(t, got.Refund)
	assert.EqualValues(t, 4000, got.Refund.Amount)
	assert.NotEmpty(t, got.RefundError)
	assert.NotContains(t, got.RefundError, "card_declined")
}

func TestReturnRejectParsesReason(t *testing.T) {
	id := uuid.New().String()

	svc := &stubReturns{}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"outside_window"}`)), "returnId", id, enums.UserRoleAdmin)
	resp := httptest.NewRecorder()
	ReturnReject(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, enums.ReturnRejectOutsideWindow, svc.rejectedAs)

	req = withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"because"}`)), "returnId", id, enums.UserRoleAdmin)
	resp = httptest.NewRecorder()
	ReturnReject(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDeliveryUpdateStatus(t *testing.T) {
	id := uuid.New().String()
	svc := &stubDeliveries{}

	req := withParam(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"out_for_delivery"}`)), "deliveryId", id, enums.UserRoleDelivery)
	resp := httptest.NewRecorder()
	DeliveryUpdateStatus(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, enums.DeliveryStatusOutForDelivery, svc.status)

	req = withParam(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"teleported"}`)), "deliveryId", id, enums.UserRoleDelivery)
	resp = httptest.NewRecorder()
	DeliveryUpdateStatus(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	req = withParam(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"delivered"}`)), "deliveryId", "not-a-uuid", enums.UserRoleDelivery)
	resp = httptest.NewRecorder()
	DeliveryUpdateStatus(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestInventoryRestock(t *testing.T) {
	skuID := uuid.New()
	ledger := &stubLedger{sku: models.SKU{ID: skuID, Stock: 3, ReservedStock: 1}}

	req := withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":4}`)), "skuId", skuID.String(), enums.UserRoleAdmin)
	resp := httptest.NewRecorder()
	InventoryRestock(ledger, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var got struct {
		Stock     int `json:"stock"`
		Available int `json:"available"`
	}
	decodeData(t, resp.Body, &got)
	assert.Equal(t, 7, got.Stock)
	assert.Equal(t, 6, got.Available)

	req = withParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":0}`)), "skuId", skuID.String(), enums.UserRoleAdmin)
	resp = httptest.NewRecorder()
	InventoryRestock(ledger, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 4, ledger.restocked)
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	up := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, Dependency{Name: "postgres", Pinger: up}, Dependency{Name: "redis", Pinger: up}).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "test", resp.Header().Get(envHeader))

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, Dependency{Name: "postgres", Pinger: up}, Dependency{Name: "redis", Pinger: down}).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), "redis")
}
