package refunds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	maxErrorLength        = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type refundGateway interface {
	CreateRefund(ctx context.Context, req stripe.RefundRequest) (*stripe.Refund, error)
}

// CreateInput asks for money back on a paid order. A zero Amount refunds the order total.
type CreateInput struct {
	OrderID uuid.UUID `json:"orderId" validate:"required"`
	Amount  int64     `json:"amount" validate:"min=0"`
	Reason  string    `json:"reason" validate:"required,max=500"`
}

// Service exposes the refund lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput, actor types.Actor) (*models.RefundRequest, error)
	CreatePending(ctx context.Context, tx *gorm.DB, order *models.Order, returnID *uuid.UUID, reason string) (*models.RefundRequest, error)
	Submit(ctx context.Context, refundID uuid.UUID, actor types.Actor) (*models.RefundRequest, error)
	Approve(ctx context.Context, refundID uuid.UUID, notes string, actor types.Actor) (*models.RefundRequest, error)
	Reject(ctx context.Context, refundID uuid.UUID, notes string, actor types.Actor) (*models.RefundRequest, error)
	Complete(ctx context.Context, refundID uuid.UUID, actor types.Actor) (*models.RefundRequest, error)
	Get(ctx context.Context, refundID uuid.UUID, actor types.Actor) (*models.RefundRequest, error)
	List(ctx context.Context, actor types.Actor, filter ListFilter) ([]models.RefundRequest, error)
}

type ServiceParams struct {
	Repo           *Repository
	Orders         *orders.Repository
	Gateway        refundGateway
	Tx             txRunner
	Outbox         outbox.Emitter
	Notifier       notifications.Notifier
	Logger         *logger.Logger
	GatewayTimeout time.Duration
}

type service struct {
	repo     *Repository
	orders   *orders.Repository
	gateway  refundGateway
	tx       txRunner
	outbox   outbox.Emitter
	notifier notifications.Notifier
	logg     *logger.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("refund repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("refund gateway required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	timeout := params.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &service{
		repo:     params.Repo,
		orders:   params.Orders,
		gateway:  params.Gateway,
		tx:       params.Tx,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		logg:     params.Logger,
		timeout:  timeout,
		now:      time.Now,
	}, nil
}

// Create persists a pending refund and immediately tries the gateway. A gateway failure
// keeps the refund pending for a manual retry and is returned as REFUND_GATEWAY_ERROR.
func (s *service) Create(ctx context.Context, input CreateInput, actor types.Actor) (*models.RefundRequest, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}
	if input.Amount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot be negative")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(order.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.IsPaid || order.PaymentIntentID == nil || *order.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no captured payment to refund")
	}
	if order.IsRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already refunded")
	}
	amount := input.Amount
	if amount == 0 {
		amount = order.TotalAmount
	}
	if amount > order.TotalAmount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds order total").
			WithDetails(map[string]any{"amount": amount, "total_amount": order.TotalAmount})
	}

	active, err := s.repo.HasActive(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has an open refund request")
	}

	refund := &models.RefundRequest{
		OrderID:         order.ID,
		UserID:          order.UserID,
		Amount:          amount,
		Reason:          reason,
		PaymentIntentID: *order.PaymentIntentID,
		Status:          enums.RefundStatusPending,
	}
	if err := s.repo.Create(ctx, refund); err != nil {
		return nil, err
	}
	s.audit(ctx, "create", refund, actor)
	return s.submit(ctx, refund, "", actor)
}

// CreatePending records a refund inside the caller's transaction without contacting the gateway.
// It returns nil when the order has no payment intent on file, is already refunded,
// or already has an open refund.
func (s *service) CreatePending(ctx context.Context, tx *gorm.DB, order *models.Order, returnID *uuid.UUID, reason string) (*models.RefundRequest, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if order.PaymentIntentID == nil || *order.PaymentIntentID == "" {
		s.warnSkipped(ctx, order, "refund.skipped_no_payment_intent")
		return nil, nil
	}
	if order.IsRefunded {
		s.warnSkipped(ctx, order, "refund.skipped_already_refunded")
		return nil, nil
	}
	repo := s.repo.WithTx(tx)
	active, err := repo.HasActive(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if active {
		s.warnSkipped(ctx, order, "refund.skipped_open_refund")
		return nil, nil
	}
	refund := &models.RefundRequest{
		OrderID:         order.ID,
		UserID:          order.UserID,
		ReturnRequestID: returnID,
		Amount:          order.TotalAmount,
		Reason:          reason,
		PaymentIntentID: *order.PaymentIntentID,
		Status:          enums.RefundStatusPending,
	}
	if err := repo.Create(ctx, refund); err != nil {
		return nil, err
	}
	s.audit(ctx, "create", refund, types.Actor{})
	return refund, nil
}

func (s *service) warnSkipped(ctx context.Context, order *models.Order, msg string) {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), msg)
	}
}

// Submit retries the gateway call for a pending refund.
func (s *service) Submit(ctx context.Context, refundID uuid.UUID, actor types.Actor) (*models.RefundRequest, error) {
	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, refund, "", actor)
}

// Approve is the admin's manual retry of the gateway call.
func (s *service) Approve(ctx context.Context, refundID uuid.UUID, notes string, actor types.Actor) (*models.RefundRequest, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, refund, strings.TrimSpace(notes), actor)
}

func (s *service) Reject(ctx context.Context, refundID uuid.UUID, notes string, actor types.Actor) (*models.RefundRequest, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if notes = strings.TrimSpace(notes); notes != "" {
		updates["admin_notes"] = notes
	}
	return s.transition(ctx, refund, EventReject, updates, actor, nil)
}

// Complete closes an approved refund and flags the order as refunded.
func (s *service) Complete(ctx context.Context, refundID uuid.UUID, actor types.Actor) (*models.RefundRequest, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund.Status != enums.RefundStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeRefundNotApproved, "refund must be approved before completion").
			WithDetails(map[string]any{"refund_id": refund.ID.String(), "status": string(refund.Status)})
	}
	return s.transition(ctx, refund, EventComplete, map[string]any{}, actor, func(tx *gorm.DB) error {
		return s.orders.WithTx(tx).MarkRefunded(ctx, refund.OrderID, s.now().UTC())
	})
}

func (s *service) Get(ctx context.Context, refundID uuid.UUID, actor types.Actor) (*models.RefundRequest, error) {
	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(refund.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund request not found")
	}
	return refund, nil
}

func (s *service) List(ctx context.Context, actor types.Actor, filter ListFilter) ([]models.RefundRequest, error) {
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	return s.repo.List(ctx, filter)
}

// submit calls the gateway for a pending refund. Success approves it; failure records the
// error and leaves it pending.
func (s *service) submit(ctx context.Context, refund *models.RefundRequest, notes string, actor types.Actor) (*models.RefundRequest, error) {
	if _, err := lifecycle.Next(refund.Status, EventApprove); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, gwErr := s.gateway.CreateRefund(callCtx, stripe.RefundRequest{
		PaymentIntentID: refund.PaymentIntentID,
		Amount:          refund.Amount,
		Reason:          refund.Reason,
		IdempotencyKey:  "refund_" + refund.ID.String(),
		Metadata: map[string]string{
			"refundRequestId": refund.ID.String(),
			"orderId":         refund.OrderID.String(),
		},
	})
	cancel()

	if gwErr != nil {
		msg := gwErr.Error()
		if len(msg) > maxErrorLength {
			msg = msg[:maxErrorLength]
		}
		updates := map[string]any{"last_error": msg}
		if notes != "" {
			updates["admin_notes"] = notes
		}
		if _, err := s.repo.Update(ctx, refund.ID, enums.RefundStatusPending, updates); err != nil {
			return nil, err
		}
		refund.LastError = &msg
		s.audit(ctx, "gateway_failed", refund, actor)
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "refund_id", refund.ID.String()), "refund.gateway_failed", gwErr)
		}
		return refund, pkgerrors.Wrap(pkgerrors.CodeRefundGateway, gwErr, "refund gateway call failed").
			WithDetails(map[string]any{
				"refund_id": refund.ID.String(),
				"cause":     string(causeCode(gwErr)),
			})
	}

	gatewayID := result.ID
	updates := map[string]any{"gateway_refund_id": gatewayID, "last_error": nil}
	if notes != "" {
		updates["admin_notes"] = notes
	}
	refund.GatewayRefundID = &gatewayID
	refund.LastError = nil
	return s.transition(ctx, refund, EventApprove, updates, actor, nil)
}

func (s *service) transition(ctx context.Context, refund *models.RefundRequest, event Event, updates map[string]any, actor types.Actor, inTx func(tx *gorm.DB) error) (*models.RefundRequest, error) {
	from := refund.Status
	to, err := lifecycle.Next(from, event)
	if err != nil {
		return nil, err
	}
	updates["status"] = to

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Update(ctx, refund.ID, from, updates)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "refund status changed concurrently").
				WithDetails(map[string]any{"from": string(from), "event": string(event)})
		}
		if inTx != nil {
			if err := inTx(tx); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundStatusChanged,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Actor:         outbox.ActorFrom(actor),
			Data: payloads.RefundStatusChangedEvent{
				RefundRequestID: refund.ID,
				OrderID:         refund.OrderID,
				Amount:          refund.Amount,
				From:            from,
				To:              to,
				GatewayRefundID: refund.GatewayRefundID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	refund.Status = to
	if notes, ok := updates["admin_notes"].(string); ok {
		refund.AdminNotes = notes
	}
	s.audit(ctx, string(event), refund, actor)
	if s.notifier != nil {
		s.notifier.Enqueue(ctx, notifications.RefundStatusChanged(*refund))
	}
	return refund, nil
}

func (s *service) audit(ctx context.Context, action string, refund *models.RefundRequest, actor types.Actor) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"action":    action,
		"refund_id": refund.ID.String(),
		"order_id":  refund.OrderID.String(),
		"user_id":   refund.UserID.String(),
		"amount":    refund.Amount,
		"reason":    refund.Reason,
		"status":    string(refund.Status),
	}
	if actor.UserID != uuid.Nil {
		fields["actor_id"] = actor.UserID.String()
		fields["actor_role"] = string(actor.Role)
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "refund.audit")
}

func causeCode(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return pkgerrors.CodeGatewayRejected
}
