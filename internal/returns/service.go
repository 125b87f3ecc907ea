package returns

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/storage/gcs"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	MaxEvidenceImages  = 5
	approvedRefundNote = "Return approved"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type imageUploader interface {
	UploadImage(ctx context.Context, prefix string, data []byte) (*gcs.Object, error)
}

type CreateInput struct {
	OrderID  uuid.UUID `json:"orderId" validate:"required"`
	SKUID    uuid.UUID `json:"skuId" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
	Reason   string    `json:"reason" validate:"required,max=1000"`
}

// Approval is the outcome of approving a return. Refund is nil when the order had no payment
// intent. RefundErr carries a gateway failure; the refund then stays pending.
type Approval struct {
	Request   *models.ReturnRequest
	Refund    *models.RefundRequest
	RefundErr error
}

// Service exposes the return request lifecycle.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput, images [][]byte) (*models.ReturnRequest, error)
	Approve(ctx context.Context, requestID uuid.UUID, notes string, actor types.Actor) (*Approval, error)
	Reject(ctx context.Context, requestID uuid.UUID, reason enums.ReturnRejectReason, notes string, actor types.Actor) (*models.ReturnRequest, error)
	Complete(ctx context.Context, requestID uuid.UUID, notes string, actor types.Actor) (*models.ReturnRequest, error)
	Get(ctx context.Context, requestID uuid.UUID, actor types.Actor) (*models.ReturnRequest, error)
	List(ctx context.Context, actor types.Actor, filter ListFilter) ([]models.ReturnRequest, error)
}

type ServiceParams struct {
	Repo     *Repository
	Orders   *orders.Repository
	Ledger   inventory.Ledger
	Refunds  refunds.Service
	Storage  imageUploader
	Tx       txRunner
	Outbox   outbox.Emitter
	Notifier notifications.Notifier
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	orders   *orders.Repository
	ledger   inventory.Ledger
	refunds  refunds.Service
	storage  imageUploader
	tx       txRunner
	outbox   outbox.Emitter
	notifier notifications.Notifier
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("return repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("inventory ledger required")
	case params.Refunds == nil:
		return nil, fmt.Errorf("refund service required")
	case params.Storage == nil:
		return nil, fmt.Errorf("evidence storage required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     params.Repo,
		orders:   params.Orders,
		ledger:   params.Ledger,
		refunds:  params.Refunds,
		storage:  params.Storage,
		tx:       params.Tx,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput, images [][]byte) (*models.ReturnRequest, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if len(images) > MaxEvidenceImages {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d images allowed", MaxEvidenceImages))
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.OrderStatus != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotDelivered, "only delivered orders can be returned").
			WithDetails(map[string]any{"order_id": order.ID.String(), "status": string(order.OrderStatus)})
	}
	ordered := order.QuantityOf(input.SKUID)
	if ordered == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is not part of the order")
	}
	if input.Quantity > ordered {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return quantity exceeds ordered quantity").
			WithDetails(map[string]any{"requested": input.Quantity, "ordered": ordered})
	}

	active, err := s.repo.HasActive(ctx, order.ID, input.SKUID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, duplicateRequest(order.ID, input.SKUID)
	}

	requestID := uuid.New()
	urls := make([]string, 0, len(images))
	for _, data := range images {
		object, err := s.storage.UploadImage(ctx, "returns/"+requestID.String(), data)
		if err != nil {
			return nil, err
		}
		urls = append(urls, object.URL)
	}

	req := &models.ReturnRequest{
		ID:       requestID,
		OrderID:  order.ID,
		SKUID:    input.SKUID,
		UserID:   userID,
		Quantity: input.Quantity,
		Reason:   reason,
		Images:   urls,
		Status:   enums.ReturnStatusPending,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		if db.IsUniqueViolation(err, "uq_return_requests_active") {
			return nil, duplicateRequest(order.ID, input.SKUID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return request")
	}
	s.log(ctx, req, "", "return.created")
	return req, nil
}

// Approve marks the request approved, moves the units into returned stock and opens a refund,
// all in one transaction. The gateway is contacted only after commit.
func (s *service) Approve(ctx context.Context, requestID uuid.UUID, notes string, actor types.Actor) (*Approval, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var refund *models.RefundRequest
	req, err := s.transition(ctx, requestID, EventApprove, notesUpdate(notes), actor, func(tx *gorm.DB, req *models.ReturnRequest) error {
		if err := s.ledger.WithTx(tx).MarkReturned(ctx, req.SKUID, req.Quantity); err != nil {
			return err
		}
		order, err := s.orders.WithTx(tx).FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		refund, err = s.refunds.CreatePending(ctx, tx, order, &req.ID, approvedRefundNote)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &Approval{Request: req, Refund: refund}
	if refund != nil {
		submitted, err := s.refunds.Submit(ctx, refund.ID, actor)
		if submitted != nil {
			result.Refund = submitted
		}
		if err != nil {
			result.RefundErr = err
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "refund_id", refund.ID.String()), "return.refund_left_pending")
			}
		}
	}
	return result, nil
}

func (s *service) Reject(ctx context.Context, requestID uuid.UUID, reason enums.ReturnRejectReason, notes string, actor types.Actor) (*models.ReturnRequest, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown reject reason").
			WithDetails(map[string]any{"reason": string(reason)})
	}
	updates := notesUpdate(notes)
	updates["admin_reject_reason"] = reason
	req, err := s.transition(ctx, requestID, EventReject, updates, actor, nil)
	if err != nil {
		return nil, err
	}
	req.AdminRejectReason = &reason
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"return_request_id": req.ID.String(),
			"sku_id":            req.SKUID.String(),
			"quantity":          req.Quantity,
			"reject_reason":     string(reason),
			"actor_id":          actor.UserID.String(),
		}), "return.rejected.audit")
	}
	return req, nil
}

func (s *service) Complete(ctx context.Context, requestID uuid.UUID, notes string, actor types.Actor) (*models.ReturnRequest, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.transition(ctx, requestID, EventComplete, notesUpdate(notes), actor, nil)
}

func (s *service) Get(ctx context.Context, requestID uuid.UUID, actor types.Actor) (*models.ReturnRequest, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(req.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	}
	return req, nil
}

func (s *service) List(ctx context.Context, actor types.Actor, filter ListFilter) ([]models.ReturnRequest, error) {
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	return s.repo.List(ctx, filter)
}

func (s *service) transition(ctx context.Context, requestID uuid.UUID, event Event, updates map[string]any, actor types.Actor, inTx func(tx *gorm.DB, req *models.ReturnRequest) error) (*models.ReturnRequest, error) {
	var (
		updated *models.ReturnRequest
		from    enums.ReturnStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		from = req.Status
		to, err := lifecycle.Next(from, event)
		if err != nil {
			return err
		}
		updates["status"] = to
		ok, err := repo.Update(ctx, req.ID, from, updates)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "return request changed concurrently").
				WithDetails(map[string]any{"from": string(from), "event": string(event)})
		}
		req.Status = to
		if notes, ok := updates["admin_notes"].(string); ok {
			req.AdminNotes = notes
		}
		if inTx != nil {
			if err := inTx(tx, req); err != nil {
				return err
			}
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnStatusChanged,
			AggregateType: enums.AggregateReturn,
			AggregateID:   req.ID,
			Actor:         outbox.ActorFrom(actor),
			Data: payloads.ReturnStatusChangedEvent{
				ReturnRequestID: req.ID,
				OrderID:         req.OrderID,
				SKUID:           req.SKUID,
				Quantity:        req.Quantity,
				From:            from,
				To:              to,
			},
		}); err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx, updated, from, "return."+string(updated.Status))
	if s.notifier != nil {
		s.notifier.Enqueue(ctx, notifications.ReturnStatusChanged(updated.UserID, *updated))
	}
	return updated, nil
}

func notesUpdate(notes string) map[string]any {
	updates := map[string]any{}
	if notes = strings.TrimSpace(notes); notes != "" {
		updates["admin_notes"] = notes
	}
	return updates
}

func duplicateRequest(orderID, skuID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateReturnRequest, "an open return request already exists for this item").
		WithDetails(map[string]any{"order_id": orderID.String(), "sku_id": skuID.String()})
}

func (s *service) log(ctx context.Context, req *models.ReturnRequest, from enums.ReturnStatus, msg string) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"return_request_id": req.ID.String(),
		"order_id":          req.OrderID.String(),
		"sku_id":            req.SKUID.String(),
		"status":            string(req.Status),
	}
	if from != "" {
		fields["from"] = string(from)
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}
