package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the order lifecycle.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*models.Order, error)
	List(ctx context.Context, actor types.Actor, filter ListFilter) ([]models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*models.Order, error)
	Advance(ctx context.Context, orderID uuid.UUID, event Event, actor types.Actor) (*models.Order, error)
}

type ServiceParams struct {
	Repo     *Repository
	Tx       txRunner
	Outbox   outbox.Emitter
	Notifier notifications.Notifier
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	tx       txRunner
	outbox   outbox.Emitter
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(order.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// List returns the caller's orders; admins may list everything.
func (s *service) List(ctx context.Context, actor types.Actor, filter ListFilter) ([]models.Order, error) {
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	return s.repo.List(ctx, filter)
}

// Cancel is allowed for the owner or an admin while the order is pending. Stock is not
// returned to the shelf.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*models.Order, error) {
	return s.transition(ctx, orderID, EventCancel, actor, func(order *models.Order) error {
		if !actor.IsAdmin() && !actor.Owns(order.UserID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer or an admin can cancel an order")
		}
		return nil
	})
}

// Advance moves an order forward on behalf of an admin.
func (s *service) Advance(ctx context.Context, orderID uuid.UUID, event Event, actor types.Actor) (*models.Order, error) {
	if event == EventCancel {
		return s.Cancel(ctx, orderID, actor)
	}
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.transition(ctx, orderID, event, actor, nil)
}

func (s *service) transition(ctx context.Context, orderID uuid.UUID, event Event, actor types.Actor, authorize func(*models.Order) error) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var (
		updated *models.Order
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(order); err != nil {
				return err
			}
		}

		from = order.OrderStatus
		to, err := lifecycle.Next(from, event)
		if err != nil {
			return err
		}

		updates := map[string]any{"order_status": to}
		if to == enums.OrderStatusCancelled {
			updates["payment_status"] = enums.PaymentStatusFailed
			updates["is_paid"] = false
		}
		ok, err := repo.UpdateStatus(ctx, order.ID, from, updates)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order status changed concurrently").
				WithDetails(map[string]any{"from": string(from), "event": string(event)})
		}

		order.OrderStatus = to
		if to == enums.OrderStatusCancelled {
			order.PaymentStatus = enums.PaymentStatusFailed
			order.IsPaid = false
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.ActorFrom(actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       order.ID,
				From:          from,
				To:            to,
				PaymentStatus: order.PaymentStatus,
				ChangedAt:     s.now().UTC(),
			},
		}); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":   updated.ID.String(),
			"from":       string(from),
			"to":         string(updated.OrderStatus),
			"actor_id":   actor.UserID.String(),
			"actor_role": string(actor.Role),
		})
		s.logg.Info(logCtx, "order."+string(updated.OrderStatus))
	}
	if s.notifier != nil {
		s.notifier.Enqueue(ctx, notifications.OrderStatusChanged(*updated, updated.OrderStatus))
	}
	return updated, nil
}
