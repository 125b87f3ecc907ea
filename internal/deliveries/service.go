package deliveries

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressFinder interface {
	FindOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type roleLookup interface {
	FindRole(ctx context.Context, id uuid.UUID) (enums.UserRole, error)
}

type imageUploader interface {
	UploadImage(ctx context.Context, prefix string, data []byte) (*gcs.Object, error)
}

// CreateInput opens a delivery for a paid order.
type CreateInput struct {
	OrderID               uuid.UUID  `json:"orderId" validate:"required"`
	RequiresSignature     bool       `json:"requiresSignature"`
	DeliveryFee           int64      `json:"deliveryFee" validate:"min=0"`
	TrackingNumber        string     `json:"trackingNumber" validate:"max=64"`
	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate"`
	Notes                 string     `json:"notes" validate:"max=1000"`
}

// Service exposes the delivery lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput, actor types.Actor) (*models.Delivery, error)
	Assign(ctx context.Context, deliveryID, personnelID uuid.UUID, actor types.Actor) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, deliveryID uuid.UUID, status enums.DeliveryStatus, actor types.Actor) (*models.Delivery, error)
	UploadProof(ctx context.Context, deliveryID uuid.UUID, data []byte, notes string, actor types.Actor) (*models.Delivery, error)
	Get(ctx context.Context, deliveryID uuid.UUID, actor types.Actor) (*models.Delivery, error)
	List(ctx context.Context, actor types.Actor, filter ListFilter) ([]models.Delivery, error)
}

type ServiceParams struct {
	Repo      *Repository
	Orders    *orders.Repository
	Addresses addressFinder
	Users     roleLookup
	Ledger    inventory.Ledger
	Storage   imageUploader
	Tx        txRunner
	Outbox    outbox.Emitter
	Notifier  notifications.Notifier
	Logger    *logger.Logger
}

type service struct {
	repo      *Repository
	orders    *orders.Repository
	addresses addressFinder
	users     roleLookup
	ledger    inventory.Ledger
	storage   imageUploader
	tx        txRunner
	outbox    outbox.Emitter
	notifier  notifications.Notifier
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("delivery repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Addresses == nil:
		return nil, fmt.Errorf("address finder required")
	case params.Users == nil:
		return nil, fmt.Errorf("role lookup required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("inventory ledger required")
	case params.Storage == nil:
		return nil, fmt.Errorf("proof storage required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      params.Repo,
		orders:    params.Orders,
		addresses: params.Addresses,
		users:     params.Users,
		ledger:    params.Ledger,
		storage:   params.Storage,
		tx:        params.Tx,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput, actor types.Actor) (*models.Delivery, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsForOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery").
			WithDetails(map[string]any{"order_id": order.ID.String()})
	}
	address, err := s.addresses.FindOwned(ctx, order.UserID, order.AddressID)
	if err != nil {
		return nil, err
	}

	delivery := &models.Delivery{
		OrderID:               order.ID,
		CustomerID:            order.UserID,
		ShippingAddress:       address.Snapshot(),
		Status:                enums.DeliveryStatusPending,
		RequiresSignature:     input.RequiresSignature,
		DeliveryFee:           input.DeliveryFee,
		TrackingNumber:        strings.TrimSpace(input.TrackingNumber),
		EstimatedDeliveryDate: input.EstimatedDeliveryDate,
		DeliveryNotes:         strings.TrimSpace(input.Notes),
	}
	if err := s.repo.Create(ctx, delivery); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
	}
	s.log(ctx, delivery, "", "delivery.created")
	return delivery, nil
}

// Assign hands a pending delivery to a courier.
func (s *service) Assign(ctx context.Context, deliveryID, personnelID uuid.UUID, actor types.Actor) (*models.Delivery, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if personnelID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery personnel id required")
	}
	role, err := s.users.FindRole(ctx, personnelID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidPersonnel, "delivery personnel not found")
		}
		return nil, err
	}
	if role != enums.UserRoleDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidPersonnel, "user is not delivery personnel").
			WithDetails(map[string]any{"user_id": personnelID.String(), "role": string(role)})
	}
	return s.transition(ctx, deliveryID, EventAssign, actor, func(_ *gorm.DB, _ *models.Delivery, updates map[string]any) error {
		updates["delivery_personnel_id"] = personnelID
		return nil
	})
}

// UpdateStatus moves a delivery to status. Couriers may only touch deliveries assigned to them.
func (s *service) UpdateStatus(ctx context.Context, deliveryID uuid.UUID, status enums.DeliveryStatus, actor types.Actor) (*models.Delivery, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery status")
	}
	if !actor.IsAdmin() && !actor.IsDelivery() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery or admin role required")
	}

	var event Event
	return s.transitionTo(ctx, deliveryID, status, &event, actor, func(tx *gorm.DB, delivery *models.Delivery, updates map[string]any) error {
		switch event {
		case EventAssign:
			return pkgerrors.New(pkgerrors.CodeValidation, "use assign to set delivery personnel")
		case EventDeliver:
			if delivery.RequiresSignature && delivery.ProofOfDeliveryURL == nil {
				return pkgerrors.New(pkgerrors.CodeProofRequired, "proof of delivery required").
					WithDetails(map[string]any{"delivery_id": delivery.ID.String()})
			}
			updates["delivery_date"] = s.now().UTC()
		case EventFail:
			return s.restock(ctx, tx, delivery)
		}
		return nil
	})
}

// UploadProof stores a proof image while the delivery is out for delivery.
func (s *service) UploadProof(ctx context.Context, deliveryID uuid.UUID, data []byte, notes string, actor types.Actor) (*models.Delivery, error) {
	delivery, err := s.repo.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if err := authorizeCourier(delivery, actor); err != nil {
		return nil, err
	}
	if lifecycle.Terminal(delivery.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery is closed").
			WithDetails(map[string]any{"from": string(delivery.Status)})
	}
	if delivery.Status != enums.DeliveryStatusOutForDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "proof can only be uploaded while out for delivery").
			WithDetails(map[string]any{"from": string(delivery.Status)})
	}

	object, err := s.storage.UploadImage(ctx, "deliveries/"+delivery.ID.String(), data)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{"proof_of_delivery_url": object.URL}
	if notes = strings.TrimSpace(notes); notes != "" {
		updates["delivery_notes"] = notes
	}
	ok, err := s.repo.Update(ctx, delivery.ID, enums.DeliveryStatusOutForDelivery, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery status changed concurrently")
	}
	delivery.ProofOfDeliveryURL = &object.URL
	if notes != "" {
		delivery.DeliveryNotes = notes
	}
	s.log(ctx, delivery, "", "delivery.proof_uploaded")
	return delivery, nil
}

func (s *service) Get(ctx context.Context, deliveryID uuid.UUID, actor types.Actor) (*models.Delivery, error) {
	delivery, err := s.repo.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin(), actor.Owns(delivery.CustomerID), delivery.AssignedTo(actor.UserID):
		return delivery, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
	}
}

func (s *service) List(ctx context.Context, actor types.Actor, filter ListFilter) ([]models.Delivery, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsDelivery():
		filter.PersonnelID = actor.UserID
	default:
		filter.CustomerID = actor.UserID
	}
	return s.repo.List(ctx, filter)
}

type mutateFn func(tx *gorm.DB, delivery *models.Delivery, updates map[string]any) error

func (s *service) transition(ctx context.Context, deliveryID uuid.UUID, event Event, actor types.Actor, mutate mutateFn) (*models.Delivery, error) {
	return s.apply(ctx, deliveryID, actor, func(from enums.DeliveryStatus) (Event, enums.DeliveryStatus, error) {
		to, err := lifecycle.Next(from, event)
		return event, to, err
	}, mutate)
}

func (s *service) transitionTo(ctx context.Context, deliveryID uuid.UUID, status enums.DeliveryStatus, event *Event, actor types.Actor, mutate mutateFn) (*models.Delivery, error) {
	return s.apply(ctx, deliveryID, actor, func(from enums.DeliveryStatus) (Event, enums.DeliveryStatus, error) {
		ev, err := lifecycle.EventTo(from, status)
		*event = ev
		return ev, status, err
	}, mutate)
}

func (s *service) apply(ctx context.Context, deliveryID uuid.UUID, actor types.Actor, resolve func(enums.DeliveryStatus) (Event, enums.DeliveryStatus, error), mutate mutateFn) (*models.Delivery, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}

	var (
		updated   *models.Delivery
		from      enums.DeliveryStatus
		restocked bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindByID(ctx, deliveryID)
		if err != nil {
			return err
		}
		if err := authorizeCourier(delivery, actor); err != nil {
			return err
		}

		from = delivery.Status
		event, to, err := resolve(from)
		if err != nil {
			return err
		}

		updates := map[string]any{"status": to}
		if mutate != nil {
			if err := mutate(tx, delivery, updates); err != nil {
				return err
			}
		}
		ok, err := repo.Update(ctx, delivery.ID, from, updates)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery status changed concurrently").
				WithDetails(map[string]any{"from": string(from), "event": string(event)})
		}

		delivery.Status = to
		if personnel, ok := updates["delivery_personnel_id"].(uuid.UUID); ok {
			delivery.DeliveryPersonnelID = &personnel
		}
		if at, ok := updates["delivery_date"].(time.Time); ok {
			delivery.DeliveryDate = &at
		}
		restocked = event == EventFail

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryStatusChanged,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			Actor:         outbox.ActorFrom(actor),
			Data: payloads.DeliveryStatusChangedEvent{
				DeliveryID: delivery.ID,
				OrderID:    delivery.OrderID,
				From:       from,
				To:         to,
				Restocked:  restocked,
			},
		}); err != nil {
			return err
		}
		updated = delivery
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx, updated, from, "delivery."+string(updated.Status))
	if restocked {
		s.log(ctx, updated, from, "delivery.failed.restocked")
	}
	if s.notifier != nil {
		s.notifier.Enqueue(ctx, notifications.DeliveryStatusChanged(updated.CustomerID, *updated))
	}
	return updated, nil
}

// restock puts every unit of the order back on the shelf inside the transition's transaction.
func (s *service) restock(ctx context.Context, tx *gorm.DB, delivery *models.Delivery) error {
	order, err := s.orders.WithTx(tx).FindByID(ctx, delivery.OrderID)
	if err != nil {
		return err
	}
	ledger := s.ledger.WithTx(tx)
	for _, item := range order.Items {
		if err := ledger.Restock(ctx, item.SKUID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func authorizeCourier(delivery *models.Delivery, actor types.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsDelivery() && delivery.AssignedTo(actor.UserID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "delivery is not assigned to you")
}

func (s *service) log(ctx context.Context, delivery *models.Delivery, from enums.DeliveryStatus, msg string) {
	if s.logg == nil || delivery == nil {
		return
	}
	fields := map[string]any{
		"delivery_id": delivery.ID.String(),
		"order_id":    delivery.OrderID.String(),
		"status":      string(delivery.Status),
		"machine":     lifecycle.Name(),
		"terminal":    lifecycle.Terminal(delivery.Status),
	}
	if from != "" {
		fields["from"] = string(from)
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}
