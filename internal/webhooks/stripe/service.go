package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v78"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

var errDuplicateSession = errors.New("checkout session already converted")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*cart.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type couponLedger interface {
	RedeemCode(ctx context.Context, tx *gorm.DB, userID uuid.UUID, code string) (*models.Coupon, error)
	AwardPoints(ctx context.Context, tx *gorm.DB, userID uuid.UUID, orderAmount int64) (int, error)
}

type ServiceParams struct {
	Tx        txRunner
	Orders    *orders.Repository
	Addresses *address.Repository
	Ledger    inventory.Ledger
	Coupons   couponLedger
	Carts     cartStore
	Outbox    outbox.Emitter
	Notifier  notifications.Notifier
	Metrics   *metrics.WebhookMetrics
	Logger    *logger.Logger
}

// Service turns confirmed checkout sessions into orders.
type Service struct {
	tx        txRunner
	orders    *orders.Repository
	addresses *address.Repository
	ledger    inventory.Ledger
	coupons   couponLedger
	carts     cartStore
	outbox    outbox.Emitter
	notifier  notifications.Notifier
	metrics   *metrics.WebhookMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Addresses == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "address repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger required")
	}
	if params.Coupons == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coupon ledger required")
	}
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart store required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	return &Service{
		tx:        params.Tx,
		orders:    params.Orders,
		addresses: params.Addresses,
		ledger:    params.Ledger,
		coupons:   params.Coupons,
		carts:     params.Carts,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// HandleEvent processes checkout.session.completed and acknowledges every other type.
func (s *Service) HandleEvent(ctx context.Context, event *stripego.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeMalformedMetadata, "stripe event required")
	}
	eventType := string(event.Type)
	if event.Type != stripego.EventTypeCheckoutSessionCompleted {
		s.metrics.Observe(eventType, metrics.OutcomeIgnored)
		return nil
	}

	session, err := stripe.DecodeCompletedSession(event)
	if err != nil {
		s.metrics.Observe(eventType, metrics.OutcomeRejected)
		return err
	}
	meta, err := parseMetadata(session.Metadata)
	if err != nil {
		s.metrics.Observe(eventType, metrics.OutcomeRejected)
		return err
	}

	order, err := s.createOrder(ctx, session, meta)
	if errors.Is(err, errDuplicateSession) {
		s.metrics.Observe(eventType, metrics.OutcomeDuplicate)
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "session_id", session.ID), "webhook.duplicate_session")
		}
		return nil
	}
	if err != nil {
		s.metrics.Observe(eventType, metrics.OutcomeFailed)
		return err
	}
	s.metrics.Observe(eventType, metrics.OutcomeProcessed)

	if err := s.carts.Clear(ctx, meta.userID); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithUserID(ctx, meta.userID.String()), "webhook.cart_clear_failed", err)
	}
	if s.notifier != nil {
		s.notifier.Enqueue(ctx, notifications.OrderConfirmed(*order))
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":   order.ID.String(),
			"user_id":    order.UserID.String(),
			"session_id": session.ID,
			"total":      order.TotalAmount,
		})
		s.logg.Info(logCtx, "order.created")
	}
	return nil
}

type sessionMetadata struct {
	userID     uuid.UUID
	addressID  uuid.UUID
	couponCode string
}

func parseMetadata(meta map[string]string) (sessionMetadata, error) {
	var out sessionMetadata
	userID, err := uuid.Parse(strings.TrimSpace(meta[stripe.MetadataUserID]))
	if err != nil || userID == uuid.Nil {
		return out, pkgerrors.New(pkgerrors.CodeMalformedMetadata, "session metadata userId missing or invalid")
	}
	addressID, err := uuid.Parse(strings.TrimSpace(meta[stripe.MetadataAddressID]))
	if err != nil || addressID == uuid.Nil {
		return out, pkgerrors.New(pkgerrors.CodeMalformedMetadata, "session metadata addressId missing or invalid")
	}
	out.userID = userID
	out.addressID = addressID
	out.couponCode = strings.TrimSpace(meta[stripe.MetadataCouponCode])
	return out, nil
}

func (s *Service) createOrder(ctx context.Context, session *stripe.CompletedSession, meta sessionMetadata) (*models.Order, error) {
	if strings.TrimSpace(session.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedMetadata, "checkout session id missing")
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		existing, err := repo.FindBySessionID(ctx, session.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errDuplicateSession
		}

		if _, err := s.addresses.WithTx(tx).FindOwned(ctx, meta.userID, meta.addressID); err != nil {
			return err
		}

		current, err := s.carts.Get(ctx, meta.userID)
		if err != nil {
			return err
		}
		selected := current.SelectedItems()
		if len(selected) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "no selected cart lines for paid session").
				WithDetails(map[string]any{"session_id": session.ID})
		}

		order := &models.Order{
			UserID:            meta.userID,
			AddressID:         meta.addressID,
			PaymentMethod:     enums.PaymentMethodStripe,
			PaymentStatus:     enums.PaymentStatusPaid,
			OrderStatus:       enums.OrderStatusPending,
			IsPaid:            true,
			CheckoutSessionID: session.ID,
		}
		paidAt := s.now().UTC()
		order.PaidAt = &paidAt
		if session.PaymentIntentID != "" {
			intent := session.PaymentIntentID
			order.PaymentIntentID = &intent
		}

		couponPercent := 0
		if meta.couponCode != "" {
			coupon, err := s.coupons.RedeemCode(ctx, tx, meta.userID, meta.couponCode)
			if err != nil {
				return err
			}
			couponPercent = coupon.ValuePercent
			order.CouponID = &coupon.ID
		}

		ledger := s.ledger.WithTx(tx)
		for _, line := range selected {
			items, err := s.settleLine(ctx, ledger, line, couponPercent)
			if err != nil {
				return err
			}
			for _, item := range items {
				order.Subtotal += checkout.UnitPrice(item.PriceSnapshot, item.DiscountSnapshot, 0) * int64(item.Quantity)
				order.TotalAmount += item.LineTotal()
			}
			order.Items = append(order.Items, items...)
		}

		if err := repo.Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errDuplicateSession
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if _, err := s.coupons.AwardPoints(ctx, tx, order.UserID, order.TotalAmount); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.ActorFrom(types.Actor{UserID: order.UserID, Role: enums.UserRoleUser}),
			Data: payloads.OrderCreatedEvent{
				OrderID:           order.ID,
				UserID:            order.UserID,
				CheckoutSessionID: order.CheckoutSessionID,
				TotalAmount:       order.TotalAmount,
				ItemCount:         len(order.Items),
				CouponID:          order.CouponID,
			},
		}); err != nil {
			return err
		}

		s.auditItems(ctx, order)
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// settleLine reserves and commits one cart line, drawing returned units first, and returns
// one order item per price tier.
func (s *Service) settleLine(ctx context.Context, ledger inventory.Ledger, line cart.LineItem, couponPercent int) ([]models.OrderItem, error) {
	sku, err := ledger.Get(ctx, line.SKUID)
	if err != nil {
		return nil, err
	}
	fromReturned := min(line.Quantity, sku.ReturnedStock)

	if err := ledger.Reserve(ctx, line.SKUID, line.Quantity); err != nil {
		return nil, err
	}
	if err := ledger.CommitSale(ctx, line.SKUID, line.Quantity, fromReturned); err != nil {
		return nil, err
	}

	base := models.OrderItem{
		SKUID:            line.SKUID,
		ProductID:        line.ProductID,
		SKUName:          line.SKUName,
		Image:            line.Image,
		PriceSnapshot:    line.PriceSnapshot,
		DiscountSnapshot: line.DiscountSnapshot,
		StockSnapshot:    line.StockSnapshot,
	}
	items := make([]models.OrderItem, 0, 2)
	if fromReturned > 0 {
		returned := base
		returned.Quantity = fromReturned
		returned.UnitPrice = checkout.ReturnedUnitPrice(line.PriceSnapshot, line.DiscountSnapshot, couponPercent)
		returned.FromReturnedStock = true
		items = append(items, returned)
	}
	if normal := line.Quantity - fromReturned; normal > 0 {
		regular := base
		regular.Quantity = normal
		regular.UnitPrice = checkout.UnitPrice(line.PriceSnapshot, line.DiscountSnapshot, couponPercent)
		items = append(items, regular)
	}
	return items, nil
}

func (s *Service) auditItems(ctx context.Context, order *models.Order) {
	if s.logg == nil {
		return
	}
	for _, item := range order.Items {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":      order.ID.String(),
			"sku_id":        item.SKUID.String(),
			"quantity":      item.Quantity,
			"unit_price":    item.UnitPrice,
			"from_returned": item.FromReturnedStock,
		})
		s.logg.Info(logCtx, fmt.Sprintf("order.item.%s", itemTier(item)))
	}
}

func itemTier(item models.OrderItem) string {
	if item.FromReturnedStock {
		return "returned_stock"
	}
	return "regular_stock"
}
