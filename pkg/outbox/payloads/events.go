package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once per confirmed checkout session.
type OrderCreatedEvent struct {
	OrderID           uuid.UUID  `json:"order_id"`
	UserID            uuid.UUID  `json:"user_id"`
	CheckoutSessionID string     `json:"checkout_session_id"`
	TotalAmount       int64      `json:"total_amount"`
	ItemCount         int        `json:"item_count"`
	CouponID          *uuid.UUID `json:"coupon_id,omitempty"`
}

// OrderStatusChangedEvent is emitted for every order lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	From          enums.OrderStatus   `json:"from"`
	To            enums.OrderStatus   `json:"to"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	ChangedAt     time.Time           `json:"changed_at"`
}

// DeliveryStatusChangedEvent is emitted for every delivery lifecycle transition.
type DeliveryStatusChangedEvent struct {
	DeliveryID uuid.UUID            `json:"delivery_id"`
	OrderID    uuid.UUID            `json:"order_id"`
	From       enums.DeliveryStatus `json:"from"`
	To         enums.DeliveryStatus `json:"to"`
	Restocked  bool                 `json:"restocked,omitempty"`
}

// ReturnStatusChangedEvent is emitted when an admin reviews a return.
type ReturnStatusChangedEvent struct {
	ReturnRequestID uuid.UUID          `json:"return_request_id"`
	OrderID         uuid.UUID          `json:"order_id"`
	SKUID           uuid.UUID          `json:"sku_id"`
	Quantity        int                `json:"quantity"`
	From            enums.ReturnStatus `json:"from"`
	To              enums.ReturnStatus `json:"to"`
}

// RefundStatusChangedEvent is emitted when a refund moves through review or the gateway.
type RefundStatusChangedEvent struct {
	RefundRequestID uuid.UUID          `json:"refund_request_id"`
	OrderID         uuid.UUID          `json:"order_id"`
	Amount          int64              `json:"amount"`
	From            enums.RefundStatus `json:"from"`
	To              enums.RefundStatus `json:"to"`
	GatewayRefundID *string            `json:"gateway_refund_id,omitempty"`
}
