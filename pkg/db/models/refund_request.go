package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// RefundRequest is a request to return money through the payment gateway.
type RefundRequest struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	UserID          uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	ReturnRequestID *uuid.UUID         `gorm:"column:return_request_id;type:uuid"`
	Amount          int64              `gorm:"column:amount;not null;check:amount > 0"`
	Reason          string             `gorm:"column:reason;not null"`
	PaymentIntentID string             `gorm:"column:payment_intent_id;type:text;not null"`
	Status          enums.RefundStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayRefundID *string            `gorm:"column:gateway_refund_id"`
	AdminNotes      string             `gorm:"column:admin_notes"`
	LastError       *string            `gorm:"column:last_error"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
