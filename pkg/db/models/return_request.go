package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ReturnRequest is a customer's request to send back part of a delivered order.
type ReturnRequest struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	SKUID             uuid.UUID                 `gorm:"column:sku_id;type:uuid;not null"`
	UserID            uuid.UUID                 `gorm:"column:user_id;type:uuid;not null;index"`
	Quantity          int                       `gorm:"column:quantity;not null;check:quantity > 0"`
	Reason            string                    `gorm:"column:reason;not null"`
	Images            []string                  `gorm:"column:images;type:jsonb;serializer:json"`
	Status            enums.ReturnStatus        `gorm:"column:status;type:text;not null;default:'pending'"`
	AdminRejectReason *enums.ReturnRejectReason `gorm:"column:admin_reject_reason;type:text"`
	AdminNotes        string                    `gorm:"column:admin_notes"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
