package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Delivery tracks the single shipment of an order.
type Delivery struct {
	ID                    uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID               uuid.UUID             `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CustomerID            uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	DeliveryPersonnelID   *uuid.UUID            `gorm:"column:delivery_personnel_id;type:uuid;index"`
	ShippingAddress       types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	Status                enums.DeliveryStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	ProofOfDeliveryURL    *string               `gorm:"column:proof_of_delivery_url"`
	RequiresSignature     bool                  `gorm:"column:requires_signature;not null;default:false"`
	DeliveryFee           int64                 `gorm:"column:delivery_fee;not null;default:0"`
	TrackingNumber        string                `gorm:"column:tracking_number"`
	EstimatedDeliveryDate *time.Time            `gorm:"column:estimated_delivery_date"`
	DeliveryDate          *time.Time            `gorm:"column:delivery_date"`
	DeliveryNotes         string                `gorm:"column:delivery_notes"`
	CreatedAt             time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// AssignedTo reports whether personnelID is the courier on the delivery.
func (d Delivery) AssignedTo(personnelID uuid.UUID) bool {
	return d.DeliveryPersonnelID != nil && *d.DeliveryPersonnelID == personnelID
}
