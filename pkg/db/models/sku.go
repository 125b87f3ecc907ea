package models

import (
	"time"

	"github.com/google/uuid"
)

// SKU is a purchasable variant together with its stock counters.
// Stock, ReservedStock, ReturnedStock and IsReturned are written only by the inventory ledger.
type SKU struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	VariantName   string    `gorm:"column:variant_name;not null"`
	Image         string    `gorm:"column:image"`
	Price         int64     `gorm:"column:price;not null"`
	Discount      int       `gorm:"column:discount;not null;default:0"`
	Stock         int       `gorm:"column:stock;not null;default:0;check:stock >= 0"`
	ReservedStock int       `gorm:"column:reserved_stock;not null;default:0;check:reserved_stock >= 0"`
	ReturnedStock int       `gorm:"column:returned_stock;not null;default:0;check:returned_stock >= 0"`
	IsReturned    bool      `gorm:"column:is_returned;not null;default:false"`
	Returnable    bool      `gorm:"column:returnable;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SKU) TableName() string { return "skus" }

// Available is the quantity a new reservation may claim.
func (s SKU) Available() int {
	return s.Stock - s.ReservedStock
}
