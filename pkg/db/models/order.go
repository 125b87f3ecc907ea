package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is created once per confirmed payment. Its items never change after creation.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	AddressID         uuid.UUID           `gorm:"column:address_id;type:uuid;not null"`
	Subtotal          int64               `gorm:"column:subtotal;not null"`
	TotalAmount       int64               `gorm:"column:total_amount;not null"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'stripe'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	OrderStatus       enums.OrderStatus   `gorm:"column:order_status;type:text;not null;default:'pending'"`
	IsPaid            bool                `gorm:"column:is_paid;not null;default:false"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	CheckoutSessionID string              `gorm:"column:checkout_session_id;type:text;not null;uniqueIndex"`
	PaymentIntentID   *string             `gorm:"column:payment_intent_id;type:text;uniqueIndex"`
	CouponID          *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	IsRefunded        bool                `gorm:"column:is_refunded;not null;default:false"`
	RefundedAt        *time.Time          `gorm:"column:refunded_at"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem captures one priced line of an order together with the snapshots it was priced from.
type OrderItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	SKUID             uuid.UUID `gorm:"column:sku_id;type:uuid;not null"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	SKUName           string    `gorm:"column:sku_name;not null"`
	Image             string    `gorm:"column:image"`
	Quantity          int       `gorm:"column:quantity;not null;check:quantity > 0"`
	PriceSnapshot     int64     `gorm:"column:price_snapshot;not null"`
	DiscountSnapshot  int       `gorm:"column:discount_snapshot;not null;default:0"`
	StockSnapshot     int       `gorm:"column:stock_snapshot;not null;default:0"`
	UnitPrice         int64     `gorm:"column:unit_price;not null"`
	FromReturnedStock bool      `gorm:"column:from_returned_stock;not null;default:false"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

// LineTotal is the charged amount for the item.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// OwnedBy reports whether userID placed the order.
func (o Order) OwnedBy(userID uuid.UUID) bool {
	return o.UserID == userID
}

// QuantityOf sums the ordered quantity of skuID across the order's items.
func (o Order) QuantityOf(skuID uuid.UUID) int {
	total := 0
	for _, item := range o.Items {
		if item.SKUID == skuID {
			total += item.Quantity
		}
	}
	return total
}
