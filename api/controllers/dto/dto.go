// Package dto maps persisted models to the JSON shapes served by the API.
package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type OrderItem struct {
	ID                uuid.UUID `json:"id"`
	SKUID             uuid.UUID `json:"skuId"`
	ProductID         uuid.UUID `json:"productId"`
	SKUName           string    `json:"skuName"`
	Image             string    `json:"image,omitempty"`
	Quantity          int       `json:"quantity"`
	PriceSnapshot     int64     `json:"priceSnapshot"`
	DiscountSnapshot  int       `json:"discountSnapshot"`
	UnitPrice         int64     `json:"unitPrice"`
	LineTotal         int64     `json:"lineTotal"`
	FromReturnedStock bool      `json:"fromReturnedStock"`
}

type Order struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"userId"`
	AddressID       uuid.UUID           `json:"addressId"`
	Subtotal        int64               `json:"subtotal"`
	TotalAmount     int64               `json:"totalAmount"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	PaymentStatus   enums.PaymentStatus `json:"paymentStatus"`
	OrderStatus     enums.OrderStatus   `json:"orderStatus"`
	IsPaid          bool                `json:"isPaid"`
	PaidAt          *time.Time          `json:"paidAt,omitempty"`
	PaymentIntentID *string             `json:"paymentIntentId,omitempty"`
	CouponID        *uuid.UUID          `json:"couponId,omitempty"`
	IsRefunded      bool                `json:"isRefunded"`
	RefundedAt      *time.Time          `json:"refundedAt,omitempty"`
	Items           []OrderItem         `json:"items"`
	CreatedAt       time.Time           `json:"createdAt"`
}

func NewOrder(o models.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItem{
			ID:                item.ID,
			SKUID:             item.SKUID,
			ProductID:         item.ProductID,
			SKUName:           item.SKUName,
			Image:             item.Image,
			Quantity:          item.Quantity,
			PriceSnapshot:     item.PriceSnapshot,
			DiscountSnapshot:  item.DiscountSnapshot,
			UnitPrice:         item.UnitPrice,
			LineTotal:         item.LineTotal(),
			FromReturnedStock: item.FromReturnedStock,
		})
	}
	return Order{
		ID:              o.ID,
		UserID:          o.UserID,
		AddressID:       o.AddressID,
		Subtotal:        o.Subtotal,
		TotalAmount:     o.TotalAmount,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		OrderStatus:     o.OrderStatus,
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		PaymentIntentID: o.PaymentIntentID,
		CouponID:        o.CouponID,
		IsRefunded:      o.IsRefunded,
		RefundedAt:      o.RefundedAt,
		Items:           items,
		CreatedAt:       o.CreatedAt,
	}
}

func NewOrders(list []models.Order) []Order {
	out := make([]Order, 0, len(list))
	for _, o := range list {
		out = append(out, NewOrder(o))
	}
	return out
}

type Delivery struct {
	ID                    uuid.UUID             `json:"id"`
	OrderID               uuid.UUID             `json:"orderId"`
	CustomerID            uuid.UUID             `json:"customerId"`
	DeliveryPersonnelID   *uuid.UUID            `json:"deliveryPersonnelId,omitempty"`
	ShippingAddress       types.ShippingAddress `json:"shippingAddress"`
	Status                enums.DeliveryStatus  `json:"status"`
	ProofOfDeliveryURL    *string               `json:"proofOfDeliveryUrl,omitempty"`
	RequiresSignature     bool                  `json:"requiresSignature"`
	DeliveryFee           int64                 `json:"deliveryFee"`
	TrackingNumber        string                `json:"trackingNumber,omitempty"`
	EstimatedDeliveryDate *time.Time            `json:"estimatedDeliveryDate,omitempty"`
	DeliveryDate          *time.Time            `json:"deliveryDate,omitempty"`
	DeliveryNotes         string                `json:"deliveryNotes,omitempty"`
	CreatedAt             time.Time             `json:"createdAt"`
}

func NewDelivery(d models.Delivery) Delivery {
	return Delivery{
		ID:                    d.ID,
		OrderID:               d.OrderID,
		CustomerID:            d.CustomerID,
		DeliveryPersonnelID:   d.DeliveryPersonnelID,
		ShippingAddress:       d.ShippingAddress,
		Status:                d.Status,
		ProofOfDeliveryURL:    d.ProofOfDeliveryURL,
		RequiresSignature:     d.RequiresSignature,
		DeliveryFee:           d.DeliveryFee,
		TrackingNumber:        d.TrackingNumber,
		EstimatedDeliveryDate: d.EstimatedDeliveryDate,
		DeliveryDate:          d.DeliveryDate,
		DeliveryNotes:         d.DeliveryNotes,
		CreatedAt:             d.CreatedAt,
	}
}

func NewDeliveries(list []models.Delivery) []Delivery {
	out := make([]Delivery, 0, len(list))
	for _, d := range list {
		out = append(out, NewDelivery(d))
	}
	return out
}

type ReturnRequest struct {
	ID                uuid.UUID                 `json:"id"`
	OrderID           uuid.UUID                 `json:"orderId"`
	SKUID             uuid.UUID                 `json:"skuId"`
	UserID            uuid.UUID                 `json:"userId"`
	Quantity          int                       `json:"quantity"`
	Reason            string                    `json:"reason"`
	Images            []string                  `json:"images"`
	Status            enums.ReturnStatus        `json:"status"`
	AdminRejectReason *enums.ReturnRejectReason `json:"adminRejectReason,omitempty"`
	AdminNotes        string                    `json:"adminNotes,omitempty"`
	CreatedAt         time.Time                 `json:"createdAt"`
}

func NewReturnRequest(r models.ReturnRequest) ReturnRequest {
	images := r.Images
	if images == nil {
		images = []string{}
	}
	return ReturnRequest{
		ID:                r.ID,
		OrderID:           r.OrderID,
		SKUID:             r.SKUID,
		UserID:            r.UserID,
		Quantity:          r.Quantity,
		Reason:            r.Reason,
		Images:            images,
		Status:            r.Status,
		AdminRejectReason: r.AdminRejectReason,
		AdminNotes:        r.AdminNotes,
		CreatedAt:         r.CreatedAt,
	}
}

func NewReturnRequests(list []models.ReturnRequest) []ReturnRequest {
	out := make([]ReturnRequest, 0, len(list))
	for _, r := range list {
		out = append(out, NewReturnRequest(r))
	}
	return out
}

type RefundRequest struct {
	ID              uuid.UUID          `json:"id"`
	OrderID         uuid.UUID          `json:"orderId"`
	UserID          uuid.UUID          `json:"userId"`
	ReturnRequestID *uuid.UUID         `json:"returnRequestId,omitempty"`
	Amount          int64              `json:"amount"`
	Reason          string             `json:"reason"`
	Status          enums.RefundStatus `json:"status"`
	GatewayRefundID *string            `json:"gatewayRefundId,omitempty"`
	AdminNotes      string             `json:"adminNotes,omitempty"`
	LastError       *string            `json:"lastError,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

func NewRefundRequest(r models.RefundRequest) RefundRequest {
	return RefundRequest{
		ID:              r.ID,
		OrderID:         r.OrderID,
		UserID:          r.UserID,
		ReturnRequestID: r.ReturnRequestID,
		Amount:          r.Amount,
		Reason:          r.Reason,
		Status:          r.Status,
		GatewayRefundID: r.GatewayRefundID,
		AdminNotes:      r.AdminNotes,
		LastError:       r.LastError,
		CreatedAt:       r.CreatedAt,
	}
}

func NewRefundRequests(list []models.RefundRequest) []RefundRequest {
	out := make([]RefundRequest, 0, len(list))
	for _, r := range list {
		out = append(out, NewRefundRequest(r))
	}
	return out
}

type Coupon struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	ValuePercent int        `json:"valuePercent"`
	Description  string     `json:"description,omitempty"`
	IsUsed       bool       `json:"isUsed"`
	UsedAt       *time.Time `json:"usedAt,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

func NewCoupon(c models.Coupon) Coupon {
	return Coupon{
		ID:           c.ID,
		Code:         c.Code,
		ValuePercent: c.ValuePercent,
		Description:  c.Description,
		IsUsed:       c.IsUsed,
		UsedAt:       c.UsedAt,
		ExpiresAt:    c.ExpiresAt,
	}
}

type Address struct {
	ID uuid.UUID `json:"id"`
	types.ShippingAddress
}

func NewAddress(a models.Address) Address {
	return Address{ID: a.ID, ShippingAddress: a.Snapshot()}
}

type SKUStock struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"productId"`
	VariantName   string    `json:"variantName"`
	Price         int64     `json:"price"`
	Discount      int       `json:"discount"`
	Stock         int       `json:"stock"`
	ReservedStock int       `json:"reservedStock"`
	ReturnedStock int       `json:"returnedStock"`
	Available     int       `json:"available"`
	IsReturned    bool      `json:"isReturned"`
}

func NewSKUStock(s models.SKU) SKUStock {
	return SKUStock{
		ID:            s.ID,
		ProductID:     s.ProductID,
		VariantName:   s.VariantName,
		Price:         s.Price,
		Discount:      s.Discount,
		Stock:         s.Stock,
		ReservedStock: s.ReservedStock,
		ReturnedStock: s.ReturnedStock,
		Available:     s.Available(),
		IsReturned:    s.IsReturned,
	}
}
