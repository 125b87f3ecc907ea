package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (s *SKU) BeforeCreate(*gorm.DB) error           { assignID(&s.ID); return nil }
func (u *User) BeforeCreate(*gorm.DB) error          { assignID(&u.ID); return nil }
func (a *Address) BeforeCreate(*gorm.DB) error       { assignID(&a.ID); return nil }
func (c *Coupon) BeforeCreate(*gorm.DB) error        { assignID(&c.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error         { assignID(&o.ID); return nil }
func (i *OrderItem) BeforeCreate(*gorm.DB) error     { assignID(&i.ID); return nil }
func (d *Delivery) BeforeCreate(*gorm.DB) error      { assignID(&d.ID); return nil }
func (r *ReturnRequest) BeforeCreate(*gorm.DB) error { assignID(&r.ID); return nil }
func (r *RefundRequest) BeforeCreate(*gorm.DB) error { assignID(&r.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error   { assignID(&e.ID); return nil }

// All lists every persisted model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Address{},
		&SKU{},
		&Coupon{},
		&Order{},
		&OrderItem{},
		&Delivery{},
		&ReturnRequest{},
		&RefundRequest{},
		&OutboxEvent{},
	}
}
