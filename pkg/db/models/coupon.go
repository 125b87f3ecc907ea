package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a single-use percentage discount minted from loyalty points.
type Coupon struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	Code         string     `gorm:"column:code;type:text;not null;uniqueIndex"`
	ValuePercent int        `gorm:"column:value_percent;not null;check:value_percent BETWEEN 1 AND 100"`
	Description  string     `gorm:"column:description"`
	IsUsed       bool       `gorm:"column:is_used;not null;default:false"`
	UsedAt       *time.Time `gorm:"column:used_at"`
	ExpiresAt    *time.Time `gorm:"column:expires_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the coupon has passed its expiry at now.
func (c Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
