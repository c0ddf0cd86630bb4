package coupon

import (
	"time"

	"gorm.io/datatypes"
)

// Coupon is a marketplace boost coupon. type is the consumer-facing
// bucket (category or featured); the actual pinned surface is pin_scope.
type Coupon struct {
	ID           string         `gorm:"column:id;primaryKey"`
	UserID       string         `gorm:"column:user_id;index"`
	Source       string         `gorm:"column:source"`
	Type         string         `gorm:"column:type;type:varchar(20)"`
	Title        string         `gorm:"column:title"`
	Description  string         `gorm:"column:description"`
	Code         string         `gorm:"column:code;uniqueIndex"`
	ValidFrom    time.Time      `gorm:"column:valid_from"`
	ValidUntil   time.Time      `gorm:"column:valid_until"`
	PinScope     string         `gorm:"column:pin_scope"`
	PinDays      int            `gorm:"column:pin_days"`
	DurationDays int            `gorm:"column:duration_days"`
	Metadata     datatypes.JSON `gorm:"column:metadata"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Coupon) TableName() string { return "coupons" }

// Log is the best-effort audit line written after a coupon grant.
type Log struct {
	ID           string         `gorm:"column:id;primaryKey"`
	UserID       string         `gorm:"column:user_id;index"`
	RewardType   string         `gorm:"column:reward_type"`
	RewardReason string         `gorm:"column:reward_reason"`
	CouponID     string         `gorm:"column:coupon_id"`
	Metadata     datatypes.JSON `gorm:"column:metadata"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (Log) TableName() string { return "reward_logs" }
