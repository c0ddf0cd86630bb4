package redeem

import (
	"time"

	"gorm.io/datatypes"
)

// AirtimeRequest is one debit against a user's point balance in
// exchange for a mobile top-up. Fulfillment runs asynchronously; the
// row tracks the handoff.
type AirtimeRequest struct {
	ID           string         `gorm:"column:id;primaryKey"`
	UserID       string         `gorm:"column:user_id;index"`
	CampaignCode string         `gorm:"column:campaign_code"`
	RedeemCode   string         `gorm:"column:redeem_code;uniqueIndex"`
	Phone        string         `gorm:"column:phone"`
	Points       int64          `gorm:"column:points"`
	Status       string         `gorm:"column:status"`
	Metadata     datatypes.JSON `gorm:"column:metadata"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

func (AirtimeRequest) TableName() string {
	return "airtime_redeem_requests"
}

const (
	StatusPending   = "pending"
	StatusQueued    = "queued"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
