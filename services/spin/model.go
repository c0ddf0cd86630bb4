package spin

import (
	"time"

	"gorm.io/datatypes"
)

// Request reserves one spin resolution per client-supplied request id.
// The row is terminal once result_kind is set; a retried request id
// replays the stored outcome instead of consuming another spin.
type Request struct {
	ID            string         `gorm:"column:id;primaryKey"`
	UserID        string         `gorm:"column:user_id;uniqueIndex:idx_spin_request;not null"`
	CampaignCode  string         `gorm:"column:campaign_code;uniqueIndex:idx_spin_request;not null"`
	RequestID     string         `gorm:"column:request_id;uniqueIndex:idx_spin_request;not null"`
	ListingID     string         `gorm:"column:listing_id"`
	DeviceID      string         `gorm:"column:device_id"`
	ResultKind    *string        `gorm:"column:result_kind"`
	ResultPayload datatypes.JSON `gorm:"column:result_payload"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Request) TableName() string { return "reward_spin_requests" }
