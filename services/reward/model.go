package reward

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type EntryStatus string
type GrantKind string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusFailed    EntryStatus = "failed"

	GrantSpin   GrantKind = "spin"
	GrantPoints GrantKind = "points"
	GrantCoupon GrantKind = "coupon"
)

// State holds the per-user per-campaign counters. Mutated only through
// atomic single-statement updates; created lazily on the first qualifying
// event and never deleted.
type State struct {
	ID                     string    `gorm:"column:id;primaryKey"`
	UserID                 string    `gorm:"column:user_id;uniqueIndex:idx_state_user_campaign;not null"`
	CampaignCode           string    `gorm:"column:campaign_code;uniqueIndex:idx_state_user_campaign;not null"`
	QualifiedCount         int64     `gorm:"column:qualified_count;not null;default:0"`
	PointBalance           int64     `gorm:"column:point_balance;not null;default:0"`
	SpinBalance            int64     `gorm:"column:spin_balance;not null;default:0"`
	LastQualifiedListingID string    `gorm:"column:last_qualified_listing_id"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (State) TableName() string { return "user_reward_states" }

// ListingEvent marks a listing as processed for a campaign. The unique
// triple is the idempotency gate for the whole grant pipeline: duplicates
// are detected on insert, never via a prior select.
type ListingEvent struct {
	ID                string    `gorm:"column:id;primaryKey"`
	UserID            string    `gorm:"column:user_id;uniqueIndex:idx_event_user_campaign_listing;not null"`
	CampaignCode      string    `gorm:"column:campaign_code;uniqueIndex:idx_event_user_campaign_listing;not null"`
	ListingID         string    `gorm:"column:listing_id;uniqueIndex:idx_event_user_campaign_listing;not null"`
	Qualified         bool      `gorm:"column:qualified"`
	DeviceFingerprint string    `gorm:"column:device_fingerprint"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ListingEvent) TableName() string { return "reward_listing_events" }

// Entry is the append-only audit record of a granted reward. The unique
// key (user, campaign, trigger_n, kind) prevents double-granting the same
// trigger under concurrent retries.
type Entry struct {
	ID           string         `gorm:"column:id;primaryKey"`
	UserID       string         `gorm:"column:user_id;uniqueIndex:idx_entry_trigger;not null"`
	CampaignCode string         `gorm:"column:campaign_code;uniqueIndex:idx_entry_trigger;not null"`
	TriggerN     int64          `gorm:"column:trigger_n;uniqueIndex:idx_entry_trigger;not null"`
	Kind         GrantKind      `gorm:"column:kind;uniqueIndex:idx_entry_trigger;type:varchar(20);not null"`
	ListingID    string         `gorm:"column:listing_id"`
	Status       EntryStatus    `gorm:"column:status;type:varchar(20);not null"`
	Payload      datatypes.JSON `gorm:"column:payload"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Entry) TableName() string { return "reward_entries" }

// DeviceMap ties a device fingerprint to the first account that claimed
// a first-listing reward with it.
type DeviceMap struct {
	ID          string    `gorm:"column:id;primaryKey"`
	DeviceID    string    `gorm:"column:device_id;uniqueIndex;not null"`
	UserID      string    `gorm:"column:user_id;not null"`
	FirstSeenAt time.Time `gorm:"column:first_seen_at"`
}

func (DeviceMap) TableName() string { return "reward_device_maps" }

// Listing is the marketplace listing row inspected by the qualification
// evaluator. Owned by the listings domain; read-only here.
type Listing struct {
	ID        string         `gorm:"column:id;primaryKey"`
	UserID    string         `gorm:"column:user_id;index"`
	Images    datatypes.JSON `gorm:"column:images"`
	Title     string         `gorm:"column:title"`
	Category  string         `gorm:"column:category"`
	City      string         `gorm:"column:city"`
	Price     *float64       `gorm:"column:price"`
	Status    string         `gorm:"column:status"`
	IsActive  bool           `gorm:"column:is_active"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (Listing) TableName() string { return "listings" }

// ImageCount decodes the images column, accepting either an array of
// urls or a single url string.
func (l *Listing) ImageCount() int {
	if len(l.Images) == 0 {
		return 0
	}

	var urls []json.RawMessage
	if err := json.Unmarshal(l.Images, &urls); err == nil {
		return len(urls)
	}

	var single string
	if err := json.Unmarshal(l.Images, &single); err == nil && single != "" {
		return 1
	}

	return 0
}
