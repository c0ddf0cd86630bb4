package campaign

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type TriggerType string
type PrizeKind string

const (
	TriggerSpinGrant       TriggerType = "spin_grant"
	TriggerSpinGrantLoop   TriggerType = "spin_grant_loop"
	TriggerGuaranteePoints TriggerType = "guarantee_points"

	PrizeNone   PrizeKind = "none"
	PrizePoints PrizeKind = "points"
	PrizeCoupon PrizeKind = "coupon"
)

// Campaign is a named, independently configurable reward program.
type Campaign struct {
	ID        string         `gorm:"column:id;primaryKey"`
	Code      string         `gorm:"column:code;uniqueIndex;not null"`
	Name      string         `gorm:"column:name;type:varchar(255)"`
	IsEnabled bool           `gorm:"column:is_enabled"`
	Rules     datatypes.JSON `gorm:"column:rules"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Campaign) TableName() string { return "reward_campaigns" }

// Rules are the qualification thresholds stored on the campaign row.
type Rules struct {
	MinListingPrice          float64 `json:"min_listing_price"`
	MinImageCount            int     `json:"min_image_count"`
	DeviceFingerprintEnabled bool    `json:"device_fingerprint_enabled"`
	EligibilityExpression    string  `json:"eligibility_expression,omitempty"`
}

// ParseRules decodes the rules JSON, falling back to the launch defaults
// for missing thresholds.
func (c *Campaign) ParseRules() Rules {
	rules := Rules{}
	if len(c.Rules) > 0 {
		_ = json.Unmarshal(c.Rules, &rules)
	}
	if rules.MinListingPrice <= 0 {
		rules.MinListingPrice = 50
	}
	if rules.MinImageCount <= 0 {
		rules.MinImageCount = 2
	}
	return rules
}

// RewardRule maps a trigger to its grant parameters.
type RewardRule struct {
	ID           string         `gorm:"column:id;primaryKey"`
	CampaignCode string         `gorm:"column:campaign_code;index"`
	TriggerType  TriggerType    `gorm:"column:trigger_type;type:varchar(50)"`
	TriggerN     int64          `gorm:"column:trigger_n"`
	Payload      datatypes.JSON `gorm:"column:payload"`
	IsEnabled    bool           `gorm:"column:is_enabled"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (RewardRule) TableName() string { return "reward_rules" }

type RulePayload struct {
	Spins        int64 `json:"spins"`
	LoopInterval int64 `json:"loop_interval"`
	MinPoints    int64 `json:"min_points"`
}

func (r *RewardRule) ParsePayload() RulePayload {
	p := RulePayload{}
	if len(r.Payload) > 0 {
		_ = json.Unmarshal(r.Payload, &p)
	}
	return p
}

// PoolItem is one slot of the spin reward pool, owned by campaign config.
type PoolItem struct {
	ID           string         `gorm:"column:id;primaryKey"`
	CampaignCode string         `gorm:"column:campaign_code;index"`
	Title        string         `gorm:"column:title"`
	Kind         PrizeKind      `gorm:"column:kind;type:varchar(20)"`
	Payload      datatypes.JSON `gorm:"column:payload"`
	Weight       int64          `gorm:"column:weight"`
	IsActive     bool           `gorm:"column:is_active"`
	SortOrder    int            `gorm:"column:sort_order"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (PoolItem) TableName() string { return "reward_pool_items" }

type poolPayload struct {
	Points      int64  `json:"points"`
	CouponScope string `json:"coupon_scope"`
	PinDays     int    `json:"pin_days"`
}

// Prize is the validated, closed form of a pool item. Payload fields for
// other kinds are never carried over.
type Prize struct {
	ItemID      string    `json:"id"`
	Title       string    `json:"title"`
	Kind        PrizeKind `json:"kind"`
	Points      int64     `json:"points,omitempty"`
	CouponScope string    `json:"coupon_scope,omitempty"`
	PinDays     int       `json:"pin_days,omitempty"`
	Weight      int64     `json:"weight"`
}

var validCouponScopes = map[string]bool{
	"category": true,
	"search":   true,
	"trending": true,
}

// Prize validates the pool item into its tagged-union form. Invalid
// configuration is rejected here, not at grant time.
func (p *PoolItem) Prize() (Prize, error) {
	if p.Weight <= 0 {
		return Prize{}, fmt.Errorf("pool item %s: weight must be positive, got %d", p.ID, p.Weight)
	}

	prize := Prize{
		ItemID: p.ID,
		Title:  p.Title,
		Kind:   p.Kind,
		Weight: p.Weight,
	}

	payload := poolPayload{}
	if len(p.Payload) > 0 {
		if err := json.Unmarshal(p.Payload, &payload); err != nil {
			return Prize{}, fmt.Errorf("pool item %s: invalid payload: %w", p.ID, err)
		}
	}

	switch p.Kind {
	case PrizeNone:
	case PrizePoints:
		if payload.Points <= 0 {
			return Prize{}, fmt.Errorf("pool item %s: points must be positive, got %d", p.ID, payload.Points)
		}
		prize.Points = payload.Points
	case PrizeCoupon:
		scope := payload.CouponScope
		if scope == "" {
			scope = "category"
		}
		if !validCouponScopes[scope] {
			return Prize{}, fmt.Errorf("pool item %s: unknown coupon scope %q", p.ID, scope)
		}
		prize.CouponScope = scope
		prize.PinDays = payload.PinDays
		if prize.PinDays <= 0 {
			prize.PinDays = 3
		}
	default:
		return Prize{}, fmt.Errorf("pool item %s: unknown kind %q", p.ID, p.Kind)
	}

	return prize, nil
}

// LoopRule is the repeating spin-grant schedule derived from the
// spin_grant_loop reward rule.
type LoopRule struct {
	StartAt   int64
	Interval  int64
	SpinsEach int64
}
