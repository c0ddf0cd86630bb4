package coupon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"swaply-rewards/pkg/config"
	"swaply-rewards/pkg/errutil"
	"swaply-rewards/pkg/repository"
	"swaply-rewards/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var scopeNames = map[string]string{
	"category": "Category",
	"search":   "Search",
	"trending": "Trending",
}

// mapScopeToType folds the pinned surface into the two coupon buckets
// the marketplace understands.
func mapScopeToType(scope string) string {
	if scope == "category" {
		return "category"
	}
	return "featured"
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator

	validDays int

	coupons repository.Repository[Coupon]
	logs    repository.Repository[Log]
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Sequence sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	validDays := p.Config.Reward.CouponValidDays
	if validDays <= 0 {
		validDays = 30
	}

	return &Service{
		db:        p.DB,
		node:      p.Node,
		seq:       p.Sequence,
		validDays: validDays,

		coupons: repository.ProvideStore[Coupon](p.DB),
		logs:    repository.ProvideStore[Log](p.DB),
	}
}

type IssueParams struct {
	UserID       string
	CampaignCode string
	Source       string
	Scope        string
	PinDays      int
	TriggerN     int64
	Description  string
	Metadata     map[string]any
}

// Issue creates a boost coupon in three steps: the base record, a
// scope/duration patch, and an audit log line. The patch failing is
// non-fatal; the coupon stays usable with its defaults.
func (s *Service) Issue(ctx context.Context, p IssueParams) (*Coupon, error) {
	scope := p.Scope
	if scopeNames[scope] == "" {
		scope = "category"
	}
	pinDays := p.PinDays
	if pinDays <= 0 {
		pinDays = 3
	}

	code, err := s.nextCode(ctx, p.CampaignCode)
	if err != nil {
		return nil, errutil.Internal("failed to generate coupon code", err)
	}

	meta, _ := json.Marshal(p.Metadata)
	now := time.Now()

	coupon := &Coupon{
		ID:          s.node.Generate().String(),
		UserID:      p.UserID,
		Source:      p.Source,
		Type:        mapScopeToType(scope),
		Title:       fmt.Sprintf("%d-Day %s Boost", pinDays, scopeNames[scope]),
		Description: p.Description,
		Code:        code,
		ValidFrom:   now,
		ValidUntil:  now.AddDate(0, 0, s.validDays),
		Metadata:    datatypes.JSON(meta),
	}
	if err := s.coupons.Create(ctx, coupon); err != nil {
		return nil, errutil.Internal("failed to issue coupon", err)
	}

	if err := s.coupons.Update(ctx, coupon.ID, map[string]any{
		"pin_scope":     scope,
		"pin_days":      pinDays,
		"duration_days": pinDays,
		"updated_at":    time.Now(),
	}); err != nil {
		zap.L().Warn("failed to patch coupon scope",
			zap.String("coupon_id", coupon.ID),
			zap.Error(err))
	} else {
		coupon.PinScope = scope
		coupon.PinDays = pinDays
		coupon.DurationDays = pinDays
	}

	logMeta, _ := json.Marshal(map[string]any{
		"pin_scope":     scope,
		"pin_days":      pinDays,
		"campaign_code": p.CampaignCode,
		"trigger_n":     p.TriggerN,
	})
	if err := s.logs.Create(ctx, &Log{
		ID:           s.node.Generate().String(),
		UserID:       p.UserID,
		RewardType:   p.Source,
		RewardReason: p.Description,
		CouponID:     coupon.ID,
		Metadata:     datatypes.JSON(logMeta),
	}); err != nil {
		zap.L().Warn("failed to write coupon audit log",
			zap.String("coupon_id", coupon.ID),
			zap.Error(err))
	}

	return coupon, nil
}

func (s *Service) nextCode(ctx context.Context, campaignCode string) (string, error) {
	if s.seq != nil {
		return s.seq.NextCouponCode(ctx, campaignCode)
	}
	// no redis in this deployment; fall back to a random code
	return fmt.Sprintf("RWD-%s", uuid.NewString()[:8]), nil
}
