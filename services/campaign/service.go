package campaign

import (
	"context"
	"encoding/json"
	"time"

	"swaply-rewards/pkg/db/option"
	"swaply-rewards/pkg/errutil"
	"swaply-rewards/pkg/rediskey"
	"swaply-rewards/pkg/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cacheTTL = 5 * time.Minute

type Service struct {
	db  *gorm.DB
	rdb *redis.Client

	campaigns repository.Repository[Campaign]
	rules     repository.Repository[RewardRule]
	pool      repository.Repository[PoolItem]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Redis *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:  p.DB,
		rdb: p.Redis,

		campaigns: repository.ProvideStore[Campaign](p.DB),
		rules:     repository.ProvideStore[RewardRule](p.DB),
		pool:      repository.ProvideStore[PoolItem](p.DB),
	}
}

// FindEnabled loads an enabled campaign by code, consulting the redis
// cache first. A disabled or missing campaign is NotFound either way.
func (s *Service) FindEnabled(ctx context.Context, code string) (*Campaign, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, rediskey.BuildCampaignKey(code)).Bytes(); err == nil {
			var cached Campaign
			if err := json.Unmarshal(raw, &cached); err == nil && cached.IsEnabled {
				return &cached, nil
			}
		}
	}

	c, err := s.campaigns.FindOne(ctx, &Campaign{Code: code, IsEnabled: true})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found or disabled", nil)
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(c); err == nil {
			if err := s.rdb.Set(ctx, rediskey.BuildCampaignKey(code), raw, cacheTTL).Err(); err != nil {
				zap.L().Debug("failed to cache campaign", zap.String("code", code), zap.Error(err))
			}
		}
	}

	return c, nil
}

// enabledRules loads the campaign's enabled reward rules ordered by
// trigger counter, consulting the redis cache first. The schedule
// readers below filter this one result set in memory.
func (s *Service) enabledRules(ctx context.Context, code string) ([]*RewardRule, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, rediskey.BuildCampaignRulesKey(code)).Bytes(); err == nil {
			var cached []*RewardRule
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	rules, err := s.rules.Find(ctx, &RewardRule{
		CampaignCode: code,
		IsEnabled:    true,
	}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "trigger_n",
		OrderBy: "asc",
		Allow:   map[string]bool{"trigger_n": true},
	}))
	if err != nil {
		return nil, err
	}

	if s.rdb != nil && len(rules) > 0 {
		if raw, err := json.Marshal(rules); err == nil {
			if err := s.rdb.Set(ctx, rediskey.BuildCampaignRulesKey(code), raw, cacheTTL).Err(); err != nil {
				zap.L().Debug("failed to cache rules", zap.String("code", code), zap.Error(err))
			}
		}
	}
	return rules, nil
}

// MilestoneRules returns the enabled one-shot spin milestones for the
// campaign, keyed by trigger counter value.
func (s *Service) MilestoneRules(ctx context.Context, code string) (map[int64]int64, error) {
	rules, err := s.enabledRules(ctx, code)
	if err != nil {
		return nil, err
	}

	milestones := make(map[int64]int64)
	for _, r := range rules {
		if r.TriggerType != TriggerSpinGrant {
			continue
		}
		spins := r.ParsePayload().Spins
		if r.TriggerN >= 1 && spins > 0 {
			milestones[r.TriggerN] = spins
		}
	}
	return milestones, nil
}

// LoopRule returns the repeating spin-grant rule, or nil when the loop is
// disabled or misconfigured.
func (s *Service) LoopRule(ctx context.Context, code string) (*LoopRule, error) {
	rules, err := s.enabledRules(ctx, code)
	if err != nil {
		return nil, err
	}

	var rule *RewardRule
	for _, r := range rules {
		if r.TriggerType == TriggerSpinGrantLoop {
			rule = r
			break
		}
	}
	if rule == nil {
		return nil, nil
	}

	payload := rule.ParsePayload()
	loop := &LoopRule{
		StartAt:   rule.TriggerN,
		Interval:  payload.LoopInterval,
		SpinsEach: payload.Spins,
	}
	if loop.Interval < 1 {
		loop.Interval = 10
	}
	if loop.SpinsEach < 1 {
		loop.SpinsEach = 1
	}
	if loop.StartAt < 1 {
		return nil, nil
	}
	return loop, nil
}

// GuaranteeRule describes the milestone that tops the point balance up
// to a guaranteed minimum.
type GuaranteeRule struct {
	TriggerN  int64
	MinPoints int64
}

// FindGuaranteeRule returns the enabled point-guarantee rule, or nil
// when none is configured.
func (s *Service) FindGuaranteeRule(ctx context.Context, code string) (*GuaranteeRule, error) {
	rules, err := s.enabledRules(ctx, code)
	if err != nil {
		return nil, err
	}

	var rule *RewardRule
	for _, r := range rules {
		if r.TriggerType == TriggerGuaranteePoints {
			rule = r
			break
		}
	}
	if rule == nil || rule.TriggerN < 1 {
		return nil, nil
	}

	minPoints := rule.ParsePayload().MinPoints
	if minPoints <= 0 {
		minPoints = 100
	}
	return &GuaranteeRule{TriggerN: rule.TriggerN, MinPoints: minPoints}, nil
}

// ActivePool loads and validates the active reward pool. An empty or
// invalid pool is a configuration error, never a valid "no reward".
func (s *Service) ActivePool(ctx context.Context, code string) ([]Prize, error) {
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, rediskey.BuildCampaignPoolKey(code)).Bytes(); err == nil {
			var cached []Prize
			if err := json.Unmarshal(raw, &cached); err == nil && len(cached) > 0 {
				return cached, nil
			}
		}
	}

	items, err := s.pool.Find(ctx, &PoolItem{
		CampaignCode: code,
		IsActive:     true,
	}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "sort_order",
		OrderBy: "asc",
		Allow:   map[string]bool{"sort_order": true},
	}))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errutil.Configuration("reward pool is empty", nil)
	}

	prizes := make([]Prize, 0, len(items))
	for _, item := range items {
		prize, err := item.Prize()
		if err != nil {
			return nil, errutil.Configuration("invalid reward pool item", err)
		}
		prizes = append(prizes, prize)
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(prizes); err == nil {
			if err := s.rdb.Set(ctx, rediskey.BuildCampaignPoolKey(code), raw, cacheTTL).Err(); err != nil {
				zap.L().Debug("failed to cache pool", zap.String("code", code), zap.Error(err))
			}
		}
	}

	return prizes, nil
}
