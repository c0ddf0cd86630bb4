package spin

import (
	"context"
	"encoding/json"

	"swaply-rewards/pkg/db"
	"swaply-rewards/pkg/errutil"
	"swaply-rewards/pkg/metrics"
	"swaply-rewards/pkg/repository"
	"swaply-rewards/services/campaign"
	"swaply-rewards/services/coupon"
	"swaply-rewards/services/reward"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	node *snowflake.Node
	roll Roll

	campaigns *campaign.Service
	rewards   *reward.Service
	coupons   *coupon.Service

	requests repository.Repository[Request]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Campaigns *campaign.Service
	Rewards   *reward.Service
	Coupons   *coupon.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node: p.Node,
		roll: DefaultRoll,

		campaigns: p.Campaigns,
		rewards:   p.Rewards,
		coupons:   p.Coupons,

		requests: repository.ProvideStore[Request](p.DB),
	}
}

type Input struct {
	CampaignCode string `json:"campaign_code"`
	RequestID    string `json:"request_id" binding:"required"`
	ListingID    string `json:"listing_id"`
	DeviceID     string `json:"device_id"`
}

// Outcome is the resolved reward descriptor stored on the request row
// and replayed verbatim on retries.
type Outcome struct {
	Kind      string `json:"kind"`
	Points    int64  `json:"points,omitempty"`
	NewPoints int64  `json:"new_points,omitempty"`
	CouponID  string `json:"coupon_id,omitempty"`
	PinScope  string `json:"pin_scope,omitempty"`
	PinDays   int    `json:"pin_days,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type Result struct {
	OK             bool     `json:"ok"`
	Reason         string   `json:"reason,omitempty"`
	Idempotent     bool     `json:"idempotent,omitempty"`
	Pending        bool     `json:"pending,omitempty"`
	SpinsLeft      int64    `json:"spins_left"`
	PointBalance   int64    `json:"point_balance"`
	QualifiedCount int64    `json:"qualified_count"`
	Reward         *Outcome `json:"reward"`
}

// Execute resolves one spin: reserve the request id, consume a spin,
// draw from the pool, issue the prize, finalize the request. Every
// failure after consumption refunds the spin before surfacing.
func (s *Service) Execute(ctx context.Context, userID string, in Input) (*Result, error) {
	span := trace.SpanFromContext(ctx)
	log := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("user_id", userID),
		zap.String("request_id", in.RequestID),
	)

	if in.RequestID == "" {
		return nil, errutil.ValidationFailed("request_id is required", nil)
	}

	code := s.rewards.CampaignCode(in.CampaignCode)
	if _, err := s.campaigns.FindEnabled(ctx, code); err != nil {
		return nil, err
	}

	// Reserve. The unique (user, campaign, request_id) insert is the
	// mutual-exclusion gate: exactly one concurrent invocation proceeds.
	row := &Request{
		ID:           s.node.Generate().String(),
		UserID:       userID,
		CampaignCode: code,
		RequestID:    in.RequestID,
		ListingID:    in.ListingID,
		DeviceID:     in.DeviceID,
	}
	if err := s.requests.Create(ctx, row); err != nil {
		if !db.IsUniqueViolation(err) {
			return nil, errutil.Internal("failed to create spin request", err)
		}
		return s.replay(ctx, userID, code, in.RequestID)
	}

	// Consume.
	spinsLeft, consumed, err := s.rewards.ConsumeSpin(ctx, userID, code)
	if err != nil {
		s.finalize(ctx, row.ID, &Outcome{Kind: "none", Reason: "consume_error"})
		return nil, errutil.Internal("failed to consume spin", err)
	}
	if !consumed {
		s.finalize(ctx, row.ID, &Outcome{Kind: "none", Reason: "no_spins"})
		metrics.SpinsTotal.WithLabelValues("no_spins").Inc()

		st, err := s.rewards.Snapshot(ctx, userID, code)
		if err != nil {
			return nil, err
		}
		return &Result{
			OK:             false,
			Reason:         "no_spins",
			SpinsLeft:      st.SpinBalance,
			PointBalance:   st.PointBalance,
			QualifiedCount: st.QualifiedCount,
			Reward:         nil,
		}, nil
	}

	// Draw.
	pool, err := s.campaigns.ActivePool(ctx, code)
	if err != nil {
		return nil, s.refund(ctx, log, userID, code, row.ID, "pool_error_refunded", err)
	}
	prize, err := Draw(pool, s.roll)
	if err != nil {
		return nil, s.refund(ctx, log, userID, code, row.ID, "draw_error_refunded", err)
	}

	// Issue.
	outcome, pointBalance, err := s.issue(ctx, userID, code, in, prize)
	if err != nil {
		return nil, s.refund(ctx, log, userID, code, row.ID, "issue_error_refunded", err)
	}

	// Finalize. A failure here is logged but never rolled back: the
	// reward is already granted and revoking it is worse than a stale
	// idempotency record.
	s.finalize(ctx, row.ID, outcome)
	metrics.SpinsTotal.WithLabelValues(outcome.Kind).Inc()

	st, err := s.rewards.Snapshot(ctx, userID, code)
	if err != nil {
		log.Warn("failed to read state after spin", zap.Error(err))
		st = &reward.State{SpinBalance: spinsLeft, PointBalance: pointBalance}
	}

	return &Result{
		OK:             true,
		SpinsLeft:      st.SpinBalance,
		PointBalance:   st.PointBalance,
		QualifiedCount: st.QualifiedCount,
		Reward:         outcome,
	}, nil
}

// replay reports the stored outcome for a duplicate request id. A row
// whose outcome is still null belongs to an in-flight invocation; the
// caller retries later and no balance is touched.
func (s *Service) replay(ctx context.Context, userID, code, requestID string) (*Result, error) {
	existing, err := s.requests.FindOne(ctx, &Request{
		UserID:       userID,
		CampaignCode: code,
		RequestID:    requestID,
	})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errutil.Internal("spin request disappeared after duplicate insert", nil)
	}

	st, err := s.rewards.Snapshot(ctx, userID, code)
	if err != nil {
		return nil, err
	}

	result := &Result{
		OK:             true,
		Idempotent:     true,
		SpinsLeft:      st.SpinBalance,
		PointBalance:   st.PointBalance,
		QualifiedCount: st.QualifiedCount,
	}

	if existing.ResultKind == nil {
		result.Pending = true
		return result, nil
	}

	outcome := &Outcome{Kind: *existing.ResultKind}
	if len(existing.ResultPayload) > 0 {
		_ = json.Unmarshal(existing.ResultPayload, outcome)
	}
	result.Reward = outcome
	return result, nil
}

func (s *Service) issue(ctx context.Context, userID, code string, in Input, prize campaign.Prize) (*Outcome, int64, error) {
	switch prize.Kind {
	case campaign.PrizePoints:
		newPoints, err := s.rewards.AddPoints(ctx, userID, code, prize.Points)
		if err != nil {
			return nil, 0, err
		}
		return &Outcome{Kind: "points", Points: prize.Points, NewPoints: newPoints, Reason: "spin"}, newPoints, nil

	case campaign.PrizeCoupon:
		c, err := s.coupons.Issue(ctx, coupon.IssueParams{
			UserID:       userID,
			CampaignCode: code,
			Source:       "spin_reward",
			Scope:        prize.CouponScope,
			PinDays:      prize.PinDays,
			Description:  "Spin reward",
			Metadata: map[string]any{
				"request_id":    in.RequestID,
				"listing_id":    in.ListingID,
				"device_id":     in.DeviceID,
				"campaign_code": code,
				"pool_item_id":  prize.ItemID,
			},
		})
		if err != nil {
			return nil, 0, err
		}
		return &Outcome{Kind: "coupon", CouponID: c.ID, PinScope: c.PinScope, PinDays: c.PinDays}, 0, nil

	default:
		return &Outcome{Kind: "none"}, 0, nil
	}
}

// refund returns the consumed spin before surfacing err, then finalizes
// the request as none with the failure reason. No silent spin loss.
func (s *Service) refund(ctx context.Context, log *zap.Logger, userID, code, rowID, reason string, cause error) error {
	if _, err := s.rewards.AddSpins(ctx, userID, code, 1); err != nil {
		log.Error("failed to refund spin", zap.String("reason", reason), zap.Error(err))
	} else {
		metrics.SpinRefundsTotal.Inc()
	}

	s.finalize(ctx, rowID, &Outcome{Kind: "none", Reason: reason})

	if be, ok := errutil.AsBaseError(cause); ok {
		return be
	}
	return errutil.Internal("spin resolution failed", cause)
}

func (s *Service) finalize(ctx context.Context, rowID string, outcome *Outcome) {
	raw, _ := json.Marshal(outcome)
	if err := s.requests.Update(ctx, rowID, map[string]any{
		"result_kind":    outcome.Kind,
		"result_payload": datatypes.JSON(raw),
	}); err != nil {
		zap.L().Error("failed to finalize spin request",
			zap.String("request_row_id", rowID),
			zap.String("kind", outcome.Kind),
			zap.Error(err))
	}
}
