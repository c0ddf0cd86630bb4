package reward

import (
	"context"
	"sort"
	"time"

	"swaply-rewards/pkg/config"
	"swaply-rewards/pkg/db"
	"swaply-rewards/pkg/errutil"
	"swaply-rewards/pkg/metrics"
	"swaply-rewards/pkg/repository"
	"swaply-rewards/services/campaign"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	tasks *asynq.Client

	campaigns       *campaign.Service
	defaultCampaign string

	states   repository.Repository[State]
	events   repository.Repository[ListingEvent]
	entries  repository.Repository[Entry]
	devices  repository.Repository[DeviceMap]
	listings repository.Repository[Listing]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Config    *config.Config
	Campaigns *campaign.Service
	Tasks     *asynq.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		tasks: p.Tasks,

		campaigns:       p.Campaigns,
		defaultCampaign: p.Config.Reward.DefaultCampaign,

		states:   repository.ProvideStore[State](p.DB),
		events:   repository.ProvideStore[ListingEvent](p.DB),
		entries:  repository.ProvideStore[Entry](p.DB),
		devices:  repository.ProvideStore[DeviceMap](p.DB),
		listings: repository.ProvideStore[Listing](p.DB),
	}
}

// CampaignCode resolves the request's campaign, defaulting to the
// configured launch campaign.
func (s *Service) CampaignCode(code string) string {
	if code == "" {
		return s.defaultCampaign
	}
	return code
}

// Snapshot returns the user's current counters, zero-valued when no
// state row exists yet.
func (s *Service) Snapshot(ctx context.Context, userID, code string) (*State, error) {
	st, err := s.states.FindOne(ctx, &State{UserID: userID, CampaignCode: code})
	if err != nil {
		return nil, err
	}
	if st == nil {
		return &State{UserID: userID, CampaignCode: code}, nil
	}
	return st, nil
}

type bumpRow struct {
	QualifiedCount int64
	PointBalance   int64
}

// bumpState lazily creates the state row and increments the qualified
// counter in one statement, returning the new counter value. The
// returned counter is the single source of truth fed to the trigger
// engine.
func (s *Service) bumpState(ctx context.Context, userID, code, listingID string) (bumpRow, error) {
	now := time.Now()
	var row bumpRow
	res := s.db.WithContext(ctx).Raw(`
		INSERT INTO user_reward_states
			(id, user_id, campaign_code, qualified_count, point_balance, spin_balance, last_qualified_listing_id, created_at, updated_at)
		VALUES (?, ?, ?, 1, 0, 0, ?, ?, ?)
		ON CONFLICT (user_id, campaign_code) DO UPDATE
		SET qualified_count = user_reward_states.qualified_count + 1,
			last_qualified_listing_id = excluded.last_qualified_listing_id,
			updated_at = excluded.updated_at
		RETURNING qualified_count, point_balance`,
		s.node.Generate().String(), userID, code, listingID, now, now,
	).Scan(&row)
	if res.Error != nil {
		return bumpRow{}, res.Error
	}
	return row, nil
}

// AddSpins atomically adds delta spins and returns the new balance.
func (s *Service) AddSpins(ctx context.Context, userID, code string, delta int64) (int64, error) {
	return s.mutateBalance(ctx, userID, code, "spin_balance", delta)
}

// AddPoints atomically adds delta points and returns the new balance.
func (s *Service) AddPoints(ctx context.Context, userID, code string, delta int64) (int64, error) {
	return s.mutateBalance(ctx, userID, code, "point_balance", delta)
}

// ConsumeSpin decrements the spin balance by exactly one, only when a
// spin is available. ok reports whether a spin was consumed.
func (s *Service) ConsumeSpin(ctx context.Context, userID, code string) (int64, bool, error) {
	return s.conditionalDecrement(ctx, userID, code, "spin_balance", 1)
}

// DebitPoints conditionally debits the point balance. ok is false when
// the balance is insufficient; nothing is mutated in that case.
func (s *Service) DebitPoints(ctx context.Context, userID, code string, points int64) (int64, bool, error) {
	return s.conditionalDecrement(ctx, userID, code, "point_balance", points)
}

func (s *Service) mutateBalance(ctx context.Context, userID, code, column string, delta int64) (int64, error) {
	query := `UPDATE user_reward_states
		SET ` + column + ` = ` + column + ` + ?, updated_at = ?
		WHERE user_id = ? AND campaign_code = ?
		RETURNING ` + column

	var row struct{ Balance int64 }
	res := s.db.WithContext(ctx).Raw(query, delta, time.Now(), userID, code).Scan(&row.Balance)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errutil.NotFound("reward state not found", nil)
	}
	return row.Balance, nil
}

func (s *Service) conditionalDecrement(ctx context.Context, userID, code, column string, amount int64) (int64, bool, error) {
	query := `UPDATE user_reward_states
		SET ` + column + ` = ` + column + ` - ?, updated_at = ?
		WHERE user_id = ? AND campaign_code = ? AND ` + column + ` >= ?
		RETURNING ` + column

	var balance int64
	res := s.db.WithContext(ctx).Raw(query, amount, time.Now(), userID, code, amount).Scan(&balance)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	return balance, true, nil
}

// TriggerSchedule assembles the campaign's trigger configuration from
// its reward rules.
func (s *Service) TriggerSchedule(ctx context.Context, code string) (TriggerConfig, error) {
	cfg := TriggerConfig{}

	milestones, err := s.campaigns.MilestoneRules(ctx, code)
	if err != nil {
		return cfg, err
	}
	cfg.Milestones = milestones

	loop, err := s.campaigns.LoopRule(ctx, code)
	if err != nil {
		return cfg, err
	}
	cfg.Loop = loop

	guarantee, err := s.campaigns.FindGuaranteeRule(ctx, code)
	if err != nil {
		return cfg, err
	}
	if guarantee != nil {
		cfg.GuaranteeAt = guarantee.TriggerN
		cfg.GuaranteeMinPoints = guarantee.MinPoints
	}

	return cfg, nil
}

type PublishInput struct {
	ListingID    string `json:"listing_id" binding:"required"`
	DeviceID     string `json:"device_id"`
	CampaignCode string `json:"campaign_code"`
}

type StateView struct {
	QualifiedCount int64 `json:"qualified_count"`
	PointBalance   int64 `json:"point_balance"`
	SpinBalance    int64 `json:"spin_balance"`
}

type Progress struct {
	MilestoneSteps        []int64      `json:"milestone_steps"`
	MilestoneProgressText string       `json:"milestone_progress_text"`
	SpinLoop              LoopProgress `json:"spin_loop"`
	SpinLoopProgressText  string       `json:"spin_loop_progress_text,omitempty"`
}

type PublishResult struct {
	OK     bool     `json:"ok"`
	Reason string   `json:"reason,omitempty"`
	Detail []Reason `json:"detail,omitempty"`
	StateView
	Pool   []campaign.Prize `json:"pool,omitempty"`
	Reward *GrantResult     `json:"reward,omitempty"`
	Progress
	SpinGrantedNow    bool   `json:"spin_granted_now"`
	SpinsAddedNow     int64  `json:"spins_added_now"`
	SpinGrantTriggerN *int64 `json:"spin_grant_trigger_n,omitempty"`
}

// RecordQualifyingEvent runs the full grant pipeline for a published
// listing: qualification, idempotency gate, atomic counter bump, then
// zero or more exactly-once grants.
func (s *Service) RecordQualifyingEvent(ctx context.Context, userID string, in PublishInput) (*PublishResult, error) {
	span := trace.SpanFromContext(ctx)
	log := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("user_id", userID),
		zap.String("listing_id", in.ListingID),
	)

	code := s.CampaignCode(in.CampaignCode)

	camp, err := s.campaigns.FindEnabled(ctx, code)
	if err != nil {
		return nil, err
	}

	listing, err := s.listings.FindOne(ctx, &Listing{ID: in.ListingID})
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, errutil.NotFound("listing not found", nil)
	}
	if listing.UserID != userID {
		return nil, errutil.Forbidden("not your listing", nil)
	}

	rules := camp.ParseRules()
	verdict := Evaluate(listing, rules)
	if verdict.Qualified && rules.EligibilityExpression != "" {
		ok, err := EvaluateExpression(listing, rules.EligibilityExpression)
		if err != nil {
			return nil, err
		}
		if !ok {
			verdict.Qualified = false
			verdict.Reasons = append(verdict.Reasons, Reason{
				Check:    "eligibility_expression",
				Actual:   false,
				Required: true,
			})
		}
	}
	if !verdict.Qualified {
		return &PublishResult{OK: false, Reason: "not_qualified", Detail: verdict.Reasons}, nil
	}

	state, err := s.states.FindOne(ctx, &State{UserID: userID, CampaignCode: code})
	if err != nil {
		return nil, err
	}
	isFirst := state == nil || state.QualifiedCount == 0

	// Device risk check is a pre-condition of the first increment, not
	// part of the atomicity contract.
	if in.DeviceID != "" && isFirst && rules.DeviceFingerprintEnabled {
		if err := s.claimDevice(ctx, userID, in.DeviceID); err != nil {
			return nil, err
		}
	}

	event := &ListingEvent{
		ID:                s.node.Generate().String(),
		UserID:            userID,
		CampaignCode:      code,
		ListingID:         in.ListingID,
		Qualified:         true,
		DeviceFingerprint: in.DeviceID,
	}
	if err := s.events.Create(ctx, event); err != nil {
		if !db.IsUniqueViolation(err) {
			log.Error("failed to record listing event", zap.Error(err))
			return nil, errutil.Internal("failed to record listing event", err)
		}
		return s.alreadyProcessed(ctx, userID, code)
	}

	row, err := s.bumpState(ctx, userID, code, in.ListingID)
	if err != nil {
		// The event row is committed but the counter is not. Silent loss
		// under-credits the user, so this surfaces as a partial failure.
		log.Error("state increment failed after event recorded", zap.Error(err))
		return nil, errutil.New(errutil.StatusPartialFailure, "state increment failed after event recorded", errutil.WithErr(err))
	}
	metrics.QualifyingEventsTotal.Inc()

	cfg, err := s.TriggerSchedule(ctx, code)
	if err != nil {
		return nil, err
	}

	result := &PublishResult{OK: true}
	currentPoints := row.PointBalance

	for _, trigger := range ResolveTriggers(row.QualifiedCount, cfg) {
		switch {
		case trigger.Kind == GrantSpin:
			r, err := s.GrantSpinsOnce(ctx, userID, code, in.ListingID, trigger.N, trigger.Spins, trigger.Reason)
			if err != nil {
				return nil, err
			}
			if r.Granted && !result.SpinGrantedNow {
				result.SpinGrantedNow = true
				result.SpinsAddedNow = r.Amount
				n := trigger.N
				result.SpinGrantTriggerN = &n
			}

		case trigger.Guarantee:
			if amount := cfg.GuaranteeMinPoints - currentPoints; amount > 0 {
				r, err := s.GrantPointsOnce(ctx, userID, code, in.ListingID, trigger.N, amount, trigger.Reason)
				if err != nil {
					return nil, err
				}
				if r.Granted {
					result.Reward = r
					currentPoints = r.NewBalance
				}
			}
		}
	}

	if err := s.fillView(ctx, userID, code, cfg, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) claimDevice(ctx context.Context, userID, deviceID string) error {
	existing, err := s.devices.FindOne(ctx, &DeviceMap{DeviceID: deviceID})
	if err != nil {
		return err
	}
	if existing != nil && existing.UserID != userID {
		return errutil.Forbidden("device already claimed first-listing reward", nil)
	}

	row := &DeviceMap{
		ID:          s.node.Generate().String(),
		DeviceID:    deviceID,
		UserID:      userID,
		FirstSeenAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "first_seen_at"}),
	}).Create(row).Error
}

func (s *Service) alreadyProcessed(ctx context.Context, userID, code string) (*PublishResult, error) {
	cfg, err := s.TriggerSchedule(ctx, code)
	if err != nil {
		return nil, err
	}

	result := &PublishResult{OK: true, Reason: "already_processed"}
	if err := s.fillView(ctx, userID, code, cfg, result); err != nil {
		return nil, err
	}
	return result, nil
}

// fillView populates counters, pool and progress on the response. A
// misconfigured pool does not fail reads; the draw path enforces it.
func (s *Service) fillView(ctx context.Context, userID, code string, cfg TriggerConfig, result *PublishResult) error {
	st, err := s.Snapshot(ctx, userID, code)
	if err != nil {
		return err
	}
	result.StateView = StateView{
		QualifiedCount: st.QualifiedCount,
		PointBalance:   st.PointBalance,
		SpinBalance:    st.SpinBalance,
	}

	pool, err := s.campaigns.ActivePool(ctx, code)
	if err != nil {
		if errutil.StatusOf(err) != errutil.StatusConfiguration {
			return err
		}
		zap.L().Warn("reward pool misconfigured", zap.String("campaign_code", code), zap.Error(err))
	}
	result.Pool = pool

	result.Progress = s.progress(st.QualifiedCount, cfg)
	return nil
}

func (s *Service) progress(counter int64, cfg TriggerConfig) Progress {
	steps := make([]int64, 0, len(cfg.Milestones))
	for n := range cfg.Milestones {
		steps = append(steps, n)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })

	lp := ResolveLoopProgress(counter, cfg.Loop)
	return Progress{
		MilestoneSteps:        steps,
		MilestoneProgressText: MilestoneProgressText(counter, cfg),
		SpinLoop:              lp,
		SpinLoopProgressText:  LoopProgressText(counter, lp),
	}
}

type StateResult struct {
	OK bool `json:"ok"`
	StateView
	Pool []campaign.Prize `json:"pool,omitempty"`
	Progress
}

// CenterState is the read-only reward-center view: counters, pool and
// progress. State and schedule load concurrently.
func (s *Service) CenterState(ctx context.Context, userID, code string) (*StateResult, error) {
	code = s.CampaignCode(code)

	if _, err := s.campaigns.FindEnabled(ctx, code); err != nil {
		return nil, err
	}

	var (
		st   *State
		cfg  TriggerConfig
		pool []campaign.Prize
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st, err = s.Snapshot(gctx, userID, code)
		return err
	})
	g.Go(func() (err error) {
		cfg, err = s.TriggerSchedule(gctx, code)
		return err
	})
	g.Go(func() error {
		p, err := s.campaigns.ActivePool(gctx, code)
		if err != nil {
			if errutil.StatusOf(err) != errutil.StatusConfiguration {
				return err
			}
			zap.L().Warn("reward pool misconfigured", zap.String("campaign_code", code), zap.Error(err))
			return nil
		}
		pool = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &StateResult{
		OK: true,
		StateView: StateView{
			QualifiedCount: st.QualifiedCount,
			PointBalance:   st.PointBalance,
			SpinBalance:    st.SpinBalance,
		},
		Pool:     pool,
		Progress: s.progress(st.QualifiedCount, cfg),
	}, nil
}
