package spin

import (
	"context"
	"testing"

	"swaply-rewards/pkg/config"
	"swaply-rewards/pkg/errutil"
	"swaply-rewards/services/campaign"
	"swaply-rewards/services/coupon"
	"swaply-rewards/services/reward"
	"swaply-rewards/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const testCampaign = "launch_v1"

func newTestService(t *testing.T) (*Service, *reward.Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t,
		&campaign.Campaign{},
		&campaign.RewardRule{},
		&campaign.PoolItem{},
		&reward.State{},
		&reward.ListingEvent{},
		&reward.Entry{},
		&reward.DeviceMap{},
		&reward.Listing{},
		&coupon.Coupon{},
		&coupon.Log{},
		&Request{},
	)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Reward.DefaultCampaign = testCampaign

	campaigns := campaign.NewService(campaign.ServiceParams{DB: db})
	rewards := reward.NewService(reward.ServiceParams{
		DB:        db,
		Node:      node,
		Config:    cfg,
		Campaigns: campaigns,
	})
	coupons := coupon.NewService(coupon.ServiceParams{
		DB:     db,
		Node:   node,
		Config: cfg,
	})

	svc := NewService(ServiceParams{
		DB:        db,
		Node:      node,
		Campaigns: campaigns,
		Rewards:   rewards,
		Coupons:   coupons,
	})
	return svc, rewards, db
}

func seedCampaign(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&campaign.Campaign{
		ID:        "c-1",
		Code:      testCampaign,
		Name:      "Launch",
		IsEnabled: true,
		Rules:     datatypes.JSON(`{}`),
	}).Error)
}

func seedPool(t *testing.T, db *gorm.DB) {
	t.Helper()
	items := []*campaign.PoolItem{
		{ID: "p-1", CampaignCode: testCampaign, Title: "10 Points", Kind: campaign.PrizePoints,
			Payload: datatypes.JSON(`{"points":10}`), Weight: 50, IsActive: true, SortOrder: 1},
		{ID: "p-2", CampaignCode: testCampaign, Title: "Category Boost", Kind: campaign.PrizeCoupon,
			Payload: datatypes.JSON(`{"coupon_scope":"category","pin_days":3}`), Weight: 30, IsActive: true, SortOrder: 2},
		{ID: "p-3", CampaignCode: testCampaign, Title: "Try Again", Kind: campaign.PrizeNone,
			Weight: 20, IsActive: true, SortOrder: 3},
	}
	for _, item := range items {
		require.NoError(t, db.Create(item).Error)
	}
}

func seedState(t *testing.T, db *gorm.DB, userID string, spins, points int64) {
	t.Helper()
	require.NoError(t, db.Create(&reward.State{
		ID:           "st-" + userID,
		UserID:       userID,
		CampaignCode: testCampaign,
		SpinBalance:  spins,
		PointBalance: points,
	}).Error)
}

func TestExecuteNoSpins(t *testing.T) {
	svc, _, db := newTestService(t)
	seedCampaign(t, db)
	seedPool(t, db)
	seedState(t, db, "u-1", 0, 0)

	result, err := svc.Execute(context.Background(), "u-1", Input{RequestID: "req-1"})
	require.NoError(t, err)

	require.False(t, result.OK)
	require.Equal(t, "no_spins", result.Reason)
	require.Equal(t, int64(0), result.SpinsLeft)
	require.Nil(t, result.Reward)
}

func TestExecutePointsPrize(t *testing.T) {
	svc, _, db := newTestService(t)
	seedCampaign(t, db)
	seedPool(t, db)
	seedState(t, db, "u-1", 2, 0)

	svc.roll = func(total int64) int64 { return 1 } // p-1, 10 points

	result, err := svc.Execute(context.Background(), "u-1", Input{RequestID: "req-1"})
	require.NoError(t, err)

	require.True(t, result.OK)
	require.Equal(t, int64(1), result.SpinsLeft)
	require.Equal(t, int64(10), result.PointBalance)
	require.NotNil(t, result.Reward)
	require.Equal(t, "points", result.Reward.Kind)
	require.Equal(t, int64(10), result.Reward.Points)
	require.Equal(t, int64(10), result.Reward.NewPoints)
}

func TestExecuteCouponPrize(t *testing.T) {
	svc, _, db := newTestService(t)
	seedCampaign(t, db)
	seedPool(t, db)
	seedState(t, db, "u-1", 1, 0)

	svc.roll = func(total int64) int64 { return 60 } // p-2, category coupon

	result, err := svc.Execute(context.Background(), "u-1", Input{RequestID: "req-1"})
	require.NoError(t, err)

	require.True(t, result.OK)
	require.Equal(t, "coupon", result.Reward.Kind)
	require.NotEmpty(t, result.Reward.CouponID)
	require.Equal(t, "category", result.Reward.PinScope)
	require.Equal(t, 3, result.Reward.PinDays)

	var c coupon.Coupon
	require.NoError(t, db.First(&c, "id = ?", result.Reward.CouponID).Error)
	require.Equal(t, "u-1", c.UserID)
}

func TestExecuteNonePrize(t *testing.T) {
	svc, _, db := newTestService(t)
	seedCampaign(t, db)
	seedPool(t, db)
	seedState(t, db, "u-1", 1, 0)

	svc.roll = func(total int64) int64 { return 100 } // p-3, none

	result, err := svc.Execute(context.Background(), "u-1", Input{RequestID: "req-1"})
	require.NoError(t, err)

	require.True(t, result.OK)
	require.Equal(t, "none", result.Reward.Kind)
	require.Equal(t, int64(0), result.SpinsLeft)
}

func TestExecuteReplayStoredOutcome(t *testing.T) {
	svc, _, db := newTestService(t)
	seedCampaign(t, db)
	seedPool(t, db)
	seedState(t, db, "u-1", 5, 0)

	svc.roll = func(total int64) int64 { return 1 }

	ctx := context.Background()
	first, err := svc.Execute(ctx, "u-1", Input{RequestID: "req-1"})
	require.NoError(t, err)
	require.True(t, first.OK)

	// same request id consumes nothing and returns the stored prize
	replay, err := svc.Execute(ctx, "u-1", Input{RequestID: "req-1"})
	require.NoError(t, err)
	require.True(t, replay.OK)
	require.True(t, replay.Idempotent)
	require.False(t, replay.Pending)
	require.Equal(t, first.Reward.Kind, replay.Reward.Kind)
	require.Equal(t, first.Reward.Points, replay.Reward.Points)
	require.Equal(t, first.SpinsLeft, replay.SpinsLeft)

	// a fresh request id consumes another spin
	second, err := svc.Execute(ctx, "u-1", Input{RequestID: "req-2"})
	require.NoError(t, err)
	require.Equal(t, first.SpinsLeft-1, second.SpinsLeft)
}

func TestExecuteReplayPending(t *testing.T) {
	svc, _, db := newTestService(t)
	seedCampaign(t, db)
	seedPool(t, db)
	seedState(t, db, "u-1", 1, 0)

	// an in-flight reservation with no outcome yet
	require.NoError(t, db.Create(&Request{
		ID:           "row-1",
		UserID:       "u-1",
		CampaignCode: testCampaign,
		RequestID:    "req-1",
	}).Error)

	result, err := svc.Execute(context.Background(), "u-1", Input{RequestID: "req-1"})
	require.NoError(t, err)
	require.True(t, result.Idempotent)
	require.True(t, result.Pending)
	require.Nil(t, result.Reward)
	require.Equal(t, int64(1), result.SpinsLeft)
}

func TestExecuteRefundOnEmptyPool(t *testing.T) {
	svc, rewards, db := newTestService(t)
	seedCampaign(t, db)
	seedState(t, db, "u-1", 3, 0)

	ctx := context.Background()
	_, err := svc.Execute(ctx, "u-1", Input{RequestID: "req-1"})
	require.Error(t, err)
	require.Equal(t, errutil.StatusConfiguration, errutil.StatusOf(err))

	// the consumed spin came back
	st, err := rewards.Snapshot(ctx, "u-1", testCampaign)
	require.NoError(t, err)
	require.Equal(t, int64(3), st.SpinBalance)

	// the reservation finalized as none, so the retry replays it
	replay, err := svc.Execute(ctx, "u-1", Input{RequestID: "req-1"})
	require.NoError(t, err)
	require.True(t, replay.Idempotent)
	require.Equal(t, "none", replay.Reward.Kind)
}

func TestExecuteRefundOnIssueFailure(t *testing.T) {
	svc, rewards, db := newTestService(t)
	seedCampaign(t, db)
	seedPool(t, db)
	seedState(t, db, "u-1", 2, 0)

	// coupon issuance fails after the spin is consumed
	require.NoError(t, db.Migrator().DropTable(&coupon.Coupon{}))
	svc.roll = func(total int64) int64 { return 60 } // p-2, category coupon

	ctx := context.Background()
	_, err := svc.Execute(ctx, "u-1", Input{RequestID: "req-1"})
	require.Error(t, err)

	// the consumed spin came back and no points moved
	st, err := rewards.Snapshot(ctx, "u-1", testCampaign)
	require.NoError(t, err)
	require.Equal(t, int64(2), st.SpinBalance)
	require.Equal(t, int64(0), st.PointBalance)

	// the reservation finalized as none, so the retry replays instead of
	// drawing again
	replay, err := svc.Execute(ctx, "u-1", Input{RequestID: "req-1"})
	require.NoError(t, err)
	require.True(t, replay.Idempotent)
	require.Equal(t, "none", replay.Reward.Kind)
	require.Equal(t, int64(2), replay.SpinsLeft)
}

func TestExecuteMissingRequestID(t *testing.T) {
	svc, _, db := newTestService(t)
	seedCampaign(t, db)

	_, err := svc.Execute(context.Background(), "u-1", Input{})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestExecuteUnknownCampaign(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Execute(context.Background(), "u-1", Input{RequestID: "req-1", CampaignCode: "ghost"})
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}
