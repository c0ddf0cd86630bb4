package redeem

import (
	"context"
	"strings"
	"testing"

	"swaply-rewards/pkg/config"
	"swaply-rewards/pkg/errutil"
	"swaply-rewards/services/campaign"
	"swaply-rewards/services/reward"
	"swaply-rewards/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testCampaign = "launch_v1"

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *reward.Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t,
		&campaign.Campaign{},
		&campaign.RewardRule{},
		&campaign.PoolItem{},
		&reward.State{},
		&reward.Entry{},
		&AirtimeRequest{},
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

	svc := NewService(ServiceParams{
		DB:      db,
		Node:    node,
		Rewards: rewards,
	})
	return svc, rewards, db
}

func seedState(t *testing.T, db *gorm.DB, userID string, points int64) {
	t.Helper()
	require.NoError(t, db.Create(&reward.State{
		ID:           "st-" + userID,
		UserID:       userID,
		CampaignCode: testCampaign,
		PointBalance: points,
	}).Error)
}

func TestRedeemDebitsAndCreatesRequest(t *testing.T) {
	svc, rewards, db := newTestService(t)
	seedState(t, db, "u-1", 200)

	result, err := svc.Redeem(context.Background(), "u-1", Input{Phone: "+254712345678", Points: 50})
	require.NoError(t, err)

	require.True(t, result.OK)
	require.Equal(t, int64(150), result.PointBalance)
	require.True(t, strings.HasPrefix(result.RedeemCode, "RDM-"))
	require.Equal(t, StatusPending, result.Status)

	var row AirtimeRequest
	require.NoError(t, db.First(&row, "redeem_code = ?", result.RedeemCode).Error)
	require.Equal(t, "u-1", row.UserID)
	require.Equal(t, "+254712345678", row.Phone)
	require.Equal(t, int64(50), row.Points)

	st, err := rewards.Snapshot(context.Background(), "u-1", testCampaign)
	require.NoError(t, err)
	require.Equal(t, int64(150), st.PointBalance)
}

func TestRedeemInsufficientPoints(t *testing.T) {
	svc, rewards, db := newTestService(t)
	seedState(t, db, "u-1", 30)

	result, err := svc.Redeem(context.Background(), "u-1", Input{Phone: "+254712345678", Points: 50})
	require.NoError(t, err)

	require.False(t, result.OK)
	require.Equal(t, "insufficient_points", result.Reason)
	require.Equal(t, int64(30), result.PointBalance)

	// nothing mutated, nothing recorded
	st, err := rewards.Snapshot(context.Background(), "u-1", testCampaign)
	require.NoError(t, err)
	require.Equal(t, int64(30), st.PointBalance)

	var count int64
	require.NoError(t, db.Model(&AirtimeRequest{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestRedeemInvalidInput(t *testing.T) {
	svc, _, db := newTestService(t)
	seedState(t, db, "u-1", 200)

	tests := []struct {
		name string
		in   Input
	}{
		{"zero points", Input{Phone: "+254712345678", Points: 0}},
		{"negative points", Input{Phone: "+254712345678", Points: -5}},
		{"empty phone", Input{Phone: "", Points: 50}},
		{"too short", Input{Phone: "+2547", Points: 50}},
		{"too long", Input{Phone: "+2547123456789012", Points: 50}},
		{"letters", Input{Phone: "+2547abc45678", Points: 50}},
		{"plus inside", Input{Phone: "2547+2345678", Points: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Redeem(context.Background(), "u-1", tt.in)
			require.Error(t, err)
			require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	phone, err := normalizePhone("  +254712345678 ")
	require.NoError(t, err)
	require.Equal(t, "+254712345678", phone)

	phone, err = normalizePhone("0712345678")
	require.NoError(t, err)
	require.Equal(t, "0712345678", phone)
}

func TestMaskPhone(t *testing.T) {
	require.Equal(t, "****5678", maskPhone("+254712345678"))
	require.Equal(t, "****", maskPhone("123"))
}
