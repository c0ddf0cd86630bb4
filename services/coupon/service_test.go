package coupon

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"swaply-rewards/pkg/config"
	"swaply-rewards/pkg/repository"
	"swaply-rewards/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Coupon{}, &Log{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Reward.CouponValidDays = 30

	svc := NewService(ServiceParams{DB: db, Node: node, Config: cfg})
	return svc, db
}

func TestIssueCategoryCoupon(t *testing.T) {
	svc, db := newTestService(t)

	c, err := svc.Issue(context.Background(), IssueParams{
		UserID:       "u-1",
		CampaignCode: "launch_v1",
		Source:       "spin_reward",
		Scope:        "category",
		PinDays:      3,
		Description:  "Spin reward",
	})
	require.NoError(t, err)

	require.Equal(t, "category", c.Type)
	require.Equal(t, "category", c.PinScope)
	require.Equal(t, 3, c.PinDays)
	require.Equal(t, 3, c.DurationDays)
	require.Equal(t, "3-Day Category Boost", c.Title)
	require.True(t, strings.HasPrefix(c.Code, "RWD-"))
	require.WithinDuration(t, time.Now().AddDate(0, 0, 30), c.ValidUntil, time.Minute)

	// the patch landed on the row, not just the struct
	var row Coupon
	require.NoError(t, db.First(&row, "id = ?", c.ID).Error)
	require.Equal(t, "category", row.PinScope)
	require.Equal(t, 3, row.PinDays)

	var logCount int64
	require.NoError(t, db.Model(&Log{}).Count(&logCount).Error)
	require.Equal(t, int64(1), logCount)
}

func TestIssueNonCategoryScopesAreFeatured(t *testing.T) {
	svc, _ := newTestService(t)

	for _, scope := range []string{"search", "trending"} {
		c, err := svc.Issue(context.Background(), IssueParams{
			UserID: "u-1",
			Source: "spin_reward",
			Scope:  scope,
		})
		require.NoError(t, err)
		require.Equal(t, "featured", c.Type)
		require.Equal(t, scope, c.PinScope)
	}
}

func TestIssueDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Issue(context.Background(), IssueParams{
		UserID: "u-1",
		Source: "spin_reward",
		Scope:  "bogus",
	})
	require.NoError(t, err)

	require.Equal(t, "category", c.PinScope)
	require.Equal(t, 3, c.PinDays)
}

// patchFailStore delegates to a real store but fails every Update, to
// drive the non-fatal patch path.
type patchFailStore struct {
	repository.Repository[Coupon]
}

func (s *patchFailStore) Update(ctx context.Context, resourceID string, resource any) error {
	return errors.New("update rejected")
}

func TestIssuePatchFailureIsNonFatal(t *testing.T) {
	svc, db := newTestService(t)
	svc.coupons = &patchFailStore{Repository: svc.coupons}

	c, err := svc.Issue(context.Background(), IssueParams{
		UserID: "u-1",
		Source: "spin_reward",
		Scope:  "search",
	})
	require.NoError(t, err)

	// the coupon exists and stays usable with its defaults
	var row Coupon
	require.NoError(t, db.First(&row, "id = ?", c.ID).Error)
	require.Equal(t, "featured", row.Type)
	require.Empty(t, row.PinScope)
	require.Zero(t, row.PinDays)
}

func TestIssueUniqueCodes(t *testing.T) {
	svc, _ := newTestService(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		c, err := svc.Issue(context.Background(), IssueParams{UserID: "u-1", Source: "spin_reward"})
		require.NoError(t, err)
		require.False(t, seen[c.Code], "duplicate code %s", c.Code)
		seen[c.Code] = true
	}
}
