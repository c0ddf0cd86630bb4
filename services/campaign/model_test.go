package campaign

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestParseRulesDefaults(t *testing.T) {
	c := &Campaign{Rules: datatypes.JSON(`{}`)}
	rules := c.ParseRules()
	require.Equal(t, float64(50), rules.MinListingPrice)
	require.Equal(t, 2, rules.MinImageCount)
	require.False(t, rules.DeviceFingerprintEnabled)

	c = &Campaign{}
	require.Equal(t, float64(50), c.ParseRules().MinListingPrice)
}

func TestParseRulesOverrides(t *testing.T) {
	c := &Campaign{Rules: datatypes.JSON(`{
		"min_listing_price": 75.5,
		"min_image_count": 3,
		"device_fingerprint_enabled": true,
		"eligibility_expression": "price >= 100.0"
	}`)}

	rules := c.ParseRules()
	require.Equal(t, 75.5, rules.MinListingPrice)
	require.Equal(t, 3, rules.MinImageCount)
	require.True(t, rules.DeviceFingerprintEnabled)
	require.Equal(t, "price >= 100.0", rules.EligibilityExpression)
}

func TestPoolItemPrizePoints(t *testing.T) {
	item := &PoolItem{
		ID:      "p-1",
		Title:   "10 Points",
		Kind:    PrizePoints,
		Payload: datatypes.JSON(`{"points":10}`),
		Weight:  50,
	}

	prize, err := item.Prize()
	require.NoError(t, err)
	require.Equal(t, PrizePoints, prize.Kind)
	require.Equal(t, int64(10), prize.Points)
	require.Equal(t, int64(50), prize.Weight)
}

func TestPoolItemPrizeCouponDefaults(t *testing.T) {
	item := &PoolItem{
		ID:      "p-2",
		Kind:    PrizeCoupon,
		Payload: datatypes.JSON(`{}`),
		Weight:  30,
	}

	prize, err := item.Prize()
	require.NoError(t, err)
	require.Equal(t, "category", prize.CouponScope)
	require.Equal(t, 3, prize.PinDays)
}

func TestPoolItemPrizeInvalid(t *testing.T) {
	tests := []struct {
		name string
		item PoolItem
	}{
		{"zero weight", PoolItem{Kind: PrizeNone, Weight: 0}},
		{"negative weight", PoolItem{Kind: PrizeNone, Weight: -1}},
		{"points without amount", PoolItem{Kind: PrizePoints, Payload: datatypes.JSON(`{}`), Weight: 10}},
		{"unknown kind", PoolItem{Kind: PrizeKind("cash"), Weight: 10}},
		{"unknown coupon scope", PoolItem{Kind: PrizeCoupon, Payload: datatypes.JSON(`{"coupon_scope":"homepage"}`), Weight: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.item.Prize()
			require.Error(t, err)
		})
	}
}
