package reward

import (
	"testing"

	"swaply-rewards/services/campaign"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func ptr(v float64) *float64 { return &v }

func goodListing() *Listing {
	return &Listing{
		ID:       "l-1",
		UserID:   "u-1",
		Images:   datatypes.JSON(`["a.jpg","b.jpg"]`),
		Title:    "iPhone 13",
		Category: "electronics",
		City:     "Nairobi",
		Price:    ptr(120),
		Status:   "active",
		IsActive: true,
	}
}

func defaultRules() campaign.Rules {
	return campaign.Rules{MinListingPrice: 50, MinImageCount: 2}
}

func TestEvaluateQualifies(t *testing.T) {
	v := Evaluate(goodListing(), defaultRules())
	require.True(t, v.Qualified)
	require.Empty(t, v.Reasons)
}

func TestEvaluateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(l *Listing)
		check  string
	}{
		{"too few images", func(l *Listing) { l.Images = datatypes.JSON(`["only.jpg"]`) }, "images"},
		{"blank title", func(l *Listing) { l.Title = "   " }, "title"},
		{"blank category", func(l *Listing) { l.Category = "" }, "category"},
		{"blank city", func(l *Listing) { l.City = "" }, "city"},
		{"nil price", func(l *Listing) { l.Price = nil }, "price"},
		{"price below minimum", func(l *Listing) { l.Price = ptr(49.99) }, "price"},
		{"not published", func(l *Listing) { l.Status = "draft" }, "status"},
		{"soft deleted", func(l *Listing) { l.IsActive = false }, "is_active"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := goodListing()
			tt.mutate(l)

			v := Evaluate(l, defaultRules())
			require.False(t, v.Qualified)

			var checks []string
			for _, r := range v.Reasons {
				checks = append(checks, r.Check)
			}
			require.Contains(t, checks, tt.check)
		})
	}
}

func TestEvaluateReportsAllFailures(t *testing.T) {
	l := goodListing()
	l.Title = ""
	l.Price = ptr(10)
	l.Status = "draft"

	v := Evaluate(l, defaultRules())
	require.False(t, v.Qualified)
	require.Len(t, v.Reasons, 3)
}

func TestEvaluateSingleImageString(t *testing.T) {
	l := goodListing()
	l.Images = datatypes.JSON(`"one.jpg"`)

	rules := defaultRules()
	rules.MinImageCount = 1
	require.True(t, Evaluate(l, rules).Qualified)

	rules.MinImageCount = 2
	require.False(t, Evaluate(l, rules).Qualified)
}

func TestEvaluateExpression(t *testing.T) {
	l := goodListing()

	ok, err := EvaluateExpression(l, `price >= 100.0 && category == "electronics"`)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = EvaluateExpression(l, `image_count >= 5`)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = EvaluateExpression(l, "")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEvaluateExpressionInvalid(t *testing.T) {
	_, err := EvaluateExpression(goodListing(), `price >>> 10`)
	require.Error(t, err)
}
