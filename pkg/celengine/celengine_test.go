package celengine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func listingAttrs() map[string]interface{} {
	return map[string]interface{}{
		"title":       "iPhone 13",
		"category":    "electronics",
		"price":       120.0,
		"is_active":   true,
		"image_count": int64(3),
	}
}

func TestEvaluate(t *testing.T) {
	attrs := listingAttrs()
	env, err := GetOrBuildEnv(attrs)
	require.NoError(t, err)

	tests := []struct {
		expr string
		want bool
	}{
		{`price >= 100.0`, true},
		{`price < 100.0`, false},
		{`category == "electronics" && image_count >= 2`, true},
		{`is_active && title.startsWith("iPhone")`, true},
	}

	for _, tt := range tests {
		got, err := Evaluate(env, tt.expr, attrs)
		require.NoError(t, err, tt.expr)
		require.Equal(t, tt.want, got, tt.expr)
	}
}

func TestEvaluateNonBoolResult(t *testing.T) {
	attrs := listingAttrs()
	env, err := GetOrBuildEnv(attrs)
	require.NoError(t, err)

	_, err = Evaluate(env, `price + 1.0`, attrs)
	require.Error(t, err)
}

func TestValidateExpression(t *testing.T) {
	env, err := BuildCelEnvFromAttributes(listingAttrs())
	require.NoError(t, err)

	require.NoError(t, ValidateExpression(env, `price >= 50.0`))
	require.Error(t, ValidateExpression(env, `price >>> 50`))
	require.Error(t, ValidateExpression(env, `unknown_attr == 1`))
}

func TestStructToMap(t *testing.T) {
	type listing struct {
		Title string  `json:"title"`
		Price float64 `json:"price"`
	}

	m := StructToMap(listing{Title: "Bike", Price: 80})
	require.Equal(t, "Bike", m["title"])
	require.Equal(t, 80.0, m["price"])

	require.Empty(t, StructToMap(nil))
}
