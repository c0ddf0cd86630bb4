package reward

import (
	"strings"

	"swaply-rewards/pkg/celengine"
	"swaply-rewards/pkg/errutil"

	"swaply-rewards/services/campaign"
)

// Reason names one failed qualification check with the actual and
// required values for observability.
type Reason struct {
	Check    string `json:"check"`
	Actual   any    `json:"actual"`
	Required any    `json:"required"`
}

type Verdict struct {
	Qualified bool     `json:"qualified"`
	Reasons   []Reason `json:"reasons,omitempty"`
}

// Evaluate decides whether a listing qualifies under the campaign rules.
// All checks are conjunctive; every failed check is reported.
func Evaluate(l *Listing, rules campaign.Rules) Verdict {
	var reasons []Reason

	if count := l.ImageCount(); count < rules.MinImageCount {
		reasons = append(reasons, Reason{Check: "images", Actual: count, Required: rules.MinImageCount})
	}
	if strings.TrimSpace(l.Title) == "" {
		reasons = append(reasons, Reason{Check: "title", Actual: "", Required: "non-blank"})
	}
	if strings.TrimSpace(l.Category) == "" {
		reasons = append(reasons, Reason{Check: "category", Actual: "", Required: "non-blank"})
	}
	if strings.TrimSpace(l.City) == "" {
		reasons = append(reasons, Reason{Check: "city", Actual: "", Required: "non-blank"})
	}
	if l.Price == nil {
		reasons = append(reasons, Reason{Check: "price", Actual: nil, Required: rules.MinListingPrice})
	} else if *l.Price < rules.MinListingPrice {
		reasons = append(reasons, Reason{Check: "price", Actual: *l.Price, Required: rules.MinListingPrice})
	}
	if l.Status != "active" {
		reasons = append(reasons, Reason{Check: "status", Actual: l.Status, Required: "active"})
	}
	if !l.IsActive {
		reasons = append(reasons, Reason{Check: "is_active", Actual: false, Required: true})
	}

	return Verdict{Qualified: len(reasons) == 0, Reasons: reasons}
}

// EvaluateExpression applies the campaign's optional CEL eligibility
// expression as one more conjunct over the listing attributes.
func EvaluateExpression(l *Listing, expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}

	attrs := listingAttrs(l)
	env, err := celengine.GetOrBuildEnv(attrs)
	if err != nil {
		return false, errutil.Configuration("invalid eligibility expression environment", err)
	}

	ok, err := celengine.Evaluate(env, expr, attrs)
	if err != nil {
		return false, errutil.Configuration("eligibility expression evaluation failed", err)
	}
	return ok, nil
}

func listingAttrs(l *Listing) map[string]interface{} {
	price := float64(0)
	if l.Price != nil {
		price = *l.Price
	}
	return map[string]interface{}{
		"title":       l.Title,
		"category":    l.Category,
		"city":        l.City,
		"price":       price,
		"status":      l.Status,
		"is_active":   l.IsActive,
		"image_count": int64(l.ImageCount()),
	}
}
