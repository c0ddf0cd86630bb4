package reward

import (
	"fmt"
	"sort"

	"swaply-rewards/services/campaign"
)

// TriggerConfig is the campaign's trigger schedule, assembled from its
// reward rules.
type TriggerConfig struct {
	// Milestones maps one-shot counter values to the spins granted there.
	Milestones map[int64]int64
	// Loop is the repeating grant schedule, nil when disabled.
	Loop *campaign.LoopRule
	// GuaranteeAt / GuaranteeMinPoints top the point balance up to a
	// minimum when the counter hits GuaranteeAt. Zero disables it.
	GuaranteeAt        int64
	GuaranteeMinPoints int64
}

// Trigger is one grant the counter value fired.
type Trigger struct {
	N         int64
	Kind      GrantKind
	Spins     int64
	Guarantee bool
	Reason    string
}

// ResolveTriggers maps the new counter value to the grants it fires.
// Pure function of its inputs; the grant executor enforces once-ever.
func ResolveTriggers(counter int64, cfg TriggerConfig) []Trigger {
	var triggers []Trigger

	if spins, ok := cfg.Milestones[counter]; ok && spins > 0 {
		triggers = append(triggers, Trigger{
			N:      counter,
			Kind:   GrantSpin,
			Spins:  spins,
			Reason: fmt.Sprintf("milestone_%d", counter),
		})
	}

	if cfg.GuaranteeAt > 0 && counter == cfg.GuaranteeAt {
		triggers = append(triggers, Trigger{
			N:         counter,
			Kind:      GrantPoints,
			Guarantee: true,
			Reason:    "guarantee",
		})
	}

	// startAt itself is a grant point (offset 0)
	if loop := cfg.Loop; loop != nil && counter >= loop.StartAt {
		if (counter-loop.StartAt)%loop.Interval == 0 {
			triggers = append(triggers, Trigger{
				N:      counter,
				Kind:   GrantSpin,
				Spins:  loop.SpinsEach,
				Reason: "spin_loop",
			})
		}
	}

	return triggers
}

// LoopProgress describes where the counter sits in the repeating
// schedule, for UI rendering.
type LoopProgress struct {
	Enabled   bool  `json:"enabled"`
	StartAt   int64 `json:"start_at,omitempty"`
	Interval  int64 `json:"interval,omitempty"`
	NextAt    int64 `json:"next_at,omitempty"`
	Remaining int64 `json:"remaining,omitempty"`
}

// ResolveLoopProgress is queried even when no trigger fires, to render
// "N more listings until next spin".
func ResolveLoopProgress(counter int64, loop *campaign.LoopRule) LoopProgress {
	if loop == nil {
		return LoopProgress{}
	}

	if counter < loop.StartAt {
		return LoopProgress{
			Enabled:   true,
			StartAt:   loop.StartAt,
			Interval:  loop.Interval,
			NextAt:    loop.StartAt,
			Remaining: loop.StartAt - counter,
		}
	}

	offset := (counter - loop.StartAt) % loop.Interval
	remaining := loop.Interval - offset
	if offset == 0 {
		remaining = loop.Interval
	}
	return LoopProgress{
		Enabled:   true,
		StartAt:   loop.StartAt,
		Interval:  loop.Interval,
		NextAt:    counter + remaining,
		Remaining: remaining,
	}
}

// LoopProgressText renders the loop progress line shown in the reward
// center, empty when the loop is disabled.
func LoopProgressText(counter int64, p LoopProgress) string {
	if !p.Enabled {
		return ""
	}

	if counter >= p.StartAt {
		return fmt.Sprintf("%d more listing%s until next spin (#%d)", p.Remaining, plural(p.Remaining), p.NextAt)
	}

	toUnlock := p.StartAt - counter
	return fmt.Sprintf("%d more listing%s to unlock spin loop (starting at #%d)", toUnlock, plural(toUnlock), p.StartAt)
}

// MilestoneProgressText renders progress toward the next one-shot
// milestone, with the guarantee milestone worded separately.
func MilestoneProgressText(counter int64, cfg TriggerConfig) string {
	steps := make([]int64, 0, len(cfg.Milestones))
	for n := range cfg.Milestones {
		steps = append(steps, n)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })

	var next int64
	for _, n := range steps {
		if n > counter {
			next = n
			break
		}
	}

	if next == 0 {
		return "All milestones completed!"
	}
	if next == cfg.GuaranteeAt && cfg.GuaranteeMinPoints > 0 {
		return fmt.Sprintf("%d/%d listings to guarantee %d points", counter, next, cfg.GuaranteeMinPoints)
	}
	return fmt.Sprintf("%d/%d listings to unlock %d spin", counter, next, cfg.Milestones[next])
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}
