package reward

import (
	"testing"

	"swaply-rewards/services/campaign"

	"github.com/stretchr/testify/require"
)

func launchSchedule() TriggerConfig {
	return TriggerConfig{
		Milestones:         map[int64]int64{1: 1, 5: 1, 10: 1, 20: 1, 30: 1},
		Loop:               &campaign.LoopRule{StartAt: 40, Interval: 10, SpinsEach: 1},
		GuaranteeAt:        30,
		GuaranteeMinPoints: 100,
	}
}

func TestResolveTriggersMilestones(t *testing.T) {
	cfg := launchSchedule()

	for _, n := range []int64{1, 5, 10, 20} {
		triggers := ResolveTriggers(n, cfg)
		require.Len(t, triggers, 1, "counter %d", n)
		require.Equal(t, GrantSpin, triggers[0].Kind)
		require.Equal(t, int64(1), triggers[0].Spins)
		require.Equal(t, n, triggers[0].N)
	}
}

func TestResolveTriggersOffSchedule(t *testing.T) {
	cfg := launchSchedule()

	for _, n := range []int64{2, 3, 7, 15, 29, 31, 41, 49} {
		require.Empty(t, ResolveTriggers(n, cfg), "counter %d", n)
	}
}

func TestResolveTriggersGuarantee(t *testing.T) {
	triggers := ResolveTriggers(30, launchSchedule())
	require.Len(t, triggers, 2)

	require.Equal(t, GrantSpin, triggers[0].Kind)
	require.True(t, triggers[1].Guarantee)
	require.Equal(t, GrantPoints, triggers[1].Kind)
	require.Equal(t, int64(30), triggers[1].N)
}

func TestResolveTriggersLoop(t *testing.T) {
	cfg := launchSchedule()

	// startAt itself fires
	triggers := ResolveTriggers(40, cfg)
	require.Len(t, triggers, 1)
	require.Equal(t, "spin_loop", triggers[0].Reason)
	require.Equal(t, int64(1), triggers[0].Spins)

	require.Empty(t, ResolveTriggers(45, cfg))

	triggers = ResolveTriggers(50, cfg)
	require.Len(t, triggers, 1)
	require.Equal(t, "spin_loop", triggers[0].Reason)
}

func TestResolveTriggersMilestoneAndLoopOverlap(t *testing.T) {
	cfg := TriggerConfig{
		Milestones: map[int64]int64{10: 2},
		Loop:       &campaign.LoopRule{StartAt: 10, Interval: 10, SpinsEach: 1},
	}

	triggers := ResolveTriggers(10, cfg)
	require.Len(t, triggers, 2)
	require.Equal(t, "milestone_10", triggers[0].Reason)
	require.Equal(t, "spin_loop", triggers[1].Reason)
}

func TestResolveLoopProgress(t *testing.T) {
	loop := &campaign.LoopRule{StartAt: 40, Interval: 10, SpinsEach: 1}

	p := ResolveLoopProgress(35, loop)
	require.True(t, p.Enabled)
	require.Equal(t, int64(40), p.NextAt)
	require.Equal(t, int64(5), p.Remaining)

	p = ResolveLoopProgress(42, loop)
	require.Equal(t, int64(50), p.NextAt)
	require.Equal(t, int64(8), p.Remaining)

	// at a grant point the next one is a full interval away
	p = ResolveLoopProgress(40, loop)
	require.Equal(t, int64(50), p.NextAt)
	require.Equal(t, int64(10), p.Remaining)

	require.False(t, ResolveLoopProgress(40, nil).Enabled)
}

func TestLoopProgressText(t *testing.T) {
	loop := &campaign.LoopRule{StartAt: 40, Interval: 10, SpinsEach: 1}

	p := ResolveLoopProgress(42, loop)
	require.Equal(t, "8 more listings until next spin (#50)", LoopProgressText(42, p))

	p = ResolveLoopProgress(49, loop)
	require.Equal(t, "1 more listing until next spin (#50)", LoopProgressText(49, p))

	p = ResolveLoopProgress(39, loop)
	require.Equal(t, "1 more listing to unlock spin loop (starting at #40)", LoopProgressText(39, p))
}

func TestMilestoneProgressText(t *testing.T) {
	cfg := launchSchedule()

	require.Equal(t, "3/5 listings to unlock 1 spin", MilestoneProgressText(3, cfg))
	require.Equal(t, "25/30 listings to guarantee 100 points", MilestoneProgressText(25, cfg))
	require.Equal(t, "All milestones completed!", MilestoneProgressText(30, cfg))
}
