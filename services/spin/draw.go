package spin

import (
	"math/rand"
	"sync"

	"swaply-rewards/pkg/errutil"
	"swaply-rewards/services/campaign"
)

// Roll draws a uniform integer in [1, total]. Injected so tests can
// drive the draw deterministically.
type Roll func(total int64) int64

var (
	drawMu  sync.Mutex
	drawRng = rand.New(rand.NewSource(rand.Int63()))
)

func DefaultRoll(total int64) int64 {
	drawMu.Lock()
	defer drawMu.Unlock()
	return drawRng.Int63n(total) + 1
}

// Draw selects a prize by weighted random draw: walk the pool
// accumulating weights and take the first item whose cumulative weight
// reaches the roll. Ties break by pool order; the last item is the
// explicit fallback. An empty or zero-weight pool is a configuration
// error, never a valid "no reward".
func Draw(pool []campaign.Prize, roll Roll) (campaign.Prize, error) {
	var total int64
	for _, item := range pool {
		total += item.Weight
	}
	if len(pool) == 0 || total <= 0 {
		return campaign.Prize{}, errutil.Configuration("invalid pool weights", nil)
	}

	r := roll(total)
	var acc int64
	for _, item := range pool {
		acc += item.Weight
		if r <= acc {
			return item, nil
		}
	}
	return pool[len(pool)-1], nil
}
