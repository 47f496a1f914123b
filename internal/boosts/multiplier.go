package boosts

import (
	"time"

	"github.com/tapmine/backend/internal/models"
)

// EffectiveMultiplierPermille composes the multipliers of every instance
// active at the given instant. The running value starts at 1000 (1.0x) and is
// floored after each pairwise multiplication, not once at the end. Instances
// arrive with Definition resolved by the repository.
func EffectiveMultiplierPermille(instances []*models.BoostInstance, at time.Time) int {
	running := models.BaseMultiplierPermille
	for _, inst := range instances {
		if !inst.ActiveAt(at) {
			continue
		}
		running = running * inst.Definition.MultiplierPermille / models.BaseMultiplierPermille
	}
	return running
}
