package bootstrap

import (
	"fmt"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
	"github.com/trezcool/masomodb/core/state"
)

// seedGradingScale inserts the default grading bands, one at a time.
// An existing scale is adopted as is.
func (r *runner) seedGradingScale(done bool) StepResult {
	if done {
		return skipped(StepSeedGrading, "grading scale already seeded")
	}

	empty, err := r.isEmpty(entity.KindGradingBand)
	if err != nil {
		return warned(StepSeedGrading, &core.SeedingError{Step: StepSeedGrading, Err: err})
	}
	if !empty {
		return r.markDone(state.GradingSeeded, succeeded(StepSeedGrading, "adopted existing grading scale"))
	}

	bands := entity.DefaultGradingScale()
	for i := range bands {
		band := &bands[i]
		band.Base = r.newBase()
		if err := r.insert(band); err != nil {
			err = fmt.Errorf("grade %s: %w", band.Grade, err)
			return warned(StepSeedGrading, &core.SeedingError{Step: StepSeedGrading, Err: err})
		}
		if i < len(bands)-1 && r.opts.InsertDelay > 0 {
			if err := sleepFunc(r.ctx, r.opts.InsertDelay); err != nil {
				return warned(StepSeedGrading, &core.SeedingError{Step: StepSeedGrading, Err: err})
			}
		}
	}
	return r.markDone(state.GradingSeeded, succeeded(StepSeedGrading, fmt.Sprintf("inserted %d grading bands", len(bands))))
}
