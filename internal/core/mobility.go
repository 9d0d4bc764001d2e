package core

import (
	"geopandemic/pkg/domain"
	"math"
)

// Correct returns the movement multiplier in [0,1] for an infection level,
// latching the selected regime in h. A latched regime holds while the level
// stays above its lower bound and does not pass the next tier. The top tier
// has no upper bound.
func Correct(thresholds []domain.Threshold, level float64, h *domain.Hysteresis) float64 {
	if level > h.Upper {
		h.Latched = false
	}
	// Strict comparison: with a lower bound of 0 the latch could never release.
	if h.Latched && level > h.Lower {
		return h.Multiplier
	}
	h.Latched = false

	correction := 1.0
	for i, t := range thresholds {
		if level < t.Level {
			break
		}
		correction = t.Multiplier
		upper := math.Inf(1)
		if i+1 < len(thresholds) {
			upper = thresholds[i+1].Level
		}
		*h = domain.Hysteresis{
			Latched:    true,
			Lower:      t.Level - t.Hysteresis,
			Upper:      upper,
			Multiplier: t.Multiplier,
		}
	}
	return correction
}

// Correction blends the restricted multiplier with the disobedient share of
// the population, which keeps moving freely.
func Correction(disobedient float64, thresholds []domain.Threshold, level float64, h *domain.Hysteresis) float64 {
	return disobedient + (1-disobedient)*Correct(thresholds, level, h)
}
