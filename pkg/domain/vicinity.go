package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Threshold maps an infection level to a movement multiplier and the width of
// the band needed to relax it again.
type Threshold struct {
	Level      float64
	Multiplier float64
	Hysteresis float64
}

// Vicinity is the directed relation from a cell to one neighbor.
type Vicinity struct {
	Correlation float64
	Thresholds  []Threshold // ascending by Level
}

type vicinityJSON struct {
	Correlation float64              `json:"correlation"`
	Factors     map[string][]float64 `json:"infection_correction_factors"`
}

// NewVicinity builds a vicinity from the scenario representation where each
// factor key is an infection level and the value is [multiplier, hysteresis].
func NewVicinity(correlation float64, factors map[string][]float64) (Vicinity, error) {
	v := Vicinity{Correlation: correlation}
	for key, pair := range factors {
		level, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return Vicinity{}, loadErr("infection_correction_factors", "threshold key %q is not a number", key)
		}
		if len(pair) != 2 {
			return Vicinity{}, loadErr("infection_correction_factors", "threshold %q needs [multiplier, hysteresis], got %d values", key, len(pair))
		}
		v.Thresholds = append(v.Thresholds, Threshold{Level: level, Multiplier: pair[0], Hysteresis: pair[1]})
	}
	sort.Slice(v.Thresholds, func(i, j int) bool { return v.Thresholds[i].Level < v.Thresholds[j].Level })
	if err := v.Validate(); err != nil {
		return Vicinity{}, err
	}
	return v, nil
}

// Validate checks the correlation and threshold table.
func (v Vicinity) Validate() error {
	if math.IsNaN(v.Correlation) || v.Correlation < 0 {
		return loadErr("correlation", "must not be negative, got %g", v.Correlation)
	}
	for i, t := range v.Thresholds {
		field := fmt.Sprintf("infection_correction_factors[%g]", t.Level)
		if t.Level < 0 || t.Level > 1 {
			return loadErr(field, "threshold outside [0,1]")
		}
		if t.Multiplier < 0 || t.Multiplier > 1 {
			return loadErr(field, "multiplier %g outside [0,1]", t.Multiplier)
		}
		if t.Hysteresis < 0 || t.Hysteresis > t.Level {
			return loadErr(field, "hysteresis %g must lie in [0, %g]", t.Hysteresis, t.Level)
		}
		if i > 0 && v.Thresholds[i-1].Level >= t.Level {
			return loadErr(field, "thresholds must be strictly ascending")
		}
	}
	return nil
}

// UnmarshalJSON reads the scenario form of a vicinity.
func (v *Vicinity) UnmarshalJSON(data []byte) error {
	var raw vicinityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewVicinity(raw.Correlation, raw.Factors)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON writes the scenario form of a vicinity.
func (v Vicinity) MarshalJSON() ([]byte, error) {
	raw := vicinityJSON{Correlation: v.Correlation, Factors: make(map[string][]float64, len(v.Thresholds))}
	for _, t := range v.Thresholds {
		raw.Factors[strconv.FormatFloat(t.Level, 'g', -1, 64)] = []float64{t.Multiplier, t.Hysteresis}
	}
	return json.Marshal(raw)
}

// Hysteresis is the latched mobility regime of one neighbor relation. It
// persists across days and is owned by the cell holding the relation.
type Hysteresis struct {
	Latched    bool
	Lower      float64
	Upper      float64
	Multiplier float64
}
