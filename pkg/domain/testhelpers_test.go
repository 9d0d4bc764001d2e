package domain

import (
	"errors"
	"math"
	"testing"
)

// mustNoError simplifies tests that expect helper methods to succeed.
func mustNoError(t *testing.T, label string, err error) {
	t.Helper()
	if err != nil {
		if label == "" {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Fatalf("%s: %v", label, err)
	}
}

// mustLoadError asserts err is a LoadError naming field.
func mustLoadError(t *testing.T, err error, field string) {
	t.Helper()
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError for %s, got %v", field, err)
	}
	if le.Field != field {
		t.Fatalf("expected field %q, got %q (%v)", field, le.Field, err)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

// seirdState returns two age groups without vaccination: two exposed days,
// three infected days and two recovered days.
func seirdState() *State {
	return &State{
		Population:          1000,
		AgeGroupProportions: []float64{0.4, 0.6},
		AgeGroups: []AgeGroup{
			{Unvaccinated: Stratum{
				Susceptible: []float64{0.9},
				Exposed:     []float64{0.05, 0},
				Infected:    []float64{0.03, 0.01, 0},
				Recovered:   []float64{0.01, 0},
			}},
			{Unvaccinated: Stratum{
				Susceptible: []float64{0.8},
				Exposed:     []float64{0.1, 0},
				Infected:    []float64{0.05, 0.02, 0.01},
				Recovered:   []float64{0.02, 0},
			}},
		},
		Disobedient:      0.1,
		HospitalCapacity: 0.1,
		FatalityModifier: 1.5,
		PrecisionDivider: 10000,
	}
}

func seirdRates() *RateTables {
	stratum := StratumRates{
		Incubation: [][]float64{{0.3, 1}, {0.3, 1}},
		Recovery:   [][]float64{{0.1, 0.2, 0.95}, {0.1, 0.2, 0.9}},
		Fatality:   [][]float64{{0.01, 0.02, 0.05}, {0.02, 0.03, 0.1}},
	}
	return &RateTables{
		PrecisionDivider: 10000,
		Virulence:        [][]float64{{0.4, 0.3, 0.2}, {0.4, 0.3, 0.2}},
		Mobility:         [][]float64{{0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}},
		Unvaccinated:     stratum,
	}
}
