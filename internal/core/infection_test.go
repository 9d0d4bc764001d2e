package core

import (
	"errors"
	"geopandemic/pkg/domain"
	"math"
	"testing"
)

func TestImmunityWeekIndex(t *testing.T) {
	table := []float64{0.1, 0.2, 0.3}
	cases := map[int]float64{
		0:  0.1, // (0-1)*0.14 truncates to 0
		1:  0.1,
		8:  0.1,
		9:  0.2,
		16: 0.3,
		90: 0.3,
	}
	for q, want := range cases {
		if got := immunityAt(table, q); got != want {
			t.Fatalf("q=%d: got %g want %g", q, got, want)
		}
	}
	if got := immunityAt(nil, 5); got != 0 {
		t.Fatalf("empty table should grant no immunity, got %g", got)
	}
}

func TestExposureAppliesImmunityToVaccinatedStrata(t *testing.T) {
	prev := &domain.Stratum{Susceptible: []float64{0.5, 0.5}}
	vaccinated := &stratumWork{kind: domain.Dose1, prev: prev, immunity: []float64{0.6, 0.7}}
	if got := exposure(vaccinated, 1, 0.1); math.Abs(got-0.02) > 1e-12 {
		t.Fatalf("dose1 exposure: got %g", got)
	}
	unvaccinated := &stratumWork{kind: domain.Unvaccinated, prev: prev, immunity: []float64{0.6}}
	if got := exposure(unvaccinated, 1, 0.1); math.Abs(got-0.05) > 1e-12 {
		t.Fatalf("unvaccinated exposure ignores immunity: got %g", got)
	}
}

func unrestrictedCell(t *testing.T, id string, neighbors map[string]domain.Vicinity) *Cell {
	t.Helper()
	vicinities := map[string]domain.Vicinity{id: {Correlation: 1}}
	for n, v := range neighbors {
		vicinities[n] = v
	}
	c, err := NewCell(id, testState(false, 0.04), testRates(false, false), vicinities)
	if err != nil {
		t.Fatalf("new cell: %v", err)
	}
	return c
}

// pressure of testState(false, 0.04) under testRates: 0.3*0.012 + 0.7*0.006.
const fixturePressure = 0.0078

func TestForceOfInfectionSelfOnly(t *testing.T) {
	c := unrestrictedCell(t, "a", nil)
	foi, err := forceOfInfection(c, StateMap{"a": c.State})
	if err != nil {
		t.Fatalf("foi: %v", err)
	}
	if math.Abs(foi-fixturePressure) > 1e-12 {
		t.Fatalf("got %g want %g", foi, fixturePressure)
	}
}

func TestForceOfInfectionUsesMoreRestrictiveRegime(t *testing.T) {
	restricted := domain.Vicinity{Correlation: 0.4, Thresholds: []domain.Threshold{{Level: 0, Multiplier: 0.5}}}
	c := unrestrictedCell(t, "a", map[string]domain.Vicinity{"b": restricted})
	b := testState(false, 0.04)
	foi, err := forceOfInfection(c, StateMap{"a": c.State, "b": b})
	if err != nil {
		t.Fatalf("foi: %v", err)
	}
	k := 0.2 + 0.8*0.5
	want := fixturePressure + 0.4*k*fixturePressure
	if math.Abs(foi-want) > 1e-12 {
		t.Fatalf("got %g want %g", foi, want)
	}
	h, ok := c.Hysteresis("b")
	if !ok || !h.Latched || h.Multiplier != 0.5 {
		t.Fatalf("neighbor relation should latch, got %+v", h)
	}
	if own, _ := c.Hysteresis("a"); own.Latched {
		t.Fatalf("self relation without thresholds must stay unlatched")
	}
}

func TestForceOfInfectionErrors(t *testing.T) {
	c := unrestrictedCell(t, "a", map[string]domain.Vicinity{"ghost": {Correlation: 1}})
	if _, err := forceOfInfection(c, StateMap{"a": c.State}); !errors.Is(err, domain.ErrUnknownNeighbor) {
		t.Fatalf("expected unknown neighbor, got %v", err)
	}

	long := testState(false, 0.04)
	long.AgeGroups[0].Unvaccinated.Infected = append(long.AgeGroups[0].Unvaccinated.Infected, 0.01)
	if _, err := forceOfInfection(c, StateMap{"a": c.State, "ghost": long}); !errors.Is(err, domain.ErrMissingRate) {
		t.Fatalf("expected missing rate, got %v", err)
	}
}

func TestNewCellRequiresSelfVicinity(t *testing.T) {
	_, err := NewCell("a", testState(false, 0.04), testRates(false, false), map[string]domain.Vicinity{"b": {Correlation: 1}})
	if !errors.Is(err, domain.ErrMissingSelfVicinity) {
		t.Fatalf("expected missing self vicinity, got %v", err)
	}
}

func TestNewCellReportsCellInLoadErrors(t *testing.T) {
	s := testState(false, 0.04)
	s.AgeGroupProportions = []float64{0.5, 0.6}
	_, err := NewCell("north", s, testRates(false, false), map[string]domain.Vicinity{"north": {Correlation: 1}})
	var le *domain.LoadError
	if !errors.As(err, &le) || le.Cell != "north" || le.Field != "age_group_proportions" {
		t.Fatalf("expected load error naming the cell, got %v", err)
	}

	bad := domain.Vicinity{Correlation: 1, Thresholds: []domain.Threshold{{Level: 0.3, Multiplier: 0.5, Hysteresis: 0.4}}}
	_, err = NewCell("north", testState(false, 0.04), testRates(false, false), map[string]domain.Vicinity{"north": bad})
	if !errors.As(err, &le) || le.Field != "neighborhood.north.infection_correction_factors[0.3]" {
		t.Fatalf("expected vicinity load error, got %v", err)
	}
}
