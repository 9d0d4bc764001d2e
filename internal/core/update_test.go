package core

import (
	"errors"
	"geopandemic/pkg/domain"
	"math"
	"testing"
)

func checkMass(t *testing.T, c *Cell, day int) {
	t.Helper()
	for age := range c.State.AgeGroups {
		total := c.State.AgeGroupTotal(age)
		if math.Abs(total-1) > c.State.Tolerance() {
			t.Fatalf("day %d cell %s age group %d: mass %g", day, c.ID, age, total)
		}
	}
}

func TestUpdateConservesMassAndFatalitiesNeverDecrease(t *testing.T) {
	for _, tc := range []struct {
		name        string
		vaccination bool
		resus       bool
	}{
		{"seird", false, false},
		{"seird resusceptible", false, true},
		{"vaccination", true, false},
		{"vaccination resusceptible", true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestCell(t, "a", testState(tc.vaccination, 0.08), testRates(tc.vaccination, tc.resus), "b")
			b := newTestCell(t, "b", testState(tc.vaccination, 0.01), testRates(tc.vaccination, tc.resus), "a")
			cells := []*Cell{a, b}
			prevFatalities := map[string][]float64{}
			for day := 1; day <= 120; day++ {
				if err := stepAll(cells, day); err != nil {
					t.Fatalf("day %d: %v", day, err)
				}
				for _, c := range cells {
					checkMass(t, c, day)
					for age, g := range c.State.AgeGroups {
						if prev := prevFatalities[c.ID]; prev != nil && g.Fatalities < prev[age] {
							t.Fatalf("day %d cell %s age %d: fatalities fell from %g to %g", day, c.ID, age, prev[age], g.Fatalities)
						}
					}
					row := make([]float64, len(c.State.AgeGroups))
					for age, g := range c.State.AgeGroups {
						row[age] = g.Fatalities
					}
					prevFatalities[c.ID] = row
				}
			}
		})
	}
}

func TestUpdateLeavesPreviousStateUntouched(t *testing.T) {
	c := newTestCell(t, "a", testState(true, 0.05), testRates(true, true))
	before := c.State.Clone()
	next, err := Update(c, StateMap{"a": c.State}, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if next == c.State {
		t.Fatalf("update must return a new state")
	}
	for age := range before.AgeGroups {
		if before.AgeGroups[age].Unvaccinated.Infected[0] != c.State.AgeGroups[age].Unvaccinated.Infected[0] {
			t.Fatalf("previous state was mutated")
		}
	}
}

func TestVaccinationDisabledKeepsDoseVectorsEmpty(t *testing.T) {
	c := newTestCell(t, "a", testState(false, 0.05), testRates(false, false))
	for day := 1; day <= 50; day++ {
		if err := stepAll([]*Cell{c}, day); err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		for age, g := range c.State.AgeGroups {
			if g.Dose1.Total() != 0 || g.Dose2.Total() != 0 {
				t.Fatalf("day %d age %d: dose strata hold mass", day, age)
			}
		}
		if c.State.TotalDose1(domain.AllAgeGroups) != 0 || c.State.TotalDose2(domain.AllAgeGroups) != 0 {
			t.Fatalf("day %d: dose totals not zero", day)
		}
	}
}

// referenceSEIRD advances a single age group without vaccination using the
// textbook form of the phase equations.
func referenceSEIRD(g domain.AgeGroup, r domain.StratumRates, age int, foi float64, overloaded bool, modifier float64, resus bool) domain.AgeGroup {
	p := g.Unvaccinated
	inc, rec, fat := r.Incubation[age], r.Recovery[age], r.Fatality[age]
	ti, tr := len(p.Infected)-1, len(p.Recovered)-1

	deaths := make([]float64, len(p.Infected))
	recoveries := make([]float64, len(p.Infected))
	for d := range p.Infected {
		deaths[d] = fat[d] * p.Infected[d]
		if overloaded {
			deaths[d] *= modifier
		}
		if d < ti {
			recoveries[d] = rec[d] * p.Infected[d]
		}
	}
	recoveries[ti] = p.Infected[ti] - deaths[ti]

	out := domain.AgeGroup{Unvaccinated: domain.Stratum{
		Susceptible: make([]float64, 1),
		Exposed:     make([]float64, len(p.Exposed)),
		Infected:    make([]float64, len(p.Infected)),
		Recovered:   make([]float64, len(p.Recovered)),
	}}
	n := &out.Unvaccinated
	n.Exposed[0] = p.Susceptible[0] * foi
	for q := 1; q < len(p.Exposed); q++ {
		n.Exposed[q] = (1 - inc[q-1]) * p.Exposed[q-1]
	}
	for d := range p.Exposed {
		n.Infected[0] += inc[d] * p.Exposed[d]
	}
	for q := 1; q <= ti; q++ {
		n.Infected[q] = p.Infected[q-1] - deaths[q-1] - recoveries[q-1]
	}
	for _, v := range recoveries {
		n.Recovered[0] += v
	}
	for q := 1; q <= tr; q++ {
		n.Recovered[q] = p.Recovered[q-1]
	}
	if !resus {
		n.Recovered[tr] += p.Recovered[tr]
	}
	out.Fatalities = g.Fatalities
	for _, v := range deaths {
		out.Fatalities += v
	}
	n.Susceptible[0] = 1 - n.Total() - out.Fatalities
	return out
}

func TestUpdateMatchesReferenceSEIRD(t *testing.T) {
	for _, resus := range []bool{false, true} {
		c := newTestCell(t, "a", testState(false, 0.09), testRates(false, resus))
		for day := 1; day <= 40; day++ {
			prev := c.State.Clone()
			foi, err := forceOfInfection(c, StateMap{"a": prev})
			if err != nil {
				t.Fatalf("foi: %v", err)
			}
			// forceOfInfection advanced the hysteresis; reset it so Update sees
			// the same regime.
			c.hysteresis["a"] = &domain.Hysteresis{}
			overloaded := prev.TotalInfected(domain.AllAgeGroups) > prev.HospitalCapacity
			if err := stepAll([]*Cell{c}, day); err != nil {
				t.Fatalf("day %d: %v", day, err)
			}
			for age := range prev.AgeGroups {
				want := referenceSEIRD(prev.AgeGroups[age], c.Rates.Unvaccinated, age, foi, overloaded, prev.FatalityModifier, resus)
				got := c.State.AgeGroups[age]
				assertStratumClose(t, day, age, want.Unvaccinated, got.Unvaccinated)
				if math.Abs(want.Fatalities-got.Fatalities) > 1e-12 {
					t.Fatalf("day %d age %d fatalities: got %g want %g", day, age, got.Fatalities, want.Fatalities)
				}
			}
			c.hysteresis["a"] = &domain.Hysteresis{}
		}
	}
}

func assertStratumClose(t *testing.T, day, age int, want, got domain.Stratum) {
	t.Helper()
	compare := func(name string, w, g []float64) {
		if len(w) != len(g) {
			t.Fatalf("day %d age %d %s: length %d want %d", day, age, name, len(g), len(w))
		}
		for i := range w {
			if math.Abs(w[i]-g[i]) > 1e-12 {
				t.Fatalf("day %d age %d %s[%d]: got %g want %g", day, age, name, i, g[i], w[i])
			}
		}
	}
	compare("susceptible", want.Susceptible, got.Susceptible)
	compare("exposed", want.Exposed, got.Exposed)
	compare("infected", want.Infected, got.Infected)
	compare("recovered", want.Recovered, got.Recovered)
}

func recoveredOnlyState() *domain.State {
	s := testState(false, 0)
	for i := range s.AgeGroups {
		s.AgeGroups[i].Unvaccinated = domain.Stratum{
			Susceptible: []float64{0.8},
			Exposed:     []float64{0, 0},
			Infected:    []float64{0, 0, 0},
			Recovered:   []float64{0, 0, 0.2},
		}
	}
	return s
}

func TestReSusceptibility(t *testing.T) {
	stay := newTestCell(t, "a", recoveredOnlyState(), testRates(false, false))
	if err := stepAll([]*Cell{stay}, 1); err != nil {
		t.Fatalf("step: %v", err)
	}
	g := stay.State.AgeGroups[0].Unvaccinated
	if math.Abs(g.Recovered[2]-0.2) > 1e-12 || math.Abs(g.Susceptible[0]-0.8) > 1e-12 {
		t.Fatalf("without re-susceptibility recovered mass must stay: %+v", g)
	}
	if err := stepAll([]*Cell{stay}, 2); err != nil {
		t.Fatalf("step: %v", err)
	}
	if g := stay.State.AgeGroups[0].Unvaccinated; math.Abs(g.Recovered[2]-0.2) > 1e-12 {
		t.Fatalf("recovered mass should stay indefinitely: %+v", g)
	}

	back := newTestCell(t, "a", recoveredOnlyState(), testRates(false, true))
	if err := stepAll([]*Cell{back}, 1); err != nil {
		t.Fatalf("step: %v", err)
	}
	g = back.State.AgeGroups[0].Unvaccinated
	if g.Recovered[2] != 0 || math.Abs(g.Susceptible[0]-1) > 1e-12 {
		t.Fatalf("with re-susceptibility recovered mass returns to susceptible: %+v", g)
	}
}

func TestZeroVirulenceProducesNoExposures(t *testing.T) {
	rates := testRates(true, false)
	for age := range rates.Virulence {
		for d := range rates.Virulence[age] {
			rates.Virulence[age][d] = 0
			rates.Mobility[age][d] = 0
		}
	}
	calm := newTestCell(t, "calm", testState(true, 0), rates, "hot")
	hot := newTestCell(t, "hot", testState(true, 0.1), testRates(true, false), "calm")
	for day := 1; day <= 30; day++ {
		if err := stepAll([]*Cell{calm, hot}, day); err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		for age, g := range calm.State.AgeGroups {
			for _, kind := range calm.State.Strata() {
				if e := g.Stratum(kind).Exposed[0]; e != 0 {
					t.Fatalf("day %d age %d %s: new exposures %g", day, age, kind, e)
				}
			}
		}
	}
}

func TestVaccinationUptake(t *testing.T) {
	c := newTestCell(t, "a", testState(true, 0.02), testRates(true, false))
	prev := c.State.Clone()
	if err := stepAll([]*Cell{c}, 1); err != nil {
		t.Fatalf("step: %v", err)
	}
	for age := range prev.AgeGroups {
		p := prev.AgeGroups[age].Unvaccinated
		vd1 := c.Rates.VaccinationDose1[age][0]
		// three recovered days with a minimum interval of 1: no day is
		// eligible for a first dose.
		want := vd1 * p.Susceptible[0]
		if got := c.State.AgeGroups[age].Dose1.Susceptible[0]; math.Abs(got-want) > 1e-12 {
			t.Fatalf("age %d dose1 uptake: got %g want %g", age, got, want)
		}
		if got := c.State.AgeGroups[age].Unvaccinated.Recovered[2]; math.Abs(got-(p.Recovered[1]+p.Recovered[2])) > 1e-12 {
			t.Fatalf("age %d recovered advance should keep the whole penultimate day: got %g", age, got)
		}
	}
}

func TestUpdateReportsInvariantViolation(t *testing.T) {
	s := testState(false, 0.08)
	s.FatalityModifier = 30
	c := newTestCell(t, "a", s, testRates(false, false))
	_, err := Update(c, StateMap{"a": c.State}, 7)
	var inv *domain.InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("expected invariant error, got %v", err)
	}
	if inv.Day != 7 || inv.Cell != "a" || inv.Equation == "" {
		t.Fatalf("invariant error lacks context: %+v", inv)
	}
	if inv.Value >= -c.State.Tolerance() && inv.Value <= 1+c.State.Tolerance() {
		t.Fatalf("reported value %g is within tolerance", inv.Value)
	}
}

func TestUpdateRequiresPublishedSelf(t *testing.T) {
	c := newTestCell(t, "a", testState(false, 0.02), testRates(false, false))
	if _, err := Update(c, StateMap{}, 1); !errors.Is(err, domain.ErrUnknownNeighbor) {
		t.Fatalf("expected unknown neighbor, got %v", err)
	}
}
