package core

import (
	"geopandemic/pkg/domain"
	"testing"
)

func testGroup(vaccination bool, infected float64) domain.AgeGroup {
	g := domain.AgeGroup{
		Unvaccinated: domain.Stratum{
			Susceptible: []float64{0},
			Exposed:     []float64{0.02, 0.01},
			Infected:    []float64{infected, infected / 2, infected / 4},
			Recovered:   []float64{0.01, 0.005, 0.002},
		},
	}
	if vaccination {
		g.Dose1 = domain.Stratum{
			Susceptible: []float64{0.05, 0.03, 0.02},
			Exposed:     []float64{0.001, 0},
			Infected:    []float64{0.001, 0, 0},
			Recovered:   []float64{0.001, 0.001, 0.001},
		}
		g.Dose2 = domain.Stratum{
			Susceptible: []float64{0.04, 0.06},
			Exposed:     []float64{0, 0},
			Infected:    []float64{0.0005, 0, 0},
			Recovered:   []float64{0.001, 0.002},
		}
	}
	g.Unvaccinated.Susceptible[0] = 1 - (g.Total() - g.Unvaccinated.Susceptible[0])
	return g
}

func testState(vaccination bool, infected float64) *domain.State {
	s := &domain.State{
		Population:                   10000,
		AgeGroupProportions:          []float64{0.3, 0.7},
		AgeGroups:                    []domain.AgeGroup{testGroup(vaccination, infected), testGroup(vaccination, infected/2)},
		Disobedient:                  0.2,
		HospitalCapacity:             0.05,
		FatalityModifier:             1.5,
		MinIntervalDoses:             1,
		MinIntervalRecoveryToVaccine: 1,
		Vaccination:                  vaccination,
		PrecisionDivider:             1e6,
	}
	if vaccination {
		s.ImmunityDose1 = [][]float64{{0.6, 0.7}, {0.6, 0.7}}
		s.ImmunityDose2 = [][]float64{{0.9}, {0.9}}
	}
	return s
}

func testRates(vaccination, resus bool) *domain.RateTables {
	unvac := domain.StratumRates{
		Incubation: [][]float64{{0.3, 1}, {0.3, 1}},
		Recovery:   [][]float64{{0.1, 0.2, 0.9}, {0.1, 0.2, 0.9}},
		Fatality:   [][]float64{{0.01, 0.02, 0.1}, {0.01, 0.02, 0.1}},
	}
	r := &domain.RateTables{
		PrecisionDivider: 1e6,
		ReSusceptibility: resus,
		Vaccination:      vaccination,
		Virulence:        [][]float64{{0.4, 0.3, 0.2}, {0.4, 0.3, 0.2}},
		Mobility:         [][]float64{{0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}},
		Unvaccinated:     unvac,
	}
	if vaccination {
		vac := domain.StratumRates{
			Incubation: [][]float64{{0.2, 1}, {0.2, 1}},
			Recovery:   [][]float64{{0.15, 0.25, 0.98}, {0.15, 0.25, 0.98}},
			Fatality:   [][]float64{{0.005, 0.01, 0.02}, {0.005, 0.01, 0.02}},
		}
		r.Dose1 = vac
		r.Dose2 = vac
		r.VaccinationDose1 = [][]float64{{0.02}, {0.03}}
		r.VaccinationDose2 = [][]float64{{0.1, 0.1, 0.1, 0.1}, {0.1, 0.1, 0.1, 0.1}}
	}
	return r
}

func testVicinity(t *testing.T, correlation float64) domain.Vicinity {
	t.Helper()
	v, err := domain.NewVicinity(correlation, map[string][]float64{
		"0.05": {0.6, 0.02},
		"0.2":  {0.3, 0.05},
	})
	if err != nil {
		t.Fatalf("vicinity: %v", err)
	}
	return v
}

func newTestCell(t *testing.T, id string, state *domain.State, rates *domain.RateTables, neighbors ...string) *Cell {
	t.Helper()
	vicinities := map[string]domain.Vicinity{id: testVicinity(t, 1)}
	for _, n := range neighbors {
		vicinities[n] = testVicinity(t, 0.4)
	}
	c, err := NewCell(id, state, rates, vicinities)
	if err != nil {
		t.Fatalf("new cell %s: %v", id, err)
	}
	return c
}

// stepAll advances every cell by one day from the same published snapshot.
func stepAll(cells []*Cell, day int) error {
	published := make(StateMap, len(cells))
	for _, c := range cells {
		published[c.ID] = c.State
	}
	next := make([]*domain.State, len(cells))
	for i, c := range cells {
		s, err := c.Step(published, day)
		if err != nil {
			return err
		}
		next[i] = s
	}
	for i, c := range cells {
		c.State = next[i]
	}
	return nil
}
