package core

import (
	"geopandemic/pkg/domain"
	"math"
)

// stratumWork is the per-day scratch space of one stratum of one age group.
// prev points at the previous day's arrays, which are never written; next
// points into the state under construction.
type stratumWork struct {
	kind     domain.StratumKind
	prev     *domain.Stratum
	next     *domain.Stratum
	immunity []float64

	incubation []float64
	recovery   []float64
	fatality   []float64

	fatalities []float64 // per infected day
	recoveries []float64 // per infected day
	vacFromRec []float64 // per recovered day, moved to the next dose
	exposures  []float64 // per susceptible day

	totalFatalities float64
}

// workspace groups the strata of one age group for a single day.
type workspace struct {
	age    int
	strata [3]*stratumWork // indexed by StratumKind, nil when inactive

	dose1Rates []float64
	dose2Rates []float64
}

func newWorkspace(prev, next *domain.State, rates *domain.RateTables, age int) *workspace {
	ws := &workspace{
		age:        age,
		dose1Rates: rates.VaccinationRates(domain.Dose1, age),
		dose2Rates: rates.VaccinationRates(domain.Dose2, age),
	}
	for _, kind := range prev.Strata() {
		p := prev.AgeGroups[age].Stratum(kind)
		sr := rates.Stratum(kind)
		ws.strata[kind] = &stratumWork{
			kind:       kind,
			prev:       p,
			next:       next.AgeGroups[age].Stratum(kind),
			immunity:   prev.Immunity(kind, age),
			incubation: row(sr.Incubation, age),
			recovery:   row(sr.Recovery, age),
			fatality:   row(sr.Fatality, age),
			fatalities: make([]float64, len(p.Infected)),
			recoveries: make([]float64, len(p.Infected)),
			vacFromRec: make([]float64, len(p.Recovered)),
			exposures:  make([]float64, len(p.Susceptible)),
		}
	}
	return ws
}

// active returns the strata that take part in the day, in stratum order.
func (ws *workspace) active() []*stratumWork {
	out := make([]*stratumWork, 0, len(ws.strata))
	for _, sw := range ws.strata {
		if sw != nil {
			out = append(out, sw)
		}
	}
	return out
}

func row(table [][]float64, age int) []float64 {
	if age < len(table) {
		return table[age]
	}
	return []float64{}
}

// guard records the first proportion that leaves [-ε, 1+ε]. Later equations
// keep running but their results are discarded once err is set.
type guard struct {
	cell string
	day  int
	age  int
	eps  float64
	err  error
}

func (g *guard) check(equation string, v float64) float64 {
	if g.err == nil && (math.IsNaN(v) || v < -g.eps || v > 1+g.eps) {
		g.err = &domain.InvariantError{
			Cell:     g.cell,
			Day:      g.day,
			AgeGroup: g.age,
			Equation: equation,
			Value:    v,
		}
	}
	return v
}
