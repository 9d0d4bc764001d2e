package core

import (
	"geopandemic/pkg/domain"

	"gonum.org/v1/gonum/floats"
)

// updater carries the per-day context shared by every age group of a cell.
type updater struct {
	prev       *domain.State
	next       *domain.State
	rates      *domain.RateTables
	foi        float64
	overloaded bool
	g          guard
}

// Update advances a cell by one simulated day. The cell's own state is the
// previous day; neighbors, the cell itself included, are read from view.
// The returned state is new; c.State is left untouched.
//
// Hospital overload is decided from the previous day's total infections so
// that no age group reads another's in-progress results. Age groups are
// processed in ascending order.
func Update(c *Cell, view StateView, day int) (*domain.State, error) {
	foi, err := forceOfInfection(c, view)
	if err != nil {
		return nil, err
	}
	prev := c.State
	u := &updater{
		prev:       prev,
		next:       prev.Clone(),
		rates:      c.Rates,
		foi:        foi,
		overloaded: prev.TotalInfected(domain.AllAgeGroups) > prev.HospitalCapacity,
		g:          guard{cell: c.ID, day: day, eps: prev.Tolerance()},
	}
	for age := range prev.AgeGroups {
		u.g.age = age
		u.ageGroup(newWorkspace(prev, u.next, c.Rates, age))
		if u.g.err != nil {
			return nil, u.g.err
		}
	}
	return u.next, nil
}

// ageGroup runs the equations of one age group in order: vaccination, then
// fatalities, recoveries, exposures, infections and recovered advance per
// stratum, then the susceptible balance.
func (u *updater) ageGroup(ws *workspace) {
	newSusceptible := 1.0
	if u.prev.Vaccination {
		u.vaccinate(ws)
		newSusceptible -= floats.Sum(ws.strata[domain.Dose1].next.Susceptible)
		u.g.check("S -= V1", newSusceptible)
		newSusceptible -= floats.Sum(ws.strata[domain.Dose2].next.Susceptible)
		u.g.check("S -= V2", newSusceptible)
	}

	group := &u.next.AgeGroups[ws.age]
	for _, sw := range ws.active() {
		u.progress(sw)
		newSusceptible -= floats.Sum(sw.next.Exposed)
		u.g.check("S -= E", newSusceptible)
		newSusceptible -= floats.Sum(sw.next.Infected)
		u.g.check("S -= I", newSusceptible)
		newSusceptible -= floats.Sum(sw.next.Recovered)
		u.g.check("S -= R", newSusceptible)
		group.Fatalities += sw.totalFatalities
		u.g.check("fatalities", group.Fatalities)
	}
	newSusceptible -= group.Fatalities
	group.Unvaccinated.Susceptible[0] = u.g.check("S", newSusceptible)
}
