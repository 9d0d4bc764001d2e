package core

import (
	"fmt"
	"geopandemic/pkg/domain"
)

// weekFactor converts a susceptible phase day into an immunity week index.
const weekFactor = 0.14

// forceOfInfection returns the cell-wide exposure pressure for one day:
//
//	Σ_neighbors corr × min(own, k_n) × Σ_b share_b × Σ_strata Σ_d μ(b,d)·λ(b,d)·I(b,d)
//
// μ and λ are the cell's own tables indexed by the neighbor's age group and
// infected day. Every relation's hysteresis is advanced exactly once.
func forceOfInfection(c *Cell, view StateView) (float64, error) {
	self, ok := view.Lookup(c.ID)
	if !ok {
		return 0, fmt.Errorf("cell %s: %w", c.ID, domain.ErrUnknownNeighbor)
	}
	selfVicinity, ok := c.Vicinities[c.ID]
	if !ok {
		return 0, fmt.Errorf("cell %s: %w", c.ID, domain.ErrMissingSelfVicinity)
	}
	own := Correction(self.Disobedient, selfVicinity.Thresholds, self.TotalInfected(domain.AllAgeGroups), c.hysteresis[c.ID])

	foi := 0.0
	for _, id := range c.neighbors {
		neighbor, ok := view.Lookup(id)
		if !ok {
			return 0, fmt.Errorf("cell %s: neighbor %s: %w", c.ID, id, domain.ErrUnknownNeighbor)
		}
		k := own
		if id != c.ID {
			v := c.Vicinities[id]
			k = min(own, Correction(neighbor.Disobedient, v.Thresholds, neighbor.TotalInfected(domain.AllAgeGroups), c.hysteresis[id]))
		}
		pressure, err := infectiousPressure(c.Rates, neighbor)
		if err != nil {
			return 0, fmt.Errorf("cell %s: neighbor %s: %w", c.ID, id, err)
		}
		foi += c.Vicinities[id].Correlation * k * pressure
	}
	return foi, nil
}

// infectiousPressure weighs the neighbor's infected pools by mobility and
// virulence and by the population share of each age group.
func infectiousPressure(rates *domain.RateTables, neighbor *domain.State) (float64, error) {
	total := 0.0
	for b := range neighbor.AgeGroups {
		if b >= len(rates.Mobility) || b >= len(rates.Virulence) {
			return 0, fmt.Errorf("age group %d: %w", b, domain.ErrMissingRate)
		}
		mobility, virulence := rates.Mobility[b], rates.Virulence[b]
		inner := 0.0
		for _, kind := range neighbor.Strata() {
			for d, infected := range neighbor.AgeGroups[b].Stratum(kind).Infected {
				if d >= len(mobility) || d >= len(virulence) {
					return 0, fmt.Errorf("age group %d day %d: %w", b, d, domain.ErrMissingRate)
				}
				inner += mobility[d] * virulence[d] * infected
			}
		}
		if b < len(neighbor.AgeGroupProportions) {
			total += inner * neighbor.AgeGroupProportions[b]
		}
	}
	return total, nil
}

// immunityAt reads the immunity of susceptible day q. The week index is
// truncated toward zero and clamped to the table; an empty table grants none.
func immunityAt(table []float64, q int) float64 {
	if len(table) == 0 {
		return 0
	}
	week := int(float64(q-1) * weekFactor)
	week = max(0, min(week, len(table)-1))
	return table[week]
}

// exposure is the share of susceptible day q of a stratum that becomes
// exposed, given the day's force of infection.
func exposure(sw *stratumWork, q int, foi float64) float64 {
	e := sw.prev.Susceptible[q] * foi
	if sw.kind != domain.Unvaccinated {
		e *= 1 - immunityAt(sw.immunity, q)
	}
	return e
}
