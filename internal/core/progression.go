package core

import (
	"geopandemic/pkg/domain"
)

// progress advances the exposed, infected and recovered phases of one stratum.
// Fatalities and recoveries are computed first because the infected advance
// removes them from each day.
func (u *updater) progress(sw *stratumWork) {
	u.fatalities(sw)
	newRecovered := u.recoveries(sw)
	u.exposed(sw)
	u.infected(sw)
	u.recovered(sw, newRecovered)
}

// fatalities fills sw.fatalities per infected day. The rate is amplified when
// the cell was over hospital capacity on the previous day.
func (u *updater) fatalities(sw *stratumWork) {
	total := 0.0
	for d, infected := range sw.prev.Infected {
		f := domain.RateAt(sw.fatality, d) * infected
		if u.overloaded {
			f *= u.prev.FatalityModifier
		}
		sw.fatalities[d] = u.g.check("D(q)", f)
		total += f
	}
	sw.totalFatalities = u.g.check("D", total)
}

// recoveries fills sw.recoveries per infected day and returns their sum. The
// last infected day recovers in full, minus its fatalities.
func (u *updater) recoveries(sw *stratumWork) float64 {
	last := len(sw.prev.Infected) - 1
	total := u.g.check("R(Ti)", sw.prev.Infected[last]-sw.fatalities[last])
	sw.recoveries[last] = total
	for d := 0; d < last; d++ {
		r := domain.RateAt(sw.recovery, d) * sw.prev.Infected[d]
		sw.recoveries[d] = u.g.check("R(q)", r)
		total += r
	}
	return u.g.check("R(1)", total)
}

// exposed shifts the exposed phase one day and seeds day 0 with the new
// exposures. Vaccinated strata reuse exposures cached while processing
// vaccination; the unvaccinated stratum computes them here.
func (u *updater) exposed(sw *stratumWork) {
	if sw.kind == domain.Unvaccinated {
		for q := range sw.prev.Susceptible {
			sw.exposures[q] = u.g.check("new exposed", exposure(sw, q, u.foi))
		}
	}
	newExposed := 0.0
	for _, e := range sw.exposures {
		newExposed += e
	}
	for q := len(sw.prev.Exposed) - 1; q > 0; q-- {
		sw.next.Exposed[q] = u.g.check("E(q)", (1-domain.RateAt(sw.incubation, q-1))*sw.prev.Exposed[q-1])
	}
	sw.next.Exposed[0] = u.g.check("E(1)", newExposed)
}

// infected shifts the infected phase one day. Every exposed day contributes
// its incubating share to the new infections; the last exposed day has an
// incubation rate of 1.
func (u *updater) infected(sw *stratumWork) {
	newInfected := 0.0
	for d, exposed := range sw.prev.Exposed {
		newInfected += domain.RateAt(sw.incubation, d) * exposed
	}
	u.g.check("I(1)", newInfected)
	for q := len(sw.prev.Infected) - 1; q > 0; q-- {
		sw.next.Infected[q] = u.g.check("I(q)", sw.prev.Infected[q-1]-sw.fatalities[q-1]-sw.recoveries[q-1])
	}
	sw.next.Infected[0] = newInfected
}

// recovered shifts the recovered phase one day, removing the share that moved
// on to a vaccine dose. Without re-susceptibility the last day keeps its mass
// indefinitely; with it, that mass leaves the phase and is picked up by the
// susceptible balance.
func (u *updater) recovered(sw *stratumWork, newRecovered float64) {
	last := len(sw.prev.Recovered) - 1
	for q := last; q > 0; q-- {
		r := sw.prev.Recovered[q-1] - sw.vacFromRec[q-1]
		if !u.rates.ReSusceptibility && q == last {
			r += sw.prev.Recovered[last]
		}
		sw.next.Recovered[q] = u.g.check("R(q)", r)
	}
	if !u.rates.ReSusceptibility && last == 0 {
		newRecovered += sw.prev.Recovered[0]
	}
	sw.next.Recovered[0] = u.g.check("R(1)", newRecovered)
}
