package core

import (
	"geopandemic/pkg/domain"

	"gonum.org/v1/gonum/floats"
)

// vaccinate moves people into and through the two dose strata of an age group
// and caches the exposures of every vaccinated susceptible day for the
// exposed advance that follows.
func (u *updater) vaccinate(ws *workspace) {
	unvac := ws.strata[domain.Unvaccinated]
	dose1 := ws.strata[domain.Dose1]
	dose2 := ws.strata[domain.Dose2]
	minRec := u.prev.MinIntervalRecoveryToVaccine
	minDoses := u.prev.MinIntervalDoses

	newDose1 := u.firstDoseUptake(ws, unvac, minRec)

	// Dose1 susceptible advance, last day first. Part of each day past the
	// minimum interval gets its second dose early.
	last1 := len(dose1.prev.Susceptible) - 1
	early := 0.0
	for q := last1; q > 0; q-- {
		src := q - 1
		dose1.exposures[src] = u.g.check("new exposed V1(q)", exposure(dose1, src, u.foi))
		v := dose1.prev.Susceptible[src] - dose1.exposures[src]
		if q > minDoses {
			idx := src - minDoses
			if q > minRec {
				idx = src - minRec
			}
			e := u.g.check("early V2", domain.RateAt(ws.dose2Rates, idx)*dose1.prev.Susceptible[src])
			early += e
			v -= e
		}
		dose1.next.Susceptible[q] = u.g.check("V1(q)", v)
	}
	dose1.exposures[last1] = u.g.check("new exposed V1(td1)", exposure(dose1, last1, u.foi))

	// With re-susceptibility the last recovered day of dose1 returns to the
	// last dose1 susceptible day, except the share that takes its second dose.
	recoveredToDose2 := 0.0
	if u.rates.ReSusceptibility {
		lastR1 := len(dose1.prev.Recovered) - 1
		back := dose1.prev.Recovered[lastR1]
		recoveredToDose2 = u.g.check("RV1(Tr) to V2", domain.RateAt(ws.dose2Rates, lastR1-minRec)*back)
		if last1 == 0 {
			newDose1 += back - recoveredToDose2
		} else {
			dose1.next.Susceptible[last1] = u.g.check("V1(td1)", dose1.next.Susceptible[last1]+back-recoveredToDose2)
		}
	}
	dose1.next.Susceptible[0] = u.g.check("V1(1)", newDose1)

	newDose2 := u.secondDoseUptake(ws, dose1, minRec)
	newDose2 += early + recoveredToDose2
	newDose2 = u.g.check("V2(1)", newDose2)

	// Dose2 susceptible advance. The last day accumulates.
	last2 := len(dose2.prev.Susceptible) - 1
	for q := last2 - 1; q > 0; q-- {
		src := q - 1
		dose2.exposures[src] = u.g.check("new exposed V2(q)", exposure(dose2, src, u.foi))
		dose2.next.Susceptible[q] = u.g.check("V2(q)", dose2.prev.Susceptible[src]-dose2.exposures[src])
	}
	dose2.exposures[last2-1] = u.g.check("new exposed V2(td2-1)", exposure(dose2, last2-1, u.foi))
	dose2.exposures[last2] = u.g.check("new exposed V2(td2)", exposure(dose2, last2, u.foi))
	end := dose2.prev.Susceptible[last2-1] + dose2.prev.Susceptible[last2] -
		dose2.exposures[last2-1] - dose2.exposures[last2]
	if u.rates.ReSusceptibility {
		end += dose2.prev.Recovered[len(dose2.prev.Recovered)-1]
	}
	dose2.next.Susceptible[last2] = u.g.check("V2(td2)", end)
	dose2.next.Susceptible[0] = newDose2

	u.g.check("V1", floats.Sum(dose1.next.Susceptible))
	u.g.check("V2", floats.Sum(dose2.next.Susceptible))
}

// firstDoseUptake returns the new dose1 proportion: susceptible people plus
// recovered people past the minimum recovery-to-vaccine interval. The last
// two recovered days are not eligible. The recovered transfers are recorded
// on the unvaccinated stratum.
func (u *updater) firstDoseUptake(ws *workspace, unvac *stratumWork, minRec int) float64 {
	rate := domain.RateAt(ws.dose1Rates, 0)
	uptake := u.g.check("vd1 * S", rate*unvac.prev.Susceptible[0])
	for d := minRec; d < len(unvac.prev.Recovered)-2; d++ {
		unvac.vacFromRec[d] = u.g.check("vd1 * R(q)", rate*unvac.prev.Recovered[d])
		uptake += unvac.vacFromRec[d]
	}
	return u.g.check("V1(1)", uptake)
}

// secondDoseUptake returns everyone completing the dose1 susceptible phase,
// less that day's exposures, plus dose1 recovered people past the minimum
// interval. Early transfers from dose1 susceptible days are added by the
// caller.
func (u *updater) secondDoseUptake(ws *workspace, dose1 *stratumWork, minRec int) float64 {
	last1 := len(dose1.prev.Susceptible) - 1
	uptake := dose1.prev.Susceptible[last1] - dose1.exposures[last1]
	for d := minRec; d < len(dose1.prev.Recovered)-1; d++ {
		dose1.vacFromRec[d] = u.g.check("vd2 * RV1(q)", domain.RateAt(ws.dose2Rates, d-minRec)*dose1.prev.Recovered[d])
		uptake += dose1.vacFromRec[d]
	}
	return uptake
}
