package engine

import "geopandemic/pkg/domain"

// Summarize folds the reports of one day into a single population-weighted
// report. Population is the sum over cells.
func Summarize(reports []domain.CellReport) domain.Report {
	var total domain.Report
	for _, r := range reports {
		w := r.Report.Population
		total.Population += w
		total.Susceptible += w * r.Report.Susceptible
		total.Exposed += w * r.Report.Exposed
		total.Dose1 += w * r.Report.Dose1
		total.Dose2 += w * r.Report.Dose2
		total.Infected += w * r.Report.Infected
		total.Recovered += w * r.Report.Recovered
		total.NewExposed += w * r.Report.NewExposed
		total.NewInfected += w * r.Report.NewInfected
		total.NewRecovered += w * r.Report.NewRecovered
		total.Fatalities += w * r.Report.Fatalities
	}
	if total.Population == 0 {
		return total
	}
	p := total.Population
	return domain.Report{
		Population:   p,
		Susceptible:  total.Susceptible / p,
		Exposed:      total.Exposed / p,
		Dose1:        total.Dose1 / p,
		Dose2:        total.Dose2 / p,
		Infected:     total.Infected / p,
		Recovered:    total.Recovered / p,
		NewExposed:   total.NewExposed / p,
		NewInfected:  total.NewInfected / p,
		NewRecovered: total.NewRecovered / p,
		Fatalities:   total.Fatalities / p,
	}
}
