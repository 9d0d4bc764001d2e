package domain

import (
	"strconv"
	"strings"
)

// Report is the per cell-day output tuple. Every proportion is pre-rounded to
// the precision divider of the state it was built from.
type Report struct {
	Population   float64 `json:"population"`
	Susceptible  float64 `json:"susceptible"`
	Exposed      float64 `json:"exposed"`
	Dose1        float64 `json:"vaccinated_dose1"`
	Dose2        float64 `json:"vaccinated_dose2"`
	Infected     float64 `json:"infected"`
	Recovered    float64 `json:"recovered"`
	NewExposed   float64 `json:"new_exposed"`
	NewInfected  float64 `json:"new_infected"`
	NewRecovered float64 `json:"new_recovered"`
	Fatalities   float64 `json:"fatalities"`
}

// ReportColumns names the report fields in tuple order.
var ReportColumns = []string{
	"population", "susceptible", "exposed", "vaccinated_dose1", "vaccinated_dose2",
	"infected", "recovered", "new_exposed", "new_infected", "new_recovered", "fatalities",
}

// NewReport aggregates a state into its report tuple. Susceptible excludes the
// vaccinated strata, which are reported separately.
func NewReport(s *State) Report {
	return Report{
		Population:   s.Population,
		Susceptible:  s.Round(s.TotalSusceptible(AllAgeGroups, true)),
		Exposed:      s.Round(s.TotalExposed(AllAgeGroups)),
		Dose1:        s.Round(s.TotalDose1(AllAgeGroups)),
		Dose2:        s.Round(s.TotalDose2(AllAgeGroups)),
		Infected:     s.Round(s.TotalInfected(AllAgeGroups)),
		Recovered:    s.Round(s.TotalRecovered(AllAgeGroups)),
		NewExposed:   s.Round(s.NewExposed(AllAgeGroups)),
		NewInfected:  s.Round(s.NewInfected(AllAgeGroups)),
		NewRecovered: s.Round(s.NewRecovered(AllAgeGroups)),
		Fatalities:   s.Round(s.TotalFatalities(AllAgeGroups)),
	}
}

// Values returns the tuple in column order.
func (r Report) Values() []float64 {
	return []float64{
		r.Population, r.Susceptible, r.Exposed, r.Dose1, r.Dose2,
		r.Infected, r.Recovered, r.NewExposed, r.NewInfected, r.NewRecovered, r.Fatalities,
	}
}

// Record formats the tuple for a CSV row.
func (r Report) Record() []string {
	values := r.Values()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

// String renders <population,S,E,VD1,VD2,I,R,newE,newI,newR,D>.
func (r Report) String() string {
	return "<" + strings.Join(r.Record(), ",") + ">"
}

// CellReport tags a report with its cell and simulated day.
type CellReport struct {
	CellID string `json:"cell_id"`
	Day    int    `json:"day"`
	Report Report `json:"report"`
}
