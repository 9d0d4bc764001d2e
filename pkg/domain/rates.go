package domain

import (
	"fmt"
	"math"
)

// StratumRates groups the per-age-group, per-phase-day rates of one stratum.
type StratumRates struct {
	Incubation [][]float64 `json:"incubation"`
	Recovery   [][]float64 `json:"recovery"`
	Fatality   [][]float64 `json:"fatality"`
}

// RateTables holds the immutable disease parameters of a cell.
type RateTables struct {
	PrecisionDivider float64      `json:"precision"`
	ReSusceptibility bool         `json:"re_susceptibility"`
	Vaccination      bool         `json:"vaccination"`
	Virulence        [][]float64  `json:"virulence"`
	Mobility         [][]float64  `json:"mobility"`
	Unvaccinated     StratumRates `json:"unvaccinated"`
	Dose1            StratumRates `json:"dose1"`
	Dose2            StratumRates `json:"dose2"`
	VaccinationDose1 [][]float64  `json:"vaccination_dose1"`
	VaccinationDose2 [][]float64  `json:"vaccination_dose2"`
}

// Stratum returns the rates of the requested stratum.
func (r *RateTables) Stratum(kind StratumKind) StratumRates {
	switch kind {
	case Dose1:
		return r.Dose1
	case Dose2:
		return r.Dose2
	default:
		return r.Unvaccinated
	}
}

// VaccinationRates returns the uptake rates leading into a vaccinated stratum.
// The unvaccinated stratum has none and gets an empty slice.
func (r *RateTables) VaccinationRates(kind StratumKind, age int) []float64 {
	var table [][]float64
	switch kind {
	case Dose1:
		table = r.VaccinationDose1
	case Dose2:
		table = r.VaccinationDose2
	}
	if age < 0 || age >= len(table) {
		return []float64{}
	}
	return table[age]
}

// RateAt reads rates[i], treating indices outside the table as a zero rate.
func RateAt(rates []float64, i int) float64 {
	if i < 0 || i >= len(rates) {
		return 0
	}
	return rates[i]
}

// Validate checks the tables against the phase layout of state.
func (r *RateTables) Validate(state *State) error {
	if r.PrecisionDivider <= 0 {
		return loadErr("precision", "must be positive, got %g", r.PrecisionDivider)
	}
	if r.Vaccination != state.Vaccination {
		return loadErr("Vaccinations", "rate tables (%t) disagree with the state (%t)", r.Vaccination, state.Vaccination)
	}
	groups := len(state.AgeGroups)
	for _, table := range []struct {
		name   string
		values [][]float64
	}{
		{"virulence_rates", r.Virulence},
		{"mobility_rates", r.Mobility},
	} {
		if err := checkTable(table.name, table.values, groups); err != nil {
			return err
		}
		for age := 0; age < groups; age++ {
			want := 0
			for _, kind := range state.Strata() {
				want = max(want, len(state.AgeGroups[age].Stratum(kind).Infected))
			}
			if n := len(table.values[age]); n < want {
				return loadErr(fmt.Sprintf("%s[%d]", table.name, age), "has %d days, infected phase has %d", n, want)
			}
		}
	}
	for _, kind := range state.Strata() {
		if err := r.validateStratum(kind, state); err != nil {
			return err
		}
	}
	if !r.Vaccination {
		return nil
	}
	for _, table := range []struct {
		name   string
		values [][]float64
	}{
		{"vaccination_rates_dose1", r.VaccinationDose1},
		{"vaccination_rates_dose2", r.VaccinationDose2},
	} {
		if err := checkTable(table.name, table.values, groups); err != nil {
			return err
		}
		for age := 0; age < groups; age++ {
			if len(table.values[age]) == 0 {
				return loadErr(fmt.Sprintf("%s[%d]", table.name, age), "needs at least one rate")
			}
		}
	}
	return nil
}

func (r *RateTables) validateStratum(kind StratumKind, state *State) error {
	rates := r.Stratum(kind)
	prefix := kind.String()
	groups := len(state.AgeGroups)
	for _, table := range []struct {
		name   string
		values [][]float64
	}{
		{prefix + ".incubation_rates", rates.Incubation},
		{prefix + ".recovery_rates", rates.Recovery},
		{prefix + ".fatality_rates", rates.Fatality},
	} {
		if err := checkTable(table.name, table.values, groups); err != nil {
			return err
		}
	}
	for age := 0; age < groups; age++ {
		st := state.AgeGroups[age].Stratum(kind)
		inc := rates.Incubation[age]
		if len(inc) != len(st.Exposed) {
			return loadErr(fmt.Sprintf("%s.incubation_rates[%d]", prefix, age), "has %d days, exposed phase has %d", len(inc), len(st.Exposed))
		}
		if last := inc[len(inc)-1]; math.Abs(last-1) > loadSlack {
			return loadErr(fmt.Sprintf("%s.incubation_rates[%d]", prefix, age), "last exposed day must be 1, got %g", last)
		}
		rec, fat := rates.Recovery[age], rates.Fatality[age]
		if len(rec) != len(st.Infected) || len(fat) != len(st.Infected) {
			return loadErr(fmt.Sprintf("%s.recovery_rates[%d]", prefix, age), "recovery (%d) and fatality (%d) days must match the infected phase (%d)", len(rec), len(fat), len(st.Infected))
		}
		for day := range rec {
			total := rec[day] + fat[day]
			if total > 1+loadSlack {
				return loadErr(fmt.Sprintf("%s.recovery_rates[%d]", prefix, age), "recovery+fatality is %g on day %d", total, day)
			}
			if day == len(rec)-1 && math.Abs(total-1) > loadSlack {
				return loadErr(fmt.Sprintf("%s.recovery_rates[%d]", prefix, age), "recovery+fatality must be 1 on the last infected day, got %g", total)
			}
		}
	}
	return nil
}

func checkTable(name string, table [][]float64, groups int) error {
	if len(table) < groups {
		return loadErr(name, "covers %d age groups, need %d", len(table), groups)
	}
	for age, row := range table {
		if err := checkUnitSlice(fmt.Sprintf("%s[%d]", name, age), row); err != nil {
			return err
		}
	}
	return nil
}
