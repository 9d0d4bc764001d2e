package config

import (
	"fmt"
	"geopandemic/pkg/domain"
)

// stateJSON is the "state" section of a scenario cell. Phase tables are
// indexed [age group][phase day].
type stateJSON struct {
	Population          float64     `json:"population"`
	AgeGroupProportions []float64   `json:"age_group_proportions"`
	Susceptible         [][]float64 `json:"susceptible"`
	VaccinatedD1        [][]float64 `json:"vaccinatedD1"`
	VaccinatedD2        [][]float64 `json:"vaccinatedD2"`
	Exposed             [][]float64 `json:"exposed"`
	ExposedD1           [][]float64 `json:"exposedD1"`
	ExposedD2           [][]float64 `json:"exposedD2"`
	Infected            [][]float64 `json:"infected"`
	InfectedD1          [][]float64 `json:"infectedD1"`
	InfectedD2          [][]float64 `json:"infectedD2"`
	Recovered           [][]float64 `json:"recovered"`
	RecoveredD1         [][]float64 `json:"recoveredD1"`
	RecoveredD2         [][]float64 `json:"recoveredD2"`
	Fatalities          []float64   `json:"fatalities"`
	Disobedient         float64     `json:"disobedient"`
	HospitalCapacity    float64     `json:"hospital_capacity"`
	FatalityModifier    float64     `json:"fatality_modifier"`
	ImmunityD1          [][]float64 `json:"immunityD1"`
	ImmunityD2          [][]float64 `json:"immunityD2"`
	MinIntervalDoses    int         `json:"min_interval_between_doses"`
	MinIntervalRecovery int         `json:"min_interval_between_recovery_and_vaccine"`
}

// configJSON is the "config" section of a scenario cell.
type configJSON struct {
	Precision             float64     `json:"precision"`
	VirulenceRates        [][]float64 `json:"virulence_rates"`
	MobilityRates         [][]float64 `json:"mobility_rates"`
	IncubationRates       [][]float64 `json:"incubation_rates"`
	IncubationRatesDose1  [][]float64 `json:"incubation_rates_dose1"`
	IncubationRatesDose2  [][]float64 `json:"incubation_rates_dose2"`
	RecoveryRates         [][]float64 `json:"recovery_rates"`
	RecoveryRatesDose1    [][]float64 `json:"recovery_rates_dose1"`
	RecoveryRatesDose2    [][]float64 `json:"recovery_rates_dose2"`
	FatalityRates         [][]float64 `json:"fatality_rates"`
	FatalityRatesDose1    [][]float64 `json:"fatality_rates_dose1"`
	FatalityRatesDose2    [][]float64 `json:"fatality_rates_dose2"`
	VaccinationRatesDose1 [][]float64 `json:"vaccination_rates_dose1"`
	VaccinationRatesDose2 [][]float64 `json:"vaccination_rates_dose2"`
	ReSusceptibility      bool        `json:"Re-Susceptibility"`
	Vaccinations          bool        `json:"Vaccinations"`
}

func (cj configJSON) toRates() *domain.RateTables {
	return &domain.RateTables{
		PrecisionDivider: cj.Precision,
		ReSusceptibility: cj.ReSusceptibility,
		Vaccination:      cj.Vaccinations,
		Virulence:        cj.VirulenceRates,
		Mobility:         cj.MobilityRates,
		Unvaccinated: domain.StratumRates{
			Incubation: cj.IncubationRates,
			Recovery:   cj.RecoveryRates,
			Fatality:   cj.FatalityRates,
		},
		Dose1: domain.StratumRates{
			Incubation: cj.IncubationRatesDose1,
			Recovery:   cj.RecoveryRatesDose1,
			Fatality:   cj.FatalityRatesDose1,
		},
		Dose2: domain.StratumRates{
			Incubation: cj.IncubationRatesDose2,
			Recovery:   cj.RecoveryRatesDose2,
			Fatality:   cj.FatalityRatesDose2,
		},
		VaccinationDose1: cj.VaccinationRatesDose1,
		VaccinationDose2: cj.VaccinationRatesDose2,
	}
}

// toState lays the per-table rows out per age group. Dose tables are only
// required when vaccination is enabled; when present otherwise they are kept
// so that validation can reject any mass they hold.
func (sj stateJSON) toState(vaccination bool, precision float64) (*domain.State, error) {
	groups := len(sj.AgeGroupProportions)
	s := &domain.State{
		Population:                   sj.Population,
		AgeGroupProportions:          sj.AgeGroupProportions,
		AgeGroups:                    make([]domain.AgeGroup, groups),
		Disobedient:                  sj.Disobedient,
		HospitalCapacity:             sj.HospitalCapacity,
		FatalityModifier:             sj.FatalityModifier,
		MinIntervalDoses:             sj.MinIntervalDoses,
		MinIntervalRecoveryToVaccine: sj.MinIntervalRecovery,
		Vaccination:                  vaccination,
		PrecisionDivider:             precision,
	}
	if vaccination {
		s.ImmunityDose1 = sj.ImmunityD1
		s.ImmunityDose2 = sj.ImmunityD2
	}
	if len(sj.Fatalities) < groups {
		return nil, &domain.LoadError{Field: "fatalities", Reason: coverage(len(sj.Fatalities), groups)}
	}
	strata := []struct {
		kind     domain.StratumKind
		required bool
		tables   [4]namedTable
	}{
		{domain.Unvaccinated, true, [4]namedTable{
			{"susceptible", sj.Susceptible}, {"exposed", sj.Exposed}, {"infected", sj.Infected}, {"recovered", sj.Recovered},
		}},
		{domain.Dose1, vaccination, [4]namedTable{
			{"vaccinatedD1", sj.VaccinatedD1}, {"exposedD1", sj.ExposedD1}, {"infectedD1", sj.InfectedD1}, {"recoveredD1", sj.RecoveredD1},
		}},
		{domain.Dose2, vaccination, [4]namedTable{
			{"vaccinatedD2", sj.VaccinatedD2}, {"exposedD2", sj.ExposedD2}, {"infectedD2", sj.InfectedD2}, {"recoveredD2", sj.RecoveredD2},
		}},
	}
	for age := range s.AgeGroups {
		g := &s.AgeGroups[age]
		g.Fatalities = sj.Fatalities[age]
		for _, st := range strata {
			var rows [4][]float64
			for i, t := range st.tables {
				row, err := t.row(age, groups, st.required)
				if err != nil {
					return nil, err
				}
				rows[i] = row
			}
			*g.Stratum(st.kind) = domain.Stratum{Susceptible: rows[0], Exposed: rows[1], Infected: rows[2], Recovered: rows[3]}
		}
	}
	return s, nil
}

type namedTable struct {
	name   string
	values [][]float64
}

// row returns a copy of one age group's phase array. Missing optional tables
// yield nil.
func (t namedTable) row(age, groups int, required bool) ([]float64, error) {
	if len(t.values) == 0 && !required {
		return nil, nil
	}
	if len(t.values) < groups {
		return nil, &domain.LoadError{Field: t.name, Reason: coverage(len(t.values), groups)}
	}
	out := make([]float64, len(t.values[age]))
	copy(out, t.values[age])
	return out, nil
}

func coverage(have, want int) string {
	return fmt.Sprintf("covers %d age groups, need %d", have, want)
}
