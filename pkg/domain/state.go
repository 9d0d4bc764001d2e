package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// AllAgeGroups selects the population-weighted aggregate across every age group.
const AllAgeGroups = -1

// loadSlack absorbs float noise when load-time totals are compared with 1.
const loadSlack = 1e-9

// StratumKind identifies a population stratum.
type StratumKind int

// Population strata processed by the cell update.
const (
	Unvaccinated StratumKind = iota
	Dose1
	Dose2
)

func (k StratumKind) String() string {
	switch k {
	case Unvaccinated:
		return "unvaccinated"
	case Dose1:
		return "dose1"
	case Dose2:
		return "dose2"
	default:
		return fmt.Sprintf("stratum(%d)", int(k))
	}
}

// Stratum holds the phase arrays of one stratum for one age group. Index 0 is
// the first phase day.
type Stratum struct {
	Susceptible []float64 `json:"susceptible"`
	Exposed     []float64 `json:"exposed"`
	Infected    []float64 `json:"infected"`
	Recovered   []float64 `json:"recovered"`
}

// Total sums every compartment of the stratum.
func (s Stratum) Total() float64 {
	return sum(s.Susceptible) + sum(s.Exposed) + sum(s.Infected) + sum(s.Recovered)
}

func (s Stratum) clone() Stratum {
	return Stratum{
		Susceptible: cloneFloats(s.Susceptible),
		Exposed:     cloneFloats(s.Exposed),
		Infected:    cloneFloats(s.Infected),
		Recovered:   cloneFloats(s.Recovered),
	}
}

// AgeGroup carries the three strata of an age band plus its cumulative fatalities.
type AgeGroup struct {
	Unvaccinated Stratum `json:"unvaccinated"`
	Dose1        Stratum `json:"dose1"`
	Dose2        Stratum `json:"dose2"`
	Fatalities   float64 `json:"fatalities"`
}

// Stratum returns a pointer to the requested stratum.
func (g *AgeGroup) Stratum(kind StratumKind) *Stratum {
	switch kind {
	case Dose1:
		return &g.Dose1
	case Dose2:
		return &g.Dose2
	default:
		return &g.Unvaccinated
	}
}

// Total sums every stratum and the fatalities of the age group.
func (g *AgeGroup) Total() float64 {
	return g.Unvaccinated.Total() + g.Dose1.Total() + g.Dose2.Total() + g.Fatalities
}

// State is the epidemic state of one cell. Every proportion is relative to
// its own age group.
type State struct {
	Population                   float64     `json:"population"`
	AgeGroupProportions          []float64   `json:"age_group_proportions"`
	AgeGroups                    []AgeGroup  `json:"age_groups"`
	Disobedient                  float64     `json:"disobedient"`
	HospitalCapacity             float64     `json:"hospital_capacity"`
	FatalityModifier             float64     `json:"fatality_modifier"`
	ImmunityDose1                [][]float64 `json:"immunity_dose1,omitempty"`
	ImmunityDose2                [][]float64 `json:"immunity_dose2,omitempty"`
	MinIntervalDoses             int         `json:"min_interval_doses"`
	MinIntervalRecoveryToVaccine int         `json:"min_interval_recovery_to_vaccine"`
	Vaccination                  bool        `json:"vaccination"`
	PrecisionDivider             float64     `json:"precision_divider"`
}

// Strata lists the strata that take part in the dynamics.
func (s *State) Strata() []StratumKind {
	if s.Vaccination {
		return []StratumKind{Unvaccinated, Dose1, Dose2}
	}
	return []StratumKind{Unvaccinated}
}

// Tolerance is the smallest representable increment, 1/divider.
func (s *State) Tolerance() float64 {
	if s.PrecisionDivider <= 0 {
		return 0
	}
	return 1 / s.PrecisionDivider
}

// Round maps x to the nearest multiple of 1/divider.
func (s *State) Round(x float64) float64 {
	return RoundTo(x, s.PrecisionDivider)
}

// RoundTo maps x to the nearest multiple of 1/divider. A non-positive divider
// leaves x unchanged.
func RoundTo(x, divider float64) float64 {
	if divider <= 0 {
		return x
	}
	return math.Round(x*divider) / divider
}

// Immunity returns the immunity table of a vaccinated stratum for an age group.
// Unvaccinated people have none.
func (s *State) Immunity(kind StratumKind, age int) []float64 {
	var table [][]float64
	switch kind {
	case Dose1:
		table = s.ImmunityDose1
	case Dose2:
		table = s.ImmunityDose2
	default:
		return nil
	}
	if age < 0 || age >= len(table) {
		return nil
	}
	return table[age]
}

// aggregate applies fn to one age group, or weights it by population share
// across all groups when age is AllAgeGroups.
func (s *State) aggregate(age int, fn func(g *AgeGroup) float64) float64 {
	if age != AllAgeGroups {
		if age < 0 || age >= len(s.AgeGroups) {
			return 0
		}
		return fn(&s.AgeGroups[age])
	}
	total := 0.0
	for i := range s.AgeGroups {
		total += fn(&s.AgeGroups[i]) * s.share(i)
	}
	return total
}

func (s *State) share(age int) float64 {
	if age < len(s.AgeGroupProportions) {
		return s.AgeGroupProportions[age]
	}
	return 0
}

// strataSum adds pick(stratum) over the active strata of an age group.
func (s *State) strataSum(g *AgeGroup, pick func(*Stratum) []float64) float64 {
	total := sum(pick(&g.Unvaccinated))
	if s.Vaccination {
		total += sum(pick(&g.Dose1)) + sum(pick(&g.Dose2))
	}
	return total
}

// TotalSusceptible sums susceptible proportions. When unvaccinatedOnly is false
// and vaccination is enabled, the dose1 and dose2 susceptible phases are added.
func (s *State) TotalSusceptible(age int, unvaccinatedOnly bool) float64 {
	return s.aggregate(age, func(g *AgeGroup) float64 {
		total := sum(g.Unvaccinated.Susceptible)
		if s.Vaccination && !unvaccinatedOnly {
			total += sum(g.Dose1.Susceptible) + sum(g.Dose2.Susceptible)
		}
		return total
	})
}

// TotalDose1 sums the dose1 susceptible phase.
func (s *State) TotalDose1(age int) float64 {
	if !s.Vaccination {
		return 0
	}
	return s.aggregate(age, func(g *AgeGroup) float64 { return sum(g.Dose1.Susceptible) })
}

// TotalDose2 sums the dose2 susceptible phase.
func (s *State) TotalDose2(age int) float64 {
	if !s.Vaccination {
		return 0
	}
	return s.aggregate(age, func(g *AgeGroup) float64 { return sum(g.Dose2.Susceptible) })
}

// TotalExposed sums exposed proportions over every active stratum.
func (s *State) TotalExposed(age int) float64 {
	return s.aggregate(age, func(g *AgeGroup) float64 {
		return s.strataSum(g, func(st *Stratum) []float64 { return st.Exposed })
	})
}

// TotalInfected sums infected proportions over every active stratum.
func (s *State) TotalInfected(age int) float64 {
	return s.aggregate(age, func(g *AgeGroup) float64 {
		return s.strataSum(g, func(st *Stratum) []float64 { return st.Infected })
	})
}

// TotalRecovered sums recovered proportions over every active stratum.
func (s *State) TotalRecovered(age int) float64 {
	return s.aggregate(age, func(g *AgeGroup) float64 {
		return s.strataSum(g, func(st *Stratum) []float64 { return st.Recovered })
	})
}

// TotalFatalities returns the cumulative fatalities.
func (s *State) TotalFatalities(age int) float64 {
	return s.aggregate(age, func(g *AgeGroup) float64 { return g.Fatalities })
}

// NewExposed sums the first exposed day over every active stratum.
func (s *State) NewExposed(age int) float64 {
	return s.aggregate(age, func(g *AgeGroup) float64 {
		return s.strataSum(g, func(st *Stratum) []float64 { return head(st.Exposed) })
	})
}

// NewInfected sums the first infected day over every active stratum.
func (s *State) NewInfected(age int) float64 {
	return s.aggregate(age, func(g *AgeGroup) float64 {
		return s.strataSum(g, func(st *Stratum) []float64 { return head(st.Infected) })
	})
}

// NewRecovered sums the first recovered day over every active stratum.
func (s *State) NewRecovered(age int) float64 {
	return s.aggregate(age, func(g *AgeGroup) float64 {
		return s.strataSum(g, func(st *Stratum) []float64 { return head(st.Recovered) })
	})
}

// AgeGroupTotal returns the unweighted mass of one age group. A consistent
// state keeps it at 1 within Tolerance.
func (s *State) AgeGroupTotal(age int) float64 {
	if age < 0 || age >= len(s.AgeGroups) {
		return 0
	}
	return s.AgeGroups[age].Total()
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cp := *s
	cp.AgeGroupProportions = cloneFloats(s.AgeGroupProportions)
	cp.AgeGroups = make([]AgeGroup, len(s.AgeGroups))
	for i, g := range s.AgeGroups {
		cp.AgeGroups[i] = AgeGroup{
			Unvaccinated: g.Unvaccinated.clone(),
			Dose1:        g.Dose1.clone(),
			Dose2:        g.Dose2.clone(),
			Fatalities:   g.Fatalities,
		}
	}
	cp.ImmunityDose1 = cloneTable(s.ImmunityDose1)
	cp.ImmunityDose2 = cloneTable(s.ImmunityDose2)
	return &cp
}

// Validate checks the load-time invariants of the state.
func (s *State) Validate() error {
	if s.PrecisionDivider <= 0 {
		return loadErr("precision", "must be positive, got %g", s.PrecisionDivider)
	}
	if s.Population < 0 {
		return loadErr("population", "must not be negative, got %g", s.Population)
	}
	if len(s.AgeGroupProportions) == 0 {
		return loadErr("age_group_proportions", "at least one age group is required")
	}
	if err := checkUnitSlice("age_group_proportions", s.AgeGroupProportions); err != nil {
		return err
	}
	if total := sum(s.AgeGroupProportions); math.Abs(total-1) > loadSlack {
		return loadErr("age_group_proportions", "must sum to 1, got %g", total)
	}
	if len(s.AgeGroups) != len(s.AgeGroupProportions) {
		return loadErr("age_groups", "have %d age groups, proportions list %d", len(s.AgeGroups), len(s.AgeGroupProportions))
	}
	if s.Disobedient < 0 || s.Disobedient > 1 {
		return loadErr("disobedient", "must lie in [0,1], got %g", s.Disobedient)
	}
	if s.HospitalCapacity < 0 || s.HospitalCapacity > 1 {
		return loadErr("hospital_capacity", "must lie in [0,1], got %g", s.HospitalCapacity)
	}
	if s.FatalityModifier < 0 {
		return loadErr("fatality_modifier", "must not be negative, got %g", s.FatalityModifier)
	}
	if s.MinIntervalDoses < 0 {
		return loadErr("min_interval_between_doses", "must not be negative, got %d", s.MinIntervalDoses)
	}
	if s.MinIntervalRecoveryToVaccine < 0 {
		return loadErr("min_interval_between_recovery_and_vaccine", "must not be negative, got %d", s.MinIntervalRecoveryToVaccine)
	}
	for age := range s.AgeGroups {
		if err := s.validateAgeGroup(age); err != nil {
			return err
		}
	}
	if s.Vaccination {
		for i, table := range [][][]float64{s.ImmunityDose1, s.ImmunityDose2} {
			name := fmt.Sprintf("immunityD%d", i+1)
			if len(table) < len(s.AgeGroups) {
				return loadErr(name, "covers %d age groups, need %d", len(table), len(s.AgeGroups))
			}
			for age, row := range table {
				if err := checkUnitSlice(fmt.Sprintf("%s[%d]", name, age), row); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *State) validateAgeGroup(age int) error {
	g := &s.AgeGroups[age]
	ref := &s.AgeGroups[0]
	for _, kind := range []StratumKind{Unvaccinated, Dose1, Dose2} {
		st := g.Stratum(kind)
		for _, phase := range phaseNames {
			field := fmt.Sprintf("%s.%s[%d]", kind, phase, age)
			if err := checkUnitSlice(field, phaseOf(st, phase)); err != nil {
				return err
			}
		}
		if kind != Unvaccinated && !s.Vaccination {
			if total := st.Total(); total != 0 {
				return loadErr(kind.String(), "age group %d holds %g while vaccination is disabled", age, total)
			}
			continue
		}
		for _, phase := range phaseNames {
			field := fmt.Sprintf("%s.%s[%d]", kind, phase, age)
			values := phaseOf(st, phase)
			if len(values) == 0 {
				return loadErr(field, "needs at least one phase day")
			}
			if want := len(phaseOf(ref.Stratum(kind), phase)); len(values) != want {
				return loadErr(field, "has %d phase days, age group 0 has %d", len(values), want)
			}
		}
	}
	if n := len(g.Unvaccinated.Susceptible); n != 1 {
		return loadErr(fmt.Sprintf("susceptible[%d]", age), "must have exactly one phase day, got %d", n)
	}
	if s.Vaccination {
		if n := len(g.Dose2.Susceptible); n < 2 {
			return loadErr(fmt.Sprintf("vaccinatedD2[%d]", age), "needs at least two phase days, got %d", n)
		}
		if len(g.Dose1.Recovered) < len(g.Dose1.Susceptible) {
			return loadErr(fmt.Sprintf("recoveredD1[%d]", age), "phase (%d days) is shorter than vaccinatedD1 (%d days)", len(g.Dose1.Recovered), len(g.Dose1.Susceptible))
		}
	}
	if g.Fatalities < 0 || g.Fatalities > 1 {
		return loadErr(fmt.Sprintf("fatalities[%d]", age), "must lie in [0,1], got %g", g.Fatalities)
	}
	if total := g.Total(); math.Abs(total-1) > loadSlack {
		return loadErr(fmt.Sprintf("age_group[%d]", age), "compartments sum to %g, want 1", total)
	}
	return nil
}

var phaseNames = []string{"susceptible", "exposed", "infected", "recovered"}

func phaseOf(st *Stratum, phase string) []float64 {
	switch phase {
	case "susceptible":
		return st.Susceptible
	case "exposed":
		return st.Exposed
	case "infected":
		return st.Infected
	default:
		return st.Recovered
	}
}

func checkUnitSlice(field string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return loadErr(field, "value %g at index %d outside [0,1]", v, i)
		}
	}
	return nil
}

func sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

func head(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	return values[:1]
}

func cloneFloats(values []float64) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out
}

func cloneTable(table [][]float64) [][]float64 {
	if table == nil {
		return nil
	}
	out := make([][]float64, len(table))
	for i, row := range table {
		out[i] = cloneFloats(row)
	}
	return out
}
