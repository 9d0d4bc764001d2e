package core

import (
	"context"
	"fmt"
	"geopandemic/pkg/domain"
	"math"
)

// NewMassConservationRule returns the blocking rule that rejects a day when an
// age group no longer totals 1 within the state's precision.
func NewMassConservationRule() domain.Rule {
	return massConservationRule{}
}

type massConservationRule struct{}

func (massConservationRule) Name() string { return "mass_conservation" }

func (massConservationRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, id := range view.CellIDs() {
		state, ok := view.State(id)
		if !ok {
			continue
		}
		for age := range state.AgeGroups {
			total := state.AgeGroupTotal(age)
			if math.Abs(total-1) <= state.Tolerance() {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "mass_conservation",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("age group %d totals %g", age, total),
				CellID:   id,
				Day:      view.Day(),
			})
		}
	}
	return res, nil
}
