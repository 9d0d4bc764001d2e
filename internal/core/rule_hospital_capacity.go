package core

import (
	"context"
	"fmt"
	"geopandemic/pkg/domain"
)

// NewHospitalCapacityRule returns a warning rule reporting cells whose
// infections exceed their hospital capacity. The next day runs with the
// fatality modifier applied.
func NewHospitalCapacityRule() domain.Rule {
	return hospitalCapacityRule{}
}

type hospitalCapacityRule struct{}

func (hospitalCapacityRule) Name() string { return "hospital_capacity" }

func (hospitalCapacityRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, id := range view.CellIDs() {
		state, ok := view.State(id)
		if !ok {
			continue
		}
		infected := state.TotalInfected(domain.AllAgeGroups)
		if infected <= state.HospitalCapacity {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "hospital_capacity",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("infected %.4f over capacity %.4f", infected, state.HospitalCapacity),
			CellID:   id,
			Day:      view.Day(),
		})
	}
	return res, nil
}
