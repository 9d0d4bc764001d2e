package core

import (
	"context"
	"fmt"
	"geopandemic/pkg/domain"
)

// NewFatalitiesMonotonicRule returns the blocking rule asserting cumulative
// fatalities never decrease from one published day to the next.
func NewFatalitiesMonotonicRule() domain.Rule {
	return fatalitiesMonotonicRule{}
}

type fatalitiesMonotonicRule struct{}

func (fatalitiesMonotonicRule) Name() string { return "fatalities_monotonic" }

func (fatalitiesMonotonicRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, id := range view.CellIDs() {
		current, ok := view.State(id)
		if !ok {
			continue
		}
		previous, ok := view.Previous(id)
		if !ok {
			continue
		}
		for age := range current.AgeGroups {
			if age >= len(previous.AgeGroups) {
				break
			}
			before, after := previous.AgeGroups[age].Fatalities, current.AgeGroups[age].Fatalities
			if after >= before {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "fatalities_monotonic",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("age group %d fatalities fell from %g to %g", age, before, after),
				CellID:   id,
				Day:      view.Day(),
			})
		}
	}
	return res, nil
}
