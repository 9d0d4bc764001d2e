package core

import "geopandemic/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in day checks.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewMassConservationRule())
	engine.Register(NewFatalitiesMonotonicRule())
	engine.Register(NewHospitalCapacityRule())
	return engine
}
