package core

import (
	"errors"
	"fmt"
	"geopandemic/pkg/domain"
	"sort"
)

// OutputDelay is the number of simulated days before a computed state becomes
// visible to neighbors.
const OutputDelay = 1

// StateView resolves the published state of a cell. Implementations must not
// change the returned state while a day is being computed.
type StateView interface {
	Lookup(id string) (*domain.State, bool)
}

// StateMap is a StateView over a plain map.
type StateMap map[string]*domain.State

// Lookup implements StateView.
func (m StateMap) Lookup(id string) (*domain.State, bool) {
	s, ok := m[id]
	return s, ok
}

// Cell is one geographic unit of the simulation. It owns its state, its rate
// tables, the vicinity of every neighbor (itself included) and the hysteresis
// of each relation.
type Cell struct {
	ID         string
	State      *domain.State
	Rates      *domain.RateTables
	Vicinities map[string]domain.Vicinity

	neighbors  []string
	hysteresis map[string]*domain.Hysteresis
}

// NewCell validates the configuration of a cell and prepares its per-relation
// hysteresis state.
func NewCell(id string, state *domain.State, rates *domain.RateTables, vicinities map[string]domain.Vicinity) (*Cell, error) {
	if id == "" {
		return nil, &domain.LoadError{Field: "id", Reason: "cell id is required"}
	}
	if state == nil || rates == nil {
		return nil, &domain.LoadError{Cell: id, Field: "state", Reason: "state and rate tables are required"}
	}
	if err := state.Validate(); err != nil {
		return nil, domain.WithCell(err, id)
	}
	if err := rates.Validate(state); err != nil {
		return nil, domain.WithCell(err, id)
	}
	if _, ok := vicinities[id]; !ok {
		return nil, fmt.Errorf("cell %s: %w", id, domain.ErrMissingSelfVicinity)
	}
	c := &Cell{
		ID:         id,
		State:      state,
		Rates:      rates,
		Vicinities: make(map[string]domain.Vicinity, len(vicinities)),
		hysteresis: make(map[string]*domain.Hysteresis, len(vicinities)),
	}
	for neighbor, v := range vicinities {
		if err := v.Validate(); err != nil {
			var le *domain.LoadError
			if errors.As(err, &le) {
				return nil, &domain.LoadError{Cell: id, Field: "neighborhood." + neighbor + "." + le.Field, Reason: le.Reason}
			}
			return nil, fmt.Errorf("cell %s: neighbor %s: %w", id, neighbor, err)
		}
		c.Vicinities[neighbor] = v
		c.hysteresis[neighbor] = &domain.Hysteresis{}
		c.neighbors = append(c.neighbors, neighbor)
	}
	sort.Strings(c.neighbors)
	return c, nil
}

// Neighbors returns the ids of every related cell in ascending order,
// including the cell itself.
func (c *Cell) Neighbors() []string {
	out := make([]string, len(c.neighbors))
	copy(out, c.neighbors)
	return out
}

// Hysteresis returns a copy of the latched regime of a relation.
func (c *Cell) Hysteresis(neighbor string) (domain.Hysteresis, bool) {
	h, ok := c.hysteresis[neighbor]
	if !ok {
		return domain.Hysteresis{}, false
	}
	return *h, true
}

// Step computes the state of the next simulated day from the cell's own state
// and the published states in view. Only the cell's hysteresis is mutated; the
// caller decides when the result replaces State.
func (c *Cell) Step(view StateView, day int) (*domain.State, error) {
	return Update(c, view, day)
}
