package engine

import (
	"geopandemic/internal/core"
	"geopandemic/pkg/domain"
	"sort"
)

// dayView exposes a candidate day and the published day before it to rules.
type dayView struct {
	day      int
	cells    []*core.Cell
	current  core.StateMap
	previous core.StateMap
}

func (v *dayView) Day() int { return v.day }

func (v *dayView) CellIDs() []string { return sortedIDs(v.cells) }

func (v *dayView) State(id string) (*domain.State, bool) {
	s, ok := v.current[id]
	return s, ok
}

func (v *dayView) Previous(id string) (*domain.State, bool) {
	s, ok := v.previous[id]
	return s, ok
}

func sortedIDs(cells []*core.Cell) []string {
	ids := make([]string, len(cells))
	for i, c := range cells {
		ids[i] = c.ID
	}
	sort.Strings(ids)
	return ids
}
