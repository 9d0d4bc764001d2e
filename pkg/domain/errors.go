package domain

import (
	"errors"
	"fmt"
)

// ErrMissingSelfVicinity is returned when a cell does not list itself as a neighbor.
var ErrMissingSelfVicinity = errors.New("cell must list itself as a neighbor")

// ErrUnknownNeighbor is returned when a neighbor has no published state.
var ErrUnknownNeighbor = errors.New("neighbor state not published")

// ErrMissingRate is returned when a neighbor's infected phase reaches past the
// mobility or virulence tables of the cell being updated.
var ErrMissingRate = errors.New("no mobility or virulence rate for neighbor phase day")

// LoadError reports malformed or inconsistent configuration. Load errors are
// fatal and raised before the first simulated day.
type LoadError struct {
	Cell   string
	Field  string
	Reason string
}

func (e *LoadError) Error() string {
	if e.Cell != "" {
		return fmt.Sprintf("cell %s: %s: %s", e.Cell, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func loadErr(field, format string, args ...any) *LoadError {
	return &LoadError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// WithCell returns a copy of err naming the cell when err is a LoadError.
func WithCell(err error, cell string) error {
	var le *LoadError
	if errors.As(err, &le) && le.Cell == "" {
		cp := *le
		cp.Cell = cell
		return &cp
	}
	return err
}

// InvariantError reports a proportion that left [-ε, 1+ε] during a simulated
// day. The run cannot continue past it.
type InvariantError struct {
	Cell     string
	Day      int
	AgeGroup int
	Equation string
	Value    float64
}

func (e *InvariantError) Error() string {
	side := "bigger than one"
	if e.Value < 0 {
		side = "less than zero"
	}
	return fmt.Sprintf("cell %s day %d age group %d: %s = %g is %s", e.Cell, e.Day, e.AgeGroup, e.Equation, e.Value, side)
}
