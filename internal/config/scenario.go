package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"geopandemic/internal/core"
	"geopandemic/pkg/domain"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// defaultCellKey names the cell whose state and config every other cell
	// inherits.
	defaultCellKey = "default"
	// defaultVicinityKey names the vicinity template in the default cell's
	// neighborhood, used for automatically inserted self relations.
	defaultVicinityKey = "default_cell_id"
)

// Scenario is a validated set of cells ready to simulate.
type Scenario struct {
	Name  string
	Cells []*core.Cell // ascending by ID
}

// IDs returns the cell ids in simulation order.
func (s *Scenario) IDs() []string {
	ids := make([]string, len(s.Cells))
	for i, c := range s.Cells {
		ids[i] = c.ID
	}
	return ids
}

// ScenarioOptions tunes scenario loading.
type ScenarioOptions struct {
	// AutoSelfNeighbor inserts the default vicinity template for cells that do
	// not list themselves in their neighborhood. Without it such cells fail to
	// load.
	AutoSelfNeighbor bool
	// InfectedFile optionally names a file of per-cell state overrides keyed
	// by cell id, applied after the default overlay.
	InfectedFile string
}

type scenarioFile struct {
	Cells         map[string]cellFile `json:"cells"`
	InfectedCells map[string]cellFile `json:"infected_cells"`
}

type cellFile struct {
	State        map[string]json.RawMessage `json:"state"`
	Config       map[string]json.RawMessage `json:"config"`
	Neighborhood map[string]json.RawMessage `json:"neighborhood"`
}

var (
	requiredStateKeys  = []string{"population", "age_group_proportions", "susceptible", "exposed", "infected", "recovered", "fatalities"}
	requiredConfigKeys = []string{"precision", "virulence_rates", "mobility_rates", "incubation_rates", "recovery_rates", "fatality_rates"}
)

// LoadScenarioFile reads a scenario from path. The scenario is named after the
// file without its extension.
func LoadScenarioFile(path string, opts ScenarioOptions) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer func() { _ = f.Close() }()
	sc, err := LoadScenario(f, opts)
	if err != nil {
		return nil, err
	}
	sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return sc, nil
}

// LoadScenario decodes and validates a scenario. Every cell overlays its state
// and config keys on those of the "default" cell; neighborhoods are not
// inherited. Failures are *domain.LoadError values naming the cell and field.
func LoadScenario(r io.Reader, opts ScenarioOptions) (*Scenario, error) {
	var file scenarioFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, &domain.LoadError{Field: "cells", Reason: err.Error()}
	}
	if opts.InfectedFile != "" {
		infected, err := readInfected(opts.InfectedFile)
		if err != nil {
			return nil, err
		}
		if file.InfectedCells == nil {
			file.InfectedCells = make(map[string]cellFile, len(infected))
		}
		for id, override := range infected {
			file.InfectedCells[id] = override
		}
	}
	return buildScenario(file, opts)
}

func readInfected(path string) (map[string]cellFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read infected cells: %w", err)
	}
	var infected map[string]cellFile
	if err := json.Unmarshal(b, &infected); err != nil {
		return nil, &domain.LoadError{Field: "infected_cells", Reason: err.Error()}
	}
	return infected, nil
}

func buildScenario(file scenarioFile, opts ScenarioOptions) (*Scenario, error) {
	def := file.Cells[defaultCellKey]
	known := make(map[string]bool, len(file.Cells))
	ids := make([]string, 0, len(file.Cells))
	for id := range file.Cells {
		if id == defaultCellKey {
			continue
		}
		known[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, &domain.LoadError{Field: "cells", Reason: "scenario defines no cells"}
	}
	sort.Strings(ids)
	for id := range file.InfectedCells {
		if !known[id] {
			return nil, &domain.LoadError{Cell: id, Field: "infected_cells", Reason: "unknown cell"}
		}
	}

	selfTemplate := domain.Vicinity{Correlation: 1}
	if raw, ok := def.Neighborhood[defaultVicinityKey]; ok {
		v, err := decodeVicinity(defaultCellKey, defaultVicinityKey, raw)
		if err != nil {
			return nil, err
		}
		selfTemplate = v
	}

	sc := &Scenario{Cells: make([]*core.Cell, 0, len(ids))}
	for _, id := range ids {
		spec := file.Cells[id]
		state := overlay(def.State, spec.State, file.InfectedCells[id].State)
		cfg := overlay(def.Config, spec.Config)
		neighborhood := make(map[string]domain.Vicinity, len(spec.Neighborhood)+1)
		for _, n := range sortedKeys(spec.Neighborhood) {
			raw := spec.Neighborhood[n]
			if !known[n] {
				return nil, &domain.LoadError{Cell: id, Field: "neighborhood." + n, Reason: "unknown cell"}
			}
			v, err := decodeVicinity(id, n, raw)
			if err != nil {
				return nil, err
			}
			neighborhood[n] = v
		}
		if _, ok := neighborhood[id]; !ok && opts.AutoSelfNeighbor {
			neighborhood[id] = selfTemplate
		}
		c, err := buildCell(id, state, cfg, neighborhood)
		if err != nil {
			return nil, err
		}
		sc.Cells = append(sc.Cells, c)
	}
	return sc, nil
}

func buildCell(id string, state, cfg map[string]json.RawMessage, neighborhood map[string]domain.Vicinity) (*core.Cell, error) {
	if err := requireKeys(id, "state", state, requiredStateKeys); err != nil {
		return nil, err
	}
	if err := requireKeys(id, "config", cfg, requiredConfigKeys); err != nil {
		return nil, err
	}
	var sj stateJSON
	if err := decodeSection(state, &sj); err != nil {
		return nil, sectionError(id, "state", err)
	}
	var cj configJSON
	if err := decodeSection(cfg, &cj); err != nil {
		return nil, sectionError(id, "config", err)
	}
	st, err := sj.toState(cj.Vaccinations, cj.Precision)
	if err != nil {
		return nil, domain.WithCell(err, id)
	}
	return core.NewCell(id, st, cj.toRates(), neighborhood)
}

func decodeVicinity(cell, neighbor string, raw json.RawMessage) (domain.Vicinity, error) {
	var v domain.Vicinity
	if err := json.Unmarshal(raw, &v); err != nil {
		field := "neighborhood." + neighbor
		var le *domain.LoadError
		if errors.As(err, &le) {
			return domain.Vicinity{}, &domain.LoadError{Cell: cell, Field: field + "." + le.Field, Reason: le.Reason}
		}
		return domain.Vicinity{}, &domain.LoadError{Cell: cell, Field: field, Reason: err.Error()}
	}
	return v, nil
}

func requireKeys(cell, section string, values map[string]json.RawMessage, keys []string) error {
	for _, k := range keys {
		if _, ok := values[k]; !ok {
			return &domain.LoadError{Cell: cell, Field: section + "." + k, Reason: "missing"}
		}
	}
	return nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func overlay(layers ...map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

func decodeSection(section map[string]json.RawMessage, target any) error {
	b, err := json.Marshal(section)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}

func sectionError(cell, section string, err error) error {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return &domain.LoadError{Cell: cell, Field: te.Field, Reason: fmt.Sprintf("expected %s, got JSON %s", te.Type, te.Value)}
	}
	return &domain.LoadError{Cell: cell, Field: section, Reason: err.Error()}
}
