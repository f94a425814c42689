// Package registry loads gage metadata from the YAML gage file and exposes
// lookup and grouping over it.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/river-gage-etl/internal/domain"
)

// gageRecord is the YAML shape of one registry entry.
type gageRecord struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"`
	River    string `yaml:"river"`
	Location string `yaml:"location"`
	Region   string `yaml:"region"`
	Units    string `yaml:"units"`
	Menu     string `yaml:"menu"`

	Recipe string `yaml:"recipe"`
	Inputs []struct {
		ID   string `yaml:"id"`
		Type string `yaml:"type"`
	} `yaml:"inputs"`
}

type gageFile struct {
	Gages []gageRecord `yaml:"gages"`
}

// Registry is the loaded gage configuration. Gages keep file order; the
// dashboard and the batch both rely on it.
type Registry struct {
	gages []domain.Gage
	byKey map[domain.GageRef]domain.Gage
}

// Load reads and validates the gage file. Unknown source types or units,
// malformed virtual entries, and duplicate (id, type) pairs are load errors.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gage file %s: %w", path, err)
	}

	var file gageFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse gage file %s: %w", path, err)
	}
	if len(file.Gages) == 0 {
		return nil, fmt.Errorf("gage file %s contains no gages", path)
	}

	r := &Registry{byKey: make(map[domain.GageRef]domain.Gage, len(file.Gages))}
	for i, rec := range file.Gages {
		gage, err := buildGage(rec)
		if err != nil {
			return nil, fmt.Errorf("gage file %s entry %d: %w", path, i, err)
		}

		key := domain.GageRef{ID: gage.ID, Type: gage.Type}
		if _, dup := r.byKey[key]; dup {
			return nil, fmt.Errorf("gage file %s entry %d: duplicate gage (%s, %s)", path, i, gage.ID, gage.Type)
		}
		r.byKey[key] = gage
		r.gages = append(r.gages, gage)
	}

	return r, nil
}

func buildGage(rec gageRecord) (domain.Gage, error) {
	if rec.ID == "" {
		return domain.Gage{}, fmt.Errorf("missing gage id")
	}

	sourceType, err := domain.ParseSourceType(rec.Type)
	if err != nil {
		return domain.Gage{}, err
	}
	units, err := domain.ParseUnits(rec.Units)
	if err != nil {
		return domain.Gage{}, err
	}

	gage := domain.Gage{
		ID:       rec.ID,
		Type:     sourceType,
		River:    rec.River,
		Location: rec.Location,
		Region:   rec.Region,
		Units:    units,
		Menu:     rec.Menu,
	}

	if sourceType == domain.SourceVirtual {
		recipe, err := domain.ParseRecipe(rec.Recipe)
		if err != nil {
			return domain.Gage{}, err
		}
		if len(rec.Inputs) != 2 {
			return domain.Gage{}, fmt.Errorf("virtual gage %s needs exactly 2 inputs, got %d", rec.ID, len(rec.Inputs))
		}
		gage.Recipe = recipe
		for _, in := range rec.Inputs {
			inType, err := domain.ParseSourceType(in.Type)
			if err != nil {
				return domain.Gage{}, fmt.Errorf("virtual gage %s: %w", rec.ID, err)
			}
			gage.Inputs = append(gage.Inputs, domain.GageRef{ID: in.ID, Type: inType})
		}
	} else if rec.Recipe != "" || len(rec.Inputs) > 0 {
		return domain.Gage{}, fmt.Errorf("gage %s: recipe/inputs are only valid for VIRTUAL gages", rec.ID)
	}

	return gage, nil
}

// All returns every gage in file order.
func (r *Registry) All() []domain.Gage {
	out := make([]domain.Gage, len(r.gages))
	copy(out, r.gages)
	return out
}

// Lookup finds a gage by its (id, type) key.
func (r *Registry) Lookup(id string, sourceType domain.SourceType) (domain.Gage, error) {
	gage, ok := r.byKey[domain.GageRef{ID: id, Type: sourceType}]
	if !ok {
		return domain.Gage{}, fmt.Errorf("lookup (%s, %s): %w", id, sourceType, domain.ErrGageNotFound)
	}
	return gage, nil
}

// ByRegion returns gages in the given region, in file order.
func (r *Registry) ByRegion(region string) []domain.Gage {
	var out []domain.Gage
	for _, g := range r.gages {
		if g.Region == region {
			out = append(out, g)
		}
	}
	return out
}

// Regions returns the distinct regions in first-seen order.
func (r *Registry) Regions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range r.gages {
		if g.Region != "" && !seen[g.Region] {
			seen[g.Region] = true
			out = append(out, g.Region)
		}
	}
	return out
}

// RiverGroup is one river with its gages, used for dashboard grouping.
type RiverGroup struct {
	River string
	Gages []domain.Gage
}

// Rivers groups gages by river, preserving first-seen river order and gage
// order within each river.
func Rivers(gages []domain.Gage) []RiverGroup {
	index := make(map[string]int)
	var groups []RiverGroup
	for _, g := range gages {
		i, ok := index[g.River]
		if !ok {
			i = len(groups)
			index[g.River] = i
			groups = append(groups, RiverGroup{River: g.River})
		}
		groups[i].Gages = append(groups[i].Gages, g)
	}
	return groups
}
