package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcin-laskowski/Feature-Engineering/entityset"
	"github.com/marcin-laskowski/Feature-Engineering/helpers"
	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// CLI CONFIG — YAML description of an entity set and a synthesis run
// ============================================================================

// EntityConfig describes one CSV-backed entity.
type EntityConfig struct {
	Name          string            `yaml:"name"`
	Path          string            `yaml:"path"`
	Index         string            `yaml:"index"`
	TimeIndex     string            `yaml:"time_index"`
	MakeIndex     string            `yaml:"make_index"`
	VariableTypes map[string]string `yaml:"variable_types"`
}

// RelationshipConfig links a parent index to a child foreign key,
// both written as "entity.column".
type RelationshipConfig struct {
	Parent string `yaml:"parent"`
	Child  string `yaml:"child"`
}

// Config is the full synthesis run description.
type Config struct {
	Name            string               `yaml:"name"`
	Target          string               `yaml:"target"`
	MaxDepth        int                  `yaml:"max_depth"`
	MaxFeatures     int                  `yaml:"max_features"`
	Workers         int                  `yaml:"workers"`
	AggPrimitives   []string             `yaml:"agg_primitives"`
	TransPrimitives []string             `yaml:"trans_primitives"`
	Entities        []EntityConfig       `yaml:"entities"`
	Relationships   []RelationshipConfig `yaml:"relationships"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for structural errors before any CSV is read.
func (c *Config) Validate() error {
	if len(c.Entities) == 0 {
		return fmt.Errorf("config needs at least one entity")
	}
	seen := map[string]bool{}
	for i, e := range c.Entities {
		if e.Name == "" {
			return fmt.Errorf("entity %d has no name", i)
		}
		if e.Path == "" {
			return fmt.Errorf("entity %q has no path", e.Name)
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate entity %q", e.Name)
		}
		seen[e.Name] = true
		for col, typ := range e.VariableTypes {
			if _, err := schema.ParseVarType(typ); err != nil {
				return fmt.Errorf("entity %q, column %q: %w", e.Name, col, err)
			}
		}
	}
	for _, r := range c.Relationships {
		pe, _, err := splitRef(r.Parent)
		if err != nil {
			return fmt.Errorf("relationship parent: %w", err)
		}
		ce, _, err := splitRef(r.Child)
		if err != nil {
			return fmt.Errorf("relationship child: %w", err)
		}
		if !seen[pe] {
			return fmt.Errorf("relationship references unknown entity %q", pe)
		}
		if !seen[ce] {
			return fmt.Errorf("relationship references unknown entity %q", ce)
		}
	}
	if c.Target == "" {
		c.Target = c.Entities[0].Name
	}
	if !seen[c.Target] {
		return fmt.Errorf("target %q is not a configured entity", c.Target)
	}
	if c.Name == "" {
		c.Name = c.Target
	}
	return nil
}

// BuildEntitySet loads every configured CSV and wires the relationships.
func (c *Config) BuildEntitySet() (*entityset.EntitySet, error) {
	es := entityset.New(c.Name)

	for _, ec := range c.Entities {
		var overrides map[string]schema.VarType
		if len(ec.VariableTypes) > 0 {
			overrides = make(map[string]schema.VarType, len(ec.VariableTypes))
			for col, typ := range ec.VariableTypes {
				t, err := schema.ParseVarType(typ)
				if err != nil {
					return nil, fmt.Errorf("entity %q, column %q: %w", ec.Name, col, err)
				}
				overrides[schema.ToKey(col)] = t
			}
		}

		frame, ts, err := helpers.LoadCSVFile(ec.Path, schema.InferOptions{
			Name:          ec.Name,
			Index:         ec.Index,
			TimeIndex:     ec.TimeIndex,
			VariableTypes: overrides,
		})
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", ec.Name, err)
		}

		var opts []entityset.EntityOption
		switch {
		case ec.MakeIndex != "":
			opts = append(opts, entityset.WithMakeIndex(ec.MakeIndex))
		case ec.Index != "":
			opts = append(opts, entityset.WithIndex(ec.Index))
		case ts.Index != "":
			opts = append(opts, entityset.WithIndex(ts.Index))
		}
		if ec.TimeIndex != "" {
			opts = append(opts, entityset.WithTimeIndex(ec.TimeIndex))
		} else if ts.TimeIndex != "" {
			opts = append(opts, entityset.WithTimeIndex(ts.TimeIndex))
		}

		if err := es.AddEntity(ec.Name, frame, opts...); err != nil {
			return nil, fmt.Errorf("entity %q: %w", ec.Name, err)
		}
	}

	for _, rc := range c.Relationships {
		pe, pc, err := splitRef(rc.Parent)
		if err != nil {
			return nil, err
		}
		ce, cc, err := splitRef(rc.Child)
		if err != nil {
			return nil, err
		}
		if err := es.AddRelationship(pe, pc, ce, cc); err != nil {
			return nil, err
		}
	}
	return es, nil
}

// splitRef parses "entity.column" references.
func splitRef(ref string) (entity, column string, err error) {
	parts := strings.SplitN(strings.TrimSpace(ref), ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid reference %q, want entity.column", ref)
	}
	return parts[0], parts[1], nil
}
