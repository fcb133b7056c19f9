// Package catalog holds the procedure (SOP) definitions guards are walked
// through and the trigger matcher that selects one from free text.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sops.yaml
var defaultCatalog []byte

// Step is one instruction within a procedure.
type Step struct {
	Instruction          string `yaml:"instruction"`
	Message              string `yaml:"message"`
	RequiresConfirmation bool   `yaml:"requires_confirmation"`
	Image                string `yaml:"image,omitempty"`
	// Escalates hands the guard to a supervisor as soon as the step is sent.
	Escalates bool `yaml:"escalates,omitempty"`
}

// Procedure is a named, ordered checklist. Procedures are immutable once
// loaded and shared by every conversation that references them.
type Procedure struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Steps    []Step   `yaml:"steps"`
	Triggers []string `yaml:"triggers"`
}

// StepAt returns the 1-based step n, or nil when n is out of range.
func (p *Procedure) StepAt(n int) *Step {
	if n < 1 || n > len(p.Steps) {
		return nil
	}
	return &p.Steps[n-1]
}

// Catalog is the ordered set of procedures. Order is match priority.
type Catalog struct {
	Procedures []*Procedure `yaml:"procedures"`
}

// Load reads a catalog file from path. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse unmarshals and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects catalogs the state machine cannot run: no procedures,
// a procedure with no steps or triggers, blank titles or step messages,
// and duplicate ids.
func (c *Catalog) Validate() error {
	var errs []string
	if len(c.Procedures) == 0 {
		errs = append(errs, "at least one procedure is required")
	}
	seen := make(map[string]bool)
	for i, p := range c.Procedures {
		if p == nil {
			errs = append(errs, fmt.Sprintf("procedures[%d] is empty", i))
			continue
		}
		label := p.ID
		if label == "" {
			errs = append(errs, fmt.Sprintf("procedures[%d].id is required", i))
			label = fmt.Sprintf("procedures[%d]", i)
		} else if seen[p.ID] {
			errs = append(errs, fmt.Sprintf("duplicate procedure id %q", p.ID))
		}
		seen[p.ID] = true
		if strings.TrimSpace(p.Title) == "" {
			errs = append(errs, fmt.Sprintf("%s: title is required", label))
		}
		if len(p.Steps) == 0 {
			errs = append(errs, fmt.Sprintf("%s: at least one step is required", label))
		}
		for j, s := range p.Steps {
			if strings.TrimSpace(s.Message) == "" {
				errs = append(errs, fmt.Sprintf("%s: steps[%d].message is required", label, j))
			}
		}
		if len(p.Triggers) == 0 {
			errs = append(errs, fmt.Sprintf("%s: at least one trigger is required", label))
		}
		for j, tr := range p.Triggers {
			if strings.TrimSpace(tr) == "" {
				errs = append(errs, fmt.Sprintf("%s: triggers[%d] is blank", label, j))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("catalog: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Lookup returns the procedure with the given id, or nil.
func (c *Catalog) Lookup(id string) *Procedure {
	for _, p := range c.Procedures {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Match finds the procedure for message in this catalog. See Match.
func (c *Catalog) Match(message string) *Procedure {
	return Match(message, c.Procedures)
}
