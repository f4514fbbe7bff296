package timeline

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Interaction is a known clash between two drugs, matched as a
// case-insensitive substring of a medicine's name or generic name.
type Interaction struct {
	Drugs       []string `yaml:"drugs" json:"drugs"`
	Severity    Severity `yaml:"severity" json:"severity"`
	Description string   `yaml:"description" json:"description"`
}

// DefaultInteractions is the built-in table.
func DefaultInteractions() []Interaction {
	return []Interaction{
		{
			Drugs:       []string{"warfarin", "aspirin"},
			Severity:    SeveritySevere,
			Description: "Increased risk of bleeding when taken together",
		},
		{
			Drugs:       []string{"simvastatin", "amiodarone"},
			Severity:    SeverityModerate,
			Description: "May increase risk of muscle damage",
		},
	}
}

type interactionFile struct {
	Interactions []Interaction `yaml:"interactions"`
}

// ParseInteractions decodes a YAML document of the form:
//
//	interactions:
//	  - drugs: [clopidogrel, omeprazole]
//	    severity: moderate
//	    description: Reduced antiplatelet effect
func ParseInteractions(r io.Reader) ([]Interaction, error) {
	var f interactionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode interactions: %w", err)
	}

	out := make([]Interaction, 0, len(f.Interactions))
	for i, in := range f.Interactions {
		if len(in.Drugs) != 2 {
			return nil, fmt.Errorf("interactions[%d]: expected 2 drugs, got %d", i, len(in.Drugs))
		}
		a := strings.ToLower(strings.TrimSpace(in.Drugs[0]))
		b := strings.ToLower(strings.TrimSpace(in.Drugs[1]))
		if a == "" || b == "" || a == b {
			return nil, fmt.Errorf("interactions[%d]: drugs must be two distinct names", i)
		}
		if !in.Severity.Valid() {
			return nil, fmt.Errorf("interactions[%d]: invalid severity %q", i, in.Severity)
		}
		if strings.TrimSpace(in.Description) == "" {
			return nil, fmt.Errorf("interactions[%d]: description is required", i)
		}
		out = append(out, Interaction{Drugs: []string{a, b}, Severity: in.Severity, Description: in.Description})
	}
	return out, nil
}

// LoadInteractions returns the built-in table extended with the entries of
// the YAML file at path. An empty path yields the built-in table.
func LoadInteractions(path string) ([]Interaction, error) {
	table := DefaultInteractions()
	if path == "" {
		return table, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open interactions file: %w", err)
	}
	defer f.Close()

	extra, err := ParseInteractions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return append(table, extra...), nil
}
