package scorecard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRubric reads a YAML rubric override from path and validates it
func LoadRubric(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rubric %s: %w", path, err)
	}
	return ParseRubric(data)
}

// ParseRubric decodes and validates a YAML rubric
func ParseRubric(data []byte) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rubric: %w", err)
	}
	for i := range r.Sections {
		for j := range r.Sections[i].Metrics {
			m := &r.Sections[i].Metrics[j]
			for bucket, t := range m.Thresholds {
				t.Condition = NormalizeCondition(string(t.Condition))
				m.Thresholds[bucket] = t
			}
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// YAML renders the rubric in the format LoadRubric accepts
func (r *Rubric) YAML() ([]byte, error) {
	return yaml.Marshal(*r)
}
