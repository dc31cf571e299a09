package scorecard

import (
	"fmt"
	"strconv"
	"time"
)

// Measurement is the raw value a metric was scored from: a number, a label, or both
type Measurement struct {
	Value *float64 `json:"value,omitempty"`
	Label string   `json:"label,omitempty"`
}

// String renders the measurement for rationales
func (m *Measurement) String() string {
	if m == nil {
		return ""
	}
	if m.Label != "" {
		return m.Label
	}
	if m.Value != nil {
		return formatNumber(*m.Value)
	}
	return ""
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// MetricScore is the scored result for one metric
type MetricScore struct {
	Key         string       `json:"key"`
	Label       string       `json:"label"`
	Weight      int          `json:"weight"`
	Polarity    Polarity     `json:"polarity"`
	Bucket      Bucket       `json:"rule_bucket"`
	Score       int          `json:"score"`
	MaxScore    int          `json:"max_score"`
	Measurement *Measurement `json:"measurement"`
	Rationale   string       `json:"rationale"`
}

// Missing reports whether the metric had no usable data
func (m MetricScore) Missing() bool {
	return m.Bucket == BucketMissing
}

// SectionScore is the weighted aggregate of a section's metrics
type SectionScore struct {
	Key            string        `json:"key"`
	Label          string        `json:"label"`
	Weight         int           `json:"weight"`
	Score          int           `json:"score"`
	MaxScore       int           `json:"max_score"`
	Metrics        []MetricScore `json:"metrics"`
	MissingMetrics []string      `json:"missing_metrics"`
}

// Metric returns the metric score for key
func (s *SectionScore) Metric(key string) (*MetricScore, bool) {
	for i := range s.Metrics {
		if s.Metrics[i].Key == key {
			return &s.Metrics[i], true
		}
	}
	return nil, false
}

// AllMissing reports whether no metric in the section had data
func (s *SectionScore) AllMissing() bool {
	return len(s.MissingMetrics) == len(s.Metrics)
}

// Scorecard is the deterministic, explainable scoring artifact
type Scorecard struct {
	Version            string         `json:"version"`
	TradingHorizon     string         `json:"trading_horizon"`
	OpportunityType    Opportunity    `json:"opportunity_type"`
	ComputedAt         time.Time      `json:"computed_at"`
	Sections           []SectionScore `json:"sections"`
	GlobalScore        int            `json:"global_score"`
	MaxGlobalScore     int            `json:"max_global_score"`
	MissingDataPenalty int            `json:"missing_data_penalty"`
	Confidence         Confidence     `json:"confidence"`
	Summary            string         `json:"summary"`
}

// Section returns the section score for key
func (c *Scorecard) Section(key string) (*SectionScore, bool) {
	for i := range c.Sections {
		if c.Sections[i].Key == key {
			return &c.Sections[i], true
		}
	}
	return nil, false
}

// SectionScoreOf returns the section score for key, or 0 when absent
func (c *Scorecard) SectionScoreOf(key string) int {
	if s, ok := c.Section(key); ok {
		return s.Score
	}
	return 0
}

// Validate checks that every core section is present and, when requireAI is
// set, that the AI section exists and holds at least one scored metric
func (c *Scorecard) Validate(requireAI bool) error {
	for _, key := range CoreSections {
		if _, ok := c.Section(key); !ok {
			return fmt.Errorf("scorecard missing section %s", key)
		}
	}
	if !requireAI {
		return nil
	}
	ai, ok := c.Section(SectionAI)
	if !ok {
		return fmt.Errorf("scorecard missing section %s", SectionAI)
	}
	if ai.AllMissing() {
		return fmt.Errorf("scorecard section %s has no scored metrics", SectionAI)
	}
	return nil
}
