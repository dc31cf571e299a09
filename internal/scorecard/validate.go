package scorecard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the rubric for structural and semantic errors.
// It rejects unknown buckets, incomplete or overlapping bucket tables,
// duplicate keys, metrics with no measurement source, and core section
// weights not summing to 100.
func (r *Rubric) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return fmt.Errorf("invalid rubric: %w", err)
	}

	var errs []string
	seenSections := make(map[string]bool)
	coreWeight := 0
	for _, section := range r.Sections {
		if seenSections[section.Key] {
			errs = append(errs, fmt.Sprintf("duplicate section %q", section.Key))
		}
		seenSections[section.Key] = true
		if !section.Optional {
			coreWeight += section.Weight
		}

		seenMetrics := make(map[string]bool)
		for _, metric := range section.Metrics {
			path := section.Key + "." + metric.Key
			if seenMetrics[metric.Key] {
				errs = append(errs, fmt.Sprintf("duplicate metric %q", path))
			}
			seenMetrics[metric.Key] = true
			if _, ok := inputs[path]; !ok {
				errs = append(errs, fmt.Sprintf("metric %q has no measurement source", path))
			}
			errs = append(errs, validateThresholds(path, metric)...)
		}
	}

	for _, key := range CoreSections {
		if !seenSections[key] {
			errs = append(errs, fmt.Sprintf("missing section %q", key))
		}
	}
	if coreWeight != 100 {
		errs = append(errs, fmt.Sprintf("section weights sum to %d, want 100", coreWeight))
	}

	if len(errs) > 0 {
		return errors.New("invalid rubric: " + strings.Join(errs, "; "))
	}
	return nil
}

func validateThresholds(path string, metric MetricDef) []string {
	var errs []string
	for bucket := range metric.Thresholds {
		if !bucket.Valid() {
			errs = append(errs, fmt.Sprintf("%s: unknown bucket %q", path, bucket))
		}
	}

	conditions := make(map[Condition]Bucket)
	for _, bucket := range RankedBuckets {
		t, ok := metric.Thresholds[bucket]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: bucket %q not defined", path, bucket))
			continue
		}
		if t.Condition != "" && NormalizeCondition(string(t.Condition)) != t.Condition {
			errs = append(errs, fmt.Sprintf("%s.%s: condition %q is not normalised", path, bucket, t.Condition))
		}
		if prev, dup := conditions[t.Condition]; dup && t.Condition != "" {
			errs = append(errs, fmt.Sprintf("%s: condition %q used by %s and %s", path, t.Condition, prev, bucket))
		}
		conditions[t.Condition] = bucket

		switch metric.Kind {
		case KindNumeric:
			if !t.HasRange() || t.Condition != "" {
				errs = append(errs, fmt.Sprintf("%s.%s: numeric bucket needs min or max only", path, bucket))
			}
		case KindCategorical:
			if t.Condition == "" || t.HasRange() {
				errs = append(errs, fmt.Sprintf("%s.%s: categorical bucket needs a condition only", path, bucket))
			}
		case KindHybrid:
			if !t.HasRange() {
				errs = append(errs, fmt.Sprintf("%s.%s: hybrid bucket needs min or max", path, bucket))
			}
		}
		if t.Min != nil && t.Max != nil && *t.Min >= *t.Max {
			errs = append(errs, fmt.Sprintf("%s.%s: min %v not below max %v", path, bucket, *t.Min, *t.Max))
		}
	}

	if metric.Kind != KindCategorical {
		for i, a := range RankedBuckets {
			for _, b := range RankedBuckets[i+1:] {
				ta, okA := metric.Thresholds[a]
				tb, okB := metric.Thresholds[b]
				if okA && okB && overlaps(ta, tb) {
					errs = append(errs, fmt.Sprintf("%s: buckets %s and %s overlap", path, a, b))
				}
			}
		}
	}
	return errs
}

// overlaps reports whether two half-open ranges share any value
func overlaps(a, b Threshold) bool {
	if !a.HasRange() || !b.HasRange() {
		return false
	}
	lowA, highA := bounds(a)
	lowB, highB := bounds(b)
	return lowA < highB && lowB < highA
}

func bounds(t Threshold) (float64, float64) {
	low, high := negInf, posInf
	if t.Min != nil {
		low = *t.Min
	}
	if t.Max != nil {
		high = *t.Max
	}
	return low, high
}
