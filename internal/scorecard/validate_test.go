package scorecard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRubric_Valid(t *testing.T) {
	r := DefaultRubric()
	require.NoError(t, r.Validate())

	total := 0
	for _, key := range CoreSections {
		s, ok := r.Section(key)
		require.True(t, ok, key)
		total += s.Weight
	}
	assert.Equal(t, 100, total)
}

func TestRubricValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Rubric)
		wantErr string
	}{
		{
			name:    "core weights off",
			mutate:  func(r *Rubric) { r.Sections[0].Weight = 30 },
			wantErr: "sum to 95",
		},
		{
			name: "unknown bucket",
			mutate: func(r *Rubric) {
				r.Sections[0].Metrics[0].Thresholds["stellar"] = atLeast(50)
			},
			wantErr: `unknown bucket "stellar"`,
		},
		{
			name: "missing bucket",
			mutate: func(r *Rubric) {
				delete(r.Sections[0].Metrics[0].Thresholds, BucketWeak)
			},
			wantErr: `bucket "weak" not defined`,
		},
		{
			name: "overlapping ranges",
			mutate: func(r *Rubric) {
				r.Sections[0].Metrics[0].Thresholds[BucketGood] = between(10, 30)
			},
			wantErr: "buckets excellent and good overlap",
		},
		{
			name: "numeric bucket with condition",
			mutate: func(r *Rubric) {
				r.Sections[0].Metrics[0].Thresholds[BucketPoor] = when(MarginDeclining)
			},
			wantErr: "numeric bucket needs min or max only",
		},
		{
			name: "unsourced metric",
			mutate: func(r *Rubric) {
				r.Sections[0].Metrics[0].Key = "ebitdaGrowth"
			},
			wantErr: "has no measurement source",
		},
		{
			name: "duplicate condition",
			mutate: func(r *Rubric) {
				r.Sections[0].Metrics[2].Thresholds[BucketGood] = when(MarginStrongGrowth)
			},
			wantErr: "used by excellent and good",
		},
		{
			name:    "unknown polarity",
			mutate:  func(r *Rubric) { r.Sections[1].Metrics[0].Polarity = "sideways" },
			wantErr: "Polarity",
		},
		{
			name:    "missing core section",
			mutate:  func(r *Rubric) { r.Sections = r.Sections[1:] },
			wantErr: `missing section "fundamentals"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRubric()
			tt.mutate(r)
			err := r.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRubric_RoundTrip(t *testing.T) {
	data, err := DefaultRubric().YAML()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rubric.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	loaded, err := LoadRubric(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRubric(), loaded)
}

func TestParseRubric_NormalisesConditions(t *testing.T) {
	data, err := DefaultRubric().YAML()
	require.NoError(t, err)
	data = []byte(strings.Replace(string(data), "condition: strong_growth", "condition: Strong Growth", 1))

	r, err := ParseRubric(data)
	require.NoError(t, err)
	fundamentals, _ := r.Section(SectionFundamentals)
	margin, _ := fundamentals.Metric("profitMarginTrend")
	assert.Equal(t, MarginStrongGrowth, margin.Thresholds[BucketExcellent].Condition)
}

func TestParseRubric_InvalidYAML(t *testing.T) {
	_, err := ParseRubric([]byte("sections: [unterminated"))
	assert.Error(t, err)

	_, err = LoadRubric(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
