package scorecard

import (
	"fmt"
	"strings"
)

func signed(d int) string {
	if d >= 0 {
		return fmt.Sprintf("+%d", d)
	}
	return fmt.Sprintf("%d", d)
}

// ExplainDifference describes, line by line, why card a scored differently
// from card b. Sections that moved by at least one point list the metrics
// that changed together with both rationales.
func ExplainDifference(a, b *Scorecard) string {
	lines := []string{
		fmt.Sprintf("Overall: %d vs %d (diff: %s)", a.GlobalScore, b.GlobalScore, signed(a.GlobalScore-b.GlobalScore)),
		"",
	}
	for i := range a.Sections {
		sa := &a.Sections[i]
		sb, ok := b.Section(sa.Key)
		if !ok {
			continue
		}
		diff := sa.Score - sb.Score
		if diff == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %d vs %d (%s)", sa.Label, sa.Score, sb.Score, signed(diff)))
		for _, ma := range sa.Metrics {
			mb, ok := sb.Metric(ma.Key)
			if !ok || ma.Score == mb.Score {
				continue
			}
			lines = append(lines,
				fmt.Sprintf("  - %s: %d vs %d (%s)", ma.Label, ma.Score, mb.Score, signed(ma.Score-mb.Score)),
				"    A: "+ma.Rationale,
				"    B: "+mb.Rationale,
			)
		}
	}
	return strings.Join(lines, "\n")
}

// RubricPrompt renders the rubric as plain text for grounding model prompts
func RubricPrompt(r *Rubric) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## SCORING RUBRIC (Version %s)\n\n", r.Version)
	fmt.Fprintf(&sb, "Trading Horizon: %s\n\n", r.TradingHorizon)
	sb.WriteString("Every metric below is scored. Missing data = score of 0.\n\n")

	for _, section := range r.Sections {
		fmt.Fprintf(&sb, "### %s (Weight: %d%%)\n", section.Label, section.Weight)
		if section.Description != "" {
			sb.WriteString(section.Description + "\n")
		}
		sb.WriteString("\n")
		for _, metric := range section.Metrics {
			fmt.Fprintf(&sb, "**%s** - %s (Weight: %d%%, %s)\n", metric.Key, metric.Label, metric.Weight, metric.Polarity)
			if metric.Description != "" {
				sb.WriteString(metric.Description + "\n")
			}
			sb.WriteString("Scoring:\n")
			for _, bucket := range RankedBuckets {
				t := metric.Thresholds[bucket]
				var conds []string
				if t.Min != nil {
					conds = append(conds, fmt.Sprintf(">= %v", *t.Min))
				}
				if t.Max != nil {
					conds = append(conds, fmt.Sprintf("< %v", *t.Max))
				}
				if t.Condition != "" {
					conds = append(conds, string(t.Condition))
				}
				fmt.Fprintf(&sb, "  - %s (%d pts): %s\n", strings.ToUpper(string(bucket)), bucket.Points(), strings.Join(conds, " AND "))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
