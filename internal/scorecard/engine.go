package scorecard

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// input is the value a metric is scored from
type input struct {
	value     *float64
	condition Condition
	label     string
}

type source func(m *Measurements) input

// inputs maps "section.metric" to the function extracting its measurement
var inputs = map[string]source{
	"fundamentals.revenueGrowth": func(m *Measurements) input {
		if m.Fundamentals == nil {
			return input{}
		}
		return input{value: m.Fundamentals.RevenueGrowthYoY}
	},
	"fundamentals.epsGrowth": func(m *Measurements) input {
		if m.Fundamentals == nil {
			return input{}
		}
		return input{value: m.Fundamentals.EPSGrowthYoY}
	},
	"fundamentals.profitMarginTrend": func(m *Measurements) input {
		if m.Fundamentals == nil {
			return input{}
		}
		return categorical(m.Fundamentals.ProfitMarginTrend)
	},
	"fundamentals.fcfToDebt": func(m *Measurements) input {
		if m.Fundamentals == nil || !present(m.Fundamentals.FreeCashFlow) || !present(m.Fundamentals.TotalDebt) || *m.Fundamentals.TotalDebt <= 0 {
			return input{}
		}
		return input{value: Float(*m.Fundamentals.FreeCashFlow / *m.Fundamentals.TotalDebt)}
	},
	"fundamentals.debtToEquity": func(m *Measurements) input {
		if m.Fundamentals == nil {
			return input{}
		}
		return input{value: m.Fundamentals.DebtToEquity}
	},

	"technicals.smaAlignment": func(m *Measurements) input {
		t := m.Technicals
		if t == nil {
			return input{}
		}
		return categorical(SMAAlignment(t.CurrentPrice, t.SMA5, t.SMA10, t.SMA20))
	},
	"technicals.rsiMomentum": func(m *Measurements) input {
		t := m.Technicals
		if t == nil {
			return input{}
		}
		c := RSICondition(t.RSI, t.RSIDirection)
		if c == "" {
			return input{}
		}
		return input{value: t.RSI, condition: c, label: fmt.Sprintf("RSI: %.1f (%s)", *t.RSI, c)}
	},
	"technicals.macdSignal": func(m *Measurements) input {
		t := m.Technicals
		if t == nil {
			return input{}
		}
		return categorical(MACDCondition(t.MACDLine, t.MACDSignal, t.MACDHistogram))
	},
	"technicals.volumeSurge": func(m *Measurements) input {
		t := m.Technicals
		if t == nil || !present(t.VolumeVsAvg) {
			return input{}
		}
		in := input{value: t.VolumeVsAvg, label: fmt.Sprintf("%.2fx avg", *t.VolumeVsAvg)}
		if t.PriceConfirmation {
			in.condition = VolumeConfirmedSurge
		}
		return in
	},
	"technicals.priceVsResistance": func(m *Measurements) input {
		t := m.Technicals
		if t == nil || !present(t.CurrentPrice) {
			return input{}
		}
		return categorical(PriceLevelCondition(t.Breakout, t.NearSupport, t.NearResistance))
	},

	"insiderActivity.netBuyRatio": func(m *Measurements) input {
		if m.Insider == nil || !present(m.Insider.NetBuyRatio30d) {
			return input{}
		}
		v := m.Insider.NetBuyRatio30d
		return input{value: v, label: formatNumber(*v) + "%"}
	},
	"insiderActivity.transactionRecency": func(m *Measurements) input {
		if m.Insider == nil || m.Insider.DaysSinceLastTransaction == nil {
			return input{}
		}
		days := *m.Insider.DaysSinceLastTransaction
		return input{value: Float(float64(days)), label: fmt.Sprintf("%d days ago", days)}
	},
	"insiderActivity.transactionSize": func(m *Measurements) input {
		if m.Insider == nil || !present(m.Insider.TransactionSizeVsFloat) {
			return input{}
		}
		v := m.Insider.TransactionSizeVsFloat
		return input{value: v, label: fmt.Sprintf("%.3f%%", *v)}
	},
	"insiderActivity.insiderRole": func(m *Measurements) input {
		if m.Insider == nil {
			return input{}
		}
		return categorical(InsiderRoleCondition(m.Insider.Roles))
	},

	"newsSentiment.avgSentiment": func(m *Measurements) input {
		if m.News == nil {
			return input{}
		}
		return input{value: m.News.AvgSentiment}
	},
	"newsSentiment.sentimentMomentum": func(m *Measurements) input {
		if m.News == nil {
			return input{}
		}
		return categorical(m.News.SentimentTrend)
	},
	"newsSentiment.newsVolume": func(m *Measurements) input {
		if m.News == nil || m.News.NewsCount7d == nil {
			return input{}
		}
		n := *m.News.NewsCount7d
		return input{value: Float(float64(n)), label: fmt.Sprintf("%d articles", n)}
	},
	"newsSentiment.catalystPresence": func(m *Measurements) input {
		if m.News == nil {
			return input{}
		}
		return categorical(m.News.UpcomingCatalyst)
	},

	"macroSector.sectorMomentum": func(m *Measurements) input {
		if m.Macro == nil || !present(m.Macro.SectorVsSPY10d) {
			return input{}
		}
		v := *m.Macro.SectorVsSPY10d
		sign := ""
		if v >= 0 {
			sign = "+"
		}
		return input{value: Float(v), label: sign + formatNumber(v) + "%"}
	},
	"macroSector.macroRiskFlags": func(m *Measurements) input {
		if m.Macro == nil {
			return input{}
		}
		return categorical(m.Macro.MacroRiskEnvironment)
	},

	"aiAgentEvaluation.riskAssessment": func(m *Measurements) input {
		if m.AI == nil {
			return input{}
		}
		return categorical(m.AI.RiskAssessment)
	},
	"aiAgentEvaluation.entryTiming": func(m *Measurements) input {
		if m.AI == nil {
			return input{}
		}
		return categorical(m.AI.EntryTiming)
	},
	"aiAgentEvaluation.conviction": func(m *Measurements) input {
		if m.AI == nil {
			return input{}
		}
		return categorical(m.AI.Conviction)
	},
}

// optionalSources decides whether an optional section takes part in a card
var optionalSources = map[string]func(m *Measurements) bool{
	SectionAI: func(m *Measurements) bool { return m.AI != nil },
}

func categorical(c Condition) input {
	if c == "" {
		return input{}
	}
	return input{condition: c, label: string(c)}
}

// Engine scores measurement bundles against a rubric
type Engine struct {
	rubric *Rubric
	clock  func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the clock used to stamp ComputedAt
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// NewEngine creates an engine for the rubric. A nil rubric uses DefaultRubric.
// The rubric is expected to have passed Validate.
func NewEngine(rubric *Rubric, opts ...Option) *Engine {
	if rubric == nil {
		rubric = DefaultRubric()
	}
	e := &Engine{rubric: rubric, clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rubric returns the rubric the engine scores against
func (e *Engine) Rubric() *Rubric {
	return e.rubric
}

var defaultEngine = NewEngine(nil)

// Generate scores m against the built-in rubric
func Generate(m Measurements, opportunity Opportunity) *Scorecard {
	return defaultEngine.Generate(m, opportunity)
}

// Generate builds a complete scorecard from the bundle. It never fails:
// absent inputs become missing metrics.
func (e *Engine) Generate(m Measurements, opportunity Opportunity) *Scorecard {
	opportunity = opportunity.OrDefault()
	card := &Scorecard{
		Version:         e.rubric.Version,
		TradingHorizon:  e.rubric.TradingHorizon,
		OpportunityType: opportunity,
		ComputedAt:      e.clock().UTC(),
		MaxGlobalScore:  100,
	}

	for _, def := range e.rubric.Sections {
		if def.Optional {
			available, ok := optionalSources[def.Key]
			if !ok || !available(&m) {
				continue
			}
		}
		card.Sections = append(card.Sections, e.scoreSection(def, &m, opportunity))
	}

	card.GlobalScore = GlobalScore(card.Sections)

	total, missing := 0, 0
	for _, s := range card.Sections {
		total += len(s.Metrics)
		missing += len(s.MissingMetrics)
	}
	card.Confidence = ConfidenceFor(missing, total)
	if total > 0 {
		card.MissingDataPenalty = int(math.Round(float64(missing) / float64(total) * 100))
	}
	card.Summary = summarize(card)
	return card
}

func (e *Engine) scoreSection(def SectionDef, m *Measurements, opportunity Opportunity) SectionScore {
	section := SectionScore{
		Key:            def.Key,
		Label:          def.Label,
		Weight:         def.Weight,
		MaxScore:       100,
		MissingMetrics: []string{},
	}
	for _, metric := range def.Metrics {
		var in input
		if src, ok := inputs[def.Key+"."+metric.Key]; ok {
			in = src(m)
		}
		score := ScoreMetric(metric, in.value, in.condition, opportunity)
		if !score.Missing() {
			score.Measurement = &Measurement{Value: in.value, Label: in.label}
		}
		score.Rationale = rationale(score)
		if score.Missing() {
			section.MissingMetrics = append(section.MissingMetrics, metric.Key)
		}
		section.Metrics = append(section.Metrics, score)
	}
	section.Score = SectionScoreFor(section.Metrics)
	return section
}

// ScoreMetric assigns a bucket to a single measurement. Numeric metrics read
// value, categorical metrics read condition, hybrid metrics read both.
func ScoreMetric(def MetricDef, value *float64, condition Condition, opportunity Opportunity) MetricScore {
	bucket := match(def, value, condition)
	if bucket != BucketMissing && opportunity == OpportunitySell && def.Polarity == PolarityBullish {
		bucket = invertBucket(bucket, def.Polarity)
	}
	return MetricScore{
		Key:      def.Key,
		Label:    def.Label,
		Weight:   def.Weight,
		Polarity: def.Polarity,
		Bucket:   bucket,
		Score:    bucket.Points(),
		MaxScore: 10,
	}
}

func match(def MetricDef, value *float64, condition Condition) Bucket {
	switch def.Kind {
	case KindNumeric:
		if !present(value) {
			return BucketMissing
		}
		for _, b := range RankedBuckets {
			if def.Thresholds[b].Contains(*value) {
				return b
			}
		}
	case KindCategorical:
		if condition == "" {
			return BucketMissing
		}
		c := NormalizeCondition(string(condition))
		for _, b := range RankedBuckets {
			if t := def.Thresholds[b]; t.Condition != "" && t.Condition == c {
				return b
			}
		}
	case KindHybrid:
		if !present(value) {
			return BucketMissing
		}
		c := NormalizeCondition(string(condition))
		for i, b := range RankedBuckets {
			t := def.Thresholds[b]
			if !t.Contains(*value) {
				continue
			}
			if t.Condition == "" || t.Condition == c {
				return b
			}
			// in range without the required condition: one tier lower
			if i+1 < len(RankedBuckets) {
				return RankedBuckets[i+1]
			}
			return b
		}
	default:
		return BucketMissing
	}
	return BucketNeutral
}

var inversion = map[Bucket]Bucket{
	BucketExcellent: BucketPoor,
	BucketGood:      BucketWeak,
	BucketNeutral:   BucketNeutral,
	BucketWeak:      BucketGood,
	BucketPoor:      BucketExcellent,
}

// invertBucket mirrors a bucket for a short thesis. Only bullish metrics may be
// inverted; any other polarity reaching here is a configuration error.
func invertBucket(b Bucket, polarity Polarity) Bucket {
	if polarity != PolarityBullish {
		panic(fmt.Sprintf("scorecard: bucket inversion requested for %s metric", polarity))
	}
	if inv, ok := inversion[b]; ok {
		return inv
	}
	return b
}

// SectionScoreFor returns round(10 * weighted mean) over non-missing metrics, or 0 when all are missing
func SectionScoreFor(metrics []MetricScore) int {
	weighted, weights := 0, 0
	for _, m := range metrics {
		if m.Missing() {
			continue
		}
		weighted += m.Score * m.Weight
		weights += m.Weight
	}
	if weights == 0 {
		return 0
	}
	return ClampInt(int(math.Round(float64(weighted)/float64(weights)*10)), 0, 100)
}

// GlobalScore returns the weighted mean of the section scores
func GlobalScore(sections []SectionScore) int {
	weighted, weights := 0, 0
	for _, s := range sections {
		weighted += s.Score * s.Weight
		weights += s.Weight
	}
	if weights == 0 {
		return 0
	}
	return ClampInt(int(math.Round(float64(weighted)/float64(weights))), 0, 100)
}

// ConfidenceFor maps the missing metric ratio to a confidence level
func ConfidenceFor(missing, total int) Confidence {
	if total == 0 {
		return ConfidenceLow
	}
	switch {
	case missing*10 <= total:
		return ConfidenceHigh
	case missing*10 <= total*3:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func rationale(m MetricScore) string {
	if m.Missing() {
		return fmt.Sprintf("%s: Data not available (score: 0/10)", m.Label)
	}
	return fmt.Sprintf("%s: %s → %s (%d/10)", m.Label, m.Measurement.String(), m.Bucket.Title(), m.Score)
}

// StatusMark is the summary glyph for a section score
func StatusMark(score int) string {
	switch {
	case score >= 70:
		return "✓"
	case score >= 40:
		return "~"
	default:
		return "✗"
	}
}

func summarize(c *Scorecard) string {
	parts := make([]string, 0, len(c.Sections))
	for _, s := range c.Sections {
		parts = append(parts, fmt.Sprintf("%s: %d/100 %s", s.Label, s.Score, StatusMark(s.Score)))
	}
	return fmt.Sprintf("Score: %d/100 (%s confidence). %s", c.GlobalScore, c.Confidence, strings.Join(parts, " | "))
}
