package scorecard

// Rubric version and horizon of the built-in configuration
const (
	RubricVersion  = "1.0"
	TradingHorizon = "1-2 weeks"
)

// Section keys
const (
	SectionFundamentals = "fundamentals"
	SectionTechnicals   = "technicals"
	SectionInsider      = "insiderActivity"
	SectionNews         = "newsSentiment"
	SectionMacro        = "macroSector"
	SectionAI           = "aiAgentEvaluation"
)

// CoreSections are always scored, whether or not their inputs are present
var CoreSections = []string{SectionFundamentals, SectionTechnicals, SectionInsider, SectionNews, SectionMacro}

// MetricKind selects how a measurement is matched against thresholds
type MetricKind string

const (
	KindNumeric     MetricKind = "numeric"
	KindCategorical MetricKind = "categorical"
	// KindHybrid matches numeric ranges; a threshold that also names a
	// condition additionally requires that condition to hold.
	KindHybrid MetricKind = "hybrid"
)

// Threshold is a single bucket definition. Min is inclusive, Max exclusive.
type Threshold struct {
	Min       *float64  `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64  `yaml:"max,omitempty" json:"max,omitempty"`
	Condition Condition `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// HasRange reports whether the threshold defines a numeric range
func (t Threshold) HasRange() bool {
	return t.Min != nil || t.Max != nil
}

// Contains reports whether v falls inside the numeric range
func (t Threshold) Contains(v float64) bool {
	switch {
	case t.Min != nil && t.Max != nil:
		return v >= *t.Min && v < *t.Max
	case t.Min != nil:
		return v >= *t.Min
	case t.Max != nil:
		return v < *t.Max
	default:
		return false
	}
}

// MetricDef configures one metric within a section
type MetricDef struct {
	Key         string               `yaml:"key" validate:"required"`
	Label       string               `yaml:"label" validate:"required"`
	Description string               `yaml:"description,omitempty"`
	Weight      int                  `yaml:"weight" validate:"gt=0,lte=100"`
	Polarity    Polarity             `yaml:"polarity" validate:"required,oneof=bullish bearish symmetric"`
	Kind        MetricKind           `yaml:"kind" validate:"required,oneof=numeric categorical hybrid"`
	Thresholds  map[Bucket]Threshold `yaml:"thresholds" validate:"required"`
}

// SectionDef configures a weighted group of metrics
type SectionDef struct {
	Key         string      `yaml:"key" validate:"required"`
	Label       string      `yaml:"label" validate:"required"`
	Description string      `yaml:"description,omitempty"`
	Weight      int         `yaml:"weight" validate:"gt=0,lte=100"`
	Optional    bool        `yaml:"optional,omitempty"`
	Metrics     []MetricDef `yaml:"metrics" validate:"required,min=1,dive"`
}

// Rubric is the declarative threshold table driving the engine
type Rubric struct {
	Version        string       `yaml:"version" validate:"required"`
	TradingHorizon string       `yaml:"trading_horizon" validate:"required"`
	Sections       []SectionDef `yaml:"sections" validate:"required,min=1,dive"`
}

// Section returns the section definition for key
func (r *Rubric) Section(key string) (*SectionDef, bool) {
	for i := range r.Sections {
		if r.Sections[i].Key == key {
			return &r.Sections[i], true
		}
	}
	return nil, false
}

// Metric returns the metric definition for key within the section
func (s *SectionDef) Metric(key string) (*MetricDef, bool) {
	for i := range s.Metrics {
		if s.Metrics[i].Key == key {
			return &s.Metrics[i], true
		}
	}
	return nil, false
}

func f(v float64) *float64 { return &v }

func atLeast(min float64) Threshold      { return Threshold{Min: f(min)} }
func below(max float64) Threshold        { return Threshold{Max: f(max)} }
func between(min, max float64) Threshold { return Threshold{Min: f(min), Max: f(max)} }
func when(c Condition) Threshold         { return Threshold{Condition: c} }

func ladder(e, g, n, w, p Threshold) map[Bucket]Threshold {
	return map[Bucket]Threshold{
		BucketExcellent: e,
		BucketGood:      g,
		BucketNeutral:   n,
		BucketWeak:      w,
		BucketPoor:      p,
	}
}

func conditions(e, g, n, w, p Condition) map[Bucket]Threshold {
	return ladder(when(e), when(g), when(n), when(w), when(p))
}

// DefaultRubric returns a fresh copy of the built-in rubric tuned for a 1-2 week horizon
func DefaultRubric() *Rubric {
	return &Rubric{
		Version:        RubricVersion,
		TradingHorizon: TradingHorizon,
		Sections: []SectionDef{
			{
				Key:         SectionFundamentals,
				Label:       "Fundamentals",
				Description: "Financial health and growth metrics",
				Weight:      35,
				Metrics: []MetricDef{
					{
						Key:         "revenueGrowth",
						Label:       "YoY Revenue Growth",
						Description: "Year-over-year revenue growth percentage",
						Weight:      25,
						Polarity:    PolarityBullish,
						Kind:        KindNumeric,
						Thresholds:  ladder(atLeast(25), between(10, 25), between(0, 10), between(-10, 0), below(-10)),
					},
					{
						Key:         "epsGrowth",
						Label:       "YoY EPS Growth",
						Description: "Year-over-year earnings per share growth",
						Weight:      25,
						Polarity:    PolarityBullish,
						Kind:        KindNumeric,
						Thresholds:  ladder(atLeast(30), between(15, 30), between(0, 15), between(-20, 0), below(-20)),
					},
					{
						Key:         "profitMarginTrend",
						Label:       "Profit Margin Trend",
						Description: "Direction of profit margins over recent quarters",
						Weight:      20,
						Polarity:    PolarityBullish,
						Kind:        KindCategorical,
						Thresholds:  conditions(MarginStrongGrowth, MarginImproving, MarginStable, MarginDeclining, MarginDecliningFast),
					},
					{
						Key:         "fcfToDebt",
						Label:       "FCF-to-Debt Ratio",
						Description: "Free cash flow relative to total debt",
						Weight:      15,
						Polarity:    PolarityBullish,
						Kind:        KindNumeric,
						Thresholds:  ladder(atLeast(0.4), between(0.2, 0.4), between(0.1, 0.2), between(0.05, 0.1), below(0.05)),
					},
					{
						Key:         "debtToEquity",
						Label:       "Debt-to-Equity Ratio",
						Description: "Total debt relative to shareholder equity (lower is better)",
						Weight:      15,
						Polarity:    PolarityBullish,
						Kind:        KindNumeric,
						Thresholds:  ladder(below(0.5), between(0.5, 1.0), between(1.0, 2.0), between(2.0, 3.0), atLeast(3.0)),
					},
				},
			},
			{
				Key:         SectionTechnicals,
				Label:       "Technicals",
				Description: "Price action and momentum indicators",
				Weight:      25,
				Metrics: []MetricDef{
					{
						Key:         "smaAlignment",
						Label:       "Short-Term SMA Alignment",
						Description: "5/10/20 day SMA alignment for short-term trend",
						Weight:      25,
						Polarity:    PolarityBullish,
						Kind:        KindCategorical,
						Thresholds:  conditions(SMABullishAligned, SMAMixedBullish, SMANeutral, SMAMixedBearish, SMABearishAligned),
					},
					{
						Key:         "rsiMomentum",
						Label:       "RSI Momentum (14-day)",
						Description: "Relative Strength Index position and direction",
						Weight:      25,
						Polarity:    PolarityBullish,
						Kind:        KindCategorical,
						Thresholds:  conditions(RSISweetSpot, RSIFavorable, RSIFlat, RSIApproachingExtreme, RSIExtreme),
					},
					{
						Key:         "macdSignal",
						Label:       "MACD Momentum",
						Description: "MACD line vs signal line crossover and histogram",
						Weight:      20,
						Polarity:    PolarityBullish,
						Kind:        KindCategorical,
						Thresholds:  conditions(MACDStrongBullish, MACDBullish, MACDFlat, MACDBearish, MACDStrongBearish),
					},
					{
						Key:         "volumeSurge",
						Label:       "Volume vs 10-Day Average",
						Description: "Recent volume compared to short-term average",
						Weight:      15,
						Polarity:    PolarityBullish,
						Kind:        KindHybrid,
						Thresholds:  ladder(
							Threshold{Min: f(2.0), Condition: VolumeConfirmedSurge},
							between(1.2, 2.0), between(0.8, 1.2), between(0.5, 0.8), below(0.5),
						),
					},
					{
						Key:         "priceVsResistance",
						Label:       "Price vs Key Levels",
						Description: "Price position relative to support/resistance levels",
						Weight:      15,
						Polarity:    PolarityBullish,
						Kind:        KindCategorical,
						Thresholds:  conditions(LevelBreakout, LevelNearSupport, LevelMidRange, LevelNearResist, LevelBreakdown),
					},
				},
			},
			{
				Key:         SectionInsider,
				Label:       "Insider Activity",
				Description: "Insider trading signals",
				Weight:      20,
				Metrics: []MetricDef{
					{
						Key:         "netBuyRatio",
						Label:       "Net Buy Ratio (30-day)",
						Description: "Net insider buying vs selling in last 30 days",
						Weight:      30,
						Polarity:    PolarityBullish,
						Kind:        KindNumeric,
						Thresholds:  ladder(atLeast(50), between(10, 50), between(-10, 10), between(-50, -10), below(-50)),
					},
					{
						Key:         "transactionRecency",
						Label:       "Most Recent Transaction",
						Description: "Days since last insider transaction",
						Weight:      30,
						Polarity:    PolaritySymmetric,
						Kind:        KindNumeric,
						Thresholds:  ladder(below(7), between(7, 14), between(14, 30), between(30, 60), atLeast(60)),
					},
					{
						Key:         "transactionSize",
						Label:       "Transaction Size vs Float",
						Description: "Insider transaction value relative to float",
						Weight:      20,
						Polarity:    PolaritySymmetric,
						Kind:        KindNumeric,
						Thresholds:  ladder(atLeast(0.5), between(0.1, 0.5), between(0.05, 0.1), between(0.01, 0.05), below(0.01)),
					},
					{
						Key:         "insiderRole",
						Label:       "Insider Role Weight",
						Description: "Seniority of insiders making transactions",
						Weight:      20,
						Polarity:    PolaritySymmetric,
						Kind:        KindCategorical,
						Thresholds:  conditions(InsiderCSuite, InsiderVPDirector, InsiderMixed, InsiderHolders, InsiderNone),
					},
				},
			},
			{
				Key:         SectionNews,
				Label:       "News Sentiment",
				Description: "Market perception and news flow",
				Weight:      15,
				Metrics: []MetricDef{
					{
						Key:         "avgSentiment",
						Label:       "Average Sentiment Score",
						Description: "Mean sentiment of recent news articles (-1 to 1)",
						Weight:      35,
						Polarity:    PolarityBullish,
						Kind:        KindNumeric,
						Thresholds:  ladder(atLeast(0.5), between(0.2, 0.5), between(-0.2, 0.2), between(-0.5, -0.2), below(-0.5)),
					},
					{
						Key:         "sentimentMomentum",
						Label:       "Sentiment Trend (7-day)",
						Description: "Direction of sentiment change over last week",
						Weight:      30,
						Polarity:    PolarityBullish,
						Kind:        KindCategorical,
						Thresholds:  conditions(TrendStrongPositive, TrendImproving, TrendStable, TrendWorsening, TrendSharpNegative),
					},
					{
						Key:         "newsVolume",
						Label:       "News Volume (7-day)",
						Description: "Number of relevant news articles in last week",
						Weight:      20,
						Polarity:    PolaritySymmetric,
						Kind:        KindNumeric,
						Thresholds:  ladder(atLeast(10), between(6, 10), between(3, 6), between(1, 3), below(1)),
					},
					{
						Key:         "catalystPresence",
						Label:       "Upcoming Catalyst",
						Description: "Presence of near-term catalysts (earnings, FDA, etc.)",
						Weight:      15,
						Polarity:    PolarityBullish,
						Kind:        KindCategorical,
						Thresholds:  conditions(CatalystPositive, CatalystNeutral, CatalystNone, CatalystUncertain, CatalystNegative),
					},
				},
			},
			{
				Key:         SectionMacro,
				Label:       "Macro/Sector",
				Description: "Industry and macro context",
				Weight:      5,
				Metrics: []MetricDef{
					{
						Key:         "sectorMomentum",
						Label:       "Sector vs SPY (10-day)",
						Description: "Sector ETF performance relative to SPY over 10 days",
						Weight:      50,
						Polarity:    PolarityBullish,
						Kind:        KindNumeric,
						Thresholds:  ladder(atLeast(5), between(2, 5), between(-2, 2), between(-5, -2), below(-5)),
					},
					{
						Key:         "macroRiskFlags",
						Label:       "Macro Risk Environment",
						Description: "Overall macro risk assessment for the sector",
						Weight:      50,
						Polarity:    PolaritySymmetric,
						Kind:        KindCategorical,
						Thresholds:  conditions(MacroTailwinds, MacroLowRisk, MacroNeutral, MacroHeadwinds, MacroSevere),
					},
				},
			},
			{
				Key:         SectionAI,
				Label:       "AI Agent Evaluation",
				Description: "Model assessment of risk, entry timing and conviction",
				Weight:      15,
				Optional:    true,
				Metrics: []MetricDef{
					{
						Key:        "riskAssessment",
						Label:      "Risk Assessment",
						Weight:     40,
						Polarity:   PolaritySymmetric,
						Kind:       KindCategorical,
						Thresholds: conditions(RiskMinimal, RiskManageable, RiskModerate, RiskElevated, RiskHigh),
					},
					{
						Key:        "entryTiming",
						Label:      "Entry Timing",
						Weight:     30,
						Polarity:   PolaritySymmetric,
						Kind:       KindCategorical,
						Thresholds: conditions(TimingEarly, TimingOptimal, TimingMidway, TimingLate, TimingMissed),
					},
					{
						Key:        "conviction",
						Label:      "Conviction",
						Weight:     30,
						Polarity:   PolaritySymmetric,
						Kind:       KindCategorical,
						Thresholds: conditions(ConvictionVeryHigh, ConvictionHigh, ConvictionModerate, ConvictionLow, ConvictionNone),
					},
				},
			},
		},
	}
}
