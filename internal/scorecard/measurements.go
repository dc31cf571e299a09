package scorecard

// Measurements is the raw input bundle for one ticker. Nil sections and nil
// values are treated as unavailable data and score as missing.
type Measurements struct {
	Ticker       string             `json:"ticker"`
	Fundamentals *FundamentalsInput `json:"fundamentals,omitempty"`
	Technicals   *TechnicalsInput   `json:"technicals,omitempty"`
	Insider      *InsiderInput      `json:"insider_activity,omitempty"`
	News         *NewsInput         `json:"news_sentiment,omitempty"`
	Macro        *MacroInput        `json:"macro_sector,omitempty"`
	AI           *AIEvaluation      `json:"ai_agent_evaluation,omitempty"`
}

// FundamentalsInput holds growth and balance sheet measurements
type FundamentalsInput struct {
	RevenueGrowthYoY  *float64  `json:"revenue_growth_yoy,omitempty"` // %
	EPSGrowthYoY      *float64  `json:"eps_growth_yoy,omitempty"`     // %
	ProfitMarginTrend Condition `json:"profit_margin_trend,omitempty"`
	FreeCashFlow      *float64  `json:"free_cash_flow,omitempty"`
	TotalDebt         *float64  `json:"total_debt,omitempty"`
	DebtToEquity      *float64  `json:"debt_to_equity,omitempty"`
}

// TechnicalsInput holds price-derived measurements
type TechnicalsInput struct {
	CurrentPrice      *float64  `json:"current_price,omitempty"`
	SMA5              *float64  `json:"sma5,omitempty"`
	SMA10             *float64  `json:"sma10,omitempty"`
	SMA20             *float64  `json:"sma20,omitempty"`
	RSI               *float64  `json:"rsi,omitempty"`
	RSIDirection      Direction `json:"rsi_direction,omitempty"`
	MACDLine          *float64  `json:"macd_line,omitempty"`
	MACDSignal        *float64  `json:"macd_signal,omitempty"`
	MACDHistogram     *float64  `json:"macd_histogram,omitempty"`
	VolumeVsAvg       *float64  `json:"volume_vs_avg,omitempty"`
	PriceConfirmation bool      `json:"price_confirmation"`
	NearSupport       bool      `json:"near_support"`
	NearResistance    bool      `json:"near_resistance"`
	Breakout          Breakout  `json:"breakout,omitempty"`
}

// InsiderInput holds insider transaction aggregates
type InsiderInput struct {
	NetBuyRatio30d           *float64 `json:"net_buy_ratio_30d,omitempty"` // -100..100
	DaysSinceLastTransaction *int     `json:"days_since_last_transaction,omitempty"`
	TransactionSizeVsFloat   *float64 `json:"transaction_size_vs_float,omitempty"` // %
	Roles                    []Role   `json:"roles,omitempty"`
}

// NewsInput holds news sentiment aggregates
type NewsInput struct {
	AvgSentiment     *float64  `json:"avg_sentiment,omitempty"` // -1..1
	SentimentTrend   Condition `json:"sentiment_trend,omitempty"`
	NewsCount7d      *int      `json:"news_count_7d,omitempty"`
	UpcomingCatalyst Condition `json:"upcoming_catalyst,omitempty"`
}

// MacroInput holds sector and macro measurements
type MacroInput struct {
	SectorVsSPY10d       *float64  `json:"sector_vs_spy_10d,omitempty"` // %
	MacroRiskEnvironment Condition `json:"macro_risk_environment,omitempty"`
}

// AIRationale explains each component of an AIEvaluation
type AIRationale struct {
	Risk       string `json:"risk"`
	Timing     string `json:"timing"`
	Conviction string `json:"conviction"`
}

// AIEvaluation is the evaluative model's opinion folded into the card
type AIEvaluation struct {
	RiskAssessment Condition   `json:"riskAssessment"`
	EntryTiming    Condition   `json:"entryTiming"`
	Conviction     Condition   `json:"conviction"`
	Rationale      AIRationale `json:"rationale"`
}

// Direction is a short-term indicator direction
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionFlat    Direction = "flat"
)

// Breakout describes a close through a key level
type Breakout string

const (
	BreakoutNone            Breakout = "none"
	BreakoutAboveResistance Breakout = "above_resistance"
	BreakoutBelowSupport    Breakout = "below_support"
)

// Role is a normalised insider role
type Role string

const (
	RoleCEO      Role = "ceo"
	RoleCFO      Role = "cfo"
	RoleCOO      Role = "coo"
	RoleVP       Role = "vp"
	RoleDirector Role = "director"
	RoleHolder   Role = "10%_holder"
)
