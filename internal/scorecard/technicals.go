package scorecard

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Candle is a single daily OHLCV bar
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Level detection parameters
const (
	LevelLookback = 20
	LevelBand     = 0.02
)

// SortCandles returns a copy of candles ordered oldest first
func SortCandles(candles []Candle) []Candle {
	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// SMA returns the simple moving average of the last period closes.
// sorted must be ordered oldest first.
func SMA(sorted []Candle, period int) *float64 {
	if period <= 0 || len(sorted) < period {
		return nil
	}
	sum := 0.0
	for _, c := range sorted[len(sorted)-period:] {
		sum += c.Close
	}
	return Float(sum / float64(period))
}

// VolumeVsAverage returns the latest volume divided by the average of the
// preceding period sessions
func VolumeVsAverage(sorted []Candle, period int) *float64 {
	if period <= 0 || len(sorted) < period+1 {
		return nil
	}
	sum := 0.0
	for _, c := range sorted[len(sorted)-period-1 : len(sorted)-1] {
		sum += c.Volume
	}
	avg := sum / float64(period)
	if avg <= 0 {
		return nil
	}
	return Float(sorted[len(sorted)-1].Volume / avg)
}

// PriceLevels compares the latest close against the high/low range of the
// preceding lookback sessions
func PriceLevels(sorted []Candle, lookback int, band float64) (nearSupport, nearResistance bool, breakout Breakout) {
	breakout = BreakoutNone
	if lookback <= 0 || len(sorted) < 2 {
		return false, false, breakout
	}
	start := len(sorted) - 1 - lookback
	if start < 0 {
		start = 0
	}
	prior := sorted[start : len(sorted)-1]
	high, low := math.Inf(-1), math.Inf(1)
	for _, c := range prior {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	closePrice := sorted[len(sorted)-1].Close

	switch {
	case closePrice > high:
		breakout = BreakoutAboveResistance
	case closePrice < low:
		breakout = BreakoutBelowSupport
	default:
		nearSupport = closePrice <= low*(1+band)
		nearResistance = !nearSupport && closePrice >= high*(1-band)
	}
	return nearSupport, nearResistance, breakout
}

// ExtractTechnicals derives SMA, volume and key level inputs from a daily series.
// Oscillator fields (RSI, MACD) are left for the caller to fill.
func ExtractTechnicals(candles []Candle) *TechnicalsInput {
	if len(candles) == 0 {
		return nil
	}
	sorted := SortCandles(candles)
	last := sorted[len(sorted)-1]

	t := &TechnicalsInput{
		CurrentPrice: Float(last.Close),
		SMA5:         SMA(sorted, 5),
		SMA10:        SMA(sorted, 10),
		SMA20:        SMA(sorted, 20),
		VolumeVsAvg:  VolumeVsAverage(sorted, 10),
	}
	if len(sorted) > 1 {
		t.PriceConfirmation = last.Close > sorted[len(sorted)-2].Close
	}
	t.NearSupport, t.NearResistance, t.Breakout = PriceLevels(sorted, LevelLookback, LevelBand)
	return t
}

// SMAAlignment classifies price against the 5/10/20 SMAs. Returns "" when any input is missing.
func SMAAlignment(price, sma5, sma10, sma20 *float64) Condition {
	if !present(price) || !present(sma5) || !present(sma10) || !present(sma20) {
		return ""
	}
	p, s5, s10, s20 := *price, *sma5, *sma10, *sma20
	switch {
	case p > s5 && s5 > s10 && s10 > s20:
		return SMABullishAligned
	case p < s5 && s5 < s10 && s10 < s20:
		return SMABearishAligned
	case p > s5 && p > s10 && p > s20:
		return SMAMixedBullish
	case p < s5 && p < s10 && p < s20:
		return SMAMixedBearish
	default:
		return SMANeutral
	}
}

// macdStrength separates a crossover from plain momentum
const macdStrength = 0.5

// MACDCondition classifies MACD line, signal and histogram. Returns "" when any input is missing.
func MACDCondition(line, signal, histogram *float64) Condition {
	if !present(line) || !present(signal) || !present(histogram) {
		return ""
	}
	l, s, h := *line, *signal, *histogram
	switch {
	case l > s && h > 0:
		if h > macdStrength {
			return MACDStrongBullish
		}
		return MACDBullish
	case l < s && h < 0:
		if h < -macdStrength {
			return MACDStrongBearish
		}
		return MACDBearish
	default:
		return MACDFlat
	}
}

// RSICondition classifies RSI level and short-term direction. Returns "" when RSI is missing.
func RSICondition(rsi *float64, direction Direction) Condition {
	if !present(rsi) {
		return ""
	}
	r := *rsi
	switch {
	case r >= 80 || r <= 20:
		return RSIExtreme
	case r >= 70 || r <= 30:
		return RSIApproachingExtreme
	case r >= 40 && r <= 60 && direction == DirectionRising:
		return RSISweetSpot
	case r >= 45 && r <= 55 && direction == DirectionFlat:
		return RSIFlat
	default:
		return RSIFavorable
	}
}

// RSIDirectionFrom derives direction from the last three RSI values (oldest first)
func RSIDirectionFrom(values []float64) Direction {
	if len(values) < 2 {
		return ""
	}
	if len(values) > 3 {
		values = values[len(values)-3:]
	}
	delta := values[len(values)-1] - values[0]
	switch {
	case delta > 1:
		return DirectionRising
	case delta < -1:
		return DirectionFalling
	default:
		return DirectionFlat
	}
}

// PriceLevelCondition maps breakout and proximity flags to a condition
func PriceLevelCondition(breakout Breakout, nearSupport, nearResistance bool) Condition {
	switch {
	case breakout == BreakoutAboveResistance:
		return LevelBreakout
	case breakout == BreakoutBelowSupport:
		return LevelBreakdown
	case nearSupport:
		return LevelNearSupport
	case nearResistance:
		return LevelNearResist
	default:
		return LevelMidRange
	}
}

var roleKeywords = []struct {
	role     Role
	keywords []string
}{
	{RoleCEO, []string{"ceo", "chief executive", "president", "principal executive", "managing director", "general manager", "executive director"}},
	{RoleCFO, []string{"cfo", "chief financial", "principal financial", "treasurer", "controller", "comptroller", "chief accounting", "principal accounting"}},
	{RoleCOO, []string{"coo", "chief operating", "principal operating", "chief administrative", "chief business", "chief strategy"}},
	{RoleVP, []string{"vp", "vice president", "vice-president", "senior vice", "executive vice", "group vice", "corporate vice"}},
	{RoleDirector, []string{"director", "chairman", "chairwoman", "chairperson", "board member", "board chair", "trustee", "non-executive", "independent member", "lead independent"}},
	{RoleHolder, []string{"10%", "beneficial owner", "10 percent", "ten percent", "major shareholder", "significant shareholder", "principal shareholder"}},
}

// NormalizeInsiderRoles maps a filing title such as "Chairman & CEO" onto roles
func NormalizeInsiderRoles(title string) []Role {
	title = strings.ToLower(title)
	if strings.TrimSpace(title) == "" {
		return nil
	}
	var roles []Role
	for _, rk := range roleKeywords {
		for _, kw := range rk.keywords {
			if strings.Contains(title, kw) {
				roles = append(roles, rk.role)
				break
			}
		}
	}
	return roles
}

// InsiderRoleCondition classifies the seniority of the insiders involved
func InsiderRoleCondition(roles []Role) Condition {
	if len(roles) == 0 {
		return InsiderNone
	}
	cSuite, vpOrDirector, onlyHolders := false, false, true
	for _, r := range roles {
		switch r {
		case RoleCEO, RoleCFO, RoleCOO:
			cSuite = true
		case RoleVP, RoleDirector:
			vpOrDirector = true
		}
		if r != RoleHolder {
			onlyHolders = false
		}
	}
	switch {
	case cSuite:
		return InsiderCSuite
	case vpOrDirector:
		return InsiderVPDirector
	case onlyHolders:
		return InsiderHolders
	default:
		return InsiderMixed
	}
}

// ProfitMarginTrend compares the current margin with the year-ago margin.
// Without a previous margin the level of the current margin is used.
func ProfitMarginTrend(current, previous *float64) Condition {
	if !present(current) {
		return ""
	}
	c := *current
	if !present(previous) || *previous == 0 {
		switch {
		case c > 0.20:
			return MarginStrongGrowth
		case c > 0.15:
			return MarginImproving
		case c > 0.05:
			return MarginStable
		case c > 0:
			return MarginDeclining
		default:
			return MarginDecliningFast
		}
	}
	change := (c - *previous) / math.Abs(*previous) * 100
	switch {
	case change > 10:
		return MarginStrongGrowth
	case change > 2:
		return MarginImproving
	case change >= -2:
		return MarginStable
	case change >= -10:
		return MarginDeclining
	default:
		return MarginDecliningFast
	}
}

// SentimentTrend classifies the shift between recent and prior average sentiment
func SentimentTrend(recent, prior float64) Condition {
	diff := recent - prior
	switch {
	case diff > 0.3:
		return TrendStrongPositive
	case diff > 0.1:
		return TrendImproving
	case diff >= -0.1:
		return TrendStable
	case diff >= -0.3:
		return TrendWorsening
	default:
		return TrendSharpNegative
	}
}
