package macro

import (
	"strings"

	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
)

// Benchmark symbols
const (
	SPYSymbol = "SPY.US"
	VIXSymbol = "VIX.INDX"
)

// industryETF maps lower-cased industry and sector names onto SPDR sector ETFs
var industryETF = map[string]string{
	"technology":                     "XLK",
	"information technology":         "XLK",
	"software":                       "XLK",
	"software - application":         "XLK",
	"software - infrastructure":      "XLK",
	"semiconductors":                 "XLK",
	"financials":                     "XLF",
	"financial services":             "XLF",
	"banking":                        "XLF",
	"banks":                          "XLF",
	"banks - regional":               "XLF",
	"capital markets":                "XLF",
	"insurance":                      "XLF",
	"diversified financial services": "XLF",
	"healthcare":                     "XLV",
	"health care":                    "XLV",
	"biotechnology":                  "XLV",
	"pharmaceuticals":                "XLV",
	"medical devices":                "XLV",
	"energy":                         "XLE",
	"oil & gas":                      "XLE",
	"oil and gas":                    "XLE",
	"industrials":                    "XLI",
	"industrial":                     "XLI",
	"aerospace & defense":            "XLI",
	"construction":                   "XLI",
	"machinery":                      "XLI",
	"consumer discretionary":         "XLY",
	"consumer cyclical":              "XLY",
	"retail":                         "XLY",
	"consumer staples":               "XLP",
	"consumer defensive":             "XLP",
	"utilities":                      "XLU",
	"utility":                        "XLU",
	"real estate":                    "XLRE",
	"reits":                          "XLRE",
	"materials":                      "XLB",
	"basic materials":                "XLB",
	"communication services":         "XLC",
	"telecommunications":             "XLC",
	"media":                          "XLC",
}

// SectorETF returns the sector ETF for an industry, or "" for General Market and unknown industries
func SectorETF(industry string) string {
	industry = models.NormalizeIndustry(industry)
	if industry == models.GeneralMarket {
		return ""
	}
	return industryETF[strings.ToLower(industry)]
}

// VIXInterpretation bands the VIX level
func VIXInterpretation(vix float64) string {
	switch {
	case vix < 15:
		return "low_fear"
	case vix < 20:
		return "moderate_fear"
	case vix < 30:
		return "high_fear"
	default:
		return "extreme_fear"
	}
}

// RiskCondition derives the scorecard's macro risk environment from the
// advisor recommendation and the VIX level
func RiskCondition(a *models.MacroAnalysis) scorecard.Condition {
	if a == nil {
		return ""
	}
	vix := a.Snapshot.VIXLevel
	switch a.Recommendation {
	case models.MacroGood:
		if vix > 0 && vix < 20 {
			return scorecard.MacroTailwinds
		}
		return scorecard.MacroLowRisk
	case models.MacroRisky:
		return scorecard.MacroHeadwinds
	case models.MacroBad:
		return scorecard.MacroSevere
	default:
		if vix >= 30 {
			return scorecard.MacroHeadwinds
		}
		return scorecard.MacroNeutral
	}
}

// Input converts a macro record into scorecard input
func Input(a *models.MacroAnalysis) *scorecard.MacroInput {
	if a == nil {
		return nil
	}
	return &scorecard.MacroInput{
		SectorVsSPY10d:       a.Snapshot.SectorVsSPY10d,
		MacroRiskEnvironment: RiskCondition(a),
	}
}
