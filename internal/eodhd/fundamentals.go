package eodhd

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/insiderlens/internal/models"
)

// ToCompanyFundamentals maps the raw fundamentals payload onto the pipeline model.
func (f *FundamentalsResponse) ToCompanyFundamentals(ticker string) *models.CompanyFundamentals {
	out := &models.CompanyFundamentals{Ticker: models.NormalizeTicker(ticker)}
	if f == nil {
		return out
	}

	if g := f.General; g != nil {
		out.Name = g.Name
		out.Sector = g.Sector
		out.Industry = g.Industry
		if out.Industry == "" {
			out.Industry = g.GicIndustry
		}
		out.CIK = g.CIK
	}

	if h := f.Highlights; h != nil {
		out.MarketCap = h.MarketCapitalization.Value
		out.RevenueGrowthYoY = h.QuarterlyRevenueGrowthYOY.Ptr()
		out.EPSGrowthYoY = h.QuarterlyEarningsGrowthYOY.Ptr()
		out.ProfitMargin = h.ProfitMargin.Ptr()
	}

	if s := f.SharesStats; s != nil {
		out.SharesFloat = s.SharesFloat.Value
		if out.SharesFloat == 0 {
			out.SharesFloat = s.SharesOutstanding.Value
		}
	}

	if fin := f.Financials; fin != nil {
		if income := fin.IncomeStatement; income != nil {
			margins := yearlyMargins(income)
			if out.ProfitMargin == nil && len(margins) > 0 {
				out.ProfitMargin = &margins[0]
			}
			if len(margins) > 1 {
				out.PreviousProfitMargin = &margins[1]
			}
		}
		if cash := fin.CashFlow; cash != nil {
			out.FreeCashFlow = latestItem(cash.Yearly, "freeCashFlow")
		}
		if balance := fin.BalanceSheet; balance != nil {
			out.TotalDebt = latestItem(balance.Quarterly, "shortLongTermDebtTotal")
			if out.TotalDebt == nil {
				out.TotalDebt = latestItem(balance.Quarterly, "longTermDebt")
			}
			out.TotalEquity = latestItem(balance.Quarterly, "totalStockholderEquity")
		}
	}

	return out
}

// sortedPeriods returns period keys newest first
func sortedPeriods(periods map[string]map[string]interface{}) []string {
	keys := make([]string, 0, len(periods))
	for k := range periods {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

func latestItem(periods map[string]map[string]interface{}, item string) *float64 {
	for _, period := range sortedPeriods(periods) {
		if v := numberOf(periods[period][item]); v != nil {
			return v
		}
	}
	return nil
}

// yearlyMargins returns net income over revenue per fiscal year, newest first
func yearlyMargins(income *FinancialStatement) []float64 {
	var margins []float64
	for _, period := range sortedPeriods(income.Yearly) {
		row := income.Yearly[period]
		net, revenue := numberOf(row["netIncome"]), numberOf(row["totalRevenue"])
		if net == nil || revenue == nil || *revenue == 0 {
			continue
		}
		margins = append(margins, *net / *revenue)
	}
	return margins
}

func numberOf(v interface{}) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
