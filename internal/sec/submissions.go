package sec

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
)

var _ interfaces.FilingProvider = (*Client)(nil)

// Filing identifies one document in EDGAR
type Filing struct {
	CIK             string
	FormType        string
	FilingDate      time.Time
	AccessionNumber string
	PrimaryDocument string
	URL             string
}

type companyTicker struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

type submissions struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// PadCIK left-pads a CIK to EDGAR's ten digits
func PadCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "0")
	if cik == "" {
		return ""
	}
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// LookupCIK maps a ticker to its CIK using the cached company_tickers.json
func (c *Client) LookupCIK(ctx context.Context, ticker string) (string, error) {
	ticker = models.NormalizeTicker(ticker)

	c.mu.Lock()
	fresh := c.ciks != nil && time.Since(c.ciksAt) < c.cikTTL
	if fresh {
		cik, ok := c.ciks[ticker]
		c.mu.Unlock()
		if !ok {
			return "", fmt.Errorf("no CIK for ticker %s", ticker)
		}
		return cik, nil
	}
	c.mu.Unlock()

	var raw map[string]companyTicker
	if err := c.fetchJSON(ctx, c.baseURL+"/files/company_tickers.json", &raw); err != nil {
		return "", err
	}

	table := make(map[string]string, len(raw))
	for _, entry := range raw {
		table[strings.ToUpper(entry.Ticker)] = PadCIK(strconv.FormatInt(entry.CIK, 10))
	}

	c.mu.Lock()
	c.ciks, c.ciksAt = table, time.Now()
	c.mu.Unlock()

	cik, ok := table[ticker]
	if !ok {
		return "", fmt.Errorf("no CIK for ticker %s", ticker)
	}
	return cik, nil
}

// LatestFiling returns the most recent filing of one of the configured form types
func (c *Client) LatestFiling(ctx context.Context, cik string) (*Filing, error) {
	cik = PadCIK(cik)
	if cik == "" {
		return nil, fmt.Errorf("CIK is required")
	}

	var subs submissions
	if err := c.fetchJSON(ctx, fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, cik), &subs); err != nil {
		return nil, err
	}

	recent := subs.Filings.Recent
	for i, form := range recent.Form {
		if !c.wantedForm(form) || i >= len(recent.AccessionNumber) || i >= len(recent.PrimaryDocument) {
			continue
		}
		accession := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		f := &Filing{
			CIK:             cik,
			FormType:        form,
			AccessionNumber: recent.AccessionNumber[i],
			PrimaryDocument: recent.PrimaryDocument[i],
			URL:             fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s", c.baseURL, strings.TrimLeft(cik, "0"), accession, recent.PrimaryDocument[i]),
		}
		if i < len(recent.FilingDate) {
			f.FilingDate, _ = time.Parse("2006-01-02", recent.FilingDate[i])
		}
		return f, nil
	}
	return nil, fmt.Errorf("no %s filing for CIK %s", strings.Join(c.formSet, "/"), cik)
}

func (c *Client) wantedForm(form string) bool {
	for _, f := range c.formSet {
		if f == form {
			return true
		}
	}
	return false
}

// GetLatestFiling fetches the latest 10-K/10-Q and extracts its narrative sections.
// cik may be empty, in which case it is looked up from the ticker.
func (c *Client) GetLatestFiling(ctx context.Context, ticker, cik string) (*models.FilingSummary, error) {
	if PadCIK(cik) == "" {
		found, err := c.LookupCIK(ctx, ticker)
		if err != nil {
			return nil, err
		}
		cik = found
	}

	filing, err := c.LatestFiling(ctx, cik)
	if err != nil {
		return nil, err
	}

	summary := &models.FilingSummary{
		FormType:   filing.FormType,
		FilingDate: filing.FilingDate,
		URL:        filing.URL,
	}

	html, err := c.fetch(ctx, filing.URL, 32<<20)
	if err != nil {
		// Metadata alone still grounds the report
		if c.logger != nil {
			c.logger.Warn().Err(err).Str("ticker", ticker).Str("url", filing.URL).Msg("Failed to fetch filing document")
		}
		return summary, nil
	}

	sections, err := ExtractSections(string(html), c.baseURL)
	if err != nil {
		return summary, nil
	}
	summary.Excerpt = sections.Excerpt(c.maxChars)
	return summary, nil
}
