package sec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filingHTML = `<html><head><title>10-K</title><style>p{}</style></head><body>
<p>Table of Contents</p>
<p>Item 1A. Risk Factors .... 12</p>
<p>Item 7. Management's Discussion and Analysis .... 40</p>
<h2>Item 1. Business</h2>
<p>We design widgets for industrial customers.</p>
<h2>Item 1A. Risk Factors</h2>
<p>Demand for widgets is cyclical and may decline.</p>
<h2>Item 2. Properties</h2>
<p>We lease an office.</p>
<h2>Item 7. Management's Discussion and Analysis of Financial Condition</h2>
<p>Revenue grew 12% on higher unit volume.</p>
<h2>Item 8. Financial Statements</h2>
<p>See notes.</p>
</body></html>`

func newEdgarServer(t *testing.T, userAgents *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "" {
			userAgents.Add(1)
		}
		_, _ = w.Write([]byte(`{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."},"1":{"cik_str":789019,"ticker":"MSFT","title":"Microsoft"}}`))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cik":"320193","name":"Apple Inc.","filings":{"recent":{
			"accessionNumber":["0000320193-25-000010","0000320193-25-000008"],
			"filingDate":["2025-02-01","2025-01-31"],
			"form":["4","10-Q"],
			"primaryDocument":["form4.xml","aapl-20241228.htm"]}}}`))
	})
	mux.HandleFunc("/Archives/edgar/data/320193/000032019325000008/aapl-20241228.htm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(filingHTML))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestPadCIK(t *testing.T) {
	assert.Equal(t, "0000320193", PadCIK("320193"))
	assert.Equal(t, "0000320193", PadCIK("0000320193"))
	assert.Equal(t, "", PadCIK("  "))
}

func TestLookupCIK(t *testing.T) {
	var uas atomic.Int32
	server := newEdgarServer(t, &uas)
	client := NewClient("insiderlens test@example.com", WithBaseURL(server.URL), WithRateLimit(100))

	cik, err := client.LookupCIK(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", cik)

	// Served from cache
	cik, err = client.LookupCIK(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "0000789019", cik)
	assert.Equal(t, int32(1), uas.Load())

	_, err = client.LookupCIK(context.Background(), "ZZZZ")
	assert.Error(t, err)
}

func TestLatestFilingSkipsOtherForms(t *testing.T) {
	var uas atomic.Int32
	server := newEdgarServer(t, &uas)
	client := NewClient("insiderlens test@example.com", WithBaseURL(server.URL), WithRateLimit(100))

	filing, err := client.LatestFiling(context.Background(), "320193")
	require.NoError(t, err)
	assert.Equal(t, "10-Q", filing.FormType)
	assert.Equal(t, "2025-01-31", filing.FilingDate.Format("2006-01-02"))
	assert.True(t, strings.HasSuffix(filing.URL, "/Archives/edgar/data/320193/000032019325000008/aapl-20241228.htm"))
}

func TestGetLatestFiling(t *testing.T) {
	var uas atomic.Int32
	server := newEdgarServer(t, &uas)
	client := NewClient("insiderlens test@example.com", WithBaseURL(server.URL), WithRateLimit(100))

	summary, err := client.GetLatestFiling(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Equal(t, "10-Q", summary.FormType)
	assert.Contains(t, summary.Excerpt, "Revenue grew 12%")
	assert.Contains(t, summary.Excerpt, "cyclical")
	assert.NotContains(t, summary.Excerpt, "We lease an office")
}

func TestExtractSections(t *testing.T) {
	sections, err := ExtractSections(filingHTML, "https://www.sec.gov")
	require.NoError(t, err)

	assert.Contains(t, sections.Business, "widgets for industrial customers")
	assert.Contains(t, sections.RiskFactors, "cyclical")
	assert.NotContains(t, sections.RiskFactors, "Properties")
	assert.Contains(t, sections.ManagementAnalysis, "Revenue grew 12%")
	assert.NotContains(t, sections.ManagementAnalysis, "See notes")
}

func TestExcerptLimits(t *testing.T) {
	s := &Sections{Business: "business only"}
	assert.Equal(t, "business only", s.Excerpt(100))

	s = &Sections{ManagementAnalysis: strings.Repeat("a", 50), RiskFactors: "risk"}
	assert.Len(t, s.Excerpt(20), 20)
}
