package sec

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// Sections holds the narrative parts of a 10-K/10-Q as markdown
type Sections struct {
	Business           string
	RiskFactors        string
	ManagementAnalysis string
}

const sectionChars = 10000

var (
	mdaHeading      = regexp.MustCompile(`(?i)item\s*[27]\.?\s*[\-:.]?\s*management['’]?s\s+discussion`)
	riskHeading     = regexp.MustCompile(`(?i)item\s*1a\.?\s*[\-:.]?\s*risk\s+factors`)
	businessHeading = regexp.MustCompile(`(?i)item\s*1\.?\s*[\-:.]?\s*business\b`)
	nextItem        = regexp.MustCompile(`(?i)\n[#*\s]*item\s*\d+[a-z]?\.`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
)

// ExtractSections converts the filing HTML to markdown and slices out the
// business, risk factor and MD&A sections. The last heading match wins so the
// table of contents is skipped.
func ExtractSections(html, baseURL string) (*Sections, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse filing HTML: %w", err)
	}

	// Inline XBRL headers and page furniture carry no narrative
	doc.Find("script, style, head, ix\\:header, [style*='display:none']").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	bodyHTML, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render filing body: %w", err)
	}

	markdown, err := md.NewConverter(baseURL, true, nil).ConvertString(bodyHTML)
	if err != nil || strings.TrimSpace(markdown) == "" {
		markdown = body.Text()
	}
	markdown = blankRuns.ReplaceAllString(markdown, "\n\n")

	return &Sections{
		Business:           section(markdown, businessHeading),
		RiskFactors:        section(markdown, riskHeading),
		ManagementAnalysis: section(markdown, mdaHeading),
	}, nil
}

func section(text string, heading *regexp.Regexp) string {
	matches := heading.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return ""
	}
	start := matches[len(matches)-1][0]
	rest := text[start:]

	// Stop at the next "Item N." heading after this one
	if loc := nextItem.FindStringIndex(rest[min(len(rest), 20):]); loc != nil {
		rest = rest[:loc[0]+min(len(rest), 20)]
	}
	rest = strings.TrimSpace(rest)
	if len(rest) > sectionChars {
		rest = rest[:sectionChars]
	}
	return rest
}

// Excerpt joins MD&A and risk factors (falling back to business) within maxChars
func (s *Sections) Excerpt(maxChars int) string {
	var parts []string
	for _, p := range []string{s.ManagementAnalysis, s.RiskFactors} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 && s.Business != "" {
		parts = append(parts, s.Business)
	}
	out := strings.Join(parts, "\n\n")
	if maxChars > 0 && len(out) > maxChars {
		out = strings.TrimSpace(out[:maxChars])
	}
	return out
}
