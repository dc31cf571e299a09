// Package narrative writes the qualitative report that accompanies a scorecard
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/interfaces"
	"github.com/ternarybob/insiderlens/internal/models"
	"github.com/ternarybob/insiderlens/internal/scorecard"
	"github.com/ternarybob/insiderlens/internal/services/llm"
)

var _ interfaces.NarrativeGenerator = (*Service)(nil)

var ratings = []interface{}{"strong_buy", "buy", "hold", "avoid", "strong_avoid", "sell"}

var responseSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"overallRating", "confidenceScore", "summary", "financialHealth", "recommendation"},
	"properties": map[string]interface{}{
		"overallRating":   map[string]interface{}{"type": "string", "enum": ratings},
		"confidenceScore": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
		"summary":         map[string]interface{}{"type": "string"},
		"recommendation":  map[string]interface{}{"type": "string"},
		"financialHealth": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"score":      map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
				"strengths":  stringArray,
				"weaknesses": stringArray,
				"redFlags":   stringArray,
			},
		},
		"technicalAnalysis": subScore("bullish", "bearish", "neutral"),
		"sentimentAnalysis": subScore("positive", "negative", "neutral"),
		"risks":             stringArray,
		"opportunities":     stringArray,
	},
}

var stringArray = map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}}

func subScore(trends ...interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"score": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
			"trend": map[string]interface{}{"type": "string", "enum": trends},
		},
	}
}

type narrativeResponse struct {
	OverallRating   string `json:"overallRating"`
	ConfidenceScore int    `json:"confidenceScore"`
	Summary         string `json:"summary"`
	Recommendation  string `json:"recommendation"`
	FinancialHealth struct {
		Score      int      `json:"score"`
		Strengths  []string `json:"strengths"`
		Weaknesses []string `json:"weaknesses"`
		RedFlags   []string `json:"redFlags"`
	} `json:"financialHealth"`
	TechnicalAnalysis struct {
		Score int    `json:"score"`
		Trend string `json:"trend"`
	} `json:"technicalAnalysis"`
	SentimentAnalysis struct {
		Score int    `json:"score"`
		Trend string `json:"trend"`
	} `json:"sentimentAnalysis"`
	Risks         []string `json:"risks"`
	Opportunities []string `json:"opportunities"`
}

// Service implements interfaces.NarrativeGenerator
type Service struct {
	generator interfaces.ContentGenerator
	model     string
	logger    arbor.ILogger
}

// NewService creates a narrative generator. An empty model uses the generator's default.
func NewService(generator interfaces.ContentGenerator, model string, logger arbor.ILogger) *Service {
	return &Service{generator: generator, model: model, logger: logger}
}

// Generate writes the report for a scored ticker
func (s *Service) Generate(ctx context.Context, request models.NarrativeRequest) (*models.Narrative, error) {
	resp, err := s.generator.GenerateContent(ctx, &interfaces.ContentRequest{
		Model:             s.model,
		Temperature:       0.3,
		MaxTokens:         4096,
		SystemInstruction: "You are an investor writing a decisive 1-2 week trade assessment. Reference actual numbers. Return only JSON.",
		Messages:          []interfaces.Message{{Role: "user", Content: BuildPrompt(request)}},
		OutputSchema:      responseSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("narrative generation failed: %w", err)
	}

	narrative, err := ParseNarrative(resp.Text)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("ticker", request.Context.Ticker).
		Str("rating", narrative.OverallRating).
		Int("confidence", narrative.ConfidenceScore).
		Msg("Narrative generated")
	return narrative, nil
}

// ParseNarrative maps a model answer onto the report, clamping sub-scores to 0-100
func ParseNarrative(text string) (*models.Narrative, error) {
	var parsed narrativeResponse
	if err := llm.DecodeJSON(text, &parsed); err != nil {
		return nil, fmt.Errorf("narrative parse error: %w", err)
	}
	if strings.TrimSpace(parsed.Summary) == "" || parsed.OverallRating == "" {
		return nil, fmt.Errorf("narrative parse error: missing summary or rating")
	}

	return &models.Narrative{
		OverallRating:   strings.ToLower(strings.TrimSpace(parsed.OverallRating)),
		Recommendation:  strings.TrimSpace(parsed.Recommendation),
		ConfidenceScore: scorecard.ClampInt(parsed.ConfidenceScore, 0, 100),
		Summary:         strings.TrimSpace(parsed.Summary),
		FinancialHealth: models.FinancialHealth{
			Score:      scorecard.ClampInt(parsed.FinancialHealth.Score, 0, 100),
			Strengths:  parsed.FinancialHealth.Strengths,
			Weaknesses: parsed.FinancialHealth.Weaknesses,
			RedFlags:   parsed.FinancialHealth.RedFlags,
		},
		TechnicalScore: scorecard.ClampInt(parsed.TechnicalAnalysis.Score, 0, 100),
		TechnicalTrend: parsed.TechnicalAnalysis.Trend,
		SentimentScore: scorecard.ClampInt(parsed.SentimentAnalysis.Score, 0, 100),
		SentimentTrend: parsed.SentimentAnalysis.Trend,
		KeyRisks:       parsed.Risks,
		Opportunities:  parsed.Opportunities,
	}, nil
}

// QuickSummary renders a one-line digest such as "BUY (78/100) - summary"
func QuickSummary(n *models.Narrative) string {
	if n == nil {
		return ""
	}
	rating := strings.ToUpper(strings.ReplaceAll(n.OverallRating, "_", " "))
	return fmt.Sprintf("%s (%d/100) - %s", rating, n.ConfidenceScore, n.Summary)
}
