package analyzer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"cityguard/llm"
	"cityguard/metrics"
	"cityguard/models"
	"cityguard/parser"

	"github.com/apex/log"
)

// Analyzer wraps an LLM client with the never-fail analysis contract:
// any provider or parsing failure degrades to a fallback verdict instead
// of surfacing an error to the pipeline.
type Analyzer struct {
	client llm.Client
}

func New(client llm.Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze scores one incident. It never returns an error.
func (a *Analyzer) Analyze(in models.IncidentInput) models.IncidentAnalysis {
	resp, err := a.client.AnalyzeIncident(in.Title, in.Description, in.Source, in.Location)
	if err != nil {
		log.Errorf("Failed to analyze incident %q: %v", in.Title, err)
		metrics.LLMFallbacks.Inc()
		return Fallback(in)
	}

	analysis, err := parser.ParseAnalysis(resp)
	if err != nil {
		log.Errorf("Failed to parse analysis for incident %q: %v", in.Title, err)
		metrics.LLMFallbacks.Inc()
		return Fallback(in)
	}

	return *analysis
}

// AssessCredibility runs the independent source-credibility check.
// Failures default to true (permissive).
func (a *Analyzer) AssessCredibility(content, sourceURL string) bool {
	resp, err := a.client.AssessCredibility(content, sourceURL)
	if err != nil {
		log.Errorf("Failed to assess source credibility: %v", err)
		return true
	}
	return strings.ToLower(strings.TrimSpace(resp)) == "true"
}

// SummarizeIncidents generates a dashboard digest of recent incidents,
// with a non-LLM fallback line on any failure.
func (a *Analyzer) SummarizeIncidents(incidents []models.Incident) string {
	if len(incidents) == 0 {
		return "No active incidents in your area."
	}

	top := incidents
	if len(top) > 10 {
		top = top[:10]
	}
	var b strings.Builder
	for _, inc := range top {
		text := inc.AISummary
		if text == "" {
			text = inc.Description
		}
		fmt.Fprintf(&b, "- %s: %s\n", inc.Title, truncate(text, 100))
	}

	summary, err := a.client.Summarize(b.String())
	if err != nil || strings.TrimSpace(summary) == "" {
		log.Errorf("Failed to summarize incidents: %v", err)
		return fmt.Sprintf("Found %d active incidents. Check individual alerts for details.", len(incidents))
	}
	return summary
}

// Fallback is the safety-net verdict used when the LLM is unavailable or
// returns something unusable.
func Fallback(in models.IncidentInput) models.IncidentAnalysis {
	return models.IncidentAnalysis{
		RelevanceScore: 0.5,
		Severity:       models.SeverityMedium,
		Category:       "other",
		IsCredible:     true,
		Summary:        fmt.Sprintf("%s: %s...", in.Title, truncate(in.Description, 100)),
	}
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
