package analyzer

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"cityguard/models"
)

// fakeClient scripts the three LLM calls for a test.
type fakeClient struct {
	analyzeResp     string
	analyzeErr      error
	credibilityResp string
	credibilityErr  error
	summarizeResp   string
	summarizeErr    error
}

func (f *fakeClient) AnalyzeIncident(title, description, source, location string) (string, error) {
	return f.analyzeResp, f.analyzeErr
}

func (f *fakeClient) AssessCredibility(content, sourceURL string) (string, error) {
	return f.credibilityResp, f.credibilityErr
}

func (f *fakeClient) Summarize(incidentsText string) (string, error) {
	return f.summarizeResp, f.summarizeErr
}

func (f *fakeClient) SourceName() string { return "fake" }

func TestAnalyzeSuccess(t *testing.T) {
	a := New(&fakeClient{
		analyzeResp: `{"relevance_score": 0.9, "severity": "critical", "category": "emergency",
			"is_credible": true, "summary": "Gas leak, avoid the area."}`,
	})

	got := a.Analyze(models.IncidentInput{Title: "Gas leak", Description: "reported"})
	if got.RelevanceScore != 0.9 || got.Severity != models.SeverityCritical {
		t.Errorf("Analyze() = %+v, want relevance 0.9 severity critical", got)
	}
}

func TestAnalyzeFallsBackOnProviderError(t *testing.T) {
	a := New(&fakeClient{analyzeErr: errors.New("upstream 500")})

	in := models.IncidentInput{
		Title:       "Road flooding",
		Description: strings.Repeat("water everywhere ", 20),
	}
	got := a.Analyze(in)

	if got.RelevanceScore != 0.5 {
		t.Errorf("fallback relevance = %v, want 0.5", got.RelevanceScore)
	}
	if got.Severity != models.SeverityMedium {
		t.Errorf("fallback severity = %q, want medium", got.Severity)
	}
	if got.Category != "other" {
		t.Errorf("fallback category = %q, want other", got.Category)
	}
	if !got.IsCredible {
		t.Errorf("fallback should assume credibility")
	}
	if !strings.HasPrefix(got.Summary, "Road flooding: ") || !strings.HasSuffix(got.Summary, "...") {
		t.Errorf("fallback summary = %q", got.Summary)
	}
}

func TestAnalyzeFallsBackOnUnparseableResponse(t *testing.T) {
	a := New(&fakeClient{analyzeResp: "I cannot help with that."})

	got := a.Analyze(models.IncidentInput{Title: "Protest downtown", Description: "short"})
	if got.RelevanceScore != 0.5 || got.Severity != models.SeverityMedium {
		t.Errorf("expected fallback verdict, got %+v", got)
	}
}

func TestAnalyzeFallsBackOnMissingRequiredFields(t *testing.T) {
	// Valid JSON without relevance_score and is_credible must not slip
	// through as zero values; that verdict would silently drop the incident.
	a := New(&fakeClient{analyzeResp: `{"severity": "high", "category": "other",
		"summary": "Gas leak downtown."}`})

	got := a.Analyze(models.IncidentInput{Title: "Gas leak", Description: "reported"})
	if got.RelevanceScore != 0.5 {
		t.Errorf("relevance = %v, want fallback 0.5", got.RelevanceScore)
	}
	if !got.IsCredible {
		t.Errorf("fallback verdict must assume credibility")
	}
	if got.Severity != models.SeverityMedium || got.Category != "other" {
		t.Errorf("expected fallback verdict, got %+v", got)
	}
}

func TestFallbackSummaryKeepsValidUTF8(t *testing.T) {
	// Byte 100 of this description lands inside a two-byte rune.
	in := models.IncidentInput{
		Title:       "Weather Alert: Snow",
		Description: "x" + strings.Repeat("°", 60),
	}

	got := Fallback(in)
	if !utf8.ValidString(got.Summary) {
		t.Errorf("truncated summary is not valid UTF-8: %q", got.Summary)
	}
	if !strings.HasSuffix(got.Summary, "...") {
		t.Errorf("summary = %q, want truncation marker", got.Summary)
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		max      int
		expected string
	}{
		{"short string untouched", "abc", 10, "abc"},
		{"ascii cut", "abcdef", 3, "abc"},
		{"cut lands mid-rune", "ab°cd", 3, "ab"},
		{"cut lands on rune start", "ab°cd", 4, "ab°"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.s, tt.max); got != tt.expected {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.expected)
			}
		})
	}
}

func TestAssessCredibility(t *testing.T) {
	tests := []struct {
		name     string
		resp     string
		err      error
		expected bool
	}{
		{"credible", "true", nil, true},
		{"credible with whitespace", "  True\n", nil, true},
		{"not credible", "false", nil, false},
		{"garbage response", "maybe?", nil, false},
		{"provider error defaults to credible", "", errors.New("timeout"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(&fakeClient{credibilityResp: tt.resp, credibilityErr: tt.err})
			if got := a.AssessCredibility("content", "https://example.com"); got != tt.expected {
				t.Errorf("AssessCredibility() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSummarizeIncidents(t *testing.T) {
	incidents := []models.Incident{
		{Title: "Fire on 5th Ave", AISummary: "Structure fire, road closed."},
		{Title: "Water main break", Description: "Flooding near the park."},
	}

	t.Run("uses LLM digest", func(t *testing.T) {
		a := New(&fakeClient{summarizeResp: "Two disruptions downtown tonight."})
		if got := a.SummarizeIncidents(incidents); got != "Two disruptions downtown tonight." {
			t.Errorf("SummarizeIncidents() = %q", got)
		}
	})

	t.Run("falls back on error", func(t *testing.T) {
		a := New(&fakeClient{summarizeErr: errors.New("quota exceeded")})
		got := a.SummarizeIncidents(incidents)
		if got != "Found 2 active incidents. Check individual alerts for details." {
			t.Errorf("SummarizeIncidents() fallback = %q", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		a := New(&fakeClient{})
		if got := a.SummarizeIncidents(nil); got != "No active incidents in your area." {
			t.Errorf("SummarizeIncidents(nil) = %q", got)
		}
	})
}
