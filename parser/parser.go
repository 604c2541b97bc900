package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cityguard/models"
)

// extractJSONFromMarkdown extracts JSON from markdown code blocks
func extractJSONFromMarkdown(response string) string {
	// Look for JSON code blocks with ``` markers
	startMarker := "```"
	endMarker := "```"

	startIdx := strings.Index(response, startMarker)
	if startIdx == -1 {
		// No code block found, try to find JSON object directly
		startIdx = strings.Index(response, "{")
		if startIdx == -1 {
			return response
		}
		endIdx := strings.LastIndex(response, "}")
		if endIdx == -1 {
			return response
		}
		return strings.TrimSpace(response[startIdx : endIdx+1])
	}

	// Find the end of the first code block
	endIdx := strings.Index(response[startIdx+len(startMarker):], endMarker)
	if endIdx == -1 {
		return response
	}
	endIdx += startIdx + len(startMarker)

	// Extract content between the markers
	content := response[startIdx+len(startMarker) : endIdx]

	// Remove the language identifier if present (e.g., "json")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 && (strings.TrimSpace(lines[0]) == "json" || strings.TrimSpace(lines[0]) == "") {
		content = strings.Join(lines[1:], "\n")
	}

	return strings.TrimSpace(content)
}

// ParseAnalysis parses the LLM response and extracts the incident analysis fields
func ParseAnalysis(response string) (*models.IncidentAnalysis, error) {
	// Clean the response
	cleaned := strings.TrimSpace(response)
	if cleaned == "" {
		return nil, errors.New("empty response")
	}

	// Extract JSON from markdown if present
	jsonContent := extractJSONFromMarkdown(cleaned)

	// Pointer fields distinguish absent required keys from zero values.
	var raw struct {
		RelevanceScore *float64 `json:"relevance_score"`
		Severity       string   `json:"severity"`
		Category       string   `json:"category"`
		IsCredible     *bool    `json:"is_credible"`
		Summary        string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(jsonContent), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}
	if raw.RelevanceScore == nil {
		return nil, errors.New("relevance_score is required")
	}
	if raw.IsCredible == nil {
		return nil, errors.New("is_credible is required")
	}

	result := models.IncidentAnalysis{
		RelevanceScore: *raw.RelevanceScore,
		Severity:       raw.Severity,
		Category:       raw.Category,
		IsCredible:     *raw.IsCredible,
		Summary:        raw.Summary,
	}

	// Validate the parsed result against the analyzer schema
	if result.RelevanceScore < 0 || result.RelevanceScore > 1 {
		return nil, errors.New("relevance_score must be between 0 and 1")
	}
	result.Severity = strings.ToLower(strings.TrimSpace(result.Severity))
	if !models.ValidSeverity(result.Severity) {
		return nil, fmt.Errorf("invalid severity %q", result.Severity)
	}
	result.Category = strings.ToLower(strings.TrimSpace(result.Category))
	if !models.ValidCategory(result.Category) {
		return nil, fmt.Errorf("invalid category %q", result.Category)
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, errors.New("summary is required")
	}

	return &result, nil
}
