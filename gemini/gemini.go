package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

const promptSystem = `You are an expert incident analyst for a local alert system. ` +
	`Analyze the following incident and provide a structured assessment. ` +
	`Relevance score should be 0.0-1.0 (1.0 = highly relevant to local safety). ` +
	`Severity should be: low, medium, high, or critical. ` +
	`Category should be one of: weather, traffic, crime, emergency, infrastructure, health, other. ` +
	`Is_credible should assess if this is from a reliable source and not misinformation. ` +
	`Summary should be a concise 1-2 sentence summary suitable for alerts. ` +
	`Consider local impact and immediate relevance to residents. ` +
	`Respond with a single JSON object with the keys relevance_score, severity, category, is_credible, summary and nothing else.`

const promptCredibility = `Assess if this content appears to be from a credible news or weather source. ` +
	`Consider: official sources, known news outlets, weather services, government agencies. ` +
	`Return only 'true' or 'false'.`

const promptSummary = `Create a brief, clear summary of these local incidents for a safety dashboard. ` +
	`Focus on the most important information residents need to know. ` +
	`Use bullet points and keep it under 200 words:`

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type geminiRequest struct {
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
	Contents         []content        `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type Client struct {
	apiKey string
	model  string
	http   *http.Client
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

func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SourceName() string {
	return "Gemini"
}

// AnalyzeIncident requests a structured JSON assessment of one incident.
func (c *Client) AnalyzeIncident(title, description, source, location string) (string, error) {
	incidentText := fmt.Sprintf("Title: %s\nDescription: %s\nSource: %s\nLocation: %s",
		title, description, source, location)

	reqBody := geminiRequest{
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
		},
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{Text: promptSystem},
					{Text: incidentText},
				},
			},
		},
	}

	return c.generateContent(reqBody)
}

// AssessCredibility asks for a bare true/false verdict on the content's source.
func (c *Client) AssessCredibility(contentText, sourceURL string) (string, error) {
	contentText = truncate(contentText, 500)
	prompt := fmt.Sprintf("%s\n\nContent: %s\nSource URL: %s", promptCredibility, contentText, sourceURL)

	reqBody := geminiRequest{
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{Text: prompt},
				},
			},
		},
	}
	return c.generateContent(reqBody)
}

// Summarize produces a short dashboard digest of the given incidents text.
func (c *Client) Summarize(incidentsText string) (string, error) {
	reqBody := geminiRequest{
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{Text: promptSummary + "\n\n" + incidentsText},
				},
			},
		},
	}
	return c.generateContent(reqBody)
}

func (c *Client) generateContent(body geminiRequest) (string, error) {
	// try v1beta first, then v1
	endpoints := []string{
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", c.model, c.apiKey),
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:generateContent?key=%s", c.model, c.apiKey),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for _, ep := range endpoints {
		req, err := http.NewRequest("POST", ep, bytes.NewBuffer(data))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			continue
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
			// retry next endpoint if available
			continue
		}
		var gr geminiResponse
		if err := json.Unmarshal(bodyBytes, &gr); err != nil {
			lastErr = fmt.Errorf("failed to parse response: %w", err)
			continue
		}
		if len(gr.Candidates) == 0 {
			lastErr = fmt.Errorf("no candidates in response")
			continue
		}
		// find first text part
		for _, p := range gr.Candidates[0].Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
		lastErr = fmt.Errorf("no text part in response")
	}
	return "", lastErr
}
