package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

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

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client represents an OpenAI API client
type Client struct {
	apiKey string
	model  string
	client *http.Client
}

// NewClient creates a new OpenAI client
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// SourceName identifies this provider in saved analyses
func (c *Client) SourceName() string {
	return "ChatGPT"
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

// AnalyzeIncident requests a structured JSON assessment of one incident.
func (c *Client) AnalyzeIncident(title, description, source, location string) (string, error) {
	incidentText := fmt.Sprintf("Title: %s\nDescription: %s\nSource: %s\nLocation: %s",
		title, description, source, location)

	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: promptSystem},
			{Role: "user", Content: incidentText},
		},
	}
	return c.chat(reqBody)
}

// AssessCredibility asks for a bare true/false verdict on the content's source.
func (c *Client) AssessCredibility(content, sourceURL string) (string, error) {
	content = truncate(content, 500)
	prompt := fmt.Sprintf("%s\n\nContent: %s\nSource URL: %s", promptCredibility, content, sourceURL)

	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "user", Content: prompt},
		},
	}
	return c.chat(reqBody)
}

// Summarize produces a short dashboard digest of the given incidents text.
func (c *Client) Summarize(incidentsText string) (string, error) {
	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "user", Content: promptSummary + "\n\n" + incidentsText},
		},
	}
	return c.chat(reqBody)
}

func (c *Client) chat(reqBody ChatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", openAIEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return chatResp.Choices[0].Message.Content, nil
}
