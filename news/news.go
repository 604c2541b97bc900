package news

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cityguard/models"

	"github.com/apex/log"
)

const defaultBaseURL = "https://newsapi.org/v2"

// keywords are candidate incident search terms. Only the first
// maxKeywords are queried each cycle to bound request volume.
var keywords = []string{"accident", "emergency", "police", "fire", "traffic", "closure", "incident", "alert", "warning"}

const (
	maxKeywords        = 3
	articlesPerKeyword = 5
	removedMarker      = "[Removed]"
)

type newsResponse struct {
	Articles []json.RawMessage `json:"articles"`
}

type article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Client searches NewsAPI for local incident reports.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	now     func() time.Time
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// NewClientWithBaseURL is used by tests to point the client at a fixture server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

// FetchIncidents runs one same-day search per keyword, scoped to the
// location. A transport failure aborts the remaining keywords and returns
// whatever was gathered so far; it never returns an error.
func (c *Client) FetchIncidents(location string) []models.IncidentInput {
	var incidents []models.IncidentInput

	for _, keyword := range keywords[:maxKeywords] {
		body, err := c.search(keyword, location)
		if err != nil {
			log.Errorf("News API request failed: %v", err)
			break
		}

		var result newsResponse
		if err := json.Unmarshal(body, &result); err != nil {
			log.Errorf("News data processing failed: %v", err)
			break
		}

		for _, raw := range result.Articles {
			var a article
			if err := json.Unmarshal(raw, &a); err != nil {
				continue
			}
			// Skip articles without proper content
			if a.Title == "" || a.Description == "" {
				continue
			}
			// Skip removed articles
			if strings.Contains(a.Title, removedMarker) {
				continue
			}
			incidents = append(incidents, models.IncidentInput{
				Title:       a.Title,
				Description: a.Description,
				Source:      "news",
				Location:    location,
				Category:    "other", // Will be determined by AI
				URL:         a.URL,
				RawData:     string(raw),
			})
		}
	}

	log.Infof("Fetched %d news incidents", len(incidents))
	return incidents
}

func (c *Client) search(keyword, location string) ([]byte, error) {
	params := url.Values{
		"q":        {keyword + " AND " + location},
		"apiKey":   {c.apiKey},
		"language": {"en"},
		"sortBy":   {"publishedAt"},
		"pageSize": {fmt.Sprintf("%d", articlesPerKeyword)},
		"from":     {c.now().Format("2006-01-02")},
	}

	resp, err := c.http.Get(c.baseURL + "/everything?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
