package weather

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

const defaultBaseURL = "http://api.openweathermap.org/data/2.5"

// severeConditions are the OpenWeatherMap condition groups that count as
// incidents. Substring match against the lowercase 'main' field: any
// non-clear weather, not a severity judgment.
var severeConditions = []string{"thunderstorm", "snow", "rain", "drizzle", "mist", "fog"}

type weatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Coord *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	ID int64 `json:"id"`
}

type alertsResponse struct {
	Alerts []json.RawMessage `json:"alerts"`
}

type alertItem struct {
	Event       string `json:"event"`
	Description string `json:"description"`
}

// Client fetches weather conditions and provider alerts from OpenWeatherMap.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests to point the client at a fixture server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

// FetchIncidents extracts incidents from current conditions and provider
// alerts for the location. Transport failures are logged and yield an
// empty (or partial) result, never an error.
func (c *Client) FetchIncidents(location string) []models.IncidentInput {
	var incidents []models.IncidentInput

	body, err := c.get("/weather", url.Values{
		"q":     {location},
		"appid": {c.apiKey},
		"units": {"metric"},
	})
	if err != nil {
		log.Errorf("Weather API request failed: %v", err)
		return incidents
	}

	var current weatherResponse
	if err := json.Unmarshal(body, &current); err != nil {
		log.Errorf("Weather data processing failed: %v", err)
		return incidents
	}

	for _, w := range current.Weather {
		main := strings.ToLower(w.Main)
		severe := false
		for _, cond := range severeConditions {
			if strings.Contains(main, cond) {
				severe = true
				break
			}
		}
		if !severe {
			continue
		}

		temp := "N/A"
		if current.Main.Temp != nil {
			temp = fmt.Sprintf("%.1f", *current.Main.Temp)
		}
		incidents = append(incidents, models.IncidentInput{
			Title:       fmt.Sprintf("Weather Alert: %s", w.Main),
			Description: fmt.Sprintf("Current weather conditions: %s. Temperature: %s°C", w.Description, temp),
			Source:      "weather",
			Location:    location,
			Category:    "weather",
			URL:         fmt.Sprintf("https://openweathermap.org/city/%d", current.ID),
			RawData:     string(body),
		})
	}

	// Provider-issued alerts need coordinates from the first response.
	if current.Coord != nil {
		incidents = append(incidents, c.fetchAlerts(location, current.Coord.Lat, current.Coord.Lon)...)
	}

	log.Infof("Fetched %d weather incidents", len(incidents))
	return incidents
}

// fetchAlerts pulls provider-issued alerts for the coordinates. Every
// returned alert becomes one incident unconditionally.
func (c *Client) fetchAlerts(location string, lat, lon float64) []models.IncidentInput {
	var incidents []models.IncidentInput

	body, err := c.get("/onecall", url.Values{
		"lat":     {fmt.Sprintf("%g", lat)},
		"lon":     {fmt.Sprintf("%g", lon)},
		"appid":   {c.apiKey},
		"exclude": {"minutely,hourly,daily"},
	})
	if err != nil {
		log.Errorf("Weather alerts request failed: %v", err)
		return incidents
	}

	var alerts alertsResponse
	if err := json.Unmarshal(body, &alerts); err != nil {
		log.Errorf("Weather alerts processing failed: %v", err)
		return incidents
	}

	for _, raw := range alerts.Alerts {
		var alert alertItem
		if err := json.Unmarshal(raw, &alert); err != nil {
			continue
		}
		event := alert.Event
		if event == "" {
			event = "Weather Warning"
		}
		description := alert.Description
		if description == "" {
			description = "Weather alert issued for your area"
		}
		incidents = append(incidents, models.IncidentInput{
			Title:       fmt.Sprintf("Weather Alert: %s", event),
			Description: description,
			Source:      "weather",
			Location:    location,
			Category:    "weather",
			URL:         "https://openweathermap.org",
			RawData:     string(raw),
		})
	}

	return incidents
}

func (c *Client) get(path string, params url.Values) ([]byte, error) {
	resp, err := c.http.Get(c.baseURL + path + "?" + params.Encode())
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
