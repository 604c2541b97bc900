package llm

// Client abstracts an LLM provider used by the incident analyzer.
// Implementations must be concurrency-safe if used across goroutines.
type Client interface {
	// AnalyzeIncident submits one incident for structured assessment and
	// returns a single JSON string per the analyzer schema.
	AnalyzeIncident(title, description, source, location string) (string, error)
	// AssessCredibility asks for a bare "true"/"false" verdict on whether
	// the content comes from a credible source.
	AssessCredibility(content, sourceURL string) (string, error)
	// Summarize produces a short dashboard summary of the given incidents text.
	Summarize(incidentsText string) (string, error)
	// SourceName returns a short provider label (e.g., "Gemini", "ChatGPT").
	SourceName() string
}
