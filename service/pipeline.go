package service

import (
	"sync"
	"time"

	"cityguard/analyzer"
	"cityguard/config"
	"cityguard/database"
	"cityguard/metrics"
	"cityguard/models"
	"cityguard/rabbitmq"

	"github.com/apex/log"
)

// Fetcher extracts normalized incidents from one provider.
type Fetcher interface {
	FetchIncidents(location string) []models.IncidentInput
}

// Pipeline drives one fetch/analyze/persist/notify cycle and the periodic
// schedule around it.
type Pipeline struct {
	cfg       *config.Config
	db        *database.Database
	weather   Fetcher
	news      Fetcher
	analyzer  *analyzer.Analyzer
	notifier  *Notifier
	publisher *rabbitmq.Publisher

	mu       sync.Mutex
	busy     bool
	stopChan chan struct{}
}

// New wires the pipeline stages together. publisher may be nil; analyzed
// incidents are then not fanned out.
func New(cfg *config.Config, db *database.Database, weather, news Fetcher,
	an *analyzer.Analyzer, notifier *Notifier, publisher *rabbitmq.Publisher) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		db:        db,
		weather:   weather,
		news:      news,
		analyzer:  an,
		notifier:  notifier,
		publisher: publisher,
		stopChan:  make(chan struct{}),
	}
}

// Start runs an immediate first cycle and then one cycle per fetch interval
// until Stop is called.
func (p *Pipeline) Start() {
	log.Infof("Starting incident pipeline with fetch interval %v", p.cfg.FetchInterval)
	go p.run()
}

// Stop terminates the schedule and closes the publisher.
func (p *Pipeline) Stop() {
	log.Info("Stopping incident pipeline...")
	close(p.stopChan)
	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil {
			log.Errorf("Failed to close RabbitMQ publisher: %v", err)
		}
	}
}

func (p *Pipeline) run() {
	// Initial fetch at startup, then on the ticker.
	p.RunCycle()

	ticker := time.NewTicker(p.cfg.FetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			log.Info("Incident pipeline stopped")
			return
		case <-ticker.C:
			p.RunCycle()
		}
	}
}

// RunCycle executes one full fetch cycle. Overlapping invocations are
// skipped rather than run concurrently against the store.
func (p *Pipeline) RunCycle() {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		log.Warn("Previous fetch cycle still running, skipping this one")
		metrics.CyclesSkipped.Inc()
		return
	}
	p.busy = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}()

	start := time.Now()
	log.Info("Starting data fetch cycle")

	weatherIncidents := p.weather.FetchIncidents(p.cfg.DefaultLocation)
	metrics.IncidentsFetched.WithLabelValues("weather").Add(float64(len(weatherIncidents)))

	newsIncidents := p.news.FetchIncidents(p.cfg.DefaultLocation)
	metrics.IncidentsFetched.WithLabelValues("news").Add(float64(len(newsIncidents)))

	all := append(weatherIncidents, newsIncidents...)
	log.Infof("Fetched %d total incidents", len(all))

	for _, input := range all {
		p.processIncident(input)
	}

	metrics.CycleDurationSeconds.Observe(time.Since(start).Seconds())
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
}

// processIncident drives one normalized incident through analysis, the
// persistence gate, the store and (when it qualifies) notification dispatch.
// Failures are logged and skip this incident only.
func (p *Pipeline) processIncident(input models.IncidentInput) {
	analysis := p.analyzer.Analyze(input)

	// Override the AI verdict if the independent credibility check disagrees.
	if !p.analyzer.AssessCredibility(input.Description, input.URL) {
		analysis.IsCredible = false
		analysis.RelevanceScore *= 0.5 // Reduce relevance for non-credible sources
	}

	if analysis.RelevanceScore < p.cfg.MinRelevance || !analysis.IsCredible {
		log.Infof("Dropping incident %q (relevance %.2f, credible %t)",
			input.Title, analysis.RelevanceScore, analysis.IsCredible)
		metrics.IncidentsDropped.Inc()
		return
	}

	incident, err := p.db.UpsertIncident(input, analysis)
	if err != nil {
		log.Errorf("Failed to save incident %q: %v", input.Title, err)
		return
	}
	metrics.IncidentsPersisted.Inc()

	if p.publisher != nil {
		if err := p.publisher.Publish(incident); err != nil {
			log.Errorf("Failed to publish analyzed incident %d: %v", incident.ID, err)
		}
	}

	if shouldNotify(analysis, p.cfg.NotifyRelevance) {
		p.notifier.Dispatch(incident)
	}
}

// shouldNotify is the dispatch gate: high-priority incidents only.
func shouldNotify(analysis models.IncidentAnalysis, notifyRelevance float64) bool {
	if analysis.Severity != models.SeverityHigh && analysis.Severity != models.SeverityCritical {
		return false
	}
	return analysis.RelevanceScore >= notifyRelevance
}
