package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cityguard/analyzer"
	"cityguard/config"
	"cityguard/database"
	"cityguard/email"
	"cityguard/gemini"
	"cityguard/handlers"
	"cityguard/llm"
	"cityguard/metrics"
	"cityguard/news"
	"cityguard/openai"
	"cityguard/rabbitmq"
	"cityguard/service"
	"cityguard/weather"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchInterval = flag.Duration("fetch_interval", 0, "Override the incident fetch interval")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *fetchInterval > 0 {
		cfg.FetchInterval = *fetchInterval
	}

	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	// Validate required configuration
	if cfg.WeatherAPIKey == "" {
		log.Warn("OPENWEATHERMAP_API_KEY is not set, weather fetching will fail")
	}
	if cfg.NewsAPIKey == "" {
		log.Warn("NEWS_API_KEY is not set, news fetching will fail")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	// Pick the LLM provider
	var client llm.Client
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatal("OPENAI_API_KEY environment variable is required for the openai provider")
		}
		client = openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		if cfg.GeminiAPIKey == "" {
			log.Fatal("GEMINI_API_KEY environment variable is required for the gemini provider")
		}
		client = gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	log.Infof("Using %s for incident analysis", client.SourceName())

	an := analyzer.New(client)
	notifier := service.NewNotifier(db, email.NewSender(cfg))

	// Optional fan-out of analyzed incidents
	var publisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.WithError(err).Error("Failed to connect to RabbitMQ, continuing without fan-out")
			publisher = nil
		}
	}

	pipeline := service.New(cfg, db,
		weather.NewClient(cfg.WeatherAPIKey),
		news.NewClient(cfg.NewsAPIKey),
		an, notifier, publisher)

	metrics.Register()

	// Initialize handlers
	h := handlers.NewHandlers(db, an)

	// Setup HTTP server
	router := gin.Default()

	router.GET("/health", h.HealthCheck)
	router.POST("/subscribe", h.Subscribe)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/incidents", h.GetIncidents)
		api.GET("/incidents/:id", h.GetIncident)
		api.GET("/incidents/by-severity/:severity", h.GetIncidentsBySeverity)
		api.GET("/stats", h.GetStats)
		api.GET("/summary", h.GetSummary)
		api.POST("/subscriptions", h.CreateSubscription)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start the fetch-analyze-notify loop
	pipeline.Start()

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Stop the pipeline before the HTTP server
	pipeline.Stop()

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
