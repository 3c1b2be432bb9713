package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/partsmarkt/parts-scraper/internal/analysis"
	"github.com/partsmarkt/parts-scraper/internal/api"
	"github.com/partsmarkt/parts-scraper/internal/config"
	"github.com/partsmarkt/parts-scraper/internal/scraper"
	"github.com/partsmarkt/parts-scraper/internal/session"
)

func main() {
	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	sessions := session.NewManager()
	metrics := scraper.NewMetrics()
	scraperService := scraper.NewService(cfg, sessions, metrics, logger)
	narrator := analysis.NewNarrator(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.TargetMargin, logger)

	// Initialize API handlers
	handlers := api.NewHandlers(scraperService, sessions, narrator, cfg, logger)

	// Setup Chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"sessions":    sessions.Count(),
			"ai_analysis": narrator.Available(),
		})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// API Routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/categories", handlers.GetCategories)
		r.Post("/scrape", handlers.StartScrape)
		r.Get("/status/{sessionID}", handlers.GetStatus)
		r.Get("/results/{sessionID}", handlers.GetResults)
		r.Get("/export/{sessionID}", handlers.ExportCSV)
		r.Get("/price-analysis/{sessionID}", handlers.GetPriceAnalysis)
		r.Get("/price-recommendations/{sessionID}", handlers.GetPriceRecommendations)
		r.Get("/competitive-analysis/{sessionID}", handlers.GetCompetitiveAnalysis)
		r.Post("/ai-analysis/{sessionID}", handlers.GetAIAnalysis)
	})

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Server.Port, "headless", cfg.Scraper.Headless)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped")
}
