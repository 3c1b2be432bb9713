package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Analysis AnalysisConfig
	AI       AIConfig
}

type ServerConfig struct {
	Port int
}

type ScraperConfig struct {
	BaseURL                string
	Headless               bool
	TimeoutSeconds         int
	SettleMillis           int
	MaxPages               int
	MaxConsecutiveTimeouts int
}

type AnalysisConfig struct {
	// Default margin fraction for competitive-set queries.
	CompetitiveMargin float64
}

type AIConfig struct {
	APIKey string
	Model  string
	// Target profit margin fed into the narrative prompt. Configured
	// independently from AnalysisConfig.CompetitiveMargin on purpose.
	TargetMargin float64
}

const (
	DefaultCompetitiveMargin = 0.10
	DefaultNarrativeMargin   = 0.15
)

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
		},
		Scraper: ScraperConfig{
			BaseURL:                getEnv("SCRAPER_BASE_URL", "https://www.onderdelenlijn.nl"),
			Headless:               getEnvBool("SCRAPER_HEADLESS", true),
			TimeoutSeconds:         getEnvInt("SCRAPER_TIMEOUT", 20),
			SettleMillis:           getEnvInt("SCRAPER_SETTLE_MS", 1000),
			MaxPages:               getEnvInt("SCRAPER_MAX_PAGES", 50),
			MaxConsecutiveTimeouts: getEnvInt("SCRAPER_MAX_TIMEOUTS", 2),
		},
		Analysis: AnalysisConfig{
			CompetitiveMargin: getEnvFloat("ANALYSIS_COMPETITIVE_MARGIN", DefaultCompetitiveMargin),
		},
		AI: AIConfig{
			APIKey:       getEnv("ANTHROPIC_API_KEY", ""),
			Model:        getEnv("AI_MODEL", "claude-3-5-haiku-latest"),
			TargetMargin: getEnvFloat("AI_TARGET_MARGIN", DefaultNarrativeMargin),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper base URL is required")
	}

	if c.Scraper.MaxPages < 1 {
		return fmt.Errorf("max pages must be at least 1")
	}

	if c.Scraper.MaxConsecutiveTimeouts < 1 {
		return fmt.Errorf("max consecutive timeouts must be at least 1")
	}

	if c.Analysis.CompetitiveMargin < 0 || c.Analysis.CompetitiveMargin >= 1 {
		return fmt.Errorf("competitive margin must be in [0, 1): %f", c.Analysis.CompetitiveMargin)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
