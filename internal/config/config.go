package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/fixnow-app/fixnow/internal/engine"
)

// Config carries the process-wide settings read once at startup.
type Config struct {
	Port              string
	JWTSecret         string
	DatabaseURL       string
	RedisAddr         string
	AIAnalysisURL     string
	AIAnalysisKey     string
	AIAnalysisTimeout string
	MatchingRulesPath string
}

// FromEnv builds the config from the environment with development defaults.
func FromEnv() Config {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		JWTSecret:         getenv("JWT_SECRET", "supersecret"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		AIAnalysisURL:     os.Getenv("AI_ANALYSIS_URL"),
		AIAnalysisKey:     os.Getenv("AI_ANALYSIS_KEY"),
		AIAnalysisTimeout: getenv("AI_ANALYSIS_TIMEOUT", "5s"),
		MatchingRulesPath: os.Getenv("MATCHING_RULES_PATH"),
	}
	if cfg.DatabaseURL == "" && os.Getenv("DB_HOST") != "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			getenv("DB_PORT", "5432"),
			os.Getenv("DB_NAME"),
		)
	}
	return cfg
}

// MatchingRules loads the matching rule set: compiled defaults, overlaid
// with the optional JSON rules file and the MATCH_RADIUS_KM override. The
// result is read-only for the life of the process.
func (c Config) MatchingRules() (*engine.MatchRules, error) {
	rules := engine.DefaultMatchRules()

	if c.MatchingRulesPath != "" {
		raw, err := os.ReadFile(c.MatchingRulesPath)
		if err != nil {
			return nil, fmt.Errorf("read matching rules: %w", err)
		}
		var file engine.MatchRules
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse matching rules: %w", err)
		}
		if file.RadiusKM > 0 {
			rules.RadiusKM = file.RadiusKM
		}
		if file.Weights != (engine.MatchWeights{}) {
			rules.Weights = file.Weights
		}
		if len(file.Required) > 0 {
			rules.Required = file.Required
		}
	}

	if raw := os.Getenv("MATCH_RADIUS_KM"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			return nil, fmt.Errorf("invalid MATCH_RADIUS_KM %q", raw)
		}
		rules.RadiusKM = radius
	}

	return rules, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
