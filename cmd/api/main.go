package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fixnow-app/fixnow/internal/analysis"
	"github.com/fixnow-app/fixnow/internal/archive"
	"github.com/fixnow-app/fixnow/internal/config"
	"github.com/fixnow-app/fixnow/internal/engine"
	"github.com/fixnow-app/fixnow/internal/httpapi"
	"github.com/fixnow-app/fixnow/internal/notify"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	rules, err := cfg.MatchingRules()
	if err != nil {
		log.Fatalf("matching rules: %v", err)
	}

	var analyzer engine.MediaAnalyzer
	if cfg.AIAnalysisURL != "" {
		timeout, err := time.ParseDuration(cfg.AIAnalysisTimeout)
		if err != nil {
			log.Fatalf("invalid AI_ANALYSIS_TIMEOUT: %v", err)
		}
		analyzer = analysis.New(cfg.AIAnalysisURL, cfg.AIAnalysisKey, timeout)
		log.Printf("AI analysis enabled (url=%s)", cfg.AIAnalysisURL)
	}

	store := engine.NewOrderStore(rules, nil, analyzer)
	defer store.Close()

	// Optional audit trail in Postgres
	if cfg.DatabaseURL != "" {
		arc, err := archive.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive: %v", err)
		}
		defer arc.Close()
		go arc.Follow(store, store.Subscribe(engine.SubscriptionFilter{}))
	}

	// Optional push queue on Redis
	if cfg.RedisAddr != "" {
		enq := notify.NewEnqueuer(cfg.RedisAddr)
		defer enq.Close()
		go enq.Follow(store.Subscribe(engine.SubscriptionFilter{}))

		worker := notify.StartServer(cfg.RedisAddr)
		defer worker.Shutdown()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/ready", func(c echo.Context) error { return c.String(http.StatusOK, "ready") })

	h := &httpapi.Handler{Store: store, Secret: []byte(cfg.JWTSecret)}
	h.Register(e)

	log.Printf("API server listening on :%s", cfg.Port)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
