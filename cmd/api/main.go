package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead-console/internal/auditor"
	"lead-console/internal/auth"
	"lead-console/internal/config"
	"lead-console/internal/dialer"
	"lead-console/internal/history"
	"lead-console/internal/httpapi"
	"lead-console/internal/leads"
	"lead-console/internal/outcome"
	"lead-console/internal/session"
	"lead-console/pkg/logger"
	"lead-console/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local convenience; absent .env files are fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tokenManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	repo := leads.NewPostgresRepo(db)
	if err := repo.EnsureSchema(rootCtx); err != nil {
		log.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	leadSvc := leads.NewService(repo)
	if err := leadSvc.Refresh(rootCtx); err != nil {
		log.Error("initial lead snapshot failed", "err", err)
		os.Exit(1)
	}

	// The note auditor is optional; without an API key the pipeline falls
	// back to the offline heuristic.
	var aud auditor.Auditor
	if cfg.Gemini.APIKey != "" {
		model, err := auditor.NewGeminiModel(rootCtx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Error("auditor init failed", "err", err)
			os.Exit(1)
		}
		aud = auditor.NewService(model, cfg.Gemini.Timeout, log)
	} else {
		log.Warn("GEMINI_API_KEY not set, note audits use the local heuristic only")
		aud = auditor.NewService(nil, cfg.Gemini.Timeout, log)
	}

	hist := history.NewService(history.NewMemoryRepo())
	pipe := outcome.NewPipeline(leadSvc, aud, hist, log)
	sessions := session.NewManager(rdb, dialer.TelURIDialer{}, pipe, log)

	h := httpapi.Handlers{
		Auth:     auth.NewAuthenticator(leadSvc, tokenManager),
		Leads:    leadSvc,
		Sessions: sessions,
		History:  hist,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(cors.New(corsConfig(cfg)))

	registerRoutes(r, h, auth.RequireAccessToken(tokenManager), db, rdb)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

func corsConfig(cfg config.Config) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	if len(cfg.App.CORSOrigins) > 0 {
		c.AllowOrigins = cfg.App.CORSOrigins
	} else {
		c.AllowAllOrigins = true
	}
	return c
}
