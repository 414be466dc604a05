package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jiralite/api/internal/app/migrate"
	httpx "github.com/jiralite/api/internal/http"
	"github.com/jiralite/api/internal/llm"
	"github.com/jiralite/api/internal/mailer"
	"github.com/jiralite/api/internal/repository/postgres"
	"github.com/jiralite/api/internal/service/access"
	"github.com/jiralite/api/internal/service/ai"
	"github.com/jiralite/api/internal/service/auth"
	"github.com/jiralite/api/internal/service/comment"
	"github.com/jiralite/api/internal/service/dashboard"
	"github.com/jiralite/api/internal/service/issue"
	"github.com/jiralite/api/internal/service/notification"
	"github.com/jiralite/api/internal/service/project"
	"github.com/jiralite/api/internal/service/team"
	"github.com/jiralite/api/internal/ws"
	"github.com/jiralite/api/pkg/config"
	"github.com/jiralite/api/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.LevelFor(cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub(cfg.NotificationBuffer)

	mail := mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromEmail, log)
	resolver := access.New(repo, repo, repo, log)
	notificationSvc := notification.New(repo, hub, log)

	authSvc := auth.New(repo, mail, log, cfg)
	teamSvc := team.New(repo, repo, resolver, notificationSvc, mail, log, cfg)
	projectSvc := project.New(repo, repo, resolver, log)
	issueSvc := issue.New(repo, repo, resolver, notificationSvc, mail, log, cfg)
	commentSvc := comment.New(repo, repo, resolver, notificationSvc, mail, log, cfg)
	dashboardSvc := dashboard.New(repo, repo, repo, resolver, log)

	generator := llm.NewClient(cfg.AIProviderURL, cfg.AIAPIKey, cfg.AIModel, cfg.AIRequestTimeout)
	limiter := ai.NewLimiter(repo)
	aiSvc := ai.New(repo, repo, repo, resolver, limiter, generator, log)

	httpLimiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			httpLimiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, teamSvc, projectSvc, issueSvc, commentSvc, dashboardSvc, aiSvc, notificationSvc, hub, httpLimiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
