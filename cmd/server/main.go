package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skumar/authdemo/internal/auth"
	"github.com/skumar/authdemo/internal/config"
	"github.com/skumar/authdemo/internal/middleware"
	"github.com/skumar/authdemo/internal/store"
	"github.com/skumar/authdemo/internal/web"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connect", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	users := store.NewPostgresStore(pgPool)
	if err := users.Migrate(ctx); err != nil {
		log.Error("postgres migrate", "error", err)
		os.Exit(1)
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Error("redis connect", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	sessions := auth.NewRedisSessions(rdb, cfg.SessionTTL)
	limiter := auth.NewRedisLimiter(rdb)

	// ── Handlers ─────────────────────────────────────────────
	pages := web.NewPages()
	authHandler := auth.NewHandler(users, sessions, limiter, pages, log,
		cfg.SessionTTL, cfg.CookieSecure)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecureHeaders(cfg))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Pages and auth flows
	r.Get("/", authHandler.ShowLogin)
	r.Get("/login", authHandler.ShowLogin)
	r.Get("/register", authHandler.ShowRegister)
	r.Get("/logout", authHandler.Logout)

	// State-changing forms go through CSRF verification first.
	r.Group(func(r chi.Router) {
		r.Use(middleware.VerifyCSRF(sessions))
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
		r.Post("/logout", authHandler.Logout)
	})

	// Protected routes
	r.With(middleware.RequireAuth(sessions)).Get("/dashboard", authHandler.Dashboard)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
