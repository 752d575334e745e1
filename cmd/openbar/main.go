package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"openbar-go/internal/app"
	"openbar-go/internal/handlers"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := app.Config{
		Addr:    getenv("ADDR", ":8080"),
		BaseURL: getenv("BASE_URL", "http://localhost:8080"),

		DataDir: getenv("DATA_DIR", "/data"),
		DBPath:  getenv("DB_PATH", "/data/openbar.db"),

		BootstrapManagerName: os.Getenv("BOOTSTRAP_MANAGER_NAME"),
		BootstrapManagerPIN:  os.Getenv("BOOTSTRAP_MANAGER_PIN"),
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("app init failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	// Build router here (avoids app<->handlers import cycle)
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	h := &handlers.Server{App: a}

	// Public
	r.Get("/health", h.Health)

	// Authenticated API
	r.Route("/api", func(ar chi.Router) {
		ar.Use(a.RequireStaff)

		ar.Get("/bootstrap", h.Bootstrap)

		ar.Post("/categories", h.CategoryCreate)
		ar.Put("/categories/{id}", h.CategoryUpdate)

		ar.Post("/ingredients", h.IngredientCreate)
		ar.Put("/ingredients/{id}", h.IngredientUpdate)

		ar.Post("/variants", h.VariantCreate)
		ar.Put("/variants/{id}", h.VariantUpdate)

		ar.Post("/recipes", h.RecipeCreate)
		ar.Put("/recipes/{id}", h.RecipeUpdate)

		ar.Post("/venues", h.VenueCreate)
		ar.Post("/session-types", h.SessionTypeCreate)

		ar.Post("/deliveries", h.DeliveryCreate)
		ar.Post("/adjustments", h.AdjustmentCreate)

		ar.Post("/sessions", h.SessionCreate)
		ar.Post("/sessions/{id}/start", h.SessionStart)
		ar.Post("/sessions/{id}/join", h.SessionJoin)
		ar.Post("/sessions/{id}/leave", h.SessionLeave)
		ar.Post("/sessions/{id}/close", h.SessionClose)
		ar.Get("/sessions/{id}/issues", h.SessionIssuesList)
		ar.Delete("/sessions/{id}", h.SessionDelete)

		ar.Post("/issues", h.IssueCreate)
		ar.Delete("/issues/{id}", h.IssueDelete)
	})

	// Push events for session participants
	r.Group(func(er chi.Router) {
		er.Use(a.RequireStaff)
		er.Get("/events", h.SSEGet)
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Addr, "base_url", cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info("shutdown complete")
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
