package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"openbar-go/internal/db"
	"openbar-go/internal/ledger"
)

type Config struct {
	Addr    string
	BaseURL string

	DataDir string
	DBPath  string

	BootstrapManagerName string
	BootstrapManagerPIN  string
}

type App struct {
	cfg    Config
	store  *db.Store
	ledger *ledger.Service
	log    *slog.Logger
	sseHub *SSEHub
}

func New(cfg Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "/data"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "openbar.db")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Migrate(store.DB); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a := &App{
		cfg:    cfg,
		store:  store,
		log:    logger,
		sseHub: NewSSEHub(logger),
	}
	a.ledger = ledger.New(store, logger, a.sseHub)

	// Bootstrap one manager if none exists (only once).
	hasManager, err := store.Q.HasAnyManager()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if !hasManager && cfg.BootstrapManagerName != "" && cfg.BootstrapManagerPIN != "" {
		hash, err := HashPIN(cfg.BootstrapManagerPIN)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if _, err := store.Q.CreateStaff(db.CreateStaffParams{
			Name:     cfg.BootstrapManagerName,
			Role:     RoleManager,
			PinHash:  hash,
			IsActive: true,
		}); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("bootstrap manager: %w", err)
		}
		a.log.Info("bootstrapped manager", "name", cfg.BootstrapManagerName)
	}

	// Seed catalog ONLY if empty (never touches staff or the ledger).
	empty, err := isCatalogEmpty(store.DB)
	if err != nil {
		a.log.Warn("catalog empty check failed", "err", err)
	} else if empty {
		if err := db.SeedCatalog(store.DB); err != nil {
			a.log.Warn("catalog seed failed", "err", err)
		} else {
			a.log.Info("catalog seeded")
		}
	}

	return a, nil
}

func isCatalogEmpty(dbh *sql.DB) (bool, error) {
	var ic int
	if err := dbh.QueryRow(`SELECT COUNT(1) FROM ingredients;`).Scan(&ic); err != nil {
		return false, err
	}
	var rc int
	if err := dbh.QueryRow(`SELECT COUNT(1) FROM recipes;`).Scan(&rc); err != nil {
		return false, err
	}
	return ic == 0 && rc == 0, nil
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *App) Store() *db.Store        { return a.store }
func (a *App) Ledger() *ledger.Service { return a.ledger }
func (a *App) SSE() *SSEHub            { return a.sseHub }
func (a *App) Config() Config          { return a.cfg }
func (a *App) Log() *slog.Logger       { return a.log }
