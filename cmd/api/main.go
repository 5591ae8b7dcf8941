package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/panelroom/backend/internal/config"
	"github.com/zhouzirui/panelroom/backend/internal/handler"
	"github.com/zhouzirui/panelroom/backend/internal/handler/room"
	"github.com/zhouzirui/panelroom/backend/internal/model/persona"
	"github.com/zhouzirui/panelroom/backend/internal/service/ai"
	"github.com/zhouzirui/panelroom/backend/internal/service/bot"
	"github.com/zhouzirui/panelroom/backend/internal/service/schedule"
	"github.com/zhouzirui/panelroom/backend/internal/service/session"
	"github.com/zhouzirui/panelroom/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	personaStore, err := loadPersonas(cfg.Bot.PersonaCatalogPath)
	if err != nil {
		return err
	}
	logger.Info("persona catalog loaded", zap.Int("personas", personaStore.Len()))

	db, err := store.NewSQLite(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	generator, err := newGenerator(ctx, cfg.AI, logger)
	if err != nil {
		return err
	}

	seed := uint64(time.Now().UnixNano())
	if cfg.Bot.Seed != nil {
		seed = *cfg.Bot.Seed
	}

	registry := session.NewRegistry(
		personaStore,
		schedule.NewTimers(schedule.NewTimerScheduler()),
		schedule.SystemClock,
		schedule.NewRand(seed),
		logger,
	)
	bots := bot.NewService(cfg.Bot.Config, registry, generator, db, logger)
	hub := room.NewHub(64, logger)

	router := handler.NewRouter(handler.Deps{
		Personas:       personaStore,
		Sessions:       db,
		Bots:           bots,
		Hub:            hub,
		Health:         db,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("panelroom backend listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return bots.RunSweeper(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, id := range bots.ActiveSessions() {
			bots.EndSession(id)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func loadPersonas(path string) (persona.Store, error) {
	if path == "" {
		return persona.NewMemoryStore(persona.Seed()), nil
	}
	items, err := persona.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return persona.NewMemoryStore(items), nil
}

// newGenerator falls back to an always-failing generator when no credentials are set, so every reply uses the canned fallback.
func newGenerator(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (ai.TextGenerator, error) {
	if !cfg.Enabled() {
		logger.Warn("AI credentials not configured, bots will answer with fallback lines",
			zap.String("provider", string(cfg.Provider)))
		return unavailableGenerator{}, nil
	}

	backend, err := cfg.NewBackend(ctx)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.Provider, err)
	}
	logger.Info("AI backend configured",
		zap.String("provider", backend.Name()),
		zap.Strings("models", cfg.Models))
	return ai.NewGenerator(backend, cfg.Options(), logger), nil
}

type unavailableGenerator struct{}

func (unavailableGenerator) Generate(context.Context, string) (string, error) {
	return "", ai.ErrGenerationUnavailable
}
