package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyakumasu/pokedrill/internal/config"
	"github.com/hyakumasu/pokedrill/internal/creature"
	"github.com/hyakumasu/pokedrill/internal/gacha"
	httphandler "github.com/hyakumasu/pokedrill/internal/http"
	"github.com/hyakumasu/pokedrill/internal/levels"
	"github.com/hyakumasu/pokedrill/internal/problem"
	"github.com/hyakumasu/pokedrill/internal/progression"
	"github.com/hyakumasu/pokedrill/internal/reward"
	"github.com/hyakumasu/pokedrill/internal/service"
	"github.com/hyakumasu/pokedrill/internal/session"
	"github.com/hyakumasu/pokedrill/internal/storage/cassandra"
	"github.com/hyakumasu/pokedrill/internal/store"
	"github.com/hyakumasu/pokedrill/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(logger.Options{Format: cfg.Log.Format, Level: cfg.Log.Level})

	if err := run(cfg, log); err != nil {
		log.Error("Server failed", logger.F("error", err.Error()))
		os.Exit(1)
	}
	log.Info("Server exited")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		client, err := store.NewRedisClient(ctx, store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
		log.Info("Connected to Redis", logger.F("addr", cfg.Redis.Addr))
	}

	backend, closeBackend, err := openBackend(cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer closeBackend()

	catalog, err := gacha.LoadCatalog(cfg.Creature.CatalogPath)
	if err != nil {
		return err
	}

	var source creature.Source = creature.NewClient(creature.Options{
		BaseURL:  cfg.Creature.BaseURL,
		Language: cfg.Creature.Language,
		Attempts: cfg.Creature.Attempts,
		Backoff:  cfg.Creature.Backoff,
		Timeout:  cfg.Creature.Timeout,
	}, catalog, nil, log.With(logger.F("component", "creature")))
	if cfg.Redis.CacheOn {
		source = creature.NewCachedSource(source, redisClient, log.With(logger.F("component", "creature-cache")))
	}

	progress, err := progression.Open(ctx, backend, log.With(logger.F("component", "progression")))
	if err != nil {
		return err
	}

	lv := levels.NewService(log)
	machine := session.NewMachine(
		source,
		problem.NewGenerator(nil, lv),
		lv,
		time.Now,
		cfg.Game.TickInterval,
		log.With(logger.F("component", "session")),
	)
	defer machine.Close()

	game := service.NewGameService(
		machine,
		progress,
		gacha.NewEngine(catalog, source, nil, log.With(logger.F("component", "gacha"))),
		reward.NewCalculator(lv),
		lv,
		source,
		log,
	)

	handler := httphandler.NewHandler(game, log, cfg.Server.RequestTimeout)

	router := chi.NewRouter()

	// Middleware. No global timeout: the ticks stream is long-lived and
	// handlers bound their own calls.
	router.Use(httphandler.RequestIDMiddleware)
	router.Use(middleware.RealIP)
	router.Use(httphandler.LoggingMiddleware(log))
	router.Use(middleware.Recoverer)

	router.Mount("/", handler.Routes())

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting",
			logger.F("addr", cfg.Address()),
			logger.F("store", cfg.Store.Backend),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Close the machine first so open tick streams see their channels close.
	machine.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// openBackend builds the snapshot store selected by cfg.Store.Backend
func openBackend(cfg *config.Config, redisClient *redis.Client, log *logger.Logger) (store.Store, func(), error) {
	noop := func() {}
	storeLog := log.With(logger.F("component", "store"), logger.F("backend", cfg.Store.Backend))

	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(storeLog), noop, nil
	case config.BackendFile:
		fs, err := store.NewFileStore(cfg.Store.FilePath, cfg.Store.EvictPath, storeLog)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case config.BackendRedis:
		return store.NewRedisStore(redisClient, cfg.Store.PlayerID, creature.CacheKey, cfg.Redis.SnapshotTTL, storeLog), noop, nil
	case config.BackendCassandra:
		client, err := cassandra.NewClient(cfg.Cassandra, storeLog)
		if err != nil {
			return nil, noop, err
		}
		repo := cassandra.NewRepository(client, cfg.Store.PlayerID, storeLog, cfg.Cassandra.Timeout)
		return repo, client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
