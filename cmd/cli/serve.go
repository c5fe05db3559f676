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

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/limaJavier/placement/internal/config"
	"github.com/limaJavier/placement/internal/metrics"
	"github.com/limaJavier/placement/internal/runner"
	"github.com/limaJavier/placement/internal/server"
	"github.com/limaJavier/placement/internal/store"
	"github.com/limaJavier/placement/pkg/loader"
	"github.com/limaJavier/placement/pkg/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(v *viper.Viper, load func() (config.Config, logr.Logger, error)) *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "Serve placement runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bound on run since both commands share the input keys
			bindFlags(v, cmd.Flags(), map[string]string{
				"input.path":      "file",
				"input.format":    "format",
				"server.addr":     "addr",
				"store.backend":   "store",
				"store.redisAddr": "redis-addr",
				"store.redisDB":   "redis-db",
			})
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}

	flags := command.Flags()
	flags.String("file", "", "Path to the input every run reads")
	flags.String("format", "", "Input format: json, csv or xlsx; inferred from the path when empty")
	flags.String("addr", ":8080", "Address the HTTP server listens on")
	flags.String("store", "memory", "Report store: memory or redis")
	flags.String("redis-addr", "localhost:6379", "Redis address of the redis store")
	flags.Int("redis-db", 0, "Redis database of the redis store")
	return command
}

func serve(ctx context.Context, cfg config.Config, logger logr.Logger) error {
	if cfg.Input.Path == "" {
		return errors.New("an input file must be specified")
	}

	reports, err := newStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	runMetrics := metrics.New()
	placer := model.NewPlacer(newSolver(cfg.Solver), model.WithTimeout(cfg.Solver.Timeout))
	placementRunner := runner.New(placer, reports, logger, runner.WithMetrics(runMetrics))
	inputLoader := func(context.Context) (model.ModelInput, error) {
		// Read on every run so edits to the input are picked up
		return loader.Load(cfg.Input.Format, cfg.Input.Path)
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := server.NewAPIHandler(placementRunner, reports, inputLoader, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.NewRouter(handler, runMetrics),
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "solver", cfg.Solver.Backend, "store", cfg.Store.Backend)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("failed to run server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	// A run in flight is not cancelled; give it the same grace period to save its report
	if err := placementRunner.Wait(shutdownCtx); err != nil {
		logger.Info("run still in progress at shutdown", "state", placementRunner.State().String())
	}
	return nil
}

func newStore(ctx context.Context, storeConfig config.StoreConfig) (store.Store, error) {
	switch storeConfig.Backend {
	case "redis":
		client, err := store.NewRedisClient(ctx, storeConfig.RedisAddr, storeConfig.RedisDB)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(client, storeConfig.KeyPrefix), nil
	default:
		return store.NewMemoryStore(), nil
	}
}
