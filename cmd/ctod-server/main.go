// Cesium Terrain On Demand
//
// Synthesizes Cesium quantized-mesh terrain tiles on the fly from a
// Cloud Optimized GeoTIFF, either from a configured dataset or from a
// COG path given inline in the request (the dynamic endpoint).
//
//	@title			Cesium Terrain On Demand
//	@version		1.0
//	@description	Serves quantized-mesh terrain tiles synthesized from a COG
//
//	@license.name	MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@tag.name			tiles
//	@tag.description	Quantized-mesh tile and layer.json endpoints
//
//	@tag.name			status
//	@tag.description	Liveness
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/sogelink-research/ctod/docs" // swagger generated docs
	"github.com/sogelink-research/ctod/internal/coalesce"
	"github.com/sogelink-research/ctod/internal/cog"
	"github.com/sogelink-research/ctod/internal/dataset"
	"github.com/sogelink-research/ctod/internal/diskcache"
	"github.com/sogelink-research/ctod/internal/factory"
	"github.com/sogelink-research/ctod/internal/httpapi"
	"github.com/sogelink-research/ctod/internal/windowcache"
	"github.com/sogelink-research/ctod/internal/workerpool"
)

// serveFlags binds spec.md §6's environment/flags list plus two extra
// settings: the window-cache byte budget and the worker-pool size.
type serveFlags struct {
	port             int
	tileCachePath    string
	datasetConfigPath string
	loggingLevel     string
	unsafe           bool
	noDynamic        bool
	corsAllowOrigins []string
	windowCacheBytes int64
	poolSize         int
}

func main() {
	_ = godotenv.Load()

	flags := &serveFlags{}
	root := &cobra.Command{
		Use:   "ctod-server",
		Short: "Serve Cesium quantized-mesh terrain tiles synthesized from a COG",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(flags.loggingLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), flags)
		},
	}

	root.Flags().IntVar(&flags.port, "port", 8080, "HTTP listen port")
	root.Flags().StringVar(&flags.tileCachePath, "tile-cache-path", "", "on-disk tile cache root (disabled if empty)")
	root.Flags().StringVar(&flags.datasetConfigPath, "dataset-config-path", "", "path to the named-dataset config JSON")
	root.Flags().StringVar(&flags.loggingLevel, "logging-level", "info", "log/slog level: debug, info, warn, error")
	root.Flags().BoolVar(&flags.unsafe, "unsafe", false, "skip the native-resolution pixel-budget safety check")
	root.Flags().BoolVar(&flags.noDynamic, "no-dynamic", false, "disable the dynamic (inline cog=) endpoint")
	root.Flags().StringSliceVar(&flags.corsAllowOrigins, "cors-allow-origins", nil, "allowed CORS origins (default: *)")
	root.Flags().Int64Var(&flags.windowCacheBytes, "window-cache-bytes", windowcache.DefaultBudgetBytes, "processed-window cache byte budget")
	root.Flags().IntVar(&flags.poolSize, "worker-pool-size", 0, "CPU worker pool size (default: runtime.NumCPU())")

	if err := root.Execute(); err != nil {
		slog.Error("ctod-server: fatal", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown logging level %q", s)
	}
}

func serve(ctx context.Context, flags *serveFlags) error {
	logger := slog.Default()
	cog.Init()

	var disk *diskcache.Cache
	if flags.tileCachePath != "" {
		var err error
		disk, err = diskcache.New(flags.tileCachePath)
		if err != nil {
			return fmt.Errorf("open tile cache: %w", err)
		}
		if err := diskcache.Sweep(flags.tileCachePath, logger); err != nil {
			logger.Warn("tile cache sweep failed", "error", err)
		}
	} else {
		logger.Warn("--tile-cache-path not set: on-disk tile caching disabled, every tile will be recomputed")
	}

	registry := dataset.NewRegistry()
	if flags.datasetConfigPath != "" {
		if err := loadDatasetConfig(registry, flags.datasetConfigPath); err != nil {
			return fmt.Errorf("load dataset config: %w", err)
		}
	}
	defer registry.Close()

	cache := windowcache.New(flags.windowCacheBytes)
	coalescer := coalesce.New(cache)
	pool := workerpool.New(flags.poolSize, 0)
	fact := factory.New(coalescer, pool, disk, flags.unsafe, logger)

	handler := httpapi.NewRouter(httpapi.Config{
		Factory:          fact,
		Registry:         registry,
		AllowDynamic:     !flags.noDynamic,
		CORSAllowOrigins: flags.corsAllowOrigins,
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", flags.port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: factory.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ctod-server: listening", "port", flags.port, "dynamic", !flags.noDynamic, "unsafe", flags.unsafe)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}

	logger.Info("ctod-server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("ctod-server: exited")
	return nil
}

// loadDatasetConfig reads the dataset config document at path and
// registers every entry it names.
func loadDatasetConfig(registry *dataset.Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := dataset.ParseDocument(data)
	if err != nil {
		return err
	}
	for _, entry := range doc.Datasets {
		if _, err := registry.Register(entry.Name, entry.Options); err != nil {
			return fmt.Errorf("register dataset %q: %w", entry.Name, err)
		}
	}
	return nil
}
