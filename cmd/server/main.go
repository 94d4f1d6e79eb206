package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"GoSearch/internal/server"
	"GoSearch/internal/workctx"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "gosearch-server",
		Short: "Run the GoSearch HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "path to a YAML/JSON config file")
	flags.String("addr", ":8080", "address to listen on")
	flags.String("data-dir", "data", "root directory for index data")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Int("max-items-per-batch", 1024, "max documents indexed per IndexDocuments batch")
	flags.Bool("run-in-memory", false, "give new indexes a RAM backend (committed segments still go to disk)")
	flags.Duration("commit-interval", 5*time.Second, "interval between automatic commits")

	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("gosearch")
	v.AutomaticEnv()

	cobra.OnInitialize(func() {
		if cfgPath := v.GetString("config"); cfgPath != "" {
			v.SetConfigFile(cfgPath)
			_ = v.ReadInConfig()
		}
	})

	return cmd
}

func runServer(v *viper.Viper) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(v.GetString("log-level")),
	}))
	slog.SetDefault(logger)

	cfg := workctx.Config{
		MaxNumberOfItemsToIndexInSingleBatch: v.GetInt("max-items-per-batch"),
		RunInMemory:                          v.GetBool("run-in-memory"),
		CommitInterval:                       v.GetDuration("commit-interval"),
	}
	if cfg.MaxNumberOfItemsToIndexInSingleBatch <= 0 {
		cfg = workctx.DefaultConfig()
		cfg.RunInMemory = v.GetBool("run-in-memory")
	}

	addr := v.GetString("addr")
	dataDir := v.GetString("data-dir")

	logger.Info("starting GoSearch", "version", Version, "addr", addr, "data_dir", dataDir)

	mgr, err := server.NewManager(dataDir, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize manager: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Error("error disposing indexes on shutdown", "error", err)
		}
	}()

	if cfg.CommitInterval > 0 {
		go runAutoCommitLoop(mgr, cfg.CommitInterval, logger)
	}

	handler := server.NewHandler(mgr, logger)

	root := chi.NewRouter()
	root.Mount("/", handler.Routes())
	root.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "healthy", "version": Version})
	})
	root.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ready"})
	})
	root.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"name": "GoSearch", "version": Version})
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// runAutoCommitLoop flushes every hosted index on a fixed tick, for the
// lifetime of the process. One missed tick's worth of buffered writes is not
// lost, only delayed: the next tick flushes whatever has accumulated since.
func runAutoCommitLoop(mgr *server.Manager, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		if err := mgr.FlushAll(ctx); err != nil {
			logger.Warn("auto-commit failed", "error", err)
		}
		cancel()
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
