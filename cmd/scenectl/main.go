package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/scene-data/internal/api"
	"github.com/yourorg/scene-data/internal/config"
	znmetrics "github.com/yourorg/scene-data/internal/metrics"
)

var rootOpts = &struct {
	ServiceURL  string
	LogLevel    string
	MetricsAddr string
}{}

type appKey struct{}

type app struct {
	client *api.Client
	cfg    *config.Config
	log    *zap.Logger
}

var rootCmd = &cobra.Command{
	Use:           "scenectl",
	Short:         "Query and feed a scene service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if rootOpts.ServiceURL != "" {
			u, err := config.NormalizeServiceURL(rootOpts.ServiceURL)
			if err != nil {
				return fmt.Errorf("--service-url: %w", err)
			}
			cfg.ServiceURL = u
		}
		if rootOpts.LogLevel != "" {
			cfg.LogLevel = rootOpts.LogLevel
		}
		if rootOpts.MetricsAddr != "" {
			cfg.MetricsAddr = rootOpts.MetricsAddr
		}

		zl := newZap(cfg.LogLevel)
		if cfg.MetricsAddr != "" {
			znmetrics.Init()
			go func() {
				if err := znmetrics.Serve(cfg.MetricsAddr); err != nil {
					zl.Warn("metrics server stopped", zap.Error(err))
				}
			}()
		}
		zl.Debug("configured", zap.String("service", cfg.ServiceURL), zap.Duration("timeout", cfg.Timeout))

		a := &app{client: api.New(cfg, api.WithLogger(zl)), cfg: cfg, log: zl}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
			_ = a.log.Sync()
		}
	},
}

func fromContext(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		return nil, errors.New("failed to get client from context")
	}
	return a, nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootOpts.ServiceURL, "service-url", "",
		"Scene service root URL. Overrides SCENE_DATA_SERVICE_URL.")
	flags.StringVar(&rootOpts.LogLevel, "log-level", "",
		"Log level (debug, info, warn, error). Overrides SCENE_DATA_LOG_LEVEL.")
	flags.StringVar(&rootOpts.MetricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address, e.g. :9090.")

	rootCmd.AddCommand(scenesCmd, searchCmd, objectCmd, descendantsCmd, uploadCmd, progressCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newZap(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
