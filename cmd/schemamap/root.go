package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"schemamap/internal/config"
	"schemamap/internal/logging"
)

var (
	cfgFile     string
	envFile     string
	metricsAddr string
	logLevel    string
	domain      string

	appConfig *config.Config
	logger    *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "schemamap",
	Short: "Resolve dataset headers to canonical columns",
	Long: `schemamap maps the column headers of a sales or operations dataset onto a
fixed vocabulary (Date, Sales, Amount, Product, Quantity, Region, ...), renames
the table and reports which analytics can run on it.

Configuration is read from --config, then SCHEMAMAP_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		if domain != "" {
			cfg.Domain = domain
		}

		if metricsAddr != "" {
			cfg.Metrics.Addr = metricsAddr
		}

		l, err := logging.New(cfg.Logging)
		if err != nil {
			return eris.Wrap(err, "build logger")
		}

		appConfig, logger = cfg, l

		if cfg.Metrics.Addr != "" {
			serveMetrics(cfg.Metrics.Addr)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with API keys")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&domain, "domain", "", "knowledge base domain context")

	rootCmd.AddCommand(resolveCmd, confirmCmd, analyticsCmd)
}

// initEnv loads the dotenv file before configuration is read.
func initEnv() {
	if envFile == "" {
		return
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = os.Stderr.WriteString("warning: " + err.Error() + "\n")
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
}

// commandContext is cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
