package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"regaudit/internal/config"
)

var (
	cfgFile  string
	logLevel string

	// set by PersistentPreRunE
	appConfig *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "regaudit",
	Short: "Audit technical documentation against regulatory requirement clauses",
	Long: `regaudit indexes a corpus of regulatory requirement clauses (AI Act,
GDPR, ISO controls), matches the segments of a document against it by
semantic similarity and reports every requirement as SATISFIED, PARTIAL
or UNADDRESSED with the segments that support the verdict.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		lvl := logLevel
		if lvl == "" {
			lvl = os.Getenv("REGAUDIT_LOG_LEVEL")
		}
		if lvl == "" {
			lvl = cfg.Log.Level
		}
		ConfigureLogging(lvl, cfg.Log.Format)
		appConfig = cfg
		return nil
	},
}

// Execute runs the root command, printing any error to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default ./regaudit.yaml or ~/.config/regaudit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides REGAUDIT_LOG_LEVEL)")
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.AppConfig, error) {
	var (
		cfg  *config.AppConfig
		path = cfgFile
		err  error
	)
	if path == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

var level = new(slog.LevelVar)

// ConfigureLogging installs the default logger on stderr. Unknown levels
// fall back to info.
func ConfigureLogging(lvl, format string) {
	level.Set(slog.LevelInfo)
	switch strings.ToUpper(lvl) {
	case "DEBUG":
		level.Set(slog.LevelDebug)
	case "WARN":
		level.Set(slog.LevelWarn)
	case "ERROR":
		level.Set(slog.LevelError)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
