package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/labreports/internal/common"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "labreports",
	Short: "Extract lab test results from scanned reports",
	Long: `labreports OCRs scanned lab reports (PDF, PNG, JPG) and turns lines such as
"Hemoglobin: 13.5 g/dL" into records classified against reference ranges as
Normal, Needs Attention or Unknown.

Configuration is read from labreports.yaml (current directory or ~/.labreports)
and LABREPORTS_* environment variables, e.g. LABREPORTS_DATABASE_DSN.`,
	Version:       GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./labreports.yaml or ~/.labreports/labreports.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, extractCmd, extractTextCmd, watchCmd, exportCmd, migrateCmd, versionCmd)
}

// loadConfig reads and validates configuration, applying flag overrides.
func loadConfig() (*common.Config, error) {
	cfg, err := common.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = strings.ToLower(logLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. Text output drops time and level to
// keep console lines short; json keeps everything for log shippers.
func newLogger(cfg common.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
			return slog.Attr{}
		}
		return a
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// stderrLogger is used by commands whose stdout carries JSON output.
func stderrLogger(cfg *common.Config) *slog.Logger {
	return newLogger(cfg.Log, os.Stderr)
}
