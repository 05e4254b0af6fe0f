package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adelyne/pydex/internal/config"
	"github.com/adelyne/pydex/internal/logger"
)

var (
	// Global flags
	cfgPath   string
	logLevel  string
	logFormat string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pydex",
	Short: "pydex - Python API extraction without running Python",
	Long: `pydex loads Python packages by scanning their sources and extracts
modules, classes, functions, attributes, signatures and docstrings into a
typed tree.

Docstrings can be parsed into structured sections (google or rst style),
results can be dumped as JSON, cached in sqlite and kept fresh with a file
watcher, or served over JSON-RPC on stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}

		logger.Init(logger.Config{
			Level:  logger.ParseLevel(cfg.LogLevel),
			Format: cfg.LogFormat,
			Output: os.Stderr,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default ~/.pydex/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
