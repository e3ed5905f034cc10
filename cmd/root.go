package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TFMV/flashpack/internal/config"
	"github.com/TFMV/flashpack/internal/history"
	"github.com/TFMV/flashpack/internal/logging"
	"github.com/go-kit/log"
	"github.com/spf13/cobra"
)

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "flashpack",
	Short: "Parallel block compressor",
	Long: `flashpack compresses and decompresses large files in fixed-size blocks.
Blocks are read, transformed and written concurrently with bounded memory,
and the output keeps the original block order.`,
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() error {
	return RootCmd.Execute()
}

// ExecuteWithContext executes the root command with the given context.
func ExecuteWithContext(ctx context.Context) error {
	RootCmd.SetContext(ctx)
	return RootCmd.Execute()
}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode maps an error returned by Execute to a process exit code:
// 0 on success, 130 when a run was interrupted, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return 1
}

// settings are the resolved configuration and logger of one invocation.
type settings struct {
	config config.Config
	logger log.Logger
}

// loadSettings reads the config file and applies the persistent flags on top.
func loadSettings(cmd *cobra.Command) (settings, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return settings{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("history") {
		cfg.HistoryPath, _ = flags.GetString("history")
	}

	logger, err := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return settings{}, err
	}
	return settings{config: cfg, logger: logger}, nil
}

// openHistory opens the run history, creating its directory as needed.
// It returns nil when history is disabled.
func (s settings) openHistory() (*history.Store, error) {
	path := s.config.HistoryPath
	if path == "" || path == "none" {
		return nil, nil
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	return history.Open(path)
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	RootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error, none)")
	RootCmd.PersistentFlags().String("log-format", "logfmt", "Log format (logfmt, json)")
	RootCmd.PersistentFlags().String("history", config.DefaultHistoryPath(), "Run history database (none disables it)")
}
