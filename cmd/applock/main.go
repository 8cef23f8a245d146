// Package main is the CLI entry point for applock.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/app_lock/internal/config"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "applock",
	Short: "Focus lock - keeps one app in front and covers everything else",
	Long: `applock pins one application's window to the middle of the screen and
covers the rest of the display with opaque regions until the session ends.

Bind "applock end" and "applock quit" to global hotkeys in your hotkey daemon.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List apps that can be locked onto",
	RunE:  runApps,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a focus session for an app",
	Long: `Starts a focus session without the picker. The process stays in the
foreground until the session ends.

--minutes accepts a number of minutes or "done" for a session that only
ends with "applock end".`,
	RunE: runStartCmd,
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Open the app picker",
	Long: `Opens the interactive picker. If applock is already running it is asked
to reopen its picker instead.`,
	RunE: runPick,
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the running session",
	RunE:  runEnd,
}

var quitCmd = &cobra.Command{
	Use:   "quit",
	Short: "Emergency quit: tear everything down and exit",
	RunE:  runQuit,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running instance",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath  string
	debugMode   bool
	backendFlag string
	metricsAddr string

	startApp     string
	startMinutes string
	jsonOutput   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.applock/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Log to stderr at debug level")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Host backend (auto/darwin/x11/headless)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	startCmd.Flags().StringVar(&startApp, "app", "", "Application to lock onto")
	startCmd.Flags().StringVar(&startMinutes, "minutes", "15", `Session length in minutes, or "done"`)
	_ = startCmd.MarkFlagRequired("app")

	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(endCmd)
	rootCmd.AddCommand(quitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createLogger(cfg *config.Config) *zap.Logger {
	if debugMode {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{cfg.Logging.File}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	zapConfig.EncoderConfig.TimeKey = "time"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0700); err != nil {
		logger, _ := zap.NewProduction()
		return logger
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(out))
		return
	}
	fmt.Printf("applock %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
}
