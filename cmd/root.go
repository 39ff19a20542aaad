package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/internal/database"
	"github.com/spf13/cobra"
)

var rootCmdPersistentFlags struct {
	LogFile    string
	ConfigFile string
	LogLevel   string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogFile, "log-file", "", "File to write logs to")
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to config file (default: search for config.yml in current dir, ~/.appmonitor, /etc/appmonitor)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "", "Log level (debug, info, warn, error) - overrides config file setting")
}

var rootCmd = &cobra.Command{
	Use:   "appmonitor",
	Short: "App Monitor is a company dashboard for SSO applications and system metrics",
	Long:  `App Monitor lets companies connect their Entra ID tenant, discover their SSO applications and watch user activity, metrics and events in one place.`,
	Example: `appmonitor serve --config config.yml
  appmonitor seed -c /path/to/config.yml --log-level debug
  appmonitor db-stats`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if rootCmdPersistentFlags.LogLevel != "" {
			setLogLevel(rootCmdPersistentFlags.LogLevel)
		}
		logToFile()
	},
	RunE: startServer,
}

// loadConfig reads the configuration. The config log level applies unless --log-level was given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rootCmdPersistentFlags.LogLevel == "" && cfg.LogLevel != "" {
		setLogLevel(cfg.LogLevel)
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*database.Client, error) {
	db, err := database.New(cfg.Database.URL, database.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Debug("Database ready", "dialect", db.Dialect())
	return db, nil
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile() {
	if rootCmdPersistentFlags.LogFile == "" {
		return
	}
	file, err := os.OpenFile(rootCmdPersistentFlags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}

	log.SetOutput(io.MultiWriter(os.Stderr, file))
	log.Info("logging to both console and file", "file", rootCmdPersistentFlags.LogFile)
}

// Execute runs the root command with fang's styled help and errors.
func Execute(ctx context.Context, version string) error {
	return fang.Execute(ctx, rootCmd, fang.WithVersion(version))
}
