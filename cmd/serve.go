package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/api"
	"github.com/jon4hz/appmonitor/internal/config"
	"github.com/jon4hz/appmonitor/internal/engine"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the App Monitor server",
	Long:  `Start the web dashboard and the background jobs that collect metrics and sync Entra ID applications.`,
	Example: `appmonitor serve --config config.yml
appmonitor serve -c /path/to/config.yml --log-level debug
`,
	RunE: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func ginMode(env config.Environment) string {
	switch env {
	case config.EnvProduction:
		return gin.ReleaseMode
	case config.EnvTesting:
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

func startServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gin.SetMode(ginMode(cfg.Environment))

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(cfg, db)
	if err != nil {
		return err
	}
	defer eng.Close() //nolint:errcheck

	server, err := api.New(ctx, cfg, eng)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		return server.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("appmonitor started successfully", "environment", cfg.Environment)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("appmonitor stopped")
	return nil
}
