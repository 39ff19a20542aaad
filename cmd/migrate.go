package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Run database migrations to set up or update the database schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// opening the database migrates it
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close() //nolint: errcheck

		log.Info("Database migrations completed successfully!", "dialect", db.Dialect())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
