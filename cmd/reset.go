package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var resetCmdFlags struct {
	Yes bool
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate all tables",
	Long:  `This command drops every App Monitor table and recreates an empty schema. All data is lost.`,
	RunE:  reset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetCmdFlags.Yes, "yes", "y", false, "Confirm that all data should be deleted")

	rootCmd.AddCommand(resetCmd)
}

func reset(cmd *cobra.Command, _ []string) error {
	if !resetCmdFlags.Yes {
		return errors.New("refusing to reset the database without --yes")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	log.Warn("Resetting database", "dialect", db.Dialect())
	if err := db.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}

	log.Info("Successfully reset the database!")
	return nil
}
