package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/appmonitor/internal/engine"
	"github.com/spf13/cobra"
)

var seedCmdFlags struct {
	AdminPassword string
	UserPassword  string
	UsersPerCo    int
	Seed          uint64
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill an empty database with sample data",
	Long: `Create sample companies with admins, users, SSO applications, metrics, events and activity.

The database must be empty. Run "appmonitor reset --yes" first to start over.`,
	RunE: seed,
}

func init() {
	seedCmd.Flags().StringVar(&seedCmdFlags.AdminPassword, "admin-password", "admin123", "Password of the generated company admins")
	seedCmd.Flags().StringVar(&seedCmdFlags.UserPassword, "user-password", "user123", "Password of the generated users")
	seedCmd.Flags().IntVar(&seedCmdFlags.UsersPerCo, "users", 4, "Number of regular users per company")
	seedCmd.Flags().Uint64Var(&seedCmdFlags.Seed, "seed", 1, "Random seed for reproducible data")

	rootCmd.AddCommand(seedCmd)
}

func seed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	eng, err := engine.New(cfg, db)
	if err != nil {
		return err
	}
	defer eng.Close() //nolint:errcheck

	sum, err := eng.Seed(cmd.Context(), engine.SeedOptions{
		AdminPassword: seedCmdFlags.AdminPassword,
		UserPassword:  seedCmdFlags.UserPassword,
		UsersPerCo:    seedCmdFlags.UsersPerCo,
		Seed:          seedCmdFlags.Seed,
	})
	if err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}

	log.Info("Database seeded",
		"companies", sum.Companies,
		"users", sum.Users,
		"applications", sum.Applications,
		"metrics", sum.Metrics,
		"events", sum.Events,
		"activities", sum.Activities,
	)
	fmt.Printf("Admin accounts (password %q): %s\n", seedCmdFlags.AdminPassword, strings.Join(sum.Admins, ", "))
	return nil
}
