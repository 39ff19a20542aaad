package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/appmonitor/internal/engine"
	"github.com/spf13/cobra"
)

var createAdminCmdFlags struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
	CompanyID uint
}

var createAdminCmd = &cobra.Command{
	Use:     "create-admin",
	Short:   "Create an administrator account",
	Long:    `Create an active administrator that can log in with a password.`,
	Example: `appmonitor create-admin --email admin@example.com --password 'changeme' --company 1`,
	RunE:    createAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&createAdminCmdFlags.Email, "email", "", "Email address of the admin")
	createAdminCmd.Flags().StringVar(&createAdminCmdFlags.Username, "username", "", "Username (default: derived from the email)")
	createAdminCmd.Flags().StringVar(&createAdminCmdFlags.FirstName, "first-name", "Admin", "First name")
	createAdminCmd.Flags().StringVar(&createAdminCmdFlags.LastName, "last-name", "User", "Last name")
	createAdminCmd.Flags().StringVar(&createAdminCmdFlags.Password, "password", "", "Password of the admin")
	createAdminCmd.Flags().UintVar(&createAdminCmdFlags.CompanyID, "company", 0, "Company the admin belongs to")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(createAdminCmd)
}

func createAdmin(cmd *cobra.Command, _ []string) error {
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

	in := engine.AdminInput{
		Email:     createAdminCmdFlags.Email,
		Username:  createAdminCmdFlags.Username,
		FirstName: createAdminCmdFlags.FirstName,
		LastName:  createAdminCmdFlags.LastName,
		Password:  createAdminCmdFlags.Password,
	}
	if createAdminCmdFlags.CompanyID != 0 {
		in.CompanyID = &createAdminCmdFlags.CompanyID
	}

	user, err := eng.CreateAdmin(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	log.Info("Created admin", "id", user.ID, "username", user.Username, "email", user.Email)
	return nil
}
