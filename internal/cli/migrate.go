package cli

import (
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/gedebog_store/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	_, logger, gdb, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}
