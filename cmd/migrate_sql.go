package cmd

import (
	"github.com/spf13/cobra"
)

// migrateSQLCmd represents the migrate sql command
var migrateSQLCmd = &cobra.Command{
	Use:   "sql [database-url]",
	Short: "Create SQL schemas and apply migration plans",
	Long: `Applies all pending migrations of the configured STORAGE_DRIVER
(postgres or sqlite). The database URL defaults to DATABASE_URL.`,
	Args: cobra.MaximumNArgs(1),
	Run:  cmdHandler.Migration.MigrateSQL,
}

func init() {
	migrateCmd.AddCommand(migrateSQLCmd)
}
