package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// migrateCmd groups the schema migration commands
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply event store schema migrations",
	Long: `Migrations are only needed for the SQL event stores. The memory
store keeps no schema.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
