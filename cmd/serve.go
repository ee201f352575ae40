package cmd

import (
	"github.com/nsyszr/eventhub/pkg/cmd/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the EventHub API and event dispatcher",
	Run:   server.RunServeAPI(c),
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
