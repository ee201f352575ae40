package cli

import (
	"os"

	colorable "github.com/mattn/go-colorable"
	"github.com/nsyszr/eventhub/config"
	"github.com/nsyszr/eventhub/pkg/storage/sqldb"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type MigrateHandler struct {
	c *config.Config
}

func newMigrateHandler(c *config.Config) *MigrateHandler {
	return &MigrateHandler{c: c}
}

// databaseURL returns the url given at position or the configured one.
func (h *MigrateHandler) databaseURL(args []string, position int) string {
	if len(args) > position && args[position] != "" {
		return args[position]
	}
	return h.c.DatabaseURL
}

func (h *MigrateHandler) MigrateSQL(cmd *cobra.Command, args []string) {
	log.SetLevel(log.DebugLevel)
	log.SetFormatter(&log.TextFormatter{
		ForceColors: true,
	})
	log.SetOutput(colorable.NewColorableStdout())

	if h.c.StorageDriver == config.StorageDriverMemory {
		log.Errorf("STORAGE_DRIVER is '%s', SQL migrations need '%s' or '%s'",
			h.c.StorageDriver, config.StorageDriverPostgres, config.StorageDriverSQLite)
		os.Exit(2)
	}

	url := h.databaseURL(args, 0)
	if url == "" {
		cmd.Println(cmd.UsageString())
		os.Exit(2) // Return missing keyword or command
	}

	log.WithField("driver", h.c.StorageDriver).Info("Applying SQL migration...")

	db, err := sqldb.Open(h.c.StorageDriver, url)
	if err != nil {
		log.Errorf("An error occurred while connecting to SQL: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	n, err := sqldb.Migrate(db)
	if err != nil {
		log.Errorf("An error occurred while running the migrations: %s", err)
		os.Exit(1)
	}
	log.Infof("Migration successful! Applied a total of %d migrations.", n)
}
