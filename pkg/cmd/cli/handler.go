package cli

import "github.com/nsyszr/eventhub/config"

type Handler struct {
	Migration *MigrateHandler
	Config    *ConfigHandler
	Watch     *WatchHandler
}

func NewHandler(c *config.Config) *Handler {
	return &Handler{
		Migration: newMigrateHandler(c),
		Config:    newConfigHandler(c),
		Watch:     newWatchHandler(c),
	}
}
