package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/eventhub/config"
	"github.com/nsyszr/eventhub/pkg/queue"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type WatchHandler struct {
	c *config.Config
}

func newWatchHandler(c *config.Config) *WatchHandler {
	return &WatchHandler{c: c}
}

// Watch prints every message on the events subject until interrupted. It
// uses a plain subscription, so the durable consumer isn't affected.
func (h *WatchHandler) Watch(cmd *cobra.Command, args []string) {
	nc, err := nats.Connect(h.c.NATSServerURL)
	if err != nil {
		log.Error("Failed to connect to NATS: ", err)
		os.Exit(1)
	}
	defer nc.Close()

	out := cmd.OutOrStdout()
	if _, err := nc.Subscribe(h.c.EventsSubject, func(m *nats.Msg) {
		fmt.Fprintln(out, formatWatchedMessage(m))
	}); err != nil {
		log.Error("Failed to subscribe: ", err)
		os.Exit(1)
	}

	log.WithField("subject", h.c.EventsSubject).Info("Watching events, press Ctrl+C to stop")

	// Wait for interrupt signal
	quitCh := make(chan os.Signal, 1)
	signal.Notify(quitCh, os.Interrupt)
	<-quitCh
}

func formatWatchedMessage(m *nats.Msg) string {
	msg := queue.EventMessage{}
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		return fmt.Sprintf("subject: %s, message: %s", m.Subject, string(m.Data))
	}
	return fmt.Sprintf("subject: %s, event: %d, title: %q, source: %s, type: %s, timestamp: %s",
		m.Subject, msg.EventID, msg.Title, msg.Source, msg.Type, msg.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
}
