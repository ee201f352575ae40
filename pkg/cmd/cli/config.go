package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"

	"github.com/nsyszr/eventhub/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type ConfigHandler struct {
	c *config.Config
}

func newConfigHandler(c *config.Config) *ConfigHandler {
	return &ConfigHandler{c: c}
}

func (h *ConfigHandler) PrintConfig(cmd *cobra.Command, args []string) {
	if err := h.write(cmd.OutOrStdout()); err != nil {
		fmt.Fprintf(os.Stderr, "Could not print config because %s\n", err)
		os.Exit(1)
	}
}

func (h *ConfigHandler) write(w io.Writer) error {
	c := *h.c
	c.DatabaseURL = redactDatabaseURL(c.DatabaseURL)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return err
	}
	return enc.Close()
}

var dsnPassword = regexp.MustCompile(`(?i)(password=)('[^']*'|[^\s&]+)`)

// redactDatabaseURL hides the password of URL and key=value connection
// strings.
func redactDatabaseURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.User != nil {
		raw = u.Redacted()
	}
	return dsnPassword.ReplaceAllString(raw, "${1}xxxxx")
}
