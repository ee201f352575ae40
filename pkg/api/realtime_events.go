package api

import (
	"encoding/json"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/labstack/echo"
	"github.com/nsyszr/eventhub/pkg/api/resource"
	log "github.com/sirupsen/logrus"
)

// wsConn writes whole frames under a lock. Control replies sent by the
// reader and notifications sent by the writer share the connection.
type wsConn struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeText(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return wsutil.WriteServerMessage(c.conn, ws.OpText, p)
}

func (c *wsConn) handleControl(hdr ws.Header, r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return wsutil.ControlFrameHandler(c.conn, ws.StateServerSide)(hdr, r)
}

// readLoop answers control frames and discards client data until the
// connection fails or the client closes it.
func (c *wsConn) readLoop() error {
	rd := &wsutil.Reader{
		Source:         c.conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: c.handleControl,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, rd); err != nil {
				return err
			}
			continue
		}
		if err := rd.Discard(); err != nil {
			return err
		}
	}
}

// realtimeEventsHandler streams the same notifications as the SSE endpoint
// over a WebSocket. Client frames are read only to notice the disconnect.
func (h *Handler) realtimeEventsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
		if err != nil {
			log.Error("api: failed to upgrade to websocket: ", err)
			return nil
		}
		defer conn.Close()
		wc := &wsConn{conn: conn}

		sub := h.hub.Subscribe()
		defer sub.Close()

		logger := log.WithField("subscriber_id", sub.ID)
		logger.Info("WebSocket client connected")
		defer logger.Info("WebSocket client disconnected")

		go func() {
			defer sub.Close()
			wc.readLoop()
		}()

		for {
			select {
			case <-sub.Done():
				return nil
			case n := <-sub.C():
				out, err := json.Marshal(resource.NewRealtimeEvent(n.Name, n.Data))
				if err != nil {
					logger.Error("api: failed to encode realtime event: ", err)
					continue
				}
				if err := wc.writeText(out); err != nil {
					logger.Debug("api: failed to send realtime event: ", err)
					return nil
				}
			}
		}
	}
}
