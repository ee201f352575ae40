package api

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketPongsDoNotInterleaveWithNotifications(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	wc := &wsConn{conn: server}
	go wc.readLoop()

	const messages = 50
	go func() {
		for i := 0; i < messages; i++ {
			if err := wc.writeText([]byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
				return
			}
		}
	}()
	go func() {
		for i := 0; i < 5; i++ {
			ping := ws.MaskFrame(ws.NewPingFrame([]byte("keepalive")))
			if err := ws.WriteFrame(client, ping); err != nil {
				return
			}
		}
	}()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))

	texts, pongs := 0, 0
	for texts < messages || pongs < 5 {
		f, err := ws.ReadFrame(client)
		require.NoError(t, err)

		switch f.Header.OpCode {
		case ws.OpText:
			assert.True(t, json.Valid(f.Payload), "corrupted frame %q", f.Payload)
			texts++
		case ws.OpPong:
			assert.Equal(t, "keepalive", string(f.Payload))
			pongs++
		default:
			t.Fatalf("unexpected opcode %v", f.Header.OpCode)
		}
	}

	assert.Equal(t, messages, texts)
	assert.Equal(t, 5, pongs)
}
