package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	// eventStreamBuffer is the per-connection bus subscription buffer.
	// A client that stalls longer than this misses events rather than
	// backing up the bus.
	eventStreamBuffer = 64

	// eventWriteTimeout bounds a single frame write.
	eventWriteTimeout = 10 * time.Second
)

// handleEvents streams bus events to the client as JSON text frames
// over a WebSocket. The stream ends when the client disconnects or the
// gateway shuts down.
func (g *Gateway) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.bus == nil {
			http.Error(w, "event bus not available", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		// The stream is write-only; CloseRead reaps the connection when
		// the client goes away.
		ctx := conn.CloseRead(r.Context())

		evs, cancel := g.bus.Subscribe(eventStreamBuffer)
		defer cancel()

		g.logger.Debug("event stream opened", "remote_addr", r.RemoteAddr)

		for {
			select {
			case ev, ok := <-evs:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if err := writeFrame(ctx, conn, data); err != nil {
					return
				}
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			case <-g.stop:
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
