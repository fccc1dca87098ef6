package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"

	"github.com/kartexhq/kartex/pkg/broadcast"
	"github.com/kartexhq/kartex/pkg/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is the wire shape for every message pushed to a WebSocket
// client: a "type" discriminator plus a payload, matching the original
// WsMessage enum's serde(tag = "type") encoding.
type wsFrame struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (h *handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		level.Warn(h.Logger).Log("msg", "websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.WriteJSON(wsFrame{Type: "connected", Message: "Connected to Kartex log stream"}); err != nil {
		return
	}

	sub := h.Broadcaster.Subscribe()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		defer cancel()
		for {
			result, msg, n := sub.Recv(ctx)
			switch result {
			case broadcast.RecvClosed:
				return
			case broadcast.RecvLagged:
				frame := wsFrame{Type: "error", Message: fmt.Sprintf("Skipped %d messages due to slow connection", n)}
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			case broadcast.RecvMessage:
				if err := conn.WriteJSON(wsFrame{Type: string(msg.Kind), Data: msg.Data}); err != nil {
					return
				}
			}
		}
	}()

	select {
	case <-readDone:
	case <-writeDone:
	}
}

// RunMetricsBroadcaster ticks every interval until ctx is cancelled,
// publishing a Metrics message with the current snapshot — the dedicated
// task spec.md §2 names for keeping WebSocket subscribers' metrics views
// live between ingestion events.
func RunMetricsBroadcaster(ctx context.Context, broadcaster *broadcast.Broadcaster, tracker *metrics.Tracker, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			broadcaster.Publish(broadcast.MetricsMessage(tracker.Snapshot()))
		}
	}
}
