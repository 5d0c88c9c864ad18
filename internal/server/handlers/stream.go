package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var feedUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// statsPushInterval paces the periodic counters push to feed clients.
const statsPushInterval = 2 * time.Second

// StreamHandlers serve the websocket status feed: state transitions and
// control results as they happen, pipeline counters on a timer.
type StreamHandlers struct {
	serverService ServerService
}

// NewStreamHandlers creates a new stream handlers instance
func NewStreamHandlers(serverSvc ServerService) *StreamHandlers {
	return &StreamHandlers{serverService: serverSvc}
}

// HandleFeed upgrades the connection and pumps events until the client
// disconnects or the server shuts down.
func (h *StreamHandlers) HandleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("Failed to upgrade status feed websocket: %v", err)
		return
	}
	defer conn.Close()

	id, events := h.serverService.SubscribeStatus()
	if id == "" {
		return
	}
	defer h.serverService.UnsubscribeStatus(id)

	logrus.Infof("Status feed client connected: %s", id)

	// The read side only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	state := h.serverService.ConnectionState()
	hello := map[string]interface{}{
		"type":   "hello",
		"state":  state.State.String(),
		"since":  state.Since.Format(time.RFC3339),
		"format": h.serverService.StreamFormat().String(),
	}
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	ticker := time.NewTicker(statsPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			logrus.Infof("Status feed client disconnected: %s", id)
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			msg := map[string]interface{}{
				"type":  "stats",
				"state": h.serverService.ConnectionState().State.String(),
				"stats": h.serverService.PipelineStats(),
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
