package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zsiec/autodirector/bus"
)

// wsWriteTimeout bounds a single websocket write so one stalled client
// cannot wedge its mirror goroutine.
const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API is a local/internal control surface; origin enforcement
	// belongs to whatever proxy fronts it in a real deployment.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS upgrades the connection and mirrors the scores, switch, and
// narration topics to the client as JSON envelopes. Read-only: client
// frames are consumed solely to detect disconnect. A slow client loses
// oldest events through the bus's bounded subscriber queue rather than
// backpressuring publishers.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "core not ready")
		return
	}
	if s.config.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "bus not available")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	scores := s.config.Bus.Subscribe(bus.TopicScores)
	switches := s.config.Bus.Subscribe(bus.TopicSwitch)
	narrations := s.config.Bus.Subscribe(bus.TopicNarration)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.log.Debug("websocket mirror connected", "remote", r.RemoteAddr)
	for {
		var env bus.Envelope
		select {
		case env = <-scores.C():
		case env = <-switches.C():
		case env = <-narrations.C():
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(env); err != nil {
			return
		}
	}
}
