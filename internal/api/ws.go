package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/washbay-server/washbay-server-pro/internal/broadcast"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients authenticate with the bearer token; origin
	// filtering happens at the proxy layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// HandleDeviceStateSocket relays the device's state snapshots from the
// broadcast channel to a websocket client.
func (s *RESTServer) HandleDeviceStateSocket(w http.ResponseWriter, r *http.Request) {
	if s.nats == nil {
		s.respondError(w, http.StatusServiceUnavailable, "real-time channel is not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := make(chan []byte, 16)
	sub, err := s.nats.Subscribe(broadcast.SubjectFor(id), func(msg *nats.Msg) {
		select {
		case updates <- msg.Data:
		default:
			// Slow consumer, drop the snapshot. The next one carries
			// the full state anyway.
		}
	})
	if err != nil {
		log.Error().Err(err).Str("device_id", id.String()).Msg("Failed to subscribe to device state")
		return
	}
	defer sub.Unsubscribe()

	// Reader goroutine detects client disconnect
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-updates:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
