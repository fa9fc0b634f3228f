package broadcast

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/washbay-server/washbay-server-pro/internal/core"
)

// NATSGateway publishes device-state snapshots to NATS subjects.
type NATSGateway struct {
	conn *nats.Conn
}

// NewNATSGateway connects to NATS and returns a gateway
func NewNATSGateway(url string) (*NATSGateway, error) {
	conn, err := nats.Connect(url,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", url).Msg("Connected to NATS")
	return &NATSGateway{conn: conn}, nil
}

// Publish sends the snapshot to the device's state subject
func (g *NATSGateway) Publish(deviceID uuid.UUID, snapshot core.Snapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal device snapshot")
		return
	}

	if err := g.conn.Publish(SubjectFor(deviceID), data); err != nil {
		log.Warn().Err(err).
			Str("device_id", deviceID.String()).
			Msg("Failed to publish device snapshot")
	}
}

// Conn exposes the underlying connection for subscribers
func (g *NATSGateway) Conn() *nats.Conn {
	return g.conn
}

// Close drains and closes the connection
func (g *NATSGateway) Close() {
	if g.conn != nil {
		g.conn.Close()
	}
}
