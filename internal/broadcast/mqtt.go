package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/washbay-server/washbay-server-pro/internal/core"
)

// MQTTGateway publishes device-state snapshots to an MQTT broker, for
// deployments where kiosks and dashboards subscribe over MQTT instead
// of NATS.
type MQTTGateway struct {
	client mqtt.Client
	qos    byte
}

// NewMQTTGateway connects to the broker and returns a gateway
func NewMQTTGateway(brokerURL, clientID, username, password string) (*MQTTGateway, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info().Str("broker", brokerURL).Msg("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		})

	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, err
	}

	return &MQTTGateway{client: client, qos: 0}, nil
}

// Publish sends the snapshot to the device's state topic
func (g *MQTTGateway) Publish(deviceID uuid.UUID, snapshot core.Snapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal device snapshot")
		return
	}

	topic := "device/" + deviceID.String() + "/state"
	token := g.client.Publish(topic, g.qos, false, data)

	// Fire and forget: wait briefly, then drop.
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Warn().Err(token.Error()).
				Str("device_id", deviceID.String()).
				Msg("Failed to publish device snapshot")
		}
	}()
}

// Close disconnects from the broker
func (g *MQTTGateway) Close() {
	g.client.Disconnect(250)
}
