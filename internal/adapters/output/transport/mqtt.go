package transport

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"rf-accessory-bridge/internal/domain/model"
)

const publishTimeout = 5 * time.Second

// MQTTTransmitter publishes raw signals to a topic read by an RF/IR bridge
// such as broadlink-mqtt.
type MQTTTransmitter struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewMQTTTransmitter(cfg model.MQTTTransportConfig, logger zerolog.Logger) (*MQTTTransmitter, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt transport: broker is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "rf-accessory-bridge"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("MQTT client connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Error().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// SetConnectRetry keeps trying in the background.
		logger.Warn().Str("broker", cfg.Broker).Msg("MQTT connection pending")
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return newMQTTTransmitter(client, cfg.Topic, cfg.QoS), nil
}

func newMQTTTransmitter(client mqtt.Client, topic string, qos byte) *MQTTTransmitter {
	return &MQTTTransmitter{client: client, topic: topic, qos: qos}
}

func (t *MQTTTransmitter) Transmit(ctx context.Context, data string) error {
	token := t.client.Publish(t.topic, t.qos, false, []byte(data))

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt publish to %s: timeout", t.topic)
	}
	return token.Error()
}

func (t *MQTTTransmitter) Close() error {
	t.client.Disconnect(250)
	return nil
}
