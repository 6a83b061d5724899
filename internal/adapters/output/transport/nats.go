package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"rf-accessory-bridge/internal/domain/model"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSTransmitter publishes raw signals on a NATS subject.
type NATSTransmitter struct {
	conn    natsPublisher
	subject string
}

func NewNATSTransmitter(cfg model.NATSTransportConfig, logger zerolog.Logger) (*NATSTransmitter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats transport: url is required")
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("rf-accessory-bridge"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSTransmitter{conn: nc, subject: cfg.Subject}, nil
}

func (t *NATSTransmitter) Transmit(ctx context.Context, data string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.conn.Publish(t.subject, []byte(data))
}

func (t *NATSTransmitter) Close() error {
	t.conn.Close()
	return nil
}
