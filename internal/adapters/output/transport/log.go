package transport

import (
	"context"

	"github.com/rs/zerolog"
)

// LogTransmitter only logs signals. Used for dry runs.
type LogTransmitter struct {
	log zerolog.Logger
}

func NewLogTransmitter(logger zerolog.Logger) *LogTransmitter {
	return &LogTransmitter{log: logger}
}

func (t *LogTransmitter) Transmit(ctx context.Context, data string) error {
	t.log.Info().Str("data", data).Msg("transmit")
	return nil
}

func (t *LogTransmitter) Close() error { return nil }
