package ports

import (
	"context"
	"time"

	"rf-accessory-bridge/internal/domain/model"
)

// Sender transmits a payload without acknowledgement. Send must not block on
// the network: it returns once the payload is queued, and payloads go out in
// the order they were sent.
type Sender interface {
	Send(ctx context.Context, payload model.Payload) error
}

// CharacteristicNotifier receives outward UI notifications. Implementations
// must not call back into the accessory.
type CharacteristicNotifier interface {
	Refresh(accessory string, kind model.CharacteristicKind, value interface{})
}

// HistoryRecorder keeps the append-only on/off history of an accessory.
type HistoryRecorder interface {
	Record(ctx context.Context, accessory string, at time.Time, on bool) error
	InitialTime(accessory string) (time.Time, bool)
	Close() error
}

// LivenessProbe polls address every interval until ctx is done and reports
// whether it answered.
type LivenessProbe interface {
	Watch(ctx context.Context, address string, interval time.Duration, callback func(active bool))
}
