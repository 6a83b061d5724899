// Package accessory implements the open-loop controllers: the on/off lifecycle
// shared by switches and lights, the light controller and the window covering
// position tracker.
//
// Every controller guards its DeviceState with its own mutex. Waits happen with
// the mutex released; a reset bumps the controller's generation so that a flow
// resuming after a wait can tell it has been superseded and stops.
package accessory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rf-accessory-bridge/internal/domain/delay"
	"rf-accessory-bridge/internal/domain/model"
	"rf-accessory-bridge/internal/ports"
)

// Timed is the capability every controller offers: named timer slots that a
// reset cancels as a whole.
type Timed interface {
	Name() string
	Reset()
	PendingTimers() int
	State() model.DeviceState
	Close()
}

// StateChange is passed to observers after a state field changed.
type StateChange struct {
	Accessory string
	Kind      model.CharacteristicKind
	Old       interface{}
	New       interface{}
	At        time.Time
}

type StateObserver interface {
	StateChanged(change StateChange)
}

// ObserverFunc adapts a function to StateObserver.
type ObserverFunc func(change StateChange)

func (f ObserverFunc) StateChanged(change StateChange) { f(change) }

type Options struct {
	Sender    ports.Sender
	Notifier  ports.CharacteristicNotifier
	Clock     delay.Clock
	Logger    zerolog.Logger
	Observers []StateObserver
	// Context bounds the lifetime of all timers; Close cancels it as well.
	Context context.Context
}

const (
	slotPingGrace      delay.Slot = "pingGrace"
	slotAutoOff        delay.Slot = "autoOff"
	slotAutoOn         delay.Slot = "autoOn"
	slotOnDelay        delay.Slot = "onDelay"
	slotInitialDelay   delay.Slot = "initialDelay"
	slotAutoStop       delay.Slot = "autoStop"
	slotPositionUpdate delay.Slot = "positionUpdate"
)

type base struct {
	name      string
	cfg       *model.AccessoryConfig
	sender    ports.Sender
	notifier  ports.CharacteristicNotifier
	clock     delay.Clock
	slots     *delay.Slots
	log       zerolog.Logger
	observers []StateObserver

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	gen   uint64
	state model.DeviceState
	// repeats cancels the in-flight repeat payload of each operation.
	repeats map[string]context.CancelFunc
}

func newBase(cfg *model.AccessoryConfig, opts Options) *base {
	if opts.Clock == nil {
		opts.Clock = delay.Wall
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	ctx, cancel := context.WithCancel(opts.Context)
	return &base{
		name:      cfg.Name,
		cfg:       cfg,
		sender:    opts.Sender,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		slots:     delay.NewSlots(opts.Clock),
		log:       opts.Logger.With().Str("accessory", cfg.Name).Logger(),
		observers: opts.Observers,
		ctx:       ctx,
		cancel:    cancel,
		repeats:   make(map[string]context.CancelFunc),
	}
}

func (b *base) Name() string {
	return b.name
}

func (b *base) State() model.DeviceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *base) PendingTimers() int {
	return b.slots.Pending()
}

// Close cancels every timer and stops the accessory's flows for good.
func (b *base) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	b.cancel()
}

func (b *base) resetLocked() {
	b.gen++
	b.slots.CancelAll()
}

// waitLocked starts slot and waits for it with the mutex released. It reports
// false when the wait was cancelled or a reset happened meanwhile; the caller
// must then abandon its flow. The mutex is held again on return.
func (b *base) waitLocked(slot delay.Slot, d time.Duration, gen uint64) bool {
	return b.awaitLocked(b.slots.Start(slot, d), gen)
}

// awaitLocked is waitLocked for a handle that was already started.
func (b *base) awaitLocked(h *delay.Handle, gen uint64) bool {
	b.mu.Unlock()
	elapsed := h.Wait(b.ctx)
	b.mu.Lock()
	return elapsed && b.gen == gen
}

func (b *base) sendLocked(p model.Payload, op string) {
	if p.IsZero() || b.sender == nil {
		return
	}
	b.log.Debug().Str("op", op).Str("payload", p.String()).Msg("send")
	ctx := b.ctx
	if p.IsRepeat() {
		// a newer repeat of the same operation replaces the remaining pulses
		if cancel, ok := b.repeats[op]; ok {
			cancel()
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(b.ctx)
		b.repeats[op] = cancel
	}
	if err := b.sender.Send(ctx, p); err != nil {
		b.log.Error().Err(err).Str("op", op).Msg("send failed")
	}
}

// cancelRepeatsLocked stops every repeat payload still being transmitted.
func (b *base) cancelRepeatsLocked() {
	for op, cancel := range b.repeats {
		cancel()
		delete(b.repeats, op)
	}
}

func (b *base) signal(key string) model.Payload {
	p, _ := b.cfg.Data.Signal(key)
	return p
}

func (b *base) refreshLocked(kind model.CharacteristicKind) {
	if b.notifier == nil {
		return
	}
	b.notifier.Refresh(b.name, kind, b.valueLocked(kind))
}

func (b *base) valueLocked(kind model.CharacteristicKind) interface{} {
	switch kind {
	case model.CharacteristicOn:
		return b.state.SwitchState
	case model.CharacteristicBrightness:
		return b.state.Brightness
	case model.CharacteristicColorTemperature:
		return b.state.ColorTemperature
	case model.CharacteristicHue:
		return b.state.Hue
	case model.CharacteristicSaturation:
		return b.state.Saturation
	case model.CharacteristicCurrentPosition:
		return b.state.CurrentPosition
	case model.CharacteristicTargetPosition:
		return b.state.TargetPosition
	case model.CharacteristicPositionState:
		return b.state.PositionState
	case model.CharacteristicLastActivation:
		return b.state.LastActivation
	}
	return nil
}

func (b *base) emitLocked(kind model.CharacteristicKind, old, new interface{}) {
	change := StateChange{
		Accessory: b.name,
		Kind:      kind,
		Old:       old,
		New:       new,
		At:        b.clock.Now(),
	}
	for _, o := range b.observers {
		o.StateChanged(change)
	}
}

func (b *base) setSwitchStateLocked(on bool) {
	old := b.state.SwitchState
	if old == on {
		return
	}
	b.state.SwitchState = on
	b.state.LastActivation = b.clock.Now()
	b.emitLocked(model.CharacteristicOn, old, on)
}

func (b *base) setIntLocked(kind model.CharacteristicKind, field *int, v int) {
	old := *field
	if old == v {
		return
	}
	*field = v
	b.emitLocked(kind, old, v)
}

func (b *base) setPositionStateLocked(ps model.PositionState) {
	old := b.state.PositionState
	if old == ps {
		return
	}
	b.state.PositionState = ps
	b.emitLocked(model.CharacteristicPositionState, old, ps)
}
