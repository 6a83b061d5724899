package accessory

import (
	"rf-accessory-bridge/internal/domain/delay"
	"rf-accessory-bridge/internal/domain/model"
)

// lifecycle is the on/off core shared by Switch and Light: auto-on, auto-off
// and the liveness grace window.
type lifecycle struct {
	*base

	// stateChangeInProgress is set by every reset and cleared once pingGrace
	// elapsed. Liveness readings are ignored while it is set.
	stateChangeInProgress bool

	// setOn is the owner's On setter; automatic transitions and liveness
	// readings go through it like a user command would.
	setOn func(on bool) error
}

func newLifecycle(cfg *model.AccessoryConfig, opts Options) *lifecycle {
	return &lifecycle{base: newBase(cfg, opts)}
}

// Reset cancels every pending timer of the accessory.
func (l *lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()
}

func (l *lifecycle) resetLocked() {
	l.base.resetLocked()
	l.stateChangeInProgress = true
}

// checkAutoOnOffLocked resets and then arms the grace, auto-off and auto-on
// timers, each in its own slot.
func (l *lifecycle) checkAutoOnOffLocked() {
	l.resetLocked()
	gen := l.gen

	grace := l.slots.Start(slotPingGrace, model.Seconds(l.cfg.PingGrace))
	go l.endGraceAfter(grace, gen)

	if l.state.SwitchState && l.cfg.AutoOffEnabled() {
		l.log.Info().Float64("seconds", l.cfg.OnDuration).Msg("setSwitchState: automatically turn off")
		h := l.slots.Start(slotAutoOff, model.Seconds(l.cfg.OnDuration))
		go l.switchAfter(h, gen, false)
	}

	if !l.state.SwitchState && l.cfg.AutoOnEnabled() {
		l.log.Info().Float64("seconds", l.cfg.OffDuration).Msg("setSwitchState: automatically turn on")
		h := l.slots.Start(slotAutoOn, model.Seconds(l.cfg.OffDuration))
		go l.switchAfter(h, gen, true)
	}
}

func (l *lifecycle) endGraceAfter(h *delay.Handle, gen uint64) {
	if !h.Wait(l.ctx) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == gen {
		l.stateChangeInProgress = false
	}
}

func (l *lifecycle) switchAfter(h *delay.Handle, gen uint64, on bool) {
	if !h.Wait(l.ctx) {
		return
	}
	l.mu.Lock()
	current := l.gen == gen
	l.mu.Unlock()
	if !current || l.setOn == nil {
		return
	}
	if err := l.setOn(on); err != nil {
		l.log.Error().Err(err).Bool("on", on).Msg("automatic switch failed")
	}
}

// PingCallback consumes a liveness reading.
func (l *lifecycle) PingCallback(active bool) {
	l.mu.Lock()
	if l.stateChangeInProgress {
		l.mu.Unlock()
		return
	}
	if l.cfg.PingIPAddressStateOnly {
		l.setSwitchStateLocked(active)
		l.refreshLocked(model.CharacteristicOn)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	if l.setOn == nil {
		return
	}
	if err := l.setOn(active); err != nil {
		l.log.Error().Err(err).Bool("active", active).Msg("liveness switch failed")
	}
}

// acceptOnLocked applies the characteristic layer rule: an unchanged value is
// ignored unless resending is allowed. It returns the previous value.
func (l *lifecycle) acceptOnLocked(on bool) (previous bool, accepted bool) {
	previous = l.state.SwitchState
	if previous == on && !l.cfg.AllowResend {
		l.log.Debug().Bool("on", on).Msg("setSwitchState: already set")
		return previous, false
	}
	l.setSwitchStateLocked(on)
	l.refreshLocked(model.CharacteristicOn)
	return previous, true
}

func (l *lifecycle) toggleData(on bool) model.Payload {
	if on {
		return l.signal("on")
	}
	return l.signal("off")
}
