package accessory

import (
	"time"

	"rf-accessory-bridge/internal/domain/delay"
	"rf-accessory-bridge/internal/domain/model"
)

// WindowCovering estimates the position of a motor that only understands
// open, close and stop. The position is derived from elapsed travel time.
type WindowCovering struct {
	*base
}

func NewWindowCovering(cfg *model.AccessoryConfig, opts Options) *WindowCovering {
	w := &WindowCovering{base: newBase(cfg, opts)}
	w.state.PositionState = model.PositionStopped
	return w
}

// Reset cancels the initial delay, the auto-stop and the position updates.
func (w *WindowCovering) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

// SetTargetPosition is the TargetPosition characteristic setter. It returns
// once the movement has started; the auto-stop runs in the background.
func (w *WindowCovering) SetTargetPosition(target int) error {
	target = model.ClampPercent(target)

	w.mu.Lock()
	defer w.mu.Unlock()

	if target == w.state.TargetPosition && !w.cfg.AllowResend {
		w.log.Debug().Int("target", target).Msg("setTargetPosition: already set")
		return nil
	}
	w.setIntLocked(model.CharacteristicTargetPosition, &w.state.TargetPosition, target)
	w.refreshLocked(model.CharacteristicTargetPosition)

	w.resetLocked()
	gen := w.gen

	if !w.waitLocked(slotInitialDelay, model.Seconds(w.cfg.InitialDelay), gen) {
		return nil
	}

	if w.completelyLocked() {
		return nil
	}

	w.log.Info().Msg("setTargetPosition: (set new position)")

	difference := w.state.TargetPosition - w.state.CurrentPosition
	var payload model.Payload
	switch {
	case difference > 0:
		w.setPositionStateLocked(model.PositionIncreasing)
		payload = w.signal("open")
	case difference < 0:
		w.setPositionStateLocked(model.PositionDecreasing)
		payload = w.signal("close")
	default:
		w.setPositionStateLocked(model.PositionStopped)
	}

	w.openOrCloseLocked(gen, payload)
	return nil
}

func (w *WindowCovering) openOrCloseLocked(gen uint64, payload model.Payload) {
	w.refreshLocked(model.CharacteristicPositionState)

	full := w.fullDurationLocked()
	difference := abs(w.state.TargetPosition - w.state.CurrentPosition)
	total := time.Duration(float64(difference) / 100 * float64(full))

	w.log.Info().
		Int("current", w.state.CurrentPosition).
		Int("target", w.state.TargetPosition).
		Stringer("state", w.state.PositionState).
		Dur("untilStop", total).
		Msg("setTargetPosition: position change")

	w.sendLocked(payload, "setTargetPosition")

	if w.state.PositionState != model.PositionStopped {
		// The first tick only fires after one percent of travel, so publish
		// the first percent now and skip that tick.
		w.setIntLocked(model.CharacteristicCurrentPosition, &w.state.CurrentPosition, w.upToDatePositionLocked())
		w.refreshLocked(model.CharacteristicCurrentPosition)

		tick := w.slots.Start(slotPositionUpdate, full/100)
		go w.trackPosition(tick, gen, full/100)
	}

	autoStop := w.slots.Start(slotAutoStop, total)
	go w.autoStopAfter(autoStop, gen)
}

func (w *WindowCovering) autoStopAfter(h *delay.Handle, gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.awaitLocked(h, gen) {
		return
	}
	w.stopLocked()
	w.setIntLocked(model.CharacteristicCurrentPosition, &w.state.CurrentPosition, w.state.TargetPosition)
	w.refreshLocked(model.CharacteristicCurrentPosition)
}

// trackPosition moves the published position one percent per tick until the
// covering stops or the movement is superseded.
func (w *WindowCovering) trackPosition(tick *delay.Handle, gen uint64, interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for first := true; ; first = false {
		if !w.awaitLocked(tick, gen) || w.state.PositionState == model.PositionStopped {
			return
		}
		if !first {
			position := w.upToDatePositionLocked()
			w.setIntLocked(model.CharacteristicCurrentPosition, &w.state.CurrentPosition, position)
			w.refreshLocked(model.CharacteristicCurrentPosition)
			w.log.Debug().Int("position", position).Stringer("state", w.state.PositionState).Msg("setTargetPosition: updated position")
		}
		tick = w.slots.Start(slotPositionUpdate, interval)
	}
}

func (w *WindowCovering) stopLocked() {
	w.log.Info().Msg("setTargetPosition: (stop window covering)")
	w.resetLocked()

	target := w.state.TargetPosition
	switch {
	case target == 100 && w.cfg.SendStopAt100,
		target == 0 && w.cfg.SendStopAt0,
		target != 0 && target != 100:
		w.sendLocked(w.signal("stop"), "stopWindowCovering")
	}

	w.setPositionStateLocked(model.PositionStopped)
	w.refreshLocked(model.CharacteristicPositionState)
}

// completelyLocked handles targets 0 and 100 when a dedicated
// closeCompletely/openCompletely signal exists.
func (w *WindowCovering) completelyLocked() bool {
	target := w.state.TargetPosition

	var key string
	switch {
	case target == 0 && w.cfg.Data.Has("closeCompletely"):
		key = "closeCompletely"
	case target == 100 && w.cfg.Data.Has("openCompletely"):
		key = "openCompletely"
	default:
		return false
	}

	w.setIntLocked(model.CharacteristicCurrentPosition, &w.state.CurrentPosition, target)
	w.refreshLocked(model.CharacteristicCurrentPosition)
	w.sendLocked(w.signal(key), "setTargetPosition")
	w.stopLocked()
	return true
}

func (w *WindowCovering) fullDurationLocked() time.Duration {
	switch w.state.PositionState {
	case model.PositionIncreasing:
		return model.Seconds(w.cfg.TotalDurationOpen)
	case model.PositionDecreasing:
		return model.Seconds(w.cfg.TotalDurationClose)
	}
	return 0
}

func (w *WindowCovering) upToDatePositionLocked() int {
	position := w.state.CurrentPosition
	switch w.state.PositionState {
	case model.PositionIncreasing:
		position++
	case model.PositionDecreasing:
		position--
	}
	return model.ClampPercent(position)
}
