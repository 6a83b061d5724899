package accessory

import (
	"errors"
	"fmt"
	"sync"

	"rf-accessory-bridge/internal/domain/model"
)

// Light adds brightness, colour temperature and hue on top of the on/off
// lifecycle. Lights in an exclusivity group turn each other off.
type Light struct {
	*lifecycle

	exMu       sync.Mutex
	exclusives []*Light

	// lastBrightness is the brightness last sent, nil when unknown.
	lastBrightness *int
}

func NewLight(cfg *model.AccessoryConfig, opts Options) *Light {
	l := &Light{lifecycle: newLifecycle(cfg, opts)}
	l.state.ColorTemperature = cfg.DefaultColorTemperature
	l.setOn = l.SetOn
	return l
}

// LinkExclusive makes l and peer mutually exclusive.
func (l *Light) LinkExclusive(peer *Light) {
	if peer == nil || peer == l {
		return
	}
	l.addExclusive(peer)
	peer.addExclusive(l)
}

func (l *Light) addExclusive(peer *Light) {
	l.exMu.Lock()
	defer l.exMu.Unlock()
	for _, x := range l.exclusives {
		if x == peer {
			return
		}
	}
	l.exclusives = append(l.exclusives, peer)
}

func (l *Light) Exclusives() []*Light {
	l.exMu.Lock()
	defer l.exMu.Unlock()
	return append([]*Light(nil), l.exclusives...)
}

// LastSentBrightness returns the brightness this controller last sent.
func (l *Light) LastSentBrightness() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastBrightness == nil {
		return 0, false
	}
	return *l.lastBrightness, true
}

// setExclusivesOff must be called without holding l.mu.
func (l *Light) setExclusivesOff() {
	for _, x := range l.Exclusives() {
		if x.forceOff() {
			l.log.Info().Str("peer", x.Name()).Msg("setSwitchState: exclusive peer turned off")
		}
	}
}

func (l *Light) forceOff() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.state.SwitchState {
		return false
	}
	l.resetLocked()
	l.cancelRepeatsLocked()
	l.setSwitchStateLocked(false)
	l.lastBrightness = nil
	l.refreshLocked(model.CharacteristicOn)
	return true
}

// SetOn is the On characteristic setter. Switching on publishes the default
// (or last known) brightness so that the brightness setter runs the actual
// on-sequence.
func (l *Light) SetOn(on bool) error {
	l.mu.Lock()
	previous, ok := l.acceptOnLocked(on)
	if !ok {
		l.mu.Unlock()
		return nil
	}
	l.resetLocked()

	if !on {
		l.lastBrightness = nil
		l.cancelRepeatsLocked()
		l.sendLocked(l.toggleData(false), "setSwitchState")
		l.checkAutoOnOffLocked()
		l.mu.Unlock()
		return nil
	}

	gen := l.gen
	l.mu.Unlock()
	l.setExclusivesOff()
	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		return nil
	}

	brightness := l.cfg.DefaultBrightness
	if l.cfg.UseLastKnownBrightness && l.state.Brightness > 0 {
		brightness = l.state.Brightness
	}
	colorTemperature := l.cfg.DefaultColorTemperature
	if l.cfg.UseLastKnownColorTemperature && l.state.ColorTemperature > 0 {
		colorTemperature = l.state.ColorTemperature
	}

	// Without brightness signals the light is a plain on/off device.
	if !l.hasBrightness() {
		l.sendLocked(l.toggleData(true), "setSwitchState")
		withColorTemperature := l.hasColorTemperature()
		if !withColorTemperature {
			l.checkAutoOnOffLocked()
		}
		l.mu.Unlock()

		if withColorTemperature {
			return l.SetColorTemperature(colorTemperature)
		}
		return nil
	}

	if brightness != l.state.Brightness || previous != l.state.SwitchState {
		l.log.Info().Int("brightness", brightness).Msg("setSwitchState")
		l.setSwitchStateLocked(false)
		withColorTemperature := l.hasColorTemperature()
		l.mu.Unlock()

		err := l.SetBrightness(brightness)
		if withColorTemperature {
			err = errors.Join(err, l.SetColorTemperature(colorTemperature))
		}
		return err
	}

	l.sendLocked(l.toggleData(true), "setSwitchState")
	l.checkAutoOnOffLocked()
	l.mu.Unlock()
	return nil
}

func (l *Light) SetBrightness(v int) error {
	v = model.ClampPercent(v)

	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.state.Brightness
	l.setIntLocked(model.CharacteristicBrightness, &l.state.Brightness, v)
	l.refreshLocked(model.CharacteristicBrightness)
	return l.brightnessFlowLocked(previous)
}

func (l *Light) brightnessFlowLocked(previous int) error {
	brightness := l.state.Brightness

	if l.lastBrightness != nil && *l.lastBrightness == brightness {
		if brightness > 0 {
			l.setSwitchStateLocked(true)
		}
		l.checkAutoOnOffLocked()
		return nil
	}

	var payload model.Payload
	if brightness > 0 {
		p, err := l.brightnessPayloadLocked(previous, brightness)
		if err != nil {
			return err
		}
		payload = p
	}

	l.lastBrightness = &brightness
	l.resetLocked()
	gen := l.gen

	if brightness > 0 {
		if !l.turnOnLocked(gen, "setBrightness") {
			return nil
		}
		l.sendLocked(payload, "setBrightness")
	} else {
		l.log.Info().Msg("setBrightness: (off)")
		l.sendLocked(l.signal("off"), "setBrightness")
	}

	l.checkAutoOnOffLocked()
	return nil
}

func (l *Light) brightnessPayloadLocked(previous, brightness int) (model.Payload, error) {
	if l.cfg.Stepped("brightness") {
		inc, dec, steps, err := l.steppedSignals("brightness", "availableBrightnessSteps")
		if err != nil {
			return model.Payload{}, err
		}
		p, current, target := steppedPayload(inc, dec, steps, float64(previous), float64(brightness), model.Seconds(l.cfg.OnDelay))
		l.log.Info().
			Int("previous", previous).Int("current", current).
			Int("brightness", brightness).Int("target", target).
			Int("increment", target-current).
			Msg("setBrightness: stepped")
		return p, nil
	}

	closest, ok := ClosestMatch(l.cfg.Data.Values("brightness"), brightness)
	if !ok {
		return model.Payload{}, model.NewConfigError(l.name, "brightness", "brightness keys need to be set")
	}
	l.log.Info().Int("closest", closest).Msg("setBrightness")
	return l.signal(fmt.Sprintf("brightness%d", closest)), nil
}

func (l *Light) SetColorTemperature(v int) error {
	if v < model.MinColorTemperature {
		v = model.MinColorTemperature
	}
	if v > model.MaxColorTemperature {
		v = model.MaxColorTemperature
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.state.ColorTemperature
	l.setIntLocked(model.CharacteristicColorTemperature, &l.state.ColorTemperature, v)
	l.refreshLocked(model.CharacteristicColorTemperature)

	payload, err := l.colorTemperaturePayloadLocked(previous, v)
	if err != nil {
		return err
	}

	l.resetLocked()
	gen := l.gen
	if !l.turnOnLocked(gen, "setColorTemperature") {
		return nil
	}
	l.sendLocked(payload, "setColorTemperature")
	l.checkAutoOnOffLocked()
	return nil
}

func (l *Light) colorTemperaturePayloadLocked(previous, ct int) (model.Payload, error) {
	if l.cfg.Stepped("colorTemperature") {
		inc, dec, steps, err := l.steppedSignals("colorTemperature", "availableColorTemperatureSteps")
		if err != nil {
			return model.Payload{}, err
		}
		p, current, target := steppedPayload(inc, dec, steps,
			ColorTemperaturePercent(previous), ColorTemperaturePercent(ct), model.Seconds(l.cfg.OnDelay))
		l.log.Info().
			Int("previous", previous).Int("current", current).
			Int("colorTemperature", ct).Int("target", target).
			Int("increment", target-current).
			Msg("setColorTemperature: stepped")
		return p, nil
	}

	closest, ok := ClosestMatch(l.cfg.Data.Values("colorTemperature"), ct)
	if !ok {
		return model.Payload{}, model.NewConfigError(l.name, "colorTemperature", "colorTemperature keys need to be set")
	}
	l.log.Info().Int("closest", closest).Msg("setColorTemperature")
	return l.signal(fmt.Sprintf("colorTemperature%d", closest)), nil
}

func (l *Light) SetHue(v int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setIntLocked(model.CharacteristicHue, &l.state.Hue, v)
	l.refreshLocked(model.CharacteristicHue)

	var payload model.Payload
	if white, ok := l.cfg.Data.Signal("white"); ok && l.state.Saturation < 10 {
		l.log.Info().Msg("setHue: (closest: white)")
		payload = white
	} else {
		closest, ok := ClosestMatch(l.cfg.Data.Values("hue"), v)
		if !ok {
			return model.NewConfigError(l.name, "hue", "hue keys need to be set")
		}
		l.log.Info().Int("closest", closest).Msg("setHue")
		payload = l.signal(fmt.Sprintf("hue%d", closest))
	}

	l.resetLocked()
	gen := l.gen
	if !l.turnOnLocked(gen, "setHue") {
		return nil
	}
	l.sendLocked(payload, "setHue")
	l.checkAutoOnOffLocked()
	return nil
}

// SetSaturation only records the value; SetHue consults it.
func (l *Light) SetSaturation(v int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setIntLocked(model.CharacteristicSaturation, &l.state.Saturation, model.ClampPercent(v))
	l.refreshLocked(model.CharacteristicSaturation)
	return nil
}

// turnOnLocked runs the off to on sequence: mark on, turn exclusive peers off,
// send "on" and wait onDelay. It returns false when the flow was superseded.
func (l *Light) turnOnLocked(gen uint64, op string) bool {
	if l.state.SwitchState {
		return true
	}
	l.setSwitchStateLocked(true)
	l.refreshLocked(model.CharacteristicOn)

	l.mu.Unlock()
	l.setExclusivesOff()
	l.mu.Lock()
	if l.gen != gen {
		return false
	}

	on, ok := l.cfg.Data.Signal("on")
	if !ok {
		return true
	}
	l.log.Info().Float64("onDelay", l.cfg.OnDelay).Msg(op + ": (turn on, wait then send data)")
	l.sendLocked(on, op)
	return l.waitLocked(slotOnDelay, model.Seconds(l.cfg.OnDelay), gen)
}

func (l *Light) steppedSignals(dimension, stepsKey string) (inc, dec model.Payload, steps int, err error) {
	inc, incOK := l.cfg.Data.Signal(dimension + "+")
	dec, decOK := l.cfg.Data.Signal(dimension + "-")
	steps, stepsOK := l.cfg.Data.Number(stepsKey)
	if !incOK || !decOK || !stepsOK {
		err = model.NewConfigError(l.name, dimension,
			fmt.Sprintf("%s+, %s- and %s need to be set", dimension, dimension, stepsKey))
	}
	return inc, dec, steps, err
}

func (l *Light) hasBrightness() bool {
	return len(l.cfg.Data.Values("brightness")) > 0 || l.cfg.Stepped("brightness")
}

func (l *Light) hasColorTemperature() bool {
	return len(l.cfg.Data.Values("colorTemperature")) > 0 || l.cfg.Stepped("colorTemperature")
}

// HasBrightness reports whether brightness signals are configured.
func (l *Light) HasBrightness() bool {
	return l.hasBrightness()
}

// HasHue reports whether hue or white signals are configured.
func (l *Light) HasHue() bool {
	_, white := l.cfg.Data.Signal("white")
	return white || len(l.cfg.Data.Values("hue")) > 0
}

// HasColorTemperature reports whether colour temperature can be set.
func (l *Light) HasColorTemperature() bool {
	return l.hasColorTemperature()
}
