package accessory

import (
	"rf-accessory-bridge/internal/domain/model"
)

// Switch is a plain on/off accessory.
type Switch struct {
	*lifecycle
}

func NewSwitch(cfg *model.AccessoryConfig, opts Options) *Switch {
	s := &Switch{lifecycle: newLifecycle(cfg, opts)}
	s.setOn = s.SetOn
	return s
}

// SetOn is the On characteristic setter.
func (s *Switch) SetOn(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.acceptOnLocked(on); !ok {
		return nil
	}
	s.setSwitchStateFlowLocked(s.toggleData(on))
	return nil
}

func (s *Switch) setSwitchStateFlowLocked(p model.Payload) {
	s.resetLocked()
	s.sendLocked(p, "setSwitchState")

	if s.cfg.Stateless {
		s.setSwitchStateLocked(false)
		s.refreshLocked(model.CharacteristicOn)
		return
	}
	s.checkAutoOnOffLocked()
}
