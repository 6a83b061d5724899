package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rf-accessory-bridge/internal/domain/accessory"
	"rf-accessory-bridge/internal/domain/delay"
	"rf-accessory-bridge/internal/domain/model"
	"rf-accessory-bridge/internal/domain/translator"
	"rf-accessory-bridge/internal/ports"
)

var ErrAccessoryNotFound = errors.New("accessory not found")

type Dependencies struct {
	ConfigRepo ports.ConfigRepository
	Sender     ports.Sender
	// History and Probe are optional.
	History ports.HistoryRecorder
	Probe   ports.LivenessProbe
	Clock   delay.Clock
	Logger  zerolog.Logger
}

type entry struct {
	id         string
	cfg        *model.AccessoryConfig
	acc        accessory.Timed
	translator translator.Translator
}

// BridgeService owns the accessory registry and routes Hue API changes to the
// accessory setters.
type BridgeService struct {
	configRepo        ports.ConfigRepository
	sender            ports.Sender
	history           ports.HistoryRecorder
	probe             ports.LivenessProbe
	clock             delay.Clock
	log               zerolog.Logger
	translatorFactory *translator.Factory

	mu      sync.RWMutex
	entries []*entry
	byID    map[string]*entry
	cancel  context.CancelFunc
}

func NewBridgeService(deps Dependencies) *BridgeService {
	if deps.Clock == nil {
		deps.Clock = delay.Wall
	}
	return &BridgeService{
		configRepo:        deps.ConfigRepo,
		sender:            deps.Sender,
		history:           deps.History,
		probe:             deps.Probe,
		clock:             deps.Clock,
		log:               deps.Logger,
		translatorFactory: translator.NewFactory(),
		byID:              make(map[string]*entry),
	}
}

// Setup replaces the registry with the accessories of cfg, links exclusives
// and starts liveness probes. The accessories live until ctx is done or the
// next Setup.
func (s *BridgeService) Setup(ctx context.Context, cfg *model.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	byName := make(map[string]*entry)
	for i, ac := range cfg.Accessories {
		id := ac.HueID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		if _, dup := s.byID[id]; dup {
			s.closeLocked()
			return fmt.Errorf("accessory %s: duplicate hue_id %q", ac.Name, id)
		}

		e := &entry{
			id:         id,
			cfg:        ac,
			acc:        s.build(ctx, ac),
			translator: s.translatorFactory.GetTranslator(ac),
		}
		s.entries = append(s.entries, e)
		s.byID[id] = e
		byName[ac.Name] = e
	}

	s.linkExclusives(byName)

	for _, e := range s.entries {
		s.startProbe(ctx, e)
	}

	s.log.Info().Int("accessories", len(s.entries)).Msg("bridge set up")
	return nil
}

func (s *BridgeService) build(ctx context.Context, ac *model.AccessoryConfig) accessory.Timed {
	opts := accessory.Options{
		Sender:   s.sender,
		Notifier: s,
		Clock:    s.clock,
		Logger:   s.log,
		Context:  ctx,
	}
	if s.history != nil && ac.HistoryEnabled() {
		opts.Observers = append(opts.Observers, s.historyObserver(ctx))
		if _, ok := s.history.InitialTime(ac.Name); !ok {
			if err := s.history.Record(ctx, ac.Name, s.clock.Now(), false); err != nil {
				s.log.Error().Err(err).Str("accessory", ac.Name).Msg("history start entry failed")
			}
		}
	}

	switch ac.Type {
	case model.AccessoryTypeLight:
		return accessory.NewLight(ac, opts)
	case model.AccessoryTypeWindowCovering:
		return accessory.NewWindowCovering(ac, opts)
	default:
		return accessory.NewSwitch(ac, opts)
	}
}

func (s *BridgeService) linkExclusives(byName map[string]*entry) {
	for _, e := range s.entries {
		light, ok := e.acc.(*accessory.Light)
		if !ok {
			continue
		}
		for _, name := range e.cfg.Exclusives {
			peer, found := byName[name]
			if !found {
				s.log.Warn().Str("accessory", e.cfg.Name).Str("exclusive", name).Msg("exclusive accessory not found")
				continue
			}
			peerLight, isLight := peer.acc.(*accessory.Light)
			if !isLight {
				s.log.Warn().Str("accessory", e.cfg.Name).Str("exclusive", name).Msg("exclusive accessory is not a light")
				continue
			}
			light.LinkExclusive(peerLight)
		}
	}
}

type pingable interface {
	PingCallback(active bool)
}

func (s *BridgeService) startProbe(ctx context.Context, e *entry) {
	if s.probe == nil || e.cfg.PingIPAddress == "" {
		return
	}
	p, ok := e.acc.(pingable)
	if !ok {
		return
	}
	s.log.Info().
		Str("accessory", e.cfg.Name).
		Str("address", e.cfg.PingIPAddress).
		Dur("interval", e.cfg.PingInterval()).
		Msg("starting liveness probe")
	go s.probe.Watch(ctx, e.cfg.PingIPAddress, e.cfg.PingInterval(), p.PingCallback)
}

func (s *BridgeService) historyObserver(ctx context.Context) accessory.StateObserver {
	return accessory.ObserverFunc(func(c accessory.StateChange) {
		if c.Kind != model.CharacteristicOn {
			return
		}
		on, _ := c.New.(bool)
		if err := s.history.Record(ctx, c.Accessory, c.At, on); err != nil {
			s.log.Error().Err(err).Str("accessory", c.Accessory).Msg("history record failed")
			return
		}
		if seconds, ok := s.lastActivation(c.Accessory, c.At); ok {
			s.Refresh(c.Accessory, model.CharacteristicLastActivation, seconds)
		}
	})
}

func (s *BridgeService) lastActivation(name string, at time.Time) (int64, bool) {
	if s.history == nil || at.IsZero() {
		return 0, false
	}
	initial, ok := s.history.InitialTime(name)
	if !ok {
		return 0, false
	}
	return int64(at.Sub(initial).Seconds()), true
}

// Refresh implements ports.CharacteristicNotifier. Hue clients poll, so the
// notification is only logged.
func (s *BridgeService) Refresh(accessory string, kind model.CharacteristicKind, value interface{}) {
	s.log.Debug().Str("accessory", accessory).Str("characteristic", string(kind)).Interface("value", value).Msg("refresh")
}

func (s *BridgeService) GetDevices(ctx context.Context) ([]*model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]*model.Device, 0, len(s.entries))
	for _, e := range s.entries {
		devices = append(devices, e.device())
	}
	return devices, nil
}

func (s *BridgeService) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.device(), nil
}

func (e *entry) device() *model.Device {
	return &model.Device{
		ID:       e.id,
		Name:     e.cfg.Name,
		Type:     e.cfg.Type,
		State:    e.translator.ToHue(e.acc.State()),
		Metadata: e.translator.GetMetadata(),
	}
}

func (s *BridgeService) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccessoryNotFound, id)
	}
	return e, nil
}

// UpdateDeviceState translates a Hue state body into characteristic writes
// and applies them in order. Attributes whose write failed, or that the
// accessory has no signals for, are left out of the returned map.
func (s *BridgeService) UpdateDeviceState(ctx context.Context, id string, hueStateUpdate map[string]interface{}) (map[string]interface{}, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	update, err := translator.ParseStateUpdate(hueStateUpdate)
	if err != nil {
		return nil, err
	}

	var errs []error
	failed := make(map[model.CharacteristicKind]bool)
	for _, requested := range e.translator.ToCommands(update) {
		c, ok := supported(e.acc, requested)
		if !ok {
			s.log.Debug().Str("accessory", e.cfg.Name).Str("characteristic", string(c.Kind)).Msg("not supported, skipped")
			failed[requested.Kind] = true
			continue
		}
		if err := apply(e.acc, c); err != nil {
			s.log.Error().Err(err).Str("accessory", e.cfg.Name).Str("characteristic", string(c.Kind)).Msg("update failed")
			errs = append(errs, err)
			failed[requested.Kind] = true
		}
	}

	applied := make(map[string]interface{})
	for k, v := range hueStateUpdate {
		kind, known := hueAttributes[k]
		if !known || failed[kind] {
			continue
		}
		applied[k] = v
	}
	return applied, errors.Join(errs...)
}

var hueAttributes = map[string]model.CharacteristicKind{
	"on":  model.CharacteristicOn,
	"bri": model.CharacteristicBrightness,
	"ct":  model.CharacteristicColorTemperature,
	"hue": model.CharacteristicHue,
	"sat": model.CharacteristicSaturation,
}

// supported adapts a command to what a light is configured for. Brightness on
// a plain on/off light becomes an On write; dimensions without signals are
// dropped.
func supported(acc accessory.Timed, c translator.Command) (translator.Command, bool) {
	l, ok := acc.(*accessory.Light)
	if !ok {
		return c, true
	}
	switch c.Kind {
	case model.CharacteristicBrightness:
		if !l.HasBrightness() {
			v, _ := c.Value.(int)
			return translator.Command{Kind: model.CharacteristicOn, Value: v > 0}, true
		}
	case model.CharacteristicColorTemperature:
		return c, l.HasColorTemperature()
	case model.CharacteristicHue, model.CharacteristicSaturation:
		return c, l.HasHue()
	}
	return c, true
}

func apply(acc accessory.Timed, c translator.Command) error {
	on, _ := c.Value.(bool)
	v, _ := c.Value.(int)

	switch a := acc.(type) {
	case *accessory.Switch:
		if c.Kind == model.CharacteristicOn {
			return a.SetOn(on)
		}
	case *accessory.Light:
		switch c.Kind {
		case model.CharacteristicOn:
			return a.SetOn(on)
		case model.CharacteristicBrightness:
			return a.SetBrightness(v)
		case model.CharacteristicColorTemperature:
			return a.SetColorTemperature(v)
		case model.CharacteristicHue:
			return a.SetHue(v)
		case model.CharacteristicSaturation:
			return a.SetSaturation(v)
		}
	case *accessory.WindowCovering:
		if c.Kind == model.CharacteristicTargetPosition {
			return a.SetTargetPosition(v)
		}
	}
	return fmt.Errorf("%s: characteristic %s is not supported", acc.Name(), c.Kind)
}

// Accessories lists every accessory with its raw state.
func (s *BridgeService) Accessories(ctx context.Context) []model.AccessoryStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AccessoryStatus, 0, len(s.entries))
	for _, e := range s.entries {
		st := model.AccessoryStatus{
			ID:    e.id,
			Name:  e.cfg.Name,
			Type:  e.cfg.Type,
			State: e.acc.State(),
		}
		if e.cfg.HistoryEnabled() {
			if seconds, ok := s.lastActivation(e.cfg.Name, st.State.LastActivation); ok {
				st.LastActivation = &seconds
			}
		}
		out = append(out, st)
	}
	return out
}

// Close stops every accessory and probe.
func (s *BridgeService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *BridgeService) closeLocked() {
	for _, e := range s.entries {
		e.acc.Close()
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.entries = nil
	s.byID = make(map[string]*entry)
}
