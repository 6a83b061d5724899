package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"rf-accessory-bridge/internal/domain/delay"
	"rf-accessory-bridge/internal/domain/model"
)

// Transmitter emits one raw signal on the wire.
type Transmitter interface {
	Transmit(ctx context.Context, data string) error
	Close() error
}

const queueSize = 64

var errClosed = errors.New("dispatcher closed")

type job struct {
	ctx     context.Context
	payload model.Payload
}

// Dispatcher implements ports.Sender on top of a Transmitter. Send only
// enqueues; one worker transmits payloads in the order they were sent. Repeat
// steps run in the background until done or until the payload's context is
// cancelled.
type Dispatcher struct {
	tx    Transmitter
	clock delay.Clock
	log   zerolog.Logger

	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewDispatcher(tx Transmitter, clock delay.Clock, logger zerolog.Logger) *Dispatcher {
	if clock == nil {
		clock = delay.Wall
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		tx:     tx,
		clock:  clock,
		log:    logger,
		queue:  make(chan job, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) Send(ctx context.Context, p model.Payload) error {
	if p.IsZero() {
		return fmt.Errorf("empty payload")
	}
	if d.ctx.Err() != nil {
		return errClosed
	}
	select {
	case d.queue <- job{ctx: ctx, payload: p}:
		return nil
	case <-d.ctx.Done():
		return errClosed
	default:
		return fmt.Errorf("send queue full, dropping %s", p)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case j := <-d.queue:
			d.dispatch(j)
		}
	}
}

func (d *Dispatcher) dispatch(j job) {
	if !j.payload.IsRepeat() {
		if err := d.tx.Transmit(j.ctx, j.payload.Data); err != nil {
			d.log.Error().Err(err).Str("payload", j.payload.String()).Msg("transmit failed")
		}
		return
	}

	ctx, cancel := context.WithCancel(j.ctx)
	stop := context.AfterFunc(d.ctx, cancel)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer stop()
		defer cancel()
		d.repeat(ctx, j.payload.Steps)
	}()
}

// repeat transmits every step SendCount times, Interval apart. The wait
// follows every transmission but the last one of the payload.
func (d *Dispatcher) repeat(ctx context.Context, steps []model.RepeatStep) {
	for i, step := range steps {
		for n := 0; n < step.SendCount; n++ {
			if ctx.Err() != nil {
				d.log.Debug().Int("step", i).Int("sent", n).Msg("repeat cancelled")
				return
			}
			if err := d.tx.Transmit(ctx, step.Data); err != nil {
				d.log.Error().Err(err).Int("step", i).Msg("repeat transmit failed")
			}

			last := i == len(steps)-1 && n == step.SendCount-1
			if last || step.Interval <= 0 {
				continue
			}
			if !delay.Start(d.clock, step.Interval).Wait(ctx) {
				return
			}
		}
	}
}

// Close stops the worker and every running repeat, then closes the
// transmitter. Queued payloads not yet transmitted are dropped.
func (d *Dispatcher) Close() error {
	var err error
	d.once.Do(func() {
		d.cancel()
		d.wg.Wait()
		err = d.tx.Close()
	})
	return err
}

// New builds the transmitter selected by cfg.Kind.
func New(cfg model.TransportConfig, logger zerolog.Logger) (*Dispatcher, error) {
	var (
		tx  Transmitter
		err error
	)
	switch cfg.Kind {
	case model.TransportHomeAssistant:
		tx, err = NewHomeAssistantClient(cfg.HomeAssistant)
	case model.TransportMQTT:
		tx, err = NewMQTTTransmitter(cfg.MQTT, logger)
	case model.TransportNATS:
		tx, err = NewNATSTransmitter(cfg.NATS, logger)
	case model.TransportLog, "":
		tx = NewLogTransmitter(logger)
	default:
		err = fmt.Errorf("unknown transport %q", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	logger.Info().Str("transport", string(cfg.Kind)).Msg("transport ready")
	return NewDispatcher(tx, delay.Wall, logger), nil
}
