package accessory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"rf-accessory-bridge/internal/domain/delay"
	"rf-accessory-bridge/internal/domain/model"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []model.Payload
}

func (r *recordingSender) Send(_ context.Context, p model.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
	return nil
}

func (r *recordingSender) Payloads() []model.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Payload(nil), r.sent...)
}

// Data lists the raw data of every payload sent, in order.
func (r *recordingSender) Data() []string {
	var out []string
	for _, p := range r.Payloads() {
		out = append(out, signalData(p))
	}
	return out
}

type refresh struct {
	Kind  model.CharacteristicKind
	Value interface{}
}

type recordingNotifier struct {
	mu        sync.Mutex
	refreshes []refresh
}

func (r *recordingNotifier) Refresh(_ string, kind model.CharacteristicKind, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes = append(r.refreshes, refresh{Kind: kind, Value: value})
}

func (r *recordingNotifier) Values(kind model.CharacteristicKind) []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []interface{}
	for _, f := range r.refreshes {
		if f.Kind == kind {
			out = append(out, f.Value)
		}
	}
	return out
}

type fixture struct {
	clock    *delay.FakeClock
	sender   *recordingSender
	notifier *recordingNotifier
}

func newFixture() *fixture {
	return &fixture{
		clock:    delay.NewFakeClock(),
		sender:   &recordingSender{},
		notifier: &recordingNotifier{},
	}
}

func (f *fixture) options() Options {
	return Options{
		Sender:   f.sender,
		Notifier: f.notifier,
		Clock:    f.clock,
		Logger:   zerolog.Nop(),
	}
}

func table(kv ...string) model.DataTable {
	var t model.DataTable
	for i := 0; i+1 < len(kv); i += 2 {
		t.Set(kv[i], model.Signal(kv[i+1]))
	}
	return t
}

// waitForTimer blocks until a timer of d is registered on the fake clock.
func waitForTimer(t *testing.T, clk *delay.FakeClock, d time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool { return clk.HasPending(d) }, time.Second, time.Millisecond,
		"no pending timer of %s (pending: %v)", d, clk.Pending())
}

// tick advances the clock by d n times, waiting each time for the next timer
// of d to be armed.
func tick(t *testing.T, clk *delay.FakeClock, d time.Duration, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		waitForTimer(t, clk, d)
		clk.Advance(d)
	}
}

func boolPtr(v bool) *bool {
	return &v
}
