package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rf-accessory-bridge/internal/domain/delay"
	"rf-accessory-bridge/internal/domain/model"
)

type recordingTransmitter struct {
	mu      sync.Mutex
	sent    []string
	err     error
	release chan struct{}
}

func (r *recordingTransmitter) Transmit(ctx context.Context, data string) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, data)
	return r.err
}

func (r *recordingTransmitter) Close() error { return nil }

func (r *recordingTransmitter) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func (r *recordingTransmitter) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func TestDispatcher_Single(t *testing.T) {
	tx := &recordingTransmitter{}
	d := NewDispatcher(tx, delay.NewFakeClock(), zerolog.Nop())
	defer d.Close()

	require.NoError(t, d.Send(context.Background(), model.Signal("AA")))
	require.Eventually(t, func() bool { return len(tx.Sent()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"AA"}, tx.Sent())

	// Transmit failures are logged by the worker, not returned to the caller.
	tx.fail(errors.New("offline"))
	assert.NoError(t, d.Send(context.Background(), model.Signal("BB")))
	require.Eventually(t, func() bool { return len(tx.Sent()) == 2 }, time.Second, time.Millisecond)

	assert.Error(t, d.Send(context.Background(), model.Payload{}))
}

func TestDispatcher_SendDoesNotWaitForTransmit(t *testing.T) {
	tx := &recordingTransmitter{release: make(chan struct{})}
	d := NewDispatcher(tx, delay.NewFakeClock(), zerolog.Nop())
	defer d.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, data := range []string{"ON", "A50", "WARM", "OFF"} {
			assert.NoError(t, d.Send(context.Background(), model.Signal(data)))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a slow transmitter")
	}
	assert.Empty(t, tx.Sent())

	close(tx.release)
	require.Eventually(t, func() bool { return len(tx.Sent()) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"ON", "A50", "WARM", "OFF"}, tx.Sent())
}

func TestDispatcher_SendAfterClose(t *testing.T) {
	tx := &recordingTransmitter{}
	d := NewDispatcher(tx, delay.NewFakeClock(), zerolog.Nop())

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Send(context.Background(), model.Signal("AA")), errClosed)
}

func TestDispatcher_Repeat(t *testing.T) {
	tx := &recordingTransmitter{}
	clk := delay.NewFakeClock()
	d := NewDispatcher(tx, clk, zerolog.Nop())
	defer d.Close()

	p := model.Payload{Steps: []model.RepeatStep{
		{Data: "UP", Interval: 300 * time.Millisecond, SendCount: 3},
		{Data: "OK", SendCount: 1},
	}}
	require.NoError(t, d.Send(context.Background(), p))

	for i := 1; i <= 3; i++ {
		require.Eventually(t, func() bool { return clk.HasPending(300 * time.Millisecond) }, time.Second, time.Millisecond)
		assert.Len(t, tx.Sent(), i)
		clk.Advance(300 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return len(tx.Sent()) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"UP", "UP", "UP", "OK"}, tx.Sent())
	assert.Empty(t, clk.Pending())
}

func TestDispatcher_RepeatCancelled(t *testing.T) {
	tx := &recordingTransmitter{}
	clk := delay.NewFakeClock()
	d := NewDispatcher(tx, clk, zerolog.Nop())
	defer d.Close()
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, d.Send(ctx, model.Repeat("DOWN", time.Second, 5)))
	require.Eventually(t, func() bool { return clk.HasPending(time.Second) }, time.Second, time.Millisecond)
	cancel()
	clk.Advance(time.Second)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, []string{"DOWN"}, tx.Sent())
}

func TestHomeAssistantClient_Transmit(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/services/remote/send_command", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := NewHomeAssistantClient(model.HomeAssistantTransportConfig{URL: server.URL + "/", Token: "secret", RemoteEntity: "remote.rm4"})
	require.NoError(t, err)
	require.NoError(t, c.Transmit(context.Background(), "2600"))

	assert.Equal(t, "remote.rm4", got["entity_id"])
	assert.Equal(t, []interface{}{"b64:JgA="}, got["command"])
}

func TestHomeAssistantClient_Errors(t *testing.T) {
	_, err := NewHomeAssistantClient(model.HomeAssistantTransportConfig{URL: "http://ha"})
	assert.Error(t, err)

	c, err := NewHomeAssistantClient(model.HomeAssistantTransportConfig{RemoteEntity: "remote.rm4"})
	require.NoError(t, err)
	assert.False(t, c.IsConfigured())
	assert.Error(t, c.Transmit(context.Background(), "2600"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	c.Configure(server.URL, "bad")
	assert.Error(t, c.Transmit(context.Background(), "2600"))
}

func TestCommand(t *testing.T) {
	assert.Equal(t, "b64:JgA=", command("2600"))
	assert.Equal(t, "b64:JgA=", command("b64:JgA="))
	assert.Equal(t, "tv_power", command("tv_power"))
	assert.Equal(t, "JgBQAAAB", command("JgBQAAAB"))
}

type fakeToken struct {
	mqtt.Token
	err error
}

func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMQTTClient struct {
	mqtt.Client
	mock.Mock
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	args := c.Called(topic, qos, retained, payload)
	return &fakeToken{err: args.Error(0)}
}

func (c *fakeMQTTClient) Disconnect(quiesce uint) {
	c.Called(quiesce)
}

func TestMQTTTransmitter(t *testing.T) {
	client := new(fakeMQTTClient)
	client.On("Publish", "rf/send", byte(1), false, []byte("AA")).Return(nil).Once()
	client.On("Publish", "rf/send", byte(1), false, []byte("BB")).Return(errors.New("not connected")).Once()
	client.On("Disconnect", uint(250)).Return().Once()

	tx := newMQTTTransmitter(client, "rf/send", 1)
	require.NoError(t, tx.Transmit(context.Background(), "AA"))
	assert.Error(t, tx.Transmit(context.Background(), "BB"))
	require.NoError(t, tx.Close())
	client.AssertExpectations(t)
}

type fakeNATSConn struct {
	mock.Mock
}

func (c *fakeNATSConn) Publish(subject string, data []byte) error {
	return c.Called(subject, data).Error(0)
}

func (c *fakeNATSConn) Close() { c.Called() }

func TestNATSTransmitter(t *testing.T) {
	conn := new(fakeNATSConn)
	conn.On("Publish", "rf.send", []byte("AA")).Return(nil).Once()
	conn.On("Close").Return().Once()

	tx := &NATSTransmitter{conn: conn, subject: "rf.send"}
	require.NoError(t, tx.Transmit(context.Background(), "AA"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, tx.Transmit(ctx, "BB"))

	require.NoError(t, tx.Close())
	conn.AssertExpectations(t)
}

func TestNew(t *testing.T) {
	d, err := New(model.TransportConfig{Kind: model.TransportLog}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogTransmitter{}, d.tx)
	require.NoError(t, d.Send(context.Background(), model.Signal("AA")))

	_, err = New(model.TransportConfig{Kind: "carrier-pigeon"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(model.TransportConfig{Kind: model.TransportMQTT}, zerolog.Nop())
	assert.Error(t, err, "broker is required")
}
