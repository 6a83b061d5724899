package probe

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPProbe_Alive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	p := NewTCPProbe(time.Second, zerolog.Nop())
	assert.True(t, p.Alive(context.Background(), ln.Addr().String()))
}

func TestTCPProbe_RefusedCountsAsAlive(t *testing.T) {
	p := NewTCPProbe(time.Second, zerolog.Nop())

	p.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Net: network, Err: syscall.ECONNREFUSED}
	}
	assert.True(t, p.Alive(context.Background(), "10.0.0.1:80"))

	p.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, errors.New("i/o timeout")
	}
	assert.False(t, p.Alive(context.Background(), "10.0.0.1:80"))
}

func TestTCPProbe_Watch(t *testing.T) {
	p := NewTCPProbe(time.Second, zerolog.Nop())
	var dialed []string
	p.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		dialed = append(dialed, address)
		return nil, errors.New("unreachable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan bool, 10)
	done := make(chan struct{})
	go func() {
		p.Watch(ctx, "192.168.1.20", 10*time.Millisecond, func(active bool) { results <- active })
		close(done)
	}()

	assert.False(t, <-results)
	assert.False(t, <-results)
	cancel()
	<-done
	assert.Equal(t, "192.168.1.20:80", dialed[0])
}

func TestWithPort(t *testing.T) {
	assert.Equal(t, "10.0.0.2:80", withPort("10.0.0.2"))
	assert.Equal(t, "10.0.0.2:22", withPort("10.0.0.2:22"))
	assert.Equal(t, "[fe80::1]:80", withPort("fe80::1"))
}
