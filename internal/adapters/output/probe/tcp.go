package probe

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const defaultPort = "80"

// TCPProbe reports a host as alive when a TCP connect to it succeeds or is
// actively refused. Both need the host's network stack to answer, which is
// what an ICMP ping would tell without needing raw sockets.
type TCPProbe struct {
	timeout time.Duration
	log     zerolog.Logger
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewTCPProbe(timeout time.Duration, logger zerolog.Logger) *TCPProbe {
	d := &net.Dialer{}
	return &TCPProbe{timeout: timeout, log: logger, dial: d.DialContext}
}

// Watch probes address right away and then every interval until ctx is done.
func (p *TCPProbe) Watch(ctx context.Context, address string, interval time.Duration, callback func(active bool)) {
	target := withPort(address)
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		active := p.Alive(ctx, target)
		if ctx.Err() != nil {
			return
		}
		p.log.Trace().Str("address", target).Bool("active", active).Msg("probe")
		callback(active)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *TCPProbe) Alive(ctx context.Context, target string) bool {
	timeout := p.timeout
	if timeout <= 0 || timeout > time.Second {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", target)
	if err == nil {
		conn.Close()
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

func withPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, defaultPort)
}
