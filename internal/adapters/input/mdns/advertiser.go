package mdns

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

const service = "_hue._tcp"

// Advertiser announces the bridge as _hue._tcp, which newer Hue apps use
// instead of SSDP.
type Advertiser struct {
	ip       string
	port     int
	bridgeID string
	log      zerolog.Logger
}

func NewAdvertiser(ip string, port int, bridgeID string, logger zerolog.Logger) *Advertiser {
	return &Advertiser{ip: ip, port: port, bridgeID: bridgeID, log: logger}
}

func (a *Advertiser) zone() (*mdns.MDNSService, error) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "rf-accessory-bridge"
	}

	var ips []net.IP
	if ip := net.ParseIP(a.ip); ip != nil {
		ips = append(ips, ip)
	}

	txt := []string{
		"bridgeid=" + a.bridgeID,
		"modelid=BSB002",
	}
	instance := fmt.Sprintf("Philips Hue - %s", a.bridgeID[len(a.bridgeID)-6:])
	return mdns.NewMDNSService(instance, service, "local.", host+".", a.port, ips, txt)
}

// Start serves mDNS responses until ctx is done.
func (a *Advertiser) Start(ctx context.Context) error {
	zone, err := a.zone()
	if err != nil {
		return fmt.Errorf("mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return fmt.Errorf("mdns server: %w", err)
	}
	a.log.Info().Str("service", service).Str("instance", zone.Instance).Msg("mDNS advertisement started")

	<-ctx.Done()
	return server.Shutdown()
}
