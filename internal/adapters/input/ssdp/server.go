package ssdp

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const multicastAddr = "239.255.255.250:1900"

// Server answers SSDP M-SEARCH requests so Hue clients find description.xml.
type Server struct {
	ip   string
	port int
	udn  uuid.UUID
	log  zerolog.Logger
}

func NewServer(ip string, port int, udn uuid.UUID, logger zerolog.Logger) *Server {
	return &Server{ip: ip, port: port, udn: udn, log: logger}
}

// Start listens until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return err
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	s.log.Info().Str("addr", multicastAddr).Msg("SSDP responder listening")

	buf := make([]byte, 1024)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		if st, ok := s.match(string(buf[:n])); ok {
			s.log.Debug().Str("from", src.String()).Str("st", st).Msg("M-SEARCH")
			s.respond(src, st)
		}
	}
}

// match reports whether msg is an M-SEARCH we answer and the search target to
// echo back. Echo devices search for basic:1 or upnp:rootdevice.
func (s *Server) match(msg string) (string, bool) {
	if !strings.Contains(msg, "M-SEARCH") {
		return "", false
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "urn:schemas-upnp-org:device:basic:1"):
		return "urn:schemas-upnp-org:device:basic:1", true
	case strings.Contains(lower, "upnp:rootdevice"):
		return "upnp:rootdevice", true
	case strings.Contains(lower, "ssdp:all"):
		return "urn:schemas-upnp-org:device:basic:1", true
	}
	return "", false
}

func (s *Server) Response(st string) string {
	return fmt.Sprintf("HTTP/1.1 200 OK\r\n"+
		"CACHE-CONTROL: max-age=100\r\n"+
		"EXT:\r\n"+
		"LOCATION: http://%s:%d/description.xml\r\n"+
		"SERVER: Linux/3.14.0 UPnP/1.0 IpBridge/1.17.0\r\n"+
		"hue-bridgeid: %s\r\n"+
		"ST: %s\r\n"+
		"USN: uuid:%s::%s\r\n\r\n", s.ip, s.port, s.bridgeID(), st, s.udn, st)
}

func (s *Server) bridgeID() string {
	hex := strings.ToUpper(strings.ReplaceAll(s.udn.String(), "-", ""))[20:]
	return hex[:6] + "FFFE" + hex[6:]
}

func (s *Server) respond(dest *net.UDPAddr, st string) {
	conn, err := net.DialUDP("udp4", nil, dest)
	if err != nil {
		s.log.Warn().Err(err).Str("to", dest.String()).Msg("SSDP response failed")
		return
	}
	defer conn.Close()

	conn.Write([]byte(s.Response(st)))
}
