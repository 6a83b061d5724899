package main

import (
	"context"
	"errors"
	"flag"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rf-accessory-bridge/internal/adapters/input/http"
	"rf-accessory-bridge/internal/adapters/input/mdns"
	"rf-accessory-bridge/internal/adapters/input/ssdp"
	"rf-accessory-bridge/internal/adapters/output/persistence"
	"rf-accessory-bridge/internal/adapters/output/probe"
	"rf-accessory-bridge/internal/adapters/output/transport"
	"rf-accessory-bridge/internal/domain/model"
	"rf-accessory-bridge/internal/domain/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML (or legacy JSON) configuration")
	listen := flag.String("listen", "", "HTTP listen address, overrides http.listen")
	flag.Parse()

	if env := os.Getenv("CONFIG_PATH"); env != "" {
		*configPath = env
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configRepo := persistence.NewFileConfigRepository(*configPath)
	cfg, err := configRepo.Get(context.Background())
	if err != nil {
		log.Fatal().Err(err).Str("config_path", *configPath).Msg("failed to load configuration")
	}
	applyEnvOverrides(cfg)
	if *listen != "" {
		cfg.HTTP.Listen = *listen
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Logger

	ip := cfg.HTTP.AdvertiseIP
	if ip == "" {
		ip = getLocalIP()
	}
	if ip == "" {
		log.Fatal().Msg("could not determine local IP, set LOCAL_IP or http.advertise_ip")
	}
	port := listenPort(cfg.HTTP.Listen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := transport.New(cfg.Transport, logger.With().Str("component", "transport").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up transport")
	}
	defer sender.Close()

	history, err := persistence.NewHistoryLog(cfg.History.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history log")
	}
	defer history.Close()

	bridgeService := service.NewBridgeService(service.Dependencies{
		ConfigRepo: configRepo,
		Sender:     sender,
		History:    history,
		Probe:      probe.NewTCPProbe(time.Second, logger.With().Str("component", "probe").Logger()),
		Logger:     logger.With().Str("component", "bridge").Logger(),
	})
	if err := bridgeService.Setup(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to set up accessories")
	}
	defer bridgeService.Close()

	log.Info().Str("ip", ip).Int("port", port).Str("transport", string(cfg.Transport.Kind)).Msg("starting RF accessory bridge")

	httpServer := http.NewServer(bridgeService, bridgeService, ip, port, logger.With().Str("component", "http").Logger())

	if cfg.Discovery.SSDPEnabled() {
		ssdpServer := ssdp.NewServer(ip, port, httpServer.UDN(), logger.With().Str("component", "ssdp").Logger())
		go func() {
			if err := ssdpServer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("SSDP server error")
			}
		}()
	}

	if cfg.Discovery.MDNSEnabled() {
		advertiser := mdns.NewAdvertiser(ip, port, httpServer.BridgeID(), logger.With().Str("component", "mdns").Logger())
		go func() {
			if err := advertiser.Start(ctx); err != nil {
				log.Error().Err(err).Msg("mDNS advertiser error")
			}
		}()
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(cfg.HTTP.Listen); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatal().Err(err).Msg("HTTP server error")
	}
}

// applyEnvOverrides lets container deployments configure the bridge without
// editing the file.
func applyEnvOverrides(cfg *model.Config) {
	if v := os.Getenv("HASS_URL"); v != "" {
		cfg.Transport.HomeAssistant.URL = v
	}
	if v := os.Getenv("HASS_TOKEN"); v != "" {
		cfg.Transport.HomeAssistant.Token = v
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		cfg.Transport.MQTT.Broker = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Transport.NATS.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOCAL_IP"); v != "" {
		cfg.HTTP.AdvertiseIP = v
	}
}

func listenPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 80
	}
	port, err := strconv.Atoi(p)
	if err != nil || port == 0 {
		return 80
	}
	return port
}

func getLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}
