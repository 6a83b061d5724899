package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/amimof/huego"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"rf-accessory-bridge/internal/domain/model"
	"rf-accessory-bridge/internal/domain/service"
	"rf-accessory-bridge/internal/ports"
)

// Hue API error types.
const (
	hueErrUnavailable = 3
	hueErrBodyInvalid = 2
	hueErrInternal    = 901
)

type Server struct {
	bridge ports.BridgePort
	admin  ports.AdminPort
	ip     string
	port   int
	udn    uuid.UUID
	log    zerolog.Logger
	router chi.Router
	server *http.Server
}

func NewServer(bridge ports.BridgePort, admin ports.AdminPort, ip string, port int, logger zerolog.Logger) *Server {
	s := &Server{
		bridge: bridge,
		admin:  admin,
		ip:     ip,
		port:   port,
		udn:    uuid.NewSHA1(uuid.NameSpaceURL, []byte("rf-accessory-bridge://"+ip)),
		log:    logger,
		router: chi.NewRouter(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	// Browser based Hue clients call the bridge cross-origin.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/description.xml", s.handleDescription)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/", s.handleRegister)
		r.Route("/{user}", func(r chi.Router) {
			r.Get("/", s.handleFullState)
			r.Get("/config", s.handleBridgeConfig)
			r.Get("/lights", s.handleGetLights)
			r.Get("/lights/{id}", s.handleGetLight)
			r.Put("/lights/{id}/state", s.handleSetLightState)
		})
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handlePutConfig)
		r.Get("/accessories", s.handleAccessories)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	s.log.Info().Str("addr", addr).Msg("starting Hue API server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8" ?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
<specVersion>
<major>1</major>
<minor>0</minor>
</specVersion>
<URLBase>http://%s:%d/</URLBase>
<device>
<deviceType>urn:schemas-upnp-org:device:Basic:1</deviceType>
<friendlyName>Philips hue (%s)</friendlyName>
<manufacturer>Royal Philips Electronics</manufacturer>
<manufacturerURL>http://www.philips.com</manufacturerURL>
<modelDescription>Philips hue Personal Wireless Lighting</modelDescription>
<modelName>Philips hue bridge 2012</modelName>
<modelNumber>929000226503</modelNumber>
<modelURL>http://www.meethue.com</modelURL>
<serialNumber>%s</serialNumber>
<UDN>uuid:%s</UDN>
<presentationURL>index.html</presentationURL>
</device>
</root>`, s.ip, s.port, s.ip, s.SerialNumber(), s.udn)
}

// SerialNumber is derived from the bridge UDN so it stays stable per address.
func (s *Server) SerialNumber() string {
	return strings.ReplaceAll(s.udn.String(), "-", "")[20:]
}

// UDN identifies the bridge in SSDP and description.xml.
func (s *Server) UDN() uuid.UUID {
	return s.udn
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRegister hands out a username to any client; the link button is
// always considered pressed.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	username := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.log.Info().Str("username", username).Msg("client registered")
	writeJSON(w, http.StatusOK, []map[string]interface{}{
		{"success": map[string]string{"username": username}},
	})
}

// BridgeID is the 16 hex digit id Hue clients key bridges by.
func (s *Server) BridgeID() string {
	serial := strings.ToUpper(s.SerialNumber())
	return serial[:6] + "FFFE" + serial[6:]
}

func (s *Server) bridgeConfig() map[string]interface{} {
	return map[string]interface{}{
		"name":       "Philips hue",
		"swversion":  "01003542",
		"apiversion": "1.11.0",
		"mac":        "00:17:88:10:22:01",
		"bridgeid":   s.BridgeID(),
		"modelid":    "BSB001",
		"ipaddress":  s.ip,
	}
}

func (s *Server) handleBridgeConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bridgeConfig())
}

func (s *Server) handleFullState(w http.ResponseWriter, r *http.Request) {
	lights, err := s.lights(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lights": lights,
		"groups": make(map[string]interface{}),
		"config": s.bridgeConfig(),
	})
}

func (s *Server) handleGetLights(w http.ResponseWriter, r *http.Request) {
	lights, err := s.lights(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, lights)
}

func (s *Server) lights(r *http.Request) (map[string]*huego.Light, error) {
	devices, err := s.bridge.GetDevices(r.Context())
	if err != nil {
		return nil, err
	}

	lights := make(map[string]*huego.Light, len(devices))
	for _, d := range devices {
		lights[d.ID] = toLight(d)
	}
	return lights, nil
}

func toLight(d *model.Device) *huego.Light {
	return &huego.Light{
		Name:             d.Name,
		Type:             d.Metadata.Type,
		State:            d.State,
		ModelID:          d.Metadata.ModelID,
		UniqueID:         uniqueID(d.ID),
		ManufacturerName: d.Metadata.ManufacturerName,
		SwVersion:        "5.105.0.21169",
	}
}

// uniqueID renders an id the way Hue lights report theirs (MAC-like plus
// endpoint).
func uniqueID(id string) string {
	sum := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	b := sum[:8]
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x:%02x:%02x-0b", b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7])
}

func (s *Server) handleGetLight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	device, err := s.bridge.GetDevice(r.Context(), id)
	if err != nil {
		writeHueError(w, http.StatusNotFound, hueErrUnavailable, "/lights/"+id, fmt.Sprintf("resource, /lights/%s, not available", id))
		return
	}
	writeJSON(w, http.StatusOK, toLight(device))
}

func (s *Server) handleSetLightState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var stateUpdate map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&stateUpdate); err != nil {
		writeHueError(w, http.StatusBadRequest, hueErrBodyInvalid, "/lights/"+id+"/state", "body contains invalid json")
		return
	}

	applied, err := s.bridge.UpdateDeviceState(r.Context(), id, stateUpdate)
	if errors.Is(err, service.ErrAccessoryNotFound) {
		writeHueError(w, http.StatusNotFound, hueErrUnavailable, "/lights/"+id, fmt.Sprintf("resource, /lights/%s, not available", id))
		return
	}
	if err != nil && applied == nil {
		writeHueError(w, http.StatusBadRequest, hueErrBodyInvalid, "/lights/"+id+"/state", err.Error())
		return
	}

	keys := make([]string, 0, len(stateUpdate))
	for k := range stateUpdate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resp := []map[string]interface{}{}
	for _, k := range keys {
		address := fmt.Sprintf("/lights/%s/state/%s", id, k)
		if v, ok := applied[k]; ok {
			resp = append(resp, map[string]interface{}{
				"success": map[string]interface{}{address: v},
			})
			continue
		}
		if err != nil {
			resp = append(resp, hueError(hueErrInternal, address, err.Error()))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.admin.GetConfig(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(out)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var cfg model.Config
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.admin.UpdateConfig(r.Context(), &cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccessories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.admin.Accessories(r.Context()))
}

func hueError(kind int, address, description string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":        kind,
			"address":     address,
			"description": description,
		},
	}
}

func writeHueError(w http.ResponseWriter, status, kind int, address, description string) {
	writeJSON(w, status, []map[string]interface{}{hueError(kind, address, description)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
