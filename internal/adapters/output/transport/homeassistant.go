package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"rf-accessory-bridge/internal/domain/model"
)

// HomeAssistantClient transmits through the remote.send_command service of a
// Home Assistant Broadlink remote entity.
type HomeAssistantClient struct {
	url        string
	token      string
	entity     string
	httpClient *http.Client
	mu         sync.RWMutex
}

func NewHomeAssistantClient(cfg model.HomeAssistantTransportConfig) (*HomeAssistantClient, error) {
	if cfg.RemoteEntity == "" {
		return nil, fmt.Errorf("homeassistant transport: remote_entity is required")
	}
	c := &HomeAssistantClient{
		entity:     cfg.RemoteEntity,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	c.Configure(cfg.URL, cfg.Token)
	return c, nil
}

func (c *HomeAssistantClient) Configure(url, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = strings.TrimSuffix(url, "/")
	c.token = token
}

func (c *HomeAssistantClient) IsConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url != "" && c.token != ""
}

func (c *HomeAssistantClient) Transmit(ctx context.Context, data string) error {
	c.mu.RLock()
	urlBase := c.url
	token := c.token
	c.mu.RUnlock()

	if urlBase == "" || token == "" {
		return fmt.Errorf("Home Assistant not configured")
	}

	payload := map[string]interface{}{
		"entity_id": c.entity,
		"command":   []string{command(data)},
	}
	body, _ := json.Marshal(payload)

	url := urlBase + "/api/services/remote/send_command"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HA API error: %d", resp.StatusCode)
	}
	return nil
}

// command converts a hex learned code into the b64: form the Broadlink
// integration expects. Anything else is sent as is (base64 codes, learned
// command names).
func command(data string) string {
	if strings.HasPrefix(data, "b64:") {
		return data
	}
	raw, err := hex.DecodeString(data)
	if err != nil || len(raw) == 0 {
		return data
	}
	return "b64:" + base64.StdEncoding.EncodeToString(raw)
}

func (c *HomeAssistantClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
