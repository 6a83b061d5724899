package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amimof/huego"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rf-accessory-bridge/internal/domain/model"
	"rf-accessory-bridge/internal/domain/service"
)

type MockBridge struct {
	mock.Mock
}

func (m *MockBridge) GetDevices(ctx context.Context) ([]*model.Device, error) {
	args := m.Called(ctx)
	devices, _ := args.Get(0).([]*model.Device)
	return devices, args.Error(1)
}

func (m *MockBridge) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*model.Device)
	return d, args.Error(1)
}

func (m *MockBridge) UpdateDeviceState(ctx context.Context, id string, state map[string]interface{}) (map[string]interface{}, error) {
	args := m.Called(ctx, id, state)
	applied, _ := args.Get(0).(map[string]interface{})
	return applied, args.Error(1)
}

type MockAdmin struct {
	mock.Mock
}

func (m *MockAdmin) GetConfig(ctx context.Context) (*model.Config, error) {
	args := m.Called(ctx)
	cfg, _ := args.Get(0).(*model.Config)
	return cfg, args.Error(1)
}

func (m *MockAdmin) UpdateConfig(ctx context.Context, cfg *model.Config) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *MockAdmin) Accessories(ctx context.Context) []model.AccessoryStatus {
	return m.Called(ctx).Get(0).([]model.AccessoryStatus)
}

func newTestServer(bridge *MockBridge, admin *MockAdmin) *Server {
	return NewServer(bridge, admin, "192.168.1.10", 80, zerolog.Nop())
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

var lamp = &model.Device{
	ID:       "1",
	Name:     "Lamp",
	Type:     model.AccessoryTypeLight,
	State:    &huego.State{On: true, Bri: 254, Reachable: true},
	Metadata: model.HueMetadata{Type: "Extended color light", ModelID: "LCT015", ManufacturerName: "Signify"},
}

func TestServer_Register(t *testing.T) {
	s := newTestServer(new(MockBridge), new(MockAdmin))

	rec := do(t, s, "POST", "/api", `{"devicetype":"Echo"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Len(t, resp[0]["success"]["username"], 32)
}

func TestServer_GetLights(t *testing.T) {
	bridge := new(MockBridge)
	bridge.On("GetDevices", mock.Anything).Return([]*model.Device{lamp}, nil)
	s := newTestServer(bridge, new(MockAdmin))

	rec := do(t, s, "GET", "/api/someuser/lights", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var lights map[string]huego.Light
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lights))
	require.Contains(t, lights, "1")
	assert.Equal(t, "Lamp", lights["1"].Name)
	assert.Equal(t, "LCT015", lights["1"].ModelID)
	assert.Equal(t, uint8(254), lights["1"].State.Bri)
	assert.Equal(t, uniqueID("1"), lights["1"].UniqueID)

	rec = do(t, s, "GET", "/api/someuser", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var full map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &full))
	assert.Contains(t, full, "lights")
	assert.Contains(t, full, "config")
}

func TestServer_GetLight(t *testing.T) {
	bridge := new(MockBridge)
	bridge.On("GetDevice", mock.Anything, "1").Return(lamp, nil)
	bridge.On("GetDevice", mock.Anything, "9").Return(nil, fmt.Errorf("%w: 9", service.ErrAccessoryNotFound))
	s := newTestServer(bridge, new(MockAdmin))

	rec := do(t, s, "GET", "/api/u/lights/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Lamp"`)

	rec = do(t, s, "GET", "/api/u/lights/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":3`)
}

func TestServer_SetLightState(t *testing.T) {
	bridge := new(MockBridge)
	body := map[string]interface{}{"on": true, "bri": float64(127)}
	bridge.On("UpdateDeviceState", mock.Anything, "1", body).Return(body, nil)
	s := newTestServer(bridge, new(MockAdmin))

	rec := do(t, s, "PUT", "/api/u/lights/1/state", `{"on":true,"bri":127}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, float64(127), resp[0]["success"]["/lights/1/state/bri"])
	assert.Equal(t, true, resp[1]["success"]["/lights/1/state/on"])
	bridge.AssertExpectations(t)
}

func TestServer_SetLightStatePartialFailure(t *testing.T) {
	bridge := new(MockBridge)
	body := map[string]interface{}{"on": true, "ct": float64(300)}
	bridge.On("UpdateDeviceState", mock.Anything, "1", body).
		Return(map[string]interface{}{"on": true}, errors.New("colorTemperature: missing signals"))
	s := newTestServer(bridge, new(MockAdmin))

	rec := do(t, s, "PUT", "/api/u/lights/1/state", `{"on":true,"ct":300}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "/lights/1/state/ct", resp[0]["error"]["address"])
	assert.Equal(t, true, resp[1]["success"]["/lights/1/state/on"])
}

func TestServer_SetLightStateErrors(t *testing.T) {
	bridge := new(MockBridge)
	bridge.On("UpdateDeviceState", mock.Anything, "9", mock.Anything).
		Return(nil, fmt.Errorf("%w: 9", service.ErrAccessoryNotFound))
	s := newTestServer(bridge, new(MockAdmin))

	rec := do(t, s, "PUT", "/api/u/lights/1/state", `{"on":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, "PUT", "/api/u/lights/9/state", `{"on":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Description(t *testing.T) {
	s := newTestServer(new(MockBridge), new(MockAdmin))

	rec := do(t, s, "GET", "/description.xml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<URLBase>http://192.168.1.10:80/</URLBase>")
	assert.Contains(t, rec.Body.String(), "<UDN>uuid:"+s.UDN().String()+"</UDN>")
	assert.Equal(t, s.UDN(), newTestServer(new(MockBridge), new(MockAdmin)).UDN(), "UDN is stable per address")

	rec = do(t, s, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Admin(t *testing.T) {
	admin := new(MockAdmin)
	admin.On("GetConfig", mock.Anything).Return(&model.Config{
		Accessories: []*model.AccessoryConfig{{Name: "Fan", Type: model.AccessoryTypeSwitch}},
	}, nil)
	admin.On("UpdateConfig", mock.Anything, mock.MatchedBy(func(c *model.Config) bool {
		return len(c.Accessories) == 1 && c.Accessories[0].Name == "Blind"
	})).Return(errors.New("totalDurationOpen is required")).Once()
	admin.On("UpdateConfig", mock.Anything, mock.Anything).Return(nil)
	admin.On("Accessories", mock.Anything).Return([]model.AccessoryStatus{{ID: "1", Name: "Fan"}})
	s := newTestServer(new(MockBridge), admin)

	rec := do(t, s, "GET", "/admin/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "name: Fan")

	rec = do(t, s, "PUT", "/admin/config", "accessories:\n  - name: Blind\n    type: window-covering\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, "PUT", "/admin/config", "accessories:\n  - name: Fan\n    type: switch\n")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, "PUT", "/admin/config", "accessories: [")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, "GET", "/admin/accessories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Fan"`)
}
