package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakbridge/oakbridge/internal/bridge"
	"github.com/oakbridge/oakbridge/internal/camera"
	"github.com/oakbridge/oakbridge/internal/frame"
	"github.com/oakbridge/oakbridge/internal/relay"
	"github.com/oakbridge/oakbridge/internal/supervisor"
	"github.com/oakbridge/oakbridge/internal/vcam"
)

// MockServerService implements ServerService for handler tests.
type MockServerService struct {
	mu sync.Mutex

	state        supervisor.Snapshot
	stats        bridge.Stats
	devices      []camera.DeviceInfo
	scannedAt    time.Time
	submitErr    error
	submitted    []camera.Command
	snapshot     []byte
	snapshotMeta vcam.SnapshotMeta
	snapshotErr  error
	feed         chan supervisor.StatusEvent
	unsubscribed []string
}

func (m *MockServerService) IsRunning() bool          { return true }
func (m *MockServerService) GetPort() int             { return 28680 }
func (m *MockServerService) GetUptime() time.Duration { return 90 * time.Second }
func (m *MockServerService) GetBuildID() string       { return "test-build" }
func (m *MockServerService) GetVersion() string       { return "test-version" }

func (m *MockServerService) StreamFormat() frame.Format {
	return frame.Format{Width: 1920, Height: 1080, Pixel: frame.FormatBGR24, FPS: 30}
}

func (m *MockServerService) ConnectionState() supervisor.Snapshot { return m.state }
func (m *MockServerService) PipelineStats() bridge.Stats          { return m.stats }

func (m *MockServerService) Devices() ([]camera.DeviceInfo, time.Time) {
	return m.devices, m.scannedAt
}

func (m *MockServerService) SubmitControl(cmd camera.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = append(m.submitted, cmd)
	return nil
}

func (m *MockServerService) SnapshotJPEG() ([]byte, vcam.SnapshotMeta, error) {
	return m.snapshot, m.snapshotMeta, m.snapshotErr
}

func (m *MockServerService) SubscribeStatus() (string, <-chan supervisor.StatusEvent) {
	return "feed-client-1", m.feed
}

func (m *MockServerService) UnsubscribeStatus(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, id)
}

func (m *MockServerService) Stop() error { return nil }

func (m *MockServerService) submittedCommands() []camera.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]camera.Command, len(m.submitted))
	copy(out, m.submitted)
	return out
}

func decodeJSONBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleHealth(t *testing.T) {
	h := NewAPIHandlers(&MockServerService{})
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy","service":"oakbridge-server"}`, rec.Body.String())
}

func TestHandleStatusStreaming(t *testing.T) {
	since := time.Now().Add(-time.Minute)
	mock := &MockServerService{
		state: supervisor.Snapshot{
			State:  supervisor.StateStreaming,
			Since:  since,
			Reason: "first frame received",
			Descriptor: &camera.Descriptor{
				Device:   camera.DeviceInfo{ID: "oak-1", Name: "OAK-D Lite", Speed: camera.LinkSpeedUSB3},
				Speed:    camera.LinkSpeedUSB3,
				Encoding: camera.EncodingRaw,
				Epoch:    3,
			},
		},
	}
	h := NewAPIHandlers(mock)
	rec := httptest.NewRecorder()

	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSONBody(t, rec)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(28680), body["port"])
	assert.Equal(t, "streaming", body["state"])
	assert.Equal(t, "first frame received", body["reason"])
	assert.Equal(t, since.Format(time.RFC3339), body["state_since"])
	assert.Equal(t, "1920x1080 BGR24 @30", body["format"])
	assert.Equal(t, "test-version", body["version"])
	assert.Equal(t, "test-build", body["build_id"])

	device, ok := body["device"].(map[string]interface{})
	require.True(t, ok, "streaming status should carry the bound device")
	assert.Equal(t, "oak-1", device["id"])
	assert.Equal(t, "OAK-D Lite", device["name"])
	assert.Equal(t, "usb3", device["speed"])
	assert.Equal(t, "raw", device["encoding"])
	assert.Equal(t, float64(3), device["epoch"])
}

func TestHandleStatusDisconnected(t *testing.T) {
	mock := &MockServerService{
		state: supervisor.Snapshot{
			State:  supervisor.StateDisconnected,
			Since:  time.Now(),
			Reason: "startup",
		},
	}
	h := NewAPIHandlers(mock)
	rec := httptest.NewRecorder()

	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	body := decodeJSONBody(t, rec)
	assert.Equal(t, "disconnected", body["state"])
	_, hasDevice := body["device"]
	assert.False(t, hasDevice, "no device entry while disconnected")
}

func TestHandleStats(t *testing.T) {
	mock := &MockServerService{
		stats: bridge.Stats{
			Pool:  frame.PoolStats{Size: 4, Free: 3, Acquires: 100},
			Relay: relay.Stats{Relayed: 42},
		},
	}
	h := NewAPIHandlers(mock)
	rec := httptest.NewRecorder()

	h.HandleStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSONBody(t, rec)
	pool, ok := body["pool"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), pool["size"])
	assert.Equal(t, float64(100), pool["acquires"])
	relayStats, ok := body["relay"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), relayStats["relayed"])
}

func TestHandleDevices(t *testing.T) {
	scanned := time.Now().Add(-2 * time.Second)
	mock := &MockServerService{
		devices: []camera.DeviceInfo{
			{ID: "oak-1", Name: "OAK-D Lite", Speed: camera.LinkSpeedUSB3},
			{ID: "oak-2", Name: "OAK-D Pro", Speed: camera.LinkSpeedUSB2},
		},
		scannedAt: scanned,
	}
	h := NewAPIHandlers(mock)
	rec := httptest.NewRecorder()

	h.HandleDevices(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	body := decodeJSONBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, scanned.Format(time.RFC3339), body["scanned_at"])

	list, ok := body["devices"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "oak-1", first["id"])
	assert.Equal(t, "usb3", first["speed"])
}

func TestHandleDevicesEmpty(t *testing.T) {
	h := NewAPIHandlers(&MockServerService{})
	rec := httptest.NewRecorder()

	h.HandleDevices(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	body := decodeJSONBody(t, rec)
	assert.Equal(t, float64(0), body["count"])
	_, hasScan := body["scanned_at"]
	assert.False(t, hasScan, "no scan timestamp before the first scan")
}

func TestHandleServerInfo(t *testing.T) {
	h := NewAPIHandlers(&MockServerService{})
	rec := httptest.NewRecorder()

	h.HandleServerInfo(rec, httptest.NewRequest(http.MethodGet, "/api/server/info", nil))

	body := decodeJSONBody(t, rec)
	assert.Equal(t, "test-version", body["version"])
	assert.Equal(t, float64(28680), body["port"])
	assert.Equal(t, "1m30s", body["uptime"])
	services, ok := body["services"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, services, "frame-relay")
	assert.Contains(t, services, "device-supervisor")
}

func TestHandleServerShutdownRequiresPost(t *testing.T) {
	h := NewAPIHandlers(&MockServerService{})
	rec := httptest.NewRecorder()

	h.HandleServerShutdown(rec, httptest.NewRequest(http.MethodGet, "/api/server/shutdown", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
