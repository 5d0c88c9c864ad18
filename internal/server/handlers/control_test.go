package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakbridge/oakbridge/internal/camera"
	"github.com/oakbridge/oakbridge/internal/control"
)

func postControl(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler(rec, req)
	return rec
}

func TestControlEndpointsQueueCommands(t *testing.T) {
	tests := []struct {
		name    string
		handler func(*ControlHandlers) http.HandlerFunc
		path    string
		body    string
		want    camera.Command
	}{
		{
			name:    "focus",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleFocus },
			path:    "/api/control/focus",
			body:    `{"position": 128}`,
			want:    camera.SetFocus{Position: 128},
		},
		{
			name:    "focus clamped",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleFocus },
			path:    "/api/control/focus",
			body:    `{"position": 9000}`,
			want:    camera.SetFocus{Position: camera.FocusMax},
		},
		{
			name:    "exposure",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleExposure },
			path:    "/api/control/exposure",
			body:    `{"time_us": 8000, "iso": 800}`,
			want:    camera.SetExposure{TimeUs: 8000, ISO: 800},
		},
		{
			name:    "exposure defaults iso",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleExposure },
			path:    "/api/control/exposure",
			body:    `{"time_us": 8000}`,
			want:    camera.SetExposure{TimeUs: 8000, ISO: DefaultISO},
		},
		{
			name:    "white balance",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleWhiteBalance },
			path:    "/api/control/white-balance",
			body:    `{"kelvin": 5600}`,
			want:    camera.SetWhiteBalance{Kelvin: 5600},
		},
		{
			name:    "autofocus trigger takes no body",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleAutofocusTrigger },
			path:    "/api/control/autofocus",
			body:    "",
			want:    camera.TriggerAutofocus{},
		},
		{
			name:    "auto focus on",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleAutoFocus },
			path:    "/api/control/auto-focus",
			body:    `{"enabled": true}`,
			want:    camera.SetAutoFocus{Enabled: true},
		},
		{
			name:    "auto exposure off",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleAutoExposure },
			path:    "/api/control/auto-exposure",
			body:    `{"enabled": false}`,
			want:    camera.SetAutoExposure{Enabled: false},
		},
		{
			name:    "link speed query",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleLinkSpeed },
			path:    "/api/control/link-speed",
			body:    "",
			want:    camera.QueryLinkSpeed{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockServerService{}
			h := NewControlHandlers(mock)

			rec := postControl(t, tt.handler(h), tt.path, tt.body)

			require.Equal(t, http.StatusAccepted, rec.Code, "body: %s", rec.Body.String())
			body := decodeJSONBody(t, rec)
			assert.Equal(t, true, body["queued"])
			assert.Equal(t, tt.want.String(), body["command"])

			submitted := mock.submittedCommands()
			require.Len(t, submitted, 1)
			assert.Equal(t, tt.want, submitted[0])
		})
	}
}

func TestControlEndpointsRejectBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		handler func(*ControlHandlers) http.HandlerFunc
		body    string
	}{
		{
			name:    "focus without position",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleFocus },
			body:    `{}`,
		},
		{
			name:    "focus malformed json",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleFocus },
			body:    `{"position":`,
		},
		{
			name:    "exposure without time",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleExposure },
			body:    `{"iso": 800}`,
		},
		{
			name:    "white balance without kelvin",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleWhiteBalance },
			body:    `{}`,
		},
		{
			name:    "auto focus without enabled",
			handler: func(h *ControlHandlers) http.HandlerFunc { return h.HandleAutoFocus },
			body:    `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockServerService{}
			h := NewControlHandlers(mock)

			rec := postControl(t, tt.handler(h), "/api/control/test", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeJSONBody(t, rec)["error"])
			assert.Empty(t, mock.submittedCommands(), "nothing reaches the channel on a bad request")
		})
	}
}

func TestControlBusyMapsToConflict(t *testing.T) {
	mock := &MockServerService{submitErr: control.ErrBusy}
	h := NewControlHandlers(mock)

	rec := postControl(t, h.HandleFocus, "/api/control/focus", `{"position": 10}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeJSONBody(t, rec)["error"], "retry")
}

func TestControlSubmitFailureMapsToServerError(t *testing.T) {
	mock := &MockServerService{submitErr: errors.New("bridge not started")}
	h := NewControlHandlers(mock)

	rec := postControl(t, h.HandleFocus, "/api/control/focus", `{"position": 10}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestControlEndpointsRequirePost(t *testing.T) {
	mock := &MockServerService{}
	h := NewControlHandlers(mock)

	handlers := map[string]http.HandlerFunc{
		"focus":         h.HandleFocus,
		"exposure":      h.HandleExposure,
		"white-balance": h.HandleWhiteBalance,
		"autofocus":     h.HandleAutofocusTrigger,
		"auto-focus":    h.HandleAutoFocus,
		"auto-exposure": h.HandleAutoExposure,
		"link-speed":    h.HandleLinkSpeed,
	}

	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/api/control/"+name, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
	assert.Empty(t, mock.submittedCommands())
}
