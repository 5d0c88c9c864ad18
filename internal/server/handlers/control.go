package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/oakbridge/oakbridge/internal/camera"
	"github.com/oakbridge/oakbridge/internal/control"
)

// DefaultISO is applied when an exposure request omits sensitivity.
const DefaultISO = 400

// ControlHandlers translate /api/control/* requests into device commands
// on the bounded control channel. Submission never waits for the device:
// a full channel maps to 409 and the client retries.
type ControlHandlers struct {
	serverService ServerService
}

// NewControlHandlers creates a new control handlers instance
func NewControlHandlers(serverSvc ServerService) *ControlHandlers {
	return &ControlHandlers{serverService: serverSvc}
}

type focusRequest struct {
	Position *int `json:"position"`
}

type exposureRequest struct {
	TimeUs *int `json:"time_us"`
	ISO    *int `json:"iso"`
}

type whiteBalanceRequest struct {
	Kelvin *int `json:"kelvin"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *ControlHandlers) HandleFocus(w http.ResponseWriter, req *http.Request) {
	if !requirePost(w, req) {
		return
	}
	var body focusRequest
	if err := decodeBody(req, &body); err != nil || body.Position == nil {
		RespondError(w, http.StatusBadRequest, "request must carry a focus position")
		return
	}
	h.submit(w, camera.NewSetFocus(*body.Position))
}

func (h *ControlHandlers) HandleExposure(w http.ResponseWriter, req *http.Request) {
	if !requirePost(w, req) {
		return
	}
	var body exposureRequest
	if err := decodeBody(req, &body); err != nil || body.TimeUs == nil {
		RespondError(w, http.StatusBadRequest, "request must carry an exposure time_us")
		return
	}
	iso := DefaultISO
	if body.ISO != nil {
		iso = *body.ISO
	}
	h.submit(w, camera.NewSetExposure(*body.TimeUs, iso))
}

func (h *ControlHandlers) HandleWhiteBalance(w http.ResponseWriter, req *http.Request) {
	if !requirePost(w, req) {
		return
	}
	var body whiteBalanceRequest
	if err := decodeBody(req, &body); err != nil || body.Kelvin == nil {
		RespondError(w, http.StatusBadRequest, "request must carry a white balance kelvin value")
		return
	}
	h.submit(w, camera.NewSetWhiteBalance(*body.Kelvin))
}

func (h *ControlHandlers) HandleAutofocusTrigger(w http.ResponseWriter, req *http.Request) {
	if !requirePost(w, req) {
		return
	}
	h.submit(w, camera.TriggerAutofocus{})
}

func (h *ControlHandlers) HandleAutoFocus(w http.ResponseWriter, req *http.Request) {
	if !requirePost(w, req) {
		return
	}
	var body toggleRequest
	if err := decodeBody(req, &body); err != nil || body.Enabled == nil {
		RespondError(w, http.StatusBadRequest, "request must carry enabled=true|false")
		return
	}
	h.submit(w, camera.SetAutoFocus{Enabled: *body.Enabled})
}

func (h *ControlHandlers) HandleAutoExposure(w http.ResponseWriter, req *http.Request) {
	if !requirePost(w, req) {
		return
	}
	var body toggleRequest
	if err := decodeBody(req, &body); err != nil || body.Enabled == nil {
		RespondError(w, http.StatusBadRequest, "request must carry enabled=true|false")
		return
	}
	h.submit(w, camera.SetAutoExposure{Enabled: *body.Enabled})
}

func (h *ControlHandlers) HandleLinkSpeed(w http.ResponseWriter, req *http.Request) {
	if !requirePost(w, req) {
		return
	}
	h.submit(w, camera.QueryLinkSpeed{})
}

// submit queues the command and maps submission errors onto HTTP status
// codes. 202 means queued, not applied; the result arrives on the status
// feed once the relay drains it.
func (h *ControlHandlers) submit(w http.ResponseWriter, cmd camera.Command) {
	if err := h.serverService.SubmitControl(cmd); err != nil {
		if errors.Is(err, control.ErrBusy) {
			RespondError(w, http.StatusConflict, "control channel full, retry shortly")
			return
		}
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondJSON(w, http.StatusAccepted, map[string]interface{}{
		"queued":  true,
		"command": cmd.String(),
	})
}

func requirePost(w http.ResponseWriter, req *http.Request) bool {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeBody(req *http.Request, v interface{}) error {
	defer req.Body.Close()
	data, err := io.ReadAll(io.LimitReader(req.Body, 1<<16))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
