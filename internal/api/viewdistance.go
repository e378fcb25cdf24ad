package api

import (
	"fmt"
	"net/http"

	"dynview/pkg/host"
	"dynview/pkg/logging"
	"dynview/pkg/viewdistance"
)

// ViewDistanceHandler exposes the controller to administrators. Every
// controller access is marshalled onto the scheduler goroutine.
type ViewDistanceHandler struct {
	exec     Executor
	ctrl     *viewdistance.Controller
	registry host.Registry
	tps      func() [3]float64
}

// NewViewDistanceHandler creates a new ViewDistanceHandler. tps may be nil.
func NewViewDistanceHandler(exec Executor, ctrl *viewdistance.Controller, reg host.Registry, tps func() [3]float64) *ViewDistanceHandler {
	return &ViewDistanceHandler{exec: exec, ctrl: ctrl, registry: reg, tps: tps}
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	viewdistance.Status
	TPS     *TPSAverages `json:"tps,omitempty"`
	LastLog string       `json:"last_log"`
}

// TPSAverages holds the rolling averages of the tick loop.
type TPSAverages struct {
	OneMinute      float64 `json:"1m"`
	FiveMinutes    float64 `json:"5m"`
	FifteenMinutes float64 `json:"15m"`
}

// GlobalResponse describes the global view distance.
type GlobalResponse struct {
	Desired int `json:"desired"`
	Current int `json:"current"`
	Minimum int `json:"minimum"`
	Maximum int `json:"maximum"`
}

// ClientResponse describes one online client.
type ClientResponse struct {
	ID             host.ClientID `json:"id"`
	Name           string        `json:"name"`
	ClientValue    int           `json:"client_value"`
	EffectiveValue int           `json:"effective_value"`
	Pinned         bool          `json:"pinned"`
	Override       int           `json:"override,omitempty"`
}

func (h *ViewDistanceHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	if err := h.exec.Call(r.Context(), func() {
		resp.Status = h.ctrl.Status()
		if h.tps != nil {
			a := h.tps()
			resp.TPS = &TPSAverages{OneMinute: a[0], FiveMinutes: a[1], FifteenMinutes: a[2]}
		}
	}); err != nil {
		writeError(w, err)
		return
	}
	resp.LastLog = summarizeLogLine(logging.GlobalLogCapture.LastLine())
	writeJSON(w, http.StatusOK, resp)
}

func (h *ViewDistanceHandler) HandleGetGlobal(w http.ResponseWriter, r *http.Request) {
	var resp GlobalResponse
	if err := h.exec.Call(r.Context(), func() { resp = h.global() }); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSetGraceful sets the global distance without reconciling clients.
func (h *ViewDistanceHandler) HandleSetGraceful(w http.ResponseWriter, r *http.Request) {
	h.setDistance(w, r, h.ctrl.SetCurrentGracefully)
}

// HandleSetNow sets the global distance and reconciles every client.
func (h *ViewDistanceHandler) HandleSetNow(w http.ResponseWriter, r *http.Request) {
	h.setDistance(w, r, h.ctrl.SetCurrentNow)
}

func (h *ViewDistanceHandler) HandleGetDesired(w http.ResponseWriter, r *http.Request) {
	var desired int
	if err := h.exec.Call(r.Context(), func() { desired = h.ctrl.Desired() }); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"desired": desired})
}

func (h *ViewDistanceHandler) HandleSetDesired(w http.ResponseWriter, r *http.Request) {
	h.setDistance(w, r, h.ctrl.SetDesired)
}

func (h *ViewDistanceHandler) setDistance(w http.ResponseWriter, r *http.Request, set func(int) error) {
	d, err := decodeDistance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var (
		resp   GlobalResponse
		setErr error
	)
	if err := h.exec.Call(r.Context(), func() {
		setErr = set(d)
		resp = h.global()
	}); err != nil {
		writeError(w, err)
		return
	}
	if setErr != nil {
		writeError(w, setErr)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ViewDistanceHandler) global() GlobalResponse {
	return GlobalResponse{
		Desired: h.ctrl.Desired(),
		Current: h.ctrl.Current(),
		Minimum: h.ctrl.Minimum(),
		Maximum: h.ctrl.Maximum(),
	}
}

func (h *ViewDistanceHandler) HandleClient(w http.ResponseWriter, r *http.Request) {
	id := host.ClientID(r.PathValue("id"))
	var (
		resp  ClientResponse
		found bool
	)
	if err := h.exec.Call(r.Context(), func() {
		cl, ok := h.registry.Client(id)
		if !ok {
			return
		}
		found = true
		resp = h.describe(cl)
	}); err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, fmt.Errorf("%w: %s", ErrUnknownClient, id))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ViewDistanceHandler) HandlePin(w http.ResponseWriter, r *http.Request) {
	d, err := decodeDistance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.withClient(w, r, func(cl host.Client) error {
		return h.ctrl.Pin(cl, d)
	})
}

// HandleUnpin releases a pin. Sessions that already quit answer with no
// content once their stale pin is gone.
func (h *ViewDistanceHandler) HandleUnpin(w http.ResponseWriter, r *http.Request) {
	id := host.ClientID(r.PathValue("id"))
	var (
		resp    ClientResponse
		online  bool
		removed bool
	)
	if err := h.exec.Call(r.Context(), func() {
		removed = h.ctrl.UnpinID(id)
		if cl, ok := h.registry.Client(id); ok {
			online = true
			resp = h.describe(cl)
		}
	}); err != nil {
		writeError(w, err)
		return
	}
	switch {
	case online:
		writeJSON(w, http.StatusOK, resp)
	case removed:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, fmt.Errorf("%w: %s", ErrUnknownClient, id))
	}
}

// withClient resolves the path client and runs fn on the controller
// goroutine, replying with the client's state afterwards.
func (h *ViewDistanceHandler) withClient(w http.ResponseWriter, r *http.Request, fn func(host.Client) error) {
	id := host.ClientID(r.PathValue("id"))
	var (
		resp  ClientResponse
		opErr error
	)
	if err := h.exec.Call(r.Context(), func() {
		cl, ok := h.registry.Client(id)
		if !ok {
			opErr = fmt.Errorf("%w: %s", ErrUnknownClient, id)
			return
		}
		opErr = fn(cl)
		resp = h.describe(cl)
	}); err != nil {
		writeError(w, err)
		return
	}
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ViewDistanceHandler) describe(cl host.Client) ClientResponse {
	override, pinned := h.ctrl.Override(cl.ID())
	return ClientResponse{
		ID:             cl.ID(),
		Name:           cl.Name(),
		ClientValue:    h.ctrl.ClientValue(cl),
		EffectiveValue: h.ctrl.ClientEffectiveValue(cl),
		Pinned:         pinned,
		Override:       override,
	}
}
