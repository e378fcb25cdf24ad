package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dynview/pkg/core"
	"dynview/pkg/version"
	"dynview/pkg/viewdistance"
)

// ErrUnknownClient is returned for a client id that is not online.
var ErrUnknownClient = errors.New("unknown client")

// Executor runs a function on the controller's goroutine. core.Scheduler
// implements it.
type Executor interface {
	Call(ctx context.Context, fn func()) error
}

// NewServer creates and configures the HTTP server.
func NewServer(addr string, vd *ViewDistanceHandler, notes *NotificationHandler) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	mux.HandleFunc("GET /api/status", vd.HandleStatus)
	mux.HandleFunc("GET /api/global", vd.HandleGetGlobal)
	mux.HandleFunc("PUT /api/global", vd.HandleSetGraceful)
	mux.HandleFunc("PUT /api/global/now", vd.HandleSetNow)
	mux.HandleFunc("GET /api/global/desired", vd.HandleGetDesired)
	mux.HandleFunc("PUT /api/global/desired", vd.HandleSetDesired)
	mux.HandleFunc("GET /api/clients/{id}", vd.HandleClient)
	mux.HandleFunc("PUT /api/clients/{id}/pin", vd.HandlePin)
	mux.HandleFunc("DELETE /api/clients/{id}/pin", vd.HandleUnpin)

	if notes != nil {
		mux.HandleFunc("GET /api/notifications", notes.HandleRecent)
		mux.HandleFunc("GET /api/notifications/stream", notes.HandleStream)
	}

	return &http.Server{
		Addr:        addr,
		Handler:     loggingMiddleware(mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the notification stream is long-lived and sets
		// its own per-message deadlines.
		IdleTimeout: 60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, viewdistance.ErrInvalidArgument), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnknownClient):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		slog.Error("API request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

var errBadRequest = errors.New("bad request")

// distanceRequest is the body of every PUT that sets a view distance.
type distanceRequest struct {
	Distance *int `json:"distance"`
}

func decodeDistance(r *http.Request) (int, error) {
	var req distanceRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return 0, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if req.Distance == nil {
		return 0, fmt.Errorf("%w: missing distance", errBadRequest)
	}
	return *req.Distance, nil
}
