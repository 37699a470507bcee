package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mzhdanov/bandtrack/internal/common"
	"github.com/mzhdanov/bandtrack/internal/logging"
	"github.com/mzhdanov/bandtrack/internal/syncapi"
)

// SyncService is the part of the sync layer the handlers need.
type SyncService interface {
	Push(ctx context.Context, userID string, req *syncapi.PushRequest) (time.Time, error)
	Pull(ctx context.Context, userID string, lastSyncAt *time.Time) (*syncapi.PullResponse, error)
}

type Handler struct {
	sync       SyncService
	log        logging.Logger
	appVersion string
	staticDir  string
}

func NewHandler(sync SyncService, appVersion, staticDir string, log logging.Logger) *Handler {
	return &Handler{
		sync:       sync,
		log:        log.With("component", "httpapi"),
		appVersion: appVersion,
		staticDir:  staticDir,
	}
}

func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var req syncapi.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed push payload", http.StatusBadRequest)
		return
	}

	syncedAt, err := h.sync.Push(r.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, common.ErrOwnershipConflict) {
			pushesTotal.WithLabelValues("conflict").Inc()
			http.Error(w, "row owned by another user", http.StatusConflict)
			return
		}
		pushesTotal.WithLabelValues("error").Inc()
		h.log.Error(r.Context(), "push failed", "user", userID, "error", err)
		http.Error(w, "push failed", http.StatusInternalServerError)
		return
	}

	pushesTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, syncapi.PushResponse{SyncedAt: syncedAt})
}

func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var lastSyncAt *time.Time
	if raw := r.URL.Query().Get("lastSyncAt"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "malformed lastSyncAt", http.StatusBadRequest)
			return
		}
		lastSyncAt = &t
	}

	resp, err := h.sync.Pull(r.Context(), userID, lastSyncAt)
	if err != nil {
		pullsTotal.WithLabelValues("error").Inc()
		h.log.Error(r.Context(), "pull failed", "user", userID, "error", err)
		http.Error(w, "pull failed", http.StatusInternalServerError)
		return
	}

	pullsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, resp)
}

// Version reports the deployed build. The no-store headers matter: clients
// poll this file to detect deployments, so any cache in front would stall
// updates indefinitely.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, map[string]string{"version": h.appVersion})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
