package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/syncer"
)

type executeRequest struct {
	Findings []model.SyncFinding `json:"findings" validate:"dive"`
}

type syncDeviceRequest struct {
	// Community overrides the SNMP community stored on the device for this
	// run only.
	Community string `json:"community"`
}

// executeSync handles POST /api/sync/execute
func (h *Handler) executeSync(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !h.decode(w, r, &req) {
		return
	}
	results := h.action.Execute(r.Context(), req.Findings)
	log.Info("Executed sync findings", "findings", len(req.Findings), "results", len(results))
	h.writeJSON(w, http.StatusOK, results)
}

// syncDevice handles POST /api/sync/devices/{id}. The body is optional.
func (h *Handler) syncDevice(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		h.writeError(w, http.StatusServiceUnavailable, "no sync source configured")
		return
	}
	var req syncDeviceRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := decodeOptional(r.Body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if req.Community != "" {
		ctx = syncer.WithCommunity(ctx, req.Community)
	}
	run, err := h.syncer.SyncDevice(ctx, r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func decodeOptional(body io.Reader, v any) error {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return err
	}
	return json.Unmarshal(data, v)
}

// listSyncRuns handles GET /api/sync/runs?device_id=&limit=
func (h *Handler) listSyncRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := h.storage.ListSyncRuns(q.Get("device_id"), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	if runs == nil {
		runs = []model.SyncRun{}
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// getSyncRun handles GET /api/sync/runs/{id}
func (h *Handler) getSyncRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.storage.GetSyncRun(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}
