package api

import (
	"net/http"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/model"
)

type rackDeviceRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
	Position int    `json:"position" validate:"min=1"`
}

type rackMoveRequest struct {
	Position int `json:"position" validate:"min=1"`
}

type rackValidation struct {
	RackID   string   `json:"rack_id"`
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

type rackConnections struct {
	Connections []model.RackConnection `json:"connections"`
	Warnings    []string               `json:"warnings,omitempty"`
}

// getRackLayout handles GET /api/racks/{id}/layout
func (h *Handler) getRackLayout(w http.ResponseWriter, r *http.Request) {
	layout, err := h.racks.Layout(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, layout)
}

// validateRack handles POST /api/racks/{id}/validate
func (h *Handler) validateRack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	problems, err := h.racks.Validate(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if problems == nil {
		problems = []string{}
	}
	log.Info("Validated rack", "id", id, "problems", len(problems))
	h.writeJSON(w, http.StatusOK, rackValidation{RackID: id, Valid: len(problems) == 0, Problems: problems})
}

// addRackDevice handles POST /api/racks/{id}/devices
func (h *Handler) addRackDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req rackDeviceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.racks.AddEquipment(id, req.DeviceID, req.Position); err != nil {
		log.Warn("Rack placement rejected", "rack", id, "device", req.DeviceID, "position", req.Position, "error", err)
		h.fail(w, err)
		return
	}
	h.rackLayoutAfterChange(w, id)
}

// moveRackDevice handles PUT /api/racks/{id}/devices/{device_id}
func (h *Handler) moveRackDevice(w http.ResponseWriter, r *http.Request) {
	id, deviceID := r.PathValue("id"), r.PathValue("device_id")
	var req rackMoveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.racks.MoveEquipment(id, deviceID, req.Position); err != nil {
		log.Warn("Rack move rejected", "rack", id, "device", deviceID, "position", req.Position, "error", err)
		h.fail(w, err)
		return
	}
	h.rackLayoutAfterChange(w, id)
}

// freeRackDevice handles DELETE /api/racks/{id}/devices/{device_id}
func (h *Handler) freeRackDevice(w http.ResponseWriter, r *http.Request) {
	id, deviceID := r.PathValue("id"), r.PathValue("device_id")
	if err := h.racks.FreeEquipmentRackUnits(id, deviceID); err != nil {
		h.fail(w, err)
		return
	}
	h.rackLayoutAfterChange(w, id)
}

func (h *Handler) rackLayoutAfterChange(w http.ResponseWriter, rackID string) {
	layout, err := h.racks.Layout(rackID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, layout)
}

// getRackConnections handles GET /api/racks/{id}/connections
func (h *Handler) getRackConnections(w http.ResponseWriter, r *http.Request) {
	conns, warnings, err := h.racks.Connections(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if conns == nil {
		conns = []model.RackConnection{}
	}
	h.writeJSON(w, http.StatusOK, rackConnections{Connections: conns, Warnings: warnings})
}
