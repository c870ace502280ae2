package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/metadata"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/rack"
	"github.com/martinsuchenak/invd/internal/sdh"
	"github.com/martinsuchenak/invd/internal/storage"
	"github.com/martinsuchenak/invd/internal/syncer"
)

// maxBodySize bounds request bodies
const maxBodySize = 4 << 20

// DeviceSyncer synchronizes single devices on demand
type DeviceSyncer interface {
	SyncDevice(ctx context.Context, deviceID string) (*model.SyncRun, error)
}

// Handler handles HTTP requests
type Handler struct {
	storage  storage.Storage
	classes  *metadata.Hierarchy
	sdh      *sdh.Service
	racks    *rack.Service
	action   *syncer.Action
	syncer   DeviceSyncer
	validate *validator.Validate
}

// NewHandler creates a new API handler. syncer may be nil when no finding
// source is configured; device sync requests then fail with 503.
func NewHandler(s storage.Storage, classes *metadata.Hierarchy, ds DeviceSyncer) *Handler {
	return &Handler{
		storage:  s,
		classes:  classes,
		sdh:      sdh.NewService(s, classes),
		racks:    rack.NewService(s, classes),
		action:   syncer.NewAction(s, classes),
		syncer:   ds,
		validate: validator.New(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Objects
	mux.HandleFunc("GET /api/objects", h.listObjects)
	mux.HandleFunc("POST /api/objects", h.createObject)
	mux.HandleFunc("GET /api/objects/{id}", h.getObject)
	mux.HandleFunc("PUT /api/objects/{id}", h.updateObject)
	mux.HandleFunc("DELETE /api/objects/{id}", h.deleteObject)
	mux.HandleFunc("GET /api/objects/{id}/children", h.getChildren)
	mux.HandleFunc("GET /api/objects/{id}/parents", h.getParents)
	mux.HandleFunc("POST /api/objects/{id}/move", h.moveObject)
	mux.HandleFunc("GET /api/objects/{id}/relationships", h.getRelationships)
	mux.HandleFunc("POST /api/objects/{id}/relationships", h.createRelationship)
	mux.HandleFunc("DELETE /api/objects/{id}/relationships", h.deleteRelationship)

	// Classes and list types
	mux.HandleFunc("GET /api/classes", h.listClasses)
	mux.HandleFunc("GET /api/classes/{name}", h.getClass)
	mux.HandleFunc("GET /api/classes/{name}/children", h.getPossibleChildren)
	mux.HandleFunc("GET /api/classes/{name}/items", h.listListTypeItems)
	mux.HandleFunc("POST /api/classes/{name}/items", h.createListTypeItem)

	// SDH
	mux.HandleFunc("POST /api/sdh/transport-links", h.createTransportLink)
	mux.HandleFunc("POST /api/sdh/container-links", h.createContainerLink)
	mux.HandleFunc("POST /api/sdh/tributary-links", h.createTributaryLink)
	mux.HandleFunc("DELETE /api/sdh/{kind}/{id}", h.deleteSDHLink)
	mux.HandleFunc("GET /api/sdh/transport-links/{id}/structure", h.getTransportLinkStructure)
	mux.HandleFunc("GET /api/sdh/container-links/{id}/structure", h.getContainerLinkStructure)
	mux.HandleFunc("GET /api/sdh/transport-links/{id}/positions", h.getLinkPositions)
	mux.HandleFunc("GET /api/sdh/container-links/{id}/positions", h.getLinkPositions)
	mux.HandleFunc("GET /api/sdh/routes", h.findSDHRoutes)

	// Racks
	mux.HandleFunc("GET /api/racks/{id}/layout", h.getRackLayout)
	mux.HandleFunc("POST /api/racks/{id}/validate", h.validateRack)
	mux.HandleFunc("POST /api/racks/{id}/devices", h.addRackDevice)
	mux.HandleFunc("PUT /api/racks/{id}/devices/{device_id}", h.moveRackDevice)
	mux.HandleFunc("DELETE /api/racks/{id}/devices/{device_id}", h.freeRackDevice)
	mux.HandleFunc("GET /api/racks/{id}/connections", h.getRackConnections)

	// Sync
	mux.HandleFunc("POST /api/sync/execute", h.executeSync)
	mux.HandleFunc("POST /api/sync/devices/{id}", h.syncDevice)
	mux.HandleFunc("GET /api/sync/runs", h.listSyncRuns)
	mux.HandleFunc("GET /api/sync/runs/{id}", h.getSyncRun)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// internalError logs the error and writes a generic 500 response
func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.Error("Internal server error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

// fail maps domain errors to status codes. Anything unknown is a 500.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, storage.ErrRelationshipNotFound),
		errors.Is(err, storage.ErrSyncRunNotFound),
		errors.Is(err, metadata.ErrClassNotFound),
		errors.Is(err, rack.ErrNotInRack):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrObjectHasRelationships),
		errors.Is(err, storage.ErrListTypeItemExists),
		errors.Is(err, sdh.ErrPositionInUse),
		errors.Is(err, rack.ErrNotRackable),
		errors.Is(err, rack.ErrCannotMove):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrInvalidParent),
		errors.Is(err, sdh.ErrInvalidClass),
		errors.Is(err, sdh.ErrNoEquipment),
		errors.Is(err, sdh.ErrMissingPosition),
		errors.Is(err, sdh.ErrPositionOutOfRange),
		errors.Is(err, sdh.ErrNotEnoughPositions),
		errors.Is(err, rack.ErrInvalidRack),
		errors.Is(err, rack.ErrInvalidDevice),
		errors.Is(err, syncer.ErrNotSyncable),
		errors.Is(err, errInvalidClass):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.internalError(w, err)
	}
}

// decode reads a JSON body into v and validates it
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Warn("Invalid request body", "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		log.Warn("Request validation failed", "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage turns validator errors into "field: rule" pairs
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
