package api

import (
	"net/http"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/model"
)

type transportLinkRequest struct {
	PortA     string `json:"port_a" validate:"required"`
	PortB     string `json:"port_b" validate:"required,nefield=PortA"`
	LinkClass string `json:"link_class" validate:"required"`
	Name      string `json:"name" validate:"required"`
}

type containerLinkRequest struct {
	EndpointA string              `json:"endpoint_a" validate:"required"`
	EndpointB string              `json:"endpoint_b" validate:"required"`
	LinkClass string              `json:"link_class" validate:"required"`
	Name      string              `json:"name" validate:"required"`
	Positions []model.SDHPosition `json:"positions" validate:"required,min=1,dive"`
}

// createTransportLink handles POST /api/sdh/transport-links
func (h *Handler) createTransportLink(w http.ResponseWriter, r *http.Request) {
	var req transportLinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	link, err := h.sdh.CreateTransportLink(req.PortA, req.PortB, req.LinkClass, req.Name)
	if err != nil {
		log.Warn("Transport link creation failed", "class", req.LinkClass, "error", err)
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, link)
}

// createContainerLink handles POST /api/sdh/container-links. The endpoints
// are communications equipment.
func (h *Handler) createContainerLink(w http.ResponseWriter, r *http.Request) {
	var req containerLinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	link, err := h.sdh.CreateContainerLink(req.EndpointA, req.EndpointB, req.LinkClass, req.Positions, req.Name)
	if err != nil {
		log.Warn("Container link creation failed", "class", req.LinkClass, "error", err)
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, link)
}

// createTributaryLink handles POST /api/sdh/tributary-links. The endpoints
// are ports.
func (h *Handler) createTributaryLink(w http.ResponseWriter, r *http.Request) {
	var req containerLinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	link, err := h.sdh.CreateTributaryLink(req.EndpointA, req.EndpointB, req.LinkClass, req.Positions, req.Name)
	if err != nil {
		log.Warn("Tributary link creation failed", "class", req.LinkClass, "error", err)
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, link)
}

// deleteSDHLink handles DELETE /api/sdh/{kind}/{id}
func (h *Handler) deleteSDHLink(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var err error
	switch kind := r.PathValue("kind"); kind {
	case "transport-links":
		err = h.sdh.DeleteTransportLink(id)
	case "container-links":
		err = h.sdh.DeleteContainerLink(id)
	case "tributary-links":
		err = h.sdh.DeleteTributaryLink(id)
	default:
		h.writeError(w, http.StatusNotFound, "unknown link kind "+kind)
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	log.Info("Deleted SDH link", "kind", r.PathValue("kind"), "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// getTransportLinkStructure handles GET /api/sdh/transport-links/{id}/structure
func (h *Handler) getTransportLinkStructure(w http.ResponseWriter, r *http.Request) {
	defs, err := h.sdh.GetTransportLinkStructure(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if defs == nil {
		defs = []model.SDHContainerLinkDefinition{}
	}
	h.writeJSON(w, http.StatusOK, defs)
}

// getContainerLinkStructure handles GET /api/sdh/container-links/{id}/structure
func (h *Handler) getContainerLinkStructure(w http.ResponseWriter, r *http.Request) {
	defs, err := h.sdh.GetContainerLinkStructure(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if defs == nil {
		defs = []model.SDHContainerLinkDefinition{}
	}
	h.writeJSON(w, http.StatusOK, defs)
}

// getLinkPositions serves the timeslots of a transport link or a high order
// container.
func (h *Handler) getLinkPositions(w http.ResponseWriter, r *http.Request) {
	slots, err := h.sdh.Slots(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, slots)
}

// findSDHRoutes handles GET /api/sdh/routes?a=&b=&via=transport|container
func (h *Handler) findSDHRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		h.writeError(w, http.StatusBadRequest, "a and b are required")
		return
	}

	var (
		routes []model.Route
		err    error
	)
	switch via := q.Get("via"); via {
	case "", "transport":
		routes, err = h.sdh.FindRoutesUsingTransportLinks(a, b)
	case "container":
		routes, err = h.sdh.FindRoutesUsingContainerLinks(a, b)
	default:
		h.writeError(w, http.StatusBadRequest, "via must be transport or container")
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	if routes == nil {
		routes = []model.Route{}
	}
	h.writeJSON(w, http.StatusOK, routes)
}
