package api

import (
	"net/http"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/model"
)

type listTypeItemRequest struct {
	Name string `json:"name" validate:"required"`
}

// listClasses handles GET /api/classes
func (h *Handler) listClasses(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.classes.Classes())
}

// getClass handles GET /api/classes/{name}
func (h *Handler) getClass(w http.ResponseWriter, r *http.Request) {
	class, err := h.classes.Get(r.PathValue("name"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, class)
}

// getPossibleChildren handles GET /api/classes/{name}/children
func (h *Handler) getPossibleChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.classes.PossibleChildren(r.PathValue("name"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if children == nil {
		children = []string{}
	}
	h.writeJSON(w, http.StatusOK, children)
}

// listListTypeItems handles GET /api/classes/{name}/items
func (h *Handler) listListTypeItems(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := h.classes.Get(name); err != nil {
		h.fail(w, err)
		return
	}
	items, err := h.storage.ListListTypeItems(name)
	if err != nil {
		h.fail(w, err)
		return
	}
	if items == nil {
		items = []model.ListTypeItem{}
	}
	h.writeJSON(w, http.StatusOK, items)
}

// createListTypeItem handles POST /api/classes/{name}/items
func (h *Handler) createListTypeItem(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	class, err := h.classes.Get(name)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !class.ListType {
		h.writeError(w, http.StatusBadRequest, name+" is not a list type")
		return
	}
	var req listTypeItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.storage.CreateListTypeItem(name, req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	log.Info("Created list type item", "class", name, "name", item.Name)
	h.writeJSON(w, http.StatusCreated, item)
}
