package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/model"
)

var errInvalidClass = errors.New("invalid class")

type createObjectRequest struct {
	ClassName  string            `json:"class_name" validate:"required"`
	Name       string            `json:"name" validate:"required_without=Attributes"`
	ParentID   string            `json:"parent_id"`
	Attributes map[string]string `json:"attributes"`
}

type updateObjectRequest struct {
	Attributes map[string]string `json:"attributes" validate:"required,min=1"`
}

type moveObjectRequest struct {
	ParentID string `json:"parent_id"`
}

type relationshipRequest struct {
	Name       string            `json:"name" validate:"required"`
	TargetID   string            `json:"target_id" validate:"required"`
	Properties map[string]string `json:"properties"`
}

// checkPlacement verifies that class exists, is concrete and may live under
// parentID.
func (h *Handler) checkPlacement(class, parentID string) error {
	c, err := h.classes.Get(class)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidClass, err)
	}
	if c.Abstract {
		return fmt.Errorf("%w: %s is abstract", errInvalidClass, class)
	}
	if parentID == "" {
		return nil
	}
	parent, err := h.storage.GetObject(parentID)
	if err != nil {
		return err
	}
	if !h.classes.CanContain(parent.ClassName, class) {
		return fmt.Errorf("%w: %s cannot contain %s", errInvalidClass, parent.ClassName, class)
	}
	return nil
}

// listObjects handles GET /api/objects
func (h *Handler) listObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &model.ObjectFilter{
		ClassName:      q.Get("class"),
		ParentID:       q.Get("parent_id"),
		Name:           q.Get("name"),
		AttributeName:  q.Get("attribute"),
		AttributeValue: q.Get("value"),
	}

	objects, err := h.storage.ListObjects(filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	if objects == nil {
		objects = []model.BusinessObject{}
	}
	log.Debug("Listed objects", "count", len(objects), "class", filter.ClassName)
	h.writeJSON(w, http.StatusOK, objects)
}

// createObject handles POST /api/objects
func (h *Handler) createObject(w http.ResponseWriter, r *http.Request) {
	var req createObjectRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.checkPlacement(req.ClassName, req.ParentID); err != nil {
		log.Warn("Object creation rejected", "class", req.ClassName, "parent_id", req.ParentID, "error", err)
		h.fail(w, err)
		return
	}

	obj := &model.BusinessObject{
		ClassName:  req.ClassName,
		Name:       req.Name,
		ParentID:   req.ParentID,
		Attributes: req.Attributes,
	}
	if err := h.storage.CreateObject(obj); err != nil {
		log.Error("Failed to create object", "class", req.ClassName, "error", err)
		h.fail(w, err)
		return
	}

	log.Info("Created object", "id", obj.ID, "class", obj.ClassName, "name", obj.Name)
	h.writeJSON(w, http.StatusCreated, obj)
}

// getObject handles GET /api/objects/{id}
func (h *Handler) getObject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	obj, err := h.storage.GetObject(id)
	if err != nil {
		log.Warn("Object lookup failed", "id", id, "error", err)
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, obj)
}

// updateObject handles PUT /api/objects/{id}. An empty value removes the
// attribute.
func (h *Handler) updateObject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateObjectRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.storage.UpdateObject(id, req.Attributes); err != nil {
		h.fail(w, err)
		return
	}
	obj, err := h.storage.GetObject(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	log.Info("Updated object", "id", id, "attributes", len(req.Attributes))
	h.writeJSON(w, http.StatusOK, obj)
}

// deleteObject handles DELETE /api/objects/{id}?force=true
func (h *Handler) deleteObject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	force := r.URL.Query().Get("force") == "true"
	if err := h.storage.DeleteObject(id, force); err != nil {
		log.Warn("Object deletion failed", "id", id, "force", force, "error", err)
		h.fail(w, err)
		return
	}
	log.Info("Deleted object", "id", id, "force", force)
	w.WriteHeader(http.StatusNoContent)
}

// getChildren handles GET /api/objects/{id}/children
func (h *Handler) getChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.storage.GetChildren(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if children == nil {
		children = []model.BusinessObject{}
	}
	h.writeJSON(w, http.StatusOK, children)
}

// getParents handles GET /api/objects/{id}/parents
func (h *Handler) getParents(w http.ResponseWriter, r *http.Request) {
	parents, err := h.storage.GetParents(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if parents == nil {
		parents = []model.BusinessObject{}
	}
	h.writeJSON(w, http.StatusOK, parents)
}

// moveObject handles POST /api/objects/{id}/move
func (h *Handler) moveObject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req moveObjectRequest
	if !h.decode(w, r, &req) {
		return
	}
	obj, err := h.storage.GetObject(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.checkPlacement(obj.ClassName, req.ParentID); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.storage.MoveObject(id, req.ParentID); err != nil {
		h.fail(w, err)
		return
	}
	obj.ParentID = req.ParentID
	log.Info("Moved object", "id", id, "parent_id", req.ParentID)
	h.writeJSON(w, http.StatusOK, obj)
}

// getRelationships handles GET /api/objects/{id}/relationships
func (h *Handler) getRelationships(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.storage.GetObject(id); err != nil {
		h.fail(w, err)
		return
	}
	rels, err := h.storage.GetSpecialRelationships(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if rels == nil {
		rels = []model.SpecialRelationship{}
	}
	h.writeJSON(w, http.StatusOK, rels)
}

// createRelationship handles POST /api/objects/{id}/relationships
func (h *Handler) createRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipRequest
	if !h.decode(w, r, &req) {
		return
	}
	rel := &model.SpecialRelationship{
		Name:       req.Name,
		SourceID:   r.PathValue("id"),
		TargetID:   req.TargetID,
		Properties: req.Properties,
	}
	if err := h.storage.CreateSpecialRelationship(rel); err != nil {
		h.fail(w, err)
		return
	}
	log.Info("Created relationship", "name", rel.Name, "source", rel.SourceID, "target", rel.TargetID)
	h.writeJSON(w, http.StatusCreated, rel)
}

// deleteRelationship handles DELETE /api/objects/{id}/relationships?name=&target_id=
func (h *Handler) deleteRelationship(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name, target := q.Get("name"), q.Get("target_id")
	if name == "" || target == "" {
		h.writeError(w, http.StatusBadRequest, "name and target_id are required")
		return
	}
	if err := h.storage.DeleteSpecialRelationship(name, r.PathValue("id"), target); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
