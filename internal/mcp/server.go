package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/paularlott/mcp"

	"github.com/martinsuchenak/invd/internal/api"
	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/metadata"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/rack"
	"github.com/martinsuchenak/invd/internal/sdh"
	"github.com/martinsuchenak/invd/internal/storage"
	"github.com/martinsuchenak/invd/internal/syncer"
)

const version = "1.0.0"

// Server wraps the MCP server with the inventory services
type Server struct {
	mcpServer   *mcp.Server
	storage     storage.Storage
	classes     *metadata.Hierarchy
	sdh         *sdh.Service
	racks       *rack.Service
	action      *syncer.Action
	syncer      api.DeviceSyncer
	bearerToken string
}

// NewServer creates a new MCP server. ds may be nil when no sync source is
// configured.
func NewServer(s storage.Storage, classes *metadata.Hierarchy, ds api.DeviceSyncer, bearerToken string) *Server {
	srv := &Server{
		mcpServer:   mcp.NewServer("invd", version),
		storage:     s,
		classes:     classes,
		sdh:         sdh.NewService(s, classes),
		racks:       rack.NewService(s, classes),
		action:      syncer.NewAction(s, classes),
		syncer:      ds,
		bearerToken: bearerToken,
	}
	srv.registerTools()
	return srv
}

func (s *Server) registerTools() {
	// Objects
	s.mcpServer.RegisterTool(
		mcp.NewTool("object_get", "Get an inventory object by ID, with its attributes and children",
			mcp.String("id", "Object ID", mcp.Required()),
		),
		s.handleObjectGet,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("object_list", "List inventory objects, optionally filtered by class, parent, name or attribute",
			mcp.String("class", "Class name (e.g., Router, Rack, OpticalPort)"),
			mcp.String("parent_id", "Only children of this object"),
			mcp.String("name", "Case-insensitive substring of the object name"),
			mcp.String("attribute", "Only objects having this attribute"),
			mcp.String("value", "Value the attribute must have"),
		),
		s.handleObjectList,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("object_save", "Create an object, or update the attributes of an existing one when id is given",
			mcp.String("id", "Object ID (when updating)"),
			mcp.String("class", "Class name (required when creating)"),
			mcp.String("name", "Object name"),
			mcp.String("parent_id", "Parent object ID (when creating)"),
			mcp.ObjectArray("attributes", "Attributes to set. An empty value removes the attribute.",
				mcp.String("name", "Attribute name", mcp.Required()),
				mcp.String("value", "Attribute value"),
			),
		),
		s.handleObjectSave,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("object_delete", "Delete an object and its children",
			mcp.String("id", "Object ID", mcp.Required()),
			mcp.String("force", "Set to true to also drop special relationships"),
		),
		s.handleObjectDelete,
	)

	// Racks
	s.mcpServer.RegisterTool(
		mcp.NewTool("rack_layout", "Show the rack unit layout of a rack",
			mcp.String("id", "Rack ID", mcp.Required()),
		),
		s.handleRackLayout,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("rack_validate", "Check a rack for overlapping or out of range devices",
			mcp.String("id", "Rack ID", mcp.Required()),
		),
		s.handleRackValidate,
	)

	// SDH
	s.mcpServer.RegisterTool(
		mcp.NewTool("sdh_transport_structure", "List the containers carried by a transport link and their positions",
			mcp.String("id", "Transport link ID", mcp.Required()),
		),
		s.handleTransportStructure,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("sdh_container_structure", "List the low order containers carried by a high order container",
			mcp.String("id", "High order container link ID", mcp.Required()),
		),
		s.handleContainerStructure,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("sdh_find_routes", "Find routes between two equipment through transport or container links",
			mcp.String("a", "First equipment ID", mcp.Required()),
			mcp.String("b", "Second equipment ID", mcp.Required()),
			mcp.String("via", "transport (default) or container"),
		),
		s.handleFindRoutes,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("sdh_capacity", "Show used and free timeslots of a transport link or high order container",
			mcp.String("id", "Link ID", mcp.Required()),
			mcp.String("class", "Container or tributary class to find free positions for (e.g., VC4, VC12)"),
		),
		s.handleCapacity,
	)

	// Sync
	s.mcpServer.RegisterTool(
		mcp.NewTool("sync_execute", "Apply sync findings to the inventory and return one result per action",
			mcp.String("findings", "JSON array of findings: [{\"type\":\"NEW\",\"description\":\"...\",\"extra_information\":\"...\"}]", mcp.Required()),
		),
		s.handleSyncExecute,
	)
	s.mcpServer.RegisterTool(
		mcp.NewTool("sync_device", "Synchronize one device against its finding source",
			mcp.String("id", "Device ID", mcp.Required()),
		),
		s.handleSyncDevice,
	)
}

// HandleRequest handles MCP HTTP requests with optional bearer token authentication
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	log.Debug("MCP request received", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	if s.bearerToken != "" {
		token, ok := api.BearerToken(r)
		if !ok {
			log.Warn("MCP request missing bearer token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Missing bearer token", http.StatusUnauthorized)
			return
		}
		if !api.CheckToken(token, s.bearerToken) {
			log.Warn("MCP request invalid token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}

// GetHTTPHandler returns the HTTP handler for the MCP server
func (s *Server) GetHTTPHandler() http.HandlerFunc {
	return s.HandleRequest
}

// LogStartup logs MCP server startup information
func (s *Server) LogStartup() {
	log.Info("MCP Server initialized", "version", version)
	if s.bearerToken != "" {
		log.Info("MCP authentication enabled", "type", "Bearer token")
	} else {
		log.Info("MCP authentication disabled")
	}
	tools := s.mcpServer.ListTools()
	log.Info("MCP tools registered", "count", len(tools))
	for _, tool := range tools {
		log.Debug("MCP tool registered", "name", tool.Name)
	}
}

func requireString(req *mcp.ToolRequest, name string) (string, error) {
	v, err := req.String(name)
	if err != nil || strings.TrimSpace(v) == "" {
		return "", mcp.NewToolErrorInvalidParams(name + " is required")
	}
	return v, nil
}

func jsonResponse(header string, v any) (*mcp.ToolResponse, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, mcp.NewToolErrorInternal("encoding response: " + err.Error())
	}
	return mcp.NewToolResponseText(header + "\n\n" + string(data)), nil
}

// Object tool handlers

func (s *Server) handleObjectGet(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	obj, err := s.storage.GetObject(id)
	if err != nil {
		log.Warn("MCP object get failed", "id", id, "error", err)
		return nil, mcp.NewToolErrorInternal("object not found: " + err.Error())
	}
	children, err := s.storage.GetChildren(id)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("listing children: " + err.Error())
	}
	return mcp.NewToolResponseText(formatObject(obj, children)), nil
}

func (s *Server) handleObjectList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	filter := &model.ObjectFilter{
		ClassName:      req.StringOr("class", ""),
		ParentID:       req.StringOr("parent_id", ""),
		Name:           req.StringOr("name", ""),
		AttributeName:  req.StringOr("attribute", ""),
		AttributeValue: req.StringOr("value", ""),
	}
	objects, err := s.storage.ListObjects(filter)
	if err != nil {
		log.Error("MCP object list failed", "error", err)
		return nil, mcp.NewToolErrorInternal("failed to list objects: " + err.Error())
	}
	if len(objects) == 0 {
		return mcp.NewToolResponseText("No objects found"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d objects:\n\n", len(objects))
	for _, obj := range objects {
		fmt.Fprintf(&b, "- %s (ID: %s)", obj, obj.ID)
		if obj.ParentID != "" {
			fmt.Fprintf(&b, " parent %s", obj.ParentID)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResponseText(b.String()), nil
}

func (s *Server) handleObjectSave(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	attrs, err := parseAttributes(req)
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams(err.Error())
	}
	name := req.StringOr("name", "")

	if id := req.StringOr("id", ""); id != "" {
		if name != "" {
			attrs[model.AttrName] = name
		}
		if len(attrs) == 0 {
			return nil, mcp.NewToolErrorInvalidParams("nothing to update")
		}
		if err := s.storage.UpdateObject(id, attrs); err != nil {
			log.Error("MCP object update failed", "id", id, "error", err)
			return nil, mcp.NewToolErrorInternal("failed to update object: " + err.Error())
		}
		log.Info("MCP object updated", "id", id, "attributes", len(attrs))
		return mcp.NewToolResponseText(fmt.Sprintf("Object updated (ID: %s)", id)), nil
	}

	class, err := requireString(req, "class")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, mcp.NewToolErrorInvalidParams("name is required")
	}
	parentID := req.StringOr("parent_id", "")
	if err := s.checkPlacement(class, parentID); err != nil {
		return nil, mcp.NewToolErrorInvalidParams(err.Error())
	}

	obj := &model.BusinessObject{ClassName: class, Name: name, ParentID: parentID, Attributes: attrs}
	if err := s.storage.CreateObject(obj); err != nil {
		log.Error("MCP object creation failed", "class", class, "error", err)
		return nil, mcp.NewToolErrorInternal("failed to create object: " + err.Error())
	}
	log.Info("MCP object created", "id", obj.ID, "class", class, "name", name)
	return mcp.NewToolResponseText(fmt.Sprintf("Object created: %s (ID: %s)", obj, obj.ID)), nil
}

func (s *Server) checkPlacement(class, parentID string) error {
	c, err := s.classes.Get(class)
	if err != nil {
		return err
	}
	if c.Abstract {
		return fmt.Errorf("class %s is abstract", class)
	}
	if parentID == "" {
		return nil
	}
	parent, err := s.storage.GetObject(parentID)
	if err != nil {
		return err
	}
	if !s.classes.CanContain(parent.ClassName, class) {
		return fmt.Errorf("a %s cannot contain a %s", parent.ClassName, class)
	}
	return nil
}

func (s *Server) handleObjectDelete(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	force := req.StringOr("force", "") == "true"
	if err := s.storage.DeleteObject(id, force); err != nil {
		log.Error("MCP object deletion failed", "id", id, "error", err)
		return nil, mcp.NewToolErrorInternal("failed to delete object: " + err.Error())
	}
	log.Info("MCP object deleted", "id", id, "force", force)
	return mcp.NewToolResponseText("Object deleted successfully"), nil
}

// Rack tool handlers

func (s *Server) handleRackLayout(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	layout, err := s.racks.Layout(id)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to build layout: " + err.Error())
	}
	return mcp.NewToolResponseText(formatLayout(layout)), nil
}

func (s *Server) handleRackValidate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	problems, err := s.racks.Validate(id)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to validate rack: " + err.Error())
	}
	if len(problems) == 0 {
		return mcp.NewToolResponseText("The rack is valid"), nil
	}
	return mcp.NewToolResponseText(fmt.Sprintf("Found %d problems:\n- %s", len(problems), strings.Join(problems, "\n- "))), nil
}

// SDH tool handlers

func (s *Server) handleTransportStructure(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	defs, err := s.sdh.GetTransportLinkStructure(id)
	if err != nil {
		return nil, mcp.NewToolErrorInternal(err.Error())
	}
	return mcp.NewToolResponseText(formatStructure(defs)), nil
}

func (s *Server) handleContainerStructure(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	defs, err := s.sdh.GetContainerLinkStructure(id)
	if err != nil {
		return nil, mcp.NewToolErrorInternal(err.Error())
	}
	return mcp.NewToolResponseText(formatStructure(defs)), nil
}

func (s *Server) handleFindRoutes(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	a, err := requireString(req, "a")
	if err != nil {
		return nil, err
	}
	b, err := requireString(req, "b")
	if err != nil {
		return nil, err
	}

	var routes []model.Route
	switch via := req.StringOr("via", "transport"); via {
	case "transport":
		routes, err = s.sdh.FindRoutesUsingTransportLinks(a, b)
	case "container":
		routes, err = s.sdh.FindRoutesUsingContainerLinks(a, b)
	default:
		return nil, mcp.NewToolErrorInvalidParams("via must be transport or container")
	}
	if err != nil {
		return nil, mcp.NewToolErrorInternal(err.Error())
	}
	if len(routes) == 0 {
		return mcp.NewToolResponseText("No routes found"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d routes:\n", len(routes))
	for i, route := range routes {
		hops := make([]string, len(route.Hops))
		for j, hop := range route.Hops {
			hops[j] = hop.String()
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.Join(hops, " -> "))
	}
	return mcp.NewToolResponseText(sb.String()), nil
}

func (s *Server) handleCapacity(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	slots, err := s.sdh.Slots(id)
	if err != nil {
		return nil, mcp.NewToolErrorInternal(err.Error())
	}
	used := 0
	for _, slot := range slots {
		if !slot.Free() {
			used++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d timeslots used\n", used, len(slots))
	for _, slot := range slots {
		if slot.Free() {
			fmt.Fprintf(&sb, "%d (%s): free\n", slot.Position, slot.Label)
			continue
		}
		fmt.Fprintf(&sb, "%d (%s): %s\n", slot.Position, slot.Label, slot.Name)
	}

	if class := req.StringOr("class", ""); class != "" {
		span, err := sdh.SlotsOccupied(class)
		if err != nil {
			return nil, mcp.NewToolErrorInvalidParams(err.Error())
		}
		starts := sdh.FreeRuns(slots, span)
		positions := make([]string, len(starts))
		for i, p := range starts {
			positions[i] = strconv.Itoa(p)
		}
		fmt.Fprintf(&sb, "\nPositions available for a %s: %s\n", class, strings.Join(positions, ", "))
	}
	return mcp.NewToolResponseText(sb.String()), nil
}

// Sync tool handlers

func (s *Server) handleSyncExecute(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	raw, err := requireString(req, "findings")
	if err != nil {
		return nil, err
	}
	var findings []model.SyncFinding
	if err := json.Unmarshal([]byte(raw), &findings); err != nil {
		return nil, mcp.NewToolErrorInvalidParams("findings must be a JSON array: " + err.Error())
	}
	results := s.action.Execute(ctx, findings)
	log.Info("MCP sync findings executed", "findings", len(findings), "results", len(results))
	return jsonResponse(fmt.Sprintf("%d results", len(results)), results)
}

func (s *Server) handleSyncDevice(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	if s.syncer == nil {
		return nil, mcp.NewToolErrorInternal("no sync source configured")
	}
	id, err := requireString(req, "id")
	if err != nil {
		return nil, err
	}
	run, err := s.syncer.SyncDevice(ctx, id)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("sync failed: " + err.Error())
	}
	header := fmt.Sprintf("Sync run %s: %d successes, %d warnings, %d errors", run.ID, run.Successes, run.Warnings, run.Errors)
	if run.Error != "" {
		header += "\nSource error: " + run.Error
	}
	return jsonResponse(header, run.Results)
}

func parseAttributes(req *mcp.ToolRequest) (map[string]string, error) {
	attrs := map[string]string{}
	items, err := req.ObjectSlice("attributes")
	if err != nil || len(items) == 0 {
		return attrs, nil
	}
	for i, item := range items {
		name, ok := item["name"].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("attributes[%d]: missing name", i)
		}
		value, _ := item["value"].(string)
		attrs[name] = value
	}
	return attrs, nil
}
