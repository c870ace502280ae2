// Package syncer reconciles the inventory with the findings produced by a
// device synchronization: it reads each finding's extra information and
// creates, updates, moves or deletes objects accordingly.
package syncer

import (
	"encoding/json"
	"fmt"

	"github.com/martinsuchenak/invd/internal/model"
)

// Payload types, carried in the "type" field of a finding's extra information
const (
	TypeHierarchy         = "hierarchy"
	TypeListType          = "listType"
	TypeDevice            = "device"
	TypeBranch            = "branch"
	TypePortMove          = "object_port_move"
	TypeOldObjectToDelete = "old_object_to_delete"
	TypePortNoMatch       = "object_port_no_match"
	TypePortNoMatchNew    = "object_port_no_match_new"
)

// DefaultListTypeClass receives list type payloads that name no class
const DefaultListTypeClass = "EquipmentVendor"

// Entry describes one object of a polled branch, or a port to move or create.
// ChildID and ParentID are polled identifiers unless the object already
// exists in the inventory, in which case they are object IDs. DeviceParentID
// is always an inventory object ID.
type Entry struct {
	ChildID         string            `json:"childId,omitempty"`
	ClassName       string            `json:"className,omitempty"`
	ParentClassName string            `json:"parentClassName,omitempty"`
	ParentID        string            `json:"parentId,omitempty"`
	ParentName      string            `json:"parentName,omitempty"`
	DeviceParentID  string            `json:"deviceParentId,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
}

// BranchChild wraps an entry inside a branch payload
type BranchChild struct {
	Child Entry `json:"child"`
}

// HierarchyChild names one possible child in a hierarchy payload
type HierarchyChild struct {
	Child string `json:"child"`
}

// DeviceRef identifies an inventory object to delete
type DeviceRef struct {
	DeviceID        string `json:"deviceId"`
	DeviceName      string `json:"deviceName"`
	DeviceClassName string `json:"deviceClassName"`
}

// Payload is the decoded extra information of a finding. Which fields are
// set depends on Type.
type Payload struct {
	Type string `json:"type"`
	Entry

	Hierarchy       map[string][]HierarchyChild `json:"hierarchy,omitempty"`
	Name            string                      `json:"name,omitempty"`
	DeviceID        string                      `json:"deviceId,omitempty"`
	DeviceClassName string                      `json:"deviceClassName,omitempty"`
	Children        []BranchChild               `json:"children,omitempty"`
	Device          *DeviceRef                  `json:"device,omitempty"`
}

// Decode parses extra information. An empty string decodes to nil.
func Decode(extra string) (*Payload, error) {
	if extra == "" {
		return nil, nil
	}
	var p Payload
	if err := json.Unmarshal([]byte(extra), &p); err != nil {
		return nil, fmt.Errorf("decoding finding: %w", err)
	}
	return &p, nil
}

// NewFinding builds a finding carrying p as its extra information
func NewFinding(findingType, description string, p *Payload) (model.SyncFinding, error) {
	f := model.SyncFinding{Type: findingType, Description: description}
	if p == nil {
		return f, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return f, fmt.Errorf("encoding finding: %w", err)
	}
	f.ExtraInformation = string(data)
	return f, nil
}

// syncedAttributes are the only attributes a finding may set
var syncedAttributes = []string{
	model.AttrName,
	model.AttrDescription,
	model.AttrSerialNumber,
	model.AttrVendor,
	model.AttrModel,
}

func pick(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(syncedAttributes))
	for _, key := range syncedAttributes {
		if v, ok := attrs[key]; ok {
			out[key] = v
		}
	}
	return out
}
