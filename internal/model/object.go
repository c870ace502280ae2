package model

import (
	"strconv"
	"time"
)

// Well-known attribute names
const (
	AttrName         = "name"
	AttrDescription  = "description"
	AttrSerialNumber = "serialNumber"
	AttrVendor       = "vendor"
	AttrModel        = "model"
	AttrPosition     = "position"
	AttrRackUnits    = "rackUnits"
	AttrNumbering    = "rackUnitsNumbering"
	AttrManagementIP = "managementIp"
	AttrCommunity    = "snmpCommunity"
	AttrSyncEnabled  = "syncEnabled"
)

// BusinessObject is a node in the inventory graph
type BusinessObject struct {
	ID         string            `json:"id"`
	ClassName  string            `json:"class_name"`
	Name       string            `json:"name"`
	ParentID   string            `json:"parent_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Attribute returns the named attribute, or "" when unset
func (o *BusinessObject) Attribute(name string) string {
	if name == AttrName {
		return o.Name
	}
	if o.Attributes == nil {
		return ""
	}
	return o.Attributes[name]
}

// IntAttribute parses the named attribute as an integer. ok is false when the
// attribute is missing or not an integer.
func (o *BusinessObject) IntAttribute(name string) (value int, ok bool) {
	raw := o.Attribute(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// String renders the object the way it shows up in messages: name [class]
func (o BusinessObject) String() string {
	return o.Name + " [" + o.ClassName + "]"
}

// ObjectFilter holds filter criteria for listing objects
type ObjectFilter struct {
	ClassName      string
	ParentID       string
	Name           string
	AttributeName  string
	AttributeValue string
}

// ListTypeItem is an entry of a list type (vendor, model, ...)
type ListTypeItem struct {
	ID        string    `json:"id"`
	ClassName string    `json:"class_name"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
