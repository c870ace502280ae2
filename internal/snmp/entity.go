// Package snmp reads the physical entity table of a device and turns it into
// synchronization findings.
package snmp

import (
	"errors"
	"strconv"
	"strings"

	"github.com/martinsuchenak/invd/internal/model"
)

// entPhysicalClass values the inventory maps
const (
	ClassOther       = 1
	ClassChassis     = 3
	ClassContainer   = 5
	ClassPowerSupply = 6
	ClassModule      = 9
	ClassPort        = 10
)

// ErrNoChassis is returned when a table has no chassis row
var ErrNoChassis = errors.New("no chassis in entity table")

// Entity is one row of ENTITY-MIB::entPhysicalTable
type Entity struct {
	Index       string `json:"instance" yaml:"instance"`
	Descr       string `json:"entPhysicalDescr" yaml:"entPhysicalDescr"`
	ContainedIn string `json:"entPhysicalContainedIn" yaml:"entPhysicalContainedIn"`
	Class       int    `json:"entPhysicalClass" yaml:"entPhysicalClass"`
	Name        string `json:"entPhysicalName" yaml:"entPhysicalName"`
	SerialNum   string `json:"entPhysicalSerialNum" yaml:"entPhysicalSerialNum"`
	MfgName     string `json:"entPhysicalMfgName" yaml:"entPhysicalMfgName"`
	ModelName   string `json:"entPhysicalModelName" yaml:"entPhysicalModelName"`
}

// EntityTable holds the rows of a device in table order
type EntityTable struct {
	Rows []Entity `json:"rows" yaml:"rows"`
}

// Row returns the row with the given index
func (t *EntityTable) Row(index string) (*Entity, bool) {
	for i := range t.Rows {
		if t.Rows[i].Index == index {
			return &t.Rows[i], true
		}
	}
	return nil, false
}

// InitialID is the parent of the first chassis. It is 0 for most devices.
func (t *EntityTable) InitialID() (string, error) {
	for _, r := range t.Rows {
		if r.Class == ClassChassis {
			return r.ContainedIn, nil
		}
	}
	return "", ErrNoChassis
}

// Tree maps each parent index to the indexes of its used children, walking
// down from root. Parents without children are left out.
func (t *EntityTable) Tree(root string) map[string][]string {
	tree := map[string][]string{}
	var walk func(parent string)
	walk = func(parent string) {
		for _, r := range t.Rows {
			if r.ContainedIn != parent || r.Index == parent || !IsClassUsed(r.Class, r.Descr) {
				continue
			}
			tree[parent] = append(tree[parent], r.Index)
			walk(r.Index)
		}
	}
	walk(root)
	return tree
}

// IsClassUsed reports whether rows of this class become inventory objects.
// Sensors, fans, stacks and disks are ignored.
func IsClassUsed(class int, descr string) bool {
	d := strings.ToLower(strings.TrimSpace(descr))
	switch class {
	case ClassChassis, ClassPort, ClassPowerSupply, ClassModule:
		return true
	case ClassOther:
		return strings.Contains(d, "switch processor")
	case ClassContainer:
		return !strings.Contains(d, "disk")
	}
	return false
}

// ParseClass maps a row to an inventory class. chassisClass is returned for
// the chassis itself. An empty result means the row can not be mapped.
func ParseClass(chassisClass, deviceModel string, class int, name, descr string) string {
	lname, ldescr := strings.ToLower(name), strings.ToLower(descr)

	switch {
	case class == ClassChassis:
		if name != "" && descr != "" {
			return chassisClass
		}
	case class == ClassPort && strings.Contains(deviceModel, "2960"):
		return model.ClassElectricalPort
	case class == ClassPort:
		switch {
		case strings.Contains(lname, "usb") || strings.Contains(ldescr, "usb"):
			return model.ClassUSBPort
		case strings.Contains(lname, "fastethernet") || strings.Contains(lname, "mgmteth") ||
			strings.Contains(lname, "cpu") || strings.Contains(lname, "control") ||
			(strings.Contains(ldescr, "ethernet") && !strings.Contains(ldescr, "gigabit")) ||
			strings.Contains(ldescr, "fast") || strings.Contains(ldescr, "management"):
			return model.ClassElectricalPort
		case name != "" && descr != "":
			return model.ClassOpticalPort
		}
	case class == ClassContainer:
		if !strings.Contains(descr, "Disk") {
			return model.ClassSlot
		}
	case class == ClassPowerSupply && ((strings.Contains(lname, "power") && !strings.Contains(lname, "module")) || strings.Contains(ldescr, "power")):
		return model.ClassPowerPort
	case class == ClassPowerSupply && strings.Contains(name, "Module"):
		return model.ClassHybridBoard
	case class == ClassModule:
		if isTransceiver(name, lname, ldescr) {
			return model.ClassTransceiver
		}
		return model.ClassIPBoard
	case class == ClassOther && strings.Contains(descr, "switch processor"):
		return model.ClassSwitchProcessor
	}
	return ""
}

// isTransceiver tells optics apart from boards. Some routers report optics
// with an empty description, so deep names count too.
func isTransceiver(name, lname, ldescr string) bool {
	if strings.Contains(lname, "spa") || strings.Contains(ldescr, "spa") {
		return false
	}
	return len(strings.Split(name, "/")) > 3 ||
		strings.Contains(lname, "transceiver") || strings.Contains(ldescr, "transceiver") ||
		strings.Contains(ldescr, "sfp") || strings.Contains(ldescr, "xfp") ||
		strings.Contains(ldescr, "cpak") || ldescr == "ge t"
}

// ObjectName is the inventory name of a row
func ObjectName(name string) string {
	return strings.ReplaceAll(name, "GigabitEthernet", "Gi")
}

// Attributes returns the inventory attributes of a row, skipping empty values
func (e *Entity) Attributes() map[string]string {
	attrs := map[string]string{model.AttrName: ObjectName(e.Name)}
	set := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			attrs[key] = v
		}
	}
	set(model.AttrDescription, e.Descr)
	set(model.AttrVendor, e.MfgName)
	set(model.AttrSerialNumber, e.SerialNum)
	set(model.AttrModel, e.ModelName)
	return attrs
}

func parseIndex(oid, column string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimPrefix(oid, "."), column+".")
	if !ok {
		return "", false
	}
	if _, err := strconv.Atoi(rest); err != nil {
		return "", false
	}
	return rest, true
}
