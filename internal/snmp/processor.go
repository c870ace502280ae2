package snmp

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/storage"
	"github.com/martinsuchenak/invd/internal/syncer"
)

// ErrUnsupportedModel is returned when no part of a table maps to the inventory
var ErrUnsupportedModel = errors.New("the device model is not supported")

// List type classes of the vendor and model attributes
const (
	VendorListType = "EquipmentVendor"
	ModelListType  = "EquipmentModel"
)

// Store is what the processor reads the current device structure from
type Store interface {
	storage.ObjectStorage
	storage.ListTypeStorage
}

// Classes answers class hierarchy questions
type Classes interface {
	IsSubclassOf(class, super string) bool
	CanContain(parent, child string) bool
}

// Processor compares a polled entity table with the inventory structure of a
// device and produces the findings that reconcile them.
type Processor struct {
	store   Store
	classes Classes
}

// NewProcessor creates a Processor
func NewProcessor(store Store, classes Classes) *Processor {
	return &Processor{store: store, classes: classes}
}

// run holds the state of one Process call
type run struct {
	*Processor
	device *model.BusinessObject
	table  *EntityTable
	tree   map[string][]string
	root   string

	findings []model.SyncFinding
	branch   []syncer.Entry

	// current structure below the device
	objects  map[string]*model.BusinessObject
	children map[string][]string
	seen     map[string]bool

	// polled index -> inventory id of rows already in the inventory
	matched map[string]string
	// polled ports not found in the inventory, in table order
	newPorts []syncer.Entry

	listTypes map[string]map[string]bool
}

// Process returns the findings for device. A table without a chassis yields a
// single ERROR finding.
func (p *Processor) Process(device *model.BusinessObject, table *EntityTable) ([]model.SyncFinding, error) {
	r := &run{
		Processor: p,
		device:    device,
		table:     table,
		objects:   map[string]*model.BusinessObject{},
		children:  map[string][]string{},
		seen:      map[string]bool{},
		matched:   map[string]string{},
		listTypes: map[string]map[string]bool{},
	}

	root, err := table.InitialID()
	if err != nil {
		return []model.SyncFinding{{
			Type:        model.FindingError,
			Description: fmt.Sprintf("No initial id was found in the entity table of %s, check the polled data", device),
		}}, nil
	}
	r.root = root
	r.tree = table.Tree(root)
	if len(r.tree) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, device)
	}

	if err := r.loadStructure(device.ID); err != nil {
		return nil, err
	}
	if err := r.hierarchy(); err != nil {
		return nil, err
	}
	if err := r.listTypeFindings(); err != nil {
		return nil, err
	}
	if err := r.walk(root, device.ID, "", ""); err != nil {
		return nil, err
	}
	if err := r.ports(); err != nil {
		return nil, err
	}
	if err := r.stale(); err != nil {
		return nil, err
	}

	log.Debug("Entity table processed", "device", device.Name, "rows", len(table.Rows), "findings", len(r.findings))
	return r.findings, nil
}

func (r *run) add(findingType, description string, p *syncer.Payload) error {
	f, err := syncer.NewFinding(findingType, description, p)
	if err != nil {
		return err
	}
	r.findings = append(r.findings, f)
	return nil
}

func (r *run) loadStructure(parentID string) error {
	kids, err := r.store.GetChildren(parentID)
	if err != nil {
		return fmt.Errorf("reading structure of %s: %w", parentID, err)
	}
	for i := range kids {
		obj := &kids[i]
		r.objects[obj.ID] = obj
		r.children[parentID] = append(r.children[parentID], obj.ID)
		if err := r.loadStructure(obj.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) classOf(e *Entity) string {
	return ParseClass(r.device.ClassName, r.device.Attribute(model.AttrModel), e.Class, ObjectName(e.Name), e.Descr)
}

// hierarchy proposes the containment rules the polled structure needs
func (r *run) hierarchy() error {
	rules := map[string][]syncer.HierarchyChild{}
	for _, parent := range slices.Sorted(maps.Keys(r.tree)) {
		kids := r.tree[parent]
		if parent == r.root {
			continue
		}
		row, ok := r.table.Row(parent)
		if !ok {
			continue
		}
		parentClass := r.classOf(row)
		if parentClass == "" {
			continue
		}
		for _, kid := range kids {
			kidRow, _ := r.table.Row(kid)
			kidClass := r.classOf(kidRow)
			if kidClass == "" || r.classes.CanContain(parentClass, kidClass) {
				continue
			}
			if !slices.ContainsFunc(rules[parentClass], func(c syncer.HierarchyChild) bool { return c.Child == kidClass }) {
				rules[parentClass] = append(rules[parentClass], syncer.HierarchyChild{Child: kidClass})
			}
		}
	}
	if len(rules) == 0 {
		return nil
	}
	return r.add(model.FindingNew, "The containment hierarchy needs to be updated",
		&syncer.Payload{Type: syncer.TypeHierarchy, Hierarchy: rules})
}

// listTypeFindings proposes the vendors and models not yet in the inventory
func (r *run) listTypeFindings() error {
	for _, class := range []string{VendorListType, ModelListType} {
		items, err := r.store.ListListTypeItems(class)
		if err != nil {
			return err
		}
		known := map[string]bool{}
		for _, it := range items {
			known[it.Name] = true
		}
		r.listTypes[class] = known
	}

	for _, row := range r.table.Rows {
		if !IsClassUsed(row.Class, row.Descr) {
			continue
		}
		for _, lt := range [][2]string{{VendorListType, row.MfgName}, {ModelListType, row.ModelName}} {
			class, name := lt[0], strings.TrimSpace(lt[1])
			if name == "" || r.listTypes[class][name] {
				continue
			}
			r.listTypes[class][name] = true
			p := &syncer.Payload{Type: syncer.TypeListType, Name: name, Entry: syncer.Entry{ClassName: class}}
			if err := r.add(model.FindingNew, fmt.Sprintf("The list type %s needs to be created in %s", name, class), p); err != nil {
				return err
			}
		}
	}
	return nil
}

// walk visits the polled tree depth first. A branch ends at a leaf or at a
// port; every finished branch is compared with the inventory.
func (r *run) walk(parent, parentID, parentName, parentClass string) error {
	for _, index := range r.tree[parent] {
		row, _ := r.table.Row(index)
		name := ObjectName(row.Name)
		class := r.classOf(row)
		if class == "" {
			if err := r.add(model.FindingError, fmt.Sprintf("The entity %s of class %d at instance %s could not be mapped to an inventory class", name, row.Class, index), nil); err != nil {
				return err
			}
			continue
		}

		attrs := row.Attributes()
		if class == r.device.ClassName {
			// the chassis is the device itself; its name is kept
			delete(attrs, model.AttrName)
			if err := r.update(r.device, attrs, "The device has changes"); err != nil {
				return err
			}
			if err := r.walk(index, r.device.ID, r.device.Name, class); err != nil {
				return err
			}
			continue
		}

		entry := syncer.Entry{
			ChildID:         index,
			ClassName:       class,
			ParentClassName: parentClass,
			ParentID:        parentID,
			ParentName:      parentName,
			Attributes:      attrs,
		}
		if isPort(class, name) {
			r.newPorts = append(r.newPorts, entry)
		}
		r.branch = append(r.branch, entry)

		if err := r.walk(index, index, name, class); err != nil {
			return err
		}

		if (len(r.tree[index]) == 0 || strings.Contains(class, "Port")) && len(r.branch) > 0 {
			if err := r.finishBranch(); err != nil {
				return err
			}
		}
	}
	return nil
}

func isPort(class, name string) bool {
	return strings.Contains(class, "Port") && !strings.Contains(name, "Power") && !strings.Contains(class, "Power")
}

// finishBranch drops the leading part of the branch that already exists and
// emits the rest as a new branch anchored on the last existing object.
func (r *run) finishBranch() error {
	branch := r.branch
	r.branch = nil

	i := 0
	for ; i < len(branch); i++ {
		entry := branch[i]
		parentID, ok := r.resolve(entry.ParentID)
		if !ok {
			break
		}
		existing := r.find(parentID, entry.Attributes[model.AttrName], entry.ClassName)
		if existing == nil {
			branch[i].DeviceParentID = parentID
			r.anchorPort(branch[i])
			break
		}
		r.matched[entry.ChildID] = existing.ID
		r.seen[existing.ID] = true
		r.dropNewPort(entry)
		if err := r.update(existing, entry.Attributes, "The object has changes"); err != nil {
			return err
		}
	}

	rest := branch[i:]
	if len(rest) == 0 {
		return nil
	}
	return r.add(model.FindingNew, "A new branch needs to be synchronized",
		&syncer.Payload{Type: syncer.TypeBranch, Children: wrap(rest)})
}

// resolve maps a polled parent index to an inventory id when the parent
// already exists
func (r *run) resolve(parentID string) (string, bool) {
	if parentID == r.device.ID {
		return parentID, true
	}
	id, ok := r.matched[parentID]
	return id, ok
}

func (r *run) find(parentID, name, class string) *model.BusinessObject {
	for _, id := range r.children[parentID] {
		obj := r.objects[id]
		if r.seen[id] || obj.ClassName != class {
			continue
		}
		if obj.Name == name || (isPort(class, name) && SamePort(obj.Name, obj.ClassName, name, class)) {
			return obj
		}
	}
	return nil
}

func (r *run) anchorPort(entry syncer.Entry) {
	for i := range r.newPorts {
		if r.newPorts[i].ChildID == entry.ChildID {
			r.newPorts[i].DeviceParentID = entry.DeviceParentID
		}
	}
}

func (r *run) dropNewPort(entry syncer.Entry) {
	r.newPorts = slices.DeleteFunc(r.newPorts, func(p syncer.Entry) bool { return p.ChildID == entry.ChildID })
}

func wrap(entries []syncer.Entry) []syncer.BranchChild {
	out := make([]syncer.BranchChild, len(entries))
	for i, e := range entries {
		out[i] = syncer.BranchChild{Child: e}
	}
	return out
}

// update emits a device finding for the attributes of obj that changed
func (r *run) update(obj *model.BusinessObject, attrs map[string]string, description string) error {
	changed := map[string]string{}
	for k, v := range attrs {
		if obj.Attribute(k) != v {
			changed[k] = v
		}
	}
	if len(changed) == 0 {
		return nil
	}
	if _, ok := changed[model.AttrName]; !ok {
		changed[model.AttrName] = obj.Name
	}
	return r.add(model.FindingUpdate, fmt.Sprintf("%s: %s", description, obj), &syncer.Payload{
		Type:            syncer.TypeDevice,
		DeviceID:        obj.ID,
		DeviceClassName: obj.ClassName,
		Entry:           syncer.Entry{Attributes: changed},
	})
}

// ports matches the inventory ports left unseen against the polled ports
// that were not found in place.
func (r *run) ports() error {
	var oldPorts []*model.BusinessObject
	for _, id := range r.subtree(r.device.ID) {
		obj := r.objects[id]
		if !r.seen[id] && r.classes.IsSubclassOf(obj.ClassName, model.ClassGenericPort) && isPort(obj.ClassName, obj.Name) {
			oldPorts = append(oldPorts, obj)
		}
	}

	var unmatched []*model.BusinessObject
	for _, old := range oldPorts {
		idx := slices.IndexFunc(r.newPorts, func(p syncer.Entry) bool {
			return SamePort(old.Name, old.ClassName, p.Attributes[model.AttrName], p.ClassName)
		})
		if idx < 0 {
			unmatched = append(unmatched, old)
			continue
		}
		found := r.newPorts[idx]
		r.newPorts = slices.Delete(r.newPorts, idx, idx+1)
		r.seen[old.ID] = true

		parentName := ""
		if parent, ok := r.objects[old.ParentID]; ok {
			parentName = parent.Name
		} else if old.ParentID == r.device.ID {
			parentName = r.device.Name
		}

		if parentName == found.ParentName {
			if err := r.update(old, found.Attributes, "The port has changes"); err != nil {
				return err
			}
			continue
		}

		move := found
		move.ChildID = old.ID
		if id := r.existingParent(found.ParentName, found.ParentClassName); id != "" {
			move.DeviceParentID = id
		}
		desc := fmt.Sprintf("The port %s with id %s will be moved to match the structure reported by the device", old, old.ID)
		if err := r.add(model.FindingUpdate, desc, &syncer.Payload{Type: syncer.TypePortMove, Entry: move}); err != nil {
			return err
		}
	}

	for _, p := range r.newPorts {
		desc := fmt.Sprintf("There was no match for port: %s [%s]", p.Attributes[model.AttrName], p.ClassName)
		if err := r.add(model.FindingNew, desc, &syncer.Payload{Type: syncer.TypePortNoMatchNew, Entry: p}); err != nil {
			return err
		}
	}
	for _, old := range unmatched {
		desc := fmt.Sprintf("There was no match for port: %s - id: %s", old, old.ID)
		p := &syncer.Payload{Type: syncer.TypePortNoMatch, Entry: syncer.Entry{
			ChildID:    old.ID,
			ClassName:  old.ClassName,
			Attributes: map[string]string{model.AttrName: old.Name},
		}}
		if err := r.add(model.FindingDelete, desc, p); err != nil {
			return err
		}
	}
	return nil
}

// existingParent finds an object of the current structure by name and class
func (r *run) existingParent(name, class string) string {
	if name == r.device.Name && class == r.device.ClassName {
		return r.device.ID
	}
	for _, id := range slices.Sorted(maps.Keys(r.objects)) {
		obj := r.objects[id]
		if obj.Name == name && obj.ClassName == class {
			return id
		}
	}
	return ""
}

func (r *run) subtree(id string) []string {
	var out []string
	for _, kid := range r.children[id] {
		out = append(out, kid)
		out = append(out, r.subtree(kid)...)
	}
	return out
}

// stale proposes deleting the first level structures the device no longer
// reports. Ports are left to the port matching.
func (r *run) stale() error {
	for _, id := range r.children[r.device.ID] {
		obj := r.objects[id]
		if r.seen[id] || r.classes.IsSubclassOf(obj.ClassName, model.ClassGenericPort) {
			continue
		}
		desc := fmt.Sprintf("The %s - %s and all its children will be deleted. Perhaps it was removed physically from the device", obj, id)
		p := &syncer.Payload{Type: syncer.TypeOldObjectToDelete, Device: &syncer.DeviceRef{
			DeviceID:        id,
			DeviceName:      obj.Name,
			DeviceClassName: obj.ClassName,
		}}
		if err := r.add(model.FindingDelete, desc, p); err != nil {
			return err
		}
	}
	return nil
}
