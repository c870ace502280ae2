package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/metrics"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/storage"
)

// Result messages
const (
	msgHierarchyUpdated = "The containment hierarchy was updated parent: [%s] => children: %s"
	msgObjectUpdated    = "The object %s [%s] with id %s was updated"
	msgObjectCreated    = "The object %s [%s] with id %s was created"
	msgObjectDeleted    = "The object %s [%s] with id %s was deleted"
	msgListTypeCreated  = "A list type %s was created"
	msgPortNoMatch      = "This %s has no match, please check it manually"

	resultUpdated = "Updated successfully"
	resultCreated = "Created successfully"
	resultDeleted = "Deleted successfully"

	resultPortNoMatch   = "Nothing can be done with this port, its name does not match the polled data. Move it or delete it manually"
	resultNoNewParent   = "The new parent of the old port could not be found, please move it manually"
	resultNoPortParent  = "The port could not be created because its parent does not exist. Check the results for an error that prevented the creation of some elements and run the sync again"
	resultDeleteBlocked = "This structure could not be deleted because some elements have relationships (services, links, etc). Check this structure and migrate its ports manually. Ports are only moved when their name matches the polled data. Please check and run the sync again"
)

var (
	// ErrContainment is returned when a class may not be placed under a parent
	ErrContainment = errors.New("containment not allowed")
	// ErrClassMismatch is returned when a finding names the wrong class for an object
	ErrClassMismatch = errors.New("class mismatch")
	// ErrMissingParent is returned when a deferred object has no resolved parent
	ErrMissingParent = errors.New("parent not resolved")
)

// Store is what the reconciliation writes to
type Store interface {
	storage.ObjectStorage
	storage.RelationshipStorage
	storage.ListTypeStorage
}

// Classes answers and updates containment questions
type Classes interface {
	Exists(name string) bool
	CanContain(parent, child string) bool
	AddPossibleChildren(parent string, children ...string) ([]string, error)
}

// Action turns findings into inventory changes. It is safe for concurrent use;
// each Execute call keeps its own bookkeeping.
type Action struct {
	store   Store
	classes Classes
}

// NewAction creates an Action
func NewAction(store Store, classes Classes) *Action {
	return &Action{store: store, classes: classes}
}

// execution holds the state shared by the findings of one Execute call
type execution struct {
	*Action
	results []model.SyncResult

	// polled id -> inventory id of the objects created so far
	created map[string]string
	// first optical port id of a branch -> the entries deferred with it
	deferred map[string][]Entry
	// deferred entries in order, as (name, polled id)
	deferredNames [][2]string
}

// Execute acts on findings in order and returns one result per action taken.
// Findings never abort the run; failures become results.
func (a *Action) Execute(ctx context.Context, findings []model.SyncFinding) []model.SyncResult {
	e := &execution{
		Action:   a,
		created:  map[string]string{},
		deferred: map[string][]Entry{},
	}

	for i, finding := range findings {
		if err := ctx.Err(); err != nil {
			log.Warn("Sync execution cancelled", "processed", i, "total", len(findings))
			e.add(model.ResultError, "Executing the synchronization", possibleCause(err))
			break
		}
		e.handle(finding)
	}

	for _, r := range e.results {
		metrics.SyncResults.WithLabelValues(r.Type).Inc()
	}
	return e.results
}

func (e *execution) add(resultType, description, result string) {
	e.results = append(e.results, model.SyncResult{
		Type:              resultType,
		ActionDescription: description,
		ActionResult:      result,
	})
}

func possibleCause(err error) string {
	return "Possible cause: " + err.Error() + " Please check and run the sync again"
}

func (e *execution) handle(finding model.SyncFinding) {
	p, err := Decode(finding.ExtraInformation)
	if err != nil {
		log.Warn("Skipping unreadable finding", "description", finding.Description, "error", err)
		e.add(model.ResultError, finding.Description, possibleCause(err))
		return
	}
	if p == nil || p.Type == "" {
		if finding.Type == model.FindingError {
			e.add(model.ResultError, finding.Description, "Error")
		}
		return
	}

	log.Debug("Handling finding", "type", p.Type, "finding", finding.Type)
	switch p.Type {
	case TypeHierarchy:
		e.updateHierarchy(p.Hierarchy)
	case TypeListType:
		e.createListType(p)
	case TypeDevice:
		e.updateDevice(p, finding)
	case TypeBranch:
		e.createBranch(p, finding)
	case TypePortMove:
		e.movePort(p, finding)
	case TypeOldObjectToDelete:
		e.deleteOld(p, finding)
	case TypePortNoMatch:
		e.add(model.ResultWarning, fmt.Sprintf(msgPortNoMatch, finding.ExtraInformation), resultPortNoMatch)
	case TypePortNoMatchNew:
		e.createPort(p, finding)
	default:
		log.Warn("Unknown finding type", "type", p.Type)
	}
}

func (e *execution) updateHierarchy(hierarchy map[string][]HierarchyChild) {
	parents := make([]string, 0, len(hierarchy))
	for parent := range hierarchy {
		parents = append(parents, parent)
	}
	slices.Sort(parents)

	for _, parent := range parents {
		children := make([]string, 0, len(hierarchy[parent]))
		for _, c := range hierarchy[parent] {
			children = append(children, c.Child)
		}
		added, err := e.classes.AddPossibleChildren(parent, children...)
		if err != nil {
			e.add(model.ResultError, "Updating the class hierarchy", possibleCause(err))
			return
		}
		if len(added) == 0 {
			continue
		}
		log.Info("Containment hierarchy updated", "parent", parent, "children", added)
		e.add(model.ResultSuccess,
			fmt.Sprintf(msgHierarchyUpdated, parent, "["+strings.Join(added, ", ")+"]"),
			resultUpdated)
	}
}

func (e *execution) createListType(p *Payload) {
	class := p.ClassName
	if class == "" {
		class = DefaultListTypeClass
	}
	if _, err := e.store.CreateListTypeItem(class, p.Name); err != nil && !errors.Is(err, storage.ErrListTypeItemExists) {
		e.add(model.ResultError, fmt.Sprintf("Creating the list type %s", p.Name), possibleCause(err))
		return
	}
	e.add(model.ResultSuccess, fmt.Sprintf(msgListTypeCreated, p.Name), resultCreated)
}

func (e *execution) updateDevice(p *Payload, finding model.SyncFinding) {
	if finding.Type != model.FindingUpdate {
		return
	}
	obj, err := e.store.GetObject(p.DeviceID)
	if err == nil && obj.ClassName != p.DeviceClassName {
		err = fmt.Errorf("%w: %s is not a %s", ErrClassMismatch, obj, p.DeviceClassName)
	}
	if err != nil {
		e.add(model.ResultError, finding.Description, possibleCause(err))
		return
	}

	attrs := pick(p.Attributes)
	if err := e.store.UpdateObject(p.DeviceID, attrs); err != nil {
		e.add(model.ResultError, finding.Description, possibleCause(err))
		return
	}
	name, ok := attrs[model.AttrName]
	if !ok {
		name = obj.Name
	}
	e.add(model.ResultSuccess, fmt.Sprintf(msgObjectUpdated, name, p.DeviceClassName, p.DeviceID), resultUpdated)
}

// createObject creates an object of class under parentID after checking
// containment against the parent's actual class.
func (e *execution) createObject(class, parentID string, attrs map[string]string) (*model.BusinessObject, error) {
	if parentID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingParent, attrs[model.AttrName])
	}
	if !e.classes.Exists(class) {
		return nil, fmt.Errorf("class %s does not exist", class)
	}
	parent, err := e.store.GetObject(parentID)
	if err != nil {
		return nil, err
	}
	if !e.classes.CanContain(parent.ClassName, class) {
		return nil, fmt.Errorf("%w: %s can not contain %s", ErrContainment, parent.ClassName, class)
	}
	obj := &model.BusinessObject{ClassName: class, ParentID: parentID, Attributes: pick(attrs)}
	if err := e.store.CreateObject(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (e *execution) recordCreated(entry Entry, obj *model.BusinessObject) {
	e.created[entry.ChildID] = obj.ID
	e.add(model.ResultSuccess, fmt.Sprintf(msgObjectCreated, obj.Name, obj.ClassName, obj.ID), resultCreated)
}

// createBranch creates a polled branch top-down. From the first optical port
// on, entries are deferred until the port is matched or created.
func (e *execution) createBranch(p *Payload, finding model.SyncFinding) {
	if finding.Type != model.FindingNew {
		return
	}
	var (
		portID   string
		deferred []Entry
	)
	for _, c := range p.Children {
		entry := c.Child
		if entry.ClassName == model.ClassOpticalPort || portID != "" {
			if portID == "" {
				portID = entry.ChildID
			}
			deferred = append(deferred, entry)
			e.deferred[portID] = deferred
			e.deferredNames = append(e.deferredNames, [2]string{entry.Attributes[model.AttrName], entry.ChildID})
			continue
		}

		parentID := entry.DeviceParentID
		if parentID != "" {
			e.created[entry.ParentID] = parentID
		} else if id, ok := e.created[entry.ParentID]; ok {
			parentID = id
		} else {
			parentID = entry.ParentID
		}

		if !createdBySync(entry) {
			continue
		}
		obj, err := e.createObject(entry.ClassName, parentID, entry.Attributes)
		if err != nil {
			log.Warn("Branch creation stopped", "class", entry.ClassName, "name", entry.Attributes[model.AttrName], "error", err)
			e.add(model.ResultError, finding.Description, possibleCause(err))
			return
		}
		e.recordCreated(entry, obj)
	}
}

// createdBySync reports whether a branch entry becomes an object right away.
// Ports wait for their own findings, power ports excepted.
func createdBySync(entry Entry) bool {
	return !strings.Contains(entry.ClassName, "Port") ||
		strings.Contains(entry.Attributes[model.AttrName], "Power") ||
		strings.Contains(entry.ClassName, model.ClassPowerPort)
}

// movePort moves an existing port under its newly created parent and creates
// the entries deferred with the polled port of the same name.
func (e *execution) movePort(p *Payload, finding model.SyncFinding) {
	parentID, ok := e.created[p.ParentID]
	if !ok {
		parentID = p.DeviceParentID
	}
	if parentID == "" {
		e.add(model.ResultWarning, finding.Description, resultNoNewParent)
		return
	}

	name := p.Attributes[model.AttrName]
	attrs := map[string]string{model.AttrName: name}
	if d, ok := p.Attributes[model.AttrDescription]; ok {
		attrs[model.AttrDescription] = d
	}
	if err := e.moveObject(p.ChildID, p.ClassName, parentID, attrs); err != nil {
		e.add(model.ResultError, finding.Description, possibleCause(err))
		return
	}
	e.add(model.ResultSuccess, fmt.Sprintf(msgObjectUpdated, name, p.ClassName, p.ChildID), resultUpdated)

	parentID = p.ChildID
	for _, pair := range e.deferredNames {
		if pair[0] != name {
			continue
		}
		for _, entry := range e.deferred[pair[1]] {
			if strings.Contains(entry.ClassName, "Port") {
				if entry.Attributes[model.AttrName] == name {
					e.created[entry.ChildID] = p.ChildID
				}
				continue
			}
			if strings.Contains(entry.ClassName, model.ClassTransceiver) {
				parentID = e.created[entry.ParentID]
			}
			obj, err := e.createObject(entry.ClassName, parentID, entry.Attributes)
			if err != nil {
				e.add(model.ResultError, finding.Description, possibleCause(err))
				return
			}
			e.recordCreated(entry, obj)
		}
	}
}

func (e *execution) moveObject(id, class, parentID string, attrs map[string]string) error {
	obj, err := e.store.GetObject(id)
	if err != nil {
		return err
	}
	if obj.ClassName != class {
		return fmt.Errorf("%w: %s is not a %s", ErrClassMismatch, obj, class)
	}
	parent, err := e.store.GetObject(parentID)
	if err != nil {
		return err
	}
	if !e.classes.CanContain(parent.ClassName, class) {
		return fmt.Errorf("%w: %s can not contain %s", ErrContainment, parent.ClassName, class)
	}
	if err := e.store.UpdateObject(id, attrs); err != nil {
		return err
	}
	return e.store.MoveObject(id, parentID)
}

// deleteOld removes a stale structure. Structures with relationships are kept
// and reported.
func (e *execution) deleteOld(p *Payload, finding model.SyncFinding) {
	if p.Device == nil {
		e.add(model.ResultError, finding.Description, possibleCause(errors.New("no device to delete")))
		return
	}
	d := p.Device
	if err := e.store.DeleteObject(d.DeviceID, false); err != nil {
		log.Info("Old structure kept", "id", d.DeviceID, "name", d.DeviceName, "error", err)
		e.add(model.ResultWarning, finding.Description, err.Error()+". "+resultDeleteBlocked)
		return
	}
	e.add(model.ResultSuccess, fmt.Sprintf(msgObjectDeleted, d.DeviceName, d.DeviceClassName, d.DeviceID), resultDeleted)
}

// createPort creates a polled port that matched no existing port, along with
// everything deferred with it.
func (e *execution) createPort(p *Payload, finding model.SyncFinding) {
	parentID := p.DeviceParentID
	if parentID == "" {
		parentID = e.created[p.ParentID]
	}
	if parentID == "" {
		e.add(model.ResultWarning, finding.Description, resultNoPortParent)
		return
	}

	entries, ok := e.deferred[p.ChildID]
	if !ok {
		obj, err := e.createObject(p.ClassName, parentID, p.Attributes)
		if err != nil {
			e.add(model.ResultWarning, finding.Description, "Possible cause: "+err.Error())
			return
		}
		e.recordCreated(p.Entry, obj)
		return
	}

	for _, entry := range entries {
		if entry.DeviceParentID == "" {
			parentID = e.created[entry.ParentID]
		}
		obj, err := e.createObject(entry.ClassName, parentID, entry.Attributes)
		if err != nil {
			e.add(model.ResultWarning, finding.Description, possibleCause(err))
			continue
		}
		e.recordCreated(entry, obj)
	}
}
