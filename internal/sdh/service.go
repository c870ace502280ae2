package sdh

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/metrics"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/storage"
)

// Service implements the SDH operations over the object graph
type Service struct {
	store   Store
	classes Classes
}

// topology serializes position checks with the writes that claim the
// positions. It is shared by every Service over the same process.
var topology sync.Mutex

// NewService creates an SDH service
func NewService(store Store, classes Classes) *Service {
	return &Service{store: store, classes: classes}
}

func (s *Service) requireClass(class, super string) error {
	if !s.classes.IsSubclassOf(class, super) {
		return fmt.Errorf("%w: class %s is not a subclass of %s", ErrInvalidClass, class, super)
	}
	return nil
}

// objectOfClass loads an object and checks that it is a super
func (s *Service) objectOfClass(id, super string) (*model.BusinessObject, error) {
	obj, err := s.store.GetObject(id)
	if err != nil {
		return nil, err
	}
	if err := s.requireClass(obj.ClassName, super); err != nil {
		return nil, err
	}
	return obj, nil
}

// equipmentOf returns the nearest communications element above a port
func (s *Service) equipmentOf(portID string) (*model.BusinessObject, error) {
	port, err := s.store.GetObject(portID)
	if err != nil {
		return nil, err
	}
	parents, err := s.store.GetParents(portID)
	if err != nil {
		return nil, err
	}
	for i := range parents {
		if s.classes.IsSubclassOf(parents[i].ClassName, model.ClassGenericCommunicationsElement) {
			return &parents[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoEquipment, port)
}

func (s *Service) createLink(class, name string) (*model.BusinessObject, error) {
	if name == "" {
		name = class
	}
	link := &model.BusinessObject{ClassName: class, Name: name}
	if err := s.store.CreateObject(link); err != nil {
		return nil, fmt.Errorf("creating %s: %w", class, err)
	}
	return link, nil
}

func (s *Service) relate(name, sourceID, targetID string, props map[string]string) error {
	rel := &model.SpecialRelationship{Name: name, SourceID: sourceID, TargetID: targetID, Properties: props}
	if err := s.store.CreateSpecialRelationship(rel); err != nil {
		return fmt.Errorf("creating %s relationship: %w", name, err)
	}
	return nil
}

// discard removes partially created links after a failure
func (s *Service) discard(links ...*model.BusinessObject) {
	for _, link := range links {
		if link == nil {
			continue
		}
		if err := s.store.DeleteObject(link.ID, true); err != nil {
			log.Error("Failed to remove partially created SDH link", "id", link.ID, "class", link.ClassName, "error", err)
		}
	}
}

func positionProperty(p int) map[string]string {
	return map[string]string{PropertyPosition: strconv.Itoa(p)}
}

// CreateTransportLink creates an STM-N link between two ports. Each port must
// sit inside a communications element; the equipments are linked through
// the new link so routes can be found between them.
func (s *Service) CreateTransportLink(portA, portB, linkClass, name string) (link *model.BusinessObject, err error) {
	defer func() { metrics.ObserveSDH("create_transport_link", err) }()
	topology.Lock()
	defer topology.Unlock()

	if err := s.requireClass(linkClass, ClassTransportLink); err != nil {
		return nil, err
	}
	equipmentA, err := s.equipmentOf(portA)
	if err != nil {
		return nil, err
	}
	equipmentB, err := s.equipmentOf(portB)
	if err != nil {
		return nil, err
	}

	link, err = s.createLink(linkClass, name)
	if err != nil {
		return nil, err
	}

	steps := []struct{ name, src, dst string }{
		{RelTLEndpointA, link.ID, portA},
		{RelTLEndpointB, link.ID, portB},
		{RelTransportLink, equipmentA.ID, link.ID},
		{RelTransportLink, link.ID, equipmentB.ID},
	}
	for _, step := range steps {
		if err := s.relate(step.name, step.src, step.dst, nil); err != nil {
			s.discard(link)
			return nil, err
		}
	}

	log.Info("Created SDH transport link", "id", link.ID, "class", linkClass, "a", equipmentA.ID, "b", equipmentB.ID)
	return link, nil
}

// CreateContainerLink creates a high order container between two
// communications elements, transported by the given transport link
// positions.
func (s *Service) CreateContainerLink(equipmentA, equipmentB, linkClass string, positions []model.SDHPosition, name string) (link *model.BusinessObject, err error) {
	defer func() { metrics.ObserveSDH("create_container_link", err) }()
	topology.Lock()
	defer topology.Unlock()

	if err := s.requireClass(linkClass, ClassContainerLink); err != nil {
		return nil, err
	}
	for _, id := range []string{equipmentA, equipmentB} {
		if _, err := s.objectOfClass(id, model.ClassGenericCommunicationsElement); err != nil {
			return nil, fmt.Errorf("container link endpoint: %w", err)
		}
	}
	if err := s.CheckPositions(linkClass, positions); err != nil {
		return nil, err
	}

	link, err = s.createLink(linkClass, name)
	if err != nil {
		return nil, err
	}

	if err := s.relate(RelContainerLink, equipmentA, link.ID, nil); err != nil {
		s.discard(link)
		return nil, err
	}
	if err := s.relate(RelContainerLink, link.ID, equipmentB, nil); err != nil {
		s.discard(link)
		return nil, err
	}
	for _, p := range positions {
		if err := s.relate(RelTransports, p.LinkID, link.ID, positionProperty(p.Position)); err != nil {
			s.discard(link)
			return nil, err
		}
	}

	log.Info("Created SDH container link", "id", link.ID, "class", linkClass, "positions", len(positions))
	return link, nil
}

// CreateTributaryLink creates a tributary link between two ports together
// with the container that delivers it. High order containers are transported
// by transport links, low order ones are contained in high order containers.
func (s *Service) CreateTributaryLink(portA, portB, linkClass string, positions []model.SDHPosition, name string) (link *model.BusinessObject, err error) {
	defer func() { metrics.ObserveSDH("create_tributary_link", err) }()
	topology.Lock()
	defer topology.Unlock()

	if err := s.requireClass(linkClass, ClassTributaryLink); err != nil {
		return nil, err
	}

	var relationship string
	switch {
	case s.classes.IsSubclassOf(linkClass, ClassHighOrderTributaryLink):
		relationship = RelTransports
	case s.classes.IsSubclassOf(linkClass, ClassLowOrderTributaryLink):
		relationship = RelContains
	default:
		return nil, fmt.Errorf("%w: class %s is neither a high nor a low order tributary link", ErrInvalidClass, linkClass)
	}

	containerClass := ContainerClass(linkClass)
	if err := s.requireClass(containerClass, ClassContainerLink); err != nil {
		return nil, err
	}
	for _, id := range []string{portA, portB} {
		if _, err := s.store.GetObject(id); err != nil {
			return nil, fmt.Errorf("tributary link endpoint: %w", err)
		}
	}
	if err := s.CheckPositions(linkClass, positions); err != nil {
		return nil, err
	}

	container, err := s.createLink(containerClass, name)
	if err != nil {
		return nil, err
	}
	link, err = s.createLink(linkClass, name)
	if err != nil {
		s.discard(container)
		return nil, err
	}

	steps := []struct{ name, src, dst string }{
		{RelTTLEndpointA, link.ID, portA},
		{RelTTLEndpointB, link.ID, portB},
		{RelDelivers, container.ID, link.ID},
	}
	for _, step := range steps {
		if err := s.relate(step.name, step.src, step.dst, nil); err != nil {
			s.discard(link, container)
			return nil, err
		}
	}
	for _, p := range positions {
		if err := s.relate(relationship, p.LinkID, container.ID, positionProperty(p.Position)); err != nil {
			s.discard(link, container)
			return nil, err
		}
	}

	log.Info("Created SDH tributary link", "id", link.ID, "class", linkClass, "container", container.ID)
	return link, nil
}

// DeleteTransportLink deletes a transport link and every container it
// transports.
func (s *Service) DeleteTransportLink(id string) (err error) {
	defer func() { metrics.ObserveSDH("delete_transport_link", err) }()
	topology.Lock()
	defer topology.Unlock()

	if _, err := s.objectOfClass(id, ClassTransportLink); err != nil {
		return err
	}
	containers, err := s.store.GetSpecialAttribute(id, RelTransports, model.DirectionOutgoing)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if err := s.deleteContainer(c.ID); err != nil {
			return err
		}
	}
	log.Info("Deleting SDH transport link", "id", id, "containers", len(containers))
	return s.store.DeleteObject(id, true)
}

// DeleteContainerLink deletes a container. A container delivering a
// tributary goes away with that tributary; a structured container takes the
// containers it holds with it.
func (s *Service) DeleteContainerLink(id string) (err error) {
	defer func() { metrics.ObserveSDH("delete_container_link", err) }()
	topology.Lock()
	defer topology.Unlock()
	return s.deleteContainer(id)
}

func (s *Service) deleteContainer(id string) error {
	if _, err := s.objectOfClass(id, ClassContainerLink); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil
		}
		return err
	}

	tributaries, err := s.store.GetSpecialAttribute(id, RelDelivers, model.DirectionOutgoing)
	if err != nil {
		return err
	}
	if len(tributaries) > 0 {
		return s.deleteTributary(tributaries[0].ID)
	}

	contained, err := s.store.GetSpecialAttribute(id, RelContains, model.DirectionOutgoing)
	if err != nil {
		return err
	}
	for _, c := range contained {
		if err := s.deleteContainer(c.ID); err != nil {
			return err
		}
	}
	return ignoreNotFound(s.store.DeleteObject(id, true))
}

// DeleteTributaryLink deletes a tributary link and the container delivering it
func (s *Service) DeleteTributaryLink(id string) (err error) {
	defer func() { metrics.ObserveSDH("delete_tributary_link", err) }()
	topology.Lock()
	defer topology.Unlock()
	return s.deleteTributary(id)
}

func (s *Service) deleteTributary(id string) error {
	if _, err := s.objectOfClass(id, ClassTributaryLink); err != nil {
		return err
	}
	containers, err := s.store.GetSpecialAttribute(id, RelDelivers, model.DirectionIncoming)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if err := ignoreNotFound(s.store.DeleteObject(c.ID, true)); err != nil {
			return err
		}
	}
	return ignoreNotFound(s.store.DeleteObject(id, true))
}

func ignoreNotFound(err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil
	}
	return err
}

// FindRoutesUsingTransportLinks lists the routes between two communications
// elements over transport links.
func (s *Service) FindRoutesUsingTransportLinks(equipmentA, equipmentB string) ([]model.Route, error) {
	return s.findRoutes(equipmentA, equipmentB, RelTransportLink)
}

// FindRoutesUsingContainerLinks lists the routes between two communications
// elements over container links.
func (s *Service) FindRoutesUsingContainerLinks(equipmentA, equipmentB string) ([]model.Route, error) {
	return s.findRoutes(equipmentA, equipmentB, RelContainerLink)
}

func (s *Service) findRoutes(a, b, relationship string) ([]model.Route, error) {
	for _, id := range []string{a, b} {
		if _, err := s.objectOfClass(id, model.ClassGenericCommunicationsElement); err != nil {
			return nil, err
		}
	}
	return s.store.FindRoutesThroughSpecialRelationships(a, b, relationship, storage.DefaultMaxHops)
}

// GetTransportLinkStructure lists the containers transported by a link with
// the position each one uses on it.
func (s *Service) GetTransportLinkStructure(id string) ([]model.SDHContainerLinkDefinition, error) {
	link, err := s.objectOfClass(id, ClassTransportLink)
	if err != nil {
		return nil, err
	}
	return s.structure(link, RelTransports, func(containerID string) (bool, error) {
		delivered, err := s.store.GetSpecialAttribute(containerID, RelDelivers, model.DirectionOutgoing)
		return len(delivered) == 0, err
	})
}

// GetContainerLinkStructure lists the low order containers held by a high
// order container.
func (s *Service) GetContainerLinkStructure(id string) ([]model.SDHContainerLinkDefinition, error) {
	link, err := s.objectOfClass(id, ClassHighOrderContainerLink)
	if err != nil {
		return nil, err
	}
	return s.structure(link, RelContains, func(containerID string) (bool, error) {
		contained, err := s.store.GetSpecialAttribute(containerID, RelContains, model.DirectionOutgoing)
		return len(contained) > 0, err
	})
}

func (s *Service) structure(link *model.BusinessObject, relationship string, structured func(string) (bool, error)) ([]model.SDHContainerLinkDefinition, error) {
	related, err := s.store.GetAnnotatedSpecialAttribute(link.ID, relationship, model.DirectionOutgoing)
	if err != nil {
		return nil, err
	}

	defs := make([]model.SDHContainerLinkDefinition, 0, len(related))
	for _, r := range related {
		raw, ok := r.Properties[PropertyPosition]
		if !ok {
			return nil, fmt.Errorf("%w: the container %s (id %s) is related to the link with id %s, but no position is specified",
				ErrMissingPosition, r.Object.Name, r.Object.ID, link.ID)
		}
		position, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: container %s has position %q", ErrMissingPosition, r.Object.ID, raw)
		}
		isStructured, err := structured(r.Object.ID)
		if err != nil {
			return nil, err
		}
		defs = append(defs, model.SDHContainerLinkDefinition{
			Container:  r.Object,
			Structured: isStructured,
			Positions:  []model.SDHPosition{{LinkClass: link.ClassName, LinkID: link.ID, Position: position}},
		})
	}
	return defs, nil
}

// Slots returns the timeslots of a transport link (VC4 slots) or of a high
// order container (VC12 slots).
func (s *Service) Slots(linkID string) ([]model.SDHSlot, error) {
	link, err := s.store.GetObject(linkID)
	if err != nil {
		return nil, err
	}
	switch {
	case s.classes.IsSubclassOf(link.ClassName, ClassTransportLink):
		structure, err := s.GetTransportLinkStructure(linkID)
		if err != nil {
			return nil, err
		}
		return TransportLinkSlots(link.ClassName, structure)
	case s.classes.IsSubclassOf(link.ClassName, ClassHighOrderContainerLink):
		structure, err := s.GetContainerLinkStructure(linkID)
		if err != nil {
			return nil, err
		}
		return ContainerLinkSlots(link.ClassName, structure)
	}
	return nil, fmt.Errorf("%w: %s has no timeslots", ErrInvalidClass, link.ClassName)
}

// CheckPositions verifies that a new container or tributary of class can be
// placed on every given position. Low order classes go in high order
// containers, everything else on transport links.
func (s *Service) CheckPositions(class string, positions []model.SDHPosition) error {
	span, err := SlotsOccupied(class)
	if err != nil {
		return err
	}
	carrier := ClassTransportLink
	if s.classes.IsSubclassOf(class, ClassLowOrderTributaryLink) || s.classes.IsSubclassOf(class, ClassLowOrderContainerLink) {
		carrier = ClassHighOrderContainerLink
	}

	for _, p := range positions {
		link, err := s.objectOfClass(p.LinkID, carrier)
		if err != nil {
			return fmt.Errorf("position on %s: %w", p.LinkID, err)
		}
		if p.LinkClass != "" && p.LinkClass != link.ClassName {
			return fmt.Errorf("%w: link %s is a %s, not a %s", ErrInvalidClass, link.ID, link.ClassName, p.LinkClass)
		}
		slots, err := s.Slots(p.LinkID)
		if err != nil {
			return err
		}
		if err := CheckPosition(slots, p.Position, span); err != nil {
			return fmt.Errorf("%s: %w", link, err)
		}
	}
	return nil
}
