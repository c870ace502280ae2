package rack

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/martinsuchenak/invd/internal/log"
	"github.com/martinsuchenak/invd/internal/metrics"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/storage"
)

// Store is the part of the object graph the rack service works on
type Store interface {
	storage.ObjectStorage
	storage.RelationshipStorage
}

// Classes answers class hierarchy questions
type Classes interface {
	IsSubclassOf(class, super string) bool
	CanContain(parent, child string) bool
}

// Service builds rack views over the object graph
type Service struct {
	store   Store
	classes Classes
}

// placements serializes occupancy changes per rack. It is shared by every
// Service so the API and MCP surfaces see the same lock.
var placements sync.Map

func lockRack(rackID string) func() {
	v, _ := placements.LoadOrStore(rackID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// NewService creates a rack service
func NewService(store Store, classes Classes) *Service {
	return &Service{store: store, classes: classes}
}

func (s *Service) loadRack(rackID string) (*model.BusinessObject, error) {
	obj, err := s.store.GetObject(rackID)
	if err != nil {
		return nil, err
	}
	if !s.classes.IsSubclassOf(obj.ClassName, model.ClassRack) {
		return nil, fmt.Errorf("%w: %s is not a %s", ErrInvalidRack, obj, model.ClassRack)
	}
	return obj, nil
}

// Validate returns the problems found in a rack and its devices
func (s *Service) Validate(rackID string) ([]string, error) {
	rackObj, err := s.loadRack(rackID)
	if err != nil {
		return nil, err
	}
	devices, err := s.store.GetChildren(rackID)
	if err != nil {
		return nil, err
	}
	problems := Validate(rackObj, devices)
	outcome := "valid"
	if len(problems) > 0 {
		outcome = "invalid"
		log.Debug("Rack failed validation", "rack", rackID, "problems", len(problems))
	}
	metrics.RackValidations.WithLabelValues(outcome).Inc()
	return problems, nil
}

// Open validates a rack and returns its occupancy
func (s *Service) Open(rackID string) (*Rack, error) {
	rackObj, err := s.loadRack(rackID)
	if err != nil {
		return nil, err
	}
	devices, err := s.store.GetChildren(rackID)
	if err != nil {
		return nil, err
	}
	if problems := Validate(rackObj, devices); len(problems) > 0 {
		metrics.RackValidations.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %s", ErrInvalidRack, strings.Join(problems, "; "))
	}
	metrics.RackValidations.WithLabelValues("valid").Inc()

	r, err := New(rackObj)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		d, err := DevicePlacement(&devices[i])
		if err != nil {
			return nil, err
		}
		if _, err := r.Add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Layout returns the computed view of a rack
func (s *Service) Layout(rackID string) (*model.RackLayout, error) {
	r, err := s.Open(rackID)
	if err != nil {
		return nil, err
	}
	layout := r.Layout()
	return &layout, nil
}

// AddEquipment places a device in a rack at position. A device that is not
// yet a child of the rack is moved under it first.
func (s *Service) AddEquipment(rackID, deviceID string, position int) error {
	defer lockRack(rackID)()

	r, err := s.Open(rackID)
	if err != nil {
		return err
	}
	device, err := s.store.GetObject(deviceID)
	if err != nil {
		return err
	}
	units, ok := device.IntAttribute(model.AttrRackUnits)
	if !ok {
		return fmt.Errorf("%w: The attribute %s is not set in object %s", ErrInvalidDevice, model.AttrRackUnits, device)
	}

	if device.ParentID == rackID {
		r.Free(deviceID)
	}
	if err := r.IsRackable(position, units); err != nil {
		return err
	}

	if device.ParentID != rackID {
		rackObj, err := s.store.GetObject(rackID)
		if err != nil {
			return err
		}
		if !s.classes.CanContain(rackObj.ClassName, device.ClassName) {
			return fmt.Errorf("%w: a %s cannot contain a %s", ErrNotRackable, rackObj.ClassName, device.ClassName)
		}
		if err := s.store.MoveObject(deviceID, rackID); err != nil {
			return err
		}
	}
	if err := s.store.UpdateObject(deviceID, map[string]string{model.AttrPosition: strconv.Itoa(position)}); err != nil {
		if device.ParentID != rackID {
			if undo := s.store.MoveObject(deviceID, device.ParentID); undo != nil {
				log.Error("Failed to return device to its parent", "device", deviceID, "parent", device.ParentID, "error", undo)
			}
		}
		return err
	}
	log.Info("Added equipment to rack", "rack", rackID, "device", deviceID, "position", position, "units", units)
	return nil
}

// MoveEquipment changes the position of a device already in the rack
func (s *Service) MoveEquipment(rackID, deviceID string, position int) error {
	defer lockRack(rackID)()

	r, err := s.Open(rackID)
	if err != nil {
		return err
	}
	if err := r.Move(deviceID, position); err != nil {
		return err
	}
	if err := s.store.UpdateObject(deviceID, map[string]string{model.AttrPosition: strconv.Itoa(position)}); err != nil {
		return err
	}
	log.Info("Moved equipment in rack", "rack", rackID, "device", deviceID, "position", position)
	return nil
}

// FreeEquipmentRackUnits takes a device off the rack units. The device stays
// in the rack with position 0.
func (s *Service) FreeEquipmentRackUnits(rackID, deviceID string) error {
	defer lockRack(rackID)()

	r, err := s.Open(rackID)
	if err != nil {
		return err
	}
	if _, ok := r.device(deviceID); !ok {
		return fmt.Errorf("%w: %s", ErrNotInRack, deviceID)
	}
	r.Free(deviceID)
	if err := s.store.UpdateObject(deviceID, map[string]string{model.AttrPosition: "0"}); err != nil {
		return err
	}
	log.Info("Freed rack units", "rack", rackID, "device", deviceID)
	return nil
}
