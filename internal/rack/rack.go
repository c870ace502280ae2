// Package rack lays out devices in the units of a rack and validates their
// placement.
package rack

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/martinsuchenak/invd/internal/model"
)

var (
	ErrInvalidRack   = errors.New("invalid rack")
	ErrNotRackable   = errors.New("device cannot be placed in the rack")
	ErrCannotMove    = errors.New("device cannot be moved")
	ErrNotInRack     = errors.New("device is not in the rack")
	ErrInvalidDevice = errors.New("invalid device")
)

// Rack tracks which device occupies each unit of a rack
type Rack struct {
	ID         string
	Name       string
	Units      int
	Descending bool
	// NumberingSet is false when the rack has no rackUnitsNumbering attribute
	NumberingSet bool

	occupied map[int]string
	devices  []model.RackDevice
}

// New reads the rack attributes of obj. A missing numbering is accepted as
// ascending.
func New(obj *model.BusinessObject) (*Rack, error) {
	units, ok := obj.IntAttribute(model.AttrRackUnits)
	if !ok || units <= 0 {
		return nil, fmt.Errorf("%w: Attribute %s in rack %s does not exist or is not set correctly",
			ErrInvalidRack, model.AttrRackUnits, obj)
	}
	r := &Rack{
		ID:       obj.ID,
		Name:     obj.Name,
		Units:    units,
		occupied: map[int]string{},
	}
	if raw := obj.Attribute(model.AttrNumbering); raw != "" {
		descending, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s in rack %s must be true or false", ErrInvalidRack, model.AttrNumbering, obj)
		}
		r.Descending = descending
		r.NumberingSet = true
	}
	return r, nil
}

// DevicePlacement reads the position and rackUnits attributes of a device
func DevicePlacement(obj *model.BusinessObject) (model.RackDevice, error) {
	d := model.RackDevice{ID: obj.ID, Name: obj.Name, ClassName: obj.ClassName}
	var ok bool
	if d.Position, ok = obj.IntAttribute(model.AttrPosition); !ok {
		return d, fmt.Errorf("%w: The attribute %s is not set in object %s", ErrInvalidDevice, model.AttrPosition, obj)
	}
	if d.Units, ok = obj.IntAttribute(model.AttrRackUnits); !ok {
		return d, fmt.Errorf("%w: The attribute %s is not set in object %s", ErrInvalidDevice, model.AttrRackUnits, obj)
	}
	return d, nil
}

// Validate checks a rack and the devices in it. It returns every problem
// found; an empty result means the rack can be laid out.
func Validate(rack *model.BusinessObject, devices []model.BusinessObject) []string {
	r, err := New(rack)
	if err != nil {
		return []string{message(err, ErrInvalidRack)}
	}

	var problems []string
	placed := make([]model.RackDevice, 0, len(devices))
	for i := range devices {
		obj := &devices[i]
		d, err := DevicePlacement(obj)
		if err != nil {
			problems = append(problems, message(err, ErrInvalidDevice))
			continue
		}
		if d.Position < 0 {
			problems = append(problems, fmt.Sprintf("The %s in %s must be greater than or equal to zero", model.AttrPosition, obj))
		} else if d.Position > r.Units {
			problems = append(problems, fmt.Sprintf("The %s in %s is greater than the number of rack units", model.AttrPosition, obj))
		}
		if d.Units < 0 {
			problems = append(problems, fmt.Sprintf("The %s in %s must be greater than or equal to zero", model.AttrRackUnits, obj))
		} else if d.Units > r.Units {
			problems = append(problems, fmt.Sprintf("The %s in %s is greater than the number of rack units", model.AttrRackUnits, obj))
		}
		placed = append(placed, d)
	}
	if len(problems) > 0 {
		return problems
	}

	byID := map[string]*model.BusinessObject{}
	for i := range devices {
		byID[devices[i].ID] = &devices[i]
	}
	owner := map[int]string{}
	used := 0
	for _, d := range placed {
		if d.Position == 0 || d.Units == 0 {
			continue
		}
		used += d.Units
		for u := d.Position; u < d.Position+d.Units; u++ {
			if u > r.Units {
				problems = append(problems, fmt.Sprintf("The %s does not fit in the rack: rack unit %d is past the last rack unit %d", byID[d.ID], u, r.Units))
				break
			}
			if other, taken := owner[u]; taken && other != d.ID {
				problems = append(problems, fmt.Sprintf("The Position %d set in the %s is used by the %s", u, byID[d.ID], byID[other]))
				continue
			}
			owner[u] = d.ID
		}
	}
	if used > r.Units {
		problems = append(problems, fmt.Sprintf("The devices use %d rack units but the rack %s only has %d", used, rack, r.Units))
	}
	return problems
}

// message strips the sentinel prefix from a wrapped error
func message(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

// IsRackable reports whether a device of units height fits at position. A
// device with no position or no height is never rackable.
func (r *Rack) IsRackable(position, units int) error {
	if position < 0 {
		return fmt.Errorf("%w: the position must be greater than or equal to zero", ErrNotRackable)
	}
	if position > r.Units {
		return fmt.Errorf("%w: the position is greater than the number of rack units", ErrNotRackable)
	}
	if units < 0 {
		return fmt.Errorf("%w: the number of rack units must be greater than or equal to zero", ErrNotRackable)
	}
	if position == 0 || units == 0 {
		return fmt.Errorf("%w: position and rack units must be set", ErrNotRackable)
	}
	for i := 0; i < units; i++ {
		u := position + i
		if u > r.Units {
			return fmt.Errorf("%w: the equipment can not be located in the given %d position", ErrNotRackable, position)
		}
		if _, taken := r.occupied[u]; taken {
			return fmt.Errorf("%w: the rack unit %d is not available", ErrNotRackable, u)
		}
	}
	return nil
}

// CanBeMoved reports whether a placed device can move to newPosition. Units
// the device already occupies count as free.
func (r *Rack) CanBeMoved(deviceID string, newPosition int) error {
	d, ok := r.device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInRack, deviceID)
	}
	if newPosition < 1 {
		return fmt.Errorf("%w: The position must be greater than zero", ErrCannotMove)
	}
	for i := 0; i < d.Units; i++ {
		u := newPosition + i
		if u > r.Units {
			return fmt.Errorf("%w: The device is too large for the given position", ErrCannotMove)
		}
		if owner, taken := r.occupied[u]; taken && owner != deviceID {
			return fmt.Errorf("%w: The position cannot be changed to rack unit %d because rack unit %d is not available",
				ErrCannotMove, newPosition, u)
		}
	}
	return nil
}

// Add places a device at its position. Devices without position or height
// are kept off the rack and Add reports false.
func (r *Rack) Add(d model.RackDevice) (bool, error) {
	if d.Position <= 0 || d.Units <= 0 {
		return false, nil
	}
	if err := r.IsRackable(d.Position, d.Units); err != nil {
		return false, err
	}
	for i := 0; i < d.Units; i++ {
		r.occupied[d.Position+i] = d.ID
	}
	r.devices = append(r.devices, d)
	return true, nil
}

// Free releases the units of a device and removes it from the rack
func (r *Rack) Free(deviceID string) {
	d, ok := r.device(deviceID)
	if !ok {
		return
	}
	for i := 0; i < d.Units; i++ {
		if r.occupied[d.Position+i] == deviceID {
			delete(r.occupied, d.Position+i)
		}
	}
	r.devices = slices.DeleteFunc(r.devices, func(x model.RackDevice) bool { return x.ID == deviceID })
}

// Move relocates a placed device
func (r *Rack) Move(deviceID string, newPosition int) error {
	if err := r.CanBeMoved(deviceID, newPosition); err != nil {
		return err
	}
	d, _ := r.device(deviceID)
	r.Free(deviceID)
	d.Position = newPosition
	_, err := r.Add(d)
	return err
}

func (r *Rack) device(id string) (model.RackDevice, bool) {
	for _, d := range r.devices {
		if d.ID == id {
			return d, true
		}
	}
	return model.RackDevice{}, false
}

// UsedUnits is the sum of the heights of the placed devices
func (r *Rack) UsedUnits() int {
	return len(r.occupied)
}

// DrawOffset is the zero-based row, counted from the top, where a device
// starting at position with the given height is drawn.
func (r *Rack) DrawOffset(position, units int) int {
	if r.Descending {
		return r.Units - position - (units - 1)
	}
	return position - 1
}

// Layout renders the rack occupancy. Slots are listed top to bottom.
func (r *Rack) Layout() model.RackLayout {
	layout := model.RackLayout{
		RackID:     r.ID,
		RackName:   r.Name,
		RackUnits:  r.Units,
		Descending: r.Descending,
		UsedUnits:  r.UsedUnits(),
		FreeUnits:  r.Units - r.UsedUnits(),
		Devices:    make([]model.RackDevice, 0, len(r.devices)),
		Slots:      make([]model.RackSlot, 0, r.Units),
	}
	layout.Usage = float64(layout.UsedUnits) * 100 / float64(r.Units)

	for _, d := range r.devices {
		d.DrawOffset = r.DrawOffset(d.Position, d.Units)
		layout.Devices = append(layout.Devices, d)
	}
	slices.SortFunc(layout.Devices, func(a, b model.RackDevice) int { return a.DrawOffset - b.DrawOffset })

	for row := 0; row < r.Units; row++ {
		unit := row + 1
		if r.Descending {
			unit = r.Units - row
		}
		layout.Slots = append(layout.Slots, model.RackSlot{Unit: unit, DeviceID: r.occupied[unit]})
	}
	if !r.NumberingSet {
		layout.Warnings = append(layout.Warnings, "The rack unit sorting has not been set. Ascending is assumed")
	}
	return layout
}
