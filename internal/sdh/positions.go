package sdh

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/martinsuchenak/invd/internal/model"
)

// VC12 slots in one VC4
const vc12PerVC4 = 63

// VC12 slots taken by one VC3
const vc12PerVC3 = 21

// TransportLinkCapacity is the number of VC4 timeslots of an STM-N class,
// -1 when the class name carries no number.
func TransportLinkCapacity(class string) int {
	n, err := strconv.Atoi(strings.Replace(class, "STM", "", 1))
	if err != nil {
		return -1
	}
	return n
}

// ContainerLinkCapacity is the number of VC4 timeslots a VC4 or VC4-N
// container spans, -1 when the class name carries no number.
func ContainerLinkCapacity(class string) int {
	suffix := strings.Replace(class, "VC4", "", 1)
	if suffix == "" {
		return 1
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return -1
	}
	return abs(n)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ContainerClass is the container class delivering a tributary class
func ContainerClass(tributaryClass string) string {
	return strings.Replace(tributaryClass, "TributaryLink", "", 1)
}

// SlotsOccupied is how many slots a new container or tributary of class
// takes on the link it is placed on. VC4-N counts VC4 timeslots; VC12-N and
// VC3-N count VC12 slots of a high order container.
func SlotsOccupied(class string) (int, error) {
	tokens := strings.Split(strings.TrimPrefix(ContainerClass(class), "VC"), "-")
	kind, err := strconv.Atoi(tokens[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a VC4-N, VC3-N or VC12-N class", ErrInvalidClass, class)
	}
	concat := 1
	if len(tokens) > 1 {
		c, err := strconv.Atoi(tokens[1])
		if err != nil {
			return 0, fmt.Errorf("%w: bad concatenation in %s", ErrInvalidClass, class)
		}
		if c != 0 {
			concat = abs(c)
		}
	}
	switch kind {
	case 4, 12:
		return concat, nil
	case 3:
		return vc12PerVC3 * concat, nil
	}
	return 0, fmt.Errorf("%w: %s is not a VC4-N, VC3-N or VC12-N class", ErrInvalidClass, class)
}

// HighOrderSlots is the number of VC12 slots of a VC4 or VC4-N container
func HighOrderSlots(class string) int {
	n := ContainerLinkCapacity(class)
	if n < 0 {
		return -1
	}
	return n * vc12PerVC4
}

// TransportLinkSlots lays out the VC4 timeslots of a transport link from its
// structure. A concatenated container fills its position and the slots that
// follow it.
func TransportLinkSlots(linkClass string, structure []model.SDHContainerLinkDefinition) ([]model.SDHSlot, error) {
	capacity := TransportLinkCapacity(linkClass)
	if capacity < 0 {
		return nil, fmt.Errorf("%w: cannot compute the capacity of %s", ErrInvalidClass, linkClass)
	}
	slots := make([]model.SDHSlot, capacity)
	for i := range slots {
		slots[i] = model.SDHSlot{Position: i + 1, Label: strconv.Itoa(i + 1)}
	}
	for _, def := range structure {
		span := ContainerLinkCapacity(def.Container.ClassName)
		if span < 0 {
			return nil, fmt.Errorf("%w: cannot compute the span of %s", ErrInvalidClass, def.Container.ClassName)
		}
		if err := fill(slots, def, span); err != nil {
			return nil, err
		}
	}
	return slots, nil
}

// ContainerLinkSlots lays out the VC12 slots of a high order container. Slots
// are labelled in K-L-M notation.
func ContainerLinkSlots(containerClass string, structure []model.SDHContainerLinkDefinition) ([]model.SDHSlot, error) {
	capacity := HighOrderSlots(containerClass)
	if capacity < 0 {
		return nil, fmt.Errorf("%w: cannot compute the capacity of %s", ErrInvalidClass, containerClass)
	}
	slots := make([]model.SDHSlot, capacity)
	for i := range slots {
		slots[i] = model.SDHSlot{Position: i + 1, Label: KLM(i + 1)}
	}
	for _, def := range structure {
		span, err := SlotsOccupied(def.Container.ClassName)
		if err != nil {
			return nil, err
		}
		if err := fill(slots, def, span); err != nil {
			return nil, err
		}
	}
	return slots, nil
}

func fill(slots []model.SDHSlot, def model.SDHContainerLinkDefinition, span int) error {
	if len(def.Positions) == 0 {
		return fmt.Errorf("%w: container %s", ErrMissingPosition, def.Container.ID)
	}
	start := def.Positions[0].Position
	for p := start; p < start+span; p++ {
		if p < 1 || p > len(slots) {
			return fmt.Errorf("%w: container %s uses position %d of %d", ErrPositionOutOfRange, def.Container.ID, p, len(slots))
		}
		if other := slots[p-1].Container; other != "" && other != def.Container.ID {
			return fmt.Errorf("%w: container %s and %s both use position %d", ErrPositionInUse, other, def.Container.ID, p)
		}
		slots[p-1].Container = def.Container.ID
		slots[p-1].Name = def.Container.Name
	}
	return nil
}

// CheckPosition verifies that span slots starting at start exist and are
// free.
func CheckPosition(slots []model.SDHSlot, start, span int) error {
	if start < 1 || start > len(slots) {
		return fmt.Errorf("%w: position %d of %d", ErrPositionOutOfRange, start, len(slots))
	}
	if start+span-1 > len(slots) {
		return fmt.Errorf("%w: %d slots from position %d exceed the %d available", ErrNotEnoughPositions, span, start, len(slots))
	}
	for p := start; p < start+span; p++ {
		if !slots[p-1].Free() {
			return fmt.Errorf("%w: position %d is used by %s", ErrPositionInUse, p, slots[p-1].Name)
		}
	}
	return nil
}

// KLM renders a VC12 slot of a VC4 as K-L-M (TUG-3, TUG-2, TU-12)
func KLM(position int) string {
	var k, l, m int
	rem := position % vc12PerVC3
	if rem == 0 {
		k = position / vc12PerVC3
		l, m = 7, 3
	} else {
		k = position/vc12PerVC3 + 1
		l = rem / 3
		if rem%3 != 0 {
			l++
		}
		m = rem % 3
		if m == 0 {
			m = 3
		}
	}
	return fmt.Sprintf("%d-%d-%d", k, l, m)
}

// FreeRuns returns the start positions where span consecutive free slots are
// available.
func FreeRuns(slots []model.SDHSlot, span int) []int {
	if span < 1 {
		return nil
	}
	var starts []int
	run := 0
	for i, s := range slots {
		if s.Free() {
			run++
		} else {
			run = 0
		}
		if run >= span {
			starts = append(starts, i+1-span+1)
		}
	}
	return starts
}
