package sdh

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/martinsuchenak/invd/internal/model"
)

func TestTransportLinkCapacity(t *testing.T) {
	tests := map[string]int{
		"STM1":   1,
		"STM4":   4,
		"STM16":  16,
		"STM256": 256,
		"STMx":   -1,
		"Router": -1,
	}
	for class, want := range tests {
		assert.Equal(t, want, TransportLinkCapacity(class), class)
	}
}

func TestContainerLinkCapacity(t *testing.T) {
	tests := map[string]int{
		"VC4":    1,
		"VC4-4":  4,
		"VC4-16": 16,
		"VC4-64": 64,
		"VC4x":   -1,
	}
	for class, want := range tests {
		assert.Equal(t, want, ContainerLinkCapacity(class), class)
	}
}

func TestSlotsOccupied(t *testing.T) {
	tests := []struct {
		class   string
		want    int
		wantErr bool
	}{
		{"VC4", 1, false},
		{"VC4-4", 4, false},
		{"VC4TributaryLink", 1, false},
		{"VC4-16TributaryLink", 16, false},
		{"VC12TributaryLink", 1, false},
		{"VC3TributaryLink", 21, false},
		{"VC3-2", 42, false},
		{"VC12-0", 1, false},
		{"VC11", 0, true},
		{"STM1", 0, true},
		{"VC4-x", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			got, err := SlotsOccupied(tt.class)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClass)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKLM(t *testing.T) {
	tests := map[int]string{
		1:  "1-1-1",
		2:  "1-1-2",
		3:  "1-1-3",
		4:  "1-2-1",
		20: "1-7-2",
		21: "1-7-3",
		22: "2-1-1",
		42: "2-7-3",
		63: "3-7-3",
	}
	for position, want := range tests {
		assert.Equal(t, want, KLM(position), "position %d", position)
	}
}

func container(id, class string, position int) model.SDHContainerLinkDefinition {
	return model.SDHContainerLinkDefinition{
		Container: model.BusinessObject{ID: id, ClassName: class, Name: id},
		Positions: []model.SDHPosition{{Position: position}},
	}
}

func TestTransportLinkSlots(t *testing.T) {
	slots, err := TransportLinkSlots("STM16", []model.SDHContainerLinkDefinition{
		container("c1", "VC4", 1),
		container("c2", "VC4-4", 3),
	})
	require.NoError(t, err)
	require.Len(t, slots, 16)

	used := map[int]string{}
	for _, s := range slots {
		if !s.Free() {
			used[s.Position] = s.Container
		}
	}
	assert.Equal(t, map[int]string{1: "c1", 3: "c2", 4: "c2", 5: "c2", 6: "c2"}, used)
	assert.Equal(t, "7", slots[6].Label)

	_, err = TransportLinkSlots("STM1", []model.SDHContainerLinkDefinition{container("c", "VC4-4", 1)})
	assert.ErrorIs(t, err, ErrPositionOutOfRange)

	_, err = TransportLinkSlots("STMx", nil)
	assert.ErrorIs(t, err, ErrInvalidClass)
}

func TestSlotsRejectDoubleBooking(t *testing.T) {
	_, err := TransportLinkSlots("STM4", []model.SDHContainerLinkDefinition{
		container("c1", "VC4", 2),
		container("c2", "VC4-2", 1),
	})
	assert.ErrorIs(t, err, ErrPositionInUse)

	_, err = ContainerLinkSlots("VC4", []model.SDHContainerLinkDefinition{
		container("vc3", "VC3", 1),
		container("vc12", "VC12", 5),
	})
	assert.ErrorIs(t, err, ErrPositionInUse)
}

func TestContainerLinkSlots(t *testing.T) {
	slots, err := ContainerLinkSlots("VC4", []model.SDHContainerLinkDefinition{
		container("vc12", "VC12", 1),
		container("vc3", "VC3", 22),
	})
	require.NoError(t, err)
	require.Len(t, slots, 63)

	assert.Equal(t, "vc12", slots[0].Container)
	assert.True(t, slots[1].Free())
	for p := 22; p <= 42; p++ {
		assert.Equal(t, "vc3", slots[p-1].Container, "position %d", p)
	}
	assert.True(t, slots[42].Free())
	assert.Equal(t, "2-1-1", slots[21].Label)

	slots, err = ContainerLinkSlots("VC4-4", nil)
	require.NoError(t, err)
	assert.Len(t, slots, 252)
}

func TestCheckPosition(t *testing.T) {
	slots, err := TransportLinkSlots("STM4", []model.SDHContainerLinkDefinition{container("c", "VC4", 2)})
	require.NoError(t, err)

	tests := []struct {
		name  string
		start int
		span  int
		want  error
	}{
		{"first slot", 1, 1, nil},
		{"last slot", 4, 1, nil},
		{"two at the end", 3, 2, nil},
		{"occupied", 2, 1, ErrPositionInUse},
		{"overlaps occupied", 1, 2, ErrPositionInUse},
		{"past the end", 4, 2, ErrNotEnoughPositions},
		{"zero", 0, 1, ErrPositionOutOfRange},
		{"beyond capacity", 5, 1, ErrPositionOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPosition(slots, tt.start, tt.span)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestFreeRuns(t *testing.T) {
	slots, err := TransportLinkSlots("STM4", []model.SDHContainerLinkDefinition{container("c", "VC4", 2)})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 4}, FreeRuns(slots, 1))
	assert.Equal(t, []int{3}, FreeRuns(slots, 2))
	assert.Empty(t, FreeRuns(slots, 3))
}

// Placing containers only where CheckPosition allows never assigns a slot
// twice, and every start FreeRuns reports is accepted by CheckPosition.
func TestPlacementProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.SampledFrom([]int{1, 4, 16, 64}).Draw(t, "capacity")
		attempts := rapid.IntRange(1, 30).Draw(t, "attempts")

		var structure []model.SDHContainerLinkDefinition
		used := 0
		for i := 0; i < attempts; i++ {
			span := rapid.SampledFrom([]int{1, 4, 16}).Draw(t, "span")
			start := rapid.IntRange(1, capacity).Draw(t, "start")

			slots, err := TransportLinkSlots(fmt.Sprintf("STM%d", capacity), structure)
			if err != nil {
				t.Fatalf("laying out accepted structure: %v", err)
			}
			for _, s := range FreeRuns(slots, span) {
				if err := CheckPosition(slots, s, span); err != nil {
					t.Fatalf("FreeRuns offered %d for span %d but CheckPosition said %v", s, span, err)
				}
			}
			if CheckPosition(slots, start, span) != nil {
				continue
			}
			class := "VC4"
			if span > 1 {
				class = fmt.Sprintf("VC4-%d", span)
			}
			structure = append(structure, container(fmt.Sprintf("c%d", i), class, start))
			used += span
		}

		slots, err := TransportLinkSlots(fmt.Sprintf("STM%d", capacity), structure)
		if err != nil {
			t.Fatalf("final layout: %v", err)
		}
		taken := 0
		for _, s := range slots {
			if !s.Free() {
				taken++
			}
		}
		if taken != used {
			t.Fatalf("%d slots taken, want %d", taken, used)
		}
	})
}
