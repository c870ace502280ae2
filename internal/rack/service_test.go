package rack

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsuchenak/invd/internal/metadata"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/storage"
)

type fixture struct {
	store *storage.SQLiteStorage
	svc   *Service
	rack  *model.BusinessObject
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store, svc: NewService(store, metadata.Default())}
	f.rack = f.create(t, "Rack", "R1", "", map[string]string{
		model.AttrRackUnits: "10",
		model.AttrNumbering: "false",
	})
	return f
}

func (f *fixture) create(t *testing.T, class, name, parent string, attrs map[string]string) *model.BusinessObject {
	t.Helper()
	obj := &model.BusinessObject{ClassName: class, Name: name, ParentID: parent, Attributes: attrs}
	require.NoError(t, f.store.CreateObject(obj))
	return obj
}

func placement(position, units string) map[string]string {
	return map[string]string{model.AttrPosition: position, model.AttrRackUnits: units}
}

func TestServiceLayout(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Router", "r1", f.rack.ID, placement("1", "2"))
	f.create(t, "Switch", "s1", f.rack.ID, placement("5", "1"))

	layout, err := f.svc.Layout(f.rack.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, layout.RackUnits)
	assert.Equal(t, 3, layout.UsedUnits)
	require.Len(t, layout.Devices, 2)
	assert.Equal(t, "r1", layout.Devices[0].Name)
	assert.Equal(t, 4, layout.Devices[1].DrawOffset)
}

func TestServiceValidate(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Router", "r1", f.rack.ID, placement("1", "3"))
	f.create(t, "Router", "r2", f.rack.ID, placement("2", "1"))

	problems, err := f.svc.Validate(f.rack.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"The Position 2 set in the r2 [Router] is used by the r1 [Router]"}, problems)

	_, err = f.svc.Layout(f.rack.ID)
	assert.ErrorIs(t, err, ErrInvalidRack)

	notRack := f.create(t, "Room", "room", "", nil)
	_, err = f.svc.Validate(notRack.ID)
	assert.ErrorIs(t, err, ErrInvalidRack)

	_, err = f.svc.Validate("missing")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestServiceAddMoveFree(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Router", "r1", f.rack.ID, placement("1", "2"))
	sw := f.create(t, "Switch", "s1", "", map[string]string{model.AttrRackUnits: "2"})

	err := f.svc.AddEquipment(f.rack.ID, sw.ID, 2)
	assert.ErrorIs(t, err, ErrNotRackable)

	require.NoError(t, f.svc.AddEquipment(f.rack.ID, sw.ID, 3))
	got, err := f.store.GetObject(sw.ID)
	require.NoError(t, err)
	assert.Equal(t, f.rack.ID, got.ParentID)
	assert.Equal(t, "3", got.Attributes[model.AttrPosition])

	err = f.svc.MoveEquipment(f.rack.ID, sw.ID, 2)
	assert.ErrorIs(t, err, ErrCannotMove)
	require.NoError(t, f.svc.MoveEquipment(f.rack.ID, sw.ID, 4))
	got, _ = f.store.GetObject(sw.ID)
	assert.Equal(t, "4", got.Attributes[model.AttrPosition])

	require.NoError(t, f.svc.FreeEquipmentRackUnits(f.rack.ID, sw.ID))
	layout, err := f.svc.Layout(f.rack.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, layout.UsedUnits)
	assert.ErrorIs(t, f.svc.FreeEquipmentRackUnits(f.rack.ID, sw.ID), ErrNotInRack)

	port := f.create(t, "OpticalPort", "p", "", map[string]string{model.AttrRackUnits: "1"})
	assert.ErrorIs(t, f.svc.AddEquipment(f.rack.ID, port.ID, 9), ErrNotRackable)
}

func TestServiceConnections(t *testing.T) {
	f := newFixture(t)
	r1 := f.create(t, "Router", "r1", f.rack.ID, placement("1", "1"))
	r2 := f.create(t, "Router", "r2", f.rack.ID, placement("2", "1"))
	slot := f.create(t, "Slot", "slot0", r1.ID, nil)
	p1 := f.create(t, "OpticalPort", "ge-0/0/1", slot.ID, nil)
	p2 := f.create(t, "OpticalPort", "ge-0/0/2", r2.ID, nil)
	p3 := f.create(t, "OpticalPort", "ge-0/0/3", r2.ID, nil)
	outside := f.create(t, "Router", "remote", "", nil)
	pOut := f.create(t, "OpticalPort", "xe-1", outside.ID, nil)

	relate := func(link, port *model.BusinessObject, name string) {
		require.NoError(t, f.store.CreateSpecialRelationship(&model.SpecialRelationship{
			Name: name, SourceID: link.ID, TargetID: port.ID,
		}))
	}

	inside := f.create(t, "OpticalLink", "inside", "", nil)
	relate(inside, p1, model.RelEndpointA)
	relate(inside, p2, model.RelEndpointB)

	uplink := f.create(t, "OpticalLink", "uplink", "", nil)
	relate(uplink, p3, model.RelEndpointA)
	relate(uplink, pOut, model.RelEndpointB)

	dangling := f.create(t, "OpticalLink", "dangling", "", nil)
	relate(dangling, p3, model.RelEndpointB)

	rows, warnings, err := f.svc.Connections(f.rack.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.RackConnection{
		{LinkID: inside.ID, LinkName: "inside", SourceDevice: "r1", SourcePort: "ge-0/0/1", TargetDevice: "r2", TargetPort: "ge-0/0/2"},
		{LinkID: uplink.ID, LinkName: "uplink", SourceDevice: "r2", SourcePort: "ge-0/0/3", TargetDevice: "remote", TargetPort: "xe-1"},
	}, rows)
	assert.Equal(t, []string{"The endpointA was removed in the link dangling [OpticalLink]"}, warnings)
}

func TestServiceAddEquipmentConcurrent(t *testing.T) {
	f := newFixture(t)
	classes := metadata.Default()

	for round := 0; round < 20; round++ {
		rackObj := f.create(t, "Rack", "rack", "", map[string]string{model.AttrRackUnits: "10"})
		a := f.create(t, "Router", "a", "", map[string]string{model.AttrRackUnits: "3"})
		b := f.create(t, "Router", "b", "", map[string]string{model.AttrRackUnits: "3"})

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, placed := range []struct {
			id       string
			position int
		}{{a.ID, 1}, {b.ID, 3}} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = NewService(f.store, classes).AddEquipment(rackObj.ID, placed.id, placed.position)
			}()
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, ErrNotRackable)
				failed++
			}
		}
		assert.Equal(t, 1, failed, "round %d: exactly one overlapping device fits", round)

		problems, err := f.svc.Validate(rackObj.ID)
		require.NoError(t, err)
		assert.Empty(t, problems, "round %d", round)
	}
}

type failingUpdates struct {
	*storage.SQLiteStorage
}

func (failingUpdates) UpdateObject(string, map[string]string) error {
	return errors.New("disk full")
}

func TestServiceAddEquipmentRestoresParent(t *testing.T) {
	f := newFixture(t)
	room := f.create(t, "Room", "room", "", nil)
	sw := f.create(t, "Switch", "s1", room.ID, map[string]string{model.AttrRackUnits: "1"})

	svc := NewService(failingUpdates{f.store}, metadata.Default())
	assert.EqualError(t, svc.AddEquipment(f.rack.ID, sw.ID, 1), "disk full")

	got, err := f.store.GetObject(sw.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ParentID)
	assert.Empty(t, got.Attributes[model.AttrPosition])
}
