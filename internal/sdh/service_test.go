package sdh

import (
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
	admA  *model.BusinessObject
	admB  *model.BusinessObject
	ports map[string]*model.BusinessObject
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store, svc: NewService(store, metadata.Default()), ports: map[string]*model.BusinessObject{}}
	f.admA = f.create(t, "ADM", "adm-a", "")
	f.admB = f.create(t, "ADM", "adm-b", "")
	for _, name := range []string{"a1", "a2", "a3"} {
		slot := f.create(t, "Slot", "slot-"+name, f.admA.ID)
		f.ports[name] = f.create(t, "OpticalPort", name, slot.ID)
	}
	for _, name := range []string{"b1", "b2", "b3"} {
		f.ports[name] = f.create(t, "OpticalPort", name, f.admB.ID)
	}
	return f
}

func (f *fixture) create(t *testing.T, class, name, parent string) *model.BusinessObject {
	t.Helper()
	obj := &model.BusinessObject{ClassName: class, Name: name, ParentID: parent}
	require.NoError(t, f.store.CreateObject(obj))
	return obj
}

func (f *fixture) exists(t *testing.T, id string) bool {
	t.Helper()
	_, err := f.store.GetObject(id)
	if err == nil {
		return true
	}
	require.ErrorIs(t, err, storage.ErrObjectNotFound)
	return false
}

func TestCreateTransportLink(t *testing.T) {
	f := newFixture(t)

	link, err := f.svc.CreateTransportLink(f.ports["a1"].ID, f.ports["b1"].ID, "STM16", "a-b")
	require.NoError(t, err)
	assert.Equal(t, "STM16", link.ClassName)
	assert.Equal(t, "a-b", link.Name)

	endA, err := f.store.GetSpecialAttribute(link.ID, RelTLEndpointA, model.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, endA, 1)
	assert.Equal(t, f.ports["a1"].ID, endA[0].ID)

	fromA, err := f.store.GetSpecialAttribute(f.admA.ID, RelTransportLink, model.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, fromA, 1)
	assert.Equal(t, link.ID, fromA[0].ID)

	toB, err := f.store.GetSpecialAttribute(link.ID, RelTransportLink, model.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, toB, 1)
	assert.Equal(t, f.admB.ID, toB[0].ID)
}

func TestCreateTransportLinkErrors(t *testing.T) {
	f := newFixture(t)
	loose := f.create(t, "OpticalPort", "loose", "")

	_, err := f.svc.CreateTransportLink(f.ports["a1"].ID, f.ports["b1"].ID, "VC4", "")
	assert.ErrorIs(t, err, ErrInvalidClass)

	_, err = f.svc.CreateTransportLink(loose.ID, f.ports["b1"].ID, "STM1", "")
	assert.ErrorIs(t, err, ErrNoEquipment)

	_, err = f.svc.CreateTransportLink("missing", f.ports["b1"].ID, "STM1", "")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	links, err := f.store.ListObjects(&model.ObjectFilter{ClassName: "STM1"})
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestContainerAndTributaryLifecycle(t *testing.T) {
	f := newFixture(t)

	stm, err := f.svc.CreateTransportLink(f.ports["a1"].ID, f.ports["b1"].ID, "STM16", "stm")
	require.NoError(t, err)

	vc4, err := f.svc.CreateContainerLink(f.admA.ID, f.admB.ID, "VC4",
		[]model.SDHPosition{{LinkClass: "STM16", LinkID: stm.ID, Position: 1}}, "vc4-1")
	require.NoError(t, err)

	structure, err := f.svc.GetTransportLinkStructure(stm.ID)
	require.NoError(t, err)
	require.Len(t, structure, 1)
	assert.Equal(t, vc4.ID, structure[0].Container.ID)
	assert.True(t, structure[0].Structured)
	assert.Equal(t, []model.SDHPosition{{LinkClass: "STM16", LinkID: stm.ID, Position: 1}}, structure[0].Positions)

	_, err = f.svc.CreateContainerLink(f.admA.ID, f.admB.ID, "VC4-4",
		[]model.SDHPosition{{LinkID: stm.ID, Position: 1}}, "")
	assert.ErrorIs(t, err, ErrPositionInUse)

	vc12, err := f.svc.CreateTributaryLink(f.ports["a2"].ID, f.ports["b2"].ID, "VC12TributaryLink",
		[]model.SDHPosition{{LinkClass: "VC4", LinkID: vc4.ID, Position: 1}}, "e1")
	require.NoError(t, err)

	inner, err := f.svc.GetContainerLinkStructure(vc4.ID)
	require.NoError(t, err)
	require.Len(t, inner, 1)
	assert.Equal(t, "VC12", inner[0].Container.ClassName)
	assert.False(t, inner[0].Structured)

	delivered, err := f.store.GetSpecialAttribute(inner[0].Container.ID, RelDelivers, model.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, delivered, 1)
	assert.Equal(t, vc12.ID, delivered[0].ID)

	_, err = f.svc.CreateTributaryLink(f.ports["a3"].ID, f.ports["b3"].ID, "VC3TributaryLink",
		[]model.SDHPosition{{LinkID: vc4.ID, Position: 1}}, "")
	assert.ErrorIs(t, err, ErrPositionInUse)
	_, err = f.svc.CreateTributaryLink(f.ports["a3"].ID, f.ports["b3"].ID, "VC3TributaryLink",
		[]model.SDHPosition{{LinkID: vc4.ID, Position: 50}}, "")
	assert.ErrorIs(t, err, ErrNotEnoughPositions)
	vc3, err := f.svc.CreateTributaryLink(f.ports["a3"].ID, f.ports["b3"].ID, "VC3TributaryLink",
		[]model.SDHPosition{{LinkID: vc4.ID, Position: 22}}, "vc3")
	require.NoError(t, err)

	slots, err := f.svc.Slots(vc4.ID)
	require.NoError(t, err)
	require.Len(t, slots, 63)
	assert.False(t, slots[0].Free())
	assert.True(t, slots[1].Free())
	assert.False(t, slots[41].Free())
	assert.True(t, slots[42].Free())

	hoTrib, err := f.svc.CreateTributaryLink(f.ports["a2"].ID, f.ports["b2"].ID, "VC4TributaryLink",
		[]model.SDHPosition{{LinkID: stm.ID, Position: 16}}, "ho")
	require.NoError(t, err)

	structure, err = f.svc.GetTransportLinkStructure(stm.ID)
	require.NoError(t, err)
	require.Len(t, structure, 2)
	assert.False(t, structure[1].Structured)

	// a low order tributary cannot sit directly on a transport link
	_, err = f.svc.CreateTributaryLink(f.ports["a2"].ID, f.ports["b2"].ID, "VC12TributaryLink",
		[]model.SDHPosition{{LinkID: stm.ID, Position: 2}}, "")
	assert.ErrorIs(t, err, ErrInvalidClass)

	require.NoError(t, f.svc.DeleteTransportLink(stm.ID))
	for _, id := range []string{stm.ID, vc4.ID, vc12.ID, vc3.ID, hoTrib.ID, inner[0].Container.ID} {
		assert.False(t, f.exists(t, id), "object %s should be gone", id)
	}
	for _, port := range f.ports {
		assert.True(t, f.exists(t, port.ID))
	}
}

func TestDeleteTributaryLink(t *testing.T) {
	f := newFixture(t)
	stm, err := f.svc.CreateTransportLink(f.ports["a1"].ID, f.ports["b1"].ID, "STM1", "")
	require.NoError(t, err)
	trib, err := f.svc.CreateTributaryLink(f.ports["a2"].ID, f.ports["b2"].ID, "VC4TributaryLink",
		[]model.SDHPosition{{LinkID: stm.ID, Position: 1}}, "")
	require.NoError(t, err)

	containers, err := f.store.GetSpecialAttribute(trib.ID, RelDelivers, model.DirectionIncoming)
	require.NoError(t, err)
	require.Len(t, containers, 1)

	require.NoError(t, f.svc.DeleteTributaryLink(trib.ID))
	assert.False(t, f.exists(t, trib.ID))
	assert.False(t, f.exists(t, containers[0].ID))
	assert.True(t, f.exists(t, stm.ID))

	structure, err := f.svc.GetTransportLinkStructure(stm.ID)
	require.NoError(t, err)
	assert.Empty(t, structure)

	assert.ErrorIs(t, f.svc.DeleteTributaryLink(stm.ID), ErrInvalidClass)
}

func TestDeleteStructuredContainer(t *testing.T) {
	f := newFixture(t)
	stm, err := f.svc.CreateTransportLink(f.ports["a1"].ID, f.ports["b1"].ID, "STM4", "")
	require.NoError(t, err)
	vc4, err := f.svc.CreateContainerLink(f.admA.ID, f.admB.ID, "VC4",
		[]model.SDHPosition{{LinkID: stm.ID, Position: 2}}, "")
	require.NoError(t, err)
	trib, err := f.svc.CreateTributaryLink(f.ports["a2"].ID, f.ports["b2"].ID, "VC12TributaryLink",
		[]model.SDHPosition{{LinkID: vc4.ID, Position: 5}}, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteContainerLink(vc4.ID))
	assert.False(t, f.exists(t, vc4.ID))
	assert.False(t, f.exists(t, trib.ID))
	assert.True(t, f.exists(t, stm.ID))
}

func TestStructureRequiresPosition(t *testing.T) {
	f := newFixture(t)
	stm, err := f.svc.CreateTransportLink(f.ports["a1"].ID, f.ports["b1"].ID, "STM1", "")
	require.NoError(t, err)
	vc4 := f.create(t, "VC4", "bare", "")
	require.NoError(t, f.store.CreateSpecialRelationship(&model.SpecialRelationship{
		Name: RelTransports, SourceID: stm.ID, TargetID: vc4.ID,
	}))

	_, err = f.svc.GetTransportLinkStructure(stm.ID)
	assert.ErrorIs(t, err, ErrMissingPosition)

	_, err = f.svc.GetContainerLinkStructure(stm.ID)
	assert.ErrorIs(t, err, ErrInvalidClass)
}

func TestFindRoutes(t *testing.T) {
	f := newFixture(t)
	admC := f.create(t, "ADM", "adm-c", "")
	portC1 := f.create(t, "OpticalPort", "c1", admC.ID)
	portC2 := f.create(t, "OpticalPort", "c2", admC.ID)

	_, err := f.svc.CreateTransportLink(f.ports["a1"].ID, f.ports["b1"].ID, "STM16", "ab")
	require.NoError(t, err)
	_, err = f.svc.CreateTransportLink(f.ports["b2"].ID, portC1.ID, "STM16", "bc")
	require.NoError(t, err)
	_, err = f.svc.CreateTransportLink(portC2.ID, f.ports["a2"].ID, "STM4", "ca")
	require.NoError(t, err)

	routes, err := f.svc.FindRoutesUsingTransportLinks(f.admA.ID, admC.ID)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Len(t, routes[0].Hops, 3)
	assert.Equal(t, "ca", routes[0].Hops[1].Name)
	assert.Len(t, routes[1].Hops, 5)

	routes, err = f.svc.FindRoutesUsingContainerLinks(f.admA.ID, admC.ID)
	require.NoError(t, err)
	assert.Empty(t, routes)

	_, err = f.svc.FindRoutesUsingTransportLinks(f.ports["a1"].ID, admC.ID)
	assert.ErrorIs(t, err, ErrInvalidClass)
}

func TestCreateContainerLinkConcurrent(t *testing.T) {
	f := newFixture(t)
	classes := metadata.Default()

	for round := 0; round < 10; round++ {
		stm, err := f.svc.CreateTransportLink(f.ports["a1"].ID, f.ports["b1"].ID, "STM1", "stm")
		require.NoError(t, err)
		positions := []model.SDHPosition{{LinkClass: "STM1", LinkID: stm.ID, Position: 1}}

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = NewService(f.store, classes).CreateContainerLink(f.admA.ID, f.admB.ID, "VC4", positions, "vc4")
			}()
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, ErrPositionInUse)
				failed++
			}
		}
		assert.Equal(t, 1, failed, "round %d: one container per position", round)

		structure, err := f.svc.GetTransportLinkStructure(stm.ID)
		require.NoError(t, err)
		assert.Len(t, structure, 1, "round %d", round)
	}
}
