package metadata

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ContainsDomainClasses(t *testing.T) {
	h := Default()
	for _, name := range []string{
		"GenericCommunicationsElement", "GenericPort", "Rack", "OpticalPort",
		"GenericSDHTransportLink", "GenericSDHHighOrderContainerLink",
		"GenericSDHLowOrderTributaryLink", "VC4-4", "VC12TributaryLink",
	} {
		assert.True(t, h.Exists(name), "missing class %s", name)
	}
}

func TestIsSubclassOf(t *testing.T) {
	h := Default()
	tests := []struct {
		class, super string
		want         bool
	}{
		{"STM16", "GenericSDHTransportLink", true},
		{"VC4-4", "GenericSDHContainerLink", true},
		{"VC4-4", "GenericSDHHighOrderContainerLink", true},
		{"VC12", "GenericSDHHighOrderContainerLink", false},
		{"Router", "GenericCommunicationsElement", true},
		{"Router", "Router", true},
		{"OpticalPort", "GenericCommunicationsElement", false},
		{"Unknown", "InventoryObject", false},
	}
	for _, tt := range tests {
		t.Run(tt.class+"/"+tt.super, func(t *testing.T) {
			assert.Equal(t, tt.want, h.IsSubclassOf(tt.class, tt.super))
		})
	}
}

func TestPossibleChildren_Inherited(t *testing.T) {
	h := Default()
	children, err := h.PossibleChildren("Router")
	require.NoError(t, err)
	assert.Contains(t, children, "Slot")
	assert.True(t, h.CanContain("Router", "OpticalPort"))
	assert.True(t, h.CanContain("Slot", "IPBoard"))
	assert.False(t, h.CanContain("OpticalPort", "Router"))

	_, err = h.PossibleChildren("Nope")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestAddPossibleChildren(t *testing.T) {
	h := Default()

	added, err := h.AddPossibleChildren("Transceiver", "OpticalPort", "OpticalPort")
	require.NoError(t, err)
	assert.Equal(t, []string{"OpticalPort"}, added)

	added, err = h.AddPossibleChildren("Transceiver", "OpticalPort")
	require.NoError(t, err)
	assert.Empty(t, added)

	_, err = h.AddPossibleChildren("Transceiver", "Missing")
	assert.ErrorIs(t, err, ErrClassNotFound)

	added, err = h.AddPossibleChildren("Router", "Slot", "Transceiver")
	require.NoError(t, err)
	assert.Equal(t, []string{"Transceiver"}, added, "Slot is inherited from GenericCommunicationsElement")
	router, err := h.Get("Router")
	require.NoError(t, err)
	assert.Equal(t, []string{"Transceiver"}, router.PossibleChildren)
}

func TestSubclasses(t *testing.T) {
	h := Default()
	assert.Equal(t, []string{"VC4", "VC4-16", "VC4-4", "VC4-64"}, h.Subclasses("GenericSDHHighOrderContainerLink"))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown parent", "classes:\n  - name: A\n    parent: B\n"},
		{"duplicate", "classes:\n  - name: A\n  - name: A\n"},
		{"unknown child", "classes:\n  - name: A\n    possibleChildren: [C]\n"},
		{"cycle", "classes:\n  - name: A\n    parent: B\n  - name: B\n    parent: A\n"},
		{"missing name", "classes:\n  - parent: A\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidHierarchy)
		})
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	h := Default()
	_, err := h.AddPossibleChildren("Transceiver", "OpticalPort")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "classes.yaml")
	require.NoError(t, h.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, loaded.CanContain("Transceiver", "OpticalPort"))
	assert.Len(t, loaded.Classes(), len(h.Classes()))
}

func TestWatch_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classes:\n  - name: A\n"), 0644))

	h, err := LoadFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan error, 4)
	require.NoError(t, Watch(ctx, h, path, func(err error) { reloaded <- err }))

	require.NoError(t, os.WriteFile(path, []byte("classes:\n  - name: A\n  - name: B\n    parent: A\n"), 0644))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("hierarchy was not reloaded")
	}
	assert.True(t, h.IsSubclassOf("B", "A"))
}
