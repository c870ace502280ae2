package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paularlott/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsuchenak/invd/internal/metadata"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/storage"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewServer(store, metadata.Default(), nil, token)
}

func TestHandleRequestRequiresToken(t *testing.T) {
	s := newTestServer(t, "mcp-secret")

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic mcp-secret"},
		{"wrong token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/mcp", strings.NewReader("{}"))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.HandleRequest(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestCheckPlacement(t *testing.T) {
	s := newTestServer(t, "")
	router := &model.BusinessObject{ClassName: "Router", Name: "core-1"}
	require.NoError(t, s.storage.CreateObject(router))

	assert.NoError(t, s.checkPlacement("Slot", router.ID))
	assert.Error(t, s.checkPlacement("Rack", router.ID))
	assert.Error(t, s.checkPlacement("GenericPort", ""))
	assert.Error(t, s.checkPlacement("Spaceship", ""))
	assert.ErrorIs(t, s.checkPlacement("Slot", "missing"), storage.ErrObjectNotFound)
}

func TestHandleObjectListMatchesNameSubstring(t *testing.T) {
	s := newTestServer(t, "")
	for _, name := range []string{"core-router-1", "Edge-Router-2", "switch-1"} {
		require.NoError(t, s.storage.CreateObject(&model.BusinessObject{ClassName: "Router", Name: name}))
	}

	resp, err := s.handleObjectList(context.Background(), mcp.NewToolRequest(map[string]interface{}{"name": "router"}))
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	text := resp.Content[0].Text
	assert.Contains(t, text, "Found 2 objects")
	assert.Contains(t, text, "core-router-1")
	assert.Contains(t, text, "Edge-Router-2")
	assert.NotContains(t, text, "switch-1")
}

func TestFormatObject(t *testing.T) {
	obj := &model.BusinessObject{
		ID: "r1", ClassName: "Router", Name: "core-1",
		Attributes: map[string]string{"vendor": "Cisco", "model": "7606"},
	}
	out := formatObject(obj, []model.BusinessObject{{ID: "s1", ClassName: "Slot", Name: "slot 1"}})
	assert.Contains(t, out, "core-1 [Router]")
	assert.Less(t, strings.Index(out, "model: 7606"), strings.Index(out, "vendor: Cisco"))
	assert.Contains(t, out, "- slot 1 [Slot] (ID: s1)")
}

func TestFormatStructure(t *testing.T) {
	assert.Equal(t, "The link carries no containers", formatStructure(nil))

	out := formatStructure([]model.SDHContainerLinkDefinition{{
		Container:  model.BusinessObject{Name: "vc4-1", ClassName: "VC4"},
		Structured: true,
		Positions:  []model.SDHPosition{{Position: 3}},
	}})
	assert.Contains(t, out, "- vc4-1 [VC4] at 3, structured")
}

func TestFormatLayout(t *testing.T) {
	out := formatLayout(&model.RackLayout{
		RackName: "R1", RackUnits: 10, UsedUnits: 2, Usage: 20,
		Devices:  []model.RackDevice{{Name: "r1", ClassName: "Router", Position: 1, Units: 2}},
		Warnings: []string{"overlap"},
	})
	assert.Contains(t, out, "Rack R1: 10 units, 2 used (20.0%)")
	assert.Contains(t, out, "U1 (2 units): r1 [Router]")
	assert.Contains(t, out, "Warning: overlap")
}
