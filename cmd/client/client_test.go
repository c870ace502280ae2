package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	var gotAuth, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"echo": in["name"], "path": r.URL.Path})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "secret")
	var out map[string]string
	require.NoError(t, c.Post(context.Background(), "/api/objects", map[string]string{"name": "rack-1"}, &out))

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "rack-1", out["echo"])
	assert.Equal(t, "/api/objects", out["path"])
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":"object has relationships"}`))
		case "/plain":
			http.Error(w, "nope", http.StatusBadGateway)
		case "/empty":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()
	c := New(srv.URL, "")

	tests := []struct {
		path   string
		status int
		msg    string
	}{
		{"/json", http.StatusConflict, "object has relationships"},
		{"/plain", http.StatusBadGateway, "nope"},
		{"/empty", http.StatusNotFound, "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := c.Get(context.Background(), tt.path, nil)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.msg, apiErr.Message)
		})
	}

	var out map[string]string
	assert.NoError(t, c.Delete(context.Background(), "/gone"))
	assert.NoError(t, c.Get(context.Background(), "/gone", &out))
	assert.Nil(t, out)
}

func TestParseAttributes(t *testing.T) {
	attrs, err := ParseAttributes("vendor=Cisco, rackUnits = 2,description=")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"vendor": "Cisco", "rackUnits": "2", "description": ""}, attrs)

	attrs, err = ParseAttributes("  ")
	require.NoError(t, err)
	assert.Empty(t, attrs)

	_, err = ParseAttributes("vendor")
	assert.Error(t, err)
	_, err = ParseAttributes("=x")
	assert.Error(t, err)
}
