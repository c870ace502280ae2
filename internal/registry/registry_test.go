package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/martinsuchenak/invd/internal/config"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/syncer"
)

type stubSource struct{ name string }

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Findings(context.Context, *model.BusinessObject) ([]model.SyncFinding, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := New()
	r.RegisterSource("b", func(cfg *config.Config, deps Dependencies) (syncer.Source, error) {
		return &stubSource{name: "b"}, nil
	})
	r.RegisterSource("a", func(cfg *config.Config, deps Dependencies) (syncer.Source, error) {
		return nil, errors.New("not configured")
	})

	if got := r.Sources(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Sources() = %v, want [a b]", got)
	}

	src, err := r.NewSource("b", &config.Config{}, Dependencies{})
	if err != nil {
		t.Fatalf("NewSource(b) error = %v", err)
	}
	if src.Name() != "b" {
		t.Errorf("source name = %q, want b", src.Name())
	}

	if _, err := r.NewSource("a", &config.Config{}, Dependencies{}); err == nil {
		t.Error("expected factory error to be returned")
	}

	_, err = r.NewSource("missing", &config.Config{}, Dependencies{})
	if err == nil || !strings.Contains(err.Error(), "registered: [a b]") {
		t.Errorf("unexpected error for unknown source: %v", err)
	}
}

func TestGetRegistryIsShared(t *testing.T) {
	if GetRegistry() != GetRegistry() {
		t.Error("GetRegistry returned different instances")
	}
}
