package snmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/martinsuchenak/invd/internal/config"
	"github.com/martinsuchenak/invd/internal/model"
	"github.com/martinsuchenak/invd/internal/registry"
	"github.com/martinsuchenak/invd/internal/syncer"
)

// Source names
const (
	SourceSNMP = "snmp"
	SourceFile = "file"
)

// ErrNoManagementIP is returned for devices that can not be polled
var ErrNoManagementIP = errors.New("device has no management IP")

func init() {
	r := registry.GetRegistry()
	r.RegisterSource(SourceSNMP, func(cfg *config.Config, deps registry.Dependencies) (syncer.Source, error) {
		return NewSNMPSource(NewPoller(Settings{
			Community: cfg.SNMPCommunity,
			Port:      cfg.SNMPPort,
			Version:   cfg.SNMPVersion,
			Timeout:   cfg.SNMPTimeout,
			Retries:   cfg.SNMPRetries,
		}), NewProcessor(deps.Store, deps.Classes)), nil
	})
	r.RegisterSource(SourceFile, func(cfg *config.Config, deps registry.Dependencies) (syncer.Source, error) {
		if cfg.SyncFileDir == "" {
			return nil, errors.New("the file source needs a directory")
		}
		return NewFileSource(cfg.SyncFileDir, NewProcessor(deps.Store, deps.Classes)), nil
	})
}

// TablePoller reads the entity table of a device
type TablePoller interface {
	Poll(ctx context.Context, target, community string) (*EntityTable, error)
}

// SNMPSource polls devices at their management IP
type SNMPSource struct {
	poller    TablePoller
	processor *Processor
}

// NewSNMPSource creates an SNMP finding source
func NewSNMPSource(poller TablePoller, processor *Processor) *SNMPSource {
	return &SNMPSource{poller: poller, processor: processor}
}

func (s *SNMPSource) Name() string { return SourceSNMP }

// Findings polls the device and compares the table with the inventory
func (s *SNMPSource) Findings(ctx context.Context, device *model.BusinessObject) ([]model.SyncFinding, error) {
	target := device.Attribute(model.AttrManagementIP)
	if target == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoManagementIP, device)
	}
	community := syncer.CommunityFrom(ctx)
	if community == "" {
		community = device.Attribute(model.AttrCommunity)
	}
	table, err := s.poller.Poll(ctx, target, community)
	if err != nil {
		return nil, err
	}
	return s.processor.Process(device, table)
}

// FileSource reads entity table dumps named after the device: <name>.yaml,
// <name>.yml or <name>.json, falling back to the device ID.
type FileSource struct {
	dir       string
	processor *Processor
}

// NewFileSource creates a file finding source reading from dir
func NewFileSource(dir string, processor *Processor) *FileSource {
	return &FileSource{dir: dir, processor: processor}
}

func (s *FileSource) Name() string { return SourceFile }

// Findings loads the dump of device and compares it with the inventory
func (s *FileSource) Findings(_ context.Context, device *model.BusinessObject) ([]model.SyncFinding, error) {
	table, err := s.load(device)
	if err != nil {
		return nil, err
	}
	return s.processor.Process(device, table)
}

func (s *FileSource) load(device *model.BusinessObject) (*EntityTable, error) {
	for _, base := range []string{device.Name, device.ID} {
		for _, ext := range []string{".yaml", ".yml", ".json"} {
			path := filepath.Join(s.dir, base+ext)
			data, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			return DecodeTable(data, ext)
		}
	}
	return nil, fmt.Errorf("no entity table dump for %s in %s", device, s.dir)
}

// DecodeTable parses a dump. ext selects JSON (".json") or YAML.
func DecodeTable(data []byte, ext string) (*EntityTable, error) {
	var t EntityTable
	var err error
	if ext == ".json" {
		err = json.Unmarshal(data, &t)
	} else {
		err = yaml.Unmarshal(data, &t)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding entity table: %w", err)
	}
	return &t, nil
}
