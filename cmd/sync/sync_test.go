package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsuchenak/invd/internal/model"
)

func TestLoadFindings(t *testing.T) {
	dir := t.TempDir()

	yamlFile := filepath.Join(dir, "findings.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte(`
- type: NEW
  description: Port Gi0/1 found
  extra_information: port
- type: ERROR
  description: Row could not be mapped
`), 0o600))

	findings, err := LoadFindings(yamlFile)
	require.NoError(t, err)
	assert.Equal(t, []model.SyncFinding{
		{Type: model.FindingNew, Description: "Port Gi0/1 found", ExtraInformation: "port"},
		{Type: model.FindingError, Description: "Row could not be mapped"},
	}, findings)

	jsonFile := filepath.Join(dir, "findings.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`[{"type":"DELETE","description":"gone","extra_information":"x"}]`), 0o600))
	findings, err = LoadFindings(jsonFile)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingDelete, findings[0].Type)
	assert.Equal(t, "x", findings[0].ExtraInformation)

	_, err = LoadFindings(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
