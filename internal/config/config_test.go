package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groupwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
sources:
  - name: Right Hindu Groups
    path: data/groups.xlsx
  - name: Welfare
    path: data/welfare.csv
    columns:
      name: ["Trust Title"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, filepath.Join("data", "groups.db"), cfg.Store.Path)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 50000, cfg.Pipeline.MemberThreshold)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "Right Hindu Groups", cfg.Sources[0].SheetName())
	assert.Equal(t, "xlsx", cfg.Sources[0].SourceKind())
	assert.Equal(t, "csv", cfg.Sources[1].SourceKind())
	assert.Equal(t, []string{"Trust Title"}, cfg.Sources[1].Columns["name"])
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "sources: []\n")
	t.Setenv("GROUPWATCH_LOG_LEVEL", "debug")
	t.Setenv("GROUPWATCH_PIPELINE_MEMBER_THRESHOLD", "1000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1000, cfg.Pipeline.MemberThreshold)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store:   StoreConfig{Driver: "sqlite", Path: "x.db"},
			Sources: []SourceConfig{{Name: "A", Path: "a.csv"}},
		}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Store.Driver = "mongo"
	assert.ErrorContains(t, c.Validate(), "unsupported store driver")

	c = base()
	c.Store = StoreConfig{Driver: "postgres"}
	assert.ErrorContains(t, c.Validate(), "database_url")

	c = base()
	c.Sources = append(c.Sources, SourceConfig{Name: "A", Path: "b.csv"})
	assert.ErrorContains(t, c.Validate(), "duplicate source name")

	c = base()
	c.Sources = nil
	assert.ErrorContains(t, c.Validate(), "no sources")
}

func TestSourceKind(t *testing.T) {
	assert.Equal(t, "html", SourceConfig{Path: "export.HTM"}.SourceKind())
	assert.Equal(t, "csv", SourceConfig{Path: "list.tsv"}.SourceKind())
	assert.Equal(t, "xlsx", SourceConfig{Path: "x.csv", Kind: "XLSX"}.SourceKind())
	assert.Equal(t, "", SourceConfig{Path: "notes.doc"}.SourceKind())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "console"}))
	require.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
