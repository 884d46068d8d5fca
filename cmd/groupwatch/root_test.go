package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"groupwatch/internal/config"
	"groupwatch/internal/storage"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"import", "sources", "export"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "groupwatch", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestImportCommand_Flags(t *testing.T) {
	dry := importCmd.Flags().Lookup("dry-run")
	require.NotNil(t, dry)
	assert.Equal(t, "false", dry.DefValue)
	require.NotNil(t, importCmd.Flags().Lookup("report"))
	require.NotNil(t, exportCmd.Flags().Lookup("out"))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "welfare.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"Organisation Type,Total Members,Facebook Profile URL\n"+
			"Sample Welfare Society,\"1,200\",https://facebook.com/samplewelfare\n"+
			"NA,300,facebook.com/lok-seva-group\n"+
			"Hill Militia Front,\"80,000\",\n"), 0o644))

	return &config.Config{
		Store:    config.StoreConfig{Driver: "sqlite", Path: filepath.Join(dir, "groups.db")},
		Pipeline: config.PipelineConfig{Workers: 2, MemberThreshold: 50000},
		Sources: []config.SourceConfig{
			{Name: "Welfare", Path: csvPath},
			{Name: "Missing", Path: filepath.Join(dir, "missing.xlsx")},
		},
	}
}

func runCommand(t *testing.T, run func() error) string {
	t.Helper()
	var buf bytes.Buffer
	importCmd.SetOut(&buf)
	exportCmd.SetOut(&buf)
	sourcesCmd.SetOut(&buf)
	importCmd.SetContext(context.Background())
	exportCmd.SetContext(context.Background())
	sourcesCmd.SetContext(context.Background())
	require.NoError(t, run())
	return buf.String()
}

func TestImportAndExport(t *testing.T) {
	cfg = testConfig(t)
	importDryRun, importReport = false, filepath.Join(t.TempDir(), "report.xlsx")
	defer func() { importReport = "" }()

	out := runCommand(t, func() error { return importCmd.RunE(importCmd, nil) })
	assert.Contains(t, out, "Welfare")
	assert.Contains(t, out, "plan insert=3 skip=0")
	assert.Contains(t, out, "inserted=3")
	assert.FileExists(t, importReport)

	out = runCommand(t, func() error { return importCmd.RunE(importCmd, nil) })
	assert.Contains(t, out, "plan insert=0 skip=3")

	exportOut = filepath.Join(t.TempDir(), "groups.xlsx")
	out = runCommand(t, func() error { return exportCmd.RunE(exportCmd, nil) })
	assert.Contains(t, out, "exported 3 groups")

	f, err := excelize.OpenFile(exportOut)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Groups")
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	store, err := storage.Open(context.Background(), cfg.Store)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	last, err := store.GetMetadata(context.Background(), storage.MetaLastExport)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, exportOut, *last)
}

func TestImportDryRunWritesNothing(t *testing.T) {
	cfg = testConfig(t)
	importDryRun = true
	defer func() { importDryRun = false }()

	out := runCommand(t, func() error { return importCmd.RunE(importCmd, nil) })
	assert.Contains(t, out, "(dry run)")

	exportOut = filepath.Join(t.TempDir(), "groups.xlsx")
	err := exportCmd.RunE(exportCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no groups stored")
}

func TestImportInvalidConfig(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite", Path: "x.db"}}
	importCmd.SetContext(context.Background())
	err := importCmd.RunE(importCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sources configured")
}

func TestSourcesCommand(t *testing.T) {
	cfg = testConfig(t)
	out := runCommand(t, func() error { return sourcesCmd.RunE(sourcesCmd, nil) })
	assert.Contains(t, out, "header: Organisation Type | Total Members | Facebook Profile URL")
	assert.Contains(t, out, "Total Members")
	assert.Contains(t, out, "Missing (")
	assert.Contains(t, out, "unavailable")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
