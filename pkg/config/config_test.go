package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifest = `
mappings:
  - alias: records
    path: ./mappings
    source: records-module
  - alias: authors
    path: authors/mappings
templates:
  - kind: index
    path: templates/index
  - kind: legacy
    path: templates/legacy
sync:
  records:
    brokers: [localhost:9092]
    group-id: search-indices
    topics: [records-changes]
    flush-interval: 2s
    rollover-threshold: 100
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(manifest), fstest.MapFS{})
	require.NoError(t, err)

	require.Len(t, m.Mappings, 2)
	assert.Equal(t, MappingSource{Alias: "records", Path: "mappings", Source: "records-module"}, m.Mappings[0])
	assert.Equal(t, "authors/mappings", m.Mappings[1].Path)

	require.Len(t, m.Templates, 2)
	kind, err := TemplateKind(m.Templates[0].Kind)
	require.NoError(t, err)
	assert.Equal(t, client.IndexTemplate, kind)

	job, ok := m.Sync["records"]
	require.True(t, ok)
	assert.Equal(t, []string{"records-changes"}, job.Topics)
	assert.Equal(t, 2*time.Second, job.FlushInterval)
	assert.Equal(t, 100, job.RolloverThreshold)
}

func TestParseManifestErrors(t *testing.T) {
	for name, data := range map[string]string{
		"no alias":       "mappings: [{path: mappings}]",
		"no path":        "mappings: [{alias: records}]",
		"escaping path":  "mappings: [{alias: records, path: ../mappings}]",
		"absolute path":  "mappings: [{alias: records, path: /mappings}]",
		"template kind":  "templates: [{kind: weird, path: templates}]",
		"sync no topics": "sync: {records: {brokers: [b], group-id: g}}",
		"not yaml":       "mappings: [",
	} {
		_, err := ParseManifest([]byte(data), fstest.MapFS{})
		assert.Error(t, err, name)
	}
}

func TestTemplateKind(t *testing.T) {
	for kind, expected := range map[string]client.TemplateKind{
		"":                   client.LegacyTemplate,
		"legacy":             client.LegacyTemplate,
		"index":              client.IndexTemplate,
		"component-template": client.ComponentTemplate,
	} {
		actual, err := TemplateKind(kind)
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mappings", "v8", "records"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mappings", "v8", "records", "record-v1.0.0.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte("mappings: [{alias: records, path: mappings}]"), 0o644))

	m, err := LoadManifest(filepath.Join(dir, "manifest.yaml"))
	require.NoError(t, err)
	data, err := fs.ReadFile(m.FS, "mappings/v8/records/record-v1.0.0.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	_, err = LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadManifestFS(t *testing.T) {
	fsys := fstest.MapFS{
		"search/manifest.yaml": {Data: []byte("mappings: [{alias: records, path: search/mappings}]")},
	}
	m, err := LoadManifestFS(fsys, "search/manifest.yaml")
	require.NoError(t, err)
	assert.Equal(t, "search/mappings", m.Mappings[0].Path)
}
