package tree

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/naming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordsFS() fstest.MapFS {
	return fstest.MapFS{
		"mappings/v8/records/authorities/authority-v1.0.0.json":       {Data: []byte(`{"mappings": {}}`)},
		"mappings/v8/records/bibliographic/bibliographic-v1.0.0.json": {Data: []byte(`{"mappings": {}}`)},
		"mappings/v8/records/default-v1.0.0.json":                     {Data: []byte(`{"mappings": {}}`)},
		"mappings/v8/records/README.md":                               {Data: []byte(`ignored`)},
	}
}

func childKeys(b *Branch) []string {
	var ret []string
	for pair := b.Children.Oldest(); pair != nil; pair = pair.Next() {
		ret = append(ret, pair.Key)
	}
	return ret
}

func TestRegisterMappings(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterMappings("records", recordsFS(), "mappings/v8", "embed:demo"))

	assert.Equal(t, []string{
		"records-authorities-authority-v1.0.0",
		"records-bibliographic-bibliographic-v1.0.0",
		"records-default-v1.0.0",
	}, r.MappingNames())
	assert.Equal(t, 3, r.NumberOfIndexes())

	records, ok := r.Alias("records")
	require.True(t, ok)
	assert.Equal(t, "records", records.Name())
	assert.Equal(t, []string{"records-authorities", "records-bibliographic", "records-default-v1.0.0"}, childKeys(records))

	authorities, ok := records.Children.Get("records-authorities")
	require.True(t, ok)
	require.IsType(t, &Branch{}, authorities)
	assert.Equal(t, []string{"records-authorities-authority-v1.0.0"}, childKeys(authorities.(*Branch)))

	def, ok := records.Children.Get("records-default-v1.0.0")
	require.True(t, ok)
	require.IsType(t, &Leaf{}, def)
	assert.Equal(t, "embed:demo/mappings/v8/records/default-v1.0.0.json", def.(*Leaf).Location())

	branches := records.Branches()
	require.Len(t, branches, 3)
	assert.Equal(t, "records", branches[2].Name())
}

// Every leaf key is the joined path of its mapping file relative to the
// version folder, and the flat lookup finds the same leaf.
func TestLeafKeysRoundTrip(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterMappings("records", recordsFS(), "mappings/v8", ""))

	records, _ := r.Alias("records")
	for _, leaf := range records.Leaves() {
		rel := strings.TrimPrefix(leaf.Path, "mappings/v8/")
		assert.Equal(t, leaf.Name(), naming.TrimMappingExtension(naming.JoinParts(strings.Split(rel, "/")...)))

		found, ok := r.Mapping(leaf.Name())
		require.True(t, ok)
		assert.Same(t, leaf, found)

		data, err := found.Read()
		require.NoError(t, err)
		assert.JSONEq(t, `{"mappings": {}}`, string(data))
	}
}

func TestRegisterMappingsMergesAndDetectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterMappings("records", recordsFS(), "mappings/v8", ""))

	extra := fstest.MapFS{
		"v8/records/authorities/person-v1.0.0.json": {Data: []byte(`{}`)},
	}
	require.NoError(t, r.RegisterMappings("records", extra, "v8", ""))
	assert.Equal(t, 4, r.NumberOfIndexes())
	records, _ := r.Alias("records")
	authorities, _ := records.Children.Get("records-authorities")
	assert.Len(t, authorities.(*Branch).Leaves(), 2)

	err := r.RegisterMappings("records", recordsFS(), "mappings/v8", "")
	var dup *DuplicateIndexError
	require.ErrorAs(t, err, &dup)
}

func TestRegisterMappingsLeavesRegistryUnchangedOnDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterMappings("records", recordsFS(), "mappings/v8", ""))

	// aaa sorts before authorities, so it is merged before the duplicate is found
	overlapping := fstest.MapFS{
		"v8/records/aaa/new-v1.0.0.json":               {Data: []byte(`{}`)},
		"v8/records/authorities/authority-v1.0.0.json": {Data: []byte(`{}`)},
	}
	err := r.RegisterMappings("records", overlapping, "v8", "")
	var dup *DuplicateIndexError
	require.ErrorAs(t, err, &dup)

	records, _ := r.Alias("records")
	assert.Equal(t, []string{
		"records-authorities",
		"records-bibliographic",
		"records-default-v1.0.0",
	}, childKeys(records))
	assert.Equal(t, 3, r.NumberOfIndexes())
	_, ok := r.Mapping("records-aaa-new-v1.0.0")
	assert.False(t, ok)

	// records-authorities-authority-v1.0.0 already exists below records
	clashing := fstest.MapFS{
		"v8/records-authorities/authority-v1.0.0.json": {Data: []byte(`{}`)},
	}
	err = r.RegisterMappings("records-authorities", clashing, "v8", "")
	require.ErrorAs(t, err, &dup)
	_, ok = r.Alias("records-authorities")
	assert.False(t, ok)
	assert.Len(t, r.Aliases(), 1)
	assert.Equal(t, 3, r.NumberOfIndexes())
}

func TestRegisterMappingsMissingDirectory(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterMappings("authors", recordsFS(), "mappings/v8", "")
	assert.Error(t, err)
}

func TestRegisterTemplates(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/v8/records/record-v1.0.0.json": {Data: []byte(`{"index_patterns": ["__SEARCH_INDEX_PREFIX__records-*"]}`)},
		"templates/v8/base.json":                  {Data: []byte(`{}`)},
		"templates/v8/notes.txt":                  {Data: []byte(`ignored`)},
	}
	r := NewRegistry()
	require.NoError(t, r.RegisterTemplates(client.IndexTemplate, fsys, "templates/v8", ""))

	templates := r.Templates(client.IndexTemplate)
	names := make([]string, 0, len(templates))
	for _, tpl := range templates {
		names = append(names, tpl.Name)
		assert.Equal(t, client.IndexTemplate, tpl.Kind)
	}
	assert.ElementsMatch(t, []string{"base", "records-record-v1.0.0"}, names)
	assert.Empty(t, r.Templates(client.LegacyTemplate))

	err := r.RegisterTemplates(client.IndexTemplate, fsys, "templates/v8", "")
	var dup *DuplicateTemplateError
	require.ErrorAs(t, err, &dup)

	partial := fstest.MapFS{
		"extra/aaa.json":  {Data: []byte(`{}`)},
		"extra/base.json": {Data: []byte(`{}`)},
	}
	err = r.RegisterTemplates(client.IndexTemplate, partial, "extra", "")
	require.ErrorAs(t, err, &dup)
	assert.Len(t, r.Templates(client.IndexTemplate), 2)
}
