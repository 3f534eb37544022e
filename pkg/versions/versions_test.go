package versions

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const esInfo = `{
  "name": "node-1",
  "cluster_name": "docker-cluster",
  "version": {"number": "8.11.3", "build_flavor": "default"},
  "tagline": "You Know, for Search"
}`

const osInfo = `{
  "name": "node-1",
  "cluster_name": "os-cluster",
  "version": {"distribution": "opensearch", "number": "2.11.0"},
  "tagline": "The OpenSearch Project: https://opensearch.org/"
}`

func TestParseInfo(t *testing.T) {
	info, err := ParseInfo([]byte(esInfo))
	require.NoError(t, err)
	assert.Equal(t, Elasticsearch, info.Distribution)
	assert.Equal(t, 8, info.Major)
	assert.Equal(t, "docker-cluster", info.ClusterName)

	info, err = ParseInfo([]byte(osInfo))
	require.NoError(t, err)
	assert.Equal(t, OpenSearch, info.Distribution)
	assert.Equal(t, 2, info.Major)
	assert.Equal(t, "2.11.0", info.Number)

	_, err = ParseInfo([]byte(`{"tagline": "nope"}`))
	assert.Error(t, err)
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []Candidate{{Dir: "v8"}}, Candidates(Elasticsearch, 8))
	assert.Equal(t, []Candidate{{Dir: "os-v2"}, {Dir: "v7", Fallback: true}}, Candidates(OpenSearch, 2))
}

func TestResolve(t *testing.T) {
	fsys := fstest.MapFS{
		"mappings/v7/records/default-v1.0.0.json": {Data: []byte(`{}`)},
		"mappings/v8/records/default-v1.0.0.json": {Data: []byte(`{}`)},
		"other/os-v2/records/default-v1.0.0.json": {Data: []byte(`{}`)},
		"other/v7/records/default-v1.0.0.json":    {Data: []byte(`{}`)},
	}

	res, err := Resolve(fsys, "mappings", Elasticsearch, 8)
	require.NoError(t, err)
	assert.Equal(t, "mappings/v8", res.Dir)
	assert.False(t, res.Fallback)
	assert.Empty(t, res.Warning)

	res, err = Resolve(fsys, "other", OpenSearch, 2)
	require.NoError(t, err)
	assert.Equal(t, "other/os-v2", res.Dir)
	assert.False(t, res.Fallback)

	res, err = Resolve(fsys, "mappings", OpenSearch, 2)
	require.NoError(t, err)
	assert.Equal(t, "mappings/v7", res.Dir)
	assert.True(t, res.Fallback)
	assert.Contains(t, res.Warning, "falling back to v7")

	_, err = Resolve(fsys, "mappings", Elasticsearch, 6)
	var notFound *VersionFolderNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"mappings/v6"}, notFound.Candidates)
}

func TestCheck(t *testing.T) {
	es8 := &ClusterInfo{Distribution: Elasticsearch, Number: "8.11.3", Major: 8}
	assert.NoError(t, Check(es8, Elasticsearch, 8))
	assert.NoError(t, Check(es8, Elasticsearch, 0))

	var mismatch *VersionMismatchError
	require.ErrorAs(t, Check(es8, OpenSearch, 2), &mismatch)
	assert.Equal(t, es8, mismatch.Actual)
	require.ErrorAs(t, Check(es8, Elasticsearch, 7), &mismatch)
}

func TestParseDistribution(t *testing.T) {
	d, err := ParseDistribution("OpenSearch")
	require.NoError(t, err)
	assert.Equal(t, OpenSearch, d)

	d, err = ParseDistribution("")
	require.NoError(t, err)
	assert.Equal(t, Elasticsearch, d)

	_, err = ParseDistribution("solr")
	assert.Error(t, err)
}
