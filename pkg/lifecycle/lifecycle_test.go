package lifecycle

import (
	"context"
	"iter"
	"testing"
	"testing/fstest"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/client/memory"
	"github.com/go-go-golems/search-indices/pkg/naming"
	"github.com/go-go-golems/search-indices/pkg/tree"
	"github.com/go-go-golems/search-indices/pkg/versions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultMapping = `{
  "mappings": {
    "properties": {
      "title": {"type": "text"},
      "year": {"type": "integer"}
    }
  }
}`

func mappingsFS() fstest.MapFS {
	return fstest.MapFS{
		"v8/records/authorities/authority-v1.0.0.json":       {Data: []byte(`{"mappings": {"properties": {"name": {"type": "text"}}}}`)},
		"v8/records/bibliographic/bibliographic-v1.0.0.json": {Data: []byte(`{"mappings": {"properties": {"title": {"type": "text"}}}}`)},
		"v8/records/default-v1.0.0.json":                     {Data: []byte(defaultMapping)},
		"v8/authors/author-v1.0.0.json":                      {Data: []byte(`{"mappings": {}}`)},
	}
}

func newRegistry(t *testing.T, aliases ...string) *tree.Registry {
	r := tree.NewRegistry()
	for _, alias := range aliases {
		require.NoError(t, r.RegisterMappings(alias, mappingsFS(), "v8", ""))
	}
	return r
}

func newManager(t *testing.T, cluster *memory.Cluster, suffix string, options ...Option) *Manager {
	opts := append([]Option{
		WithNamer(naming.NewNamer(naming.WithPrefix("myprefix-"), naming.WithSuffix(suffix))),
		WithClient(cluster),
	}, options...)
	return NewManager(newRegistry(t, "records"), opts...)
}

func collect(t *testing.T, seq iter.Seq2[Result, error]) []Result {
	var ret []Result
	for res, err := range seq {
		require.NoError(t, err)
		ret = append(ret, res)
	}
	return ret
}

func countKinds(results []Result) map[OperationKind]int {
	ret := map[OperationKind]int{}
	for _, r := range results {
		ret[r.Operation.Kind]++
	}
	return ret
}

func TestCreateAgainstEmptyCluster(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	m := newManager(t, cluster, "-abc")

	seq, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	results := collect(t, seq)

	require.Len(t, results, 9)
	assert.Equal(t, map[OperationKind]int{
		OpCreateIndex:   3,
		OpPutWriteAlias: 3,
		OpPutAlias:      3,
	}, countKinds(results))

	// indices first, then write aliases, then branch aliases innermost first
	for i, r := range results {
		switch {
		case i < 3:
			assert.Equal(t, OpCreateIndex, r.Operation.Kind)
		case i < 6:
			assert.Equal(t, OpPutWriteAlias, r.Operation.Kind)
		default:
			assert.Equal(t, OpPutAlias, r.Operation.Kind)
		}
	}
	assert.Equal(t, "myprefix-records", results[8].Operation.Name)

	authority := "myprefix-records-authorities-authority-v1.0.0-abc"
	bibliographic := "myprefix-records-bibliographic-bibliographic-v1.0.0-abc"
	def := "myprefix-records-default-v1.0.0-abc"
	assert.Equal(t, []string{authority, bibliographic, def}, cluster.Indices())

	assert.Equal(t, map[string][]string{
		"myprefix-records-authorities-authority-v1.0.0":       {authority},
		"myprefix-records-bibliographic-bibliographic-v1.0.0": {bibliographic},
		"myprefix-records-default-v1.0.0":                     {def},
		"myprefix-records-authorities":                        {authority},
		"myprefix-records-bibliographic":                      {bibliographic},
		"myprefix-records":                                    {authority, bibliographic, def},
	}, cluster.Aliases())

	mapping, err := cluster.GetMapping(ctx, "myprefix-records-default-v1.0.0")
	require.NoError(t, err)
	assert.Contains(t, mapping, def)
}

func TestPlanDoesNotTouchTheCluster(t *testing.T) {
	cluster := memory.NewCluster()
	m := newManager(t, cluster, "-abc")

	plan := m.Plan(nil)
	assert.Equal(t, 3, plan.Count(OpCreateIndex))
	assert.Equal(t, 3, plan.Count(OpPutWriteAlias))
	assert.Equal(t, 3, plan.Count(OpPutAlias))
	assert.Empty(t, cluster.Calls())
}

func TestCreateAbortsWholeBatchOnConflict(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	_, err := cluster.CreateIndex(ctx, "myprefix-records-default-v1.0.0", nil)
	require.NoError(t, err)
	cluster.ResetCalls()

	m := newManager(t, cluster, "-abc")
	_, err = m.Create(ctx, CreateOptions{})

	var exists *IndexAlreadyExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "myprefix-records-default-v1.0.0", exists.Name)
	assert.Empty(t, cluster.Calls())
	assert.Equal(t, []string{"myprefix-records-default-v1.0.0"}, cluster.Indices())
}

func TestCreateIgnoreExistingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	m := newManager(t, cluster, "-abc")

	seq, err := m.Create(ctx, CreateOptions{IgnoreExisting: true})
	require.NoError(t, err)
	collect(t, seq)
	indices, aliases := cluster.Indices(), cluster.Aliases()

	seq, err = m.Create(ctx, CreateOptions{IgnoreExisting: true})
	require.NoError(t, err)
	results := collect(t, seq)
	assert.Len(t, results, 9)

	assert.Equal(t, indices, cluster.Indices())
	assert.Equal(t, aliases, cluster.Aliases())
}

func TestCreateWithoutIgnoreFailsOnSecondRun(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	m := newManager(t, cluster, "-abc")

	seq, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	collect(t, seq)

	_, err = m.Create(ctx, CreateOptions{})
	var exists *IndexAlreadyExistsError
	assert.ErrorAs(t, err, &exists)
}

func TestCreateExecutionErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	m := newManager(t, cluster, "-abc")

	plan := m.Plan(nil)
	_, err := cluster.CreateIndex(ctx, plan.Operations[1].Name, nil)
	require.NoError(t, err)

	var results []Result
	var lastErr error
	for res, err := range m.Execute(ctx, plan, nil) {
		results = append(results, res)
		lastErr = err
	}
	require.Len(t, results, 2)
	var re *client.ResponseError
	require.ErrorAs(t, lastErr, &re)
	assert.Equal(t, 400, re.StatusCode)
}

func TestCreateIndexList(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	m := newManager(t, cluster, "-abc")

	seq, err := m.Create(ctx, CreateOptions{IndexList: []string{"records-default-v1.0.0"}})
	require.NoError(t, err)
	results := collect(t, seq)

	assert.Equal(t, map[OperationKind]int{
		OpCreateIndex:   1,
		OpPutWriteAlias: 1,
		OpPutAlias:      1,
	}, countKinds(results))
	assert.Equal(t, map[string][]string{
		"myprefix-records-default-v1.0.0": {"myprefix-records-default-v1.0.0-abc"},
		"myprefix-records":                {"myprefix-records-default-v1.0.0-abc"},
	}, cluster.Aliases())
}

func TestCreateSingleIndex(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	m := newManager(t, cluster, "-abc")

	seq, err := m.CreateIndex(ctx, "records-default-v1.0.0", CreateOptions{})
	require.NoError(t, err)
	results := collect(t, seq)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"myprefix-records-default-v1.0.0-abc"}, cluster.Indices())

	_, err = m.CreateIndex(ctx, "nope", CreateOptions{})
	var unknown *UnknownIndexError
	assert.ErrorAs(t, err, &unknown)
}

func TestActiveAliases(t *testing.T) {
	cluster := memory.NewCluster()
	registry := newRegistry(t, "records", "authors")

	all := NewManager(registry, WithClient(cluster))
	assert.Len(t, all.ActiveAliases(), 2)
	assert.Len(t, all.ActiveLeaves(), 4)

	scoped := NewManager(registry, WithClient(cluster), WithActiveAliases([]string{"authors", "unknown"}))
	active := scoped.ActiveAliases()
	require.Len(t, active, 1)
	assert.Equal(t, "authors", active[0].Name())

	plan := scoped.Plan(nil)
	assert.Equal(t, 1, plan.Count(OpCreateIndex))
	assert.Equal(t, 1, plan.Count(OpPutAlias))
}

func TestDeleteResolvesLiveWriteAliases(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	creator := newManager(t, cluster, "-abc")
	seq, err := creator.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	collect(t, seq)

	// a later process does not know the suffix of the generation
	deleter := newManager(t, cluster, "-xyz")
	results := collect(t, deleter.Delete(ctx, DeleteOptions{}))

	assert.Equal(t, map[OperationKind]int{OpDeleteIndex: 3}, countKinds(results))
	assert.Empty(t, cluster.Indices())
	assert.Empty(t, cluster.Aliases())
}

func TestDeleteLeavesAmbiguousWriteAliasAlone(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	m := newManager(t, cluster, "-abc")
	seq, err := m.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	collect(t, seq)

	_, err = cluster.CreateIndex(ctx, "myprefix-records-default-v1.0.0-old", nil)
	require.NoError(t, err)
	_, err = cluster.PutAlias(ctx, []string{"myprefix-records-default-v1.0.0-old"}, "myprefix-records-default-v1.0.0")
	require.NoError(t, err)

	results := collect(t, m.Delete(ctx, DeleteOptions{}))
	assert.Equal(t, map[OperationKind]int{OpDeleteIndex: 2, OpAmbiguous: 1}, countKinds(results))

	for _, r := range results {
		if r.Operation.Kind == OpAmbiguous {
			assert.Equal(t, "myprefix-records-default-v1.0.0", r.Operation.Name)
			assert.Equal(t, []string{
				"myprefix-records-default-v1.0.0-abc",
				"myprefix-records-default-v1.0.0-old",
			}, r.Operation.Indices)
			assert.Contains(t, r.Warning, "several indices")
		}
	}
	assert.Equal(t, []string{
		"myprefix-records-default-v1.0.0-abc",
		"myprefix-records-default-v1.0.0-old",
	}, cluster.Indices())
}

// vanishingCluster deletes every index it resolves, as if another process
// removed it right before the delete request.
type vanishingCluster struct {
	*memory.Cluster
}

func (c *vanishingCluster) ResolveAlias(ctx context.Context, name string) ([]string, error) {
	indices, err := c.Cluster.ResolveAlias(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, index := range indices {
		if _, err := c.Cluster.DeleteIndex(ctx, index); err != nil {
			return nil, err
		}
	}
	return indices, nil
}

func TestDeleteIgnoresConcurrentlyRemovedIndices(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	creator := newManager(t, cluster, "-abc")
	seq, err := creator.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	collect(t, seq)

	m := newManager(t, cluster, "-abc", WithClient(&vanishingCluster{Cluster: cluster}))
	results := collect(t, m.Delete(ctx, DeleteOptions{Ignore: []int{404}}))

	assert.Equal(t, map[OperationKind]int{OpDeleteIndex: 3}, countKinds(results))
	for _, r := range results {
		require.NotNil(t, r.Response)
		assert.Equal(t, 404, r.Response.StatusCode)
	}
	assert.Empty(t, cluster.Indices())
}

func TestDeleteFailsOnConcurrentlyRemovedIndexWithoutIgnore(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	creator := newManager(t, cluster, "-abc")
	seq, err := creator.Create(ctx, CreateOptions{})
	require.NoError(t, err)
	collect(t, seq)

	m := newManager(t, cluster, "-abc", WithClient(&vanishingCluster{Cluster: cluster}))
	var lastErr error
	for _, err := range m.Delete(ctx, DeleteOptions{}) {
		lastErr = err
	}
	var re *client.ResponseError
	require.ErrorAs(t, lastErr, &re)
	assert.Equal(t, 404, re.StatusCode)
}

func TestDeleteOnEmptyClusterIsNoop(t *testing.T) {
	cluster := memory.NewCluster()
	m := newManager(t, cluster, "-abc")

	results := collect(t, m.Delete(context.Background(), DeleteOptions{}))
	assert.Equal(t, map[OperationKind]int{OpNoop: 3}, countKinds(results))
	assert.Empty(t, cluster.Calls())
}

func createDefaultWithMapping(t *testing.T, cluster *memory.Cluster, mapping string) {
	ctx := context.Background()
	_, err := cluster.CreateIndex(ctx, "myprefix-records-default-v1.0.0-abc", []byte(mapping))
	require.NoError(t, err)
	_, err = cluster.PutAlias(ctx, []string{"myprefix-records-default-v1.0.0-abc"}, "myprefix-records-default-v1.0.0")
	require.NoError(t, err)
	cluster.ResetCalls()
}

func liveProperties(t *testing.T, cluster *memory.Cluster) map[string]interface{} {
	mapping, err := cluster.GetMapping(context.Background(), "myprefix-records-default-v1.0.0-abc")
	require.NoError(t, err)
	return mapping["myprefix-records-default-v1.0.0-abc"].(map[string]interface{})["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
}

func TestUpdateMappingAllowsAdditions(t *testing.T) {
	cluster := memory.NewCluster()
	createDefaultWithMapping(t, cluster, `{"mappings": {"properties": {"title": {"type": "text"}}}}`)
	m := newManager(t, cluster, "-abc")

	res, err := m.UpdateMapping(context.Background(), "records-default-v1.0.0", true)
	require.NoError(t, err)
	assert.Equal(t, "myprefix-records-default-v1.0.0-abc", res.Target)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, ChangeAdd, res.Changes[0].Kind)
	assert.Equal(t, []string{"properties", "year"}, res.Changes[0].Path)

	assert.Equal(t, map[string]interface{}{"type": "integer"}, liveProperties(t, cluster)["year"])
}

func TestUpdateMappingRejectsNonAdditiveChanges(t *testing.T) {
	cluster := memory.NewCluster()
	createDefaultWithMapping(t, cluster,
		`{"mappings": {"properties": {"title": {"type": "keyword"}, "legacy": {"type": "text"}}}}`)
	m := newManager(t, cluster, "-abc")

	_, err := m.UpdateMapping(context.Background(), "records-default-v1.0.0", true)
	var notAllowed *NotAllowedMappingUpdateError
	require.ErrorAs(t, err, &notAllowed)
	require.Len(t, notAllowed.Changes, 2)
	assert.Equal(t, Change{
		Kind: ChangeRemove,
		Path: []string{"properties", "legacy"},
		Old:  map[string]interface{}{"type": "text"},
	}, notAllowed.Changes[0])
	assert.Equal(t, Change{
		Kind: ChangeChange,
		Path: []string{"properties", "title", "type"},
		Old:  "keyword",
		New:  "text",
	}, notAllowed.Changes[1])

	assert.Empty(t, cluster.Calls())
	props := liveProperties(t, cluster)
	assert.NotContains(t, props, "year")
	assert.Equal(t, map[string]interface{}{"type": "keyword"}, props["title"])
}

func TestUpdateMappingWithoutCheckForwardsClusterErrors(t *testing.T) {
	cluster := memory.NewCluster()
	createDefaultWithMapping(t, cluster, `{"mappings": {"properties": {"title": {"type": "keyword"}}}}`)
	m := newManager(t, cluster, "-abc")

	_, err := m.UpdateMapping(context.Background(), "records-default-v1.0.0", false)
	var re *client.ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "illegal_argument_exception", re.Type)
}

func TestUpdateMappingWithoutCheckAppliesRemovals(t *testing.T) {
	cluster := memory.NewCluster()
	createDefaultWithMapping(t, cluster,
		`{"mappings": {"properties": {"title": {"type": "text"}, "legacy": {"type": "text"}}}}`)
	m := newManager(t, cluster, "-abc")

	res, err := m.UpdateMapping(context.Background(), "records-default-v1.0.0", false)
	require.NoError(t, err)
	assert.Len(t, NonAdditive(res.Changes), 1)
	assert.Contains(t, liveProperties(t, cluster), "year")
}

func TestUpdateMappingRequiresSingleTarget(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	m := newManager(t, cluster, "-abc")

	_, err := m.UpdateMapping(ctx, "records-default-v1.0.0", true)
	var ambiguous *AmbiguousAliasError
	require.ErrorAs(t, err, &ambiguous)
	assert.Empty(t, ambiguous.Indices)

	for _, name := range []string{"a", "b"} {
		_, err := cluster.CreateIndex(ctx, name, nil)
		require.NoError(t, err)
	}
	_, err = cluster.PutAlias(ctx, []string{"a", "b"}, "myprefix-records-default-v1.0.0")
	require.NoError(t, err)
	_, err = m.UpdateMapping(ctx, "records-default-v1.0.0", true)
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, []string{"a", "b"}, ambiguous.Indices)

	_, err = m.UpdateMapping(ctx, "nope", true)
	var unknown *UnknownIndexError
	assert.ErrorAs(t, err, &unknown)
}

func templatesRegistry(t *testing.T) *tree.Registry {
	fsys := fstest.MapFS{
		"legacy/records.json":     {Data: []byte(`{"index_patterns": ["__SEARCH_INDEX_PREFIX__records-*"]}`)},
		"index/records.json":      {Data: []byte(`{"index_patterns": ["__SEARCH_INDEX_PREFIX__records-*"]}`)},
		"index/plain.json":        {Data: []byte(`{"index_patterns": ["plain-*"]}`)},
		"component/settings.json": {Data: []byte(`{"template": {"settings": {"number_of_shards": 1}}}`)},
	}
	r := newRegistry(t, "records")
	require.NoError(t, r.RegisterTemplates(client.LegacyTemplate, fsys, "legacy", ""))
	require.NoError(t, r.RegisterTemplates(client.IndexTemplate, fsys, "index", ""))
	require.NoError(t, r.RegisterTemplates(client.ComponentTemplate, fsys, "component", ""))
	return r
}

func TestPutTemplatesSubstitutesPrefix(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster()
	m := NewManager(templatesRegistry(t),
		WithClient(cluster),
		WithNamer(naming.NewNamer(naming.WithPrefix("myprefix-"))),
	)
	assert.Equal(t, 4, m.NumberOfTemplates())

	results := collect(t, m.PutAllTemplates(ctx))
	assert.Equal(t, map[OperationKind]int{
		OpPutComponentTemplate: 1,
		OpPutIndexTemplate:     2,
		OpPutTemplate:          1,
	}, countKinds(results))

	legacy, ok := cluster.Template(client.LegacyTemplate, "myprefix-records")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"myprefix-records-*"}, legacy["index_patterns"])

	_, ok = cluster.Template(client.IndexTemplate, "myprefix-plain")
	require.True(t, ok)

	// index and component templates only warn about the missing placeholder
	warnings := 0
	for _, r := range results {
		if r.Warning != "" {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestPutLegacyTemplatesEnforcesPlaceholder(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"legacy/unprefixed.json": {Data: []byte(`{"index_patterns": ["records-*"]}`)},
	}
	r := tree.NewRegistry()
	require.NoError(t, r.RegisterTemplates(client.LegacyTemplate, fsys, "legacy", ""))

	cluster := memory.NewCluster()
	m := NewManager(r, WithClient(cluster), WithNamer(naming.NewNamer(naming.WithPrefix("myprefix-"))))

	var lastErr error
	for _, err := range m.PutTemplates(ctx) {
		lastErr = err
	}
	var missing *MissingPrefixPlaceholderError
	require.ErrorAs(t, lastErr, &missing)
	assert.Equal(t, "unprefixed", missing.Template)
	assert.Empty(t, cluster.Calls())

	unprefixed := NewManager(r, WithClient(cluster))
	results := collect(t, unprefixed.PutTemplates(ctx))
	require.Len(t, results, 1)
	assert.Equal(t, "unprefixed", results[0].Operation.Name)
}

func TestClientIsCreatedOnce(t *testing.T) {
	calls := 0
	cluster := memory.NewCluster()
	m := NewManager(tree.NewRegistry(), WithClientFactory(func() (client.SearchClient, error) {
		calls++
		return cluster, nil
	}))

	for i := 0; i < 3; i++ {
		c, err := m.Client()
		require.NoError(t, err)
		assert.Same(t, cluster, c)
	}
	assert.Equal(t, 1, calls)

	_, err := NewManager(tree.NewRegistry()).Client()
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	cluster := memory.NewCluster(memory.WithInfo(versions.ClusterInfo{
		Distribution: versions.OpenSearch,
		Number:       "2.11.0",
		Major:        2,
	}))
	m := NewManager(tree.NewRegistry(), WithClient(cluster))

	info, err := m.Check(ctx, versions.OpenSearch, 2)
	require.NoError(t, err)
	assert.Equal(t, "2.11.0", info.Number)

	_, err = m.Check(ctx, versions.Elasticsearch, 8)
	var mismatch *versions.VersionMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestList(t *testing.T) {
	cluster := memory.NewCluster()
	registry := newRegistry(t, "records", "authors")
	m := NewManager(registry,
		WithClient(cluster),
		WithActiveAliases([]string{"records"}),
		WithNamer(naming.NewNamer(naming.WithSuffix("-abc"))),
	)

	all := m.List(false, false)
	assert.Len(t, all, 8)

	active := m.List(true, false)
	require.Len(t, active, 6)
	assert.Equal(t, Entry{Key: "records", Kind: EntryAlias, Depth: 0, Alias: "records"}, active[0])
	assert.Equal(t, "records-authorities", active[1].Key)
	assert.Equal(t, 1, active[1].Depth)
	assert.Equal(t, EntryIndex, active[2].Kind)
	assert.Equal(t, 2, active[2].Depth)
	assert.Equal(t, "records-authorities-authority-v1.0.0-abc", active[2].Index)

	aliases := m.List(true, true)
	assert.Len(t, aliases, 3)
}
