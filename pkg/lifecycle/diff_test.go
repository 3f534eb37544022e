package lifecycle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]interface{} {
	var ret map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &ret))
	return ret
}

func TestDiffIdentical(t *testing.T) {
	m := decode(t, `{"properties": {"title": {"type": "text"}}, "dynamic": "strict"}`)
	assert.Empty(t, Diff(m, m))
}

func TestDiffMaps(t *testing.T) {
	before := decode(t, `{"properties": {"title": {"type": "keyword"}, "old": {"type": "text"}}}`)
	after := decode(t, `{"properties": {"title": {"type": "text"}, "new": {"type": "date"}}}`)

	changes := Diff(before, after)
	require.Len(t, changes, 3)
	assert.Equal(t, "add properties.new: {\"type\":\"date\"}", changes[0].String())
	assert.Equal(t, "remove properties.old: {\"type\":\"text\"}", changes[1].String())
	assert.Equal(t, "change properties.title.type: \"keyword\" -> \"text\"", changes[2].String())

	nonAdditive := NonAdditive(changes)
	require.Len(t, nonAdditive, 2)
	assert.Equal(t, ChangeRemove, nonAdditive[0].Kind)
	assert.Equal(t, ChangeChange, nonAdditive[1].Kind)
}

func TestDiffLists(t *testing.T) {
	before := decode(t, `{"dynamic_templates": [{"a": 1}, {"b": 2}]}`)

	grown := decode(t, `{"dynamic_templates": [{"a": 1}, {"b": 2}, {"c": 3}]}`)
	changes := Diff(before, grown)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeAdd, changes[0].Kind)
	assert.Equal(t, []string{"dynamic_templates", "2"}, changes[0].Path)

	shrunk := decode(t, `{"dynamic_templates": [{"a": 1}]}`)
	changes = Diff(before, shrunk)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeRemove, changes[0].Kind)
	assert.Equal(t, []string{"dynamic_templates", "1"}, changes[0].Path)
}

func TestDiffTypeSwitch(t *testing.T) {
	before := decode(t, `{"properties": {"title": {"type": "text"}}}`)
	after := decode(t, `{"properties": {"title": "text"}}`)

	changes := Diff(before, after)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeChange, changes[0].Kind)
	assert.Equal(t, []string{"properties", "title"}, changes[0].Path)
}

func TestDiffNilIsEmpty(t *testing.T) {
	after := decode(t, `{"properties": {"title": {"type": "text"}}}`)

	changes := Diff(nil, after)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeAdd, changes[0].Kind)
	assert.Equal(t, []string{"properties"}, changes[0].Path)
	assert.Empty(t, Diff(nil, map[string]interface{}{}))
}

func TestDiffNestedAdditionsOnly(t *testing.T) {
	before := decode(t, `{"properties": {"title": {"type": "text", "fields": {"raw": {"type": "keyword"}}}}}`)
	after := decode(t, `{"properties": {"title": {"type": "text", "fields": {"raw": {"type": "keyword"}, "sort": {"type": "icu_collation_keyword"}}}, "year": {"type": "integer"}}}`)

	changes := Diff(before, after)
	require.Len(t, changes, 2)
	assert.Equal(t, []string{"properties", "title", "fields", "sort"}, changes[0].Path)
	assert.Equal(t, []string{"properties", "year"}, changes[1].Path)
	assert.Empty(t, NonAdditive(changes))
}
