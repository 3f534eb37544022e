package lifecycle

import (
	"context"
	"encoding/json"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/pkg/errors"
)

type UpdateMappingResult struct {
	Index    string
	Alias    string
	Target   string
	Changes  []Change
	Response *client.Response
}

// UpdateMapping applies the registered mapping of index to the concrete index
// behind its write alias. With check set, only additions are allowed and any
// other change fails with *NotAllowedMappingUpdateError without touching the
// cluster.
func (m *Manager) UpdateMapping(ctx context.Context, index string, check bool) (*UpdateMappingResult, error) {
	leaf, ok := m.registry.Mapping(index)
	if !ok {
		return nil, &UnknownIndexError{Name: index}
	}
	c, err := m.Client()
	if err != nil {
		return nil, err
	}

	alias := m.namer.BuildAliasName(index)
	indices, err := c.ResolveAlias(ctx, alias)
	if err != nil {
		return nil, errors.Wrapf(err, "could not resolve alias %s", alias)
	}
	if len(indices) != 1 {
		return nil, &AmbiguousAliasError{Alias: alias, Indices: indices}
	}
	target := indices[0]

	live, err := c.GetMapping(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch mapping of %s", target)
	}
	liveMapping, err := mappingsOf(live, target)
	if err != nil {
		return nil, err
	}

	data, err := leaf.Read()
	if err != nil {
		return nil, err
	}
	var file map[string]interface{}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "could not parse mapping %s", leaf.Location())
	}
	fileMapping, ok := file["mappings"].(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("mapping %s has no \"mappings\" object", leaf.Location())
	}

	ret := &UpdateMappingResult{
		Index:   index,
		Alias:   alias,
		Target:  target,
		Changes: Diff(liveMapping, fileMapping),
	}
	if check {
		if rejected := NonAdditive(ret.Changes); len(rejected) > 0 {
			return nil, &NotAllowedMappingUpdateError{Index: index, Changes: rejected}
		}
	}

	body, err := json.Marshal(fileMapping)
	if err != nil {
		return nil, err
	}
	ret.Response, err = c.PutMapping(ctx, alias, body)
	if err != nil {
		return nil, errors.Wrapf(err, "could not update mapping of %s", alias)
	}
	return ret, nil
}

func mappingsOf(live map[string]interface{}, index string) (map[string]interface{}, error) {
	entry, ok := live[index].(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("mapping response does not contain index %s", index)
	}
	mappings, ok := entry["mappings"].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}, nil
	}
	return mappings, nil
}
