// Package memory implements client.SearchClient on top of an in-process
// cluster model. It keeps indices, aliases, mappings, templates and documents
// and enforces the same conflicts a real cluster reports.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/versions"
	"github.com/pkg/errors"
)

type Call struct {
	Method string
	Path   string
}

type index struct {
	mappings map[string]interface{}
	docs     map[string]map[string]interface{}
	nextID   int
}

type Cluster struct {
	mu sync.Mutex

	info      versions.ClusterInfo
	indices   map[string]*index
	aliases   map[string]map[string]struct{}
	templates map[client.TemplateKind]map[string]map[string]interface{}
	calls     []Call
}

var _ client.SearchClient = &Cluster{}

type Option func(*Cluster)

func WithInfo(info versions.ClusterInfo) Option {
	return func(c *Cluster) {
		c.info = info
	}
}

func NewCluster(options ...Option) *Cluster {
	ret := &Cluster{
		info: versions.ClusterInfo{
			Distribution: versions.Elasticsearch,
			Number:       "8.11.3",
			Major:        8,
			ClusterName:  "memory",
		},
		indices:   map[string]*index{},
		aliases:   map[string]map[string]struct{}{},
		templates: map[client.TemplateKind]map[string]map[string]interface{}{},
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Calls returns the mutating calls issued so far, in order.
func (c *Cluster) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

func (c *Cluster) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// Indices returns the sorted names of all concrete indices.
func (c *Cluster) Indices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]string, 0, len(c.indices))
	for name := range c.indices {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// Aliases returns every alias with the sorted indices it points to.
func (c *Cluster) Aliases() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := map[string][]string{}
	for alias, indices := range c.aliases {
		ret[alias] = sortedKeys(indices)
	}
	return ret
}

func (c *Cluster) Template(kind client.TemplateKind, name string) (map[string]interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.templates[kind][name]
	return t, ok
}

// Document returns the source of a stored document.
func (c *Cluster) Document(indexName string, id string) (map[string]interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.indices[indexName]
	if !ok {
		return nil, false
	}
	doc, ok := idx.docs[id]
	return doc, ok
}

func sortedKeys(m map[string]struct{}) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func (c *Cluster) record(method string, path string) {
	c.calls = append(c.calls, Call{Method: method, Path: path})
}

func errorResponse(status int, errType string, reason string, ignore []int) (*client.Response, error) {
	body := map[string]interface{}{
		"error": map[string]interface{}{
			"type":   errType,
			"reason": reason,
		},
		"status": float64(status),
	}
	for _, i := range ignore {
		if i == status {
			return &client.Response{StatusCode: status, Body: body}, nil
		}
	}
	raw, _ := json.Marshal(body)
	return nil, client.NewResponseError(status, raw)
}

func acknowledged(extra ...interface{}) *client.Response {
	body := map[string]interface{}{"acknowledged": true}
	for i := 0; i+1 < len(extra); i += 2 {
		body[extra[i].(string)] = extra[i+1]
	}
	return &client.Response{StatusCode: http.StatusOK, Body: body}
}

// resolve returns the concrete indices behind name, which may be an index or
// an alias.
func (c *Cluster) resolve(name string) []string {
	if _, ok := c.indices[name]; ok {
		return []string{name}
	}
	if indices, ok := c.aliases[name]; ok {
		return sortedKeys(indices)
	}
	return nil
}

func (c *Cluster) Info(ctx context.Context) (*versions.ClusterInfo, error) {
	info := c.info
	return &info, nil
}

func (c *Cluster) Health(ctx context.Context) (*client.Response, error) {
	return &client.Response{
		StatusCode: http.StatusOK,
		Body: map[string]interface{}{
			"cluster_name": c.info.ClusterName,
			"status":       "green",
		},
	}, nil
}

func (c *Cluster) Exists(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, isIndex := c.indices[name]
	_, isAlias := c.aliases[name]
	return isIndex || isAlias, nil
}

func (c *Cluster) CreateIndex(ctx context.Context, name string, body []byte, ignore ...int) (*client.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(http.MethodPut, "/"+name)

	if _, ok := c.indices[name]; ok {
		return errorResponse(400, "resource_already_exists_exception",
			fmt.Sprintf("index [%s] already exists", name), ignore)
	}
	if _, ok := c.aliases[name]; ok {
		return errorResponse(400, "invalid_index_name_exception",
			fmt.Sprintf("Invalid index name [%s], already exists as alias", name), ignore)
	}

	idx := &index{
		mappings: map[string]interface{}{},
		docs:     map[string]map[string]interface{}{},
	}
	if len(body) > 0 {
		var parsed map[string]interface{}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return errorResponse(400, "mapper_parsing_exception", err.Error(), ignore)
		}
		if m, ok := parsed["mappings"].(map[string]interface{}); ok {
			idx.mappings = m
		}
	}
	c.indices[name] = idx
	return acknowledged("shards_acknowledged", true, "index", name), nil
}

func (c *Cluster) DeleteIndex(ctx context.Context, name string, ignore ...int) (*client.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(http.MethodDelete, "/"+name)

	if _, ok := c.indices[name]; !ok {
		return errorResponse(404, "index_not_found_exception",
			fmt.Sprintf("no such index [%s]", name), ignore)
	}
	delete(c.indices, name)
	for alias, indices := range c.aliases {
		delete(indices, name)
		if len(indices) == 0 {
			delete(c.aliases, alias)
		}
	}
	return acknowledged(), nil
}

func (c *Cluster) PutAlias(ctx context.Context, indices []string, alias string, ignore ...int) (*client.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(http.MethodPut, "/"+strings.Join(indices, ",")+"/_alias/"+alias)

	if _, ok := c.indices[alias]; ok {
		return errorResponse(400, "invalid_alias_name_exception",
			fmt.Sprintf("Invalid alias name [%s]: an index or data stream exists with the same name as the alias", alias), ignore)
	}
	for _, name := range indices {
		if _, ok := c.indices[name]; !ok {
			return errorResponse(404, "index_not_found_exception",
				fmt.Sprintf("no such index [%s]", name), ignore)
		}
	}
	bound, ok := c.aliases[alias]
	if !ok {
		bound = map[string]struct{}{}
		c.aliases[alias] = bound
	}
	for _, name := range indices {
		bound[name] = struct{}{}
	}
	return acknowledged(), nil
}

func (c *Cluster) ResolveAlias(ctx context.Context, name string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolve(name), nil
}

func (c *Cluster) GetMapping(ctx context.Context, name string) (map[string]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	indices := c.resolve(name)
	if len(indices) == 0 {
		_, err := errorResponse(404, "index_not_found_exception",
			fmt.Sprintf("no such index [%s]", name), nil)
		return nil, err
	}
	ret := map[string]interface{}{}
	for _, indexName := range indices {
		ret[indexName] = map[string]interface{}{
			"mappings": deepCopy(c.indices[indexName].mappings),
		}
	}
	return ret, nil
}

func (c *Cluster) PutMapping(ctx context.Context, name string, body []byte) (*client.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(http.MethodPut, "/"+name+"/_mapping")

	indices := c.resolve(name)
	if len(indices) == 0 {
		return errorResponse(404, "index_not_found_exception",
			fmt.Sprintf("no such index [%s]", name), nil)
	}
	var update map[string]interface{}
	if err := json.Unmarshal(body, &update); err != nil {
		return errorResponse(400, "mapper_parsing_exception", err.Error(), nil)
	}

	merged := make([]map[string]interface{}, 0, len(indices))
	for _, indexName := range indices {
		m := deepCopy(c.indices[indexName].mappings).(map[string]interface{})
		if err := mergeMapping(m, update, ""); err != nil {
			return errorResponse(400, "illegal_argument_exception", err.Error(), nil)
		}
		merged = append(merged, m)
	}
	for i, indexName := range indices {
		c.indices[indexName].mappings = merged[i]
	}
	return acknowledged(), nil
}

// mergeMapping applies update onto dst. Like a real cluster it refuses to
// change the type of an existing field.
func mergeMapping(dst map[string]interface{}, update map[string]interface{}, path string) error {
	for k, v := range update {
		current, ok := dst[k]
		if !ok {
			dst[k] = deepCopy(v)
			continue
		}
		cm, cok := current.(map[string]interface{})
		um, uok := v.(map[string]interface{})
		if cok && uok {
			if ct, ut := cm["type"], um["type"]; ct != nil && ut != nil && ct != ut {
				return errors.Errorf("mapper [%s%s] cannot be changed from type [%v] to [%v]", path, k, ct, ut)
			}
			if err := mergeMapping(cm, um, path+k+"."); err != nil {
				return err
			}
			continue
		}
		if !reflect.DeepEqual(current, v) && k == "type" {
			return errors.Errorf("mapper [%s] cannot be changed from type [%v] to [%v]", strings.TrimSuffix(path, "."), current, v)
		}
		dst[k] = deepCopy(v)
	}
	return nil
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		ret := make(map[string]interface{}, len(t))
		for k, v := range t {
			ret[k] = deepCopy(v)
		}
		return ret
	case []interface{}:
		ret := make([]interface{}, len(t))
		for i, v := range t {
			ret[i] = deepCopy(v)
		}
		return ret
	default:
		return v
	}
}

func (c *Cluster) PutTemplate(
	ctx context.Context,
	kind client.TemplateKind,
	name string,
	body []byte,
	ignore ...int,
) (*client.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(http.MethodPut, "/"+kind.String()+"/"+name)

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errorResponse(400, "parse_exception", err.Error(), ignore)
	}
	if c.templates[kind] == nil {
		c.templates[kind] = map[string]map[string]interface{}{}
	}
	c.templates[kind][name] = parsed
	return acknowledged(), nil
}

// writeTarget resolves the index a document write goes to. Writing through an
// alias bound to more than one index is refused, as on a real cluster.
func (c *Cluster) writeTarget(name string) (*index, string, error) {
	if idx, ok := c.indices[name]; ok {
		return idx, name, nil
	}
	if indices, ok := c.aliases[name]; ok {
		if len(indices) != 1 {
			_, err := errorResponse(400, "illegal_argument_exception",
				fmt.Sprintf("no write index is defined for alias [%s]", name), nil)
			return nil, "", err
		}
		target := sortedKeys(indices)[0]
		return c.indices[target], target, nil
	}
	_, err := errorResponse(404, "index_not_found_exception",
		fmt.Sprintf("no such index [%s]", name), nil)
	return nil, "", err
}

func (c *Cluster) IndexDocument(
	ctx context.Context,
	indexName string,
	id string,
	body []byte,
	opType client.OpType,
) (*client.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(http.MethodPut, "/"+indexName+"/_doc/"+id)

	idx, target, err := c.writeTarget(indexName)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return errorResponse(400, "mapper_parsing_exception", err.Error(), nil)
	}
	if id == "" {
		idx.nextID++
		id = fmt.Sprintf("%d", idx.nextID)
	}
	result := "created"
	if _, ok := idx.docs[id]; ok {
		if opType == client.OpTypeCreate {
			return errorResponse(409, "version_conflict_engine_exception",
				fmt.Sprintf("[%s]: version conflict, document already exists", id), nil)
		}
		result = "updated"
	}
	idx.docs[id] = doc
	return &client.Response{
		StatusCode: http.StatusCreated,
		Body: map[string]interface{}{
			"_index": target,
			"_id":    id,
			"result": result,
		},
	}, nil
}

// Bulk supports the index, create and delete actions.
func (c *Cluster) Bulk(ctx context.Context, body io.Reader) (*client.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(http.MethodPost, "/_bulk")

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	items := []interface{}{}
	hasErrors := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var action map[string]map[string]interface{}
		if err := json.Unmarshal([]byte(line), &action); err != nil {
			return errorResponse(400, "illegal_argument_exception", err.Error(), nil)
		}
		for op, meta := range action {
			indexName, _ := meta["_index"].(string)
			id, _ := meta["_id"].(string)
			item := map[string]interface{}{"_index": indexName, "_id": id, "status": float64(200)}

			var source map[string]interface{}
			if op != "delete" {
				if !scanner.Scan() {
					return errorResponse(400, "illegal_argument_exception", "missing document source", nil)
				}
				if err := json.Unmarshal(scanner.Bytes(), &source); err != nil {
					return errorResponse(400, "illegal_argument_exception", err.Error(), nil)
				}
			}

			idx, target, err := c.writeTarget(indexName)
			switch {
			case err != nil:
				item["status"] = float64(404)
				item["error"] = map[string]interface{}{"type": "index_not_found_exception", "reason": err.Error()}
				hasErrors = true
			case op == "delete":
				item["_index"] = target
				if _, ok := idx.docs[id]; ok {
					delete(idx.docs, id)
					item["result"] = "deleted"
				} else {
					item["status"] = float64(404)
					item["result"] = "not_found"
				}
			case op == "create" && idx.docs[id] != nil:
				item["_index"] = target
				item["status"] = float64(409)
				item["error"] = map[string]interface{}{"type": "version_conflict_engine_exception"}
				hasErrors = true
			default:
				if id == "" {
					idx.nextID++
					id = fmt.Sprintf("%d", idx.nextID)
					item["_id"] = id
				}
				item["_index"] = target
				idx.docs[id] = source
				item["result"] = "created"
				item["status"] = float64(201)
			}
			items = append(items, map[string]interface{}{op: item})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read bulk body")
	}

	return &client.Response{
		StatusCode: http.StatusOK,
		Body: map[string]interface{}{
			"errors": hasErrors,
			"items":  items,
		},
	}, nil
}

// Search returns every document of the requested indices with a score of
// 1.0, applying min_score and size from the body when present.
func (c *Cluster) Search(ctx context.Context, indices []string, body []byte, preference string) (*client.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var request map[string]interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &request); err != nil {
			return errorResponse(400, "parsing_exception", err.Error(), nil)
		}
	}
	minScore, _ := request["min_score"].(float64)
	size := -1
	if s, ok := request["size"].(float64); ok {
		size = int(s)
	}

	var targets []string
	for _, name := range indices {
		resolved := c.resolve(name)
		if len(resolved) == 0 {
			return errorResponse(404, "index_not_found_exception",
				fmt.Sprintf("no such index [%s]", name), nil)
		}
		targets = append(targets, resolved...)
	}
	sort.Strings(targets)

	hits := []interface{}{}
	const score = 1.0
	if score >= minScore {
		for _, target := range targets {
			idx := c.indices[target]
			ids := make([]string, 0, len(idx.docs))
			for id := range idx.docs {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				hits = append(hits, map[string]interface{}{
					"_index":  target,
					"_id":     id,
					"_score":  score,
					"_source": deepCopy(idx.docs[id]),
				})
			}
		}
	}
	total := len(hits)
	if size >= 0 && size < len(hits) {
		hits = hits[:size]
	}

	return &client.Response{
		StatusCode: http.StatusOK,
		Body: map[string]interface{}{
			"took":      float64(0),
			"timed_out": false,
			"hits": map[string]interface{}{
				"total":     map[string]interface{}{"value": float64(total), "relation": "eq"},
				"max_score": score,
				"hits":      hits,
			},
		},
	}, nil
}
