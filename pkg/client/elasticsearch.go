package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/go-go-golems/search-indices/pkg/versions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type ElasticsearchClient struct {
	es *elasticsearch.Client
}

var _ SearchClient = &ElasticsearchClient{}

func NewElasticsearchClient(es *elasticsearch.Client) *ElasticsearchClient {
	return &ElasticsearchClient{es: es}
}

func handle(res *esapi.Response, err error, ignore ...int) (*Response, error) {
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(res.Body)
	return decodeResponse(res.StatusCode, res.Body, ignore)
}

func (c *ElasticsearchClient) Info(ctx context.Context) (*versions.ClusterInfo, error) {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(res.Body)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, NewResponseError(res.StatusCode, body)
	}
	return versions.ParseInfo(body)
}

func (c *ElasticsearchClient) Health(ctx context.Context) (*Response, error) {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	return handle(res, err)
}

func (c *ElasticsearchClient) Exists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.Exists(
		[]string{name},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(res.Body)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		body, _ := io.ReadAll(res.Body)
		return false, NewResponseError(res.StatusCode, body)
	}
}

func (c *ElasticsearchClient) CreateIndex(ctx context.Context, name string, body []byte, ignore ...int) (*Response, error) {
	log.Debug().Str("index", name).Msg("creating index")
	options := []func(*esapi.IndicesCreateRequest){
		c.es.Indices.Create.WithContext(ctx),
	}
	if len(body) > 0 {
		options = append(options, c.es.Indices.Create.WithBody(bytes.NewReader(body)))
	}
	res, err := c.es.Indices.Create(name, options...)
	return handle(res, err, ignore...)
}

func (c *ElasticsearchClient) DeleteIndex(ctx context.Context, name string, ignore ...int) (*Response, error) {
	log.Debug().Str("index", name).Msg("deleting index")
	res, err := c.es.Indices.Delete(
		[]string{name},
		c.es.Indices.Delete.WithContext(ctx),
	)
	return handle(res, err, ignore...)
}

func (c *ElasticsearchClient) PutAlias(ctx context.Context, indices []string, alias string, ignore ...int) (*Response, error) {
	log.Debug().Strs("indices", indices).Str("alias", alias).Msg("putting alias")
	res, err := c.es.Indices.PutAlias(
		indices,
		alias,
		c.es.Indices.PutAlias.WithContext(ctx),
	)
	return handle(res, err, ignore...)
}

func (c *ElasticsearchClient) ResolveAlias(ctx context.Context, name string) ([]string, error) {
	r, err := c.es.Indices.GetAlias(
		c.es.Indices.GetAlias.WithContext(ctx),
		c.es.Indices.GetAlias.WithIndex(name),
	)
	res, err := handle(r, err, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	return aliasIndices(res.Body), nil
}

func (c *ElasticsearchClient) GetMapping(ctx context.Context, name string) (map[string]interface{}, error) {
	r, err := c.es.Indices.GetMapping(
		c.es.Indices.GetMapping.WithContext(ctx),
		c.es.Indices.GetMapping.WithIndex(name),
	)
	res, err := handle(r, err)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *ElasticsearchClient) PutMapping(ctx context.Context, name string, body []byte) (*Response, error) {
	log.Debug().Str("index", name).Msg("updating mapping")
	res, err := c.es.Indices.PutMapping(
		[]string{name},
		bytes.NewReader(body),
		c.es.Indices.PutMapping.WithContext(ctx),
	)
	return handle(res, err)
}

func (c *ElasticsearchClient) PutTemplate(
	ctx context.Context,
	kind TemplateKind,
	name string,
	body []byte,
	ignore ...int,
) (*Response, error) {
	log.Debug().Str("kind", kind.String()).Str("template", name).Msg("putting template")
	switch kind {
	case LegacyTemplate:
		res, err := c.es.Indices.PutTemplate(
			name, bytes.NewReader(body),
			c.es.Indices.PutTemplate.WithContext(ctx),
		)
		return handle(res, err, ignore...)
	case IndexTemplate:
		res, err := c.es.Indices.PutIndexTemplate(
			name, bytes.NewReader(body),
			c.es.Indices.PutIndexTemplate.WithContext(ctx),
		)
		return handle(res, err, ignore...)
	case ComponentTemplate:
		res, err := c.es.Cluster.PutComponentTemplate(
			name, bytes.NewReader(body),
			c.es.Cluster.PutComponentTemplate.WithContext(ctx),
		)
		return handle(res, err, ignore...)
	default:
		return nil, errors.Errorf("unknown template kind %q", kind)
	}
}

func (c *ElasticsearchClient) IndexDocument(
	ctx context.Context,
	index string,
	id string,
	body []byte,
	opType OpType,
) (*Response, error) {
	options := []func(*esapi.IndexRequest){
		c.es.Index.WithContext(ctx),
		c.es.Index.WithOpType(string(opType)),
	}
	if id != "" {
		options = append(options, c.es.Index.WithDocumentID(id))
	}
	res, err := c.es.Index(index, bytes.NewReader(body), options...)
	return handle(res, err)
}

func (c *ElasticsearchClient) Bulk(ctx context.Context, body io.Reader) (*Response, error) {
	res, err := c.es.Bulk(body, c.es.Bulk.WithContext(ctx))
	return handle(res, err)
}

func (c *ElasticsearchClient) Search(ctx context.Context, indices []string, body []byte, preference string) (*Response, error) {
	options := []func(*esapi.SearchRequest){
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(indices...),
	}
	if len(body) > 0 {
		options = append(options, c.es.Search.WithBody(bytes.NewReader(body)))
	}
	if preference != "" {
		options = append(options, c.es.Search.WithPreference(preference))
	}
	if e := log.Debug(); e.Enabled() {
		var query interface{}
		_ = json.Unmarshal(body, &query)
		e.Strs("indices", indices).Interface("query", query).Msg("searching")
	}
	res, err := c.es.Search(options...)
	return handle(res, err)
}
