package client

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-go-golems/search-indices/pkg/versions"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OpenSearchClient sends the typed opensearchapi requests through the root
// client and decodes the raw responses itself, so that both distributions
// share the same Response and error handling.
type OpenSearchClient struct {
	api *opensearchapi.Client
}

var _ SearchClient = &OpenSearchClient{}

func NewOpenSearchClient(api *opensearchapi.Client) *OpenSearchClient {
	return &OpenSearchClient{api: api}
}

func (c *OpenSearchClient) do(ctx context.Context, req opensearch.Request) (*opensearch.Response, error) {
	// without a data pointer Do returns error responses as they are
	return c.api.Client.Do(ctx, req, nil)
}

func (c *OpenSearchClient) perform(ctx context.Context, req opensearch.Request, ignore ...int) (*Response, error) {
	res, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(res.Body)
	return decodeResponse(res.StatusCode, res.Body, ignore)
}

func bodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return bytes.NewReader(body)
}

func (c *OpenSearchClient) Info(ctx context.Context) (*versions.ClusterInfo, error) {
	res, err := c.do(ctx, opensearchapi.InfoReq{})
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

func (c *OpenSearchClient) Health(ctx context.Context) (*Response, error) {
	return c.perform(ctx, opensearchapi.ClusterHealthReq{})
}

func (c *OpenSearchClient) Exists(ctx context.Context, name string) (bool, error) {
	res, err := c.do(ctx, opensearchapi.IndicesExistsReq{Indices: []string{name}})
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
		return false, NewResponseError(res.StatusCode, nil)
	}
}

func (c *OpenSearchClient) CreateIndex(ctx context.Context, name string, body []byte, ignore ...int) (*Response, error) {
	log.Debug().Str("index", name).Msg("creating index")
	return c.perform(ctx, opensearchapi.IndicesCreateReq{
		Index: name,
		Body:  bodyReader(body),
	}, ignore...)
}

func (c *OpenSearchClient) DeleteIndex(ctx context.Context, name string, ignore ...int) (*Response, error) {
	log.Debug().Str("index", name).Msg("deleting index")
	return c.perform(ctx, opensearchapi.IndicesDeleteReq{Indices: []string{name}}, ignore...)
}

func (c *OpenSearchClient) PutAlias(ctx context.Context, indices []string, alias string, ignore ...int) (*Response, error) {
	log.Debug().Strs("indices", indices).Str("alias", alias).Msg("putting alias")
	return c.perform(ctx, opensearchapi.AliasPutReq{Indices: indices, Alias: alias}, ignore...)
}

func (c *OpenSearchClient) ResolveAlias(ctx context.Context, name string) ([]string, error) {
	res, err := c.perform(ctx, opensearchapi.AliasGetReq{Indices: []string{name}}, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	return aliasIndices(res.Body), nil
}

func (c *OpenSearchClient) GetMapping(ctx context.Context, name string) (map[string]interface{}, error) {
	res, err := c.perform(ctx, opensearchapi.MappingGetReq{Indices: []string{name}})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *OpenSearchClient) PutMapping(ctx context.Context, name string, body []byte) (*Response, error) {
	log.Debug().Str("index", name).Msg("updating mapping")
	return c.perform(ctx, opensearchapi.MappingPutReq{
		Indices: []string{name},
		Body:    bodyReader(body),
	})
}

func (c *OpenSearchClient) PutTemplate(
	ctx context.Context,
	kind TemplateKind,
	name string,
	body []byte,
	ignore ...int,
) (*Response, error) {
	log.Debug().Str("kind", kind.String()).Str("template", name).Msg("putting template")
	switch kind {
	case LegacyTemplate:
		return c.perform(ctx, opensearchapi.TemplateCreateReq{
			Template: name,
			Body:     bodyReader(body),
		}, ignore...)
	case IndexTemplate:
		return c.perform(ctx, opensearchapi.IndexTemplateCreateReq{
			IndexTemplate: name,
			Body:          bodyReader(body),
		}, ignore...)
	case ComponentTemplate:
		return c.perform(ctx, opensearchapi.ComponentTemplateCreateReq{
			ComponentTemplate: name,
			Body:              bodyReader(body),
		}, ignore...)
	default:
		return nil, errors.Errorf("unknown template kind %q", kind)
	}
}

func (c *OpenSearchClient) IndexDocument(
	ctx context.Context,
	index string,
	id string,
	body []byte,
	opType OpType,
) (*Response, error) {
	if id != "" && opType == OpTypeCreate {
		return c.perform(ctx, opensearchapi.DocumentCreateReq{
			Index:      index,
			DocumentID: id,
			Body:       bodyReader(body),
		})
	}
	return c.perform(ctx, opensearchapi.IndexReq{
		Index:      index,
		DocumentID: id,
		Body:       bodyReader(body),
	})
}

func (c *OpenSearchClient) Bulk(ctx context.Context, body io.Reader) (*Response, error) {
	return c.perform(ctx, opensearchapi.BulkReq{Body: body})
}

func (c *OpenSearchClient) Search(ctx context.Context, indices []string, body []byte, preference string) (*Response, error) {
	log.Debug().Strs("indices", indices).Msg("searching")
	return c.perform(ctx, opensearchapi.SearchReq{
		Indices: indices,
		Body:    bodyReader(body),
		Params:  opensearchapi.SearchParams{Preference: preference},
	})
}
