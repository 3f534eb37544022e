// Package client defines the calls the index lifecycle issues against a
// search cluster and implements them for Elasticsearch and OpenSearch.
package client

import (
	"context"
	"io"

	"github.com/go-go-golems/search-indices/pkg/versions"
)

type TemplateKind string

const (
	// LegacyTemplate is stored through PUT /_template/{name}.
	LegacyTemplate TemplateKind = "_template"
	// IndexTemplate is stored through PUT /_index_template/{name}.
	IndexTemplate TemplateKind = "_index_template"
	// ComponentTemplate is stored through PUT /_component_template/{name}.
	ComponentTemplate TemplateKind = "_component_template"
)

func (k TemplateKind) String() string {
	return string(k)
}

type OpType string

const (
	OpTypeIndex  OpType = "index"
	OpTypeCreate OpType = "create"
)

// SearchClient is the subset of the cluster REST API the lifecycle manager,
// the search helpers and the sync indexer need.
//
// Calls that accept ignore treat a response with one of those HTTP status
// codes as a success and return it instead of a *ResponseError.
type SearchClient interface {
	Info(ctx context.Context) (*versions.ClusterInfo, error)
	Health(ctx context.Context) (*Response, error)

	// Exists reports whether an index or an alias with this name exists.
	Exists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, body []byte, ignore ...int) (*Response, error)
	DeleteIndex(ctx context.Context, name string, ignore ...int) (*Response, error)

	PutAlias(ctx context.Context, indices []string, alias string, ignore ...int) (*Response, error)
	// ResolveAlias returns the concrete indices name currently points to,
	// sorted. A name that does not exist resolves to nothing.
	ResolveAlias(ctx context.Context, name string) ([]string, error)

	// GetMapping returns the mappings keyed by concrete index name.
	GetMapping(ctx context.Context, name string) (map[string]interface{}, error)
	PutMapping(ctx context.Context, name string, body []byte) (*Response, error)

	PutTemplate(ctx context.Context, kind TemplateKind, name string, body []byte, ignore ...int) (*Response, error)

	IndexDocument(ctx context.Context, index string, id string, body []byte, opType OpType) (*Response, error)
	Bulk(ctx context.Context, body io.Reader) (*Response, error)
	Search(ctx context.Context, indices []string, body []byte, preference string) (*Response, error)
}
