package client

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-go-golems/search-indices/pkg/versions"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"github.com/pkg/errors"
)

// Settings configures the connection to the cluster.
//
// Hosts is the plain list of cluster URLs. Addresses comes from the raw
// client options and wins over Hosts when both are set.
type Settings struct {
	Distribution           versions.Distribution
	Hosts                  []string
	Addresses              []string
	Username               string
	Password               string
	CloudID                string
	APIKey                 string
	ServiceToken           string
	CertificateFingerprint string
	CACert                 []byte
	InsecureSkipVerify     bool
	RetryOnStatus          []int
	DisableRetry           bool
	MaxRetries             int
	RetryBackoff           *int
	CompressRequestBody    bool
	DiscoverNodesOnStart   bool
	DiscoverNodesInterval  *int
	EnableDebugLogger      bool

	// Transport replaces the default HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

func (s *Settings) addresses() []string {
	if len(s.Addresses) > 0 {
		return s.Addresses
	}
	return s.Hosts
}

func (s *Settings) transport() http.RoundTripper {
	if s.Transport != nil {
		return s.Transport
	}
	return &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: s.InsecureSkipVerify,
		},
	}
}

func (s *Settings) retryBackoff() func(int) time.Duration {
	if s.RetryBackoff == nil {
		return nil
	}
	backoff := *s.RetryBackoff
	return func(attempt int) time.Duration {
		return time.Duration(backoff) * time.Second
	}
}

// New builds the client matching the configured distribution.
func New(s *Settings) (SearchClient, error) {
	switch s.Distribution {
	case versions.OpenSearch:
		return NewOpenSearchClientFromSettings(s)
	case versions.Elasticsearch, "":
		return NewElasticsearchClientFromSettings(s)
	default:
		return nil, errors.Errorf("unsupported distribution %q", s.Distribution)
	}
}

func NewElasticsearchClientFromSettings(s *Settings) (*ElasticsearchClient, error) {
	cfg := elasticsearch.Config{
		Addresses:              s.addresses(),
		Username:               s.Username,
		Password:               s.Password,
		CloudID:                s.CloudID,
		APIKey:                 s.APIKey,
		ServiceToken:           s.ServiceToken,
		CertificateFingerprint: s.CertificateFingerprint,
		RetryOnStatus:          s.RetryOnStatus,
		DisableRetry:           s.DisableRetry,
		MaxRetries:             s.MaxRetries,
		RetryBackoff:           s.retryBackoff(),
		EnableDebugLogger:      s.EnableDebugLogger,
		Transport:              s.transport(),
		CompressRequestBody:    s.CompressRequestBody,
		DiscoverNodesOnStart:   s.DiscoverNodesOnStart,
	}
	if len(s.CACert) > 0 {
		cfg.CACert = s.CACert
	}
	if s.DiscoverNodesInterval != nil {
		cfg.DiscoverNodesInterval = time.Duration(*s.DiscoverNodesInterval) * time.Second
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "could not create elasticsearch client")
	}
	return NewElasticsearchClient(es), nil
}

func NewOpenSearchClientFromSettings(s *Settings) (*OpenSearchClient, error) {
	cfg := opensearch.Config{
		Addresses:            s.addresses(),
		Username:             s.Username,
		Password:             s.Password,
		RetryOnStatus:        s.RetryOnStatus,
		DisableRetry:         s.DisableRetry,
		MaxRetries:           s.MaxRetries,
		RetryBackoff:         s.retryBackoff(),
		EnableDebugLogger:    s.EnableDebugLogger,
		Transport:            s.transport(),
		CompressRequestBody:  s.CompressRequestBody,
		DiscoverNodesOnStart: s.DiscoverNodesOnStart,
	}
	if len(s.CACert) > 0 {
		cfg.CACert = s.CACert
	}
	if s.DiscoverNodesInterval != nil {
		cfg.DiscoverNodesInterval = time.Duration(*s.DiscoverNodesInterval) * time.Second
	}

	api, err := opensearchapi.NewClient(opensearchapi.Config{Client: cfg})
	if err != nil {
		return nil, errors.Wrap(err, "could not create opensearch client")
	}
	return NewOpenSearchClient(api), nil
}
