package layers

import (
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/versions"
	"github.com/pkg/errors"
)

const SearchConnectionSlug = "search-connection"

type ConnectionSettings struct {
	Addresses          []string             `glazed.parameter:"addresses"`
	Username           string               `glazed.parameter:"username"`
	Password           string               `glazed.parameter:"password"`
	CloudId            string               `glazed.parameter:"cloud-id"`
	ApiKey             string               `glazed.parameter:"api-key"`
	CACert             *parameters.FileData `glazed.parameter:"ca-cert"`
	InsecureSkipVerify bool                 `glazed.parameter:"insecure-skip-verify"`
	RetryOnStatus      []int                `glazed.parameter:"retry-on-status"`
	DisableRetry       bool                 `glazed.parameter:"disable-retry"`
	MaxRetries         int                  `glazed.parameter:"max-retries"`
	RetryBackoff       *int                 `glazed.parameter:"retry-backoff"`
	EnableDebugLogger  bool                 `glazed.parameter:"enable-debug-logger"`
	Distribution       string               `glazed.parameter:"distribution"`
	// ClientOptions are passed to the client constructor as is. Its
	// addresses win over the addresses flag.
	ClientOptions map[string]interface{} `glazed.parameter:"client-options"`
}

func NewConnectionParameterLayer(options ...layers.ParameterLayerOptions) (*layers.ParameterLayerImpl, error) {
	options_ := append(options, layers.WithParameterDefinitions(
		parameters.NewParameterDefinition(
			"addresses",
			parameters.ParameterTypeStringList,
			parameters.WithHelp("Cluster hosts"),
			parameters.WithDefault([]string{"http://localhost:9200"}),
		),
		parameters.NewParameterDefinition(
			"username",
			parameters.ParameterTypeString,
			parameters.WithHelp("Username for basic authentication"),
		),
		parameters.NewParameterDefinition(
			"password",
			parameters.ParameterTypeString,
			parameters.WithHelp("Password for basic authentication"),
		),
		parameters.NewParameterDefinition(
			"cloud-id",
			parameters.ParameterTypeString,
			parameters.WithHelp("Endpoint for the Elastic Cloud service"),
		),
		parameters.NewParameterDefinition(
			"api-key",
			parameters.ParameterTypeString,
			parameters.WithHelp("Base64-encoded API key for authentication"),
		),
		parameters.NewParameterDefinition(
			"ca-cert",
			parameters.ParameterTypeFile,
			parameters.WithHelp("PEM-encoded certificate authorities"),
		),
		parameters.NewParameterDefinition(
			"insecure-skip-verify",
			parameters.ParameterTypeBool,
			parameters.WithHelp("Skip TLS certificate verification"),
			parameters.WithDefault(false),
		),
		parameters.NewParameterDefinition(
			"retry-on-status",
			parameters.ParameterTypeIntegerList,
			parameters.WithHelp("HTTP status codes that trigger a retry"),
			parameters.WithDefault([]int{502, 503, 504}),
		),
		parameters.NewParameterDefinition(
			"disable-retry",
			parameters.ParameterTypeBool,
			parameters.WithHelp("Disable retrying failed requests"),
			parameters.WithDefault(false),
		),
		parameters.NewParameterDefinition(
			"max-retries",
			parameters.ParameterTypeInteger,
			parameters.WithHelp("Maximum number of retries"),
			parameters.WithDefault(3),
		),
		parameters.NewParameterDefinition(
			"retry-backoff",
			parameters.ParameterTypeInteger,
			parameters.WithHelp("Seconds to wait between retries"),
		),
		parameters.NewParameterDefinition(
			"enable-debug-logger",
			parameters.ParameterTypeBool,
			parameters.WithHelp("Log every request and response of the client"),
			parameters.WithDefault(false),
		),
		parameters.NewParameterDefinition(
			"distribution",
			parameters.ParameterTypeChoice,
			parameters.WithHelp("Search engine distribution of the cluster"),
			parameters.WithChoices(string(versions.Elasticsearch), string(versions.OpenSearch)),
			parameters.WithDefault(string(versions.Elasticsearch)),
		),
		parameters.NewParameterDefinition(
			"client-options",
			parameters.ParameterTypeKeyValue,
			parameters.WithHelp("Raw client options (hosts, username, password, ...), override the flags above"),
		),
	))
	return layers.NewParameterLayer(SearchConnectionSlug, "Search cluster connection", options_...)
}

func NewConnectionSettingsFromParsedLayers(parsedLayers *layers.ParsedLayers) (*ConnectionSettings, error) {
	ret := &ConnectionSettings{}
	err := parsedLayers.InitializeStruct(SearchConnectionSlug, ret)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// ClientSettings converts the flags into client settings. Entries of
// client-options override the matching flags.
func (s *ConnectionSettings) ClientSettings() (*client.Settings, error) {
	ret := &client.Settings{
		Distribution:       versions.Distribution(s.Distribution),
		Hosts:              s.Addresses,
		Username:           s.Username,
		Password:           s.Password,
		CloudID:            s.CloudId,
		APIKey:             s.ApiKey,
		InsecureSkipVerify: s.InsecureSkipVerify,
		RetryOnStatus:      s.RetryOnStatus,
		DisableRetry:       s.DisableRetry,
		MaxRetries:         s.MaxRetries,
		RetryBackoff:       s.RetryBackoff,
		EnableDebugLogger:  s.EnableDebugLogger,
	}
	if s.CACert != nil {
		ret.CACert = s.CACert.RawContent
	}

	for k, v := range s.ClientOptions {
		value, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("client option %s must be a string", k)
		}
		switch k {
		case "hosts", "addresses":
			ret.Addresses = append(ret.Addresses, splitList(value)...)
		case "username":
			ret.Username = value
		case "password":
			ret.Password = value
		case "cloud-id", "cloud_id":
			ret.CloudID = value
		case "api-key", "api_key":
			ret.APIKey = value
		case "service-token", "service_token":
			ret.ServiceToken = value
		case "certificate-fingerprint", "certificate_fingerprint":
			ret.CertificateFingerprint = value
		default:
			return nil, errors.Errorf("unknown client option %s", k)
		}
	}

	return ret, nil
}

func NewClientSettingsFromParsedLayers(parsedLayers *layers.ParsedLayers) (*client.Settings, error) {
	s, err := NewConnectionSettingsFromParsedLayers(parsedLayers)
	if err != nil {
		return nil, err
	}
	return s.ClientSettings()
}

func NewSearchClientFromParsedLayers(parsedLayers *layers.ParsedLayers) (client.SearchClient, error) {
	settings, err := NewClientSettingsFromParsedLayers(parsedLayers)
	if err != nil {
		return nil, err
	}
	return client.New(settings)
}
