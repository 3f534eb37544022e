package layers

import (
	"testing"

	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/search-indices/pkg/versions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSettings(t *testing.T) {
	s := &ConnectionSettings{
		Addresses:    []string{"http://localhost:9200"},
		Username:     "elastic",
		Distribution: "opensearch",
		MaxRetries:   3,
		CACert:       &parameters.FileData{RawContent: []byte("pem")},
	}
	settings, err := s.ClientSettings()
	require.NoError(t, err)
	assert.Equal(t, versions.OpenSearch, settings.Distribution)
	assert.Equal(t, []string{"http://localhost:9200"}, settings.Hosts)
	assert.Empty(t, settings.Addresses)
	assert.Equal(t, "elastic", settings.Username)
	assert.Equal(t, []byte("pem"), settings.CACert)
	assert.Equal(t, 3, settings.MaxRetries)
}

func TestClientOptionsOverrideFlags(t *testing.T) {
	s := &ConnectionSettings{
		Addresses: []string{"http://localhost:9200"},
		Username:  "elastic",
		ClientOptions: map[string]interface{}{
			"hosts":    "https://a:9200, https://b:9200",
			"username": "admin",
			"api_key":  "key",
		},
	}
	settings, err := s.ClientSettings()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a:9200", "https://b:9200"}, settings.Addresses)
	assert.Equal(t, "admin", settings.Username)
	assert.Equal(t, "key", settings.APIKey)

	s.ClientOptions = map[string]interface{}{"timeout": "10"}
	_, err = s.ClientSettings()
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a,,b "))
	assert.Nil(t, splitList(""))
}
