package layers

import (
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/search-indices/pkg/config"
	"github.com/go-go-golems/search-indices/pkg/state"
	"github.com/pkg/errors"
)

const SearchSettingsSlug = "search-settings"

type SearchSettings struct {
	IndexPrefix   string   `glazed.parameter:"index-prefix"`
	ActiveAliases []string `glazed.parameter:"active-aliases"`
	MinScore      *float64 `glazed.parameter:"min-score"`
	EngineVersion int      `glazed.parameter:"engine-version"`
	Manifest      string   `glazed.parameter:"manifest"`
}

func NewSearchSettingsParameterLayer(
	options ...layers.ParameterLayerOptions,
) (*layers.ParameterLayerImpl, error) {
	options_ := append(options, layers.WithParameterDefinitions(
		parameters.NewParameterDefinition(
			"index-prefix",
			parameters.ParameterTypeString,
			parameters.WithHelp("Prefix added to every index, alias and template name"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition(
			"active-aliases",
			parameters.ParameterTypeStringList,
			parameters.WithHelp("Top-level aliases the index commands work on (all when empty)"),
		),
		parameters.NewParameterDefinition(
			"min-score",
			parameters.ParameterTypeFloat,
			parameters.WithHelp("Minimum score added to every search request"),
		),
		parameters.NewParameterDefinition(
			"engine-version",
			parameters.ParameterTypeInteger,
			parameters.WithHelp("Major version of the search engine (detected from the cluster when 0)"),
			parameters.WithDefault(0),
		),
		parameters.NewParameterDefinition(
			"manifest",
			parameters.ParameterTypeString,
			parameters.WithHelp("Manifest listing the mapping and template folders"),
		),
	))
	return layers.NewParameterLayer(SearchSettingsSlug, "Search index settings", options_...)
}

func NewSearchSettingsFromParsedLayers(parsedLayers *layers.ParsedLayers) (*SearchSettings, error) {
	ret := &SearchSettings{}
	err := parsedLayers.InitializeStruct(SearchSettingsSlug, ret)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// NewConfigFromParsedLayers builds the configuration from the connection and
// search settings layers and reads the manifest.
func NewConfigFromParsedLayers(parsedLayers *layers.ParsedLayers) (*config.Config, error) {
	s, err := NewSearchSettingsFromParsedLayers(parsedLayers)
	if err != nil {
		return nil, err
	}
	connection, err := NewClientSettingsFromParsedLayers(parsedLayers)
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{
		Prefix:        s.IndexPrefix,
		ActiveAliases: s.ActiveAliases,
		MinScore:      s.MinScore,
		EngineMajor:   s.EngineVersion,
		Distribution:  connection.Distribution,
		Connection:    connection,
	}

	if s.Manifest != "" {
		cfg.Manifest, err = config.LoadManifest(s.Manifest)
		if err != nil {
			return nil, errors.Wrap(err, "could not load manifest")
		}
	}
	return cfg, nil
}

func NewStateFromParsedLayers(parsedLayers *layers.ParsedLayers, options ...state.Option) (*state.State, error) {
	cfg, err := NewConfigFromParsedLayers(parsedLayers)
	if err != nil {
		return nil, err
	}
	return state.New(cfg, options...), nil
}

func splitList(s string) []string {
	var ret []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			ret = append(ret, v)
		}
	}
	return ret
}
