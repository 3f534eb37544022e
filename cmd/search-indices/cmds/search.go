package cmds

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	si_layers "github.com/go-go-golems/search-indices/pkg/cmds/layers"
	"github.com/go-go-golems/search-indices/pkg/search"
	"github.com/pkg/errors"
)

type SearchCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &SearchCommand{}

type SearchSettings struct {
	Indices      []string `glazed.parameter:"indices"`
	Body         string   `glazed.parameter:"body"`
	IDs          []string `glazed.parameter:"ids"`
	RemoteAddr   string   `glazed.parameter:"remote-addr"`
	UserAgent    string   `glazed.parameter:"user-agent"`
	Aggregations bool     `glazed.parameter:"aggregations"`
	RawResults   bool     `glazed.parameter:"raw-results"`
}

func NewSearchCommand() (*SearchCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}
	connectionLayer, err := si_layers.NewConnectionParameterLayer()
	if err != nil {
		return nil, errors.Wrap(err, "could not create search connection layer")
	}
	searchSettingsLayer, err := si_layers.NewSearchSettingsParameterLayer()
	if err != nil {
		return nil, errors.Wrap(err, "could not create search settings layer")
	}

	return &SearchCommand{
		CommandDescription: cmds.NewCommandDescription(
			"search",
			cmds.WithShort("Searches the prefixed indices or aliases"),
			cmds.WithLong(`Runs the query read from --body against the given indices or aliases. The names
are prefixed with the configured index prefix, and the configured minimum score
is added to queries that do not set one.`),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"indices",
					parameters.ParameterTypeStringList,
					parameters.WithHelp("Unprefixed index or alias names"),
					parameters.WithRequired(true),
				),
			),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"body",
					parameters.ParameterTypeString,
					parameters.WithShortFlag("b"),
					parameters.WithHelp("File holding the query, - for stdin"),
				),
				parameters.NewParameterDefinition(
					"ids",
					parameters.ParameterTypeStringList,
					parameters.WithHelp("Fetch these document ids instead of running a query"),
				),
				parameters.NewParameterDefinition(
					"remote-addr",
					parameters.ParameterTypeString,
					parameters.WithHelp("Address of the end user, used to route repeated searches to the same shards"),
				),
				parameters.NewParameterDefinition(
					"user-agent",
					parameters.ParameterTypeString,
					parameters.WithHelp("User agent of the end user, used with --remote-addr"),
				),
				parameters.NewParameterDefinition(
					"aggregations",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Output the aggregations instead of the hits"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"raw-results",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Output the raw hits"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(glazedParameterLayer, connectionLayer, searchSettingsLayer),
		),
	}, nil
}

func (c *SearchCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &SearchSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}

	var query map[string]interface{}
	switch {
	case len(s.IDs) > 0:
		query = search.IDsQuery(s.IDs...)
	case s.Body != "":
		var data []byte
		var err error
		if s.Body == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(s.Body)
		}
		if err != nil {
			return errors.Wrap(err, "could not read query")
		}
		if err := json.Unmarshal(data, &query); err != nil {
			return errors.Wrap(err, "could not parse query")
		}
	}

	st, err := si_layers.NewStateFromParsedLayers(parsedLayers)
	if err != nil {
		return err
	}
	searcher, err := st.Searcher()
	if err != nil {
		return err
	}

	result, err := searcher.Search(ctx, search.Request{
		Indices:    s.Indices,
		Query:      query,
		RemoteAddr: s.RemoteAddr,
		UserAgent:  s.UserAgent,
	})
	if err != nil {
		return err
	}

	if s.Aggregations {
		rows, err := result.AggregationRows()
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := gp.AddRow(ctx, row); err != nil {
				return err
			}
		}
		return nil
	}

	if s.RawResults {
		for _, hit := range result.Hits.Hits {
			data, err := json.Marshal(hit)
			if err != nil {
				return err
			}
			row := types.NewRow()
			if err := json.Unmarshal(data, &row); err != nil {
				return err
			}
			if err := gp.AddRow(ctx, row); err != nil {
				return err
			}
		}
		return nil
	}

	for _, row := range result.Rows() {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
