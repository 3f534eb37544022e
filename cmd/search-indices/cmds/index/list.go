package index

import (
	"context"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/types"
	si_layers "github.com/go-go-golems/search-indices/pkg/cmds/layers"
)

type ListCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &ListCommand{}

type ListSettings struct {
	OnlyActive  bool `glazed.parameter:"only-active"`
	OnlyAliases bool `glazed.parameter:"only-aliases"`
	Verbose     bool `glazed.parameter:"verbose"`
}

func NewListCommand() (*ListCommand, error) {
	layers_, err := newLayers()
	if err != nil {
		return nil, err
	}

	return &ListCommand{
		CommandDescription: cmds.NewCommandDescription(
			"list",
			cmds.WithShort("Lists the registered aliases and indices"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"only-active",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Only list the active aliases"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"only-aliases",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Do not list the indices"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"verbose",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Also print the prefixed names and mapping locations"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(layers_...),
		),
	}, nil
}

func (c *ListCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &ListSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}

	st, err := si_layers.NewStateFromParsedLayers(parsedLayers)
	if err != nil {
		return err
	}
	m, err := st.Manager(ctx)
	if err != nil {
		return err
	}

	for _, e := range m.List(s.OnlyActive, s.OnlyAliases) {
		row := types.NewRow(
			types.MRP("name", strings.Repeat("  ", e.Depth)+e.Key),
			types.MRP("type", string(e.Kind)),
		)
		if s.Verbose {
			row.Set("alias", e.Alias)
			row.Set("index", e.Index)
			row.Set("location", e.Location)
		}
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
