package cmds

import (
	"context"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/middlewares/row"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	si_layers "github.com/go-go-golems/search-indices/pkg/cmds/layers"
	"github.com/pkg/errors"
)

type InfoCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &InfoCommand{}

type InfoSettings struct {
	Full bool `glazed.parameter:"full"`
}

func NewInfoCommand() (*InfoCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}
	connectionLayer, err := si_layers.NewConnectionParameterLayer()
	if err != nil {
		return nil, errors.Wrap(err, "could not create search connection layer")
	}

	return &InfoCommand{
		CommandDescription: cmds.NewCommandDescription(
			"info",
			cmds.WithShort("Prints information about the search cluster"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"full",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Also prints the cluster health"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(
				glazedParameterLayer,
				connectionLayer,
			),
		),
	}, nil
}

func (i *InfoCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &InfoSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}

	c, err := si_layers.NewSearchClientFromParsedLayers(parsedLayers)
	if err != nil {
		return err
	}

	if tp, ok := gp.(*middlewares.TableProcessor); ok {
		tp.AddRowMiddleware(
			row.NewReorderColumnOrderMiddleware(
				[]string{"distribution", "version", "cluster_name", "status"},
			),
		)
	}

	info, err := c.Info(ctx)
	if err != nil {
		return err
	}
	row_ := types.NewRow(
		types.MRP("distribution", string(info.Distribution)),
		types.MRP("version", info.Number),
	)

	if s.Full {
		health, err := c.Health(ctx)
		if err != nil {
			return err
		}
		for _, k := range []string{"cluster_name", "status", "number_of_nodes", "active_shards", "unassigned_shards"} {
			if v, ok := health.Body[k]; ok {
				row_.Set(k, v)
			}
		}
	}

	return gp.AddRow(ctx, row_)
}
