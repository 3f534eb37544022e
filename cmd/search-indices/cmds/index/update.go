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
	"github.com/go-go-golems/search-indices/pkg/lifecycle"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type UpdateCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &UpdateCommand{}

type UpdateSettings struct {
	Name    string `glazed.parameter:"name"`
	NoCheck bool   `glazed.parameter:"no-check"`
}

func NewUpdateCommand() (*UpdateCommand, error) {
	layers_, err := newLayers()
	if err != nil {
		return nil, err
	}

	return &UpdateCommand{
		CommandDescription: cmds.NewCommandDescription(
			"update",
			cmds.WithShort("Updates the mapping of a registered index in place"),
			cmds.WithLong(`Applies the registered mapping of name to the index behind its write alias.

Only additions are allowed unless --no-check is given. The changes are printed
either way.`),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"name",
					parameters.ParameterTypeString,
					parameters.WithHelp("Key of the registered index"),
					parameters.WithRequired(true),
				),
			),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"no-check",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Apply changes that are not pure additions"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(layers_...),
		),
	}, nil
}

func changeRow(target string, c lifecycle.Change, allowed bool) types.Row {
	return types.NewRow(
		types.MRP("index", target),
		types.MRP("change", string(c.Kind)),
		types.MRP("path", strings.Join(c.Path, ".")),
		types.MRP("old", c.Old),
		types.MRP("new", c.New),
		types.MRP("allowed", allowed),
	)
}

func (c *UpdateCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &UpdateSettings{}
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

	res, err := m.UpdateMapping(ctx, s.Name, !s.NoCheck)
	var notAllowed *lifecycle.NotAllowedMappingUpdateError
	if errors.As(err, &notAllowed) {
		for _, change := range notAllowed.Changes {
			if err := gp.AddRow(ctx, changeRow(notAllowed.Index, change, false)); err != nil {
				return err
			}
		}
		return err
	}
	if err != nil {
		return err
	}

	if len(res.Changes) == 0 {
		log.Info().Str("index", res.Target).Msg("mapping is up to date")
	}
	for _, change := range res.Changes {
		if err := gp.AddRow(ctx, changeRow(res.Target, change, true)); err != nil {
			return err
		}
	}
	return nil
}
