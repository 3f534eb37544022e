package index

import (
	"context"
	"net/http"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	si_layers "github.com/go-go-golems/search-indices/pkg/cmds/layers"
	"github.com/go-go-golems/search-indices/pkg/lifecycle"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type InitCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &InitCommand{}

type InitSettings struct {
	Force bool `glazed.parameter:"force"`
}

func newLayers() ([]layers.ParameterLayer, error) {
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
	return []layers.ParameterLayer{glazedParameterLayer, connectionLayer, searchSettingsLayer}, nil
}

func NewInitCommand() (*InitCommand, error) {
	layers_, err := newLayers()
	if err != nil {
		return nil, err
	}

	return &InitCommand{
		CommandDescription: cmds.NewCommandDescription(
			"init",
			cmds.WithShort("Creates the registered indices, aliases and templates"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"force",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Skip the existence check and tolerate resources that already exist"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(layers_...),
		),
	}, nil
}

func (c *InitCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &InitSettings{}
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

	log.Info().Int("indices", m.Registry().NumberOfIndexes()).Msg("creating indices")
	seq, err := m.Create(ctx, lifecycle.CreateOptions{IgnoreExisting: s.Force})
	if err != nil {
		return err
	}
	if err := addResults(ctx, gp, seq); err != nil {
		return err
	}

	log.Info().Int("templates", m.NumberOfTemplates()).Msg("putting templates")
	return addResults(ctx, gp, m.PutAllTemplates(ctx, ignoreIf(s.Force, http.StatusBadRequest)...))
}
