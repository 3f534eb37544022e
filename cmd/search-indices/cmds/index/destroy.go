package index

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	si_layers "github.com/go-go-golems/search-indices/pkg/cmds/layers"
	"github.com/go-go-golems/search-indices/pkg/lifecycle"
)

type DestroyCommand struct {
	*cmds.CommandDescription
	// confirmation prompt
	in  io.Reader
	out io.Writer
}

var _ cmds.GlazeCommand = &DestroyCommand{}

type DestroySettings struct {
	Force    bool `glazed.parameter:"force"`
	YesIKnow bool `glazed.parameter:"yes-i-know"`
}

func NewDestroyCommand() (*DestroyCommand, error) {
	layers_, err := newLayers()
	if err != nil {
		return nil, err
	}

	return &DestroyCommand{
		CommandDescription: cmds.NewCommandDescription(
			"destroy",
			cmds.WithShort("Deletes the index behind every registered write alias"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"force",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Tolerate 400 and 404 responses"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"yes-i-know",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Do not ask for confirmation"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(layers_...),
		),
		in:  os.Stdin,
		out: os.Stderr,
	}, nil
}

func (c *DestroyCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &DestroySettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}

	if !s.YesIKnow {
		if err := confirm(c.in, c.out, "You are about to destroy all indexes."); err != nil {
			return err
		}
	}

	st, err := si_layers.NewStateFromParsedLayers(parsedLayers)
	if err != nil {
		return err
	}
	m, err := st.Manager(ctx)
	if err != nil {
		return err
	}

	return addResults(ctx, gp, m.Delete(ctx, lifecycle.DeleteOptions{
		Ignore: ignoreIf(s.Force, http.StatusBadRequest, http.StatusNotFound),
	}))
}
