package index

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/types"
	si_layers "github.com/go-go-golems/search-indices/pkg/cmds/layers"
	"github.com/go-go-golems/search-indices/pkg/lifecycle"
)

type DeleteCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &DeleteCommand{}

type DeleteSettings struct {
	Name     string `glazed.parameter:"name"`
	Force    bool   `glazed.parameter:"force"`
	Verbose  bool   `glazed.parameter:"verbose"`
	YesIKnow bool   `glazed.parameter:"yes-i-know"`
}

func NewDeleteCommand() (*DeleteCommand, error) {
	layers_, err := newLayers()
	if err != nil {
		return nil, err
	}

	return &DeleteCommand{
		CommandDescription: cmds.NewCommandDescription(
			"delete",
			cmds.WithShort("Deletes an index by its name"),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"name",
					parameters.ParameterTypeString,
					parameters.WithHelp("Name of the index"),
					parameters.WithRequired(true),
				),
			),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"force",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Tolerate 400 and 404 responses"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"verbose",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Print the response of the cluster"),
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
	}, nil
}

func (c *DeleteCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &DeleteSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}

	if !s.YesIKnow {
		question := fmt.Sprintf("You are about to delete the index %s.", s.Name)
		if err := confirm(os.Stdin, os.Stderr, question); err != nil {
			return err
		}
	}

	st, err := si_layers.NewStateFromParsedLayers(parsedLayers)
	if err != nil {
		return err
	}
	c_, err := st.Client()
	if err != nil {
		return err
	}
	res, err := c_.DeleteIndex(ctx, s.Name, ignoreIf(s.Force, http.StatusBadRequest, http.StatusNotFound)...)
	if err != nil {
		return err
	}

	if s.Verbose {
		return gp.AddRow(ctx, responseRow(res))
	}
	return gp.AddRow(ctx, types.NewRow(
		types.MRP("name", s.Name),
		types.MRP("operation", string(lifecycle.OpDeleteIndex)),
		types.MRP("status", res.StatusCode),
	))
}
