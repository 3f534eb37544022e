package index

import (
	"context"
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

type CreateCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &CreateCommand{}

type CreateSettings struct {
	Name       string `glazed.parameter:"name"`
	Body       string `glazed.parameter:"body"`
	Registered bool   `glazed.parameter:"registered"`
	Force      bool   `glazed.parameter:"force"`
	Verbose    bool   `glazed.parameter:"verbose"`
}

func NewCreateCommand() (*CreateCommand, error) {
	layers_, err := newLayers()
	if err != nil {
		return nil, err
	}

	return &CreateCommand{
		CommandDescription: cmds.NewCommandDescription(
			"create",
			cmds.WithShort("Creates an index"),
			cmds.WithLong(`Creates the index called name with the body read from --body (stdin by default).

With --registered, name is the key of a registered mapping and the prefixed
concrete index is created together with its write alias.`),
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
					"body",
					parameters.ParameterTypeString,
					parameters.WithShortFlag("b"),
					parameters.WithHelp("File holding the index body, - for stdin"),
					parameters.WithDefault("-"),
				),
				parameters.NewParameterDefinition(
					"registered",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Create a registered index from its mapping"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"force",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Tolerate an index that already exists"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"verbose",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Print the response of the cluster"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(layers_...),
		),
	}, nil
}

func (c *CreateCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &CreateSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}

	st, err := si_layers.NewStateFromParsedLayers(parsedLayers)
	if err != nil {
		return err
	}

	if s.Registered {
		m, err := st.Manager(ctx)
		if err != nil {
			return err
		}
		seq, err := m.CreateIndex(ctx, s.Name, lifecycle.CreateOptions{IgnoreExisting: s.Force})
		if err != nil {
			return err
		}
		return addResults(ctx, gp, seq)
	}

	body, err := readBody(s.Body, os.Stdin)
	if err != nil {
		return err
	}
	c_, err := st.Client()
	if err != nil {
		return err
	}
	res, err := c_.CreateIndex(ctx, s.Name, body, ignoreIf(s.Force, http.StatusBadRequest)...)
	if err != nil {
		return err
	}

	if s.Verbose {
		return gp.AddRow(ctx, responseRow(res))
	}
	return gp.AddRow(ctx, types.NewRow(
		types.MRP("name", s.Name),
		types.MRP("operation", string(lifecycle.OpCreateIndex)),
		types.MRP("status", res.StatusCode),
	))
}
