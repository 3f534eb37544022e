package index

import (
	"context"
	"os"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/search-indices/pkg/client"
	si_layers "github.com/go-go-golems/search-indices/pkg/cmds/layers"
	"github.com/pkg/errors"
)

type PutCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &PutCommand{}

type PutSettings struct {
	Name       string `glazed.parameter:"name"`
	Identifier string `glazed.parameter:"identifier"`
	Body       string `glazed.parameter:"body"`
	Force      bool   `glazed.parameter:"force"`
	Verbose    bool   `glazed.parameter:"verbose"`
}

func NewPutCommand() (*PutCommand, error) {
	layers_, err := newLayers()
	if err != nil {
		return nil, err
	}

	return &PutCommand{
		CommandDescription: cmds.NewCommandDescription(
			"put",
			cmds.WithShort("Indexes a document"),
			cmds.WithLong(`Indexes the document read from --body (stdin by default) into the index called name.

A document with an identifier is only created when it does not exist yet,
unless --force is given.`),
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
					"identifier",
					parameters.ParameterTypeString,
					parameters.WithShortFlag("i"),
					parameters.WithHelp("Document identifier, generated by the cluster when empty"),
				),
				parameters.NewParameterDefinition(
					"body",
					parameters.ParameterTypeString,
					parameters.WithShortFlag("b"),
					parameters.WithHelp("File holding the document, - for stdin"),
					parameters.WithDefault("-"),
				),
				parameters.NewParameterDefinition(
					"force",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Overwrite an existing document"),
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

// opType picks create for documents with an identifier so an existing one is
// not overwritten by accident.
func opType(identifier string, force bool) client.OpType {
	if force || identifier == "" {
		return client.OpTypeIndex
	}
	return client.OpTypeCreate
}

func (c *PutCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &PutSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}

	body, err := readBody(s.Body, os.Stdin)
	if err != nil {
		return err
	}
	if body == nil {
		return errors.New("empty document")
	}

	st, err := si_layers.NewStateFromParsedLayers(parsedLayers)
	if err != nil {
		return err
	}
	c_, err := st.Client()
	if err != nil {
		return err
	}
	res, err := c_.IndexDocument(ctx, s.Name, s.Identifier, body, opType(s.Identifier, s.Force))
	if err != nil {
		return err
	}

	if s.Verbose {
		return gp.AddRow(ctx, responseRow(res))
	}
	row := types.NewRow(
		types.MRP("index", res.Body["_index"]),
		types.MRP("id", res.Body["_id"]),
		types.MRP("result", res.Body["result"]),
		types.MRP("status", res.StatusCode),
	)
	return gp.AddRow(ctx, row)
}
