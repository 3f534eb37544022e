package index

import (
	"context"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/types"
	si_layers "github.com/go-go-golems/search-indices/pkg/cmds/layers"
)

type CheckCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &CheckCommand{}

func NewCheckCommand() (*CheckCommand, error) {
	layers_, err := newLayers()
	if err != nil {
		return nil, err
	}

	return &CheckCommand{
		CommandDescription: cmds.NewCommandDescription(
			"check",
			cmds.WithShort("Checks that the cluster matches the configured search engine"),
			cmds.WithLong(`Compares the distribution and major version reported by the cluster with the
configured ones and prints the mapping folders that were picked for them.`),
			cmds.WithLayersList(layers_...),
		),
	}, nil
}

func (c *CheckCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	st, err := si_layers.NewStateFromParsedLayers(parsedLayers)
	if err != nil {
		return err
	}
	m, err := st.Manager(ctx)
	if err != nil {
		return err
	}

	cfg := st.Config()
	info, err := m.Check(ctx, cfg.Distribution, cfg.EngineMajor)
	if err != nil {
		return err
	}

	err = gp.AddRow(ctx, types.NewRow(
		types.MRP("source", "cluster"),
		types.MRP("distribution", string(info.Distribution)),
		types.MRP("version", info.Number),
	))
	if err != nil {
		return err
	}

	for _, r := range st.Resolutions() {
		row := types.NewRow(
			types.MRP("source", r.Name),
			types.MRP("path", r.Path),
			types.MRP("dir", r.Dir),
			types.MRP("fallback", r.Fallback),
		)
		if r.Warning != "" {
			row.Set("warning", r.Warning)
		}
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
