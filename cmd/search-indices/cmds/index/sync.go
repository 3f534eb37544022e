package index

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	si_layers "github.com/go-go-golems/search-indices/pkg/cmds/layers"
	"github.com/go-go-golems/search-indices/pkg/indexsync"
	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func newSyncLayers() ([]layers.ParameterLayer, error) {
	connectionLayer, err := si_layers.NewConnectionParameterLayer()
	if err != nil {
		return nil, errors.Wrap(err, "could not create search connection layer")
	}
	searchSettingsLayer, err := si_layers.NewSearchSettingsParameterLayer()
	if err != nil {
		return nil, errors.Wrap(err, "could not create search settings layer")
	}
	return []layers.ParameterLayer{connectionLayer, searchSettingsLayer}, nil
}

type SyncRunCommand struct {
	*cmds.CommandDescription
}

var _ cmds.BareCommand = &SyncRunCommand{}

type SyncRunSettings struct {
	Jobs           []string `glazed.parameter:"jobs"`
	MetricsAddress string   `glazed.parameter:"metrics-address"`
	Profile        string   `glazed.parameter:"profile"`
}

func NewSyncRunCommand() (*SyncRunCommand, error) {
	layers_, err := newSyncLayers()
	if err != nil {
		return nil, err
	}

	return &SyncRunCommand{
		CommandDescription: cmds.NewCommandDescription(
			"run",
			cmds.WithShort("Runs sync jobs until interrupted"),
			cmds.WithLong(`Consumes the Kafka topics of the given sync jobs of the manifest (all of them
when none is given) and indexes the changes into the write aliases.`),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"jobs",
					parameters.ParameterTypeStringList,
					parameters.WithHelp("Names of the sync jobs"),
				),
			),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"metrics-address",
					parameters.ParameterTypeString,
					parameters.WithHelp("Address to serve prometheus metrics on, e.g. :9090"),
					parameters.WithDefault(""),
				),
				parameters.NewParameterDefinition(
					"profile",
					parameters.ParameterTypeChoice,
					parameters.WithHelp("Write a profile of the run to the current directory"),
					parameters.WithChoices("none", "cpu", "mem", "goroutine"),
					parameters.WithDefault("none"),
				),
			),
			cmds.WithLayersList(layers_...),
		),
	}, nil
}

func (c *SyncRunCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	s := &SyncRunSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}

	st, err := si_layers.NewStateFromParsedLayers(parsedLayers)
	if err != nil {
		return err
	}
	jobs, err := st.SyncJobs(ctx, s.Jobs...)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return errors.New("no sync jobs configured")
	}
	indexer, err := st.Indexer(ctx)
	if err != nil {
		return err
	}

	switch s.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "goroutine":
		defer profile.Start(profile.GoroutineProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	if s.MetricsAddress != "" {
		registry := prometheus.NewRegistry()
		if err := indexer.Metrics().Register(registry); err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{
			Addr:              s.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		eg.Go(func() error {
			log.Info().Str("address", s.MetricsAddress).Msg("serving metrics")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	eg.Go(func() error {
		err := indexsync.RunJobs(ctx, jobs...)
		// stop the metrics server once the jobs are done
		stop()
		return err
	})

	return eg.Wait()
}

// SyncNotImplementedCommand covers the sync actions that are left to
// operator tooling.
type SyncNotImplementedCommand struct {
	*cmds.CommandDescription
	action string
}

var _ cmds.BareCommand = &SyncNotImplementedCommand{}

func NewSyncNotImplementedCommand(action string, short string) (*SyncNotImplementedCommand, error) {
	layers_, err := newSyncLayers()
	if err != nil {
		return nil, err
	}
	return &SyncNotImplementedCommand{
		CommandDescription: cmds.NewCommandDescription(
			action,
			cmds.WithShort(short),
			cmds.WithLayersList(layers_...),
		),
		action: action,
	}, nil
}

func (c *SyncNotImplementedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	return errors.Errorf("sync %s is not implemented", c.action)
}

type SyncRolloverCommand struct {
	*cmds.CommandDescription
}

var _ cmds.BareCommand = &SyncRolloverCommand{}

type SyncRolloverSettings struct {
	Jobs []string `glazed.parameter:"jobs"`
}

func NewSyncRolloverCommand() (*SyncRolloverCommand, error) {
	layers_, err := newSyncLayers()
	if err != nil {
		return nil, err
	}
	return &SyncRolloverCommand{
		CommandDescription: cmds.NewCommandDescription(
			"rollover",
			cmds.WithShort("Switches the write aliases of sync jobs to their new indices"),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"jobs",
					parameters.ParameterTypeStringList,
					parameters.WithHelp("Names of the sync jobs"),
				),
			),
			cmds.WithLayersList(layers_...),
		),
	}, nil
}

func (c *SyncRolloverCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	s := &SyncRolloverSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return err
	}

	st, err := si_layers.NewStateFromParsedLayers(parsedLayers)
	if err != nil {
		return err
	}
	jobs, err := st.SyncJobs(ctx, s.Jobs...)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := job.Rollover(ctx); err != nil {
			return errors.Wrapf(err, "could not roll over %s", job.Name())
		}
	}
	return nil
}
