// Package state wires configuration, discovery and the search client into a
// ready to use registry and lifecycle manager.
package state

import (
	"context"
	"sort"
	"sync"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/config"
	"github.com/go-go-golems/search-indices/pkg/indexsync"
	"github.com/go-go-golems/search-indices/pkg/lifecycle"
	"github.com/go-go-golems/search-indices/pkg/naming"
	"github.com/go-go-golems/search-indices/pkg/search"
	"github.com/go-go-golems/search-indices/pkg/tree"
	"github.com/go-go-golems/search-indices/pkg/versions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SourceResolution records which version folder was picked for a manifest
// entry.
type SourceResolution struct {
	Name string
	Path string
	*versions.Resolution
}

type State struct {
	config *config.Config
	namer  *naming.Namer

	clientFactory lifecycle.ClientFactory
	clientOnce    sync.Once
	client        client.SearchClient
	clientErr     error

	loadOnce    sync.Once
	loadErr     error
	registry    *tree.Registry
	manager     *lifecycle.Manager
	resolutions []SourceResolution
	dist        versions.Distribution
	major       int

	indexer *indexsync.Indexer
}

type Option func(*State)

func WithClientFactory(factory lifecycle.ClientFactory) Option {
	return func(s *State) {
		s.clientFactory = factory
	}
}

func WithNamer(namer *naming.Namer) Option {
	return func(s *State) {
		s.namer = namer
	}
}

func New(cfg *config.Config, options ...Option) *State {
	ret := &State{
		config:   cfg,
		namer:    naming.NewNamer(naming.WithPrefix(cfg.Prefix)),
		registry: tree.NewRegistry(),
	}
	ret.clientFactory = func() (client.SearchClient, error) {
		if cfg.Connection == nil {
			return nil, errors.New("no connection settings")
		}
		settings := *cfg.Connection
		if settings.Distribution == "" {
			settings.Distribution = cfg.Distribution
		}
		return client.New(&settings)
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (s *State) Config() *config.Config {
	return s.config
}

func (s *State) Namer() *naming.Namer {
	return s.namer
}

// Client creates the search client on first use.
func (s *State) Client() (client.SearchClient, error) {
	s.clientOnce.Do(func() {
		s.client, s.clientErr = s.clientFactory()
	})
	return s.client, s.clientErr
}

// engine returns the distribution and major version the mapping folders are
// picked for. The cluster is only asked when the configuration leaves either
// open.
func (s *State) engine(ctx context.Context) (versions.Distribution, int, error) {
	if s.config.Distribution != "" && s.config.EngineMajor != 0 {
		return s.config.Distribution, s.config.EngineMajor, nil
	}
	c, err := s.Client()
	if err != nil {
		return "", 0, err
	}
	info, err := c.Info(ctx)
	if err != nil {
		return "", 0, errors.Wrap(err, "could not detect the search engine version")
	}
	if s.config.Distribution != "" && s.config.Distribution != info.Distribution {
		return "", 0, &versions.VersionMismatchError{Expected: s.config.Distribution, Actual: info}
	}
	major := s.config.EngineMajor
	if major == 0 {
		major = info.Major
	}
	log.Debug().Str("distribution", string(info.Distribution)).Str("version", info.Number).Msg("detected search engine")
	return info.Distribution, major, nil
}

// Load resolves the version folders of the manifest and registers their
// mappings and templates. It runs once, later calls return the first result.
func (s *State) Load(ctx context.Context) error {
	s.loadOnce.Do(func() {
		s.loadErr = s.load(ctx)
	})
	return s.loadErr
}

func (s *State) load(ctx context.Context) error {
	manifest := s.config.Manifest
	if manifest == nil {
		return errors.New("no manifest configured")
	}

	dist, major, err := s.engine(ctx)
	if err != nil {
		return err
	}
	s.dist, s.major = dist, major

	for _, m := range manifest.Mappings {
		res, err := versions.Resolve(manifest.FS, m.Path, dist, major)
		if err != nil {
			return err
		}
		s.warnFallback(m.Alias, res)
		s.resolutions = append(s.resolutions, SourceResolution{Name: m.Alias, Path: m.Path, Resolution: res})
		if err := s.registry.RegisterMappings(m.Alias, manifest.FS, res.Dir, m.Source); err != nil {
			return errors.Wrapf(err, "could not register mappings for %s", m.Alias)
		}
	}

	for _, t := range manifest.Templates {
		kind, err := config.TemplateKind(t.Kind)
		if err != nil {
			return err
		}
		res, err := versions.Resolve(manifest.FS, t.Path, dist, major)
		if err != nil {
			return err
		}
		s.warnFallback(kind.String(), res)
		s.resolutions = append(s.resolutions, SourceResolution{Name: kind.String(), Path: t.Path, Resolution: res})
		if err := s.registry.RegisterTemplates(kind, manifest.FS, res.Dir, t.Source); err != nil {
			return errors.Wrapf(err, "could not register templates in %s", t.Path)
		}
	}

	var activeAliases []string
	if len(s.config.ActiveAliases) > 0 {
		activeAliases = s.config.ActiveAliases
	}
	s.manager = lifecycle.NewManager(s.registry,
		lifecycle.WithNamer(s.namer),
		lifecycle.WithActiveAliases(activeAliases),
		lifecycle.WithClientFactory(s.Client),
	)
	return nil
}

func (s *State) warnFallback(name string, res *versions.Resolution) {
	if res.Fallback {
		log.Warn().Str("source", name).Str("dir", res.Dir).Msg(res.Warning)
	}
}

// Manager loads the state if needed and returns the lifecycle manager.
func (s *State) Manager(ctx context.Context) (*lifecycle.Manager, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s.manager, nil
}

func (s *State) Registry() *tree.Registry {
	return s.registry
}

func (s *State) Resolutions() []SourceResolution {
	return s.resolutions
}

// Engine returns the distribution and major version the state was loaded for.
func (s *State) Engine() (versions.Distribution, int) {
	return s.dist, s.major
}

func (s *State) Searcher() (*search.Searcher, error) {
	c, err := s.Client()
	if err != nil {
		return nil, err
	}
	var options []search.Option
	if s.config.MinScore != nil {
		options = append(options, search.WithMinScore(*s.config.MinScore))
	}
	return search.NewSearcher(c, s.namer, options...), nil
}

// Indexer returns the bulk indexer shared by all sync jobs. It only accepts
// documents for registered indices.
func (s *State) Indexer(ctx context.Context) (*indexsync.Indexer, error) {
	if s.indexer != nil {
		return s.indexer, nil
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	c, err := s.Client()
	if err != nil {
		return nil, err
	}
	s.indexer = indexsync.NewIndexer(c, s.namer, indexsync.WithRegistry(s.registry))
	return s.indexer, nil
}

// SyncJobs builds the Kafka jobs of the manifest, in name order. With names
// given only those are built.
func (s *State) SyncJobs(ctx context.Context, names ...string) ([]indexsync.Job, error) {
	indexer, err := s.Indexer(ctx)
	if err != nil {
		return nil, err
	}

	all := s.config.Manifest.Sync
	if len(names) == 0 {
		for name := range all {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	ret := make([]indexsync.Job, 0, len(names))
	for _, name := range names {
		settings, ok := all[name]
		if !ok {
			return nil, errors.Errorf("unknown sync job %s", name)
		}
		job, err := indexsync.NewKafkaJob(name, settings, indexer)
		if err != nil {
			return nil, err
		}
		ret = append(ret, job)
	}
	return ret, nil
}
