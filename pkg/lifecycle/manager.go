// Package lifecycle creates, deletes and updates the indices, aliases and
// templates registered in a tree.Registry.
package lifecycle

import (
	"context"
	"slices"
	"sync"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/naming"
	"github.com/go-go-golems/search-indices/pkg/tree"
	"github.com/go-go-golems/search-indices/pkg/versions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type ClientFactory func() (client.SearchClient, error)

// Manager is not safe for concurrent create/delete batches against the same
// cluster. The existence check before a create is the only guard.
type Manager struct {
	registry *tree.Registry
	namer    *naming.Namer

	// nil means every registered alias is active
	activeAliases []string

	clientFactory ClientFactory
	clientOnce    sync.Once
	client        client.SearchClient
	clientErr     error
}

type Option func(*Manager)

func WithNamer(namer *naming.Namer) Option {
	return func(m *Manager) {
		m.namer = namer
	}
}

// WithActiveAliases restricts the manager to the given top-level aliases.
// Passing nil selects all of them.
func WithActiveAliases(aliases []string) Option {
	return func(m *Manager) {
		m.activeAliases = aliases
	}
}

func WithClientFactory(factory ClientFactory) Option {
	return func(m *Manager) {
		m.clientFactory = factory
	}
}

func WithClient(c client.SearchClient) Option {
	return WithClientFactory(func() (client.SearchClient, error) {
		return c, nil
	})
}

func NewManager(registry *tree.Registry, options ...Option) *Manager {
	ret := &Manager{
		registry: registry,
		namer:    naming.NewNamer(),
		clientFactory: func() (client.SearchClient, error) {
			return nil, errors.New("no search client configured")
		},
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (m *Manager) Registry() *tree.Registry {
	return m.registry
}

func (m *Manager) Namer() *naming.Namer {
	return m.namer
}

// Client builds the search client on first use and returns the same one
// afterwards.
func (m *Manager) Client() (client.SearchClient, error) {
	m.clientOnce.Do(func() {
		m.client, m.clientErr = m.clientFactory()
		if m.clientErr != nil {
			m.clientErr = errors.Wrap(m.clientErr, "could not create search client")
		}
	})
	return m.client, m.clientErr
}

// ActiveAliases returns the registered top-level aliases this manager works
// on, in registration order.
func (m *Manager) ActiveAliases() []*tree.Branch {
	all := m.registry.Aliases()
	if m.activeAliases == nil {
		return all
	}

	ret := make([]*tree.Branch, 0, len(m.activeAliases))
	for _, b := range all {
		if slices.Contains(m.activeAliases, b.Name()) {
			ret = append(ret, b)
		}
	}
	for _, name := range m.activeAliases {
		if _, ok := m.registry.Alias(name); !ok {
			log.Warn().Str("alias", name).Msg("active alias is not registered")
		}
	}
	return ret
}

// ActiveLeaves returns every leaf of the active aliases, depth first.
func (m *Manager) ActiveLeaves() []*tree.Leaf {
	var ret []*tree.Leaf
	for _, b := range m.ActiveAliases() {
		ret = append(ret, b.Leaves()...)
	}
	return ret
}

// Check compares the cluster distribution and version with the expected ones.
func (m *Manager) Check(ctx context.Context, expected versions.Distribution, expectedMajor int) (*versions.ClusterInfo, error) {
	c, err := m.Client()
	if err != nil {
		return nil, err
	}
	info, err := c.Info(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch cluster info")
	}
	return info, versions.Check(info, expected, expectedMajor)
}
