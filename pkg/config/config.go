// Package config holds the settings of a search-indices installation and the
// discovery manifest that lists where mappings and templates live.
package config

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/indexsync"
	"github.com/go-go-golems/search-indices/pkg/versions"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Prefix string
	// ActiveAliases restricts the lifecycle commands to these top-level
	// aliases. Empty means all registered ones.
	ActiveAliases []string
	MinScore      *float64

	Distribution versions.Distribution
	// EngineMajor selects the mapping folder. 0 asks the cluster.
	EngineMajor int

	Connection *client.Settings
	Manifest   *Manifest
}

type MappingSource struct {
	Alias string `yaml:"alias"`
	// Path is the directory holding the version folders (v7, v8, os-v2...).
	Path   string `yaml:"path"`
	Source string `yaml:"source,omitempty"`
}

type TemplateSource struct {
	Kind   string `yaml:"kind"`
	Path   string `yaml:"path"`
	Source string `yaml:"source,omitempty"`
}

type Manifest struct {
	Mappings  []MappingSource                       `yaml:"mappings"`
	Templates []TemplateSource                      `yaml:"templates,omitempty"`
	Sync      map[string]indexsync.KafkaJobSettings `yaml:"sync,omitempty"`

	// FS is the filesystem the paths are relative to.
	FS fs.FS `yaml:"-"`
}

// TemplateKind maps the manifest spelling of a template kind to the client
// kind.
func TemplateKind(kind string) (client.TemplateKind, error) {
	switch kind {
	case "legacy", "template", "":
		return client.LegacyTemplate, nil
	case "index", "index-template":
		return client.IndexTemplate, nil
	case "component", "component-template":
		return client.ComponentTemplate, nil
	default:
		return "", errors.Errorf("unknown template kind %q", kind)
	}
}

func cleanPath(p string) (string, error) {
	ret := path.Clean(filepath.ToSlash(p))
	if !fs.ValidPath(ret) {
		return "", errors.Errorf("path %s must be relative to the manifest and stay below it", p)
	}
	return ret, nil
}

// Validate checks the manifest and normalizes its paths.
func (m *Manifest) Validate() error {
	for i, s := range m.Mappings {
		if s.Alias == "" {
			return errors.Errorf("mapping source %d has no alias", i)
		}
		if s.Path == "" {
			return errors.Errorf("mapping source %s has no path", s.Alias)
		}
		p, err := cleanPath(s.Path)
		if err != nil {
			return err
		}
		m.Mappings[i].Path = p
	}
	for i, t := range m.Templates {
		if t.Path == "" {
			return errors.Errorf("template source %d has no path", i)
		}
		if _, err := TemplateKind(t.Kind); err != nil {
			return err
		}
		p, err := cleanPath(t.Path)
		if err != nil {
			return err
		}
		m.Templates[i].Path = p
	}
	for name, job := range m.Sync {
		if err := job.Validate(); err != nil {
			return errors.Wrapf(err, "invalid sync job %s", name)
		}
	}
	return nil
}

// ParseManifest decodes a manifest whose paths are relative to fsys.
func ParseManifest(data []byte, fsys fs.FS) (*Manifest, error) {
	ret := &Manifest{}
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, errors.Wrap(err, "could not parse manifest")
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	ret.FS = fsys
	return ret, nil
}

// LoadManifestFS reads the manifest called name from fsys, for mappings
// bundled with embed.
func LoadManifestFS(fsys fs.FS, name string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read manifest %s", name)
	}
	return ParseManifest(data, fsys)
}

// LoadManifest reads a manifest from disk. Paths in it are relative to the
// directory of the manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read manifest %s", path)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return ParseManifest(data, os.DirFS(dir))
}
