package tree

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/naming"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type Template struct {
	Name   string
	Kind   client.TemplateKind
	FS     fs.FS
	Path   string
	Source string
}

func (t *Template) Location() string {
	if t.Source == "" {
		return t.Path
	}
	return strings.TrimSuffix(t.Source, "/") + "/" + t.Path
}

func (t *Template) Read() ([]byte, error) {
	data, err := fs.ReadFile(t.FS, t.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read template %s", t.Location())
	}
	return data, nil
}

type DuplicateTemplateError struct {
	Name string
	Kind client.TemplateKind
}

func (e *DuplicateTemplateError) Error() string {
	return fmt.Sprintf("duplicate %s %q", e.Kind, e.Name)
}

// Registry holds every registered alias tree, the flat index name lookup
// derived from them and the registered templates.
type Registry struct {
	aliases   *orderedmap.OrderedMap[string, *Branch]
	mappings  map[string]*Leaf
	templates map[client.TemplateKind]*orderedmap.OrderedMap[string, *Template]
}

func NewRegistry() *Registry {
	return &Registry{
		aliases:   orderedmap.New[string, *Branch](),
		mappings:  map[string]*Leaf{},
		templates: map[client.TemplateKind]*orderedmap.OrderedMap[string, *Template]{},
	}
}

// RegisterMappings walks <root>/<alias> in fsys and adds the result to the
// alias tree. Registering the same alias again merges both trees. On error the
// registry is left unchanged.
func (r *Registry) RegisterMappings(alias string, fsys fs.FS, root string, source string) error {
	b, err := Walk(fsys, root, alias, source)
	if err != nil {
		return err
	}

	if existing, ok := r.aliases.Get(alias); ok {
		merged := existing.clone()
		if err := Merge(merged, b); err != nil {
			return err
		}
		b = merged
	}

	aliases := orderedmap.New[string, *Branch]()
	for pair := r.aliases.Oldest(); pair != nil; pair = pair.Next() {
		aliases.Set(pair.Key, pair.Value)
	}
	aliases.Set(alias, b)

	mappings, err := flattenAliases(aliases)
	if err != nil {
		return err
	}
	r.aliases = aliases
	r.mappings = mappings
	return nil
}

func flattenAliases(aliases *orderedmap.OrderedMap[string, *Branch]) (map[string]*Leaf, error) {
	mappings := map[string]*Leaf{}
	for pair := aliases.Oldest(); pair != nil; pair = pair.Next() {
		if err := Flatten(pair.Value, mappings); err != nil {
			return nil, err
		}
	}
	return mappings, nil
}

func (r *Registry) Aliases() []*Branch {
	ret := make([]*Branch, 0, r.aliases.Len())
	for pair := r.aliases.Oldest(); pair != nil; pair = pair.Next() {
		ret = append(ret, pair.Value)
	}
	return ret
}

func (r *Registry) Alias(name string) (*Branch, bool) {
	return r.aliases.Get(name)
}

func (r *Registry) Mapping(name string) (*Leaf, bool) {
	l, ok := r.mappings[name]
	return l, ok
}

// MappingNames returns the sorted index names of every registered mapping.
func (r *Registry) MappingNames() []string {
	ret := make([]string, 0, len(r.mappings))
	for name := range r.mappings {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func (r *Registry) NumberOfIndexes() int {
	return len(r.mappings)
}

// RegisterTemplates adds every .json file below root in fsys as a template of
// the given kind, named after its path relative to root. Nothing is added when
// one of them is a duplicate.
func (r *Registry) RegisterTemplates(kind client.TemplateKind, fsys fs.FS, root string, source string) error {
	templates, ok := r.templates[kind]
	if !ok {
		templates = orderedmap.New[string, *Template]()
	}

	var added []*Template
	seen := map[string]bool{}
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "could not walk template directory %s", root)
		}
		if d.IsDir() || path.Ext(p) != naming.MappingExtension {
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if root == "." {
			rel = p
		}
		name := naming.TrimMappingExtension(naming.JoinParts(strings.Split(rel, "/")...))
		if _, present := templates.Get(name); present || seen[name] {
			return &DuplicateTemplateError{Name: name, Kind: kind}
		}
		seen[name] = true
		added = append(added, &Template{
			Name:   name,
			Kind:   kind,
			FS:     fsys,
			Path:   p,
			Source: source,
		})
		return nil
	})
	if err != nil {
		return err
	}

	for _, t := range added {
		templates.Set(t.Name, t)
	}
	r.templates[kind] = templates
	return nil
}

func (r *Registry) Templates(kind client.TemplateKind) []*Template {
	templates, ok := r.templates[kind]
	if !ok {
		return nil
	}
	ret := make([]*Template, 0, templates.Len())
	for pair := templates.Oldest(); pair != nil; pair = pair.Next() {
		ret = append(ret, pair.Value)
	}
	return ret
}
