// Package tree models the registered mappings as a tree of aliases whose
// leaves are mapping files, plus the flat registry of templates.
package tree

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/go-go-golems/search-indices/pkg/naming"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Node is either a *Branch or a *Leaf.
type Node interface {
	Name() string
	isNode()
}

// Branch is an alias spanning every leaf below it.
type Branch struct {
	name     string
	Children *orderedmap.OrderedMap[string, Node]
}

// Leaf is a mapping file that becomes one concrete index.
type Leaf struct {
	name string
	FS   fs.FS
	// Path is the location of the mapping file inside FS.
	Path string
	// Source describes where FS comes from, for listings.
	Source string
}

func NewBranch(name string) *Branch {
	return &Branch{
		name:     name,
		Children: orderedmap.New[string, Node](),
	}
}

func (b *Branch) Name() string { return b.name }
func (b *Branch) isNode()      {}
func (l *Leaf) Name() string   { return l.name }
func (l *Leaf) isNode()        {}

// Location returns the displayable location of the mapping file.
func (l *Leaf) Location() string {
	if l.Source == "" {
		return l.Path
	}
	return strings.TrimSuffix(l.Source, "/") + "/" + l.Path
}

func (l *Leaf) Read() ([]byte, error) {
	data, err := fs.ReadFile(l.FS, l.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read mapping %s", l.Location())
	}
	return data, nil
}

// Leaves returns the leaves below b in depth-first order.
func (b *Branch) Leaves() []*Leaf {
	var ret []*Leaf
	for pair := b.Children.Oldest(); pair != nil; pair = pair.Next() {
		switch n := pair.Value.(type) {
		case *Leaf:
			ret = append(ret, n)
		case *Branch:
			ret = append(ret, n.Leaves()...)
		}
	}
	return ret
}

// Branches returns b and every branch below it, children before parents.
func (b *Branch) Branches() []*Branch {
	var ret []*Branch
	for pair := b.Children.Oldest(); pair != nil; pair = pair.Next() {
		if child, ok := pair.Value.(*Branch); ok {
			ret = append(ret, child.Branches()...)
		}
	}
	return append(ret, b)
}

type DuplicateIndexError struct {
	Name   string
	Branch string
}

func (e *DuplicateIndexError) Error() string {
	return fmt.Sprintf("duplicate index %q in alias %q", e.Name, e.Branch)
}

// Walk builds the branch for alias from the directory <root>/<alias> in fsys.
// Subdirectories become branches keyed by the joined path so far, .json files
// become leaves keyed by the joined path without extension.
func Walk(fsys fs.FS, root string, alias string, source string) (*Branch, error) {
	return walkDir(fsys, root, source, []string{alias})
}

func walkDir(fsys fs.FS, root string, source string, parts []string) (*Branch, error) {
	branchName := naming.JoinParts(parts...)
	dir := path.Join(append([]string{root}, parts...)...)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read mapping directory %s", dir)
	}

	ret := NewBranch(branchName)
	for _, entry := range entries {
		childParts := append(append([]string{}, parts...), entry.Name())
		if entry.IsDir() {
			child, err := walkDir(fsys, root, source, childParts)
			if err != nil {
				return nil, err
			}
			if err := ret.add(child); err != nil {
				return nil, err
			}
			continue
		}
		if path.Ext(entry.Name()) != naming.MappingExtension {
			continue
		}
		leaf := &Leaf{
			name:   naming.TrimMappingExtension(naming.JoinParts(childParts...)),
			FS:     fsys,
			Path:   path.Join(dir, entry.Name()),
			Source: source,
		}
		if err := ret.add(leaf); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (b *Branch) add(n Node) error {
	if _, present := b.Children.Get(n.Name()); present {
		return &DuplicateIndexError{Name: n.Name(), Branch: b.name}
	}
	b.Children.Set(n.Name(), n)
	return nil
}

// clone copies b and every branch below it. Leaves are shared.
func (b *Branch) clone() *Branch {
	ret := NewBranch(b.name)
	for pair := b.Children.Oldest(); pair != nil; pair = pair.Next() {
		if child, ok := pair.Value.(*Branch); ok {
			ret.Children.Set(pair.Key, child.clone())
			continue
		}
		ret.Children.Set(pair.Key, pair.Value)
	}
	return ret
}

// Merge adds the children of src into dst. Branches with the same key are
// merged recursively, a leaf registered twice is a DuplicateIndexError.
func Merge(dst *Branch, src *Branch) error {
	for pair := src.Children.Oldest(); pair != nil; pair = pair.Next() {
		existing, present := dst.Children.Get(pair.Key)
		if !present {
			dst.Children.Set(pair.Key, pair.Value)
			continue
		}
		existingBranch, ok1 := existing.(*Branch)
		srcBranch, ok2 := pair.Value.(*Branch)
		if !ok1 || !ok2 {
			return &DuplicateIndexError{Name: pair.Key, Branch: dst.name}
		}
		if err := Merge(existingBranch, srcBranch); err != nil {
			return err
		}
	}
	return nil
}

// Flatten collects every leaf below b keyed by index name.
func Flatten(b *Branch, into map[string]*Leaf) error {
	for _, leaf := range b.Leaves() {
		if _, ok := into[leaf.Name()]; ok {
			return &DuplicateIndexError{Name: leaf.Name(), Branch: b.Name()}
		}
		into[leaf.Name()] = leaf
	}
	return nil
}
