package lifecycle

import (
	"github.com/go-go-golems/search-indices/pkg/tree"
)

type EntryKind string

const (
	EntryAlias EntryKind = "alias"
	EntryIndex EntryKind = "index"
)

type Entry struct {
	Key      string
	Kind     EntryKind
	Depth    int
	Alias    string
	Index    string
	Location string
}

// List walks the alias trees depth first. With onlyActive set only the
// active aliases are listed, with onlyAliases the leaves are skipped.
func (m *Manager) List(onlyActive bool, onlyAliases bool) []Entry {
	branches := m.registry.Aliases()
	if onlyActive {
		branches = m.ActiveAliases()
	}

	var ret []Entry
	var walk func(n tree.Node, depth int)
	walk = func(n tree.Node, depth int) {
		switch n := n.(type) {
		case *tree.Branch:
			ret = append(ret, Entry{
				Key:   n.Name(),
				Kind:  EntryAlias,
				Depth: depth,
				Alias: m.namer.BuildAliasName(n.Name()),
			})
			for pair := n.Children.Oldest(); pair != nil; pair = pair.Next() {
				walk(pair.Value, depth+1)
			}
		case *tree.Leaf:
			if onlyAliases {
				return
			}
			ret = append(ret, Entry{
				Key:      n.Name(),
				Kind:     EntryIndex,
				Depth:    depth,
				Alias:    m.namer.BuildAliasName(n.Name()),
				Index:    m.namer.BuildIndexName(n.Name()),
				Location: n.Location(),
			})
		}
	}
	for _, b := range branches {
		walk(b, 0)
	}
	return ret
}
