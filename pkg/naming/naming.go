// Package naming computes the names of concrete indices, write aliases and
// tree aliases from the keys registered in the resource tree.
//
// A concrete index is named prefix + base + suffix, its write alias is
// prefix + base. The suffix is generated once per Namer, so every index
// created through the same Namer belongs to the same generation.
package naming

import (
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// Separator joins the parts of a tree key.
	Separator = "-"
	// MappingExtension is the only file extension picked up when walking
	// mapping and template directories.
	MappingExtension = ".json"
)

type Namer struct {
	prefix string
	clock  func() time.Time

	suffixOverride *string
	suffixOnce     sync.Once
	suffix         string
}

type Option func(*Namer)

func WithPrefix(prefix string) Option {
	return func(n *Namer) {
		n.prefix = prefix
	}
}

// WithClock sets the time source used to compute the generation suffix.
func WithClock(clock func() time.Time) Option {
	return func(n *Namer) {
		n.clock = clock
	}
}

// WithSuffix pins the generation suffix instead of deriving it from the clock.
func WithSuffix(suffix string) Option {
	return func(n *Namer) {
		n.suffixOverride = &suffix
	}
}

func NewNamer(options ...Option) *Namer {
	ret := &Namer{
		clock: time.Now,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (n *Namer) Prefix() string {
	return n.prefix
}

// CurrentSuffix returns the generation suffix, "-<unix seconds>" unless
// overridden. It is computed on first use and never changes afterwards.
func (n *Namer) CurrentSuffix() string {
	n.suffixOnce.Do(func() {
		if n.suffixOverride != nil {
			n.suffix = *n.suffixOverride
			return
		}
		n.suffix = Separator + strconv.FormatInt(n.clock().Unix(), 10)
	})
	return n.suffix
}

// JoinParts joins the non-empty parts with Separator.
func JoinParts(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, Separator)
}

// TrimMappingExtension strips a trailing ".json" from name.
func TrimMappingExtension(name string) string {
	return strings.TrimSuffix(name, MappingExtension)
}

func PrefixWith(name string, prefix string) string {
	return prefix + name
}

// SuffixWith appends suffix to name. Applying the same suffix twice is a no-op.
func SuffixWith(name string, suffix string) string {
	if suffix != "" && strings.HasSuffix(name, suffix) {
		return name
	}
	return name + suffix
}

func (n *Namer) PrefixName(name string) string {
	return PrefixWith(name, n.prefix)
}

func (n *Namer) SuffixName(name string) string {
	return SuffixWith(name, n.CurrentSuffix())
}

// BuildAliasName returns the prefixed, unsuffixed name used for write aliases
// and tree aliases.
func (n *Namer) BuildAliasName(name string) string {
	return n.PrefixName(name)
}

// BuildIndexName returns the prefixed and suffixed concrete index name.
func (n *Namer) BuildIndexName(name string) string {
	return n.SuffixName(n.PrefixName(name))
}

// StripIndexName reverses BuildIndexName. It returns false if indexName does
// not carry the configured prefix and the current suffix.
func (n *Namer) StripIndexName(indexName string) (string, bool) {
	suffix := n.CurrentSuffix()
	if !strings.HasPrefix(indexName, n.prefix) || !strings.HasSuffix(indexName, suffix) {
		return "", false
	}
	base := strings.TrimPrefix(indexName, n.prefix)
	base = strings.TrimSuffix(base, suffix)
	return base, true
}

// SchemaToIndex maps a JSON schema path like "records/record-v1.0.0.json" to
// the prefixed index name and the document type. When indexNames is not nil,
// the longest trailing slice of the path that names one of them wins.
func (n *Namer) SchemaToIndex(schema string, indexNames []string) (index string, docType string, ok bool) {
	parts := strings.Split(schema, "/")
	last := parts[len(parts)-1]
	if path.Ext(last) != MappingExtension {
		return "", "", false
	}
	docType = TrimMappingExtension(last)

	if indexNames == nil {
		return n.PrefixName(TrimMappingExtension(JoinParts(parts...))), docType, true
	}

	known := make(map[string]struct{}, len(indexNames))
	for _, name := range indexNames {
		known[name] = struct{}{}
	}
	for start := range parts {
		candidate := n.PrefixName(TrimMappingExtension(JoinParts(parts[start:]...)))
		if _, ok := known[candidate]; ok {
			return candidate, docType, true
		}
	}
	return "", "", false
}
