package lifecycle

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type DeleteOptions struct {
	Ignore []int
	// IndexList restricts the batch to these index keys. nil means all.
	IndexList []string
}

// Delete removes the concrete index behind every active write alias. The
// alias is resolved on the cluster, so indices of any generation are found.
// A write alias bound to several indices is left alone and reported as
// OpAmbiguous, one bound to nothing as OpNoop.
func (m *Manager) Delete(ctx context.Context, options DeleteOptions) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		c, err := m.Client()
		if err != nil {
			yield(Result{}, err)
			return
		}

		for _, leaf := range m.ActiveLeaves() {
			if options.IndexList != nil && !slices.Contains(options.IndexList, leaf.Name()) {
				continue
			}
			alias := m.namer.BuildAliasName(leaf.Name())
			indices, err := c.ResolveAlias(ctx, alias)
			if err != nil {
				yield(Result{}, errors.Wrapf(err, "could not resolve alias %s", alias))
				return
			}

			var result Result
			switch len(indices) {
			case 0:
				result = Result{Operation: Operation{Kind: OpNoop, Name: alias, Key: leaf.Name(), Leaf: leaf}}
			case 1:
				op := Operation{Kind: OpDeleteIndex, Name: indices[0], Indices: indices, Key: leaf.Name(), Leaf: leaf}
				res, err := c.DeleteIndex(ctx, indices[0], options.Ignore...)
				if err != nil {
					yield(Result{Operation: op}, errors.Wrapf(err, "could not delete index %s", indices[0]))
					return
				}
				result = Result{Operation: op, Response: res}
			default:
				warning := fmt.Sprintf("alias %s points to several indices (%s), not deleting any of them",
					alias, strings.Join(indices, ", "))
				log.Warn().Str("alias", alias).Strs("indices", indices).Msg("not deleting ambiguous write alias")
				result = Result{
					Operation: Operation{Kind: OpAmbiguous, Name: alias, Indices: indices, Key: leaf.Name(), Leaf: leaf},
					Warning:   warning,
				}
			}
			if !yield(result, nil) {
				return
			}
		}
	}
}
