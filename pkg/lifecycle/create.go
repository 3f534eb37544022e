package lifecycle

import (
	"context"
	"iter"
	"net/http"
	"slices"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/tree"
	"github.com/pkg/errors"
)

type OperationKind string

const (
	OpCreateIndex          OperationKind = "create-index"
	OpPutWriteAlias        OperationKind = "put-write-alias"
	OpPutAlias             OperationKind = "put-alias"
	OpDeleteIndex          OperationKind = "delete-index"
	OpNoop                 OperationKind = "noop"
	OpAmbiguous            OperationKind = "ambiguous"
	OpPutTemplate          OperationKind = "put-template"
	OpPutIndexTemplate     OperationKind = "put-index-template"
	OpPutComponentTemplate OperationKind = "put-component-template"
)

// Operation is one planned cluster call.
type Operation struct {
	Kind OperationKind
	// Name is the index, alias or template the call creates or removes.
	Name string
	// Indices are the concrete indices an alias is bound to.
	Indices []string
	// Key is the registry key the operation was derived from.
	Key  string
	Leaf *tree.Leaf
}

type Plan struct {
	Operations []Operation
}

// Count returns how many operations of the given kind the plan contains.
func (p *Plan) Count(kind OperationKind) int {
	ret := 0
	for _, op := range p.Operations {
		if op.Kind == kind {
			ret++
		}
	}
	return ret
}

type Result struct {
	Operation Operation
	Response  *client.Response
	// Warning is set for operations that were skipped on purpose.
	Warning string
}

type CreateOptions struct {
	// IgnoreExisting skips the existence check and tolerates 400 responses.
	IgnoreExisting bool
	// Ignore lists HTTP status codes that do not abort the batch.
	Ignore []int
	// IndexList restricts the batch to these index keys. nil means all.
	IndexList []string
}

// Plan computes the create operations for the active aliases without talking
// to the cluster: every concrete index, then every write alias, then the
// branch aliases, innermost first.
func (m *Manager) Plan(indexList []string) *Plan {
	var indexOps, writeAliasOps, aliasOps []Operation

	var planBranch func(b *tree.Branch) []string
	planBranch = func(b *tree.Branch) []string {
		var created []string
		for pair := b.Children.Oldest(); pair != nil; pair = pair.Next() {
			switch n := pair.Value.(type) {
			case *tree.Leaf:
				if indexList != nil && !slices.Contains(indexList, n.Name()) {
					continue
				}
				indexName := m.namer.BuildIndexName(n.Name())
				indexOps = append(indexOps, Operation{
					Kind: OpCreateIndex,
					Name: indexName,
					Key:  n.Name(),
					Leaf: n,
				})
				writeAliasOps = append(writeAliasOps, Operation{
					Kind:    OpPutWriteAlias,
					Name:    m.namer.BuildAliasName(n.Name()),
					Indices: []string{indexName},
					Key:     n.Name(),
					Leaf:    n,
				})
				created = append(created, indexName)
			case *tree.Branch:
				created = append(created, planBranch(n)...)
			}
		}
		if len(created) > 0 {
			aliasOps = append(aliasOps, Operation{
				Kind:    OpPutAlias,
				Name:    m.namer.BuildAliasName(b.Name()),
				Indices: created,
				Key:     b.Name(),
			})
		}
		return created
	}

	for _, b := range m.ActiveAliases() {
		planBranch(b)
	}

	ops := make([]Operation, 0, len(indexOps)+len(writeAliasOps)+len(aliasOps))
	ops = append(ops, indexOps...)
	ops = append(ops, writeAliasOps...)
	ops = append(ops, aliasOps...)
	return &Plan{Operations: ops}
}

// Validate checks that none of the names the plan creates exist yet. It
// issues only existence checks and fails on the first conflict.
func (m *Manager) Validate(ctx context.Context, plan *Plan) error {
	c, err := m.Client()
	if err != nil {
		return err
	}
	for _, op := range plan.Operations {
		exists, err := c.Exists(ctx, op.Name)
		if err != nil {
			return errors.Wrapf(err, "could not check whether %s exists", op.Name)
		}
		if exists {
			return &IndexAlreadyExistsError{Name: op.Name}
		}
	}
	return nil
}

// Execute runs the plan in order, yielding one result per operation. It
// stops at the first error, which is yielded as well.
func (m *Manager) Execute(ctx context.Context, plan *Plan, ignore []int) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		c, err := m.Client()
		if err != nil {
			yield(Result{}, err)
			return
		}

		for _, op := range plan.Operations {
			var res *client.Response
			switch op.Kind {
			case OpCreateIndex:
				body, err := op.Leaf.Read()
				if err != nil {
					yield(Result{Operation: op}, err)
					return
				}
				res, err = c.CreateIndex(ctx, op.Name, body, ignore...)
				if err != nil {
					yield(Result{Operation: op}, errors.Wrapf(err, "could not create index %s", op.Name))
					return
				}
			case OpPutWriteAlias, OpPutAlias:
				res, err = c.PutAlias(ctx, op.Indices, op.Name, ignore...)
				if err != nil {
					yield(Result{Operation: op}, errors.Wrapf(err, "could not create alias %s", op.Name))
					return
				}
			default:
				yield(Result{Operation: op}, errors.Errorf("cannot execute %s operation", op.Kind))
				return
			}
			if !yield(Result{Operation: op, Response: res}, nil) {
				return
			}
		}
	}
}

// Create plans the batch, checks every name in it against the cluster and
// returns the lazily executed operations. A conflict is returned before any
// index is created.
func (m *Manager) Create(ctx context.Context, options CreateOptions) (iter.Seq2[Result, error], error) {
	plan := m.Plan(options.IndexList)

	ignore := options.Ignore
	if options.IgnoreExisting {
		if !slices.Contains(ignore, http.StatusBadRequest) {
			ignore = append(slices.Clone(ignore), http.StatusBadRequest)
		}
	} else if err := m.Validate(ctx, plan); err != nil {
		return nil, err
	}

	return m.Execute(ctx, plan, ignore), nil
}

// CreateIndex creates a single registered index and its write alias.
func (m *Manager) CreateIndex(ctx context.Context, key string, options CreateOptions) (iter.Seq2[Result, error], error) {
	leaf, ok := m.registry.Mapping(key)
	if !ok {
		return nil, &UnknownIndexError{Name: key}
	}
	indexName := m.namer.BuildIndexName(key)
	plan := &Plan{Operations: []Operation{
		{Kind: OpCreateIndex, Name: indexName, Key: key, Leaf: leaf},
		{Kind: OpPutWriteAlias, Name: m.namer.BuildAliasName(key), Indices: []string{indexName}, Key: key, Leaf: leaf},
	}}

	ignore := options.Ignore
	if options.IgnoreExisting {
		ignore = append(slices.Clone(ignore), http.StatusBadRequest)
	} else if err := m.Validate(ctx, plan); err != nil {
		return nil, err
	}
	return m.Execute(ctx, plan, ignore), nil
}
