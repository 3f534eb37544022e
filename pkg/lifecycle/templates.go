package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"iter"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PrefixPlaceholder is replaced with the configured index prefix in every
// template before it is sent.
const PrefixPlaceholder = "__SEARCH_INDEX_PREFIX__"

// PutTemplates stores the registered legacy templates. With a prefix
// configured, a template without the placeholder is an error.
func (m *Manager) PutTemplates(ctx context.Context, ignore ...int) iter.Seq2[Result, error] {
	return m.putTemplates(ctx, client.LegacyTemplate, OpPutTemplate, true, ignore)
}

// PutIndexTemplates stores the registered composable index templates. A
// missing placeholder only produces a warning.
func (m *Manager) PutIndexTemplates(ctx context.Context, ignore ...int) iter.Seq2[Result, error] {
	return m.putTemplates(ctx, client.IndexTemplate, OpPutIndexTemplate, false, ignore)
}

// PutComponentTemplates stores the registered component templates. A missing
// placeholder only produces a warning.
func (m *Manager) PutComponentTemplates(ctx context.Context, ignore ...int) iter.Seq2[Result, error] {
	return m.putTemplates(ctx, client.ComponentTemplate, OpPutComponentTemplate, false, ignore)
}

// PutAllTemplates stores component templates first since index templates may
// be composed of them.
func (m *Manager) PutAllTemplates(ctx context.Context, ignore ...int) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		for _, seq := range []iter.Seq2[Result, error]{
			m.PutComponentTemplates(ctx, ignore...),
			m.PutIndexTemplates(ctx, ignore...),
			m.PutTemplates(ctx, ignore...),
		} {
			for res, err := range seq {
				if !yield(res, err) || err != nil {
					return
				}
			}
		}
	}
}

// NumberOfTemplates counts the registered templates of every kind.
func (m *Manager) NumberOfTemplates() int {
	return len(m.registry.Templates(client.LegacyTemplate)) +
		len(m.registry.Templates(client.IndexTemplate)) +
		len(m.registry.Templates(client.ComponentTemplate))
}

func (m *Manager) putTemplates(
	ctx context.Context,
	kind client.TemplateKind,
	opKind OperationKind,
	enforcePrefix bool,
	ignore []int,
) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		templates := m.registry.Templates(kind)
		if len(templates) == 0 {
			return
		}
		c, err := m.Client()
		if err != nil {
			yield(Result{}, err)
			return
		}

		prefix := m.namer.Prefix()
		for _, t := range templates {
			op := Operation{Kind: opKind, Name: m.namer.BuildAliasName(t.Name), Key: t.Name}

			body, err := t.Read()
			if err != nil {
				yield(Result{Operation: op}, err)
				return
			}

			warning := ""
			if prefix != "" && !bytes.Contains(body, []byte(PrefixPlaceholder)) {
				if enforcePrefix {
					yield(Result{Operation: op}, &MissingPrefixPlaceholderError{Template: t.Name})
					return
				}
				warning = fmt.Sprintf("template %s does not use %s, the index prefix is not applied to it",
					t.Name, PrefixPlaceholder)
				log.Warn().Str("template", t.Name).Str("kind", kind.String()).Msg(warning)
			}
			body = bytes.ReplaceAll(body, []byte(PrefixPlaceholder), []byte(prefix))

			res, err := c.PutTemplate(ctx, kind, op.Name, body, ignore...)
			if err != nil {
				yield(Result{Operation: op}, errors.Wrapf(err, "could not put %s %s", kind, op.Name))
				return
			}
			if !yield(Result{Operation: op, Response: res, Warning: warning}, nil) {
				return
			}
		}
	}
}
