package indexsync

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/naming"
	"github.com/go-go-golems/search-indices/pkg/tree"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type ItemError struct {
	Op     Op
	Index  string
	ID     string
	Status int
	Type   string
	Reason string
}

type BatchResult struct {
	Indexed int
	Deleted int
	Failed  int
	Errors  []ItemError
}

func (r *BatchResult) add(other *BatchResult) {
	r.Indexed += other.Indexed
	r.Deleted += other.Deleted
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

type Indexer struct {
	client     client.SearchClient
	namer      *naming.Namer
	registry   *tree.Registry
	metrics    *Metrics
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

type IndexerOption func(*Indexer)

// WithRegistry rejects messages for indices that are not registered.
func WithRegistry(registry *tree.Registry) IndexerOption {
	return func(i *Indexer) {
		i.registry = registry
	}
}

func WithMetrics(metrics *Metrics) IndexerOption {
	return func(i *Indexer) {
		i.metrics = metrics
	}
}

func WithMaxRetries(maxRetries uint64) IndexerOption {
	return func(i *Indexer) {
		i.maxRetries = maxRetries
	}
}

func WithBackOff(newBackOff func() backoff.BackOff) IndexerOption {
	return func(i *Indexer) {
		i.newBackOff = newBackOff
	}
}

func NewIndexer(c client.SearchClient, namer *naming.Namer, options ...IndexerOption) *Indexer {
	ret := &Indexer{
		client:     c,
		namer:      namer,
		metrics:    NewMetrics(),
		maxRetries: 5,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxElapsedTime = 0
			return bo
		},
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (i *Indexer) Metrics() *Metrics {
	return i.metrics
}

// Handle sends the messages as a single bulk request to the write aliases of
// their indices. Transport errors and 429/5xx responses are retried, item
// level failures are reported in the result.
func (i *Indexer) Handle(ctx context.Context, msgs []*Message) (*BatchResult, error) {
	ret := &BatchResult{}
	if len(msgs) == 0 {
		return ret, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	sent := 0
	for _, m := range msgs {
		key, ok := i.indexKey(m)
		if !ok {
			ret.Failed++
			ret.Errors = append(ret.Errors, ItemError{
				Op:     m.Op,
				Index:  m.Target(),
				ID:     m.ID,
				Type:   "unknown_index",
				Reason: "index is not registered",
			})
			i.metrics.Documents.WithLabelValues(string(m.Op), "rejected").Inc()
			continue
		}

		// bulk bodies are newline delimited, documents must fit on one line
		var doc bytes.Buffer
		if m.Op == OpIndex {
			if err := json.Compact(&doc, m.Body); err != nil {
				ret.Failed++
				ret.Errors = append(ret.Errors, ItemError{
					Op:     m.Op,
					Index:  m.Target(),
					ID:     m.ID,
					Type:   "invalid_body",
					Reason: err.Error(),
				})
				i.metrics.Documents.WithLabelValues(string(m.Op), "rejected").Inc()
				continue
			}
		}

		meta := map[string]interface{}{"_index": i.namer.BuildAliasName(key)}
		if m.ID != "" {
			meta["_id"] = m.ID
		}
		if err := enc.Encode(map[string]interface{}{string(m.Op): meta}); err != nil {
			return nil, err
		}
		if m.Op == OpIndex {
			buf.Write(doc.Bytes())
			buf.WriteByte('\n')
		}
		sent++
	}
	if sent == 0 {
		return ret, nil
	}

	body := buf.Bytes()
	var res *client.Response
	operation := func() error {
		var err error
		res, err = i.client.Bulk(ctx, bytes.NewReader(body))
		if err == nil {
			return nil
		}
		var re *client.ResponseError
		if errors.As(err, &re) && re.StatusCode != http.StatusTooManyRequests && re.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Warn().Err(err).Dur("next_retry_in", next).Int("documents", sent).Msg("bulk request failed, retrying")
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(i.newBackOff(), i.maxRetries), ctx)
	if err := backoff.RetryNotify(operation, bo, notify); err != nil {
		i.metrics.Batches.WithLabelValues("failed").Inc()
		return nil, errors.Wrap(err, "bulk request failed")
	}
	i.metrics.Batches.WithLabelValues("ok").Inc()

	ret.add(i.countItems(res))
	log.Debug().
		Int("indexed", ret.Indexed).
		Int("deleted", ret.Deleted).
		Int("failed", ret.Failed).
		Msg("bulk request done")
	return ret, nil
}

// indexKey returns the registry key of the index a message is addressed to.
// Schemas can only be resolved with a registry.
func (i *Indexer) indexKey(m *Message) (string, bool) {
	if m.Index != "" {
		if i.registry == nil {
			return m.Index, true
		}
		_, ok := i.registry.Mapping(m.Index)
		return m.Index, ok
	}
	if i.registry == nil {
		return "", false
	}
	key, _, ok := naming.NewNamer().SchemaToIndex(m.Schema, i.registry.MappingNames())
	return key, ok
}

func (i *Indexer) countItems(res *client.Response) *BatchResult {
	ret := &BatchResult{}
	items, _ := res.Body["items"].([]interface{})
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		for op, v := range entry {
			fields, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			status := 0
			if s, ok := fields["status"].(float64); ok {
				status = int(s)
			}

			switch {
			case op == string(OpDelete) && (status < 300 || status == http.StatusNotFound):
				ret.Deleted++
				i.metrics.Documents.WithLabelValues(op, "ok").Inc()
			case status < 300:
				ret.Indexed++
				i.metrics.Documents.WithLabelValues(op, "ok").Inc()
			default:
				itemErr := ItemError{Op: Op(op), Status: status}
				itemErr.Index, _ = fields["_index"].(string)
				itemErr.ID, _ = fields["_id"].(string)
				if e, ok := fields["error"].(map[string]interface{}); ok {
					itemErr.Type, _ = e["type"].(string)
					itemErr.Reason, _ = e["reason"].(string)
				}
				ret.Failed++
				ret.Errors = append(ret.Errors, itemErr)
				i.metrics.Documents.WithLabelValues(op, "failed").Inc()
				log.Warn().
					Str("index", itemErr.Index).
					Str("id", itemErr.ID).
					Int("status", status).
					Str("type", itemErr.Type).
					Msg("document was not synced")
			}
		}
	}
	return ret
}
