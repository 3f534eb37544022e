// Package search runs queries against the prefixed aliases of the registry.
package search

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/naming"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Request struct {
	// Indices are unprefixed index or alias names. An entry may itself be a
	// comma separated list.
	Indices []string
	Query   map[string]interface{}

	// RemoteAddr and UserAgent identify the end user. When both are empty no
	// preference is sent.
	RemoteAddr string
	UserAgent  string
}

type Searcher struct {
	client   client.SearchClient
	namer    *naming.Namer
	minScore *float64
}

type Option func(*Searcher)

// WithMinScore adds min_score to every query that does not set one.
func WithMinScore(minScore float64) Option {
	return func(s *Searcher) {
		s.minScore = &minScore
	}
}

func NewSearcher(c client.SearchClient, namer *naming.Namer, options ...Option) *Searcher {
	ret := &Searcher{
		client: c,
		namer:  namer,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// PrefixIndices prefixes every index name, including the members of comma
// separated lists.
func (s *Searcher) PrefixIndices(indices []string) []string {
	ret := make([]string, 0, len(indices))
	for _, index := range indices {
		parts := strings.Split(index, ",")
		for i, p := range parts {
			parts[i] = s.namer.PrefixName(strings.TrimSpace(p))
		}
		ret = append(ret, strings.Join(parts, ","))
	}
	return ret
}

// Body renders the query, adding the configured min_score.
func (s *Searcher) Body(query map[string]interface{}) ([]byte, error) {
	body := make(map[string]interface{}, len(query)+1)
	for k, v := range query {
		body[k] = v
	}
	if _, ok := body["min_score"]; !ok && s.minScore != nil {
		body["min_score"] = *s.minScore
	}
	return json.Marshal(body)
}

// PreferenceHash buckets a user onto the same shard copies across requests.
// It is the hex MD5 of "<ip>-<user agent>" and is not meant to be secret.
func PreferenceHash(remoteAddr string, userAgent string) string {
	if remoteAddr == "" && userAgent == "" {
		return ""
	}
	sum := md5.Sum([]byte(remoteAddr + "-" + userAgent))
	return hex.EncodeToString(sum[:])
}

// IDsQuery matches the documents with the given ids.
func IDsQuery(ids ...string) map[string]interface{} {
	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"ids": map[string]interface{}{
				"values": values,
			},
		},
	}
}

func (s *Searcher) Search(ctx context.Context, request Request) (*Result, error) {
	if len(request.Indices) == 0 {
		return nil, errors.New("no index specified")
	}
	indices := s.PrefixIndices(request.Indices)
	body, err := s.Body(request.Query)
	if err != nil {
		return nil, errors.Wrap(err, "could not render query")
	}
	preference := PreferenceHash(request.RemoteAddr, request.UserAgent)

	log.Debug().Strs("indices", indices).Str("preference", preference).Msg("searching")
	res, err := s.client.Search(ctx, indices, body, preference)
	if err != nil {
		return nil, errors.Wrapf(err, "could not search %s", strings.Join(indices, ","))
	}

	raw, err := json.Marshal(res.Body)
	if err != nil {
		return nil, err
	}
	var ret Result
	if err := json.Unmarshal(raw, &ret); err != nil {
		return nil, errors.Wrap(err, "could not parse search response")
	}
	return &ret, nil
}
