package search

import (
	"encoding/json"
	"maps"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type Shards struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

type Total struct {
	Value    int    `json:"value"`
	Relation string `json:"relation"`
}

type Hit struct {
	Index     string                                      `json:"_index"`
	ID        string                                      `json:"_id"`
	Score     float64                                     `json:"_score"`
	Routing   string                                      `json:"_routing,omitempty"`
	Source    *orderedmap.OrderedMap[string, interface{}] `json:"_source,omitempty"`
	Fields    map[string]interface{}                      `json:"fields,omitempty"`
	Highlight map[string][]string                         `json:"highlight,omitempty"`
	Sort      []interface{}                               `json:"sort,omitempty"`
}

type Hits struct {
	Total    Total   `json:"total"`
	MaxScore float64 `json:"max_score"`
	Hits     []Hit   `json:"hits,omitempty"`
}

type Result struct {
	Took         int                        `json:"took"`
	TimedOut     bool                       `json:"timed_out"`
	Shards       Shards                     `json:"_shards"`
	Hits         Hits                       `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations,omitempty"`
}

// Rows returns one row per hit: the document source followed by its index,
// id and score.
func (r *Result) Rows() []*orderedmap.OrderedMap[string, interface{}] {
	ret := make([]*orderedmap.OrderedMap[string, interface{}], 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		row := orderedmap.New[string, interface{}]()
		if hit.Source != nil {
			for pair := hit.Source.Oldest(); pair != nil; pair = pair.Next() {
				row.Set(pair.Key, pair.Value)
			}
		}
		row.Set("_index", hit.Index)
		row.Set("_id", hit.ID)
		row.Set("_score", hit.Score)
		ret = append(ret, row)
	}
	return ret
}

// AggregationRows flattens the aggregations into rows. Bucket aggregations
// produce one row per bucket, the others a single row. Aggregations are
// visited by name.
func (r *Result) AggregationRows() ([]*orderedmap.OrderedMap[string, interface{}], error) {
	var ret []*orderedmap.OrderedMap[string, interface{}]
	for _, name := range slices.Sorted(maps.Keys(r.Aggregations)) {
		raw := r.Aggregations[name]
		agg := orderedmap.New[string, interface{}]()
		if err := json.Unmarshal(raw, agg); err != nil {
			return nil, err
		}

		if buckets, ok := agg.Get("buckets"); ok {
			if list, ok := buckets.([]interface{}); ok {
				for _, bucket := range list {
					b, ok := bucket.(map[string]interface{})
					if !ok {
						continue
					}
					row := orderedmap.New[string, interface{}]()
					row.Set("aggregation", name)
					for _, k := range slices.Sorted(maps.Keys(b)) {
						row.Set(k, b[k])
					}
					ret = append(ret, row)
				}
				continue
			}
		}

		row := orderedmap.New[string, interface{}]()
		row.Set("aggregation", name)
		for pair := agg.Oldest(); pair != nil; pair = pair.Next() {
			if pair.Key != "meta" {
				row.Set(pair.Key, pair.Value)
			}
		}
		ret = append(ret, row)
	}
	return ret, nil
}
