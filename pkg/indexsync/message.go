// Package indexsync keeps the write aliases of the registry in sync with a
// change feed of documents published on Kafka.
package indexsync

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type Op string

const (
	OpIndex  Op = "index"
	OpDelete Op = "delete"
)

// Message is one change of the feed. Index is the registry key of the
// index, not the concrete index name. Messages without an index name the
// JSON schema of the document instead.
type Message struct {
	Op     Op              `json:"op"`
	Index  string          `json:"index,omitempty"`
	Schema string          `json:"$schema,omitempty"`
	ID     string          `json:"id"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Target is the index or schema the message is addressed to.
func (m *Message) Target() string {
	if m.Index != "" {
		return m.Index
	}
	return m.Schema
}

func (m *Message) Validate() error {
	if m.Target() == "" {
		return errors.New("message has neither an index nor a schema")
	}
	switch m.Op {
	case OpIndex:
		if len(m.Body) == 0 {
			return errors.Errorf("index message for %s has no body", m.Target())
		}
	case OpDelete:
		if m.ID == "" {
			return errors.Errorf("delete message for %s has no id", m.Target())
		}
	default:
		return errors.Errorf("unknown operation %q", m.Op)
	}
	return nil
}

func DecodeMessage(data []byte) (*Message, error) {
	var ret Message
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, errors.Wrap(err, "could not decode sync message")
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return &ret, nil
}
