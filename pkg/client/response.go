package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"

	"github.com/pkg/errors"
)

type Response struct {
	StatusCode int
	Body       map[string]interface{}
}

// Acknowledged reports the "acknowledged" field of the response, if any.
func (r *Response) Acknowledged() bool {
	if r == nil || r.Body == nil {
		return false
	}
	ack, _ := r.Body["acknowledged"].(bool)
	return ack
}

type ErrorCause struct {
	Type      string `json:"type"`
	Reason    string `json:"reason"`
	IndexUUID string `json:"index_uuid,omitempty"`
	Index     string `json:"index,omitempty"`
}

type ErrorBody struct {
	Error struct {
		RootCause []ErrorCause `json:"root_cause"`
		ErrorCause
	} `json:"error"`
	Status int `json:"status"`
}

// ParseErrorResponse parses the JSON response and checks for the error schema.
func ParseErrorResponse(jsonData []byte) (*ErrorBody, bool) {
	var esError ErrorBody
	if err := json.Unmarshal(jsonData, &esError); err != nil {
		return nil, false
	}
	if esError.Status == 0 {
		return nil, false
	}
	return &esError, true
}

type ResponseError struct {
	StatusCode int
	Type       string
	Reason     string
	Index      string
	Body       []byte
}

func (e *ResponseError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("search engine returned %d %s: %s", e.StatusCode, e.Type, e.Reason)
	}
	return fmt.Sprintf("search engine returned %d: %s", e.StatusCode, string(e.Body))
}

func NewResponseError(statusCode int, body []byte) *ResponseError {
	ret := &ResponseError{
		StatusCode: statusCode,
		Body:       body,
	}
	if parsed, ok := ParseErrorResponse(body); ok {
		ret.Type = parsed.Error.Type
		ret.Reason = parsed.Error.Reason
		ret.Index = parsed.Error.Index
	}
	return ret
}

func IsNotFound(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

func isIgnored(statusCode int, ignore []int) bool {
	return slices.Contains(ignore, statusCode)
}

// decodeResponse turns a raw cluster response into a Response. Status codes
// of 400 and above that are not in ignore become a *ResponseError.
func decodeResponse(statusCode int, body io.Reader, ignore []int) (*Response, error) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = io.ReadAll(body)
		if err != nil {
			return nil, errors.Wrap(err, "could not read response body")
		}
	}

	if statusCode >= 400 && !isIgnored(statusCode, ignore) {
		return nil, NewResponseError(statusCode, raw)
	}

	ret := &Response{StatusCode: statusCode}
	if len(raw) > 0 {
		// Bodies that are not JSON objects (HEAD, cat APIs) are dropped.
		_ = json.Unmarshal(raw, &ret.Body)
	}
	return ret, nil
}

// aliasIndices extracts the sorted index names from a GET /{name}/_alias body.
func aliasIndices(body map[string]interface{}) []string {
	ret := make([]string, 0, len(body))
	for index, v := range body {
		if _, ok := v.(map[string]interface{}); !ok {
			// 404 bodies carry "error" and "status" at the top level.
			continue
		}
		ret = append(ret, index)
	}
	sort.Strings(ret)
	return ret
}
