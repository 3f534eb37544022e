package index

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/search-indices/pkg/client"
	"github.com/go-go-golems/search-indices/pkg/lifecycle"
	"github.com/pkg/errors"
)

var errAborted = errors.New("aborted")

// confirm asks the question on stderr and expects "yes" on stdin.
func confirm(in io.Reader, out io.Writer, question string) error {
	_, _ = fmt.Fprintf(out, "%s Type 'yes' to continue: ", question)
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return errors.Wrap(err, "failed to read user input")
	}
	if strings.TrimSpace(response) != "yes" {
		return errAborted
	}
	return nil
}

// readBody reads a JSON document from path, or from stdin when path is empty
// or "-".
func readBody(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read body")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, errors.New("body is not valid JSON")
	}
	return data, nil
}

func ignoreIf(force bool, codes ...int) []int {
	if !force {
		return nil
	}
	return codes
}

func resultRow(r lifecycle.Result) types.Row {
	row := types.NewRow(
		types.MRP("name", r.Operation.Name),
		types.MRP("operation", string(r.Operation.Kind)),
	)
	if r.Operation.Key != "" {
		row.Set("key", r.Operation.Key)
	}
	if len(r.Operation.Indices) > 0 {
		row.Set("indices", strings.Join(r.Operation.Indices, ","))
	}
	if r.Response != nil {
		row.Set("status", r.Response.StatusCode)
	}
	if r.Warning != "" {
		row.Set("warning", r.Warning)
	}
	return row
}

// addResults streams the results of a batch into gp. The first error stops
// the batch.
func addResults(ctx context.Context, gp middlewares.Processor, seq iter.Seq2[lifecycle.Result, error]) error {
	for r, err := range seq {
		if err != nil {
			return err
		}
		if err := gp.AddRow(ctx, resultRow(r)); err != nil {
			return err
		}
	}
	return nil
}

// responseRow turns a raw cluster response into a row, for verbose output.
func responseRow(res *client.Response) types.Row {
	row := types.NewRow(types.MRP("status", res.StatusCode))
	for _, k := range slices.Sorted(maps.Keys(res.Body)) {
		row.Set(k, res.Body[k])
	}
	return row
}
