package lifecycle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
)

type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeRemove ChangeKind = "remove"
	ChangeChange ChangeKind = "change"
)

// Change is one entry of a mapping diff. Path addresses the changed value,
// with list positions as decimal indices.
type Change struct {
	Kind ChangeKind
	Path []string
	Old  interface{}
	New  interface{}
}

func (c Change) String() string {
	p := strings.Join(c.Path, ".")
	switch c.Kind {
	case ChangeAdd:
		return fmt.Sprintf("add %s: %s", p, compact(c.New))
	case ChangeRemove:
		return fmt.Sprintf("remove %s: %s", p, compact(c.Old))
	default:
		return fmt.Sprintf("change %s: %s -> %s", p, compact(c.Old), compact(c.New))
	}
}

func compact(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// diffReporter collects the differences cmp finds between two decoded JSON
// documents. Only map keys and list positions make up a change's path.
type diffReporter struct {
	path    cmp.Path
	changes []Change
}

func (r *diffReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *diffReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

func (r *diffReporter) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}
	vx, vy := r.path.Last().Values()
	c := Change{Path: jsonPath(r.path)}
	switch {
	case !vx.IsValid():
		c.Kind, c.New = ChangeAdd, vy.Interface()
	case !vy.IsValid():
		c.Kind, c.Old = ChangeRemove, vx.Interface()
	default:
		c.Kind, c.Old, c.New = ChangeChange, vx.Interface(), vy.Interface()
	}
	r.changes = append(r.changes, c)
}

func jsonPath(path cmp.Path) []string {
	ret := []string{}
	for _, ps := range path {
		switch s := ps.(type) {
		case cmp.MapIndex:
			ret = append(ret, fmt.Sprint(s.Key().Interface()))
		case cmp.SliceIndex:
			ix, iy := s.SplitKeys()
			if iy < 0 {
				iy = ix
			}
			ret = append(ret, strconv.Itoa(iy))
		}
	}
	return ret
}

// Diff compares two decoded JSON documents and returns the changes that turn
// before into after. Map keys are visited in sorted order.
func Diff(before, after map[string]interface{}) []Change {
	// a missing mapping compares like an empty one
	if before == nil {
		before = map[string]interface{}{}
	}
	if after == nil {
		after = map[string]interface{}{}
	}
	r := &diffReporter{}
	cmp.Equal(before, after, cmp.Reporter(r))
	return r.changes
}

// NonAdditive filters changes down to removals and modifications.
func NonAdditive(changes []Change) []Change {
	var ret []Change
	for _, c := range changes {
		if c.Kind != ChangeAdd {
			ret = append(ret, c)
		}
	}
	return ret
}
