// Package versions knows which mapping folder matches a cluster distribution
// and major version, and checks a live cluster against the expected one.
package versions

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
)

type Distribution string

const (
	Elasticsearch Distribution = "elasticsearch"
	OpenSearch    Distribution = "opensearch"
)

// ParseDistribution accepts the names used in configuration files.
func ParseDistribution(s string) (Distribution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "es", "elastic", "elasticsearch":
		return Elasticsearch, nil
	case "os", "opensearch":
		return OpenSearch, nil
	default:
		return "", errors.Errorf("unknown search engine distribution %q", s)
	}
}

// OpenSearchCompatibleMajor is the Elasticsearch major version whose mapping
// syntax OpenSearch accepts.
const OpenSearchCompatibleMajor = 7

type ClusterInfo struct {
	Distribution Distribution
	Number       string
	Major        int
	ClusterName  string
}

// ParseInfo reads the distribution and version out of a GET / response.
// Elasticsearch does not report a distribution, OpenSearch reports
// "opensearch".
func ParseInfo(body []byte) (*ClusterInfo, error) {
	number, err := jsonparser.GetString(body, "version", "number")
	if err != nil {
		return nil, errors.Wrap(err, "could not find version.number in cluster info")
	}
	v, err := version.NewVersion(number)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse cluster version %q", number)
	}

	ret := &ClusterInfo{
		Distribution: Elasticsearch,
		Number:       number,
		Major:        v.Segments()[0],
	}
	if dist, err := jsonparser.GetString(body, "version", "distribution"); err == nil {
		d, err := ParseDistribution(dist)
		if err != nil {
			return nil, err
		}
		ret.Distribution = d
	}
	if name, err := jsonparser.GetString(body, "cluster_name"); err == nil {
		ret.ClusterName = name
	}
	return ret, nil
}

type Candidate struct {
	Dir      string
	Fallback bool
}

// Candidates lists the version folders to try, most specific first.
func Candidates(dist Distribution, major int) []Candidate {
	switch dist {
	case OpenSearch:
		return []Candidate{
			{Dir: fmt.Sprintf("os-v%d", major)},
			{Dir: fmt.Sprintf("v%d", OpenSearchCompatibleMajor), Fallback: true},
		}
	default:
		return []Candidate{
			{Dir: fmt.Sprintf("v%d", major)},
		}
	}
}

type Resolution struct {
	Dir      string
	Fallback bool
	Warning  string
}

type VersionFolderNotFoundError struct {
	Root       string
	Candidates []string
}

func (e *VersionFolderNotFoundError) Error() string {
	return fmt.Sprintf("no mapping folder for this search engine version in %q, tried %s",
		e.Root, strings.Join(e.Candidates, ", "))
}

// Resolve returns the first candidate folder that exists under root in fsys.
func Resolve(fsys fs.FS, root string, dist Distribution, major int) (*Resolution, error) {
	candidates := Candidates(dist, major)
	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		dir := path.Join(root, c.Dir)
		tried = append(tried, dir)
		fi, err := fs.Stat(fsys, dir)
		if err != nil || !fi.IsDir() {
			continue
		}
		ret := &Resolution{Dir: dir, Fallback: c.Fallback}
		if c.Fallback {
			ret.Warning = fmt.Sprintf(
				"no %s-%d mapping folder in %q, falling back to %s",
				dist, major, root, c.Dir,
			)
		}
		return ret, nil
	}
	return nil, &VersionFolderNotFoundError{Root: root, Candidates: tried}
}

type VersionMismatchError struct {
	Expected      Distribution
	ExpectedMajor int
	Actual        *ClusterInfo
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("configured for %s %d but the cluster runs %s %s",
		e.Expected, e.ExpectedMajor, e.Actual.Distribution, e.Actual.Number)
}

// Check fails if info does not match the configured distribution and major
// version. An expectedMajor of 0 only checks the distribution.
func Check(info *ClusterInfo, expected Distribution, expectedMajor int) error {
	if info.Distribution != expected || (expectedMajor != 0 && info.Major != expectedMajor) {
		return &VersionMismatchError{
			Expected:      expected,
			ExpectedMajor: expectedMajor,
			Actual:        info,
		}
	}
	return nil
}
