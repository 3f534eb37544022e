package lifecycle

import (
	"fmt"
	"strings"
)

// IndexAlreadyExistsError aborts a create batch before any index is created.
type IndexAlreadyExistsError struct {
	Name string
}

func (e *IndexAlreadyExistsError) Error() string {
	return fmt.Sprintf("index or alias %q already exists", e.Name)
}

// NotAllowedMappingUpdateError lists the mapping changes that are not pure
// additions.
type NotAllowedMappingUpdateError struct {
	Index   string
	Changes []Change
}

func (e *NotAllowedMappingUpdateError) Error() string {
	parts := make([]string, 0, len(e.Changes))
	for _, c := range e.Changes {
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("mapping update of %q is not allowed: %s", e.Index, strings.Join(parts, "; "))
}

// AmbiguousAliasError is returned when a write alias does not resolve to
// exactly one concrete index.
type AmbiguousAliasError struct {
	Alias   string
	Indices []string
}

func (e *AmbiguousAliasError) Error() string {
	if len(e.Indices) == 0 {
		return fmt.Sprintf("alias %q does not point to any index", e.Alias)
	}
	return fmt.Sprintf("alias %q points to %d indices: %s", e.Alias, len(e.Indices), strings.Join(e.Indices, ", "))
}

type UnknownIndexError struct {
	Name string
}

func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("no mapping registered for index %q", e.Name)
}

// MissingPrefixPlaceholderError is returned for legacy templates that do not
// contain the prefix placeholder while a prefix is configured.
type MissingPrefixPlaceholderError struct {
	Template string
}

func (e *MissingPrefixPlaceholderError) Error() string {
	return fmt.Sprintf("template %q does not use %s although an index prefix is configured",
		e.Template, PrefixPlaceholder)
}
