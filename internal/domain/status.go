package domain

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var statusNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateName checks that a status name can back a column, an off event and
// the operation names derived from it.
func ValidateName(name string) error {
	return validation.Validate(name,
		validation.Required.Error("status name is required"),
		validation.Match(statusNamePattern).Error("status name must be lower snake case"),
		validation.By(func(value any) error {
			if strings.HasPrefix(value.(string), OffPrefix) {
				return errors.New("status name cannot start with " + OffPrefix)
			}
			return nil
		}),
	)
}

// ValidateFilterName checks a derived filter name. Unlike status names it may
// start with the off prefix.
func ValidateFilterName(name string) error {
	return validation.Validate(name,
		validation.Required.Error("filter name is required"),
		validation.Match(statusNamePattern).Error("filter name must be lower snake case"),
	)
}

// ValidateToken checks the syntax of a single status string token. It does
// not check whether the status is configured.
func ValidateToken(token string) error {
	name, _ := OnEvent(token)
	return ValidateName(name)
}

// ParseIncluding resolves a composite filter name of the form
// status_including_<a>_and_<b>... against the known status names.
//
// The first return value lists the matched statuses in the order they appear.
// The boolean is false when name does not carry the including prefix at all.
// Names may themselves contain the separator; the longest known name is tried
// first at every position.
func ParseIncluding(name string, known []string) ([]string, bool, error) {
	if !strings.HasPrefix(name, IncludingPrefix) {
		return nil, false, nil
	}
	rest := strings.TrimPrefix(name, IncludingPrefix)
	if rest == "" {
		return nil, true, NewUnknownFilterError(name)
	}

	candidates := make([]string, 0, len(known))
	seen := make(map[string]struct{}, len(known))
	for _, status := range known {
		if _, ok := seen[status]; ok || status == "" {
			continue
		}
		seen[status] = struct{}{}
		candidates = append(candidates, status)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})

	matched, ok := matchIncluding(rest, candidates)
	if !ok {
		return nil, true, NewUnknownStatusError(unmatchedParts(rest, seen)...)
	}
	return matched, true, nil
}

func matchIncluding(rest string, candidates []string) ([]string, bool) {
	for _, status := range candidates {
		if rest == status {
			return []string{status}, true
		}
		prefix := status + IncludingSeparator
		if !strings.HasPrefix(rest, prefix) {
			continue
		}
		if tail, ok := matchIncluding(rest[len(prefix):], candidates); ok {
			return append([]string{status}, tail...), true
		}
	}
	return nil, false
}

func unmatchedParts(rest string, known map[string]struct{}) []string {
	var unknown []string
	for _, part := range strings.Split(rest, IncludingSeparator) {
		if _, ok := known[part]; !ok {
			unknown = append(unknown, part)
		}
	}
	if len(unknown) == 0 {
		unknown = []string{rest}
	}
	return unknown
}
