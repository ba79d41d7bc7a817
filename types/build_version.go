// Package types defines core domain types for shipyard.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"strconv"
	"strings"
)

// BuildVersion is a release version: a tag prefix followed by a
// non-negative integer, e.g. prefix "v" and number 12 render as "v12".
type BuildVersion struct {
	// Prefix is the tag prefix shared by every release of the project.
	Prefix string `json:"prefix" yaml:"prefix"`
	// Number is the release counter. Zero means "no prior release".
	Number int `json:"number" yaml:"number"`
}

// String renders the version as prefix + decimal number.
func (v BuildVersion) String() string {
	return v.Prefix + strconv.Itoa(v.Number)
}

// Next returns the version that follows v under the same prefix.
func (v BuildVersion) Next() BuildVersion {
	return BuildVersion{Prefix: v.Prefix, Number: v.Number + 1}
}

// ParseBuildVersion parses a tag carrying the given prefix.
// A tag without the prefix, a non-numeric remainder or a negative number
// all yield number 0. The second return reports whether the tag had the
// prefix at all.
func ParseBuildVersion(prefix, tag string) (BuildVersion, bool) {
	rest, ok := strings.CutPrefix(tag, prefix)
	if !ok {
		return BuildVersion{Prefix: prefix}, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 0 {
		n = 0
	}
	return BuildVersion{Prefix: prefix, Number: n}, true
}
