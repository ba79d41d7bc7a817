// Package release derives the next release version from the tags that
// already exist in the game's repository.
//
// Selection rule: among tags carrying the prefix, the LAST one in the
// order the tag oracle lists them wins. This is deliberately not a
// numeric maximum. With git's default refname order "v10" sorts before
// "v9", so operators who tag past 9 should set a sort key such as
// "v:refname" (see Config.TagSort).
package release

import (
	"context"
	"fmt"

	"github.com/pithecene-io/shipyard/types"
)

// TagLister enumerates tags. *git.Repository implements it.
type TagLister interface {
	Tags(ctx context.Context, sortKey string) ([]string, error)
}

// Config configures version resolution.
type Config struct {
	// Prefix is the tag prefix, e.g. "v".
	Prefix string
	// TagSort is passed to the lister as the ordering key. Empty keeps the
	// lister's default order.
	TagSort string
}

// Resolver computes the next BuildVersion.
type Resolver struct {
	config Config
	tags   TagLister
}

// NewResolver creates a Resolver over the given tag source.
func NewResolver(cfg Config, tags TagLister) *Resolver {
	return &Resolver{config: cfg, tags: tags}
}

// Resolution is the result of one resolution pass.
type Resolution struct {
	// Previous is the version parsed from the selected tag (number 0 when
	// no tag matched).
	Previous types.BuildVersion
	// Next is the version this run will ship.
	Next types.BuildVersion
	// PreviousTag is the raw selected tag, empty when none matched.
	PreviousTag string
	// Matched is the number of tags that carried the prefix.
	Matched int
}

// Resolve lists tags, selects the last one carrying the prefix and
// returns it together with its successor. A failing tag query is an
// error; an empty match set is not.
func (r *Resolver) Resolve(ctx context.Context) (*Resolution, error) {
	tags, err := r.tags.Tags(ctx, r.config.TagSort)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	res := &Resolution{Previous: types.BuildVersion{Prefix: r.config.Prefix}}
	for _, tag := range tags {
		v, ok := types.ParseBuildVersion(r.config.Prefix, tag)
		if !ok {
			continue
		}
		res.Matched++
		res.Previous = v
		res.PreviousTag = tag
	}
	res.Next = res.Previous.Next()
	return res, nil
}

// Next is shorthand for Resolve(ctx).Next.
func (r *Resolver) Next(ctx context.Context) (types.BuildVersion, error) {
	res, err := r.Resolve(ctx)
	if err != nil {
		return types.BuildVersion{}, err
	}
	return res.Next, nil
}
