// Package resolver ranks cluster nodes (C10) against a routing
// requirement, used to pick which live node a query coordinator hands a
// KNN/index-build workload or a live-query registration to.
package resolver

import (
	"sort"
	"strings"

	"github.com/surrealcore/coredb/internal/cluster"
)

// Requirement describes what a caller needs from a node: a required
// capability tag (e.g. "index", "coordinator") and an optional profile
// tag to prefer among otherwise-equal candidates (e.g. "primary").
type Requirement struct {
	Tags    []string
	Profile string
}

// Resolver selects the best node for a given requirement.
type Resolver interface {
	ResolveBest(nodes []cluster.Node, req Requirement) *cluster.Node
	ResolveAll(nodes []cluster.Node, req Requirement) []cluster.Node
}

// StandardResolver implements the default tag-matching logic.
type StandardResolver struct{}

// NewStandardResolver creates a new StandardResolver.
func NewStandardResolver() *StandardResolver {
	return &StandardResolver{}
}

// ResolveBest selects the single best node, or nil if none match.
func (r *StandardResolver) ResolveBest(nodes []cluster.Node, req Requirement) *cluster.Node {
	matches := r.ResolveAll(nodes, req)
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

// ResolveAll ranks every node against req, highest score first. A node
// missing a required tag (len(req.Tags) > 0 and zero tag matches) is
// still included but sorts last, so callers with no live ideal candidate
// still get a usable ordering rather than an empty slice.
func (r *StandardResolver) ResolveAll(nodes []cluster.Node, req Requirement) []cluster.Node {
	type scored struct {
		node  cluster.Node
		score int
	}

	candidates := make([]scored, 0, len(nodes))
	for _, n := range nodes {
		score := 0
		for _, reqTag := range req.Tags {
			if contains(n.Tags, reqTag) {
				score += 10
			}
		}
		if req.Profile != "" && contains(n.Tags, req.Profile) {
			score += 5
		}
		candidates = append(candidates, scored{node: n, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	out := make([]cluster.Node, len(candidates))
	for i, c := range candidates {
		out[i] = c.node
	}
	return out
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
