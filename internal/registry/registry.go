// Package registry holds the known translation steps in release order and
// computes the step chain between two versions.
//
// A Registry is an explicit value built by the caller. Tests build truncated
// registries; nothing here is process-wide.
package registry

import (
	"fmt"
	"sort"

	"github.com/roach88/osversion/internal/ir"
	"github.com/roach88/osversion/internal/rule"
)

// Registry is an immutable, ordered set of translation steps.
// Safe for concurrent use.
type Registry struct {
	steps  []*rule.Step // sorted by From
	byFrom map[ir.VersionTag]*rule.Step
}

// New builds a registry. Each step must be valid and no two steps may start
// at the same version.
func New(steps ...*rule.Step) (*Registry, error) {
	r := &Registry{byFrom: make(map[ir.VersionTag]*rule.Step, len(steps))}
	for _, s := range steps {
		if s == nil {
			return nil, fmt.Errorf("registry: nil step")
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		if prev, dup := r.byFrom[s.From]; dup {
			return nil, fmt.Errorf("registry: steps %s and %s both start at %s", prev.Name(), s.Name(), s.From)
		}
		r.byFrom[s.From] = s
		r.steps = append(r.steps, s)
	}
	sort.Slice(r.steps, func(i, j int) bool { return r.steps[i].From.Less(r.steps[j].From) })
	return r, nil
}

// MustNew is like New but panics on error.
func MustNew(steps ...*rule.Step) *Registry {
	r, err := New(steps...)
	if err != nil {
		panic(err)
	}
	return r
}

// Steps returns every registered step in ascending order.
func (r *Registry) Steps() []*rule.Step {
	out := make([]*rule.Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Latest returns the newest version any step produces. The zero tag is
// returned for an empty registry.
func (r *Registry) Latest() ir.VersionTag {
	var latest ir.VersionTag
	for _, s := range r.steps {
		if latest.Less(s.To) {
			latest = s.To
		}
	}
	return latest
}

// Versions returns every version mentioned by a step, ascending.
func (r *Registry) Versions() []ir.VersionTag {
	seen := make(map[ir.VersionTag]bool)
	var out []ir.VersionTag
	for _, s := range r.steps {
		for _, v := range []ir.VersionTag{s.From, s.To} {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Knows reports whether v is the start or end of some step.
func (r *Registry) Knows(v ir.VersionTag) bool {
	if _, ok := r.byFrom[v]; ok {
		return true
	}
	for _, s := range r.steps {
		if s.To == v {
			return true
		}
	}
	return false
}

// StepsBetween returns the contiguous, strictly increasing chain of steps
// that moves a workspace from source to target. An empty chain is returned
// when source equals target.
func (r *Registry) StepsBetween(source, target ir.VersionTag) ([]*rule.Step, error) {
	if latest := r.Latest(); latest.Less(source) {
		return nil, ir.NewFutureVersionError(source, latest)
	}
	if target.Less(source) {
		return nil, ir.NewNoPathError(source, target, "downgrade is not supported")
	}

	var chain []*rule.Step
	cur := source
	for cur.Less(target) {
		s, ok := r.byFrom[cur]
		if !ok {
			return nil, ir.NewNoPathError(source, target, fmt.Sprintf("no step registered from %s", cur))
		}
		if target.Less(s.To) {
			return nil, ir.NewNoPathError(source, target,
				fmt.Sprintf("step %s overshoots target %s", s.Name(), target))
		}
		chain = append(chain, s)
		cur = s.To
	}
	return chain, nil
}
