package meta

import "slices"

type ancestorMemo struct {
	generation uint64
	modules    []*Module
}

// Ancestors returns the linearization searched by method and constant
// lookup, m included:
//
//	prepended modules (most recent first, each expanded)
//	m
//	included modules (most recent first, each expanded)
//	ancestors of the superclass
//
// A module reachable along several paths keeps only its first position.
func (m *Module) Ancestors() []*Module {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	return slices.Clone(m.ancestorsLocked())
}

// ParentAncestors is Ancestors without m itself.
func (m *Module) ParentAncestors() []*Module {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	return m.parentAncestorsLocked()
}

// PrependedAndIncludedModules returns the expanded prepend and include
// lists of m, excluding m and everything reached through the superclass.
func (m *Module) PrependedAndIncludedModules() []*Module {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	return m.prependedAndIncludedLocked()
}

// ancestorsLocked returns a shared slice; callers must not modify it.
func (m *Module) ancestorsLocked() []*Module {
	generation := m.rt.generation.Load()
	if !m.rt.config.DisableAncestorCache {
		if memo := m.memo.Load(); memo != nil && memo.generation == generation {
			ancestorCacheTotal.WithLabelValues("hit").Inc()
			return memo.modules
		}
		ancestorCacheTotal.WithLabelValues("miss").Inc()
	}

	seen := make(map[*Module]struct{})
	var out []*Module
	m.linearize(&out, seen)

	if !m.rt.config.DisableAncestorCache {
		m.memo.Store(&ancestorMemo{generation: generation, modules: out})
	}
	return out
}

func (m *Module) linearize(out *[]*Module, seen map[*Module]struct{}) {
	if _, ok := seen[m]; ok {
		return
	}
	for _, prepended := range m.prepended {
		prepended.linearize(out, seen)
	}
	seen[m] = struct{}{}
	*out = append(*out, m)
	for _, included := range m.included {
		included.linearize(out, seen)
	}
	if m.superclass != nil {
		m.superclass.linearize(out, seen)
	}
}

func (m *Module) parentAncestorsLocked() []*Module {
	ancestors := m.ancestorsLocked()
	out := make([]*Module, 0, len(ancestors))
	for _, ancestor := range ancestors {
		if ancestor != m {
			out = append(out, ancestor)
		}
	}
	return out
}

func (m *Module) prependedAndIncludedLocked() []*Module {
	seen := map[*Module]struct{}{m: {}}
	var out []*Module
	for _, prepended := range m.prepended {
		prepended.linearize(&out, seen)
	}
	for _, included := range m.included {
		included.linearize(&out, seen)
	}
	return out
}
