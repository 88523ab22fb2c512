package meta

import "regexp"

var classVariableNamePattern = regexp.MustCompile(`^@@[A-Za-z_][A-Za-z0-9_]*$`)

// IsValidClassVariableName reports whether name looks like @@name.
func IsValidClassVariableName(name string) bool {
	return classVariableNamePattern.MatchString(name)
}

// classVariableLookup applies action to m, then to the object m is attached
// to when m is a singleton class of a module, then to that module's parent
// ancestors, stopping at the first module action accepts.
func classVariableLookup[R any](m *Module, action func(*Module) (R, bool)) (R, bool) {
	if result, ok := action(m); ok {
		return result, true
	}

	if m.isSingleton {
		if attached := m.attached.Module(); attached != nil {
			m = attached
			if result, ok := action(m); ok {
				return result, true
			}
		}
	}

	for _, ancestor := range m.parentAncestorsLocked() {
		if result, ok := action(ancestor); ok {
			return result, true
		}
	}

	var zero R
	return zero, false
}

// LookupClassVariable finds the binding of name visible from m.
func (m *Module) LookupClassVariable(name string) (Value, bool) {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	val, ok := classVariableLookup(m, func(candidate *Module) (Value, bool) {
		val, ok := candidate.classVars[name]
		return val, ok
	})
	if ok {
		classVariableLookupsTotal.WithLabelValues("hit").Inc()
	} else {
		classVariableLookupsTotal.WithLabelValues("miss").Inc()
	}
	return val, ok
}

// SetClassVariable updates the existing binding of name visible from m, so
// the whole hierarchy observes the new value. Without an existing binding
// the variable is created in m itself.
func (m *Module) SetClassVariable(name string, val Value) error {
	if !IsValidClassVariableName(name) {
		return newNameError(name, "'%s' is not allowed as a class variable name", name)
	}
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	_, found := classVariableLookup(m, func(candidate *Module) (*Module, bool) {
		if _, ok := candidate.classVars[name]; ok {
			candidate.classVars[name] = val
			return candidate, true
		}
		return nil, false
	})
	if !found {
		m.classVars[name] = val
	}
	return nil
}

// AllClassVariables merges every class variable visible from m. When a name
// is bound more than once the binding found first wins.
func (m *Module) AllClassVariables() map[string]Value {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	out := make(map[string]Value)
	classVariableLookup(m, func(candidate *Module) (struct{}, bool) {
		for name, val := range candidate.classVars {
			if _, ok := out[name]; !ok {
				out[name] = val
			}
		}
		return struct{}{}, false
	})
	return out
}

// ClassVariableOwner returns the module holding the binding of name visible
// from m, or nil.
func (m *Module) ClassVariableOwner(name string) *Module {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	owner, _ := classVariableLookup(m, func(candidate *Module) (*Module, bool) {
		_, ok := candidate.classVars[name]
		return candidate, ok
	})
	return owner
}
