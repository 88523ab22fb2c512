package meta

import "fmt"

// LookupMethod returns the most specific method for name along m's
// ancestors. A tombstone in the first module that mentions name hides every
// inherited definition, so the result is nil.
func (m *Module) LookupMethod(name string) *Method {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	method := m.lookupMethodLocked(name)
	if method == nil {
		methodLookupsTotal.WithLabelValues("miss").Inc()
	} else {
		methodLookupsTotal.WithLabelValues("hit").Inc()
	}
	return method
}

// LookupMethodEntry is LookupMethod without the tombstone filter: it returns
// the first entry for name, which may be undefined.
func (m *Module) LookupMethodEntry(name string) *Method {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	return m.lookupMethodEntryLocked(name)
}

func (m *Module) lookupMethodLocked(name string) *Method {
	method := m.lookupMethodEntryLocked(name)
	if method == nil || method.undefined {
		return nil
	}
	return method
}

func (m *Module) lookupMethodEntryLocked(name string) *Method {
	for _, ancestor := range m.ancestorsLocked() {
		if method, ok := ancestor.methods[name]; ok {
			return method
		}
	}
	return nil
}

// LookupSuperMethod resolves `super` for a method named name declared in
// declaring, called on an object whose class is start. The scan resumes
// strictly after declaring in start's ancestors. declaring must be one of
// those ancestors; anything else is a broken call site and panics.
func LookupSuperMethod(declaring *Module, name string, start *Module) *Method {
	start.rt.mu.RLock()
	defer start.rt.mu.RUnlock()

	found := false
	for _, ancestor := range start.ancestorsLocked() {
		if ancestor == declaring {
			found = true
			continue
		}
		if !found {
			continue
		}
		if method, ok := ancestor.methods[name]; ok {
			superLookupsTotal.WithLabelValues("hit").Inc()
			if method.undefined {
				return nil
			}
			return method
		}
	}
	if !found {
		panic(fmt.Sprintf("meta: declaring module %s not found in %s ancestors", declaring.inspect(), start.inspect()))
	}
	superLookupsTotal.WithLabelValues("miss").Inc()
	return nil
}

// AllMethods collects the first entry for every name along m's ancestors.
// Tombstones are kept so callers can tell hidden names apart; see
// WithoutUndefinedMethods.
func (m *Module) AllMethods() map[string]*Method {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	methods := make(map[string]*Method)
	for _, ancestor := range m.ancestorsLocked() {
		collectMethods(methods, ancestor)
	}
	return methods
}

// MethodsBeforeLogicalClass collects methods from the ancestors that come
// before the first non-singleton class, which is excluded. For a singleton
// class these are the object-specific methods.
func (m *Module) MethodsBeforeLogicalClass() map[string]*Method {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	methods := make(map[string]*Method)
	for _, ancestor := range m.ancestorsLocked() {
		if ancestor.isClass && !ancestor.isSingleton {
			break
		}
		collectMethods(methods, ancestor)
	}
	return methods
}

// MethodsUntilLogicalClass is MethodsBeforeLogicalClass with the first
// non-singleton class included.
func (m *Module) MethodsUntilLogicalClass() map[string]*Method {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	methods := make(map[string]*Method)
	for _, ancestor := range m.ancestorsLocked() {
		collectMethods(methods, ancestor)
		if ancestor.isClass && !ancestor.isSingleton {
			break
		}
	}
	return methods
}

func collectMethods(into map[string]*Method, m *Module) {
	for name, method := range m.methods {
		if _, ok := into[name]; !ok {
			into[name] = method
		}
	}
}

// CanBindMethodTo reports whether a method declared in origin may be bound
// to receivers of module. Module methods bind anywhere; class methods only
// to classes that inherit from origin.
func CanBindMethodTo(origin *Module, module *Module) bool {
	if !origin.isClass {
		return true
	}
	return module.isClass && module.IncludesModule(origin)
}
