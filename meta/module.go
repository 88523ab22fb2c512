package meta

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Allocator creates an uninitialized instance of class.
type Allocator func(rt *Runtime, class *Module) (Value, error)

// Module is a node of the metaobject graph. Every class is a Module with
// isClass set; only classes have a superclass. The display name has its own
// lock so values can be rendered while the graph is locked; every other
// mutable field is guarded by the owning Runtime's lock.
type Module struct {
	rt *Runtime
	id uuid.UUID

	nameMu sync.RWMutex
	name   string

	isClass     bool
	isSingleton bool
	attached    Value
	initialized bool
	allocator   Allocator

	superclass *Module
	included   []*Module
	prepended  []*Module
	singleton  *Module

	methods   map[string]*Method
	constants map[string]*Constant
	classVars map[string]Value

	memo atomic.Pointer[ancestorMemo]
}

// Constant is an immutable constant record. Reassignment replaces the record.
type Constant struct {
	Name    string
	Value   Value
	Owner   *Module
	Private bool
}

func (rt *Runtime) newModule(isClass bool) *Module {
	return &Module{
		rt:        rt,
		id:        uuid.New(),
		isClass:   isClass,
		methods:   make(map[string]*Method),
		constants: make(map[string]*Constant),
		classVars: make(map[string]Value),
	}
}

func (m *Module) Runtime() *Runtime { return m.rt }
func (m *Module) ID() uuid.UUID     { return m.id }
func (m *Module) IsClass() bool     { return m.isClass }
func (m *Module) IsSingleton() bool { return m.isSingleton }

// IsOnlyAModule reports whether m is a pure module rather than a class.
func (m *Module) IsOnlyAModule() bool { return !m.isClass }

// Attached returns the object a singleton class belongs to, or nil.
func (m *Module) Attached() Value {
	return m.attached
}

// Name returns the display name, or "" while the module is anonymous.
func (m *Module) Name() string {
	m.nameMu.RLock()
	defer m.nameMu.RUnlock()
	return m.name
}

func (m *Module) Inspect() string { return m.inspect() }

func (m *Module) String() string { return m.Inspect() }

func (m *Module) inspect() string {
	if m.isSingleton {
		if attached := m.attached.Module(); attached != nil {
			return fmt.Sprintf("#<Class:%s>", attached.inspect())
		}
		if obj := m.attached.Object(); obj != nil {
			return fmt.Sprintf("#<Class:#<%s:%s>>", obj.class.inspect(), shortID(obj.ID))
		}
	}
	if name := m.Name(); name != "" {
		return name
	}
	kind := "Module"
	if m.isClass {
		kind = "Class"
	}
	return fmt.Sprintf("#<%s:%s>", kind, shortID(m.id))
}

// Superclass returns the superclass link, or nil for the root class, for
// pure modules and for classes that were allocated but never initialized.
func (m *Module) Superclass() *Module {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	return m.superclass
}

// IncludedModules returns the directly included modules, most recent first.
func (m *Module) IncludedModules() []*Module {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	return slices.Clone(m.included)
}

// PrependedModules returns the directly prepended modules, most recent first.
func (m *Module) PrependedModules() []*Module {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	return slices.Clone(m.prepended)
}

// Include mixes other in behind m. Including a module m already includes is
// a no-op.
func (m *Module) Include(other *Module) error {
	return m.mixin(other, false)
}

// Prepend mixes other in ahead of m, so its methods take priority over m's
// own. Prepending a module m already prepends is a no-op.
func (m *Module) Prepend(other *Module) error {
	return m.mixin(other, true)
}

func (m *Module) mixin(other *Module, prepend bool) error {
	verb := "include"
	if prepend {
		verb = "prepend"
	}
	if other == nil {
		return newTypeError("wrong argument type nil (expected Module)")
	}

	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()

	if other.isClass {
		return newTypeError("wrong argument type Class (expected Module)").in(other)
	}

	list := &m.included
	if prepend {
		list = &m.prepended
	}
	if slices.Contains(*list, other) {
		return nil
	}
	if other == m || slices.Contains(other.ancestorsLocked(), m) {
		return newArgumentError("cyclic %s detected", verb).in(m)
	}
	*list = append([]*Module{other}, (*list)...)
	m.rt.structureChangedLocked()
	m.rt.logger.Debug("module mixed in", "module", m.inspect(), "mixin", other.inspect(), "mode", verb)
	return nil
}

// DefineMethod adds or replaces a method in m's own table. Methods named
// like initialize are private, everything else public.
func (m *Module) DefineMethod(name string, fn MethodFunc) *Method {
	vis := VisibilityPublic
	if IsMethodPrivateFromName(name) {
		vis = VisibilityPrivate
	}
	return m.DefineMethodWithVisibility(name, vis, fn)
}

func (m *Module) DefineMethodWithVisibility(name string, vis Visibility, fn MethodFunc) *Method {
	method := &Method{Name: name, Owner: m, Visibility: vis, Fn: fn}
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	m.methods[name] = method
	return method
}

// UndefMethod leaves a tombstone for name in m so lookups stop at m. The
// method must be reachable from m.
func (m *Module) UndefMethod(name string) error {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	if m.lookupMethodLocked(name) == nil {
		return newNameError(name, "undefined method '%s' for %s", name, m.describeLocked()).in(m)
	}
	m.methods[name] = &Method{Name: name, Owner: m, undefined: true}
	return nil
}

// RemoveMethod deletes name from m's own table, exposing any inherited
// definition again.
func (m *Module) RemoveMethod(name string) error {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	method, ok := m.methods[name]
	if !ok || method.undefined {
		return newNameError(name, "method '%s' not defined in %s", name, m.inspect()).in(m)
	}
	delete(m.methods, name)
	return nil
}

// SetMethodVisibility changes the visibility of name as seen from m. An
// inherited method is copied into m's table with the new visibility.
func (m *Module) SetMethodVisibility(name string, vis Visibility) error {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	method := m.lookupMethodLocked(name)
	if method == nil {
		return newNameError(name, "undefined method '%s' for %s", name, m.describeLocked()).in(m)
	}
	if method.Visibility == vis {
		return nil
	}
	m.methods[name] = method.withVisibility(vis, m)
	return nil
}

// Method returns the entry in m's own table, tombstones included.
func (m *Module) Method(name string) *Method {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	return m.methods[name]
}

// Methods returns a copy of m's own method table.
func (m *Module) Methods() map[string]*Method {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	out := make(map[string]*Method, len(m.methods))
	maps.Copy(out, m.methods)
	return out
}

// SetConstant binds name in m. Rebinding replaces the record. Assigning an
// anonymous module names it after the constant.
func (m *Module) SetConstant(name string, val Value) error {
	if !IsValidConstantName(name) {
		return newNameError(name, "wrong constant name %s", name).in(m)
	}
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	m.setConstantLocked(name, val)
	return nil
}

func (m *Module) setConstantLocked(name string, val Value) {
	private := false
	if prev, ok := m.constants[name]; ok {
		m.rt.logger.Warn("already initialized constant", "module", m.inspect(), "name", name, "previous", prev.Value.Inspect())
		private = prev.Private
	}
	m.constants[name] = &Constant{Name: name, Value: val, Owner: m, Private: private}
	mod := val.Module()
	if mod == nil || mod.isSingleton || mod.Name() != "" {
		return
	}
	qualified := name
	if owner := m.Name(); m != m.rt.object && owner != "" {
		qualified = owner + "::" + name
	}
	mod.nameMu.Lock()
	mod.name = qualified
	mod.nameMu.Unlock()
}

// PrivateConstant marks an existing constant of m as private.
func (m *Module) PrivateConstant(name string) error {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	constant, ok := m.constants[name]
	if !ok {
		return newNameError(name, "constant %s::%s not defined", m.inspect(), name).in(m)
	}
	cp := *constant
	cp.Private = true
	m.constants[name] = &cp
	return nil
}

// RemoveConstant unbinds name from m and returns its former value.
func (m *Module) RemoveConstant(name string) (Value, error) {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	constant, ok := m.constants[name]
	if !ok {
		return NewNil(), newNameError(name, "constant %s::%s not defined", m.inspect(), name).in(m)
	}
	delete(m.constants, name)
	return constant.Value, nil
}

// Constant returns the record bound directly in m, or nil.
func (m *Module) Constant(name string) *Constant {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	return m.constants[name]
}

// Constants returns a copy of m's own constant table.
func (m *Module) Constants() map[string]*Constant {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	out := make(map[string]*Constant, len(m.constants))
	maps.Copy(out, m.constants)
	return out
}

// AllConstants merges m's own constants with those of its prepended and
// included modules; the first binding of a name wins.
func (m *Module) AllConstants() map[string]*Constant {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	out := make(map[string]*Constant, len(m.constants))
	maps.Copy(out, m.constants)
	for _, mixin := range m.prependedAndIncludedLocked() {
		for name, constant := range mixin.constants {
			if _, ok := out[name]; !ok {
				out[name] = constant
			}
		}
	}
	return out
}

// ClassVariables returns a copy of the class variables bound directly in m.
func (m *Module) ClassVariables() map[string]Value {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	out := make(map[string]Value, len(m.classVars))
	maps.Copy(out, m.classVars)
	return out
}

// IncludesModule reports whether other appears among m's ancestors.
func (m *Module) IncludesModule(other *Module) bool {
	m.rt.mu.RLock()
	defer m.rt.mu.RUnlock()
	return m.includesModuleLocked(other)
}

func (m *Module) includesModuleLocked(other *Module) bool {
	return slices.Contains(m.ancestorsLocked(), other)
}

// IsAssignableTo reports whether instances of class m are kind_of? other.
func (m *Module) IsAssignableTo(other *Module) bool {
	return m.isClass && m.IncludesModule(other)
}

func (m *Module) describeLocked() string {
	kind := "module"
	if m.isClass {
		kind = "class"
	}
	return fmt.Sprintf("%s '%s'", kind, m.inspect())
}
