package meta

import "context"

func allocateObject(rt *Runtime, class *Module) (Value, error) {
	return NewObject(newObject(class)), nil
}

func allocateModule(rt *Runtime, class *Module) (Value, error) {
	module := rt.newModule(false)
	module.initialized = true
	return NewModule(module), nil
}

// allocateClass returns an anonymous class with no superclass yet;
// Class#initialize links it into the hierarchy.
func allocateClass(rt *Runtime, class *Module) (Value, error) {
	return NewModule(rt.newModule(true)), nil
}

func allocateArray(rt *Runtime, class *Module) (Value, error) {
	return NewArray(nil), nil
}

func allocateHash(rt *Runtime, class *Module) (Value, error) {
	return NewHashValue(rt.NewHash()), nil
}

// Allocate implements Class#allocate: an uninitialized instance of class.
// Singleton classes are never instantiable.
func (rt *Runtime) Allocate(class *Module) (Value, error) {
	rt.mu.RLock()
	var err error
	switch {
	case !class.isClass:
		err = newTypeError("%s is not a class", class.inspect())
	case class.isSingleton:
		err = newTypeError("can't create instance of singleton class").in(class)
	case class.allocator == nil:
		err = newTypeError("allocator undefined for %s", class.inspect()).in(class)
	}
	allocator := class.allocator
	rt.mu.RUnlock()
	if err != nil {
		return NewNil(), err
	}
	return allocator(rt, class)
}

// New implements Class#new: allocate, then initialize with args and block.
// Both steps are dynamically dispatched, so user overrides apply.
func (rt *Runtime) New(ctx context.Context, class *Module, args []Value, block Value) (Value, error) {
	instance, err := rt.Send(ctx, NewModule(class), "allocate", nil, NewNil())
	if err != nil {
		return NewNil(), err
	}
	if _, err := rt.Send(ctx, instance, "initialize", args, block); err != nil {
		return NewNil(), err
	}
	return instance, nil
}

// InitializeClass implements Class#initialize. It links class under
// superclass (Object when nil), notifies the superclass through its
// inherited hook and only then evaluates block as the class body.
func (rt *Runtime) InitializeClass(ctx context.Context, class *Module, superclass *Module, block Value) error {
	if superclass == nil {
		superclass = rt.object
	}

	rt.mu.Lock()
	err := rt.linkClassLocked(class, superclass)
	rt.mu.Unlock()
	if err != nil {
		return err
	}
	return rt.classInitialized(ctx, class, superclass, block)
}

func (rt *Runtime) linkClassLocked(class *Module, superclass *Module) error {
	if class.initialized {
		return newTypeError("already initialized class").in(class)
	}
	if err := rt.checkSuperclassLocked(superclass); err != nil {
		return err
	}
	class.superclass = superclass
	class.allocator = superclass.allocator
	class.initialized = true
	if class.singleton != nil {
		parent, err := rt.singletonClassLocked(NewModule(superclass))
		if err != nil {
			return err
		}
		class.singleton.superclass = parent
	}
	rt.structureChangedLocked()
	return nil
}

// classInitialized runs the inherited hook and then the class body.
func (rt *Runtime) classInitialized(ctx context.Context, class *Module, superclass *Module, block Value) error {
	rt.logger.Debug("class initialized", "class", class.inspect(), "superclass", superclass.inspect())

	inheritedHooksTotal.Inc()
	if _, err := rt.Send(ctx, NewModule(superclass), "inherited", []Value{NewModule(class)}, NewNil()); err != nil {
		return err
	}
	if !block.IsNil() {
		if _, err := rt.ModuleEval(ctx, class, block); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) checkSuperclassLocked(superclass *Module) error {
	switch {
	case !superclass.isClass:
		return newTypeError("superclass must be a Class (%s given)", superclass.inspect())
	case superclass.isSingleton:
		return newTypeError("can't make subclass of singleton class").in(superclass)
	case superclass == rt.class:
		return newTypeError("can't make subclass of Class")
	}
	return nil
}

// ModuleEval runs block with self set to module, as a class or module body.
func (rt *Runtime) ModuleEval(ctx context.Context, module *Module, block Value) (Value, error) {
	b := block.Block()
	if b == nil || b.Fn == nil {
		return NewNil(), nil
	}
	return b.Fn(ctx, NewModule(module), nil)
}

// DefineClass opens the class name under under, creating it as a subclass
// of superclass (Object when nil) if it does not exist yet. Reopening checks
// that the existing constant is a class with the same superclass. Creation
// binds and links the class under one write lock, so concurrent definitions
// of the same name all get the same class.
func (rt *Runtime) DefineClass(ctx context.Context, under *Module, name string, superclass *Module) (*Module, error) {
	if !IsValidConstantName(name) {
		return nil, newNameError(name, "wrong constant name %s", name)
	}

	rt.mu.RLock()
	existing := under.constants[name]
	rt.mu.RUnlock()
	if existing != nil {
		return reopenClass(existing, name, superclass)
	}

	allocated, err := rt.Allocate(rt.class)
	if err != nil {
		return nil, err
	}
	class := allocated.Module()
	parent := superclass
	if parent == nil {
		parent = rt.object
	}

	rt.mu.Lock()
	if existing := under.constants[name]; existing != nil {
		rt.mu.Unlock()
		return reopenClass(existing, name, superclass)
	}
	if err := rt.linkClassLocked(class, parent); err != nil {
		rt.mu.Unlock()
		return nil, err
	}
	under.setConstantLocked(name, allocated)
	rt.mu.Unlock()

	if err := rt.classInitialized(ctx, class, parent, NewNil()); err != nil {
		return nil, err
	}
	return class, nil
}

func reopenClass(existing *Constant, name string, superclass *Module) (*Module, error) {
	class := existing.Value.Module()
	if class == nil || !class.isClass {
		return nil, newTypeError("%s is not a class", name)
	}
	if superclass != nil && class.Superclass() != superclass {
		return nil, newTypeError("superclass mismatch for class %s", name).in(class)
	}
	return class, nil
}

// DefineModule opens the module name under under, creating it if needed.
func (rt *Runtime) DefineModule(under *Module, name string) (*Module, error) {
	if !IsValidConstantName(name) {
		return nil, newNameError(name, "wrong constant name %s", name)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if existing := under.constants[name]; existing != nil {
		module := existing.Value.Module()
		if module == nil || module.isClass {
			return nil, newTypeError("%s is not a module", name)
		}
		return module, nil
	}
	module := rt.newModule(false)
	module.initialized = true
	under.setConstantLocked(name, NewModule(module))
	return module, nil
}
