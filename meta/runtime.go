package meta

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Config controls runtime construction.
type Config struct {
	// InitialHashBuckets sizes new hash tables; it must be a power of two.
	InitialHashBuckets   int
	DisableAncestorCache bool
	Logger               *slog.Logger
	// Dispatcher invokes user-level methods (hooks, eql?, hash). Nil selects
	// the method-table dispatcher.
	Dispatcher Dispatcher
	// KeyPolicy hashes and compares hash keys. Nil dispatches hash and eql?.
	KeyPolicy KeyPolicy
}

// Runtime owns one metaobject graph: the boot classes, every module created
// from them, and the lock that keeps ancestor walks and table reads
// consistent with concurrent mutation.
type Runtime struct {
	config     Config
	logger     *slog.Logger
	dispatcher Dispatcher
	keyPolicy  KeyPolicy

	mu         sync.RWMutex
	generation atomic.Uint64

	basicObject *Module
	object      *Module
	module      *Module
	class       *Module
	kernel      *Module

	nilClass     *Module
	trueClass    *Module
	falseClass   *Module
	integerClass *Module
	floatClass   *Module
	stringClass  *Module
	symbolClass  *Module
	arrayClass   *Module
	hashClass    *Module
	procClass    *Module

	rootScope *LexicalScope
}

// NewRuntime boots the BasicObject/Object/Module/Class hierarchy, Kernel and
// the builtin value classes, and registers their methods.
func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.InitialHashBuckets < 0 {
		return nil, fmt.Errorf("meta: initial hash buckets cannot be negative")
	}
	if cfg.InitialHashBuckets == 0 {
		cfg.InitialHashBuckets = 8
	}
	if cfg.InitialHashBuckets&(cfg.InitialHashBuckets-1) != 0 {
		return nil, fmt.Errorf("meta: initial hash buckets %d is not a power of two", cfg.InitialHashBuckets)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	rt := &Runtime{
		config: cfg,
		logger: cfg.Logger,
	}
	rt.dispatcher = cfg.Dispatcher
	if rt.dispatcher == nil {
		rt.dispatcher = rt.DefaultDispatcher()
	}
	rt.keyPolicy = cfg.KeyPolicy
	if rt.keyPolicy == nil {
		rt.keyPolicy = dispatchKeyPolicy{rt: rt}
	}

	rt.boot()
	registerBuiltins(rt)
	return rt, nil
}

// MustNewRuntime constructs a Runtime or panics if the config is invalid.
func MustNewRuntime(cfg Config) *Runtime {
	rt, err := NewRuntime(cfg)
	if err != nil {
		panic(err)
	}
	return rt
}

// boot seeds the core classes. Nothing else can see the runtime yet, so no
// hooks run and no lock is taken.
func (rt *Runtime) boot() {
	rt.basicObject = rt.bootClass("BasicObject", nil, allocateObject)
	rt.object = rt.bootClass("Object", rt.basicObject, allocateObject)
	rt.module = rt.bootClass("Module", rt.object, allocateModule)
	rt.class = rt.bootClass("Class", rt.module, allocateClass)
	rt.kernel = rt.bootModule("Kernel")
	rt.object.included = []*Module{rt.kernel}

	rt.nilClass = rt.bootClass("NilClass", rt.object, nil)
	rt.trueClass = rt.bootClass("TrueClass", rt.object, nil)
	rt.falseClass = rt.bootClass("FalseClass", rt.object, nil)
	rt.integerClass = rt.bootClass("Integer", rt.object, nil)
	rt.floatClass = rt.bootClass("Float", rt.object, nil)
	rt.stringClass = rt.bootClass("String", rt.object, nil)
	rt.symbolClass = rt.bootClass("Symbol", rt.object, nil)
	rt.arrayClass = rt.bootClass("Array", rt.object, allocateArray)
	rt.hashClass = rt.bootClass("Hash", rt.object, allocateHash)
	rt.procClass = rt.bootClass("Proc", rt.object, nil)

	for _, m := range []*Module{
		rt.basicObject, rt.object, rt.module, rt.class, rt.kernel,
		rt.nilClass, rt.trueClass, rt.falseClass, rt.integerClass, rt.floatClass,
		rt.stringClass, rt.symbolClass, rt.arrayClass, rt.hashClass, rt.procClass,
	} {
		rt.object.constants[m.name] = &Constant{Name: m.name, Value: NewModule(m), Owner: rt.object}
	}

	rt.rootScope = NewLexicalScope(nil, rt.object)
	rt.structureChangedLocked()
}

func (rt *Runtime) bootClass(name string, superclass *Module, allocator Allocator) *Module {
	class := rt.newModule(true)
	class.name = name
	class.superclass = superclass
	class.allocator = allocator
	class.initialized = true
	return class
}

func (rt *Runtime) bootModule(name string) *Module {
	module := rt.newModule(false)
	module.name = name
	module.initialized = true
	return module
}

// structureChangedLocked invalidates every memoized ancestor sequence. The
// caller holds the write lock.
func (rt *Runtime) structureChangedLocked() {
	rt.generation.Add(1)
}

func (rt *Runtime) BasicObject() *Module { return rt.basicObject }
func (rt *Runtime) Object() *Module      { return rt.object }
func (rt *Runtime) ModuleClass() *Module { return rt.module }
func (rt *Runtime) ClassClass() *Module  { return rt.class }
func (rt *Runtime) Kernel() *Module      { return rt.kernel }
func (rt *Runtime) HashClass() *Module   { return rt.hashClass }

// RootLexicalScope is the scope of top-level code; its live module is Object.
func (rt *Runtime) RootLexicalScope() *LexicalScope { return rt.rootScope }

func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// ClassOf returns the class method dispatch starts from: the singleton class
// when one exists, the logical class otherwise. For classes the closest
// singleton class along the superclass chain counts.
func (rt *Runtime) ClassOf(v Value) *Module {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.classOfLocked(v)
}

func (rt *Runtime) classOfLocked(v Value) *Module {
	switch v.kind {
	case KindModule:
		m := v.Module()
		if m.singleton != nil {
			return m.singleton
		}
		// An unmaterialized singleton class would have no methods of its
		// own, so dispatch can start at the closest one up the chain.
		if m.isClass {
			for super := m.superclass; super != nil; super = super.superclass {
				if super.singleton != nil {
					return super.singleton
				}
			}
		}
	case KindObject:
		if singleton := v.Object().singleton; singleton != nil {
			return singleton
		}
	}
	return rt.logicalClassLocked(v)
}

// LogicalClass returns the class of v ignoring singleton classes.
func (rt *Runtime) LogicalClass(v Value) *Module {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.logicalClassLocked(v)
}

func (rt *Runtime) logicalClassLocked(v Value) *Module {
	switch v.kind {
	case KindBool:
		if v.Bool() {
			return rt.trueClass
		}
		return rt.falseClass
	case KindInt:
		return rt.integerClass
	case KindFloat:
		return rt.floatClass
	case KindString:
		return rt.stringClass
	case KindSymbol:
		return rt.symbolClass
	case KindArray:
		return rt.arrayClass
	case KindHash:
		return rt.hashClass
	case KindBlock:
		return rt.procClass
	case KindModule:
		if v.Module().isClass {
			return rt.class
		}
		return rt.module
	case KindObject:
		return v.Object().class
	default:
		return rt.nilClass
	}
}

// SingletonClass returns the singleton class of v, creating it on first use.
// A class's singleton class inherits from its superclass's singleton class,
// so class methods are inherited along with instance methods.
func (rt *Runtime) SingletonClass(v Value) (*Module, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.singletonClassLocked(v)
}

func (rt *Runtime) singletonClassLocked(v Value) (*Module, error) {
	switch v.kind {
	case KindModule:
		m := v.Module()
		if m.singleton != nil {
			return m.singleton, nil
		}
		super := rt.module
		if m.isClass {
			super = rt.class
			if m.superclass != nil {
				parent, err := rt.singletonClassLocked(NewModule(m.superclass))
				if err != nil {
					return nil, err
				}
				super = parent
			}
		}
		m.singleton = rt.newSingletonLocked(v, super)
		return m.singleton, nil
	case KindObject:
		o := v.Object()
		if o.singleton == nil {
			o.singleton = rt.newSingletonLocked(v, o.class)
		}
		return o.singleton, nil
	default:
		return nil, newTypeError("can't define singleton")
	}
}

func (rt *Runtime) newSingletonLocked(attached Value, superclass *Module) *Module {
	singleton := rt.newModule(true)
	singleton.isSingleton = true
	singleton.attached = attached
	singleton.superclass = superclass
	singleton.initialized = true
	rt.logger.Debug("singleton class created", "attached", attached.Inspect())
	return singleton
}

// ConfigSummary provides a human-readable description of the runtime settings.
func (rt *Runtime) ConfigSummary() string {
	return fmt.Sprintf("hash_buckets=%d ancestor_cache=%t", rt.config.InitialHashBuckets, !rt.config.DisableAncestorCache)
}
