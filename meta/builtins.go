package meta

import (
	"context"
	"slices"
	"sort"
)

func registerBuiltins(rt *Runtime) {
	registerBasicObjectBuiltins(rt)
	registerKernelBuiltins(rt)
	registerModuleBuiltins(rt)
	registerClassBuiltins(rt)
	registerValueBuiltins(rt)
	registerHashBuiltins(rt)

	rt.procClass.DefineMethod("call", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		b := self.Block()
		if b == nil || b.Fn == nil {
			return NewNil(), nil
		}
		return b.Fn(ctx, NewNil(), args)
	})
}

func registerBasicObjectBuiltins(rt *Runtime) {
	bo := rt.basicObject
	bo.DefineMethod("initialize", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 0, 0); err != nil {
			return NewNil(), err
		}
		return NewNil(), nil
	})
	identical := func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		return NewBool(self.Identical(args[0])), nil
	}
	bo.DefineMethod("equal?", identical)
	bo.DefineMethod("==", identical)
	bo.DefineMethod("!", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewBool(!self.Truthy()), nil
	})
}

func registerKernelBuiltins(rt *Runtime) {
	k := rt.kernel
	k.DefineMethod("eql?", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		return NewBool(self.Identical(args[0])), nil
	})
	k.DefineMethod("hash", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewInt(int64(identityHash(self))), nil
	})
	k.DefineMethod("class", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewModule(rt.LogicalClass(self)), nil
	})
	k.DefineMethod("singleton_class", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		singleton, err := rt.SingletonClass(self)
		if err != nil {
			return NewNil(), err
		}
		return NewModule(singleton), nil
	})
	k.DefineMethod("extend", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, -1); err != nil {
			return NewNil(), err
		}
		singleton, err := rt.SingletonClass(self)
		if err != nil {
			return NewNil(), err
		}
		for _, arg := range slices.Backward(args) {
			mixin, err := moduleArg(arg)
			if err != nil {
				return NewNil(), err
			}
			if err := singleton.Include(mixin); err != nil {
				return NewNil(), err
			}
		}
		return self, nil
	})
	isA := func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		mod, err := moduleArg(args[0])
		if err != nil {
			return NewNil(), err
		}
		return NewBool(rt.ClassOf(self).IncludesModule(mod)), nil
	}
	k.DefineMethod("is_a?", isA)
	k.DefineMethod("kind_of?", isA)
	k.DefineMethod("respond_to?", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 2); err != nil {
			return NewNil(), err
		}
		name, err := nameArg(args[0])
		if err != nil {
			return NewNil(), err
		}
		includePrivate := len(args) == 2 && args[1].Truthy()
		return NewBool(rt.RespondTo(self, name, includePrivate)), nil
	})
	k.DefineMethod("inspect", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewString(self.Inspect()), nil
	})
	k.DefineMethod("to_s", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewString(self.String()), nil
	})
}

func registerModuleBuiltins(rt *Runtime) {
	m := rt.module
	m.DefineMethod("initialize", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 0, 0); err != nil {
			return NewNil(), err
		}
		return rt.ModuleEval(ctx, self.Module(), block)
	})
	m.DefineMethod("name", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		name := self.Module().Name()
		if name == "" {
			return NewNil(), nil
		}
		return NewString(name), nil
	})
	m.DefineMethod("ancestors", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return modulesValue(self.Module().Ancestors()), nil
	})
	mixin := func(prepend bool) MethodFunc {
		return func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
			if err := expectArgs(args, 1, -1); err != nil {
				return NewNil(), err
			}
			// include A, B puts A ahead of B
			for _, arg := range slices.Backward(args) {
				other, err := moduleArg(arg)
				if err != nil {
					return NewNil(), err
				}
				if prepend {
					err = self.Module().Prepend(other)
				} else {
					err = self.Module().Include(other)
				}
				if err != nil {
					return NewNil(), err
				}
			}
			return self, nil
		}
	}
	m.DefineMethod("include", mixin(false))
	m.DefineMethod("prepend", mixin(true))
	m.DefineMethod("include?", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		other, err := moduleArg(args[0])
		if err != nil {
			return NewNil(), err
		}
		module := self.Module()
		return NewBool(module != other && !other.isClass && module.IncludesModule(other)), nil
	})
	m.DefineMethod("===", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		return NewBool(rt.ClassOf(args[0]).IncludesModule(self.Module())), nil
	})
	m.DefineMethod("const_get", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 2); err != nil {
			return NewNil(), err
		}
		name, err := nameArg(args[0])
		if err != nil {
			return NewNil(), err
		}
		inherit := len(args) < 2 || args[1].Truthy()
		constant, err := rt.LookupScopedConstant(self.Module(), name, inherit)
		if err != nil {
			return NewNil(), err
		}
		if constant == nil {
			return NewNil(), newNameError(name, "uninitialized constant %s", qualifiedConstant(self.Module(), name))
		}
		return constant.Value, nil
	})
	m.DefineMethod("const_defined?", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 2); err != nil {
			return NewNil(), err
		}
		name, err := nameArg(args[0])
		if err != nil {
			return NewNil(), err
		}
		inherit := len(args) < 2 || args[1].Truthy()
		constant, err := rt.LookupScopedConstant(self.Module(), name, inherit)
		if err != nil {
			return NewNil(), err
		}
		return NewBool(constant != nil), nil
	})
	m.DefineMethod("const_set", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 2, 2); err != nil {
			return NewNil(), err
		}
		name, err := nameArg(args[0])
		if err != nil {
			return NewNil(), err
		}
		if err := self.Module().SetConstant(name, args[1]); err != nil {
			return NewNil(), err
		}
		return args[1], nil
	})
	m.DefineMethod("constants", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return sortedSymbols(self.Module().AllConstants()), nil
	})
	m.DefineMethod("class_variable_get", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		name, err := nameArg(args[0])
		if err != nil {
			return NewNil(), err
		}
		if !IsValidClassVariableName(name) {
			return NewNil(), newNameError(name, "'%s' is not allowed as a class variable name", name)
		}
		val, ok := self.Module().LookupClassVariable(name)
		if !ok {
			return NewNil(), newNameError(name, "uninitialized class variable %s in %s", name, self.Module().Inspect())
		}
		return val, nil
	})
	m.DefineMethod("class_variable_set", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 2, 2); err != nil {
			return NewNil(), err
		}
		name, err := nameArg(args[0])
		if err != nil {
			return NewNil(), err
		}
		if err := self.Module().SetClassVariable(name, args[1]); err != nil {
			return NewNil(), err
		}
		return args[1], nil
	})
	m.DefineMethod("class_variables", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return sortedSymbols(self.Module().AllClassVariables()), nil
	})
	m.DefineMethod("instance_methods", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		methods := WithoutUndefinedMethods(self.Module().AllMethods())
		public := make(map[string]*Method, len(methods))
		for name, method := range methods {
			if method.Visibility != VisibilityPrivate {
				public[name] = method
			}
		}
		return sortedSymbols(public), nil
	})
	m.DefineMethod("method_defined?", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		name, err := nameArg(args[0])
		if err != nil {
			return NewNil(), err
		}
		method := self.Module().LookupMethod(name)
		return NewBool(method != nil && method.Visibility != VisibilityPrivate), nil
	})
	m.DefineMethod("undef_method", eachName(func(m *Module, name string) error { return m.UndefMethod(name) }))
	m.DefineMethod("remove_method", eachName(func(m *Module, name string) error { return m.RemoveMethod(name) }))
	m.DefineMethod("public", eachName(func(m *Module, name string) error { return m.SetMethodVisibility(name, VisibilityPublic) }))
	m.DefineMethod("protected", eachName(func(m *Module, name string) error { return m.SetMethodVisibility(name, VisibilityProtected) }))
	m.DefineMethod("private", eachName(func(m *Module, name string) error { return m.SetMethodVisibility(name, VisibilityPrivate) }))
	m.DefineMethod("private_constant", eachName(func(m *Module, name string) error { return m.PrivateConstant(name) }))
}

func registerClassBuiltins(rt *Runtime) {
	c := rt.class
	c.DefineMethod("allocate", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return rt.Allocate(self.Module())
	})
	c.DefineMethod("new", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return rt.New(ctx, self.Module(), args, block)
	})
	c.DefineMethod("initialize", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 0, 1); err != nil {
			return NewNil(), err
		}
		var superclass *Module
		if len(args) == 1 {
			sup := args[0].Module()
			if sup == nil {
				return NewNil(), newTypeError("superclass must be a Class (%s given)", args[0].Inspect())
			}
			superclass = sup
		}
		return NewNil(), rt.InitializeClass(ctx, self.Module(), superclass, block)
	})
	c.DefineMethod("superclass", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		superclass := self.Module().Superclass()
		if superclass == nil {
			return NewNil(), nil
		}
		return NewModule(superclass), nil
	})
	c.DefineMethodWithVisibility("inherited", VisibilityPrivate, func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewNil(), nil
	})
}

func registerValueBuiltins(rt *Runtime) {
	eql := func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		return NewBool(self.Equal(args[0])), nil
	}
	hash := func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewInt(int64(valueHash(self))), nil
	}
	numericEqual := func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		other := args[0]
		if other.Kind() != KindInt && other.Kind() != KindFloat {
			return NewBool(false), nil
		}
		if self.Kind() == KindInt && other.Kind() == KindInt {
			return NewBool(self.Int() == other.Int()), nil
		}
		return NewBool(self.Float() == other.Float()), nil
	}

	for _, class := range []*Module{rt.nilClass, rt.trueClass, rt.falseClass, rt.stringClass, rt.symbolClass} {
		class.DefineMethod("eql?", eql)
		class.DefineMethod("==", eql)
		class.DefineMethod("hash", hash)
	}
	for _, class := range []*Module{rt.integerClass, rt.floatClass} {
		class.DefineMethod("eql?", eql)
		class.DefineMethod("==", numericEqual)
		class.DefineMethod("hash", hash)
	}

	rt.arrayClass.DefineMethod("hash", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		var combined uint64 = 0xcbf29ce484222325
		for _, elem := range self.Array() {
			h, err := rt.keyPolicy.HashKey(ctx, elem)
			if err != nil {
				return NewNil(), err
			}
			combined = (combined ^ h) * 0x100000001b3
		}
		return NewInt(int64(combined)), nil
	})
	rt.arrayClass.DefineMethod("eql?", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		left, right := self.Array(), args[0].Array()
		if args[0].Kind() != KindArray || len(left) != len(right) {
			return NewBool(false), nil
		}
		for i := range left {
			equal, err := rt.keyPolicy.KeysEqual(ctx, left[i], right[i])
			if err != nil || !equal {
				return NewBool(false), err
			}
		}
		return NewBool(true), nil
	})
	rt.arrayClass.DefineMethod("size", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewInt(int64(len(self.Array()))), nil
	})
}

func registerHashBuiltins(rt *Runtime) {
	h := rt.hashClass
	h.DefineMethod("[]", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		val, _, err := self.Hash().Get(ctx, args[0])
		return val, err
	})
	h.DefineMethod("[]=", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 2, 2); err != nil {
			return NewNil(), err
		}
		return args[1], self.Hash().Set(ctx, args[0], args[1])
	})
	h.DefineMethod("key?", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		_, ok, err := self.Hash().Get(ctx, args[0])
		return NewBool(ok), err
	})
	h.DefineMethod("delete", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if err := expectArgs(args, 1, 1); err != nil {
			return NewNil(), err
		}
		val, _, err := self.Hash().Delete(ctx, args[0])
		return val, err
	})
	h.DefineMethod("size", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewInt(int64(self.Hash().Len())), nil
	})
	h.DefineMethod("keys", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewArray(self.Hash().Keys()), nil
	})
	h.DefineMethod("values", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewArray(self.Hash().Values()), nil
	})
	h.DefineMethod("compare_by_identity", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		self.Hash().CompareByIdentity()
		return self, nil
	})
	h.DefineMethod("compare_by_identity?", func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return NewBool(self.Hash().IsCompareByIdentity()), nil
	})
}

func expectArgs(args []Value, minArgs, maxArgs int) error {
	if len(args) < minArgs || (maxArgs >= 0 && len(args) > maxArgs) {
		switch {
		case maxArgs < 0:
			return newArgumentError("wrong number of arguments (given %d, expected %d+)", len(args), minArgs)
		case minArgs == maxArgs:
			return newArgumentError("wrong number of arguments (given %d, expected %d)", len(args), minArgs)
		default:
			return newArgumentError("wrong number of arguments (given %d, expected %d..%d)", len(args), minArgs, maxArgs)
		}
	}
	return nil
}

func moduleArg(v Value) (*Module, error) {
	m := v.Module()
	if m == nil {
		return nil, newTypeError("wrong argument type %s (expected Module)", v.Kind())
	}
	return m, nil
}

func nameArg(v Value) (string, error) {
	switch v.Kind() {
	case KindString, KindSymbol:
		return v.String(), nil
	default:
		return "", newTypeError("%s is not a symbol nor a string", v.Inspect())
	}
}

func eachName(apply func(*Module, string) error) MethodFunc {
	return func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		for _, arg := range args {
			name, err := nameArg(arg)
			if err != nil {
				return NewNil(), err
			}
			if err := apply(self.Module(), name); err != nil {
				return NewNil(), err
			}
		}
		return self, nil
	}
}

func modulesValue(modules []*Module) Value {
	out := make([]Value, len(modules))
	for i, m := range modules {
		out[i] = NewModule(m)
	}
	return NewArray(out)
}

func sortedSymbols[V any](entries map[string]V) Value {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Value, len(names))
	for i, name := range names {
		out[i] = NewSymbol(name)
	}
	return NewArray(out)
}

func qualifiedConstant(m *Module, name string) string {
	if m == m.rt.object {
		return name
	}
	return m.Inspect() + "::" + name
}
