package meta

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// LexicalScope records the nesting of module and class bodies at the point
// a piece of code was defined. Scopes are immutable once created.
type LexicalScope struct {
	parent *LexicalScope
	module *Module
}

// NewLexicalScope opens a body for module nested inside parent.
func NewLexicalScope(parent *LexicalScope, module *Module) *LexicalScope {
	return &LexicalScope{parent: parent, module: module}
}

func (s *LexicalScope) Parent() *LexicalScope { return s.parent }
func (s *LexicalScope) LiveModule() *Module    { return s.module }

// IsValidConstantName reports whether name can name a constant: an
// uppercase letter followed by letters, digits or underscores.
func IsValidConstantName(name string) bool {
	first, size := utf8.DecodeRuneInString(name)
	if size == 0 || !(unicode.IsUpper(first) || unicode.IsTitle(first)) {
		return false
	}
	for _, r := range name[size:] {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// LookupConstant resolves a bare constant reference made from scope, whose
// live module is module. It tries, in order: module's own table, the
// enclosing lexical scopes up to (not including) the root scope, module's
// parent ancestors, and for pure modules Object and Object's mixins. A nil
// scope skips the lexical step. Absence is a nil result, not an error.
func (rt *Runtime) LookupConstant(scope *LexicalScope, module *Module, name string) *Constant {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	constant := rt.lookupConstantLocked(scope, module, name)
	if constant == nil {
		constantLookupsTotal.WithLabelValues("miss").Inc()
	} else {
		constantLookupsTotal.WithLabelValues("hit").Inc()
	}
	return constant
}

func (rt *Runtime) lookupConstantLocked(scope *LexicalScope, module *Module, name string) *Constant {
	if constant, ok := module.constants[name]; ok {
		return constant
	}

	if scope != nil {
		// scope itself is module, already checked
		if scope != rt.rootScope {
			scope = scope.parent
		}
		for scope != nil && scope != rt.rootScope {
			if constant, ok := scope.module.constants[name]; ok {
				return constant
			}
			scope = scope.parent
		}
	}

	for _, ancestor := range module.parentAncestorsLocked() {
		if constant, ok := ancestor.constants[name]; ok {
			return constant
		}
	}

	if !module.isClass {
		if constant, ok := rt.object.constants[name]; ok {
			return constant
		}
		for _, mixin := range rt.object.prependedAndIncludedLocked() {
			if constant, ok := mixin.constants[name]; ok {
				return constant
			}
		}
	}

	return nil
}

// LookupScopedConstant resolves a path such as "A::B::C" starting at
// module, or at Object when the path starts with "::". Every segment but the
// last must name a class or module.
func (rt *Runtime) LookupScopedConstant(module *Module, fullName string, inherit bool) (*Constant, error) {
	start := 0
	if strings.HasPrefix(fullName, "::") {
		module = rt.object
		start = 2
	}

	for {
		next := strings.Index(fullName[start:], "::")
		if next < 0 {
			break
		}
		next += start
		constant, err := rt.LookupConstantWithInherit(module, fullName[start:next], inherit)
		if err != nil {
			return nil, err
		}
		if constant == nil {
			return nil, nil
		}
		mod := constant.Value.Module()
		if mod == nil {
			return nil, newTypeError("%s does not refer to class/module", fullName[:next])
		}
		module = mod
		start = next + 2
	}

	return rt.LookupConstantWithInherit(module, fullName[start:], inherit)
}

// LookupConstantWithInherit resolves name against module. Without inherit
// only module's own table is consulted.
func (rt *Runtime) LookupConstantWithInherit(module *Module, name string, inherit bool) (*Constant, error) {
	if !IsValidConstantName(name) {
		return nil, newNameError(name, "wrong constant name %s", name)
	}
	if inherit {
		return rt.LookupConstant(nil, module, name), nil
	}
	return module.Constant(name), nil
}
