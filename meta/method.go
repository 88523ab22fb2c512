package meta

import "context"

type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityProtected
	VisibilityPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisibilityProtected:
		return "protected"
	case VisibilityPrivate:
		return "private"
	default:
		return "public"
	}
}

// MethodFunc is the host implementation of a method body.
type MethodFunc func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error)

// Method is an entry in a module's method table. Entries are immutable; any
// change to a method replaces its entry. An undefined entry is a tombstone
// left by `undef`: it stops lookup without being a callable method.
//
// Owner is the module whose table holds the entry. A visibility change on an
// inherited method copies it into another table, so the module whose body
// it runs can differ; see DeclaredIn.
type Method struct {
	Name       string
	Owner      *Module
	Visibility Visibility
	Fn         MethodFunc
	declaring  *Module
	undefined  bool
}

func (m *Method) IsUndefined() bool { return m.undefined }

// DeclaredIn returns the module that defined the method body. `super` from
// the body resumes after this module.
func (m *Method) DeclaredIn() *Module {
	if m.declaring == nil {
		return m.Owner
	}
	return m.declaring
}

func (m *Method) withVisibility(vis Visibility, owner *Module) *Method {
	cp := *m
	cp.Visibility = vis
	cp.declaring = m.DeclaredIn()
	cp.Owner = owner
	return &cp
}

// IsMethodPrivateFromName reports whether a method with this name is private
// by default regardless of the visibility in effect where it is defined.
func IsMethodPrivateFromName(name string) bool {
	switch name {
	case "initialize", "initialize_copy", "initialize_clone", "initialize_dup", "respond_to_missing?":
		return true
	default:
		return false
	}
}

// WithoutUndefinedMethods drops tombstones from a method set.
func WithoutUndefinedMethods(methods map[string]*Method) map[string]*Method {
	defined := make(map[string]*Method, len(methods))
	for name, method := range methods {
		if !method.undefined {
			defined[name] = method
		}
	}
	return defined
}
