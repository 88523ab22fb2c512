package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupConstantPrefersLexicalScopeOverAncestors(t *testing.T) {
	rt := newTestRuntime(t)
	object := rt.Object()
	outer := mustDefineModule(t, rt, object, "Outer")
	require.NoError(t, outer.SetConstant("Limit", NewInt(1)))
	parent := mustDefineClass(t, rt, object, "Parent", nil)
	require.NoError(t, parent.SetConstant("Limit", NewInt(2)))
	inner := mustDefineClass(t, rt, outer, "Inner", parent)

	scope := NewLexicalScope(NewLexicalScope(rt.RootLexicalScope(), outer), inner)
	constant := rt.LookupConstant(scope, inner, "Limit")
	require.NotNil(t, constant)
	assert.Equal(t, int64(1), constant.Value.Int())
	assert.Same(t, outer, constant.Owner)

	// Without the lexical nesting only the ancestors are searched.
	constant = rt.LookupConstant(NewLexicalScope(rt.RootLexicalScope(), inner), inner, "Limit")
	require.NotNil(t, constant)
	assert.Equal(t, int64(2), constant.Value.Int())

	require.NoError(t, inner.SetConstant("Limit", NewInt(3)))
	assert.Equal(t, int64(3), rt.LookupConstant(scope, inner, "Limit").Value.Int())
}

func TestLookupConstantSkipsMixinsOfEnclosingModules(t *testing.T) {
	rt := newTestRuntime(t)
	object := rt.Object()
	mixin := mustDefineModule(t, rt, object, "Mixin")
	require.NoError(t, mixin.SetConstant("X", NewInt(1)))
	outer := mustDefineClass(t, rt, object, "Outer", nil)
	require.NoError(t, outer.Include(mixin))
	m := mustDefineModule(t, rt, outer, "M")

	// Enclosing scopes contribute only their own tables, and M's ancestors
	// do not include Outer's mixins.
	scope := NewLexicalScope(NewLexicalScope(rt.RootLexicalScope(), outer), m)
	assert.Nil(t, rt.LookupConstant(scope, m, "X"))

	constant := rt.LookupConstant(NewLexicalScope(rt.RootLexicalScope(), outer), outer, "X")
	require.NotNil(t, constant)
	assert.Same(t, mixin, constant.Owner)

	require.NoError(t, outer.SetConstant("X", NewInt(2)))
	constant = rt.LookupConstant(scope, m, "X")
	require.NotNil(t, constant)
	assert.Same(t, outer, constant.Owner)
}

func TestLookupConstantPureModuleFallsBackToObject(t *testing.T) {
	rt := newTestRuntime(t)
	object := rt.Object()
	tools := mustDefineModule(t, rt, object, "Tools")
	scope := NewLexicalScope(rt.RootLexicalScope(), tools)

	constant := rt.LookupConstant(scope, tools, "String")
	require.NotNil(t, constant)
	assert.Same(t, object, constant.Owner)

	require.NoError(t, rt.Kernel().SetConstant("Version", NewString("1.0")))
	constant = rt.LookupConstant(scope, tools, "Version")
	require.NotNil(t, constant)
	assert.Same(t, rt.Kernel(), constant.Owner)

	assert.Nil(t, rt.LookupConstant(scope, tools, "Missing"))
}

func TestLookupConstantThroughMixins(t *testing.T) {
	rt := newTestRuntime(t)
	object := rt.Object()
	settings := mustDefineModule(t, rt, object, "Settings")
	require.NoError(t, settings.SetConstant("Timeout", NewInt(30)))
	service := mustDefineClass(t, rt, object, "Service", nil)
	require.NoError(t, service.Include(settings))

	constant := rt.LookupConstant(nil, service, "Timeout")
	require.NotNil(t, constant)
	assert.Same(t, settings, constant.Owner)
	assert.Contains(t, service.AllConstants(), "Timeout")
	assert.NotContains(t, service.Constants(), "Timeout")
}

func TestLookupScopedConstant(t *testing.T) {
	rt := newTestRuntime(t)
	object := rt.Object()
	outer := mustDefineModule(t, rt, object, "Outer")
	inner := mustDefineClass(t, rt, outer, "Inner", nil)
	require.NoError(t, outer.SetConstant("Limit", NewInt(1)))
	require.NoError(t, inner.SetConstant("Depth", NewInt(2)))
	tools := mustDefineModule(t, rt, object, "Tools")

	constant, err := rt.LookupScopedConstant(tools, "::Outer::Inner", true)
	require.NoError(t, err)
	require.NotNil(t, constant)
	assert.Same(t, inner, constant.Value.Module())
	assert.Equal(t, "Outer::Inner", inner.Name())

	constant, err = rt.LookupScopedConstant(object, "Outer::Inner::Depth", true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), constant.Value.Int())

	constant, err = rt.LookupScopedConstant(object, "Outer::Missing::Depth", true)
	require.NoError(t, err)
	assert.Nil(t, constant)

	_, err = rt.LookupScopedConstant(object, "Outer::Limit::Depth", true)
	re := requireErrorType(t, err, ErrorTypeType)
	assert.Equal(t, "Outer::Limit does not refer to class/module", re.Message)

	_, err = rt.LookupScopedConstant(object, "Outer::limit", true)
	requireErrorType(t, err, ErrorTypeName)

	// Inner inherits Object's constants only when inherit is set.
	constant, err = rt.LookupScopedConstant(inner, "String", false)
	require.NoError(t, err)
	assert.Nil(t, constant)
	constant, err = rt.LookupScopedConstant(inner, "String", true)
	require.NoError(t, err)
	assert.NotNil(t, constant)
}

func TestConstantNaming(t *testing.T) {
	rt := newTestRuntime(t)
	object := rt.Object()
	outer := mustDefineModule(t, rt, object, "Outer")

	anonymous, err := rt.Allocate(rt.ModuleClass())
	require.NoError(t, err)
	assert.Empty(t, anonymous.Module().Name())
	assert.Contains(t, anonymous.Inspect(), "#<Module:0x")

	require.NoError(t, outer.SetConstant("Helpers", anonymous))
	assert.Equal(t, "Outer::Helpers", anonymous.Module().Name())

	// A second binding does not rename the module.
	require.NoError(t, object.SetConstant("Alias", anonymous))
	assert.Equal(t, "Outer::Helpers", anonymous.Module().Name())

	requireErrorType(t, outer.SetConstant("lower", NewNil()), ErrorTypeName)
	assert.True(t, IsValidConstantName("HTTP2"))
	assert.True(t, IsValidConstantName("Ünicode"))
	assert.False(t, IsValidConstantName("A-B"))
	assert.False(t, IsValidConstantName(""))
}

func TestPrivateConstantSurvivesReassignment(t *testing.T) {
	rt := newTestRuntime(t)
	outer := mustDefineModule(t, rt, rt.Object(), "Outer")
	require.NoError(t, outer.SetConstant("Secret", NewInt(1)))
	require.NoError(t, outer.PrivateConstant("Secret"))
	require.NoError(t, outer.SetConstant("Secret", NewInt(2)))

	constant := outer.Constant("Secret")
	require.NotNil(t, constant)
	assert.True(t, constant.Private)
	assert.Equal(t, int64(2), constant.Value.Int())

	requireErrorType(t, outer.PrivateConstant("Missing"), ErrorTypeName)

	val, err := outer.RemoveConstant("Secret")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val.Int())
	assert.Nil(t, outer.Constant("Secret"))
	_, err = outer.RemoveConstant("Secret")
	requireErrorType(t, err, ErrorTypeName)
}
