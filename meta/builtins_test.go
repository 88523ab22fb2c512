package meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendUndefinedMethod(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Send(context.Background(), NewInt(1), "frobnicate", nil, NewNil())
	re := requireErrorType(t, err, ErrorTypeNoMethod)
	assert.Equal(t, "frobnicate", re.Name)
	assert.Equal(t, "undefined method 'frobnicate' for 1", re.Message)
}

func TestKernelBuiltins(t *testing.T) {
	rt := newTestRuntime(t)
	widget := mustDefineClass(t, rt, rt.Object(), "Widget", nil)
	instance := mustNew(t, rt, widget)

	assert.Same(t, widget, mustSend(t, rt, instance, "class").Module())
	assert.Equal(t, "Integer", mustSend(t, rt, NewInt(3), "class").Module().Name())
	assert.Equal(t, "NilClass", mustSend(t, rt, NewNil(), "class").Module().Name())
	assert.True(t, mustSend(t, rt, instance, "is_a?", NewModule(rt.Kernel())).Truthy())
	assert.False(t, mustSend(t, rt, NewInt(1), "kind_of?", NewModule(widget)).Truthy())
	assert.True(t, mustSend(t, rt, instance, "respond_to?", NewSymbol("inspect")).Truthy())
	assert.False(t, mustSend(t, rt, instance, "respond_to?", NewSymbol("initialize")).Truthy())
	assert.True(t, mustSend(t, rt, instance, "respond_to?", NewSymbol("initialize"), NewBool(true)).Truthy())
	assert.Equal(t, `"hi"`, mustSend(t, rt, NewString("hi"), "inspect").String())
	assert.True(t, mustSend(t, rt, instance, "equal?", instance).Truthy())
	assert.False(t, mustSend(t, rt, instance, "==", mustNew(t, rt, widget)).Truthy())
	assert.True(t, mustSend(t, rt, NewNil(), "!").Truthy())

	singleton := mustSend(t, rt, instance, "singleton_class").Module()
	require.NotNil(t, singleton)
	assert.True(t, singleton.IsSingleton())
	assert.Same(t, instance.Object(), singleton.Attached().Object())

	_, err := rt.Send(context.Background(), NewInt(1), "singleton_class", nil, NewNil())
	requireErrorType(t, err, ErrorTypeType)
	_, err = rt.Send(context.Background(), instance, "is_a?", []Value{NewInt(1)}, NewNil())
	requireErrorType(t, err, ErrorTypeType)
}

func TestValueEquality(t *testing.T) {
	rt := newTestRuntime(t)

	assert.True(t, mustSend(t, rt, NewInt(1), "==", NewFloat(1)).Truthy())
	assert.False(t, mustSend(t, rt, NewInt(1), "eql?", NewFloat(1)).Truthy())
	assert.True(t, mustSend(t, rt, NewString("a"), "eql?", NewString("a")).Truthy())
	assert.Equal(t,
		mustSend(t, rt, NewSymbol("a"), "hash").Int(),
		mustSend(t, rt, NewSymbol("a"), "hash").Int())
	assert.NotEqual(t,
		mustSend(t, rt, NewSymbol("a"), "hash").Int(),
		mustSend(t, rt, NewString("a"), "hash").Int())

	left := NewArray([]Value{NewInt(1), NewString("x")})
	right := NewArray([]Value{NewInt(1), NewString("x")})
	assert.True(t, mustSend(t, rt, left, "eql?", right).Truthy())
	assert.False(t, mustSend(t, rt, left, "equal?", right).Truthy())
	assert.Equal(t, mustSend(t, rt, left, "hash").Int(), mustSend(t, rt, right, "hash").Int())
	assert.Equal(t, int64(2), mustSend(t, rt, left, "size").Int())
}

func TestModuleBuiltins(t *testing.T) {
	rt := newTestRuntime(t)
	object := NewModule(rt.Object())
	mixin := mustDefineModule(t, rt, rt.Object(), "Mixin")
	widget := mustDefineClass(t, rt, rt.Object(), "Widget", nil)
	w := NewModule(widget)

	mustSend(t, rt, w, "include", NewModule(mixin))
	assert.True(t, mustSend(t, rt, w, "include?", NewModule(mixin)).Truthy())
	assert.False(t, mustSend(t, rt, w, "include?", object).Truthy())
	assert.Equal(t, "[Widget, Mixin, Object, Kernel, BasicObject]", mustSend(t, rt, w, "ancestors").Inspect())

	mustSend(t, rt, NewModule(mixin), "const_set", NewSymbol("Limit"), NewInt(9))
	assert.Equal(t, int64(9), mustSend(t, rt, w, "const_get", NewSymbol("Limit")).Int())
	assert.True(t, mustSend(t, rt, w, "const_defined?", NewString("Limit")).Truthy())
	assert.False(t, mustSend(t, rt, w, "const_defined?", NewString("Limit"), NewBool(false)).Truthy())
	assert.Equal(t, int64(9), mustSend(t, rt, object, "const_get", NewString("Mixin::Limit")).Int())
	assert.Equal(t, "[:Limit]", mustSend(t, rt, w, "constants").Inspect())

	_, err := rt.Send(context.Background(), w, "const_get", []Value{NewString("Nope")}, NewNil())
	re := requireErrorType(t, err, ErrorTypeName)
	assert.Equal(t, "uninitialized constant Widget::Nope", re.Message)

	mustSend(t, rt, w, "class_variable_set", NewSymbol("@@count"), NewInt(1))
	assert.Equal(t, int64(1), mustSend(t, rt, w, "class_variable_get", NewSymbol("@@count")).Int())
	assert.Equal(t, "[:@@count]", mustSend(t, rt, w, "class_variables").Inspect())
	_, err = rt.Send(context.Background(), w, "class_variable_get", []Value{NewSymbol("@@missing")}, NewNil())
	requireErrorType(t, err, ErrorTypeName)

	widget.DefineMethod("size", returns(NewInt(1)))
	widget.DefineMethod("secret", returns(NewInt(2)))
	mustSend(t, rt, w, "private", NewSymbol("secret"))
	assert.True(t, mustSend(t, rt, w, "method_defined?", NewSymbol("size")).Truthy())
	assert.False(t, mustSend(t, rt, w, "method_defined?", NewSymbol("secret")).Truthy())
	methods := mustSend(t, rt, w, "instance_methods").Inspect()
	assert.Contains(t, methods, ":size")
	assert.NotContains(t, methods, ":secret")

	mustSend(t, rt, w, "undef_method", NewSymbol("inspect"))
	assert.NotContains(t, mustSend(t, rt, w, "instance_methods").Inspect(), ":inspect")
	assert.True(t, mustSend(t, rt, w, "===", mustNew(t, rt, widget)).Truthy())
	assert.Equal(t, "Widget", mustSend(t, rt, w, "name").String())
	assert.Equal(t, "Widget", mustSend(t, rt, w, "to_s").String())
}

func TestMixinBuiltinsKeepArgumentOrder(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustDefineModule(t, rt, rt.Object(), "A")
	b := mustDefineModule(t, rt, rt.Object(), "B")
	widget := mustDefineClass(t, rt, rt.Object(), "Widget", nil)

	mustSend(t, rt, NewModule(widget), "include", NewModule(a), NewModule(b))
	assert.Equal(t,
		[]string{"Widget", "A", "B", "Object", "Kernel", "BasicObject"},
		moduleNames(widget.Ancestors()))

	instance := mustNew(t, rt, widget)
	mustSend(t, rt, instance, "extend", NewModule(b), NewModule(a))
	assert.Equal(t, []string{"B", "A"}, moduleNames(rt.ClassOf(instance).IncludedModules()))
}

func TestProcCall(t *testing.T) {
	rt := newTestRuntime(t)
	double := NewBlock(func(ctx context.Context, self Value, args []Value) (Value, error) {
		return NewInt(args[0].Int() * 2), nil
	})
	assert.Equal(t, int64(8), mustSend(t, rt, double, "call", NewInt(4)).Int())
}

func TestExpectArgsMessages(t *testing.T) {
	err := expectArgs(nil, 1, 1)
	assert.Equal(t, "ArgumentError: wrong number of arguments (given 0, expected 1)", err.Error())
	err = expectArgs(nil, 1, -1)
	assert.Equal(t, "ArgumentError: wrong number of arguments (given 0, expected 1+)", err.Error())
	err = expectArgs([]Value{NewNil(), NewNil(), NewNil()}, 1, 2)
	assert.Equal(t, "ArgumentError: wrong number of arguments (given 3, expected 1..2)", err.Error())
	assert.NoError(t, expectArgs([]Value{NewNil()}, 0, 1))
}
