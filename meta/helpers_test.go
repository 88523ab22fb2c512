package meta

import (
	"context"
	"errors"
	"testing"
)

func newTestRuntime(t testing.TB) *Runtime {
	t.Helper()
	return newTestRuntimeWithConfig(t, Config{})
}

func newTestRuntimeWithConfig(t testing.TB, cfg Config) *Runtime {
	t.Helper()
	rt, err := NewRuntime(cfg)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	return rt
}

func mustDefineModule(t testing.TB, rt *Runtime, under *Module, name string) *Module {
	t.Helper()
	module, err := rt.DefineModule(under, name)
	if err != nil {
		t.Fatalf("define module %s: %v", name, err)
	}
	return module
}

func mustDefineClass(t testing.TB, rt *Runtime, under *Module, name string, superclass *Module) *Module {
	t.Helper()
	class, err := rt.DefineClass(context.Background(), under, name, superclass)
	if err != nil {
		t.Fatalf("define class %s: %v", name, err)
	}
	return class
}

func mustNew(t testing.TB, rt *Runtime, class *Module, args ...Value) Value {
	t.Helper()
	instance, err := rt.New(context.Background(), class, args, NewNil())
	if err != nil {
		t.Fatalf("%s.new: %v", class.Inspect(), err)
	}
	return instance
}

func mustSend(t testing.TB, rt *Runtime, receiver Value, name string, args ...Value) Value {
	t.Helper()
	result, err := rt.Send(context.Background(), receiver, name, args, NewNil())
	if err != nil {
		t.Fatalf("%s.%s: %v", receiver.Inspect(), name, err)
	}
	return result
}

func returns(val Value) MethodFunc {
	return func(ctx context.Context, rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return val, nil
	}
}

func moduleNames(modules []*Module) []string {
	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.Inspect()
	}
	return names
}

func requireErrorType(t testing.TB, err error, kind string) *RuntimeError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("expected RuntimeError, got %T: %v", err, err)
	}
	if re.Type != kind {
		t.Fatalf("expected %s, got %s: %s", kind, re.Type, re.Message)
	}
	return re
}
