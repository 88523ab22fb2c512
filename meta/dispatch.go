package meta

import "context"

// Dispatcher invokes a user-level method by name. Resolvers call through it
// for hooks and for key hashing and equality, which can run arbitrary user
// code; they never hold the graph lock while doing so.
type Dispatcher interface {
	Send(ctx context.Context, receiver Value, name string, args []Value, block Value) (Value, error)
}

type methodDispatcher struct {
	rt *Runtime
}

// DefaultDispatcher resolves methods through the receiver's class and calls
// their MethodFunc, ignoring visibility like a call on self.
func (rt *Runtime) DefaultDispatcher() Dispatcher {
	return methodDispatcher{rt: rt}
}

func (d methodDispatcher) Send(ctx context.Context, receiver Value, name string, args []Value, block Value) (Value, error) {
	method := d.rt.ClassOf(receiver).LookupMethod(name)
	if method == nil {
		return NewNil(), d.rt.undefinedMethodError(name, receiver)
	}
	return d.rt.Invoke(ctx, method, receiver, args, block)
}

// Send dispatches name on receiver through the configured Dispatcher.
func (rt *Runtime) Send(ctx context.Context, receiver Value, name string, args []Value, block Value) (Value, error) {
	return rt.dispatcher.Send(ctx, receiver, name, args, block)
}

// PublicSend is Send for a call with an explicit receiver: private and
// protected methods are rejected.
func (rt *Runtime) PublicSend(ctx context.Context, receiver Value, name string, args []Value, block Value) (Value, error) {
	method := rt.ClassOf(receiver).LookupMethod(name)
	if method == nil {
		return NewNil(), rt.undefinedMethodError(name, receiver)
	}
	if method.Visibility != VisibilityPublic {
		return NewNil(), newNoMethodError(name, receiver.Inspect(), "%s method '%s' called for %s", method.Visibility, name, receiver.Inspect())
	}
	return rt.dispatcher.Send(ctx, receiver, name, args, block)
}

// RespondTo reports whether receiver has a callable method named name,
// optionally counting private and protected ones.
func (rt *Runtime) RespondTo(receiver Value, name string, includePrivate bool) bool {
	method := rt.ClassOf(receiver).LookupMethod(name)
	if method == nil {
		return false
	}
	return includePrivate || method.Visibility == VisibilityPublic
}

type frameKey struct{}

type callFrame struct {
	method *Method
	self   Value
}

// Invoke runs method with self bound to receiver. The method is recorded in
// ctx so its body can call Super.
func (rt *Runtime) Invoke(ctx context.Context, method *Method, receiver Value, args []Value, block Value) (Value, error) {
	if method.undefined {
		return NewNil(), rt.undefinedMethodError(method.Name, receiver)
	}
	if method.Fn == nil {
		return NewNil(), nil
	}
	ctx = context.WithValue(ctx, frameKey{}, callFrame{method: method, self: receiver})
	return method.Fn(ctx, rt, receiver, args, block)
}

// CurrentMethod returns the method whose body is running in ctx, or nil.
func CurrentMethod(ctx context.Context) *Method {
	frame, ok := ctx.Value(frameKey{}).(callFrame)
	if !ok {
		return nil
	}
	return frame.method
}

// Super calls the next definition of the running method after the module
// that declared it, with the same self.
func (rt *Runtime) Super(ctx context.Context, args []Value, block Value) (Value, error) {
	frame, ok := ctx.Value(frameKey{}).(callFrame)
	if !ok {
		return NewNil(), &RuntimeError{Type: ErrorTypeRuntime, Message: "super called outside of method"}
	}
	method := LookupSuperMethod(frame.method.DeclaredIn(), frame.method.Name, rt.ClassOf(frame.self))
	if method == nil {
		return NewNil(), newNoMethodError(frame.method.Name, frame.self.Inspect(), "super: no superclass method '%s' for %s", frame.method.Name, frame.self.Inspect())
	}
	return rt.Invoke(ctx, method, frame.self, args, block)
}

func (rt *Runtime) undefinedMethodError(name string, receiver Value) error {
	return newNoMethodError(name, receiver.Inspect(), "undefined method '%s' for %s", name, receiver.Inspect())
}
