package meta

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Object is an allocated instance of a class. Instance-variable layout is
// owned by the execution engine; Object only keeps a name-keyed map.
type Object struct {
	ID        uuid.UUID
	class     *Module
	singleton *Module

	mu    sync.RWMutex
	ivars map[string]Value
}

func newObject(class *Module) *Object {
	return &Object{
		ID:    uuid.New(),
		class: class,
		ivars: make(map[string]Value),
	}
}

// Class returns the object's logical class, never its singleton class.
func (o *Object) Class() *Module { return o.class }

func (o *Object) Ivar(name string) (Value, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	val, ok := o.ivars[name]
	return val, ok
}

func (o *Object) SetIvar(name string, val Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ivars[name] = val
}

func (o *Object) Inspect() string {
	return fmt.Sprintf("#<%s:%s>", o.class.Inspect(), shortID(o.ID))
}

func shortID(id uuid.UUID) string {
	return fmt.Sprintf("0x%x", id[:4])
}
