package meta

import "context"

type ValueKind int

const (
	KindNil ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSymbol
	KindArray
	KindHash
	KindBlock
	KindModule
	KindObject
)

// Value is an opaque handle to a runtime value. The zero Value is nil.
type Value struct {
	kind ValueKind
	data any
}

// BlockFunc is the host representation of a block or proc body.
type BlockFunc func(ctx context.Context, self Value, args []Value) (Value, error)

type Block struct {
	Fn BlockFunc
}
