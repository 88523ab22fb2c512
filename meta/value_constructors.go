package meta

func NewNil() Value            { return Value{kind: KindNil} }
func NewBool(b bool) Value     { return Value{kind: KindBool, data: b} }
func NewInt(i int64) Value     { return Value{kind: KindInt, data: i} }
func NewFloat(f float64) Value { return Value{kind: KindFloat, data: f} }
func NewString(s string) Value { return Value{kind: KindString, data: s} }
func NewSymbol(name string) Value {
	return Value{kind: KindSymbol, data: name}
}

// NewArray wraps elems. The returned value has its own identity, so two
// arrays built from the same slice are not identical.
func NewArray(elems []Value) Value {
	return Value{kind: KindArray, data: &elems}
}

func NewHashValue(h *HashTable) Value { return Value{kind: KindHash, data: h} }
func NewBlock(fn BlockFunc) Value {
	return Value{kind: KindBlock, data: &Block{Fn: fn}}
}
func NewModule(m *Module) Value { return Value{kind: KindModule, data: m} }
func NewObject(o *Object) Value { return Value{kind: KindObject, data: o} }
