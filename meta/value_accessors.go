package meta

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNil() bool { return v.kind == KindNil }

func (v Value) Bool() bool {
	if v.kind == KindBool {
		return v.data.(bool)
	}
	return false
}

func (v Value) Int() int64 {
	switch v.kind {
	case KindInt:
		return v.data.(int64)
	case KindFloat:
		return int64(v.data.(float64))
	default:
		return 0
	}
}

func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.data.(float64)
	case KindInt:
		return float64(v.data.(int64))
	default:
		return 0
	}
}

func (v Value) Array() []Value {
	if v.kind != KindArray {
		return nil
	}
	return *v.data.(*[]Value)
}

func (v Value) Hash() *HashTable {
	if v.kind != KindHash {
		return nil
	}
	return v.data.(*HashTable)
}

func (v Value) Block() *Block {
	if v.kind != KindBlock {
		return nil
	}
	return v.data.(*Block)
}

func (v Value) Module() *Module {
	if v.kind != KindModule {
		return nil
	}
	return v.data.(*Module)
}

func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	return v.data.(*Object)
}
