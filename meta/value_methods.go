package meta

import (
	"fmt"
	"strconv"
	"strings"
)

func (k ValueKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindArray:
		return "array"
	case KindHash:
		return "hash"
	case KindBlock:
		return "block"
	case KindModule:
		return "module"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.data.(string)
	case KindNil:
		return ""
	case KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.data.(int64), 10)
	case KindFloat:
		return fmt.Sprintf("%g", v.data.(float64))
	case KindSymbol:
		return v.data.(string)
	default:
		return v.Inspect()
	}
}

// Inspect renders v the way a REPL would echo it back.
func (v Value) Inspect() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindString:
		return strconv.Quote(v.data.(string))
	case KindSymbol:
		return ":" + v.data.(string)
	case KindArray:
		elems := v.Array()
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = e.Inspect()
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
	case KindHash:
		h := v.Hash()
		if h.Len() == 0 {
			return "{}"
		}
		parts := make([]string, 0, h.Len())
		h.Each(func(entry *HashEntry) bool {
			parts = append(parts, fmt.Sprintf("%s => %s", entry.Key.Inspect(), entry.Value.Inspect()))
			return true
		})
		return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
	case KindBlock:
		return "#<Proc>"
	case KindModule:
		return v.Module().Inspect()
	case KindObject:
		return v.Object().Inspect()
	default:
		return v.String()
	}
}

func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.Bool()
	default:
		return true
	}
}

// Equal reports value equality, the default meaning of `eql?` for builtin
// values. Integers and floats never compare equal to each other.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.Bool() == other.Bool()
	case KindInt:
		return v.data.(int64) == other.data.(int64)
	case KindFloat:
		return v.data.(float64) == other.data.(float64)
	case KindString, KindSymbol:
		return v.data.(string) == other.data.(string)
	case KindArray:
		left, right := v.Array(), other.Array()
		if len(left) != len(right) {
			return false
		}
		for i := range left {
			if !left[i].Equal(right[i]) {
				return false
			}
		}
		return true
	default:
		return v.Identical(other)
	}
}

// Identical reports reference identity (`equal?`). Immediate values (nil,
// booleans, numbers, symbols and strings) are identical when equal;
// everything else compares by pointer.
func (v Value) Identical(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool, KindInt, KindFloat, KindString, KindSymbol:
		return v.data == other.data
	case KindArray:
		return v.data.(*[]Value) == other.data.(*[]Value)
	case KindHash:
		return v.data.(*HashTable) == other.data.(*HashTable)
	case KindBlock:
		return v.data.(*Block) == other.data.(*Block)
	case KindModule:
		return v.data.(*Module) == other.data.(*Module)
	case KindObject:
		return v.data.(*Object) == other.data.(*Object)
	default:
		return false
	}
}

func (v Value) isImmediate() bool {
	switch v.kind {
	case KindNil, KindBool, KindInt, KindFloat, KindSymbol:
		return true
	default:
		return false
	}
}
