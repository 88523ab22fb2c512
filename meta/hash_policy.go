package meta

import (
	"context"
	"encoding/binary"
	"math"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// KeyPolicy supplies the hash code and the value-equality predicate used by
// a HashTable. Either call may run user code and fail.
type KeyPolicy interface {
	HashKey(ctx context.Context, key Value) (uint64, error)
	KeysEqual(ctx context.Context, a, b Value) (bool, error)
}

// dispatchKeyPolicy sends `hash` and `eql?`, so user classes decide how
// their instances behave as keys.
type dispatchKeyPolicy struct {
	rt *Runtime
}

func (p dispatchKeyPolicy) HashKey(ctx context.Context, key Value) (uint64, error) {
	hashed, err := p.rt.Send(ctx, key, "hash", nil, NewNil())
	if err != nil {
		return 0, err
	}
	if hashed.Kind() != KindInt {
		return 0, newTypeError("hash must return an Integer, got %s", hashed.Kind())
	}
	return uint64(hashed.Int()), nil
}

func (p dispatchKeyPolicy) KeysEqual(ctx context.Context, a, b Value) (bool, error) {
	equal, err := p.rt.Send(ctx, a, "eql?", []Value{b}, NewNil())
	if err != nil {
		return false, err
	}
	return equal.Truthy(), nil
}

// ValueKeyPolicy hashes and compares keys natively, without dispatch:
// builtin values by content and everything else by identity.
type ValueKeyPolicy struct{}

func (ValueKeyPolicy) HashKey(ctx context.Context, key Value) (uint64, error) {
	return valueHash(key), nil
}

func (ValueKeyPolicy) KeysEqual(ctx context.Context, a, b Value) (bool, error) {
	return a.Equal(b), nil
}

// valueHash hashes builtin values by content, arrays element-wise, and
// anything with identity by identity.
func valueHash(v Value) uint64 {
	switch v.kind {
	case KindNil, KindBool, KindInt, KindFloat, KindString, KindSymbol:
	case KindArray:
		d := xxhash.New()
		var buf [8]byte
		d.WriteString(v.kind.String())
		for _, elem := range v.Array() {
			binary.LittleEndian.PutUint64(buf[:], valueHash(elem))
			d.Write(buf[:])
		}
		return d.Sum64()
	default:
		return identityHash(v)
	}

	d := xxhash.New()
	d.WriteString(v.kind.String())
	d.Write([]byte{0})
	var buf [8]byte
	switch v.kind {
	case KindBool:
		if v.Bool() {
			d.Write([]byte{1})
		}
	case KindInt:
		binary.LittleEndian.PutUint64(buf[:], uint64(v.Int()))
		d.Write(buf[:])
	case KindFloat:
		f := v.Float()
		if f == 0 {
			f = 0 // -0.0 eql? 0.0
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		d.Write(buf[:])
	case KindString, KindSymbol:
		d.WriteString(v.data.(string))
	}
	return d.Sum64()
}

// identityHash is stable for the lifetime of the value and consistent with
// Value.Identical.
func identityHash(v Value) uint64 {
	switch v.kind {
	case KindModule:
		id := v.Module().id
		return xxhash.Sum64(id[:])
	case KindObject:
		id := v.Object().ID
		return xxhash.Sum64(id[:])
	case KindArray, KindHash, KindBlock:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(reflect.ValueOf(v.data).Pointer()))
		return xxhash.Sum64(buf[:])
	default:
		return valueHash(v)
	}
}
