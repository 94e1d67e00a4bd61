// Package ssvalue implements SpiderScript's value model (C2): the tagged
// runtime value and the reference-counted heap cells it can point to
// (string, array, object). See spec.md §3 "Value" and its invariants.
package ssvalue

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/spiderscript/spiderscript/internal/sstypes"
)

// Kind tags which alternative a Value currently holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindReal
	KindString
	KindArray
	KindObject
)

// Value is a tagged value: exactly one of bool, int64, real64, string
// handle, array handle, object handle, or null (spec §3).
type Value struct {
	Kind Kind
	b    bool
	i    int64
	r    float64
	s    *StringObj
	a    *ArrayObj
	o    *ObjectObj
}

// StringObj is an immutable, reference-counted byte string.
type StringObj struct {
	RefCount int32
	Data     string
	freed    bool
}

// ArrayObj is a fixed-length, typed, reference-counted array.
type ArrayObj struct {
	RefCount int32
	ElemType sstypes.Ref
	Elements []Value
	freed    bool
}

// ObjectObj is a reference-counted instance of a native or script class:
// an attribute vector whose length equals the class's declared attribute
// count (spec §3 invariant 4).
type ObjectObj struct {
	RefCount int32
	Class    *sstypes.Def
	Attrs    []Value
	// Native carries a host-side payload for native classes (e.g. an open
	// database handle); nil for script classes.
	Native interface{}
	freed  bool
}

var liveHeapCount int64

// DestructHook, when set, is invoked on an object Value the instant its
// reference count reaches zero, before its attributes are released. The
// VM installs this at Interp construction time so a native class's
// Destruct handler (closing a pooled database connection, a socket, ...)
// runs on ordinary refcount teardown, not only when a script calls an
// explicit `.close()`-style method (spec §4.8: native classes expose "a
// constructor, optional destructor, ..."). nil in contexts with no
// native classes registered (e.g. most package-level tests here).
var DestructHook func(v Value)

// LiveHeapCount returns the number of heap cells (string/array/object)
// currently at a non-zero reference count. Used by the I1 test hook
// (spec §8): "sum of outstanding counts equals exact ownership".
func LiveHeapCount() int64 {
	return atomic.LoadInt64(&liveHeapCount)
}

// --- Construction ---

func Null() Value            { return Value{Kind: KindNull} }
func NewBool(b bool) Value   { return Value{Kind: KindBool, b: b} }
func NewInt(i int64) Value   { return Value{Kind: KindInt, i: i} }
func NewReal(r float64) Value { return Value{Kind: KindReal, r: r} }

// NewString allocates a new, immutable string cell with refcount 1.
func NewString(s string) Value {
	atomic.AddInt64(&liveHeapCount, 1)
	return Value{Kind: KindString, s: &StringObj{RefCount: 1, Data: s}}
}

// NewArray allocates a fixed-length array of elemType with refcount 1.
// Elements are default-initialized: null for reference types, zero/false
// for scalars.
func NewArray(elemType sstypes.Ref, length int) Value {
	atomic.AddInt64(&liveHeapCount, 1)
	elems := make([]Value, length)
	zero := zeroValue(elemType)
	for i := range elems {
		elems[i] = zero
		Retain(zero)
	}
	return Value{Kind: KindArray, a: &ArrayObj{RefCount: 1, ElemType: elemType, Elements: elems}}
}

// NewObject allocates an instance of class with refcount 1 and an
// attribute vector sized and default-initialized per the class's
// declared attributes.
func NewObject(class *sstypes.Def) Value {
	atomic.AddInt64(&liveHeapCount, 1)
	attrs := make([]Value, len(class.Attributes))
	for i, a := range class.Attributes {
		zero := zeroValue(a.Type)
		attrs[i] = zero
		Retain(zero)
	}
	return Value{Kind: KindObject, o: &ObjectObj{RefCount: 1, Class: class, Attrs: attrs}}
}

func zeroValue(t sstypes.Ref) Value {
	if t.IsReference() {
		return Null()
	}
	switch {
	case t.IsCore(sstypes.Bool):
		return NewBool(false)
	case t.IsCore(sstypes.Int):
		return NewInt(0)
	case t.IsCore(sstypes.Real):
		return NewReal(0)
	default:
		return Null()
	}
}

// --- Accessors (callers must check Kind first) ---

func (v Value) Bool() bool       { return v.b }
func (v Value) Int() int64       { return v.i }
func (v Value) Real() float64    { return v.r }
func (v Value) Str() string      { return v.s.Data }
func (v Value) StringObj() *StringObj { return v.s }
func (v Value) ArrayObj() *ArrayObj   { return v.a }
func (v Value) ObjectObj() *ObjectObj { return v.o }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// --- Reference counting (spec §3 invariant 1) ---

// Retain increments a heap value's reference count. No-op for by-value
// kinds (bool/int/real) and null.
func Retain(v Value) {
	switch v.Kind {
	case KindString:
		v.s.RefCount++
	case KindArray:
		v.a.RefCount++
	case KindObject:
		v.o.RefCount++
	}
}

// Release decrements a heap value's reference count, recursively
// releasing contained elements/attributes once it reaches zero. No-op
// for by-value kinds and null.
func Release(v Value) {
	switch v.Kind {
	case KindString:
		if v.s.freed {
			return
		}
		v.s.RefCount--
		if v.s.RefCount <= 0 {
			v.s.freed = true
			atomic.AddInt64(&liveHeapCount, -1)
		}
	case KindArray:
		if v.a.freed {
			return
		}
		v.a.RefCount--
		if v.a.RefCount <= 0 {
			v.a.freed = true
			atomic.AddInt64(&liveHeapCount, -1)
			for _, e := range v.a.Elements {
				Release(e)
			}
		}
	case KindObject:
		if v.o.freed {
			return
		}
		v.o.RefCount--
		if v.o.RefCount <= 0 {
			v.o.freed = true
			atomic.AddInt64(&liveHeapCount, -1)
			if DestructHook != nil {
				DestructHook(v)
			}
			for _, a := range v.o.Attrs {
				Release(a)
			}
		}
	}
}

// SetRetaining implements the "write to a register/slot/cell/attribute"
// discipline from spec §4.7: decrement the previous occupant, increment
// the new value, then store it.
func SetRetaining(dst *Value, src Value) {
	old := *dst
	Retain(src)
	*dst = src
	Release(old)
}

// --- Equality ---

// RefEqual implements the === / !== operators: identity comparison for
// reference-typed operands (spec §4.6).
func RefEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return a.Kind == KindNull && b.Kind == KindNull
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindString:
		return a.s == b.s
	case KindArray:
		return a.a == b.a
	case KindObject:
		return a.o == b.o
	default:
		return false
	}
}

// ValueEqual implements the == / != operators for value-typed operands
// and byte-lexicographic string comparison (spec §4.7).
func ValueEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindReal:
		return a.r == b.r
	case KindString:
		return a.s.Data == b.s.Data
	default:
		return RefEqual(a, b)
	}
}

// Compare implements <, <=, >, >= for int/real/string operands. Returns
// -1, 0, or 1. Panics if a and b are not comparable kinds; callers are
// expected to have type-checked already.
func Compare(a, b Value) int {
	switch a.Kind {
	case KindInt:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	case KindReal:
		switch {
		case a.r < b.r:
			return -1
		case a.r > b.r:
			return 1
		default:
			return 0
		}
	case KindString:
		return strings.Compare(a.s.Data, b.s.Data)
	default:
		panic("ssvalue: Compare on non-ordered kind")
	}
}

// ToDisplayString renders v for exception messages and host-facing
// diagnostics (not a language-level "str()" conversion — SpiderScript is
// statically typed, so string conversion is always via an explicit cast).
func ToDisplayString(v Value) string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindReal:
		return fmt.Sprintf("%g", v.r)
	case KindString:
		return v.s.Data
	case KindArray:
		parts := make([]string, len(v.a.Elements))
		for i, e := range v.a.Elements {
			parts[i] = ToDisplayString(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		return fmt.Sprintf("<%s>", v.o.Class.Name)
	default:
		return "?"
	}
}
