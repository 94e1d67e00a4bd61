// Package ffi implements the host/FFI surface (C9): the Variant record a
// host assembles to describe its dialect (native classes, native
// functions, whether implicit int->real widening is allowed, an
// index-based constant resolver, and an error callback), plus the
// runtime-exception plumbing (C10) that surfaces a RuntimeError to both
// the script's pending-exception record and the host callback.
package ffi

import (
	"github.com/spiderscript/spiderscript/internal/compiler"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

// NativeFunc is a host-implemented function: its static prototype plus
// the Go handler the VM dispatches to. Handler receives already
// type-checked arguments (argument-count and per-argument type agreement
// were verified at compile time) and returns either a value or an error
// that becomes a RuntimeError (spec §4.8).
type NativeFunc struct {
	Name    string
	Proto   sstypes.FuncProto
	Handler func(args []ssvalue.Value) (ssvalue.Value, error)
}

// NativeMethod is one method entry on a NativeClass.
type NativeMethod struct {
	Proto   sstypes.FuncProto
	Handler func(recv ssvalue.Value, args []ssvalue.Value) (ssvalue.Value, error)
}

// NativeClass is a host-defined class: its type-registry definition plus
// the constructor/method/destructor handlers backing it (spec §4.8:
// "constructor, optional destructor, attribute list ..., and method
// list").
type NativeClass struct {
	Def         *sstypes.Def
	Construct   func(args []ssvalue.Value) (ssvalue.Value, error)
	Destruct    func(recv ssvalue.Value)
	Methods     map[string]*NativeMethod
	GetAttr     func(recv ssvalue.Value, name string) (ssvalue.Value, error)
	SetAttr     func(recv ssvalue.Value, name string, val ssvalue.Value) error
}

// ConstantResolver looks up a host-defined named constant by index,
// preserving the original implementation's indirection through a
// GetConstant callback rather than baking constant values into bytecode
// (spec §4.8, §9 supplemented detail).
type ConstantResolver func(index int) (ssvalue.Value, error)

// Variant is the host dialect configuration a script runs against (spec
// §3 "Script"): the type registry, the native function/class tables,
// whether implicit casts are enabled, the constant resolver, and the
// error callback invoked whenever a runtime or uncaught exception
// reaches the top of a call.
type Variant struct {
	Name          string
	Registry      *sstypes.Registry
	Funcs         map[string]*NativeFunc
	Classes       map[string]*NativeClass
	ImplicitCasts bool
	Constants     ConstantResolver
	OnError       func(script, message string)
}

// NewVariant creates an empty Variant ready for native registrations.
func NewVariant(name string, registry *sstypes.Registry) *Variant {
	return &Variant{
		Name:     name,
		Registry: registry,
		Funcs:    make(map[string]*NativeFunc),
		Classes:  make(map[string]*NativeClass),
	}
}

// RegisterFunc adds a native function under its namespace-qualified name.
func (v *Variant) RegisterFunc(qualifiedName string, proto sstypes.FuncProto, handler func(args []ssvalue.Value) (ssvalue.Value, error)) {
	v.Funcs[qualifiedName] = &NativeFunc{Name: qualifiedName, Proto: proto, Handler: handler}
}

// RegisterClass interns class's type definition (if not already
// registered) and records its native backing.
func (v *Variant) RegisterClass(qualifiedName string, attrs []sstypes.AttrDef, methods []sstypes.MethodDef, ctor string, nc *NativeClass) (*sstypes.Def, error) {
	def, err := v.Registry.DefineNativeClass(qualifiedName, attrs, methods, ctor)
	if err != nil {
		return nil, err
	}
	nc.Def = def
	v.Classes[qualifiedName] = nc
	return def, nil
}

// CompilerView projects the subset of Variant the type-checking compiler
// needs, so internal/compiler never has to import the handler-carrying
// parts of ffi (kept as two packages per SPEC_FULL.md's layout: the
// compiler depends only on static signatures, the VM depends on the full
// Variant including handlers).
func (v *Variant) CompilerView() *compiler.Variant {
	cv := &compiler.Variant{
		Registry:      v.Registry,
		ImplicitCasts: v.ImplicitCasts,
		NativeFuncs:   make(map[string]*compiler.NativeFunc, len(v.Funcs)),
	}
	for name, f := range v.Funcs {
		cv.NativeFuncs[name] = &compiler.NativeFunc{QualifiedName: name, Proto: f.Proto}
	}
	return cv
}
