package ffi

import (
	"testing"

	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

func TestRegisterFuncAddsUnderQualifiedName(t *testing.T) {
	v := NewVariant("test", sstypes.NewRegistry())
	v.RegisterFunc("math@square", sstypes.FuncProto{Return: sstypes.IntType, Args: []sstypes.Ref{sstypes.IntType}}, func(args []ssvalue.Value) (ssvalue.Value, error) {
		n := args[0].Int()
		return ssvalue.NewInt(n * n), nil
	})

	nf, ok := v.Funcs["math@square"]
	if !ok {
		t.Fatal("RegisterFunc did not store the function under its qualified name")
	}
	result, err := nf.Handler([]ssvalue.Value{ssvalue.NewInt(4)})
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if result.Int() != 16 {
		t.Fatalf("square(4) = %d, want 16", result.Int())
	}
}

func TestRegisterClassInternsDefAndStoresHandlers(t *testing.T) {
	v := NewVariant("test", sstypes.NewRegistry())
	nc := &NativeClass{
		Construct: func(args []ssvalue.Value) (ssvalue.Value, error) {
			return ssvalue.NewObject(&sstypes.Def{}), nil
		},
	}
	def, err := v.RegisterClass("app@Widget", nil, nil, "new", nc)
	if err != nil {
		t.Fatalf("RegisterClass: %v", err)
	}
	if def.Class != sstypes.ClassNative {
		t.Fatalf("Class = %v, want ClassNative", def.Class)
	}
	if nc.Def != def {
		t.Fatal("RegisterClass should set the NativeClass's Def field to the interned definition")
	}
	if v.Classes["app@Widget"] != nc {
		t.Fatal("RegisterClass did not store the class under its qualified name")
	}
}

func TestRegisterClassRejectsDuplicateNames(t *testing.T) {
	v := NewVariant("test", sstypes.NewRegistry())
	if _, err := v.RegisterClass("app@Widget", nil, nil, "new", &NativeClass{}); err != nil {
		t.Fatalf("first RegisterClass: %v", err)
	}
	if _, err := v.RegisterClass("app@Widget", nil, nil, "new", &NativeClass{}); err == nil {
		t.Fatal("expected an error registering a class name twice")
	}
}

func TestCompilerViewProjectsOnlyStaticSignatures(t *testing.T) {
	v := NewVariant("test", sstypes.NewRegistry())
	v.ImplicitCasts = true
	v.RegisterFunc("math@square", sstypes.FuncProto{Return: sstypes.IntType, Args: []sstypes.Ref{sstypes.IntType}}, func(args []ssvalue.Value) (ssvalue.Value, error) {
		return ssvalue.Null(), nil
	})

	cv := v.CompilerView()
	if !cv.ImplicitCasts {
		t.Fatal("CompilerView did not carry over ImplicitCasts")
	}
	if cv.Registry != v.Registry {
		t.Fatal("CompilerView should share the same Registry instance")
	}
	nf, ok := cv.NativeFuncs["math@square"]
	if !ok {
		t.Fatal("CompilerView did not carry over the registered native function")
	}
	if nf.QualifiedName != "math@square" {
		t.Fatalf("QualifiedName = %q, want math@square", nf.QualifiedName)
	}
	if !nf.Proto.Return.Equal(sstypes.IntType) {
		t.Fatalf("Proto.Return = %v, want IntType", nf.Proto.Return)
	}
}
