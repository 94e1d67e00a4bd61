package sstypes

import "testing"

func TestRefEqualComparesArrayDepthAndIdentity(t *testing.T) {
	if !IntType.Equal(IntType) {
		t.Fatal("IntType.Equal(IntType) = false")
	}
	if IntType.Equal(RealType) {
		t.Fatal("IntType.Equal(RealType) = true")
	}
	if IntType.Equal(IntType.Arrayed()) {
		t.Fatal("IntType.Equal(int[]) = true")
	}
}

func TestElementAndArrayedRoundTrip(t *testing.T) {
	arr := IntType.Arrayed().Arrayed()
	if arr.ArrayDepth != 2 {
		t.Fatalf("ArrayDepth = %d, want 2", arr.ArrayDepth)
	}
	el := arr.Element()
	if el.ArrayDepth != 1 || el.Def != IntDef {
		t.Fatalf("Element() = %+v, want depth 1 IntDef", el)
	}
}

func TestElementOfScalarPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Element() of a non-array type should panic")
		}
	}()
	IntType.Element()
}

func TestIsReferenceClassifiesKinds(t *testing.T) {
	if IntType.IsReference() {
		t.Fatal("int should not be a reference type")
	}
	if !StringType.IsReference() {
		t.Fatal("string should be a reference type")
	}
	if !IntType.Arrayed().IsReference() {
		t.Fatal("int[] should be a reference type")
	}
}

func TestDefineNativeClassRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	if _, err := r.DefineNativeClass("db@Database", nil, nil, "new"); err != nil {
		t.Fatalf("first DefineNativeClass: %v", err)
	}
	if _, err := r.DefineNativeClass("db@Database", nil, nil, "new"); err == nil {
		t.Fatal("expected an error re-registering the same native class name")
	}
}

func TestDeclareAndFinishScriptClass(t *testing.T) {
	r := NewRegistry()
	def, err := r.DeclareScriptClass("app@Counter")
	if err != nil {
		t.Fatalf("DeclareScriptClass: %v", err)
	}
	if def.Class != ClassScript {
		t.Fatalf("Class = %v, want ClassScript", def.Class)
	}
	attrs := []AttrDef{{Name: "count", Type: IntType}}
	r.FinishScriptClass(def, attrs, nil, "Counter")
	if len(def.Attributes) != 1 || def.Attributes[0].Name != "count" {
		t.Fatalf("FinishScriptClass did not fill in attributes: %+v", def.Attributes)
	}
	if def.Constructor != "Counter" {
		t.Fatalf("Constructor = %q, want Counter", def.Constructor)
	}
}

func TestLookupWalksNamespacesOutermostFirst(t *testing.T) {
	r := NewRegistry()
	outer, _ := r.DefineNativeClass("outer", nil, nil, "")
	inner, _ := r.DefineNativeClass("outer@inner@Widget", nil, nil, "")
	_ = outer

	def, ok := r.Lookup([]string{"outer", "inner"}, "Widget")
	if !ok || def != inner {
		t.Fatalf("Lookup did not resolve the fully-qualified name: %+v, %v", def, ok)
	}

	if _, ok := r.Lookup(nil, "Widget"); ok {
		t.Fatal("Lookup should not find an unqualified name with no namespace to search")
	}
}

func TestLookupFallsBackToGlobalName(t *testing.T) {
	r := NewRegistry()
	global, err := r.DefineNativeClass("Thing", nil, nil, "")
	if err != nil {
		t.Fatalf("DefineNativeClass: %v", err)
	}
	def, ok := r.Lookup([]string{"app"}, "Thing")
	if !ok || def != global {
		t.Fatalf("Lookup did not fall back to the global name: %+v, %v", def, ok)
	}
}

func TestInternFuncProtoSharesIdentityForEqualShapes(t *testing.T) {
	r := NewRegistry()
	a := r.InternFuncProto(FuncProto{Return: IntType, Args: []Ref{StringType}})
	b := r.InternFuncProto(FuncProto{Return: IntType, Args: []Ref{StringType}})
	if a != b {
		t.Fatal("two structurally identical FuncProtos should intern to the same Def")
	}
	c := r.InternFuncProto(FuncProto{Return: IntType, Args: []Ref{IntType}})
	if a == c {
		t.Fatal("differently-shaped FuncProtos should not share identity")
	}
}

func TestAssignableFromIdentity(t *testing.T) {
	if !AssignableFrom(IntType, IntType, false) {
		t.Fatal("a type should be assignable from itself")
	}
	if AssignableFrom(IntType, RealType, false) {
		t.Fatal("real should not be assignable to int")
	}
}

func TestAssignableFromImplicitIntToReal(t *testing.T) {
	if AssignableFrom(RealType, IntType, false) {
		t.Fatal("int->real should not be assignable without implicit casts enabled")
	}
	if !AssignableFrom(RealType, IntType, true) {
		t.Fatal("int->real should be assignable with implicit casts enabled")
	}
	if AssignableFrom(IntType, RealType, true) {
		t.Fatal("real->int should never be implicitly assignable, even with casts enabled")
	}
}

func TestAssignableFromUndefMatchesAnything(t *testing.T) {
	if !AssignableFrom(StringType, UndefType, false) {
		t.Fatal("undef should be assignable to any destination type")
	}
	if !AssignableFrom(IntType.Arrayed(), UndefType, false) {
		t.Fatal("undef should be assignable to an array destination type")
	}
}
