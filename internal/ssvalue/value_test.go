package ssvalue

import (
	"testing"

	"github.com/spiderscript/spiderscript/internal/sstypes"
)

func TestReleaseToZeroDropsLiveHeapCount(t *testing.T) {
	before := LiveHeapCount()
	s := NewString("hi")
	if LiveHeapCount() != before+1 {
		t.Fatalf("LiveHeapCount after NewString = %d, want %d", LiveHeapCount(), before+1)
	}
	Release(s)
	if LiveHeapCount() != before {
		t.Fatalf("LiveHeapCount after Release = %d, want %d", LiveHeapCount(), before)
	}
}

func TestRetainKeepsValueAliveAcrossOneRelease(t *testing.T) {
	before := LiveHeapCount()
	s := NewString("hi")
	Retain(s)
	Release(s)
	if LiveHeapCount() != before+1 {
		t.Fatalf("value was freed after only one of two releases: LiveHeapCount = %d, want %d", LiveHeapCount(), before+1)
	}
	Release(s)
	if LiveHeapCount() != before {
		t.Fatalf("LiveHeapCount after both releases = %d, want %d", LiveHeapCount(), before)
	}
}

func TestReleaseIsIdempotentOnceFreed(t *testing.T) {
	before := LiveHeapCount()
	s := NewString("hi")
	Release(s)
	Release(s) // must not double-decrement or panic
	if LiveHeapCount() != before {
		t.Fatalf("double release changed LiveHeapCount to %d, want %d", LiveHeapCount(), before)
	}
}

func TestReleaseArrayRecursivelyReleasesElements(t *testing.T) {
	before := LiveHeapCount()
	arr := NewArray(sstypes.StringType, 2)
	a, b := NewString("a"), NewString("b")
	SetRetaining(&arr.ArrayObj().Elements[0], a)
	SetRetaining(&arr.ArrayObj().Elements[1], b)
	Release(a) // the array slots now hold the only references
	Release(b)
	if LiveHeapCount() != before+3 { // array + 2 strings
		t.Fatalf("LiveHeapCount after building array = %d, want %d", LiveHeapCount(), before+3)
	}
	Release(arr)
	if LiveHeapCount() != before {
		t.Fatalf("LiveHeapCount after releasing array = %d, want %d (elements should cascade-release)", LiveHeapCount(), before)
	}
}

func TestSetRetainingReleasesThePreviousOccupant(t *testing.T) {
	before := LiveHeapCount()
	var cell Value
	first := NewString("first")
	SetRetaining(&cell, first)
	Release(first) // cell now holds the only reference
	second := NewString("second")
	SetRetaining(&cell, second)
	Release(second)
	if LiveHeapCount() != before+1 {
		t.Fatalf("LiveHeapCount = %d, want %d (first string should have been released)", LiveHeapCount(), before+1)
	}
	if cell.Str() != "second" {
		t.Fatalf("cell = %q, want %q", cell.Str(), "second")
	}
	Release(cell)
}

func TestRefEqualIsIdentityNotValueEquality(t *testing.T) {
	a := NewString("same")
	b := NewString("same")
	defer Release(a)
	defer Release(b)
	if RefEqual(a, b) {
		t.Fatal("RefEqual(a, b) = true for two distinct string cells with equal contents")
	}
	if !RefEqual(a, a) {
		t.Fatal("RefEqual(a, a) = false for identical cell")
	}
}

func TestValueEqualComparesContents(t *testing.T) {
	a := NewString("same")
	b := NewString("same")
	defer Release(a)
	defer Release(b)
	if !ValueEqual(a, b) {
		t.Fatal("ValueEqual(a, b) = false for two distinct string cells with equal contents")
	}
	if ValueEqual(NewInt(1), NewInt(2)) {
		t.Fatal("ValueEqual(1, 2) = true")
	}
}

func TestCompareOrdersIntsRealsAndStrings(t *testing.T) {
	if Compare(NewInt(1), NewInt(2)) >= 0 {
		t.Fatal("Compare(1, 2) should be negative")
	}
	if Compare(NewReal(2.5), NewReal(2.5)) != 0 {
		t.Fatal("Compare(2.5, 2.5) should be zero")
	}
	a, b := NewString("abc"), NewString("abd")
	defer Release(a)
	defer Release(b)
	if Compare(a, b) >= 0 {
		t.Fatal(`Compare("abc", "abd") should be negative`)
	}
}

func TestZeroValueForReferenceTypeIsNull(t *testing.T) {
	arr := NewArray(sstypes.StringType.Arrayed(), 1)
	defer Release(arr)
	if !arr.ArrayObj().Elements[0].IsNull() {
		t.Fatal("a freshly allocated array of a reference-typed element should default to null")
	}
}

func TestZeroValueForScalarTypes(t *testing.T) {
	ints := NewArray(sstypes.IntType, 1)
	defer Release(ints)
	if ints.ArrayObj().Elements[0].Int() != 0 {
		t.Fatal("a freshly allocated int array should default its elements to 0")
	}
	bools := NewArray(sstypes.BoolType, 1)
	defer Release(bools)
	if bools.ArrayObj().Elements[0].Bool() != false {
		t.Fatal("a freshly allocated bool array should default its elements to false")
	}
}

func TestToDisplayStringFormatsEveryKind(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null(), "null"},
		{"true", NewBool(true), "true"},
		{"false", NewBool(false), "false"},
		{"int", NewInt(42), "42"},
	}
	for _, test := range tests {
		if got := ToDisplayString(test.v); got != test.want {
			t.Errorf("ToDisplayString(%s) = %q, want %q", test.name, got, test.want)
		}
	}
}
