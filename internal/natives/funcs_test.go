package natives

import (
	"testing"

	"github.com/spiderscript/spiderscript/internal/ffi"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

func newStdlibVariant(t *testing.T) *ffi.Variant {
	t.Helper()
	variant := ffi.NewVariant("test", sstypes.NewRegistry())
	RegisterStdlib(variant)
	return variant
}

func TestUUID4ProducesDistinctValues(t *testing.T) {
	variant := newStdlibVariant(t)
	a := callFunc(t, variant, "std@uuid4")
	b := callFunc(t, variant, "std@uuid4")
	if a.Str() == b.Str() {
		t.Fatal("two calls to uuid4 produced the same value")
	}
	if len(a.Str()) != 36 {
		t.Fatalf("uuid4 length = %d, want 36", len(a.Str()))
	}
}

func TestHumanizeBytes(t *testing.T) {
	variant := newStdlibVariant(t)
	got := callFunc(t, variant, "std@humanizeBytes", ssvalue.NewInt(2048))
	if got.Str() != "2.0 kB" {
		t.Fatalf("humanizeBytes(2048) = %q, want %q", got.Str(), "2.0 kB")
	}
}

func TestHumanizeComma(t *testing.T) {
	variant := newStdlibVariant(t)
	got := callFunc(t, variant, "std@humanizeComma", ssvalue.NewInt(1234567))
	if got.Str() != "1,234,567" {
		t.Fatalf("humanizeComma(1234567) = %q, want %q", got.Str(), "1,234,567")
	}
}

func TestRotlMatchesVMOpcode(t *testing.T) {
	variant := newStdlibVariant(t)
	got := callFunc(t, variant, "std@rotl", ssvalue.NewInt(1), ssvalue.NewInt(1))
	if got.Int() != 2 {
		t.Fatalf("rotl(1, 1) = %d, want 2", got.Int())
	}
}
