package vm

import (
	"testing"

	"github.com/spiderscript/spiderscript/internal/compiler"
	"github.com/spiderscript/spiderscript/internal/emitter"
	"github.com/spiderscript/spiderscript/internal/ffi"
	"github.com/spiderscript/spiderscript/internal/optimizer"
	"github.com/spiderscript/spiderscript/internal/parser"
	"github.com/spiderscript/spiderscript/internal/sstypes"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
)

// runSource lexes, parses, optimizes, and compiles source, then invokes
// entry with args against a fresh Interp.
func runSource(t *testing.T, source, entry string, args []ssvalue.Value) (ssvalue.Value, error) {
	t.Helper()
	prog, perrs := parser.Parse("test.ss", source, nil)
	if len(perrs) > 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	prog = optimizer.Optimize(prog)

	registry := sstypes.NewRegistry()
	variant := ffi.NewVariant("test", registry)

	out, cerrs := compiler.Compile(prog, variant.CompilerView())
	if len(cerrs) > 0 {
		t.Fatalf("compile errors: %v", cerrs)
	}

	interp := New(out, variant, "test.ss")
	return interp.Call(entry, args)
}

func TestEndToEndArithmetic(t *testing.T) {
	result, err := runSource(t, `int main() { return 2 + 3 * 4; }`, "main", nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Int() != 14 {
		t.Fatalf("result = %d, want 14", result.Int())
	}
}

func TestEndToEndLoopAccumulates(t *testing.T) {
	source := `
int sum() {
	int total = 0;
	for (int i = 1; i <= 10; i = i + 1) {
		total = total + i;
	}
	return total;
}`
	result, err := runSource(t, source, "sum", nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Int() != 55 {
		t.Fatalf("result = %d, want 55", result.Int())
	}
}

func TestEndToEndRecursion(t *testing.T) {
	source := `
int fib(int n) {
	if (n < 2) {
		return n;
	}
	return fib(n - 1) + fib(n - 2);
}`
	result, err := runSource(t, source, "fib", []ssvalue.Value{ssvalue.NewInt(10)})
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Int() != 55 {
		t.Fatalf("fib(10) = %d, want 55", result.Int())
	}
}

func TestEndToEndDivisionByZeroRaisesRuntimeError(t *testing.T) {
	source := `int divide(int a, int b) { return a / b; }`
	_, err := runSource(t, source, "divide", []ssvalue.Value{ssvalue.NewInt(10), ssvalue.NewInt(0)})
	if err == nil {
		t.Fatal("expected a runtime error dividing by zero")
	}
}

func TestEndToEndArrayIndexOutOfBoundsRaisesRuntimeError(t *testing.T) {
	source := `
int readAt(int idx) {
	int[] xs = new int[3];
	return xs[idx];
}`
	_, err := runSource(t, source, "readAt", []ssvalue.Value{ssvalue.NewInt(99)})
	if err == nil {
		t.Fatal("expected a runtime error indexing out of bounds")
	}
}

func TestEndToEndClassConstructionAndMethodCall(t *testing.T) {
	source := `
class Point {
	int x;
	int y;
	void Point(int x, int y) {
		this.x = x;
		this.y = y;
	}
	int sum() { return this.x + this.y; }
}
int makeAndSum() {
	Point p = new Point(3, 4);
	return p.sum();
}`
	result, err := runSource(t, source, "makeAndSum", nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Int() != 7 {
		t.Fatalf("result = %d, want 7", result.Int())
	}
}

func TestEndToEndStringConcatenation(t *testing.T) {
	source := `string greet(string name) { return "hello, " + name; }`
	result, err := runSource(t, source, "greet", []ssvalue.Value{ssvalue.NewString("world")})
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Str() != "hello, world" {
		t.Fatalf("result = %q, want %q", result.Str(), "hello, world")
	}
}

func TestHeapAccountingBalancesAcrossManyCalls(t *testing.T) {
	source := `string greet(string name) { return "hi " + name; }`
	before := ssvalue.LiveHeapCount()
	for i := 0; i < 1000; i++ {
		arg := ssvalue.NewString("x")
		result, err := runSource(t, source, "greet", []ssvalue.Value{arg})
		if err != nil {
			t.Fatalf("Call returned error: %v", err)
		}
		ssvalue.Release(result)
		ssvalue.Release(arg)
	}
	after := ssvalue.LiveHeapCount()
	if before != after {
		t.Fatalf("live heap count changed from %d to %d across 1000 calls: a ref-count leak or double-release", before, after)
	}
}

func TestEndToEndContinueInsideSwitchReachesTheEnclosingLoop(t *testing.T) {
	source := `
int sumSkippingTwo() {
	int total = 0;
	for (int i = 0; i < 5; i = i + 1) {
		switch (i) {
		case 2:
			continue;
		default:
			break;
		}
		total = total + i;
	}
	return total;
}`
	result, err := runSource(t, source, "sumSkippingTwo", nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if result.Int() != 8 { // 0 + 1 + 3 + 4, skipping i == 2
		t.Fatalf("result = %d, want 8 (continue should reach the for-loop, not just the switch)", result.Int())
	}
}

// --- direct opcode-level tests for paths with no surface syntax ---

func TestExceptionHandlerStackCatchesAndResumes(t *testing.T) {
	fn := &emitter.Func{QualifiedName: "f", NumRegisters: 2}
	handler := emitter.Instr{Op: emitter.OpLoadInt, A: 0, Int: 99, Line: 1}
	fn.Code = []emitter.Instr{
		{Op: emitter.OpExceptionPush, Target: 2, Line: 1},
		{Op: emitter.OpIntDiv, A: 1, B: 0, C: 0, Line: 2}, // 0/0 raises, caught below
		handler,
		{Op: emitter.OpReturn, A: 0, Line: 3},
	}

	interp := &Interp{funcs: map[string]*emitter.Func{"f": fn}, file: "test.ss", variant: ffi.NewVariant("test", sstypes.NewRegistry())}
	f := newFrame(fn)
	f.regs[0] = ssvalue.NewInt(0)
	defer f.releaseAll()

	result, err := interp.run(f)
	if err != nil {
		t.Fatalf("run() returned error even though a handler was installed: %v", err)
	}
	if result.Int() != 99 {
		t.Fatalf("result = %d, want 99 (the handler's value)", result.Int())
	}
}

func TestExceptionUnhandledPropagatesAsError(t *testing.T) {
	fn := &emitter.Func{QualifiedName: "f", NumRegisters: 1}
	fn.Code = []emitter.Instr{
		{Op: emitter.OpIntDiv, A: 0, B: 0, C: 0, Line: 1},
		{Op: emitter.OpReturn, A: 0, Line: 2},
	}
	interp := &Interp{funcs: map[string]*emitter.Func{"f": fn}, file: "test.ss", variant: ffi.NewVariant("test", sstypes.NewRegistry())}
	f := newFrame(fn)
	f.regs[0] = ssvalue.NewInt(0)
	defer f.releaseAll()

	_, err := interp.run(f)
	if err == nil {
		t.Fatal("expected an unhandled division-by-zero error")
	}
	if p := interp.Pending(); p == nil || p.Class != "arithmetic" {
		t.Fatalf("Pending() = %+v, want a pending arithmetic exception", p)
	}
}

func TestIntRotlOpcode(t *testing.T) {
	fn := &emitter.Func{QualifiedName: "f", NumRegisters: 3}
	fn.Code = []emitter.Instr{
		{Op: emitter.OpIntRotl, A: 2, B: 0, C: 1, Line: 1},
		{Op: emitter.OpReturn, A: 2, Line: 2},
	}
	interp := &Interp{funcs: map[string]*emitter.Func{"f": fn}, file: "test.ss"}
	f := newFrame(fn)
	f.regs[0] = ssvalue.NewInt(1)
	f.regs[1] = ssvalue.NewInt(1)
	defer f.releaseAll()

	result, err := interp.run(f)
	if err != nil {
		t.Fatalf("run() returned error: %v", err)
	}
	if result.Int() != 2 {
		t.Fatalf("rotl(1, 1) = %d, want 2", result.Int())
	}
}

func TestUndefinedEntryFunctionIsAnError(t *testing.T) {
	interp := New(&emitter.Program{}, ffi.NewVariant("test", sstypes.NewRegistry()), "test.ss")
	_, err := interp.Call("main", nil)
	if err == nil {
		t.Fatal("expected an error calling an undefined entry function")
	}
}

func TestArityMismatchIsAnError(t *testing.T) {
	fn := &emitter.Func{QualifiedName: "f", NumArgs: 1, NumRegisters: 1}
	fn.Code = []emitter.Instr{{Op: emitter.OpReturn, A: -1}}
	interp := New(&emitter.Program{Functions: []*emitter.Func{fn}}, ffi.NewVariant("test", sstypes.NewRegistry()), "test.ss")
	_, err := interp.Call("f", nil)
	if err == nil {
		t.Fatal("expected an arity-mismatch error calling f with no arguments")
	}
}

// TestNativeObjectIsDestructedOnOrdinaryScopeExit proves Destruct fires
// from plain refcount-driven teardown (a local that's never returned and
// never explicitly closed, released by the enclosing frame's
// releaseAll), not only when a script calls an explicit close method.
func TestNativeObjectIsDestructedOnOrdinaryScopeExit(t *testing.T) {
	registry := sstypes.NewRegistry()
	variant := ffi.NewVariant("test", registry)

	destructed := false
	var nc *ffi.NativeClass
	nc = &ffi.NativeClass{
		Construct: func(args []ssvalue.Value) (ssvalue.Value, error) {
			return ssvalue.NewObject(nc.Def), nil
		},
		Destruct: func(recv ssvalue.Value) {
			destructed = true
		},
	}
	if _, err := variant.RegisterClass("Probe", nil, nil, "", nc); err != nil {
		t.Fatalf("RegisterClass: %v", err)
	}

	source := `
void useProbe() {
	Probe p = new Probe();
}`
	prog, perrs := parser.Parse("test.ss", source, nil)
	if len(perrs) > 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	prog = optimizer.Optimize(prog)

	out, cerrs := compiler.Compile(prog, variant.CompilerView())
	if len(cerrs) > 0 {
		t.Fatalf("compile errors: %v", cerrs)
	}

	interp := New(out, variant, "test.ss")
	if _, err := interp.Call("useProbe", nil); err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !destructed {
		t.Fatal("Probe.Destruct never ran: a native object that went out of scope without an explicit close leaked")
	}
}
