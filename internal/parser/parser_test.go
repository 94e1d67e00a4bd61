package parser

import (
	"testing"

	"github.com/kr/pretty"

	"github.com/spiderscript/spiderscript/internal/ast"
)

func mustParse(t *testing.T, source string) *ast.Program {
	t.Helper()
	prog, errs := Parse("test.ss", source, nil)
	if len(errs) > 0 {
		t.Fatalf("Parse(%q) returned errors: %v", source, errs)
	}
	return prog
}

func TestParseFunctionDecl(t *testing.T) {
	prog := mustParse(t, `int add(int a, int b) { return a + b; }`)
	if len(prog.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(prog.Functions))
	}
	fn := prog.Functions[0]
	if fn.Name != "add" || fn.ReturnType.Name != "int" || len(fn.Params) != 2 {
		t.Fatalf("unexpected function shape: %+v", fn)
	}
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("got %d body statements, want 1", len(fn.Body.Stmts))
	}
	ret, ok := fn.Body.Stmts[0].(*ast.Return)
	if !ok {
		t.Fatalf("body statement is %T, want *ast.Return", fn.Body.Stmts[0])
	}
	bin, ok := ret.Value.(*ast.Binary)
	if !ok || bin.Op != ast.BinAdd {
		t.Fatalf("return value is %+v, want a + binary", ret.Value)
	}
}

func TestParseNamespacedFunction(t *testing.T) {
	prog := mustParse(t, `util@math@int square(int x) { return x * x; }`)
	fn := prog.Functions[0]
	if len(fn.Namespace) != 2 || fn.Namespace[0] != "util" || fn.Namespace[1] != "math" {
		t.Fatalf("namespace = %v, want [util math]", fn.Namespace)
	}
}

func TestParseClassWithConstructorAndAttrs(t *testing.T) {
	prog := mustParse(t, `
class Point {
	readonly int x;
	int y;
	void Point(int x, int y) {
		this.x = x;
	}
	int sum() { return this.x + this.y; }
}`)
	if len(prog.Classes) != 1 {
		t.Fatalf("got %d classes, want 1", len(prog.Classes))
	}
	cd := prog.Classes[0]
	if cd.Name != "Point" {
		t.Fatalf("class name = %q, want Point", cd.Name)
	}
	if len(cd.Attrs) != 2 || !cd.Attrs[0].ReadOnly || cd.Attrs[1].ReadOnly {
		t.Fatalf("unexpected attrs: %+v", cd.Attrs)
	}
	if cd.Constructor != "Point" {
		t.Fatalf("constructor = %q, want Point", cd.Constructor)
	}
	if len(cd.Methods) != 2 {
		t.Fatalf("got %d methods, want 2", len(cd.Methods))
	}
}

func TestParseArrayTypeDepth(t *testing.T) {
	prog := mustParse(t, `int[][] grid;`)
	if len(prog.Globals) != 1 {
		t.Fatalf("got %d globals, want 1", len(prog.Globals))
	}
	if prog.Globals[0].Type.ArrayDepth != 2 {
		t.Fatalf("array depth = %d, want 2", prog.Globals[0].Type.ArrayDepth)
	}
}

func TestParseControlFlowShapes(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"if/else", `void f() { if (1 == 1) { } else { } }`},
		{"while", `void f() { while (true) { break; } }`},
		{"do-while", `void f() { do { } while (true); }`},
		{"for loop", `void f() { for (int i = 0; i < 10; i = i + 1) { continue; } }`},
		{"labeled loop", `void f() { outer: for (int i = 0; i < 10; i++) { break outer; } }`},
		{"switch", `void f() { switch (1) { case 1: break; default: break; } }`},
		{"ternary", `int f() { return true ? 1 : 2; }`},
		{"delete", `void f(Widget w) { delete w; }`},
		{"new object and array", `void f() { Widget w = new Widget(); int[] xs = new int[10]; }`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mustParse(t, test.source)
		})
	}
}

func TestParseErrorsRecoverAtTopLevel(t *testing.T) {
	// The first function is malformed (missing closing brace is fatal to
	// the whole block, so instead break it with a bad type name) but the
	// second, well-formed function should still be recovered and parsed.
	source := `
void broken( { }
int ok() { return 1; }
`
	prog, errs := Parse("test.ss", source, nil)
	if len(errs) == 0 {
		t.Fatal("expected at least one parse error")
	}
	found := false
	for _, fn := range prog.Functions {
		if fn.Name == "ok" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected recovery to still parse function 'ok', got functions: %+v", prog.Functions)
	}
}

type mapLoader map[string]string

func (m mapLoader) Load(path string) (string, error) {
	if src, ok := m[path]; ok {
		return src, nil
	}
	return "", &missingInclude{path}
}

type missingInclude struct{ path string }

func (m *missingInclude) Error() string { return "no such include: " + m.path }

func TestIncludeSplicesTokens(t *testing.T) {
	loader := mapLoader{"helper.ss": `int helper() { return 7; }`}
	prog, errs := Parse("main.ss", `@include "helper.ss"
int main() { return helper(); }`, loader)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(prog.Functions) != 2 {
		t.Fatalf("got %d functions after include, want 2", len(prog.Functions))
	}
}

func TestIncludeWithoutLoaderFails(t *testing.T) {
	_, errs := Parse("main.ss", `@include "helper.ss"`, nil)
	if len(errs) == 0 {
		t.Fatal("expected an error when no IncludeLoader is supplied")
	}
}

func TestIncludeDepthExceededFails(t *testing.T) {
	loader := make(mapLoader)
	// Build a chain of MaxIncludeDepth+2 includes, each pulling in the next.
	for i := 0; i < MaxIncludeDepth+2; i++ {
		this := includeName(i)
		next := includeName(i + 1)
		loader[this] = `@include "` + next + `"`
	}
	_, errs := Parse("main.ss", `@include "`+includeName(0)+`"`, loader)
	if len(errs) == 0 {
		t.Fatal("expected an error when include depth exceeds MaxIncludeDepth")
	}
}

func includeName(i int) string {
	return string(rune('a'+i)) + ".ss"
}

func TestParseFunctionSignatureShapes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []ast.Param
	}{
		{
			name:   "no params",
			source: `int zero() { return 0; }`,
			want:   nil,
		},
		{
			name:   "scalar params",
			source: `int add(int a, int b) { return a + b; }`,
			want: []ast.Param{
				{Type: ast.TypeName{Name: "int"}, Name: "a"},
				{Type: ast.TypeName{Name: "int"}, Name: "b"},
			},
		},
		{
			name:   "array param",
			source: `int sumAll(int[] xs) { return 0; }`,
			want: []ast.Param{
				{Type: ast.TypeName{Name: "int", ArrayDepth: 1}, Name: "xs"},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			prog := mustParse(t, test.source)
			got := prog.Functions[0].Params
			if diff := pretty.Diff(test.want, got); len(diff) > 0 {
				t.Fatalf("parsed parameter shape mismatch:\n%s", pretty.Sprint(diff))
			}
		})
	}
}
