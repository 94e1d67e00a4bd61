package optimizer

import (
	"testing"

	"github.com/spiderscript/spiderscript/internal/ast"
)

func wrapExpr(e ast.Node) *ast.Program {
	return &ast.Program{Functions: []*ast.FuncDecl{{
		Body: &ast.Block{Stmts: []ast.Node{&ast.ExprStmt{Expr: e}}},
	}}}
}

func optimizedExpr(t *testing.T, e ast.Node) ast.Node {
	t.Helper()
	prog := Optimize(wrapExpr(e))
	return prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt).Expr
}

func TestFoldIntArithmetic(t *testing.T) {
	expr := &ast.Binary{Op: ast.BinAdd, Left: &ast.IntLit{Value: 2}, Right: &ast.IntLit{Value: 3}}
	got := optimizedExpr(t, expr)
	i, ok := got.(*ast.IntLit)
	if !ok || i.Value != 5 {
		t.Fatalf("2+3 folded to %+v, want IntLit{5}", got)
	}
}

func TestDivisionByZeroIsNeverFolded(t *testing.T) {
	expr := &ast.Binary{Op: ast.BinDiv, Left: &ast.IntLit{Value: 10}, Right: &ast.IntLit{Value: 0}}
	got := optimizedExpr(t, expr)
	if _, ok := got.(*ast.Binary); !ok {
		t.Fatalf("division by a literal zero folded to %+v, want it left as a Binary for the VM to raise at runtime", got)
	}
}

func TestModuloByZeroIsNeverFolded(t *testing.T) {
	expr := &ast.Binary{Op: ast.BinMod, Left: &ast.IntLit{Value: 10}, Right: &ast.IntLit{Value: 0}}
	got := optimizedExpr(t, expr)
	if _, ok := got.(*ast.Binary); !ok {
		t.Fatalf("modulo by a literal zero folded to %+v, want it left as a Binary", got)
	}
}

func TestFoldStringConcat(t *testing.T) {
	expr := &ast.Binary{Op: ast.BinAdd, Left: &ast.StringLit{Value: "foo"}, Right: &ast.StringLit{Value: "bar"}}
	got := optimizedExpr(t, expr)
	s, ok := got.(*ast.StringLit)
	if !ok || s.Value != "foobar" {
		t.Fatalf(`"foo"+"bar" folded to %+v, want StringLit{"foobar"}`, got)
	}
}

func TestFoldUnaryNegationAndNot(t *testing.T) {
	neg := optimizedExpr(t, &ast.Unary{Op: ast.UnaryNeg, Operand: &ast.IntLit{Value: 5}})
	if i, ok := neg.(*ast.IntLit); !ok || i.Value != -5 {
		t.Fatalf("-5 folded to %+v", neg)
	}
	not := optimizedExpr(t, &ast.Unary{Op: ast.UnaryNot, Operand: &ast.BoolLit{Value: true}})
	if b, ok := not.(*ast.BoolLit); !ok || b.Value != false {
		t.Fatalf("!true folded to %+v", not)
	}
}

func TestFoldIntToRealCast(t *testing.T) {
	got := optimizedExpr(t, &ast.Cast{Type: ast.TypeName{Name: "real"}, Operand: &ast.IntLit{Value: 3}})
	r, ok := got.(*ast.RealLit)
	if !ok || r.Value != 3.0 {
		t.Fatalf("(real)3 folded to %+v, want RealLit{3.0}", got)
	}
}

func TestConstantTernaryCollapsesToTakenBranch(t *testing.T) {
	got := optimizedExpr(t, &ast.Ternary{
		Cond: &ast.BoolLit{Value: true},
		Then: &ast.IntLit{Value: 1},
		Else: &ast.IntLit{Value: 2},
	})
	if i, ok := got.(*ast.IntLit); !ok || i.Value != 1 {
		t.Fatalf("true ? 1 : 2 folded to %+v, want IntLit{1}", got)
	}
}

func TestNoOpStatementsAreDropped(t *testing.T) {
	prog := &ast.Program{Functions: []*ast.FuncDecl{{
		Body: &ast.Block{Stmts: []ast.Node{
			&ast.NoOp{},
			&ast.ExprStmt{Expr: &ast.IntLit{Value: 1}},
			&ast.NoOp{},
		}},
	}}}
	out := Optimize(prog)
	if len(out.Functions[0].Body.Stmts) != 1 {
		t.Fatalf("got %d statements after dropping no-ops, want 1", len(out.Functions[0].Body.Stmts))
	}
}

func TestAdditiveChainFlattensAndMergesConstants(t *testing.T) {
	// (((1 + x) + 2) + 3) should merge the adjacent constants 2 and 3 into
	// one tail term, leaving 1 and x in place ahead of it.
	x := &ast.VarRef{Name: "x"}
	chain := &ast.Binary{Op: ast.BinAdd,
		Left: &ast.Binary{Op: ast.BinAdd,
			Left:  &ast.Binary{Op: ast.BinAdd, Left: &ast.IntLit{Value: 1}, Right: x},
			Right: &ast.IntLit{Value: 2},
		},
		Right: &ast.IntLit{Value: 3},
	}
	got := optimizedExpr(t, chain)
	var terms []ast.Node
	collectAdditiveTerms(got, &terms)
	if len(terms) != 3 {
		t.Fatalf("flattened chain has %d terms, want 3 (1, x, merged literal); got %+v", len(terms), terms)
	}
	if lit, ok := terms[0].(*ast.IntLit); !ok || lit.Value != 1 {
		t.Fatalf("first term = %+v, want IntLit{1}", terms[0])
	}
	if ref, ok := terms[1].(*ast.VarRef); !ok || ref.Name != "x" {
		t.Fatalf("second term = %+v, want VarRef x", terms[1])
	}
	lit, ok := terms[2].(*ast.IntLit)
	if !ok || lit.Value != 2+3 {
		t.Fatalf("merged literal term = %+v, want IntLit{5}", terms[2])
	}
}

// evalIntChain evaluates a tree of nested int +-Binary nodes (the shape
// flattenAdditive either folds or leaves untouched), used to check that
// an over-the-cap chain still computes its correct total.
func evalIntChain(t *testing.T, n ast.Node) int64 {
	t.Helper()
	switch v := n.(type) {
	case *ast.IntLit:
		return v.Value
	case *ast.Binary:
		if v.Op != ast.BinAdd {
			t.Fatalf("unexpected op in chain: %+v", v)
		}
		return evalIntChain(t, v.Left) + evalIntChain(t, v.Right)
	default:
		t.Fatalf("unexpected node in chain: %+v", n)
		return 0
	}
}

func TestAdditiveChainOverTheCapIsNotTruncated(t *testing.T) {
	const n = MaxChainLength + 8
	chain := ast.Node(&ast.IntLit{Value: 1})
	for i := 1; i < n; i++ {
		chain = &ast.Binary{Op: ast.BinAdd, Left: chain, Right: &ast.IntLit{Value: 1}}
	}
	got := optimizedExpr(t, chain)
	if sum := evalIntChain(t, got); sum != n {
		t.Fatalf("a %d-term chain of 1's evaluates to %d after optimization, want %d (terms must never be dropped)", n, sum, n)
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	x := &ast.VarRef{Name: "x"}
	expr := &ast.Binary{Op: ast.BinAdd,
		Left:  &ast.Binary{Op: ast.BinMul, Left: &ast.IntLit{Value: 2}, Right: &ast.IntLit{Value: 3}},
		Right: x,
	}
	once := Optimize(wrapExpr(expr))
	twice := Optimize(once)
	gotOnce := once.Functions[0].Body.Stmts[0].(*ast.ExprStmt).Expr
	gotTwice := twice.Functions[0].Body.Stmts[0].(*ast.ExprStmt).Expr
	if !sameShape(gotOnce, gotTwice) {
		t.Fatalf("second optimization pass changed the tree: %+v -> %+v", gotOnce, gotTwice)
	}
}

// sameShape is a small structural comparison sufficient for the node
// shapes this test produces; it does not need to be a general AST-equal.
func sameShape(a, b ast.Node) bool {
	switch av := a.(type) {
	case *ast.IntLit:
		bv, ok := b.(*ast.IntLit)
		return ok && av.Value == bv.Value
	case *ast.VarRef:
		bv, ok := b.(*ast.VarRef)
		return ok && av.Name == bv.Name
	case *ast.Binary:
		bv, ok := b.(*ast.Binary)
		return ok && av.Op == bv.Op && sameShape(av.Left, bv.Left) && sameShape(av.Right, bv.Right)
	default:
		return false
	}
}
