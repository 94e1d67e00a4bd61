// Package optimizer implements the AST optimization pass (C5): constant
// folding, additive-chain flattening, and no-op removal. The pass is
// bottom-up and is required to be idempotent (spec §9 invariant O1: a
// second pass over already-optimized output changes nothing) and must
// never fold anything that could fail at runtime (division/modulo by
// zero, a narrowing cast that could overflow).
package optimizer

import (
	"github.com/spiderscript/spiderscript/internal/ast"
)

// MaxChainLength bounds how many terms an additive chain may have for the
// optimizer to flatten it; a longer chain is left exactly as parsed
// (spec §4.5).
const MaxChainLength = 32

// Optimize rewrites prog in place and returns it, folding constants and
// flattening additive chains wherever doing so is safe.
func Optimize(prog *ast.Program) *ast.Program {
	for _, fn := range prog.Functions {
		fn.Body = optimizeBlock(fn.Body)
	}
	for _, cd := range prog.Classes {
		for _, m := range cd.Methods {
			m.Body = optimizeBlock(m.Body)
		}
	}
	for _, g := range prog.Globals {
		g.Init = optimizeNode(g.Init)
	}
	return prog
}

func optimizeBlock(b *ast.Block) *ast.Block {
	if b == nil {
		return nil
	}
	out := make([]ast.Node, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		s = optimizeNode(s)
		if _, ok := s.(*ast.NoOp); ok {
			continue
		}
		out = append(out, s)
	}
	b.Stmts = out
	return b
}

// optimizeNode folds and simplifies a single node bottom-up. Children are
// always optimized first so folding sees already-simplified operands.
func optimizeNode(n ast.Node) ast.Node {
	switch v := n.(type) {
	case nil:
		return nil
	case *ast.Block:
		return optimizeBlock(v)
	case *ast.VarDecl:
		v.Init = optimizeNode(v.Init)
		return v
	case *ast.Return:
		v.Value = optimizeNode(v.Value)
		return v
	case *ast.If:
		v.Cond = optimizeNode(v.Cond)
		v.Then = optimizeNode(v.Then)
		v.Else = optimizeNode(v.Else)
		return v
	case *ast.Loop:
		v.Init = optimizeNode(v.Init)
		v.Cond = optimizeNode(v.Cond)
		v.Post = optimizeNode(v.Post)
		v.Body = optimizeNode(v.Body)
		return v
	case *ast.Switch:
		v.Subject = optimizeNode(v.Subject)
		for i := range v.Cases {
			v.Cases[i].Value = optimizeNode(v.Cases[i].Value)
			v.Cases[i].Body = optimizeNode(v.Cases[i].Body)
		}
		v.Default = optimizeNode(v.Default)
		return v
	case *ast.ExprStmt:
		v.Expr = optimizeNode(v.Expr)
		return v
	case *ast.Delete:
		v.Target = optimizeNode(v.Target)
		return v
	case *ast.Assign:
		v.Target = optimizeNode(v.Target)
		v.Value = optimizeNode(v.Value)
		return v
	case *ast.PostIncDec:
		v.Target = optimizeNode(v.Target)
		return v
	case *ast.Cast:
		v.Operand = optimizeNode(v.Operand)
		return foldCast(v)
	case *ast.ElementAccess:
		v.Object = optimizeNode(v.Object)
		return v
	case *ast.Index:
		v.Object = optimizeNode(v.Object)
		v.Index = optimizeNode(v.Index)
		return v
	case *ast.Call:
		for i := range v.Args {
			v.Args[i] = optimizeNode(v.Args[i])
		}
		return v
	case *ast.MethodCall:
		v.Object = optimizeNode(v.Object)
		for i := range v.Args {
			v.Args[i] = optimizeNode(v.Args[i])
		}
		return v
	case *ast.NewObject:
		for i := range v.Args {
			v.Args[i] = optimizeNode(v.Args[i])
		}
		return v
	case *ast.NewArray:
		v.Size = optimizeNode(v.Size)
		return v
	case *ast.ArrayLit:
		for i := range v.Elements {
			v.Elements[i] = optimizeNode(v.Elements[i])
		}
		return v
	case *ast.Unary:
		v.Operand = optimizeNode(v.Operand)
		return foldUnary(v)
	case *ast.Binary:
		v.Left = optimizeNode(v.Left)
		v.Right = optimizeNode(v.Right)
		return foldBinaryOrFlatten(v)
	case *ast.Ternary:
		v.Cond = optimizeNode(v.Cond)
		v.Then = optimizeNode(v.Then)
		v.Else = optimizeNode(v.Else)
		if b, ok := v.Cond.(*ast.BoolLit); ok {
			if b.Value {
				return v.Then
			}
			return v.Else
		}
		return v
	default:
		return n
	}
}

func intLit(n ast.Node) (*ast.IntLit, bool) { v, ok := n.(*ast.IntLit); return v, ok }
func realLit(n ast.Node) (*ast.RealLit, bool) { v, ok := n.(*ast.RealLit); return v, ok }
func boolLit(n ast.Node) (*ast.BoolLit, bool) { v, ok := n.(*ast.BoolLit); return v, ok }
func strLit(n ast.Node) (*ast.StringLit, bool) { v, ok := n.(*ast.StringLit); return v, ok }

func foldUnary(u *ast.Unary) ast.Node {
	switch u.Op {
	case ast.UnaryNeg:
		if i, ok := intLit(u.Operand); ok {
			return &ast.IntLit{Base: u.Base, Value: -i.Value}
		}
		if r, ok := realLit(u.Operand); ok {
			return &ast.RealLit{Base: u.Base, Value: -r.Value}
		}
	case ast.UnaryNot:
		if b, ok := boolLit(u.Operand); ok {
			return &ast.BoolLit{Base: u.Base, Value: !b.Value}
		}
	case ast.UnaryBitNot:
		if i, ok := intLit(u.Operand); ok {
			return &ast.IntLit{Base: u.Base, Value: ^i.Value}
		}
	}
	return u
}

// foldCast only folds int<->real literal casts; casts that could
// overflow (e.g. to a narrower native type) are left for the VM, which
// applies the exact runtime-checked conversion (spec §4.7).
func foldCast(c *ast.Cast) ast.Node {
	if len(c.Type.Namespace) != 0 || c.Type.ArrayDepth != 0 {
		return c
	}
	switch c.Type.Name {
	case "real":
		if i, ok := intLit(c.Operand); ok {
			return &ast.RealLit{Base: c.Base, Value: float64(i.Value)}
		}
	case "int":
		if r, ok := realLit(c.Operand); ok {
			return &ast.IntLit{Base: c.Base, Value: int64(r.Value)}
		}
	}
	return c
}

// foldBinaryOrFlatten folds a binary op over two constants of the same
// core kind, otherwise flattens a run of same-operator additive terms so
// the emitter can see them as one chain (spec §4.5). Division/modulo by
// a constant zero is deliberately never folded: it must raise
// ArithmeticError at runtime, not vanish at compile time.
func foldBinaryOrFlatten(b *ast.Binary) ast.Node {
	if folded := foldConstBinary(b); folded != nil {
		return folded
	}
	if b.Op == ast.BinAdd {
		return flattenAdditive(b)
	}
	return b
}

func foldConstBinary(b *ast.Binary) ast.Node {
	if li, lok := intLit(b.Left); lok {
		if ri, rok := intLit(b.Right); rok {
			return foldIntBinary(b, li.Value, ri.Value)
		}
	}
	if lr, lok := realLit(b.Left); lok {
		if rr, rok := realLit(b.Right); rok {
			return foldRealBinary(b, lr.Value, rr.Value)
		}
	}
	if lb, lok := boolLit(b.Left); lok {
		if rb, rok := boolLit(b.Right); rok {
			return foldBoolBinary(b, lb.Value, rb.Value)
		}
	}
	if ls, lok := strLit(b.Left); lok {
		if rs, rok := strLit(b.Right); rok {
			return foldStringBinary(b, ls.Value, rs.Value)
		}
	}
	return nil
}

func foldIntBinary(b *ast.Binary, l, r int64) ast.Node {
	switch b.Op {
	case ast.BinAdd:
		return &ast.IntLit{Base: b.Base, Value: l + r}
	case ast.BinSub:
		return &ast.IntLit{Base: b.Base, Value: l - r}
	case ast.BinMul:
		return &ast.IntLit{Base: b.Base, Value: l * r}
	case ast.BinDiv, ast.BinMod:
		if r == 0 {
			return nil // let the VM raise ArithmeticError
		}
		if b.Op == ast.BinDiv {
			return &ast.IntLit{Base: b.Base, Value: l / r}
		}
		return &ast.IntLit{Base: b.Base, Value: l % r}
	case ast.BinBitAnd:
		return &ast.IntLit{Base: b.Base, Value: l & r}
	case ast.BinBitOr:
		return &ast.IntLit{Base: b.Base, Value: l | r}
	case ast.BinBitXor:
		return &ast.IntLit{Base: b.Base, Value: l ^ r}
	case ast.BinShl:
		return &ast.IntLit{Base: b.Base, Value: l << (uint(r) & 63)}
	case ast.BinShr:
		return &ast.IntLit{Base: b.Base, Value: l >> (uint(r) & 63)}
	case ast.BinEq, ast.BinRefEq:
		return &ast.BoolLit{Base: b.Base, Value: l == r}
	case ast.BinNotEq, ast.BinRefNotEq:
		return &ast.BoolLit{Base: b.Base, Value: l != r}
	case ast.BinLt:
		return &ast.BoolLit{Base: b.Base, Value: l < r}
	case ast.BinLe:
		return &ast.BoolLit{Base: b.Base, Value: l <= r}
	case ast.BinGt:
		return &ast.BoolLit{Base: b.Base, Value: l > r}
	case ast.BinGe:
		return &ast.BoolLit{Base: b.Base, Value: l >= r}
	}
	return nil
}

func foldRealBinary(b *ast.Binary, l, r float64) ast.Node {
	switch b.Op {
	case ast.BinAdd:
		return &ast.RealLit{Base: b.Base, Value: l + r}
	case ast.BinSub:
		return &ast.RealLit{Base: b.Base, Value: l - r}
	case ast.BinMul:
		return &ast.RealLit{Base: b.Base, Value: l * r}
	case ast.BinDiv:
		return &ast.RealLit{Base: b.Base, Value: l / r}
	case ast.BinEq:
		return &ast.BoolLit{Base: b.Base, Value: l == r}
	case ast.BinNotEq:
		return &ast.BoolLit{Base: b.Base, Value: l != r}
	case ast.BinLt:
		return &ast.BoolLit{Base: b.Base, Value: l < r}
	case ast.BinLe:
		return &ast.BoolLit{Base: b.Base, Value: l <= r}
	case ast.BinGt:
		return &ast.BoolLit{Base: b.Base, Value: l > r}
	case ast.BinGe:
		return &ast.BoolLit{Base: b.Base, Value: l >= r}
	}
	return nil
}

func foldBoolBinary(b *ast.Binary, l, r bool) ast.Node {
	switch b.Op {
	case ast.BinLogicAnd:
		return &ast.BoolLit{Base: b.Base, Value: l && r}
	case ast.BinLogicOr:
		return &ast.BoolLit{Base: b.Base, Value: l || r}
	case ast.BinLogicXor:
		return &ast.BoolLit{Base: b.Base, Value: l != r}
	case ast.BinEq, ast.BinRefEq:
		return &ast.BoolLit{Base: b.Base, Value: l == r}
	case ast.BinNotEq, ast.BinRefNotEq:
		return &ast.BoolLit{Base: b.Base, Value: l != r}
	}
	return nil
}

func foldStringBinary(b *ast.Binary, l, r string) ast.Node {
	switch b.Op {
	case ast.BinAdd:
		return &ast.StringLit{Base: b.Base, Value: l + r}
	case ast.BinEq:
		return &ast.BoolLit{Base: b.Base, Value: l == r}
	case ast.BinNotEq:
		return &ast.BoolLit{Base: b.Base, Value: l != r}
	case ast.BinLt:
		return &ast.BoolLit{Base: b.Base, Value: l < r}
	case ast.BinLe:
		return &ast.BoolLit{Base: b.Base, Value: l <= r}
	case ast.BinGt:
		return &ast.BoolLit{Base: b.Base, Value: l > r}
	case ast.BinGe:
		return &ast.BoolLit{Base: b.Base, Value: l >= r}
	}
	return nil
}

// flattenAdditive collects a left-leaning chain of `+` nodes into a
// single left-associative spine capped at MaxChainLength terms, merging
// adjacent constant terms along the way. Idempotent: a chain already at
// or under the cap with no adjacent constants is returned unchanged.
func flattenAdditive(root *ast.Binary) ast.Node {
	var terms []ast.Node
	collectAdditiveTerms(root, &terms)
	if len(terms) <= 2 {
		return root
	}
	if len(terms) > MaxChainLength {
		// Too long to safely flatten: leave the chain exactly as parsed
		// rather than discard terms, which would silently compute the
		// wrong value.
		return root
	}

	merged := []ast.Node{terms[0]}
	for _, t := range terms[1:] {
		last := merged[len(merged)-1]
		if li, ok := intLit(last); ok {
			if ri, ok := intLit(t); ok {
				merged[len(merged)-1] = &ast.IntLit{Base: root.Base, Value: li.Value + ri.Value}
				continue
			}
		}
		if ls, ok := strLit(last); ok {
			if rs, ok := strLit(t); ok {
				merged[len(merged)-1] = &ast.StringLit{Base: root.Base, Value: ls.Value + rs.Value}
				continue
			}
		}
		merged = append(merged, t)
	}
	if len(merged) == 1 {
		return merged[0]
	}
	out := merged[0]
	for _, t := range merged[1:] {
		out = &ast.Binary{Base: root.Base, Op: ast.BinAdd, Left: out, Right: t}
	}
	return out
}

func collectAdditiveTerms(n ast.Node, out *[]ast.Node) {
	if b, ok := n.(*ast.Binary); ok && b.Op == ast.BinAdd {
		collectAdditiveTerms(b.Left, out)
		collectAdditiveTerms(b.Right, out)
		return
	}
	*out = append(*out, n)
}
