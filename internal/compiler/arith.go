package compiler

import (
	"github.com/spiderscript/spiderscript/internal/ast"
	"github.com/spiderscript/spiderscript/internal/emitter"
	scripterrors "github.com/spiderscript/spiderscript/internal/errors"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

func (fs *funcState) compileUnary(v *ast.Unary) (int, sstypes.Ref, *scripterrors.ScriptError) {
	reg, typ, err := fs.compileExpr(v.Operand)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	dst, aerr := fs.b.Alloc()
	if aerr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", aerr.Error())
	}
	switch v.Op {
	case ast.UnaryNeg:
		switch {
		case typ.IsCore(sstypes.Int):
			fs.b.Emit(emitter.Instr{Op: emitter.OpIntNeg, A: dst, B: reg, Line: v.Pos.Line})
			return dst, typ, nil
		case typ.IsCore(sstypes.Real):
			fs.b.Emit(emitter.Instr{Op: emitter.OpRealNeg, A: dst, B: reg, Line: v.Pos.Line})
			return dst, typ, nil
		}
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "unary - requires int or real, got %s", typ)
	case ast.UnaryNot:
		if !typ.IsCore(sstypes.Bool) {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "! requires bool, got %s", typ)
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpBoolLogicNot, A: dst, B: reg, Line: v.Pos.Line})
		return dst, typ, nil
	case ast.UnaryBitNot:
		if !typ.IsCore(sstypes.Int) {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "~ requires int, got %s", typ)
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpIntBitNot, A: dst, B: reg, Line: v.Pos.Line})
		return dst, typ, nil
	}
	return 0, sstypes.Ref{}, fs.errAt(v.Pos, "unsupported unary operator %s", v.Op)
}

func (fs *funcState) compileBinary(v *ast.Binary) (int, sstypes.Ref, *scripterrors.ScriptError) {
	switch v.Op {
	case ast.BinLogicAnd, ast.BinLogicOr:
		return fs.compileShortCircuit(v)
	}
	lReg, lType, err := fs.compileExpr(v.Left)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	rReg, rType, err := fs.compileExpr(v.Right)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if v.Op == ast.BinRefEq || v.Op == ast.BinRefNotEq {
		if !lType.IsReference() && lType.Def != nil || !rType.IsReference() && rType.Def != nil {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "=== and !== require reference-typed operands")
		}
		dst, aerr := fs.b.Alloc()
		if aerr != nil {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", aerr.Error())
		}
		op := emitter.OpRefEq
		if v.Op == ast.BinRefNotEq {
			op = emitter.OpRefNEq
		}
		fs.b.Emit(emitter.Instr{Op: op, A: dst, B: lReg, C: rReg, Line: v.Pos.Line})
		return dst, sstypes.BoolType, nil
	}
	dst, aerr := fs.emitArith(v.Op, lReg, lType, rReg, rType, v.Pos.Line)
	if aerr != nil {
		return 0, sstypes.Ref{}, aerr
	}
	switch v.Op {
	case ast.BinEq, ast.BinNotEq, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe, ast.BinLogicXor:
		return dst, sstypes.BoolType, nil
	}
	if lType.Equal(rType) {
		return dst, lType, nil
	}
	return dst, sstypes.RealType, nil
}

// compileShortCircuit lowers && and || to a conditional jump around the
// right operand's evaluation, matching the VM's need for lazy evaluation
// (spec §4.6). ^^ is not short-circuit (both sides always evaluated:
// there's no ordering constraint to preserve).
func (fs *funcState) compileShortCircuit(v *ast.Binary) (int, sstypes.Ref, *scripterrors.ScriptError) {
	lReg, lType, err := fs.compileExpr(v.Left)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if !lType.IsCore(sstypes.Bool) {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s requires bool operands, got %s", v.Op, lType)
	}
	dst, aerr := fs.b.Alloc()
	if aerr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", aerr.Error())
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpMov, A: dst, B: lReg, Line: v.Pos.Line})

	skip := fs.b.NewLabel()
	if v.Op == ast.BinLogicAnd {
		fs.b.EmitJump(emitter.OpJumpIfNot, dst, skip, v.Pos.Line)
	} else {
		fs.b.EmitJump(emitter.OpJumpIf, dst, skip, v.Pos.Line)
	}
	rReg, rType, err := fs.compileExpr(v.Right)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if !rType.IsCore(sstypes.Bool) {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s requires bool operands, got %s", v.Op, rType)
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpMov, A: dst, B: rReg, Line: v.Pos.Line})
	fs.b.Bind(skip)
	return dst, sstypes.BoolType, nil
}

// emitArith type-checks and emits a typed binary opcode for +, -, *, /,
// %, bitwise, shift, and comparison operators, plus string `+`. Shared
// between ordinary binary expressions and compound-assignment lowering.
func (fs *funcState) emitArith(op ast.BinOp, lReg int, lType sstypes.Ref, rReg int, rType sstypes.Ref, line int) (int, *scripterrors.ScriptError) {
	errAt := func(format string, args ...interface{}) *scripterrors.ScriptError {
		return scripterrors.At(scripterrors.Compile, fs.file, line, format, args...)
	}

	switch {
	case op == ast.BinLogicXor:
		if !lType.IsCore(sstypes.Bool) || !rType.IsCore(sstypes.Bool) {
			return 0, errAt("^^ requires bool operands, got %s and %s", lType, rType)
		}
		dst, err := fs.b.Alloc()
		if err != nil {
			return 0, errAt("%s", err.Error())
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpBoolLogicXor, A: dst, B: lReg, C: rReg, Line: line})
		return dst, nil

	case lType.IsCore(sstypes.String) && rType.IsCore(sstypes.String):
		dst, err := fs.b.Alloc()
		if err != nil {
			return 0, errAt("%s", err.Error())
		}
		strOp, ok := stringOps[op]
		if !ok {
			return 0, errAt("operator %s is not defined for string", op)
		}
		fs.b.Emit(emitter.Instr{Op: strOp, A: dst, B: lReg, C: rReg, Line: line})
		if op == ast.BinAdd {
			return dst, nil
		}
		return dst, nil

	case lType.IsCore(sstypes.Int) && rType.IsCore(sstypes.Int):
		dst, err := fs.b.Alloc()
		if err != nil {
			return 0, errAt("%s", err.Error())
		}
		intOp, ok := intOps[op]
		if !ok {
			return 0, errAt("operator %s is not defined for int", op)
		}
		fs.b.Emit(emitter.Instr{Op: intOp, A: dst, B: lReg, C: rReg, Line: line})
		return dst, nil

	case (lType.IsCore(sstypes.Real) || lType.IsCore(sstypes.Int)) && (rType.IsCore(sstypes.Real) || rType.IsCore(sstypes.Int)):
		if !fs.c.variant.ImplicitCasts {
			return 0, errAt("operator %s requires matching int/real operands (implicit casts disabled)", op)
		}
		lReg = fs.widenToReal(lReg, lType, line)
		rReg = fs.widenToReal(rReg, rType, line)
		realOp, ok := realOps[op]
		if !ok {
			return 0, errAt("operator %s is not defined for real", op)
		}
		dst, err := fs.b.Alloc()
		if err != nil {
			return 0, errAt("%s", err.Error())
		}
		fs.b.Emit(emitter.Instr{Op: realOp, A: dst, B: lReg, C: rReg, Line: line})
		return dst, nil

	case lType.IsCore(sstypes.Bool) && rType.IsCore(sstypes.Bool):
		boolOp, ok := boolOps[op]
		if !ok {
			return 0, errAt("operator %s is not defined for bool", op)
		}
		dst, err := fs.b.Alloc()
		if err != nil {
			return 0, errAt("%s", err.Error())
		}
		fs.b.Emit(emitter.Instr{Op: boolOp, A: dst, B: lReg, C: rReg, Line: line})
		return dst, nil
	}
	return 0, errAt("operator %s is not defined for %s and %s", op, lType, rType)
}

func (fs *funcState) widenToReal(reg int, typ sstypes.Ref, line int) int {
	if typ.IsCore(sstypes.Real) {
		return reg
	}
	dst, _ := fs.b.Alloc()
	fs.b.Emit(emitter.Instr{Op: emitter.OpCast, A: dst, B: reg, Type: sstypes.RealType, Line: line})
	return dst
}

var intOps = map[ast.BinOp]emitter.Op{
	ast.BinAdd: emitter.OpIntAdd, ast.BinSub: emitter.OpIntSub, ast.BinMul: emitter.OpIntMul,
	ast.BinDiv: emitter.OpIntDiv, ast.BinMod: emitter.OpIntMod,
	ast.BinBitAnd: emitter.OpIntBitAnd, ast.BinBitOr: emitter.OpIntBitOr, ast.BinBitXor: emitter.OpIntBitXor,
	ast.BinShl: emitter.OpIntShl, ast.BinShr: emitter.OpIntShr,
	ast.BinEq: emitter.OpIntEq, ast.BinNotEq: emitter.OpIntNotEq,
	ast.BinLt: emitter.OpIntLt, ast.BinLe: emitter.OpIntLe, ast.BinGt: emitter.OpIntGt, ast.BinGe: emitter.OpIntGe,
}

var realOps = map[ast.BinOp]emitter.Op{
	ast.BinAdd: emitter.OpRealAdd, ast.BinSub: emitter.OpRealSub, ast.BinMul: emitter.OpRealMul, ast.BinDiv: emitter.OpRealDiv,
	ast.BinEq: emitter.OpRealEq, ast.BinNotEq: emitter.OpRealNotEq,
	ast.BinLt: emitter.OpRealLt, ast.BinLe: emitter.OpRealLe, ast.BinGt: emitter.OpRealGt, ast.BinGe: emitter.OpRealGe,
}

var stringOps = map[ast.BinOp]emitter.Op{
	ast.BinAdd: emitter.OpStrAdd, ast.BinEq: emitter.OpStrEq, ast.BinNotEq: emitter.OpStrNotEq,
	ast.BinLt: emitter.OpStrLt, ast.BinLe: emitter.OpStrLe, ast.BinGt: emitter.OpStrGt, ast.BinGe: emitter.OpStrGe,
}

var boolOps = map[ast.BinOp]emitter.Op{
	ast.BinEq: emitter.OpBoolEquals, ast.BinLogicAnd: emitter.OpBoolLogicAnd, ast.BinLogicOr: emitter.OpBoolLogicOr,
}

func (fs *funcState) compileTernary(v *ast.Ternary) (int, sstypes.Ref, *scripterrors.ScriptError) {
	condReg, condType, err := fs.compileExpr(v.Cond)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if !condType.IsCore(sstypes.Bool) {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "ternary condition must be bool, got %s", condType)
	}
	dst, aerr := fs.b.Alloc()
	if aerr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", aerr.Error())
	}
	elseLbl := fs.b.NewLabel()
	endLbl := fs.b.NewLabel()
	fs.b.EmitJump(emitter.OpJumpIfNot, condReg, elseLbl, v.Pos.Line)
	thenReg, thenType, err := fs.compileExpr(v.Then)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpMov, A: dst, B: thenReg, Line: v.Pos.Line})
	fs.b.EmitJump(emitter.OpJump, 0, endLbl, v.Pos.Line)
	fs.b.Bind(elseLbl)
	elseReg, elseType, err := fs.compileExpr(v.Else)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if !thenType.Equal(elseType) {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "ternary branches have different types: %s and %s", thenType, elseType)
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpMov, A: dst, B: elseReg, Line: v.Pos.Line})
	fs.b.Bind(endLbl)
	return dst, thenType, nil
}
