package compiler

import (
	"github.com/spiderscript/spiderscript/internal/ast"
	"github.com/spiderscript/spiderscript/internal/emitter"
	scripterrors "github.com/spiderscript/spiderscript/internal/errors"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

func (fs *funcState) compileBlock(b *ast.Block) *scripterrors.ScriptError {
	fs.b.Emit(emitter.Instr{Op: emitter.OpEnterContext, Line: b.Pos.Line})
	fs.pushScope()
	for _, s := range b.Stmts {
		if err := fs.compileStmt(s); err != nil {
			return err
		}
	}
	fs.popScope()
	fs.b.Emit(emitter.Instr{Op: emitter.OpLeaveContext, Line: b.Pos.Line})
	return nil
}

func (fs *funcState) compileStmt(n ast.Node) *scripterrors.ScriptError {
	switch v := n.(type) {
	case *ast.NoOp:
		return nil
	case *ast.Block:
		return fs.compileBlock(v)
	case *ast.VarDecl:
		return fs.compileVarDecl(v)
	case *ast.Return:
		return fs.compileReturn(v)
	case *ast.If:
		return fs.compileIf(v)
	case *ast.Loop:
		return fs.compileLoop(v)
	case *ast.Switch:
		return fs.compileSwitch(v)
	case *ast.Break:
		return fs.compileBreakContinue(v.Base.Pos, v.Tag, true)
	case *ast.Continue:
		return fs.compileBreakContinue(v.Base.Pos, v.Tag, false)
	case *ast.Delete:
		return fs.compileDelete(v)
	case *ast.ExprStmt:
		_, _, err := fs.compileExpr(v.Expr)
		return err
	default:
		return fs.errAt(n.NodePos(), "unsupported statement node %T", n)
	}
}

func (fs *funcState) compileVarDecl(v *ast.VarDecl) *scripterrors.ScriptError {
	typ, err := typeNameToRef(fs.c.variant, v.Type)
	if err != nil {
		return fs.errAt(v.Pos, "%s", err.Error())
	}
	reg, aerr := fs.declareLocal(v.Name, typ)
	if aerr != nil {
		return fs.errAt(v.Pos, "%s", aerr.Error())
	}
	if v.Init == nil {
		fs.b.Emit(emitter.Instr{Op: emitter.OpLoadNullRef, A: reg, Line: v.Pos.Line})
		return nil
	}
	srcReg, srcType, serr := fs.compileExpr(v.Init)
	if serr != nil {
		return serr
	}
	if !fs.assignable(typ, srcType) {
		return fs.errAt(v.Pos, "cannot initialize %s with %s", typ, srcType)
	}
	fs.emitConvertingMove(reg, srcReg, typ, srcType, v.Pos.Line)
	return nil
}

func (fs *funcState) compileReturn(v *ast.Return) *scripterrors.ScriptError {
	if v.Value == nil {
		if !fs.retType.IsCore(sstypes.Void) {
			return fs.errAt(v.Pos, "missing return value for non-void function")
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpReturn, A: -1, Line: v.Pos.Line})
		return nil
	}
	reg, typ, err := fs.compileExpr(v.Value)
	if err != nil {
		return err
	}
	if !fs.assignable(fs.retType, typ) {
		return fs.errAt(v.Pos, "cannot return %s from function declared to return %s", typ, fs.retType)
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpReturn, A: reg, Line: v.Pos.Line})
	return nil
}

func (fs *funcState) compileIf(v *ast.If) *scripterrors.ScriptError {
	condReg, condType, err := fs.compileExpr(v.Cond)
	if err != nil {
		return err
	}
	if !condType.IsCore(sstypes.Bool) {
		return fs.errAt(v.Pos, "if condition must be bool, got %s", condType)
	}
	elseLbl := fs.b.NewLabel()
	fs.b.EmitJump(emitter.OpJumpIfNot, condReg, elseLbl, v.Pos.Line)
	if err := fs.compileStmt(v.Then); err != nil {
		return err
	}
	if v.Else == nil {
		fs.b.Bind(elseLbl)
		return nil
	}
	endLbl := fs.b.NewLabel()
	fs.b.EmitJump(emitter.OpJump, 0, endLbl, v.Pos.Line)
	fs.b.Bind(elseLbl)
	if err := fs.compileStmt(v.Else); err != nil {
		return err
	}
	fs.b.Bind(endLbl)
	return nil
}

// compileLoop lowers while/do-while/for (unified in ast.Loop) to labeled
// jumps. continueLbl targets the post-expression (for for-loops) or the
// condition re-check (for while/do-while); breakLbl targets the
// statement following the loop (spec §4.6).
func (fs *funcState) compileLoop(v *ast.Loop) *scripterrors.ScriptError {
	fs.pushScope()
	defer fs.popScope()

	if v.Init != nil {
		if err := fs.compileStmt(v.Init); err != nil {
			return err
		}
	}

	startLbl := fs.b.NewLabel()
	condLbl := fs.b.NewLabel()
	continueLbl := fs.b.NewLabel()
	breakLbl := fs.b.NewLabel()

	fs.loops = append(fs.loops, loopCtx{tag: v.Tag, breakLbl: breakLbl, continueLbl: continueLbl})
	defer func() { fs.loops = fs.loops[:len(fs.loops)-1] }()

	if v.PostCheck {
		// do { body } while (cond)
		fs.b.Bind(startLbl)
		if err := fs.compileStmt(v.Body); err != nil {
			return err
		}
		fs.b.Bind(continueLbl)
		if v.Cond != nil {
			condReg, condType, err := fs.compileExpr(v.Cond)
			if err != nil {
				return err
			}
			if !condType.IsCore(sstypes.Bool) {
				return fs.errAt(v.Pos, "loop condition must be bool, got %s", condType)
			}
			fs.b.EmitJump(emitter.OpJumpIf, condReg, startLbl, v.Pos.Line)
		} else {
			fs.b.EmitJump(emitter.OpJump, 0, startLbl, v.Pos.Line)
		}
		fs.b.Bind(breakLbl)
		return nil
	}

	// while (cond) body, and for(init; cond; post) body.
	fs.b.Bind(condLbl)
	if v.Cond != nil {
		condReg, condType, err := fs.compileExpr(v.Cond)
		if err != nil {
			return err
		}
		if !condType.IsCore(sstypes.Bool) {
			return fs.errAt(v.Pos, "loop condition must be bool, got %s", condType)
		}
		fs.b.EmitJump(emitter.OpJumpIfNot, condReg, breakLbl, v.Pos.Line)
	}
	if err := fs.compileStmt(v.Body); err != nil {
		return err
	}
	fs.b.Bind(continueLbl)
	if v.Post != nil {
		if err := fs.compileStmt(v.Post); err != nil {
			return err
		}
	}
	fs.b.EmitJump(emitter.OpJump, 0, condLbl, v.Pos.Line)
	fs.b.Bind(breakLbl)
	return nil
}

// compileSwitch lowers to a chain of equality tests against the subject;
// each case body ends with a jump past the whole switch, so control never
// falls through into the next case (spec §4.6: switch is sugar over
// if/else-if).
func (fs *funcState) compileSwitch(v *ast.Switch) *scripterrors.ScriptError {
	subjReg, subjType, err := fs.compileExpr(v.Subject)
	if err != nil {
		return err
	}

	breakLbl := fs.b.NewLabel()
	fs.loops = append(fs.loops, loopCtx{breakLbl: breakLbl, continueLbl: breakLbl, isSwitch: true})
	defer func() { fs.loops = fs.loops[:len(fs.loops)-1] }()

	var nextLbls []emitter.Label
	for range v.Cases {
		nextLbls = append(nextLbls, fs.b.NewLabel())
	}
	endLbl := fs.b.NewLabel()

	for i, cc := range v.Cases {
		valReg, valType, err := fs.compileExpr(cc.Value)
		if err != nil {
			return err
		}
		if !valType.Equal(subjType) {
			return fs.errAt(v.Pos, "case value type %s does not match switch subject type %s", valType, subjType)
		}
		eqReg, eerr := fs.emitEquals(subjType, subjReg, valReg, v.Pos.Line)
		if eerr != nil {
			return eerr
		}
		fs.b.EmitJump(emitter.OpJumpIfNot, eqReg, nextLbls[i], v.Pos.Line)
		if err := fs.compileStmt(cc.Body); err != nil {
			return err
		}
		fs.b.EmitJump(emitter.OpJump, 0, endLbl, v.Pos.Line)
		fs.b.Bind(nextLbls[i])
	}
	if v.Default != nil {
		if err := fs.compileStmt(v.Default); err != nil {
			return err
		}
	}
	fs.b.Bind(endLbl)
	fs.b.Bind(breakLbl)
	return nil
}

func (fs *funcState) compileBreakContinue(p ast.Pos, tag string, isBreak bool) *scripterrors.ScriptError {
	for i := len(fs.loops) - 1; i >= 0; i-- {
		if !isBreak && fs.loops[i].isSwitch && tag == "" {
			// unlabeled continue passes through a switch to find the
			// enclosing loop instead of stopping at the switch's end.
			continue
		}
		if tag == "" || fs.loops[i].tag == tag {
			target := fs.loops[i].continueLbl
			if isBreak {
				target = fs.loops[i].breakLbl
			}
			fs.b.EmitJump(emitter.OpJump, 0, target, p.Line)
			return nil
		}
	}
	what := "break"
	if !isBreak {
		what = "continue"
	}
	if tag != "" {
		return fs.errAt(p, "%s: no enclosing loop tagged %q", what, tag)
	}
	return fs.errAt(p, "%s outside a loop", what)
}

// compileDelete sets a reference-typed target to null. Per spec §9's
// open question, a non-reference target is a compile-time diagnostic
// but otherwise a no-op (it cannot fail at runtime).
func (fs *funcState) compileDelete(v *ast.Delete) *scripterrors.ScriptError {
	reg, typ, err := fs.compileLValue(v.Target)
	if err != nil {
		return err
	}
	if !typ.IsReference() {
		fs.c.errs = append(fs.c.errs, fs.errAt(v.Pos, "delete has no effect on non-reference type %s", typ))
		return nil
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpLoadNullRef, A: reg, Line: v.Pos.Line})
	return nil
}
