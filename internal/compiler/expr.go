package compiler

import (
	"github.com/spiderscript/spiderscript/internal/ast"
	"github.com/spiderscript/spiderscript/internal/emitter"
	scripterrors "github.com/spiderscript/spiderscript/internal/errors"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

func (fs *funcState) assignable(dst, src sstypes.Ref) bool {
	if src.Def == nil { // null literal
		return dst.IsReference()
	}
	return sstypes.AssignableFrom(dst, src, fs.c.variant.ImplicitCasts)
}

// emitConvertingMove stores src into dst, inserting an OpCast if an
// implicit int->real widening applies; otherwise a plain OpMov.
func (fs *funcState) emitConvertingMove(dstReg, srcReg int, dstType, srcType sstypes.Ref, line int) {
	if srcType.Def != nil && dstType.IsCore(sstypes.Real) && srcType.IsCore(sstypes.Int) {
		fs.b.Emit(emitter.Instr{Op: emitter.OpCast, A: dstReg, B: srcReg, Type: dstType, Line: line})
		return
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpMov, A: dstReg, B: srcReg, Line: line})
}

func (fs *funcState) emitEquals(typ sstypes.Ref, a, b, line int) (int, *scripterrors.ScriptError) {
	dst, err := fs.b.Alloc()
	if err != nil {
		return 0, scripterrors.At(scripterrors.Compile, fs.file, line, "%s", err.Error())
	}
	op := emitter.OpRefEq
	switch {
	case typ.IsCore(sstypes.Bool):
		op = emitter.OpBoolEquals
	case typ.IsCore(sstypes.Int):
		op = emitter.OpIntEq
	case typ.IsCore(sstypes.Real):
		op = emitter.OpRealEq
	case typ.IsCore(sstypes.String):
		op = emitter.OpStrEq
	}
	fs.b.Emit(emitter.Instr{Op: op, A: dst, B: a, C: b, Line: line})
	return dst, nil
}

// compileExpr type-checks and emits code for an expression, returning
// the register holding its value and its static type.
func (fs *funcState) compileExpr(n ast.Node) (int, sstypes.Ref, *scripterrors.ScriptError) {
	switch v := n.(type) {
	case *ast.NullLit:
		reg, err := fs.b.Alloc()
		if err != nil {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", err.Error())
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpLoadNullRef, A: reg, Line: v.Pos.Line})
		return reg, sstypes.Ref{}, nil
	case *ast.BoolLit:
		reg, err := fs.allocAndLoadBool(v.Value, v.Pos.Line)
		return reg, sstypes.BoolType, err
	case *ast.IntLit:
		reg, err := fs.b.Alloc()
		if err != nil {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", err.Error())
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpLoadInt, A: reg, Int: v.Value, Line: v.Pos.Line})
		return reg, sstypes.IntType, nil
	case *ast.RealLit:
		reg, err := fs.b.Alloc()
		if err != nil {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", err.Error())
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpLoadReal, A: reg, Real: v.Value, Line: v.Pos.Line})
		return reg, sstypes.RealType, nil
	case *ast.StringLit:
		reg, err := fs.b.Alloc()
		if err != nil {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", err.Error())
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpLoadString, A: reg, Str: v.Value, Line: v.Pos.Line})
		return reg, sstypes.StringType, nil
	case *ast.VarRef:
		return fs.compileVarRef(v)
	case *ast.Assign:
		return fs.compileAssign(v)
	case *ast.PostIncDec:
		return fs.compilePostIncDec(v)
	case *ast.Cast:
		return fs.compileCast(v)
	case *ast.ElementAccess:
		return fs.compileElementAccess(v)
	case *ast.Index:
		return fs.compileIndex(v)
	case *ast.Call:
		return fs.compileCall(v)
	case *ast.MethodCall:
		return fs.compileMethodCall(v)
	case *ast.NewObject:
		return fs.compileNewObject(v)
	case *ast.NewArray:
		return fs.compileNewArray(v)
	case *ast.ArrayLit:
		return fs.compileArrayLit(v)
	case *ast.Unary:
		return fs.compileUnary(v)
	case *ast.Binary:
		return fs.compileBinary(v)
	case *ast.Ternary:
		return fs.compileTernary(v)
	default:
		return 0, sstypes.Ref{}, fs.errAt(n.NodePos(), "unsupported expression node %T", n)
	}
}

func (fs *funcState) allocAndLoadBool(val bool, line int) (int, *scripterrors.ScriptError) {
	reg, err := fs.b.Alloc()
	if err != nil {
		return 0, fs.errAt(ast.Pos{File: fs.file, Line: line}, "%s", err.Error())
	}
	// Booleans are loaded as a 0/1 int immediate then reinterpreted;
	// the VM's LOADINT/CAST pair keeps the opcode table free of a
	// dedicated LOADBOOL (mirrors the original's encoding economy).
	fs.b.Emit(emitter.Instr{Op: emitter.OpLoadInt, A: reg, Int: boolToInt(val), Line: line})
	fs.b.Emit(emitter.Instr{Op: emitter.OpCast, A: reg, B: reg, Type: sstypes.BoolType, Line: line})
	return reg, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (fs *funcState) compileVarRef(v *ast.VarRef) (int, sstypes.Ref, *scripterrors.ScriptError) {
	if l, ok := fs.resolveLocal(v.Name); ok {
		return l.reg, l.typ, nil
	}
	if typ, ok := fs.c.globalTypes[v.Name]; ok {
		slot, _ := fs.c.globals.Lookup(v.Name)
		reg, err := fs.b.Alloc()
		if err != nil {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", err.Error())
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpImportGlobal, A: slot, Str: v.Name, Line: v.Pos.Line})
		fs.b.Emit(emitter.Instr{Op: emitter.OpGetGlobal, A: reg, B: slot, Line: v.Pos.Line})
		return reg, typ, nil
	}
	return 0, sstypes.Ref{}, fs.errAt(v.Pos, "undeclared name %q", v.Name)
}

// compileLValue resolves an assignment/delete target to the register (or
// register+key pair, handled inline) that can be written to, returning
// its current static type. Only VarRef, ElementAccess, and Index are
// valid targets (spec §4.6).
func (fs *funcState) compileLValue(n ast.Node) (int, sstypes.Ref, *scripterrors.ScriptError) {
	switch v := n.(type) {
	case *ast.VarRef:
		return fs.compileVarRef(v)
	case *ast.ElementAccess, *ast.Index:
		return fs.compileExpr(n)
	default:
		return 0, sstypes.Ref{}, fs.errAt(n.NodePos(), "invalid assignment target")
	}
}

func (fs *funcState) compileAssign(v *ast.Assign) (int, sstypes.Ref, *scripterrors.ScriptError) {
	valReg, valType, err := fs.compileExpr(v.Value)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}

	switch target := v.Target.(type) {
	case *ast.VarRef:
		return fs.assignVarRef(target, v.Op, valReg, valType, v.Pos.Line)
	case *ast.ElementAccess:
		return fs.assignElement(target, v.Op, valReg, valType, v.Pos.Line)
	case *ast.Index:
		return fs.assignIndex(target, v.Op, valReg, valType, v.Pos.Line)
	default:
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "invalid assignment target")
	}
}

func (fs *funcState) assignVarRef(target *ast.VarRef, op ast.AssignOp, valReg int, valType sstypes.Ref, line int) (int, sstypes.Ref, *scripterrors.ScriptError) {
	if l, ok := fs.resolveLocal(target.Name); ok {
		final, ferr := fs.applyCompoundOp(op, l.reg, l.typ, valReg, valType, line)
		if ferr != nil {
			return 0, sstypes.Ref{}, ferr
		}
		if op == ast.AssignPlain && !fs.assignable(l.typ, valType) {
			return 0, sstypes.Ref{}, fs.errAt(target.Pos, "cannot assign %s to %s", valType, l.typ)
		}
		fs.emitConvertingMove(l.reg, final, l.typ, valType, line)
		return l.reg, l.typ, nil
	}
	if typ, ok := fs.c.globalTypes[target.Name]; ok {
		slot, _ := fs.c.globals.Lookup(target.Name)
		cur, err := fs.b.Alloc()
		if err != nil {
			return 0, sstypes.Ref{}, fs.errAt(target.Pos, "%s", err.Error())
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpImportGlobal, A: slot, Str: target.Name, Line: line})
		fs.b.Emit(emitter.Instr{Op: emitter.OpGetGlobal, A: cur, B: slot, Line: line})
		final, ferr := fs.applyCompoundOp(op, cur, typ, valReg, valType, line)
		if ferr != nil {
			return 0, sstypes.Ref{}, ferr
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpSetGlobal, A: slot, B: final, Line: line})
		return final, typ, nil
	}
	return 0, sstypes.Ref{}, fs.errAt(target.Pos, "undeclared name %q", target.Name)
}

// applyCompoundOp handles `x += y` etc. For plain `=` it just returns
// valReg unchanged (the caller still type-checks assignability).
func (fs *funcState) applyCompoundOp(op ast.AssignOp, curReg int, curType sstypes.Ref, valReg int, valType sstypes.Ref, line int) (int, *scripterrors.ScriptError) {
	if op == ast.AssignPlain {
		return valReg, nil
	}
	binOp, ok := compoundToBinOp[op]
	if !ok {
		return 0, scripterrors.At(scripterrors.Compile, fs.file, line, "unsupported compound assignment %s", op)
	}
	return fs.emitArith(binOp, curReg, curType, valReg, valType, line)
}

var compoundToBinOp = map[ast.AssignOp]ast.BinOp{
	ast.AssignAdd: ast.BinAdd, ast.AssignSub: ast.BinSub, ast.AssignMul: ast.BinMul,
	ast.AssignDiv: ast.BinDiv, ast.AssignMod: ast.BinMod, ast.AssignAnd: ast.BinBitAnd,
	ast.AssignOr: ast.BinBitOr, ast.AssignXor: ast.BinBitXor, ast.AssignShl: ast.BinShl,
	ast.AssignShr: ast.BinShr,
}

func (fs *funcState) assignElement(target *ast.ElementAccess, op ast.AssignOp, valReg int, valType sstypes.Ref, line int) (int, sstypes.Ref, *scripterrors.ScriptError) {
	objReg, objType, err := fs.compileExpr(target.Object)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	attr, found := findAttr(objType, target.Name)
	if !found {
		return 0, sstypes.Ref{}, fs.errAt(target.Pos, "%s has no attribute %q", objType, target.Name)
	}
	if attr.ReadOnly {
		return 0, sstypes.Ref{}, fs.errAt(target.Pos, "attribute %q is read-only", target.Name)
	}
	cur, curErr := fs.b.Alloc()
	if curErr != nil {
		return 0, sstypes.Ref{}, fs.errAt(target.Pos, "%s", curErr.Error())
	}
	if op != ast.AssignPlain {
		fs.b.Emit(emitter.Instr{Op: emitter.OpGetElement, A: cur, B: objReg, Str: target.Name, Line: line})
	}
	final, ferr := fs.applyCompoundOp(op, cur, attr.Type, valReg, valType, line)
	if ferr != nil {
		return 0, sstypes.Ref{}, ferr
	}
	if op == ast.AssignPlain && !fs.assignable(attr.Type, valType) {
		return 0, sstypes.Ref{}, fs.errAt(target.Pos, "cannot assign %s to attribute of type %s", valType, attr.Type)
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpSetElement, A: objReg, B: final, Str: target.Name, Line: line})
	return final, attr.Type, nil
}

func (fs *funcState) assignIndex(target *ast.Index, op ast.AssignOp, valReg int, valType sstypes.Ref, line int) (int, sstypes.Ref, *scripterrors.ScriptError) {
	objReg, objType, err := fs.compileExpr(target.Object)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if objType.ArrayDepth == 0 {
		return 0, sstypes.Ref{}, fs.errAt(target.Pos, "cannot index non-array type %s", objType)
	}
	elemType := objType.Element()
	idxReg, idxType, err := fs.compileExpr(target.Index)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if !idxType.IsCore(sstypes.Int) {
		return 0, sstypes.Ref{}, fs.errAt(target.Pos, "array index must be int, got %s", idxType)
	}
	cur, curErr := fs.b.Alloc()
	if curErr != nil {
		return 0, sstypes.Ref{}, fs.errAt(target.Pos, "%s", curErr.Error())
	}
	if op != ast.AssignPlain {
		fs.b.Emit(emitter.Instr{Op: emitter.OpGetIndex, A: cur, B: objReg, C: idxReg, Line: line})
	}
	final, ferr := fs.applyCompoundOp(op, cur, elemType, valReg, valType, line)
	if ferr != nil {
		return 0, sstypes.Ref{}, ferr
	}
	if op == ast.AssignPlain && !fs.assignable(elemType, valType) {
		return 0, sstypes.Ref{}, fs.errAt(target.Pos, "cannot assign %s to array element of type %s", valType, elemType)
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpSetIndex, A: objReg, B: idxReg, C: final, Line: line})
	return final, elemType, nil
}

func findAttr(objType sstypes.Ref, name string) (sstypes.AttrDef, bool) {
	if objType.Def == nil {
		return sstypes.AttrDef{}, false
	}
	for _, a := range objType.Def.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return sstypes.AttrDef{}, false
}

func (fs *funcState) compilePostIncDec(v *ast.PostIncDec) (int, sstypes.Ref, *scripterrors.ScriptError) {
	reg, typ, err := fs.compileLValue(v.Target)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if !typ.IsCore(sstypes.Int) && !typ.IsCore(sstypes.Real) {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "++/-- requires int or real, got %s", typ)
	}
	before, berr := fs.b.Alloc()
	if berr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", berr.Error())
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpMov, A: before, B: reg, Line: v.Pos.Line})

	one, oerr := fs.b.Alloc()
	if oerr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", oerr.Error())
	}
	if typ.IsCore(sstypes.Int) {
		fs.b.Emit(emitter.Instr{Op: emitter.OpLoadInt, A: one, Int: 1, Line: v.Pos.Line})
		op := emitter.OpIntAdd
		if !v.Incr {
			op = emitter.OpIntSub
		}
		fs.b.Emit(emitter.Instr{Op: op, A: reg, B: reg, C: one, Line: v.Pos.Line})
	} else {
		fs.b.Emit(emitter.Instr{Op: emitter.OpLoadReal, A: one, Real: 1, Line: v.Pos.Line})
		op := emitter.OpRealAdd
		if !v.Incr {
			op = emitter.OpRealSub
		}
		fs.b.Emit(emitter.Instr{Op: op, A: reg, B: reg, C: one, Line: v.Pos.Line})
	}
	if target, ok := v.Target.(*ast.VarRef); ok {
		if _, isGlobal := fs.c.globalTypes[target.Name]; isGlobal {
			if _, isLocal := fs.resolveLocal(target.Name); !isLocal {
				slot, _ := fs.c.globals.Lookup(target.Name)
				fs.b.Emit(emitter.Instr{Op: emitter.OpSetGlobal, A: slot, B: reg, Line: v.Pos.Line})
			}
		}
	}
	return before, typ, nil
}

func (fs *funcState) compileCast(v *ast.Cast) (int, sstypes.Ref, *scripterrors.ScriptError) {
	target, terr := typeNameToRef(fs.c.variant, v.Type)
	if terr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", terr.Error())
	}
	srcReg, srcType, err := fs.compileExpr(v.Operand)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	dst, aerr := fs.b.Alloc()
	if aerr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", aerr.Error())
	}
	if !castAllowed(target, srcType) {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "cannot cast %s to %s", srcType, target)
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpCast, A: dst, B: srcReg, Type: target, Line: v.Pos.Line})
	return dst, target, nil
}

// castAllowed governs which explicit casts the compiler accepts; the VM
// performs the actual conversion and raises a RuntimeError for anything
// that fails at the value level (e.g. a failed downcast).
func castAllowed(dst, src sstypes.Ref) bool {
	if dst.Equal(src) {
		return true
	}
	if dst.IsCore(sstypes.Real) && src.IsCore(sstypes.Int) {
		return true
	}
	if dst.IsCore(sstypes.Int) && src.IsCore(sstypes.Real) {
		return true
	}
	if dst.IsCore(sstypes.Bool) && src.IsCore(sstypes.Int) {
		return true
	}
	if dst.IsObject() && src.IsObject() {
		return true // downcast, checked at runtime
	}
	return false
}

func (fs *funcState) compileElementAccess(v *ast.ElementAccess) (int, sstypes.Ref, *scripterrors.ScriptError) {
	objReg, objType, err := fs.compileExpr(v.Object)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	attr, found := findAttr(objType, v.Name)
	if !found {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s has no attribute %q", objType, v.Name)
	}
	dst, aerr := fs.b.Alloc()
	if aerr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", aerr.Error())
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpGetElement, A: dst, B: objReg, Str: v.Name, Line: v.Pos.Line})
	return dst, attr.Type, nil
}

func (fs *funcState) compileIndex(v *ast.Index) (int, sstypes.Ref, *scripterrors.ScriptError) {
	objReg, objType, err := fs.compileExpr(v.Object)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if objType.ArrayDepth == 0 {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "cannot index non-array type %s", objType)
	}
	idxReg, idxType, err := fs.compileExpr(v.Index)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if !idxType.IsCore(sstypes.Int) {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "array index must be int, got %s", idxType)
	}
	dst, aerr := fs.b.Alloc()
	if aerr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", aerr.Error())
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpGetIndex, A: dst, B: objReg, C: idxReg, Line: v.Pos.Line})
	return dst, objType.Element(), nil
}

func (fs *funcState) compileArgs(args []ast.Node, proto *sstypes.FuncProto, pos ast.Pos) ([]int, *scripterrors.ScriptError) {
	if len(args) < len(proto.Args) || (!proto.Variadic && len(args) > len(proto.Args)) {
		return nil, fs.errAt(pos, "argument count mismatch: expected %d, got %d", len(proto.Args), len(args))
	}
	regs := make([]int, len(args))
	for i, a := range args {
		reg, typ, err := fs.compileExpr(a)
		if err != nil {
			return nil, err
		}
		if i < len(proto.Args) && !fs.assignable(proto.Args[i], typ) {
			return nil, fs.errAt(pos, "argument %d: cannot pass %s as %s", i+1, typ, proto.Args[i])
		}
		regs[i] = reg
	}
	return regs, nil
}

func (fs *funcState) compileCall(v *ast.Call) (int, sstypes.Ref, *scripterrors.ScriptError) {
	qname := qualify(v.Namespace, v.Name)
	if proto, ok := fs.c.funcs[qname]; ok {
		argRegs, err := fs.compileArgs(v.Args, proto, v.Pos)
		if err != nil {
			return 0, sstypes.Ref{}, err
		}
		return fs.emitCall(emitter.OpCallFunction, qname, argRegs, proto.Return, v.Pos.Line)
	}
	if nf, ok := fs.c.variant.NativeFuncs[qname]; ok {
		argRegs, err := fs.compileArgs(v.Args, &nf.Proto, v.Pos)
		if err != nil {
			return 0, sstypes.Ref{}, err
		}
		return fs.emitCall(emitter.OpCallFunction, qname, argRegs, nf.Proto.Return, v.Pos.Line)
	}
	return 0, sstypes.Ref{}, fs.errAt(v.Pos, "undeclared function %q", qname)
}

func (fs *funcState) emitCall(op emitter.Op, name string, argRegs []int, retType sstypes.Ref, line int) (int, sstypes.Ref, *scripterrors.ScriptError) {
	dst, err := fs.b.Alloc()
	if err != nil {
		return 0, sstypes.Ref{}, scripterrors.At(scripterrors.Compile, fs.file, line, "%s", err.Error())
	}
	fs.b.Emit(emitter.Instr{Op: op, A: dst, Str: name, Args: argRegs, Line: line})
	return dst, retType, nil
}

func (fs *funcState) compileMethodCall(v *ast.MethodCall) (int, sstypes.Ref, *scripterrors.ScriptError) {
	objReg, objType, err := fs.compileExpr(v.Object)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if objType.Def == nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "cannot call method on null-typed expression")
	}
	var proto *sstypes.FuncProto
	for _, m := range objType.Def.Methods {
		if m.Name == v.Name {
			proto = m.Proto.Proto
			break
		}
	}
	if proto == nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s has no method %q", objType, v.Name)
	}
	argRegs, aerr := fs.compileArgs(v.Args, proto, v.Pos)
	if aerr != nil {
		return 0, sstypes.Ref{}, aerr
	}
	allRegs := append([]int{objReg}, argRegs...)
	return fs.emitCall(emitter.OpCallMethod, objType.Def.Name+"::"+v.Name, allRegs, proto.Return, v.Pos.Line)
}

func (fs *funcState) compileNewObject(v *ast.NewObject) (int, sstypes.Ref, *scripterrors.ScriptError) {
	typ, terr := typeNameToRef(fs.c.variant, v.Type)
	if terr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", terr.Error())
	}
	if !typ.IsObject() {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s is not a class type", typ)
	}
	var proto *sstypes.FuncProto
	if typ.Def.Constructor != "" {
		for _, m := range typ.Def.Methods {
			if m.Name == typ.Def.Constructor {
				proto = m.Proto.Proto
				break
			}
		}
	}
	var argRegs []int
	if proto != nil {
		regs, aerr := fs.compileArgs(v.Args, proto, v.Pos)
		if aerr != nil {
			return 0, sstypes.Ref{}, aerr
		}
		argRegs = regs
	} else if len(v.Args) > 0 {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s has no constructor accepting arguments", typ)
	}
	dst, aerr := fs.b.Alloc()
	if aerr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", aerr.Error())
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpCreateObj, A: dst, Type: typ, Args: argRegs, Line: v.Pos.Line})
	return dst, typ, nil
}

func (fs *funcState) compileNewArray(v *ast.NewArray) (int, sstypes.Ref, *scripterrors.ScriptError) {
	elemType, terr := typeNameToRef(fs.c.variant, v.ElemType)
	if terr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", terr.Error())
	}
	sizeReg, sizeType, err := fs.compileExpr(v.Size)
	if err != nil {
		return 0, sstypes.Ref{}, err
	}
	if !sizeType.IsCore(sstypes.Int) {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "array size must be int, got %s", sizeType)
	}
	dst, aerr := fs.b.Alloc()
	if aerr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", aerr.Error())
	}
	arrType := elemType.Arrayed()
	fs.b.Emit(emitter.Instr{Op: emitter.OpCreateArray, A: dst, B: sizeReg, Type: arrType, Line: v.Pos.Line})
	return dst, arrType, nil
}

func (fs *funcState) compileArrayLit(v *ast.ArrayLit) (int, sstypes.Ref, *scripterrors.ScriptError) {
	if len(v.Elements) == 0 {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "array literal requires at least one element to infer its type")
	}
	elemRegs := make([]int, len(v.Elements))
	var elemType sstypes.Ref
	for i, e := range v.Elements {
		reg, typ, err := fs.compileExpr(e)
		if err != nil {
			return 0, sstypes.Ref{}, err
		}
		if i == 0 {
			elemType = typ
		} else if !elemType.Equal(typ) {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "array literal element %d has type %s, expected %s", i+1, typ, elemType)
		}
		elemRegs[i] = reg
	}
	sizeReg, serr := fs.b.Alloc()
	if serr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", serr.Error())
	}
	fs.b.Emit(emitter.Instr{Op: emitter.OpLoadInt, A: sizeReg, Int: int64(len(v.Elements)), Line: v.Pos.Line})
	dst, derr := fs.b.Alloc()
	if derr != nil {
		return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", derr.Error())
	}
	arrType := elemType.Arrayed()
	fs.b.Emit(emitter.Instr{Op: emitter.OpCreateArray, A: dst, B: sizeReg, Type: arrType, Line: v.Pos.Line})
	for i, r := range elemRegs {
		idxReg, ierr := fs.b.Alloc()
		if ierr != nil {
			return 0, sstypes.Ref{}, fs.errAt(v.Pos, "%s", ierr.Error())
		}
		fs.b.Emit(emitter.Instr{Op: emitter.OpLoadInt, A: idxReg, Int: int64(i), Line: v.Pos.Line})
		fs.b.Emit(emitter.Instr{Op: emitter.OpSetIndex, A: dst, B: idxReg, C: r, Line: v.Pos.Line})
	}
	return dst, arrType, nil
}
