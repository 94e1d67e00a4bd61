package compiler

import (
	"github.com/spiderscript/spiderscript/internal/ast"
	"github.com/spiderscript/spiderscript/internal/emitter"
	scripterrors "github.com/spiderscript/spiderscript/internal/errors"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

// local is one name bound in the current function's scope chain.
type local struct {
	reg int
	typ sstypes.Ref
}

// loopCtx tracks break/continue targets for one enclosing loop, along
// with its optional tag (spec §4.2 labeled loops).
type loopCtx struct {
	tag         string
	breakLbl    emitter.Label
	continueLbl emitter.Label
	// isSwitch marks a switch's entry on the loop stack: it supplies a
	// break target but is not itself continuable. An unlabeled continue
	// nested in a switch inside a loop must reach the loop, not the
	// switch's end label (switch is not a loop, spec §4.6).
	isSwitch bool
}

// funcState is the per-function compilation context: the owning
// Compiler, the instruction builder, the lexical scope stack (one map
// per nested Block, mirroring the VM's context stack at runtime), the
// enclosing class (nil for free functions), and the loop stack for
// break/continue resolution.
type funcState struct {
	c        *Compiler
	b        *emitter.Builder
	scopes   []map[string]local
	class    *sstypes.Def
	retType  sstypes.Ref
	loops    []loopCtx
	file     string
}

func (fs *funcState) pushScope() { fs.scopes = append(fs.scopes, map[string]local{}) }
func (fs *funcState) popScope()  { fs.scopes = fs.scopes[:len(fs.scopes)-1] }

func (fs *funcState) declareLocal(name string, typ sstypes.Ref) (int, error) {
	reg, err := fs.b.Alloc()
	if err != nil {
		return 0, err
	}
	fs.scopes[len(fs.scopes)-1][name] = local{reg: reg, typ: typ}
	return reg, nil
}

// resolveLocal walks the scope stack innermost-first.
func (fs *funcState) resolveLocal(name string) (local, bool) {
	for i := len(fs.scopes) - 1; i >= 0; i-- {
		if l, ok := fs.scopes[i][name]; ok {
			return l, true
		}
	}
	return local{}, false
}

func (fs *funcState) errAt(pos ast.Pos, format string, args ...interface{}) *scripterrors.ScriptError {
	return scripterrors.At(scripterrors.Compile, pos.File, pos.Line, format, args...)
}

// compileFunc compiles one function or method body. class is non-nil
// when compiling a method, making `this`-relative attribute access
// available.
func (c *Compiler) compileFunc(fn *ast.FuncDecl, qname string, class *sstypes.Def) (*emitter.Func, *scripterrors.ScriptError) {
	retType, err := typeNameToRef(c.variant, fn.ReturnType)
	if err != nil {
		return nil, scripterrors.At(scripterrors.Compile, fn.Pos.File, fn.Pos.Line, "%s", err.Error())
	}

	numArgs := len(fn.Params)
	if class != nil {
		numArgs++ // implicit `this` in register 0
	}
	b := emitter.NewBuilder(qname, numArgs)
	fs := &funcState{c: c, b: b, class: class, retType: retType, file: fn.Pos.File}
	fs.pushScope()

	if class != nil {
		if _, err := fs.declareLocal("this", sstypes.Ref{Def: class}); err != nil {
			return nil, fs.errAt(fn.Pos, "%s", err.Error())
		}
	}
	for _, p := range fn.Params {
		t, err := typeNameToRef(c.variant, p.Type)
		if err != nil {
			return nil, fs.errAt(fn.Pos, "parameter %s: %s", p.Name, err.Error())
		}
		if _, err := fs.declareLocal(p.Name, t); err != nil {
			return nil, fs.errAt(fn.Pos, "%s", err.Error())
		}
	}

	if serr := fs.compileBlock(fn.Body); serr != nil {
		return nil, serr
	}
	fs.popScope()

	compiled, err := b.Finish()
	if err != nil {
		return nil, scripterrors.At(scripterrors.Compile, fn.Pos.File, fn.Pos.Line, "%s", err.Error())
	}
	return compiled, nil
}
