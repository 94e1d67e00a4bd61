package vm

import (
	"strings"

	"github.com/spiderscript/spiderscript/internal/emitter"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

// execCreateObj constructs a class instance: script classes get a plain
// ssvalue.ObjectObj; native classes delegate to their registered
// Construct handler (spec §4.8).
func (in *Interp) execCreateObj(f *frame, instr emitter.Instr) error {
	typ, ok := instr.Type.(sstypes.Ref)
	if !ok {
		return in.raiseRuntime(instr.Line, "internal", "CREATEOBJ missing target type")
	}
	args := gatherArgs(f, instr.Args)

	if nc, ok := in.variant.Classes[typ.Def.Name]; ok {
		v, err := nc.Construct(args)
		if err != nil {
			return in.raiseRuntime(instr.Line, "host", "%s", err.Error())
		}
		ssvalue.SetRetaining(&f.regs[instr.A], v)
		return nil
	}

	obj := ssvalue.NewObject(typ.Def)
	if typ.Def.Constructor != "" {
		if _, err := in.callScript(in.funcs[typ.Def.Name+"::"+typ.Def.Constructor], append([]ssvalue.Value{obj}, args...)); err != nil {
			return err
		}
	}
	ssvalue.SetRetaining(&f.regs[instr.A], obj)
	return nil
}

func gatherArgs(f *frame, regs []int) []ssvalue.Value {
	args := make([]ssvalue.Value, len(regs))
	for i, r := range regs {
		args[i] = f.regs[r]
	}
	return args
}

func (in *Interp) execCallFunction(f *frame, instr emitter.Instr) error {
	args := gatherArgs(f, instr.Args)
	if fn, ok := in.funcs[instr.Str]; ok {
		v, err := in.callScript(fn, args)
		if err != nil {
			return err
		}
		ssvalue.SetRetaining(&f.regs[instr.A], v)
		return nil
	}
	if nf, ok := in.variant.Funcs[instr.Str]; ok {
		v, err := nf.Handler(args)
		if err != nil {
			return in.raiseRuntime(instr.Line, "host", "%s", err.Error())
		}
		ssvalue.SetRetaining(&f.regs[instr.A], v)
		return nil
	}
	return in.raiseRuntime(instr.Line, "undefined", "undefined function %q", instr.Str)
}

// execCallMethod dispatches a method call encoded as "Class::method" with
// the receiver as the first entry of instr.Args, against either a script
// class's compiled body or a native class's method table.
func (in *Interp) execCallMethod(f *frame, instr emitter.Instr) error {
	if len(instr.Args) == 0 {
		return in.raiseRuntime(instr.Line, "internal", "CALLMETHOD with no receiver")
	}
	recv := f.regs[instr.Args[0]]
	if recv.IsNull() {
		return in.raiseRuntime(instr.Line, "null", "method call %q on null", instr.Str)
	}
	className := recv.ObjectObj().Class.Name
	args := gatherArgs(f, instr.Args[1:])

	if nc, ok := in.variant.Classes[className]; ok {
		_, method := splitMethodKey(instr.Str)
		m, ok := nc.Methods[method]
		if !ok {
			return in.raiseRuntime(instr.Line, "undefined", "%s has no native method %q", className, method)
		}
		v, err := m.Handler(recv, args)
		if err != nil {
			return in.raiseRuntime(instr.Line, "host", "%s", err.Error())
		}
		ssvalue.SetRetaining(&f.regs[instr.A], v)
		return nil
	}

	fn, ok := in.funcs[instr.Str]
	if !ok {
		return in.raiseRuntime(instr.Line, "undefined", "undefined method %q", instr.Str)
	}
	v, err := in.callScript(fn, append([]ssvalue.Value{recv}, args...))
	if err != nil {
		return err
	}
	ssvalue.SetRetaining(&f.regs[instr.A], v)
	return nil
}

func splitMethodKey(key string) (class, method string) {
	i := strings.LastIndex(key, "::")
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+2:]
}
