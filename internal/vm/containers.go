package vm

import (
	"github.com/spiderscript/spiderscript/internal/emitter"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

func (in *Interp) execCreateArray(f *frame, instr emitter.Instr) error {
	typ, ok := instr.Type.(sstypes.Ref)
	if !ok {
		return in.raiseRuntime(instr.Line, "internal", "CREATEARRAY missing element type")
	}
	size := f.regs[instr.B].Int()
	if size < 0 {
		return in.raiseRuntime(instr.Line, "bounds", "negative array size %d", size)
	}
	ssvalue.SetRetaining(&f.regs[instr.A], ssvalue.NewArray(typ.Element(), int(size)))
	return nil
}

func (in *Interp) execGetIndex(f *frame, instr emitter.Instr) error {
	arr := f.regs[instr.B]
	if arr.IsNull() {
		return in.raiseRuntime(instr.Line, "null", "index access on null array")
	}
	idx := f.regs[instr.C].Int()
	elems := arr.ArrayObj().Elements
	if idx < 0 || int(idx) >= len(elems) {
		return in.raiseRuntime(instr.Line, "bounds", "array index %d out of range (length %d)", idx, len(elems))
	}
	ssvalue.SetRetaining(&f.regs[instr.A], elems[idx])
	return nil
}

func (in *Interp) execSetIndex(f *frame, instr emitter.Instr) error {
	arr := f.regs[instr.A]
	if arr.IsNull() {
		return in.raiseRuntime(instr.Line, "null", "index assignment on null array")
	}
	idx := f.regs[instr.B].Int()
	elems := arr.ArrayObj().Elements
	if idx < 0 || int(idx) >= len(elems) {
		return in.raiseRuntime(instr.Line, "bounds", "array index %d out of range (length %d)", idx, len(elems))
	}
	ssvalue.SetRetaining(&elems[idx], f.regs[instr.C])
	return nil
}

func (in *Interp) execGetElement(f *frame, instr emitter.Instr) error {
	obj := f.regs[instr.B]
	if obj.IsNull() {
		return in.raiseRuntime(instr.Line, "null", "attribute access %q on null object", instr.Str)
	}
	o := obj.ObjectObj()
	idx, ok := attrIndex(o.Class, instr.Str)
	if !ok {
		return in.raiseRuntime(instr.Line, "internal", "no such attribute %q on %s", instr.Str, o.Class.Name)
	}
	if nc, ok := in.variant.Classes[o.Class.Name]; ok && nc.GetAttr != nil {
		v, err := nc.GetAttr(obj, instr.Str)
		if err != nil {
			return in.raiseRuntime(instr.Line, "host", "%s", err.Error())
		}
		ssvalue.SetRetaining(&f.regs[instr.A], v)
		return nil
	}
	ssvalue.SetRetaining(&f.regs[instr.A], o.Attrs[idx])
	return nil
}

func (in *Interp) execSetElement(f *frame, instr emitter.Instr) error {
	obj := f.regs[instr.A]
	if obj.IsNull() {
		return in.raiseRuntime(instr.Line, "null", "attribute assignment %q on null object", instr.Str)
	}
	o := obj.ObjectObj()
	idx, ok := attrIndex(o.Class, instr.Str)
	if !ok {
		return in.raiseRuntime(instr.Line, "internal", "no such attribute %q on %s", instr.Str, o.Class.Name)
	}
	if nc, ok := in.variant.Classes[o.Class.Name]; ok && nc.SetAttr != nil {
		if err := nc.SetAttr(obj, instr.Str, f.regs[instr.B]); err != nil {
			return in.raiseRuntime(instr.Line, "host", "%s", err.Error())
		}
		return nil
	}
	ssvalue.SetRetaining(&o.Attrs[idx], f.regs[instr.B])
	return nil
}

func attrIndex(class *sstypes.Def, name string) (int, bool) {
	for i, a := range class.Attributes {
		if a.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (in *Interp) execCast(f *frame, instr emitter.Instr) error {
	target, ok := instr.Type.(sstypes.Ref)
	if !ok {
		return in.raiseRuntime(instr.Line, "internal", "CAST missing target type")
	}
	src := f.regs[instr.B]
	switch {
	case target.IsCore(sstypes.Real) && src.Kind == ssvalue.KindInt:
		ssvalue.SetRetaining(&f.regs[instr.A], ssvalue.NewReal(float64(src.Int())))
	case target.IsCore(sstypes.Int) && src.Kind == ssvalue.KindReal:
		ssvalue.SetRetaining(&f.regs[instr.A], ssvalue.NewInt(int64(src.Real())))
	case target.IsCore(sstypes.Bool) && src.Kind == ssvalue.KindInt:
		ssvalue.SetRetaining(&f.regs[instr.A], ssvalue.NewBool(src.Int() != 0))
	case target.IsObject() && src.Kind == ssvalue.KindObject:
		if src.ObjectObj().Class == target.Def {
			ssvalue.SetRetaining(&f.regs[instr.A], src)
			return nil
		}
		return in.raiseRuntime(instr.Line, "cast", "cannot cast %s to %s", src.ObjectObj().Class.Name, target.Def.Name)
	default:
		ssvalue.SetRetaining(&f.regs[instr.A], src)
	}
	return nil
}
