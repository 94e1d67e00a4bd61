package vm

import (
	"math/bits"

	"github.com/spiderscript/spiderscript/internal/emitter"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
)

// execArith dispatches the typed arithmetic, comparison, and boolean
// opcodes the compiler emits via emitArith's op tables (spec §4.6/§4.7).
// Every case here was already type-checked at compile time; the only
// failure modes left at this layer are the ones the optimizer
// deliberately refused to fold away: division and modulo by zero (spec
// §9 boundary B4).
func (in *Interp) execArith(f *frame, instr emitter.Instr) (ssvalue.Value, bool, error) {
	a, b := f.regs[instr.B], f.regs[instr.C]
	switch instr.Op {
	case emitter.OpBoolEquals:
		return store(f, instr.A, ssvalue.NewBool(a.Bool() == b.Bool()))
	case emitter.OpBoolLogicNot:
		return store(f, instr.A, ssvalue.NewBool(!f.regs[instr.B].Bool()))
	case emitter.OpBoolLogicAnd:
		return store(f, instr.A, ssvalue.NewBool(a.Bool() && b.Bool()))
	case emitter.OpBoolLogicOr:
		return store(f, instr.A, ssvalue.NewBool(a.Bool() || b.Bool()))
	case emitter.OpBoolLogicXor:
		return store(f, instr.A, ssvalue.NewBool(a.Bool() != b.Bool()))

	case emitter.OpIntBitNot:
		return store(f, instr.A, ssvalue.NewInt(^f.regs[instr.B].Int()))
	case emitter.OpIntNeg:
		return store(f, instr.A, ssvalue.NewInt(-f.regs[instr.B].Int()))

	case emitter.OpIntBitAnd:
		return store(f, instr.A, ssvalue.NewInt(a.Int()&b.Int()))
	case emitter.OpIntBitOr:
		return store(f, instr.A, ssvalue.NewInt(a.Int()|b.Int()))
	case emitter.OpIntBitXor:
		return store(f, instr.A, ssvalue.NewInt(a.Int()^b.Int()))

	case emitter.OpIntShl:
		return store(f, instr.A, ssvalue.NewInt(a.Int()<<(uint64(b.Int())&63)))
	case emitter.OpIntShr:
		return store(f, instr.A, ssvalue.NewInt(a.Int()>>(uint64(b.Int())&63)))
	case emitter.OpIntRotl:
		return store(f, instr.A, ssvalue.NewInt(int64(bits.RotateLeft64(uint64(a.Int()), int(b.Int()&63)))))

	case emitter.OpIntAdd:
		return store(f, instr.A, ssvalue.NewInt(a.Int()+b.Int()))
	case emitter.OpIntSub:
		return store(f, instr.A, ssvalue.NewInt(a.Int()-b.Int()))
	case emitter.OpIntMul:
		return store(f, instr.A, ssvalue.NewInt(a.Int()*b.Int()))
	case emitter.OpIntDiv:
		if b.Int() == 0 {
			return ssvalue.Value{}, false, in.raiseRuntime(instr.Line, "arithmetic", "division by zero")
		}
		return store(f, instr.A, ssvalue.NewInt(a.Int()/b.Int()))
	case emitter.OpIntMod:
		if b.Int() == 0 {
			return ssvalue.Value{}, false, in.raiseRuntime(instr.Line, "arithmetic", "modulo by zero")
		}
		return store(f, instr.A, ssvalue.NewInt(a.Int()%b.Int()))
	case emitter.OpIntEq:
		return store(f, instr.A, ssvalue.NewBool(a.Int() == b.Int()))
	case emitter.OpIntNotEq:
		return store(f, instr.A, ssvalue.NewBool(a.Int() != b.Int()))
	case emitter.OpIntLt:
		return store(f, instr.A, ssvalue.NewBool(a.Int() < b.Int()))
	case emitter.OpIntLe:
		return store(f, instr.A, ssvalue.NewBool(a.Int() <= b.Int()))
	case emitter.OpIntGt:
		return store(f, instr.A, ssvalue.NewBool(a.Int() > b.Int()))
	case emitter.OpIntGe:
		return store(f, instr.A, ssvalue.NewBool(a.Int() >= b.Int()))

	case emitter.OpRealNeg:
		return store(f, instr.A, ssvalue.NewReal(-f.regs[instr.B].Real()))
	case emitter.OpRealAdd:
		return store(f, instr.A, ssvalue.NewReal(a.Real()+b.Real()))
	case emitter.OpRealSub:
		return store(f, instr.A, ssvalue.NewReal(a.Real()-b.Real()))
	case emitter.OpRealMul:
		return store(f, instr.A, ssvalue.NewReal(a.Real()*b.Real()))
	case emitter.OpRealDiv:
		return store(f, instr.A, ssvalue.NewReal(a.Real()/b.Real()))
	case emitter.OpRealEq:
		return store(f, instr.A, ssvalue.NewBool(a.Real() == b.Real()))
	case emitter.OpRealNotEq:
		return store(f, instr.A, ssvalue.NewBool(a.Real() != b.Real()))
	case emitter.OpRealLt:
		return store(f, instr.A, ssvalue.NewBool(a.Real() < b.Real()))
	case emitter.OpRealLe:
		return store(f, instr.A, ssvalue.NewBool(a.Real() <= b.Real()))
	case emitter.OpRealGt:
		return store(f, instr.A, ssvalue.NewBool(a.Real() > b.Real()))
	case emitter.OpRealGe:
		return store(f, instr.A, ssvalue.NewBool(a.Real() >= b.Real()))

	case emitter.OpStrEq:
		return store(f, instr.A, ssvalue.NewBool(a.Str() == b.Str()))
	case emitter.OpStrNotEq:
		return store(f, instr.A, ssvalue.NewBool(a.Str() != b.Str()))
	case emitter.OpStrLt:
		return store(f, instr.A, ssvalue.NewBool(ssvalue.Compare(a, b) < 0))
	case emitter.OpStrLe:
		return store(f, instr.A, ssvalue.NewBool(ssvalue.Compare(a, b) <= 0))
	case emitter.OpStrGt:
		return store(f, instr.A, ssvalue.NewBool(ssvalue.Compare(a, b) > 0))
	case emitter.OpStrGe:
		return store(f, instr.A, ssvalue.NewBool(ssvalue.Compare(a, b) >= 0))
	case emitter.OpStrAdd:
		return store(f, instr.A, ssvalue.NewString(a.Str()+b.Str()))

	default:
		return ssvalue.Value{}, false, in.raiseRuntime(instr.Line, "internal", "unimplemented opcode %d", instr.Op)
	}
}

// store writes v into f.regs[reg] under the retain/release discipline
// and reports "not a function return" to step's caller.
func store(f *frame, reg int, v ssvalue.Value) (ssvalue.Value, bool, error) {
	ssvalue.SetRetaining(&f.regs[reg], v)
	return ssvalue.Value{}, false, nil
}
