package emitter

import "fmt"

// MaxRegisters bounds the number of registers a single function body may
// use (spec §9 boundary B1).
const MaxRegisters = 64

// MaxGlobals bounds the number of distinct script-global variables a
// program may declare (spec §9 boundary B2... restated here as the
// global-slot limit; see builder comment below).
const MaxGlobals = 32

// Label is an unresolved jump target, fixed up by Builder.Bind.
type Label int

// Builder assembles one Func's instruction stream, handing out registers
// and resolving forward/backward jump labels. One Builder per compiled
// function or method.
type Builder struct {
	fn       *Func
	labels   []int // label index -> resolved instruction index, -1 if unbound
	nextReg  int
}

// NewBuilder starts building a function named qualifiedName. numArgs
// records how many leading registers the VM must pre-populate from the
// caller's argument list; the caller is responsible for allocating those
// same registers first (in order) via Alloc so they land at 0..numArgs-1.
func NewBuilder(qualifiedName string, numArgs int) *Builder {
	return &Builder{fn: &Func{QualifiedName: qualifiedName, NumArgs: numArgs}}
}

// Alloc reserves and returns a fresh register, failing past MaxRegisters.
func (b *Builder) Alloc() (int, error) {
	if b.nextReg >= MaxRegisters {
		return 0, fmt.Errorf("emitter: function %q exceeds %d registers", b.fn.QualifiedName, MaxRegisters)
	}
	r := b.nextReg
	b.nextReg++
	return r, nil
}

// NewLabel reserves an unbound jump target.
func (b *Builder) NewLabel() Label {
	b.labels = append(b.labels, -1)
	return Label(len(b.labels) - 1)
}

// Bind fixes lbl to the next instruction emitted after this call.
func (b *Builder) Bind(lbl Label) {
	b.labels[lbl] = len(b.fn.Code)
}

// Emit appends an instruction and returns its index.
func (b *Builder) Emit(i Instr) int {
	b.fn.Code = append(b.fn.Code, i)
	return len(b.fn.Code) - 1
}

// EmitJump appends a jump to lbl, patched by Finish once every label is
// bound. op must be OpJump, OpJumpIf, or OpJumpIfNot.
func (b *Builder) EmitJump(op Op, cond int, lbl Label, line int) int {
	return b.Emit(Instr{Op: op, A: cond, Line: line, Target: int(lbl)})
}

// Finish resolves every recorded jump's Label placeholder (stashed in
// Target) to its bound instruction index and returns the completed Func.
// Returns an error if any label was never bound.
func (b *Builder) Finish() (*Func, error) {
	for idx, instr := range b.fn.Code {
		switch instr.Op {
		case OpJump, OpJumpIf, OpJumpIfNot:
			resolved := b.labels[instr.Target]
			if resolved < 0 {
				return nil, fmt.Errorf("emitter: function %q has an unbound jump label", b.fn.QualifiedName)
			}
			b.fn.Code[idx].Target = resolved
		}
	}
	b.fn.NumRegisters = b.nextReg
	return b.fn, nil
}

// GlobalTable allocates script-global variable slots, capped at
// MaxGlobals (spec §9 boundary B2).
type GlobalTable struct {
	names []string
	index map[string]int
}

// NewGlobalTable creates an empty global slot table.
func NewGlobalTable() *GlobalTable {
	return &GlobalTable{index: make(map[string]int)}
}

// Declare assigns name a new global slot, failing if name was already
// declared or the table is at capacity.
func (g *GlobalTable) Declare(name string) (int, error) {
	if _, exists := g.index[name]; exists {
		return 0, fmt.Errorf("emitter: global %q already declared", name)
	}
	if len(g.names) >= MaxGlobals {
		return 0, fmt.Errorf("emitter: exceeds %d script globals", MaxGlobals)
	}
	idx := len(g.names)
	g.names = append(g.names, name)
	g.index[name] = idx
	return idx, nil
}

// Lookup returns name's slot index, if declared.
func (g *GlobalTable) Lookup(name string) (int, bool) {
	idx, ok := g.index[name]
	return idx, ok
}

// Names returns the globals in declaration order.
func (g *GlobalTable) Names() []string { return append([]string(nil), g.names...) }
