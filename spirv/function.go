package spirv

import "fmt"

// block is one basic block of a function under construction: an ordered
// list of variable declarations (legal only in the function's first
// block) followed by an ordered instruction list
// terminated by exactly one branch/return/kill/unreachable (invariant 4).
type block struct {
	id         uint32
	vars       []Instruction
	body       []Instruction
	terminated bool
}

func (blk *block) encode() []Instruction {
	out := make([]Instruction, 0, len(blk.vars)+len(blk.body)+1)
	labelIB := NewInstructionBuilder()
	labelIB.AddWord(blk.id)
	out = append(out, labelIB.Build(OpLabel))
	out = append(out, blk.vars...)
	out = append(out, blk.body...)
	return out
}

// function is a function under construction: parameters plus an ordered
// list of blocks, the first of which is the entry block.
type function struct {
	id         uint32
	returnType uint32
	funcType   uint32
	control    FunctionControl
	params     []Instruction
	blocks     []*block
}

// isTerminator reports whether opcode ends a block.
func isTerminator(op OpCode) bool {
	switch op {
	case OpBranch, OpBranchConditional, OpSwitch, OpKill, OpReturn, OpReturnValue, OpUnreachable:
		return true
	default:
		return false
	}
}

// BeginFunction opens a new function with the given return and function
// type ids, allocates its id, and creates its entry block. Only one
// function may be under construction at a time.
func (b *Builder) BeginFunction(returnType, funcType uint32, control FunctionControl) uint32 {
	if b.inFunction {
		panic("spirv: BeginFunction: a function is already open")
	}
	id := b.AllocID(IDFunction)
	b.curFunc = &function{id: id, returnType: returnType, funcType: funcType, control: control}
	b.inFunction = true
	b.curFunc.blocks = append(b.curFunc.blocks, &block{id: b.AllocID(IDLabel)})
	return id
}

// AddFunctionParameter declares a parameter of typeID on the function
// currently under construction, returning its id.
func (b *Builder) AddFunctionParameter(typeID uint32) uint32 {
	if !b.inFunction {
		panic("spirv: AddFunctionParameter: no function is open")
	}
	id := b.AllocID(IDFunctionParameter)
	ib := NewInstructionBuilder()
	ib.AddWord(typeID)
	ib.AddWord(id)
	b.curFunc.params = append(b.curFunc.params, ib.Build(OpFunctionParameter))
	return id
}

// CurrentBlockID returns the id of the block instructions are currently
// appended to.
func (b *Builder) CurrentBlockID() uint32 {
	if !b.inFunction {
		panic("spirv: CurrentBlockID: no function is open")
	}
	return b.tailBlock().id
}

func (b *Builder) tailBlock() *block {
	return b.curFunc.blocks[len(b.curFunc.blocks)-1]
}

// NewBlock appends a fresh block to the function under construction.
// If the current tail block is not
// terminated, an unconditional branch from it to the new block is
// inserted automatically.
func (b *Builder) NewBlock() uint32 {
	if !b.inFunction {
		panic("spirv: NewBlock: no function is open")
	}
	tail := b.tailBlock()
	if !tail.terminated {
		b.emitBranchTo(tail, b.nextID)
	}
	id := b.AllocID(IDLabel)
	b.curFunc.blocks = append(b.curFunc.blocks, &block{id: id})
	return id
}

// OpenBlock appends a block under a pre-reserved label id (from
// AllocID(IDLabel)) as the function's new tail. Unlike NewBlock, it never
// inserts an implicit branch: the caller must have already terminated the
// previous tail explicitly, which is how a conditional diamond (if/else)
// or a loop header (LoopMerge + BranchConditional) reaches its successor
// blocks. The structured control-flow state machine reserves its block
// labels up front for exactly this reason.
func (b *Builder) OpenBlock(id uint32) {
	if !b.inFunction {
		panic("spirv: OpenBlock: no function is open")
	}
	if !b.tailBlock().terminated {
		panic("spirv: OpenBlock: previous block is not terminated")
	}
	b.curFunc.blocks = append(b.curFunc.blocks, &block{id: id})
}

func (b *Builder) emitBranchTo(blk *block, target uint32) {
	ib := NewInstructionBuilder()
	ib.AddWord(target)
	blk.body = append(blk.body, ib.Build(OpBranch))
	blk.terminated = true
}

// DeclareLocal declares a Function-storage local variable. Only legal in
// the entry block.
func (b *Builder) DeclareLocal(pointerType uint32, initID *uint32) uint32 {
	if !b.inFunction {
		panic("spirv: DeclareLocal: no function is open")
	}
	entry := b.curFunc.blocks[0]
	id := b.AllocID(IDVariable)
	ib := NewInstructionBuilder()
	ib.AddWord(pointerType)
	ib.AddWord(id)
	ib.AddWord(uint32(StorageClassFunction))
	if initID != nil {
		ib.AddWord(*initID)
	}
	entry.vars = append(entry.vars, ib.Build(OpVariable))
	return id
}

// emit appends an instruction with a result to the current block,
// allocating a result id. typeID is always written as the result-type
// word, so callers pass a real type id (emit is only used for
// value-producing ops).
func (b *Builder) emit(opcode OpCode, typeID uint32, operands ...uint32) uint32 {
	tail := b.requireOpenBlock()
	id := b.AllocID(IDValue)
	ib := NewInstructionBuilder()
	ib.AddWord(typeID)
	ib.AddWord(id)
	ib.AddWords(operands...)
	tail.body = append(tail.body, ib.Build(opcode))
	return id
}

// Emit is the emit package's entry point for a generic value-producing
// instruction: typeID, then operand words in SPIR-V order.
func (b *Builder) Emit(opcode OpCode, typeID uint32, operands ...uint32) uint32 {
	return b.emit(opcode, typeID, operands...)
}

// EmitVoid appends an instruction with no result (e.g. OpStore,
// OpControlBarrier, OpLoopMerge, OpSelectionMerge) to the current block.
func (b *Builder) EmitVoid(opcode OpCode, operands ...uint32) {
	tail := b.requireOpenBlock()
	ib := NewInstructionBuilder()
	ib.AddWords(operands...)
	tail.body = append(tail.body, ib.Build(opcode))
	if isTerminator(opcode) {
		tail.terminated = true
	}
}

func (b *Builder) requireOpenBlock() *block {
	if !b.inFunction {
		panic("spirv: no function is open")
	}
	tail := b.tailBlock()
	if tail.terminated {
		panic("spirv: cannot append to a terminated block")
	}
	return tail
}

// Branch terminates the current block with an unconditional branch.
func (b *Builder) Branch(target uint32) { b.EmitVoid(OpBranch, target) }

// BranchConditional terminates the current block with a two-way branch.
func (b *Builder) BranchConditional(cond, trueLabel, falseLabel uint32) {
	b.EmitVoid(OpBranchConditional, cond, trueLabel, falseLabel)
}

// Return terminates the current block with a void return.
func (b *Builder) Return() { b.EmitVoid(OpReturn) }

// ReturnValue terminates the current block returning value.
func (b *Builder) ReturnValue(value uint32) { b.EmitVoid(OpReturnValue, value) }

// Kill terminates the current block with OpKill.
func (b *Builder) Kill() { b.EmitVoid(OpKill) }

// Unreachable marks the current block as provably unreached.
func (b *Builder) Unreachable() { b.EmitVoid(OpUnreachable) }

// LoopMerge emits OpLoopMerge; must be the second-to-last instruction of
// the block, immediately before the conditional branch.
func (b *Builder) LoopMerge(mergeBlock, continueBlock uint32, control LoopControl) {
	tail := b.requireOpenBlock()
	ib := NewInstructionBuilder()
	ib.AddWord(mergeBlock)
	ib.AddWord(continueBlock)
	ib.AddWord(uint32(control))
	tail.body = append(tail.body, ib.Build(OpLoopMerge))
}

// SelectionMerge emits OpSelectionMerge; must immediately precede the
// conditional branch in the same block.
func (b *Builder) SelectionMerge(mergeBlock uint32, control SelectionControl) {
	tail := b.requireOpenBlock()
	ib := NewInstructionBuilder()
	ib.AddWord(mergeBlock)
	ib.AddWord(uint32(control))
	tail.body = append(tail.body, ib.Build(OpSelectionMerge))
}

// PhiEdge is one (value, predecessor block) pair feeding an OpPhi.
type PhiEdge struct {
	Value uint32
	Block uint32
}

// Phi emits an OpPhi joining edges at the current (merge) block.
func (b *Builder) Phi(typeID uint32, edges ...PhiEdge) uint32 {
	tail := b.requireOpenBlock()
	id := b.AllocID(IDValue)
	ib := NewInstructionBuilder()
	ib.AddWord(typeID)
	ib.AddWord(id)
	for _, e := range edges {
		ib.AddWord(e.Value)
		ib.AddWord(e.Block)
	}
	tail.body = append(tail.body, ib.Build(OpPhi))
	return id
}

// AccessChain emits OpAccessChain producing a pointer of pointerType into
// base at the given sequence of indices.
func (b *Builder) AccessChain(pointerType, base uint32, indices ...uint32) uint32 {
	return b.emit(OpAccessChain, pointerType, append([]uint32{base}, indices...)...)
}

// CompositeExtract emits OpCompositeExtract.
func (b *Builder) CompositeExtract(typeID, composite uint32, indices ...uint32) uint32 {
	return b.emit(OpCompositeExtract, typeID, append([]uint32{composite}, indices...)...)
}

// EndFunction closes the function under construction and appends its
// encoded instructions (OpFunction / params / blocks / OpFunctionEnd) to
// the module's function section. Every block must be terminated.
func (b *Builder) EndFunction() uint32 {
	if !b.inFunction {
		panic("spirv: EndFunction: no function is open")
	}
	fn := b.curFunc
	for _, blk := range fn.blocks {
		if !blk.terminated {
			panic(fmt.Sprintf("spirv: EndFunction: block %%%d is not terminated", blk.id))
		}
	}

	hdrIB := NewInstructionBuilder()
	hdrIB.AddWord(fn.returnType)
	hdrIB.AddWord(fn.id)
	hdrIB.AddWord(uint32(fn.control))
	hdrIB.AddWord(fn.funcType)
	b.functions = append(b.functions, hdrIB.Build(OpFunction))
	b.functions = append(b.functions, fn.params...)
	for _, blk := range fn.blocks {
		b.functions = append(b.functions, blk.encode()...)
	}
	b.functions = append(b.functions, NewInstructionBuilder().Build(OpFunctionEnd))

	b.inFunction = false
	b.curFunc = nil
	return fn.id
}
