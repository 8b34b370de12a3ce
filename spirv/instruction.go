package spirv

import "encoding/binary"

// Instruction is one decoded SPIR-V instruction: opcode plus its operand
// words (result type id and result id, if any, come first by convention).
type Instruction struct {
	Opcode OpCode
	Words  []uint32
}

// Encode serializes the instruction, word count and opcode packed into the
// first word per the SPIR-V physical layout.
func (i Instruction) Encode() []uint32 {
	out := make([]uint32, 0, len(i.Words)+1)
	out = append(out, (uint32(len(i.Words)+1)<<16)|uint32(i.Opcode))
	out = append(out, i.Words...)
	return out
}

// InstructionBuilder accumulates operand words for a single instruction.
type InstructionBuilder struct {
	words []uint32
}

func NewInstructionBuilder() *InstructionBuilder {
	return &InstructionBuilder{words: make([]uint32, 0, 8)}
}

func (b *InstructionBuilder) AddWord(word uint32) { b.words = append(b.words, word) }

func (b *InstructionBuilder) AddWords(words ...uint32) { b.words = append(b.words, words...) }

// AddString appends a null-terminated, word-padded UTF-8 literal.
func (b *InstructionBuilder) AddString(s string) {
	raw := append([]byte(s), 0)
	for len(raw)%4 != 0 {
		raw = append(raw, 0)
	}
	for i := 0; i < len(raw); i += 4 {
		b.words = append(b.words, binary.LittleEndian.Uint32(raw[i:i+4]))
	}
}

func (b *InstructionBuilder) Build(opcode OpCode) Instruction {
	return Instruction{Opcode: opcode, Words: b.words}
}

// stringWordCount is the number of words a literal string contributes,
// (len+1+3)/4 rounded down, i.e. ceil((len+1)/4).
func stringWordCount(s string) int {
	return (len(s) + 1 + 3) / 4
}
