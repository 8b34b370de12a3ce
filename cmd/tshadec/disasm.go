package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gogpu/tensorshade/spirv"
)

// The disasm subcommand renders a raw SPIR-V body as .spvasm-style text.
// Opcode and enum names come from the spirv package's own tables, so the
// output vocabulary is exactly what the builder can encode; an opcode the
// builder never emits still prints, with its operands in a raw numeric
// form instead of a guessed shape.

// disassemble reads the module at path and writes its disassembly to
// stdout.
func disassemble(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return disassembleModule(os.Stdout, data)
}

func disassembleModule(w io.Writer, data []byte) error {
	total := len(data) / 4
	if total < 5 {
		return fmt.Errorf("module too small: %d bytes", len(data))
	}
	word := func(i int) uint32 { return binary.LittleEndian.Uint32(data[i*4:]) }
	if word(0) != spirv.MagicNumber {
		return fmt.Errorf("invalid SPIR-V magic 0x%08X", word(0))
	}
	version := word(1)
	fmt.Fprintf(w, "; SPIR-V %d.%d\n; generator 0x%08X, bound %d, schema %d\n",
		(version>>16)&0xFF, (version>>8)&0xFF, word(2), word(3), word(4))

	off := 5
	for off < total {
		first := word(off)
		opcode := spirv.OpCode(first & 0xFFFF)
		count := int(first >> 16)
		if count == 0 || off+count > total {
			return fmt.Errorf("invalid word count %d at word offset %d", count, off)
		}
		operands := make([]uint32, count-1)
		for i := range operands {
			operands[i] = word(off + 1 + i)
		}
		if err := writeInstructionLine(w, opcode, operands); err != nil {
			return fmt.Errorf("at word offset %d: %w", off, err)
		}
		off += count
	}
	return nil
}

// Operand signatures: one letter per operand word, in encoding order.
//
//	R  result id (rendered as the "%n =" left-hand side)
//	T  result type id (rendered first after the opcode, as spvasm does)
//	i  id operand
//	n  literal number
//	c  Capability        k  StorageClass     d  Decoration
//	e  ExecutionMode     s  literal string (consumes the rest)
//	*  zero or more trailing ids
//	#  zero or more trailing numbers
//
// Instructions whose layout a signature can't express (a string followed
// by more operands, or a context-dependent enum) are handled directly in
// writeInstructionLine.
var opSignatures = map[spirv.OpCode]string{
	spirv.OpCapability:         "c",
	spirv.OpExtension:          "s",
	spirv.OpExtInstImport:      "Rs",
	spirv.OpMemoryModel:        "nn",
	spirv.OpExecutionMode:      "ie#",
	spirv.OpString:             "Rs",
	spirv.OpName:               "is",
	spirv.OpMemberName:         "ins",
	spirv.OpMemberDecorate:     "ind#",
	spirv.OpTypeVoid:           "R",
	spirv.OpTypeBool:           "R",
	spirv.OpTypeInt:            "Rnn",
	spirv.OpTypeFloat:          "Rn",
	spirv.OpTypeVector:         "Rin",
	spirv.OpTypeMatrix:         "Rin",
	spirv.OpTypeArray:          "Rii",
	spirv.OpTypeRuntimeArray:   "Ri",
	spirv.OpTypeStruct:         "R*",
	spirv.OpTypePointer:        "Rki",
	spirv.OpTypeFunction:       "Ri*",
	spirv.OpConstantTrue:       "TR",
	spirv.OpConstantFalse:      "TR",
	spirv.OpConstant:           "TR#",
	spirv.OpConstantComposite:  "TR*",
	spirv.OpConstantNull:       "TR",
	spirv.OpFunction:           "TRni",
	spirv.OpFunctionParameter:  "TR",
	spirv.OpFunctionEnd:        "",
	spirv.OpVariable:           "TRk*",
	spirv.OpLoad:               "TRi#",
	spirv.OpStore:              "ii#",
	spirv.OpAccessChain:        "TRi*",
	spirv.OpVectorShuffle:      "TRii#",
	spirv.OpCompositeConstruct: "TR*",
	spirv.OpCompositeExtract:   "TRi#",
	spirv.OpExtInst:            "TRin*",
	spirv.OpControlBarrier:     "iii",
	spirv.OpMemoryBarrier:      "ii",
	spirv.OpPhi:                "TR*",
	spirv.OpLoopMerge:          "iin",
	spirv.OpSelectionMerge:     "in",
	spirv.OpLabel:              "R",
	spirv.OpBranch:             "i",
	spirv.OpBranchConditional:  "iii#",
	spirv.OpSwitch:             "ii#",
	spirv.OpKill:               "",
	spirv.OpReturn:             "",
	spirv.OpReturnValue:        "i",
	spirv.OpUnreachable:        "",
}

// valueOps are the plain value-producing instructions (conversions,
// arithmetic, comparisons, logic, shifts, select) that all share the
// result-type/result/ids layout.
var valueOps = []spirv.OpCode{
	spirv.OpConvertFToU, spirv.OpConvertFToS, spirv.OpConvertSToF,
	spirv.OpConvertUToF, spirv.OpUConvert, spirv.OpSConvert, spirv.OpFConvert,
	spirv.OpSatConvertSToU, spirv.OpSatConvertUToS, spirv.OpBitcast,
	spirv.OpSNegate, spirv.OpFNegate,
	spirv.OpIAdd, spirv.OpFAdd, spirv.OpISub, spirv.OpFSub,
	spirv.OpIMul, spirv.OpFMul, spirv.OpUDiv, spirv.OpSDiv, spirv.OpFDiv,
	spirv.OpUMod, spirv.OpSMod, spirv.OpFMod,
	spirv.OpIsNan, spirv.OpIsInf,
	spirv.OpLogicalEqual, spirv.OpLogicalNotEqual, spirv.OpLogicalOr,
	spirv.OpLogicalAnd, spirv.OpLogicalNot, spirv.OpSelect,
	spirv.OpIEqual, spirv.OpINotEqual,
	spirv.OpUGreaterThan, spirv.OpSGreaterThan,
	spirv.OpUGreaterThanEqual, spirv.OpSGreaterThanEqual,
	spirv.OpULessThan, spirv.OpSLessThan,
	spirv.OpULessThanEqual, spirv.OpSLessThanEqual,
	spirv.OpFOrdEqual, spirv.OpFOrdNotEqual,
	spirv.OpFOrdLessThan, spirv.OpFOrdGreaterThan,
	spirv.OpFOrdLessThanEqual, spirv.OpFOrdGreaterThanEqual,
	spirv.OpShiftRightLogical, spirv.OpShiftRightArithmetic,
	spirv.OpShiftLeftLogical,
	spirv.OpBitwiseOr, spirv.OpBitwiseXor, spirv.OpBitwiseAnd, spirv.OpNot,
}

func init() {
	for _, op := range valueOps {
		opSignatures[op] = "TR*"
	}
}

func writeInstructionLine(w io.Writer, opcode spirv.OpCode, operands []uint32) error {
	switch opcode {
	case spirv.OpEntryPoint:
		// ExecutionModel, function id, name string, then interface ids:
		// the string's length decides where the ids resume, which the
		// signature language can't express.
		if len(operands) < 3 {
			return fmt.Errorf("%v: truncated", opcode)
		}
		name, strWords := literalString(operands[2:])
		line := []string{
			opcode.String(),
			spirv.ExecutionModel(operands[0]).String(),
			idRef(operands[1]),
			fmt.Sprintf("%q", name),
		}
		for _, iface := range operands[2+strWords:] {
			line = append(line, idRef(iface))
		}
		return emitLine(w, "", line)

	case spirv.OpDecorate:
		// A BuiltIn decoration's parameter is itself an enum; everything
		// else takes plain numbers.
		if len(operands) < 2 {
			return fmt.Errorf("%v: truncated", opcode)
		}
		dec := spirv.Decoration(operands[1])
		line := []string{opcode.String(), idRef(operands[0]), dec.String()}
		for _, p := range operands[2:] {
			if dec == spirv.DecorationBuiltIn {
				line = append(line, spirv.BuiltIn(p).String())
			} else {
				line = append(line, fmt.Sprintf("%d", p))
			}
		}
		return emitLine(w, "", line)
	}

	sig, known := opSignatures[opcode]
	if !known {
		line := []string{opcode.String()}
		for _, op := range operands {
			line = append(line, fmt.Sprintf("%d", op))
		}
		return emitLine(w, "", line)
	}

	var result string
	line := []string{opcode.String()}
	pos := 0
	next := func() (uint32, error) {
		if pos >= len(operands) {
			return 0, fmt.Errorf("%v: expected operand %d, have %d", opcode, pos, len(operands))
		}
		v := operands[pos]
		pos++
		return v, nil
	}
	for _, tok := range sig {
		v, err := uint32(0), error(nil)
		if tok != '*' && tok != '#' && tok != 's' {
			if v, err = next(); err != nil {
				return err
			}
		}
		switch tok {
		case 'R':
			result = idRef(v)
		case 'T':
			line = append(line, idRef(v))
		case 'i':
			line = append(line, idRef(v))
		case 'n':
			line = append(line, fmt.Sprintf("%d", v))
		case 'c':
			line = append(line, spirv.Capability(v).String())
		case 'k':
			line = append(line, spirv.StorageClass(v).String())
		case 'd':
			line = append(line, spirv.Decoration(v).String())
		case 'e':
			line = append(line, spirv.ExecutionMode(v).String())
		case 's':
			name, _ := literalString(operands[pos:])
			line = append(line, fmt.Sprintf("%q", name))
			pos = len(operands)
		case '*':
			for pos < len(operands) {
				line = append(line, idRef(operands[pos]))
				pos++
			}
		case '#':
			for pos < len(operands) {
				line = append(line, fmt.Sprintf("%d", operands[pos]))
				pos++
			}
		}
	}
	return emitLine(w, result, line)
}

// emitLine writes one instruction, right-aligning the "%n =" result column
// the way spvasm output conventionally does.
func emitLine(w io.Writer, result string, tokens []string) error {
	lhs := strings.Repeat(" ", 12)
	if result != "" {
		lhs = fmt.Sprintf("%10s = ", result)
	}
	_, err := fmt.Fprintf(w, "%s%s\n", lhs, strings.Join(tokens, " "))
	return err
}

func idRef(n uint32) string { return fmt.Sprintf("%%%d", n) }

// literalString decodes a null-terminated, word-padded string, returning
// the text and how many words it occupied.
func literalString(words []uint32) (string, int) {
	var sb strings.Builder
	for i, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			b := byte(w >> shift)
			if b == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(b)
		}
	}
	return sb.String(), len(words)
}
