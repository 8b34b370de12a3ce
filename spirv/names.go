package spirv

import "fmt"

// Symbolic names for the constants this package defines, so diagnostics
// and the tshadec disassembler render the same vocabulary the builder
// encodes. Anything outside the builder's own emission set falls back to
// a numeric form rather than guessing.

var opcodeNames = map[OpCode]string{
	OpNop:                  "OpNop",
	OpSource:               "OpSource",
	OpName:                 "OpName",
	OpMemberName:           "OpMemberName",
	OpString:               "OpString",
	OpExtension:            "OpExtension",
	OpExtInstImport:        "OpExtInstImport",
	OpExtInst:              "OpExtInst",
	OpMemoryModel:          "OpMemoryModel",
	OpEntryPoint:           "OpEntryPoint",
	OpExecutionMode:        "OpExecutionMode",
	OpCapability:           "OpCapability",
	OpTypeVoid:             "OpTypeVoid",
	OpTypeBool:             "OpTypeBool",
	OpTypeInt:              "OpTypeInt",
	OpTypeFloat:            "OpTypeFloat",
	OpTypeVector:           "OpTypeVector",
	OpTypeMatrix:           "OpTypeMatrix",
	OpTypeArray:            "OpTypeArray",
	OpTypeRuntimeArray:     "OpTypeRuntimeArray",
	OpTypeStruct:           "OpTypeStruct",
	OpTypePointer:          "OpTypePointer",
	OpTypeFunction:         "OpTypeFunction",
	OpConstantTrue:         "OpConstantTrue",
	OpConstantFalse:        "OpConstantFalse",
	OpConstant:             "OpConstant",
	OpConstantComposite:    "OpConstantComposite",
	OpConstantNull:         "OpConstantNull",
	OpFunction:             "OpFunction",
	OpFunctionParameter:    "OpFunctionParameter",
	OpFunctionEnd:          "OpFunctionEnd",
	OpVariable:             "OpVariable",
	OpLoad:                 "OpLoad",
	OpStore:                "OpStore",
	OpAccessChain:          "OpAccessChain",
	OpDecorate:             "OpDecorate",
	OpMemberDecorate:       "OpMemberDecorate",
	OpVectorShuffle:        "OpVectorShuffle",
	OpCompositeConstruct:   "OpCompositeConstruct",
	OpCompositeExtract:     "OpCompositeExtract",
	OpConvertFToU:          "OpConvertFToU",
	OpConvertFToS:          "OpConvertFToS",
	OpConvertSToF:          "OpConvertSToF",
	OpConvertUToF:          "OpConvertUToF",
	OpUConvert:             "OpUConvert",
	OpSConvert:             "OpSConvert",
	OpFConvert:             "OpFConvert",
	OpSatConvertSToU:       "OpSatConvertSToU",
	OpSatConvertUToS:       "OpSatConvertUToS",
	OpBitcast:              "OpBitcast",
	OpSNegate:              "OpSNegate",
	OpFNegate:              "OpFNegate",
	OpIAdd:                 "OpIAdd",
	OpFAdd:                 "OpFAdd",
	OpISub:                 "OpISub",
	OpFSub:                 "OpFSub",
	OpIMul:                 "OpIMul",
	OpFMul:                 "OpFMul",
	OpUDiv:                 "OpUDiv",
	OpSDiv:                 "OpSDiv",
	OpFDiv:                 "OpFDiv",
	OpUMod:                 "OpUMod",
	OpSMod:                 "OpSMod",
	OpFMod:                 "OpFMod",
	OpIsNan:                "OpIsNan",
	OpIsInf:                "OpIsInf",
	OpLogicalEqual:         "OpLogicalEqual",
	OpLogicalNotEqual:      "OpLogicalNotEqual",
	OpLogicalOr:            "OpLogicalOr",
	OpLogicalAnd:           "OpLogicalAnd",
	OpLogicalNot:           "OpLogicalNot",
	OpSelect:               "OpSelect",
	OpIEqual:               "OpIEqual",
	OpINotEqual:            "OpINotEqual",
	OpUGreaterThan:         "OpUGreaterThan",
	OpSGreaterThan:         "OpSGreaterThan",
	OpUGreaterThanEqual:    "OpUGreaterThanEqual",
	OpSGreaterThanEqual:    "OpSGreaterThanEqual",
	OpULessThan:            "OpULessThan",
	OpSLessThan:            "OpSLessThan",
	OpULessThanEqual:       "OpULessThanEqual",
	OpSLessThanEqual:       "OpSLessThanEqual",
	OpFOrdEqual:            "OpFOrdEqual",
	OpFOrdNotEqual:         "OpFOrdNotEqual",
	OpFOrdLessThan:         "OpFOrdLessThan",
	OpFOrdGreaterThan:      "OpFOrdGreaterThan",
	OpFOrdLessThanEqual:    "OpFOrdLessThanEqual",
	OpFOrdGreaterThanEqual: "OpFOrdGreaterThanEqual",
	OpShiftRightLogical:    "OpShiftRightLogical",
	OpShiftRightArithmetic: "OpShiftRightArithmetic",
	OpShiftLeftLogical:     "OpShiftLeftLogical",
	OpBitwiseOr:            "OpBitwiseOr",
	OpBitwiseXor:           "OpBitwiseXor",
	OpBitwiseAnd:           "OpBitwiseAnd",
	OpNot:                  "OpNot",
	OpControlBarrier:       "OpControlBarrier",
	OpMemoryBarrier:        "OpMemoryBarrier",
	OpPhi:                  "OpPhi",
	OpLoopMerge:            "OpLoopMerge",
	OpSelectionMerge:       "OpSelectionMerge",
	OpLabel:                "OpLabel",
	OpBranch:               "OpBranch",
	OpBranchConditional:    "OpBranchConditional",
	OpSwitch:               "OpSwitch",
	OpKill:                 "OpKill",
	OpReturn:               "OpReturn",
	OpReturnValue:          "OpReturnValue",
	OpUnreachable:          "OpUnreachable",
}

func (op OpCode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint16(op))
}

func (c Capability) String() string {
	switch c {
	case CapabilityMatrix:
		return "Matrix"
	case CapabilityShader:
		return "Shader"
	case CapabilityFloat16:
		return "Float16"
	case CapabilityFloat64:
		return "Float64"
	case CapabilityInt64:
		return "Int64"
	case CapabilityInt16:
		return "Int16"
	case CapabilityInt8:
		return "Int8"
	default:
		return fmt.Sprintf("Capability(%d)", uint32(c))
	}
}

func (sc StorageClass) String() string {
	switch sc {
	case StorageClassUniformConstant:
		return "UniformConstant"
	case StorageClassInput:
		return "Input"
	case StorageClassUniform:
		return "Uniform"
	case StorageClassOutput:
		return "Output"
	case StorageClassWorkgroup:
		return "Workgroup"
	case StorageClassPrivate:
		return "Private"
	case StorageClassFunction:
		return "Function"
	case StorageClassStorageBuffer:
		return "StorageBuffer"
	default:
		return fmt.Sprintf("StorageClass(%d)", uint32(sc))
	}
}

func (d Decoration) String() string {
	switch d {
	case DecorationBlock:
		return "Block"
	case DecorationBufferBlock:
		return "BufferBlock"
	case DecorationRowMajor:
		return "RowMajor"
	case DecorationColMajor:
		return "ColMajor"
	case DecorationArrayStride:
		return "ArrayStride"
	case DecorationMatrixStride:
		return "MatrixStride"
	case DecorationBuiltIn:
		return "BuiltIn"
	case DecorationLocation:
		return "Location"
	case DecorationBinding:
		return "Binding"
	case DecorationDescriptorSet:
		return "DescriptorSet"
	case DecorationOffset:
		return "Offset"
	default:
		return fmt.Sprintf("Decoration(%d)", uint32(d))
	}
}

func (b BuiltIn) String() string {
	switch b {
	case BuiltInNumWorkgroups:
		return "NumWorkgroups"
	case BuiltInWorkgroupSize:
		return "WorkgroupSize"
	case BuiltInWorkgroupID:
		return "WorkgroupId"
	case BuiltInLocalInvocationID:
		return "LocalInvocationId"
	case BuiltInGlobalInvocationID:
		return "GlobalInvocationId"
	case BuiltInLocalInvocationIndex:
		return "LocalInvocationIndex"
	default:
		return fmt.Sprintf("BuiltIn(%d)", uint32(b))
	}
}

func (m ExecutionModel) String() string {
	if m == ExecutionModelGLCompute {
		return "GLCompute"
	}
	return fmt.Sprintf("ExecutionModel(%d)", uint32(m))
}

func (m ExecutionMode) String() string {
	switch m {
	case ExecutionModeLocalSize:
		return "LocalSize"
	case ExecutionModeLocalSizeID:
		return "LocalSizeId"
	default:
		return fmt.Sprintf("ExecutionMode(%d)", uint32(m))
	}
}
