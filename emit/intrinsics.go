package emit

import (
	"fmt"
	"strings"

	"github.com/gogpu/tensorshade/intrin"
	"github.com/gogpu/tensorshade/ir"
	"github.com/gogpu/tensorshade/spirv"
)

// callExpr emits a Call expression. A recognized intrinsic (Op != OpNone)
// goes through intrin.Lower, which is itself the single entry point for
// both the cheap arithmetic formulas and the semantic fallback (e.g.
// OpHalvingSub routes internally to LowerSemantic) — emit never calls
// LowerSemantic directly. An ordinary named call dispatches through the
// math table or one of the handful of special forms.
func (kc *kernelCtx) callExpr(c ir.Call, resultType ir.Type) (uint32, error) {
	if c.Op != ir.OpNone {
		lowered := intrin.Lower(&ir.Expr{Type: resultType, Kind: c})
		return kc.emitExpr(lowered)
	}

	switch c.Name {
	case "shift_right":
		return kc.emitShift(resultType, c.Args[0], c.Args[1], false)
	case "shift_left":
		return kc.emitShift(resultType, c.Args[0], c.Args[1], true)
	case "clamp":
		return kc.glslClamp(resultType, c.Args)
	case "is_nan":
		return kc.unaryCore(spirv.OpIsNan, ir.BoolType(), c.Args[0])
	case "is_inf":
		return kc.unaryCore(spirv.OpIsInf, ir.BoolType(), c.Args[0])
	case "gpu_thread_barrier":
		return 0, kc.emitBarrier(c.Args)
	}

	if glslOp, ok := mathCallTable[trimMathSuffix(c.Name)]; ok {
		return kc.extInstCall(glslOp, resultType, c.Args)
	}
	return 0, fmt.Errorf("emit: unrecognized call %q", c.Name)
}

// trimMathSuffix strips the width suffix from a math call name (sin_f32,
// sqrt_f64, ...): the GLSL.std.450 opcode is width-agnostic, the result
// type id already carries the width.
func trimMathSuffix(name string) string {
	for _, suffix := range []string{"_f16", "_f32", "_f64"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// mathCallTable maps the transcendental/rounding math names the recognizer
// leaves as plain named calls onto their GLSL.std.450 extended instruction,
// for the common case of one result type shared by every argument.
var mathCallTable = map[string]uint32{
	"sin":         spirv.GLSLstd450Sin,
	"cos":         spirv.GLSLstd450Cos,
	"tan":         spirv.GLSLstd450Tan,
	"asin":        spirv.GLSLstd450Asin,
	"acos":        spirv.GLSLstd450Acos,
	"atan":        spirv.GLSLstd450Atan,
	"atan2":       spirv.GLSLstd450Atan2,
	"pow":         spirv.GLSLstd450Pow,
	"exp":         spirv.GLSLstd450Exp,
	"log":         spirv.GLSLstd450Log,
	"exp2":        spirv.GLSLstd450Exp2,
	"log2":        spirv.GLSLstd450Log2,
	"sqrt":        spirv.GLSLstd450Sqrt,
	"rsqrt":       spirv.GLSLstd450InverseSqrt,
	"abs":         0, // resolved in extInstCall by result sign
	"floor":       spirv.GLSLstd450Floor,
	"ceil":        spirv.GLSLstd450Ceil,
	"round":       spirv.GLSLstd450Round,
	"trunc":       spirv.GLSLstd450Trunc,
	"fma":         spirv.GLSLstd450Fma,
}

// extInstCall emits an OpExtInst against the module's cached GLSL.std.450
// import. "abs" is resolved here rather than in the table, since its
// opcode depends on whether resultType is a float or signed-integer type.
func (kc *kernelCtx) extInstCall(glslOp uint32, resultType ir.Type, args []*ir.Expr) (uint32, error) {
	if glslOp == 0 {
		if resultType.IsFloat() {
			glslOp = spirv.GLSLstd450FAbs
		} else {
			glslOp = spirv.GLSLstd450SAbs
		}
	}
	set := kc.glslSet()
	vals := make([]uint32, len(args))
	for i, a := range args {
		v, err := kc.emitExpr(a)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	typeID := kc.b().TypeID(resultType)
	operands := append([]uint32{set, glslOp}, vals...)
	return kc.b().Emit(spirv.OpExtInst, typeID, operands...), nil
}

// glslSet returns the module's cached GLSL.std.450 extended instruction set
// id, importing it on first use.
func (kc *kernelCtx) glslSet() uint32 {
	if kc.e.glslSetID == 0 {
		kc.e.glslSetID = kc.b().ExtInstImport("GLSL.std.450")
	}
	return kc.e.glslSetID
}

func (kc *kernelCtx) unaryCore(opcode spirv.OpCode, resultType ir.Type, x *ir.Expr) (uint32, error) {
	xv, err := kc.emitExpr(x)
	if err != nil {
		return 0, err
	}
	typeID := kc.b().TypeID(resultType)
	return kc.b().Emit(opcode, typeID, xv), nil
}

// glslClamp picks the signedness-correct GLSL.std.450 clamp variant by the
// result type, matching how glslMinMax resolves min/max.
func (kc *kernelCtx) glslClamp(resultType ir.Type, args []*ir.Expr) (uint32, error) {
	op := spirv.GLSLstd450FClamp
	switch {
	case resultType.IsFloat():
		op = spirv.GLSLstd450FClamp
	case resultType.IsInt():
		op = spirv.GLSLstd450SClamp
	default:
		op = spirv.GLSLstd450UClamp
	}
	return kc.extInstCall(op, resultType, args)
}

// glslMinMax implements the Min/Max ir expression kinds via GLSL.std.450
// rather than a compare-and-select: the extended instruction set already
// picks the signedness-correct variant, and each operand id is computed
// exactly once before the OpExtInst. Float NaN handling follows
// GLSL.std.450's FMin/FMax rule rather than select(a<b,a,b)'s
// second-operand rule; a kernel that needs the latter must spell the
// select out. See DESIGN.md.
func (kc *kernelCtx) glslMinMax(isMin bool, resultType ir.Type, args []*ir.Expr) (uint32, error) {
	var op uint32
	switch {
	case resultType.IsFloat() && isMin:
		op = spirv.GLSLstd450FMin
	case resultType.IsFloat():
		op = spirv.GLSLstd450FMax
	case resultType.IsInt() && isMin:
		op = spirv.GLSLstd450SMin
	case resultType.IsInt():
		op = spirv.GLSLstd450SMax
	case isMin:
		op = spirv.GLSLstd450UMin
	default:
		op = spirv.GLSLstd450UMax
	}
	return kc.extInstCall(op, resultType, args)
}

// emitShift lowers the shift_right/shift_left named calls the intrinsic
// lowerer produces. The shift amount is splat up to the base's lane count
// when it arrives scalar, since SPIR-V requires the component counts to
// match. Negative shift amounts (a shift_right meaning "shift left") must
// already have been resolved by the caller; the lowerer only ever emits a
// possibly-negative amount under a select that picks the direction first.
func (kc *kernelCtx) emitShift(t ir.Type, base, amount *ir.Expr, left bool) (uint32, error) {
	bv, err := kc.emitExpr(base)
	if err != nil {
		return 0, err
	}
	av, err := kc.emitExpr(amount)
	if err != nil {
		return 0, err
	}
	if t.Lanes > 1 && amount.Type.Lanes == 1 {
		vecAmountType := kc.b().TypeID(amount.Type.WithLanes(t.Lanes))
		constituents := make([]uint32, t.Lanes)
		for i := range constituents {
			constituents[i] = av
		}
		av = kc.b().Emit(spirv.OpCompositeConstruct, vecAmountType, constituents...)
	}
	opcode := spirv.OpShiftLeftLogical
	if !left {
		if t.IsInt() {
			opcode = spirv.OpShiftRightArithmetic
		} else {
			opcode = spirv.OpShiftRightLogical
		}
	}
	typeID := kc.b().TypeID(t)
	return kc.b().Emit(opcode, typeID, bv, av), nil
}

// Barrier mask bits: Device selects global/uniform memory
// semantics, Shared selects workgroup memory semantics.
const (
	barrierDevice = 1 << 0
	barrierShared = 1 << 1
)

// emitBarrier emits OpControlBarrier for a gpu_thread_barrier(mask) call,
// deriving the memory scope and semantics from the mask bits when the mask
// is a compile-time literal. A non-literal or absent mask conservatively
// synchronizes against both storage classes.
func (kc *kernelCtx) emitBarrier(args []*ir.Expr) error {
	mask := int64(barrierDevice | barrierShared)
	if len(args) == 1 {
		if v, ok := ir.AsInt64(args[0]); ok {
			mask = v
		}
	}
	semantics := uint64(spirv.MemorySemanticsAcquireRelease)
	memScope := uint64(spirv.ScopeWorkgroup)
	if mask&barrierDevice != 0 {
		semantics |= uint64(spirv.MemorySemanticsUniformMemory)
		memScope = uint64(spirv.ScopeDevice)
	}
	if mask&barrierShared != 0 {
		semantics |= uint64(spirv.MemorySemanticsWorkgroupMemory)
	}

	b := kc.b()
	exec := b.ConstUint(ir.UintOf(32), uint64(spirv.ScopeWorkgroup))
	mem := b.ConstUint(ir.UintOf(32), memScope)
	sem := b.ConstUint(ir.UintOf(32), semantics)
	b.EmitVoid(spirv.OpControlBarrier, exec, mem, sem)
	return nil
}
