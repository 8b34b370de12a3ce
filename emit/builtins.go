package emit

import (
	"fmt"

	"github.com/gogpu/tensorshade/intrin"
	"github.com/gogpu/tensorshade/ir"
	"github.com/gogpu/tensorshade/spirv"
)

// gpuBuiltinKind maps an intrin.GPUBuiltinKind (recognized from a
// variable name's string suffix) to the SPIR-V
// built-in decoration it loads from.
func gpuBuiltinKind(k intrin.GPUBuiltinKind) spirv.BuiltIn {
	switch k {
	case intrin.ThreadID:
		return spirv.BuiltInLocalInvocationID
	case intrin.BlockID:
		return spirv.BuiltInWorkgroupID
	default: // intrin.BlockDim
		return spirv.BuiltInWorkgroupSize
	}
}

// emitGPUBuiltinVar resolves a Var reference that didn't match any bound
// name in scope against the GPU built-in suffix table: "pixel__thread_id_x"
// loads lane x of LocalInvocationId, and so on. An unrecognized "__"-
// prefixed name is a compile error, not a silent miss.
func (kc *kernelCtx) emitGPUBuiltinVar(name string) (uint32, error) {
	b, ok, err := intrin.RecognizeGPUBuiltin(name)
	if err != nil {
		return 0, fmt.Errorf("emit: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("emit: reference to unbound name %q", name)
	}
	return kc.loadGPUDim(gpuBuiltinKind(b.Kind), ir.GPUDim(b.Dim)), nil
}

// ensureBuiltin declares kind's backing Input variable once per module and
// returns the cached declaration on subsequent calls, so two kernels that
// both reference LocalInvocationID share one global.
func (e *emitter) ensureBuiltin(kind spirv.BuiltIn) builtinVar {
	if bv, ok := e.builtins[kind]; ok {
		return bv
	}
	vecType := e.b.TypeID(ir.UintOf(32).WithLanes(3))
	ptrType := e.b.PointerTypeID(spirv.StorageClassInput, vecType)
	varID := e.b.AddVariable(ptrType, spirv.StorageClassInput, nil)
	e.b.Decorate(varID, spirv.DecorationBuiltIn, uint32(kind))
	bv := builtinVar{varID: varID, typeID: vecType}
	e.builtins[kind] = bv
	return bv
}

// loadGPUDim returns the signed 32-bit value a GPUThread/GPUBlock For loop's
// Name binds to: kind's vec3 built-in is loaded once at first reference
// within the kernel (cached in kc.builtinLoads), then the requested lane is extracted and bitcast to
// a signed value for every occurrence.
func (kc *kernelCtx) loadGPUDim(kind spirv.BuiltIn, dim ir.GPUDim) uint32 {
	key := builtinDimKey{kind: kind, dim: dim}
	if v, ok := kc.dimCache[key]; ok {
		return v
	}
	vecVal, ok := kc.builtinLoads[kind]
	if !ok {
		bv := kc.e.ensureBuiltin(kind)
		kc.interfaceVars[bv.varID] = true
		vecVal = kc.b().Emit(spirv.OpLoad, bv.typeID, bv.varID)
		kc.builtinLoads[kind] = vecVal
	}
	u32 := kc.b().TypeID(ir.UintOf(32))
	i32 := kc.b().TypeID(ir.IntOf(32))
	lane := kc.b().CompositeExtract(u32, vecVal, uint32(dim))
	signed := kc.b().Emit(spirv.OpBitcast, i32, lane)
	kc.dimCache[key] = signed
	return signed
}
