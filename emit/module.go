package emit

import (
	"fmt"

	"github.com/gogpu/tensorshade/intrin"
	"github.com/gogpu/tensorshade/ir"
	"github.com/gogpu/tensorshade/spirv"
)

// Module compiles kernels into one SPIR-V binary plus the side-car header
// that precedes it. Kernel order fixes entry-point order,
// which in turn fixes each kernel's descriptor set index. Each kernel's
// body is run through the intrinsic recognizer first, so arithmetic idioms the source wrote out
// longhand reach the emitter as named intrinsic calls; the emitter then
// expands each such call with intrin.Lower (see callExpr).
func Module(kernels []*ir.Kernel, opts Options) ([]byte, spirv.Header, error) {
	b := spirv.NewBuilder(opts.Version)
	b.AddCapability(spirv.CapabilityShader)
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	e := &emitter{b: b, opts: opts, builtins: map[spirv.BuiltIn]builtinVar{}}

	var header spirv.Header
	for i, k := range kernels {
		recognized := &ir.Kernel{
			Name:    k.Name,
			Params:  k.Params,
			Body:    intrin.RecognizeStmt(k.Body, opts.Intrinsics),
			Blocks:  k.Blocks,
			Threads: k.Threads,
		}
		info, err := e.emitKernel(recognized, uint32(i))
		if err != nil {
			return nil, spirv.Header{}, fmt.Errorf("emit kernel %q: %w", k.Name, err)
		}
		header.EntryPoints = append(header.EntryPoints, info)
	}
	return b.Build(), header, nil
}

// emitKernel compiles one entry point: workgroup-size discovery, argument
// binding, the statement-tree walk, and entry-point metadata.
func (e *emitter) emitKernel(k *ir.Kernel, descriptorSet uint32) (spirv.EntryPointInfo, error) {
	wg, err := resolveWorkgroupSize(k)
	if err != nil {
		return spirv.EntryPointInfo{}, err
	}

	kc := &kernelCtx{
		e:             e,
		name:          k.Name,
		scope:         newScope(),
		builtinLoads:  map[spirv.BuiltIn]uint32{},
		dimCache:      map[builtinDimKey]uint32{},
		interfaceVars: map[uint32]bool{},
	}

	voidID := e.b.TypeVoidID()
	fnType := e.b.FunctionTypeID(voidID)
	fnID := e.b.BeginFunction(voidID, fnType, spirv.FunctionControlNone)
	e.b.AddEntryPoint(spirv.ExecutionModelGLCompute, fnID, k.Name)
	e.b.AddName(fnID, k.Name)

	if err := kc.bindArguments(k, descriptorSet); err != nil {
		return spirv.EntryPointInfo{}, err
	}
	if err := kc.emitStmt(k.Body); err != nil {
		return spirv.EntryPointInfo{}, err
	}
	kc.b().Return()
	kc.b().EndFunction()

	e.b.AddExecutionMode(k.Name, spirv.ExecutionModeLocalSize, wg[0], wg[1], wg[2])
	for varID := range kc.interfaceVars {
		e.b.AddEntryPointInterface(k.Name, varID)
	}

	return spirv.EntryPointInfo{
		Name:               k.Name,
		UniformBufferCount: kc.uniformCount,
		StorageBufferCount: kc.storageCount,
	}, nil
}

// resolveWorkgroupSize returns k.Threads verbatim if any dimension is
// explicit (non-zero), otherwise discovers it from the body's GPUThread For
// loops and defaults any still-undetermined dimension to 1.
func resolveWorkgroupSize(k *ir.Kernel) ([3]uint32, error) {
	if k.Threads != ([3]uint32{}) {
		return k.Threads, nil
	}
	var wg [3]uint32
	var set [3]bool
	if err := discoverThreads(k.Body, &wg, &set); err != nil {
		return [3]uint32{}, err
	}
	for i := range wg {
		if !set[i] {
			wg[i] = 1
		}
	}
	return wg, nil
}

// discoverThreads walks s looking for ForGPUThread loops with a
// compile-time-constant Extent, recording one size per dimension and
// rejecting inconsistent sizes for the same dimension.
func discoverThreads(s *ir.Stmt, wg *[3]uint32, set *[3]bool) error {
	if f, ok := s.Kind.(ir.For); ok && f.ForType == ir.ForGPUThread {
		if n, ok := ir.AsInt64(f.Extent); ok && n >= 0 {
			d := int(f.Dim)
			if set[d] && wg[d] != uint32(n) {
				return fmt.Errorf("emit: inconsistent workgroup size for dimension %d: %d vs %d", d, wg[d], n)
			}
			wg[d] = uint32(n)
			set[d] = true
		}
	}
	for _, c := range s.Children() {
		if err := discoverThreads(c, wg, set); err != nil {
			return err
		}
	}
	return nil
}

// bindArguments declares the entry point's descriptor set: scalar
// parameters are packed into one Offset-decorated uniform struct at
// binding 0 (when any exist) and materialized as values up front; each
// buffer parameter gets its own BufferBlock-decorated runtime-array struct
// at the next binding index.
func (kc *kernelCtx) bindArguments(k *ir.Kernel, descriptorSet uint32) error {
	b := kc.b()
	binding := uint32(0)

	if scalars := k.ScalarParams(); len(scalars) > 0 {
		memberTypes := make([]uint32, len(scalars))
		for i, p := range scalars {
			memberTypes[i] = b.TypeID(p.Type)
		}
		structID := b.StructTypeID(k.Name+"_Args", memberTypes...)

		offset := uint32(0)
		for i, p := range scalars {
			b.MemberDecorate(structID, uint32(i), spirv.DecorationOffset, offset)
			b.AddMemberName(structID, uint32(i), p.Name)
			offset += uint32(p.Type.Bytes())
		}
		b.Decorate(structID, spirv.DecorationBlock)

		ptrType := b.PointerTypeID(spirv.StorageClassUniform, structID)
		varID := b.AddVariable(ptrType, spirv.StorageClassUniform, nil)
		b.Decorate(varID, spirv.DecorationDescriptorSet, descriptorSet)
		b.Decorate(varID, spirv.DecorationBinding, binding)
		kc.uniformCount++
		binding++

		for i, p := range scalars {
			memberPtrType := b.PointerTypeID(spirv.StorageClassUniform, memberTypes[i])
			idxConst := b.ConstUint(ir.UintOf(32), uint64(i))
			memberPtr := b.AccessChain(memberPtrType, varID, idxConst)
			val := b.Emit(spirv.OpLoad, memberTypes[i], memberPtr)
			kc.scope.bindValue(p.Name, valueBinding{id: val, typ: p.Type})
		}
	}

	for _, p := range k.BufferParams() {
		elemTypeID := b.TypeID(p.Type)
		arrType := b.RuntimeArrayTypeID(p.Type)
		b.Decorate(arrType, spirv.DecorationArrayStride, uint32(p.Type.Bytes()))

		structID := b.StructTypeID(k.Name+"_"+p.Name+"_Buffer", arrType)
		b.MemberDecorate(structID, 0, spirv.DecorationOffset, 0)
		b.Decorate(structID, spirv.DecorationBufferBlock)

		ptrType := b.PointerTypeID(spirv.StorageClassUniform, structID)
		varID := b.AddVariable(ptrType, spirv.StorageClassUniform, nil)
		b.Decorate(varID, spirv.DecorationDescriptorSet, descriptorSet)
		b.Decorate(varID, spirv.DecorationBinding, binding)
		kc.storageCount++
		binding++

		kc.scope.bindBuffer(p.Name, bufferBinding{
			base:    varID,
			elem:    p.Type,
			elemID:  elemTypeID,
			storage: spirv.StorageClassUniform,
			wrapped: true,
		})
	}
	return nil
}
