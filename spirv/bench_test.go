package spirv

import (
	"testing"

	"github.com/gogpu/tensorshade/ir"
)

func BenchmarkBuildSmallModule(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		bld := NewBuilder(Version1_3)
		bld.AddCapability(CapabilityShader)
		bld.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)
		void := bld.TypeVoidID()
		ft := bld.FunctionTypeID(void)
		fn := bld.BeginFunction(void, ft, FunctionControlNone)
		bld.AddEntryPoint(ExecutionModelGLCompute, fn, "k")
		for j := 0; j < 16; j++ {
			bld.ConstInt(ir.IntOf(32), int64(j))
		}
		bld.Return()
		bld.EndFunction()
		bld.Build()
	}
}
