package spirv

import (
	"testing"

	"github.com/gogpu/tensorshade/ir"
)

// TestIfThenElseDiamond exercises the four-block if/then/else/merge shape
// with a two-input OpPhi at the merge block.
func TestIfThenElseDiamond(t *testing.T) {
	b := NewBuilder(Version1_3)
	b.AddCapability(CapabilityShader)
	b.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	i32 := ir.IntOf(32)
	i32ID := b.TypeID(i32)
	voidID := b.TypeVoidID()
	fnTypeID := b.FunctionTypeID(voidID)

	b.BeginFunction(voidID, fnTypeID, FunctionControlNone)

	thenLabel := b.AllocID(IDLabel)
	elseLabel := b.AllocID(IDLabel)
	mergeLabel := b.AllocID(IDLabel)

	cond := b.ConstBool(true)
	b.SelectionMerge(mergeLabel, SelectionControlNone)
	b.BranchConditional(cond, thenLabel, elseLabel)

	b.OpenBlock(thenLabel)
	thenVal := b.ConstInt(i32, 1)
	b.Branch(mergeLabel)

	b.OpenBlock(elseLabel)
	elseVal := b.ConstInt(i32, 2)
	b.Branch(mergeLabel)

	b.OpenBlock(mergeLabel)
	phiID := b.Phi(i32ID, PhiEdge{Value: thenVal, Block: thenLabel}, PhiEdge{Value: elseVal, Block: elseLabel})
	b.ReturnValue(phiID)

	b.EndFunction()

	if b.curFunc != nil || b.inFunction {
		t.Fatal("builder should have no open function after EndFunction")
	}

	bin := b.Build()
	header, bodyOff, err := decodeBlockLabels(bin)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if header.labelCount != 4 {
		t.Fatalf("expected 4 blocks (if/then/else/merge), got %d", header.labelCount)
	}
	if header.phiCount != 1 {
		t.Fatalf("expected exactly one OpPhi, got %d", header.phiCount)
	}
	_ = bodyOff
}

type blockStats struct {
	labelCount  int
	phiCount    int
	branchCount int
}

// decodeBlockLabels walks the encoded module counting OpLabel and OpPhi
// instructions, a minimal structural check independent of the builder's
// own bookkeeping.
func decodeBlockLabels(bin []byte) (blockStats, int, error) {
	var stats blockStats
	off := 20
	for off+4 <= len(bin) {
		word := leUint32(bin[off:])
		opcode := OpCode(word & 0xFFFF)
		wordCount := int(word >> 16)
		if wordCount == 0 || off+wordCount*4 > len(bin) {
			return stats, off, nil
		}
		switch opcode {
		case OpLabel:
			stats.labelCount++
		case OpPhi:
			stats.phiCount++
		case OpBranch:
			stats.branchCount++
		}
		off += wordCount * 4
	}
	return stats, off, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
