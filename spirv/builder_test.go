package spirv

import (
	"testing"

	"github.com/gogpu/tensorshade/ir"
)

// TestIDUniqueness checks that every allocated id is
// distinct and its kind never changes.
func TestIDUniqueness(t *testing.T) {
	b := NewBuilder(Version1_3)
	seen := map[uint32]IDKind{}
	for i := 0; i < 50; i++ {
		id := b.AllocID(IDType)
		if _, dup := seen[id]; dup {
			t.Fatalf("id %d allocated twice", id)
		}
		seen[id] = IDType
		if got := b.KindOf(id); got != IDType {
			t.Fatalf("KindOf(%d) = %v, want %v", id, got, IDType)
		}
	}
}

// TestTypeDeduplication covers property 4: declaring the same scalar
// type, pointer type, function type, or constant twice yields the same id.
func TestTypeDeduplication(t *testing.T) {
	b := NewBuilder(Version1_3)

	t1 := b.TypeID(ir.IntOf(32))
	t2 := b.TypeID(ir.IntOf(32))
	if t1 != t2 {
		t.Fatalf("TypeID not deduplicated: %d != %d", t1, t2)
	}

	p1 := b.PointerTypeID(StorageClassFunction, t1)
	p2 := b.PointerTypeID(StorageClassFunction, t1)
	if p1 != p2 {
		t.Fatalf("PointerTypeID not deduplicated: %d != %d", p1, p2)
	}

	ft1 := b.FunctionTypeID(t1, t1)
	ft2 := b.FunctionTypeID(t1, t1)
	if ft1 != ft2 {
		t.Fatalf("FunctionTypeID not deduplicated: %d != %d", ft1, ft2)
	}

	c1 := b.ConstInt(ir.IntOf(32), 42)
	c2 := b.ConstInt(ir.IntOf(32), 42)
	if c1 != c2 {
		t.Fatalf("ConstInt not deduplicated: %d != %d", c1, c2)
	}

	// A different name on otherwise identical members must get a new id.
	s1 := b.StructTypeID("A", t1)
	s2 := b.StructTypeID("B", t1)
	if s1 == s2 {
		t.Fatal("structs with different names but same members should not share an id")
	}
	s3 := b.StructTypeID("A", t1)
	if s1 != s3 {
		t.Fatal("identical struct name+members should dedup")
	}
}

// TestFunctionRequiresTermination covers property 5: a block without a
// terminator is rejected by EndFunction.
func TestFunctionRequiresTermination(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unterminated block")
		}
	}()
	b := NewBuilder(Version1_3)
	void := b.TypeVoidID()
	ft := b.FunctionTypeID(void)
	b.BeginFunction(void, ft, FunctionControlNone)
	b.EndFunction()
}

// TestNewBlockInsertsImplicitBranch covers invariant 5: adding a block to
// a non-empty function whose tail isn't terminated inserts an
// unconditional branch from the old tail to the new block.
func TestNewBlockInsertsImplicitBranch(t *testing.T) {
	b := NewBuilder(Version1_3)
	void := b.TypeVoidID()
	ft := b.FunctionTypeID(void)
	b.BeginFunction(void, ft, FunctionControlNone)
	b.NewBlock()
	b.Return()
	b.EndFunction()

	stats, _, err := decodeBlockLabels(b.Build())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.labelCount != 2 {
		t.Fatalf("expected 2 blocks, got %d", stats.labelCount)
	}
	if stats.branchCount != 1 {
		t.Fatalf("expected 1 implicit OpBranch chaining the blocks, got %d", stats.branchCount)
	}
}

// TestCapabilityImpliesExtension checks that Int8/Int16 capability implies
// the matching storage extension on Finalize.
func TestCapabilityImpliesExtension(t *testing.T) {
	b := NewBuilder(Version1_3)
	b.TypeID(ir.IntOf(8))
	b.Finalize()
	if !b.extSet["SPV_KHR_8bit_storage"] {
		t.Fatal("expected SPV_KHR_8bit_storage to be required")
	}
}

// TestHeaderRoundTrip covers property 7: decoding a header reproduces the
// encoded descriptor-set table exactly.
func TestHeaderRoundTrip(t *testing.T) {
	h := Header{EntryPoints: []EntryPointInfo{
		{Name: "f", UniformBufferCount: 0, StorageBufferCount: 1},
		{Name: "longer_kernel_name", UniformBufferCount: 2, StorageBufferCount: 3},
	}}
	enc := h.Encode()
	got, _, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.EntryPoints) != len(h.EntryPoints) {
		t.Fatalf("entry point count: got %d want %d", len(got.EntryPoints), len(h.EntryPoints))
	}
	for i, ep := range h.EntryPoints {
		if got.EntryPoints[i] != ep {
			t.Fatalf("entry %d: got %+v want %+v", i, got.EntryPoints[i], ep)
		}
	}
}
