package emit

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/tensorshade/ir"
	"github.com/gogpu/tensorshade/spirv"
)

func i32Imm(v int64) *ir.Expr {
	return &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: v}}
}

func u8Imm(v uint64) *ir.Expr {
	return &ir.Expr{Type: ir.UintOf(8), Kind: ir.ImmUint{Value: v}}
}

func varOf(name string, t ir.Type) *ir.Expr {
	return &ir.Expr{Type: t, Kind: ir.Var{Name: name}}
}

// incrementKernel is the end-to-end fixture: f(x) = x[i] + 1 over u8,
// one storage buffer, no scalar arguments, 64 threads in x.
func incrementKernel() *ir.Kernel {
	u8 := ir.UintOf(8)
	i := varOf("i", ir.IntOf(32))
	load := &ir.Expr{Type: u8, Kind: ir.Load{Name: "x", Index: i}}
	sum := &ir.Expr{Type: u8, Kind: ir.Add{X: load, Y: u8Imm(1)}}
	store := &ir.Stmt{Kind: ir.Store{Name: "x", Index: i, Value: sum}}
	loop := &ir.Stmt{Kind: ir.For{
		Name: "i", Min: i32Imm(0), Extent: i32Imm(64),
		ForType: ir.ForGPUThread, Dim: ir.DimX, Body: store,
	}}
	return &ir.Kernel{
		Name:   "f",
		Params: []ir.Param{{Name: "x", Type: u8, IsBuffer: true}},
		Body:   loop,
		Blocks: [3]uint32{4, 1, 1},
	}
}

type moduleScan struct {
	labelCount     int
	phiCount       int
	phiOperands    int
	extensions     []string
	executionModes [][]uint32
}

// scanModule decodes the physical instruction stream of a SPIR-V body,
// collecting the counts and operands the scenario tests assert on.
func scanModule(t *testing.T, body []byte) moduleScan {
	t.Helper()
	if len(body) < 20 {
		t.Fatalf("body too short: %d bytes", len(body))
	}
	if got := binary.LittleEndian.Uint32(body); got != spirv.MagicNumber {
		t.Fatalf("bad magic 0x%08x", got)
	}
	var scan moduleScan
	off := 20
	for off+4 <= len(body) {
		word := binary.LittleEndian.Uint32(body[off:])
		opcode := spirv.OpCode(word & 0xFFFF)
		wordCount := int(word >> 16)
		if wordCount == 0 || off+wordCount*4 > len(body) {
			t.Fatalf("malformed instruction at byte %d", off)
		}
		operands := make([]uint32, wordCount-1)
		for i := range operands {
			operands[i] = binary.LittleEndian.Uint32(body[off+4+i*4:])
		}
		switch opcode {
		case spirv.OpLabel:
			scan.labelCount++
		case spirv.OpPhi:
			scan.phiCount++
			scan.phiOperands = len(operands) - 2 // minus type and result ids
		case spirv.OpExtension:
			scan.extensions = append(scan.extensions, decodeLiteralString(operands))
		case spirv.OpExecutionMode:
			scan.executionModes = append(scan.executionModes, operands)
		}
		off += wordCount * 4
	}
	return scan
}

func decodeLiteralString(words []uint32) string {
	raw := make([]byte, 0, len(words)*4)
	for _, w := range words {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], w)
		raw = append(raw, b[:]...)
	}
	for i, c := range raw {
		if c == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

// TestCompileIncrementKernel compiles the increment kernel: the side-car
// header names one entry point "f" with no uniform buffer and one storage
// buffer, and the body carries SPV_KHR_8bit_storage and LocalSize 64 1 1.
func TestCompileIncrementKernel(t *testing.T) {
	body, header, err := Module([]*ir.Kernel{incrementKernel()}, Options{Version: spirv.Version1_3})
	if err != nil {
		t.Fatalf("Module: %v", err)
	}

	if len(header.EntryPoints) != 1 {
		t.Fatalf("entry points: got %d, want 1", len(header.EntryPoints))
	}
	ep := header.EntryPoints[0]
	if ep.Name != "f" || ep.UniformBufferCount != 0 || ep.StorageBufferCount != 1 {
		t.Fatalf("entry point: got %+v", ep)
	}

	scan := scanModule(t, body)
	found8bit := false
	for _, ext := range scan.extensions {
		if ext == "SPV_KHR_8bit_storage" {
			found8bit = true
		}
	}
	if !found8bit {
		t.Fatalf("SPV_KHR_8bit_storage not declared; extensions: %v", scan.extensions)
	}

	foundLocalSize := false
	for _, mode := range scan.executionModes {
		// operands: entry point id, mode, then mode parameters.
		if len(mode) == 5 && spirv.ExecutionMode(mode[1]) == spirv.ExecutionModeLocalSize {
			foundLocalSize = true
			if mode[2] != 64 || mode[3] != 1 || mode[4] != 1 {
				t.Fatalf("LocalSize = %d %d %d, want 64 1 1", mode[2], mode[3], mode[4])
			}
		}
	}
	if !foundLocalSize {
		t.Fatal("no LocalSize execution mode emitted")
	}
}

// TestHeaderMatchesDescriptorTable checks that parsing
// the full compiled module (header + body) reproduces the emitter's
// descriptor-set table exactly.
func TestHeaderMatchesDescriptorTable(t *testing.T) {
	body, header, err := Module([]*ir.Kernel{incrementKernel()}, Options{Version: spirv.Version1_3})
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	module := append(header.Encode(), body...)
	decoded, bodyOff, err := spirv.Decode(module)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.EntryPoints) != len(header.EntryPoints) {
		t.Fatalf("entry point count mismatch: %d vs %d", len(decoded.EntryPoints), len(header.EntryPoints))
	}
	for i := range decoded.EntryPoints {
		if decoded.EntryPoints[i] != header.EntryPoints[i] {
			t.Fatalf("entry %d: decoded %+v, emitted %+v", i, decoded.EntryPoints[i], header.EntryPoints[i])
		}
	}
	if got := binary.LittleEndian.Uint32(module[bodyOff:]); got != spirv.MagicNumber {
		t.Fatalf("body offset %d does not point at SPIR-V magic", bodyOff)
	}
}

// TestSelectEmitsPhiDiamond checks that an if/then/else
// expression becomes exactly four blocks with a two-input OpPhi at the
// merge.
func TestSelectEmitsPhiDiamond(t *testing.T) {
	i32 := ir.IntOf(32)
	cond := &ir.Expr{Type: ir.BoolType(), Kind: ir.GE{X: varOf("n", i32), Y: i32Imm(0)}}
	sel := &ir.Expr{Type: i32, Kind: ir.Select{Cond: cond, T: i32Imm(1), F: i32Imm(2)}}
	store := &ir.Stmt{Kind: ir.Store{Name: "out", Index: i32Imm(0), Value: sel}}
	k := &ir.Kernel{
		Name: "pick",
		Params: []ir.Param{
			{Name: "n", Type: i32},
			{Name: "out", Type: i32, IsBuffer: true},
		},
		Body:    store,
		Blocks:  [3]uint32{1, 1, 1},
		Threads: [3]uint32{1, 1, 1},
	}

	body, header, err := Module([]*ir.Kernel{k}, Options{Version: spirv.Version1_3})
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if header.EntryPoints[0].UniformBufferCount != 1 {
		t.Fatalf("scalar parameter should produce one uniform buffer, got %d", header.EntryPoints[0].UniformBufferCount)
	}

	scan := scanModule(t, body)
	if scan.labelCount != 4 {
		t.Fatalf("expected 4 blocks (if/then/else/merge), got %d", scan.labelCount)
	}
	if scan.phiCount != 1 {
		t.Fatalf("expected exactly one OpPhi, got %d", scan.phiCount)
	}
	if scan.phiOperands != 4 {
		t.Fatalf("OpPhi should carry two (value, block) pairs, got %d operand words", scan.phiOperands)
	}
}

// TestWorkgroupSizeConflict checks that two GPU-thread
// loops over the same dimension with different extents fail compilation.
func TestWorkgroupSizeConflict(t *testing.T) {
	u8 := ir.UintOf(8)
	mkLoop := func(name string, extent int64) *ir.Stmt {
		i := varOf(name, ir.IntOf(32))
		load := &ir.Expr{Type: u8, Kind: ir.Load{Name: "x", Index: i}}
		st := &ir.Stmt{Kind: ir.Store{Name: "x", Index: i, Value: load}}
		return &ir.Stmt{Kind: ir.For{
			Name: name, Min: i32Imm(0), Extent: i32Imm(extent),
			ForType: ir.ForGPUThread, Dim: ir.DimX, Body: st,
		}}
	}
	body := &ir.Stmt{Kind: ir.Block{Stmts: []*ir.Stmt{mkLoop("i", 64), mkLoop("j", 32)}}}
	k := &ir.Kernel{
		Name:   "clash",
		Params: []ir.Param{{Name: "x", Type: u8, IsBuffer: true}},
		Body:   body,
		Blocks: [3]uint32{1, 1, 1},
	}
	if _, _, err := Module([]*ir.Kernel{k}, Options{Version: spirv.Version1_3}); err == nil {
		t.Fatal("expected a workgroup-size conflict error")
	}
}

// TestUnitStrideRampUsesWideAccess checks the vector fast path: a
// unit-stride ramp over a vector-element buffer loads one vector rather
// than gathering per lane, which shows up as exactly one OpLoad from the
// buffer in the function body.
func TestUnitStrideRampUsesWideAccess(t *testing.T) {
	u8x4 := ir.UintOf(8).WithLanes(4)
	ramp := &ir.Expr{Type: ir.IntOf(32).WithLanes(4), Kind: ir.Ramp{
		Base: i32Imm(0), Stride: i32Imm(1), Lanes: 4,
	}}
	load := &ir.Expr{Type: u8x4, Kind: ir.Load{Name: "x", Index: ramp}}
	store := &ir.Stmt{Kind: ir.Store{Name: "y", Index: ramp, Value: load}}
	k := &ir.Kernel{
		Name: "copy4",
		Params: []ir.Param{
			{Name: "x", Type: u8x4, IsBuffer: true},
			{Name: "y", Type: u8x4, IsBuffer: true},
		},
		Body:    store,
		Blocks:  [3]uint32{1, 1, 1},
		Threads: [3]uint32{1, 1, 1},
	}
	body, _, err := Module([]*ir.Kernel{k}, Options{Version: spirv.Version1_3})
	if err != nil {
		t.Fatalf("Module: %v", err)
	}

	// Count OpLoad/OpStore via a raw scan: one wide load and one wide
	// store, not four of each.
	loads, stores := 0, 0
	off := 20
	for off+4 <= len(body) {
		word := binary.LittleEndian.Uint32(body[off:])
		opcode := spirv.OpCode(word & 0xFFFF)
		wordCount := int(word >> 16)
		if wordCount == 0 || off+wordCount*4 > len(body) {
			t.Fatalf("malformed instruction at byte %d", off)
		}
		switch opcode {
		case spirv.OpLoad:
			loads++
		case spirv.OpStore:
			stores++
		}
		off += wordCount * 4
	}
	if loads != 1 || stores != 1 {
		t.Fatalf("expected 1 wide load and 1 wide store, got %d loads / %d stores", loads, stores)
	}
}
