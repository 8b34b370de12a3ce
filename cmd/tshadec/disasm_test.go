package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gogpu/tensorshade/emit"
	"github.com/gogpu/tensorshade/ir"
	"github.com/gogpu/tensorshade/spirv"
)

// TestDisassembleCompiledModule feeds a freshly compiled module straight
// back into the disassembler: every name in the output comes from the same
// spirv-package tables the builder encoded with, so the two can't drift
// apart silently.
func TestDisassembleCompiledModule(t *testing.T) {
	u8 := ir.UintOf(8)
	i := &ir.Expr{Type: ir.IntOf(32), Kind: ir.Var{Name: "i"}}
	load := &ir.Expr{Type: u8, Kind: ir.Load{Name: "x", Index: i}}
	sum := &ir.Expr{Type: u8, Kind: ir.Add{X: load, Y: &ir.Expr{Type: u8, Kind: ir.ImmUint{Value: 1}}}}
	body := &ir.Stmt{Kind: ir.For{
		Name: "i",
		Min:  &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: 0}},
		Extent: &ir.Expr{Type: ir.IntOf(32), Kind: ir.ImmInt{Value: 64}},
		ForType: ir.ForGPUThread,
		Dim:     ir.DimX,
		Body:    &ir.Stmt{Kind: ir.Store{Name: "x", Index: i, Value: sum}},
	}}
	k := &ir.Kernel{
		Name:   "f",
		Params: []ir.Param{{Name: "x", Type: u8, IsBuffer: true}},
		Body:   body,
		Blocks: [3]uint32{4, 1, 1},
	}

	moduleBody, _, err := emit.Module([]*ir.Kernel{k}, emit.Options{Version: spirv.Version1_3})
	if err != nil {
		t.Fatalf("Module: %v", err)
	}

	var out bytes.Buffer
	if err := disassembleModule(&out, moduleBody); err != nil {
		t.Fatalf("disassembleModule: %v", err)
	}
	text := out.String()

	for _, want := range []string{
		"OpCapability Shader",
		"OpCapability Int8",
		`OpExtension "SPV_KHR_8bit_storage"`,
		`OpEntryPoint GLCompute`,
		`"f"`,
		"OpExecutionMode",
		"LocalSize 64 1 1",
		"OpTypeInt 8 0",
		"OpDecorate",
		"BufferBlock",
		"BuiltIn LocalInvocationId",
		"OpAccessChain",
		"OpIAdd",
		"OpReturn",
		"OpFunctionEnd",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("disassembly missing %q; got:\n%s", want, text)
		}
	}
}

func TestDisassembleRejectsBadMagic(t *testing.T) {
	var out bytes.Buffer
	bogus := make([]byte, 24)
	if err := disassembleModule(&out, bogus); err == nil {
		t.Fatal("expected an error on a module without the SPIR-V magic")
	}
}
