package ir

import (
	"encoding/json"
	"testing"
)

// TestKernelJSONRoundTrip checks the fixture codec the tshadec CLI reads:
// a kernel with a GPU loop, a load/store body and an intrinsic call
// survives a marshal/unmarshal cycle structurally intact.
func TestKernelJSONRoundTrip(t *testing.T) {
	u8 := UintOf(8)
	i32 := IntOf(32)
	i := &Expr{Type: i32, Kind: Var{Name: "i"}}
	load := &Expr{Type: u8, Kind: Load{Name: "x", Index: i}}
	one := &Expr{Type: u8, Kind: ImmUint{Value: 1}}
	sum := &Expr{Type: u8, Kind: Call{Name: "saturating_add", Op: OpSaturatingAdd, Args: []*Expr{load, one}}}
	body := &Stmt{Kind: For{
		Name: "i",
		Min:  &Expr{Type: i32, Kind: ImmInt{Value: 0}},
		Extent: &Expr{Type: i32, Kind: ImmInt{Value: 64}},
		ForType: ForGPUThread,
		Dim:     DimX,
		Body:    &Stmt{Kind: Store{Name: "x", Index: i, Value: sum}},
	}}
	k := &Kernel{
		Name:   "f",
		Params: []Param{{Name: "x", Type: u8, IsBuffer: true}},
		Body:   body,
		Blocks: [3]uint32{4, 1, 1},
	}

	data, err := json.Marshal(k)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Kernel
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Name != "f" || len(got.Params) != 1 || !got.Params[0].Type.Equal(u8) {
		t.Fatalf("kernel metadata lost: %+v", got)
	}
	f, ok := got.Body.Kind.(For)
	if !ok || f.ForType != ForGPUThread || f.Dim != DimX {
		t.Fatalf("loop lost: %#v", got.Body.Kind)
	}
	st, ok := f.Body.Kind.(Store)
	if !ok || st.Name != "x" {
		t.Fatalf("store lost: %#v", f.Body.Kind)
	}
	call, ok := st.Value.Kind.(Call)
	if !ok || call.Op != OpSaturatingAdd || len(call.Args) != 2 {
		t.Fatalf("intrinsic call lost: %#v", st.Value.Kind)
	}
	if !st.Value.Type.Equal(u8) {
		t.Fatalf("expression type lost: %v", st.Value.Type)
	}
}
