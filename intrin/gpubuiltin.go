package intrin

import (
	"fmt"
	"strings"
)

// GPUBuiltin identifies a GPU thread/block coordinate built-in.
type GPUBuiltin struct {
	Kind GPUBuiltinKind
	Dim  GPUDim
}

type GPUBuiltinKind uint8

const (
	ThreadID GPUBuiltinKind = iota
	BlockID
	BlockDim
)

type GPUDim uint8

const (
	DimX GPUDim = iota
	DimY
	DimZ
)

var gpuBuiltinSuffixes = map[string]GPUBuiltin{
	"__thread_id_x": {ThreadID, DimX},
	"__thread_id_y": {ThreadID, DimY},
	"__thread_id_z": {ThreadID, DimZ},
	"__block_id_x":  {BlockID, DimX},
	"__block_id_y":  {BlockID, DimY},
	"__block_id_z":  {BlockID, DimZ},
	"__block_dim_x": {BlockDim, DimX},
	"__block_dim_y": {BlockDim, DimY},
	"__block_dim_z": {BlockDim, DimZ},
}

// RecognizeGPUBuiltin maps a variable name to the GPU built-in it names, by
// string suffix. An unrecognized suffix on an
// otherwise built-in-shaped name (one starting with "__") is a compile
// error, not a silently-ignored variable: the suffix is the only thing
// distinguishing a real built-in reference from a typo'd one, and this
// input is OS/author-visible, not something the recognizer can sanity
// check any other way.
func RecognizeGPUBuiltin(name string) (GPUBuiltin, bool, error) {
	for suffix, b := range gpuBuiltinSuffixes {
		if strings.HasSuffix(name, suffix) {
			return b, true, nil
		}
	}
	if strings.HasPrefix(name, "__") {
		return GPUBuiltin{}, false, fmt.Errorf("intrin: unrecognized GPU built-in suffix in %q", name)
	}
	return GPUBuiltin{}, false, nil
}
