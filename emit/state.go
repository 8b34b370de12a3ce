package emit

import (
	"github.com/gogpu/tensorshade/intrin"
	"github.com/gogpu/tensorshade/ir"
	"github.com/gogpu/tensorshade/spirv"
)

// Options configures a single compilation run.
type Options struct {
	Version spirv.Version

	// Intrinsics configures the recognizer pass Module runs over each
	// kernel body before emission. Zero value recognizes with the core rule set
	// enabled, matching the default the CLI uses absent HL_DISABLE_INTRINISICS.
	Intrinsics intrin.Options
}

// DefaultOptions returns the options cmd/tshadec's compile subcommand uses
// when none are given explicitly: recognizer options read from the
// environment (HL_DISABLE_INTRINISICS, HL_ENABLE_RAKE_RULES).
func DefaultOptions() Options {
	return Options{Version: spirv.Version1_3, Intrinsics: intrin.OptionsFromEnv()}
}

// valueBinding is an ordinary SSA-valued name: a Let/LetStmt binding, a
// materialized scalar argument, or a GPU dispatch-dimension value.
type valueBinding struct {
	id  uint32
	typ ir.Type
}

// bufferBinding is a named buffer: a Param or a statement-scoped Allocate.
// Load/Store resolve Name through this table, never through the value
// scope — the two namespaces never collide because the IR keeps them
// syntactically distinct (Var vs. Load/Store.Name).
type bufferBinding struct {
	base    uint32 // the backing OpVariable id
	elem    ir.Type
	elemID  uint32
	storage spirv.StorageClass
	wrapped bool // true: base points at a struct whose member 0 is the array
}

// scope is a stack of name -> binding maps, pushed on entry to a lexical
// construct (Let, LetStmt, For, Allocate) and popped on exit.
type scope struct {
	values  []map[string]valueBinding
	buffers []map[string]bufferBinding
}

func newScope() *scope {
	return &scope{
		values:  []map[string]valueBinding{{}},
		buffers: []map[string]bufferBinding{{}},
	}
}

func (s *scope) pushValues() { s.values = append(s.values, map[string]valueBinding{}) }
func (s *scope) popValues()  { s.values = s.values[:len(s.values)-1] }

func (s *scope) bindValue(name string, b valueBinding) {
	s.values[len(s.values)-1][name] = b
}

func (s *scope) lookupValue(name string) (valueBinding, bool) {
	for i := len(s.values) - 1; i >= 0; i-- {
		if b, ok := s.values[i][name]; ok {
			return b, true
		}
	}
	return valueBinding{}, false
}

func (s *scope) pushBuffers() { s.buffers = append(s.buffers, map[string]bufferBinding{}) }
func (s *scope) popBuffers()  { s.buffers = s.buffers[:len(s.buffers)-1] }

func (s *scope) bindBuffer(name string, b bufferBinding) {
	s.buffers[len(s.buffers)-1][name] = b
}

func (s *scope) lookupBuffer(name string) (bufferBinding, bool) {
	for i := len(s.buffers) - 1; i >= 0; i-- {
		if b, ok := s.buffers[i][name]; ok {
			return b, true
		}
	}
	return bufferBinding{}, false
}

// builtinVar caches a declared GPU built-in Input variable.
type builtinVar struct {
	varID  uint32
	typeID uint32 // vec3<u32>
}

// emitter holds module-wide state shared across every kernel: the
// builder and the built-in variable cache (built-ins are declared once
// and reused across entry points).
type emitter struct {
	b         *spirv.Builder
	opts      Options
	builtins  map[spirv.BuiltIn]builtinVar
	glslSetID uint32
}

type builtinDimKey struct {
	kind spirv.BuiltIn
	dim  ir.GPUDim
}

// kernelCtx holds per-entry-point state: the symbol table, which
// built-ins/globals this kernel's entry-point interface must list, and its
// descriptor-set table. The workgroup size is resolved separately, by
// resolveWorkgroupSize in emitKernel.
type kernelCtx struct {
	e    *emitter
	name string

	scope *scope

	builtinLoads  map[spirv.BuiltIn]uint32
	dimCache      map[builtinDimKey]uint32
	interfaceVars map[uint32]bool

	uniformCount uint32
	storageCount uint32
}

func (kc *kernelCtx) b() *spirv.Builder { return kc.e.b }
