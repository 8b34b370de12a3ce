package spirv

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/tensorshade/ir"
)

// Builder assembles a single SPIR-V module. It
// tracks the *kind* of every allocated id and deduplicates every
// declaration: types, pointer types, function types, structs, and
// scalar/composite constants. It does not traverse IR; emit drives it.
type Builder struct {
	version   Version
	generator uint32
	schema    uint32

	capabilities   []Instruction
	extensions     []Instruction
	extInstImports []Instruction
	memoryModel    *Instruction
	executionModes []Instruction
	debugStrings   []Instruction
	debugNames     []Instruction
	annotations    []Instruction
	types          []Instruction
	globalVars     []Instruction
	functions      []Instruction

	entryPoints []*entryPointRecord
	entryByName map[string]*entryPointRecord

	nextID   uint32
	idKinds  map[uint32]IDKind
	capSet   map[Capability]bool
	extSet   map[string]bool
	extImportCache map[string]uint32

	typeCache     map[typeKey]uint32
	pointerCache  map[pointerKey]uint32
	funcTypeCache map[string]uint32
	structCache   map[string]uint32
	constCache    map[constKey]uint32
	compositeCache map[string]uint32
	nullCache     map[uint32]uint32
	boolConstCache map[bool]uint32

	inFunction bool
	curFunc    *function
}

type typeKey struct {
	code      ir.Code
	bits      uint8
	lanes     uint8
	arraySize uint32 // 0 = not an array, runtimeArraySentinel = runtime array
}

const runtimeArraySentinel = math.MaxUint32

type pointerKey struct {
	base    uint32
	storage StorageClass
}

type constKey struct {
	code  ir.Code
	bits  uint8
	raw   uint64
}

type entryPointRecord struct {
	execModel  ExecutionModel
	funcID     uint32
	name       string
	interfaces []uint32
}

func NewBuilder(version Version) *Builder {
	return &Builder{
		version:        version,
		generator:      GeneratorID,
		entryByName:    make(map[string]*entryPointRecord),
		idKinds:        make(map[uint32]IDKind),
		capSet:         make(map[Capability]bool),
		extSet:         make(map[string]bool),
		extImportCache: make(map[string]uint32),
		typeCache:      make(map[typeKey]uint32),
		pointerCache:   make(map[pointerKey]uint32),
		funcTypeCache:  make(map[string]uint32),
		structCache:    make(map[string]uint32),
		constCache:     make(map[constKey]uint32),
		compositeCache: make(map[string]uint32),
		nullCache:      make(map[uint32]uint32),
		boolConstCache: make(map[bool]uint32),
		nextID:         1,
	}
}

// AllocID allocates a fresh id and records its kind. Kinds are fixed for
// the lifetime of the module.
func (b *Builder) AllocID(kind IDKind) uint32 {
	id := b.nextID
	b.nextID++
	b.idKinds[id] = kind
	return id
}

// KindOf returns the kind an id was allocated with, or IDUnknown if the id
// was never allocated by this builder.
func (b *Builder) KindOf(id uint32) IDKind { return b.idKinds[id] }

func (b *Builder) AddCapability(c Capability) {
	if b.capSet[c] {
		return
	}
	b.capSet[c] = true
	ib := NewInstructionBuilder()
	ib.AddWord(uint32(c))
	b.capabilities = append(b.capabilities, ib.Build(OpCapability))
}

func (b *Builder) AddExtension(name string) {
	if b.extSet[name] {
		return
	}
	b.extSet[name] = true
	ib := NewInstructionBuilder()
	ib.AddString(name)
	b.extensions = append(b.extensions, ib.Build(OpExtension))
}

// ExtInstImport returns the id for the named extended instruction set,
// importing it lazily on first reference, so GLSL.std.450 appears only in
// modules whose emitted code uses one of its instructions (transcendental
// or rounding math, abs, clamp, min/max).
func (b *Builder) ExtInstImport(name string) uint32 {
	if id, ok := b.extImportCache[name]; ok {
		return id
	}
	id := b.AllocID(IDExtInstSet)
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddString(name)
	b.extInstImports = append(b.extInstImports, ib.Build(OpExtInstImport))
	b.extImportCache[name] = id
	return id
}

func (b *Builder) SetMemoryModel(addressing AddressingModel, memory MemoryModel) {
	ib := NewInstructionBuilder()
	ib.AddWord(uint32(addressing))
	ib.AddWord(uint32(memory))
	inst := ib.Build(OpMemoryModel)
	b.memoryModel = &inst
}

// AddEntryPoint registers a new entry point, keyed by symbol name: adding
// the same name twice is a caller bug and panics.
func (b *Builder) AddEntryPoint(execModel ExecutionModel, funcID uint32, name string) {
	if _, exists := b.entryByName[name]; exists {
		panic(fmt.Sprintf("spirv: duplicate entry point %q", name))
	}
	rec := &entryPointRecord{execModel: execModel, funcID: funcID, name: name}
	b.entryPoints = append(b.entryPoints, rec)
	b.entryByName[name] = rec
}

// AddEntryPointInterface appends an interface variable to an already
// registered entry point. The emitter calls this as it discovers which
// built-ins and globals a kernel body actually references.
func (b *Builder) AddEntryPointInterface(name string, varID uint32) {
	rec, ok := b.entryByName[name]
	if !ok {
		panic(fmt.Sprintf("spirv: AddEntryPointInterface: unknown entry point %q", name))
	}
	for _, existing := range rec.interfaces {
		if existing == varID {
			return
		}
	}
	rec.interfaces = append(rec.interfaces, varID)
}

func (b *Builder) AddExecutionMode(entryPoint string, mode ExecutionMode, params ...uint32) {
	rec, ok := b.entryByName[entryPoint]
	if !ok {
		panic(fmt.Sprintf("spirv: AddExecutionMode: unknown entry point %q", entryPoint))
	}
	ib := NewInstructionBuilder()
	ib.AddWord(rec.funcID)
	ib.AddWord(uint32(mode))
	ib.AddWords(params...)
	b.executionModes = append(b.executionModes, ib.Build(OpExecutionMode))
}

func (b *Builder) AddDebugString(id uint32, text string) {
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddString(text)
	b.debugStrings = append(b.debugStrings, ib.Build(OpString))
}

func (b *Builder) AddName(id uint32, name string) {
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddString(name)
	b.debugNames = append(b.debugNames, ib.Build(OpName))
}

func (b *Builder) AddMemberName(structID, member uint32, name string) {
	ib := NewInstructionBuilder()
	ib.AddWord(structID)
	ib.AddWord(member)
	ib.AddString(name)
	b.debugNames = append(b.debugNames, ib.Build(OpMemberName))
}

func (b *Builder) Decorate(id uint32, decoration Decoration, params ...uint32) {
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(uint32(decoration))
	ib.AddWords(params...)
	b.annotations = append(b.annotations, ib.Build(OpDecorate))
}

func (b *Builder) MemberDecorate(structID, member uint32, decoration Decoration, params ...uint32) {
	ib := NewInstructionBuilder()
	ib.AddWord(structID)
	ib.AddWord(member)
	ib.AddWord(uint32(decoration))
	ib.AddWords(params...)
	b.annotations = append(b.annotations, ib.Build(OpMemberDecorate))
}

// requireScalarCapability implicitly requires the capability an 8/16/64-bit
// integer or 16/64-bit float needs.
func (b *Builder) requireScalarCapability(t ir.Type) {
	switch {
	case (t.Code == ir.Int || t.Code == ir.Uint) && t.Bits == 8:
		b.AddCapability(CapabilityInt8)
	case (t.Code == ir.Int || t.Code == ir.Uint) && t.Bits == 16:
		b.AddCapability(CapabilityInt16)
	case (t.Code == ir.Int || t.Code == ir.Uint) && t.Bits == 64:
		b.AddCapability(CapabilityInt64)
	case t.Code == ir.Float && t.Bits == 16:
		b.AddCapability(CapabilityFloat16)
	case t.Code == ir.Float && t.Bits == 64:
		b.AddCapability(CapabilityFloat64)
	}
}

// TypeVoidID returns the id of OpTypeVoid, allocating it once.
func (b *Builder) TypeVoidID() uint32 {
	key := typeKey{code: ir.HandleCode, bits: 0, lanes: 0}
	if id, ok := b.typeCache[key]; ok {
		return id
	}
	id := b.AllocID(IDType)
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	b.types = append(b.types, ib.Build(OpTypeVoid))
	b.typeCache[key] = id
	return id
}

// TypeID declares (or returns the already-declared id for) a scalar or
// vector type, deduplicated by (code, bits, lanes).
func (b *Builder) TypeID(t ir.Type) uint32 {
	if t.IsHandle() {
		panic("spirv: TypeID: handle type has no SPIR-V representation; use a pointer type instead")
	}
	key := typeKey{code: t.Code, bits: t.Bits, lanes: t.Lanes}
	if id, ok := b.typeCache[key]; ok {
		return id
	}

	var id uint32
	if t.Lanes > 1 {
		compID := b.TypeID(t.WithLanes(1))
		id = b.AllocID(IDType)
		ib := NewInstructionBuilder()
		ib.AddWord(id)
		ib.AddWord(compID)
		ib.AddWord(uint32(t.Lanes))
		b.types = append(b.types, ib.Build(OpTypeVector))
	} else {
		b.requireScalarCapability(t)
		ib := NewInstructionBuilder()
		id = b.AllocID(IDType)
		ib.AddWord(id)
		switch t.Code {
		case ir.Bool:
			b.types = append(b.types, ib.Build(OpTypeBool))
		case ir.Float:
			ib.AddWord(uint32(t.Bits))
			b.types = append(b.types, ib.Build(OpTypeFloat))
		case ir.Int, ir.Uint:
			ib.AddWord(uint32(t.Bits))
			if t.Code == ir.Int {
				ib.AddWord(1)
			} else {
				ib.AddWord(0)
			}
			b.types = append(b.types, ib.Build(OpTypeInt))
		default:
			panic(fmt.Sprintf("spirv: TypeID: unsupported scalar code %v", t.Code))
		}
	}
	b.typeCache[key] = id
	return id
}

// ArrayTypeID declares a fixed-length array of elem, deduplicated by
// (element shape, length).
func (b *Builder) ArrayTypeID(elem ir.Type, length uint32) uint32 {
	key := typeKey{code: elem.Code, bits: elem.Bits, lanes: elem.Lanes, arraySize: length}
	if id, ok := b.typeCache[key]; ok {
		return id
	}
	elemID := b.TypeID(elem)
	lengthConst := b.ConstUint(ir.UintOf(32), uint64(length))
	id := b.AllocID(IDType)
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(elemID)
	ib.AddWord(lengthConst)
	b.types = append(b.types, ib.Build(OpTypeArray))
	b.typeCache[key] = id
	return id
}

// RuntimeArrayTypeID declares an unbounded array of elem, used to wrap a
// device buffer's element storage.
func (b *Builder) RuntimeArrayTypeID(elem ir.Type) uint32 {
	key := typeKey{code: elem.Code, bits: elem.Bits, lanes: elem.Lanes, arraySize: runtimeArraySentinel}
	if id, ok := b.typeCache[key]; ok {
		return id
	}
	elemID := b.TypeID(elem)
	id := b.AllocID(IDType)
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(elemID)
	b.types = append(b.types, ib.Build(OpTypeRuntimeArray))
	b.typeCache[key] = id
	return id
}

// PointerTypeID declares a pointer type, keyed by (base_type_id,
// storage_class). Declaring a pointer to a not-yet-declared base is not
// possible through this API since callers always pass an already-allocated
// base id; the base itself must have been declared via TypeID/ArrayTypeID/
// StructTypeID first.
func (b *Builder) PointerTypeID(storageClass StorageClass, baseType uint32) uint32 {
	key := pointerKey{base: baseType, storage: storageClass}
	if id, ok := b.pointerCache[key]; ok {
		return id
	}
	id := b.AllocID(IDPointerType)
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(uint32(storageClass))
	ib.AddWord(baseType)
	b.types = append(b.types, ib.Build(OpTypePointer))
	b.pointerCache[key] = id
	return id
}

// FunctionTypeID declares a function type, deduplicated by its signature.
func (b *Builder) FunctionTypeID(returnType uint32, paramTypes ...uint32) uint32 {
	key := funcTypeKeyString(returnType, paramTypes)
	if id, ok := b.funcTypeCache[key]; ok {
		return id
	}
	id := b.AllocID(IDFunctionType)
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWord(returnType)
	ib.AddWords(paramTypes...)
	b.types = append(b.types, ib.Build(OpTypeFunction))
	b.funcTypeCache[key] = id
	return id
}

func funcTypeKeyString(returnType uint32, paramTypes []uint32) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d(", returnType)
	for i, p := range paramTypes {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", p)
	}
	sb.WriteByte(')')
	return sb.String()
}

// StructTypeID declares a struct, deduplicated by member-id sequence and
// keyed symbolic name: the same members under a different name produce a
// distinct struct.
func (b *Builder) StructTypeID(name string, memberTypes ...uint32) uint32 {
	key := name + "|" + funcTypeKeyString(0, memberTypes)
	if id, ok := b.structCache[key]; ok {
		return id
	}
	id := b.AllocID(IDType)
	ib := NewInstructionBuilder()
	ib.AddWord(id)
	ib.AddWords(memberTypes...)
	b.types = append(b.types, ib.Build(OpTypeStruct))
	if name != "" {
		b.AddName(id, name)
	}
	b.structCache[key] = id
	return id
}

// ConstInt declares (or returns) a signed integer constant.
func (b *Builder) ConstInt(t ir.Type, value int64) uint32 {
	return b.scalarConst(t, uint64(value))
}

// ConstUint declares (or returns) an unsigned integer constant.
func (b *Builder) ConstUint(t ir.Type, value uint64) uint32 {
	return b.scalarConst(t, value)
}

// ConstFloat32 declares (or returns) a 32-bit float constant.
func (b *Builder) ConstFloat32(value float32) uint32 {
	return b.scalarConst(ir.FloatOf(32), uint64(math.Float32bits(value)))
}

// ConstFloat64 declares (or returns) a 64-bit float constant.
func (b *Builder) ConstFloat64(value float64) uint32 {
	return b.scalarConst(ir.FloatOf(64), math.Float64bits(value))
}

func (b *Builder) scalarConst(t ir.Type, raw uint64) uint32 {
	masked := raw
	if t.Bits < 64 {
		masked &= (uint64(1) << t.Bits) - 1
	}
	key := constKey{code: t.Code, bits: t.Bits, raw: masked}
	if id, ok := b.constCache[key]; ok {
		return id
	}
	typeID := b.TypeID(t)
	id := b.AllocID(IDConstant)
	ib := NewInstructionBuilder()
	ib.AddWord(typeID)
	ib.AddWord(id)
	if t.Bits > 32 {
		ib.AddWord(uint32(masked))
		ib.AddWord(uint32(masked >> 32))
	} else {
		ib.AddWord(uint32(masked))
	}
	b.types = append(b.types, ib.Build(OpConstant))
	b.constCache[key] = id
	return id
}

// ConstBool declares (or returns) OpConstantTrue/OpConstantFalse.
func (b *Builder) ConstBool(value bool) uint32 {
	if id, ok := b.boolConstCache[value]; ok {
		return id
	}
	typeID := b.TypeID(ir.BoolType())
	id := b.AllocID(IDConstant)
	ib := NewInstructionBuilder()
	ib.AddWord(typeID)
	ib.AddWord(id)
	opcode := OpConstantFalse
	if value {
		opcode = OpConstantTrue
	}
	b.types = append(b.types, ib.Build(opcode))
	b.boolConstCache[value] = id
	return id
}

// ConstNull declares (or returns) OpConstantNull for typeID.
func (b *Builder) ConstNull(typeID uint32) uint32 {
	if id, ok := b.nullCache[typeID]; ok {
		return id
	}
	id := b.AllocID(IDConstant)
	ib := NewInstructionBuilder()
	ib.AddWord(typeID)
	ib.AddWord(id)
	b.types = append(b.types, ib.Build(OpConstantNull))
	b.nullCache[typeID] = id
	return id
}

// ConstComposite declares (or returns) a vector constant built from
// already-declared scalar constants.
func (b *Builder) ConstComposite(typeID uint32, constituents ...uint32) uint32 {
	key := funcTypeKeyString(typeID, constituents)
	if id, ok := b.compositeCache[key]; ok {
		return id
	}
	id := b.AllocID(IDConstant)
	ib := NewInstructionBuilder()
	ib.AddWord(typeID)
	ib.AddWord(id)
	ib.AddWords(constituents...)
	b.types = append(b.types, ib.Build(OpConstantComposite))
	b.compositeCache[key] = id
	return id
}

// AddVariable declares a global (non-Function-storage) variable.
func (b *Builder) AddVariable(pointerType uint32, storageClass StorageClass, initID *uint32) uint32 {
	id := b.AllocID(IDVariable)
	ib := NewInstructionBuilder()
	ib.AddWord(pointerType)
	ib.AddWord(id)
	ib.AddWord(uint32(storageClass))
	if initID != nil {
		ib.AddWord(*initID)
	}
	b.globalVars = append(b.globalVars, ib.Build(OpVariable))
	return id
}

// Finalize requires the storage extensions implied by any Int8/Int16
// capability declared so far, setting binding_count (the
// module's id bound) to the next-id watermark.
func (b *Builder) Finalize() uint32 {
	for _, rule := range capabilityExtensionRules {
		if b.capSet[rule.capability] {
			b.AddExtension(rule.extension)
		}
	}
	return b.nextID
}

var capabilityExtensionRules = []struct {
	capability Capability
	extension  string
}{
	{CapabilityInt8, "SPV_KHR_8bit_storage"},
	{CapabilityInt16, "SPV_KHR_16bit_storage"},
}

// Build serializes the complete module: header followed by every section
// in SPIR-V's required section order.
func (b *Builder) Build() []byte {
	bound := b.Finalize()

	entryPointInsts := make([]Instruction, 0, len(b.entryPoints))
	for _, rec := range b.entryPoints {
		ib := NewInstructionBuilder()
		ib.AddWord(uint32(rec.execModel))
		ib.AddWord(rec.funcID)
		ib.AddString(rec.name)
		ib.AddWords(rec.interfaces...)
		entryPointInsts = append(entryPointInsts, ib.Build(OpEntryPoint))
	}

	total := 5
	total += countWords(b.capabilities)
	total += countWords(b.extensions)
	total += countWords(b.extInstImports)
	if b.memoryModel != nil {
		total += len(b.memoryModel.Encode())
	}
	total += countWords(entryPointInsts)
	total += countWords(b.executionModes)
	total += countWords(b.debugStrings)
	total += countWords(b.debugNames)
	total += countWords(b.annotations)
	total += countWords(b.types)
	total += countWords(b.globalVars)
	total += countWords(b.functions)

	buf := make([]byte, total*4)
	off := 0
	putWord := func(w uint32) {
		binary.LittleEndian.PutUint32(buf[off:], w)
		off += 4
	}
	putWord(MagicNumber)
	putWord(versionToWord(b.version))
	putWord(b.generator)
	putWord(bound)
	putWord(b.schema)

	off = writeInstructions(buf, off, b.capabilities)
	off = writeInstructions(buf, off, b.extensions)
	off = writeInstructions(buf, off, b.extInstImports)
	if b.memoryModel != nil {
		off = writeInstruction(buf, off, *b.memoryModel)
	}
	off = writeInstructions(buf, off, entryPointInsts)
	off = writeInstructions(buf, off, b.executionModes)
	off = writeInstructions(buf, off, b.debugStrings)
	off = writeInstructions(buf, off, b.debugNames)
	off = writeInstructions(buf, off, b.annotations)
	off = writeInstructions(buf, off, b.types)
	off = writeInstructions(buf, off, b.globalVars)
	_ = writeInstructions(buf, off, b.functions)

	return buf
}

func countWords(insts []Instruction) int {
	n := 0
	for _, i := range insts {
		n += len(i.Encode())
	}
	return n
}

func writeInstructions(buf []byte, off int, insts []Instruction) int {
	for _, i := range insts {
		off = writeInstruction(buf, off, i)
	}
	return off
}

func writeInstruction(buf []byte, off int, inst Instruction) int {
	for _, w := range inst.Encode() {
		binary.LittleEndian.PutUint32(buf[off:], w)
		off += 4
	}
	return off
}
