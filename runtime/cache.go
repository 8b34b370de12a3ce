package runtime

import (
	"crypto/sha256"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/tensorshade/spirv"
)

// Fingerprint identifies a compiled module by the content hash of its
// bytes, generalizing the usual (device, state pointer) cache key to a
// value Go can compare and store without pinning the caller's backing
// allocation.
type Fingerprint [32]byte

// FingerprintOf hashes a compiled-module binary (side-car header + SPIR-V
// body) as produced by emit.Module.
func FingerprintOf(module []byte) Fingerprint {
	return sha256.Sum256(module)
}

// entryPointEntry is the per-entry-point state a compiled kernel needs to
// be dispatched: descriptor-set layout, pipeline, descriptor pool/set, and
// the uniform buffer carrying scalar arguments.
type entryPointEntry struct {
	info           spirv.EntryPointInfo
	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	pipeline       vk.Pipeline
	descPool       vk.DescriptorPool
	descSet        vk.DescriptorSet
	uniform        *Region // nil if info.UniformBufferCount == 0
}

// cacheEntry is one module's worth of compiled Vulkan state: a shader
// module shared by every entry point it declares, and each entry point's
// own pipeline/descriptor state.
type cacheEntry struct {
	shaderModule vk.ShaderModule
	entryPoints  map[string]*entryPointEntry
}

// CompilationCache maps a module's Fingerprint to its compiled Vulkan
// state, reused across dispatches with an identical fingerprint. It is touched only while the owning DeviceContext's spinlock is
// held, so it carries no lock of its own — consistent with Allocator.
type CompilationCache struct {
	entries map[Fingerprint]*cacheEntry
}

func newCompilationCache() *CompilationCache {
	return &CompilationCache{entries: map[Fingerprint]*cacheEntry{}}
}

// Lookup returns the cache entry for fp if one was created by a prior
// Compile, and whether it was found.
func (c *CompilationCache) Lookup(fp Fingerprint) (*cacheEntry, bool) {
	e, ok := c.entries[fp]
	return e, ok
}

// Compile parses module's side-car header and SPIR-V body, creates a
// shader module, and builds one pipeline/descriptor-set layout per entry
// point, caching the result under fp (the initialize_kernels operation,
// generalized to batch all the module's entry points in one
// call rather than one cache miss per kernel).
func (dc *DeviceContext) Compile(module []byte) (Fingerprint, error) {
	fp := FingerprintOf(module)
	if _, ok := dc.cache.Lookup(fp); ok {
		return fp, nil
	}

	header, bodyOffset, err := spirv.Decode(module)
	if err != nil {
		return fp, fmt.Errorf("runtime: compile: %w", err)
	}
	body := module[bodyOffset:]

	shaderInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(body)),
		PCode:    sliceUint32(body),
	}
	var shaderModule vk.ShaderModule
	if res := vk.CreateShaderModule(dc.device, &shaderInfo, nil, &shaderModule); res != vk.Success {
		return fp, vkCheck("vkCreateShaderModule", int32(res))
	}

	entry := &cacheEntry{shaderModule: shaderModule, entryPoints: map[string]*entryPointEntry{}}
	for _, ep := range header.EntryPoints {
		epEntry, err := dc.buildEntryPoint(shaderModule, ep)
		if err != nil {
			dc.destroyCacheEntry(entry)
			vk.DestroyShaderModule(dc.device, shaderModule, nil)
			return fp, fmt.Errorf("runtime: compile: entry point %q: %w", ep.Name, err)
		}
		entry.entryPoints[ep.Name] = epEntry
	}

	dc.cache.entries[fp] = entry
	return fp, nil
}

func (dc *DeviceContext) buildEntryPoint(shaderModule vk.ShaderModule, ep spirv.EntryPointInfo) (*entryPointEntry, error) {
	var bindings []vk.DescriptorSetLayoutBinding
	binding := uint32(0)
	if ep.UniformBufferCount > 0 {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         binding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		})
		binding++
	}
	for i := uint32(0); i < ep.StorageBufferCount; i++ {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         binding,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		})
		binding++
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var setLayout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(dc.device, &layoutInfo, nil, &setLayout); res != vk.Success {
		return nil, vkCheck("vkCreateDescriptorSetLayout", int32(res))
	}

	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}
	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(dc.device, &pipelineLayoutInfo, nil, &pipelineLayout); res != vk.Success {
		vk.DestroyDescriptorSetLayout(dc.device, setLayout, nil)
		return nil, vkCheck("vkCreatePipelineLayout", int32(res))
	}

	entryName := ep.Name + "\x00"
	stage := vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageComputeBit,
		Module: shaderModule,
		PName:  entryName,
	}
	pipelineInfo := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  stage,
		Layout: pipelineLayout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(dc.device, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{pipelineInfo}, nil, pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(dc.device, pipelineLayout, nil)
		vk.DestroyDescriptorSetLayout(dc.device, setLayout, nil)
		return nil, vkCheck("vkCreateComputePipelines", int32(res))
	}

	var poolSizes []vk.DescriptorPoolSize
	if ep.UniformBufferCount > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1})
	}
	if ep.StorageBufferCount > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: ep.StorageBufferCount})
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var descPool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(dc.device, &poolInfo, nil, &descPool); res != vk.Success {
		vk.DestroyPipeline(dc.device, pipelines[0], nil)
		vk.DestroyPipelineLayout(dc.device, pipelineLayout, nil)
		vk.DestroyDescriptorSetLayout(dc.device, setLayout, nil)
		return nil, vkCheck("vkCreateDescriptorPool", int32(res))
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     descPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{setLayout},
	}
	descSets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(dc.device, &allocInfo, &descSets[0]); res != vk.Success {
		vk.DestroyDescriptorPool(dc.device, descPool, nil)
		vk.DestroyPipeline(dc.device, pipelines[0], nil)
		vk.DestroyPipelineLayout(dc.device, pipelineLayout, nil)
		vk.DestroyDescriptorSetLayout(dc.device, setLayout, nil)
		return nil, vkCheck("vkAllocateDescriptorSets", int32(res))
	}

	return &entryPointEntry{
		info:           ep,
		setLayout:      setLayout,
		pipelineLayout: pipelineLayout,
		pipeline:       pipelines[0],
		descPool:       descPool,
		descSet:        descSets[0],
	}, nil
}

// Finalize drops the cache entry for fp — the finalize_kernels
// operation — destroying every Vulkan object it owns.
func (dc *DeviceContext) Finalize(fp Fingerprint) error {
	entry, ok := dc.cache.Lookup(fp)
	if !ok {
		return fmt.Errorf("runtime: finalize: %w", &DeviceError{Op: "finalize_kernels", Result: -1, Code: ErrKernelNotFound})
	}
	dc.destroyCacheEntry(entry)
	vk.DestroyShaderModule(dc.device, entry.shaderModule, nil)
	delete(dc.cache.entries, fp)
	return nil
}

func (dc *DeviceContext) destroyCacheEntry(entry *cacheEntry) {
	for _, ep := range entry.entryPoints {
		if ep.uniform != nil {
			dc.alloc.Reclaim(ep.uniform)
		}
		vk.DestroyDescriptorPool(dc.device, ep.descPool, nil)
		vk.DestroyPipeline(dc.device, ep.pipeline, nil)
		vk.DestroyPipelineLayout(dc.device, ep.pipelineLayout, nil)
		vk.DestroyDescriptorSetLayout(dc.device, ep.setLayout, nil)
	}
}

func (c *CompilationCache) destroyAll(dc *DeviceContext) {
	for fp, entry := range c.entries {
		dc.destroyCacheEntry(entry)
		vk.DestroyShaderModule(dc.device, entry.shaderModule, nil)
		delete(c.entries, fp)
	}
}
