package runtime

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// Run performs one synchronous device dispatch: it
// looks up the cache entry a prior Compile created for fp (a miss returns
// an ErrKernelNotFound DeviceError; Run never compiles), looks up
// entryName's compiled state, writes scalarArgs into its uniform buffer,
// points its descriptor set at buffers, records and submits a command
// buffer issuing vkCmdDispatch(blocks[0], blocks[1], blocks[2]), waits for
// the queue to go idle, and resets the command pool. There is no
// in-flight overlap between calls to Run: every code path waits for
// queue-idle before returning.
func (dc *DeviceContext) Run(fp Fingerprint, entryName string, scalarArgs []byte, buffers []*Region, blocks [3]uint32) error {
	entry, ok := dc.cache.Lookup(fp)
	if !ok {
		return fmt.Errorf("runtime: run: %w", &DeviceError{Op: "run", Result: -1, Code: ErrKernelNotFound})
	}
	ep, ok := entry.entryPoints[entryName]
	if !ok {
		return fmt.Errorf("runtime: run: %w", &DeviceError{Op: "run:" + entryName, Result: -1, Code: ErrKernelNotFound})
	}
	if uint32(len(buffers)) != ep.info.StorageBufferCount {
		return fmt.Errorf("runtime: run: entry point %q expects %d storage buffers, got %d",
			entryName, ep.info.StorageBufferCount, len(buffers))
	}

	if ep.info.UniformBufferCount > 0 {
		if err := dc.writeScalarArgs(ep, scalarArgs); err != nil {
			return fmt.Errorf("runtime: run: %w", err)
		}
	}
	if err := dc.updateDescriptorSet(ep, buffers); err != nil {
		return fmt.Errorf("runtime: run: %w", err)
	}

	cmd, err := dc.beginCommandBuffer()
	if err != nil {
		return fmt.Errorf("runtime: run: %w", err)
	}
	// Every exit path below frees cmd and resets the pool, matching
	// the guaranteed-release discipline for scoped resources.
	defer func() {
		vk.FreeCommandBuffers(dc.device, dc.commandPool, 1, []vk.CommandBuffer{cmd})
		vk.ResetCommandPool(dc.device, dc.commandPool, vk.CommandPoolResetFlags(0))
	}()

	vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, ep.pipeline)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, ep.pipelineLayout, 0, 1,
		[]vk.DescriptorSet{ep.descSet}, 0, nil)
	vk.CmdDispatch(cmd, blocks[0], blocks[1], blocks[2])

	if res := vk.EndCommandBuffer(cmd); res != vk.Success {
		return vkCheck("vkEndCommandBuffer", int32(res))
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}
	if res := vk.QueueSubmit(dc.queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		return vkCheck("vkQueueSubmit", int32(res))
	}
	if res := vk.QueueWaitIdle(dc.queue); res != vk.Success {
		return vkCheck("vkQueueWaitIdle", int32(res))
	}
	return nil
}

func (dc *DeviceContext) beginCommandBuffer() (vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        dc.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmds := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(dc.device, &allocInfo, cmds); res != vk.Success {
		return nil, vkCheck("vkAllocateCommandBuffers", int32(res))
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cmds[0], &beginInfo); res != vk.Success {
		vk.FreeCommandBuffers(dc.device, dc.commandPool, 1, cmds)
		return nil, vkCheck("vkBeginCommandBuffer", int32(res))
	}
	return cmds[0], nil
}

// writeScalarArgs (re)allocates ep's uniform buffer if args doesn't fit
// in the existing one, then maps/copies/unmaps it — the path scalar
// arguments take into the kernel's packed uniform struct.
func (dc *DeviceContext) writeScalarArgs(ep *entryPointEntry, args []byte) error {
	if ep.uniform == nil || ep.uniform.size < uint64(len(args)) {
		if ep.uniform != nil {
			dc.alloc.Reclaim(ep.uniform)
		}
		region, err := dc.alloc.allocate(Request{
			Size:       uint64(len(args)),
			Usage:      UsageUniform | UsageTransferDst,
			Caching:    CachingCoherent,
			Visibility: VisibilityHostToDevice,
		})
		if err != nil {
			return err
		}
		ep.uniform = region
	}
	ptr, err := dc.alloc.Map(ep.uniform)
	if err != nil {
		return err
	}
	defer dc.alloc.Unmap(ep.uniform)
	copy(sliceBytes(ptr, ep.uniform.size), args)
	return nil
}

func (dc *DeviceContext) updateDescriptorSet(ep *entryPointEntry, buffers []*Region) error {
	var writes []vk.WriteDescriptorSet
	binding := uint32(0)

	if ep.info.UniformBufferCount > 0 {
		bufInfo := vk.DescriptorBufferInfo{Buffer: ep.uniform.owningBuffer(), Offset: 0, Range: vk.DeviceSize(ep.uniform.size)}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          ep.descSet,
			DstBinding:      binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{bufInfo},
		})
		binding++
	}

	for i, buf := range buffers {
		bufInfo := vk.DescriptorBufferInfo{
			Buffer: buf.owningBuffer(),
			Offset: vk.DeviceSize(buf.headOffset),
			Range:  vk.DeviceSize(buf.size),
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          ep.descSet,
			DstBinding:      binding + uint32(i),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{bufInfo},
		})
	}

	vk.UpdateDescriptorSets(dc.device, uint32(len(writes)), writes, 0, nil)
	return nil
}
