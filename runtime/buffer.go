package runtime

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// DeviceMalloc reserves a device-only region of size bytes.
func (dc *DeviceContext) DeviceMalloc(size uint64, reusable bool) (*Region, error) {
	return dc.alloc.Reserve(Request{
		Size:       size,
		Usage:      UsageStorage | UsageTransferSrc | UsageTransferDst,
		Caching:    CachingUncached,
		Visibility: VisibilityDeviceOnly,
		Reusable:   reusable,
	})
}

// DeviceFree releases or reclaims r depending on the request it was
// reserved with.
func (dc *DeviceContext) DeviceFree(r *Region) error {
	return dc.alloc.Release(r)
}

// DeviceAndHostMalloc reserves a region visible to both host and device
// (host-to-device coherent), for buffers the host writes into directly
// before a kernel reads them.
func (dc *DeviceContext) DeviceAndHostMalloc(size uint64, reusable bool) (*Region, error) {
	return dc.alloc.Reserve(Request{
		Size:       size,
		Usage:      UsageStorage | UsageTransferSrc | UsageTransferDst,
		Caching:    CachingCoherent,
		Visibility: VisibilityHostToDevice,
		Reusable:   reusable,
	})
}

// DeviceAndHostFree is DeviceFree's counterpart for DeviceAndHostMalloc
// regions.
func (dc *DeviceContext) DeviceAndHostFree(r *Region) error {
	return dc.alloc.Release(r)
}

// CopyToDevice copies src into dst's device memory. When dst is host
// visible the copy is a direct Map/copy/Unmap; otherwise it stages
// through a temporary host-visible buffer and a device-side CmdCopyBuffer
//.
func (dc *DeviceContext) CopyToDevice(dst *Region, src []byte) error {
	if uint64(len(src)) > dst.size {
		return fmt.Errorf("runtime: copy_to_device: %d bytes exceeds region size %d", len(src), dst.size)
	}
	if dst.req.Visibility != VisibilityDeviceOnly {
		ptr, err := dc.alloc.Map(dst)
		if err != nil {
			return fmt.Errorf("runtime: copy_to_device: %w", err)
		}
		defer dc.alloc.Unmap(dst)
		copy(sliceBytes(ptr, dst.size), src)
		return nil
	}

	staging, err := dc.alloc.allocate(Request{
		Size: uint64(len(src)), Usage: UsageTransferSrc,
		Caching: CachingCoherent, Visibility: VisibilityHostToDevice,
	})
	if err != nil {
		return fmt.Errorf("runtime: copy_to_device: staging: %w", err)
	}
	defer dc.alloc.Reclaim(staging)

	ptr, err := dc.alloc.Map(staging)
	if err != nil {
		return fmt.Errorf("runtime: copy_to_device: %w", err)
	}
	copy(sliceBytes(ptr, staging.size), src)
	dc.alloc.Unmap(staging)

	if err := dc.deviceCopy(staging, dst, uint64(len(src))); err != nil {
		return fmt.Errorf("runtime: copy_to_device: %w", err)
	}
	return nil
}

// CopyToHost copies size bytes out of src's device memory into dst,
// staging through a temporary host-visible buffer when src isn't already
// host visible.
func (dc *DeviceContext) CopyToHost(dst []byte, src *Region, size uint64) error {
	if uint64(len(dst)) < size {
		return fmt.Errorf("runtime: copy_to_host: destination slice too small (%d < %d)", len(dst), size)
	}
	if src.req.Visibility != VisibilityDeviceOnly {
		ptr, err := dc.alloc.Map(src)
		if err != nil {
			return fmt.Errorf("runtime: copy_to_host: %w", err)
		}
		defer dc.alloc.Unmap(src)
		copy(dst, sliceBytes(ptr, size))
		return nil
	}

	staging, err := dc.alloc.allocate(Request{
		Size: size, Usage: UsageTransferDst,
		Caching: CachingCoherent, Visibility: VisibilityDeviceToHost,
	})
	if err != nil {
		return fmt.Errorf("runtime: copy_to_host: staging: %w", err)
	}
	defer dc.alloc.Reclaim(staging)

	if err := dc.deviceCopy(src, staging, size); err != nil {
		return fmt.Errorf("runtime: copy_to_host: %w", err)
	}
	ptr, err := dc.alloc.Map(staging)
	if err != nil {
		return fmt.Errorf("runtime: copy_to_host: %w", err)
	}
	defer dc.alloc.Unmap(staging)
	copy(dst, sliceBytes(ptr, size))
	return nil
}

// BufferCopy copies size bytes device-to-device from src to dst, ordered
// by a queue-wait-idle before the copy so a producer's writes are visible
// to the consumer.
func (dc *DeviceContext) BufferCopy(dst, src *Region, size uint64) error {
	if res := vk.QueueWaitIdle(dc.queue); res != vk.Success {
		return vkCheck("vkQueueWaitIdle", int32(res))
	}
	return dc.deviceCopy(src, dst, size)
}

func (dc *DeviceContext) deviceCopy(src, dst *Region, size uint64) error {
	cmd, err := dc.beginCommandBuffer()
	if err != nil {
		return err
	}
	defer func() {
		vk.FreeCommandBuffers(dc.device, dc.commandPool, 1, []vk.CommandBuffer{cmd})
		vk.ResetCommandPool(dc.device, dc.commandPool, vk.CommandPoolResetFlags(0))
	}()

	region := vk.BufferCopy{
		SrcOffset: vk.DeviceSize(src.headOffset),
		DstOffset: vk.DeviceSize(dst.headOffset),
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(cmd, src.owningBuffer(), dst.owningBuffer(), 1, []vk.BufferCopy{region})

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

// DeviceCrop returns a view of owner spanning [offset, offset+size)
//.
func (dc *DeviceContext) DeviceCrop(owner *Region, offset, size uint64) (*Region, error) {
	return dc.alloc.Crop(owner, offset, size)
}

// DeviceSlice is DeviceCrop with an offset of 0, the common case of
// viewing the first size bytes of owner.
func (dc *DeviceContext) DeviceSlice(owner *Region, size uint64) (*Region, error) {
	return dc.alloc.Crop(owner, 0, size)
}

// DeviceReleaseCrop releases a crop view without touching its owning
// allocation.
func (dc *DeviceContext) DeviceReleaseCrop(r *Region) error {
	return dc.alloc.DestroyCrop(r)
}

// DeviceSync waits for the device queue to go idle.
func (dc *DeviceContext) DeviceSync() error {
	return vkCheck("vkQueueWaitIdle", int32(vk.QueueWaitIdle(dc.queue)))
}

// ReleaseUnusedDeviceAllocations drains the allocator's free list,
// destroying every region sitting idle.
func (dc *DeviceContext) ReleaseUnusedDeviceAllocations() (int, error) {
	return dc.alloc.Collect()
}

// NativeBuffer is the handle Wrap/GetNative exchange with callers that
// hold their own Vulkan buffer: the wrap/detach/get_native interop trio.
type NativeBuffer struct {
	Buffer vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
}

// Wrap adopts a caller-owned native buffer as a Region this runtime can
// dispatch against, without taking ownership of freeing it.
func (dc *DeviceContext) Wrap(native NativeBuffer) *Region {
	return &Region{
		buffer: native.Buffer,
		memory: native.Memory,
		size:   native.Size,
		req:    Request{Size: native.Size, Visibility: VisibilityDeviceOnly},
	}
}

// Detach returns r's underlying native handle and marks r as no longer
// owned by this runtime, the dual of Wrap. After
// Detach, the caller — not this runtime — is responsible for freeing the
// buffer and memory.
func (dc *DeviceContext) Detach(r *Region) NativeBuffer {
	native := NativeBuffer{Buffer: r.owningBuffer(), Memory: r.owningMemory(), Size: r.size}
	r.buffer = vk.NullBuffer
	r.memory = vk.NullDeviceMemory
	return native
}

// GetNative returns r's native handle without detaching it.
func (dc *DeviceContext) GetNative(r *Region) NativeBuffer {
	return NativeBuffer{Buffer: r.owningBuffer(), Memory: r.owningMemory(), Size: r.size}
}

// DeviceRelease tears down the context. It
// is a thin name-matching wrapper over Release, kept distinct from the
// package-level Acquire/Release spinlock pair.
func (dc *DeviceContext) DeviceRelease() {
	dc.Release()
}
