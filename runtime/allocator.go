package runtime

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Usage selects the transfer directions a region's buffer must support,
// combined as a bitmask the way Vulkan's own VkBufferUsageFlags are
// combined.
type Usage uint8

const (
	UsageTransferSrc Usage = 1 << iota
	UsageTransferDst
	UsageStorage
	UsageUniform
)

// Caching selects a region's host-visible caching behavior.
type Caching uint8

const (
	CachingUncached Caching = iota
	CachingCached
	CachingCoherent
)

// Visibility selects which side(s) of the device/host boundary a region
// must be reachable from.
type Visibility uint8

const (
	VisibilityDeviceOnly Visibility = iota
	VisibilityHostToDevice
	VisibilityDeviceToHost
	VisibilityHostToHost
)

// Request is the input to Allocator.Reserve: the size and usage pattern a
// caller needs from a region.
type Request struct {
	Size       uint64
	Usage      Usage
	Caching    Caching
	Visibility Visibility
	// Reusable selects whether a released region returns to the free
	// list for reuse (Release) or is destroyed immediately (Reclaim) —
	Reusable bool
}

// Region is one allocation (or a crop view into one), carrying enough
// state for Map/Unmap, OwnerOf, and DestroyCrop to work without touching
// the device: a region always knows its head offset within its owning
// allocation.
type Region struct {
	req        Request
	buffer     vk.Buffer
	memory     vk.DeviceMemory
	size       uint64
	headOffset uint64
	owner      *Region // nil for a root allocation
	mapped     unsafe.Pointer
}

// HeadOffset returns the region's byte offset within its owning
// allocation (0 for a root allocation).
func (r *Region) HeadOffset() uint64 { return r.headOffset }

// Size returns the region's byte size.
func (r *Region) Size() uint64 { return r.size }

type requestKey struct {
	size       uint64
	usage      Usage
	caching    Caching
	visibility Visibility
}

// Allocator reserves, releases, and maps device memory regions on behalf
// of one DeviceContext. It is touched only while the
// context's spinlock is held, so — like the compilation cache — it
// carries no lock of its own.
type Allocator struct {
	dc       *DeviceContext
	freeList map[requestKey][]*Region
}

func newAllocator(dc *DeviceContext) *Allocator {
	return &Allocator{dc: dc, freeList: map[requestKey][]*Region{}}
}

func keyOf(req Request) requestKey {
	return requestKey{size: req.Size, usage: req.Usage, caching: req.Caching, visibility: req.Visibility}
}

// Reserve returns a region satisfying req, reusing a previously Release'd
// region with an identical request shape when one is available. Returns a nil region and ErrOutOfMemory-wrapped error rather
// than retrying.
func (a *Allocator) Reserve(req Request) (*Region, error) {
	k := keyOf(req)
	if pool := a.freeList[k]; len(pool) > 0 {
		r := pool[len(pool)-1]
		a.freeList[k] = pool[:len(pool)-1]
		return r, nil
	}
	return a.allocate(req)
}

func (a *Allocator) allocate(req Request) (*Region, error) {
	usage := vk.BufferUsageFlags(0)
	if req.Usage&UsageTransferSrc != 0 {
		usage |= vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
	if req.Usage&UsageTransferDst != 0 {
		usage |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
	if req.Usage&UsageStorage != 0 {
		usage |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	if req.Usage&UsageUniform != 0 {
		usage |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(req.Size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(a.dc.device, &bufferInfo, nil, &buffer); res != vk.Success {
		return nil, fmt.Errorf("runtime: allocator: %w", &DeviceError{Op: "vkCreateBuffer", Result: int32(res), Code: ErrOutOfMemory})
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(a.dc.device, buffer, &reqs)

	propFlags := memoryPropertyFlags(req.Caching, req.Visibility)
	memTypeIndex, err := a.dc.findMemoryType(reqs.MemoryTypeBits, propFlags)
	if err != nil {
		vk.DestroyBuffer(a.dc.device, buffer, nil)
		return nil, fmt.Errorf("runtime: allocator: %w", &DeviceError{Op: "findMemoryType", Result: -1, Code: ErrOutOfMemory})
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memTypeIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(a.dc.device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(a.dc.device, buffer, nil)
		return nil, fmt.Errorf("runtime: allocator: %w", &DeviceError{Op: "vkAllocateMemory", Result: int32(res), Code: ErrOutOfMemory})
	}
	if res := vk.BindBufferMemory(a.dc.device, buffer, memory, 0); res != vk.Success {
		vk.FreeMemory(a.dc.device, memory, nil)
		vk.DestroyBuffer(a.dc.device, buffer, nil)
		return nil, vkCheck("vkBindBufferMemory", int32(res))
	}

	return &Region{req: req, buffer: buffer, memory: memory, size: req.Size}, nil
}

func memoryPropertyFlags(c Caching, v Visibility) vk.MemoryPropertyFlagBits {
	if v == VisibilityDeviceOnly {
		return vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit)
	}
	flags := vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit)
	if c == CachingCoherent {
		flags |= vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostCoherentBit)
	} else if c == CachingCached {
		flags |= vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostCachedBit)
	}
	return flags
}

// Release returns r to the free list for reuse by a future Reserve with
// an identical request shape (the "reusable" path selected on r's
// originating Request).
func (a *Allocator) Release(r *Region) error {
	if r.owner != nil {
		return fmt.Errorf("runtime: allocator: Release called on a crop view, use DestroyCrop")
	}
	if !r.req.Reusable {
		return a.Reclaim(r)
	}
	k := keyOf(r.req)
	a.freeList[k] = append(a.freeList[k], r)
	return nil
}

// Reclaim destroys r immediately rather than recycling it — the
// non-reusable release path.
func (a *Allocator) Reclaim(r *Region) error {
	if r.owner != nil {
		return fmt.Errorf("runtime: allocator: Reclaim called on a crop view, use DestroyCrop")
	}
	if r.mapped != nil {
		a.Unmap(r)
	}
	if r.buffer != vk.NullBuffer {
		vk.DestroyBuffer(a.dc.device, r.buffer, nil)
	}
	if r.memory != vk.NullDeviceMemory {
		vk.FreeMemory(a.dc.device, r.memory, nil)
	}
	r.buffer = vk.NullBuffer
	r.memory = vk.NullDeviceMemory
	return nil
}

// Map returns a host pointer over r's memory. Must be paired with Unmap
//.
func (a *Allocator) Map(r *Region) (unsafe.Pointer, error) {
	if r.mapped != nil {
		return r.mapped, nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(a.dc.device, r.owningMemory(), vk.DeviceSize(r.headOffset), vk.DeviceSize(r.size), 0, &ptr); res != vk.Success {
		return nil, vkCheck("vkMapMemory", int32(res))
	}
	r.mapped = ptr
	return ptr, nil
}

// Unmap releases the host mapping Map established.
func (a *Allocator) Unmap(r *Region) {
	if r.mapped == nil {
		return
	}
	vk.UnmapMemory(a.dc.device, r.owningMemory())
	r.mapped = nil
}

func (r *Region) owningMemory() vk.DeviceMemory {
	if r.owner != nil {
		return r.owner.owningMemory()
	}
	return r.memory
}

func (r *Region) owningBuffer() vk.Buffer {
	if r.owner != nil {
		return r.owner.owningBuffer()
	}
	return r.buffer
}

// OwnerOf returns r's owning root allocation, or r itself if r is already
// a root allocation.
func OwnerOf(r *Region) *Region {
	if r.owner != nil {
		return r.owner
	}
	return r
}

// Crop returns a view into owner spanning [offset, offset+size), the
// shape device_crop/device_slice hand out at the public surface.
func (a *Allocator) Crop(owner *Region, offset, size uint64) (*Region, error) {
	if offset+size > owner.size {
		return nil, fmt.Errorf("runtime: allocator: crop [%d,%d) exceeds owner size %d", offset, offset+size, owner.size)
	}
	return &Region{
		req:        owner.req,
		headOffset: owner.headOffset + offset,
		size:       size,
		owner:      OwnerOf(owner),
	}, nil
}

// DestroyCrop releases a crop view's bookkeeping. It never touches the
// owning allocation's buffer or memory.
func (a *Allocator) DestroyCrop(r *Region) error {
	if r.owner == nil {
		return fmt.Errorf("runtime: allocator: DestroyCrop called on a root allocation, use Release/Reclaim")
	}
	r.owner = nil
	r.buffer = vk.NullBuffer
	r.memory = vk.NullDeviceMemory
	return nil
}

// Collect destroys every region currently sitting idle in the free list,
// returning the number of allocations freed — the
// release_unused_device_allocations operation.
func (a *Allocator) Collect() (int, error) {
	freed := 0
	for k, pool := range a.freeList {
		for _, r := range pool {
			r.req.Reusable = false
			if err := a.Reclaim(r); err != nil {
				return freed, err
			}
			freed++
		}
		delete(a.freeList, k)
	}
	return freed, nil
}
