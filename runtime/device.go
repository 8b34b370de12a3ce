package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"go.uber.org/zap"
)

// acquired is the process-wide spinlock backing DeviceContext.Acquire: a
// single test-and-set flag: at most one thread holds the context at a
// time, and callers always pair Acquire with Release.
var acquired atomic.Bool

// initOnce guards the one-time vk.Init()/vk.SetDefaultGetInstanceProcAddr()
// dance; Vulkan loader initialization is process-global regardless of how
// many DeviceContext values are constructed.
var initOnce sync.Once
var initErr error

// DeviceContext is the process-wide Vulkan handle bundle: logical device,
// compute queue, and command pool. It generalizes
// IntuitionEngine's VulkanBackend down to the three resources a headless
// compute dispatch needs, dropping the swapchain/render-pass/framebuffer
// state a rasterizer carries.
type DeviceContext struct {
	log *zap.SugaredLogger

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	queue          vk.Queue
	queueFamily    uint32
	commandPool    vk.CommandPool

	memProps vk.PhysicalDeviceMemoryProperties

	cache *CompilationCache
	alloc *Allocator
}

// Acquire takes the process-wide spinlock. Every exit path — success or
// error — must be matched by exactly one Release.
func Acquire() {
	for !acquired.CompareAndSwap(false, true) {
		// busy-wait: acquisition is expected to be brief and uncontended
		// in the compiler-driven dispatch path this runtime serves.
	}
}

// Release clears the process-wide spinlock. Calling it without a matching
// Acquire corrupts the invariant and is a caller bug, not a recoverable
// runtime error.
func Release() {
	acquired.Store(false)
}

// NewDeviceContext acquires a Vulkan instance, selects the first physical
// device exposing a compute-capable queue family, and creates a logical
// device, queue, and resettable command pool. Call Acquire before and
// Release after.
func NewDeviceContext(log *zap.SugaredLogger) (*DeviceContext, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	initOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			initErr = fmt.Errorf("runtime: vk.SetDefaultGetInstanceProcAddr: %w", err)
			return
		}
		if err := vk.Init(); err != nil {
			initErr = fmt.Errorf("runtime: vk.Init: %w", err)
		}
	})
	if initErr != nil {
		return nil, initErr
	}

	dc := &DeviceContext{log: log}
	if err := dc.createInstance(); err != nil {
		return nil, err
	}
	if err := dc.selectPhysicalDevice(); err != nil {
		return nil, err
	}
	if err := dc.createDevice(); err != nil {
		return nil, err
	}
	if err := dc.createCommandPool(); err != nil {
		return nil, err
	}
	vk.GetPhysicalDeviceMemoryProperties(dc.physicalDevice, &dc.memProps)

	dc.cache = newCompilationCache()
	dc.alloc = newAllocator(dc)
	log.Debugw("runtime: device context ready", "queueFamily", dc.queueFamily)
	return dc, nil
}

func (dc *DeviceContext) createInstance() error {
	appInfo := vk.ApplicationInfo{
		SType:         vk.StructureTypeApplicationInfo,
		PApplicationName: "tensorshade",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:   "tensorshade-runtime",
		EngineVersion: vk.MakeVersion(1, 0, 0),
		ApiVersion:    vk.MakeVersion(1, 1, 0),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return vkCheck("vkCreateInstance", int32(res))
	}
	vk.InitInstance(instance)
	dc.instance = instance
	return nil
}

func (dc *DeviceContext) selectPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(dc.instance, &count, nil)
	if count == 0 {
		return fmt.Errorf("runtime: no Vulkan physical devices found")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(dc.instance, &count, devices)

	for _, device := range devices {
		var qfCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &qfCount, nil)
		families := make([]vk.QueueFamilyProperties, qfCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &qfCount, families)

		for i, qf := range families {
			if qf.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
				dc.physicalDevice = device
				dc.queueFamily = uint32(i)
				return nil
			}
		}
	}
	return fmt.Errorf("runtime: no physical device exposes a compute queue family")
}

func (dc *DeviceContext) createDevice() error {
	priority := float32(1.0)
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: dc.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{priority},
	}
	deviceInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
	}
	var device vk.Device
	if res := vk.CreateDevice(dc.physicalDevice, &deviceInfo, nil, &device); res != vk.Success {
		return vkCheck("vkCreateDevice", int32(res))
	}
	dc.device = device
	vk.InitDevice(device)

	var queue vk.Queue
	vk.GetDeviceQueue(device, dc.queueFamily, 0, &queue)
	dc.queue = queue
	return nil
}

func (dc *DeviceContext) createCommandPool() error {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: dc.queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(dc.device, &poolInfo, nil, &pool); res != vk.Success {
		return vkCheck("vkCreateCommandPool", int32(res))
	}
	dc.commandPool = pool
	return nil
}

// findMemoryType returns the index of a memory type matching typeBits
// (the bitmask from VkMemoryRequirements) that also carries every flag in
// props, or an error if none exists — the same search every Vulkan
// allocator in the pack performs before vkAllocateMemory.
func (dc *DeviceContext) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	for i := uint32(0); i < dc.memProps.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		if vk.MemoryPropertyFlagBits(dc.memProps.MemoryTypes[i].PropertyFlags)&props == props {
			return i, nil
		}
	}
	return 0, fmt.Errorf("runtime: no memory type matches requirements 0x%x/0x%x", typeBits, props)
}

// Release tears down every resource NewDeviceContext created, in reverse
// order. Queue submission is synchronous, so the queue is
// guaranteed idle before this runs as long as callers followed the
// Run/Dispatch contract.
func (dc *DeviceContext) Release() {
	if dc.device == nil {
		return
	}
	dc.cache.destroyAll(dc)
	if dc.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(dc.device, dc.commandPool, nil)
	}
	vk.DestroyDevice(dc.device, nil)
	if dc.instance != vk.NullInstance {
		vk.DestroyInstance(dc.instance, nil)
	}
	dc.log.Debugw("runtime: device context released")
}
