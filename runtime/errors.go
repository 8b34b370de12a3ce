package runtime

import "fmt"

// ErrorCode is the stable negative error code every device-runtime
// operation returns on failure. Zero means success.
type ErrorCode int32

const (
	// Success is returned by every device-runtime operation that completes without
	// error.
	Success ErrorCode = 0

	// ErrDeviceAPI means a device error: a runtime API call (Vulkan) came
	// back with a non-success result code.
	ErrDeviceAPI ErrorCode = -1
	// ErrOutOfMemory means resource exhaustion: the allocator's Reserve
	// returned no region.
	ErrOutOfMemory ErrorCode = -2
	// ErrKernelNotFound means a cache miss on finalize: a kernel name was
	// looked up that was never compiled into the cache.
	ErrKernelNotFound ErrorCode = -3
	// ErrUnsupportedConstruct mirrors the emitter's fatal "unsupported
	// construct" class for runtime-observed equivalents,
	// e.g. a module whose header claims an entry point the body doesn't
	// define.
	ErrUnsupportedConstruct ErrorCode = -4
	// ErrInvalidArgument means a caller passed a region, handle, or
	// argument list that doesn't match what the kernel or allocation
	// expects.
	ErrInvalidArgument ErrorCode = -5
)

func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "success"
	case ErrDeviceAPI:
		return "device error"
	case ErrOutOfMemory:
		return "out of memory"
	case ErrKernelNotFound:
		return "kernel not found"
	case ErrUnsupportedConstruct:
		return "unsupported construct"
	case ErrInvalidArgument:
		return "invalid argument"
	default:
		return fmt.Sprintf("error code %d", int32(c))
	}
}

// DeviceError is the error value wrapping a failed Vulkan call: the
// failing operation's name, the VkResult it returned, and the stable
// ErrorCode surfaced to the caller as a negative integer, with the
// failing op named in the message.
type DeviceError struct {
	Op     string
	Result int32
	Code   ErrorCode
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("runtime: %s: vkresult=%d (%s)", e.Op, e.Result, e.Code)
}

// vkCheck turns a VkResult (0 == VK_SUCCESS) into a *DeviceError, or nil.
func vkCheck(op string, result int32) error {
	if result == 0 {
		return nil
	}
	return &DeviceError{Op: op, Result: result, Code: ErrDeviceAPI}
}
