package runtime

import "unsafe"

// sliceUint32 reinterprets a byte slice holding a SPIR-V body as the
// []uint32 Vulkan's shader-module create info expects, the same
// reinterpret-in-place idiom IntuitionEngine's Vulkan backend uses to hand
// raw SPIR-V bytes to vkCreateShaderModule.
func sliceUint32(data []byte) []uint32 {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

// sliceBytes reinterprets size bytes of mapped host-visible memory at ptr
// as a []byte, used to copy scalar kernel arguments and buffer contents
// into and out of mapped device memory.
func sliceBytes(ptr unsafe.Pointer, size uint64) []byte {
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), size)
}
