package spirv

import (
	"encoding/binary"
	"fmt"
)

// EntryPointInfo is one entry in the compiled-module side-car header,
// mirroring the descriptor-set table the emitter built for that entry
// point.
type EntryPointInfo struct {
	Name                string
	UniformBufferCount  uint32
	StorageBufferCount  uint32
}

// Header is the side-car that precedes the standards-conformant SPIR-V body
// in a compiled-module binary. The runtime parses this first,
// then hands the body to the SPIR-V loader verbatim.
type Header struct {
	EntryPoints []EntryPointInfo
}

// Encode serializes the header to little-endian u32 words.
func (h Header) Encode() []byte {
	words := []uint32{0, uint32(len(h.EntryPoints))}
	for _, ep := range h.EntryPoints {
		padded := paddedNameLength(ep.Name)
		words = append(words, ep.UniformBufferCount, ep.StorageBufferCount, uint32(padded))
		words = append(words, encodeName(ep.Name, padded)...)
	}
	words[0] = uint32(len(words))

	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

// Decode parses a side-car header from the front of buf, returning the
// header and the byte offset of the SPIR-V body that follows it.
func Decode(buf []byte) (Header, int, error) {
	if len(buf) < 8 {
		return Header{}, 0, fmt.Errorf("spirv: header too short: %d bytes", len(buf))
	}
	wordCount := binary.LittleEndian.Uint32(buf[0:4])
	if int(wordCount)*4 > len(buf) {
		return Header{}, 0, fmt.Errorf("spirv: header claims %d words, buffer has %d bytes", wordCount, len(buf))
	}
	n := binary.LittleEndian.Uint32(buf[4:8])

	h := Header{EntryPoints: make([]EntryPointInfo, 0, n)}
	off := 8
	for i := uint32(0); i < n; i++ {
		if off+12 > len(buf) {
			return Header{}, 0, fmt.Errorf("spirv: header entry %d truncated", i)
		}
		uniform := binary.LittleEndian.Uint32(buf[off:])
		storage := binary.LittleEndian.Uint32(buf[off+4:])
		padded := binary.LittleEndian.Uint32(buf[off+8:])
		off += 12
		if off+int(padded) > len(buf) {
			return Header{}, 0, fmt.Errorf("spirv: header entry %d name overruns buffer", i)
		}
		name := decodeName(buf[off : off+int(padded)])
		off += int(padded)
		h.EntryPoints = append(h.EntryPoints, EntryPointInfo{
			Name:               name,
			UniformBufferCount: uniform,
			StorageBufferCount: storage,
		})
	}
	return h, int(wordCount) * 4, nil
}

func paddedNameLength(name string) int {
	n := len(name) + 1 // null terminator
	for n%4 != 0 {
		n++
	}
	return n
}

func encodeName(name string, padded int) []uint32 {
	raw := make([]byte, padded)
	copy(raw, name)
	words := make([]uint32, padded/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words
}

func decodeName(raw []byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}
