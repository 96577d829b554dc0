// ABOUTME: PCM sample conversion between int16 slices and little-endian bytes
// ABOUTME: Allocation-free helpers used on the hot transfer path
package audio

import "encoding/binary"

// Int16ToBytes encodes src as little-endian PCM into dst and returns the
// number of bytes written. dst must hold at least 2*len(src) bytes.
func Int16ToBytes(dst []byte, src []int16) int {
	for i, s := range src {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return len(src) * 2
}

// BytesToInt16 decodes little-endian PCM bytes into dst and returns the
// number of samples written. Trailing odd bytes in src are ignored.
func BytesToInt16(dst []int16, src []byte) int {
	n := len(src) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return n
}
