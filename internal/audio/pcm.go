package audio

import (
	"encoding/binary"
	"math"
)

const bytesPerFloatSample = 4

// Quantize converts one float sample in [-1, 1] to s16. Out of range input is
// clamped first. Negative values scale by 32768 and non-negative values by
// 32767, truncating toward zero. NaN maps to silence.
func Quantize(x float32) int16 {
	s := float64(x)
	if math.IsNaN(s) {
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7fff)
}

// Transcode quantizes src into dst. dst must be at least len(src) long.
func Transcode(dst []int16, src []float32) {
	for i, x := range src {
		dst[i] = Quantize(x)
	}
}

// decodeFloat32LE reads little-endian IEEE-754 samples from raw into dst.
func decodeFloat32LE(dst []float32, raw []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerFloatSample:]))
	}
}
