package domain

import "encoding/binary"

const (
	// WireSampleRate is the only sample rate the voice service accepts.
	WireSampleRate = 16000
	// WireChannels is mono.
	WireChannels = 1
	// DefaultFrameSamples is the number of samples carried by one frame.
	DefaultFrameSamples = 4096
)

// AudioFrame is one fixed-length slice of s16 mono PCM at WireSampleRate.
// Frames are produced by value and never modified after creation.
type AudioFrame struct {
	Seq     uint64
	Samples []int16
}

// Len returns the number of samples in the frame.
func (f AudioFrame) Len() int {
	return len(f.Samples)
}

// Bytes encodes the frame as little-endian s16 PCM.
func (f AudioFrame) Bytes() []byte {
	out := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
