package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantizeBoundaries(t *testing.T) {
	t.Parallel()

	cases := map[float32]int16{
		-1.0: -32768,
		1.0:  32767,
		0:    0,
		-2.5: -32768,
		3.0:  32767,
		0.5:  16383,
		-0.5: -16384,
	}
	for in, want := range cases {
		assert.Equal(t, want, Quantize(in), "input %v", in)
	}
}

func TestQuantizeNaNIsSilence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int16(0), Quantize(float32(math.NaN())))
	assert.Equal(t, int16(32767), Quantize(float32(math.Inf(1))))
	assert.Equal(t, int16(-32768), Quantize(float32(math.Inf(-1))))
}

func TestQuantizeMatchesAsymmetricScaleAcrossRange(t *testing.T) {
	t.Parallel()

	for i := -20000; i <= 20000; i++ {
		x := float32(i) / 20000
		s := float64(x)
		var want float64
		if s < 0 {
			want = math.Trunc(s * 32768)
		} else {
			want = math.Trunc(s * 32767)
		}
		require.GreaterOrEqual(t, want, float64(math.MinInt16))
		require.LessOrEqual(t, want, float64(math.MaxInt16))
		require.Equal(t, int16(want), Quantize(x), "input %v", x)
	}
}

func TestTranscode(t *testing.T) {
	t.Parallel()

	src := []float32{-1, -0.25, 0, 0.25, 1}
	dst := make([]int16, len(src))
	Transcode(dst, src)
	assert.Equal(t, []int16{-32768, -8192, 0, 8191, 32767}, dst)
}

func TestDecodeFloat32LE(t *testing.T) {
	t.Parallel()

	raw := encodeFloats(0.5, -1, 0.125)
	out := make([]float32, 3)
	decodeFloat32LE(out, raw)
	assert.Equal(t, []float32{0.5, -1, 0.125}, out)
}
