package audio

import (
	"math"
	"time"
)

// Chunk is a fixed-duration block of signed 16-bit PCM samples captured from
// a channel. Chunks are immutable once produced.
type Chunk struct {
	Samples    []int16
	SampleRate int
	Sequence   uint64
	Captured   time.Time
}

// Duration returns the chunk length in wall-clock terms.
func (c *Chunk) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the chunk carries no samples.
func (c *Chunk) Empty() bool {
	return c == nil || len(c.Samples) == 0
}

// RMS computes the root-mean-square energy of a sample block.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// BytesToSamples converts little-endian PCM-16 bytes to samples. A trailing
// odd byte is dropped.
func BytesToSamples(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts samples to little-endian PCM-16 bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// ApplyGain scales samples by the given factor, clipping at the int16 range.
func ApplyGain(samples []int16, gain float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * gain
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// DurationOf returns the duration of n samples at the given rate.
func DurationOf(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
