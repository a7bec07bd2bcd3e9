package audio

import "math"

const (
	toneDuration  = 1.0 // seconds
	toneFreqLow   = 440.0
	toneFreqHigh  = 523.0
	toneAmpLow    = 0.15
	toneAmpHigh   = 0.10
	toneFade      = 0.05 // seconds of fade-in/fade-out
)

// FallbackTone generates the harmonic tone played when speech synthesis
// fails, so the caller still hears a response instead of dead air.
func FallbackTone(sampleRate int) []int16 {
	if sampleRate <= 0 {
		return nil
	}

	n := int(toneDuration * float64(sampleRate))
	fadeSamples := int(toneFade * float64(sampleRate))
	samples := make([]int16, n)

	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		v := math.Sin(2*math.Pi*toneFreqLow*t)*toneAmpLow +
			math.Sin(2*math.Pi*toneFreqHigh*t)*toneAmpHigh

		// Soft edges to avoid clicks on playback start/stop
		if i < fadeSamples {
			v *= float64(i) / float64(fadeSamples)
		} else if i >= n-fadeSamples {
			v *= float64(n-1-i) / float64(fadeSamples)
		}

		samples[i] = int16(v * math.MaxInt16)
	}

	return samples
}
