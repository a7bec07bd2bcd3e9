package audio

import "testing"

func TestFallbackTone(t *testing.T) {
	sampleRate := 8000
	samples := FallbackTone(sampleRate)

	if len(samples) != sampleRate {
		t.Fatalf("Expected 1 second of audio (%d samples), got %d", sampleRate, len(samples))
	}

	// Edges fade to zero to avoid clicks
	if samples[0] != 0 {
		t.Errorf("Expected silent first sample, got %d", samples[0])
	}
	if samples[len(samples)-1] != 0 {
		t.Errorf("Expected silent last sample, got %d", samples[len(samples)-1])
	}

	// The middle of the tone carries audible energy
	if RMS(samples[2000:6000]) < 1000 {
		t.Errorf("Tone body too quiet: RMS %.1f", RMS(samples[2000:6000]))
	}

	// Amplitudes 0.15 + 0.10 stay well below clipping
	for i, s := range samples {
		if s > 9000 || s < -9000 {
			t.Fatalf("Sample %d out of expected range: %d", i, s)
		}
	}
}

func TestFallbackToneInvalidRate(t *testing.T) {
	if samples := FallbackTone(0); samples != nil {
		t.Errorf("Expected nil for zero sample rate, got %d samples", len(samples))
	}
}

func TestApplyGain(t *testing.T) {
	samples := []int16{1000, -1000, 30000, -30000}
	out := ApplyGain(samples, 0.7)

	if out[0] != 700 || out[1] != -700 {
		t.Errorf("Expected +-700, got %d and %d", out[0], out[1])
	}
	if out[2] != 21000 || out[3] != -21000 {
		t.Errorf("Expected +-21000, got %d and %d", out[2], out[3])
	}

	// Gain above unity clips instead of wrapping
	boosted := ApplyGain([]int16{30000, -30000}, 2.0)
	if boosted[0] != 32767 || boosted[1] != -32768 {
		t.Errorf("Expected clipped samples, got %d and %d", boosted[0], boosted[1])
	}
}

func TestSampleByteRoundtrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}

	data := SamplesToBytes(samples)
	if len(data) != len(samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", len(samples)*2, len(data))
	}

	back := BytesToSamples(data)
	for i, s := range samples {
		if back[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, back[i])
		}
	}
}
