package audio

import (
	"testing"
)

func TestBytesToInt16_RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345, -12345}
	data := Int16ToBytes(samples)

	decoded, err := BytesToInt16(data)
	if err != nil {
		t.Fatalf("BytesToInt16 failed: %v", err)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], decoded[i])
		}
	}
}

func TestBytesToInt16_OddLength(t *testing.T) {
	_, err := BytesToInt16([]byte{0x01, 0x02, 0x03})
	if err == nil {
		t.Error("Expected error for odd-length PCM data")
	}
}

func TestMulawToPCM(t *testing.T) {
	// 0xFF encodes silence (zero) in µ-law
	samples := MulawToPCM([]byte{0xFF})
	if samples[0] != 0 {
		t.Errorf("Expected 0xFF to decode to 0, got %d", samples[0])
	}

	// 0x7F is the negative counterpart of 0xFF
	samples = MulawToPCM([]byte{0x7F})
	if samples[0] != 0 {
		t.Errorf("Expected 0x7F to decode to 0, got %d", samples[0])
	}

	// Positive and negative encodings of the same magnitude must mirror
	pos := MulawToPCM([]byte{0x80})[0]
	neg := MulawToPCM([]byte{0x00})[0]
	if pos <= 0 {
		t.Errorf("Expected positive sample for 0x80, got %d", pos)
	}
	if neg != -pos {
		t.Errorf("Expected mirrored samples, got %d and %d", pos, neg)
	}
}

func TestResample_Upsample(t *testing.T) {
	samples := make([]int16, 160) // 20ms at 8kHz
	for i := range samples {
		samples[i] = int16(i * 100)
	}

	output := Resample(samples, 8000, 16000)
	if len(output) != 320 {
		t.Errorf("Expected 320 samples after upsampling, got %d", len(output))
	}
}

func TestResample_SameRate(t *testing.T) {
	samples := []int16{1, 2, 3}
	output := Resample(samples, 8000, 8000)
	if len(output) != 3 {
		t.Errorf("Expected passthrough at equal rates, got %d samples", len(output))
	}
}

func TestCalculateRMS(t *testing.T) {
	if rms := CalculateRMS(nil); rms != 0.0 {
		t.Errorf("Expected 0 RMS for empty input, got %f", rms)
	}

	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = 1000
	}
	rms := CalculateRMS(samples)
	if rms < 999 || rms > 1001 {
		t.Errorf("Expected RMS near 1000 for constant signal, got %f", rms)
	}
}
