package decoder

import (
	"testing"
)

const testFrameSize = 160 // 20ms at 8kHz

// squareWave synthesizes a square wave with the given amplitude and period in
// samples. Distinct amplitude/period pairs give words separable features.
func squareWave(frames, amplitude, period int) []int16 {
	samples := make([]int16, frames*testFrameSize)
	for i := range samples {
		if (i/period)%2 == 0 {
			samples[i] = int16(amplitude)
		} else {
			samples[i] = int16(-amplitude)
		}
	}
	return samples
}

func silenceWave(frames int) []int16 {
	return make([]int16, frames*testFrameSize)
}

// templateFor extracts the feature template of a waveform with a throwaway
// pipeline, so templates and decode-time features agree exactly.
func templateFor(t *testing.T, samples []int16) []FeatureVec {
	t.Helper()
	p := NewFeaturePipeline(FeatureConfig{FrameSize: testFrameSize, CMNMinFrames: 1 << 20})
	p.AcceptWaveform(samples)

	template := make([]FeatureVec, p.NumFramesReady())
	for i := range template {
		template[i] = p.Frame(i)
	}
	if len(template) == 0 {
		t.Fatal("Waveform produced no template frames")
	}
	return template
}

// testModel builds a small two-word vocabulary plus an explicit silence word
func testModel(t *testing.T) *Model {
	t.Helper()
	m := &Model{
		SampleRate: 8000,
		Feature:    FeatureConfig{FrameSize: testFrameSize, CMNMinFrames: 1 << 20},
		Decode:     DecodeConfig{Beam: 50.0, MaxActive: 500, LatticeScale: 1.0, WordPenalty: 2.0},
		Endpoint:   EndpointConfig{MinTrailingSilenceFrames: 5, MaxUtteranceFrames: 1000},
		Silence:    SilenceConfig{EnergyFloor: 1.0, Weight: 0.1},
		Words: []WordEntry{
			{
				Word:      "sil",
				Template:  templateFor(t, silenceWave(5)),
				MinFrames: 2,
				MaxFrames: 400,
				Silence:   true,
			},
			{
				Word:      "turn",
				Template:  templateFor(t, squareWave(10, 8000, 16)),
				MinFrames: 5,
				MaxFrames: 40,
			},
			{
				Word:      "left",
				Template:  templateFor(t, squareWave(10, 3000, 4)),
				MinFrames: 5,
				MaxFrames: 40,
			},
		},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Test model is invalid: %v", err)
	}
	return m
}

// utterance assembles leading silence, the two vocabulary words and trailing
// silence into one waveform
func utterance(leadingSilence, trailingSilence int) []int16 {
	var samples []int16
	samples = append(samples, silenceWave(leadingSilence)...)
	samples = append(samples, squareWave(10, 8000, 16)...)
	samples = append(samples, squareWave(10, 3000, 4)...)
	samples = append(samples, silenceWave(trailingSilence)...)
	return samples
}

// feedFrames drives an engine frame by frame and reports whether the endpoint
// condition fired at any frame
func feedFrames(t *testing.T, e *Engine, samples []int16) bool {
	t.Helper()
	endpoint := false
	for off := 0; off+testFrameSize <= len(samples); off += testFrameSize {
		hit, err := e.AcceptAudio(samples[off:off+testFrameSize], 8000)
		if err != nil {
			t.Fatalf("AcceptAudio failed at offset %d: %v", off, err)
		}
		if hit {
			endpoint = true
		}
	}
	return endpoint
}
