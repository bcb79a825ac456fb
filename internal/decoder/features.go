package decoder

import (
	"math"
)

// AdaptationState holds the running feature normalization statistics that
// personalize the acoustic front-end to a speaker/channel. It is extracted
// from a finished feature pipeline and re-applied to the next utterance's
// pipeline, so adaptation survives the per-utterance object churn.
type AdaptationState struct {
	Count float64
	Sum   FeatureVec
}

// FeaturePipeline converts PCM samples into normalized acoustic feature
// frames. One pipeline serves exactly one utterance; it is discarded and
// reallocated on reset with the saved adaptation state re-applied.
type FeaturePipeline struct {
	cfg FeatureConfig

	pending  []int16
	raw      []FeatureVec
	energies []float64 // raw log energy per frame, before normalization
	weights  []float64
	counted  []bool // whether a frame contributed to the adaptation stats

	stats    AdaptationState
	finished bool
}

// NewFeaturePipeline creates a fresh pipeline with blank adaptation state
func NewFeaturePipeline(cfg FeatureConfig) *FeaturePipeline {
	return &FeaturePipeline{cfg: cfg}
}

// SetAdaptationState re-applies previously saved normalization statistics
func (p *FeaturePipeline) SetAdaptationState(state AdaptationState) {
	p.stats = state
}

// AdaptationState returns a copy of the current normalization statistics
func (p *FeaturePipeline) AdaptationState() AdaptationState {
	return p.stats
}

// AcceptWaveform appends PCM samples and computes features for every
// completed frame. Panics never; short tails stay pending until the next
// call or InputFinished.
func (p *FeaturePipeline) AcceptWaveform(samples []int16) {
	if p.finished {
		return
	}
	p.pending = append(p.pending, samples...)
	for len(p.pending) >= p.cfg.FrameSize {
		frame := p.pending[:p.cfg.FrameSize]
		p.appendFrame(frame)
		p.pending = p.pending[p.cfg.FrameSize:]
	}
}

// InputFinished flushes any pending partial frame (zero-padded) and marks the
// pipeline complete. Further AcceptWaveform calls are ignored.
func (p *FeaturePipeline) InputFinished() {
	if p.finished {
		return
	}
	if len(p.pending) >= p.cfg.FrameSize/2 {
		frame := make([]int16, p.cfg.FrameSize)
		copy(frame, p.pending)
		p.appendFrame(frame)
	}
	p.pending = nil
	p.finished = true
}

// Finished reports whether InputFinished was called
func (p *FeaturePipeline) Finished() bool {
	return p.finished
}

// NumFramesReady returns the number of complete feature frames available
func (p *FeaturePipeline) NumFramesReady() int {
	return len(p.raw)
}

// RawEnergy returns the unnormalized log energy of frame i
func (p *FeaturePipeline) RawEnergy(i int) float64 {
	return p.energies[i]
}

// FrameWeight returns the silence weight of frame i (1.0 unless down-weighted)
func (p *FeaturePipeline) FrameWeight(i int) float64 {
	return p.weights[i]
}

// SetFrameWeight applies a silence-weighting update to frame i
func (p *FeaturePipeline) SetFrameWeight(i int, weight float64) {
	if i >= 0 && i < len(p.weights) {
		p.weights[i] = weight
	}
}

// Frame returns the normalized feature vector of frame i. Mean normalization
// engages once CMNMinFrames frames of statistics have accumulated; before
// that the raw features pass through.
func (p *FeaturePipeline) Frame(i int) FeatureVec {
	feat := p.raw[i]
	if p.stats.Count < float64(p.cfg.CMNMinFrames) || p.stats.Count == 0 {
		return feat
	}
	for d := 0; d < FeatureDim; d++ {
		feat[d] -= p.stats.Sum[d] / p.stats.Count
	}
	return feat
}

// CommitFrame folds frame i into the adaptation statistics. Frames that were
// silence-weighted below 0.5 are excluded, so normalization tracks speech
// rather than channel noise. Each frame is counted at most once.
func (p *FeaturePipeline) CommitFrame(i int) {
	if i < 0 || i >= len(p.raw) || p.counted[i] {
		return
	}
	if p.weights[i] < 0.5 {
		return
	}
	p.counted[i] = true
	p.stats.Count++
	for d := 0; d < FeatureDim; d++ {
		p.stats.Sum[d] += p.raw[i][d]
	}
}

func (p *FeaturePipeline) appendFrame(frame []int16) {
	var feat FeatureVec

	// Log energy
	var sumSq float64
	for _, s := range frame {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(frame)))
	feat[0] = math.Log1p(rms)

	// Zero-crossing rate
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i] >= 0) != (frame[i-1] >= 0) {
			crossings++
		}
	}
	feat[1] = float64(crossings) / float64(len(frame)-1)

	// Low band: mean magnitude of the two-sample smoothed signal
	var low float64
	for i := 1; i < len(frame); i++ {
		low += math.Abs(float64(frame[i])+float64(frame[i-1])) / 2
	}
	feat[2] = math.Log1p(low / float64(len(frame)-1))

	// High band: mean magnitude of the first difference
	var high float64
	for i := 1; i < len(frame); i++ {
		high += math.Abs(float64(frame[i]) - float64(frame[i-1]))
	}
	feat[3] = math.Log1p(high / float64(len(frame)-1))

	p.raw = append(p.raw, feat)
	p.energies = append(p.energies, feat[0])
	p.weights = append(p.weights, 1.0)
	p.counted = append(p.counted, false)
}
