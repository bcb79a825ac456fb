package decoder

import (
	"fmt"

	"github.com/406112767/unimrcp-vosk-plugin/internal/audio"
)

// Engine owns the per-session mutable decode state over a shared read-only
// Model: the feature pipeline, the silence weighter and the search. Utterance
// lifecycle follows Open → AcceptAudio* → FinalizeUtterance →
// ResetForNextUtterance; the reset discards the pipeline and search wholesale
// while carrying the adaptation state into their replacements.
type Engine struct {
	model    *Model
	pipeline *FeaturePipeline
	weighter *silenceWeighter
	search   *search

	saved     AdaptationState
	finalized bool
	opened    bool
}

// NewEngine creates an engine bound to a shared model
func NewEngine(model *Model) (*Engine, error) {
	if model == nil {
		return nil, fmt.Errorf("engine requires a model")
	}
	e := &Engine{model: model}
	e.Open(model)
	return e, nil
}

// Open binds the engine to a model and allocates fresh per-utterance decode
// state. Any previously saved adaptation state is re-applied.
func (e *Engine) Open(model *Model) {
	e.model = model
	e.pipeline = NewFeaturePipeline(model.Feature)
	e.pipeline.SetAdaptationState(e.saved)
	e.weighter = newSilenceWeighter(model.Silence)
	e.search = newSearch(model)
	e.finalized = false
	e.opened = true
}

// AcceptAudio appends PCM samples, recomputes silence weights for the newly
// ready frames and advances the search by them. Returns whether the model's
// endpoint condition is met. Calling AcceptAudio after FinalizeUtterance
// resets the engine for the next utterance first, preserving adaptation state.
func (e *Engine) AcceptAudio(samples []int16, sampleRate int) (bool, error) {
	if !e.opened {
		return false, fmt.Errorf("engine is not open")
	}
	if sampleRate != 8000 && sampleRate != 16000 {
		return false, fmt.Errorf("unsupported sample rate %d", sampleRate)
	}
	if e.finalized {
		e.ResetForNextUtterance()
	}
	if sampleRate != e.model.SampleRate {
		samples = audio.Resample(samples, sampleRate, e.model.SampleRate)
	}

	e.pipeline.AcceptWaveform(samples)
	e.weighter.apply(e.pipeline)
	e.advanceDecoding()

	return e.search.EndpointDetected(e.model.Endpoint), nil
}

// FinalizeUtterance signals end of input, performs one last silence-weight
// update and decode advance, and seals the decode state. Idempotent between
// resets.
func (e *Engine) FinalizeUtterance() {
	if !e.opened || e.finalized {
		return
	}
	e.pipeline.InputFinished()
	e.weighter.apply(e.pipeline)
	e.advanceDecoding()
	e.search.Finalize()
	e.finalized = true
}

// ResetForNextUtterance extracts the adaptation state from the current
// feature pipeline, discards the pipeline and search, and reallocates both
// with the saved state re-applied
func (e *Engine) ResetForNextUtterance() {
	if !e.opened {
		return
	}
	e.saved = e.pipeline.AdaptationState()
	e.Open(e.model)
}

// advanceDecoding feeds every newly ready frame to the search, re-weights it
// from the resulting traceback, then folds it into the adaptation statistics
// so silence frames stay out of the normalization mean
func (e *Engine) advanceDecoding() {
	for i := e.search.NumFramesDecoded(); i < e.pipeline.NumFramesReady(); i++ {
		weight := e.pipeline.FrameWeight(i)
		e.search.Step(e.pipeline.Frame(i), weight)
		e.weighter.reweightDecoded(e.pipeline, e.search)
		e.pipeline.CommitFrame(i)
	}
}

// Finalized reports whether the current utterance has been finalized
func (e *Engine) Finalized() bool {
	return e.finalized
}

// NumFramesDecoded returns the monotonic decoded-frame counter of the
// current utterance
func (e *Engine) NumFramesDecoded() int {
	return e.search.NumFramesDecoded()
}

// BestPath returns the current best hypothesis as plain text words, cheap
// and lattice-free
func (e *Engine) BestPath() []string {
	ids := e.search.BestPath()
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		if text := e.model.WordText(id); text != "" {
			words = append(words, text)
		}
	}
	return words
}

// Consensus runs the posterior consensus over the finalized lattice and
// returns the aligned one-best words. Empty before finalization or when
// nothing was decoded.
func (e *Engine) Consensus() []AlignedWord {
	if !e.finalized {
		return nil
	}
	return e.search.Lattice().Consensus(e.model.Decode.LatticeScale)
}

// Model returns the shared model the engine decodes against
func (e *Engine) Model() *Model {
	return e.model
}

// AdaptationState exposes the pipeline's current normalization statistics
func (e *Engine) AdaptationState() AdaptationState {
	return e.pipeline.AdaptationState()
}
