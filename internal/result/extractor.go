package result

import (
	"strings"

	"github.com/406112767/unimrcp-vosk-plugin/internal/decoder"
)

// Extractor produces partial and final transcripts from the decoder's search
// state. Both modes are read-only snapshots: they never mutate the decoder
// beyond what advancing decode already did.
type Extractor struct {
	engine    *decoder.Engine
	minFrames int
	cached    *Result
}

// NewExtractor creates an extractor over an engine. minFrames guards against
// spurious very-early partial hypotheses.
func NewExtractor(engine *decoder.Engine, minFrames int) *Extractor {
	return &Extractor{engine: engine, minFrames: minFrames}
}

// Partial returns the current best-path text, or the empty string before
// minFrames frames have been decoded. Cheap: single best path, no lattice.
func (e *Extractor) Partial() string {
	if e.engine.NumFramesDecoded() < e.minFrames {
		return ""
	}
	return strings.Join(e.engine.BestPath(), " ")
}

// Final returns the finalized utterance result: the consensus one-best word
// sequence with per-word time intervals and posterior confidences. Computed
// once per utterance and cached; calling before finalization or with zero
// decoded frames yields an empty but well-formed result.
func (e *Extractor) Final() *Result {
	if e.cached != nil {
		return e.cached
	}
	if !e.engine.Finalized() || e.engine.NumFramesDecoded() == 0 {
		return &Result{}
	}

	frameDur := e.engine.Model().FrameDuration()
	aligned := e.engine.Consensus()

	res := &Result{Words: make([]Word, 0, len(aligned))}
	for _, aw := range aligned {
		res.Words = append(res.Words, Word{
			Text:       e.engine.Model().WordText(aw.Word),
			Start:      float64(aw.Start) * frameDur,
			End:        float64(aw.End+1) * frameDur,
			Confidence: aw.Confidence,
		})
	}
	res.Text = joinWords(res.Words)

	e.cached = res
	return res
}
