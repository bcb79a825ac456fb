package decoder

import (
	"math"
	"sort"
)

// token is one active hypothesis: a position inside a word template with the
// accumulated path cost and a link to the lattice arc that preceded the word.
type token struct {
	word    int32
	pos     int
	frames  int // frames spent inside this word
	score   float64
	entry   float64 // path cost at word entry; arc score = score - entry
	start   int     // frame the word started on
	backArc int     // lattice arc preceding this word, -1 at utterance start
}

// wordStart is the best word-end of the previous frame, from which successor
// words may begin on the current frame.
type wordStart struct {
	valid   bool
	entry   float64
	backArc int
}

// search advances a frame-synchronous token-passing decode over the model's
// word templates and records completed words as lattice arcs. One search
// instance serves one utterance.
type search struct {
	model *Model

	tokens  []token
	pending wordStart
	lattice *Lattice

	framesDecoded   int
	trailingSilence int
	sawWord         bool // at least one non-silence arc emitted
	silenceTrace    []bool
	finalized       bool
	finalBest       int // terminal arc of the finalized best path, -1 if none
}

func newSearch(model *Model) *search {
	return &search{
		model:     model,
		lattice:   newLattice(model),
		finalBest: -1,
	}
}

// NumFramesDecoded returns the number of frames the search has consumed
func (s *search) NumFramesDecoded() int {
	return s.framesDecoded
}

// Step advances the search by one feature frame with the given silence weight
func (s *search) Step(feat FeatureVec, weight float64) {
	if s.finalized {
		return
	}
	frame := s.framesDecoded

	next := make(map[int64]token, len(s.tokens)+len(s.model.Words))
	var closed wordStart

	keep := func(t token) {
		key := int64(t.word)<<32 | int64(t.pos)
		if cur, ok := next[key]; !ok || t.score < cur.score {
			next[key] = t
		}
	}

	advance := func(t token, pos int) {
		entry := &s.model.Words[t.word]
		cost := weight * distance(feat, entry.Template[pos])
		nt := t
		nt.pos = pos
		nt.frames++
		nt.score += cost
		if nt.frames > entry.MaxFrames {
			return
		}
		keep(nt)

		// A token on the last template position with a legal duration
		// closes the word: record the arc and offer a start point for
		// successor words on the next frame.
		if pos == len(entry.Template)-1 && nt.frames >= entry.MinFrames {
			arcID := s.lattice.addArc(Arc{
				Word:  nt.word,
				Start: nt.start,
				End:   frame,
				Score: nt.score - nt.entry,
				Total: nt.score,
				Back:  nt.backArc,
			})
			if !entry.Silence {
				s.sawWord = true
			}
			if !closed.valid || nt.score < closed.entry {
				closed = wordStart{valid: true, entry: nt.score, backArc: arcID}
			}
		}
	}

	startAll := func(entry float64, backArc int) {
		for w := range s.model.Words {
			advance(token{
				word:    int32(w),
				pos:     -1,
				score:   entry,
				entry:   entry,
				start:   frame,
				backArc: backArc,
			}, 0)
		}
	}

	for _, t := range s.tokens {
		entry := &s.model.Words[t.word]
		advance(t, t.pos) // self-loop
		if t.pos+1 < len(entry.Template) {
			advance(t, t.pos+1)
		}
	}
	switch {
	case frame == 0:
		startAll(0, -1)
	case s.pending.valid:
		startAll(s.pending.entry+s.model.Decode.WordPenalty, s.pending.backArc)
	case len(next) == 0:
		// All tokens exceeded their duration bounds with no word end to
		// restart from; re-seed so decoding cannot stall.
		startAll(0, -1)
	}

	s.tokens = prune(next, s.model.Decode.Beam, s.model.Decode.MaxActive)
	s.pending = closed
	s.framesDecoded++

	// Bookkeeping for endpointing and silence weighting
	if weight < 0.5 {
		s.trailingSilence++
	} else {
		s.trailingSilence = 0
	}
	bestTok := s.bestToken()
	s.silenceTrace = append(s.silenceTrace, bestTok == nil || s.model.IsSilence(bestTok.word))
}

// prune applies beam and max-active pruning
func prune(next map[int64]token, beam float64, maxActive int) []token {
	tokens := make([]token, 0, len(next))
	bestScore := math.Inf(1)
	for _, t := range next {
		if t.score < bestScore {
			bestScore = t.score
		}
	}
	for _, t := range next {
		if t.score <= bestScore+beam {
			tokens = append(tokens, t)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].score < tokens[j].score })
	if len(tokens) > maxActive {
		tokens = tokens[:maxActive]
	}
	return tokens
}

func distance(a, b FeatureVec) float64 {
	var d float64
	for i := 0; i < FeatureDim; i++ {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}

func (s *search) bestToken() *token {
	var best *token
	for i := range s.tokens {
		if best == nil || s.tokens[i].score < best.score {
			best = &s.tokens[i]
		}
	}
	return best
}

// tracebackSilence reports whether the best hypothesis labeled frame i silence
func (s *search) tracebackSilence(i int) bool {
	if i < 0 || i >= len(s.silenceTrace) {
		return false
	}
	return s.silenceTrace[i]
}

// EndpointDetected applies the model's endpoint rules: enough trailing
// silence after at least one decoded word, or the utterance length cap.
func (s *search) EndpointDetected(cfg EndpointConfig) bool {
	if s.sawWord && s.trailingSilence >= cfg.MinTrailingSilenceFrames {
		return true
	}
	return s.framesDecoded >= cfg.MaxUtteranceFrames
}

// BestPath returns the word ids along the current best hypothesis, silence
// excluded. Cheap: follows completed arcs only, no lattice rescoring.
func (s *search) BestPath() []int32 {
	if s.finalized {
		return s.lattice.pathWords(s.finalBest)
	}
	best := s.bestToken()
	if best == nil {
		return nil
	}
	return s.lattice.pathWords(best.backArc)
}

// Finalize closes the search: the best in-flight word (if it has a legal
// duration) is flushed as a final arc and the lattice is sealed. Decoding
// cannot advance afterwards.
func (s *search) Finalize() {
	if s.finalized {
		return
	}
	s.finalized = true

	best := s.bestToken()
	if best != nil {
		entry := &s.model.Words[best.word]
		back := best.backArc
		if best.frames >= entry.MinFrames && best.pos == len(entry.Template)-1 {
			back = s.lattice.addArc(Arc{
				Word:  best.word,
				Start: best.start,
				End:   s.framesDecoded - 1,
				Score: best.score - best.entry,
				Total: best.score,
				Back:  best.backArc,
			})
		}
		s.finalBest = back
	}
	s.lattice.seal(s.framesDecoded)
	s.tokens = nil
}

// Lattice returns the hypothesis lattice. Only meaningful after Finalize.
func (s *search) Lattice() *Lattice {
	return s.lattice
}
