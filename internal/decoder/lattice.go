package decoder

import (
	"math"
)

// Arc is one word hypothesis in the lattice: a word spanning a frame range
// with its acoustic score, the cumulative path cost up to its end, and a link
// to the preceding arc on its hypothesis.
type Arc struct {
	Word  int32
	Start int // first frame, inclusive
	End   int // last frame, inclusive
	Score float64
	Total float64
	Back  int // preceding arc id, -1 at utterance start
}

// AlignedWord is one word of the consensus hypothesis: time-aligned frame
// boundaries and a posterior confidence in [0, 1].
type AlignedWord struct {
	Word       int32
	Start      int
	End        int
	Confidence float64
}

// terminalTolerance allows a terminal arc to end a few frames short of the
// last decoded frame (trailing silence absorbed by weighting).
const terminalTolerance = 2

// Lattice is the weighted graph of alternative decoded word sequences
// accumulated during the search.
type Lattice struct {
	model      *Model
	arcs       []Arc
	index      map[arcKey]int
	finalFrame int
	sealed     bool
}

type arcKey struct {
	word       int32
	start, end int
	back       int
}

func newLattice(model *Model) *Lattice {
	return &Lattice{
		model: model,
		index: make(map[arcKey]int),
	}
}

// addArc records a word hypothesis, deduplicating identical spans on the same
// history (the lower-cost variant wins). Returns the arc id.
func (l *Lattice) addArc(arc Arc) int {
	key := arcKey{word: arc.Word, start: arc.Start, end: arc.End, back: arc.Back}
	if id, ok := l.index[key]; ok {
		if arc.Total < l.arcs[id].Total {
			l.arcs[id] = arc
		}
		return id
	}
	id := len(l.arcs)
	l.arcs = append(l.arcs, arc)
	l.index[key] = id
	return id
}

// seal marks the lattice complete at the given frame count
func (l *Lattice) seal(frames int) {
	l.finalFrame = frames
	l.sealed = true
}

// NumArcs returns the number of recorded word hypotheses
func (l *Lattice) NumArcs() int {
	return len(l.arcs)
}

// pathWords walks an arc chain back to the utterance start and returns the
// word ids in time order, silence excluded
func (l *Lattice) pathWords(arcID int) []int32 {
	var reversed []int32
	for id := arcID; id >= 0; id = l.arcs[id].Back {
		if !l.model.IsSilence(l.arcs[id].Word) {
			reversed = append(reversed, l.arcs[id].Word)
		}
	}
	words := make([]int32, len(reversed))
	for i, w := range reversed {
		words[len(words)-1-i] = w
	}
	return words
}

// pathArcs returns the non-silence arc ids of a chain in time order
func (l *Lattice) pathArcs(arcID int) []int {
	var reversed []int
	for id := arcID; id >= 0; id = l.arcs[id].Back {
		if !l.model.IsSilence(l.arcs[id].Word) {
			reversed = append(reversed, id)
		}
	}
	arcs := make([]int, len(reversed))
	for i, id := range reversed {
		arcs[len(arcs)-1-i] = id
	}
	return arcs
}

// terminals returns the arcs that reach the end of the utterance
func (l *Lattice) terminals() []int {
	var ids []int
	for id, arc := range l.arcs {
		if arc.End >= l.finalFrame-1-terminalTolerance {
			ids = append(ids, id)
		}
	}
	return ids
}

// Consensus selects the minimum-expected-error word sequence over the
// lattice's posterior distribution. Complete hypotheses are weighted by
// exp(-scale * cost); each word of the best hypothesis receives as confidence
// the posterior mass of all same-word arcs overlapping it in time.
func (l *Lattice) Consensus(scale float64) []AlignedWord {
	if !l.sealed || len(l.arcs) == 0 || l.finalFrame == 0 {
		return nil
	}
	terminals := l.terminals()
	if len(terminals) == 0 {
		return nil
	}

	// Hypothesis weights, normalized against the best to keep the
	// exponentials in range.
	minTotal := math.Inf(1)
	bestTerm := -1
	for _, id := range terminals {
		if l.arcs[id].Total < minTotal {
			minTotal = l.arcs[id].Total
			bestTerm = id
		}
	}
	var norm float64
	weights := make(map[int]float64, len(terminals))
	for _, id := range terminals {
		w := math.Exp(-scale * (l.arcs[id].Total - minTotal))
		weights[id] = w
		norm += w
	}

	// Posterior of each arc: mass of all complete hypotheses through it
	posterior := make([]float64, len(l.arcs))
	for _, term := range terminals {
		p := weights[term] / norm
		for id := term; id >= 0; id = l.arcs[id].Back {
			posterior[id] += p
		}
	}

	// One-best sequence with per-word overlap-summed confidences
	var words []AlignedWord
	for _, id := range l.pathArcs(bestTerm) {
		arc := l.arcs[id]
		conf := 0.0
		for other, otherArc := range l.arcs {
			if otherArc.Word == arc.Word && otherArc.Start <= arc.End && arc.Start <= otherArc.End {
				conf += posterior[other]
			}
		}
		if conf > 1.0 {
			conf = 1.0
		}
		words = append(words, AlignedWord{
			Word:       arc.Word,
			Start:      arc.Start,
			End:        arc.End,
			Confidence: conf,
		})
	}
	return words
}
