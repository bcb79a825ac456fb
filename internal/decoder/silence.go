package decoder

// silenceWeighter computes per-frame weights for frames likely to be silence,
// so that low-energy frames neither drive the adaptation statistics nor
// dominate the acoustic match. Two rules apply at different times: the energy
// floor marks frames before they are decoded, the search traceback marks them
// right after, once the best hypothesis has labeled them.
type silenceWeighter struct {
	cfg        SilenceConfig
	processed  int // frames already energy-weighted
	reweighted int // frames already traceback-weighted
}

func newSilenceWeighter(cfg SilenceConfig) *silenceWeighter {
	return &silenceWeighter{cfg: cfg}
}

// apply marks frames whose raw log energy sits below the floor. Runs over
// frames not yet decoded, so the weight still reaches the acoustic match.
func (w *silenceWeighter) apply(pipeline *FeaturePipeline) {
	ready := pipeline.NumFramesReady()
	for i := w.processed; i < ready; i++ {
		if pipeline.RawEnergy(i) < w.cfg.EnergyFloor {
			pipeline.SetFrameWeight(i, w.cfg.Weight)
		}
	}
	w.processed = ready
}

// reweightDecoded marks decoded frames the current best traceback labels as
// silence. Runs after the search consumed a frame and before the frame is
// folded into the adaptation statistics.
func (w *silenceWeighter) reweightDecoded(pipeline *FeaturePipeline, search *search) {
	decoded := search.NumFramesDecoded()
	for i := w.reweighted; i < decoded; i++ {
		if search.tracebackSilence(i) {
			pipeline.SetFrameWeight(i, w.cfg.Weight)
		}
	}
	w.reweighted = decoded
}
