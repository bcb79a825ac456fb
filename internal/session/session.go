package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/406112767/unimrcp-vosk-plugin/internal/audio"
	"github.com/406112767/unimrcp-vosk-plugin/internal/config"
	"github.com/406112767/unimrcp-vosk-plugin/internal/decoder"
	"github.com/406112767/unimrcp-vosk-plugin/internal/grammar"
	"github.com/406112767/unimrcp-vosk-plugin/internal/observability"
	"github.com/406112767/unimrcp-vosk-plugin/internal/result"
)

// CompletionCause explains why an utterance terminated
type CompletionCause string

const (
	CauseSuccess        CompletionCause = "success"
	CauseNoInputTimeout CompletionCause = "no-input-timeout"
	CauseStopped        CompletionCause = "stopped"
	CauseMethodFailed   CompletionCause = "method-failed"
)

// State is the recognition session lifecycle state
type State int

const (
	StateIdle State = iota
	StateAwaitingAudio
	StateInProgress
	StateFinalizing
	StateComplete
	StateStopRequested
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAudio:
		return "awaiting-audio"
	case StateInProgress:
		return "in-progress"
	case StateFinalizing:
		return "finalizing"
	case StateComplete:
		return "complete"
	case StateStopRequested:
		return "stop-requested"
	}
	return "unknown"
}

// EventSink receives the session's upward notifications. Implementations
// must not block: the frame path calls into the sink synchronously.
type EventSink interface {
	// StartOfInput signals that voice activity began
	StartOfInput(sessionID string)
	// Complete delivers the single terminal notification of an utterance.
	// The result is non-nil for success (recognized words, possibly with an
	// early-termination rule id) and for stopped (empty word list).
	Complete(sessionID string, cause CompletionCause, res *result.Result)
}

// TimerConfig carries per-request VAD timer overrides. Zero durations keep
// the session defaults; a nil StartInputTimers keeps timers started.
type TimerConfig struct {
	StartInputTimers      *bool
	NoInputTimeout        time.Duration
	SpeechCompleteTimeout time.Duration
}

// Session is one active recognition channel: it owns its decoding engine,
// voice activity detector and grammar exclusively, and holds a non-owning
// reference to the shared model. At most one utterance is in progress at any
// time; exactly one completion event is emitted per utterance.
type Session struct {
	mu sync.Mutex

	id      string
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	sink    EventSink

	engine    *decoder.Engine
	detector  *audio.Detector
	extractor *result.Extractor
	rules     *grammar.RuleSet

	state         State
	sampleRate    int // negotiated codec rate; 0 means none
	timersStarted bool
	stopRequested bool
	active        bool
	matchedRule   string
}

// New creates a session bound to a shared model. Failure to allocate decode
// state is fatal to the session.
func New(id string, model *decoder.Model, cfg *config.Config, sink EventSink, logger zerolog.Logger) (*Session, error) {
	engine, err := decoder.NewEngine(model)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate decoder: %w", err)
	}

	frameDur := time.Duration(cfg.FrameDurationMs) * time.Millisecond
	detector := audio.NewDetector(&audio.DetectorConfig{
		EnergyThreshold: cfg.VADEnergyThreshold,
		SpeechFrames:    cfg.VADSpeechFrames,
		FrameDuration:   frameDur,
		NoInputTimeout:  time.Duration(cfg.NoInputTimeoutMs) * time.Millisecond,
		SilenceTimeout:  time.Duration(cfg.SilenceTimeoutMs) * time.Millisecond,
	})

	return &Session{
		id:       id,
		cfg:      cfg,
		logger:   logger,
		metrics:  observability.NewSessionMetrics(id),
		sink:     sink,
		engine:   engine,
		detector: detector,
		state:    StateAwaitingAudio,
	}, nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether an utterance is in progress
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// NegotiateCodec records the media sample rate for the session
func (s *Session) NegotiateCodec(sampleRate int) error {
	if sampleRate != 8000 && sampleRate != 16000 {
		return fmt.Errorf("unsupported sample rate %d", sampleRate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = sampleRate
	return nil
}

// DefineGrammar parses and installs a grammar document for subsequent
// recognitions. A malformed document is rejected with no state change.
func (s *Session) DefineGrammar(src []byte) error {
	rules, err := grammar.Parse(src, s.logger)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
	return nil
}

// Recognize starts a new utterance. Configuration errors (no negotiated
// codec, malformed grammar, utterance already in progress) are rejected
// synchronously with no partial state created. Adaptation state from earlier
// utterances is preserved across the engine reset.
func (s *Session) Recognize(grammarSrc []byte, timers TimerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sampleRate == 0 {
		return fmt.Errorf("no codec negotiated for session %s", s.id)
	}
	if s.active {
		return fmt.Errorf("utterance already in progress for session %s", s.id)
	}
	if len(grammarSrc) > 0 {
		rules, err := grammar.Parse(grammarSrc, s.logger)
		if err != nil {
			return err
		}
		s.rules = rules
	}

	// Previous utterance left the engine finalized; the reset carries the
	// adaptation state into the fresh decode objects.
	if s.engine.Finalized() {
		s.engine.ResetForNextUtterance()
	}
	s.extractor = result.NewExtractor(s.engine, s.cfg.PartialMinFrames)

	s.detector.Reset()
	s.detector.SetNoInputTimeout(timers.NoInputTimeout)
	s.detector.SetSilenceTimeout(timers.SpeechCompleteTimeout)

	s.timersStarted = true
	if timers.StartInputTimers != nil {
		s.timersStarted = *timers.StartInputTimers
	}

	s.stopRequested = false
	s.matchedRule = ""
	s.active = true
	s.state = StateInProgress

	s.logger.Info().Bool("timers_started", s.timersStarted).Int("rules", s.rules.Len()).Msg("Recognition started")
	return nil
}

// Stop requests termination of the in-flight utterance. It is recorded here
// and honored at the next frame boundary; there is no mid-frame preemption.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.stopRequested = true
	s.state = StateStopRequested
	s.logger.Info().Msg("Stop requested")
}

// StartInputTimers arms the no-input timeout for the current utterance
func (s *Session) StartInputTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timersStarted = true
}

// ProcessFrame consumes one fixed-size audio frame. It is called
// synchronously from the media path, in strict arrival order, and never
// blocks on I/O. Per frame: a pending stop wins, then the activity detector
// runs, then the frame feeds the decoder, then endpoint and grammar
// early-termination checks may finalize the utterance.
func (s *Session) ProcessFrame(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopRequested {
		s.stopRequested = false
		if s.active {
			s.finalize(CauseStopped)
		}
		return
	}
	if !s.active {
		return
	}

	s.metrics.RecordFrame(len(samples) * 2)

	switch s.detector.Process(samples) {
	case audio.EventActivityStarted:
		s.logger.Info().Msg("Detected voice activity")
		s.sink.StartOfInput(s.id)
	case audio.EventInactivityDetected:
		s.logger.Info().Msg("Detected voice inactivity")
		s.finalize(CauseSuccess)
		return
	case audio.EventNoInputTimeout:
		s.logger.Info().Bool("timers_started", s.timersStarted).Msg("Detected no input")
		if s.timersStarted {
			s.finalize(CauseNoInputTimeout)
			return
		}
	}

	endpoint, err := s.engine.AcceptAudio(samples, s.sampleRate)
	if err != nil {
		s.logger.Error().Err(err).Msg("Decoder failed, finalizing utterance")
		s.metrics.RecordError("decode_error", "decoder")
		s.finalize(CauseMethodFailed)
		return
	}
	if endpoint {
		s.logger.Info().Int("frames", s.engine.NumFramesDecoded()).Msg("Endpoint detected")
		s.finalize(CauseSuccess)
		return
	}

	if s.rules.Len() > 0 {
		if partial := s.extractor.Partial(); partial != "" {
			if id, ok := s.rules.MatchFirst(partial); ok {
				s.logger.Info().Str("rule_id", id).Str("partial", partial).Msg("Grammar rule matched, terminating early")
				s.matchedRule = id
				s.metrics.RecordEarlyTermination()
				s.finalize(CauseSuccess)
			}
		}
	}
}

// finalize ends the utterance with the given cause and emits the single
// completion event. Caller holds the lock.
func (s *Session) finalize(cause CompletionCause) {
	s.state = StateFinalizing
	s.engine.FinalizeUtterance()

	var res *result.Result
	switch cause {
	case CauseSuccess:
		start := time.Now()
		res = s.extractor.Final()
		s.metrics.RecordFinalExtraction(time.Since(start))
		if s.matchedRule != "" {
			// Annotate a copy; the extractor's cached result stays immutable
			res = res.WithRule(s.matchedRule)
		}
	case CauseStopped:
		res = &result.Result{}
	}

	s.active = false
	s.state = StateComplete
	s.metrics.RecordUtterance(string(cause))
	s.logger.Info().Str("cause", string(cause)).Msg("Recognition complete")
	s.sink.Complete(s.id, cause, res)

	// Eligible for the next utterance; the engine reset happens when it starts
	s.state = StateAwaitingAudio
}

// Close releases the session. The session is unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		// An in-flight utterance must not end silently incomplete
		s.finalize(CauseStopped)
	}
	s.metrics.RecordSessionEnd()
	s.logger.Info().Msg("Session closed")
}

// Metrics returns the session's metrics tracker
func (s *Session) Metrics() *observability.Metrics {
	return s.metrics
}
