package audio

import (
	"time"
)

// Event is the per-frame verdict of the voice activity detector
type Event int

const (
	// EventNone means no state change this frame
	EventNone Event = iota
	// EventActivityStarted is emitted once when sustained speech begins
	EventActivityStarted
	// EventInactivityDetected is emitted once when trailing silence after
	// speech exceeds the silence timeout
	EventInactivityDetected
	// EventNoInputTimeout is emitted exactly once when no speech was observed
	// within the no-input timeout
	EventNoInputTimeout
)

// detectorState is the two-state VAD automaton
type detectorState int

const (
	stateSilence detectorState = iota
	stateActive
)

// DetectorConfig holds configuration for voice activity detection
type DetectorConfig struct {
	EnergyThreshold float64       // RMS energy threshold for speech frames
	SpeechFrames    int           // Consecutive speech frames before activity starts
	FrameDuration   time.Duration // Duration of one media frame
	NoInputTimeout  time.Duration // Silence duration before no-input fires
	SilenceTimeout  time.Duration // Trailing silence duration before inactivity fires
}

// DefaultDetectorConfig returns a default detector configuration for 20 ms frames
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		EnergyThreshold: 500.0,
		SpeechFrames:    3,
		FrameDuration:   20 * time.Millisecond,
		NoInputTimeout:  5 * time.Second,
		SilenceTimeout:  time.Second,
	}
}

// Detector classifies audio frames into activity events. One detector is owned
// by one recognition session and is reset at the start of each utterance.
type Detector struct {
	config *DetectorConfig

	state       detectorState
	speechRun   int
	silenceRun  int
	elapsed     time.Duration
	sawActivity bool
	noInputDone bool
}

// NewDetector creates a voice activity detector
func NewDetector(config *DetectorConfig) *Detector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &Detector{config: config}
}

// SetNoInputTimeout overrides the no-input timeout, typically from a
// recognition request header
func (d *Detector) SetNoInputTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.config.NoInputTimeout = timeout
	}
}

// SetSilenceTimeout overrides the trailing-silence timeout, typically from a
// recognition request header
func (d *Detector) SetSilenceTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.config.SilenceTimeout = timeout
	}
}

// Process consumes one fixed-duration audio frame and returns at most one event.
// Activity starts after SpeechFrames consecutive frames above the energy
// threshold; inactivity fires after SilenceTimeout of trailing silence while
// active; no-input fires once if no activity was ever observed within
// NoInputTimeout.
func (d *Detector) Process(samples []int16) Event {
	d.elapsed += d.config.FrameDuration
	frameHasSpeech := CalculateRMS(samples) > d.config.EnergyThreshold

	switch d.state {
	case stateSilence:
		if frameHasSpeech {
			d.speechRun++
			if d.speechRun >= d.config.SpeechFrames {
				d.state = stateActive
				d.silenceRun = 0
				if !d.sawActivity {
					d.sawActivity = true
					return EventActivityStarted
				}
				return EventNone
			}
			return EventNone
		}
		d.speechRun = 0
		if !d.sawActivity && !d.noInputDone && d.elapsed >= d.config.NoInputTimeout {
			d.noInputDone = true
			return EventNoInputTimeout
		}

	case stateActive:
		if frameHasSpeech {
			d.silenceRun = 0
			return EventNone
		}
		d.silenceRun++
		if time.Duration(d.silenceRun)*d.config.FrameDuration >= d.config.SilenceTimeout {
			d.state = stateSilence
			d.speechRun = 0
			d.silenceRun = 0
			return EventInactivityDetected
		}
	}

	return EventNone
}

// IsActive reports whether the detector is currently in the active state
func (d *Detector) IsActive() bool {
	return d.state == stateActive
}

// Reset restores the detector to its initial state for a new utterance.
// Configured timeouts are preserved.
func (d *Detector) Reset() {
	d.state = stateSilence
	d.speechRun = 0
	d.silenceRun = 0
	d.elapsed = 0
	d.sawActivity = false
	d.noInputDone = false
}
