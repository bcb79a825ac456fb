package audio

import (
	"testing"
	"time"
)

func testDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		EnergyThreshold: 500.0,
		SpeechFrames:    3,
		FrameDuration:   20 * time.Millisecond,
		NoInputTimeout:  200 * time.Millisecond, // 10 frames
		SilenceTimeout:  100 * time.Millisecond, // 5 frames
	}
}

func speechFrame() []int16 {
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = 5000
	}
	return samples
}

func silenceFrame() []int16 {
	return make([]int16, 160)
}

func TestDetector_ActivityStarted(t *testing.T) {
	d := NewDetector(testDetectorConfig())

	// Activity requires three consecutive speech frames
	for i := 0; i < 2; i++ {
		if ev := d.Process(speechFrame()); ev != EventNone {
			t.Fatalf("Expected no event on frame %d, got %v", i, ev)
		}
	}
	if ev := d.Process(speechFrame()); ev != EventActivityStarted {
		t.Fatalf("Expected activity start on third speech frame, got %v", ev)
	}
	if !d.IsActive() {
		t.Error("Expected detector to be active")
	}

	// The event fires only once per utterance
	for i := 0; i < 10; i++ {
		if ev := d.Process(speechFrame()); ev != EventNone {
			t.Fatalf("Expected no repeated activity event, got %v", ev)
		}
	}
}

func TestDetector_SpeechRunBrokenBySilence(t *testing.T) {
	d := NewDetector(testDetectorConfig())

	d.Process(speechFrame())
	d.Process(speechFrame())
	d.Process(silenceFrame()) // resets the run

	if ev := d.Process(speechFrame()); ev != EventNone {
		t.Errorf("Expected broken speech run to restart, got %v", ev)
	}
}

func TestDetector_InactivityDetected(t *testing.T) {
	d := NewDetector(testDetectorConfig())

	for i := 0; i < 5; i++ {
		d.Process(speechFrame())
	}
	if !d.IsActive() {
		t.Fatal("Expected detector to be active after speech")
	}

	// Five silence frames reach the 100ms silence timeout
	var got Event
	for i := 0; i < 5; i++ {
		got = d.Process(silenceFrame())
	}
	if got != EventInactivityDetected {
		t.Errorf("Expected inactivity after silence timeout, got %v", got)
	}
}

func TestDetector_NoInputTimeout(t *testing.T) {
	d := NewDetector(testDetectorConfig())

	var events []Event
	for i := 0; i < 25; i++ {
		if ev := d.Process(silenceFrame()); ev != EventNone {
			events = append(events, ev)
		}
	}
	if len(events) != 1 || events[0] != EventNoInputTimeout {
		t.Errorf("Expected exactly one no-input event, got %v", events)
	}
}

func TestDetector_NoInputSuppressedByActivity(t *testing.T) {
	d := NewDetector(testDetectorConfig())

	for i := 0; i < 5; i++ {
		d.Process(speechFrame())
	}
	d.Process(silenceFrame())
	d.Process(silenceFrame())

	// Well past the no-input timeout, but speech was observed
	for i := 0; i < 20; i++ {
		if ev := d.Process(silenceFrame()); ev == EventNoInputTimeout {
			t.Fatal("No-input must not fire after activity was observed")
		}
	}
}

func TestDetector_Reset(t *testing.T) {
	d := NewDetector(testDetectorConfig())
	d.SetNoInputTimeout(400 * time.Millisecond)

	for i := 0; i < 5; i++ {
		d.Process(speechFrame())
	}
	d.Reset()

	if d.IsActive() {
		t.Error("Expected inactive detector after reset")
	}

	// The overridden timeout survives the reset: 10 frames is only 200ms
	for i := 0; i < 10; i++ {
		if ev := d.Process(silenceFrame()); ev == EventNoInputTimeout {
			t.Fatal("No-input fired before the overridden timeout")
		}
	}
}

func TestDetector_TimeoutOverrideIgnoresZero(t *testing.T) {
	cfg := testDetectorConfig()
	d := NewDetector(cfg)

	d.SetNoInputTimeout(0)
	d.SetSilenceTimeout(0)

	if cfg.NoInputTimeout != 200*time.Millisecond {
		t.Errorf("Zero override must keep the configured no-input timeout, got %v", cfg.NoInputTimeout)
	}
	if cfg.SilenceTimeout != 100*time.Millisecond {
		t.Errorf("Zero override must keep the configured silence timeout, got %v", cfg.SilenceTimeout)
	}
}
