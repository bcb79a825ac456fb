package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startWorker(t *testing.T) (*Worker, context.Context) {
	t.Helper()
	w := NewWorker(testModel(t), testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)

	return w, ctx
}

func TestWorker_SessionLifecycle(t *testing.T) {
	w, ctx := startWorker(t)
	sink := &testSink{}

	id, err := w.OpenSession(ctx, sink, 8000)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a session id")
	}

	if err := w.Dispatch(ctx, id, DefineGrammarRequest{
		Grammar: []byte(`<grammar><rule id="a">x</rule></grammar>`),
	}); err != nil {
		t.Fatalf("DefineGrammar dispatch failed: %v", err)
	}

	if err := w.Dispatch(ctx, id, RecognizeRequest{}); err != nil {
		t.Fatalf("Recognize dispatch failed: %v", err)
	}

	sess, ok := w.Session(id)
	if !ok {
		t.Fatal("Expected session lookup to succeed")
	}
	if !sess.Active() {
		t.Fatal("Expected active utterance after recognize")
	}

	// Stop is acknowledged before the completion event, which follows at the
	// next frame boundary
	if err := w.Dispatch(ctx, id, StopRequest{}); err != nil {
		t.Fatalf("Stop dispatch failed: %v", err)
	}
	sess.ProcessFrame(silenceWave(1))

	_, completions := sink.snapshot()
	if len(completions) != 1 || completions[0].cause != CauseStopped {
		t.Fatalf("Expected one stopped completion, got %+v", completions)
	}

	if err := w.CloseSession(ctx, id); err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}
	if _, ok := w.Session(id); ok {
		t.Error("Expected session removed after close")
	}
	if err := w.CloseSession(ctx, id); err == nil {
		t.Error("Expected error closing an unknown session")
	}
}

func TestWorker_DispatchUnknownSession(t *testing.T) {
	w, ctx := startWorker(t)

	if err := w.Dispatch(ctx, "no-such-session", StopRequest{}); err == nil {
		t.Error("Expected error dispatching to an unknown session")
	}
}

func TestWorker_OpenRejectsBadRate(t *testing.T) {
	w, ctx := startWorker(t)

	if _, err := w.OpenSession(ctx, &testSink{}, 44100); err == nil {
		t.Error("Expected error for unsupported sample rate")
	}
}

func TestWorker_SubmitAfterShutdown(t *testing.T) {
	w := NewWorker(testModel(t), testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	cancel()

	// A canceled caller context unblocks the submit
	callerCtx, callerCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer callerCancel()

	// The worker may still drain this command before stopping; either a clean
	// ack or a context error is acceptable, but the call must return.
	_, err := w.OpenSession(callerCtx, &testSink{}, 8000)
	_ = err
}
