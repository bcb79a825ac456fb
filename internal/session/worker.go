package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/406112767/unimrcp-vosk-plugin/internal/config"
	"github.com/406112767/unimrcp-vosk-plugin/internal/decoder"
	"github.com/406112767/unimrcp-vosk-plugin/internal/observability"
)

// Request is a control operation dispatched to a session through the worker
type Request interface {
	isRequest()
}

// RecognizeRequest starts an utterance, optionally installing a grammar
type RecognizeRequest struct {
	Grammar []byte
	Timers  TimerConfig
}

// DefineGrammarRequest installs a grammar for later recognitions
type DefineGrammarRequest struct {
	Grammar []byte
}

// StopRequest asks the in-flight utterance to terminate
type StopRequest struct{}

// StartInputTimersRequest arms the no-input timer
type StartInputTimersRequest struct{}

func (RecognizeRequest) isRequest()        {}
func (DefineGrammarRequest) isRequest()    {}
func (StopRequest) isRequest()             {}
func (StartInputTimersRequest) isRequest() {}

type cmdKind int

const (
	cmdOpen cmdKind = iota
	cmdClose
	cmdDispatch
)

type command struct {
	kind       cmdKind
	sessionID  string
	sampleRate int
	sink       EventSink
	req        Request
	reply      chan commandReply
}

type commandReply struct {
	sessionID string
	err       error
}

// Worker serializes session lifecycle and control operations on a single
// goroutine. Every submitted command is acknowledged exactly once, whether it
// succeeds or fails. Audio frames do not pass through the worker: the media
// path drives ProcessFrame directly on the session it looked up.
type Worker struct {
	model  *decoder.Model
	cfg    *config.Config
	logger zerolog.Logger
	inbox  chan command

	// sessions is written only by the worker goroutine; the read lock covers
	// the media path's lookups.
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewWorker creates a worker over a shared model
func NewWorker(model *decoder.Model, cfg *config.Config, logger zerolog.Logger) *Worker {
	return &Worker{
		model:    model,
		cfg:      cfg,
		logger:   logger,
		inbox:    make(chan command, 64),
		sessions: make(map[string]*Session),
	}
}

// Run processes commands until the context is canceled, then closes every
// remaining session.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().Msg("Session worker started")
	for {
		select {
		case cmd := <-w.inbox:
			w.handle(cmd)
		case <-ctx.Done():
			w.mu.Lock()
			for id, sess := range w.sessions {
				sess.Close()
				delete(w.sessions, id)
			}
			w.mu.Unlock()
			w.logger.Info().Msg("Session worker stopped")
			return
		}
	}
}

func (w *Worker) handle(cmd command) {
	switch cmd.kind {
	case cmdOpen:
		id := uuid.New().String()
		logger := observability.WithSession(id)
		sess, err := New(id, w.model, w.cfg, cmd.sink, logger)
		if err != nil {
			cmd.reply <- commandReply{err: err}
			return
		}
		if cmd.sampleRate != 0 {
			if err := sess.NegotiateCodec(cmd.sampleRate); err != nil {
				cmd.reply <- commandReply{err: err}
				return
			}
		}
		w.mu.Lock()
		w.sessions[id] = sess
		w.mu.Unlock()
		sess.Metrics().RecordSessionStart()
		logger.Info().Int("sample_rate", cmd.sampleRate).Msg("Session opened")
		cmd.reply <- commandReply{sessionID: id}

	case cmdClose:
		w.mu.Lock()
		sess, ok := w.sessions[cmd.sessionID]
		if ok {
			delete(w.sessions, cmd.sessionID)
		}
		w.mu.Unlock()
		if !ok {
			cmd.reply <- commandReply{err: fmt.Errorf("unknown session %s", cmd.sessionID)}
			return
		}
		sess.Close()
		cmd.reply <- commandReply{sessionID: cmd.sessionID}

	case cmdDispatch:
		sess, ok := w.lookup(cmd.sessionID)
		if !ok {
			cmd.reply <- commandReply{err: fmt.Errorf("unknown session %s", cmd.sessionID)}
			return
		}
		cmd.reply <- commandReply{sessionID: cmd.sessionID, err: w.dispatch(sess, cmd.req)}
	}
}

func (w *Worker) dispatch(sess *Session, req Request) error {
	switch r := req.(type) {
	case RecognizeRequest:
		return sess.Recognize(r.Grammar, r.Timers)
	case DefineGrammarRequest:
		return sess.DefineGrammar(r.Grammar)
	case StopRequest:
		// Acknowledged now; the completion event follows at the next
		// frame boundary.
		sess.Stop()
		return nil
	case StartInputTimersRequest:
		sess.StartInputTimers()
		return nil
	default:
		return fmt.Errorf("unknown request type %T", req)
	}
}

// OpenSession creates a session and returns its id
func (w *Worker) OpenSession(ctx context.Context, sink EventSink, sampleRate int) (string, error) {
	reply := make(chan commandReply, 1)
	select {
	case w.inbox <- command{kind: cmdOpen, sink: sink, sampleRate: sampleRate, reply: reply}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-reply:
		return r.sessionID, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CloseSession closes a session and removes it from the worker
func (w *Worker) CloseSession(ctx context.Context, sessionID string) error {
	return w.submit(ctx, command{kind: cmdClose, sessionID: sessionID})
}

// Dispatch submits a control request to a session and waits for its
// acknowledgement.
func (w *Worker) Dispatch(ctx context.Context, sessionID string, req Request) error {
	return w.submit(ctx, command{kind: cmdDispatch, sessionID: sessionID, req: req})
}

func (w *Worker) submit(ctx context.Context, cmd command) error {
	cmd.reply = make(chan commandReply, 1)
	select {
	case w.inbox <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case r := <-cmd.reply:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session returns the live session for an id, for the media frame path
func (w *Worker) Session(sessionID string) (*Session, bool) {
	return w.lookup(sessionID)
}

func (w *Worker) lookup(sessionID string) (*Session, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	sess, ok := w.sessions[sessionID]
	return sess, ok
}
