package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/406112767/unimrcp-vosk-plugin/internal/audio"
	"github.com/406112767/unimrcp-vosk-plugin/internal/config"
	"github.com/406112767/unimrcp-vosk-plugin/internal/observability"
	"github.com/406112767/unimrcp-vosk-plugin/internal/result"
	"github.com/406112767/unimrcp-vosk-plugin/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The media gateway fronting this service runs on a trusted network
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ControlMessage is a JSON control event from the media gateway. Binary
// WebSocket messages on the same connection carry raw audio.
type ControlMessage struct {
	Event                   string `json:"event"`
	Codec                   string `json:"codec,omitempty"`      // PCMU or L16
	SampleRate              int    `json:"sampleRate,omitempty"` // 8000 or 16000
	Grammar                 string `json:"grammar,omitempty"`
	StartInputTimers        *bool  `json:"startInputTimers,omitempty"`
	NoInputTimeoutMs        int    `json:"noInputTimeoutMs,omitempty"`
	SpeechCompleteTimeoutMs int    `json:"speechCompleteTimeoutMs,omitempty"`
}

// ServerEvent is a JSON event sent back to the media gateway
type ServerEvent struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Cause     string `json:"cause,omitempty"`
	Result    string `json:"result,omitempty"` // Marshaled recognition result
}

// StreamSession is the media-side state of one WebSocket connection: it owns
// the codec decode, frame assembly, and the binding to one recognition
// session. Frames are delivered to the session in strict arrival order on the
// connection's read goroutine. Outbound events are queued and written by a
// dedicated writer goroutine, so the frame path never blocks on socket I/O.
type StreamSession struct {
	conn   *websocket.Conn
	worker *session.Worker
	cfg    *config.Config
	logger zerolog.Logger

	sessionID string
	codec     string
	frameSize int // samples per frame
	frameBuf  *audio.FrameBuffer

	events chan ServerEvent
	done   chan struct{}
}

// NewStreamSession creates the media state for one connection
func NewStreamSession(conn *websocket.Conn, worker *session.Worker, cfg *config.Config) *StreamSession {
	return &StreamSession{
		conn:   conn,
		worker: worker,
		cfg:    cfg,
		logger: observability.GetLogger(),
		events: make(chan ServerEvent, 64),
		done:   make(chan struct{}),
	}
}

// Handler is the entry point for media WebSocket connections
func Handler(cfg *config.Config, worker *session.Worker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		s := NewStreamSession(conn, worker, cfg)
		s.run(r.Context())
	}
}

func (s *StreamSession) run(ctx context.Context) {
	go s.writeLoop()
	defer s.teardown()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if closed := s.handleControl(ctx, data); closed {
				return
			}
		case websocket.BinaryMessage:
			s.handleAudio(data)
		}
	}
}

// handleControl dispatches one JSON control event. Returns true when the
// connection should close.
func (s *StreamSession) handleControl(ctx context.Context, data []byte) bool {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse control message")
		s.sendResponse(msg.Event, fmt.Errorf("malformed control message"))
		return false
	}

	switch msg.Event {
	case "open":
		s.sendResponse(msg.Event, s.handleOpen(ctx, &msg))

	case "recognize":
		err := s.worker.Dispatch(ctx, s.sessionID, session.RecognizeRequest{
			Grammar: []byte(msg.Grammar),
			Timers:  timersFromMessage(&msg),
		})
		s.sendResponse(msg.Event, err)

	case "define-grammar":
		err := s.worker.Dispatch(ctx, s.sessionID, session.DefineGrammarRequest{
			Grammar: []byte(msg.Grammar),
		})
		s.sendResponse(msg.Event, err)

	case "stop":
		s.sendResponse(msg.Event, s.worker.Dispatch(ctx, s.sessionID, session.StopRequest{}))

	case "start-input-timers":
		s.sendResponse(msg.Event, s.worker.Dispatch(ctx, s.sessionID, session.StartInputTimersRequest{}))

	case "close":
		s.sendResponse(msg.Event, nil)
		return true

	default:
		s.logger.Warn().Str("event", msg.Event).Msg("Unknown control event")
		s.sendResponse(msg.Event, fmt.Errorf("unknown event %q", msg.Event))
	}
	return false
}

func (s *StreamSession) handleOpen(ctx context.Context, msg *ControlMessage) error {
	if s.sessionID != "" {
		return fmt.Errorf("session already open")
	}

	codec := strings.ToUpper(msg.Codec)
	sampleRate := msg.SampleRate
	if sampleRate == 0 {
		sampleRate = s.cfg.SampleRate
	}
	switch codec {
	case "PCMU":
		if sampleRate != 8000 {
			return fmt.Errorf("PCMU requires 8000 Hz, got %d", sampleRate)
		}
	case "L16":
		if sampleRate != 8000 && sampleRate != 16000 {
			return fmt.Errorf("unsupported sample rate %d", sampleRate)
		}
	default:
		return fmt.Errorf("unsupported codec %q", msg.Codec)
	}

	id, err := s.worker.OpenSession(ctx, s.sink(), sampleRate)
	if err != nil {
		return err
	}

	s.sessionID = id
	s.codec = codec
	s.frameSize = sampleRate * s.cfg.FrameDurationMs / 1000
	s.frameBuf = audio.NewFrameBuffer(s.cfg.AudioBufferSize)
	s.logger = observability.WithSession(id)
	s.logger.Info().Str("codec", codec).Int("sample_rate", sampleRate).Msg("Media stream opened")
	return nil
}

// handleAudio decodes one binary audio chunk and drives every complete frame
// through the recognition session, in order.
func (s *StreamSession) handleAudio(data []byte) {
	if s.sessionID == "" || s.frameBuf == nil {
		return
	}

	var pcm []byte
	switch s.codec {
	case "PCMU":
		pcm = audio.Int16ToBytes(audio.MulawToPCM(data))
	case "L16":
		pcm = data
	}
	if n := s.frameBuf.Write(pcm); n < len(pcm) {
		s.logger.Warn().Int("dropped_bytes", len(pcm)-n).Msg("Audio buffer full, dropping audio")
	}

	sess, ok := s.worker.Session(s.sessionID)
	if !ok {
		return
	}

	frameBytes := s.frameSize * 2
	for {
		frame, ok := s.frameBuf.NextFrame(frameBytes)
		if !ok {
			return
		}
		samples, err := audio.BytesToInt16(frame)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to decode audio frame")
			return
		}
		sess.ProcessFrame(samples)
	}
}

// sink adapts the connection into the session's event sink
func (s *StreamSession) sink() session.EventSink {
	return &connSink{stream: s}
}

func (s *StreamSession) sendResponse(event string, err error) {
	resp := ServerEvent{
		Event:     "response",
		SessionID: s.sessionID,
		Status:    "ok",
	}
	if event != "" {
		resp.Event = "response-" + event
	}
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
	}
	s.sendEvent(resp)
}

// sendEvent queues an event for the writer goroutine. It never blocks: a full
// queue drops the event with a warning rather than stalling the frame path.
func (s *StreamSession) sendEvent(ev ServerEvent) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().Str("event", ev.Event).Msg("Outbound event queue full, dropping event")
	}
}

// writeLoop is the single socket writer. It drains queued events, flushing
// whatever remains when the connection winds down.
func (s *StreamSession) writeLoop() {
	for {
		select {
		case ev := <-s.events:
			s.writeEvent(ev)
		case <-s.done:
			for {
				select {
				case ev := <-s.events:
					s.writeEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *StreamSession) writeEvent(ev ServerEvent) {
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := s.conn.WriteJSON(ev); err != nil {
		s.logger.Warn().Err(err).Str("event", ev.Event).Msg("Failed to send event")
	}
}

func (s *StreamSession) teardown() {
	if s.sessionID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.worker.CloseSession(ctx, s.sessionID); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close session")
		}
		s.logger.Info().Msg("Media stream closed")
	}
	close(s.done)
}

// connSink forwards session events to the connection as JSON
type connSink struct {
	stream *StreamSession
}

func (c *connSink) StartOfInput(sessionID string) {
	c.stream.sendEvent(ServerEvent{
		Event:     "start-of-input",
		SessionID: sessionID,
	})
}

func (c *connSink) Complete(sessionID string, cause session.CompletionCause, res *result.Result) {
	ev := ServerEvent{
		Event:     "recognition-complete",
		SessionID: sessionID,
		Cause:     string(cause),
	}
	if res != nil {
		body, err := res.Marshal()
		if err != nil {
			c.stream.logger.Error().Err(err).Msg("Failed to marshal recognition result")
		} else {
			ev.Result = string(body)
		}
	}
	c.stream.sendEvent(ev)
}

func timersFromMessage(msg *ControlMessage) session.TimerConfig {
	return session.TimerConfig{
		StartInputTimers:      msg.StartInputTimers,
		NoInputTimeout:        time.Duration(msg.NoInputTimeoutMs) * time.Millisecond,
		SpeechCompleteTimeout: time.Duration(msg.SpeechCompleteTimeoutMs) * time.Millisecond,
	}
}
