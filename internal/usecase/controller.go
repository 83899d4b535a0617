package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voicechat/internal/clock"
	"voicechat/internal/domain"
	"voicechat/internal/ports"
	"voicechat/internal/silence"
)

var (
	ErrAlreadyConnected = errors.New("voice chat session already active")
	ErrNotConnected     = errors.New("no active voice chat session")
)

// Config controls the voice chat loop.
type Config struct {
	Audio            ports.AudioConfig
	Silence          silence.Config
	Playback         ports.PlaybackFormat
	ChunkSize        int
	FFTSize          int
	MinSegmentBytes  int
	CountdownSeconds int
}

// Dependencies are the adapters the controller drives.
type Dependencies struct {
	Capture   ports.AudioCapture
	Transport ports.Transport
	Encoder   ports.SegmentEncoder
	Decoder   ports.AudioDecoder
	Player    ports.AudioPlayer
	Store     ports.TranscriptStore
	Events    ports.EventSink
	Clock     clock.Clock
	Log       zerolog.Logger
}

// SessionController owns the socket, recorder, playback queue, countdown and
// message log of the voice chat loop.
type SessionController struct {
	transport ports.Transport
	store     ports.TranscriptStore
	events    ports.EventSink
	clock     clock.Clock
	log       zerolog.Logger
	cfg       Config

	recorder  *Recorder
	playback  *Playback
	countdown *Countdown
	messages  *messageLog

	mu      sync.Mutex
	state   domain.SessionState
	current *activeSession
	// pending holds sink notifications raised while mu is held.
	pending []func()
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	if cfg.MinSegmentBytes < 0 {
		cfg.MinSegmentBytes = 0
	}
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = 5
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}

	c := &SessionController{
		transport: deps.Transport,
		store:     deps.Store,
		events:    deps.Events,
		clock:     deps.Clock,
		log:       deps.Log.With().Str("component", "session").Logger(),
		cfg:       cfg,
		messages:  newMessageLog(),
		state:     domain.SessionStateIdle,
	}
	c.recorder = NewRecorder(deps.Capture, deps.Encoder, deps.Clock, RecorderConfig{
		Audio:     cfg.Audio,
		Silence:   cfg.Silence,
		ChunkSize: cfg.ChunkSize,
		FFTSize:   cfg.FFTSize,
	}, deps.Log, RecorderCallbacks{
		OnSpeech:  c.handleSpeech,
		OnSegment: c.handleSegment,
		OnError:   c.handleRecorderError,
	})
	c.playback = NewPlayback(deps.Decoder, deps.Player, cfg.Playback, deps.Log, PlaybackCallbacks{
		OnStart:   c.handlePlaybackStarted,
		OnDrained: c.handlePlaybackDrained,
		OnError:   c.handlePlaybackError,
	})
	c.countdown = NewCountdown(deps.Clock, func(remaining int, active bool) {
		c.events.CountdownChanged(remaining, active)
	})
	return c
}

// Connect opens the socket and starts listening once it is open.
func (c *SessionController) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil && c.state != domain.SessionStateError {
		c.unlock()
		return ErrAlreadyConnected
	}
	stale := c.current
	c.current = nil

	sessionCtx, cancel := context.WithCancel(ctx)
	sess := &activeSession{
		id:         uuid.NewString(),
		ctx:        sessionCtx,
		cancel:     cancel,
		eventsDone: make(chan struct{}),
	}
	c.current = sess
	c.applyLocked(domain.EventStart, domain.SessionReasonConnecting)
	c.unlock()

	if stale != nil {
		c.release(stale)
	}

	log := c.log.With().Str("session", sess.id).Logger()
	conn, err := c.transport.Dial(sessionCtx)
	if err != nil {
		cancel()
		close(sess.eventsDone)
		c.mu.Lock()
		if c.current != sess {
			c.unlock()
			return ErrNotConnected
		}
		c.current = nil
		c.setStateLocked(domain.SessionStateIdle, domain.SessionReasonSocketError)
		c.unlock()
		log.Error().Err(err).Msg("socket open failed")
		c.events.SessionError(domain.ErrorCodeSocket, fmt.Sprintf("failed to connect: %v", err))
		return fmt.Errorf("connect: %w", err)
	}

	c.mu.Lock()
	if c.current != sess {
		c.unlock()
		cancel()
		close(sess.eventsDone)
		_ = conn.Close()
		return ErrNotConnected
	}
	sess.conn = conn
	sess.listening = true
	c.applyLocked(domain.EventOpened, domain.SessionReasonListening)
	c.unlock()

	go c.consume(sess)
	log.Info().Msg("socket open")

	return c.startRecorder(sess)
}

// Disconnect tears the session down. It is safe to call at any time.
func (c *SessionController) Disconnect() error {
	c.mu.Lock()
	sess := c.current
	c.current = nil
	if sess != nil {
		sess.listening = false
	}
	if sess == nil && c.state == domain.SessionStateIdle {
		c.unlock()
		return nil
	}
	c.applyLocked(domain.EventStop, domain.SessionReasonStopped)
	c.unlock()

	c.quiesce()
	c.playback.Clear()
	if sess != nil {
		c.release(sess)
		c.log.Info().Str("session", sess.id).Msg("session stopped")
	}
	return nil
}

// Close disconnects and waits for background playback to finish.
func (c *SessionController) Close() {
	_ = c.Disconnect()
	c.playback.Close()
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	listening := c.current != nil && c.current.listening
	return domain.StatusFor(c.state, listening)
}

// Transcript returns every message rendered so far.
func (c *SessionController) Transcript() []domain.Message {
	return c.messages.Snapshot()
}

func (c *SessionController) consume(sess *activeSession) {
	defer close(sess.eventsDone)

	closed := false
	for event := range sess.conn.Events() {
		if event.Kind == domain.TransportEventClosed {
			closed = true
		}
		c.handleTransportEvent(sess, event)
	}
	if !closed {
		c.handleTransportEvent(sess, domain.TransportEvent{Kind: domain.TransportEventClosed})
	}
}

// handleTransportEvent is the single dispatch point for socket events.
func (c *SessionController) handleTransportEvent(sess *activeSession, event domain.TransportEvent) {
	if !c.owns(sess) {
		return
	}

	switch event.Kind {
	case domain.TransportEventMessage:
		c.handleServerMessage(sess, event.Message)
	case domain.TransportEventAudio:
		c.log.Debug().Int("bytes", len(event.Audio)).Msg("reply audio received")
		c.playback.Enqueue(event.Audio)
	case domain.TransportEventError:
		c.handleSocketError(sess, event.Err)
	case domain.TransportEventClosed:
		c.handleSocketClosed(sess)
	}
}

func (c *SessionController) handleServerMessage(sess *activeSession, msg domain.ServerMessage) {
	switch msg.Type {
	case domain.ServerMessageUserTranscript:
		c.mu.Lock()
		if c.current != sess {
			c.unlock()
			return
		}
		appended := c.appendLocked(sess, domain.SpeakerUser, msg.Text)
		if appended {
			c.notifyLocked(func() { c.events.TypingChanged(true) })
		}
		c.applyLocked(domain.EventUserTranscript, domain.SessionReasonThinking)
		c.unlock()

		if !appended {
			c.log.Debug().Str("session", sess.id).Msg("empty user transcript")
			return
		}
		c.countdown.Start(c.cfg.CountdownSeconds)
		if !c.owns(sess) {
			c.countdown.Cancel()
			c.events.CountdownChanged(0, false)
		}

	case domain.ServerMessageAITranscript:
		c.countdown.Cancel()

		c.mu.Lock()
		if c.current != sess {
			c.unlock()
			return
		}
		c.notifyLocked(func() {
			c.events.CountdownChanged(0, false)
			c.events.TypingChanged(false)
		})
		c.appendLocked(sess, domain.SpeakerAI, msg.Text)
		c.applyLocked(domain.EventAITranscript, domain.SessionReasonReplyReceived)
		restart := sess.listening && !c.recorder.Active()
		c.unlock()

		if restart {
			_ = c.startRecorder(sess)
		}

	default:
		c.log.Debug().Str("type", string(msg.Type)).Msg("ignoring unrecognized message")
	}
}

func (c *SessionController) handleSocketError(sess *activeSession, err error) {
	c.log.Error().Err(err).Str("session", sess.id).Msg("socket error")

	c.mu.Lock()
	if c.current != sess {
		c.unlock()
		return
	}
	sess.listening = false
	c.applyLocked(domain.EventSocketError, domain.SessionReasonSocketError)
	c.unlock()

	c.quiesce()
	detail := "socket error"
	if err != nil {
		detail = err.Error()
	}
	c.events.SessionError(domain.ErrorCodeSocket, detail)
}

func (c *SessionController) handleSocketClosed(sess *activeSession) {
	c.mu.Lock()
	if c.current != sess {
		c.unlock()
		return
	}
	c.current = nil
	sess.listening = false
	c.applyLocked(domain.EventClosed, domain.SessionReasonDisconnected)
	c.unlock()

	c.quiesce()
	sess.cancel()
	c.log.Info().Str("session", sess.id).Msg("socket closed")
}

func (c *SessionController) handleSpeech() {
	c.mu.Lock()
	defer c.unlock()
	if c.current == nil || !c.current.listening {
		return
	}
	c.applyLocked(domain.EventSpeech, domain.SessionReasonSpeechDetected)
}

func (c *SessionController) handleSegment(segment domain.Segment) {
	c.mu.Lock()
	sess := c.current
	if sess == nil || !sess.listening || !sess.connected() {
		c.applyLocked(domain.EventSegmentDropped, domain.SessionReasonSegmentDropped)
		c.unlock()
		c.log.Debug().Str("segment", segment.ID).Msg("dropping segment outside a listening session")
		return
	}
	if len(segment.Data) < c.cfg.MinSegmentBytes {
		c.applyLocked(domain.EventSegmentDropped, domain.SessionReasonSegmentDropped)
		c.unlock()
		c.log.Debug().
			Str("segment", segment.ID).
			Int("bytes", len(segment.Data)).
			Int("min_bytes", c.cfg.MinSegmentBytes).
			Msg("segment too short to send")
		_ = c.startRecorder(sess)
		return
	}
	conn := sess.conn
	c.unlock()

	if err := conn.SendSegment(segment.Data); err != nil {
		c.log.Error().Err(err).Str("segment", segment.ID).Msg("segment send failed")
		c.events.SessionError(domain.ErrorCodeSend, fmt.Sprintf("failed to send audio: %v", err))
		c.mu.Lock()
		if c.current == sess {
			c.applyLocked(domain.EventSegmentDropped, domain.SessionReasonSegmentDropped)
		}
		c.unlock()
		return
	}

	c.log.Info().
		Str("segment", segment.ID).
		Int("bytes", len(segment.Data)).
		Dur("duration", segment.Duration).
		Msg("segment sent")
	c.mu.Lock()
	if c.current == sess {
		c.applyLocked(domain.EventSegmentSent, domain.SessionReasonSegmentSent)
	}
	c.unlock()
}

func (c *SessionController) handleRecorderError(err error) {
	c.mu.Lock()
	sess := c.current
	if sess == nil || !sess.listening {
		c.unlock()
		return
	}
	c.failDeviceLocked(sess)
	c.unlock()

	c.events.SessionError(domain.ErrorCodeAudioStream, err.Error())
	c.quiesce()
	c.release(sess)
}

func (c *SessionController) handlePlaybackStarted() {
	c.mu.Lock()
	defer c.unlock()
	if c.current == nil {
		return
	}
	c.applyLocked(domain.EventPlaybackStart, domain.SessionReasonPlayingReply)
}

func (c *SessionController) handlePlaybackDrained() {
	c.mu.Lock()
	defer c.unlock()
	if c.current == nil {
		return
	}
	c.applyLocked(domain.EventPlaybackDrain, domain.SessionReasonPlaybackFinished)
}

func (c *SessionController) handlePlaybackError(code domain.ErrorCode, err error) {
	c.events.SessionError(code, err.Error())
}

// startRecorder acquires the microphone for sess. A device failure closes
// the connection and leaves the controller in the error state.
func (c *SessionController) startRecorder(sess *activeSession) error {
	err := c.recorder.Start(sess.ctx)
	if err == nil {
		c.mu.Lock()
		stale := c.current != sess || !sess.listening
		c.unlock()
		if stale {
			c.recorder.Abort()
		}
		return nil
	}
	if errors.Is(err, ErrRecorderAborted) {
		return nil
	}

	c.log.Error().Err(err).Str("session", sess.id).Msg("microphone unavailable")
	c.mu.Lock()
	if c.current != sess {
		c.unlock()
		return err
	}
	c.failDeviceLocked(sess)
	c.unlock()

	c.events.SessionError(domain.ErrorCodeDevice, err.Error())
	c.quiesce()
	c.release(sess)
	return err
}

func (c *SessionController) failDeviceLocked(sess *activeSession) {
	c.current = nil
	sess.listening = false
	c.applyLocked(domain.EventDeviceError, domain.SessionReasonDeviceError)
}

// quiesce stops every timer and the recorder. Called without c.mu held.
func (c *SessionController) quiesce() {
	c.countdown.Cancel()
	c.events.CountdownChanged(0, false)
	c.events.TypingChanged(false)
	c.recorder.Abort()
}

func (c *SessionController) release(sess *activeSession) {
	sess.cancel()
	c.mu.Lock()
	conn := sess.conn
	c.unlock()
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log.Debug().Err(err).Msg("socket close")
		}
	}
}

// appendLocked reports whether text produced a message.
func (c *SessionController) appendLocked(sess *activeSession, speaker domain.Speaker, text string) bool {
	msg, ok := c.messages.Append(speaker, text, c.clock.Now())
	if !ok {
		return false
	}
	c.notifyLocked(func() { c.events.MessageAppended(msg) })
	if c.store != nil {
		if err := c.store.Append(sess.id, msg); err != nil {
			c.log.Warn().Err(err).Msg("transcript store append failed")
		}
	}
	return true
}

func (c *SessionController) applyLocked(event domain.SessionEvent, reason domain.SessionStateReason) {
	next, ok := domain.Transition(c.state, event)
	if !ok || next == c.state {
		return
	}
	c.setStateLocked(next, reason)
}

func (c *SessionController) setStateLocked(state domain.SessionState, reason domain.SessionStateReason) {
	c.state = state
	c.notifyLocked(func() { c.events.SessionStateChanged(state, reason) })
}

func (c *SessionController) notifyLocked(fn func()) {
	c.pending = append(c.pending, fn)
}

// unlock releases c.mu and then delivers the notifications queued under it,
// so sink callbacks are free to call back into the controller.
func (c *SessionController) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, notify := range pending {
		notify()
	}
}

func (c *SessionController) owns(sess *activeSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == sess
}
