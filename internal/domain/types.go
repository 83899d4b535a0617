package domain

import "time"

// SessionState models the voice chat lifecycle.
type SessionState string

const (
	SessionStateIdle          SessionState = "idle"
	SessionStateConnecting    SessionState = "connecting"
	SessionStateListening     SessionState = "listening"
	SessionStateSpeaking      SessionState = "speaking"
	SessionStateAwaitingReply SessionState = "awaiting_reply"
	SessionStatePlayingReply  SessionState = "playing_reply"
	SessionStateError         SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady            SessionStateReason = "ready"
	SessionReasonConnecting       SessionStateReason = "connecting"
	SessionReasonListening        SessionStateReason = "listening"
	SessionReasonSpeechDetected   SessionStateReason = "speech_detected"
	SessionReasonSegmentSent      SessionStateReason = "segment_sent"
	SessionReasonSegmentDropped   SessionStateReason = "segment_dropped"
	SessionReasonThinking         SessionStateReason = "thinking"
	SessionReasonReplyReceived    SessionStateReason = "reply_received"
	SessionReasonPlayingReply     SessionStateReason = "playing_reply"
	SessionReasonPlaybackFinished SessionStateReason = "playback_finished"
	SessionReasonSocketError      SessionStateReason = "socket_error"
	SessionReasonDeviceError      SessionStateReason = "device_error"
	SessionReasonDisconnected     SessionStateReason = "disconnected"
	SessionReasonStopped          SessionStateReason = "stopped"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeDevice      ErrorCode = "device"
	ErrorCodeSocket      ErrorCode = "socket"
	ErrorCodeSend        ErrorCode = "send"
	ErrorCodeAudioStream ErrorCode = "audio_stream"
	ErrorCodeDecode      ErrorCode = "decode"
	ErrorCodePlayback    ErrorCode = "playback"
)

// Speaker identifies who authored a transcript entry.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

// Message is one rendered transcript entry.
type Message struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Segment is one finalized span of captured audio.
type Segment struct {
	ID          string
	Data        []byte
	ContentType string
	PCMBytes    int
	Chunks      int
	Duration    time.Duration
}

// ServerMessageType tags inbound text frames.
type ServerMessageType string

const (
	ServerMessageUserTranscript ServerMessageType = "user_transcript"
	ServerMessageAITranscript   ServerMessageType = "ai_transcript"
)

// ServerMessage is the JSON payload of an inbound text frame.
type ServerMessage struct {
	Type ServerMessageType `json:"type"`
	Text string            `json:"text"`
}

// TransportEventKind identifies what arrived on the socket.
type TransportEventKind string

const (
	TransportEventMessage TransportEventKind = "message"
	TransportEventAudio   TransportEventKind = "audio"
	TransportEventError   TransportEventKind = "error"
	TransportEventClosed  TransportEventKind = "closed"
)

// TransportEvent is one inbound socket event.
type TransportEvent struct {
	Kind    TransportEventKind
	Message ServerMessage
	Audio   []byte
	Err     error
}

// Status summarizes the current runtime status.
type Status struct {
	State        SessionState `json:"state"`
	Active       bool         `json:"active"`
	Listening    bool         `json:"listening"`
	StartEnabled bool         `json:"startEnabled"`
	StopEnabled  bool         `json:"stopEnabled"`
	Message      string       `json:"message,omitempty"`
}

// StatusFor derives the UI control status from a state.
func StatusFor(state SessionState, listening bool) Status {
	active := state != SessionStateIdle && state != SessionStateError
	return Status{
		State:        state,
		Active:       active,
		Listening:    listening,
		StartEnabled: !active,
		// error keeps stop available so a half-open socket can still be torn down
		StopEnabled: active || state == SessionStateError,
	}
}
