package domain

// SessionEvent is an input to the session state machine.
type SessionEvent string

const (
	EventStart          SessionEvent = "start"
	EventOpened         SessionEvent = "opened"
	EventSpeech         SessionEvent = "speech"
	EventSegmentSent    SessionEvent = "segment_sent"
	EventSegmentDropped SessionEvent = "segment_dropped"
	EventUserTranscript SessionEvent = "user_transcript"
	EventAITranscript   SessionEvent = "ai_transcript"
	EventPlaybackStart  SessionEvent = "playback_started"
	EventPlaybackDrain  SessionEvent = "playback_drained"
	EventSocketError    SessionEvent = "socket_error"
	EventDeviceError    SessionEvent = "device_error"
	EventClosed         SessionEvent = "closed"
	EventStop           SessionEvent = "stop"
)

// teardown events apply from every connected state.
var teardown = map[SessionEvent]SessionState{
	EventSocketError: SessionStateError,
	EventDeviceError: SessionStateError,
	EventClosed:      SessionStateIdle,
	EventStop:        SessionStateIdle,
}

var transitions = map[SessionState]map[SessionEvent]SessionState{
	SessionStateIdle: {
		EventStart: SessionStateConnecting,
	},
	SessionStateConnecting: {
		EventOpened: SessionStateListening,
	},
	SessionStateListening: {
		EventSpeech:        SessionStateSpeaking,
		EventPlaybackStart: SessionStatePlayingReply,
	},
	SessionStateSpeaking: {
		EventSegmentSent:    SessionStateAwaitingReply,
		EventSegmentDropped: SessionStateListening,
		EventPlaybackStart:  SessionStatePlayingReply,
	},
	SessionStateAwaitingReply: {
		EventAITranscript:  SessionStateListening,
		EventPlaybackStart: SessionStatePlayingReply,
	},
	SessionStatePlayingReply: {
		EventSpeech:        SessionStateSpeaking,
		EventPlaybackDrain: SessionStateListening,
	},
	SessionStateError: {
		EventStart:  SessionStateConnecting,
		EventClosed: SessionStateIdle,
		EventStop:   SessionStateIdle,
	},
}

// Transition returns the state reached from state on event. The boolean is
// false when the pair is not in the table; the state is then unchanged.
func Transition(state SessionState, event SessionEvent) (SessionState, bool) {
	if next, ok := transitions[state][event]; ok {
		return next, true
	}
	if state == SessionStateIdle || state == SessionStateError {
		return state, false
	}
	if next, ok := teardown[event]; ok {
		return next, true
	}
	return state, false
}
