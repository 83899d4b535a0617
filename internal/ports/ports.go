package ports

import (
	"context"
	"io"

	"voicechat/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session. Stop releases the device.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// SegmentEncoder wraps raw s16le PCM into the container sent to the server.
type SegmentEncoder interface {
	Encode(pcm []byte, sampleRate int, channels int) ([]byte, error)
	ContentType() string
}

// PlaybackFormat is the PCM layout the player consumes.
type PlaybackFormat struct {
	SampleRate int
	Channels   int
}

// AudioDecoder turns a received audio buffer into s16le PCM in the playback format.
type AudioDecoder interface {
	Decode(ctx context.Context, data []byte, format PlaybackFormat) ([]byte, error)
}

// AudioPlayer plays PCM and returns once playback has ended or ctx is done.
type AudioPlayer interface {
	Play(ctx context.Context, pcm []byte) error
}

// Connection is an open voice chat socket.
type Connection interface {
	SendSegment(data []byte) error
	Events() <-chan domain.TransportEvent
	Close() error
}

// Transport opens voice chat sockets.
type Transport interface {
	Dial(ctx context.Context) (Connection, error)
}

// TranscriptStore persists rendered transcript entries.
type TranscriptStore interface {
	Append(sessionID string, msg domain.Message) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	MessageAppended(msg domain.Message)
	TypingChanged(active bool)
	CountdownChanged(remaining int, active bool)
	SessionError(code domain.ErrorCode, detail string)
}
