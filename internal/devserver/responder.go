package devserver

import (
	"context"
	"fmt"
	"time"
)

// Reply is what the server sends back for one accepted segment.
type Reply struct {
	UserText string
	AIText   string
	Audio    []byte
}

// Responder turns a received segment into a reply. An empty UserText means
// nothing was understood and the segment is skipped.
type Responder interface {
	Respond(ctx context.Context, audio []byte) (Reply, error)
}

// EchoResponder describes the segment it received and optionally sends the
// audio straight back so clients can exercise playback.
type EchoResponder struct {
	Echo bool
	// BytesPerSecond converts segment size into an approximate duration.
	BytesPerSecond int
}

func (r EchoResponder) Respond(ctx context.Context, audio []byte) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	if len(audio) == 0 {
		return Reply{}, nil
	}

	rate := r.BytesPerSecond
	if rate <= 0 {
		rate = 32000
	}
	seconds := time.Duration(len(audio)) * time.Second / time.Duration(rate)

	reply := Reply{
		UserText: fmt.Sprintf("(%d bytes of audio)", len(audio)),
		AIText:   fmt.Sprintf("I heard about %.1f seconds from you.", seconds.Seconds()),
	}
	if r.Echo {
		reply.Audio = append([]byte(nil), audio...)
	}
	return reply, nil
}
