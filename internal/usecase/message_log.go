package usecase

import (
	"strings"
	"sync"
	"time"

	"voicechat/internal/domain"
)

type messageLog struct {
	mu      sync.Mutex
	entries []domain.Message
}

func newMessageLog() *messageLog {
	return &messageLog{}
}

// Append records a non-empty entry and returns it.
func (l *messageLog) Append(speaker domain.Speaker, text string, at time.Time) (domain.Message, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, false
	}

	msg := domain.Message{Speaker: speaker, Text: text, At: at}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
	return msg, true
}

func (l *messageLog) Snapshot() []domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Message, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *messageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
